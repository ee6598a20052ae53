package types

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ActionType 店铺里的操作类型（每种对应一个小游戏）
type ActionType string

const (
	// ActionNone 没有操作
	ActionNone ActionType = ""
	// ActionTake 从货架上拿
	ActionTake ActionType = "take"
	// ActionChop 切（冰块等）
	ActionChop ActionType = "chop"
	// ActionPack 打包
	ActionPack ActionType = "pack"
	// ActionWeigh 称重
	ActionWeigh ActionType = "weigh"
	// ActionBag 装袋
	ActionBag ActionType = "bag"
)

// AllActions 全部操作类型
var AllActions = []ActionType{ActionTake, ActionChop, ActionPack, ActionWeigh, ActionBag}

// Valid 是否为已定义的操作
func (a ActionType) Valid() bool {
	for _, known := range AllActions {
		if a == known {
			return true
		}
	}
	return false
}

// String 返回操作的字符串表示
func (a ActionType) String() string {
	if a == ActionNone {
		return "none"
	}
	return string(a)
}

// UnmarshalYAML 解析时拒绝未知操作
func (a *ActionType) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed := ActionType(s)
	if !parsed.Valid() {
		return fmt.Errorf("line %d: unknown action %q", value.Line, s)
	}
	*a = parsed
	return nil
}

// Speaker 台词的说话人
type Speaker string

const (
	SpeakerCustomer Speaker = "customer"
	SpeakerMom      Speaker = "mom"
	SpeakerNarrator Speaker = "narrator"
)

// Valid 是否为已定义的说话人
func (s Speaker) Valid() bool {
	return s == SpeakerCustomer || s == SpeakerMom || s == SpeakerNarrator
}
