package config

import (
	"fmt"

	"github.com/decker502/tindahan/pkg/types"
	"gopkg.in/yaml.v3"
)

// DialogLine 对话序列中的一行
// Check 为 nil 时是纯叙述行，只需手动推进
type DialogLine struct {
	Speaker types.Speaker
	Text    string
	Check   LineCheck
}

// LineCheck 台词上的关卡检查（表情 / 头部动作 / 操作三选一）
// 接口是封闭的，只有本包内的三种类型实现它
type LineCheck interface {
	isLineCheck()
}

// FaceCheck 要求玩家保持某个表情一段时间
type FaceCheck struct {
	Emotion     types.Emotion
	HoldSeconds float64 // 0 表示使用默认时长
}

// GestureCheck 要求玩家点头或摇头
type GestureCheck struct {
	Gesture types.HeadGesture
}

// ActionCheck 要求玩家在若干操作中选出正确的一个
type ActionCheck struct {
	Correct types.ActionType
	Wrong   []types.ActionType
}

func (FaceCheck) isLineCheck()    {}
func (GestureCheck) isLineCheck() {}
func (ActionCheck) isLineCheck()  {}

// rawDialogLine 是 YAML 中的扁平写法
type rawDialogLine struct {
	Speaker         types.Speaker      `yaml:"speaker"`
	Text            string             `yaml:"text"`
	RequiredEmotion *types.Emotion     `yaml:"requiredEmotion,omitempty"`
	HoldDuration    float64            `yaml:"holdDuration,omitempty"`
	HeadGesture     *types.HeadGesture `yaml:"headGesture,omitempty"`
	Action          *types.ActionType  `yaml:"action,omitempty"`
	WrongActions    []types.ActionType `yaml:"wrongActions,omitempty"`
}

// UnmarshalYAML 把扁平写法转换为带 Check 的 DialogLine
// 同一行同时写了多种检查时报错
func (l *DialogLine) UnmarshalYAML(value *yaml.Node) error {
	var raw rawDialogLine
	if err := value.Decode(&raw); err != nil {
		return err
	}

	kinds := 0
	var check LineCheck
	if raw.RequiredEmotion != nil {
		kinds++
		check = FaceCheck{Emotion: *raw.RequiredEmotion, HoldSeconds: raw.HoldDuration}
	}
	if raw.HeadGesture != nil {
		kinds++
		check = GestureCheck{Gesture: *raw.HeadGesture}
	}
	if raw.Action != nil {
		kinds++
		check = ActionCheck{Correct: *raw.Action, Wrong: raw.WrongActions}
	}

	if kinds > 1 {
		return fmt.Errorf("line %d: requiredEmotion, headGesture and action are mutually exclusive", value.Line)
	}
	if raw.HoldDuration < 0 {
		return fmt.Errorf("line %d: holdDuration cannot be negative", value.Line)
	}
	if raw.HoldDuration > 0 && raw.RequiredEmotion == nil {
		return fmt.Errorf("line %d: holdDuration requires requiredEmotion", value.Line)
	}
	if len(raw.WrongActions) > 0 && raw.Action == nil {
		return fmt.Errorf("line %d: wrongActions requires action", value.Line)
	}

	*l = DialogLine{Speaker: raw.Speaker, Text: raw.Text, Check: check}
	return nil
}

// MarshalYAML 输出扁平写法，和 UnmarshalYAML 对称
func (l DialogLine) MarshalYAML() (interface{}, error) {
	raw := rawDialogLine{Speaker: l.Speaker, Text: l.Text}
	switch c := l.Check.(type) {
	case FaceCheck:
		raw.RequiredEmotion = &c.Emotion
		raw.HoldDuration = c.HoldSeconds
	case GestureCheck:
		raw.HeadGesture = &c.Gesture
	case ActionCheck:
		raw.Action = &c.Correct
		raw.WrongActions = c.Wrong
	}
	return raw, nil
}
