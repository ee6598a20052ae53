// Package types 定义共享的基础类型
// 这个包不依赖任何其他业务包，用于解决循环引用问题
package types

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Emotion 表情类别
type Emotion string

const (
	// EmotionNone 未指定（仅用于“没有表情要求”的场合）
	EmotionNone Emotion = ""
	// EmotionHappy 开心（微笑）
	EmotionHappy Emotion = "happy"
	// EmotionSad 难过（嘴角下垂）
	EmotionSad Emotion = "sad"
	// EmotionAngry 生气（皱眉）
	EmotionAngry Emotion = "angry"
	// EmotionDisgusted 厌恶（皱鼻）
	EmotionDisgusted Emotion = "disgusted"
	// EmotionSurprised 惊讶（睁大眼、张嘴）
	EmotionSurprised Emotion = "surprised"
	// EmotionNeutral 中性（面无表情）
	EmotionNeutral Emotion = "neutral"
)

// AllEmotions 分类器可能输出的全部表情，顺序即打分时的比较顺序
var AllEmotions = []Emotion{
	EmotionHappy,
	EmotionSad,
	EmotionAngry,
	EmotionDisgusted,
	EmotionSurprised,
	EmotionNeutral,
}

// Valid 是否为六种已定义表情之一
func (e Emotion) Valid() bool {
	for _, known := range AllEmotions {
		if e == known {
			return true
		}
	}
	return false
}

// String 返回表情的字符串表示
func (e Emotion) String() string {
	if e == EmotionNone {
		return "none"
	}
	return string(e)
}

// UnmarshalYAML 解析时拒绝未知表情
func (e *Emotion) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed := Emotion(s)
	if !parsed.Valid() {
		return fmt.Errorf("line %d: unknown emotion %q", value.Line, s)
	}
	*e = parsed
	return nil
}

// HeadGesture 头部动作
type HeadGesture string

const (
	// GestureNone 没有检测到/没有要求头部动作
	GestureNone HeadGesture = ""
	// GestureNod 点头（是）
	GestureNod HeadGesture = "nod"
	// GestureShake 摇头（不是）
	GestureShake HeadGesture = "shake"
)

// Valid 是否为点头或摇头
func (g HeadGesture) Valid() bool {
	return g == GestureNod || g == GestureShake
}

// String 返回头部动作的字符串表示
func (g HeadGesture) String() string {
	if g == GestureNone {
		return "none"
	}
	return string(g)
}

// UnmarshalYAML 解析时拒绝未知头部动作
func (g *HeadGesture) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed := HeadGesture(s)
	if !parsed.Valid() {
		return fmt.Errorf("line %d: unknown head gesture %q", value.Line, s)
	}
	*g = parsed
	return nil
}
