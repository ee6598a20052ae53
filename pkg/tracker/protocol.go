// Package tracker 接收外部人脸追踪程序推送的帧
//
// 追踪程序（例如浏览器里的 MediaPipe FaceLandmarker）通过 websocket
// 每帧发送一条 JSON 文本消息：
//
//	{"t": 1712345678901, "blendshapes": {"mouthSmileLeft": 0.8, ...}, "landmarks": [[{"x":0.5,"y":0.4,"z":0}, ...]]}
//
// t 为毫秒时间戳，可省略；blendshapes 为空对象表示没检测到脸；
// 两个字段都省略的消息无效。
package tracker

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/decker502/tindahan/pkg/face"
)

// 消息校验错误
var (
	ErrEmptyMessage     = errors.New("message carries neither blendshapes nor landmarks")
	ErrNegativeTime     = errors.New("negative timestamp")
	ErrBlendshapeRange  = errors.New("blendshape value out of [0,1]")
	ErrLandmarkTooShort = errors.New("face has no nose tip landmark")
)

// TrackerMessage 一条追踪消息
type TrackerMessage struct {
	T           int64              `json:"t,omitempty"`
	Blendshapes map[string]float64 `json:"blendshapes,omitempty"`
	Landmarks   [][]face.Landmark  `json:"landmarks,omitempty"`
}

// DecodeMessage 解析并校验一条消息
func DecodeMessage(data []byte) (TrackerMessage, error) {
	var msg TrackerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return TrackerMessage{}, fmt.Errorf("decode tracker message: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return TrackerMessage{}, err
	}
	return msg, nil
}

// Validate 校验消息内容
func (m TrackerMessage) Validate() error {
	if m.Blendshapes == nil && m.Landmarks == nil {
		return ErrEmptyMessage
	}
	if m.T < 0 {
		return ErrNegativeTime
	}
	for name, v := range m.Blendshapes {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s=%v: %w", name, v, ErrBlendshapeRange)
		}
	}
	for i, f := range m.Landmarks {
		if len(f) <= face.NoseTipIndex {
			return fmt.Errorf("face %d: %w", i, ErrLandmarkTooShort)
		}
	}
	return nil
}

// Frame 转换为检测器帧，t 缺省时使用 received
func (m TrackerMessage) Frame(received time.Time) face.Frame {
	ts := received
	if m.T > 0 {
		ts = time.UnixMilli(m.T)
	}
	frame := face.Frame{Time: ts, Landmarks: m.Landmarks}
	if m.Blendshapes != nil {
		frame.Blendshapes = face.BlendshapeFrame(m.Blendshapes)
	}
	return frame
}
