// Package face 实现表情分类和头部动作识别
//
// 帧来源（追踪桥接、录像回放、键盘模拟）在各自的 goroutine 中产生帧，
// 只负责入队；Detector.Drain 在游戏主循环中把帧应用到分类器上，
// 所以所有可观察状态都只在游戏 goroutine 中修改。
package face

import (
	"context"
	"time"
)

// BlendshapeFrame 一帧的表情系数，键为 blendshape 名称（如 mouthSmileLeft），值为 0-1
// 缺失的键按 0 处理
type BlendshapeFrame map[string]float64

// Landmark 归一化的人脸关键点坐标
type Landmark struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
	Z float64 `yaml:"z" json:"z"`
}

// NoseTipIndex 鼻尖在关键点数组中的下标
const NoseTipIndex = 1

// LandmarkFrame 一帧的关键点，Faces[i] 为第 i 张脸
type LandmarkFrame struct {
	Time  time.Time
	Faces [][]Landmark
}

// NoseTip 返回第一张脸的鼻尖坐标，没有脸或关键点不足时返回 false
func (f LandmarkFrame) NoseTip() (Landmark, bool) {
	if len(f.Faces) == 0 || len(f.Faces[0]) <= NoseTipIndex {
		return Landmark{}, false
	}
	return f.Faces[0][NoseTipIndex], true
}

// Frame 来源产生的一帧完整数据
// Blendshapes 为 nil 表示这一帧没有表情数据（不更新表情）；
// 非 nil 的空表表示没检测到脸（表情回到 neutral）
type Frame struct {
	Time        time.Time
	Blendshapes BlendshapeFrame
	Landmarks   [][]Landmark
}

// FrameSource 帧来源
type FrameSource interface {
	// Run 持续产生帧并调用 emit，直到 ctx 取消或来源自行结束
	// 打开失败时立即返回错误
	Run(ctx context.Context, emit func(Frame)) error
}

// FrameSourceFunc 把普通函数适配为 FrameSource
type FrameSourceFunc func(ctx context.Context, emit func(Frame)) error

// Run 实现 FrameSource
func (f FrameSourceFunc) Run(ctx context.Context, emit func(Frame)) error {
	return f(ctx, emit)
}
