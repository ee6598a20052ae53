package face

import (
	"math"
	"time"

	"github.com/decker502/tindahan/pkg/types"
)

const (
	// GestureWindow 鼻尖轨迹的保留时长，严格小于该时长的样本才保留
	GestureWindow = 600 * time.Millisecond
	// MinGestureSamples 窗口内至少需要的样本数
	MinGestureSamples = 5
	// GestureRangeThreshold 主方向位移阈值（归一化坐标）
	GestureRangeThreshold = 0.035
	// GestureDominance 主方向位移必须超过另一方向的倍数
	GestureDominance = 1.4
)

type noseSample struct {
	x, y float64
	t    time.Time
}

// GestureTracker 根据鼻尖轨迹识别点头和摇头
// 结果是粘滞的：识别出动作后保持不变，直到调用 Clear
type GestureTracker struct {
	now     func() time.Time
	samples []noseSample
	last    types.HeadGesture
}

// NewGestureTracker 创建识别器，now 为 nil 时使用 time.Now
// 帧自带时间戳时优先使用帧时间
func NewGestureTracker(now func() time.Time) *GestureTracker {
	if now == nil {
		now = time.Now
	}
	return &GestureTracker{now: now}
}

// Update 加入一帧关键点，返回当前识别结果
// 没有脸的帧被忽略；第二个返回值表示当前是否有识别结果
func (g *GestureTracker) Update(frame LandmarkFrame) (types.HeadGesture, bool) {
	nose, ok := frame.NoseTip()
	if !ok {
		return g.last, g.last != types.GestureNone
	}

	now := frame.Time
	if now.IsZero() {
		now = g.now()
	}
	g.samples = append(g.samples, noseSample{x: nose.X, y: nose.Y, t: now})

	// 淘汰过期样本
	kept := g.samples[:0]
	for _, s := range g.samples {
		if now.Sub(s.t) < GestureWindow {
			kept = append(kept, s)
		}
	}
	g.samples = kept

	if len(g.samples) < MinGestureSamples {
		return g.last, g.last != types.GestureNone
	}

	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, s := range g.samples {
		minX, maxX = math.Min(minX, s.x), math.Max(maxX, s.x)
		minY, maxY = math.Min(minY, s.y), math.Max(maxY, s.y)
	}
	xRange := maxX - minX
	yRange := maxY - minY

	switch {
	case yRange > GestureRangeThreshold && yRange > xRange*GestureDominance:
		g.last = types.GestureNod
	case xRange > GestureRangeThreshold && xRange > yRange*GestureDominance:
		g.last = types.GestureShake
	}
	return g.last, g.last != types.GestureNone
}

// Last 返回最近一次识别结果
func (g *GestureTracker) Last() types.HeadGesture {
	return g.last
}

// SampleCount 当前窗口内的样本数
func (g *GestureTracker) SampleCount() int {
	return len(g.samples)
}

// Clear 清空轨迹和识别结果
func (g *GestureTracker) Clear() {
	g.samples = nil
	g.last = types.GestureNone
}
