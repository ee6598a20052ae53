// Package systems 连接检测器与游戏引擎的每帧逻辑
//
// 所有系统都在游戏主循环（Ebitengine Update）里按固定顺序调用：
//
//	FrameIngestSystem → FaceCheckSystem → GestureCheckSystem → SequenceEndSystem → SchedulerSystem
//
// 系统之间不共享可变状态，只通过 Engine 和 Detector 的公开方法通信。
package systems

import (
	"math"

	"github.com/decker502/tindahan/pkg/types"
)

// 表情保持参数默认值
const (
	DefaultHoldDuration     = 2.5
	DefaultDecayPerSecond   = 0.6
	DefaultWarningThreshold = 0.35
)

// HoldParams 表情保持积分参数
type HoldParams struct {
	DefaultDuration  float64 // 台词没有保持时长时使用（秒）
	DecayPerSecond   float64 // 表情不匹配时每秒回退的进度
	WarningThreshold float64 // 不匹配且进度低于此值时显示提示
}

// DefaultHoldParams 返回默认参数
func DefaultHoldParams() HoldParams {
	return HoldParams{
		DefaultDuration:  DefaultHoldDuration,
		DecayPerSecond:   DefaultDecayPerSecond,
		WarningThreshold: DefaultWarningThreshold,
	}
}

// HoldStatus 一次积分后的结果
type HoldStatus struct {
	Progress  float64
	Matching  bool
	Warning   bool
	Countdown int
	Complete  bool
}

// HoldIntegrator 表情保持进度积分器
// 匹配时进度按 dt/时长 增长，不匹配时按固定速率回退
type HoldIntegrator struct {
	params   HoldParams
	duration float64
	progress float64
}

// NewHoldIntegrator 创建积分器，非正的参数使用默认值
func NewHoldIntegrator(params HoldParams) *HoldIntegrator {
	if params.DefaultDuration <= 0 {
		params.DefaultDuration = DefaultHoldDuration
	}
	if params.DecayPerSecond <= 0 {
		params.DecayPerSecond = DefaultDecayPerSecond
	}
	if params.WarningThreshold <= 0 {
		params.WarningThreshold = DefaultWarningThreshold
	}
	return &HoldIntegrator{params: params, duration: params.DefaultDuration}
}

// Reset 开始新的保持，进度归零
// 参数：
//   - duration: 需要保持的秒数，≤0 时使用默认时长
func (h *HoldIntegrator) Reset(duration float64) {
	if duration <= 0 || math.IsNaN(duration) {
		duration = h.params.DefaultDuration
	}
	h.duration = duration
	h.progress = 0
}

// Progress 当前进度 [0,1]
func (h *HoldIntegrator) Progress() float64 {
	return h.progress
}

// Duration 当前保持时长（秒）
func (h *HoldIntegrator) Duration() float64 {
	return h.duration
}

// Step 推进一帧
// 参数：
//   - current: 检测器当前表情
//   - required: 需要保持的表情，空值视为 neutral
//   - dt: 帧间隔（秒），负值按 0 处理
//
// 返回：
//   - HoldStatus: 进度、是否匹配、提示与倒计时、是否完成
func (h *HoldIntegrator) Step(current, required types.Emotion, dt float64) HoldStatus {
	if required == types.EmotionNone {
		required = types.EmotionNeutral
	}
	if dt < 0 || math.IsNaN(dt) {
		dt = 0
	}

	matching := current == required
	if matching {
		h.progress = math.Min(1, h.progress+dt/h.duration)
	} else {
		h.progress = math.Max(0, h.progress-h.params.DecayPerSecond*dt)
	}

	return HoldStatus{
		Progress:  h.progress,
		Matching:  matching,
		Warning:   !matching && h.progress < h.params.WarningThreshold,
		Countdown: max(0, int(math.Ceil((1-h.progress)*h.duration))),
		Complete:  h.progress >= 1,
	}
}
