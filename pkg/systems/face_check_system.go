package systems

import (
	"go.uber.org/zap"

	"github.com/decker502/tindahan/pkg/game"
	"github.com/decker502/tindahan/pkg/types"
)

// EmotionReader 提供当前识别到的表情
type EmotionReader interface {
	CurrentEmotion() types.Emotion
}

// FaceCheckEngine FaceCheckSystem 需要的引擎操作
type FaceCheckEngine interface {
	State() game.GameState
	Generation() uint64
	UpdateFaceProgress(progress float64) error
	SetFaceWarning(warning bool, countdown int) error
	CompleteFaceCheck() error
	CompleteWrongActionPenalty() error
	FailFaceCheck() error
}

// FaceCheckSystem 在 face_check 和 wrong_action_penalty 阶段积分表情保持进度
//
// 每个会话以引擎的 generation 为键：阶段变化或任何推进都会结束旧会话。
// 同一会话内完成回调只调用一次。
type FaceCheckSystem struct {
	engine   FaceCheckEngine
	detector EmotionReader
	hold     *HoldIntegrator
	timeout  float64
	logger   *zap.Logger

	active   bool
	session  uint64
	elapsed  float64
	finished bool
}

// NewFaceCheckSystem 创建表情检查系统
// 参数：
//   - engine: 游戏引擎
//   - detector: 表情来源
//   - params: 积分参数
//   - timeout: 表情检查超时（秒），0 表示从不超时
//   - logger: 日志，可为 nil
func NewFaceCheckSystem(engine FaceCheckEngine, detector EmotionReader, params HoldParams, timeout float64, logger *zap.Logger) *FaceCheckSystem {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FaceCheckSystem{
		engine:   engine,
		detector: detector,
		hold:     NewHoldIntegrator(params),
		timeout:  max(0, timeout),
		logger:   logger.Named("FaceCheck"),
	}
}

// Active 是否有进行中的会话
func (s *FaceCheckSystem) Active() bool {
	return s.active
}

// Update 推进一帧
func (s *FaceCheckSystem) Update(dt float64) {
	st := s.engine.State()
	if !st.Phase.IsFaceHold() {
		if s.active {
			s.active = false
			s.hold.Reset(0)
		}
		return
	}

	gen := s.engine.Generation()
	if !s.active || gen != s.session {
		s.begin(st, gen)
	}
	if s.finished {
		return
	}

	// 失败台词显示期间暂停，等待延迟推进
	if st.Phase == game.PhaseFaceCheck && st.ShowMom {
		return
	}

	status := s.hold.Step(s.detector.CurrentEmotion(), st.FaceCheckRequired, dt)
	s.report(s.engine.UpdateFaceProgress(status.Progress), "UpdateFaceProgress")
	s.report(s.engine.SetFaceWarning(status.Warning, status.Countdown), "SetFaceWarning")

	if status.Complete {
		s.finished = true
		if st.Phase == game.PhaseWrongActionPenalty {
			s.report(s.engine.CompleteWrongActionPenalty(), "CompleteWrongActionPenalty")
		} else {
			s.report(s.engine.CompleteFaceCheck(), "CompleteFaceCheck")
		}
		return
	}

	if s.timeout > 0 && st.Phase == game.PhaseFaceCheck {
		s.elapsed += dt
		if s.elapsed >= s.timeout {
			s.finished = true
			s.logger.Info("face check timed out",
				zap.String("required", st.FaceCheckRequired.String()),
				zap.Float64("progress", status.Progress))
			s.report(s.engine.FailFaceCheck(), "FailFaceCheck")
		}
	}
}

// begin 开始新会话，进度和提示归零
func (s *FaceCheckSystem) begin(st game.GameState, gen uint64) {
	s.active = true
	s.session = gen
	s.elapsed = 0
	s.finished = false
	s.hold.Reset(st.FaceCheckDuration)

	s.report(s.engine.UpdateFaceProgress(0), "UpdateFaceProgress")
	s.report(s.engine.SetFaceWarning(false, 0), "SetFaceWarning")
	s.logger.Debug("session started",
		zap.Uint64("generation", gen),
		zap.String("phase", st.Phase.String()),
		zap.String("required", st.FaceCheckRequired.String()),
		zap.Float64("duration", s.hold.Duration()))
}

func (s *FaceCheckSystem) report(err error, op string) {
	if err != nil {
		s.logger.Warn("engine rejected operation", zap.String("op", op), zap.Error(err))
	}
}
