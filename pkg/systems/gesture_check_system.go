package systems

import (
	"go.uber.org/zap"

	"github.com/decker502/tindahan/pkg/game"
	"github.com/decker502/tindahan/pkg/types"
)

// DefaultGestureDebounce 识别到正确头部动作后等待的时长（秒）
const DefaultGestureDebounce = 0.25

// GestureReader 提供最近识别到的头部动作
type GestureReader interface {
	LastGesture() types.HeadGesture
	ClearGesture()
}

// GestureEngine GestureCheckSystem 需要的引擎操作
type GestureEngine interface {
	State() game.GameState
	Generation() uint64
	CompleteHeadGesture() error
}

// GestureCheckSystem 在 head_gesture 阶段等待玩家点头或摇头
type GestureCheckSystem struct {
	engine   GestureEngine
	detector GestureReader
	debounce float64
	logger   *zap.Logger

	active   bool
	session  uint64
	held     float64
	finished bool
}

// NewGestureCheckSystem 创建头部动作检查系统
// debounce ≤0 时使用 DefaultGestureDebounce
func NewGestureCheckSystem(engine GestureEngine, detector GestureReader, debounce float64, logger *zap.Logger) *GestureCheckSystem {
	if debounce <= 0 {
		debounce = DefaultGestureDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GestureCheckSystem{
		engine:   engine,
		detector: detector,
		debounce: debounce,
		logger:   logger.Named("GestureCheck"),
	}
}

// Update 推进一帧
func (s *GestureCheckSystem) Update(dt float64) {
	st := s.engine.State()
	if st.Phase != game.PhaseHeadGesture {
		s.active = false
		s.held = 0
		return
	}

	gen := s.engine.Generation()
	if !s.active || gen != s.session {
		// 进入新的头部动作台词时丢弃之前残留的识别结果
		s.active = true
		s.session = gen
		s.held = 0
		s.finished = false
		s.detector.ClearGesture()
	}
	if s.finished {
		return
	}

	required := st.HeadGestureRequired
	if required == types.GestureNone || s.detector.LastGesture() != required {
		s.held = 0
		return
	}

	s.held += max(0, dt)
	if s.held < s.debounce {
		return
	}

	s.finished = true
	if err := s.engine.CompleteHeadGesture(); err != nil {
		s.logger.Warn("engine rejected operation", zap.String("op", "CompleteHeadGesture"), zap.Error(err))
	}
	s.detector.ClearGesture()
}
