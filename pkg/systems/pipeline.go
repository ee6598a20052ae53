package systems

import (
	"go.uber.org/zap"

	"github.com/decker502/tindahan/pkg/config"
	"github.com/decker502/tindahan/pkg/face"
	"github.com/decker502/tindahan/pkg/game"
)

// FrameDrainer 把排队的帧应用到检测器
type FrameDrainer interface {
	Drain() int
}

// FrameIngestSystem 每帧开始时把检测器队列里的帧取出并应用
type FrameIngestSystem struct {
	drainer FrameDrainer
	total   int
}

// NewFrameIngestSystem 创建帧摄取系统
func NewFrameIngestSystem(drainer FrameDrainer) *FrameIngestSystem {
	return &FrameIngestSystem{drainer: drainer}
}

// Update 应用所有排队的帧，返回本次应用的帧数
func (s *FrameIngestSystem) Update() int {
	n := s.drainer.Drain()
	s.total += n
	return n
}

// Total 累计应用的帧数
func (s *FrameIngestSystem) Total() int {
	return s.total
}

// Ticker 接收帧间隔的组件
type Ticker interface {
	Update(dt float64)
}

// SchedulerSystem 驱动引擎的延迟任务
type SchedulerSystem struct {
	ticker Ticker
}

// NewSchedulerSystem 创建调度系统
func NewSchedulerSystem(ticker Ticker) *SchedulerSystem {
	return &SchedulerSystem{ticker: ticker}
}

// Update 推进 dt 秒
func (s *SchedulerSystem) Update(dt float64) {
	if dt <= 0 {
		return
	}
	s.ticker.Update(dt)
}

// SequenceEndEngine SequenceEndSystem 需要的引擎操作
type SequenceEndEngine interface {
	Phase() game.Phase
	AdvanceLine() error
}

// SequenceEndSystem 序列结束后自动推进到下一个序列或关卡完成
type SequenceEndSystem struct {
	engine SequenceEndEngine
	logger *zap.Logger
}

// NewSequenceEndSystem 创建序列结束系统
func NewSequenceEndSystem(engine SequenceEndEngine, logger *zap.Logger) *SequenceEndSystem {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SequenceEndSystem{engine: engine, logger: logger.Named("SequenceEnd")}
}

// Update 处于 sequence_end 时推进一次
func (s *SequenceEndSystem) Update() {
	if s.engine.Phase() != game.PhaseSequenceEnd {
		return
	}
	if err := s.engine.AdvanceLine(); err != nil {
		s.logger.Warn("engine rejected operation", zap.String("op", "AdvanceLine"), zap.Error(err))
	}
}

// Pipeline 按固定顺序执行所有系统
type Pipeline struct {
	Ingest      *FrameIngestSystem
	FaceCheck   *FaceCheckSystem
	Gesture     *GestureCheckSystem
	SequenceEnd *SequenceEndSystem
	Scheduler   *SchedulerSystem
}

// NewPipeline 用应用配置组装系统
// 参数：
//   - engine: 游戏引擎
//   - detector: 表情检测器
//   - cfg: 应用配置中的表情检查与头部动作参数
//   - logger: 日志，可为 nil
func NewPipeline(engine *game.Engine, detector *face.Detector, cfg *config.AppConfig, logger *zap.Logger) *Pipeline {
	params := HoldParams{
		DefaultDuration:  cfg.FaceCheck.DefaultDuration,
		DecayPerSecond:   cfg.FaceCheck.DecayPerSecond,
		WarningThreshold: cfg.FaceCheck.WarningThreshold,
	}
	return &Pipeline{
		Ingest:      NewFrameIngestSystem(detector),
		FaceCheck:   NewFaceCheckSystem(engine, detector, params, cfg.FaceCheck.TimeoutSeconds, logger),
		Gesture:     NewGestureCheckSystem(engine, detector, cfg.Gesture.DebounceSeconds, logger),
		SequenceEnd: NewSequenceEndSystem(engine, logger),
		Scheduler:   NewSchedulerSystem(engine),
	}
}

// Update 推进一帧
func (p *Pipeline) Update(dt float64) {
	p.Ingest.Update()
	p.FaceCheck.Update(dt)
	p.Gesture.Update(dt)
	p.SequenceEnd.Update()
	p.Scheduler.Update(dt)
}
