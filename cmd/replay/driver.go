package main

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/decker502/tindahan/pkg/config"
	"github.com/decker502/tindahan/pkg/face"
	"github.com/decker502/tindahan/pkg/game"
	"github.com/decker502/tindahan/pkg/scenes"
	"github.com/decker502/tindahan/pkg/systems"
	"github.com/decker502/tindahan/pkg/types"
)

// TicksPerSecond 模拟的帧率，和 ebiten 默认 TPS 一致
const TicksPerSecond = 60

// simClock 模拟时钟，回放 goroutine 也会读取
type simClock struct {
	mu sync.Mutex
	t  time.Time
}

func newSimClock() *simClock {
	return &simClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *simClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *simClock) Advance(dt float64) {
	c.mu.Lock()
	c.t = c.t.Add(time.Duration(dt * float64(time.Second)))
	c.mu.Unlock()
}

// Event 回放日志中的一次状态转换
type Event struct {
	At   float64 // 模拟时间（秒）
	Op   string
	From game.Phase
	To   game.Phase
}

func (e Event) String() string {
	return fmt.Sprintf("%8.2fs  %-28s %s -> %s", e.At, e.Op, e.From, e.To)
}

// Result 一次回放的结果
type Result struct {
	Final    game.GameState
	Elapsed  float64
	Events   []Event
	TimedOut bool
}

// Options 回放参数
type Options struct {
	Content   *config.ContentConfig
	AppConfig *config.AppConfig
	Seed      uint64

	// Recording 非 nil 时用录像提供人脸帧，否则按当前要求自动模拟按键
	Recording *face.Recording

	// Mistakes 前几次操作故意选错
	Mistakes int
	// Dwell 手动推进的阶段停留多久再按确认
	Dwell float64

	Logger *zap.Logger
}

// Driver 无窗口地驱动引擎、检测器和系统流水线
type Driver struct {
	opts     Options
	clock    *simClock
	engine   *game.Engine
	detector *face.Detector
	pipeline *systems.Pipeline
	scene    *scenes.GameplayScene
	keyboard *scenes.KeyboardSource
	feed     *recordingFeed
	logger   *zap.Logger

	elapsed     float64
	phaseSince  float64
	mistakesHad int
	events      []Event
}

// NewDriver 组装回放所需的全部组件
func NewDriver(opts Options) (*Driver, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.AppConfig == nil {
		opts.AppConfig = config.DefaultAppConfig()
	}

	engine, err := game.NewEngine(opts.Content, game.NewRandomSource(opts.Seed), logger)
	if err != nil {
		return nil, err
	}

	clock := newSimClock()
	d := &Driver{
		opts:   opts,
		clock:  clock,
		engine: engine,
		logger: logger.Named("Replay"),
	}
	d.detector = face.NewDetector(face.DetectorOptions{Now: clock.Now, Logger: logger})
	d.pipeline = systems.NewPipeline(engine, d.detector, opts.AppConfig, logger)
	// 只借用场景的命令分派，不启动检测器也不绘制
	d.scene = scenes.NewGameplayScene(scenes.GameplayOptions{Engine: engine, Logger: logger})
	if opts.Recording != nil {
		d.feed = startRecordingFeed(opts.Recording, clock.Now)
	} else {
		d.keyboard = scenes.NewKeyboardSource(clock.Now)
	}

	engine.Subscribe(func(ev game.TransitionEvent) {
		d.events = append(d.events, Event{At: d.elapsed, Op: ev.Op, From: ev.From, To: ev.To})
		d.phaseSince = d.elapsed
	})
	return d, nil
}

// Detector 回放使用的检测器
func (d *Driver) Detector() *face.Detector {
	return d.detector
}

// Run 以固定步长推进，直到进入结束阶段或超过 maxSeconds 模拟时间
func (d *Driver) Run(maxSeconds float64) Result {
	defer d.close()

	const dt = 1.0 / TicksPerSecond
	timedOut := true
	for d.elapsed < maxSeconds {
		st := d.engine.State()
		if st.Phase.IsTerminal() {
			timedOut = false
			break
		}
		d.feedFrames(st, dt)
		d.command(st)
		d.pipeline.Update(dt)

		d.clock.Advance(dt)
		d.elapsed += dt
	}
	if d.engine.Phase().IsTerminal() {
		timedOut = false
	}

	return Result{
		Final:    d.engine.State(),
		Elapsed:  d.elapsed,
		Events:   slices.Clone(d.events),
		TimedOut: timedOut,
	}
}

// feedFrames 把这一帧的人脸数据交给检测器
func (d *Driver) feedFrames(st game.GameState, dt float64) {
	if d.feed != nil {
		d.feed.Pump(d.clock.Now(), d.detector.SubmitFrame)
		return
	}
	if frame, ok := d.keyboard.Step(botKeys(st), dt); ok {
		d.detector.SubmitFrame(frame)
	}
}

// botKeys 按当前检查要求按住对应的模拟键
func botKeys(st game.GameState) scenes.KeyState {
	switch st.Phase {
	case game.PhaseFaceCheck, game.PhaseWrongActionPenalty:
		if st.ShowMom && st.Phase == game.PhaseFaceCheck {
			// 检查失败后等待自动推进
			return scenes.KeyState{}
		}
		return scenes.KeyState{Emotion: st.FaceCheckRequired}
	case game.PhaseHeadGesture:
		return scenes.KeyState{
			Nod:   st.HeadGestureRequired == types.GestureNod,
			Shake: st.HeadGestureRequired == types.GestureShake,
		}
	}
	return scenes.KeyState{}
}

// command 在手动阶段停留足够久后按确认，操作阶段选一个操作
func (d *Driver) command(st game.GameState) {
	if d.elapsed-d.phaseSince < d.opts.Dwell {
		return
	}

	var err error
	if st.Phase == game.PhaseAction {
		err = d.scene.HandleCommand(scenes.CommandChoose, d.pickAction(st))
	} else {
		err = d.scene.HandleCommand(scenes.CommandConfirm, 0)
	}
	if err != nil {
		d.logger.Warn("command failed", zap.String("phase", st.Phase.String()), zap.Error(err))
	}
}

// pickAction 返回要选的操作下标，前 Mistakes 次选一个错的
func (d *Driver) pickAction(st game.GameState) int {
	correct := slices.Index(st.ActionChoices, st.CorrectAction)
	if d.mistakesHad < d.opts.Mistakes {
		for i, a := range st.ActionChoices {
			if a != st.CorrectAction {
				d.mistakesHad++
				return i
			}
		}
	}
	return correct
}

func (d *Driver) close() {
	if d.feed != nil {
		d.feed.Close()
	}
}

// recordingFeed 让 ReplaySource 按模拟时间出帧
//
// 回放 goroutine 以不等待的速度运行，每一帧都阻塞在无缓冲通道上，
// 直到模拟时钟走到该帧的时间才被取走。
type recordingFeed struct {
	frames  chan face.Frame
	done    chan error
	cancel  context.CancelFunc
	pending *face.Frame
	ended   bool
}

func startRecordingFeed(rec *face.Recording, now func() time.Time) *recordingFeed {
	ctx, cancel := context.WithCancel(context.Background())
	f := &recordingFeed{
		frames: make(chan face.Frame),
		done:   make(chan error, 1),
		cancel: cancel,
	}
	src := face.NewReplaySource(rec, face.WithSpeed(0), face.WithLoop(), face.WithClock(now))
	go func() {
		f.done <- src.Run(ctx, func(frame face.Frame) {
			select {
			case f.frames <- frame:
			case <-ctx.Done():
			}
		})
	}()
	return f
}

// Pump 提交所有时间不晚于 now 的帧，返回提交的帧数
func (f *recordingFeed) Pump(now time.Time, submit func(face.Frame)) int {
	n := 0
	for !f.ended {
		if f.pending == nil {
			select {
			case frame := <-f.frames:
				f.pending = &frame
			case <-f.done:
				f.ended = true
				return n
			}
		}
		if f.pending.Time.After(now) {
			return n
		}
		submit(*f.pending)
		f.pending = nil
		n++
	}
	return n
}

// Close 停止回放 goroutine
func (f *recordingFeed) Close() {
	f.cancel()
	if !f.ended {
		<-f.done
		f.ended = true
	}
}
