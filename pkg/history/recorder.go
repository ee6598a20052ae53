package history

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/decker502/tindahan/pkg/game"
)

// RunRecorder 订阅引擎转换，把每一局写入 RunRepo
//
// 开局（intro/tutorial → sequence_intro）时创建记录，之后每次转换追加事件，
// game_over / victory 时写入结果。写库失败只记日志，不影响游戏。
type RunRecorder struct {
	repo   *RunRepo
	logger *zap.Logger
	now    func() time.Time
	newID  func() string

	current *Run
	seq     int
}

// RecorderOption 配置 RunRecorder
type RecorderOption func(*RunRecorder)

// WithClock 替换时间来源
func WithClock(now func() time.Time) RecorderOption {
	return func(r *RunRecorder) { r.now = now }
}

// WithIDGenerator 替换记录 ID 生成方式
func WithIDGenerator(fn func() string) RecorderOption {
	return func(r *RunRecorder) { r.newID = fn }
}

// NewRunRecorder 创建记录器
func NewRunRecorder(repo *RunRepo, logger *zap.Logger, opts ...RecorderOption) *RunRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &RunRecorder{
		repo:   repo,
		logger: logger.Named("RunRecorder"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CurrentRunID 进行中的记录 ID，没有时为空
func (r *RunRecorder) CurrentRunID() string {
	if r.current == nil {
		return ""
	}
	return r.current.ID
}

// OnTransition 引擎状态转换回调
func (r *RunRecorder) OnTransition(ev game.TransitionEvent) {
	ctx := context.Background()

	if (ev.From == game.PhaseIntro || ev.From == game.PhaseTutorial) && ev.To == game.PhaseSequenceIntro {
		r.finish(ctx, OutcomeAbandoned, ev.State)
		r.start(ctx, ev.State)
	}
	if r.current == nil {
		return
	}

	r.seq++
	err := r.repo.AppendEvent(ctx, RunEvent{
		RunID:     r.current.ID,
		Seq:       r.seq,
		Op:        ev.Op,
		From:      ev.From.String(),
		To:        ev.To.String(),
		Level:     ev.State.CurrentLevel,
		Lives:     ev.State.Lives,
		Score:     ev.State.Score,
		CreatedAt: r.now(),
	})
	if err != nil {
		r.logger.Warn("failed to append run event", zap.String("run", r.current.ID), zap.Error(err))
	}

	// 中途退出时 Close 用这里的最新进度结束记录
	r.current.Level = ev.State.CurrentLevel
	r.current.Score = ev.State.Score
	r.current.Lives = ev.State.Lives
	r.current.Customers = slices.Clone(ev.State.UsedCustomerIDs)

	switch ev.To {
	case game.PhaseGameOver:
		r.finish(ctx, OutcomeGameOver, ev.State)
	case game.PhaseVictory:
		r.finish(ctx, OutcomeVictory, ev.State)
	case game.PhaseSplash:
		r.finish(ctx, OutcomeAbandoned, ev.State)
	}
}

// Close 把未结束的记录标记为 abandoned
func (r *RunRecorder) Close() {
	if r.current == nil {
		return
	}
	r.finish(context.Background(), OutcomeAbandoned, game.GameState{
		CurrentLevel:    r.current.Level,
		Score:           r.current.Score,
		Lives:           r.current.Lives,
		UsedCustomerIDs: r.current.Customers,
	})
}

func (r *RunRecorder) start(ctx context.Context, s game.GameState) {
	run := Run{
		ID:        r.newID(),
		StartedAt: r.now(),
		Outcome:   OutcomeInProgress,
		Level:     s.CurrentLevel,
		Score:     s.Score,
		Lives:     s.Lives,
		Customers: slices.Clone(s.UsedCustomerIDs),
	}
	if err := r.repo.Create(ctx, run); err != nil {
		r.logger.Warn("failed to create run", zap.Error(err))
		return
	}
	r.current = &run
	r.seq = 0
	r.logger.Info("run started", zap.String("run", run.ID))
}

func (r *RunRecorder) finish(ctx context.Context, outcome Outcome, s game.GameState) {
	if r.current == nil {
		return
	}
	run := *r.current
	r.current = nil

	run.EndedAt = r.now()
	run.Outcome = outcome
	run.Level = s.CurrentLevel
	run.Score = s.Score
	run.Lives = s.Lives
	run.Customers = slices.Clone(s.UsedCustomerIDs)
	if err := r.repo.Update(ctx, run); err != nil {
		r.logger.Warn("failed to finish run", zap.String("run", run.ID), zap.Error(err))
		return
	}
	r.logger.Info("run finished",
		zap.String("run", run.ID),
		zap.String("outcome", string(outcome)),
		zap.Int("score", run.Score),
		zap.Int("level", run.Level))
}
