package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/decker502/tindahan/pkg/config"
	"github.com/decker502/tindahan/pkg/game"
	"github.com/decker502/tindahan/pkg/types"
)

// twoActionContent 一关，两行都是选择操作
func twoActionContent() *config.ContentConfig {
	pick := config.ActionCheck{Correct: types.ActionWeigh, Wrong: []types.ActionType{types.ActionChop}}
	return &config.ContentConfig{
		Customers: []config.Customer{{
			ID: "mang_jose", Difficulty: 1, Temperament: "grumpy",
			Greetings: []string{"Bilisan mo."}, Farewells: []string{"Sige."},
		}},
		Sequences: []config.ConversationSequence{{
			ID: "rice", Difficulty: config.DifficultyEasy,
			Lines: []config.DialogLine{
				{Speaker: types.SpeakerCustomer, Text: "Isang kilo.", Check: pick},
				{Speaker: types.SpeakerCustomer, Text: "Isa pa.", Check: pick},
			},
		}},
		Levels: []config.LevelData{{Level: 1, SequenceCount: 1, HoldDurationMultiplier: 1}},
		Reactions: config.MomReactions{
			Fail: []string{"f"}, WrongAction: []string{"w"}, Success: []string{"s"},
			GameOver: []string{"g"}, Victory: []string{"v"},
		},
	}
}

type recorderFixture struct {
	engine   *game.Engine
	recorder *RunRecorder
	repo     *RunRepo
}

func newRecorderFixture(t *testing.T) *recorderFixture {
	t.Helper()
	repo := newTestDB(t)

	clock := time.UnixMilli(1_000_000)
	ids := 0
	rec := NewRunRecorder(repo, nil,
		WithClock(func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		}),
		WithIDGenerator(func() string {
			ids++
			return fmt.Sprintf("run-%d", ids)
		}),
	)

	eng, err := game.NewEngine(twoActionContent(), game.NewRandomSource(1), nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	eng.Subscribe(rec.OnTransition)
	return &recorderFixture{engine: eng, recorder: rec, repo: repo}
}

func (f *recorderFixture) run(t *testing.T, ops ...func() error) {
	t.Helper()
	for i, op := range ops {
		if err := op(); err != nil {
			t.Fatalf("op %d: %v", i, err)
		}
	}
}

func chop(e *game.Engine) func() error {
	return func() error { return e.ChooseAction(types.ActionChop) }
}

func weigh(e *game.Engine) func() error {
	return func() error { return e.ChooseAction(types.ActionWeigh) }
}

func TestRunRecorderGameOver(t *testing.T) {
	f := newRecorderFixture(t)
	e := f.engine
	ctx := context.Background()

	f.run(t, e.BeginIntro)
	if f.recorder.CurrentRunID() != "" {
		t.Fatal("no run should be open before the game starts")
	}

	f.run(t, e.StartGame, e.StartSequence, chop(e), e.CompleteWrongActionPenalty, chop(e))
	if e.Phase() != game.PhaseGameOver {
		t.Fatalf("phase = %v, want game_over", e.Phase())
	}
	if f.recorder.CurrentRunID() != "" {
		t.Error("run should be closed at game_over")
	}

	run, err := f.repo.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if run.Outcome != OutcomeGameOver || run.Lives != 0 || run.Level != 1 {
		t.Errorf("run = %+v", run)
	}
	if len(run.Customers) != 1 || run.Customers[0] != "mang_jose" {
		t.Errorf("Customers = %v", run.Customers)
	}

	events, err := f.repo.Events(ctx, "run-1")
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	wantTo := []string{"sequence_intro", "action", "wrong_action_penalty", "action", "game_over"}
	if len(events) != len(wantTo) {
		t.Fatalf("events = %d, want %d: %+v", len(events), len(wantTo), events)
	}
	for i, ev := range events {
		if ev.To != wantTo[i] || ev.Seq != i+1 {
			t.Errorf("event %d = %s#%d, want %s#%d", i, ev.To, ev.Seq, wantTo[i], i+1)
		}
	}
}

func TestRunRecorderVictoryThenNewRun(t *testing.T) {
	f := newRecorderFixture(t)
	e := f.engine
	ctx := context.Background()

	f.run(t, e.BeginIntro, e.StartGame, e.StartSequence, weigh(e), weigh(e), e.NextLevel)
	if e.Phase() != game.PhaseVictory {
		t.Fatalf("phase = %v, want victory", e.Phase())
	}

	f.run(t, e.RestartGame, e.BeginIntro, e.ShowTutorial, e.SkipTutorial)
	if f.recorder.CurrentRunID() != "run-2" {
		t.Fatalf("CurrentRunID = %q, want run-2", f.recorder.CurrentRunID())
	}

	first, err := f.repo.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if first.Outcome != OutcomeVictory || first.Score != game.LevelScoreUnit {
		t.Errorf("first run = %+v", first)
	}

	best, ok, err := f.repo.Best(ctx)
	if err != nil || !ok || best.ID != "run-1" {
		t.Errorf("Best = %+v ok=%v err=%v", best, ok, err)
	}

	// 退出时未结束的一局记为 abandoned
	f.recorder.Close()
	second, err := f.repo.Get(ctx, "run-2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if second.Outcome != OutcomeAbandoned || second.EndedAt.IsZero() {
		t.Errorf("second run = %+v", second)
	}
}

func TestRunRecorderCloseKeepsLatestProgress(t *testing.T) {
	f := newRecorderFixture(t)
	e := f.engine

	f.run(t, e.BeginIntro, e.StartGame, e.StartSequence, weigh(e), weigh(e))
	if e.Phase() != game.PhaseLevelComplete {
		t.Fatalf("phase = %v, want level_complete", e.Phase())
	}
	st := e.State()

	f.recorder.Close()
	if f.recorder.CurrentRunID() != "" {
		t.Error("run should be closed")
	}

	run, err := f.repo.Get(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if run.Outcome != OutcomeAbandoned {
		t.Errorf("Outcome = %s, want abandoned", run.Outcome)
	}
	if run.Score != st.Score || run.Score != game.LevelScoreUnit {
		t.Errorf("Score = %d, engine score = %d", run.Score, st.Score)
	}
	if run.Level != st.CurrentLevel || run.Lives != st.Lives {
		t.Errorf("run = level %d lives %d, engine = level %d lives %d",
			run.Level, run.Lives, st.CurrentLevel, st.Lives)
	}
	if len(run.Customers) != 1 || run.Customers[0] != "mang_jose" {
		t.Errorf("Customers = %v", run.Customers)
	}
}
