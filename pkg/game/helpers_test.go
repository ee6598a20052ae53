package game

import (
	"os"
	"testing"

	"github.com/decker502/tindahan/pkg/config"
	"github.com/decker502/tindahan/pkg/types"
)

// firstRandom 总是返回 0 的随机来源
type firstRandom struct{}

func (firstRandom) IntN(int) int { return 0 }

// scriptedRandom 依次返回预设值（对 n 取模），用完后返回 0
type scriptedRandom struct {
	values []int
	calls  int
}

func (r *scriptedRandom) IntN(n int) int {
	r.calls++
	if len(r.values) == 0 {
		return 0
	}
	v := r.values[0]
	r.values = r.values[1:]
	return v % n
}

func narrative(text string) config.DialogLine {
	return config.DialogLine{Speaker: types.SpeakerCustomer, Text: text}
}

// fixtureContent 两关的小型内容：每种检查各一行
func fixtureContent() *config.ContentConfig {
	lines := []config.DialogLine{
		narrative("Pabili po!"),
		{Speaker: types.SpeakerNarrator, Text: "Smile", Check: config.FaceCheck{Emotion: types.EmotionHappy, HoldSeconds: 2}},
		{Speaker: types.SpeakerNarrator, Text: "Take it", Check: config.ActionCheck{
			Correct: types.ActionTake, Wrong: []types.ActionType{types.ActionChop, types.ActionWeigh}}},
		{Speaker: types.SpeakerNarrator, Text: "Nod", Check: config.GestureCheck{Gesture: types.GestureNod}},
		{Speaker: types.SpeakerNarrator, Text: "Neutral", Check: config.FaceCheck{Emotion: types.EmotionNeutral}},
		narrative("Salamat!"),
	}

	customers := []config.Customer{
		{ID: "lola", Difficulty: 1, Temperament: "friendly", AgeGroup: "elder",
			Greetings: []string{"Hello anak"}, Farewells: []string{"Bye anak"}},
		{ID: "kid", Difficulty: 1, Temperament: "friendly", AgeGroup: "child",
			Greetings: []string{"Hi kuya"}, Farewells: []string{"Bye kuya"}},
		{ID: "tita", Difficulty: 2, Temperament: "chatty", AgeGroup: "adult",
			Greetings: []string{"Uy!"}, Farewells: []string{"Sige!"}},
	}

	return &config.ContentConfig{
		Customers: customers,
		Sequences: []config.ConversationSequence{
			{ID: "easy_a", Difficulty: config.DifficultyEasy, Tags: []string{"friendly"}, Lines: lines},
			{ID: "easy_b", Difficulty: config.DifficultyEasy, Tags: []string{"chatty"}, Lines: lines[:2]},
		},
		Levels: []config.LevelData{
			{Level: 1, SequenceCount: 1, HoldDurationMultiplier: 1},
			{Level: 2, SequenceCount: 2, HoldDurationMultiplier: 1.5},
		},
		Reactions: config.MomReactions{
			Fail:        []string{"fail"},
			WrongAction: []string{"wrong"},
			Success:     []string{"success"},
			GameOver:    []string{"game over"},
			Victory:     []string{"victory"},
		},
	}
}

func shippedContent(t *testing.T) *config.ContentConfig {
	t.Helper()
	content, err := config.LoadContent(os.DirFS("../../data"))
	if err != nil {
		t.Fatalf("failed to load shipped content: %v", err)
	}
	return content
}

func newTestEngine(t *testing.T, content *config.ContentConfig, rng RandomSource) *Engine {
	t.Helper()
	e, err := NewEngine(content, rng, nil)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return e
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// startLevel1 splash → intro → sequence_intro
func startLevel1(t *testing.T, e *Engine) {
	t.Helper()
	must(t, e.BeginIntro())
	must(t, e.StartGame())
}

// checkInvariants 任意可达状态都应满足的约束
func checkInvariants(t *testing.T, s GameState) {
	t.Helper()
	if s.Lives < 0 || s.Lives > InitialLives {
		t.Fatalf("lives out of range: %d", s.Lives)
	}
	if s.FaceCheckProgress < 0 || s.FaceCheckProgress > 1 {
		t.Fatalf("progress out of range: %v", s.FaceCheckProgress)
	}
	switch s.Phase {
	case PhaseDialog, PhaseFaceCheck, PhaseAction, PhaseHeadGesture, PhaseWrongActionPenalty:
		seq := s.CurrentSequence()
		if seq == nil || s.CurrentLineIndex >= len(seq.Lines) || s.CurrentLine == nil {
			t.Fatalf("phase %s without a valid line cursor", s.Phase)
		}
	}
	if s.Phase == PhaseAction {
		count := 0
		for _, a := range s.ActionChoices {
			if a == s.CorrectAction {
				count++
			}
		}
		if count != 1 {
			t.Fatalf("correct action %s appears %d times in %v", s.CorrectAction, count, s.ActionChoices)
		}
	}
}

// playLevelCorrectly 只用正确的操作完成当前关卡
func playLevelCorrectly(t *testing.T, e *Engine) {
	t.Helper()
	for step := 0; step < 1000; step++ {
		s := e.State()
		checkInvariants(t, s)
		switch s.Phase {
		case PhaseSequenceIntro:
			must(t, e.StartSequence())
		case PhaseDialog:
			must(t, e.AdvanceLine())
		case PhaseFaceCheck:
			must(t, e.CompleteFaceCheck())
		case PhaseAction:
			must(t, e.ChooseAction(s.CorrectAction))
		case PhaseHeadGesture:
			must(t, e.CompleteHeadGesture())
		case PhaseLevelComplete:
			return
		default:
			t.Fatalf("unexpected phase %s while playing", s.Phase)
		}
	}
	t.Fatal("level did not complete")
}

// advanceTo 正确地推进直到到达指定阶段
func advanceTo(t *testing.T, e *Engine, target Phase) {
	t.Helper()
	for step := 0; step < 100; step++ {
		s := e.State()
		if s.Phase == target {
			return
		}
		switch s.Phase {
		case PhaseSequenceIntro:
			must(t, e.StartSequence())
		case PhaseDialog:
			must(t, e.AdvanceLine())
		case PhaseFaceCheck:
			must(t, e.CompleteFaceCheck())
		case PhaseAction:
			must(t, e.CompleteAction())
		case PhaseHeadGesture:
			must(t, e.CompleteHeadGesture())
		default:
			t.Fatalf("cannot reach %s from %s", target, s.Phase)
		}
	}
	t.Fatalf("did not reach %s", target)
}
