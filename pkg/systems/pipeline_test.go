package systems

import (
	"testing"
	"time"

	"github.com/decker502/tindahan/pkg/config"
	"github.com/decker502/tindahan/pkg/face"
	"github.com/decker502/tindahan/pkg/game"
	"github.com/decker502/tindahan/pkg/types"
)

const tick = 1.0 / 60

func TestFrameIngestSystemCountsFrames(t *testing.T) {
	sys := NewFrameIngestSystem(fakeDrainer{n: 3})
	sys.Update()
	sys.Update()
	if sys.Total() != 6 {
		t.Errorf("Total = %d, want 6", sys.Total())
	}
}

func TestSchedulerSystemSkipsNonPositiveDelta(t *testing.T) {
	ticker := &fakeTicker{}
	sys := NewSchedulerSystem(ticker)
	sys.Update(0)
	sys.Update(-1)
	sys.Update(0.5)
	if ticker.calls != 1 || ticker.total != 0.5 {
		t.Errorf("ticker got %d calls / %v total, want 1 / 0.5", ticker.calls, ticker.total)
	}
}

func TestSequenceEndSystemAdvancesOnce(t *testing.T) {
	eng := newFakeEngine(game.PhaseSequenceEnd)
	sys := NewSequenceEndSystem(eng, nil)
	sys.Update()
	sys.Update()
	if eng.count("AdvanceLine") != 1 {
		t.Errorf("calls = %v, want one AdvanceLine", eng.calls)
	}
}

// loopContent 单关单序列：对话、微笑、点头、对话
func loopContent() *config.ContentConfig {
	return &config.ContentConfig{
		Customers: []config.Customer{{
			ID: "aling", Name: "Aling Nena", Difficulty: 1, Temperament: "friendly",
			Greetings: []string{"Magandang umaga!"}, Farewells: []string{"Salamat!"},
		}},
		Sequences: []config.ConversationSequence{{
			ID: "buy_bread", Difficulty: config.DifficultyEasy, Tags: []string{"friendly"},
			Lines: []config.DialogLine{
				{Speaker: types.SpeakerCustomer, Text: "Pabili po ng pandesal."},
				{Speaker: types.SpeakerNarrator, Text: "Smile at her.",
					Check: config.FaceCheck{Emotion: types.EmotionHappy, HoldSeconds: 1}},
				{Speaker: types.SpeakerCustomer, Text: "Sampu, ha?",
					Check: config.GestureCheck{Gesture: types.GestureNod}},
				{Speaker: types.SpeakerCustomer, Text: "Salamat!"},
			},
		}},
		Levels: []config.LevelData{{Level: 1, SequenceCount: 1, HoldDurationMultiplier: 1}},
		Reactions: config.MomReactions{
			Fail: []string{"fail"}, WrongAction: []string{"wrong"}, Success: []string{"good"},
			GameOver: []string{"over"}, Victory: []string{"win"},
		},
	}
}

func nodFrame(base time.Time, i int) face.LandmarkFrame {
	y := 0.5
	if i%2 == 1 {
		y = 0.56
	}
	return face.LandmarkFrame{
		Time: base.Add(time.Duration(i) * 20 * time.Millisecond),
		Faces: [][]face.Landmark{{
			{X: 0.5, Y: 0.45},
			{X: 0.5, Y: y},
		}},
	}
}

// TestPipelineDrivesEngine 表情和点头帧通过流水线推动引擎走完一关
func TestPipelineDrivesEngine(t *testing.T) {
	eng, err := game.NewEngine(loopContent(), game.NewRandomSource(3), nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	det := face.NewDetector(face.DetectorOptions{})
	pipe := NewPipeline(eng, det, config.DefaultAppConfig(), nil)

	for _, op := range []func() error{eng.BeginIntro, eng.StartGame, eng.StartSequence, eng.AdvanceLine} {
		if err := op(); err != nil {
			t.Fatalf("setup: %v", err)
		}
	}
	if eng.Phase() != game.PhaseFaceCheck {
		t.Fatalf("phase = %v, want face_check", eng.Phase())
	}

	smile := face.BlendshapeFrame{"mouthSmileLeft": 0.8, "mouthSmileRight": 0.8}
	for i := 0; i < 120 && eng.Phase() == game.PhaseFaceCheck; i++ {
		det.SubmitBlendshapeFrame(smile)
		pipe.Update(tick)
	}
	if eng.Phase() != game.PhaseHeadGesture {
		t.Fatalf("after smiling phase = %v, want head_gesture", eng.Phase())
	}

	base := time.Unix(1000, 0)
	for i := 0; i < 60 && eng.Phase() == game.PhaseHeadGesture; i++ {
		det.SubmitLandmarkFrame(nodFrame(base, i))
		pipe.Update(tick)
	}
	if eng.Phase() != game.PhaseDialog {
		t.Fatalf("after nodding phase = %v, want dialog", eng.Phase())
	}
	if det.LastGesture() != types.GestureNone {
		t.Errorf("gesture not cleared after completion: %v", det.LastGesture())
	}

	if err := eng.AdvanceLine(); err != nil {
		t.Fatalf("AdvanceLine: %v", err)
	}
	pipe.Update(tick)
	if eng.Phase() != game.PhaseLevelComplete {
		t.Fatalf("phase = %v, want level_complete", eng.Phase())
	}
	if got := eng.State().Score; got != game.LevelScoreUnit {
		t.Errorf("score = %d, want %d", got, game.LevelScoreUnit)
	}
}

// TestPipelineWrongActionPenalty 选错后保持难过表情才能继续
func TestPipelineWrongActionPenalty(t *testing.T) {
	content := loopContent()
	content.Sequences[0].Lines = []config.DialogLine{
		{Speaker: types.SpeakerCustomer, Text: "Isang kilo ng bigas.",
			Check: config.ActionCheck{Correct: types.ActionWeigh, Wrong: []types.ActionType{types.ActionChop}}},
		{Speaker: types.SpeakerCustomer, Text: "Salamat!"},
	}
	eng, err := game.NewEngine(content, game.NewRandomSource(5), nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	det := face.NewDetector(face.DetectorOptions{})
	pipe := NewPipeline(eng, det, config.DefaultAppConfig(), nil)

	for _, op := range []func() error{eng.BeginIntro, eng.StartGame, eng.StartSequence} {
		if err := op(); err != nil {
			t.Fatalf("setup: %v", err)
		}
	}
	if err := eng.ChooseAction(types.ActionChop); err != nil {
		t.Fatalf("ChooseAction: %v", err)
	}
	if eng.Phase() != game.PhaseWrongActionPenalty {
		t.Fatalf("phase = %v, want wrong_action_penalty", eng.Phase())
	}

	// 微笑不算数
	smile := face.BlendshapeFrame{"mouthSmileLeft": 0.9, "mouthSmileRight": 0.9}
	for i := 0; i < 300; i++ {
		det.SubmitBlendshapeFrame(smile)
		pipe.Update(tick)
	}
	if eng.Phase() != game.PhaseWrongActionPenalty {
		t.Fatalf("phase = %v, penalty must wait for a sad face", eng.Phase())
	}

	frown := face.BlendshapeFrame{"mouthFrownLeft": 0.7, "mouthFrownRight": 0.7}
	for i := 0; i < 200 && eng.Phase() == game.PhaseWrongActionPenalty; i++ {
		det.SubmitBlendshapeFrame(frown)
		pipe.Update(tick)
	}
	if eng.Phase() != game.PhaseDialog {
		t.Fatalf("phase = %v, want dialog after the penalty", eng.Phase())
	}
	if got := eng.State().Lives; got != game.InitialLives-1 {
		t.Errorf("lives = %d, want %d", got, game.InitialLives-1)
	}
}

// TestPipelineTimeoutFailsAndAdvances 开启超时后表情检查失败并在延迟后推进
func TestPipelineTimeoutFailsAndAdvances(t *testing.T) {
	content := loopContent()
	content.Sequences[0].Lines = []config.DialogLine{
		{Speaker: types.SpeakerNarrator, Text: "Look surprised.",
			Check: config.FaceCheck{Emotion: types.EmotionSurprised, HoldSeconds: 2}},
		{Speaker: types.SpeakerCustomer, Text: "Ay!"},
	}
	eng, err := game.NewEngine(content, game.NewRandomSource(9), nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	det := face.NewDetector(face.DetectorOptions{})
	cfg := config.DefaultAppConfig()
	cfg.FaceCheck.TimeoutSeconds = 1
	pipe := NewPipeline(eng, det, cfg, nil)

	for _, op := range []func() error{eng.BeginIntro, eng.StartGame, eng.StartSequence} {
		if err := op(); err != nil {
			t.Fatalf("setup: %v", err)
		}
	}

	// 1 秒超时 + 2 秒失败台词，留出余量
	for i := 0; i < 240 && eng.Phase() == game.PhaseFaceCheck; i++ {
		pipe.Update(tick)
	}

	if eng.Phase() != game.PhaseDialog {
		t.Fatalf("phase = %v, want dialog after the fail delay", eng.Phase())
	}
	st := eng.State()
	if st.Lives != game.InitialLives-1 {
		t.Errorf("lives = %d, want %d", st.Lives, game.InitialLives-1)
	}
	if st.ShowMom {
		t.Error("fail message should be hidden after advancing")
	}
}
