package game

import (
	"slices"

	"github.com/decker502/tindahan/pkg/config"
	"github.com/decker502/tindahan/pkg/types"
)

// Phase 游戏阶段
type Phase int

const (
	PhaseSplash             Phase = iota // 启动画面
	PhaseIntro                           // 开场介绍
	PhaseTutorial                        // 教学
	PhaseSequenceIntro                   // 对话序列开始前
	PhaseDialog                          // 普通对话，手动推进
	PhaseFaceCheck                       // 表情保持检查
	PhaseAction                          // 选择操作
	PhaseHeadGesture                     // 头部动作检查
	PhaseWrongActionPenalty              // 选错操作后的难过表情惩罚
	PhaseSequenceEnd                     // 对话序列结束
	PhaseLevelComplete                   // 关卡完成
	PhaseGameOver                        // 游戏结束
	PhaseVictory                         // 通关
)

var phaseNames = [...]string{
	PhaseSplash:             "splash",
	PhaseIntro:              "intro",
	PhaseTutorial:           "tutorial",
	PhaseSequenceIntro:      "sequence_intro",
	PhaseDialog:             "dialog",
	PhaseFaceCheck:          "face_check",
	PhaseAction:             "action",
	PhaseHeadGesture:        "head_gesture",
	PhaseWrongActionPenalty: "wrong_action_penalty",
	PhaseSequenceEnd:        "sequence_end",
	PhaseLevelComplete:      "level_complete",
	PhaseGameOver:           "game_over",
	PhaseVictory:            "victory",
}

// String 返回阶段名
func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// IsFaceHold 是否处于需要保持表情的阶段
func (p Phase) IsFaceHold() bool {
	return p == PhaseFaceCheck || p == PhaseWrongActionPenalty
}

// IsTerminal 是否为结束阶段
func (p Phase) IsTerminal() bool {
	return p == PhaseGameOver || p == PhaseVictory
}

// 初始值
const (
	InitialLives        = 2
	DefaultHoldSeconds  = 3.0 // 台词没有给出保持时长时使用
	PenaltyHoldSeconds  = 2.0 // 选错操作后难过表情的保持时长
	LevelScoreUnit      = 100 // 完成关卡得分 = 关卡号 × 100
	FailAdvanceDelaySec = 2.0 // 表情检查失败后显示妈妈台词的时长
)

// GameState 游戏状态快照
// Engine.State() 返回的副本与引擎内部不共享切片和 CurrentLine；
// Customer、LevelData 和序列里的 Lines 指向加载后的内容，只读
type GameState struct {
	Phase        Phase
	CurrentLevel int
	Lives        int
	Score        int

	Customer  *config.Customer
	LevelData *config.LevelData
	Sequences []config.ConversationSequence

	CurrentSequenceIndex int
	CurrentLineIndex     int
	CurrentLine          *config.DialogLine

	// 当前台词的工作状态，每次进入新台词时重新初始化
	FaceCheckRequired         types.Emotion
	FaceCheckProgress         float64
	FaceCheckDuration         float64
	FaceCheckWarning          bool
	FaceCheckWarningCountdown int
	HeadGestureRequired       types.HeadGesture
	ActionChoices             []types.ActionType
	CorrectAction             types.ActionType

	UsedCustomerIDs []string
	MomMessage      string
	ShowMom         bool
	CustomerSays    string // 顾客的问候或道别
}

// initialState 启动时的状态
func initialState() GameState {
	return GameState{
		Phase: PhaseSplash,
		Lives: InitialLives,
	}
}

// clone 拷贝切片字段和当前台词，内容本身仍共享
func (s GameState) clone() GameState {
	s.Sequences = slices.Clone(s.Sequences)
	s.ActionChoices = slices.Clone(s.ActionChoices)
	s.UsedCustomerIDs = slices.Clone(s.UsedCustomerIDs)
	if s.CurrentLine != nil {
		line := *s.CurrentLine
		s.CurrentLine = &line
	}
	return s
}

// CurrentSequence 当前对话序列，没有时返回 nil
func (s *GameState) CurrentSequence() *config.ConversationSequence {
	if s.CurrentSequenceIndex < 0 || s.CurrentSequenceIndex >= len(s.Sequences) {
		return nil
	}
	return &s.Sequences[s.CurrentSequenceIndex]
}
