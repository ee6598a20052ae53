package game

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/decker502/tindahan/pkg/config"
	"github.com/decker502/tindahan/pkg/types"
	"go.uber.org/zap"
)

// TransitionEvent 一次成功的状态转换
type TransitionEvent struct {
	Op         string
	From       Phase
	To         Phase
	Generation uint64
	State      GameState
}

// Engine 游戏进度状态机
// 持有唯一的 GameState，所有修改都通过具名的转换方法完成；
// 不允许的调用返回 *TransitionError 且不修改状态。
// 不是并发安全的，只能在游戏 goroutine 使用
type Engine struct {
	content   *config.ContentConfig
	rng       RandomSource
	logger    *zap.Logger
	state     GameState
	scheduler *Scheduler

	// generation 在每次改变阶段（以及表情检查失败）时递增，
	// 用来让过期的延迟任务和外部会话失效
	generation uint64
	listeners  []func(TransitionEvent)
}

// NewEngine 创建引擎
// 参数：
//
//	content - 已校验的静态内容，引擎只读
//	rng - 随机来源，nil 时使用按时间播种的 PCG
//	logger - nil 时不输出日志
func NewEngine(content *config.ContentConfig, rng RandomSource, logger *zap.Logger) (*Engine, error) {
	if content == nil {
		return nil, fmt.Errorf("content is required")
	}
	if len(content.Levels) == 0 {
		return nil, fmt.Errorf("content has no levels")
	}
	if rng == nil {
		rng = NewRandomSource(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		content: content,
		rng:     rng,
		logger:  logger.Named("Engine"),
		state:   initialState(),
	}
	e.scheduler = NewScheduler(e.Generation)
	return e, nil
}

// State 返回状态副本
func (e *Engine) State() GameState {
	return e.state.clone()
}

// Phase 当前阶段
func (e *Engine) Phase() Phase {
	return e.state.Phase
}

// Generation 当前代数
func (e *Engine) Generation() uint64 {
	return e.generation
}

// PendingTasks 尚未执行的延迟任务数
func (e *Engine) PendingTasks() int {
	return e.scheduler.Pending()
}

// Content 返回引擎使用的静态内容
func (e *Engine) Content() *config.ContentConfig {
	return e.content
}

// Subscribe 注册状态转换回调，回调在转换完成后同步调用
// 回调中不能再调用引擎的转换方法
func (e *Engine) Subscribe(fn func(TransitionEvent)) {
	e.listeners = append(e.listeners, fn)
}

// Update 推进延迟任务
func (e *Engine) Update(dt float64) {
	e.scheduler.Advance(dt)
}

// require 检查当前阶段是否允许 op
func (e *Engine) require(op string, allowed ...Phase) error {
	if slices.Contains(allowed, e.state.Phase) {
		return nil
	}
	err := &TransitionError{Op: op, Phase: e.state.Phase}
	e.logger.Debug("transition rejected", zap.String("op", op), zap.Stringer("phase", e.state.Phase))
	return err
}

// commit 用新状态替换旧状态并通知订阅者
func (e *Engine) commit(op string, next GameState, bump bool) {
	from := e.state.Phase
	e.state = next
	if bump || from != next.Phase {
		e.generation++
	}

	e.logger.Debug("transition",
		zap.String("op", op),
		zap.Stringer("from", from),
		zap.Stringer("to", next.Phase),
		zap.Int("level", next.CurrentLevel),
		zap.Int("lives", next.Lives),
		zap.Int("score", next.Score),
	)

	if len(e.listeners) == 0 {
		return
	}
	ev := TransitionEvent{Op: op, From: from, To: next.Phase, Generation: e.generation, State: e.State()}
	for _, fn := range e.listeners {
		fn(ev)
	}
}

// BeginIntro splash → intro，重置生命、得分、关卡和已出场顾客
func (e *Engine) BeginIntro() error {
	if err := e.require("BeginIntro", PhaseSplash); err != nil {
		return err
	}
	next := e.state
	next.Phase = PhaseIntro
	next.Lives = InitialLives
	next.CurrentLevel = 0
	next.Score = 0
	next.UsedCustomerIDs = nil
	e.commit("BeginIntro", next, false)
	return nil
}

// ShowTutorial intro → tutorial
func (e *Engine) ShowTutorial() error {
	if err := e.require("ShowTutorial", PhaseIntro); err != nil {
		return err
	}
	next := e.state
	next.Phase = PhaseTutorial
	e.commit("ShowTutorial", next, false)
	return nil
}

// StartGame intro/tutorial → sequence_intro，进入第 1 关
func (e *Engine) StartGame() error {
	return e.startGame("StartGame")
}

// SkipTutorial 跳过教学直接开始，等同于 StartGame
func (e *Engine) SkipTutorial() error {
	return e.startGame("SkipTutorial")
}

func (e *Engine) startGame(op string) error {
	if err := e.require(op, PhaseIntro, PhaseTutorial); err != nil {
		return err
	}
	next, err := e.enterLevel(e.state, 1, nil)
	if err != nil {
		return err
	}
	e.commit(op, next, false)
	return nil
}

// enterLevel 抽取关卡的顾客和对话序列，返回新的状态
func (e *Engine) enterLevel(s GameState, level int, used []string) (GameState, error) {
	levelData, ok := e.content.Level(level)
	if !ok {
		return s, fmt.Errorf("level %d not found", level)
	}
	customer, err := SelectCustomer(e.rng, e.content.Customers, level, used)
	if err != nil {
		return s, err
	}
	sequences, err := SelectSequences(e.rng, e.content.Sequences, levelData, customer)
	if err != nil {
		return s, err
	}

	s.Phase = PhaseSequenceIntro
	s.CurrentLevel = level
	s.LevelData = &levelData
	s.Customer = customer
	s.Sequences = sequences
	s.CurrentSequenceIndex = 0
	s.CurrentLineIndex = 0
	s.CurrentLine = nil
	s.ShowMom = false
	s.MomMessage = pickRandom(e.rng, customer.Greetings)
	s.CustomerSays = s.MomMessage
	s.UsedCustomerIDs = append(slices.Clone(used), customer.ID)
	s = clearLineState(s)

	e.logger.Info("level started",
		zap.Int("level", level),
		zap.String("customer", customer.ID),
		zap.Int("sequences", len(sequences)),
	)
	return s, nil
}

// StartSequence sequence_intro → 第一行台词对应的阶段
func (e *Engine) StartSequence() error {
	if err := e.require("StartSequence", PhaseSequenceIntro); err != nil {
		return err
	}
	seq := e.state.CurrentSequence()
	if seq == nil || len(seq.Lines) == 0 {
		return fmt.Errorf("sequence %d: %w", e.state.CurrentSequenceIndex, ErrNoSequences)
	}
	e.commit("StartSequence", e.enterLine(e.state, 0), true)
	return nil
}

// AdvanceLine 在普通对话中手动推进到下一行
func (e *Engine) AdvanceLine() error {
	if err := e.require("AdvanceLine", PhaseDialog, PhaseSequenceEnd); err != nil {
		return err
	}
	e.commit("AdvanceLine", e.advance(e.state), true)
	return nil
}

// CompleteFaceCheck 表情保持完成
func (e *Engine) CompleteFaceCheck() error {
	if err := e.require("CompleteFaceCheck", PhaseFaceCheck); err != nil {
		return err
	}
	e.commit("CompleteFaceCheck", e.advance(e.state), true)
	return nil
}

// FailFaceCheck 表情检查失败：扣一条命；命用完则游戏结束，
// 否则显示妈妈的台词，2 秒后推进到下一行
func (e *Engine) FailFaceCheck() error {
	if err := e.require("FailFaceCheck", PhaseFaceCheck); err != nil {
		return err
	}
	next, over := e.loseLife(e.state, "FailFaceCheck")
	if over {
		e.scheduler.CancelAll()
		e.commit("FailFaceCheck", next, true)
		return nil
	}

	next.ShowMom = true
	next.MomMessage = pickRandom(e.rng, e.content.Reactions.Fail)
	e.commit("FailFaceCheck", next, true)

	e.scheduler.Schedule(FailAdvanceDelaySec, func() {
		if e.state.Phase != PhaseFaceCheck {
			return
		}
		s := e.state
		s.ShowMom = false
		e.commit("FailFaceCheckAdvance", e.advance(s), true)
	})
	return nil
}

// CompleteAction 选对了操作
func (e *Engine) CompleteAction() error {
	if err := e.require("CompleteAction", PhaseAction); err != nil {
		return err
	}
	e.commit("CompleteAction", e.advance(e.state), true)
	return nil
}

// HandleWrongAction 选错了操作：扣一条命；命用完则游戏结束，
// 否则进入难过表情惩罚（2 秒）
func (e *Engine) HandleWrongAction() error {
	if err := e.require("HandleWrongAction", PhaseAction); err != nil {
		return err
	}
	next, over := e.loseLife(e.state, "HandleWrongAction")
	if over {
		e.scheduler.CancelAll()
		e.commit("HandleWrongAction", next, true)
		return nil
	}

	next.Phase = PhaseWrongActionPenalty
	next.ShowMom = true
	next.MomMessage = pickRandom(e.rng, e.content.Reactions.WrongAction)
	next.FaceCheckRequired = types.EmotionSad
	next.FaceCheckProgress = 0
	next.FaceCheckDuration = PenaltyHoldSeconds
	next.FaceCheckWarning = false
	next.FaceCheckWarningCountdown = 0
	e.commit("HandleWrongAction", next, true)
	return nil
}

// ChooseAction 玩家选择了一个操作，按对错分派
func (e *Engine) ChooseAction(action types.ActionType) error {
	if err := e.require("ChooseAction", PhaseAction); err != nil {
		return err
	}
	if !slices.Contains(e.state.ActionChoices, action) {
		return fmt.Errorf("%s: %w", action, ErrUnknownAction)
	}
	if action == e.state.CorrectAction {
		return e.CompleteAction()
	}
	return e.HandleWrongAction()
}

// CompleteWrongActionPenalty 惩罚表情完成，隐藏妈妈并推进
func (e *Engine) CompleteWrongActionPenalty() error {
	if err := e.require("CompleteWrongActionPenalty", PhaseWrongActionPenalty); err != nil {
		return err
	}
	next := e.state
	next.ShowMom = false
	e.commit("CompleteWrongActionPenalty", e.advance(next), true)
	return nil
}

// CompleteHeadGesture 头部动作完成
func (e *Engine) CompleteHeadGesture() error {
	if err := e.require("CompleteHeadGesture", PhaseHeadGesture); err != nil {
		return err
	}
	e.commit("CompleteHeadGesture", e.advance(e.state), true)
	return nil
}

// SetFaceWarning 设置表情检查的提示和倒计时（秒）
func (e *Engine) SetFaceWarning(warning bool, countdown int) error {
	if err := e.require("SetFaceWarning", PhaseFaceCheck, PhaseWrongActionPenalty); err != nil {
		return err
	}
	e.state.FaceCheckWarning = warning
	e.state.FaceCheckWarningCountdown = max(0, countdown)
	return nil
}

// UpdateFaceProgress 设置表情保持进度，超出 [0,1] 的值被截断
func (e *Engine) UpdateFaceProgress(progress float64) error {
	if err := e.require("UpdateFaceProgress", PhaseFaceCheck, PhaseWrongActionPenalty); err != nil {
		return err
	}
	if math.IsNaN(progress) {
		progress = 0
	}
	e.state.FaceCheckProgress = math.Min(math.Max(progress, 0), 1)
	return nil
}

// NextLevel level_complete → 下一关，或全部通关后 victory
func (e *Engine) NextLevel() error {
	if err := e.require("NextLevel", PhaseLevelComplete); err != nil {
		return err
	}

	nextLevel := e.state.CurrentLevel + 1
	if nextLevel > e.content.LevelCount() {
		next := e.state
		next.Phase = PhaseVictory
		next.ShowMom = true
		next.MomMessage = pickRandom(e.rng, e.content.Reactions.Victory)
		e.scheduler.CancelAll()
		e.logger.Info("victory", zap.Int("score", next.Score))
		e.commit("NextLevel", next, true)
		return nil
	}

	next, err := e.enterLevel(e.state, nextLevel, e.state.UsedCustomerIDs)
	if err != nil {
		return err
	}
	e.commit("NextLevel", next, true)
	return nil
}

// RestartGame game_over/victory → splash，完全重置并取消所有延迟任务
func (e *Engine) RestartGame() error {
	if err := e.require("RestartGame", PhaseGameOver, PhaseVictory); err != nil {
		return err
	}
	e.scheduler.CancelAll()
	e.commit("RestartGame", initialState(), true)
	return nil
}

// loseLife 扣一条命，返回新状态以及是否游戏结束
func (e *Engine) loseLife(s GameState, op string) (GameState, bool) {
	s.Lives--
	e.logger.Info("life lost", zap.String("op", op), zap.Int("lives", max(s.Lives, 0)))
	if s.Lives > 0 {
		return s, false
	}
	s.Lives = 0
	s.Phase = PhaseGameOver
	s.ShowMom = true
	s.MomMessage = pickRandom(e.rng, e.content.Reactions.GameOver)
	return s, true
}

// advance 推进到下一行；序列用完进入 sequence_intro，全部用完进入 level_complete
func (e *Engine) advance(s GameState) GameState {
	seq := s.CurrentSequence()
	if seq == nil {
		return s
	}

	nextLine := s.CurrentLineIndex + 1
	if nextLine < len(seq.Lines) {
		return e.enterLine(s, nextLine)
	}

	s = clearLineState(s)
	s.CurrentLine = nil
	s.CurrentLineIndex = 0
	s.ShowMom = true
	s.MomMessage = pickRandom(e.rng, e.content.Reactions.Success)

	nextSeq := s.CurrentSequenceIndex + 1
	if nextSeq < len(s.Sequences) {
		s.Phase = PhaseSequenceIntro
		s.CurrentSequenceIndex = nextSeq
		return s
	}

	s.Phase = PhaseLevelComplete
	s.Score += s.CurrentLevel * LevelScoreUnit
	if s.Customer != nil {
		s.CustomerSays = pickRandom(e.rng, s.Customer.Farewells)
	}
	e.logger.Info("level complete", zap.Int("level", s.CurrentLevel), zap.Int("score", s.Score))
	return s
}

// enterLine 进入第 idx 行台词并重新初始化工作状态
func (e *Engine) enterLine(s GameState, idx int) GameState {
	seq := s.CurrentSequence()
	line := &seq.Lines[idx]

	s = clearLineState(s)
	s.CurrentLineIndex = idx
	s.CurrentLine = line
	s.ShowMom = false

	multiplier := 1.0
	if s.LevelData != nil && s.LevelData.HoldDurationMultiplier > 0 {
		multiplier = s.LevelData.HoldDurationMultiplier
	}

	switch check := line.Check.(type) {
	case config.FaceCheck:
		s.Phase = PhaseFaceCheck
		s.FaceCheckRequired = check.Emotion
		hold := check.HoldSeconds
		if hold <= 0 {
			hold = DefaultHoldSeconds
		}
		s.FaceCheckDuration = hold * multiplier
	case config.GestureCheck:
		s.Phase = PhaseHeadGesture
		s.HeadGestureRequired = check.Gesture
	case config.ActionCheck:
		s.Phase = PhaseAction
		s.CorrectAction = check.Correct
		s.ActionChoices = buildActionChoices(e.rng, check)
	default:
		s.Phase = PhaseDialog
	}
	return s
}

// clearLineState 清空上一行台词的工作状态
func clearLineState(s GameState) GameState {
	s.FaceCheckRequired = types.EmotionNone
	s.FaceCheckProgress = 0
	s.FaceCheckDuration = 0
	s.FaceCheckWarning = false
	s.FaceCheckWarningCountdown = 0
	s.HeadGestureRequired = types.GestureNone
	s.ActionChoices = nil
	s.CorrectAction = types.ActionNone
	return s
}

// buildActionChoices 正确操作加上全部错误选项，去重后打乱
func buildActionChoices(rng RandomSource, check config.ActionCheck) []types.ActionType {
	choices := []types.ActionType{check.Correct}
	for _, w := range check.Wrong {
		if !slices.Contains(choices, w) {
			choices = append(choices, w)
		}
	}
	shuffle(rng, choices)
	return choices
}

// IsRejected 判断错误是否为阶段不允许
func IsRejected(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}
