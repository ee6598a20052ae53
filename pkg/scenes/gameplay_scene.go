package scenes

import (
	"context"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"go.uber.org/zap"
	"golang.org/x/image/font/basicfont"

	"github.com/decker502/tindahan/pkg/face"
	"github.com/decker502/tindahan/pkg/game"
	"github.com/decker502/tindahan/pkg/systems"
)

// Command 玩家输入的命令
type Command int

const (
	CommandNone            Command = iota
	CommandConfirm                 // Enter / 空格：按当前阶段开始、推进或重开
	CommandTutorial                // T：查看教学
	CommandChoose                  // 1-4：选择第几个操作
	CommandRestart                 // R：结束后重新开始
	CommandToggleCamera            // C：开关帧来源
	CommandToggleLandmarks         // L：开关关键点显示
	CommandShowHistory             // Tab：对局记录
)

// Input 一次按键对应的命令，Choice 只对 CommandChoose 有效（从 0 开始）
type Input struct {
	Command Command
	Choice  int
}

// commandKeys 单键命令的键位
var commandKeys = []struct {
	key ebiten.Key
	cmd Command
}{
	{ebiten.KeyEnter, CommandConfirm},
	{ebiten.KeySpace, CommandConfirm},
	{ebiten.KeyT, CommandTutorial},
	{ebiten.KeyR, CommandRestart},
	{ebiten.KeyC, CommandToggleCamera},
	{ebiten.KeyL, CommandToggleLandmarks},
	{ebiten.KeyTab, CommandShowHistory},
}

var choiceKeys = []ebiten.Key{ebiten.KeyDigit1, ebiten.KeyDigit2, ebiten.KeyDigit3, ebiten.KeyDigit4}

// GameplayOptions 游戏场景的依赖
type GameplayOptions struct {
	Engine   *game.Engine
	Detector *face.Detector
	Pipeline *systems.Pipeline
	Keyboard *KeyboardSource      // 可为 nil
	Settings *game.SettingsManager // nil 时使用只在内存中的默认设置
	Progress *game.ProgressManager // 可为 nil，不显示最高分
	Scenes   *game.SceneManager    // 可为 nil，不能切换到对局记录

	TrackerURL    string // 启动画面二维码的内容，空表示不显示
	Width, Height int
	Logger        *zap.Logger
}

// GameplayScene 主游戏场景
//
// 每个 tick 依次：键盘模拟帧、玩家命令、驱动流水线（帧摄入、表情检查、
// 头部动作检查、延迟任务），最后按阶段和设置同步检测器的启停。
type GameplayScene struct {
	engine   *game.Engine
	detector *face.Detector
	pipeline *systems.Pipeline
	keyboard *KeyboardSource
	settings *game.SettingsManager
	progress *game.ProgressManager
	scenes   *game.SceneManager
	logger   *zap.Logger

	width, height int
	trackerURL    string

	// 检测器当前是否应处于运行状态
	detectorOn bool

	font    text.Face
	qrImage *ebiten.Image
	qrErr   error
}

// NewGameplayScene 创建游戏场景
func NewGameplayScene(opts GameplayOptions) *GameplayScene {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	settings := opts.Settings
	if settings == nil {
		settings = game.NewSettingsManager(nil, logger)
	}
	if opts.Width <= 0 {
		opts.Width = 800
	}
	if opts.Height <= 0 {
		opts.Height = 600
	}
	return &GameplayScene{
		engine:     opts.Engine,
		detector:   opts.Detector,
		pipeline:   opts.Pipeline,
		keyboard:   opts.Keyboard,
		settings:   settings,
		progress:   opts.Progress,
		scenes:     opts.Scenes,
		logger:     logger.Named("GameplayScene"),
		width:      opts.Width,
		height:     opts.Height,
		trackerURL: opts.TrackerURL,
		font:       text.NewGoXFace(basicfont.Face7x13),
	}
}

// Update 读取输入并推进一帧
func (s *GameplayScene) Update(deltaTime float64) {
	var keys KeyState
	if s.keyboard != nil {
		keys = ReadKeyState()
	}
	s.tick(deltaTime, keys, readInputs())
}

func (s *GameplayScene) tick(dt float64, keys KeyState, inputs []Input) {
	if s.keyboard != nil {
		s.keyboard.Feed(keys, dt)
	}
	for _, in := range inputs {
		if err := s.HandleCommand(in.Command, in.Choice); err != nil {
			if game.IsRejected(err) {
				s.logger.Debug("command ignored", zap.Error(err))
			} else {
				s.logger.Warn("command failed", zap.Error(err))
			}
		}
	}
	if s.pipeline != nil {
		s.pipeline.Update(dt)
	}
	s.syncDetector()
}

// HandleCommand 执行一条命令
// 当前阶段不接受的命令返回引擎的拒绝错误，状态不变
func (s *GameplayScene) HandleCommand(cmd Command, choice int) error {
	switch cmd {
	case CommandConfirm:
		return s.confirm()
	case CommandTutorial:
		return s.engine.ShowTutorial()
	case CommandChoose:
		st := s.engine.State()
		if st.Phase != game.PhaseAction || choice < 0 || choice >= len(st.ActionChoices) {
			return nil
		}
		return s.engine.ChooseAction(st.ActionChoices[choice])
	case CommandRestart:
		return s.engine.RestartGame()
	case CommandToggleCamera:
		cfg := s.settings.GetSettings()
		s.settings.SetCameraEnabled(!cfg.CameraEnabled)
		s.saveSettings()
	case CommandToggleLandmarks:
		cfg := s.settings.GetSettings()
		s.settings.SetShowLandmarks(!cfg.ShowLandmarks)
		s.saveSettings()
	case CommandShowHistory:
		if s.scenes != nil {
			s.scenes.Show(game.SceneHistory)
		}
	}
	return nil
}

// confirm Enter 在不同阶段的含义
func (s *GameplayScene) confirm() error {
	switch s.engine.Phase() {
	case game.PhaseSplash:
		return s.engine.BeginIntro()
	case game.PhaseIntro, game.PhaseTutorial:
		return s.engine.StartGame()
	case game.PhaseSequenceIntro:
		return s.engine.StartSequence()
	case game.PhaseDialog, game.PhaseSequenceEnd:
		return s.engine.AdvanceLine()
	case game.PhaseLevelComplete:
		return s.engine.NextLevel()
	case game.PhaseGameOver, game.PhaseVictory:
		return s.engine.RestartGame()
	}
	// 检查类阶段由表情和头部动作推进
	return nil
}

func (s *GameplayScene) saveSettings() {
	if err := s.settings.Save(); err != nil {
		s.logger.Warn("failed to save settings", zap.Error(err))
	}
}

// syncDetector 结束阶段停止检测，其余阶段按设置开启；只在期望状态变化时动作
func (s *GameplayScene) syncDetector() {
	if s.detector == nil {
		return
	}
	want := s.settings.GetSettings().CameraEnabled && !s.engine.Phase().IsTerminal()
	if want == s.detectorOn {
		return
	}
	s.detectorOn = want
	if !want {
		s.detector.Stop()
		return
	}
	if err := s.detector.Start(context.Background()); err != nil {
		s.logger.Warn("failed to start face tracking", zap.Error(err))
	}
}

// Shutdown 停止检测器，窗口关闭时调用
func (s *GameplayScene) Shutdown() {
	if s.detector != nil {
		s.detector.Stop()
	}
	s.detectorOn = false
}

// SaveOnExit 实现 game.Saveable
func (s *GameplayScene) SaveOnExit() bool {
	if err := s.settings.Save(); err != nil {
		s.logger.Warn("failed to save settings on exit", zap.Error(err))
		return false
	}
	return true
}

// readInputs 读取这一帧刚按下的命令键
func readInputs() []Input {
	var inputs []Input
	for _, ck := range commandKeys {
		if inpututil.IsKeyJustPressed(ck.key) {
			inputs = append(inputs, Input{Command: ck.cmd})
		}
	}
	for i, key := range choiceKeys {
		if inpututil.IsKeyJustPressed(key) {
			inputs = append(inputs, Input{Command: CommandChoose, Choice: i})
		}
	}
	return inputs
}
