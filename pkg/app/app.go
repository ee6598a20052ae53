// Package app 把配置、引擎、检测器、持久化和场景组装成 ebiten.Game
//
// main 包只负责解析参数和初始化嵌入资源，其余初始化都在 NewApp 中完成。
package app

import (
	"database/sql"
	"fmt"
	"image/color"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/quasilyte/gdata/v2"
	"go.uber.org/zap"

	"github.com/decker502/tindahan/pkg/config"
	"github.com/decker502/tindahan/pkg/embedded"
	"github.com/decker502/tindahan/pkg/face"
	"github.com/decker502/tindahan/pkg/game"
	"github.com/decker502/tindahan/pkg/history"
	"github.com/decker502/tindahan/pkg/scenes"
	"github.com/decker502/tindahan/pkg/systems"
	"github.com/decker502/tindahan/pkg/tracker"
	"github.com/decker502/tindahan/pkg/utils"
)

// Config 定义应用启动配置
type Config struct {
	// Verbose 启用调试日志
	Verbose bool
	// ConfigPath 可选的磁盘配置文件，覆盖嵌入的 config.yaml
	ConfigPath string
	// Seed 非 0 时覆盖配置中的随机种子
	Seed uint64
	// NoTracker 不启动追踪桥接，只用键盘模拟
	NoTracker bool
}

// App 是游戏应用的核心包装器，实现 ebiten.Game 接口
type App struct {
	cfg    *config.AppConfig
	logger *zap.Logger

	engine       *game.Engine
	detector     *face.Detector
	tracker      *tracker.Server // 未启用时为 nil
	sceneManager *game.SceneManager
	gameplay     *scenes.GameplayScene

	settings *game.SettingsManager
	progress *game.ProgressManager
	db       *sql.DB              // 未启用对局记录时为 nil
	recorder *history.RunRecorder // 同上

	pendingWindowSizeReset   bool // 退出全屏后延迟恢复窗口大小
	windowSizeResetCountdown int

	closeOnce sync.Once
}

// NewApp 创建并初始化游戏应用
//
// 调用此函数前，必须先调用 embedded.Init() 初始化嵌入资源。
func NewApp(cfg Config) (*App, error) {
	logger, err := utils.InitLogger(cfg.Verbose)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger = logger.Named("App")

	data, err := embedded.DataRoot()
	if err != nil {
		return nil, err
	}
	appCfg, err := config.LoadAppConfig(data, cfg.ConfigPath)
	if err != nil {
		return nil, err
	}
	if cfg.Seed != 0 {
		appCfg.Seed = cfg.Seed
	}
	if cfg.NoTracker {
		appCfg.Tracker.Enabled = false
	}

	content, err := config.LoadContent(data)
	if err != nil {
		return nil, err
	}
	logger.Info("content loaded",
		zap.Int("customers", len(content.Customers)),
		zap.Int("sequences", len(content.Sequences)),
		zap.Int("levels", content.LevelCount()),
	)

	engine, err := game.NewEngine(content, game.NewRandomSource(appCfg.Seed), logger)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: appCfg, logger: logger, engine: engine}

	// gdata 打不开时进度和设置只保存在内存中
	gm, err := gdata.Open(gdata.Config{AppName: appCfg.AppName})
	if err != nil {
		logger.Warn("gdata unavailable, progress will not be saved", zap.Error(err))
		gm = nil
	}
	a.settings = game.NewSettingsManager(gm, logger)
	a.progress = game.NewProgressManager(gm, logger)
	engine.Subscribe(a.progress.OnTransition)

	var runs scenes.RunLister
	if appCfg.History.Enabled {
		if repo := a.openHistory(appCfg.History.DBPath); repo != nil {
			runs = repo
		}
	}

	keyboard := scenes.NewKeyboardSource(nil)
	sources := face.MultiSource{keyboard}
	trackerURL := ""
	if appCfg.Tracker.Enabled {
		a.tracker = tracker.NewServer(tracker.Options{
			Addr:           appCfg.Tracker.Addr,
			AllowedOrigins: appCfg.Tracker.AllowedOrigins,
			Logger:         logger,
		})
		// 端口被占用等失败只影响追踪桥接，键盘模拟继续可用
		sources = append(sources, face.Optional(a.tracker, func(err error) {
			a.detector.ReportSourceError("Tracker bridge", err)
		}))
		trackerURL = a.tracker.URL()
	}
	a.detector = face.NewDetector(face.DetectorOptions{
		Source:    sources,
		QueueSize: appCfg.Tracker.QueueSize,
		Logger:    logger,
	})
	pipeline := systems.NewPipeline(engine, a.detector, appCfg, logger)

	w, h := appCfg.Window.Width, appCfg.Window.Height
	a.sceneManager = game.NewSceneManager(logger)
	a.gameplay = scenes.NewGameplayScene(scenes.GameplayOptions{
		Engine:     engine,
		Detector:   a.detector,
		Pipeline:   pipeline,
		Keyboard:   keyboard,
		Settings:   a.settings,
		Progress:   a.progress,
		Scenes:     a.sceneManager,
		TrackerURL: trackerURL,
		Width:      w,
		Height:     h,
		Logger:     logger,
	})
	a.sceneManager.SetSceneFactory(func(id game.SceneID) game.Scene {
		switch id {
		case game.SceneGameplay:
			return a.gameplay
		case game.SceneHistory:
			return scenes.NewHistoryScene(runs, a.sceneManager, w, h, logger)
		}
		return nil
	})
	if !a.sceneManager.Show(game.SceneGameplay) {
		return nil, fmt.Errorf("failed to create gameplay scene")
	}

	return a, nil
}

// openHistory 打开对局记录数据库并订阅引擎，失败时只记日志
func (a *App) openHistory(path string) *history.RunRepo {
	db, err := history.NewDB(path)
	if err != nil {
		a.logger.Warn("run history disabled", zap.String("path", path), zap.Error(err))
		return nil
	}
	repo := history.NewRunRepo(db)
	a.db = db
	a.recorder = history.NewRunRecorder(repo, a.logger)
	a.engine.Subscribe(a.recorder.OnTransition)
	a.logger.Info("run history enabled", zap.String("path", path))
	return repo
}

// WindowConfig 窗口设置
func (a *App) WindowConfig() config.WindowConfig {
	return a.cfg.Window
}

// StartFullscreen 设置中是否要求全屏启动
func (a *App) StartFullscreen() bool {
	return a.settings.GetSettings().Fullscreen
}

// Update 更新游戏逻辑
// 每个 tick 调用一次（通常每秒 60 次）
func (a *App) Update() error {
	// 退出全屏后需要等待几帧才能正确设置窗口大小
	if a.pendingWindowSizeReset {
		a.windowSizeResetCountdown--
		if a.windowSizeResetCountdown <= 0 {
			ebiten.SetWindowSize(a.cfg.Window.Width, a.cfg.Window.Height)
			a.pendingWindowSizeReset = false
		}
	}

	// F11 切换全屏
	if inpututil.IsKeyJustPressed(ebiten.KeyF11) {
		a.toggleFullscreen()
	}

	a.sceneManager.Update(1.0 / float64(ebiten.TPS()))
	return nil
}

func (a *App) toggleFullscreen() {
	if ebiten.IsFullscreen() {
		ebiten.SetFullscreen(false)
		if ebiten.IsWindowMaximized() || ebiten.IsWindowMinimized() {
			ebiten.RestoreWindow()
		}
		a.pendingWindowSizeReset = true
		a.windowSizeResetCountdown = 3
		a.settings.SetFullscreen(false)
	} else {
		ebiten.SetFullscreen(true)
		a.settings.SetFullscreen(true)
	}
	if err := a.settings.Save(); err != nil {
		a.logger.Warn("failed to save settings", zap.Error(err))
	}
}

// Draw 绘制游戏画面
func (a *App) Draw(screen *ebiten.Image) {
	a.sceneManager.Draw(screen)
}

// DrawFinalScreen 实现 FinalScreenDrawer 接口
// 全屏时两侧填黑，画面用线性滤波缩放
func (a *App) DrawFinalScreen(screen ebiten.FinalScreen, offscreen *ebiten.Image, geoM ebiten.GeoM) {
	screen.Fill(color.Black)
	op := &ebiten.DrawImageOptions{}
	op.GeoM = geoM
	op.Filter = ebiten.FilterLinear
	screen.DrawImage(offscreen, op)
}

// Layout 返回游戏的逻辑屏幕尺寸
func (a *App) Layout(outsideWidth, outsideHeight int) (int, int) {
	return a.cfg.Window.Width, a.cfg.Window.Height
}

// Close 停止检测和追踪服务，结束未完成的对局记录并保存
// 可重复调用
func (a *App) Close() {
	a.closeOnce.Do(func() {
		a.gameplay.Shutdown()
		if a.tracker != nil {
			if err := a.tracker.Close(); err != nil {
				a.logger.Warn("failed to stop tracker", zap.Error(err))
			}
		}
		if a.recorder != nil {
			a.recorder.Close()
		}
		a.sceneManager.SaveAll()
		if err := a.progress.Save(); err != nil {
			a.logger.Warn("failed to save progress", zap.Error(err))
		}
		if a.db != nil {
			if err := a.db.Close(); err != nil {
				a.logger.Warn("failed to close history database", zap.Error(err))
			}
		}
		a.logger.Info("closed")
		_ = a.logger.Sync()
	})
}
