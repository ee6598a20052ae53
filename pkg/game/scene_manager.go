package game

import (
	"github.com/hajimehoshi/ebiten/v2"
	"go.uber.org/zap"
)

// SceneID 场景标识
type SceneID string

const (
	SceneGameplay SceneID = "gameplay"
	SceneHistory  SceneID = "history"
)

// SceneFactory 场景工厂函数类型
// 按 ID 创建场景，避免 game 包依赖 scenes 包
type SceneFactory func(id SceneID) Scene

// SceneManager manages the game's high-level state by controlling which scene is active.
// It ensures only one scene's Update and Draw methods are called at any given time.
type SceneManager struct {
	currentScene Scene
	currentID    SceneID
	sceneFactory SceneFactory
	cache        map[SceneID]Scene
	logger       *zap.Logger
}

// NewSceneManager creates and returns a new SceneManager instance.
// The manager starts with no active scene; use SwitchTo or Show to set the initial scene.
func NewSceneManager(logger *zap.Logger) *SceneManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SceneManager{
		cache:  make(map[SceneID]Scene),
		logger: logger.Named("SceneManager"),
	}
}

// SetSceneFactory 设置场景工厂函数
func (sm *SceneManager) SetSceneFactory(factory SceneFactory) {
	sm.sceneFactory = factory
}

// SwitchTo changes the active scene to the provided scene.
func (sm *SceneManager) SwitchTo(scene Scene) {
	sm.currentScene = scene
	sm.currentID = ""
}

// GetCurrentScene 返回当前活动的场景，没有时返回 nil
func (sm *SceneManager) GetCurrentScene() Scene {
	return sm.currentScene
}

// CurrentID 当前场景 ID，通过 SwitchTo 直接设置的场景为空
func (sm *SceneManager) CurrentID() SceneID {
	return sm.currentID
}

// Show 切换到指定 ID 的场景，同一 ID 的场景只创建一次
func (sm *SceneManager) Show(id SceneID) bool {
	scene, ok := sm.cache[id]
	if !ok {
		if sm.sceneFactory == nil {
			sm.logger.Error("scene factory not set", zap.String("scene", string(id)))
			return false
		}
		scene = sm.sceneFactory(id)
		if scene == nil {
			sm.logger.Error("failed to create scene", zap.String("scene", string(id)))
			return false
		}
		sm.cache[id] = scene
	}

	sm.currentScene = scene
	sm.currentID = id
	if e, ok := scene.(Enterer); ok {
		e.OnEnter()
	}
	sm.logger.Debug("switched scene", zap.String("scene", string(id)))
	return true
}

// Update updates the currently active scene.
// If no scene is active, this method does nothing.
func (sm *SceneManager) Update(deltaTime float64) {
	if sm.currentScene != nil {
		sm.currentScene.Update(deltaTime)
	}
}

// Draw renders the currently active scene to the provided screen.
// If no scene is active, this method does nothing.
func (sm *SceneManager) Draw(screen *ebiten.Image) {
	if sm.currentScene != nil {
		sm.currentScene.Draw(screen)
	}
}

// SaveAll 对实现了 Saveable 的已创建场景调用 SaveOnExit
func (sm *SceneManager) SaveAll() {
	for id, scene := range sm.cache {
		if s, ok := scene.(Saveable); ok && !s.SaveOnExit() {
			sm.logger.Warn("scene failed to save on exit", zap.String("scene", string(id)))
		}
	}
}
