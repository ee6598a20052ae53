package game

import (
	"fmt"

	"github.com/quasilyte/gdata/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// PlayerProgress 玩家的累计进度
type PlayerProgress struct {
	BestScore    int `yaml:"bestScore"`    // 单局最高分
	HighestLevel int `yaml:"highestLevel"` // 到达过的最高关卡
	Victories    int `yaml:"victories"`    // 通关次数
	GamesPlayed  int `yaml:"gamesPlayed"`  // 开始过的局数
}

// 存储路径常量
const (
	progressObject   = "progress"
	progressProperty = "player"
)

// ProgressManager 进度管理器
// 订阅引擎的状态转换，在开局、升级、结束时更新并保存进度
type ProgressManager struct {
	gdataManager *gdata.Manager // 可为 nil（降级模式，仅内存）
	progress     PlayerProgress
	logger       *zap.Logger
}

// NewProgressManager 创建进度管理器并尝试加载已保存的进度
//
// 参数：
//   - gdataManager: gdata 跨平台存储管理器，可为 nil（降级模式）
//   - logger: 可为 nil
func NewProgressManager(gdataManager *gdata.Manager, logger *zap.Logger) *ProgressManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	pm := &ProgressManager{
		gdataManager: gdataManager,
		logger:       logger.Named("ProgressManager"),
	}
	if err := pm.Load(); err != nil {
		// 加载失败不是致命错误，从零开始
		pm.logger.Warn("failed to load progress, starting fresh", zap.Error(err))
	}
	return pm
}

// Load 从 gdata 加载进度，不存在时为零值
func (pm *ProgressManager) Load() error {
	pm.progress = PlayerProgress{}
	if pm.gdataManager == nil {
		return nil
	}
	if !pm.gdataManager.ObjectPropExists(progressObject, progressProperty) {
		return nil
	}

	data, err := pm.gdataManager.LoadObjectProp(progressObject, progressProperty)
	if err != nil {
		return fmt.Errorf("failed to load progress: %w", err)
	}
	var loaded PlayerProgress
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("failed to unmarshal progress: %w", err)
	}
	pm.progress = loaded
	return nil
}

// Save 保存进度，降级模式下直接返回 nil
func (pm *ProgressManager) Save() error {
	if pm.gdataManager == nil {
		return nil
	}
	data, err := yaml.Marshal(pm.progress)
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}
	if err := pm.gdataManager.SaveObjectProp(progressObject, progressProperty, data); err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}

// Progress 返回当前进度
func (pm *ProgressManager) Progress() PlayerProgress {
	return pm.progress
}

// OnTransition 引擎状态转换回调
func (pm *ProgressManager) OnTransition(ev TransitionEvent) {
	changed := false
	s := ev.State

	switch {
	case ev.From == PhaseIntro || ev.From == PhaseTutorial:
		if ev.To == PhaseSequenceIntro {
			pm.progress.GamesPlayed++
			changed = true
		}
	case ev.To == PhaseVictory:
		pm.progress.Victories++
		changed = true
	}

	if s.CurrentLevel > pm.progress.HighestLevel {
		pm.progress.HighestLevel = s.CurrentLevel
		changed = true
	}
	if s.Score > pm.progress.BestScore {
		pm.progress.BestScore = s.Score
		changed = true
	}

	if !changed {
		return
	}
	if err := pm.Save(); err != nil {
		pm.logger.Warn("failed to save progress", zap.Error(err))
	}
}
