package config

import (
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// AppConfigFile 嵌入数据目录中的默认配置文件
const AppConfigFile = "config.yaml"

// 可覆盖配置的环境变量
const (
	EnvTrackerAddr = "TINDAHAN_TRACKER_ADDR"
	EnvDBPath      = "TINDAHAN_DB_PATH"
	EnvSeed        = "TINDAHAN_SEED"
)

// AppConfig 应用配置
type AppConfig struct {
	AppName   string          `yaml:"appName"` // gdata 存档目录名
	Seed      uint64          `yaml:"seed"`    // 随机种子，0 表示按时间生成
	Window    WindowConfig    `yaml:"window"`
	Tracker   TrackerConfig   `yaml:"tracker"`
	FaceCheck FaceCheckConfig `yaml:"faceCheck"`
	Gesture   GestureConfig   `yaml:"gesture"`
	History   HistoryConfig   `yaml:"history"`
}

// WindowConfig 窗口配置
type WindowConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Title  string `yaml:"title"`
}

// TrackerConfig 人脸追踪桥接服务配置
type TrackerConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Addr           string   `yaml:"addr"`           // 监听地址，如 "127.0.0.1:8765"
	AllowedOrigins []string `yaml:"allowedOrigins"` // CORS 允许的来源，空表示全部
	QueueSize      int      `yaml:"queueSize"`      // 帧队列长度，满了丢最旧的
}

// FaceCheckConfig 表情保持检查参数
type FaceCheckConfig struct {
	TimeoutSeconds   float64 `yaml:"timeoutSeconds"`   // 超时判负，0 表示不超时
	DefaultDuration  float64 `yaml:"defaultDuration"`  // 未给出时长时使用
	DecayPerSecond   float64 `yaml:"decayPerSecond"`   // 表情不匹配时每秒回退的进度
	WarningThreshold float64 `yaml:"warningThreshold"` // 进度低于该值且不匹配时提示
}

// GestureConfig 头部动作检查参数
type GestureConfig struct {
	DebounceSeconds float64 `yaml:"debounceSeconds"`
}

// HistoryConfig 对局记录（SQLite）配置
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"dbPath"`
}

// DefaultAppConfig 返回全部默认值
func DefaultAppConfig() *AppConfig {
	cfg := &AppConfig{}
	applyAppDefaults(cfg)
	return cfg
}

// LoadAppConfig 加载应用配置
// 参数：
//
//	fsys - 嵌入的数据目录，读取其中的 config.yaml 作为基础
//	overridePath - 可选的磁盘配置文件，非空时覆盖基础配置中出现的字段
//
// 返回：
//
//	*AppConfig - 应用默认值、环境变量覆盖并通过校验后的配置
//	error - 读取、解析或校验失败时返回
func LoadAppConfig(fsys fs.FS, overridePath string) (*AppConfig, error) {
	cfg := &AppConfig{}

	if fsys != nil {
		data, err := fs.ReadFile(fsys, AppConfigFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read app config %s: %w", AppConfigFile, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse app config YAML: %w", err)
		}
	}

	if overridePath != "" {
		data, err := os.ReadFile(overridePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read app config file %s: %w", overridePath, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse app config YAML from %s: %w", overridePath, err)
		}
	}

	if err := applyEnvOverrides(cfg, os.Getenv); err != nil {
		return nil, err
	}
	applyAppDefaults(cfg)

	if err := validateAppConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid app config: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides 用环境变量覆盖配置
func applyEnvOverrides(cfg *AppConfig, getenv func(string) string) error {
	if v := getenv(EnvTrackerAddr); v != "" {
		cfg.Tracker.Addr = v
	}
	if v := getenv(EnvDBPath); v != "" {
		cfg.History.DBPath = v
	}
	if v := getenv(EnvSeed); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvSeed, v, err)
		}
		cfg.Seed = seed
	}
	return nil
}

// applyAppDefaults 为未配置的字段设置默认值
func applyAppDefaults(cfg *AppConfig) {
	if cfg.AppName == "" {
		cfg.AppName = "tindahan"
	}
	if cfg.Window.Width == 0 {
		cfg.Window.Width = 800
	}
	if cfg.Window.Height == 0 {
		cfg.Window.Height = 600
	}
	if cfg.Window.Title == "" {
		cfg.Window.Title = "Tindahan"
	}
	if cfg.Tracker.Addr == "" {
		cfg.Tracker.Addr = "127.0.0.1:8765"
	}
	if cfg.Tracker.QueueSize == 0 {
		cfg.Tracker.QueueSize = 8
	}
	if cfg.FaceCheck.DefaultDuration == 0 {
		cfg.FaceCheck.DefaultDuration = 2.5
	}
	if cfg.FaceCheck.DecayPerSecond == 0 {
		cfg.FaceCheck.DecayPerSecond = 0.6
	}
	if cfg.FaceCheck.WarningThreshold == 0 {
		cfg.FaceCheck.WarningThreshold = 0.35
	}
	if cfg.Gesture.DebounceSeconds == 0 {
		cfg.Gesture.DebounceSeconds = 0.25
	}
	if cfg.History.DBPath == "" {
		cfg.History.DBPath = "tindahan_history.db"
	}
}

// validateAppConfig 校验配置取值
func validateAppConfig(cfg *AppConfig) error {
	if cfg.Window.Width < 0 || cfg.Window.Height < 0 {
		return fmt.Errorf("window size cannot be negative")
	}
	if cfg.Tracker.QueueSize < 1 {
		return fmt.Errorf("tracker queueSize must be at least 1")
	}
	if cfg.FaceCheck.TimeoutSeconds < 0 {
		return fmt.Errorf("faceCheck timeoutSeconds cannot be negative")
	}
	if cfg.FaceCheck.DefaultDuration < 0 || cfg.FaceCheck.DecayPerSecond < 0 {
		return fmt.Errorf("faceCheck durations cannot be negative")
	}
	if cfg.FaceCheck.WarningThreshold < 0 || cfg.FaceCheck.WarningThreshold > 1 {
		return fmt.Errorf("faceCheck warningThreshold must be within [0,1]")
	}
	if cfg.Gesture.DebounceSeconds < 0 {
		return fmt.Errorf("gesture debounceSeconds cannot be negative")
	}
	return nil
}
