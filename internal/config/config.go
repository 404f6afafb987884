// Package config handles scenemirror configuration loading and management.
package config

import (
	"time"

	"github.com/Faultbox/scenemirror/internal/logger"
)

// Config holds all settings.
type Config struct {
	Renderer RendererConfig `yaml:"renderer" toml:"renderer"`
	Channel  ChannelConfig  `yaml:"channel" toml:"channel"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
	Demo     DemoConfig     `yaml:"demo" toml:"demo"`
}

// RendererConfig holds renderer settings.
type RendererConfig struct {
	AttachBudget Duration   `yaml:"attach_budget" toml:"attach_budget"` // Per-frame attach work
	AutoPlay     bool       `yaml:"auto_play" toml:"auto_play"`
	ShowVisuals  bool       `yaml:"show_visuals" toml:"show_visuals"` // Collider wireframes
	EagerJoints  bool       `yaml:"eager_joints" toml:"eager_joints"`
	DefaultColor [4]float32 `yaml:"default_color" toml:"default_color"` // Fallback material RGBA
}

// ChannelConfig holds Model -> Renderer channel settings.
type ChannelConfig struct {
	Buffer int `yaml:"buffer" toml:"buffer"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level" toml:"level"`
	LogFile    string `yaml:"log_file" toml:"log_file"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" toml:"max_age_days"`
	Compress   bool   `yaml:"compress" toml:"compress"`
	JSON       bool   `yaml:"json" toml:"json"`
}

// File returns the rotating file settings for the logger.
func (l LoggingConfig) File() logger.FileConfig {
	if l.LogFile == "" {
		return logger.FileConfig{}
	}
	return logger.FileConfig{
		Path:       l.LogFile,
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAgeDays: l.MaxAgeDays,
		Compress:   l.Compress,
		JSON:       l.JSON,
	}
}

// DemoConfig holds settings of the demo scene.
type DemoConfig struct {
	SceneSize     int      `yaml:"scene_size" toml:"scene_size"`
	Seed          uint64   `yaml:"seed" toml:"seed"`
	Frames        int      `yaml:"frames" toml:"frames"` // 0 runs until interrupted
	FrameInterval Duration `yaml:"frame_interval" toml:"frame_interval"`
	PhysicsAddr   string   `yaml:"physics_addr" toml:"physics_addr"` // Empty discards collider geometry
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Renderer: RendererConfig{
			AttachBudget: Duration(2 * time.Millisecond),
			AutoPlay:     true,
			ShowVisuals:  false,
			EagerJoints:  true,
			DefaultColor: [4]float32{1, 1, 1, 1},
		},
		Channel: ChannelConfig{
			Buffer: 256,
		},
		Logging: LoggingConfig{
			Level:      "info",
			LogFile:    "",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   true,
		},
		Demo: DemoConfig{
			SceneSize:     64,
			Seed:          1,
			Frames:        600,
			FrameInterval: Duration(16 * time.Millisecond),
		},
	}
}
