package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Test renderer defaults
	if cfg.Renderer.AttachBudget.Std() != 2*time.Millisecond {
		t.Errorf("expected attach budget 2ms, got %v", cfg.Renderer.AttachBudget.Std())
	}
	if !cfg.Renderer.AutoPlay {
		t.Error("expected auto_play to be true by default")
	}
	if cfg.Renderer.ShowVisuals {
		t.Error("expected show_visuals to be false by default")
	}
	if cfg.Renderer.DefaultColor != [4]float32{1, 1, 1, 1} {
		t.Errorf("expected white default color, got %v", cfg.Renderer.DefaultColor)
	}

	// Test channel defaults
	if cfg.Channel.Buffer != 256 {
		t.Errorf("expected buffer 256, got %d", cfg.Channel.Buffer)
	}

	// Test demo defaults
	if cfg.Demo.FrameInterval.Std() != 16*time.Millisecond {
		t.Errorf("expected frame interval 16ms, got %v", cfg.Demo.FrameInterval.Std())
	}

	// Test logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "" {
		t.Errorf("expected empty log file, got %s", cfg.Logging.LogFile)
	}
	if cfg.Logging.File().Path != "" {
		t.Error("expected no file logging without a log file")
	}
}

func TestLoadFromFile(t *testing.T) {
	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
renderer:
  attach_budget: 5ms
  auto_play: false
  show_visuals: true
  default_color: [0.5, 0.5, 0.5, 1]

channel:
  buffer: 32

demo:
  scene_size: 10
  frame_interval: 33ms

logging:
  level: "debug"
  log_file: "scene.log"
  json: true
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	// Load config
	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Verify values were loaded
	if cfg.Renderer.AttachBudget.Std() != 5*time.Millisecond {
		t.Errorf("expected attach budget 5ms, got %v", cfg.Renderer.AttachBudget.Std())
	}
	if cfg.Renderer.AutoPlay {
		t.Error("expected auto_play to be false")
	}
	if !cfg.Renderer.ShowVisuals {
		t.Error("expected show_visuals to be true")
	}
	if cfg.Renderer.DefaultColor[0] != 0.5 {
		t.Errorf("expected default color red 0.5, got %f", cfg.Renderer.DefaultColor[0])
	}
	if !cfg.Renderer.EagerJoints {
		t.Error("expected eager_joints to keep its default")
	}

	if cfg.Channel.Buffer != 32 {
		t.Errorf("expected buffer 32, got %d", cfg.Channel.Buffer)
	}
	if cfg.Demo.SceneSize != 10 {
		t.Errorf("expected scene size 10, got %d", cfg.Demo.SceneSize)
	}
	if cfg.Demo.FrameInterval.Std() != 33*time.Millisecond {
		t.Errorf("expected frame interval 33ms, got %v", cfg.Demo.FrameInterval.Std())
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
	}
	file := cfg.Logging.File()
	if file.Path != "scene.log" || !file.JSON {
		t.Errorf("expected JSON file logging to scene.log, got %+v", file)
	}
	if file.MaxSizeMB != 50 {
		t.Errorf("expected default rotation size 50, got %d", file.MaxSizeMB)
	}
}

func TestLoadFromTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	tomlContent := `
[renderer]
attach_budget = "1ms"
eager_joints = false

[channel]
buffer = 8
`

	if err := os.WriteFile(configPath, []byte(tomlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Renderer.AttachBudget.Std() != time.Millisecond {
		t.Errorf("expected attach budget 1ms, got %v", cfg.Renderer.AttachBudget.Std())
	}
	if cfg.Renderer.EagerJoints {
		t.Error("expected eager_joints to be false")
	}
	if cfg.Channel.Buffer != 8 {
		t.Errorf("expected buffer 8, got %d", cfg.Channel.Buffer)
	}
	if !cfg.Renderer.AutoPlay {
		t.Error("expected auto_play to keep its default")
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	// Create temporary config file with invalid YAML
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
channel:
  buffer: not a number
  invalid syntax here
`

	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	// Try to load - should error
	cfg := Default()
	err := loadFromFile(cfg, configPath)
	if err == nil {
		t.Error("expected error loading invalid YAML, got nil")
	}
}

func TestLoadFromFileBadDuration(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("renderer:\n  attach_budget: soon\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	if _, err := LoadFile(configPath); err == nil {
		t.Error("expected error for unparseable duration, got nil")
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	err := loadFromFile(cfg, "/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()

	// Just verify it returns a non-empty path
	// Actual path depends on OS
	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}

	// Verify path is absolute
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	// Save current directory
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	// Create temp directory and change to it
	tmpDir := t.TempDir()
	os.Chdir(tmpDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdg"))

	// No config file exists - should return empty
	path := findConfigFile()
	if path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	// Create config.toml in current directory
	configPath := filepath.Join(tmpDir, "config.toml")
	if err := os.WriteFile(configPath, []byte("[channel]\nbuffer = 4\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	// Should find it now
	path = findConfigFile()
	if path == "" {
		t.Error("expected to find config.toml in current directory")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()

	for _, name := range []string{"out.yaml", "out.toml"} {
		path := filepath.Join(tmpDir, "nested", name)
		cfg := Default()
		cfg.Renderer.AttachBudget = Duration(7 * time.Millisecond)
		cfg.Demo.PhysicsAddr = "127.0.0.1:7000"

		if err := cfg.SaveTo(path); err != nil {
			t.Fatalf("%s: save failed: %v", name, err)
		}
		got, err := LoadFile(path)
		if err != nil {
			t.Fatalf("%s: load failed: %v", name, err)
		}
		if got.Renderer.AttachBudget != cfg.Renderer.AttachBudget {
			t.Errorf("%s: expected attach budget %v, got %v", name, cfg.Renderer.AttachBudget.Std(), got.Renderer.AttachBudget.Std())
		}
		if got.Demo.PhysicsAddr != cfg.Demo.PhysicsAddr {
			t.Errorf("%s: expected physics addr %s, got %s", name, cfg.Demo.PhysicsAddr, got.Demo.PhysicsAddr)
		}
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		verify   func(*Config)
		teardown func()
	}{
		{
			name: "debug flag",
			setup: func() {
				*flagDebug = true
			},
			verify: func(cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
			teardown: func() {
				*flagDebug = false
			},
		},
		{
			name: "frames flag",
			setup: func() {
				*flagFrames = 0
			},
			verify: func(cfg *Config) {
				if cfg.Demo.Frames != 0 {
					t.Errorf("expected frames 0, got %d", cfg.Demo.Frames)
				}
			},
			teardown: func() {
				*flagFrames = -1
			},
		},
		{
			name: "size and visuals flags",
			setup: func() {
				*flagSize = 12
				*flagVisuals = true
			},
			verify: func(cfg *Config) {
				if cfg.Demo.SceneSize != 12 {
					t.Errorf("expected scene size 12, got %d", cfg.Demo.SceneSize)
				}
				if !cfg.Renderer.ShowVisuals {
					t.Error("expected show_visuals with visuals flag")
				}
			},
			teardown: func() {
				*flagSize = 0
				*flagVisuals = false
			},
		},
		{
			name: "physics flag",
			setup: func() {
				*flagPhysics = "localhost:9000"
			},
			verify: func(cfg *Config) {
				if cfg.Demo.PhysicsAddr != "localhost:9000" {
					t.Errorf("expected physics addr localhost:9000, got %s", cfg.Demo.PhysicsAddr)
				}
			},
			teardown: func() {
				*flagPhysics = ""
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Setup
			tt.setup()
			defer tt.teardown()

			// Apply flags to default config
			cfg := Default()
			applyFlags(cfg)

			// Verify
			tt.verify(cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
demo:
  scene_size: 40
  frames: 100
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	// Set flag to override config file
	*flagConfig = configPath
	*flagSize = 20
	defer func() {
		*flagConfig = ""
		*flagSize = 0
	}()

	// Load config
	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Size should be from flag (20), not file (40)
	if cfg.Demo.SceneSize != 20 {
		t.Errorf("expected scene size 20 from flag, got %d", cfg.Demo.SceneSize)
	}

	// Frames should be from file (100) since no flag override
	if cfg.Demo.Frames != 100 {
		t.Errorf("expected frames 100 from file, got %d", cfg.Demo.Frames)
	}
}

func TestWatchReloads(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("renderer:\n  show_visuals: false\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, configPath, func(cfg *Config) { reloaded <- cfg })
	}()

	// Give the watcher time to register before writing.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case cfg := <-reloaded:
			if !cfg.Renderer.ShowVisuals {
				continue
			}
			cancel()
			if err := <-done; err != nil {
				t.Errorf("watch returned %v", err)
			}
			return
		case <-tick.C:
			if err := os.WriteFile(configPath, []byte("renderer:\n  show_visuals: true\n"), 0644); err != nil {
				t.Fatalf("failed to rewrite config: %v", err)
			}
		case <-deadline:
			t.Fatal("config change was not picked up")
		}
	}
}
