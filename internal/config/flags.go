package config

import "flag"

var (
	flagConfig  = flag.String("config", "", "Path to config file (.yaml or .toml)")
	flagDebug   = flag.Bool("debug", false, "Enable debug logging")
	flagFrames  = flag.Int("frames", -1, "Frames to run, 0 runs until interrupted")
	flagSize    = flag.Int("size", 0, "Number of nodes in the demo scene")
	flagVisuals = flag.Bool("visuals", false, "Show collider wireframes")
	flagPhysics = flag.String("physics", "", "Address of the physics side")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagFrames >= 0 {
		cfg.Demo.Frames = *flagFrames
	}
	if *flagSize > 0 {
		cfg.Demo.SceneSize = *flagSize
	}
	if *flagVisuals {
		cfg.Renderer.ShowVisuals = true
	}
	if *flagPhysics != "" {
		cfg.Demo.PhysicsAddr = *flagPhysics
	}
}
