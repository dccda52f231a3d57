// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for all simulation and server settings.
//
// Out-of-range values are clamped here, at the configuration boundary, so
// invalid state never reaches the simulation.
package config

import (
	"os"
	"strconv"
)

// =============================================================================
// CANVAS CONFIGURATION
// =============================================================================

// VideoConfig holds canvas/frame settings shared by the race engine and the
// frame renderer. FPS doubles as the engine tick rate.
type VideoConfig struct {
	Width  int
	Height int
	FPS    int
}

// DefaultVideo returns the default canvas configuration.
func DefaultVideo() VideoConfig {
	return VideoConfig{
		Width:  800,
		Height: 800,
		FPS:    60,
	}
}

// VideoFromEnv returns canvas configuration with environment overrides.
func VideoFromEnv() VideoConfig {
	cfg := DefaultVideo()

	if w := getEnvInt("CANVAS_WIDTH", 0); w > 0 {
		cfg.Width = w
	}
	if h := getEnvInt("CANVAS_HEIGHT", 0); h > 0 {
		cfg.Height = h
	}
	if fps := getEnvInt("TICK_FPS", 0); fps > 0 {
		cfg.FPS = fps
	}

	return cfg
}

// =============================================================================
// SIMULATION CONFIGURATION
// =============================================================================

// SimConfig holds the race parameters locked in when a race starts.
// Slider ranges from the UI are enforced by Clamped.
type SimConfig struct {
	Gravity    float64 `json:"gravity"`    // downward acceleration, px/s^2
	Elasticity float64 `json:"elasticity"` // marble bounciness (values > 1 are super bouncy)
	Friction   float64 `json:"friction"`   // marble surface friction
	TimeLimit  float64 `json:"timeLimit"`  // race timeout in seconds
	Speed      float64 `json:"speed"`      // simulation speed multiplier over the fixed frame rate

	EmissionRate float64 `json:"emissionRate"` // marbles per second
	MarbleCount  int     `json:"marbleCount"`  // total marbles to emit
	BaseRadius   float64 `json:"baseRadius"`   // nominal marble radius in px

	RandomShape bool `json:"randomShape"` // randomize shape kind per marble
	RandomColor bool `json:"randomColor"` // randomize color per marble
	RandomSize  bool `json:"randomSize"`  // randomize radius per marble (80% to 120% of base)
}

// DefaultSim returns the default simulation configuration.
func DefaultSim() SimConfig {
	return SimConfig{
		Gravity:      600.0,
		Elasticity:   1.1,
		Friction:     0.3,
		TimeLimit:    60,
		Speed:        0.75,
		EmissionRate: 20,
		MarbleCount:  100,
		BaseRadius:   6,
		RandomShape:  true,
		RandomColor:  true,
		RandomSize:   true,
	}
}

// SimFromEnv returns simulation configuration with environment overrides.
func SimFromEnv() SimConfig {
	cfg := DefaultSim()

	if g := getEnvFloat("SIM_GRAVITY", -1); g >= 0 {
		cfg.Gravity = g
	}
	if e := getEnvFloat("SIM_ELASTICITY", -1); e >= 0 {
		cfg.Elasticity = e
	}
	if t := getEnvFloat("SIM_TIME_LIMIT", -1); t >= 0 {
		cfg.TimeLimit = t
	}
	if s := getEnvFloat("SIM_SPEED", -1); s >= 0 {
		cfg.Speed = s
	}
	if r := getEnvFloat("SIM_EMISSION_RATE", -1); r >= 0 {
		cfg.EmissionRate = r
	}
	if c := getEnvInt("SIM_MARBLE_COUNT", 0); c > 0 {
		cfg.MarbleCount = c
	}
	if v := os.Getenv("SIM_RANDOM_SHAPE"); v == "false" {
		cfg.RandomShape = false
	}
	if v := os.Getenv("SIM_RANDOM_COLOR"); v == "false" {
		cfg.RandomColor = false
	}
	if v := os.Getenv("SIM_RANDOM_SIZE"); v == "false" {
		cfg.RandomSize = false
	}

	return cfg.Clamped()
}

// Clamped returns a copy with every parameter forced into its slider range.
func (c SimConfig) Clamped() SimConfig {
	c.Gravity = clampFloat(c.Gravity, 200, 1200)
	c.Elasticity = clampFloat(c.Elasticity, 0.5, 2.0)
	c.Friction = clampFloat(c.Friction, 0, 1)
	c.TimeLimit = clampFloat(c.TimeLimit, 10, 120)
	c.Speed = clampFloat(c.Speed, 0.25, 1.5)
	c.EmissionRate = clampFloat(c.EmissionRate, 1, 200)
	c.MarbleCount = clampInt(c.MarbleCount, 1, 500)
	c.BaseRadius = clampFloat(c.BaseRadius, 2, 20)
	return c
}

// =============================================================================
// EDITOR GRID CONFIGURATION
// =============================================================================

// GridConfig holds editor grid snapping settings.
type GridConfig struct {
	CellSize float64
	Enabled  bool
}

// DefaultGrid returns the default grid configuration.
func DefaultGrid() GridConfig {
	return GridConfig{
		CellSize: 20,
		Enabled:  true,
	}
}

// GridFromEnv returns grid configuration with environment overrides.
func GridFromEnv() GridConfig {
	cfg := DefaultGrid()

	if s := getEnvFloat("GRID_CELL_SIZE", -1); s > 0 {
		cfg.CellSize = s
	}
	if os.Getenv("GRID_ENABLED") == "false" {
		cfg.Enabled = false
	}

	return cfg
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port      int
	DebugPort int // pprof + prometheus metrics
	LevelPath string
	LevelsDir string
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:      3000,
		DebugPort: 6060,
		LevelPath: "levels/default.json",
		LevelsDir: "levels",
	}
}

// ServerFromEnv returns server configuration with environment overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if p := getEnvInt("DEBUG_PORT", 0); p > 0 {
		cfg.DebugPort = p
	}
	if v := os.Getenv("LEVEL_PATH"); v != "" {
		cfg.LevelPath = v
	}
	if v := os.Getenv("LEVELS_DIR"); v != "" {
		cfg.LevelsDir = v
	}

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Video  VideoConfig
	Sim    SimConfig
	Grid   GridConfig
	Server ServerConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Video:  VideoFromEnv(),
		Sim:    SimFromEnv(),
		Grid:   GridFromEnv(),
		Server: ServerFromEnv(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
