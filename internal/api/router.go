package api

import (
	"marble-race/internal/config"
	"marble-race/internal/editor"
	"marble-race/internal/level"
	"marble-race/internal/race"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// EngineInterface defines the race engine methods used by the API.
// This interface enables mocking for tests without spinning up the full
// simulation loop. Keep this minimal - only include methods the API
// layer actually calls.
type EngineInterface interface {
	// Snapshot returns a copy of the current simulation state
	Snapshot() race.Snapshot
	// StartRace locks the configuration and begins emitting marbles
	StartRace() error
	// ResetRace returns a finished race to the ready state
	ResetRace() error
	// EnterEdit pauses the simulation and enters the level editor
	EnterEdit() error
	// ExitEdit leaves the editor and returns to the ready state
	ExitEdit() error
	// StartPreview runs a capped emission preview while editing
	StartPreview() error
	// StopPreview clears preview marbles
	StopPreview() error
	// SetSim replaces the pending simulation configuration
	SetSim(sim config.SimConfig) error
	// Sim returns the pending simulation configuration
	Sim() config.SimConfig
	// EditLevel runs fn against the level under the engine lock
	EditLevel(fn func(*level.Level) error) error
	// ReadLevel runs fn read-only against the level under the engine lock
	ReadLevel(fn func(*level.Level))
	// ReloadLevel swaps in a different level
	ReloadLevel(lvl *level.Level)
	// EventStats returns event log statistics
	EventStats() map[string]interface{}
}

// FrameRenderer renders a snapshot to a PNG image.
// Implemented by render.Renderer; mockable for router tests.
type FrameRenderer interface {
	RenderPNG(snap race.Snapshot) ([]byte, error)
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
// This struct is designed for dependency injection and testability.
//
// Example usage in tests:
//
//	cfg := api.RouterConfig{
//	    Engine:   engine,
//	    Renderer: renderer,
//	    RateLimitConfig: &api.RateLimitConfig{
//	        RequestsPerSecond: 1000, // High limit for tests
//	        Burst:             1000,
//	    },
//	}
//	router := api.NewRouter(cfg)
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Engine is the race engine (required)
	Engine EngineInterface

	// Renderer produces PNG frames for /api/frame. Optional; the
	// endpoint returns 503 when nil.
	Renderer FrameRenderer

	// Editor is the level editor session. Optional; the /api/editor
	// routes are only mounted when present.
	Editor *editor.Editor

	// LevelsDir is the directory used by the level save/load endpoints.
	// If empty, defaults to "levels".
	LevelsDir string

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is optional configuration for the rate limiter.
	// Only used if RateLimiter is nil. If both are nil, uses DefaultRateLimitConfig.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, uses localhost-only defaults.
	CORSOrigins []string

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

// routerHandlers holds the handler functions for the router.
// This is used internally to pass handlers to route setup.
type routerHandlers struct {
	engine    EngineInterface
	renderer  FrameRenderer
	levelsDir string
	editor    *editorHandlers // nil when no editor is mounted
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// IMPORTANT: This function is PURE - it has no side effects:
//   - No goroutines are started (except the rate limiter cleanup when
//     no limiter is injected)
//   - No network listeners are opened
//
// This makes it safe to use in tests with httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - Order matters!
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	// Rate limiting (BEFORE CORS to reject early and save CPU)
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	// CORS configuration
	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{
			"http://localhost:*",
			"http://127.0.0.1:*",
		}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	levelsDir := cfg.LevelsDir
	if levelsDir == "" {
		levelsDir = "levels"
	}

	// Create handlers struct
	h := &routerHandlers{
		engine:    cfg.Engine,
		renderer:  cfg.Renderer,
		levelsDir: levelsDir,
	}
	if cfg.Editor != nil {
		h.editor = newEditorHandlers(cfg.Editor, cfg.Engine)
	}

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Simulation state
		r.Get("/state", h.handleGetState)
		r.Get("/ranks", h.handleGetRanks)
		r.Get("/stats", h.handleGetStats)
		r.Get("/frame", h.handleGetFrame)

		// Race control
		r.Post("/race/start", h.handleRaceStart)
		r.Post("/race/reset", h.handleRaceReset)
		r.Get("/race/config", h.handleGetConfig)
		r.Post("/race/config", h.handleSetConfig)

		// Editor mode
		r.Post("/edit/enter", h.handleEditEnter)
		r.Post("/edit/exit", h.handleEditExit)
		r.Post("/preview/start", h.handlePreviewStart)
		r.Post("/preview/stop", h.handlePreviewStop)

		// Levels
		r.Get("/levels", h.handleListLevels)
		r.Get("/level", h.handleGetLevel)
		r.Post("/level", h.handlePutLevel)
		r.Put("/level", h.handlePutLevel)
		r.Post("/level/save", h.handleSaveLevel)
		r.Post("/level/load", h.handleLoadLevel)

		// Level editor session
		if h.editor != nil {
			r.Route("/editor", h.editor.routes)
		}
	})

	return r
}
