package api

import (
	"log"
	"net/http"

	"marble-race/internal/config"
	"marble-race/internal/editor"

	"github.com/go-chi/chi/v5"
)

// Server is the HTTP API server with WebSocket support.
// It combines the HTTP router with a WebSocket hub that pushes
// simulation snapshots to connected overlay clients.
type Server struct {
	engine      EngineInterface
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *IPRateLimiter
}

// NewServer creates a new API server with default production configuration.
//
// IMPORTANT: Background workers do NOT start until Start() is called.
// This enables testing by allowing the server to be constructed without
// starting goroutines or opening network listeners.
//
// For testing HTTP endpoints without WebSocket support, use NewRouter() directly.
func NewServer(engine EngineInterface, renderer FrameRenderer, levelsDir string, grid config.GridConfig) *Server {
	s := &Server{
		engine: engine,
		wsHub:  NewWebSocketHub(),
	}

	// Create rate limiter (we track it for cleanup on Stop)
	s.rateLimiter = NewIPRateLimiter(DefaultRateLimitConfig)

	// The engine satisfies the editor's level host, so the editor
	// session shares the engine's level under its lock.
	ed := editor.New(engine, grid)

	// Build router using the factory
	s.router = NewRouter(RouterConfig{
		Engine:      engine,
		Renderer:    renderer,
		Editor:      ed,
		LevelsDir:   levelsDir,
		RateLimiter: s.rateLimiter,
	})

	// WebSocket route needs the wsHub instance, so it can't be part of
	// the generic NewRouter factory.
	s.router.Get("/ws", s.handleWS)

	return s
}

// Start begins the HTTP server AND starts background workers.
// This is the ONLY method that starts goroutines or opens network listeners.
//
// Call this method only once. To stop the server, signal the process.
func (s *Server) Start(addr string) error {
	// Start background workers NOW, not in constructor
	// This is critical for testability - tests can construct the server
	// and use Router() without these workers running.
	go s.wsHub.Run()
	s.wsHub.StartBroadcastLoop(s.engine)

	log.Printf("🌐 API server starting on %s", addr)

	return http.ListenAndServe(addr, s.router)
}

// Router returns the HTTP handler for use with httptest.
// Use this in integration tests instead of calling Start().
func (s *Server) Router() http.Handler {
	return s.router
}

// Stop performs graceful shutdown of background workers.
// Call this before process exit to ensure clean cleanup.
func (s *Server) Stop() {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	// Open WebSocket connections are closed when the process exits.
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	s.wsHub.HandleWebSocket(w, r)
}
