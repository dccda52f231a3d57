package main

import (
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"marble-race/internal/api"
	"marble-race/internal/config"
	"marble-race/internal/level"
	"marble-race/internal/race"
	"marble-race/internal/render"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("🏁 ================================")
	log.Println("🏁  MARBLE RACE - SERVER")
	log.Println("🏁 ================================")

	// Load centralized configuration (SSOT - Single Source of Truth)
	appConfig := config.Load()
	videoCfg := appConfig.Video
	simCfg := appConfig.Sim
	serverCfg := appConfig.Server

	log.Printf("🎥 Video: %dx%d @ %d FPS", videoCfg.Width, videoCfg.Height, videoCfg.FPS)
	log.Printf("⚙️ Sim: gravity %.0f, %d marbles, %.0f/s emission, %.0fs limit",
		simCfg.Gravity, simCfg.MarbleCount, simCfg.EmissionRate, simCfg.TimeLimit)

	// Load the level, falling back to the built-in funnel course
	lvl, err := level.Load(serverCfg.LevelPath)
	if err != nil {
		log.Printf("📂 No level at %s (%v), using built-in funnel", serverCfg.LevelPath, err)
		lvl = level.Funnel(videoCfg.Width)
	} else {
		log.Printf("📂 Level loaded: %s (%d walls, %d platforms, %d conveyors)",
			lvl.Name, len(lvl.Walls), len(lvl.Platforms), len(lvl.Conveyors))
	}

	// Start event log
	eventLog := race.NewEventLog()
	eventLogPath := getEnvWithDefault("EVENT_LOG_PATH", "events.jsonl")
	if err := eventLog.Start(eventLogPath); err != nil {
		log.Printf("⚠️ Event log disabled: %v", err)
		eventLog = nil
	} else {
		log.Printf("📝 Event log: %s", eventLogPath)
	}

	// Start debug server (pprof + metrics, localhost only)
	if os.Getenv("DISABLE_DEBUG_SERVER") != "true" {
		debugCfg := api.DefaultObservabilityConfig()
		debugCfg.ListenAddr = "127.0.0.1:" + strconv.Itoa(serverCfg.DebugPort)
		if err := api.StartDebugServer(debugCfg); err != nil {
			log.Printf("⚠️ Debug server disabled: %v", err)
		}
	}

	// Create the simulation engine and frame renderer
	engine := race.NewEngine(videoCfg, simCfg, lvl, eventLog)
	engine.SetTickTimer(api.RecordTick)
	renderer := render.New(videoCfg, appConfig.Grid)

	// Create API server (hosts the level editor session over the engine)
	server := api.NewServer(engine, renderer, serverCfg.LevelsDir, appConfig.Grid)

	// Start simulation loop
	engine.Start()
	log.Println("✅ Race engine started")

	// Start API server in goroutine
	go func() {
		addr := ":" + strconv.Itoa(serverCfg.Port)
		log.Printf("🌐 API on http://localhost%s/api", addr)
		log.Printf("📺 Overlay feed: ws://localhost%s/ws", addr)

		if err := server.Start(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")
	server.Stop()
	engine.Stop()
	if eventLog != nil {
		eventLog.Stop()
	}
	log.Println("👋 Goodbye!")
}

func getEnvWithDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
