// =============================================================================
// MARBLE RACE - HEADLESS RUNNER
// =============================================================================
// Runs a single race to completion without the HTTP server or overlay:
// - Loads a level file (or the built-in funnel course)
// - Drives the simulation as fast as the CPU allows
// - Prints the final standings and optionally writes the last frame as PNG
//
// USAGE:
//   go run ./cmd/race -level levels/default.json -marbles 50
// =============================================================================
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"marble-race/internal/api"
	"marble-race/internal/config"
	"marble-race/internal/level"
	"marble-race/internal/race"
	"marble-race/internal/render"

	"github.com/joho/godotenv"
)

func main() {
	levelPath := flag.String("level", "", "level file to race on (default: built-in funnel)")
	marbles := flag.Int("marbles", 0, "number of marbles (default: config)")
	rate := flag.Float64("rate", 0, "emission rate in marbles/s (default: config)")
	gravity := flag.Float64("gravity", 0, "gravity in px/s² (default: config)")
	timeLimit := flag.Float64("time", 0, "race time limit in seconds (default: config)")
	framePath := flag.String("frame", "", "write the final frame as PNG to this path")
	eventPath := flag.String("events", "", "write a JSONL event log to this path")
	flag.Parse()

	if err := godotenv.Load(".env"); err == nil {
		log.Println("✅ Loaded environment from .env")
	}

	appConfig := config.Load()
	videoCfg := appConfig.Video
	simCfg := appConfig.Sim

	if *marbles > 0 {
		simCfg.MarbleCount = *marbles
	}
	if *rate > 0 {
		simCfg.EmissionRate = *rate
	}
	if *gravity > 0 {
		simCfg.Gravity = *gravity
	}
	if *timeLimit > 0 {
		simCfg.TimeLimit = *timeLimit
	}
	simCfg = simCfg.Clamped()

	var lvl *level.Level
	if *levelPath != "" {
		loaded, err := level.Load(*levelPath)
		if err != nil {
			log.Fatalf("Failed to load level %s: %v", *levelPath, err)
		}
		lvl = loaded
	} else {
		lvl = level.Funnel(videoCfg.Width)
	}

	var eventLog *race.EventLog
	if *eventPath != "" {
		eventLog = race.NewEventLog()
		if err := eventLog.Start(*eventPath); err != nil {
			log.Fatalf("Failed to open event log: %v", err)
		}
		defer eventLog.Stop()
	}

	engine := race.NewEngine(videoCfg, simCfg, lvl, eventLog)

	log.Printf("🏁 Racing %d marbles on %q (%.0f/s, gravity %.0f, limit %.0fs)",
		simCfg.MarbleCount, lvl.Name, simCfg.EmissionRate, simCfg.Gravity, simCfg.TimeLimit)

	if err := engine.StartRace(); err != nil {
		log.Fatalf("Failed to start race: %v", err)
	}

	// Drive ticks directly instead of starting the real-time loop.
	// The tick budget is the time limit plus slack for the final scan.
	engine.SetTickTimer(api.RecordTick)

	maxTicks := int(simCfg.TimeLimit*float64(videoCfg.FPS)) + videoCfg.FPS
	for i := 0; i < maxTicks; i++ {
		engine.Tick()
		if engine.Snapshot().State == race.StateFinished {
			break
		}
	}

	snap := engine.Snapshot()
	if snap.State != race.StateFinished {
		log.Fatalf("Race did not finish within %d ticks", maxTicks)
	}

	fmt.Printf("\n🏆 Standings (%.1fs elapsed):\n", snap.Elapsed)
	for _, entry := range snap.Rank {
		tied := ""
		if entry.TiedForLast {
			tied = " (tied)"
		}
		fmt.Printf("%3d. %-24s %s%s\n", entry.Place, entry.Name, entry.Color, tied)
	}

	if *framePath != "" {
		renderer := render.New(videoCfg, appConfig.Grid)
		png, err := renderer.RenderPNG(snap)
		if err != nil {
			log.Fatalf("Failed to render frame: %v", err)
		}
		if err := os.WriteFile(*framePath, png, 0644); err != nil {
			log.Fatalf("Failed to write frame: %v", err)
		}
		log.Printf("🖼️ Frame written to %s", *framePath)
	}
}
