package race

import (
	"errors"
	"testing"
	"time"

	"marble-race/internal/config"
	"marble-race/internal/geom"
	"marble-race/internal/level"
)

func fastSim() config.SimConfig {
	cfg := config.DefaultSim()
	cfg.Gravity = 1200
	cfg.TimeLimit = 10
	cfg.Speed = 1.5
	cfg.EmissionRate = 200
	return cfg
}

// openLevel has a wall off to the side so the emitter's marbles free-fall
// straight past the bottom bound.
func openLevel() *level.Level {
	l := level.New("open")
	l.AddWall(geom.Point{X: 0, Y: 0}, geom.Point{X: 100, Y: 0})
	l.Emitter.Pos = geom.Point{X: 400, Y: 80}
	return l
}

// floorLevel traps every marble on a full-width floor so no marble can
// ever finish.
func floorLevel() *level.Level {
	l := level.New("floor")
	l.AddWall(geom.Point{X: -100, Y: 700}, geom.Point{X: 900, Y: 700})
	return l
}

func newTestEngine(lvl *level.Level, sim config.SimConfig) *Engine {
	return NewEngine(config.DefaultVideo(), sim, lvl, nil)
}

func TestSingleMarbleFinishes(t *testing.T) {
	sim := fastSim()
	sim.MarbleCount = 1
	e := newTestEngine(openLevel(), sim)

	if err := e.StartRace(); err != nil {
		t.Fatalf("StartRace: %v", err)
	}

	for i := 0; i < 2000; i++ {
		e.Tick()
		if e.Snapshot().State == StateFinished {
			break
		}
	}

	snap := e.Snapshot()
	if snap.State != StateFinished {
		t.Fatalf("race did not finish: state %s, elapsed %.2f", snap.State, snap.Elapsed)
	}
	if len(snap.Rank) != 1 {
		t.Fatalf("rank length %d, want 1", len(snap.Rank))
	}
	if snap.Rank[0].ID != 1 || snap.Rank[0].Place != 1 {
		t.Errorf("rank entry: %+v", snap.Rank[0])
	}
	if snap.Rank[0].TiedForLast {
		t.Error("clean finish flagged tied_for_last")
	}
	if snap.Active != 0 {
		t.Errorf("active marbles after finish: %d", snap.Active)
	}
}

func TestRaceCompletionCount(t *testing.T) {
	sim := fastSim()
	sim.MarbleCount = 5
	e := newTestEngine(openLevel(), sim)

	if err := e.StartRace(); err != nil {
		t.Fatalf("StartRace: %v", err)
	}
	for i := 0; i < 5000 && e.Snapshot().State != StateFinished; i++ {
		e.Tick()
	}

	snap := e.Snapshot()
	if snap.State != StateFinished {
		t.Fatal("race did not complete")
	}
	if len(snap.Rank) != 5 {
		t.Fatalf("rank length %d, want 5", len(snap.Rank))
	}
	seen := make(map[int]bool)
	for i, r := range snap.Rank {
		if r.Place != i+1 {
			t.Errorf("entry %d has place %d", i, r.Place)
		}
		if seen[r.ID] {
			t.Errorf("marble %d ranked twice", r.ID)
		}
		seen[r.ID] = true
		if r.TiedForLast {
			t.Errorf("marble %d tied_for_last on a completed race", r.ID)
		}
	}
}

func TestRaceTimeoutTiesRemaining(t *testing.T) {
	sim := fastSim()
	sim.MarbleCount = 3
	e := newTestEngine(floorLevel(), sim)

	if err := e.StartRace(); err != nil {
		t.Fatalf("StartRace: %v", err)
	}
	// Time limit is 10s of frame time at 60 FPS.
	for i := 0; i < 700 && e.Snapshot().State != StateFinished; i++ {
		e.Tick()
	}

	snap := e.Snapshot()
	if snap.State != StateFinished {
		t.Fatal("race did not time out")
	}
	if len(snap.Rank) != 3 {
		t.Fatalf("rank length %d, want 3", len(snap.Rank))
	}
	seen := make(map[int]bool)
	for _, r := range snap.Rank {
		if !r.TiedForLast {
			t.Errorf("marble %d not flagged tied_for_last", r.ID)
		}
		if seen[r.ID] {
			t.Errorf("marble %d present twice", r.ID)
		}
		seen[r.ID] = true
	}
	if snap.Active != 0 {
		t.Errorf("active marbles after timeout: %d", snap.Active)
	}
}

func TestStateTransitionGuards(t *testing.T) {
	e := newTestEngine(openLevel(), fastSim())

	if err := e.ResetRace(); !errors.Is(err, ErrBadTransition) {
		t.Errorf("reset from ready: got %v", err)
	}
	if err := e.ExitEdit(); !errors.Is(err, ErrBadTransition) {
		t.Errorf("exit edit from ready: got %v", err)
	}
	if err := e.StartPreview(); !errors.Is(err, ErrBadTransition) {
		t.Errorf("preview from ready: got %v", err)
	}

	if err := e.StartRace(); err != nil {
		t.Fatalf("StartRace: %v", err)
	}
	if err := e.StartRace(); !errors.Is(err, ErrBadTransition) {
		t.Errorf("double start: got %v", err)
	}
	if err := e.SetSim(fastSim()); !errors.Is(err, ErrBadTransition) {
		t.Errorf("configure while running: got %v", err)
	}
}

func TestResetAfterFinish(t *testing.T) {
	sim := fastSim()
	sim.MarbleCount = 1
	e := newTestEngine(openLevel(), sim)

	if err := e.StartRace(); err != nil {
		t.Fatalf("StartRace: %v", err)
	}
	for i := 0; i < 2000 && e.Snapshot().State != StateFinished; i++ {
		e.Tick()
	}
	if e.Snapshot().State != StateFinished {
		t.Fatal("race did not finish")
	}

	if err := e.ResetRace(); err != nil {
		t.Fatalf("ResetRace: %v", err)
	}
	snap := e.Snapshot()
	if snap.State != StateReady {
		t.Errorf("state after reset: %s", snap.State)
	}
	if len(snap.Rank) != 0 || snap.Active != 0 || snap.Emitted != 0 {
		t.Errorf("reset left state behind: %+v", snap)
	}
	// A fresh race must start cleanly after reset.
	if err := e.StartRace(); err != nil {
		t.Errorf("restart after reset: %v", err)
	}
}

func TestEditModeRoundTrip(t *testing.T) {
	e := newTestEngine(openLevel(), fastSim())

	if err := e.EnterEdit(); err != nil {
		t.Fatalf("EnterEdit: %v", err)
	}
	if e.Snapshot().State != StateEdit {
		t.Fatal("not in edit mode")
	}

	// Geometry edits go through the engine so the world stays in sync.
	err := e.EditLevel(func(l *level.Level) error {
		l.AddWall(geom.Point{X: 0, Y: 400}, geom.Point{X: 800, Y: 400})
		return nil
	})
	if err != nil {
		t.Fatalf("EditLevel: %v", err)
	}
	if got := len(e.Snapshot().Walls); got != 2 {
		t.Errorf("walls in snapshot: %d, want 2", got)
	}

	if err := e.ExitEdit(); err != nil {
		t.Fatalf("ExitEdit: %v", err)
	}
	if e.Snapshot().State != StateReady {
		t.Error("exit edit did not return to ready")
	}
}

func TestEnterEditDiscardsRace(t *testing.T) {
	sim := fastSim()
	sim.MarbleCount = 10
	e := newTestEngine(floorLevel(), sim)

	if err := e.StartRace(); err != nil {
		t.Fatalf("StartRace: %v", err)
	}
	for i := 0; i < 120; i++ {
		e.Tick()
	}
	if e.Snapshot().Active == 0 {
		t.Fatal("expected marbles in flight")
	}

	if err := e.EnterEdit(); err != nil {
		t.Fatalf("EnterEdit: %v", err)
	}
	snap := e.Snapshot()
	if snap.Active != 0 || len(snap.Rank) != 0 {
		t.Errorf("edit mode kept race state: active=%d rank=%d", snap.Active, len(snap.Rank))
	}
}

func TestPreviewCapsPool(t *testing.T) {
	e := newTestEngine(openLevel(), fastSim())

	if err := e.EnterEdit(); err != nil {
		t.Fatalf("EnterEdit: %v", err)
	}
	if err := e.StartPreview(); err != nil {
		t.Fatalf("StartPreview: %v", err)
	}

	snap := e.Snapshot()
	if !snap.Preview {
		t.Fatal("preview flag not set")
	}
	if snap.Pending != PreviewMarbleCap {
		t.Errorf("preview pool: %d, want %d", snap.Pending, PreviewMarbleCap)
	}

	for i := 0; i < 60; i++ {
		e.Tick()
	}
	if e.Snapshot().Emitted == 0 {
		t.Error("preview emitted nothing")
	}

	if err := e.StopPreview(); err != nil {
		t.Fatalf("StopPreview: %v", err)
	}
	snap = e.Snapshot()
	if snap.Preview || snap.Active != 0 {
		t.Errorf("stop preview left state: %+v", snap)
	}
}

func TestSnapshotGeometry(t *testing.T) {
	lvl := level.New("geo")
	lvl.AddWall(geom.Point{X: 1, Y: 2}, geom.Point{X: 3, Y: 4})
	lvl.AddPlatform(geom.Point{X: 100, Y: 200}, 50, 2)
	lvl.AddConveyor(geom.Point{X: 0, Y: 10}, geom.Point{X: 20, Y: 10}, 80)

	e := newTestEngine(lvl, fastSim())
	snap := e.Snapshot()

	if len(snap.Walls) != 1 || snap.Walls[0] != (WallSnapshot{X1: 1, Y1: 2, X2: 3, Y2: 4}) {
		t.Errorf("walls: %+v", snap.Walls)
	}
	if len(snap.Platforms) != 1 || snap.Platforms[0].Length != 50 {
		t.Errorf("platforms: %+v", snap.Platforms)
	}
	if len(snap.Conveyors) != 1 || snap.Conveyors[0].Speed != 80 {
		t.Errorf("conveyors: %+v", snap.Conveyors)
	}
	if snap.LevelName != "geo" {
		t.Errorf("level name: %q", snap.LevelName)
	}
}

func TestTickTimerObservesEveryTick(t *testing.T) {
	e := newTestEngine(openLevel(), fastSim())

	var durations []time.Duration
	e.SetTickTimer(func(d time.Duration) {
		durations = append(durations, d)
	})

	if err := e.StartRace(); err != nil {
		t.Fatalf("StartRace: %v", err)
	}
	for i := 0; i < 5; i++ {
		e.Tick()
	}

	if len(durations) != 5 {
		t.Fatalf("timer fired %d times, want 5", len(durations))
	}
	for i, d := range durations {
		if d < 0 {
			t.Errorf("tick %d duration negative: %v", i, d)
		}
	}
}
