package race

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"marble-race/internal/config"
	"marble-race/internal/level"
	"marble-race/internal/physics"
)

// State is the engine's top-level mode. Exactly one is active.
type State string

const (
	StateReady    State = "ready"
	StateRunning  State = "running"
	StateFinished State = "finished"
	StateEdit     State = "edit"
)

// ErrBadTransition is returned when a mode command is not legal from the
// current state.
var ErrBadTransition = errors.New("race: invalid state transition")

// PreviewMarbleCap bounds the test-run pool in edit mode.
const PreviewMarbleCap = 20

// Engine owns the race simulation: the physics world, the emission
// scheduler, the active marble set and the finish ranking. All mutation
// happens under mu; the ticker goroutine is the only steady-state writer.
type Engine struct {
	mu sync.RWMutex

	video  config.VideoConfig
	sim    config.SimConfig // live slider values
	locked config.SimConfig // values locked in at race start

	lvl   *level.Level
	world *physics.World
	sched *Scheduler

	marbles []*Marble // active, insertion-ordered
	rank    []*Marble // finished, in finish order

	state   State
	preview bool
	elapsed float64

	running   bool
	ticker    *time.Ticker
	stopChan  chan struct{}
	tickCount uint64

	rng      *rand.Rand
	eventLog *EventLog

	// Called after every tick with the fresh snapshot, outside no lock
	// promises: runs on the ticker goroutine while mu is held.
	onTick func(Snapshot)

	// Called after every tick with the time the tick took. Same caveats
	// as onTick.
	onTickTime func(time.Duration)
}

// NewEngine creates an engine over the given level in the ready state.
func NewEngine(video config.VideoConfig, sim config.SimConfig, lvl *level.Level, eventLog *EventLog) *Engine {
	if eventLog == nil {
		eventLog = NewEventLog()
	}
	e := &Engine{
		video:    video,
		sim:      sim.Clamped(),
		lvl:      lvl,
		world:    physics.NewWorld(0),
		state:    StateReady,
		stopChan: make(chan struct{}),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		eventLog: eventLog,
	}
	e.world.Rebuild(lvl)
	return e
}

// SetTickCallback registers a per-tick snapshot consumer.
func (e *Engine) SetTickCallback(fn func(Snapshot)) {
	e.mu.Lock()
	e.onTick = fn
	e.mu.Unlock()
}

// SetTickTimer registers a per-tick duration consumer for metrics.
func (e *Engine) SetTickTimer(fn func(time.Duration)) {
	e.mu.Lock()
	e.onTickTime = fn
	e.mu.Unlock()
}

// Start begins the tick loop at the configured frame rate.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.mu.Unlock()

	e.ticker = time.NewTicker(time.Second / time.Duration(e.video.FPS))

	go func() {
		for {
			select {
			case <-e.ticker.C:
				e.tick()
			case <-e.stopChan:
				return
			}
		}
	}()

	log.Printf("🏁 Race engine started at %d FPS", e.video.FPS)
}

// Stop stops the tick loop.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return
	}

	e.running = false
	if e.ticker != nil {
		e.ticker.Stop()
	}
	close(e.stopChan)
	log.Println("🛑 Race engine stopped")
}

// =============================================================================
// MODE TRANSITIONS
// =============================================================================

// StartRace locks in the current configuration, regenerates the marble
// pool and begins the race. Legal only from ready.
func (e *Engine) StartRace() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateReady {
		return fmt.Errorf("%w: start from %s", ErrBadTransition, e.state)
	}

	e.locked = e.sim.Clamped()
	e.world.SetGravity(e.locked.Gravity)
	e.sched = NewScheduler(GeneratePool(e.locked.MarbleCount, e.locked, e.rng))
	e.marbles = nil
	e.rank = nil
	e.elapsed = 0
	e.state = StateRunning

	e.eventLog.EmitSimple(EventTypeRaceStart, e.tickCount, RaceStartPayload{
		Level:       e.lvl.Name,
		MarbleCount: e.locked.MarbleCount,
		Gravity:     e.locked.Gravity,
		Elasticity:  e.locked.Elasticity,
		TimeLimit:   e.locked.TimeLimit,
		Rate:        e.locked.EmissionRate,
	})
	log.Printf("🏁 Race started: %d marbles on %q", e.locked.MarbleCount, e.lvl.Name)
	return nil
}

// ResetRace tears down the finished race and rebuilds the world from the
// level. Legal only from finished.
func (e *Engine) ResetRace() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateFinished {
		return fmt.Errorf("%w: reset from %s", ErrBadTransition, e.state)
	}

	e.resetSim()
	e.state = StateReady
	e.eventLog.EmitSimple(EventTypeRaceReset, e.tickCount, nil)
	return nil
}

// EnterEdit switches to edit mode: gravity is zeroed and any race in
// progress is discarded. Legal from ready and running.
func (e *Engine) EnterEdit() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateReady && e.state != StateRunning {
		return fmt.Errorf("%w: edit from %s", ErrBadTransition, e.state)
	}

	e.resetSim()
	e.world.SetGravity(0)
	e.preview = false
	e.state = StateEdit
	e.eventLog.EmitSimple(EventTypeEditEnter, e.tickCount, nil)
	return nil
}

// ExitEdit returns to ready and fully resets the simulation; any preview
// progress is discarded.
func (e *Engine) ExitEdit() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateEdit {
		return fmt.Errorf("%w: exit edit from %s", ErrBadTransition, e.state)
	}

	e.preview = false
	e.resetSim()
	e.state = StateReady
	e.eventLog.EmitSimple(EventTypeEditExit, e.tickCount, nil)
	return nil
}

// StartPreview begins an edit-mode test run with a capped marble pool.
func (e *Engine) StartPreview() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateEdit {
		return fmt.Errorf("%w: preview from %s", ErrBadTransition, e.state)
	}
	if e.preview {
		return nil
	}

	count := e.lvl.Emitter.Count
	if count > PreviewMarbleCap {
		count = PreviewMarbleCap
	}
	cfg := e.sim.Clamped()
	e.world.SetGravity(cfg.Gravity)
	e.sched = NewScheduler(GeneratePool(count, cfg, e.rng))
	e.preview = true
	return nil
}

// StopPreview discards the test run and freezes the world again.
func (e *Engine) StopPreview() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateEdit {
		return fmt.Errorf("%w: preview from %s", ErrBadTransition, e.state)
	}
	if !e.preview {
		return nil
	}

	e.preview = false
	e.resetSim()
	e.world.SetGravity(0)
	return nil
}

// resetSim removes every marble, clears ranking and emission state and
// rebuilds the static world from the level. Callers hold mu.
func (e *Engine) resetSim() {
	for _, m := range e.marbles {
		e.world.RemoveMarble(m.Body)
	}
	e.marbles = nil
	e.rank = nil
	e.sched = nil
	e.elapsed = 0
	e.world.Rebuild(e.lvl)
}

// =============================================================================
// CONFIGURATION AND LEVEL ACCESS
// =============================================================================

// SetSim replaces the live slider values, clamped to their legal ranges.
// Legal while ready or in edit mode; a running race keeps its locked-in
// values.
func (e *Engine) SetSim(sim config.SimConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateReady && e.state != StateEdit {
		return fmt.Errorf("%w: configure from %s", ErrBadTransition, e.state)
	}
	e.sim = sim.Clamped()
	return nil
}

// Sim returns the live slider values.
func (e *Engine) Sim() config.SimConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sim
}

// EditLevel runs fn against the level under the engine lock and rebuilds
// the physics world afterwards. This is the only mutation path for the
// level while the engine owns it.
func (e *Engine) EditLevel(fn func(*level.Level) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := fn(e.lvl); err != nil {
		return err
	}
	e.world.Rebuild(e.lvl)
	return nil
}

// ReadLevel runs fn against the level under the read lock.
func (e *Engine) ReadLevel(fn func(*level.Level)) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn(e.lvl)
}

// ReloadLevel swaps in a new level and discards all simulation state.
func (e *Engine) ReloadLevel(lvl *level.Level) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.lvl = lvl
	e.resetSim()
	if e.state != StateEdit {
		e.state = StateReady
	}
	log.Printf("📂 Level %q loaded: %d walls, %d platforms, %d conveyors",
		lvl.Name, len(lvl.Walls), len(lvl.Platforms), len(lvl.Conveyors))
}

// EventStats returns the event log's counters.
func (e *Engine) EventStats() map[string]interface{} {
	return e.eventLog.GetStats()
}

// =============================================================================
// TICK
// =============================================================================

// tick advances one frame. Only running races and active previews step
// the physics world; the other states hold it frozen.
func (e *Engine) tick() {
	start := time.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.tickCount++

	switch {
	case e.state == StateRunning:
		e.stepRace()
	case e.state == StateEdit && e.preview:
		e.stepPreview()
	}

	if e.onTick != nil {
		e.onTick(e.snapshotLocked())
	}
	if e.onTickTime != nil {
		e.onTickTime(time.Since(start))
	}
}

// Tick advances one frame synchronously. Used by headless runners and
// tests that drive simulated time themselves instead of the ticker.
func (e *Engine) Tick() {
	e.tick()
}

func (e *Engine) stepRace() {
	fps := float64(e.video.FPS)
	dt := e.locked.Speed / fps

	e.world.Step(dt)

	// The emitter contributes geometry and launch speed; rate and count
	// come from the locked configuration.
	em := e.lvl.Emitter
	em.Rate = e.locked.EmissionRate
	for _, m := range e.sched.Tick(dt, em, e.world, e.locked.Elasticity, e.locked.Friction, e.rng) {
		e.marbles = append(e.marbles, m)
		pos := m.Body.Position()
		e.eventLog.EmitSimple(EventTypeMarbleSpawn, e.tickCount, MarbleSpawnPayload{
			MarbleID: m.ID, Name: m.Name, X: pos.X, Y: pos.Y,
		})
	}

	e.elapsed += 1.0 / fps

	// Backward scan so removal keeps the remaining indices stable.
	bound := float64(e.video.Height)
	for i := len(e.marbles) - 1; i >= 0; i-- {
		m := e.marbles[i]
		if m.Body.Position().Y > bound+m.Radius {
			e.finishMarble(i, false)
		}
	}

	// Completion is checked before timeout when both land on one tick.
	switch {
	case len(e.rank) >= e.locked.MarbleCount:
		e.state = StateFinished
		e.eventLog.EmitSimple(EventTypeRaceComplete, e.tickCount, nil)
		log.Printf("🏆 Race complete in %.1fs, winner: %s", e.elapsed, e.rank[0].Name)
	case e.elapsed >= e.locked.TimeLimit:
		e.timeout()
	}
}

// finishMarble moves marbles[i] into the ranking and out of the world.
func (e *Engine) finishMarble(i int, tied bool) {
	m := e.marbles[i]
	e.world.RemoveMarble(m.Body)
	m.Active = false
	m.TiedForLast = tied

	e.marbles = append(e.marbles[:i], e.marbles[i+1:]...)
	e.rank = append(e.rank, m)

	e.eventLog.EmitSimple(EventTypeMarbleFinish, e.tickCount, MarbleFinishPayload{
		MarbleID:    m.ID,
		Name:        m.Name,
		Place:       len(e.rank),
		Elapsed:     e.elapsed,
		TiedForLast: tied,
	})
}

// timeout finishes the race at the deadline: every still-active marble
// ties for last place.
func (e *Engine) timeout() {
	tied := len(e.marbles)
	for len(e.marbles) > 0 {
		e.finishMarble(0, true)
	}
	e.state = StateFinished

	e.eventLog.EmitSimple(EventTypeRaceTimeout, e.tickCount, RaceTimeoutPayload{
		TiedCount: tied,
		Elapsed:   e.elapsed,
	})
	log.Printf("⏱️ Race timed out at %.1fs, %d marbles tied for last", e.elapsed, tied)
}

func (e *Engine) stepPreview() {
	cfg := e.sim
	fps := float64(e.video.FPS)
	dt := cfg.Speed / fps

	e.world.Step(dt)

	for _, m := range e.sched.Tick(dt, e.lvl.Emitter, e.world, cfg.Elasticity, cfg.Friction, e.rng) {
		e.marbles = append(e.marbles, m)
	}

	// Preview marbles vanish off the bottom instead of ranking.
	bound := float64(e.video.Height)
	for i := len(e.marbles) - 1; i >= 0; i-- {
		m := e.marbles[i]
		if m.Body.Position().Y > bound+m.Radius {
			e.world.RemoveMarble(m.Body)
			e.marbles = append(e.marbles[:i], e.marbles[i+1:]...)
		}
	}
}
