package race

import (
	"math/rand"

	"marble-race/internal/level"
	"marble-race/internal/physics"
)

// Scheduler drips marbles out of the emitter at the configured rate.
// Emission is accumulator-based: fractional ticks carry over, so a rate
// slower than the tick rate still emits on schedule and a fast rate
// emits a bounded burst per tick.
type Scheduler struct {
	queue       []MarbleDef
	accumulator float64
	emitted     int
}

// NewScheduler builds a scheduler over a pre-generated pool. The queue
// is consumed in order.
func NewScheduler(pool []MarbleDef) *Scheduler {
	return &Scheduler{queue: pool}
}

// Emitted returns how many marbles have spawned so far.
func (s *Scheduler) Emitted() int { return s.emitted }

// Pending returns how many marbles are still queued.
func (s *Scheduler) Pending() int { return len(s.queue) }

// Tick advances the scheduler by dt seconds and spawns every marble
// whose emission time has arrived, in queue order. Spawned marbles are
// returned already registered with the physics world.
func (s *Scheduler) Tick(dt float64, e level.Emitter, w *physics.World, elasticity, friction float64, rng *rand.Rand) []*Marble {
	if e.Rate <= 0 || len(s.queue) == 0 {
		return nil
	}

	s.accumulator += dt
	interval := 1.0 / e.Rate

	var spawned []*Marble
	for s.accumulator >= interval && len(s.queue) > 0 {
		def := s.queue[0]
		s.queue = s.queue[1:]
		s.accumulator -= interval
		s.emitted++

		pos, vel := spawnPoint(e, rng)
		body := w.AddMarble(pos, vel, def.Radius, def.Shape.Sides(), elasticity, friction)
		spawned = append(spawned, &Marble{
			MarbleDef: def,
			Body:      body,
			Active:    true,
		})
	}
	return spawned
}
