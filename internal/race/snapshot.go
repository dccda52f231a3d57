package race

import (
	"marble-race/internal/level"
)

// MarbleSnapshot is an immutable copy of one live marble for rendering.
// Uses value types (not pointers) to ensure immutability.
type MarbleSnapshot struct {
	ID     int     `json:"id"`
	Name   string  `json:"name"`
	Shape  string  `json:"shape"`
	Color  string  `json:"color"`
	Radius float64 `json:"radius"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Angle  float64 `json:"angle"`
}

// RankEntry is one finished marble's place in the standings.
type RankEntry struct {
	Place       int    `json:"place"`
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Color       string `json:"color"`
	TiedForLast bool   `json:"tiedForLast,omitempty"`
}

// PlatformSnapshot is a platform's live pose for rendering.
type PlatformSnapshot struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Angle  float64 `json:"angle"`
	Length float64 `json:"length"`
}

// WallSnapshot is a static wall segment.
type WallSnapshot struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// ConveyorSnapshot is a belt segment with its carry speed.
type ConveyorSnapshot struct {
	X1    float64 `json:"x1"`
	Y1    float64 `json:"y1"`
	X2    float64 `json:"x2"`
	Y2    float64 `json:"y2"`
	Speed float64 `json:"speed"`
}

// Snapshot is a complete immutable view of the engine for rendering and
// the API. Everything is copied; holding one never blocks the tick loop.
type Snapshot struct {
	State   State `json:"state"`
	Preview bool  `json:"preview,omitempty"`

	Elapsed   float64 `json:"elapsed"`
	Remaining float64 `json:"remaining"`
	TickCount uint64  `json:"tickCount"`

	Emitted  int `json:"emitted"`
	Pending  int `json:"pending"`
	Active   int `json:"active"`
	Finished int `json:"finished"`
	Total    int `json:"total"`

	LevelName string             `json:"levelName"`
	Walls     []WallSnapshot     `json:"walls"`
	Conveyors []ConveyorSnapshot `json:"conveyors"`
	Platforms []PlatformSnapshot `json:"platforms"`
	Emitter   level.Emitter      `json:"emitter"`

	Marbles []MarbleSnapshot `json:"marbles"`
	Rank    []RankEntry      `json:"rank"`
}

// Snapshot returns a copy of the full engine state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() Snapshot {
	cfg := e.sim
	if e.state == StateRunning || e.state == StateFinished {
		cfg = e.locked
	}

	remaining := cfg.TimeLimit - e.elapsed
	if remaining < 0 || e.state != StateRunning {
		remaining = 0
		if e.state == StateReady {
			remaining = cfg.TimeLimit
		}
	}

	s := Snapshot{
		State:     e.state,
		Preview:   e.preview,
		Elapsed:   e.elapsed,
		Remaining: remaining,
		TickCount: e.tickCount,
		Active:    len(e.marbles),
		Finished:  len(e.rank),
		Total:     cfg.MarbleCount,
		LevelName: e.lvl.Name,
		Emitter:   e.lvl.Emitter,
	}
	if e.sched != nil {
		s.Emitted = e.sched.Emitted()
		s.Pending = e.sched.Pending()
	}

	s.Walls = make([]WallSnapshot, len(e.lvl.Walls))
	for i, w := range e.lvl.Walls {
		s.Walls[i] = WallSnapshot{X1: w.Start.X, Y1: w.Start.Y, X2: w.End.X, Y2: w.End.Y}
	}
	s.Conveyors = make([]ConveyorSnapshot, len(e.lvl.Conveyors))
	for i, c := range e.lvl.Conveyors {
		s.Conveyors[i] = ConveyorSnapshot{X1: c.Start.X, Y1: c.Start.Y, X2: c.End.X, Y2: c.End.Y, Speed: c.Speed}
	}
	s.Platforms = make([]PlatformSnapshot, 0, len(e.lvl.Platforms))
	for _, p := range e.world.PlatformStates() {
		s.Platforms = append(s.Platforms, PlatformSnapshot{X: p.Pos.X, Y: p.Pos.Y, Angle: p.Angle, Length: p.Length})
	}

	s.Marbles = make([]MarbleSnapshot, len(e.marbles))
	for i, m := range e.marbles {
		pos := m.Body.Position()
		s.Marbles[i] = MarbleSnapshot{
			ID:     m.ID,
			Name:   m.Name,
			Shape:  m.Shape.String(),
			Color:  m.Color,
			Radius: m.Radius,
			X:      pos.X,
			Y:      pos.Y,
			Angle:  m.Body.Angle(),
		}
	}
	s.Rank = make([]RankEntry, len(e.rank))
	for i, m := range e.rank {
		s.Rank[i] = RankEntry{
			Place:       i + 1,
			ID:          m.ID,
			Name:        m.Name,
			Color:       m.Color,
			TiedForLast: m.TiedForLast,
		}
	}
	return s
}
