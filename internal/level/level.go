// Package level holds the in-memory level model (walls, rotating platforms,
// conveyors and the single emitter), its JSON persistence and the undoable
// command history that mutates it.
package level

import (
	"marble-race/internal/geom"
)

// ID is a stable opaque identifier assigned to every entity at creation.
// Undo commands reference IDs, never raw slice indices, so a command can
// detect that the model changed under it instead of silently corrupting it.
type ID uint64

// Endpoint identifies which end of a wall a handle refers to.
type Endpoint uint8

const (
	EndpointStart Endpoint = iota
	EndpointEnd
)

// Wall is an immutable static line segment.
type Wall struct {
	ID    ID         `json:"-"`
	Start geom.Point `json:"start"`
	End   geom.Point `json:"end"`
}

// Platform is a kinematically rotating segment centered at Pos, spanning
// [-Length, +Length] along its local axis.
type Platform struct {
	ID              ID         `json:"-"`
	Pos             geom.Point `json:"pos"`
	Length          float64    `json:"length"`
	AngularVelocity float64    `json:"angular_velocity"`
}

// Conveyor is a static segment whose surface carries contacting bodies
// along the start-to-end direction. A negative speed flips the direction.
type Conveyor struct {
	ID    ID         `json:"-"`
	Start geom.Point `json:"start"`
	End   geom.Point `json:"end"`
	Speed float64    `json:"speed"`
}

// Emitter is the singleton spawn nozzle.
type Emitter struct {
	Pos   geom.Point `json:"pos"`
	Angle float64    `json:"angle"` // degrees, 90 = straight down
	Width float64    `json:"width"` // opening width in px
	Rate  float64    `json:"rate"`  // marbles per second
	Count int        `json:"count"` // total marbles to emit
	Speed float64    `json:"speed"` // initial velocity magnitude
}

// DefaultEmitter returns the documented emitter defaults.
func DefaultEmitter() Emitter {
	return Emitter{
		Pos:   geom.Point{X: 400, Y: 80},
		Angle: 90,
		Width: 60,
		Rate:  20,
		Count: 100,
		Speed: 50,
	}
}

// Level is the aggregate authored course. Collections are insertion-ordered;
// indices stay stable until the next structural mutation.
type Level struct {
	Name      string
	Walls     []Wall
	Platforms []Platform
	Conveyors []Conveyor
	Emitter   Emitter

	nextID ID
}

// New returns an empty level with the default emitter.
func New(name string) *Level {
	return &Level{
		Name:    name,
		Emitter: DefaultEmitter(),
	}
}

func (l *Level) allocID() ID {
	l.nextID++
	return l.nextID
}

// Clone returns a deep copy of the level. IDs are preserved.
func (l *Level) Clone() *Level {
	c := &Level{
		Name:      l.Name,
		Walls:     append([]Wall(nil), l.Walls...),
		Platforms: append([]Platform(nil), l.Platforms...),
		Conveyors: append([]Conveyor(nil), l.Conveyors...),
		Emitter:   l.Emitter,
		nextID:    l.nextID,
	}
	return c
}

// =============================================================================
// WALL CRUD
// =============================================================================

// AddWall appends a new wall and returns it with its assigned ID.
func (l *Level) AddWall(start, end geom.Point) Wall {
	w := Wall{ID: l.allocID(), Start: start, End: end}
	l.Walls = append(l.Walls, w)
	return w
}

// InsertWall inserts a wall (keeping its existing ID) at the given index.
func (l *Level) InsertWall(index int, w Wall) {
	if index < 0 {
		index = 0
	}
	if index > len(l.Walls) {
		index = len(l.Walls)
	}
	l.Walls = append(l.Walls, Wall{})
	copy(l.Walls[index+1:], l.Walls[index:])
	l.Walls[index] = w
}

// RemoveWall removes the wall at index.
func (l *Level) RemoveWall(index int) {
	l.Walls = append(l.Walls[:index], l.Walls[index+1:]...)
}

// WallIndex resolves a wall ID to its current index, or -1.
func (l *Level) WallIndex(id ID) int {
	for i := range l.Walls {
		if l.Walls[i].ID == id {
			return i
		}
	}
	return -1
}

// =============================================================================
// PLATFORM CRUD
// =============================================================================

// AddPlatform appends a new platform and returns it with its assigned ID.
func (l *Level) AddPlatform(pos geom.Point, length, angularVelocity float64) Platform {
	p := Platform{ID: l.allocID(), Pos: pos, Length: length, AngularVelocity: angularVelocity}
	l.Platforms = append(l.Platforms, p)
	return p
}

// InsertPlatform inserts a platform (keeping its existing ID) at the given index.
func (l *Level) InsertPlatform(index int, p Platform) {
	if index < 0 {
		index = 0
	}
	if index > len(l.Platforms) {
		index = len(l.Platforms)
	}
	l.Platforms = append(l.Platforms, Platform{})
	copy(l.Platforms[index+1:], l.Platforms[index:])
	l.Platforms[index] = p
}

// RemovePlatform removes the platform at index.
func (l *Level) RemovePlatform(index int) {
	l.Platforms = append(l.Platforms[:index], l.Platforms[index+1:]...)
}

// PlatformIndex resolves a platform ID to its current index, or -1.
func (l *Level) PlatformIndex(id ID) int {
	for i := range l.Platforms {
		if l.Platforms[i].ID == id {
			return i
		}
	}
	return -1
}

// Segment returns the platform's segment endpoints at rest (angle zero).
func (p Platform) Segment() (geom.Point, geom.Point) {
	a := geom.Point{X: p.Pos.X - p.Length, Y: p.Pos.Y}
	b := geom.Point{X: p.Pos.X + p.Length, Y: p.Pos.Y}
	return a, b
}

// =============================================================================
// CONVEYOR CRUD
// =============================================================================

// AddConveyor appends a new conveyor and returns it with its assigned ID.
func (l *Level) AddConveyor(start, end geom.Point, speed float64) Conveyor {
	c := Conveyor{ID: l.allocID(), Start: start, End: end, Speed: speed}
	l.Conveyors = append(l.Conveyors, c)
	return c
}

// InsertConveyor inserts a conveyor (keeping its existing ID) at the given index.
func (l *Level) InsertConveyor(index int, c Conveyor) {
	if index < 0 {
		index = 0
	}
	if index > len(l.Conveyors) {
		index = len(l.Conveyors)
	}
	l.Conveyors = append(l.Conveyors, Conveyor{})
	copy(l.Conveyors[index+1:], l.Conveyors[index:])
	l.Conveyors[index] = c
}

// RemoveConveyor removes the conveyor at index.
func (l *Level) RemoveConveyor(index int) {
	l.Conveyors = append(l.Conveyors[:index], l.Conveyors[index+1:]...)
}

// ConveyorIndex resolves a conveyor ID to its current index, or -1.
func (l *Level) ConveyorIndex(id ID) int {
	for i := range l.Conveyors {
		if l.Conveyors[i].ID == id {
			return i
		}
	}
	return -1
}

// =============================================================================
// NEAREST-ELEMENT LOOKUPS
// =============================================================================

// NearestWall returns the index of the closest wall strictly inside
// threshold, or -1. Ties break to the first wall in insertion order.
func (l *Level) NearestWall(p geom.Point, threshold float64) int {
	best := -1
	bestDist := threshold
	for i := range l.Walls {
		d := geom.DistanceToSegment(p, l.Walls[i].Start, l.Walls[i].End)
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// NearestHandle returns the index and endpoint of the closest wall endpoint
// strictly inside threshold. ok is false when no handle qualifies.
func (l *Level) NearestHandle(p geom.Point, threshold float64) (index int, ep Endpoint, ok bool) {
	index = -1
	bestDist := threshold
	for i := range l.Walls {
		if d := p.Distance(l.Walls[i].Start); d < bestDist {
			bestDist = d
			index, ep, ok = i, EndpointStart, true
		}
		if d := p.Distance(l.Walls[i].End); d < bestDist {
			bestDist = d
			index, ep, ok = i, EndpointEnd, true
		}
	}
	return index, ep, ok
}

// NearestPlatform returns the index of the closest platform strictly inside
// threshold, or -1. Distance is measured to the rest-pose segment.
func (l *Level) NearestPlatform(p geom.Point, threshold float64) int {
	best := -1
	bestDist := threshold
	for i := range l.Platforms {
		a, b := l.Platforms[i].Segment()
		d := geom.DistanceToSegment(p, a, b)
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// NearestConveyor returns the index of the closest conveyor strictly inside
// threshold, or -1.
func (l *Level) NearestConveyor(p geom.Point, threshold float64) int {
	best := -1
	bestDist := threshold
	for i := range l.Conveyors {
		d := geom.DistanceToSegment(p, l.Conveyors[i].Start, l.Conveyors[i].End)
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// NearEmitter reports whether p is strictly inside threshold of the emitter
// origin.
func (l *Level) NearEmitter(p geom.Point, threshold float64) bool {
	return p.Distance(l.Emitter.Pos) < threshold
}
