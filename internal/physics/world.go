// Package physics wraps the Chipmunk2D space behind a handle-tracking
// facade. The simulation runs in screen coordinates: Y grows downward,
// so gravity is a positive Y vector.
package physics

import (
	"github.com/jakecoffman/cp"

	"marble-race/internal/geom"
	"marble-race/internal/level"
)

// Collision geometry half-thicknesses and materials for the static course.
const (
	WallRadius     = 5.0
	PlatformRadius = 4.0
	ConveyorRadius = 5.0

	wallElasticity = 0.5
	wallFriction   = 0.5

	platformElasticity = 0.8
	platformFriction   = 0.5

	conveyorElasticity = 0.2
	conveyorFriction   = 1.0
)

// Marble owns the dynamic body and shape of one racing marble.
type Marble struct {
	body  *cp.Body
	shape *cp.Shape
}

// Position returns the marble's current center.
func (m *Marble) Position() geom.Point {
	p := m.body.Position()
	return geom.Point{X: p.X, Y: p.Y}
}

// Angle returns the marble's current rotation in radians.
func (m *Marble) Angle() float64 {
	return m.body.Angle()
}

// Velocity returns the marble's current linear velocity.
func (m *Marble) Velocity() geom.Point {
	v := m.body.Velocity()
	return geom.Point{X: v.X, Y: v.Y}
}

type platformHandle struct {
	body  *cp.Body
	shape *cp.Shape
}

// PlatformState is a platform's live pose for rendering.
type PlatformState struct {
	Pos    geom.Point
	Angle  float64
	Length float64
}

// World owns the space and every handle it has registered, so a rebuild
// can remove exactly what it added and nothing else. Marbles are owned
// by their callers and survive a static rebuild.
type World struct {
	space *cp.Space

	staticShapes []*cp.Shape
	platforms    []platformHandle
	platformLens []float64
}

// NewWorld creates an empty space with the given downward gravity.
func NewWorld(gravity float64) *World {
	w := &World{space: cp.NewSpace()}
	w.SetGravity(gravity)
	return w
}

// SetGravity updates the downward gravity magnitude.
func (w *World) SetGravity(g float64) {
	w.space.SetGravity(cp.Vector{X: 0, Y: g})
}

// Step advances the simulation by dt seconds.
func (w *World) Step(dt float64) {
	w.space.Step(dt)
}

// Rebuild tears down every static and kinematic handle this world has
// registered and re-adds the course from the model. Dynamic marbles are
// untouched.
func (w *World) Rebuild(lvl *level.Level) {
	for _, s := range w.staticShapes {
		w.space.RemoveShape(s)
	}
	w.staticShapes = w.staticShapes[:0]

	for _, p := range w.platforms {
		w.space.RemoveShape(p.shape)
		w.space.RemoveBody(p.body)
	}
	w.platforms = w.platforms[:0]
	w.platformLens = w.platformLens[:0]

	for _, wall := range lvl.Walls {
		w.addStaticSegment(wall.Start, wall.End, WallRadius, wallElasticity, wallFriction, geom.Point{})
	}
	for _, c := range lvl.Conveyors {
		w.addStaticSegment(c.Start, c.End, ConveyorRadius, conveyorElasticity, conveyorFriction, conveyorSurfaceV(c))
	}
	for _, p := range lvl.Platforms {
		w.addPlatform(p)
	}
}

// conveyorSurfaceV computes the belt's surface velocity. The surface
// moves opposite to the direction contacting bodies are carried, so the
// start-to-end direction is negated.
func conveyorSurfaceV(c level.Conveyor) geom.Point {
	dir := c.End.Sub(c.Start)
	d := c.Start.Distance(c.End)
	if d == 0 {
		return geom.Point{}
	}
	return dir.Scale(-c.Speed / d)
}

func (w *World) addStaticSegment(a, b geom.Point, radius, elasticity, friction float64, surfaceV geom.Point) {
	shape := cp.NewSegment(w.space.StaticBody,
		cp.Vector{X: a.X, Y: a.Y},
		cp.Vector{X: b.X, Y: b.Y},
		radius)
	shape.SetElasticity(elasticity)
	shape.SetFriction(friction)
	if surfaceV != (geom.Point{}) {
		shape.SetSurfaceV(cp.Vector{X: surfaceV.X, Y: surfaceV.Y})
	}
	w.space.AddShape(shape)
	w.staticShapes = append(w.staticShapes, shape)
}

func (w *World) addPlatform(p level.Platform) {
	body := cp.NewKinematicBody()
	body.SetPosition(cp.Vector{X: p.Pos.X, Y: p.Pos.Y})
	body.SetAngularVelocity(p.AngularVelocity)
	w.space.AddBody(body)

	shape := cp.NewSegment(body,
		cp.Vector{X: -p.Length, Y: 0},
		cp.Vector{X: p.Length, Y: 0},
		PlatformRadius)
	shape.SetElasticity(platformElasticity)
	shape.SetFriction(platformFriction)
	w.space.AddShape(shape)

	w.platforms = append(w.platforms, platformHandle{body: body, shape: shape})
	w.platformLens = append(w.platformLens, p.Length)
}

// PlatformStates returns the live pose of every platform, in the same
// order as the model's platform list.
func (w *World) PlatformStates() []PlatformState {
	states := make([]PlatformState, len(w.platforms))
	for i, p := range w.platforms {
		pos := p.body.Position()
		states[i] = PlatformState{
			Pos:    geom.Point{X: pos.X, Y: pos.Y},
			Angle:  p.body.Angle(),
			Length: w.platformLens[i],
		}
	}
	return states
}

// AddMarble inserts a dynamic body at pos with the given initial velocity.
// sides == 0 produces a circle collider; otherwise a regular polygon with
// that many sides inscribed in the radius.
func (w *World) AddMarble(pos, vel geom.Point, radius float64, sides int, elasticity, friction float64) *Marble {
	const mass = 1.0

	var body *cp.Body
	var shape *cp.Shape
	if sides == 0 {
		moment := cp.MomentForCircle(mass, 0, radius, cp.Vector{})
		body = cp.NewBody(mass, moment)
		shape = cp.NewCircle(body, radius, cp.Vector{})
	} else {
		pts := geom.PolygonVertices(sides, radius)
		verts := make([]cp.Vector, len(pts))
		for i, p := range pts {
			verts[i] = cp.Vector{X: p.X, Y: p.Y}
		}
		moment := cp.MomentForPoly(mass, len(verts), verts, cp.Vector{}, 0)
		body = cp.NewBody(mass, moment)
		shape = cp.NewPolyShape(body, len(verts), verts, cp.NewTransformIdentity(), 0)
	}

	body.SetPosition(cp.Vector{X: pos.X, Y: pos.Y})
	body.SetVelocityVector(cp.Vector{X: vel.X, Y: vel.Y})
	shape.SetElasticity(elasticity)
	shape.SetFriction(friction)

	w.space.AddBody(body)
	w.space.AddShape(shape)
	return &Marble{body: body, shape: shape}
}

// RemoveMarble detaches a marble's body and shape from the space.
func (w *World) RemoveMarble(m *Marble) {
	w.space.RemoveShape(m.shape)
	w.space.RemoveBody(m.body)
}
