// Package race runs the marble race: pool generation, timed emission,
// the ready/running/finished/edit state machine and ranking.
package race

import (
	"fmt"
	"math"
	"math/rand"

	"marble-race/internal/config"
	"marble-race/internal/geom"
	"marble-race/internal/level"
	"marble-race/internal/physics"
)

// ShapeKind is the closed set of marble collider shapes.
type ShapeKind uint8

const (
	ShapeCircle ShapeKind = iota
	ShapeTriangle
	ShapeSquare
	ShapePentagon
	ShapeHexagon
)

// AllShapes lists every kind, used when shapes are randomized.
var AllShapes = []ShapeKind{ShapeCircle, ShapeTriangle, ShapeSquare, ShapePentagon, ShapeHexagon}

// Sides returns the polygon side count, 0 for a circle.
func (s ShapeKind) Sides() int {
	switch s {
	case ShapeTriangle:
		return 3
	case ShapeSquare:
		return 4
	case ShapePentagon:
		return 5
	case ShapeHexagon:
		return 6
	default:
		return 0
	}
}

func (s ShapeKind) String() string {
	switch s {
	case ShapeCircle:
		return "Circle"
	case ShapeTriangle:
		return "Triangle"
	case ShapeSquare:
		return "Square"
	case ShapePentagon:
		return "Pentagon"
	case ShapeHexagon:
		return "Hexagon"
	default:
		return "Circle"
	}
}

// MarbleDef is one queued marble's identity, fixed before emission.
type MarbleDef struct {
	ID     int       `json:"id"`
	Name   string    `json:"name"`
	Shape  ShapeKind `json:"shape"`
	Color  string    `json:"color"` // #rrggbb
	Radius float64   `json:"radius"`
}

// Marble is a live or finished marble: its definition plus runtime state.
type Marble struct {
	MarbleDef

	Body        *physics.Marble
	Active      bool
	TiedForLast bool
}

// Named hue anchors covering the rainbow, used for display names.
var hueNames = []struct {
	threshold float64
	name      string
}{
	{0.00, "Red"},
	{0.05, "Orange"},
	{0.11, "Gold"},
	{0.16, "Yellow"},
	{0.22, "Lime"},
	{0.33, "Green"},
	{0.44, "Teal"},
	{0.50, "Cyan"},
	{0.58, "Sky"},
	{0.66, "Blue"},
	{0.75, "Purple"},
	{0.83, "Magenta"},
	{0.91, "Pink"},
	{1.00, "Red"},
}

func hueName(hue float64) string {
	for _, h := range hueNames {
		if hue <= h.threshold {
			return h.name
		}
	}
	return "Red"
}

// hsvToHex converts an HSV color (s=0.8, v=1.0 house palette) to #rrggbb.
func hsvToHex(h, s, v float64) string {
	h = math.Mod(h, 1)
	if h < 0 {
		h += 1
	}
	i := int(h * 6)
	f := h*6 - float64(i)
	p := v * (1 - s)
	q := v * (1 - f*s)
	t := v * (1 - (1-f)*s)

	var r, g, b float64
	switch i % 6 {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	case 5:
		r, g, b = v, p, q
	}
	return fmt.Sprintf("#%02x%02x%02x", int(r*255), int(g*255), int(b*255))
}

// Palette hues used when colors are randomized: one per named band.
var paletteHues = []float64{0.00, 0.05, 0.11, 0.16, 0.22, 0.33, 0.44, 0.50, 0.58, 0.66, 0.75, 0.83, 0.91}

type combo struct {
	shape ShapeKind
	hue   float64
}

// GeneratePool builds the emission queue. The distinct shape x color
// combinations permitted by the toggles are cycled whole enough times to
// cover count, the remainder is sampled without replacement, and the
// result is shuffled. When a combination repeats, display names carry a
// sequence number so every marble stays distinguishable.
func GeneratePool(count int, cfg config.SimConfig, rng *rand.Rand) []MarbleDef {
	if count <= 0 {
		return nil
	}

	shapes := []ShapeKind{ShapeCircle}
	if cfg.RandomShape {
		shapes = AllShapes
	}
	hues := []float64{0.58}
	if cfg.RandomColor {
		hues = paletteHues
	}

	combos := make([]combo, 0, len(shapes)*len(hues))
	for _, s := range shapes {
		for _, h := range hues {
			combos = append(combos, combo{shape: s, hue: h})
		}
	}

	picks := make([]combo, 0, count)
	for i := 0; i < count/len(combos); i++ {
		picks = append(picks, combos...)
	}
	if rem := count - len(picks); rem > 0 {
		perm := rng.Perm(len(combos))
		for _, j := range perm[:rem] {
			picks = append(picks, combos[j])
		}
	}
	rng.Shuffle(len(picks), func(i, j int) {
		picks[i], picks[j] = picks[j], picks[i]
	})

	baseNames := make([]string, count)
	totals := make(map[string]int, len(combos))
	for i, c := range picks {
		baseNames[i] = hueName(c.hue) + " " + c.shape.String()
		totals[baseNames[i]]++
	}

	pool := make([]MarbleDef, count)
	seen := make(map[string]int, len(combos))
	for i, c := range picks {
		radius := cfg.BaseRadius
		if cfg.RandomSize {
			radius *= 0.8 + rng.Float64()*0.4
		}

		name := baseNames[i]
		if totals[name] > 1 {
			seen[name]++
			name = fmt.Sprintf("%s %d", name, seen[name])
		}

		pool[i] = MarbleDef{
			ID:     i + 1,
			Name:   name,
			Shape:  c.shape,
			Color:  hsvToHex(c.hue, 0.8, 1.0),
			Radius: radius,
		}
	}
	return pool
}

// spawnPoint picks a random point across the emitter opening. The opening
// spans the perpendicular of the emission direction.
func spawnPoint(e level.Emitter, rng *rand.Rand) (geom.Point, geom.Point) {
	angleRad := e.Angle * math.Pi / 180
	perp := angleRad - math.Pi/2
	offset := (rng.Float64() - 0.5) * e.Width

	pos := geom.Point{
		X: e.Pos.X + offset*math.Cos(perp),
		Y: e.Pos.Y + offset*math.Sin(perp),
	}
	vel := geom.Point{
		X: e.Speed * math.Cos(angleRad),
		Y: e.Speed * math.Sin(angleRad),
	}
	return pos, vel
}
