package level

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"marble-race/internal/geom"
)

// Wire schema for level files. Coordinates are [x, y] arrays; walls,
// platforms and conveyors are written with integer coordinates, emitter
// fields keep floating precision.

type wireLevel struct {
	Name      string         `json:"name"`
	Walls     []wireWall     `json:"walls"`
	Platforms []wirePlatform `json:"platforms"`
	Conveyors []wireConveyor `json:"conveyors"`
	Emitter   *wireEmitter   `json:"emitter,omitempty"`
}

type wireWall struct {
	Start []float64 `json:"start"`
	End   []float64 `json:"end"`
}

type wirePlatform struct {
	Pos             []float64 `json:"pos"`
	Length          *float64  `json:"length,omitempty"`
	AngularVelocity float64   `json:"angular_velocity"`
}

type wireConveyor struct {
	Start []float64 `json:"start"`
	End   []float64 `json:"end"`
	Speed *float64  `json:"speed,omitempty"`
}

type wireEmitter struct {
	Pos   []float64 `json:"pos"`
	Angle *float64  `json:"angle,omitempty"`
	Width *float64  `json:"width,omitempty"`
	Rate  *float64  `json:"rate,omitempty"`
	Count *int      `json:"count,omitempty"`
	Speed *float64  `json:"speed,omitempty"`
}

func pointOrDefault(coords []float64, def geom.Point) geom.Point {
	if len(coords) < 2 {
		return def
	}
	return geom.Point{X: coords[0], Y: coords[1]}
}

// Decode builds a level from raw JSON. Missing fields fall back to the
// documented defaults; a missing field is never an error.
func Decode(data []byte) (*Level, error) {
	var w wireLevel
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode level: %w", err)
	}

	name := w.Name
	if name == "" {
		name = "level"
	}
	l := New(name)

	for _, ww := range w.Walls {
		l.AddWall(
			pointOrDefault(ww.Start, geom.Point{}),
			pointOrDefault(ww.End, geom.Point{}),
		)
	}
	for _, wp := range w.Platforms {
		// Absent means default; an explicit zero is kept as written
		length := 40.0
		if wp.Length != nil {
			length = *wp.Length
		}
		l.AddPlatform(pointOrDefault(wp.Pos, geom.Point{}), length, wp.AngularVelocity)
	}
	for _, wc := range w.Conveyors {
		speed := 100.0
		if wc.Speed != nil {
			speed = *wc.Speed
		}
		l.AddConveyor(
			pointOrDefault(wc.Start, geom.Point{}),
			pointOrDefault(wc.End, geom.Point{}),
			speed,
		)
	}

	if w.Emitter != nil {
		e := &l.Emitter
		e.Pos = pointOrDefault(w.Emitter.Pos, e.Pos)
		if w.Emitter.Angle != nil {
			e.Angle = *w.Emitter.Angle
		}
		if w.Emitter.Width != nil {
			e.Width = *w.Emitter.Width
		}
		if w.Emitter.Rate != nil {
			e.Rate = *w.Emitter.Rate
		}
		if w.Emitter.Count != nil {
			e.Count = *w.Emitter.Count
		}
		if w.Emitter.Speed != nil {
			e.Speed = *w.Emitter.Speed
		}
	}

	return l, nil
}

func roundCoords(p geom.Point) []float64 {
	return []float64{math.Round(p.X), math.Round(p.Y)}
}

// Encode serializes a level to its JSON document. Wall, platform and
// conveyor coordinates are rounded to the nearest integer; emitter fields
// keep floating precision.
func Encode(l *Level) ([]byte, error) {
	w := wireLevel{
		Name:      l.Name,
		Walls:     make([]wireWall, 0, len(l.Walls)),
		Platforms: make([]wirePlatform, 0, len(l.Platforms)),
		Conveyors: make([]wireConveyor, 0, len(l.Conveyors)),
	}

	for _, wall := range l.Walls {
		w.Walls = append(w.Walls, wireWall{
			Start: roundCoords(wall.Start),
			End:   roundCoords(wall.End),
		})
	}
	for _, p := range l.Platforms {
		length := math.Round(p.Length)
		w.Platforms = append(w.Platforms, wirePlatform{
			Pos:             roundCoords(p.Pos),
			Length:          &length,
			AngularVelocity: p.AngularVelocity,
		})
	}
	for _, c := range l.Conveyors {
		speed := c.Speed
		w.Conveyors = append(w.Conveyors, wireConveyor{
			Start: roundCoords(c.Start),
			End:   roundCoords(c.End),
			Speed: &speed,
		})
	}

	e := l.Emitter
	w.Emitter = &wireEmitter{
		Pos:   []float64{e.Pos.X, e.Pos.Y},
		Angle: &e.Angle,
		Width: &e.Width,
		Rate:  &e.Rate,
		Count: &e.Count,
		Speed: &e.Speed,
	}

	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode level: %w", err)
	}
	return append(data, '\n'), nil
}

// Load reads a level file. Missing fields inside the document are defaulted;
// only an unreadable file or unparseable JSON is an error.
func Load(path string) (*Level, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load level %s: %w", path, err)
	}
	l, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if l.Name == "level" {
		// Fall back to the file stem when the document carries no name.
		l.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return l, nil
}

// Save writes the level to path, creating the parent directory if needed.
func Save(path string, l *Level) error {
	data, err := Encode(l)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("save level %s: %w", path, err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("save level %s: %w", path, err)
	}
	return nil
}

// List returns the level files in dir, sorted by file stem.
func List(dir string) []string {
	entries, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil
	}
	sort.Slice(entries, func(i, j int) bool {
		return filepath.Base(entries[i]) < filepath.Base(entries[j])
	})
	return entries
}
