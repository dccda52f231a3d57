package render

import (
	"bytes"
	"image/png"
	"testing"

	"marble-race/internal/config"
	"marble-race/internal/level"
	"marble-race/internal/race"
)

func testVideo() config.VideoConfig {
	return config.VideoConfig{Width: 200, Height: 200, FPS: 60}
}

func testSnapshot() race.Snapshot {
	return race.Snapshot{
		State: race.StateReady,
		Walls: []race.WallSnapshot{{X1: 20, Y1: 100, X2: 180, Y2: 100}},
		Marbles: []race.MarbleSnapshot{
			{ID: 1, Shape: "Circle", Color: "#ff0000", Radius: 8, X: 50, Y: 50},
			{ID: 2, Shape: "Hexagon", Color: "#00ff00", Radius: 8, X: 150, Y: 50},
		},
		Emitter: level.Emitter{Pos: level.DefaultEmitter().Pos},
	}
}

func TestRenderFrameBounds(t *testing.T) {
	r := New(testVideo(), config.DefaultGrid())
	img := r.Render(testSnapshot())

	b := img.Bounds()
	if b.Dx() != 200 || b.Dy() != 200 {
		t.Fatalf("frame bounds %v", b)
	}
}

func TestRenderDrawsGeometry(t *testing.T) {
	r := New(testVideo(), config.DefaultGrid())
	img := r.Render(testSnapshot())

	// Background at a corner.
	cr, cg, cb, _ := img.At(2, 2).RGBA()
	if cr>>8 != 20 || cg>>8 != 20 || cb>>8 != 30 {
		t.Errorf("corner pixel not background: %d %d %d", cr>>8, cg>>8, cb>>8)
	}

	// Wall center.
	cr, cg, cb, _ = img.At(100, 100).RGBA()
	if cr>>8 != 200 || cg>>8 != 200 || cb>>8 != 200 {
		t.Errorf("wall pixel: %d %d %d", cr>>8, cg>>8, cb>>8)
	}

	// Marble fill.
	cr, cg, cb, _ = img.At(50, 50).RGBA()
	if cr>>8 < 200 || cg>>8 > 50 || cb>>8 > 50 {
		t.Errorf("marble pixel not red: %d %d %d", cr>>8, cg>>8, cb>>8)
	}
}

func TestRenderPNGDecodes(t *testing.T) {
	r := New(testVideo(), config.DefaultGrid())
	data, err := r.RenderPNG(testSnapshot())
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 200 {
		t.Errorf("decoded width %d", img.Bounds().Dx())
	}
}

func TestParseHexColor(t *testing.T) {
	c := parseHexColor("#1a2b3c")
	if c.R != 0x1a || c.G != 0x2b || c.B != 0x3c {
		t.Errorf("parsed %+v", c)
	}
	// Malformed input falls back to white.
	if c := parseHexColor("red"); c.R != 255 || c.G != 255 || c.B != 255 {
		t.Errorf("fallback %+v", c)
	}
}

func TestSidesForShape(t *testing.T) {
	if sidesForShape("Hexagon") != 6 || sidesForShape("Circle") != 0 || sidesForShape("junk") != 0 {
		t.Error("shape side mapping broken")
	}
}
