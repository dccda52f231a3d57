// Package render draws race snapshots into frames with gg.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"

	"marble-race/internal/config"
	"marble-race/internal/race"
)

// Course colors, matching the dark-background palette of the simulator.
var (
	backgroundColor = color.RGBA{20, 20, 30, 255}
	gridColor       = color.RGBA{35, 35, 50, 255}
	wallColor       = color.RGBA{200, 200, 200, 255}
	platformColor   = color.RGBA{150, 200, 255, 255}
	conveyorColor   = color.RGBA{255, 180, 80, 255}
	emitterColor    = color.RGBA{100, 255, 150, 255}
	textColor       = color.RGBA{255, 255, 255, 255}
	mutedTextColor  = color.RGBA{160, 160, 180, 255}
)

// Renderer draws snapshots at a fixed resolution. It is not safe for
// concurrent use; callers serialize frames through one renderer.
type Renderer struct {
	width  int
	height int
	grid   config.GridConfig

	dc       *gg.Context
	fontPath string
	hasFont  bool
}

// New creates a renderer for the given video settings.
func New(video config.VideoConfig, grid config.GridConfig) *Renderer {
	r := &Renderer{
		width:  video.Width,
		height: video.Height,
		grid:   grid,
		dc:     gg.NewContext(video.Width, video.Height),
	}
	r.fontPath = findFontPath()
	if r.fontPath != "" {
		if err := r.dc.LoadFontFace(r.fontPath, 16); err == nil {
			r.hasFont = true
		}
	}
	return r
}

// Render draws a snapshot and returns the frame image. The returned
// image is reused by the next Render call.
func (r *Renderer) Render(snap race.Snapshot) image.Image {
	dc := r.dc

	dc.SetColor(backgroundColor)
	dc.DrawRectangle(0, 0, float64(r.width), float64(r.height))
	dc.Fill()

	if r.grid.Enabled && snap.State == race.StateEdit {
		r.drawGrid(dc)
	}

	r.drawWalls(dc, snap.Walls)
	r.drawConveyors(dc, snap.Conveyors)
	r.drawPlatforms(dc, snap.Platforms)
	r.drawEmitter(dc, snap)
	r.drawMarbles(dc, snap.Marbles)
	r.drawHUD(dc, snap)

	if snap.State == race.StateFinished {
		r.drawResults(dc, snap)
	}

	return dc.Image()
}

// RenderPNG draws a snapshot and encodes it as PNG.
func (r *Renderer) RenderPNG(snap race.Snapshot) ([]byte, error) {
	img := r.Render(snap)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) drawGrid(dc *gg.Context) {
	dc.SetColor(gridColor)
	dc.SetLineWidth(1)
	for x := 0.0; x < float64(r.width); x += r.grid.CellSize {
		dc.DrawLine(x, 0, x, float64(r.height))
		dc.Stroke()
	}
	for y := 0.0; y < float64(r.height); y += r.grid.CellSize {
		dc.DrawLine(0, y, float64(r.width), y)
		dc.Stroke()
	}
}

func (r *Renderer) drawWalls(dc *gg.Context, walls []race.WallSnapshot) {
	dc.SetColor(wallColor)
	dc.SetLineWidth(10)
	dc.SetLineCapRound()
	for _, w := range walls {
		dc.DrawLine(w.X1, w.Y1, w.X2, w.Y2)
		dc.Stroke()
	}
}

func (r *Renderer) drawConveyors(dc *gg.Context, conveyors []race.ConveyorSnapshot) {
	for _, c := range conveyors {
		dc.SetColor(conveyorColor)
		dc.SetLineWidth(10)
		dc.SetLineCapRound()
		dc.DrawLine(c.X1, c.Y1, c.X2, c.Y2)
		dc.Stroke()

		// Chevrons along the belt showing the carry direction.
		dx, dy := c.X2-c.X1, c.Y2-c.Y1
		length := math.Hypot(dx, dy)
		if length < 1 {
			continue
		}
		ux, uy := dx/length, dy/length
		if c.Speed < 0 {
			ux, uy = -ux, -uy
		}
		px, py := -uy, ux

		dc.SetColor(backgroundColor)
		dc.SetLineWidth(2)
		for d := 15.0; d < length-5; d += 20 {
			cx, cy := c.X1+dx/length*d, c.Y1+dy/length*d
			dc.DrawLine(cx-ux*5+px*4, cy-uy*5+py*4, cx, cy)
			dc.DrawLine(cx-ux*5-px*4, cy-uy*5-py*4, cx, cy)
			dc.Stroke()
		}
	}
}

func (r *Renderer) drawPlatforms(dc *gg.Context, platforms []race.PlatformSnapshot) {
	dc.SetColor(platformColor)
	dc.SetLineWidth(8)
	dc.SetLineCapRound()
	for _, p := range platforms {
		dc.Push()
		dc.Translate(p.X, p.Y)
		dc.Rotate(p.Angle)
		dc.DrawLine(-p.Length, 0, p.Length, 0)
		dc.Stroke()
		dc.Pop()

		// Pivot dot
		dc.SetColor(wallColor)
		dc.DrawCircle(p.X, p.Y, 3)
		dc.Fill()
		dc.SetColor(platformColor)
	}
}

func (r *Renderer) drawEmitter(dc *gg.Context, snap race.Snapshot) {
	e := snap.Emitter
	angle := e.Angle * math.Pi / 180
	perp := angle - math.Pi/2
	half := e.Width / 2

	// The nozzle: a bar spanning the opening.
	x1 := e.Pos.X + half*math.Cos(perp)
	y1 := e.Pos.Y + half*math.Sin(perp)
	x2 := e.Pos.X - half*math.Cos(perp)
	y2 := e.Pos.Y - half*math.Sin(perp)

	dc.SetColor(emitterColor)
	dc.SetLineWidth(6)
	dc.SetLineCapRound()
	dc.DrawLine(x1, y1, x2, y2)
	dc.Stroke()

	// Direction indicator.
	dc.SetLineWidth(2)
	dc.DrawLine(e.Pos.X, e.Pos.Y,
		e.Pos.X+20*math.Cos(angle), e.Pos.Y+20*math.Sin(angle))
	dc.Stroke()
}

func (r *Renderer) drawMarbles(dc *gg.Context, marbles []race.MarbleSnapshot) {
	for _, m := range marbles {
		dc.SetColor(parseHexColor(m.Color))

		sides := sidesForShape(m.Shape)
		if sides == 0 {
			dc.DrawCircle(m.X, m.Y, m.Radius)
			dc.Fill()
			dc.SetColor(color.White)
			dc.SetLineWidth(1)
			dc.DrawCircle(m.X, m.Y, m.Radius)
			dc.Stroke()
			continue
		}

		dc.Push()
		dc.Translate(m.X, m.Y)
		dc.Rotate(m.Angle)
		r.polygonPath(dc, sides, m.Radius)
		dc.Fill()
		dc.SetColor(color.White)
		dc.SetLineWidth(1)
		r.polygonPath(dc, sides, m.Radius)
		dc.Stroke()
		dc.Pop()
	}
}

// polygonPath traces a regular polygon around the origin, starting from
// the top vertex so shapes match their collision geometry.
func (r *Renderer) polygonPath(dc *gg.Context, sides int, radius float64) {
	for i := 0; i < sides; i++ {
		a := 2*math.Pi*float64(i)/float64(sides) - math.Pi/2
		x := radius * math.Cos(a)
		y := radius * math.Sin(a)
		if i == 0 {
			dc.MoveTo(x, y)
		} else {
			dc.LineTo(x, y)
		}
	}
	dc.ClosePath()
}

func (r *Renderer) drawHUD(dc *gg.Context, snap race.Snapshot) {
	if !r.hasFont {
		return
	}

	dc.SetColor(textColor)
	switch snap.State {
	case race.StateReady:
		dc.DrawStringAnchored("READY", float64(r.width)/2, 24, 0.5, 0.5)
	case race.StateRunning:
		dc.DrawStringAnchored(
			fmt.Sprintf("Finished: %d / %d", snap.Finished, snap.Total),
			float64(r.width)/2, 24, 0.5, 0.5)
		dc.SetColor(mutedTextColor)
		dc.DrawStringAnchored(
			fmt.Sprintf("%.1fs left", snap.Remaining),
			float64(r.width)/2, 44, 0.5, 0.5)
	case race.StateEdit:
		label := "EDIT"
		if snap.Preview {
			label = "PREVIEW"
		}
		dc.DrawStringAnchored(label, float64(r.width)/2, 24, 0.5, 0.5)
	}
}

// drawResults lists the top finishers once the race is over.
func (r *Renderer) drawResults(dc *gg.Context, snap race.Snapshot) {
	if !r.hasFont {
		return
	}

	dc.SetColor(textColor)
	dc.DrawStringAnchored("RESULTS", float64(r.width)/2, 60, 0.5, 0.5)

	const maxRows = 20
	y := 100.0
	for _, entry := range snap.Rank {
		if entry.Place > maxRows {
			break
		}
		dc.SetColor(parseHexColor(entry.Color))
		dc.DrawCircle(float64(r.width)/2-120, y-4, 7)
		dc.Fill()

		dc.SetColor(textColor)
		label := fmt.Sprintf("#%d  %s", entry.Place, entry.Name)
		if entry.TiedForLast {
			label += "  (tied)"
		}
		dc.DrawString(label, float64(r.width)/2-100, y)
		y += 26
	}
}

func sidesForShape(shape string) int {
	switch shape {
	case "Triangle":
		return 3
	case "Square":
		return 4
	case "Pentagon":
		return 5
	case "Hexagon":
		return 6
	default:
		return 0
	}
}

func parseHexColor(hex string) color.RGBA {
	if len(hex) != 7 || hex[0] != '#' {
		return color.RGBA{255, 255, 255, 255}
	}

	var r, g, b uint8
	fmt.Sscanf(hex[1:], "%02x%02x%02x", &r, &g, &b)
	return color.RGBA{r, g, b, 255}
}

func findFontPath() string {
	paths := []string{
		"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		"/System/Library/Fonts/Helvetica.ttc",
		"C:\\Windows\\Fonts\\arial.ttf",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	matches, _ := filepath.Glob("*.ttf")
	if len(matches) > 0 {
		return matches[0]
	}
	return ""
}
