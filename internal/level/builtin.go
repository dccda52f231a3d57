package level

import "marble-race/internal/geom"

// Funnel returns the built-in funnel course: diagonal walls narrowing into a
// spout, a convex platform at the top center that marbles roll off, vertical
// guards at the edges, and three rotating platforms below the funnel mouth.
// Used when no level file is available.
func Funnel(width int) *Level {
	l := New("funnel")
	cx := float64(width) / 2

	const (
		funnelTopY   = 200.0
		funnelNeckY  = 500.0
		spoutBottomY = 700.0
		neckWidth    = 30.0
		topWidth     = 350.0
		platWidth    = 60.0
		guardHeight  = 250.0
	)

	segs := [][2]geom.Point{
		// Diagonal funnel walls.
		{{X: -topWidth, Y: funnelTopY}, {X: -neckWidth, Y: funnelNeckY}},
		{{X: topWidth, Y: funnelTopY}, {X: neckWidth, Y: funnelNeckY}},
		// Spout walls.
		{{X: -neckWidth, Y: funnelNeckY}, {X: -neckWidth, Y: spoutBottomY}},
		{{X: neckWidth, Y: funnelNeckY}, {X: neckWidth, Y: spoutBottomY}},
		// Convex platform at top center.
		{{X: -platWidth, Y: funnelTopY + 40}, {X: -platWidth / 2, Y: funnelTopY + 15}},
		{{X: -platWidth / 2, Y: funnelTopY + 15}, {X: 0, Y: funnelTopY}},
		{{X: 0, Y: funnelTopY}, {X: platWidth / 2, Y: funnelTopY + 15}},
		{{X: platWidth / 2, Y: funnelTopY + 15}, {X: platWidth, Y: funnelTopY + 40}},
		// Vertical guards keeping marbles in.
		{{X: -topWidth, Y: funnelTopY - guardHeight}, {X: -topWidth, Y: funnelTopY}},
		{{X: topWidth, Y: funnelTopY - guardHeight}, {X: topWidth, Y: funnelTopY}},
	}
	for _, s := range segs {
		l.AddWall(
			geom.Point{X: cx + s[0].X, Y: s[0].Y},
			geom.Point{X: cx + s[1].X, Y: s[1].Y},
		)
	}

	// Rotating platforms adding chaos below the funnel mouth.
	l.AddPlatform(geom.Point{X: cx - 120, Y: 350}, 50, 2.0)
	l.AddPlatform(geom.Point{X: cx + 120, Y: 350}, 50, -2.0)
	l.AddPlatform(geom.Point{X: cx, Y: 420}, 40, 3.0)

	return l
}
