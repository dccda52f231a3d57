package level

import (
	"errors"
	"reflect"
	"testing"

	"marble-race/internal/geom"
)

// TestUndoEmptyStack verifies undo/redo on empty stacks fail without panic
func TestUndoEmptyStack(t *testing.T) {
	l := New("t")
	h := NewHistory()

	if err := h.Undo(l); !errors.Is(err, ErrEmptyHistory) {
		t.Errorf("Undo on empty stack: got %v, want ErrEmptyHistory", err)
	}
	if err := h.Redo(l); !errors.Is(err, ErrEmptyHistory) {
		t.Errorf("Redo on empty stack: got %v, want ErrEmptyHistory", err)
	}
}

// TestAddWallUndoRedo walks a wall through execute, undo and redo
func TestAddWallUndoRedo(t *testing.T) {
	l := New("t")
	h := NewHistory()

	cmd := &AddWallCmd{Start: geom.Point{X: 0, Y: 0}, End: geom.Point{X: 100, Y: 0}}
	if err := h.Execute(cmd, l); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(l.Walls) != 1 {
		t.Fatalf("expected 1 wall, got %d", len(l.Walls))
	}

	if err := h.Undo(l); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if len(l.Walls) != 0 {
		t.Fatalf("undo left %d walls", len(l.Walls))
	}

	if err := h.Redo(l); err != nil {
		t.Fatalf("Redo: %v", err)
	}
	if len(l.Walls) != 1 {
		t.Fatalf("redo restored %d walls", len(l.Walls))
	}
	w := l.Walls[0]
	if w.Start != (geom.Point{X: 0, Y: 0}) || w.End != (geom.Point{X: 100, Y: 0}) {
		t.Errorf("redo restored wall with endpoints %v-%v", w.Start, w.End)
	}
}

// TestRoundTripLaw verifies N commands followed by N undos restore the model
func TestRoundTripLaw(t *testing.T) {
	l := New("t")
	l.AddWall(geom.Point{X: 0, Y: 0}, geom.Point{X: 50, Y: 50})
	l.AddPlatform(geom.Point{X: 100, Y: 100}, 40, 1)
	before := l.Clone()

	h := NewHistory()
	cmds := []Command{
		&AddWallCmd{Start: geom.Point{X: 10, Y: 10}, End: geom.Point{X: 90, Y: 10}},
		&AddPlatformCmd{Pos: geom.Point{X: 300, Y: 300}, Length: 50, AngularVelocity: 2},
		&ModifyWallCmd{
			ID:       l.Walls[0].ID,
			OldStart: l.Walls[0].Start, OldEnd: l.Walls[0].End,
			NewStart: geom.Point{X: 5, Y: 5}, NewEnd: geom.Point{X: 55, Y: 55},
		},
		&DeletePlatformCmd{Platform: l.Platforms[0]},
		&ModifyEmitterCmd{Old: l.Emitter, New: Emitter{Pos: geom.Point{X: 1, Y: 2}, Angle: 45, Width: 10, Rate: 5, Count: 10, Speed: 30}},
		&AddConveyorCmd{Start: geom.Point{X: 0, Y: 600}, End: geom.Point{X: 200, Y: 600}, Speed: 120},
	}
	for _, c := range cmds {
		if err := h.Execute(c, l); err != nil {
			t.Fatalf("Execute %s: %v", c.Name(), err)
		}
	}
	for range cmds {
		if err := h.Undo(l); err != nil {
			t.Fatalf("Undo: %v", err)
		}
	}

	if !reflect.DeepEqual(l.Walls, before.Walls) {
		t.Errorf("walls differ after round trip:\n got %+v\nwant %+v", l.Walls, before.Walls)
	}
	if !reflect.DeepEqual(l.Platforms, before.Platforms) {
		t.Errorf("platforms differ after round trip:\n got %+v\nwant %+v", l.Platforms, before.Platforms)
	}
	if !reflect.DeepEqual(l.Conveyors, before.Conveyors) {
		t.Errorf("conveyors differ after round trip")
	}
	if l.Emitter != before.Emitter {
		t.Errorf("emitter differs after round trip: %+v vs %+v", l.Emitter, before.Emitter)
	}
}

// TestHistoryInvalidationLaw verifies a new execute clears the redo stack
func TestHistoryInvalidationLaw(t *testing.T) {
	l := New("t")
	h := NewHistory()

	for i := 0; i < 3; i++ {
		cmd := &AddWallCmd{Start: geom.Point{Y: float64(i)}, End: geom.Point{X: 100, Y: float64(i)}}
		if err := h.Execute(cmd, l); err != nil {
			t.Fatalf("Execute: %v", err)
		}
	}
	if err := h.Undo(l); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if err := h.Undo(l); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if !h.CanRedo() {
		t.Fatal("expected redo available after undos")
	}

	if err := h.Execute(&AddPlatformCmd{Pos: geom.Point{X: 9, Y: 9}, Length: 40, AngularVelocity: 1}, l); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if h.CanRedo() {
		t.Error("redo stack must be cleared by a new execute")
	}
	if err := h.Redo(l); !errors.Is(err, ErrEmptyHistory) {
		t.Errorf("Redo after invalidation: got %v, want ErrEmptyHistory", err)
	}
}

// TestDeleteWallRestoresIndex verifies delete-before-undo index replay
func TestDeleteWallRestoresIndex(t *testing.T) {
	l := New("t")
	for i := 0; i < 3; i++ {
		l.AddWall(geom.Point{Y: float64(i * 10)}, geom.Point{X: 100, Y: float64(i * 10)})
	}
	middle := l.Walls[1]

	h := NewHistory()
	if err := h.Execute(&DeleteWallCmd{Wall: middle}, l); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(l.Walls) != 2 {
		t.Fatalf("expected 2 walls, got %d", len(l.Walls))
	}
	if err := h.Undo(l); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if l.Walls[1].ID != middle.ID {
		t.Errorf("wall not restored at index 1 (got ID %d)", l.Walls[1].ID)
	}
}

// TestStaleReference verifies out-of-band mutation is detected, not
// silently corrupted
func TestStaleReference(t *testing.T) {
	l := New("t")
	w := l.AddWall(geom.Point{}, geom.Point{X: 10, Y: 10})

	h := NewHistory()
	cmd := &ModifyWallCmd{
		ID:       w.ID,
		OldStart: w.Start, OldEnd: w.End,
		NewStart: geom.Point{X: 1, Y: 1}, NewEnd: geom.Point{X: 11, Y: 11},
	}
	if err := h.Execute(cmd, l); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	// Out-of-band structural mutation removes the wall entirely.
	l.RemoveWall(0)

	if err := h.Undo(l); !errors.Is(err, ErrStaleReference) {
		t.Errorf("Undo on stale target: got %v, want ErrStaleReference", err)
	}
}

// TestDeleteApplyStale verifies deleting an already-removed entity fails fast
func TestDeleteApplyStale(t *testing.T) {
	l := New("t")
	w := l.AddWall(geom.Point{}, geom.Point{X: 10, Y: 0})
	l.RemoveWall(0)

	h := NewHistory()
	err := h.Execute(&DeleteWallCmd{Wall: w}, l)
	if !errors.Is(err, ErrStaleReference) {
		t.Errorf("got %v, want ErrStaleReference", err)
	}
	if h.CanUndo() {
		t.Error("failed execute must not be pushed onto the undo stack")
	}
}
