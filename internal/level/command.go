package level

import (
	"errors"
	"fmt"

	"marble-race/internal/geom"
)

// ErrEmptyHistory is returned by Undo/Redo when the corresponding stack is
// empty. Callers typically ignore it.
var ErrEmptyHistory = errors.New("history: nothing to undo or redo")

// ErrStaleReference is returned when a command's captured entity ID no
// longer resolves where the command expects it. This replaces the silent
// corruption an index-only command scheme would allow.
var ErrStaleReference = errors.New("history: stale entity reference")

// Command is a reversible level mutation.
type Command interface {
	Apply(*Level) error
	Undo(*Level) error
	Name() string
}

// History manages linear undo/redo stacks. A new Execute invalidates all
// previously undone state.
type History struct {
	undo []Command
	redo []Command
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{}
}

// Execute applies cmd and pushes it onto the undo stack, clearing the redo
// stack. A failed apply leaves the history untouched.
func (h *History) Execute(cmd Command, l *Level) error {
	if err := cmd.Apply(l); err != nil {
		return fmt.Errorf("%s: %w", cmd.Name(), err)
	}
	h.undo = append(h.undo, cmd)
	h.redo = h.redo[:0]
	return nil
}

// Undo reverts the most recent command. Returns ErrEmptyHistory when there
// is nothing to undo.
func (h *History) Undo(l *Level) error {
	if len(h.undo) == 0 {
		return ErrEmptyHistory
	}
	cmd := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	if err := cmd.Undo(l); err != nil {
		return fmt.Errorf("undo %s: %w", cmd.Name(), err)
	}
	h.redo = append(h.redo, cmd)
	return nil
}

// Redo re-applies the most recently undone command. Returns ErrEmptyHistory
// when there is nothing to redo.
func (h *History) Redo(l *Level) error {
	if len(h.redo) == 0 {
		return ErrEmptyHistory
	}
	cmd := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	if err := cmd.Apply(l); err != nil {
		return fmt.Errorf("redo %s: %w", cmd.Name(), err)
	}
	h.undo = append(h.undo, cmd)
	return nil
}

// CanUndo reports whether the undo stack is non-empty.
func (h *History) CanUndo() bool { return len(h.undo) > 0 }

// CanRedo reports whether the redo stack is non-empty.
func (h *History) CanRedo() bool { return len(h.redo) > 0 }

// Clear drops both stacks.
func (h *History) Clear() {
	h.undo = h.undo[:0]
	h.redo = h.redo[:0]
}

// =============================================================================
// WALL COMMANDS
// =============================================================================

// AddWallCmd appends a wall. The wall's ID is allocated on first apply and
// reused on redo so undo can keep resolving it.
type AddWallCmd struct {
	Start, End geom.Point
	wall       Wall
}

func (c *AddWallCmd) Name() string { return "add wall" }

func (c *AddWallCmd) Apply(l *Level) error {
	if c.wall.ID == 0 {
		c.wall = l.AddWall(c.Start, c.End)
		return nil
	}
	l.InsertWall(len(l.Walls), c.wall)
	return nil
}

func (c *AddWallCmd) Undo(l *Level) error {
	idx := l.WallIndex(c.wall.ID)
	if idx < 0 {
		return ErrStaleReference
	}
	l.RemoveWall(idx)
	return nil
}

// DeleteWallCmd removes a wall, remembering its index so undo restores the
// original ordering.
type DeleteWallCmd struct {
	Wall  Wall
	Index int
}

func (c *DeleteWallCmd) Name() string { return "delete wall" }

func (c *DeleteWallCmd) Apply(l *Level) error {
	idx := l.WallIndex(c.Wall.ID)
	if idx < 0 {
		return ErrStaleReference
	}
	c.Index = idx
	l.RemoveWall(idx)
	return nil
}

func (c *DeleteWallCmd) Undo(l *Level) error {
	if l.WallIndex(c.Wall.ID) >= 0 {
		return ErrStaleReference
	}
	l.InsertWall(c.Index, c.Wall)
	return nil
}

// ModifyWallCmd replaces a wall's endpoints.
type ModifyWallCmd struct {
	ID               ID
	OldStart, OldEnd geom.Point
	NewStart, NewEnd geom.Point
}

func (c *ModifyWallCmd) Name() string { return "modify wall" }

func (c *ModifyWallCmd) set(l *Level, start, end geom.Point) error {
	idx := l.WallIndex(c.ID)
	if idx < 0 {
		return ErrStaleReference
	}
	l.Walls[idx].Start = start
	l.Walls[idx].End = end
	return nil
}

func (c *ModifyWallCmd) Apply(l *Level) error { return c.set(l, c.NewStart, c.NewEnd) }
func (c *ModifyWallCmd) Undo(l *Level) error  { return c.set(l, c.OldStart, c.OldEnd) }

// =============================================================================
// PLATFORM COMMANDS
// =============================================================================

// AddPlatformCmd appends a platform.
type AddPlatformCmd struct {
	Pos             geom.Point
	Length          float64
	AngularVelocity float64
	platform        Platform
}

func (c *AddPlatformCmd) Name() string { return "add platform" }

func (c *AddPlatformCmd) Apply(l *Level) error {
	if c.platform.ID == 0 {
		c.platform = l.AddPlatform(c.Pos, c.Length, c.AngularVelocity)
		return nil
	}
	l.InsertPlatform(len(l.Platforms), c.platform)
	return nil
}

func (c *AddPlatformCmd) Undo(l *Level) error {
	idx := l.PlatformIndex(c.platform.ID)
	if idx < 0 {
		return ErrStaleReference
	}
	l.RemovePlatform(idx)
	return nil
}

// DeletePlatformCmd removes a platform, remembering its index for undo.
type DeletePlatformCmd struct {
	Platform Platform
	Index    int
}

func (c *DeletePlatformCmd) Name() string { return "delete platform" }

func (c *DeletePlatformCmd) Apply(l *Level) error {
	idx := l.PlatformIndex(c.Platform.ID)
	if idx < 0 {
		return ErrStaleReference
	}
	c.Index = idx
	l.RemovePlatform(idx)
	return nil
}

func (c *DeletePlatformCmd) Undo(l *Level) error {
	if l.PlatformIndex(c.Platform.ID) >= 0 {
		return ErrStaleReference
	}
	l.InsertPlatform(c.Index, c.Platform)
	return nil
}

// ModifyPlatformCmd replaces a platform's properties.
type ModifyPlatformCmd struct {
	ID       ID
	Old, New Platform
}

func (c *ModifyPlatformCmd) Name() string { return "modify platform" }

func (c *ModifyPlatformCmd) set(l *Level, props Platform) error {
	idx := l.PlatformIndex(c.ID)
	if idx < 0 {
		return ErrStaleReference
	}
	props.ID = c.ID
	l.Platforms[idx] = props
	return nil
}

func (c *ModifyPlatformCmd) Apply(l *Level) error { return c.set(l, c.New) }
func (c *ModifyPlatformCmd) Undo(l *Level) error  { return c.set(l, c.Old) }

// =============================================================================
// CONVEYOR COMMANDS
// =============================================================================

// AddConveyorCmd appends a conveyor.
type AddConveyorCmd struct {
	Start, End geom.Point
	Speed      float64
	conveyor   Conveyor
}

func (c *AddConveyorCmd) Name() string { return "add conveyor" }

func (c *AddConveyorCmd) Apply(l *Level) error {
	if c.conveyor.ID == 0 {
		c.conveyor = l.AddConveyor(c.Start, c.End, c.Speed)
		return nil
	}
	l.InsertConveyor(len(l.Conveyors), c.conveyor)
	return nil
}

func (c *AddConveyorCmd) Undo(l *Level) error {
	idx := l.ConveyorIndex(c.conveyor.ID)
	if idx < 0 {
		return ErrStaleReference
	}
	l.RemoveConveyor(idx)
	return nil
}

// DeleteConveyorCmd removes a conveyor, remembering its index for undo.
type DeleteConveyorCmd struct {
	Conveyor Conveyor
	Index    int
}

func (c *DeleteConveyorCmd) Name() string { return "delete conveyor" }

func (c *DeleteConveyorCmd) Apply(l *Level) error {
	idx := l.ConveyorIndex(c.Conveyor.ID)
	if idx < 0 {
		return ErrStaleReference
	}
	c.Index = idx
	l.RemoveConveyor(idx)
	return nil
}

func (c *DeleteConveyorCmd) Undo(l *Level) error {
	if l.ConveyorIndex(c.Conveyor.ID) >= 0 {
		return ErrStaleReference
	}
	l.InsertConveyor(c.Index, c.Conveyor)
	return nil
}

// =============================================================================
// EMITTER COMMAND
// =============================================================================

// ModifyEmitterCmd replaces the singleton emitter's properties.
type ModifyEmitterCmd struct {
	Old, New Emitter
}

func (c *ModifyEmitterCmd) Name() string { return "modify emitter" }

func (c *ModifyEmitterCmd) Apply(l *Level) error {
	l.Emitter = c.New
	return nil
}

func (c *ModifyEmitterCmd) Undo(l *Level) error {
	l.Emitter = c.Old
	return nil
}
