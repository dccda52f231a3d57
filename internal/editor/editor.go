// Package editor is the level editor's interaction layer: mode-based
// click routing, grid snapping, a single-selection model and drag
// sessions that all commit through the undoable command history.
package editor

import (
	"marble-race/internal/config"
	"marble-race/internal/geom"
	"marble-race/internal/level"
)

// Mode selects how canvas clicks are interpreted.
type Mode string

const (
	ModeSelect   Mode = "select"
	ModeWall     Mode = "wall"
	ModePlatform Mode = "platform"
	ModeConveyor Mode = "conveyor"
	ModeEmitter  Mode = "emitter"
	ModeDelete   Mode = "delete"
)

// Pick thresholds in canvas pixels.
const (
	wallPickThreshold     = 10.0
	handlePickThreshold   = 8.0
	platformPickThreshold = 15.0
	conveyorPickThreshold = 15.0
	emitterPickThreshold  = 30.0

	// Drags shorter than this are discarded as accidental clicks.
	minSegmentLength = 5.0
)

// New-platform and new-conveyor templates.
const (
	platformTemplateLength = 50.0
	platformTemplateAngVel = 2.0
	conveyorTemplateSpeed  = 100.0
)

// SelectionKind tags what the single selection points at.
type SelectionKind uint8

const (
	SelectionNone SelectionKind = iota
	SelectionWall
	SelectionHandle
	SelectionPlatform
	SelectionConveyor
	SelectionEmitter
)

// String returns the selection kind's wire name.
func (k SelectionKind) String() string {
	switch k {
	case SelectionWall:
		return "wall"
	case SelectionHandle:
		return "handle"
	case SelectionPlatform:
		return "platform"
	case SelectionConveyor:
		return "conveyor"
	case SelectionEmitter:
		return "emitter"
	default:
		return "none"
	}
}

// Selection is the editor's single selected element, referenced by
// stable ID so structural mutations cannot silently retarget it.
type Selection struct {
	Kind   SelectionKind
	ID     level.ID
	Handle level.Endpoint
}

// LevelHost serializes level access. The race engine implements it; a
// bare level wrapper is used in tests.
type LevelHost interface {
	EditLevel(fn func(*level.Level) error) error
	ReadLevel(fn func(*level.Level))
}

// Editor routes pointer input into level mutations. All committed
// mutations flow through the command history, including drag releases,
// so undo/redo covers every interaction uniformly.
type Editor struct {
	host    LevelHost
	history *level.History
	grid    config.GridConfig

	mode Mode
	sel  Selection

	// Wall/conveyor creation drag
	drawing            bool
	drawStart, drawEnd geom.Point

	// Endpoint drag session: before-state captured at press, one
	// Modify command committed at release.
	dragWall    bool
	dragWallOld level.Wall

	dragEmitter    bool
	dragEmitterOld level.Emitter

	modified bool
}

// New creates an editor over the host in select mode.
func New(host LevelHost, grid config.GridConfig) *Editor {
	return &Editor{
		host:    host,
		history: level.NewHistory(),
		grid:    grid,
		mode:    ModeSelect,
	}
}

// Mode returns the active tool mode.
func (ed *Editor) Mode() Mode { return ed.mode }

// SetMode switches tools, discarding any in-flight drag and selection.
func (ed *Editor) SetMode(mode Mode) {
	ed.mode = mode
	ed.sel = Selection{}
	ed.drawing = false
	ed.dragWall = false
	ed.dragEmitter = false
}

// Selection returns the current selection.
func (ed *Editor) Selection() Selection { return ed.sel }

// Modified reports whether the level changed since the last save.
func (ed *Editor) Modified() bool { return ed.modified }

// MarkSaved clears the modified flag after a successful save.
func (ed *Editor) MarkSaved() { ed.modified = false }

// DrawPreview exposes the live wall/conveyor drag for rendering.
func (ed *Editor) DrawPreview() (active bool, start, end geom.Point) {
	return ed.drawing, ed.drawStart, ed.drawEnd
}

func (ed *Editor) snap(p geom.Point) geom.Point {
	if !ed.grid.Enabled {
		return p
	}
	return geom.SnapToGrid(p, ed.grid.CellSize)
}

func (ed *Editor) execute(cmd level.Command) error {
	err := ed.host.EditLevel(func(l *level.Level) error {
		return ed.history.Execute(cmd, l)
	})
	if err == nil {
		ed.modified = true
	}
	return err
}

// =============================================================================
// POINTER INPUT
// =============================================================================

// Press routes a primary-button press at canvas position p.
func (ed *Editor) Press(p geom.Point) {
	snapped := ed.snap(p)

	switch ed.mode {
	case ModeSelect:
		ed.pressSelect(p)

	case ModeWall, ModeConveyor:
		ed.drawing = true
		ed.drawStart = snapped
		ed.drawEnd = snapped

	case ModePlatform:
		cmd := &level.AddPlatformCmd{
			Pos:             snapped,
			Length:          platformTemplateLength,
			AngularVelocity: platformTemplateAngVel,
		}
		if ed.execute(cmd) == nil {
			ed.selectLast(SelectionPlatform)
		}

	case ModeEmitter:
		var cmd *level.ModifyEmitterCmd
		ed.host.ReadLevel(func(l *level.Level) {
			next := l.Emitter
			next.Pos = snapped
			cmd = &level.ModifyEmitterCmd{Old: l.Emitter, New: next}
		})
		if ed.execute(cmd) == nil {
			ed.sel = Selection{Kind: SelectionEmitter}
		}

	case ModeDelete:
		ed.pressDelete(p)
	}
}

// pressSelect picks by priority: handle, wall body, platform, conveyor,
// emitter, none. Handles and the emitter begin a drag session.
func (ed *Editor) pressSelect(p geom.Point) {
	ed.host.ReadLevel(func(l *level.Level) {
		if i, ep, ok := l.NearestHandle(p, handlePickThreshold); ok {
			ed.sel = Selection{Kind: SelectionHandle, ID: l.Walls[i].ID, Handle: ep}
			ed.dragWall = true
			ed.dragWallOld = l.Walls[i]
			return
		}
		if i := l.NearestWall(p, wallPickThreshold); i >= 0 {
			ed.sel = Selection{Kind: SelectionWall, ID: l.Walls[i].ID}
			return
		}
		if i := l.NearestPlatform(p, platformPickThreshold); i >= 0 {
			ed.sel = Selection{Kind: SelectionPlatform, ID: l.Platforms[i].ID}
			return
		}
		if i := l.NearestConveyor(p, conveyorPickThreshold); i >= 0 {
			ed.sel = Selection{Kind: SelectionConveyor, ID: l.Conveyors[i].ID}
			return
		}
		if l.NearEmitter(p, emitterPickThreshold) {
			ed.sel = Selection{Kind: SelectionEmitter}
			ed.dragEmitter = true
			ed.dragEmitterOld = l.Emitter
			return
		}
		ed.sel = Selection{}
	})
}

// pressDelete deletes platform before wall before conveyor, matching
// the pick priority users expect when elements overlap.
func (ed *Editor) pressDelete(p geom.Point) {
	var cmd level.Command
	ed.host.ReadLevel(func(l *level.Level) {
		if i := l.NearestPlatform(p, platformPickThreshold); i >= 0 {
			cmd = &level.DeletePlatformCmd{Platform: l.Platforms[i]}
			return
		}
		if i := l.NearestWall(p, wallPickThreshold); i >= 0 {
			cmd = &level.DeleteWallCmd{Wall: l.Walls[i]}
			return
		}
		if i := l.NearestConveyor(p, conveyorPickThreshold); i >= 0 {
			cmd = &level.DeleteConveyorCmd{Conveyor: l.Conveyors[i]}
			return
		}
	})
	if cmd == nil {
		return
	}
	if ed.execute(cmd) == nil {
		ed.sel = Selection{}
	}
}

// Move routes pointer motion while the primary button is held.
func (ed *Editor) Move(p geom.Point) {
	snapped := ed.snap(p)

	switch {
	case ed.drawing:
		ed.drawEnd = snapped

	case ed.dragWall:
		// Transient in-place update; the command is committed at release.
		id, ep := ed.sel.ID, ed.sel.Handle
		_ = ed.host.EditLevel(func(l *level.Level) error {
			i := l.WallIndex(id)
			if i < 0 {
				return level.ErrStaleReference
			}
			if ep == level.EndpointStart {
				l.Walls[i].Start = snapped
			} else {
				l.Walls[i].End = snapped
			}
			return nil
		})

	case ed.dragEmitter:
		_ = ed.host.EditLevel(func(l *level.Level) error {
			l.Emitter.Pos = snapped
			return nil
		})
	}
}

// Release commits the in-flight drag, if any.
func (ed *Editor) Release(p geom.Point) {
	switch {
	case ed.drawing:
		ed.drawing = false
		if ed.drawStart.Distance(ed.drawEnd) <= minSegmentLength {
			return // accidental click, not an error
		}
		if ed.mode == ModeConveyor {
			cmd := &level.AddConveyorCmd{Start: ed.drawStart, End: ed.drawEnd, Speed: conveyorTemplateSpeed}
			if ed.execute(cmd) == nil {
				ed.selectLast(SelectionConveyor)
			}
			return
		}
		cmd := &level.AddWallCmd{Start: ed.drawStart, End: ed.drawEnd}
		if ed.execute(cmd) == nil {
			ed.selectLast(SelectionWall)
		}

	case ed.dragWall:
		ed.dragWall = false
		ed.commitWallDrag()

	case ed.dragEmitter:
		ed.dragEmitter = false
		ed.commitEmitterDrag()
	}
}

// commitWallDrag converts the finished endpoint drag into one Modify
// command so a single undo restores the pre-drag wall.
func (ed *Editor) commitWallDrag() {
	old := ed.dragWallOld
	var cmd *level.ModifyWallCmd
	ed.host.ReadLevel(func(l *level.Level) {
		i := l.WallIndex(old.ID)
		if i < 0 {
			return
		}
		cur := l.Walls[i]
		if cur.Start == old.Start && cur.End == old.End {
			return // nothing moved
		}
		cmd = &level.ModifyWallCmd{
			ID:       old.ID,
			OldStart: old.Start, OldEnd: old.End,
			NewStart: cur.Start, NewEnd: cur.End,
		}
	})
	if cmd != nil {
		_ = ed.execute(cmd)
	}
}

func (ed *Editor) commitEmitterDrag() {
	old := ed.dragEmitterOld
	var cmd *level.ModifyEmitterCmd
	ed.host.ReadLevel(func(l *level.Level) {
		if l.Emitter == old {
			return
		}
		cmd = &level.ModifyEmitterCmd{Old: old, New: l.Emitter}
	})
	if cmd != nil {
		_ = ed.execute(cmd)
	}
}

// selectLast points the selection at the newest entity of the given kind.
func (ed *Editor) selectLast(kind SelectionKind) {
	ed.host.ReadLevel(func(l *level.Level) {
		switch kind {
		case SelectionWall:
			if n := len(l.Walls); n > 0 {
				ed.sel = Selection{Kind: SelectionWall, ID: l.Walls[n-1].ID}
			}
		case SelectionPlatform:
			if n := len(l.Platforms); n > 0 {
				ed.sel = Selection{Kind: SelectionPlatform, ID: l.Platforms[n-1].ID}
			}
		case SelectionConveyor:
			if n := len(l.Conveyors); n > 0 {
				ed.sel = Selection{Kind: SelectionConveyor, ID: l.Conveyors[n-1].ID}
			}
		}
	})
}

// =============================================================================
// PROPERTY EDITS AND HISTORY
// =============================================================================

// DeleteSelected removes the selected element through the history.
func (ed *Editor) DeleteSelected() error {
	var cmd level.Command
	ed.host.ReadLevel(func(l *level.Level) {
		switch ed.sel.Kind {
		case SelectionPlatform:
			if i := l.PlatformIndex(ed.sel.ID); i >= 0 {
				cmd = &level.DeletePlatformCmd{Platform: l.Platforms[i]}
			}
		case SelectionWall, SelectionHandle:
			if i := l.WallIndex(ed.sel.ID); i >= 0 {
				cmd = &level.DeleteWallCmd{Wall: l.Walls[i]}
			}
		case SelectionConveyor:
			if i := l.ConveyorIndex(ed.sel.ID); i >= 0 {
				cmd = &level.DeleteConveyorCmd{Conveyor: l.Conveyors[i]}
			}
		}
	})
	if cmd == nil {
		return nil
	}
	if err := ed.execute(cmd); err != nil {
		return err
	}
	ed.sel = Selection{}
	return nil
}

// SetPlatformProps updates the selected platform through the history.
func (ed *Editor) SetPlatformProps(length, angularVelocity float64) error {
	if ed.sel.Kind != SelectionPlatform {
		return nil
	}
	var cmd *level.ModifyPlatformCmd
	ed.host.ReadLevel(func(l *level.Level) {
		i := l.PlatformIndex(ed.sel.ID)
		if i < 0 {
			return
		}
		old := l.Platforms[i]
		next := old
		next.Length = length
		next.AngularVelocity = angularVelocity
		cmd = &level.ModifyPlatformCmd{ID: old.ID, Old: old, New: next}
	})
	if cmd == nil {
		return nil
	}
	return ed.execute(cmd)
}

// SetEmitterProps replaces the emitter's parameters through the history.
func (ed *Editor) SetEmitterProps(next level.Emitter) error {
	var cmd *level.ModifyEmitterCmd
	ed.host.ReadLevel(func(l *level.Level) {
		if l.Emitter == next {
			return
		}
		cmd = &level.ModifyEmitterCmd{Old: l.Emitter, New: next}
	})
	if cmd == nil {
		return nil
	}
	return ed.execute(cmd)
}

// Undo reverts the newest command.
func (ed *Editor) Undo() error {
	err := ed.host.EditLevel(func(l *level.Level) error {
		return ed.history.Undo(l)
	})
	if err == nil {
		ed.modified = true
	}
	return err
}

// Redo re-applies the newest undone command.
func (ed *Editor) Redo() error {
	err := ed.host.EditLevel(func(l *level.Level) error {
		return ed.history.Redo(l)
	})
	if err == nil {
		ed.modified = true
	}
	return err
}

// CanUndo reports whether the undo stack is non-empty.
func (ed *Editor) CanUndo() bool { return ed.history.CanUndo() }

// CanRedo reports whether the redo stack is non-empty.
func (ed *Editor) CanRedo() bool { return ed.history.CanRedo() }
