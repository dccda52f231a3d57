package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"marble-race/internal/editor"
	"marble-race/internal/geom"
	"marble-race/internal/level"
	"marble-race/internal/race"

	"github.com/go-chi/chi/v5"
)

// editorHandlers serializes HTTP access to the single editor session.
// The editor itself is not concurrency-safe and chi runs handlers on
// arbitrary goroutines, so one mutex guards every call into it.
type editorHandlers struct {
	mu     sync.Mutex
	ed     *editor.Editor
	engine EngineInterface
}

func newEditorHandlers(ed *editor.Editor, engine EngineInterface) *editorHandlers {
	return &editorHandlers{ed: ed, engine: engine}
}

// routes mounts the editor endpoints. Pointer events mirror the canvas
// interaction model: press, move, release in canvas coordinates.
func (h *editorHandlers) routes(r chi.Router) {
	r.Get("/", h.handleStatus)
	r.Post("/mode", h.handleSetMode)
	r.Post("/press", h.handlePress)
	r.Post("/move", h.handleMove)
	r.Post("/release", h.handleRelease)
	r.Post("/undo", h.handleUndo)
	r.Post("/redo", h.handleRedo)
	r.Post("/delete", h.handleDelete)
	r.Post("/platform", h.handlePlatformProps)
	r.Post("/emitter", h.handleEmitterProps)
}

// markSaved clears the editor's dirty flag after a successful level save.
func (h *editorHandlers) markSaved() {
	h.mu.Lock()
	h.ed.MarkSaved()
	h.mu.Unlock()
}

// Wire types

type pointRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type selectionStatus struct {
	Kind   string `json:"kind"`
	ID     uint64 `json:"id,omitempty"`
	Handle string `json:"handle,omitempty"`
}

type drawStatus struct {
	StartX float64 `json:"startX"`
	StartY float64 `json:"startY"`
	EndX   float64 `json:"endX"`
	EndY   float64 `json:"endY"`
}

type editorStatus struct {
	Mode      string          `json:"mode"`
	Selection selectionStatus `json:"selection"`
	CanUndo   bool            `json:"canUndo"`
	CanRedo   bool            `json:"canRedo"`
	Modified  bool            `json:"modified"`
	Drawing   *drawStatus     `json:"drawing,omitempty"`
}

// statusLocked builds the status payload. Caller holds h.mu.
func (h *editorHandlers) statusLocked() editorStatus {
	sel := h.ed.Selection()
	status := editorStatus{
		Mode: string(h.ed.Mode()),
		Selection: selectionStatus{
			Kind: sel.Kind.String(),
			ID:   uint64(sel.ID),
		},
		CanUndo:  h.ed.CanUndo(),
		CanRedo:  h.ed.CanRedo(),
		Modified: h.ed.Modified(),
	}
	if sel.Kind == editor.SelectionHandle {
		if sel.Handle == level.EndpointEnd {
			status.Selection.Handle = "end"
		} else {
			status.Selection.Handle = "start"
		}
	}
	if active, start, end := h.ed.DrawPreview(); active {
		status.Drawing = &drawStatus{StartX: start.X, StartY: start.Y, EndX: end.X, EndY: end.Y}
	}
	return status
}

// requireEditMode rejects mutation outside the engine's edit state, so a
// stray client cannot rewrite the level mid-race.
func (h *editorHandlers) requireEditMode(w http.ResponseWriter) bool {
	if h.engine.Snapshot().State != race.StateEdit {
		writeError(w, "editor requires edit mode", http.StatusConflict)
		return false
	}
	return true
}

func decodePoint(w http.ResponseWriter, r *http.Request) (geom.Point, bool) {
	var req pointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return geom.Point{}, false
	}
	return geom.Point{X: req.X, Y: req.Y}, true
}

// Handlers

func (h *editorHandlers) handleStatus(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	status := h.statusLocked()
	h.mu.Unlock()
	writeJSON(w, status)
}

func (h *editorHandlers) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	mode := editor.Mode(req.Mode)
	switch mode {
	case editor.ModeSelect, editor.ModeWall, editor.ModePlatform,
		editor.ModeConveyor, editor.ModeEmitter, editor.ModeDelete:
	default:
		writeError(w, "Unknown mode: "+req.Mode, http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	h.ed.SetMode(mode)
	status := h.statusLocked()
	h.mu.Unlock()
	writeJSON(w, status)
}

func (h *editorHandlers) handlePress(w http.ResponseWriter, r *http.Request) {
	if !h.requireEditMode(w) {
		return
	}
	p, ok := decodePoint(w, r)
	if !ok {
		return
	}

	h.mu.Lock()
	h.ed.Press(p)
	status := h.statusLocked()
	h.mu.Unlock()
	writeJSON(w, status)
}

func (h *editorHandlers) handleMove(w http.ResponseWriter, r *http.Request) {
	if !h.requireEditMode(w) {
		return
	}
	p, ok := decodePoint(w, r)
	if !ok {
		return
	}

	h.mu.Lock()
	h.ed.Move(p)
	status := h.statusLocked()
	h.mu.Unlock()
	writeJSON(w, status)
}

func (h *editorHandlers) handleRelease(w http.ResponseWriter, r *http.Request) {
	if !h.requireEditMode(w) {
		return
	}
	p, ok := decodePoint(w, r)
	if !ok {
		return
	}

	h.mu.Lock()
	h.ed.Release(p)
	status := h.statusLocked()
	h.mu.Unlock()
	writeJSON(w, status)
}

func (h *editorHandlers) handleUndo(w http.ResponseWriter, r *http.Request) {
	if !h.requireEditMode(w) {
		return
	}

	h.mu.Lock()
	err := h.ed.Undo()
	status := h.statusLocked()
	h.mu.Unlock()

	if err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, status)
}

func (h *editorHandlers) handleRedo(w http.ResponseWriter, r *http.Request) {
	if !h.requireEditMode(w) {
		return
	}

	h.mu.Lock()
	err := h.ed.Redo()
	status := h.statusLocked()
	h.mu.Unlock()

	if err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, status)
}

func (h *editorHandlers) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !h.requireEditMode(w) {
		return
	}

	h.mu.Lock()
	err := h.ed.DeleteSelected()
	status := h.statusLocked()
	h.mu.Unlock()

	if err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, status)
}

func (h *editorHandlers) handlePlatformProps(w http.ResponseWriter, r *http.Request) {
	if !h.requireEditMode(w) {
		return
	}

	var req struct {
		Length          float64 `json:"length"`
		AngularVelocity float64 `json:"angularVelocity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	err := h.ed.SetPlatformProps(req.Length, req.AngularVelocity)
	status := h.statusLocked()
	h.mu.Unlock()

	if err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, status)
}

func (h *editorHandlers) handleEmitterProps(w http.ResponseWriter, r *http.Request) {
	if !h.requireEditMode(w) {
		return
	}

	// Start from the current emitter so partial updates keep unset fields
	var next level.Emitter
	h.engine.ReadLevel(func(l *level.Level) {
		next = l.Emitter
	})
	if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	err := h.ed.SetEmitterProps(next)
	status := h.statusLocked()
	h.mu.Unlock()

	if err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, status)
}
