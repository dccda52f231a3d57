package api

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"marble-race/internal/level"
)

// Handler methods for routerHandlers
// These are used by both the standalone router (for testing) and the full Server.

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.Snapshot())
}

func (h *routerHandlers) handleGetRanks(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.Snapshot()
	writeJSON(w, map[string]interface{}{
		"state":    snap.State,
		"finished": snap.Finished,
		"total":    snap.Total,
		"rank":     snap.Rank,
	})
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.Snapshot()
	writeJSON(w, map[string]interface{}{
		"state":     snap.State,
		"tickCount": snap.TickCount,
		"active":    snap.Active,
		"emitted":   snap.Emitted,
		"pending":   snap.Pending,
		"events":    h.engine.EventStats(),
	})
}

func (h *routerHandlers) handleGetFrame(w http.ResponseWriter, r *http.Request) {
	if h.renderer == nil {
		writeError(w, "Renderer not configured", http.StatusServiceUnavailable)
		return
	}

	start := time.Now()
	png, err := h.renderer.RenderPNG(h.engine.Snapshot())
	RecordRender(time.Since(start))
	if err != nil {
		writeError(w, "Render failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(png)
}

func (h *routerHandlers) handleRaceStart(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.StartRace(); err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, map[string]string{"status": "started"})
}

func (h *routerHandlers) handleRaceReset(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.ResetRace(); err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, map[string]string{"status": "ready"})
}

func (h *routerHandlers) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.Sim())
}

func (h *routerHandlers) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	// Start from the current config so partial updates keep unset fields
	sim := h.engine.Sim()
	if err := json.NewDecoder(r.Body).Decode(&sim); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if err := h.engine.SetSim(sim); err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}

	// Echo back the clamped values
	writeJSON(w, h.engine.Sim())
}

func (h *routerHandlers) handleEditEnter(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.EnterEdit(); err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, map[string]string{"status": "edit"})
}

func (h *routerHandlers) handleEditExit(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.ExitEdit(); err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, map[string]string{"status": "ready"})
}

func (h *routerHandlers) handlePreviewStart(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.StartPreview(); err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, map[string]string{"status": "preview"})
}

func (h *routerHandlers) handlePreviewStop(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.StopPreview(); err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, map[string]string{"status": "edit"})
}

func (h *routerHandlers) handleListLevels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"levels": level.List(h.levelsDir),
	})
}

func (h *routerHandlers) handleGetLevel(w http.ResponseWriter, r *http.Request) {
	var snapshot *level.Level
	h.engine.ReadLevel(func(l *level.Level) {
		snapshot = l.Clone()
	})

	data, err := level.Encode(snapshot)
	if err != nil {
		writeError(w, "Encode failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (h *routerHandlers) handlePutLevel(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	lvl, err := level.Decode(body)
	if err != nil {
		writeError(w, "Invalid level: "+err.Error(), http.StatusBadRequest)
		return
	}

	h.engine.ReloadLevel(lvl)
	log.Printf("📂 Level replaced: %s", lvl.Name)
	writeJSON(w, map[string]string{"status": "loaded", "name": lvl.Name})
}

func (h *routerHandlers) handleSaveLevel(w http.ResponseWriter, r *http.Request) {
	name, ok := h.levelName(w, r)
	if !ok {
		return
	}

	var snapshot *level.Level
	h.engine.ReadLevel(func(l *level.Level) {
		snapshot = l.Clone()
	})
	snapshot.Name = strings.TrimSuffix(name, ".json")

	path := filepath.Join(h.levelsDir, name)
	if err := level.Save(path, snapshot); err != nil {
		writeError(w, "Save failed", http.StatusInternalServerError)
		return
	}
	if h.editor != nil {
		h.editor.markSaved()
	}

	log.Printf("💾 Level saved: %s", path)
	writeJSON(w, map[string]string{"status": "saved", "path": path})
}

func (h *routerHandlers) handleLoadLevel(w http.ResponseWriter, r *http.Request) {
	name, ok := h.levelName(w, r)
	if !ok {
		return
	}

	path := filepath.Join(h.levelsDir, name)
	lvl, err := level.Load(path)
	if err != nil {
		writeError(w, "Load failed: "+err.Error(), http.StatusNotFound)
		return
	}

	h.engine.ReloadLevel(lvl)
	log.Printf("📂 Level loaded: %s", path)
	writeJSON(w, map[string]string{"status": "loaded", "name": lvl.Name})
}

// levelName extracts and sanitizes the level file name from the request body.
// Rejects anything that could escape the levels directory.
func (h *routerHandlers) levelName(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return "", false
	}
	if req.Name == "" {
		writeError(w, "Name is required", http.StatusBadRequest)
		return "", false
	}

	name := filepath.Base(req.Name)
	if name == "." || name == ".." || strings.HasPrefix(name, ".") {
		writeError(w, "Invalid name", http.StatusBadRequest)
		return "", false
	}
	if !strings.HasSuffix(name, ".json") {
		name += ".json"
	}
	return name, true
}

// writeJSON writes a JSON response with the proper content type
func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("⚠️ Failed to encode JSON response: %v", err)
	}
}

// writeError writes a JSON error response with the given status code
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
