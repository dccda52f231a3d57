package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"marble-race/internal/config"
	"marble-race/internal/level"
	"marble-race/internal/race"
)

// ============================================================================
// Test Helpers
// ============================================================================

// newTestRouter builds a router around a real engine. The engine loop is
// never started, so handlers exercise state transitions synchronously.
func newTestRouter(t *testing.T, levelsDir string) (http.Handler, *race.Engine) {
	t.Helper()

	engine := race.NewEngine(config.DefaultVideo(), config.DefaultSim(), level.Funnel(800), nil)

	limiter := NewIPRateLimiter(RateLimitConfig{
		RequestsPerSecond: 1000, // High limit so tests never trip it
		Burst:             1000,
		CleanupInterval:   time.Hour,
	})
	t.Cleanup(limiter.Stop)

	router := NewRouter(RouterConfig{
		Engine:         engine,
		LevelsDir:      levelsDir,
		RateLimiter:    limiter,
		DisableLogging: true,
	})
	return router, engine
}

func doJSON(t *testing.T, ts *httptest.Server, method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, ts.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

// ============================================================================
// State and Race Control
// ============================================================================

func TestGetStateReady(t *testing.T) {
	router, _ := newTestRouter(t, t.TempDir())
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp, body := doJSON(t, ts, "GET", "/api/state", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["state"] != "ready" {
		t.Errorf("state = %v, want ready", body["state"])
	}
	if body["levelName"] != "funnel" {
		t.Errorf("levelName = %v, want funnel", body["levelName"])
	}
}

func TestRaceStartAndDoubleStart(t *testing.T) {
	router, engine := newTestRouter(t, t.TempDir())
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp, body := doJSON(t, ts, "POST", "/api/race/start", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start status = %d, want 200", resp.StatusCode)
	}
	if body["status"] != "started" {
		t.Errorf("status = %v, want started", body["status"])
	}
	if engine.Snapshot().State != race.StateRunning {
		t.Errorf("engine state = %v, want running", engine.Snapshot().State)
	}

	// Starting a running race is a conflict
	resp, body = doJSON(t, ts, "POST", "/api/race/start", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("double start status = %d, want 409", resp.StatusCode)
	}
	if body["error"] == "" {
		t.Error("expected error message in response")
	}
}

func TestResetRequiresFinishedRace(t *testing.T) {
	router, _ := newTestRouter(t, t.TempDir())
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp, _ := doJSON(t, ts, "POST", "/api/race/reset", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("reset from ready status = %d, want 409", resp.StatusCode)
	}
}

func TestEditAndPreviewFlow(t *testing.T) {
	router, engine := newTestRouter(t, t.TempDir())
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp, _ := doJSON(t, ts, "POST", "/api/edit/enter", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("edit enter status = %d", resp.StatusCode)
	}
	if engine.Snapshot().State != race.StateEdit {
		t.Fatalf("engine state = %v, want edit", engine.Snapshot().State)
	}

	resp, _ = doJSON(t, ts, "POST", "/api/preview/start", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("preview start status = %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, ts, "POST", "/api/preview/stop", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("preview stop status = %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, ts, "POST", "/api/edit/exit", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("edit exit status = %d", resp.StatusCode)
	}
	if engine.Snapshot().State != race.StateReady {
		t.Errorf("engine state = %v, want ready", engine.Snapshot().State)
	}

	// Preview outside edit mode is rejected
	resp, _ = doJSON(t, ts, "POST", "/api/preview/start", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("preview from ready status = %d, want 409", resp.StatusCode)
	}
}

// ============================================================================
// Configuration
// ============================================================================

func TestConfigRoundTripWithClamping(t *testing.T) {
	router, _ := newTestRouter(t, t.TempDir())
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp, body := doJSON(t, ts, "POST", "/api/race/config", map[string]interface{}{
		"gravity":     5000.0,
		"marbleCount": 25,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set config status = %d", resp.StatusCode)
	}

	// Gravity clamps to the allowed ceiling; count passes through
	if body["gravity"] != 1200.0 {
		t.Errorf("gravity = %v, want 1200", body["gravity"])
	}
	if body["marbleCount"] != 25.0 {
		t.Errorf("marbleCount = %v, want 25", body["marbleCount"])
	}

	// GET reflects the stored values, and partial updates keep them
	_, body = doJSON(t, ts, "GET", "/api/race/config", nil)
	if body["marbleCount"] != 25.0 {
		t.Errorf("marbleCount after GET = %v, want 25", body["marbleCount"])
	}

	_, body = doJSON(t, ts, "POST", "/api/race/config", map[string]interface{}{
		"timeLimit": 45.0,
	})
	if body["marbleCount"] != 25.0 {
		t.Errorf("marbleCount after partial update = %v, want 25", body["marbleCount"])
	}
	if body["timeLimit"] != 45.0 {
		t.Errorf("timeLimit = %v, want 45", body["timeLimit"])
	}
}

func TestConfigRejectedWhileRunning(t *testing.T) {
	router, engine := newTestRouter(t, t.TempDir())
	ts := httptest.NewServer(router)
	defer ts.Close()

	if err := engine.StartRace(); err != nil {
		t.Fatalf("start race: %v", err)
	}

	resp, _ := doJSON(t, ts, "POST", "/api/race/config", map[string]interface{}{
		"gravity": 800.0,
	})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("set config while running status = %d, want 409", resp.StatusCode)
	}
}

// ============================================================================
// Levels
// ============================================================================

func TestLevelReplaceAndFetch(t *testing.T) {
	router, engine := newTestRouter(t, t.TempDir())
	ts := httptest.NewServer(router)
	defer ts.Close()

	doc := `{
		"name": "gauntlet",
		"walls": [{"start": [100, 200], "end": [700, 250]}],
		"platforms": [{"pos": [400, 400], "length": 60, "angular_velocity": 1.5}],
		"emitter": {"pos": [400, 50], "angle": 90, "width": 80, "speed": 120, "rate": 40, "count": 30}
	}`

	req, _ := http.NewRequest("POST", ts.URL+"/api/level", strings.NewReader(doc))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post level: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("post level status = %d", resp.StatusCode)
	}

	snap := engine.Snapshot()
	if snap.LevelName != "gauntlet" {
		t.Errorf("levelName = %q, want gauntlet", snap.LevelName)
	}
	if len(snap.Walls) != 1 || len(snap.Platforms) != 1 {
		t.Errorf("got %d walls, %d platforms, want 1 and 1", len(snap.Walls), len(snap.Platforms))
	}

	// GET /api/level returns a document that decodes back to the same level
	getResp, err := http.Get(ts.URL + "/api/level")
	if err != nil {
		t.Fatalf("get level: %v", err)
	}
	defer getResp.Body.Close()

	var fetched struct {
		Name  string          `json:"name"`
		Walls json.RawMessage `json:"walls"`
	}
	if err := json.NewDecoder(getResp.Body).Decode(&fetched); err != nil {
		t.Fatalf("decode level: %v", err)
	}
	if fetched.Name != "gauntlet" {
		t.Errorf("fetched name = %q, want gauntlet", fetched.Name)
	}
}

func TestLevelRejectsMalformedDocument(t *testing.T) {
	router, _ := newTestRouter(t, t.TempDir())
	ts := httptest.NewServer(router)
	defer ts.Close()

	req, _ := http.NewRequest("POST", ts.URL+"/api/level", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post level: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestLevelSaveLoadList(t *testing.T) {
	dir := t.TempDir()
	router, engine := newTestRouter(t, dir)
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp, body := doJSON(t, ts, "POST", "/api/level/save", map[string]string{"name": "course-a"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save status = %d: %v", resp.StatusCode, body)
	}
	if _, err := os.Stat(filepath.Join(dir, "course-a.json")); err != nil {
		t.Fatalf("saved file missing: %v", err)
	}

	_, listBody := doJSON(t, ts, "GET", "/api/levels", nil)
	levels, ok := listBody["levels"].([]interface{})
	if !ok || len(levels) != 1 {
		t.Fatalf("levels = %v, want one entry", listBody["levels"])
	}

	// Mutate the live level, then load the saved copy back
	engine.EditLevel(func(l *level.Level) error {
		l.Name = "scratch"
		return nil
	})

	resp, _ = doJSON(t, ts, "POST", "/api/level/load", map[string]string{"name": "course-a"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("load status = %d", resp.StatusCode)
	}
	if got := engine.Snapshot().LevelName; got != "course-a" {
		t.Errorf("levelName after load = %q, want course-a", got)
	}
}

func TestLevelNameTraversalRejected(t *testing.T) {
	router, _ := newTestRouter(t, t.TempDir())
	ts := httptest.NewServer(router)
	defer ts.Close()

	for _, name := range []string{"", "..", ".hidden"} {
		resp, _ := doJSON(t, ts, "POST", "/api/level/save", map[string]string{"name": name})
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("save %q status = %d, want 400", name, resp.StatusCode)
		}
	}

	// Path components are stripped, not honored
	resp, body := doJSON(t, ts, "POST", "/api/level/save", map[string]string{"name": "../escape"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save status = %d", resp.StatusCode)
	}
	if path, _ := body["path"].(string); strings.Contains(path, "..") {
		t.Errorf("path %q contains traversal", path)
	}
}

// ============================================================================
// Frame Endpoint and Rate Limiting
// ============================================================================

func TestFrameWithoutRenderer(t *testing.T) {
	router, _ := newTestRouter(t, t.TempDir())
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/frame")
	if err != nil {
		t.Fatalf("get frame: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestRateLimiterRejectsBurst(t *testing.T) {
	engine := race.NewEngine(config.DefaultVideo(), config.DefaultSim(), level.Funnel(800), nil)
	router := NewRouter(RouterConfig{
		Engine: engine,
		RateLimiter: NewIPRateLimiter(RateLimitConfig{
			RequestsPerSecond: 1,
			Burst:             2,
			CleanupInterval:   time.Hour,
		}),
		DisableLogging: true,
	})
	ts := httptest.NewServer(router)
	defer ts.Close()

	var rejected bool
	for i := 0; i < 5; i++ {
		resp, err := http.Get(ts.URL + "/api/state")
		if err != nil {
			t.Fatalf("get state: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			rejected = true
			if resp.Header.Get("Retry-After") == "" {
				t.Error("429 response missing Retry-After header")
			}
		}
	}
	if !rejected {
		t.Error("burst of 5 requests never hit the rate limit")
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"remote addr", "10.0.0.1:4321", nil, "10.0.0.1"},
		{"forwarded single", "10.0.0.1:4321", map[string]string{"X-Forwarded-For": "203.0.113.7"}, "203.0.113.7"},
		{"forwarded chain", "10.0.0.1:4321", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.2"}, "203.0.113.7"},
		{"real ip", "10.0.0.1:4321", map[string]string{"X-Real-IP": "198.51.100.3"}, "198.51.100.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := GetClientIP(r); got != tt.want {
				t.Errorf("GetClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsAllowedOrigin(t *testing.T) {
	allowed := []string{"http://localhost", "http://localhost:3000", "http://127.0.0.1:8080"}
	for _, origin := range allowed {
		if !IsAllowedOrigin(origin) {
			t.Errorf("IsAllowedOrigin(%q) = false, want true", origin)
		}
	}

	denied := []string{"", "https://example.com", "http://evil.test"}
	for _, origin := range denied {
		if IsAllowedOrigin(origin) {
			t.Errorf("IsAllowedOrigin(%q) = true, want false", origin)
		}
	}
}
