package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/wavestop/internal/app"
	"github.com/ayusman/wavestop/internal/fsm"
)

type fakeController struct {
	mu     sync.Mutex
	status app.Status
	accept bool
	resets int
}

func (c *fakeController) Status() app.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *fakeController) RequestReset() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accept {
		c.resets++
	}
	return c.accept
}

func TestServer_Health(t *testing.T) {
	s := New(Config{})

	t.Run("returns 200 with JSON response", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", ct)
		}

		var response map[string]any
		if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response["status"] != "ok" {
			t.Errorf("expected status 'ok', got %v", response["status"])
		}
		if _, exists := response["uptime"]; !exists {
			t.Error("expected 'uptime' field in response")
		}
	})

	t.Run("only allows GET method", func(t *testing.T) {
		for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
			req := httptest.NewRequest(method, "/api/health", nil)
			rec := httptest.NewRecorder()

			s.ServeHTTP(rec, req)

			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("method %s: expected status %d, got %d", method, http.StatusMethodNotAllowed, rec.Code)
			}
		}
	})
}

func TestServer_Status(t *testing.T) {
	entered := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	ctrl := &fakeController{status: app.Status{
		State:       fsm.WaveDetected,
		StateName:   fsm.WaveDetected.String(),
		EnteredAt:   entered,
		ElapsedMs:   4000,
		RemainingMs: 6000,
		Tick:        120,
	}}
	s := New(Config{Controller: ctrl})

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var got struct {
		State       string    `json:"state"`
		EnteredAt   time.Time `json:"entered_at"`
		ElapsedMs   int64     `json:"elapsed_ms"`
		RemainingMs int64     `json:"remaining_ms"`
		Tick        int       `json:"tick"`
		WaveSamples int       `json:"wave_samples"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}

	if got.State != "wave_detected" || got.RemainingMs != 6000 || got.ElapsedMs != 4000 || got.Tick != 120 {
		t.Errorf("unexpected status %+v", got)
	}
	if !got.EnteredAt.Equal(entered) {
		t.Errorf("expected entered_at %s, got %s", entered, got.EnteredAt)
	}
}

func TestServer_Reset(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		ctrl := &fakeController{accept: true}
		s := New(Config{Controller: ctrl})

		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reset", nil))

		if rec.Code != http.StatusAccepted {
			t.Errorf("expected 202, got %d", rec.Code)
		}
		if ctrl.resets != 1 {
			t.Errorf("expected 1 reset request, got %d", ctrl.resets)
		}
	})

	t.Run("queue full", func(t *testing.T) {
		s := New(Config{Controller: &fakeController{accept: false}})

		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reset", nil))

		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", rec.Code)
		}
	})

	t.Run("GET not allowed", func(t *testing.T) {
		s := New(Config{Controller: &fakeController{accept: true}})

		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reset", nil))

		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})
}

func TestServer_RoutesDisabledWithoutDeps(t *testing.T) {
	s := New(Config{})

	for _, path := range []string{"/api/status", "/api/settings", "/api/executions", "/api/events", "/api/stream"} {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, rec.Code)
		}
	}
}

func TestServer_EmbeddedPage(t *testing.T) {
	s := New(Config{})

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "/api/events") {
		t.Error("expected status page to connect to the event stream")
	}
}

type fakeSource struct {
	mu      sync.Mutex
	viewers int
	jpeg    []byte
	seq     uint64
}

func (f *fakeSource) Watch() func() {
	f.mu.Lock()
	f.viewers++
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.viewers--
		f.mu.Unlock()
	}
}

func (f *fakeSource) Latest() ([]byte, uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jpeg, f.seq
}

func TestStreamHandler(t *testing.T) {
	src := &fakeSource{jpeg: []byte{0xFF, 0xD8, 0xFF, 0xD9}, seq: 1}
	h := NewStreamHandler(src)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "multipart/x-mixed-replace") {
		t.Errorf("unexpected Content-Type %q", ct)
	}

	body := rec.Body.String()
	if n := strings.Count(body, "--frame"); n != 1 {
		t.Errorf("expected the unchanged frame once, got %d parts", n)
	}
	if !strings.Contains(body, "Content-Length: 4") {
		t.Errorf("expected frame length header, got %q", body)
	}
	if src.viewers != 0 {
		t.Errorf("expected viewer released, got %d", src.viewers)
	}
}

func TestStreamHandler_MethodNotAllowed(t *testing.T) {
	h := NewStreamHandler(&fakeSource{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/stream", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}
