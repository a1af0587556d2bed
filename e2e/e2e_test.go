package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/wavestop/internal/app"
	"github.com/ayusman/wavestop/internal/config"
	"github.com/ayusman/wavestop/internal/detector"
	"github.com/ayusman/wavestop/internal/fsm"
	"github.com/ayusman/wavestop/internal/notify"
	"github.com/ayusman/wavestop/internal/plugin"
	"github.com/ayusman/wavestop/internal/server"
	"github.com/ayusman/wavestop/internal/store"
	"github.com/ayusman/wavestop/internal/ws"
)

type system struct {
	app      *app.App
	detector *detector.MockDetector
	store    *store.Store
	server   *httptest.Server
	hub      *ws.Hub
	cancel   context.CancelFunc
	done     chan fsm.Action
}

// installPowerPlugin writes a power plugin that accepts every action.
func installPowerPlugin(t *testing.T, root string) {
	t.Helper()

	dir := filepath.Join(root, "power")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}

	manifest, _ := json.Marshal(plugin.Manifest{
		Name:       "power",
		Version:    "1.0.0",
		Executable: "power.sh",
		Actions:    []string{plugin.ActionShutdown, plugin.ActionSimulatedShutdown},
	})
	if err := os.WriteFile(filepath.Join(dir, "plugin.json"), manifest, 0644); err != nil {
		t.Fatal(err)
	}
	script := "#!/bin/sh\ncat >/dev/null\necho '{\"success\":true}'\n"
	if err := os.WriteFile(filepath.Join(dir, "power.sh"), []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
}

func startSystem(t *testing.T, tune func(*config.Config)) *system {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	tmpDir := t.TempDir()
	installPowerPlugin(t, filepath.Join(tmpDir, "plugins"))

	cfg := config.Default()
	cfg.Data.Dir = tmpDir
	cfg.Action.PluginDir = filepath.Join(tmpDir, "plugins")
	cfg.Gesture.ConfirmationTimeout = 0.3
	cfg.Gesture.ShutdownAnimation = 0.05
	cfg.Gesture.FallbackDelay = 0.05
	cfg.Camera.IdleFPS = 100
	cfg.Camera.ActiveFPS = 100
	cfg.UI.Popups = false
	if tune != nil {
		tune(&cfg)
	}

	s, err := store.New(filepath.Join(tmpDir, "wavestop.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	sys := &system{
		detector: detector.NewMockDetector(),
		store:    s,
		cancel:   cancel,
		done:     make(chan fsm.Action, 1),
	}

	sys.hub = ws.NewHub(func() any { return sys.app.Status() })
	sys.app, err = app.New(app.Config{
		Settings:  cfg,
		Store:     s,
		Source:    app.NewDetectorSource(sys.detector),
		Sinks:     []notify.Notifier{sys.hub},
		Publisher: sys.hub,
	})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	go sys.hub.Run(ctx)

	sys.server = httptest.NewServer(server.New(server.Config{
		Controller: sys.app,
		Store:      s,
		Base:       cfg,
		Events:     sys.hub.Handler(),
	}))
	t.Cleanup(sys.server.Close)

	go func() {
		action, _ := sys.app.Run(ctx)
		sys.done <- action
	}()
	return sys
}

func (s *system) status(t *testing.T) string {
	t.Helper()
	resp, err := s.server.Client().Get(s.server.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status error = %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		State string `json:"state"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	return body.State
}

func (s *system) waitForState(t *testing.T, want fsm.State) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if s.status(t) == want.String() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %s", want)
}

func wavePlusThumbs() [][]detector.HandLandmarks {
	var script [][]detector.HandLandmarks
	for _, hand := range detector.WaveSequence(20, 0.5, 0.08, 8) {
		script = append(script, []detector.HandLandmarks{hand})
	}
	for i := 0; i < 5; i++ {
		script = append(script, []detector.HandLandmarks{detector.ThumbsUpLandmarks()})
	}
	return script
}

func TestE2E_GestureShutdownWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	sys := startSystem(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(sys.server.URL, "http")+"/api/events", nil)
	if err != nil {
		t.Fatalf("dial error = %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello ws.Envelope
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("read hello error = %v", err)
	}
	if hello.Type != ws.TypeHello {
		t.Fatalf("expected hello, got %s", hello.Type)
	}

	sys.detector.SetScript(wavePlusThumbs())

	var (
		states       []string
		sawAction    bool
		sawConfirmed bool
	)
	for !sawAction || !sawConfirmed {
		var env struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := conn.ReadJSON(&env); err != nil {
			t.Fatalf("read event error = %v (states so far %v)", err, states)
		}

		switch env.Type {
		case ws.TypeState:
			var change app.StateChange
			json.Unmarshal(env.Data, &change)
			states = append(states, change.To)
		case ws.TypeNotification:
			var msg struct {
				Message string `json:"message"`
			}
			json.Unmarshal(env.Data, &msg)
			if msg.Message == fsm.MsgConfirmed {
				sawConfirmed = true
			}
		case ws.TypeAction:
			var res app.ActionResult
			json.Unmarshal(env.Data, &res)
			if !res.Success || res.Action != fsm.ActionNormalShutdown.String() {
				t.Errorf("unexpected action result %+v", res)
			}
			sawAction = true
		}
	}

	if len(states) != 2 || states[0] != fsm.WaveDetected.String() || states[1] != fsm.ShuttingDown.String() {
		t.Errorf("unexpected state sequence %v", states)
	}

	select {
	case action := <-sys.done:
		if action != fsm.ActionNormalShutdown {
			t.Errorf("expected NormalShutdown, got %s", action)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("app did not stop after the action")
	}

	t.Run("ExecutionRecorded", func(t *testing.T) {
		resp, err := sys.server.Client().Get(sys.server.URL + "/api/executions")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()

		var body struct {
			Executions []store.Execution `json:"executions"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if len(body.Executions) != 1 {
			t.Fatalf("expected 1 execution, got %d", len(body.Executions))
		}
		e := body.Executions[0]
		if e.PluginAction != plugin.ActionShutdown || !e.Success {
			t.Errorf("expected successful native shutdown, got %+v", e)
		}
	})

	t.Run("APIStillWorks", func(t *testing.T) {
		resp, err := sys.server.Client().Get(sys.server.URL + "/api/health")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("health check failed after shutdown, status %d", resp.StatusCode)
		}
	})
}

func TestE2E_ResetOverHTTP(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	sys := startSystem(t, func(cfg *config.Config) {
		cfg.Gesture.ConfirmationTimeout = 30
	})

	var script [][]detector.HandLandmarks
	for _, hand := range detector.WaveSequence(20, 0.5, 0.08, 8) {
		script = append(script, []detector.HandLandmarks{hand})
	}
	sys.detector.SetScript(script)
	sys.waitForState(t, fsm.WaveDetected)

	resp, err := sys.server.Client().Post(sys.server.URL+"/api/reset", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	sys.waitForState(t, fsm.Idle)

	sys.cancel()
	if action := <-sys.done; action != fsm.ActionNone {
		t.Errorf("expected no action after reset, got %s", action)
	}

	execs, err := sys.store.Executions().ListRecent(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(execs) != 0 {
		t.Errorf("expected no executions, got %d", len(execs))
	}
}

func TestE2E_StoredSettingsApply(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	sys := startSystem(t, nil)

	body := strings.NewReader(`{"gesture.confirmation_timeout": 4.5, "gesture.confirm_frames": 2}`)
	req, _ := http.NewRequest(http.MethodPut, sys.server.URL+"/api/settings", body)
	req.Header.Set("Content-Type", "application/json")
	resp, err := sys.server.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	stored, err := sys.store.Settings().All()
	if err != nil {
		t.Fatal(err)
	}

	// What the CLI does on the next start.
	cfg := config.Default()
	if err := cfg.ApplyOverrides(stored); err != nil {
		t.Fatalf("ApplyOverrides() error = %v", err)
	}
	if cfg.Gesture.ConfirmationTimeout != 4.5 || cfg.Gesture.ConfirmFrames != 2 {
		t.Errorf("stored settings not applied: %+v", cfg.Gesture)
	}
}
