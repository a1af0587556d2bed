package hud

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/ayusman/wavestop/internal/app"
	"github.com/ayusman/wavestop/internal/fsm"
)

func newScreen(t *testing.T) tcell.SimulationScreen {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("screen.Init() error = %v", err)
	}
	screen.SetSize(80, 24)
	return screen
}

// row reads n cells of row y starting at x.
func row(screen tcell.Screen, x, y, n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		r, _, _, _ := screen.GetContent(x+i, y)
		b.WriteRune(r)
	}
	return b.String()
}

func reversed(screen tcell.Screen, x, y int) bool {
	_, _, style, _ := screen.GetContent(x, y)
	_, _, attrs := style.Decompose()
	return attrs&tcell.AttrReverse != 0
}

func TestHUD_DrawIdle(t *testing.T) {
	screen := newScreen(t)
	defer screen.Fini()

	h := New(screen, nil)
	h.Draw(app.Status{State: fsm.Idle})

	want := "READY - Wave your hand to initiate shutdown"
	if got := row(screen, 2, 1, len(want)); got != want {
		t.Errorf("headline = %q, want %q", got, want)
	}
	if r, _, _, _ := screen.GetContent(0, 0); r != tcell.RuneULCorner {
		t.Errorf("expected panel corner, got %q", r)
	}
	if reversed(screen, 0, 0) {
		t.Error("idle panel must not blink")
	}
}

func TestHUD_DrawCountdown(t *testing.T) {
	screen := newScreen(t)
	defer screen.Fini()

	h := New(screen, nil)
	h.Draw(app.Status{State: fsm.WaveDetected, Remaining: 6300 * time.Millisecond})

	want := "Time left: 7s"
	if got := row(screen, 2, 2, len(want)); got != want {
		t.Errorf("detail = %q, want %q", got, want)
	}
}

func TestHUD_Blink(t *testing.T) {
	tests := []struct {
		state fsm.State
		tick  int
		on    bool
	}{
		{fsm.ShuttingDown, 0, true},
		{fsm.ShuttingDown, 4, true},
		{fsm.ShuttingDown, 5, false},
		{fsm.ShuttingDown, 13, true},
		{fsm.TimeoutShutdown, 7, true},
		{fsm.TimeoutShutdown, 8, false},
		{fsm.TimeoutShutdown, 14, false},
		{fsm.TimeoutShutdown, 15, true},
		{fsm.WaveDetected, 0, false},
	}

	screen := newScreen(t)
	defer screen.Fini()
	h := New(screen, nil)

	for _, tt := range tests {
		h.Draw(app.Status{State: tt.state, Tick: tt.tick})
		if got := reversed(screen, 0, 0); got != tt.on {
			t.Errorf("%s tick %d: blink = %v, want %v", tt.state, tt.tick, got, tt.on)
		}
	}
}

func TestHUD_Keys(t *testing.T) {
	screen := newScreen(t)

	resets, quits := 0, 0
	h := New(screen, func() app.Status { return app.Status{State: fsm.Idle} })
	h.OnReset(func() { resets++ })
	h.OnQuit(func() { quits++ })

	screen.InjectKey(tcell.KeyRune, 'r', tcell.ModNone)
	screen.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	h.Run(ctx)

	if ctx.Err() != nil {
		t.Fatal("expected q to stop the HUD before the deadline")
	}
	if resets != 1 {
		t.Errorf("expected 1 reset, got %d", resets)
	}
	if quits != 1 {
		t.Errorf("expected 1 quit, got %d", quits)
	}
}

func TestHUD_Escape(t *testing.T) {
	h := New(nil, nil)

	quit := false
	h.OnQuit(func() { quit = true })

	if !h.handleKey(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone)) || !quit {
		t.Error("expected Esc to quit")
	}
	if h.handleKey(tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone)) {
		t.Error("unbound key must not quit")
	}
}
