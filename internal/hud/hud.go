// Package hud draws a terminal status panel for the gesture challenge and
// maps keys to reset and quit.
package hud

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/ayusman/wavestop/internal/app"
	"github.com/ayusman/wavestop/internal/fsm"
)

// RefreshInterval is how often the panel is redrawn.
const RefreshInterval = 100 * time.Millisecond

const panelWidth = 56

var (
	styleDefault = tcell.StyleDefault
	styleBorder  = tcell.StyleDefault.Foreground(tcell.ColorWhite)
	styleIdle    = tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true)
	styleWave    = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	styleDown    = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	styleTimeout = tcell.StyleDefault.Foreground(tcell.ColorOrange).Bold(true)
	styleHint    = tcell.StyleDefault.Foreground(tcell.ColorSilver)
)

// HUD renders app status onto a tcell screen.
type HUD struct {
	screen  tcell.Screen
	status  func() app.Status
	onReset func()
	onQuit  func()
}

// New creates a HUD on an initialized screen.
func New(screen tcell.Screen, status func() app.Status) *HUD {
	return &HUD{screen: screen, status: status}
}

// NewTerminal creates a HUD on the controlling terminal.
func NewTerminal(status func() app.Status) (*HUD, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	return New(screen, status), nil
}

// OnReset sets the callback for the r key.
func (h *HUD) OnReset(fn func()) { h.onReset = fn }

// OnQuit sets the callback for q, Esc and Ctrl-C.
func (h *HUD) OnQuit(fn func()) { h.onQuit = fn }

// Run redraws the panel and handles keys until ctx is cancelled or a quit
// key is pressed. The screen is finalized before Run returns.
func (h *HUD) Run(ctx context.Context) {
	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := h.screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()
	defer h.screen.Fini()

	ticker := time.NewTicker(RefreshInterval)
	defer ticker.Stop()

	h.Draw(h.status())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Draw(h.status())
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventResize:
				h.screen.Sync()
				h.Draw(h.status())
			case *tcell.EventKey:
				if h.handleKey(ev) {
					return
				}
			}
		}
	}
}

// handleKey runs the callback bound to ev and reports whether it was a
// quit key.
func (h *HUD) handleKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		h.quit()
		return true
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q', 'Q':
			h.quit()
			return true
		case 'r', 'R':
			if h.onReset != nil {
				h.onReset()
			}
		}
	}
	return false
}

func (h *HUD) quit() {
	if h.onQuit != nil {
		h.onQuit()
	}
}

// Draw renders s.
func (h *HUD) Draw(s app.Status) {
	h.screen.Clear()

	v := viewOf(s)
	border := styleBorder
	if v.blink {
		border = v.style.Reverse(true)
	}

	h.box(0, 0, panelWidth, 7, border)
	h.text(2, 1, v.headline, v.style)
	h.text(2, 2, v.detail, styleDefault)
	h.text(2, 3, v.hint, styleHint)
	h.text(2, 5, "[r] reset   [q] quit", styleHint)

	h.screen.Show()
}

// view is what the panel shows for one status.
type view struct {
	headline string
	detail   string
	hint     string
	style    tcell.Style
	blink    bool
}

func viewOf(s app.Status) view {
	switch s.State {
	case fsm.WaveDetected:
		return view{
			headline: "WAVE DETECTED! Show thumbs up to confirm",
			detail:   fmt.Sprintf("Time left: %ds", int(math.Ceil(s.Remaining.Seconds()))),
			hint:     "Thumb up, other fingers curled",
			style:    styleWave,
		}
	case fsm.ShuttingDown:
		return view{
			headline: "SHUTTING DOWN... Bye bye!",
			detail:   fmt.Sprintf("Powering off in %.1fs", s.Remaining.Seconds()),
			hint:     "Press r to cancel",
			style:    styleDown,
			blink:    s.Tick%10 < 5,
		}
	case fsm.TimeoutShutdown:
		return view{
			headline: "TIMEOUT! Using simulated input to shut down...",
			detail:   fmt.Sprintf("Simulated shutdown in %.1fs", s.Remaining.Seconds()),
			hint:     "Press r to cancel",
			style:    styleTimeout,
			blink:    s.Tick%15 < 8,
		}
	default:
		return view{
			headline: "READY - Wave your hand to initiate shutdown",
			detail:   "Step 1: Wave hand side to side",
			hint:     "Step 2: Show thumbs up to confirm",
			style:    styleIdle,
		}
	}
}

func (h *HUD) text(x, y int, s string, style tcell.Style) {
	for _, r := range s {
		h.screen.SetContent(x, y, r, nil, style)
		x++
	}
}

func (h *HUD) box(x, y, w, ht int, style tcell.Style) {
	for i := x + 1; i < x+w-1; i++ {
		h.screen.SetContent(i, y, tcell.RuneHLine, nil, style)
		h.screen.SetContent(i, y+ht-1, tcell.RuneHLine, nil, style)
	}
	for j := y + 1; j < y+ht-1; j++ {
		h.screen.SetContent(x, j, tcell.RuneVLine, nil, style)
		h.screen.SetContent(x+w-1, j, tcell.RuneVLine, nil, style)
	}
	h.screen.SetContent(x, y, tcell.RuneULCorner, nil, style)
	h.screen.SetContent(x+w-1, y, tcell.RuneURCorner, nil, style)
	h.screen.SetContent(x, y+ht-1, tcell.RuneLLCorner, nil, style)
	h.screen.SetContent(x+w-1, y+ht-1, tcell.RuneLRCorner, nil, style)
}
