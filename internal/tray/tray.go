// Package tray provides a system tray interface for wavestop: a live
// status line, the last notification, and Reset and Quit items.
package tray

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/ayusman/wavestop/internal/app"
	"github.com/ayusman/wavestop/internal/fsm"
)

// RefreshInterval is how often the status line is redrawn.
const RefreshInterval = 250 * time.Millisecond

// Tray represents the system tray application.
type Tray struct {
	status  func() app.Status
	onReset func()
	onQuit  func()
	mu      sync.RWMutex

	lastMessage string
	done        chan struct{}

	// Menu items stored for later updates
	menuStatus  *systray.MenuItem
	menuMessage *systray.MenuItem
}

// New creates a Tray that polls status for its status line.
func New(status func() app.Status) *Tray {
	return &Tray{
		status: status,
		done:   make(chan struct{}),
	}
}

// OnReset sets the callback function to be called when the reset menu item is clicked.
func (t *Tray) OnReset(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onReset = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application. It must be called from the main
// goroutine and blocks until Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray, making Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("wavestop")
	systray.SetTooltip("wavestop gesture shutdown")

	t.mu.Lock()
	t.menuStatus = systray.AddMenuItem(statusLine(t.status()), "Gesture state")
	t.menuStatus.Disable()
	t.menuMessage = systray.AddMenuItem(messageLine(t.lastMessage), "Last notification")
	t.menuMessage.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuReset := systray.AddMenuItem("Reset", "Cancel the shutdown challenge")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit wavestop")

	go func() {
		ticker := time.NewTicker(RefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.refresh()
			case <-menuReset.ClickedCh:
				t.handleReset()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			case <-t.done:
				return
			}
		}
	}()
}

func (t *Tray) onExit() {
	close(t.done)
}

func (t *Tray) refresh() {
	line := statusLine(t.status())

	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.menuStatus != nil {
		t.menuStatus.SetTitle(line)
	}
}

func (t *Tray) handleReset() {
	t.mu.RLock()
	callback := t.onReset
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// Notify shows message as the last notification. It satisfies
// notify.Notifier and may be called before the tray is ready.
func (t *Tray) Notify(_ context.Context, message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastMessage = message
	if t.menuMessage != nil {
		t.menuMessage.SetTitle(messageLine(message))
	}
	return nil
}

// LastMessage returns the last notification shown.
func (t *Tray) LastMessage() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastMessage
}

func messageLine(message string) string {
	if message == "" {
		return "Last: none"
	}
	return "Last: " + message
}

// statusLine renders s as a one-line menu title.
func statusLine(s app.Status) string {
	switch s.State {
	case fsm.Idle:
		return "● Ready: wave to start"
	case fsm.WaveDetected:
		return fmt.Sprintf("◐ Show thumbs up (%ds left)", ceilSeconds(s.Remaining))
	case fsm.ShuttingDown:
		return fmt.Sprintf("○ Shutting down in %ds", ceilSeconds(s.Remaining))
	case fsm.TimeoutShutdown:
		return fmt.Sprintf("○ Timeout: simulated shutdown in %ds", ceilSeconds(s.Remaining))
	default:
		return s.State.String()
	}
}

func ceilSeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}
