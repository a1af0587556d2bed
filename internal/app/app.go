// Package app runs the wavestop detection pipeline: it pulls landmarks from a
// source, drives the gesture engine, dispatches notifications and carries out
// the shutdown action the state machine settles on.
package app

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/wavestop/internal/capture"
	"github.com/ayusman/wavestop/internal/config"
	"github.com/ayusman/wavestop/internal/detector"
	"github.com/ayusman/wavestop/internal/fsm"
	"github.com/ayusman/wavestop/internal/notify"
	"github.com/ayusman/wavestop/internal/store"
)

// ErrAlreadyRunning is returned by Run when the pipeline is already running.
var ErrAlreadyRunning = errors.New("pipeline already running")

// StatusInterval bounds how often status updates are published while
// nothing changes.
const StatusInterval = 500 * time.Millisecond

// Publisher receives pipeline events for live clients.
type Publisher interface {
	Publish(kind string, data any) bool
}

// Config holds the collaborators of an App. Only Settings is required.
type Config struct {
	Settings config.Config
	Store    *store.Store

	// Source defaults to the camera with MediaPipe, or the mock detector
	// when MediaPipe is not available.
	Source Source
	// Runner defaults to a PluginRunner over Settings.Action.
	Runner ActionRunner
	// Sinks receive notifications next to the log and, when enabled,
	// desktop popups.
	Sinks     []notify.Notifier
	Publisher Publisher
	// Preview receives camera frames for the MJPEG stream.
	Preview *capture.Preview
	// Now defaults to time.Now.
	Now func() time.Time
}

// StateChange is the payload of a published state event.
type StateChange struct {
	From string    `json:"from"`
	To   string    `json:"to"`
	Time time.Time `json:"time"`
}

// ActionResult is the payload of a published action event.
type ActionResult struct {
	Action  string `json:"action"`
	Attempt int    `json:"attempt"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// App is the main application that turns gestures into a shutdown.
type App struct {
	settings  config.Config
	source    Source
	runner    ActionRunner
	notifier  *notify.Dispatcher
	publisher Publisher
	now       func() time.Time

	// engine is owned by the pipeline goroutine.
	engine *Engine
	resets chan struct{}

	running atomic.Bool

	mu     sync.RWMutex
	status Status
}

// New creates an App from cfg.
func New(cfg Config) (*App, error) {
	if err := cfg.Settings.Validate(); err != nil {
		return nil, err
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	source := cfg.Source
	if source == nil {
		source = newCameraSource(cfg.Settings, cfg.Preview)
	}

	runner := cfg.Runner
	if runner == nil {
		pr := NewPluginRunner(cfg.Settings.Action, cfg.Store)
		if err := pr.Discover(); err != nil {
			log.Printf("Failed to discover plugins: %v", err)
		}
		runner = pr
	}

	sinks := []notify.Notifier{notify.LogNotifier{}}
	if cfg.Settings.UI.Popups {
		sinks = append(sinks, notify.NewDesktopNotifier())
	}
	sinks = append(sinks, cfg.Sinks...)

	SetDebug(cfg.Settings.Log.Level == "debug")

	a := &App{
		settings:  cfg.Settings,
		source:    source,
		runner:    runner,
		notifier:  notify.NewDispatcher(notify.DefaultQueueSize, sinks...),
		publisher: cfg.Publisher,
		now:       now,
		engine:    NewEngine(cfg.Settings.Gesture, now()),
		resets:    make(chan struct{}, 1),
	}
	a.status = a.engine.Status(now())
	return a, nil
}

// newCameraSource tries MediaPipe first and falls back to the mock detector.
func newCameraSource(settings config.Config, preview *capture.Preview) Source {
	cam := capture.NewCamera(capture.Options{
		DeviceID: settings.Camera.DeviceID,
		Mirror:   settings.Camera.Mirror,
		FPS:      settings.Camera.IdleFPS,
	})

	var det detector.Detector
	mp, err := detector.NewMediaPipeDetector(detector.Config{
		MaxHands:        settings.Detector.MaxHands,
		MinConfidence:   settings.Detector.MinConfidence,
		MinTrackingConf: settings.Detector.MinTrackingConfidence,
	})
	if err == nil {
		det = mp
		log.Println("Using MediaPipe hand detection")
	} else {
		log.Printf("MediaPipe not available (%v), using mock detector", err)
		det = detector.NewMockDetector()
	}

	return NewCameraSource(cam, det, settings.Camera.MotionThreshold, preview)
}

// Run runs the pipeline until an action has been carried out or ctx is
// cancelled. It returns the executed action, or ActionNone on cancellation.
// Queued notifications are delivered before Run returns.
func (a *App) Run(ctx context.Context) (fsm.Action, error) {
	if !a.running.CompareAndSwap(false, true) {
		return fsm.ActionNone, ErrAlreadyRunning
	}
	defer a.running.Store(false)

	notifyCtx, stopNotify := context.WithCancel(context.Background())
	a.notifier.Start(notifyCtx)
	defer func() {
		stopNotify()
		a.notifier.Wait()
	}()

	defer func() {
		if err := a.source.Close(); err != nil {
			log.Printf("Error closing source: %v", err)
		}
	}()

	log.Println("Detection pipeline started")
	action := a.runPipeline(ctx)
	log.Println("Detection pipeline stopped")
	return action, nil
}

// RequestReset asks the pipeline to return to Idle. It never blocks and
// reports false when a reset is already queued.
func (a *App) RequestReset() bool {
	select {
	case a.resets <- struct{}{}:
		return true
	default:
		return false
	}
}

// Status returns the status as of the last pipeline tick.
func (a *App) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

// Settings returns the configuration the app was created with.
func (a *App) Settings() config.Config {
	return a.settings
}

func (a *App) setStatus(s Status) {
	a.mu.Lock()
	a.status = s
	a.mu.Unlock()
}

func (a *App) publish(kind string, data any) {
	if a.publisher != nil {
		a.publisher.Publish(kind, data)
	}
}
