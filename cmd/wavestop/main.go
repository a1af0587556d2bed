// Wavestop shuts the computer down after a two-step hand gesture: a wave,
// then a thumbs-up within the confirmation window. Without the thumbs-up
// the shutdown falls back to simulated keyboard input.
//
// It loads configuration, opens the settings store, starts the HTTP and
// WebSocket server and runs the detection pipeline, optionally with a
// system tray icon or a terminal HUD. SIGINT or SIGTERM stops it.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/ayusman/wavestop/internal/app"
	"github.com/ayusman/wavestop/internal/capture"
	"github.com/ayusman/wavestop/internal/config"
	"github.com/ayusman/wavestop/internal/hud"
	"github.com/ayusman/wavestop/internal/notify"
	"github.com/ayusman/wavestop/internal/server"
	"github.com/ayusman/wavestop/internal/store"
	"github.com/ayusman/wavestop/internal/tray"
	"github.com/ayusman/wavestop/internal/ws"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", "", "Path to config TOML (default ~/.wavestop/config.toml)")
		bind       = pflag.String("bind", "", "HTTP bind address, empty string disables the server")
		dryRun     = pflag.Bool("dry-run", false, "Log shutdown actions instead of running them")
		showHUD    = pflag.Bool("hud", false, "Show the terminal status panel")
		showTray   = pflag.Bool("tray", false, "Show the system tray icon")
		cameraID   = pflag.Int("camera", 0, "Camera device id")
		debug      = pflag.Bool("debug", false, "Log every frame")
	)
	pflag.Parse()

	log.SetPrefix("wavestop ")
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	flags := pflag.CommandLine
	if flags.Changed("bind") {
		cfg.Server.Bind = *bind
	}
	if flags.Changed("dry-run") {
		cfg.Action.DryRun = *dryRun
	}
	if flags.Changed("hud") {
		cfg.UI.HUD = *showHUD
	}
	if flags.Changed("tray") {
		cfg.UI.Tray = *showTray
	}
	if flags.Changed("camera") {
		cfg.Camera.DeviceID = *cameraID
	}
	if *debug {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	if err := os.MkdirAll(cfg.Data.Dir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	// The HUD owns the terminal, so logs go to a file while it is shown.
	if cfg.UI.HUD {
		logFile, err := os.OpenFile(filepath.Join(cfg.Data.Dir, "wavestop.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.Fatalf("Failed to open log file: %v", err)
		}
		defer logFile.Close()
		log.SetOutput(logFile)
	}

	st, err := store.New(filepath.Join(cfg.Data.Dir, "wavestop.db"))
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	// Stored settings are validated against the file configuration.
	base := cfg
	if overrides, err := st.Settings().All(); err != nil {
		log.Printf("Failed to read stored settings: %v", err)
	} else if err := cfg.ApplyOverrides(overrides); err != nil {
		log.Printf("Ignoring stored settings: %v", err)
	} else if len(overrides) > 0 {
		log.Printf("Applied %d stored settings", len(overrides))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, stop, cfg, base, st); err != nil {
		log.Fatalf("wavestop failed: %v", err)
	}

	// Brief pause so in-flight log writes can flush before exit.
	time.Sleep(50 * time.Millisecond)
}

// loadConfig reads path, or the default location when path is empty. Only
// a missing default file falls back to the defaults.
func loadConfig(path string) (config.Config, error) {
	explicit := path != ""
	if !explicit {
		path = filepath.Join(config.Default().Data.Dir, "config.toml")
	}

	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) && !explicit {
		log.Printf("No config at %s, using defaults", path)
		return cfg, nil
	}
	return cfg, err
}

func run(ctx context.Context, stop context.CancelFunc, cfg, base config.Config, st *store.Store) error {
	preview := capture.NewPreview()

	var a *app.App
	hub := ws.NewHub(func() any { return a.Status() })

	sinks := []notify.Notifier{hub}
	var tr *tray.Tray
	if cfg.UI.Tray {
		tr = tray.New(func() app.Status { return a.Status() })
		sinks = append(sinks, tr)
	}

	a, err := app.New(app.Config{
		Settings:  cfg,
		Store:     st,
		Sinks:     sinks,
		Publisher: hub,
		Preview:   preview,
	})
	if err != nil {
		return err
	}

	go hub.Run(ctx)

	if cfg.Server.Bind != "" {
		srv := server.New(server.Config{
			Controller: a,
			Store:      st,
			Base:       base,
			Events:     hub.Handler(),
			Preview:    preview,
		})
		go func() {
			if err := srv.Run(ctx, cfg.Server.Bind); err != nil {
				log.Printf("Server failed: %v", err)
			}
		}()
	}

	hudDone := make(chan struct{})
	if cfg.UI.HUD {
		h, err := hud.NewTerminal(a.Status)
		if err != nil {
			return err
		}
		h.OnReset(func() { a.RequestReset() })
		h.OnQuit(stop)
		go func() {
			defer close(hudDone)
			h.Run(ctx)
		}()
	} else {
		close(hudDone)
	}

	type result struct {
		action string
		err    error
	}
	done := make(chan result, 1)
	go func() {
		action, err := a.Run(ctx)
		done <- result{action: action.String(), err: err}
		stop()
		if tr != nil {
			tr.Quit()
		}
	}()

	// systray needs the main goroutine.
	if tr != nil {
		tr.OnReset(func() { a.RequestReset() })
		tr.OnQuit(stop)
		tr.Run()
		stop()
	}

	res := <-done
	<-hudDone
	if res.err != nil {
		return res.err
	}
	log.Printf("Finished with action %s", res.action)
	return nil
}
