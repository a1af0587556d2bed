// Package server provides wavestop's local HTTP API: health, live status,
// reset, stored settings, the execution audit, WebSocket events and an
// MJPEG camera preview.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/ayusman/wavestop/internal/app"
	"github.com/ayusman/wavestop/internal/config"
	"github.com/ayusman/wavestop/internal/server/api"
	"github.com/ayusman/wavestop/internal/store"
)

//go:embed web
var webFS embed.FS

// Controller is the running gesture system as the API sees it.
type Controller interface {
	Status() app.Status
	// RequestReset queues a reset and reports whether it was accepted.
	RequestReset() bool
}

// Config holds the server configuration. Nil fields disable their routes.
type Config struct {
	Controller Controller
	Store      *store.Store
	// Base is the configuration stored settings are validated against.
	Base    config.Config
	Events  http.Handler
	Preview FrameSource
}

// Server is the HTTP server.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	srv    *http.Server
}

// New creates a Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Controller != nil {
		s.mux.HandleFunc("/api/status", s.handleStatus)
		s.mux.HandleFunc("/api/reset", s.handleReset)
	}

	if s.config.Store != nil {
		settings := api.NewSettingsHandler(s.config.Store, s.config.Base)
		s.mux.Handle("/api/settings", settings)
		s.mux.Handle("/api/settings/", settings)
		s.mux.Handle("/api/executions", api.NewExecutionsHandler(s.config.Store))
	}

	if s.config.Events != nil {
		s.mux.Handle("/api/events", s.config.Events)
	}

	if s.config.Preview != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Preview))
	}

	static, err := fs.Sub(webFS, "web")
	if err != nil {
		log.Printf("embedded web assets unavailable: %v", err)
		return
	}
	s.mux.Handle("/", http.FileServer(http.FS(static)))
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).Round(time.Second).String(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, s.config.Controller.Status())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.config.Controller.RequestReset() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"queued": false})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"queued": true})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("encode response: %v", err)
	}
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.srv = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(ln)
	}()

	log.Printf("http listening on %s", ln.Addr())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
