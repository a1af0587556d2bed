package server

import (
	"fmt"
	"net/http"
	"time"
)

const streamInterval = 66 * time.Millisecond // ~15 FPS

// FrameSource supplies encoded preview frames.
type FrameSource interface {
	// Watch registers a viewer; the returned func unregisters it.
	Watch() func()
	// Latest returns the newest JPEG and a sequence number that changes
	// whenever a new frame is stored.
	Latest() ([]byte, uint64)
}

// StreamHandler serves the preview as MJPEG.
type StreamHandler struct {
	source FrameSource
}

// NewStreamHandler creates a StreamHandler over source.
func NewStreamHandler(source FrameSource) *StreamHandler {
	return &StreamHandler{source: source}
}

// ServeHTTP streams frames until the client disconnects.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	release := h.source.Watch()
	defer release()

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	var last uint64
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		jpeg, seq := h.source.Latest()
		if seq == 0 || seq == last {
			continue
		}
		last = seq

		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(jpeg))
		if _, err := w.Write(jpeg); err != nil {
			return
		}
		fmt.Fprintf(w, "\r\n")

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}
