// Package plugin discovers and runs the external action executors that carry
// out a shutdown. A plugin is a directory holding a plugin.json manifest and
// an executable that reads one JSON Request on stdin and writes one JSON
// Response on stdout.
package plugin

import (
	"encoding/json"
	"slices"
)

// Power plugin actions.
const (
	ActionShutdown          = "shutdown"
	ActionSimulatedShutdown = "simulated-shutdown"
)

// Manifest describes a plugin's metadata and the actions it accepts.
type Manifest struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Executable  string   `json:"executable"`
	Actions     []string `json:"actions"`
}

// Request is sent to a plugin on stdin.
type Request struct {
	Action string `json:"action"`
	// Trigger names the state machine action that caused the request.
	Trigger string          `json:"trigger"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is read from a plugin's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin is a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// Supports reports whether the manifest lists action.
func (p *Plugin) Supports(action string) bool {
	return slices.Contains(p.Manifest.Actions, action)
}
