// Package main provides the power plugin. It shuts the machine down either
// with the platform's shutdown command or, as a fallback, by simulating the
// keystrokes a user would type to do the same.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action  string          `json:"action"`
	Trigger string          `json:"trigger"`
	Params  json.RawMessage `json:"params"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type params struct {
	DryRun bool `json:"dry_run"`
}

// step is one command followed by a pause before the next.
type step struct {
	argv  []string
	pause time.Duration
}

// planner builds the steps for an action on the given OS.
type planner func(goos string) ([]step, error)

var actionPlanners = map[string]planner{
	"shutdown":           nativeShutdown,
	"simulated-shutdown": simulatedShutdown,
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	plan, ok := actionPlanners[req.Action]
	if !ok {
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}

	var p params
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &p); err != nil {
			writeErrorResponse(fmt.Sprintf("invalid params: %v", err))
			return
		}
	}

	steps, err := plan(runtime.GOOS)
	if err != nil {
		writeErrorResponse(err.Error())
		return
	}

	if !p.DryRun {
		if err := run(steps); err != nil {
			writeErrorResponse(fmt.Sprintf("action %s failed: %v", req.Action, err))
			return
		}
	}

	writeSuccessResponse(steps)
}

// nativeShutdown asks the OS to power off after a short grace period.
func nativeShutdown(goos string) ([]step, error) {
	switch goos {
	case "windows":
		return []step{{argv: []string{"shutdown", "/s", "/t", "5"}}}, nil
	case "darwin", "linux", "freebsd", "openbsd", "netbsd":
		return []step{{argv: []string{"shutdown", "-h", "+1"}}}, nil
	default:
		return nil, fmt.Errorf("unsupported operating system: %s", goos)
	}
}

// simulatedShutdown drives the desktop the way a user would.
func simulatedShutdown(goos string) ([]step, error) {
	switch goos {
	case "windows":
		return []step{
			{argv: powershell(`(New-Object -ComObject Shell.Application).MinimizeAll()`), pause: 500 * time.Millisecond},
			{argv: powershell(`(New-Object -ComObject WScript.Shell).SendKeys('%{F4}')`), pause: time.Second},
			{argv: powershell(`(New-Object -ComObject WScript.Shell).SendKeys('{ENTER}')`)},
		}, nil
	case "darwin":
		return []step{
			{argv: appleScript(`tell application "System Events" to keystroke space using command down`), pause: 500 * time.Millisecond},
			{argv: appleScript(`tell application "System Events" to keystroke "shutdown"`), pause: 500 * time.Millisecond},
			{argv: appleScript(`tell application "System Events" to key code 36`)},
		}, nil
	case "linux":
		return []step{
			{argv: []string{"xdotool", "key", "ctrl+alt+t"}, pause: time.Second},
			{argv: []string{"xdotool", "type", "sudo shutdown -h now"}, pause: 500 * time.Millisecond},
			{argv: []string{"xdotool", "key", "Return"}},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported operating system: %s", goos)
	}
}

func powershell(command string) []string {
	return []string{"powershell", "-NoProfile", "-Command", command}
}

func appleScript(script string) []string {
	return []string{"osascript", "-e", script}
}

// run executes the steps in order and stops at the first failure.
func run(steps []step) error {
	for _, s := range steps {
		output, err := exec.Command(s.argv[0], s.argv[1:]...).CombinedOutput()
		if err != nil {
			return fmt.Errorf("%s: %w: %s", s.argv[0], err, strings.TrimSpace(string(output)))
		}
		time.Sleep(s.pause)
	}
	return nil
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{
		Success: false,
		Error:   errMsg,
	})
}

// writeSuccessResponse writes a success response listing the commands run.
func writeSuccessResponse(steps []step) {
	commands := make([][]string, len(steps))
	for i, s := range steps {
		commands[i] = s.argv
	}
	data, _ := json.Marshal(map[string]any{"commands": commands})

	json.NewEncoder(os.Stdout).Encode(Response{
		Success: true,
		Data:    data,
	})
}
