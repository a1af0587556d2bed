package notify

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// ErrUnsupportedPlatform is returned when no popup mechanism is known for the OS.
var ErrUnsupportedPlatform = errors.New("desktop notifications not supported on this platform")

// DesktopTitle is the title shown on desktop popups.
const DesktopTitle = "Gesture System"

// DesktopNotifier shows a native desktop popup per message.
type DesktopNotifier struct {
	goos string
}

// NewDesktopNotifier creates a DesktopNotifier for the running OS.
func NewDesktopNotifier() *DesktopNotifier {
	return &DesktopNotifier{goos: runtime.GOOS}
}

// Notify shows message using the platform's notification tool.
func (n *DesktopNotifier) Notify(ctx context.Context, message string) error {
	name, args, err := desktopCommand(n.goos, message)
	if err != nil {
		return err
	}

	output, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// desktopCommand builds the popup command for goos.
func desktopCommand(goos, message string) (string, []string, error) {
	switch goos {
	case "darwin":
		script := fmt.Sprintf(`display notification %s with title %s`,
			appleScriptString(message), appleScriptString(DesktopTitle))
		return "osascript", []string{"-e", script}, nil
	case "linux":
		return "notify-send", []string{DesktopTitle, message}, nil
	case "windows":
		return "msg", []string{"*", "/TIME:10", message}, nil
	default:
		return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, goos)
	}
}

// appleScriptString quotes s as an AppleScript string literal.
func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
