package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/timelit/timelit/internal/platform"
)

// hyprlandWindow is the JSON shape returned by `hyprctl activewindow -j`.
// Hyprland returns much more; we only decode what identifies the window.
type hyprlandWindow struct {
	Class string `json:"class"`
	Title string `json:"title"`
	PID   int64  `json:"pid"`
}

// foregroundWindow returns the pid and title of the active window,
// dispatching on the detected display server.
func (m *Monitor) foregroundWindow(ctx context.Context) (int64, string, error) {
	switch m.platform.DisplayServer {
	case platform.DisplayServerHyprland:
		return foregroundHyprland(ctx)
	case platform.DisplayServerX11:
		return foregroundX11(ctx)
	default:
		return 0, "", fmt.Errorf("unsupported display server: %s", m.platform.DisplayServer)
	}
}

// foregroundHyprland reads the active window via hyprctl.
func foregroundHyprland(ctx context.Context) (int64, string, error) {
	// exec.CommandContext so a shutdown mid-tick kills the child too.
	output, err := exec.CommandContext(ctx, "hyprctl", "activewindow", "-j").Output()
	if err != nil {
		return 0, "", fmt.Errorf("hyprctl failed: %w", err)
	}

	var window hyprlandWindow
	if err := json.Unmarshal(output, &window); err != nil {
		return 0, "", fmt.Errorf("failed to parse hyprctl output: %w", err)
	}

	// hyprctl returns an empty object when nothing is focused.
	return window.PID, strings.TrimSpace(window.Title), nil
}

// foregroundX11 reads the active window via xdotool.
func foregroundX11(ctx context.Context) (int64, string, error) {
	idOut, err := exec.CommandContext(ctx, "xdotool", "getactivewindow").Output()
	if err != nil {
		return 0, "", fmt.Errorf("xdotool getactivewindow failed: %w", err)
	}
	windowID := strings.TrimSpace(string(idOut))

	var pid int64
	if pidOut, err := exec.CommandContext(ctx, "xdotool", "getwindowpid", windowID).Output(); err == nil {
		pid, _ = strconv.ParseInt(strings.TrimSpace(string(pidOut)), 10, 64)
	}

	title := ""
	if nameOut, err := exec.CommandContext(ctx, "xdotool", "getwindowname", windowID).Output(); err == nil {
		title = strings.TrimSpace(string(nameOut))
	}

	return pid, title, nil
}

// idleMillis returns milliseconds since last user input, or ok=false when
// the platform has no idle counter.
func (m *Monitor) idleMillis(ctx context.Context) (int64, bool) {
	if !m.platform.CanMeasureIdle() {
		return 0, false
	}

	output, err := exec.CommandContext(ctx, "xprintidle").Output()
	if err != nil {
		return 0, false
	}

	ms, err := strconv.ParseInt(strings.TrimSpace(string(output)), 10, 64)
	if err != nil {
		return 0, false
	}
	return ms, true
}
