// Package platform handles detection of the display server and the
// desktop tools the sampler depends on.
//
// Different display servers need different methods to read the foreground
// window (hyprctl on Hyprland, xdotool on X11) and idle time (xprintidle
// on X11). Detection happens once at startup; the monitor dispatches on
// the result.
package platform

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// DisplayServer represents the display server type.
type DisplayServer string

const (
	DisplayServerHyprland DisplayServer = "hyprland"
	DisplayServerSway     DisplayServer = "sway"
	DisplayServerWayland  DisplayServer = "wayland" // Generic Wayland (GNOME, KDE)
	DisplayServerX11      DisplayServer = "x11"
	DisplayServerUnknown  DisplayServer = "unknown"
)

// Platform holds information about the detected platform.
type Platform struct {
	// OS is the operating system: "linux", "darwin", "windows"
	OS string

	// DisplayServer is the specific display server being used
	DisplayServer DisplayServer

	// Available tools - set based on what's installed
	HasHyprctl    bool // Hyprland control tool
	HasXdotool    bool // X11 active window
	HasXprintidle bool // X11 idle milliseconds
}

// String returns a human-readable description of the platform.
func (p *Platform) String() string {
	return fmt.Sprintf("%s/%s", p.OS, p.DisplayServer)
}

// Detect figures out what platform we're running on.
// It checks the OS, then probes for display server and available tools.
func Detect() (*Platform, error) {
	p := &Platform{
		OS: runtime.GOOS,
	}

	p.DisplayServer = detectDisplayServer()

	p.HasHyprctl = commandExists("hyprctl")
	p.HasXdotool = commandExists("xdotool")
	p.HasXprintidle = commandExists("xprintidle")

	return p, nil
}

// detectDisplayServer figures out which display server is running.
func detectDisplayServer() DisplayServer {
	// Hyprland sets HYPRLAND_INSTANCE_SIGNATURE
	if os.Getenv("HYPRLAND_INSTANCE_SIGNATURE") != "" {
		return DisplayServerHyprland
	}

	if os.Getenv("SWAYSOCK") != "" {
		return DisplayServerSway
	}

	// XDG_SESSION_TYPE is set by systemd/login managers
	sessionType := os.Getenv("XDG_SESSION_TYPE")
	if sessionType == "wayland" || os.Getenv("WAYLAND_DISPLAY") != "" {
		return DisplayServerWayland
	}

	if sessionType == "x11" || os.Getenv("DISPLAY") != "" {
		return DisplayServerX11
	}

	return DisplayServerUnknown
}

// commandExists checks if a command is available in PATH.
func commandExists(cmd string) bool {
	_, err := exec.LookPath(cmd)
	return err == nil
}

// CanCaptureWindow returns true if we have tools to read the active window.
func (p *Platform) CanCaptureWindow() bool {
	switch p.DisplayServer {
	case DisplayServerHyprland:
		return p.HasHyprctl
	case DisplayServerX11:
		return p.HasXdotool
	default:
		return false
	}
}

// CanMeasureIdle returns true if we have a way to read idle time.
// Only X11 exposes a generic idle counter; Wayland compositors without
// one degrade to always-active sampling.
func (p *Platform) CanMeasureIdle() bool {
	return p.DisplayServer == DisplayServerX11 && p.HasXprintidle
}

// SupportedFeatures returns a human-readable list of what we can sample.
func (p *Platform) SupportedFeatures() []string {
	features := []string{}

	if p.CanCaptureWindow() {
		features = append(features, "foreground window")
	}
	if p.CanMeasureIdle() {
		features = append(features, "idle detection")
	}

	if len(features) == 0 {
		return []string{"none - missing required tools"}
	}

	return features
}
