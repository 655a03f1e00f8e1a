// Package monitor samples what the user is doing.
//
// A single Capture call answers one question per poll tick: is the user
// idle, and if not, which process/window is in the foreground? The result
// feeds the recorder, which consolidates the sample stream into segments.
//
// Capture never fails. When OS introspection is partially unavailable it
// degrades to a best-effort active sample with placeholder identity
// fields rather than returning an error - a tick must always produce a
// sample the recorder can ingest.
package monitor

import (
	"context"
	"time"

	"github.com/timelit/timelit/internal/platform"
)

// Kind tags what a sample observed.
type Kind int

const (
	// KindActive means a foreground process/window was observed.
	KindActive Kind = iota
	// KindIdle means the user has been without input past the threshold.
	KindIdle
)

// ActiveWindow identifies the foreground process/window.
type ActiveWindow struct {
	PID int64

	// PIDCreateTime is the process creation time, used to tell apart two
	// process lifetimes that recycled the same pid. Nil when the process
	// could not be inspected.
	PIDCreateTime *int64

	ExeName     string
	ProcessPath string
	WindowTitle string
}

// Sample is one observation of user activity.
type Sample struct {
	// TS is the observation time in Unix seconds.
	TS int64

	Kind Kind

	// IdleMS is milliseconds since last user input. Valid for KindIdle.
	IdleMS int64

	// Window is the foreground window identity. Valid for KindActive.
	Window ActiveWindow
}

type processKey struct {
	pid        int64
	createTime int64
}

type processMeta struct {
	exeName     string
	processPath string
}

// processCacheLimit bounds the process-meta cache; on overflow the cache
// is cleared rather than evicted entry by entry.
const processCacheLimit = 4096

// Monitor captures activity samples for the current platform.
type Monitor struct {
	platform        *platform.Platform
	idleThresholdMS int64

	// processCache avoids re-reading /proc for a process we already
	// resolved. Keyed by (pid, create time) so a recycled pid misses.
	processCache map[processKey]processMeta
}

// New creates a Monitor with the given idle threshold.
func New(plat *platform.Platform, idleThreshold time.Duration) *Monitor {
	return &Monitor{
		platform:        plat,
		idleThresholdMS: idleThreshold.Milliseconds(),
		processCache:    make(map[processKey]processMeta),
	}
}

// Capture takes one activity sample. It never fails; samples degrade to
// placeholder identities when the foreground window cannot be resolved.
func (m *Monitor) Capture(ctx context.Context) Sample {
	ts := time.Now().Unix()

	if idleMS, ok := m.idleMillis(ctx); ok && idleMS >= m.idleThresholdMS {
		return Sample{TS: ts, Kind: KindIdle, IdleMS: idleMS}
	}

	pid, title, err := m.foregroundWindow(ctx)
	if err != nil {
		return Sample{
			TS:   ts,
			Kind: KindActive,
			Window: ActiveWindow{
				ExeName:     "UNKNOWN",
				ProcessPath: "<foreground-window-missing>",
			},
		}
	}
	if pid <= 0 {
		return Sample{
			TS:   ts,
			Kind: KindActive,
			Window: ActiveWindow{
				ExeName:     "UNKNOWN",
				ProcessPath: "<pid-missing>",
				WindowTitle: title,
			},
		}
	}

	createTime := processStartTime(pid)
	exeName, processPath := m.resolveProcess(pid, createTime)
	return Sample{
		TS:   ts,
		Kind: KindActive,
		Window: ActiveWindow{
			PID:           pid,
			PIDCreateTime: createTime,
			ExeName:       exeName,
			ProcessPath:   processPath,
			WindowTitle:   title,
		},
	}
}

// resolveProcess maps a pid to (exe name, process path), caching by
// (pid, create time) when the create time is known.
func (m *Monitor) resolveProcess(pid int64, createTime *int64) (string, string) {
	if createTime != nil {
		key := processKey{pid: pid, createTime: *createTime}
		if meta, ok := m.processCache[key]; ok {
			return meta.exeName, meta.processPath
		}

		if path, ok := processPath(pid); ok {
			exeName := exeNameFromPath(path, pid)
			if len(m.processCache) >= processCacheLimit {
				m.processCache = make(map[processKey]processMeta)
			}
			m.processCache[key] = processMeta{exeName: exeName, processPath: path}
			return exeName, path
		}
	}

	if path, ok := processPath(pid); ok {
		return exeNameFromPath(path, pid), path
	}
	return "UNKNOWN", placeholderPath(pid)
}
