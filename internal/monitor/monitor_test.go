package monitor

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/timelit/timelit/internal/platform"
)

func TestParseStartTime(t *testing.T) {
	// Field 22 (starttime) is 1718623 here.
	stat := "1234 (kitty) S 1 1234 1234 0 -1 4194304 2859 0 0 0 12 4 0 0 20 0 9 0 1718623 12345678 2613 18446744073709551615 1 1 0 0 0 0 0 0 0 0 0 0 17 3 0 0 0 0 0"
	got := parseStartTime(stat)
	require.NotNil(t, got)
	require.EqualValues(t, 1718623, *got)
}

func TestParseStartTimeHandlesParensInComm(t *testing.T) {
	// The comm field is not escaped; "((sd-pam))" is a real example.
	stat := "850 (((sd-pam))) S 849 849 849 0 -1 1077936448 27 0 0 0 0 0 0 0 20 0 1 0 2261 178790400 1377 18446744073709551615 1 1 0 0 0 0 0 4096 0 0 0 0 17 1 0 0 0 0 0"
	got := parseStartTime(stat)
	require.NotNil(t, got)
	require.EqualValues(t, 2261, *got)
}

func TestParseStartTimeRejectsGarbage(t *testing.T) {
	require.Nil(t, parseStartTime("not a stat line"))
	require.Nil(t, parseStartTime("1 (short) S 0 0"))
}

func TestExeNameFromPath(t *testing.T) {
	require.Equal(t, "firefox", exeNameFromPath("/usr/lib/firefox/firefox", 42))
	require.Equal(t, "pid-42", exeNameFromPath("", 42))
}

func TestProcessIntrospectionOnSelf(t *testing.T) {
	pid := int64(os.Getpid())

	path, ok := processPath(pid)
	require.True(t, ok)
	require.NotEmpty(t, path)

	require.NotNil(t, processStartTime(pid))
}

func TestResolveProcessCachesByLifetime(t *testing.T) {
	m := New(&platform.Platform{}, time.Minute)
	pid := int64(os.Getpid())
	createTime := processStartTime(pid)
	require.NotNil(t, createTime)

	exeName, processPath := m.resolveProcess(pid, createTime)
	require.NotEqual(t, "UNKNOWN", exeName)
	require.NotEmpty(t, processPath)
	require.Len(t, m.processCache, 1)

	// Second resolve hits the cache.
	again, _ := m.resolveProcess(pid, createTime)
	require.Equal(t, exeName, again)
	require.Len(t, m.processCache, 1)

	// A recycled pid (different create time) must not hit the old entry.
	recycled := *createTime + 1
	m.resolveProcess(pid, &recycled)
	require.Len(t, m.processCache, 2)
}

func TestCaptureDegradesToPlaceholderSample(t *testing.T) {
	plat := &platform.Platform{OS: "linux", DisplayServer: platform.DisplayServerUnknown}
	m := New(plat, time.Minute)

	sample := m.Capture(context.Background())
	require.Equal(t, KindActive, sample.Kind)
	require.Equal(t, "UNKNOWN", sample.Window.ExeName)
	require.Equal(t, "<foreground-window-missing>", sample.Window.ProcessPath)
	require.NotZero(t, sample.TS)
}
