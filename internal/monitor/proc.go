package monitor

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// processPath resolves a pid to its executable path via /proc.
func processPath(pid int64) (string, bool) {
	path, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", pid))
	if err != nil || path == "" {
		return "", false
	}
	// A replaced binary reads back as "/path/to/exe (deleted)".
	return strings.TrimSuffix(path, " (deleted)"), true
}

// processStartTime returns the process creation time, or nil when the
// process cannot be inspected. The value is the kernel's starttime for
// the pid (clock ticks since boot): not a wall-clock time, but stable for
// the process lifetime and different for a recycled pid, which is all the
// segment key needs.
func processStartTime(pid int64) *int64 {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return nil
	}
	return parseStartTime(string(data))
}

// parseStartTime extracts field 22 (starttime) from a /proc/<pid>/stat
// line. The comm field may itself contain spaces and parentheses, so
// parsing starts after the last ')'.
func parseStartTime(stat string) *int64 {
	closing := strings.LastIndexByte(stat, ')')
	if closing < 0 {
		return nil
	}

	// After ") " the fields are positional: state is field 3, starttime
	// is field 22.
	fields := strings.Fields(stat[closing+1:])
	if len(fields) < 20 {
		return nil
	}

	value, err := strconv.ParseInt(fields[19], 10, 64)
	if err != nil {
		return nil
	}
	return &value
}

// exeNameFromPath returns the executable file name for a process path.
func exeNameFromPath(path string, pid int64) string {
	name := filepath.Base(path)
	if name == "" || name == "." || name == string(filepath.Separator) {
		return fmt.Sprintf("pid-%d", pid)
	}
	return name
}

// placeholderPath is stored when a process path cannot be resolved at all.
func placeholderPath(pid int64) string {
	return fmt.Sprintf("<pid-%d>", pid)
}
