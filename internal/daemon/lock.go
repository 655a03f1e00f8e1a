package daemon

import (
	"fmt"
	"os"
	"syscall"
)

// Lock is a single-instance guard backed by an advisory file lock.
// Two daemons writing the same segment tables would interleave open
// segments; the lock makes the second instance exit quietly instead.
type Lock struct {
	file *os.File
}

// ErrAlreadyRunning is returned when another instance holds the lock.
var ErrAlreadyRunning = fmt.Errorf("another instance is already running")

// AcquireLock takes the advisory lock at path. The lock is released when
// the process exits, so a crashed instance never wedges the next start.
func AcquireLock(path string) (*Lock, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		if err == syscall.EWOULDBLOCK {
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}

	return &Lock{file: file}, nil
}

// Release drops the lock.
func (l *Lock) Release() {
	if l.file != nil {
		syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
		l.file.Close()
		l.file = nil
	}
}
