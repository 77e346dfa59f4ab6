package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
)

// ErrInstanceLocked is returned when another helpdesk window uses the data directory.
var ErrInstanceLocked = errors.New("another helpdesk instance is running")

const lockFileName = "helpdesk.lock"

// InstanceLock marks a data directory as owned by one interactive session,
// so two windows never append to the same transcript.
// Lock file: <data_dir>/helpdesk.lock
// Content: PID of the owner
type InstanceLock struct {
	path string
}

// AcquireInstanceLock takes the lock for dataDir. Locks left behind by a
// process that is no longer running are taken over.
func AcquireInstanceLock(dataDir string) (*InstanceLock, error) {
	lockPath := filepath.Join(dataDir, lockFileName)

	pid, err := readLockPID(lockPath)
	if err != nil {
		return nil, err
	}
	if pid > 0 && pid != os.Getpid() && processAlive(pid) {
		return nil, fmt.Errorf("%w (PID %d)", ErrInstanceLocked, pid)
	}

	if err := os.WriteFile(lockPath, []byte(strconv.Itoa(os.Getpid())), 0600); err != nil {
		return nil, fmt.Errorf("failed to write lock file: %w", err)
	}
	return &InstanceLock{path: lockPath}, nil
}

// Release removes the lock file. Releasing twice is fine.
func (l *InstanceLock) Release() error {
	err := os.Remove(l.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// readLockPID returns 0 when there is no usable lock file.
func readLockPID(lockPath string) (int, error) {
	data, err := os.ReadFile(lockPath)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read lock file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, nil
	}
	return pid, nil
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// FindProcess only fails for missing processes on Windows
	if runtime.GOOS == "windows" {
		return true
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, os.ErrPermission)
}
