package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

const lockName = ".orchestrator.lock"

// RunLock is the content of the lock file that marks a run directory as owned
// by one orchestrator process. Only the owner writes the consolidated header
// set; modules only add their own uniquely named files.
type RunLock struct {
	RunID     string    `json:"run_id"`
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"started_at"`
}

// Lock claims the run directory for runID. The lock file is created
// exclusively; a lock left by a process that no longer exists is removed and
// claimed again. The returned function releases the lock.
func (r *RunDir) Lock(runID string) (release func() error, err error) {
	lockPath := filepath.Join(r.root, lockName)

	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("failed to get hostname: %w", err)
	}
	data, err := json.MarshalIndent(RunLock{
		RunID:     runID,
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartedAt: time.Now(),
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal lock: %w", err)
	}

	release = func() error {
		if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove run lock: %w", err)
		}
		return nil
	}

	for attempt := 0; attempt < 3; attempt++ {
		claimed, err := createExclusive(lockPath, data)
		if err != nil {
			return nil, fmt.Errorf("failed to lock run directory: %w", err)
		}
		if claimed {
			return release, nil
		}

		existing, err := readLock(lockPath)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("run directory %s is locked and the lock is unreadable: %w", r.root, err)
		}
		if existing.PID == os.Getpid() {
			// Re-locking from the owning process hands the lock to the new run.
			if err := writeAtomic(lockPath, data); err != nil {
				return nil, fmt.Errorf("failed to lock run directory: %w", err)
			}
			return release, nil
		}
		if isProcessAlive(existing.PID, existing.Hostname) {
			return nil, fmt.Errorf("run directory %s is in use by run %s (PID %d on %s, started %s)",
				r.root, existing.RunID, existing.PID, existing.Hostname, existing.StartedAt.Format(time.RFC3339))
		}
		slog.Info("taking over stale run lock", "run_dir", r.root, "stale_run", existing.RunID, "pid", existing.PID)
		if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to remove stale run lock: %w", err)
		}
	}
	return nil, fmt.Errorf("run directory %s: lock contended, giving up", r.root)
}

// createExclusive creates path holding data, failing if path exists. The
// content is written to a temporary sibling first and hard-linked into place,
// so a lock file is never observed half written. Reports false when path
// already exists.
func createExclusive(path string, data []byte) (bool, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return false, err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	_, werr := tmp.Write(data)
	if err := errors.Join(werr, tmp.Close()); err != nil {
		return false, err
	}

	if err := os.Link(tmpPath, path); err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		// Filesystems without hard links fall back to an exclusive create.
		f, ferr := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if ferr != nil {
			if os.IsExist(ferr) {
				return false, nil
			}
			return false, ferr
		}
		_, werr := f.Write(data)
		if err := errors.Join(werr, f.Close()); err != nil {
			_ = os.Remove(path)
			return false, err
		}
	}
	return true, nil
}

func readLock(path string) (RunLock, error) {
	var lock RunLock
	data, err := os.ReadFile(path)
	if err != nil {
		return lock, err
	}
	if err := json.Unmarshal(data, &lock); err != nil {
		return lock, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return lock, nil
}

// isProcessAlive checks whether pid exists on hostname. Remote hosts and
// permission errors count as alive.
func isProcessAlive(pid int, hostname string) bool {
	currentHost, err := os.Hostname()
	if err != nil {
		return true
	}
	if !strings.EqualFold(hostname, currentHost) {
		return true
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return err == syscall.EPERM
}
