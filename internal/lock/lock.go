// Package lock serializes mutating remote operations between drivesync
// processes that share a data directory. It narrows, but cannot close, the
// window between an existence probe and the write that follows it: writers
// outside this machine are not covered.
package lock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// LockFileName is the name of the lock file inside the data directory
	LockFileName = ".drivesync.lock"
	// DefaultStaleTimeout is how long a lock from another host is honored
	DefaultStaleTimeout = 10 * time.Minute
	// DefaultRetryInterval is the polling interval used by Wait
	DefaultRetryInterval = 200 * time.Millisecond
)

// ErrNotHeld is returned by Release when the lock file belongs to someone else
var ErrNotHeld = errors.New("lock is not held by this instance")

// Holder describes the process holding the lock
type Holder struct {
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartTime time.Time `json:"start_time"`
	Operation string    `json:"operation"`
	Target    string    `json:"target,omitempty"`

	// set for a lock file that exists but does not parse
	unreadable bool
}

// FileLock is an exclusive lock backed by a file created with O_EXCL
type FileLock struct {
	path         string
	staleTimeout time.Duration
	held         *Holder
}

// New creates a lock in dir, creating the directory when needed
func New(dir string) (*FileLock, error) {
	if dir == "" {
		return nil, fmt.Errorf("lock directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	return &FileLock{
		path:         filepath.Join(dir, LockFileName),
		staleTimeout: DefaultStaleTimeout,
	}, nil
}

// SetStaleTimeout sets how long a lock from another host is honored
func (l *FileLock) SetStaleTimeout(d time.Duration) {
	l.staleTimeout = d
}

// Path returns the lock file path
func (l *FileLock) Path() string {
	return l.path
}

// TryAcquire takes the lock or returns a *HeldError naming the holder.
// Locks left by dead local processes are removed first.
func (l *FileLock) TryAcquire(operation, target string) error {
	if l.held != nil {
		return &HeldError{Holder: l.held}
	}

	existing, err := l.inspect()
	switch {
	case err == nil:
		if !l.isStale(existing) {
			return &HeldError{Holder: existing}
		}
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove stale lock: %w", err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("failed to read lock file: %w", err)
	}

	hostname, _ := os.Hostname()
	h := &Holder{
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartTime: time.Now(),
		Operation: operation,
		Target:    target,
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			existing, readErr := l.inspect()
			if readErr != nil {
				// removed again before we could look at it
				existing = &Holder{StartTime: time.Now(), unreadable: true}
			}
			return &HeldError{Holder: existing}
		}
		return fmt.Errorf("failed to create lock file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(h); err != nil {
		os.Remove(l.path)
		return fmt.Errorf("failed to write lock info: %w", err)
	}

	l.held = h
	return nil
}

// Wait polls TryAcquire until it succeeds or ctx is done
func (l *FileLock) Wait(ctx context.Context, operation, target string) error {
	ticker := time.NewTicker(DefaultRetryInterval)
	defer ticker.Stop()

	for {
		err := l.TryAcquire(operation, target)
		if err == nil || !IsHeld(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for lock: %w (last: %v)", ctx.Err(), err)
		case <-ticker.C:
		}
	}
}

// Release removes the lock file if this instance still owns it
func (l *FileLock) Release() error {
	if l.held == nil {
		return nil
	}
	held := l.held
	l.held = nil

	existing, err := l.read()
	if err != nil {
		// already gone
		return nil
	}
	if !sameHolder(held, existing) {
		return ErrNotHeld
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

// Holder returns the live holder, or nil when the lock is free
func (l *FileLock) Holder() *Holder {
	h, err := l.inspect()
	if err != nil || l.isStale(h) {
		return nil
	}
	return h
}

// ForceRelease removes the lock file regardless of owner
func (l *FileLock) ForceRelease() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to force remove lock: %w", err)
	}
	l.held = nil
	return nil
}

func (l *FileLock) read() (*Holder, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, err
	}
	var h Holder
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("invalid lock file format: %w", err)
	}
	return &h, nil
}

// inspect is read, except that a lock file which exists but does not parse
// is reported as a holder dated by the file's mtime. Such a file belongs to a
// process between its create and its write, or to one that crashed there.
func (l *FileLock) inspect() (*Holder, error) {
	h, err := l.read()
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return h, err
	}
	info, statErr := os.Stat(l.path)
	if statErr != nil {
		return nil, statErr
	}
	return &Holder{StartTime: info.ModTime(), unreadable: true}, nil
}

// isStale: an unreadable lock expires after staleTimeout; a local lock is stale only when its process is gone; a remote
// host's lock expires after staleTimeout.
func (l *FileLock) isStale(h *Holder) bool {
	if h.unreadable {
		return time.Since(h.StartTime) > l.staleTimeout
	}
	hostname, _ := os.Hostname()
	if h.Hostname == hostname {
		return !processExists(h.PID)
	}
	return time.Since(h.StartTime) > l.staleTimeout
}

func sameHolder(a, b *Holder) bool {
	return a.PID == b.PID &&
		a.Hostname == b.Hostname &&
		a.StartTime.Equal(b.StartTime)
}

// HeldError reports a lock held by someone else
type HeldError struct {
	Holder *Holder
}

func (e *HeldError) Error() string {
	h := e.Holder
	if h.unreadable {
		return fmt.Sprintf("lock held by an unknown process since %s (lock file unreadable)",
			h.StartTime.Format(time.RFC3339))
	}
	return fmt.Sprintf("lock held by PID %d on %s since %s (%s %s)",
		h.PID, h.Hostname, h.StartTime.Format(time.RFC3339), h.Operation, h.Target)
}

// IsHeld reports whether err is a *HeldError
func IsHeld(err error) bool {
	var held *HeldError
	return errors.As(err, &held)
}
