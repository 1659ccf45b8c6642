package lock

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	l, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if l.Path() != filepath.Join(dir, LockFileName) {
		t.Errorf("unexpected lock path %s", l.Path())
	}
	if l.staleTimeout != DefaultStaleTimeout {
		t.Errorf("expected timeout %v, got %v", DefaultStaleTimeout, l.staleTimeout)
	}

	if _, err := New(""); err == nil {
		t.Error("expected error for empty directory")
	}
}

func TestAcquireRelease(t *testing.T) {
	l, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := l.TryAcquire("upload", "report.json"); err != nil {
		t.Fatalf("TryAcquire failed: %v", err)
	}

	h := l.Holder()
	if h == nil {
		t.Fatal("lock should be held")
	}
	if h.PID != os.Getpid() || h.Operation != "upload" || h.Target != "report.json" {
		t.Errorf("unexpected holder %+v", h)
	}

	if err := l.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := os.Stat(l.Path()); !os.IsNotExist(err) {
		t.Error("lock file still exists after release")
	}
	if l.Holder() != nil {
		t.Error("lock should be free")
	}

	// Release without holding is a no-op
	if err := l.Release(); err != nil {
		t.Errorf("second Release failed: %v", err)
	}
}

func TestTryAcquire_HeldByOtherInstance(t *testing.T) {
	dir := t.TempDir()
	a, _ := New(dir)
	b, _ := New(dir)

	if err := a.TryAcquire("delete", "file-1"); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	defer a.Release()

	err := b.TryAcquire("upload", "file-1")
	if !IsHeld(err) {
		t.Fatalf("expected HeldError, got %v", err)
	}
	var held *HeldError
	errors.As(err, &held)
	if held.Holder.Operation != "delete" {
		t.Errorf("holder operation = %s, want delete", held.Holder.Operation)
	}
}

func TestTryAcquire_Twice(t *testing.T) {
	l, _ := New(t.TempDir())
	if err := l.TryAcquire("upload", "a"); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	defer l.Release()

	if err := l.TryAcquire("upload", "b"); !IsHeld(err) {
		t.Errorf("expected HeldError on re-acquire, got %v", err)
	}
}

func TestStaleLockFromDeadProcess(t *testing.T) {
	dir := t.TempDir()
	hostname, _ := os.Hostname()
	writeHolder(t, filepath.Join(dir, LockFileName), Holder{
		PID:       999999999,
		Hostname:  hostname,
		StartTime: time.Now(),
		Operation: "upload",
	})

	l, _ := New(dir)
	if l.Holder() != nil {
		t.Error("dead process lock should be reported free")
	}
	if err := l.TryAcquire("upload", "x"); err != nil {
		t.Fatalf("acquire over stale lock failed: %v", err)
	}
	l.Release()
}

func TestStaleLockFromOtherHost(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, LockFileName)

	writeHolder(t, path, Holder{
		PID:       1,
		Hostname:  "elsewhere.invalid",
		StartTime: time.Now(),
		Operation: "upload",
	})

	l, _ := New(dir)
	l.SetStaleTimeout(time.Hour)
	if err := l.TryAcquire("upload", "x"); !IsHeld(err) {
		t.Fatalf("fresh remote lock should be honored, got %v", err)
	}

	l.SetStaleTimeout(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	if err := l.TryAcquire("upload", "x"); err != nil {
		t.Fatalf("expired remote lock should be replaced: %v", err)
	}
	l.Release()
}

func TestRelease_Stolen(t *testing.T) {
	dir := t.TempDir()
	l, _ := New(dir)
	if err := l.TryAcquire("upload", "x"); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	writeHolder(t, l.Path(), Holder{
		PID:       os.Getpid(),
		Hostname:  "someone-else",
		StartTime: time.Now().Add(time.Minute),
	})

	if err := l.Release(); !errors.Is(err, ErrNotHeld) {
		t.Errorf("expected ErrNotHeld, got %v", err)
	}
	if _, err := os.Stat(l.Path()); err != nil {
		t.Error("foreign lock file should be left in place")
	}
}

func TestWait(t *testing.T) {
	dir := t.TempDir()
	a, _ := New(dir)
	b, _ := New(dir)

	if err := a.TryAcquire("upload", "x"); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := b.Wait(ctx, "upload", "x"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}

	go func() {
		time.Sleep(2 * DefaultRetryInterval)
		a.Release()
	}()

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := b.Wait(ctx2, "upload", "x"); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	b.Release()
}

func TestEmptyLockFile(t *testing.T) {
	l, _ := New(t.TempDir())
	if err := os.WriteFile(l.Path(), nil, 0644); err != nil {
		t.Fatal(err)
	}

	err := l.TryAcquire("upload", "x")
	if !IsHeld(err) {
		t.Fatalf("expected held error for empty lock file, got %v", err)
	}
	if l.Holder() == nil {
		t.Error("empty lock file should report a holder")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx, "upload", "x"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected Wait to poll until the deadline, got %v", err)
	}

	// the writer finishes and releases; Wait picks the lock up
	go func() {
		time.Sleep(2 * DefaultRetryInterval)
		os.Remove(l.Path())
	}()

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := l.Wait(ctx2, "upload", "x"); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Errorf("Release failed: %v", err)
	}
}

func TestEmptyLockFile_Stale(t *testing.T) {
	l, _ := New(t.TempDir())
	l.SetStaleTimeout(time.Minute)
	if err := os.WriteFile(l.Path(), []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(l.Path(), old, old); err != nil {
		t.Fatal(err)
	}

	if l.Holder() != nil {
		t.Error("old unreadable lock should be free")
	}
	if err := l.TryAcquire("delete", "x"); err != nil {
		t.Fatalf("expected stale unreadable lock to be replaced, got %v", err)
	}
	h := l.Holder()
	if h == nil || h.PID != os.Getpid() {
		t.Errorf("unexpected holder %+v", h)
	}
	l.Release()
}

func TestForceRelease(t *testing.T) {
	l, _ := New(t.TempDir())
	if err := l.TryAcquire("delete", "x"); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if err := l.ForceRelease(); err != nil {
		t.Fatalf("ForceRelease failed: %v", err)
	}
	if l.Holder() != nil {
		t.Error("lock should be free after force release")
	}
	if err := l.ForceRelease(); err != nil {
		t.Errorf("ForceRelease on free lock failed: %v", err)
	}
}

func writeHolder(t *testing.T, path string, h Holder) {
	t.Helper()
	data, err := json.Marshal(h)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
}
