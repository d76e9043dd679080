package local

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileGrowthWatcherWaitOnModify(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "growing.txt")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w, err := newFileGrowthWatcher(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- w.wait(3 * time.Second) }()

	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte("more"), 0644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for watcher to observe the write")
	}
}

func TestFileGrowthWatcherWaitTimesOut(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "idle.txt")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w, err := newFileGrowthWatcher(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	start := time.Now()
	if err := w.wait(100 * time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("wait took too long: %v", elapsed)
	}
}
