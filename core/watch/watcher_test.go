package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherTriggersRescanAfterQuietPeriod(t *testing.T) {
	root := t.TempDir()
	rescanned := make(chan struct{}, 1)

	w := NewWatcher(root, 50*time.Millisecond, func(ctx context.Context) {
		select {
		case rescanned <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher a moment to register before producing events.
	time.Sleep(100 * time.Millisecond)

	// A burst of writes must collapse into one rescan.
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(filepath.Join(root, "周杰伦.m3u"), []byte("/music/a.mp3\n"), 0644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-rescanned:
	case <-time.After(3 * time.Second):
		t.Fatal("no rescan triggered after directory change")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestWatcherMissingRoot(t *testing.T) {
	w := NewWatcher(filepath.Join(t.TempDir(), "nope"), time.Second, func(ctx context.Context) {})
	if err := w.Run(context.Background()); err == nil {
		t.Fatal("Run over a missing directory returned nil")
	}
}

func TestNewWatcherDefaultDebounce(t *testing.T) {
	w := NewWatcher("x", 0, nil)
	if w.debounce != 2*time.Second {
		t.Errorf("default debounce = %v, want 2s", w.debounce)
	}
}
