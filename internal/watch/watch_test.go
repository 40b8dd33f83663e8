package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/gardensite/internal/testutil"
)

type recorder struct {
	mu      sync.Mutex
	reasons []string
}

func (r *recorder) trigger(reason string) {
	r.mu.Lock()
	r.reasons = append(r.reasons, reason)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.reasons...)
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func startWatch(t *testing.T, root string, skip ...string) *recorder {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	rec := &recorder{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := Watch(ctx, Options{Root: root, Skip: skip, Debounce: 100 * time.Millisecond, Trigger: rec.trigger, Logger: testutil.Logger()}); err != nil {
			t.Errorf("Watch: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	time.Sleep(100 * time.Millisecond)
	return rec
}

func TestWatch_BurstIsDebounced(t *testing.T) {
	root := t.TempDir()
	rec := startWatch(t, root)

	for i := 0; i < 5; i++ {
		_ = os.WriteFile(filepath.Join(root, "note.md"), []byte(strings.Repeat("x", i+1)), 0o644)
	}

	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return len(rec.snapshot()) > 0
	}, "no trigger after writes")

	time.Sleep(300 * time.Millisecond)
	got := rec.snapshot()
	if len(got) >= 5 {
		t.Errorf("burst not coalesced: %d triggers", len(got))
	}
	if !strings.HasPrefix(got[0], "change: note.md") {
		t.Errorf("reason = %q", got[0])
	}
}

func TestWatch_NewDirectoryIsWatched(t *testing.T) {
	root := t.TempDir()
	rec := startWatch(t, root)

	dir := filepath.Join(root, "trips")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return len(rec.snapshot()) > 0
	}, "mkdir not seen")
	time.Sleep(200 * time.Millisecond)
	before := len(rec.snapshot())

	_ = os.WriteFile(filepath.Join(dir, "rome.md"), []byte("# Rome"), 0o644)
	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return len(rec.snapshot()) > before
	}, "write inside new dir not seen")
}

func TestWatch_SkipsDirsAndScratchFiles(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	rec := startWatch(t, root, ".git")

	_ = os.WriteFile(filepath.Join(root, ".git", "index"), []byte("x"), 0o644)
	_ = os.WriteFile(filepath.Join(root, "note.md~"), []byte("x"), 0o644)
	_ = os.WriteFile(filepath.Join(root, ".gardensite-tmp-123"), []byte("x"), 0o644)

	time.Sleep(400 * time.Millisecond)
	if got := rec.snapshot(); len(got) != 0 {
		t.Errorf("unexpected triggers: %v", got)
	}
}

func TestWatch_MissingRoot(t *testing.T) {
	err := Watch(context.Background(), Options{Root: filepath.Join(t.TempDir(), "nope"), Logger: testutil.Logger()})
	if err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestScheduler(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewScheduler("*/5 * * * *", func(string) {}, testutil.Logger())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	next := s.NextRun()
	if next == nil || !next.After(time.Now()) {
		t.Fatalf("NextRun = %v, want a future time", next)
	}

	cancel()
	eventually(t, 2*time.Second, 20*time.Millisecond, func() bool {
		return s.NextRun() == nil
	}, "scheduler did not stop on cancel")
}

func TestScheduler_EmptyAndInvalid(t *testing.T) {
	s := NewScheduler("", nil, testutil.Logger())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("empty schedule: %v", err)
	}
	if s.NextRun() != nil {
		t.Error("empty schedule should not run")
	}

	if err := NewScheduler("every day", nil, testutil.Logger()).Start(context.Background()); err == nil {
		t.Error("invalid schedule accepted")
	}
	if err := ParseSchedule("0 3 * * *"); err != nil {
		t.Errorf("ParseSchedule: %v", err)
	}
}
