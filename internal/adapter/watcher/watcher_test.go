package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) add(path string) {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWatcher_DebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}

	w, err := New(dir, nil, rec.add, WithDebounce(100*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "outage.txt")
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte(strings.Repeat("x", i+1)), 0644); err != nil {
			t.Fatal(err)
		}
	}

	waitFor(t, func() bool { return len(rec.snapshot()) >= 1 })
	time.Sleep(250 * time.Millisecond)

	if got := rec.snapshot(); len(got) != 1 {
		t.Errorf("expected one settled callback, got %v", got)
	}
}

func TestWatcher_FilterAndNewDirectories(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	onlyMarkdown := func(rel string) bool { return strings.HasSuffix(rel, ".md") }

	w, err := New(dir, onlyMarkdown, rec.add, WithDebounce(50*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	nested := filepath.Join(dir, "confluence", "2024")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(nested, "db.md"), []byte("## Root Cause: pool"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(nested, "skip.bin"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		for _, p := range rec.snapshot() {
			if strings.HasSuffix(p, "db.md") {
				return true
			}
		}
		return false
	})
	for _, p := range rec.snapshot() {
		if strings.HasSuffix(p, "skip.bin") {
			t.Errorf("filtered file was reported: %s", p)
		}
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := New(t.TempDir(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
}

func TestWatcher_MatchesRejectsOutsideRoot(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if w.matches(filepath.Join(filepath.Dir(dir), "other.txt")) {
		t.Error("path outside root should not match")
	}
	if !w.matches(filepath.Join(dir, "a", "b.txt")) {
		t.Error("path inside root should match")
	}
}

func TestWatcher_StopWaitsForRunningCallback(t *testing.T) {
	dir := t.TempDir()
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	w, err := New(dir, nil, func(string) {
		once.Do(func() { close(started) })
		<-release
	}, WithDebounce(20*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(dir, "outage.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("callback never ran")
	}

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a callback was still running")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop did not return after the callback finished")
	}
}

func TestWatcher_NoCallbacksAfterStop(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}

	w, err := New(dir, nil, rec.add, WithDebounce(50*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	w.schedule(filepath.Join(dir, "outage.txt"))
	w.Stop()
	time.Sleep(150 * time.Millisecond)

	if got := rec.snapshot(); len(got) != 0 {
		t.Errorf("expected no callbacks after Stop, got %v", got)
	}
}
