package watch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func startWatcher(t *testing.T, roots []string, opts ...Option) <-chan []string {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger()), WithDebounce(50 * time.Millisecond)}, opts...)
	w, err := New(roots, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	batches := make(chan []string, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx, func(_ context.Context, paths []string) { batches <- paths })
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return batches
}

func waitFor(t *testing.T, batches <-chan []string, want string) []string {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case b := <-batches:
			for _, p := range b {
				if p == want {
					return b
				}
			}
		case <-deadline:
			t.Fatalf("timeout waiting for %s", want)
			return nil
		}
	}
}

func TestRun_DeliversChanges(t *testing.T) {
	dir := t.TempDir()
	batches := startWatcher(t, []string{dir})

	p := filepath.Join(dir, "Chap_01_AK_One.md")
	if err := os.WriteFile(p, []byte("one"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, batches, p)
}

func TestRun_WatchesNewSubdirectories(t *testing.T) {
	dir := t.TempDir()
	batches := startWatcher(t, []string{dir})

	sub := filepath.Join(dir, "covers")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	// Give the watcher a moment to register the new directory.
	time.Sleep(100 * time.Millisecond)

	p := filepath.Join(sub, "night.png")
	if err := os.WriteFile(p, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, batches, p)
}

func TestRun_AppliesFilter(t *testing.T) {
	dir := t.TempDir()
	batches := startWatcher(t, []string{dir}, WithFilter(func(p string) bool {
		return strings.HasSuffix(p, ".md")
	}))

	if err := os.WriteFile(filepath.Join(dir, "scratch.tmp"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	p := filepath.Join(dir, "a.md")
	if err := os.WriteFile(p, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}

	got := waitFor(t, batches, p)
	for _, q := range got {
		if strings.HasSuffix(q, ".tmp") {
			t.Errorf("filtered path delivered: %s", q)
		}
	}
}

func TestNew_SkipsMissingRoot(t *testing.T) {
	w, err := New([]string{filepath.Join(t.TempDir(), "missing")}, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Run(ctx, func(context.Context, []string) {}); err != nil {
		t.Errorf("Run: %v", err)
	}
}
