package tags

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/reoverflow/internal/models"
)

type recordingWriter struct {
	mu   sync.Mutex
	seen map[string]models.Tag
}

func (w *recordingWriter) UpsertTags(_ context.Context, tags []models.Tag) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.seen == nil {
		w.seen = make(map[string]models.Tag)
	}
	for _, t := range tags {
		w.seen[t.Slug] = t
	}
	return nil
}

func (w *recordingWriter) has(slug string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.seen[slug]
	return ok
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

func TestSeedFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tags.yaml")
	content := "tags:\n  - slug: go\n    name: Go\n  - slug: sql\n    name: SQL\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	w := &recordingWriter{}
	n, err := SeedFromFile(context.Background(), w, path)
	if err != nil {
		t.Fatalf("SeedFromFile: %v", err)
	}
	if n != 2 || !w.has("go") || !w.has("sql") {
		t.Errorf("seeded %d, writer = %+v", n, w.seen)
	}
}

func TestSeedFromFile_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tags.yaml")
	_ = os.WriteFile(path, []byte("tags: [unclosed"), 0o644)
	if _, err := SeedFromFile(context.Background(), &recordingWriter{}, path); err == nil {
		t.Error("expected parse error")
	}
}

func TestWatch_ReseedsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tags.yaml")
	_ = os.WriteFile(path, []byte("tags:\n  - slug: go\n"), 0o644)

	w := &recordingWriter{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, w, path, quietLogger())

	time.Sleep(100 * time.Millisecond)
	_ = os.WriteFile(path, []byte("tags:\n  - slug: go\n  - slug: rust\n"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return w.has("rust")
	}, "catalog change not reseeded by watcher")
}
