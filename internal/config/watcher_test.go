package config_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/transcorrect/internal/config"
)

const watcherValidYAML = `
server:
  log_level: info
providers:
  llm:
    name: openai
`

const watcherUpdatedYAML = `
server:
  log_level: debug
providers:
  llm:
    name: openai
`

const watcherInvalidYAML = `
server:
  log_level: bananas
`

func writeFile(t *testing.T, path, content string, mtime time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %q: %v", path, err)
	}
	// Explicit mtimes keep change detection independent of filesystem
	// timestamp resolution.
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes %q: %v", path, err)
	}
}

type changeRecorder struct {
	mu      sync.Mutex
	changes [][2]*config.Config
}

func (r *changeRecorder) record(old, new *config.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, [2]*config.Config{old, new})
}

func (r *changeRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.changes)
}

// newWatcher writes the initial config and starts a watcher that only
// reloads on explicit Check calls.
func newWatcher(t *testing.T) (string, *config.Watcher, *changeRecorder) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transcorrect.yaml")
	writeFile(t, path, watcherValidYAML, time.Unix(1_700_000_000, 0))

	rec := &changeRecorder{}
	w, err := config.NewWatcher(path, rec.record, config.WithInterval(time.Hour))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(w.Stop)
	return path, w, rec
}

func TestWatcher_InitialLoad(t *testing.T) {
	t.Parallel()

	_, w, _ := newWatcher(t)
	if cfg := w.Current(); cfg == nil || cfg.Server.LogLevel != config.LogInfo {
		t.Fatalf("Current() = %+v after initial load", cfg)
	}
}

func TestWatcher_InitialLoadFails(t *testing.T) {
	t.Parallel()

	if _, err := config.NewWatcher(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatal("expected error for a missing file")
	}
}

func TestWatcher_Check(t *testing.T) {
	t.Parallel()

	path, w, rec := newWatcher(t)

	changed, err := w.Check()
	if err != nil || changed {
		t.Fatalf("Check on untouched file = %v, %v", changed, err)
	}

	writeFile(t, path, watcherUpdatedYAML, time.Unix(1_700_000_010, 0))
	changed, err = w.Check()
	if err != nil || !changed {
		t.Fatalf("Check after edit = %v, %v; want true, nil", changed, err)
	}
	if w.Current().Server.LogLevel != config.LogDebug {
		t.Errorf("Current log level = %q, want debug", w.Current().Server.LogLevel)
	}
	if rec.count() != 1 {
		t.Fatalf("callbacks = %d, want 1", rec.count())
	}
	if d := config.Diff(rec.changes[0][0], rec.changes[0][1]); !d.LogLevelChanged || len(d.RestartRequired) != 0 {
		t.Errorf("Diff of reload = %+v, want log level only", d)
	}
}

func TestWatcher_TouchWithoutContentChange(t *testing.T) {
	t.Parallel()

	path, w, rec := newWatcher(t)
	writeFile(t, path, watcherValidYAML, time.Unix(1_700_000_020, 0))

	if changed, err := w.Check(); err != nil || changed {
		t.Errorf("Check after touch = %v, %v; want false, nil", changed, err)
	}
	if rec.count() != 0 {
		t.Errorf("callbacks = %d, want 0", rec.count())
	}
}

func TestWatcher_InvalidFileKeepsOldConfig(t *testing.T) {
	t.Parallel()

	path, w, rec := newWatcher(t)
	writeFile(t, path, watcherInvalidYAML, time.Unix(1_700_000_030, 0))

	if _, err := w.Check(); err == nil {
		t.Error("Check on invalid file returned nil error")
	}
	if w.Current().Server.LogLevel != config.LogInfo || rec.count() != 0 {
		t.Errorf("invalid file replaced the config: %+v", w.Current().Server)
	}
}

func TestWatcher_PollsInBackground(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "transcorrect.yaml")
	writeFile(t, path, watcherValidYAML, time.Unix(1_700_000_000, 0))

	reloaded := make(chan *config.Config, 1)
	w, err := config.NewWatcher(path, func(_, new *config.Config) { reloaded <- new }, config.WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	writeFile(t, path, watcherUpdatedYAML, time.Unix(1_700_000_010, 0))
	select {
	case cfg := <-reloaded:
		if cfg.Server.LogLevel != config.LogDebug {
			t.Errorf("reloaded log level = %q", cfg.Server.LogLevel)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not pick up the change")
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	t.Parallel()

	_, w, _ := newWatcher(t)
	w.Stop()
	w.Stop()
}
