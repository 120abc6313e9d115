package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrWong99/salesnote/internal/config"
)

const watcherValidYAML = `
server:
  log_level: info
providers:
  llm:
    name: openai
generation:
  temperature: 0.2
`

const watcherUpdatedYAML = `
server:
  log_level: debug
providers:
  llm:
    name: openai
generation:
  temperature: 0.1
`

const watcherInvalidYAML = `
server:
  log_level: bananas
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file %q: %v", path, err)
	}
}

// rewrite writes content and moves the mtime forward so the change is
// visible regardless of filesystem timestamp resolution.
func rewrite(t *testing.T, path, content string, bump time.Duration) {
	t.Helper()
	writeFile(t, path, content)
	ts := time.Now().Add(bump)
	if err := os.Chtimes(path, ts, ts); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}
}

func TestWatcher_InitialLoad(t *testing.T) {
	t.Parallel()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, cfgPath, watcherValidYAML)

	w, err := config.NewWatcher(cfgPath, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.Current().Server.LogLevel != config.LogInfo {
		t.Errorf("log_level: got %q", w.Current().Server.LogLevel)
	}
}

func TestWatcher_DetectsChange(t *testing.T) {
	t.Parallel()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, cfgPath, watcherValidYAML)

	var gotOld, gotNew *config.Config
	var gotDiff config.ConfigDiff
	w, err := config.NewWatcher(cfgPath, func(old, new *config.Config, d config.ConfigDiff) {
		gotOld, gotNew, gotDiff = old, new, d
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rewrite(t, cfgPath, watcherUpdatedYAML, time.Minute)
	if !w.Check() {
		t.Fatal("Check did not report the change")
	}
	if gotOld == nil || gotNew == nil {
		t.Fatal("callback was not invoked")
	}
	if gotOld.Server.LogLevel != config.LogInfo || gotNew.Server.LogLevel != config.LogDebug {
		t.Errorf("log levels: old %q new %q", gotOld.Server.LogLevel, gotNew.Server.LogLevel)
	}
	if !gotDiff.LogLevelChanged || !gotDiff.GenerationChanged {
		t.Errorf("diff = %+v", gotDiff)
	}
	if w.Current().Generation.Temperature != 0.1 {
		t.Errorf("Current() temperature: got %v", w.Current().Generation.Temperature)
	}
}

func TestWatcher_InvalidFileKeepsOldConfig(t *testing.T) {
	t.Parallel()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, cfgPath, watcherValidYAML)

	called := false
	w, err := config.NewWatcher(cfgPath, func(_, _ *config.Config, _ config.ConfigDiff) { called = true })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rewrite(t, cfgPath, watcherInvalidYAML, time.Minute)
	if w.Check() || called {
		t.Error("invalid config was installed")
	}
	if w.Current().Server.LogLevel != config.LogInfo {
		t.Errorf("Current() log_level: got %q", w.Current().Server.LogLevel)
	}
}

func TestWatcher_InitialLoadFails(t *testing.T) {
	t.Parallel()
	if _, err := config.NewWatcher(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestWatcher_TouchWithoutContentChange(t *testing.T) {
	t.Parallel()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, cfgPath, watcherValidYAML)

	called := false
	w, err := config.NewWatcher(cfgPath, func(_, _ *config.Config, _ config.ConfigDiff) { called = true })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rewrite(t, cfgPath, watcherValidYAML, time.Minute)
	if w.Check() || called {
		t.Error("identical content reported as a change")
	}
}

func TestWatcher_RunAppliesChangeAndStops(t *testing.T) {
	t.Parallel()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, cfgPath, watcherValidYAML)

	changed := make(chan config.LogLevel, 1)
	w, err := config.NewWatcher(cfgPath, func(_, next *config.Config, _ config.ConfigDiff) {
		changed <- next.Server.LogLevel
	}, config.WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	rewrite(t, cfgPath, watcherUpdatedYAML, time.Minute)
	select {
	case lvl := <-changed:
		if lvl != config.LogDebug {
			t.Errorf("log level = %q, want debug", lvl)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not pick up the change")
	}
	if w.Current().Server.LogLevel != config.LogDebug {
		t.Errorf("Current not updated")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
