package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/salesnote/internal/config"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("SALESNOTE_TEST_KEY", "sk-from-env")

	got := string(config.ExpandEnv([]byte("api_key: ${SALESNOTE_TEST_KEY}\npassword: pa$$word\nmissing: ${SALESNOTE_TEST_UNSET}")))
	want := "api_key: sk-from-env\npassword: pa$$word\nmissing: "
	if got != want {
		t.Errorf("ExpandEnv:\n got %q\nwant %q", got, want)
	}
}

func TestLoadFromReader_ExpandsEnv(t *testing.T) {
	t.Setenv("SALESNOTE_TEST_LLM_KEY", "sk-123")

	cfg, err := config.LoadFromReader(strings.NewReader(`
providers:
  llm:
    name: openai
    api_key: ${SALESNOTE_TEST_LLM_KEY}
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Providers.LLM.APIKey != "sk-123" {
		t.Errorf("api_key: got %q, want %q", cfg.Providers.LLM.APIKey, "sk-123")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	writeFile(t, envPath, "SALESNOTE_TEST_DOTENV=from-file\nSALESNOTE_TEST_PRESET=from-file\n")
	t.Setenv("SALESNOTE_TEST_PRESET", "from-process")
	t.Cleanup(func() { os.Unsetenv("SALESNOTE_TEST_DOTENV") })

	if err := config.LoadDotEnv(envPath, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("SALESNOTE_TEST_DOTENV"); got != "from-file" {
		t.Errorf("SALESNOTE_TEST_DOTENV = %q, want from-file", got)
	}
	if got := os.Getenv("SALESNOTE_TEST_PRESET"); got != "from-process" {
		t.Errorf("SALESNOTE_TEST_PRESET = %q, want the existing value kept", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "config: open") {
		t.Fatalf("expected open error, got %v", err)
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	for _, kind := range []string{"llm", "transcription"} {
		if len(config.ValidProviderNames[kind]) == 0 {
			t.Errorf("ValidProviderNames[%q] is empty", kind)
		}
	}
}
