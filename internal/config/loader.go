package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"regexp"
	"slices"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/MrWong99/salesnote/internal/resolve"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":           {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"transcription": {"openai", "whisper", "gemini"},
}

// envRef matches ${NAME} references. A bare $ is left alone so secrets and
// DSNs containing dollar signs survive expansion.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// LoadDotEnv loads KEY=value pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are skipped; with no arguments ".env" is tried.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: load env file %q: %w", p, err)
		}
	}
	return nil
}

// ExpandEnv replaces every ${NAME} in data with the value of the
// environment variable NAME. Unset variables expand to the empty string
// and are logged.
func ExpandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		name := string(envRef.FindSubmatch(ref)[1])
		v, ok := os.LookupEnv(name)
		if !ok {
			slog.Warn("config references unset environment variable", "name", name)
		}
		return []byte(v)
	})
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader expands environment references, decodes a YAML config
// from r, applies defaults and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(ExpandEnv(data)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Catalog.Backend == "" {
		cfg.Catalog.Backend = CatalogMemory
	}
	if cfg.Ledger.Backend == "" {
		cfg.Ledger.Backend = LedgerFile
	}
	if cfg.Ledger.Path == "" {
		switch cfg.Ledger.Backend {
		case LedgerFile:
			cfg.Ledger.Path = "data/ledger.jsonl"
		case LedgerSQLite:
			cfg.Ledger.Path = "data/ledger.db"
		}
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}
	if r := cfg.Server.TraceSampleRatio; r != nil && (*r < 0 || *r > 1) {
		errs = append(errs, fmt.Errorf("server.trace_sample_ratio %v must be between 0 and 1", *r))
	}

	// Providers
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("transcription", cfg.Providers.Transcription.Name)
	if cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm.name is required"))
	}
	if cfg.Providers.Transcription.Name == "" {
		slog.Warn("providers.transcription is not configured; dictation will be unavailable")
	}

	// Generation
	if cfg.Generation.Temperature < 0 {
		errs = append(errs, fmt.Errorf("generation.temperature %.2f must not be negative", cfg.Generation.Temperature))
	}
	if cfg.Generation.Temperature > 0.3 {
		slog.Warn("generation.temperature above 0.3 is clamped", "temperature", cfg.Generation.Temperature)
	}
	if cfg.Generation.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("generation.max_tokens %d must not be negative", cfg.Generation.MaxTokens))
	}

	// Matching
	for _, th := range []struct {
		name string
		v    float64
	}{
		{"matching.customer_threshold", cfg.Matching.CustomerThreshold},
		{"matching.product_threshold", cfg.Matching.ProductThreshold},
	} {
		if th.v < 0 || th.v > 1 {
			errs = append(errs, fmt.Errorf("%s %.2f is out of range [0, 1]", th.name, th.v))
		}
	}
	if _, ok := resolve.ParseSimilarity(cfg.Matching.Similarity); !ok {
		errs = append(errs, fmt.Errorf("matching.similarity %q is invalid; valid values: levenshtein, jarowinkler, phonetic", cfg.Matching.Similarity))
	}
	if cfg.Matching.Suggestions < 0 {
		errs = append(errs, fmt.Errorf("matching.suggestions %d must not be negative", cfg.Matching.Suggestions))
	}

	// Catalog
	if cfg.Catalog.Backend != "" && !cfg.Catalog.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("catalog.backend %q is invalid; valid values: memory, postgres", cfg.Catalog.Backend))
	}
	if cfg.Catalog.Backend == CatalogPostgres && cfg.Catalog.PostgresDSN == "" {
		errs = append(errs, errors.New("catalog.postgres_dsn is required when catalog.backend is postgres"))
	}
	if cfg.Catalog.Backend == CatalogMemory && cfg.Catalog.SeedFile == "" {
		slog.Warn("catalog.seed_file is empty; the in-memory catalog starts empty")
	}
	if cfg.Catalog.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("catalog.cache_size %d must not be negative", cfg.Catalog.CacheSize))
	}
	if cfg.Catalog.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("catalog.cache_ttl %s must not be negative", cfg.Catalog.CacheTTL))
	}

	// Ledger
	switch cfg.Ledger.Backend {
	case "":
	case LedgerFile, LedgerSQLite:
		if cfg.Ledger.Path == "" {
			errs = append(errs, fmt.Errorf("ledger.path is required when ledger.backend is %s", cfg.Ledger.Backend))
		}
	case LedgerPostgres:
		if cfg.Ledger.PostgresDSN == "" {
			errs = append(errs, errors.New("ledger.postgres_dsn is required when ledger.backend is postgres"))
		}
	case LedgerKafka:
		if len(cfg.Ledger.Kafka.Brokers) == 0 {
			errs = append(errs, errors.New("ledger.kafka.brokers is required when ledger.backend is kafka"))
		}
		if cfg.Ledger.Kafka.Topic == "" {
			errs = append(errs, errors.New("ledger.kafka.topic is required when ledger.backend is kafka"))
		}
	default:
		errs = append(errs, fmt.Errorf("ledger.backend %q is invalid; valid values: file, postgres, sqlite, kafka", cfg.Ledger.Backend))
	}

	// Circuit breaker
	if cfg.CircuitBreaker.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("circuit_breaker.max_failures %d must not be negative", cfg.CircuitBreaker.MaxFailures))
	}
	if cfg.CircuitBreaker.ResetTimeout < 0 {
		errs = append(errs, fmt.Errorf("circuit_breaker.reset_timeout %s must not be negative", cfg.CircuitBreaker.ResetTimeout))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name; may be a typo or a third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
