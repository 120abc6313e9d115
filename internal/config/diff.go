package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; provider,
// catalog and ledger changes need a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// GenerationChanged is true when temperature or max_tokens changed.
	GenerationChanged bool

	// MatchingChanged is true when a threshold, the similarity strategy or
	// the suggestion count changed.
	MatchingChanged bool

	// DebugChanged is true when server.debug was toggled.
	DebugChanged bool

	// RestartRequired lists changed sections that are not hot-reloadable.
	RestartRequired []string
}

// Changed reports whether anything hot-reloadable changed.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.GenerationChanged || d.MatchingChanged || d.DebugChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	d.DebugChanged = old.Server.Debug != new.Server.Debug
	d.GenerationChanged = old.Generation != new.Generation
	d.MatchingChanged = old.Matching != new.Matching

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	if !samePtr(old.Server.TraceSampleRatio, new.Server.TraceSampleRatio) {
		d.RestartRequired = append(d.RestartRequired, "server.trace_sample_ratio")
	}
	if !sameEntry(old.Providers.LLM, new.Providers.LLM) {
		d.RestartRequired = append(d.RestartRequired, "providers.llm")
	}
	if !sameEntry(old.Providers.Transcription, new.Providers.Transcription) {
		d.RestartRequired = append(d.RestartRequired, "providers.transcription")
	}
	if old.Catalog != new.Catalog {
		d.RestartRequired = append(d.RestartRequired, "catalog")
	}
	if !sameLedger(old.Ledger, new.Ledger) {
		d.RestartRequired = append(d.RestartRequired, "ledger")
	}
	if old.CircuitBreaker != new.CircuitBreaker {
		d.RestartRequired = append(d.RestartRequired, "circuit_breaker")
	}
	return d
}

// sameEntry compares the scalar fields of two provider entries. Options
// are not compared.
func sameEntry(a, b ProviderEntry) bool {
	return a.Name == b.Name && a.APIKey == b.APIKey && a.BaseURL == b.BaseURL && a.Model == b.Model
}

func sameLedger(a, b LedgerConfig) bool {
	return a.Backend == b.Backend &&
		a.Path == b.Path &&
		a.PostgresDSN == b.PostgresDSN &&
		a.Kafka.Topic == b.Kafka.Topic &&
		slices.Equal(a.Kafka.Brokers, b.Kafka.Brokers)
}

func samePtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
