package llm

import "strings"

// DefaultCapabilities is reported for models [CapabilitiesFor] does not know.
var DefaultCapabilities = ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 4_096}

type capabilityRule struct {
	match func(model string) bool
	caps  ModelCapabilities
}

func prefix(p string) func(string) bool   { return func(m string) bool { return strings.HasPrefix(m, p) } }
func contains(s string) func(string) bool { return func(m string) bool { return strings.Contains(m, s) } }

// Checked in order; more specific names come first.
var capabilityRules = []capabilityRule{
	{prefix("gpt-4.1"), ModelCapabilities{ContextWindow: 1_047_576, MaxOutputTokens: 32_768}},
	{prefix("gpt-4o"), ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 16_384}},
	{prefix("gpt-4-turbo"), DefaultCapabilities},
	{prefix("gpt-4"), ModelCapabilities{ContextWindow: 8_192, MaxOutputTokens: 4_096}},
	{prefix("gpt-3.5-turbo"), ModelCapabilities{ContextWindow: 16_385, MaxOutputTokens: 4_096}},
	{prefix("o1-mini"), ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 65_536}},
	{prefix("o1"), ModelCapabilities{ContextWindow: 200_000, MaxOutputTokens: 100_000}},
	{prefix("o3"), ModelCapabilities{ContextWindow: 200_000, MaxOutputTokens: 100_000}},
	{contains("claude-3-opus"), ModelCapabilities{ContextWindow: 200_000, MaxOutputTokens: 4_096}},
	{prefix("claude"), ModelCapabilities{ContextWindow: 200_000, MaxOutputTokens: 8_192}},
	{contains("gemini-1.5-pro"), ModelCapabilities{ContextWindow: 2_097_152, MaxOutputTokens: 8_192}},
	{contains("gemini-2"), ModelCapabilities{ContextWindow: 1_048_576, MaxOutputTokens: 8_192}},
	{contains("gemini-1.5-flash"), ModelCapabilities{ContextWindow: 1_048_576, MaxOutputTokens: 8_192}},
	{prefix("gemini"), ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 8_192}},
}

// CapabilitiesFor returns the known limits of model, matched
// case-insensitively by name family. Unknown models get
// [DefaultCapabilities].
func CapabilitiesFor(model string) ModelCapabilities {
	lower := strings.ToLower(model)
	for _, r := range capabilityRules {
		if r.match(lower) {
			return r.caps
		}
	}
	return DefaultCapabilities
}

// ClampMaxTokens limits requested to what model can emit. Zero or negative
// requests mean "backend default" and are returned unchanged.
func ClampMaxTokens(model string, requested int) int {
	if requested <= 0 {
		return requested
	}
	return min(requested, CapabilitiesFor(model).MaxOutputTokens)
}
