package providers

import (
	"fmt"
	"strings"
)

// Provider identifies an AI provider the platform can hold credentials for.
type Provider string

const (
	OpenAI    Provider = "openai"
	Anthropic Provider = "anthropic"
	Gemini    Provider = "gemini"
)

// All lists the supported providers in a stable order.
func All() []Provider {
	return []Provider{OpenAI, Anthropic, Gemini}
}

// Valid reports whether p is a supported provider.
func (p Provider) Valid() bool {
	switch p {
	case OpenAI, Anthropic, Gemini:
		return true
	}
	return false
}

// Parse normalizes and validates a provider string.
func Parse(s string) (Provider, error) {
	p := Provider(strings.ToLower(s))
	if !p.Valid() {
		return "", fmt.Errorf("unknown provider %q", s)
	}
	return p, nil
}

// modelTokens maps provider-specific naming conventions to providers. The
// order matters only for readability; tokens are disjoint across providers.
var modelTokens = []struct {
	token    string
	provider Provider
}{
	{"gpt", OpenAI},
	{"o1", OpenAI},
	{"o3", OpenAI},
	{"o4", OpenAI},
	{"davinci", OpenAI},
	{"claude", Anthropic},
	{"gemini", Gemini},
	{"bison", Gemini},
}

// Infer maps a bare model id to its provider by substring matching against
// known naming conventions. An unmatched id returns false — callers must
// treat that as an invalid model, never guess a default provider.
func Infer(model string) (Provider, bool) {
	m := strings.ToLower(model)
	for _, t := range modelTokens {
		if strings.Contains(m, t.token) {
			return t.provider, true
		}
	}
	return "", false
}
