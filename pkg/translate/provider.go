package translate

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ProviderKind identifies the request/response mapping of a translation backend.
type ProviderKind string

const (
	// KindGenericChat speaks the OpenAI chat completions protocol.
	KindGenericChat ProviderKind = "generic-chat"
	// KindAzure speaks the Azure OpenAI deployment protocol.
	KindAzure ProviderKind = "azure-style"
	// KindAnthropic speaks the Anthropic messages protocol.
	KindAnthropic ProviderKind = "anthropic-style"
	// KindGoogle speaks the Google generative language protocol.
	KindGoogle ProviderKind = "google-generative"
	// KindCustom posts a flat prompt to an arbitrary endpoint.
	KindCustom ProviderKind = "custom-freeform"
)

const (
	// DefaultTemperature is used when a config carries no usable temperature.
	DefaultTemperature = 0.3
	// DefaultMaxTokens bounds the output length of every provider call.
	DefaultMaxTokens = 12000

	// DefaultSystemPrompt instructs the model to translate markup in place.
	DefaultSystemPrompt = "You are a professional translator. Translate the following HTML content into Chinese. " +
		"Keep the original HTML tags, tag attributes and CSS unchanged and translate only the text content. " +
		"If there is code, translate only the comments, not the code."
)

// Kinds lists every supported provider kind.
func Kinds() []ProviderKind {
	return []ProviderKind{KindGenericChat, KindAzure, KindAnthropic, KindGoogle, KindCustom}
}

// ParseProviderKind parses a kind name, accepting the short aliases used by
// older configuration files (openai, azure, anthropic, gemini, custom).
func ParseProviderKind(s string) (ProviderKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "generic-chat", "openai":
		return KindGenericChat, nil
	case "azure-style", "azure":
		return KindAzure, nil
	case "anthropic-style", "anthropic":
		return KindAnthropic, nil
	case "google-generative", "gemini", "google":
		return KindGoogle, nil
	case "custom-freeform", "custom":
		return KindCustom, nil
	default:
		return "", &UnsupportedProviderKindError{Kind: s}
	}
}

// Label is the human-readable provider family used in error messages.
func (k ProviderKind) Label() string {
	switch k {
	case KindGenericChat:
		return "OpenAI"
	case KindAzure:
		return "Azure OpenAI"
	case KindAnthropic:
		return "Anthropic"
	case KindGoogle:
		return "Google Gemini"
	case KindCustom:
		return "Custom API"
	default:
		return string(k)
	}
}

// Temperature holds the sampling temperature exactly as configured.
// Configuration sources disagree on whether it is a number or a string, so
// the raw text is kept and coerced by Value.
type Temperature string

// UnmarshalJSON accepts a JSON number, a JSON string or null.
func (t *Temperature) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*t = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = Temperature(s)
		return nil
	}
	*t = Temperature(raw)
	return nil
}

// MarshalJSON always writes a JSON number: the configured value when it
// parses as a finite number, otherwise the coerced Value.
func (t Temperature) MarshalJSON() ([]byte, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(string(t)), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		v = t.Value()
	}
	return []byte(strconv.FormatFloat(v, 'f', -1, 64)), nil
}

// Value returns the temperature as a number in [0, 1], or DefaultTemperature
// when the configured value is missing, unparsable or out of range.
func (t Temperature) Value() float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(string(t)), 64)
	if err != nil || math.IsNaN(v) || v < 0 || v > 1 {
		return DefaultTemperature
	}
	return v
}

// ProviderConfig describes one translation backend.
type ProviderConfig struct {
	ID           string       `json:"id" yaml:"id"`
	Name         string       `json:"name,omitempty" yaml:"name"`
	Kind         ProviderKind `json:"type" yaml:"type"`
	Endpoint     string       `json:"api_url,omitempty" yaml:"api_url"`
	APIKey       string       `json:"api_key,omitempty" yaml:"api_key"`
	Model        string       `json:"model,omitempty" yaml:"model"`
	Temperature  Temperature  `json:"temperature,omitempty" yaml:"temperature"`
	SystemPrompt string       `json:"system_prompt,omitempty" yaml:"system_prompt"`
}

// Normalize returns a copy of c with its kind resolved to a canonical value.
func (c ProviderConfig) Normalize() (ProviderConfig, error) {
	kind, err := ParseProviderKind(string(c.Kind))
	if err != nil {
		return c, err
	}
	c.Kind = kind
	return c, nil
}

// Validate checks the parts of c that must be right before any request is built.
func (c ProviderConfig) Validate() error {
	n, err := c.Normalize()
	if err != nil {
		return err
	}
	if (n.Kind == KindAzure || n.Kind == KindCustom) && strings.TrimSpace(n.Endpoint) == "" {
		return fmt.Errorf("%s provider %q: %w", n.Kind, n.ID, ErrMissingEndpoint)
	}
	return nil
}

// Prompt returns the system instruction, falling back to DefaultSystemPrompt.
func (c ProviderConfig) Prompt() string {
	if strings.TrimSpace(c.SystemPrompt) == "" {
		return DefaultSystemPrompt
	}
	return c.SystemPrompt
}

// DisplayName returns Name, or ID when no name is set.
func (c ProviderConfig) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}

// Redacted returns a copy of c that is safe to log or expose.
func (c ProviderConfig) Redacted() ProviderConfig {
	if c.APIKey != "" {
		c.APIKey = "***"
	}
	return c
}
