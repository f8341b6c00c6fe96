package translate

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// providerCall is a fully built provider request plus the function that
// reads the translated text out of a successful response body.
type providerCall struct {
	endpoint string
	headers  map[string]string
	body     []byte
	extract  func(body []byte) (string, error)
}

// buildCall dispatches to the request builder of cfg.Kind. An unknown kind
// fails here, before anything touches the network.
func buildCall(cfg ProviderConfig, markup string) (*providerCall, error) {
	switch cfg.Kind {
	case KindGenericChat:
		return buildGenericChatCall(cfg, markup)
	case KindAzure:
		return buildAzureCall(cfg, markup)
	case KindAnthropic:
		return buildAnthropicCall(cfg, markup)
	case KindGoogle:
		return buildGoogleCall(cfg, markup)
	case KindCustom:
		return buildCustomCall(cfg, markup)
	default:
		return nil, &UnsupportedProviderKindError{Kind: string(cfg.Kind)}
	}
}

func jsonHeaders() map[string]string {
	return map[string]string{
		"Content-Type": "application/json",
	}
}

// prefixedPrompt joins the system instruction and markup into one user turn.
func prefixedPrompt(cfg ProviderConfig, markup string) string {
	return cfg.Prompt() + "\n\n" + markup
}

func requiredEndpoint(cfg ProviderConfig) (string, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return "", fmt.Errorf("%s provider %q: %w", cfg.Kind, cfg.ID, ErrMissingEndpoint)
	}
	return endpoint, nil
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// withQueryParam sets key=value on rawURL unless key is already present.
func withQueryParam(rawURL, key, value string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse endpoint %q: %w", rawURL, err)
	}
	q := u.Query()
	if q.Get(key) == "" {
		q.Set(key, value)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func malformed(kind ProviderKind, reason string, err error) error {
	return &MalformedResponseError{Provider: kind.Label(), Reason: reason, Err: err}
}

func decodeResponse(kind ProviderKind, body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return malformed(kind, "invalid JSON", err)
	}
	return nil
}
