package translate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// customOutputFields are tried in order against a custom-freeform response.
var customOutputFields = []string{"response", "output", "text", "content"}

type customRequest struct {
	Model       string  `json:"model,omitempty"`
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

func buildCustomCall(cfg ProviderConfig, markup string) (*providerCall, error) {
	endpoint, err := requiredEndpoint(cfg)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(customRequest{
		Model:       cfg.Model,
		Prompt:      prefixedPrompt(cfg, markup),
		Temperature: cfg.Temperature.Value(),
		MaxTokens:   DefaultMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("encode custom request: %w", err)
	}

	headers := jsonHeaders()
	if cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + cfg.APIKey
	}

	return &providerCall{
		endpoint: endpoint,
		headers:  headers,
		body:     body,
		extract:  extractCustom,
	}, nil
}

// extractCustom returns the first populated output field. Strings are
// returned as-is, other values as their JSON text. When no field is
// populated the whole body is returned in compact form.
func extractCustom(body []byte) (string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err == nil {
		for _, name := range customOutputFields {
			raw, ok := fields[name]
			if !ok || !populated(raw) {
				continue
			}
			var s string
			if err := json.Unmarshal(raw, &s); err == nil {
				return s, nil
			}
			return string(raw), nil
		}
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, body); err != nil {
		return "", malformed(KindCustom, "invalid JSON", err)
	}
	return compact.String(), nil
}

// populated reports whether raw holds a value other than null, false, zero
// or the empty string.
func populated(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	switch string(trimmed) {
	case "", "null", "false", `""`:
		return false
	}
	if f, err := strconv.ParseFloat(string(trimmed), 64); err == nil {
		return f != 0
	}
	return true
}
