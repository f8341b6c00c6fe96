package translate

import (
	"encoding/json"
	"fmt"
)

const (
	// DefaultAnthropicEndpoint is the messages endpoint for anthropic-style providers.
	DefaultAnthropicEndpoint = "https://api.anthropic.com/v1/messages"
	// DefaultAnthropicModel is used when an anthropic-style config names no model.
	DefaultAnthropicModel = "claude-3-sonnet-20240229"
	// AnthropicVersion is sent in the anthropic-version header.
	AnthropicVersion = "2023-06-01"
)

type anthropicRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type anthropicResponse struct {
	Content []struct {
		Type string  `json:"type"`
		Text *string `json:"text"`
	} `json:"content"`
}

// The system instruction is folded into the single user turn rather than
// sent in the top-level system field.
func buildAnthropicCall(cfg ProviderConfig, markup string) (*providerCall, error) {
	body, err := json.Marshal(anthropicRequest{
		Model: orDefault(cfg.Model, DefaultAnthropicModel),
		Messages: []chatMessage{
			{Role: "user", Content: prefixedPrompt(cfg, markup)},
		},
		Temperature: cfg.Temperature.Value(),
		MaxTokens:   DefaultMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("encode anthropic request: %w", err)
	}

	headers := jsonHeaders()
	headers["x-api-key"] = cfg.APIKey
	headers["anthropic-version"] = AnthropicVersion

	return &providerCall{
		endpoint: orDefault(cfg.Endpoint, DefaultAnthropicEndpoint),
		headers:  headers,
		body:     body,
		extract:  extractAnthropic,
	}, nil
}

// extractAnthropic reads content[0].text.
func extractAnthropic(body []byte) (string, error) {
	var resp anthropicResponse
	if err := decodeResponse(KindAnthropic, body, &resp); err != nil {
		return "", err
	}
	if len(resp.Content) == 0 {
		return "", malformed(KindAnthropic, "no content blocks", nil)
	}
	text := resp.Content[0].Text
	if text == nil {
		return "", malformed(KindAnthropic, "content[0].text missing", nil)
	}
	if *text == "" {
		return "", malformed(KindAnthropic, "content[0].text empty", nil)
	}
	return *text, nil
}
