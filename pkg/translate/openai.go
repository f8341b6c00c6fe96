package translate

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

const (
	// DefaultOpenAIEndpoint is the chat completions endpoint for generic-chat providers.
	DefaultOpenAIEndpoint = "https://api.openai.com/v1/chat/completions"
	// DefaultOpenAIModel is used when a generic-chat config names no model.
	DefaultOpenAIModel = "gpt-3.5-turbo"
	// DefaultAzureDeployment is used when an azure-style config names no deployment.
	DefaultAzureDeployment = "gpt-35-turbo"
	// AzureAPIVersion is pinned in the query string of every Azure call.
	AzureAPIVersion = "2023-05-15"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model,omitempty"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message *struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func chatTurns(cfg ProviderConfig, markup string) []chatMessage {
	return []chatMessage{
		{Role: "system", Content: cfg.Prompt()},
		{Role: "user", Content: markup},
	}
}

func buildGenericChatCall(cfg ProviderConfig, markup string) (*providerCall, error) {
	body, err := json.Marshal(chatRequest{
		Model:       orDefault(cfg.Model, DefaultOpenAIModel),
		Messages:    chatTurns(cfg, markup),
		MaxTokens:   DefaultMaxTokens,
		Temperature: cfg.Temperature.Value(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}

	headers := jsonHeaders()
	headers["Authorization"] = "Bearer " + cfg.APIKey

	return &providerCall{
		endpoint: orDefault(cfg.Endpoint, DefaultOpenAIEndpoint),
		headers:  headers,
		body:     body,
		extract:  chatExtractor(KindGenericChat),
	}, nil
}

func buildAzureCall(cfg ProviderConfig, markup string) (*providerCall, error) {
	base, err := requiredEndpoint(cfg)
	if err != nil {
		return nil, err
	}
	deployment := orDefault(cfg.Model, DefaultAzureDeployment)
	endpoint := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		strings.TrimRight(base, "/"), url.PathEscape(deployment), AzureAPIVersion)

	body, err := json.Marshal(chatRequest{
		Messages:    chatTurns(cfg, markup),
		MaxTokens:   DefaultMaxTokens,
		Temperature: cfg.Temperature.Value(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}

	headers := jsonHeaders()
	headers["api-key"] = cfg.APIKey

	return &providerCall{
		endpoint: endpoint,
		headers:  headers,
		body:     body,
		extract:  chatExtractor(KindAzure),
	}, nil
}

// chatExtractor reads choices[0].message.content.
func chatExtractor(kind ProviderKind) func([]byte) (string, error) {
	return func(body []byte) (string, error) {
		var resp chatResponse
		if err := decodeResponse(kind, body, &resp); err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", malformed(kind, "no choices", nil)
		}
		msg := resp.Choices[0].Message
		if msg == nil || msg.Content == nil {
			return "", malformed(kind, "choices[0].message.content missing", nil)
		}
		if *msg.Content == "" {
			return "", malformed(kind, "choices[0].message.content empty", nil)
		}
		return *msg.Content, nil
	}
}
