package translate

import (
	"encoding/json"
	"fmt"
	"net/url"
)

const (
	// DefaultGeminiBaseURL hosts the generateContent endpoint of google-generative providers.
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"
	// DefaultGeminiModel is used when a google-generative config names no model.
	DefaultGeminiModel = "gemini-pro"
)

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content *struct {
			Parts []struct {
				Text *string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// The API key travels in the key query parameter, also on overridden endpoints.
func buildGoogleCall(cfg ProviderConfig, markup string) (*providerCall, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("%s/%s:generateContent",
			DefaultGeminiBaseURL, url.PathEscape(orDefault(cfg.Model, DefaultGeminiModel)))
	}
	if cfg.APIKey != "" {
		var err error
		endpoint, err = withQueryParam(endpoint, "key", cfg.APIKey)
		if err != nil {
			return nil, err
		}
	}

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: prefixedPrompt(cfg, markup)}}},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     cfg.Temperature.Value(),
			MaxOutputTokens: DefaultMaxTokens,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode gemini request: %w", err)
	}

	return &providerCall{
		endpoint: endpoint,
		headers:  jsonHeaders(),
		body:     body,
		extract:  extractGemini,
	}, nil
}

// extractGemini reads candidates[0].content.parts[0].text.
func extractGemini(body []byte) (string, error) {
	var resp geminiResponse
	if err := decodeResponse(KindGoogle, body, &resp); err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 {
		return "", malformed(KindGoogle, "no candidates", nil)
	}
	content := resp.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 || content.Parts[0].Text == nil {
		return "", malformed(KindGoogle, "candidates[0].content.parts[0].text missing", nil)
	}
	if *content.Parts[0].Text == "" {
		return "", malformed(KindGoogle, "candidates[0].content.parts[0].text empty", nil)
	}
	return *content.Parts[0].Text, nil
}
