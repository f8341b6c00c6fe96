package translate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseProviderKind(t *testing.T) {
	tests := []struct {
		in   string
		want ProviderKind
	}{
		{"generic-chat", KindGenericChat},
		{"openai", KindGenericChat},
		{"Azure", KindAzure},
		{"anthropic-style", KindAnthropic},
		{"gemini", KindGoogle},
		{"google", KindGoogle},
		{" custom ", KindCustom},
		{"custom-freeform", KindCustom},
	}
	for _, tt := range tests {
		got, err := ParseProviderKind(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseProviderKind("mistral")
	assert.ErrorIs(t, err, ErrUnsupportedProviderKind)
	assert.EqualError(t, err, `unsupported provider kind "mistral"`)
}

func TestTemperatureValue(t *testing.T) {
	tests := []struct {
		raw  Temperature
		want float64
	}{
		{"", DefaultTemperature},
		{"0", 0},
		{"0.7", 0.7},
		{" 1 ", 1},
		{"warm", DefaultTemperature},
		{"NaN", DefaultTemperature},
		{"-0.1", DefaultTemperature},
		{"1.5", DefaultTemperature},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, tt.raw.Value(), 1e-9, "raw %q", tt.raw)
	}
}

func TestProviderConfig_DecodeTemperature(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want float64
	}{
		{name: "number", doc: `{"type":"openai","temperature":0.5}`, want: 0.5},
		{name: "string", doc: `{"type":"openai","temperature":"0.2"}`, want: 0.2},
		{name: "null", doc: `{"type":"openai","temperature":null}`, want: DefaultTemperature},
		{name: "missing", doc: `{"type":"openai"}`, want: DefaultTemperature},
		{name: "garbage", doc: `{"type":"openai","temperature":"hot"}`, want: DefaultTemperature},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg ProviderConfig
			require.NoError(t, json.Unmarshal([]byte(tt.doc), &cfg))
			assert.InDelta(t, tt.want, cfg.Temperature.Value(), 1e-9)
		})
	}
}

func TestProviderConfig_EncodeTemperature(t *testing.T) {
	tests := []struct {
		name string
		raw  Temperature
		want string
	}{
		{name: "number", raw: "0.5", want: `"temperature":0.5`},
		{name: "padded", raw: " 1 ", want: `"temperature":1`},
		{name: "out of range kept", raw: "1.5", want: `"temperature":1.5`},
		{name: "garbage coerced", raw: "hot", want: `"temperature":0.3`},
		{name: "infinity coerced", raw: "Inf", want: `"temperature":0.3`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(ProviderConfig{Kind: KindGenericChat, Temperature: tt.raw})
			require.NoError(t, err)
			assert.Contains(t, string(data), tt.want)
		})
	}

	t.Run("empty omitted", func(t *testing.T) {
		data, err := json.Marshal(ProviderConfig{Kind: KindGenericChat})
		require.NoError(t, err)
		assert.NotContains(t, string(data), "temperature")
	})

	t.Run("decodes back", func(t *testing.T) {
		data, err := json.Marshal(ProviderConfig{Kind: KindGenericChat, Temperature: "0.5"})
		require.NoError(t, err)
		var cfg ProviderConfig
		require.NoError(t, json.Unmarshal(data, &cfg))
		assert.Equal(t, Temperature("0.5"), cfg.Temperature)
	})
}

func TestProviderConfig_DecodeYAML(t *testing.T) {
	doc := `
id: claude
name: Claude
type: anthropic
api_key: secret
temperature: 0.4
system_prompt: Translate to Japanese.
`
	var cfg ProviderConfig
	require.NoError(t, yaml.Unmarshal([]byte(doc), &cfg))

	n, err := cfg.Normalize()
	require.NoError(t, err)
	assert.Equal(t, KindAnthropic, n.Kind)
	assert.InDelta(t, 0.4, n.Temperature.Value(), 1e-9)
	assert.Equal(t, "Translate to Japanese.", n.Prompt())
	assert.Equal(t, "Claude", n.DisplayName())
}

func TestProviderConfig_Validate(t *testing.T) {
	assert.NoError(t, ProviderConfig{Kind: KindGenericChat}.Validate())
	assert.NoError(t, ProviderConfig{Kind: KindGoogle}.Validate())
	assert.NoError(t, ProviderConfig{Kind: KindAzure, Endpoint: "https://x.openai.azure.com"}.Validate())
	assert.ErrorIs(t, ProviderConfig{Kind: KindAzure}.Validate(), ErrMissingEndpoint)
	assert.ErrorIs(t, ProviderConfig{Kind: "custom", Endpoint: "  "}.Validate(), ErrMissingEndpoint)
	assert.ErrorIs(t, ProviderConfig{Kind: "bogus"}.Validate(), ErrUnsupportedProviderKind)
}

func TestProviderConfig_Helpers(t *testing.T) {
	cfg := ProviderConfig{ID: "p1", APIKey: "sk-123"}
	assert.Equal(t, DefaultSystemPrompt, cfg.Prompt())
	assert.Equal(t, "p1", cfg.DisplayName())
	assert.Equal(t, "***", cfg.Redacted().APIKey)
	assert.Equal(t, "sk-123", cfg.APIKey)
	assert.Empty(t, ProviderConfig{}.Redacted().APIKey)
}

func TestBuildCall_DefaultEndpoints(t *testing.T) {
	tests := []struct {
		cfg  ProviderConfig
		want string
	}{
		{ProviderConfig{Kind: KindGenericChat}, DefaultOpenAIEndpoint},
		{ProviderConfig{Kind: KindAnthropic}, DefaultAnthropicEndpoint},
		{
			ProviderConfig{Kind: KindGoogle, APIKey: "k"},
			"https://generativelanguage.googleapis.com/v1beta/models/gemini-pro:generateContent?key=k",
		},
		{
			ProviderConfig{Kind: KindGoogle, Model: "gemini-1.5-flash", APIKey: "k"},
			"https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash:generateContent?key=k",
		},
		{
			ProviderConfig{Kind: KindAzure, Endpoint: "https://res.openai.azure.com/"},
			"https://res.openai.azure.com/openai/deployments/gpt-35-turbo/chat/completions?api-version=2023-05-15",
		},
	}
	for _, tt := range tests {
		call, err := buildCall(tt.cfg, "x")
		require.NoError(t, err)
		assert.Equal(t, tt.want, call.endpoint)
		assert.Equal(t, "application/json", call.headers["Content-Type"])
	}
}

func TestExtractCustom(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "response", body: `{"response":"a","output":"b"}`, want: "a"},
		{name: "output before text", body: `{"text":"c","output":"b"}`, want: "b"},
		{name: "empty string skipped", body: `{"response":"","text":"c"}`, want: "c"},
		{name: "content", body: `{"content":"d"}`, want: "d"},
		{name: "object value", body: `{"content":{"html":"<p>x</p>"}}`, want: `{"html":"<p>x</p>"}`},
		{name: "number value", body: `{"output":42}`, want: "42"},
		{name: "falsy values fall back", body: `{ "response": null, "output": 0, "text": false }`, want: `{"response":null,"output":0,"text":false}`},
		{name: "unknown fields fall back", body: "{\n  \"result\": \"x\"\n}", want: `{"result":"x"}`},
		{name: "non-object body", body: `"just text"`, want: `"just text"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractCustom([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := extractCustom([]byte("not json"))
	var malformedErr *MalformedResponseError
	require.ErrorAs(t, err, &malformedErr)
	assert.Equal(t, "Custom API", malformedErr.Provider)
}
