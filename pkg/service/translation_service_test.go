package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dasmlab/pagetrans/pkg/translate"
)

type mapRegistry map[string]translate.ProviderConfig

func (m mapRegistry) Lookup(id string) (translate.ProviderConfig, bool) {
	cfg, ok := m[id]
	return cfg, ok
}

func newTestService(tr translate.Translator) *TranslationService {
	logger := nullLogger()
	return NewTranslationService(NewPageTranslator(tr, logger), mapRegistry{"openai": openAI}, logger)
}

func TestTranslationService_Translate(t *testing.T) {
	fake := &fakeTranslator{out: "<p>你好</p>"}
	svc := newTestService(fake)

	resp, err := svc.Translate(context.Background(), &TranslateRequest{ProviderID: "openai", Markup: "<p>Hello</p>"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "<p>你好</p>", resp.TranslatedText)
	assert.Empty(t, resp.Error)
	assert.Equal(t, "<p>Hello</p>", fake.got.Markup())
	assert.Equal(t, "sk-test", fake.got.Provider().APIKey)
}

func TestTranslationService_InlineProviderWins(t *testing.T) {
	fake := &fakeTranslator{out: "ok"}
	svc := newTestService(fake)

	inline := translate.ProviderConfig{ID: "inline", Kind: "anthropic", APIKey: "ak"}
	_, err := svc.Translate(context.Background(), &TranslateRequest{Provider: &inline, ProviderID: "openai", Markup: "x"})
	require.NoError(t, err)
	assert.Equal(t, translate.KindAnthropic, fake.got.Provider().Kind)
	assert.Equal(t, "inline", fake.got.Provider().ID)
}

func TestTranslationService_TranslateFailuresInResponse(t *testing.T) {
	t.Run("provider rejects", func(t *testing.T) {
		fake := &fakeTranslator{err: &translate.ProviderRequestFailedError{Provider: "OpenAI", StatusCode: 401, Message: "invalid key"}}
		resp, err := newTestService(fake).Translate(context.Background(), &TranslateRequest{ProviderID: "openai", Markup: "x"})
		require.NoError(t, err)
		assert.False(t, resp.Success)
		assert.Empty(t, resp.TranslatedText)
		assert.Equal(t, "invalid key", resp.Error)
		assert.Equal(t, ErrorKindProviderFailed, resp.ErrorKind)
	})

	t.Run("unsupported kind", func(t *testing.T) {
		fake := &fakeTranslator{out: "unused"}
		inline := translate.ProviderConfig{Kind: "semaphore"}
		resp, err := newTestService(fake).Translate(context.Background(), &TranslateRequest{Provider: &inline, Markup: "x"})
		require.NoError(t, err)
		assert.False(t, resp.Success)
		assert.Equal(t, ErrorKindInvalidConfig, resp.ErrorKind)
		assert.Zero(t, fake.Calls())
	})
}

func TestTranslationService_TransportErrorHidesAPIKey(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	endpoint := dead.URL + "/gen"
	dead.Close()

	logger := nullLogger()
	registry := mapRegistry{"gemini": {ID: "gemini", Kind: translate.KindGoogle, Endpoint: endpoint, APIKey: "SECRET-KEY-123"}}
	svc := NewTranslationService(NewPageTranslator(translate.NewClient(nil, logger), logger), registry, logger)

	resp, err := svc.Translate(context.Background(), &TranslateRequest{ProviderID: "gemini", Markup: "<p>Hello</p>"})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
	assert.NotContains(t, resp.Error, "SECRET-KEY-123")
}

func TestTranslationService_InvalidArgument(t *testing.T) {
	svc := newTestService(&fakeTranslator{})

	tests := []struct {
		name string
		req  *TranslateRequest
	}{
		{"nil request", nil},
		{"missing markup", &TranslateRequest{ProviderID: "openai"}},
		{"missing provider", &TranslateRequest{Markup: "x"}},
		{"unknown provider", &TranslateRequest{ProviderID: "nope", Markup: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Translate(context.Background(), tt.req)
			assert.Equal(t, codes.InvalidArgument, status.Code(err))
		})
	}

	_, err := svc.TranslatePage(context.Background(), &TranslatePageRequest{ProviderID: "openai"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestTranslationService_TranslatePage(t *testing.T) {
	fake := &fakeTranslator{out: `<article lang="zh"><p>你好</p></article>`}
	resp, err := newTestService(fake).TranslatePage(context.Background(), &TranslatePageRequest{ProviderID: "openai", HTML: articlePage})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "element_swap", resp.Mode)
	assert.Equal(t, "article", resp.RegionTag)
	assert.Contains(t, resp.HTML, "你好")
}

func TestTranslationService_TranslatePageNoContent(t *testing.T) {
	fake := &fakeTranslator{out: "unused"}
	resp, err := newTestService(fake).TranslatePage(context.Background(), &TranslatePageRequest{ProviderID: "openai", HTML: "<p>hi</p>"})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, ErrorKindNoContent, resp.ErrorKind)
	assert.Empty(t, resp.HTML)
	assert.Zero(t, fake.Calls())
}
