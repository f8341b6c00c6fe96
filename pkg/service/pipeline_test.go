package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dasmlab/pagetrans/pkg/content"
	"github.com/dasmlab/pagetrans/pkg/translate"
)

// fakeTranslator records requests and returns a canned answer.
type fakeTranslator struct {
	mu    sync.Mutex
	calls int
	got   translate.Request
	out   string
	err   error
	hook  func()
}

func (f *fakeTranslator) Translate(ctx context.Context, req translate.Request) (string, error) {
	f.mu.Lock()
	f.calls++
	f.got = req
	hook, out, err := f.hook, f.out, f.err
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return out, err
}

func (f *fakeTranslator) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func nullLogger() *logrus.Logger {
	logger, _ := logrustest.NewNullLogger()
	return logger
}

func parseDoc(t *testing.T, markup string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	require.NoError(t, err)
	return doc
}

var openAI = translate.ProviderConfig{ID: "openai", Kind: "openai", APIKey: "sk-test"}

const articlePage = `<html><head><title>Post</title></head><body>` +
	`<nav>menu</nav>` +
	`<article id="post-1" class="body"><p>` +
	`Hello there. This paragraph is long enough to be picked as the main content of the page by the locator, ` +
	`since it is well over one hundred characters.</p></article>` +
	`<footer>bye</footer></body></html>`

func TestTranslateDocument_ElementSwap(t *testing.T) {
	doc := parseDoc(t, articlePage)
	fake := &fakeTranslator{out: `<article lang="zh"><p>你好</p></article>`}
	fake.hook = func() {
		assert.Equal(t, 1, doc.Find("#"+content.IndicatorID).Length(), "indicator shown while translating")
	}

	p := NewPageTranslator(fake, nullLogger())
	outcome, err := p.TranslateDocument(context.Background(), doc, openAI)
	require.NoError(t, err)

	assert.Equal(t, content.ModeElementSwap, outcome.Mode)
	assert.Equal(t, "article", outcome.RegionTag)
	assert.Equal(t, translate.KindGenericChat, outcome.Kind)
	assert.Equal(t, "openai", outcome.ProviderID)

	assert.True(t, strings.HasPrefix(fake.got.Markup(), `<article id="post-1" class="body">`))
	assert.Equal(t, translate.KindGenericChat, fake.got.Provider().Kind)

	article := doc.Find("article")
	require.Equal(t, 1, article.Length())
	assert.Equal(t, "你好", article.Text())
	assert.Equal(t, "post-1", article.AttrOr("id", ""))
	assert.Equal(t, "body", article.AttrOr("class", ""))
	assert.Equal(t, "zh", article.AttrOr("lang", ""))
	assert.Equal(t, "nav", goquery.NodeName(article.Prev()))
	assert.Equal(t, "footer", goquery.NodeName(article.Next()))
	assert.Zero(t, doc.Find("#"+content.IndicatorID).Length())
}

func TestTranslateDocument_ContentOnly(t *testing.T) {
	doc := parseDoc(t, articlePage)
	fake := &fakeTranslator{out: `<div><p>你好</p></div>`}

	outcome, err := NewPageTranslator(fake, nullLogger()).TranslateDocument(context.Background(), doc, openAI)
	require.NoError(t, err)
	assert.Equal(t, content.ModeContentOnly, outcome.Mode)

	article := doc.Find("article#post-1")
	require.Equal(t, 1, article.Length())
	assert.Equal(t, 1, article.Find("div > p").Length())
}

func TestTranslateDocument_NoContentSkipsProvider(t *testing.T) {
	doc := parseDoc(t, "<html><body><p>short</p></body></html>")
	fake := &fakeTranslator{out: "unused"}

	_, err := NewPageTranslator(fake, nullLogger()).TranslateDocument(context.Background(), doc, openAI)
	require.ErrorIs(t, err, content.ErrNoContentFound)
	assert.Zero(t, fake.Calls())
	assert.Zero(t, doc.Find("#"+content.IndicatorID).Length())
}

func TestTranslateDocument_ProviderFailureLeavesDocument(t *testing.T) {
	doc := parseDoc(t, articlePage)
	before, err := doc.Html()
	require.NoError(t, err)

	fake := &fakeTranslator{err: &translate.ProviderRequestFailedError{Provider: "OpenAI", StatusCode: 401, Message: "invalid key"}}
	_, err = NewPageTranslator(fake, nullLogger()).TranslateDocument(context.Background(), doc, openAI)
	require.EqualError(t, err, "invalid key")

	after, err := doc.Html()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestTranslateDocument_UnsupportedKindSkipsProvider(t *testing.T) {
	doc := parseDoc(t, articlePage)
	fake := &fakeTranslator{out: "unused"}

	cfg := translate.ProviderConfig{ID: "x", Kind: "telepathy"}
	_, err := NewPageTranslator(fake, nullLogger()).TranslateDocument(context.Background(), doc, cfg)
	require.ErrorIs(t, err, translate.ErrUnsupportedProviderKind)
	assert.Zero(t, fake.Calls())
	assert.Zero(t, doc.Find("#"+content.IndicatorID).Length())
}

func TestTranslateDocument_ReportsStagesInOrder(t *testing.T) {
	doc := parseDoc(t, articlePage)
	fake := &fakeTranslator{out: `<article>你好</article>`}

	var stages []Stage
	_, err := NewPageTranslator(fake, nullLogger()).TranslateDocumentWithProgress(context.Background(), doc, openAI, func(s Stage) {
		stages = append(stages, s)
	})
	require.NoError(t, err)
	assert.Equal(t, []Stage{StageLocated, StageTranslated, StageReconciled}, stages)
}

func TestTranslateDocument_NoTranslator(t *testing.T) {
	p := NewPageTranslator(nil, nullLogger())
	_, err := p.TranslateDocument(context.Background(), parseDoc(t, articlePage), openAI)
	assert.Error(t, err)
}

func TestTranslateHTML_RendersDocument(t *testing.T) {
	fake := &fakeTranslator{out: `<article lang="zh"><p>你好</p></article>`}

	rendered, outcome, err := NewPageTranslator(fake, nullLogger()).TranslateHTML(context.Background(), articlePage, openAI)
	require.NoError(t, err)
	assert.Equal(t, content.ModeElementSwap, outcome.Mode)
	assert.Contains(t, rendered, `<article id="post-1" class="body" lang="zh"><p>你好</p></article>`)
	assert.NotContains(t, rendered, content.IndicatorID)
	assert.Contains(t, rendered, "<title>Post</title>")
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{nil, ErrorKindNone},
		{&translate.UnsupportedProviderKindError{Kind: "x"}, ErrorKindInvalidConfig},
		{translate.ErrMissingEndpoint, ErrorKindInvalidConfig},
		{ErrProviderRequired, ErrorKindInvalidConfig},
		{content.ErrNoContentFound, ErrorKindNoContent},
		{&translate.ProviderRequestFailedError{Message: "boom"}, ErrorKindProviderFailed},
		{&translate.MalformedResponseError{Provider: "OpenAI", Reason: "no choices"}, ErrorKindMalformed},
		{context.DeadlineExceeded, ErrorKindDeadline},
		{errors.New("other"), ErrorKindInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyError(tt.err), "%v", tt.err)
	}
}
