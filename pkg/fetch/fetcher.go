// Package fetch downloads HTML pages for translation while staying polite to
// the sites it visits.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/markusmobius/go-trafilatura"
	cache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

const (
	DefaultUserAgent   = "pagetrans/1.0 (+https://github.com/dasmlab/pagetrans)"
	DefaultMaxBodySize = 10 << 20
	DefaultPageTTL     = 10 * time.Minute
	DefaultTimeout     = 60 * time.Second
	DefaultCrawlDelay  = time.Second
	maxRedirects       = 10
)

var (
	ErrBlockedURL         = errors.New("url is not allowed")
	ErrDisallowedByRobots = errors.New("blocked by robots.txt")
	ErrUnsupportedContent = errors.New("unsupported content type")
	ErrBodyTooLarge       = errors.New("response body too large")
)

// StatusError reports a non-200 response from the page host.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}

// Options configures a Fetcher. Zero values take the defaults above.
type Options struct {
	UserAgent    string
	MaxBodySize  int64
	PageTTL      time.Duration
	Timeout      time.Duration
	CrawlDelay   time.Duration
	AllowPrivate bool
	IgnoreRobots bool
}

// Page is a fetched HTML document with the metadata found in it.
type Page struct {
	URL         string
	FinalURL    string
	HTML        string
	ContentType string
	FetchedAt   time.Time

	Title       string
	Author      string
	Sitename    string
	Description string
}

// Fetcher downloads pages. It is safe for concurrent use.
type Fetcher struct {
	client  *http.Client
	robots  *RobotsChecker
	limiter *DomainLimiter
	pages   *cache.Cache
	opts    Options
	logger  *logrus.Logger
}

// New creates a Fetcher.
func New(opts Options, logger *logrus.Logger) *Fetcher {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = DefaultMaxBodySize
	}
	if opts.PageTTL <= 0 {
		opts.PageTTL = DefaultPageTTL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.CrawlDelay <= 0 {
		opts.CrawlDelay = DefaultCrawlDelay
	}

	allowPrivate := opts.AllowPrivate
	client := &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         guardedDialer(allowPrivate).DialContext,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 20,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
		Timeout: opts.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("too many redirects (max %d)", maxRedirects)
			}
			_, err := ValidateURL(req.URL.String(), allowPrivate)
			return err
		},
	}

	return &Fetcher{
		client:  client,
		robots:  NewRobotsChecker(client, opts.UserAgent, opts.CrawlDelay, logger),
		limiter: NewDomainLimiter(),
		pages:   cache.New(opts.PageTTL, opts.PageTTL),
		opts:    opts,
		logger:  logger,
	}
}

// Fetch downloads rawURL and returns the page. Recently fetched pages are
// served from memory.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	startTime := time.Now()
	log := f.logger.WithField("url", rawURL)

	u, err := ValidateURL(rawURL, f.opts.AllowPrivate)
	if err != nil {
		recordFetch(fetchResultBlocked)
		log.WithError(err).Warn("Refusing to fetch URL")
		return nil, err
	}

	if cached, found := f.pages.Get(u.String()); found {
		recordFetch(fetchResultCacheHit)
		log.Debug("Page cache hit")
		return cached.(*Page), nil
	}

	crawlDelay := f.opts.CrawlDelay
	if !f.opts.IgnoreRobots {
		var allowed bool
		allowed, crawlDelay = f.robots.CanFetch(ctx, u)
		if !allowed {
			recordFetch(fetchResultRobots)
			log.Warn("Fetch disallowed by robots.txt")
			return nil, fmt.Errorf("%w: %s", ErrDisallowedByRobots, rawURL)
		}
	}

	if err := f.limiter.Wait(ctx, u.Host, crawlDelay); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		recordFetch(fetchResultError)
		log.WithError(err).Error("Page request failed")
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		recordFetch(fetchResultError)
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodySize+1))
	if err != nil {
		recordFetch(fetchResultError)
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	if int64(len(body)) > f.opts.MaxBodySize {
		recordFetch(fetchResultTooLarge)
		return nil, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, f.opts.MaxBodySize)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	if !isHTML(contentType) {
		recordFetch(fetchResultUnsupported)
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedContent, contentType)
	}

	page := &Page{
		URL:         rawURL,
		FinalURL:    resp.Request.URL.String(),
		HTML:        string(body),
		ContentType: contentType,
		FetchedAt:   time.Now(),
	}
	f.extractMetadata(page, body, log)

	f.pages.Set(u.String(), page, cache.DefaultExpiration)
	recordFetch(fetchResultSuccess)

	log.WithFields(logrus.Fields{
		"final_url":   page.FinalURL,
		"size":        len(body),
		"title":       page.Title,
		"duration_ms": time.Since(startTime).Milliseconds(),
	}).Info("Fetched page")

	return page, nil
}

// extractMetadata fills page metadata. Pages trafilatura cannot read are
// still returned, only without metadata.
func (f *Fetcher) extractMetadata(page *Page, body []byte, log *logrus.Entry) {
	final := page.FinalURL
	opts := trafilatura.Options{}
	if u, err := ValidateURL(final, true); err == nil {
		opts.OriginalURL = u
	}

	result, err := trafilatura.Extract(bytes.NewReader(body), opts)
	if err != nil || result == nil {
		log.WithError(err).Debug("No metadata extracted")
		return
	}
	page.Title = result.Metadata.Title
	page.Author = result.Metadata.Author
	page.Sitename = result.Metadata.Sitename
	page.Description = result.Metadata.Description
}

func isHTML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}
