package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
)

const (
	robotsCacheTTL    = 24 * time.Hour
	robotsFailureTTL  = 10 * time.Minute
	robotsMaxBodySize = 1 << 20
	maxCrawlDelay     = 10 * time.Second
)

// RobotsChecker fetches and caches robots.txt per scheme and host.
type RobotsChecker struct {
	cache        *cache.Cache
	client       *http.Client
	userAgent    string
	defaultDelay time.Duration
	logger       *logrus.Logger
}

// NewRobotsChecker creates a robots.txt checker that fetches with client.
func NewRobotsChecker(client *http.Client, userAgent string, defaultDelay time.Duration, logger *logrus.Logger) *RobotsChecker {
	return &RobotsChecker{
		cache:        cache.New(robotsCacheTTL, time.Hour),
		client:       client,
		userAgent:    userAgent,
		defaultDelay: defaultDelay,
		logger:       logger,
	}
}

// CanFetch reports whether u may be fetched and the crawl delay to honour
// for its host. A missing robots.txt allows everything; a 5xx answer
// disallows everything. Failed lookups are retried after robotsFailureTTL.
func (rc *RobotsChecker) CanFetch(ctx context.Context, u *url.URL) (bool, time.Duration) {
	origin := u.Scheme + "://" + u.Host

	robots, found := rc.cache.Get(origin)
	if !found {
		data, ttl := rc.load(ctx, origin)
		rc.cache.Set(origin, data, ttl)
		robots = data
	}

	data, ok := robots.(*robotstxt.RobotsData)
	if !ok || data == nil {
		return true, rc.defaultDelay
	}
	return data.TestAgent(u.EscapedPath(), rc.userAgent), rc.crawlDelay(data.FindGroup(rc.userAgent))
}

// load returns the parsed robots.txt for origin and how long to cache it.
// A nil result allows everything.
func (rc *RobotsChecker) load(ctx context.Context, origin string) (*robotstxt.RobotsData, time.Duration) {
	log := rc.logger.WithField("origin", origin)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		log.WithError(err).Debug("Failed to create robots.txt request")
		return nil, robotsFailureTTL
	}
	req.Header.Set("User-Agent", rc.userAgent)

	resp, err := rc.client.Do(req)
	if err != nil {
		log.WithError(err).Debug("robots.txt unavailable, allowing")
		return nil, robotsFailureTTL
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, robotsMaxBodySize))
	if err != nil {
		log.WithError(err).Debug("Failed to read robots.txt, allowing")
		return nil, robotsFailureTTL
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		log.WithError(err).Warn("Unparsable robots.txt, allowing")
		return nil, robotsCacheTTL
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		log.WithField("status_code", resp.StatusCode).Debug("robots.txt server error, disallowing")
		return data, robotsFailureTTL
	}
	return data, robotsCacheTTL
}

func (rc *RobotsChecker) crawlDelay(group *robotstxt.Group) time.Duration {
	if group == nil || group.CrawlDelay <= 0 {
		return rc.defaultDelay
	}
	if group.CrawlDelay > maxCrawlDelay {
		return maxCrawlDelay
	}
	return group.CrawlDelay
}
