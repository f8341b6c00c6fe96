package fetch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	maxDomainRate = 5.0
	minDomainRate = 0.2
)

// DomainLimiter spaces requests to the same host according to its crawl delay.
type DomainLimiter struct {
	limiters sync.Map // host -> *rate.Limiter
}

// NewDomainLimiter creates an empty per-domain limiter.
func NewDomainLimiter() *DomainLimiter {
	return &DomainLimiter{}
}

// Wait blocks until a request to host is allowed. The limiter for a host is
// created on first use from crawlDelay and kept afterwards.
func (dl *DomainLimiter) Wait(ctx context.Context, host string, crawlDelay time.Duration) error {
	return dl.limiter(host, crawlDelay).Wait(ctx)
}

func (dl *DomainLimiter) limiter(host string, crawlDelay time.Duration) *rate.Limiter {
	if l, ok := dl.limiters.Load(host); ok {
		return l.(*rate.Limiter)
	}

	perSecond := maxDomainRate
	if crawlDelay > 0 {
		perSecond = 1.0 / crawlDelay.Seconds()
	}
	if perSecond > maxDomainRate {
		perSecond = maxDomainRate
	}
	if perSecond < minDomainRate {
		perSecond = minDomainRate
	}

	actual, _ := dl.limiters.LoadOrStore(host, rate.NewLimiter(rate.Limit(perSecond), 1))
	return actual.(*rate.Limiter)
}
