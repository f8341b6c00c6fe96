package fetch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	fetchResultSuccess     = "success"
	fetchResultCacheHit    = "cache_hit"
	fetchResultBlocked     = "blocked"
	fetchResultRobots      = "robots_disallowed"
	fetchResultTooLarge    = "too_large"
	fetchResultUnsupported = "unsupported_content"
	fetchResultError       = "error"
)

var pageFetchesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pagetrans_page_fetches_total",
		Help: "Total number of page fetches by result",
	},
	[]string{"result"},
)

func recordFetch(result string) {
	pageFetchesTotal.WithLabelValues(result).Inc()
}
