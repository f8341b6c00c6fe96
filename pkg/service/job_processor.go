package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/dasmlab/pagetrans/pkg/fetch"
)

const (
	// DefaultJobTimeout bounds the processing of one job.
	DefaultJobTimeout = 10 * time.Minute
	// DefaultMaxConcurrentJobs bounds how many jobs run at once.
	DefaultMaxConcurrentJobs = 4
)

// PageFetcher downloads a page by URL.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Page, error)
}

// JobProcessor processes page translation jobs asynchronously.
type JobProcessor struct {
	pipeline *PageTranslator
	fetcher  PageFetcher
	logger   *logrus.Logger
	timeout  time.Duration
	slots    chan struct{}
}

// NewJobProcessor creates a job processor. fetcher may be nil, in which
// case jobs with a URL fail. Non-positive limits take the defaults.
func NewJobProcessor(pipeline *PageTranslator, fetcher PageFetcher, logger *logrus.Logger, maxConcurrent int, timeout time.Duration) *JobProcessor {
	if logger == nil {
		logger = logrus.New()
	}
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentJobs
	}
	if timeout <= 0 {
		timeout = DefaultJobTimeout
	}
	return &JobProcessor{
		pipeline: pipeline,
		fetcher:  fetcher,
		logger:   logger,
		timeout:  timeout,
		slots:    make(chan struct{}, maxConcurrent),
	}
}

// ProcessJob runs one job to completion. The job stays queued until a
// processing slot is free.
func (p *JobProcessor) ProcessJob(job *TranslationJob) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	log := p.logger.WithFields(logrus.Fields{
		"job_id":     job.ID,
		"request_id": job.RequestID,
		"provider":   job.Provider.DisplayName(),
	})

	queuedAt := time.Now()
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		p.fail(job, log, fmt.Errorf("waiting for a processing slot: %w", ctx.Err()))
		return
	}
	defer func() { <-p.slots }()
	jobQueueWait.Observe(time.Since(queuedAt).Seconds())

	jobsInFlight.Inc()
	defer jobsInFlight.Dec()

	startTime := time.Now()
	log.Info("Starting page translation job")
	job.UpdateStatus(JobStatusProcessing, "Starting translation...")

	source := job.SourceHTML
	var title, sitename string
	if job.URL != "" {
		if p.fetcher == nil {
			p.fail(job, log, fmt.Errorf("page fetching is not enabled"))
			return
		}
		job.UpdateProgress(5, "Fetching page...")
		page, err := p.fetcher.Fetch(ctx, job.URL)
		if err != nil {
			p.fail(job, log, err)
			return
		}
		source = page.HTML
		title, sitename = page.Title, page.Sitename
	}
	job.UpdateProgress(10, "Page loaded")

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	if err != nil {
		p.fail(job, log, fmt.Errorf("parse document: %w", err))
		return
	}
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	outcome, err := p.pipeline.TranslateDocumentWithProgress(ctx, doc, job.Provider, func(stage Stage) {
		switch stage {
		case StageLocated:
			job.UpdateProgress(30, "Translating main content...")
		case StageTranslated:
			job.UpdateProgress(90, "Applying translation...")
		}
	})
	if err != nil {
		p.fail(job, log, err)
		return
	}

	rendered, err := goquery.OuterHtml(doc.Selection)
	if err != nil {
		p.fail(job, log, fmt.Errorf("render document: %w", err))
		return
	}

	job.SetResult(rendered, outcome, title, sitename)
	jobsTotal.WithLabelValues(string(JobStatusCompleted)).Inc()

	log.WithFields(logrus.Fields{
		"mode":        outcome.Mode.String(),
		"region_tag":  outcome.RegionTag,
		"duration_ms": time.Since(startTime).Milliseconds(),
	}).Info("Page translation job completed successfully")
}

func (p *JobProcessor) fail(job *TranslationJob, log *logrus.Entry, err error) {
	log.WithError(err).WithField("error_kind", ClassifyError(err)).Error("Page translation job failed")
	job.SetError(err)
	jobsTotal.WithLabelValues(string(JobStatusFailed)).Inc()
}
