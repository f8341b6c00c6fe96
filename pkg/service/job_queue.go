package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dasmlab/pagetrans/pkg/translate"
)

// TranslationJobStatus represents the status of a page translation job.
type TranslationJobStatus string

const (
	JobStatusQueued     TranslationJobStatus = "queued"
	JobStatusProcessing TranslationJobStatus = "processing"
	JobStatusCompleted  TranslationJobStatus = "completed"
	JobStatusFailed     TranslationJobStatus = "failed"
)

// ErrJobNotFound is returned for unknown or expired job ids.
var ErrJobNotFound = errors.New("job not found")

// ErrPageSourceRequired is returned when a job names neither HTML nor a URL, or both.
var ErrPageSourceRequired = errors.New("exactly one of html or url is required")

// PageJobRequest describes a page to translate asynchronously.
type PageJobRequest struct {
	RequestID string
	Provider  translate.ProviderConfig
	URL       string
	HTML      string
}

// TranslationJob represents an asynchronous page translation job.
type TranslationJob struct {
	ID        string
	RequestID string
	CreatedAt time.Time

	// Request data
	Provider   translate.ProviderConfig
	URL        string
	SourceHTML string

	status          TranslationJobStatus
	startedAt       *time.Time
	completedAt     *time.Time
	progressPercent int32
	progressMessage string
	err             string
	errKind         ErrorKind

	// Result data
	translatedHTML string
	mode           string
	regionTag      string
	pageTitle      string
	sitename       string
	duration       time.Duration

	mu sync.RWMutex
}

// JobSnapshot is a consistent copy of a job's state.
type JobSnapshot struct {
	JobID           string               `json:"job_id"`
	RequestID       string               `json:"request_id,omitempty"`
	Provider        string               `json:"provider"`
	URL             string               `json:"url,omitempty"`
	Status          TranslationJobStatus `json:"status"`
	ProgressPercent int32                `json:"progress_percent"`
	ProgressMessage string               `json:"progress_message,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	StartedAt       *time.Time           `json:"started_at,omitempty"`
	CompletedAt     *time.Time           `json:"completed_at,omitempty"`
	Error           string               `json:"error,omitempty"`
	ErrorKind       ErrorKind            `json:"error_kind,omitempty"`
	HTML            string               `json:"html,omitempty"`
	Mode            string               `json:"mode,omitempty"`
	RegionTag       string               `json:"region_tag,omitempty"`
	PageTitle       string               `json:"page_title,omitempty"`
	Sitename        string               `json:"sitename,omitempty"`
	DurationSeconds float64              `json:"duration_seconds,omitempty"`
}

// JobQueue manages asynchronous page translation jobs.
type JobQueue struct {
	jobs      map[string]*TranslationJob
	jobsMu    sync.RWMutex
	logger    *logrus.Logger
	processor *JobProcessor
}

// NewJobQueue creates a new job queue.
func NewJobQueue(logger *logrus.Logger) *JobQueue {
	if logger == nil {
		logger = logrus.New()
	}
	return &JobQueue{
		jobs:   make(map[string]*TranslationJob),
		logger: logger,
	}
}

// SetProcessor sets the job processor for this queue.
func (q *JobQueue) SetProcessor(processor *JobProcessor) {
	q.processor = processor
}

// CreateJob validates req, stores a new job and starts processing it in
// the background. Configuration errors are returned here, before any work.
func (q *JobQueue) CreateJob(req PageJobRequest) (string, error) {
	if (req.HTML == "") == (req.URL == "") {
		return "", ErrPageSourceRequired
	}
	if err := req.Provider.Validate(); err != nil {
		return "", err
	}

	jobID := uuid.New().String()
	job := &TranslationJob{
		ID:         jobID,
		RequestID:  req.RequestID,
		CreatedAt:  time.Now(),
		Provider:   req.Provider,
		URL:        req.URL,
		SourceHTML: req.HTML,
		status:     JobStatusQueued,
	}

	q.jobsMu.Lock()
	q.jobs[jobID] = job
	q.jobsMu.Unlock()

	q.logger.WithFields(logrus.Fields{
		"job_id":     jobID,
		"request_id": req.RequestID,
		"provider":   req.Provider.DisplayName(),
		"url":        req.URL,
	}).Info("Created page translation job")

	if q.processor != nil {
		go q.processor.ProcessJob(job)
	}

	return jobID, nil
}

// GetJob retrieves a job by ID.
func (q *JobQueue) GetJob(jobID string) (*TranslationJob, error) {
	q.jobsMu.RLock()
	defer q.jobsMu.RUnlock()

	job, exists := q.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return job, nil
}

// Len returns the number of stored jobs.
func (q *JobQueue) Len() int {
	q.jobsMu.RLock()
	defer q.jobsMu.RUnlock()
	return len(q.jobs)
}

// CleanupOldJobs removes finished jobs that completed more than maxAge ago.
func (q *JobQueue) CleanupOldJobs(maxAge time.Duration) int {
	q.jobsMu.Lock()
	defer q.jobsMu.Unlock()

	now := time.Now()
	removed := 0
	for id, job := range q.jobs {
		snap := job.Snapshot()
		if snap.Status != JobStatusCompleted && snap.Status != JobStatusFailed {
			continue
		}
		if snap.CompletedAt != nil && now.Sub(*snap.CompletedAt) > maxAge {
			delete(q.jobs, id)
			removed++
		}
	}

	if removed > 0 {
		q.logger.WithFields(logrus.Fields{
			"removed":   removed,
			"remaining": len(q.jobs),
		}).Info("Cleaned up old translation jobs")
	}
	return removed
}

// RunCleanup calls CleanupOldJobs every interval until ctx is done.
func (q *JobQueue) RunCleanup(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			q.CleanupOldJobs(maxAge)
		case <-ctx.Done():
			return
		}
	}
}

// UpdateStatus updates the status of a job.
func (j *TranslationJob) UpdateStatus(status TranslationJobStatus, message string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.status = status
	j.progressMessage = message

	now := time.Now()
	switch status {
	case JobStatusProcessing:
		if j.startedAt == nil {
			j.startedAt = &now
		}
	case JobStatusCompleted, JobStatusFailed:
		if j.completedAt == nil {
			j.completedAt = &now
		}
	}
}

// UpdateProgress updates the progress of a job.
func (j *TranslationJob) UpdateProgress(percent int32, message string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.progressPercent = percent
	j.progressMessage = message
}

// SetError marks the job failed.
func (j *TranslationJob) SetError(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.err = err.Error()
	j.errKind = ClassifyError(err)
	j.status = JobStatusFailed
	now := time.Now()
	j.completedAt = &now
}

// SetResult marks the job completed with the translated page.
func (j *TranslationJob) SetResult(html string, outcome *Outcome, title, sitename string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.translatedHTML = html
	if outcome != nil {
		j.mode = outcome.Mode.String()
		j.regionTag = outcome.RegionTag
		j.duration = outcome.Duration
	}
	j.pageTitle = title
	j.sitename = sitename
	j.status = JobStatusCompleted
	now := time.Now()
	j.completedAt = &now
	j.progressPercent = 100
	j.progressMessage = "Translation completed"
}

// GetStatus returns the job status, progress message and percentage.
func (j *TranslationJob) GetStatus() (TranslationJobStatus, string, int32) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return j.status, j.progressMessage, j.progressPercent
}

// Snapshot returns a copy of the job state. Result fields are only set
// once the job has completed.
func (j *TranslationJob) Snapshot() JobSnapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()

	snap := JobSnapshot{
		JobID:           j.ID,
		RequestID:       j.RequestID,
		Provider:        j.Provider.DisplayName(),
		URL:             j.URL,
		Status:          j.status,
		ProgressPercent: j.progressPercent,
		ProgressMessage: j.progressMessage,
		CreatedAt:       j.CreatedAt,
		StartedAt:       copyTime(j.startedAt),
		CompletedAt:     copyTime(j.completedAt),
		Error:           j.err,
		ErrorKind:       j.errKind,
	}
	if j.status == JobStatusCompleted {
		snap.HTML = j.translatedHTML
		snap.Mode = j.mode
		snap.RegionTag = j.regionTag
		snap.PageTitle = j.pageTitle
		snap.Sitename = j.sitename
		snap.DurationSeconds = j.duration.Seconds()
	}
	return snap
}

// Done reports whether the job has finished, successfully or not.
func (s JobSnapshot) Done() bool {
	return s.Status == JobStatusCompleted || s.Status == JobStatusFailed
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
