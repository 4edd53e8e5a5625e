package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/finance-assistant/internal/domain"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeAnalyzeReceipt represents a receipt analysis job.
	JobTypeAnalyzeReceipt JobType = "analyze_receipt"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// DefaultMaxRetries applies when a job is published without MaxRetries.
const DefaultMaxRetries = 3

// ErrJobNotFound is returned by JobStore.GetJob for unknown ids.
var ErrJobNotFound = errors.New("job not found")

// AnalyzeReceiptJob asks a worker to analyze an uploaded receipt image.
type AnalyzeReceiptJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// UserID owns the receipt.
	UserID string `json:"user_id"`

	// ReceiptURI locates the image in object storage.
	ReceiptURI string `json:"receipt_uri"`

	ContentType string `json:"content_type"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// Analysis is set once the job completes.
	Analysis *domain.ReceiptAnalysis `json:"analysis,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`

	// TransactionID is the ledger transaction the analysis was confirmed as.
	TransactionID string     `json:"transaction_id,omitempty"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
}

// Type returns the job type.
func (j *AnalyzeReceiptJob) Type() JobType {
	return JobTypeAnalyzeReceipt
}

// Clone returns a deep copy of j.
func (j *AnalyzeReceiptJob) Clone() *AnalyzeReceiptJob {
	c := *j
	if j.Analysis != nil {
		a := *j.Analysis
		a.Suggestions = append([]string(nil), j.Analysis.Suggestions...)
		c.Analysis = &a
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	if j.ConfirmedAt != nil {
		t := *j.ConfirmedAt
		c.ConfirmedAt = &t
	}
	return &c
}

// Prepare fills in the id, status, timestamp and retry budget of a job about
// to be published.
func Prepare(job *AnalyzeReceiptJob, newID func() string, now time.Time) {
	if job.JobID == "" {
		job.JobID = newID()
	}
	if job.Status == "" {
		job.Status = JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = DefaultMaxRetries
	}
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// PublishAnalyzeReceipt publishes a receipt analysis job.
	PublishAnalyzeReceipt(ctx context.Context, job *AnalyzeReceiptJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. It should return an error if the job failed
// and should be retried.
type JobHandler func(ctx context.Context, job *AnalyzeReceiptJob) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *AnalyzeReceiptJob) error

	// GetJob retrieves a job by ID, or ErrJobNotFound.
	GetJob(ctx context.Context, jobID string) (*AnalyzeReceiptJob, error)

	// ListJobs retrieves jobs with optional filtering, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*AnalyzeReceiptJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// UserID filters jobs by owner.
	UserID string

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}

// Matches reports whether job passes the filter's criteria.
func (f JobFilter) Matches(job *AnalyzeReceiptJob) bool {
	if f.UserID != "" && job.UserID != f.UserID {
		return false
	}
	if f.Status != "" && job.Status != f.Status {
		return false
	}
	return true
}

// Page applies the filter's offset and limit to a sorted result.
func Page(result []*AnalyzeReceiptJob, f JobFilter) []*AnalyzeReceiptJob {
	if f.Offset > 0 {
		if f.Offset >= len(result) {
			return []*AnalyzeReceiptJob{}
		}
		result = result[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(result) {
		result = result[:f.Limit]
	}
	return result
}

// Finish records the outcome of one attempt on job. It returns true when the
// job should be retried.
func Finish(job *AnalyzeReceiptJob, err error, now time.Time) (retry bool) {
	job.CompletedAt = &now
	if err == nil {
		job.Status = JobStatusCompleted
		job.Error = ""
		return false
	}

	job.Error = err.Error()
	if job.RetryCount < job.MaxRetries {
		job.RetryCount++
		job.Status = JobStatusRetrying
		return true
	}
	job.Status = JobStatusFailed
	return false
}

// Backoff returns the delay before retry attempt n: 1s doubling, capped at 30s.
func Backoff(attempt int) time.Duration {
	const max = 30 * time.Second
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 5 {
		return max
	}
	d := time.Second << attempt
	if d > max {
		return max
	}
	return d
}
