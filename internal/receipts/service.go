package receipts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/jobs"
	"github.com/dvloznov/finance-assistant/internal/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxImageSize is the largest receipt accepted for analysis.
const MaxImageSize = 10 << 20

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/heic": ".heic",
}

// Service accepts receipt uploads and tracks their analysis jobs.
type Service struct {
	objects   ObjectStore
	publisher jobs.Publisher
	jobStore  jobs.JobStore
	userID    string
	now       func() time.Time

	confirmMu sync.Mutex
}

// Ledger receives confirmed receipts. *ledger.Ledger satisfies it.
type Ledger interface {
	AddTransaction(ctx context.Context, input domain.TransactionInput) (domain.Transaction, error)
	Transaction(id string) (domain.Transaction, bool)
}

// Overrides replace parts of the suggested transaction on confirmation. A
// zero Date means now.
type Overrides struct {
	Amount      *decimal.Decimal
	Date        time.Time
	Description *string
	Category    *string
}

// Confirmation is the outcome of Confirm.
type Confirmation struct {
	Transaction domain.Transaction
	// Replayed is set when the job had already been confirmed.
	Replayed bool
}

func NewService(objects ObjectStore, publisher jobs.Publisher, jobStore jobs.JobStore, userID string) *Service {
	return &Service{
		objects:   objects,
		publisher: publisher,
		jobStore:  jobStore,
		userID:    userID,
		now:       time.Now,
	}
}

// Submit stores the image and queues its analysis. The returned job is
// pending; poll Job for the result.
func (s *Service) Submit(ctx context.Context, image []byte, contentType string) (*jobs.AnalyzeReceiptJob, error) {
	contentType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	ext, ok := imageExtensions[contentType]
	if !ok {
		return nil, domain.NewValidationError("content_type", "must be a JPEG, PNG, WebP or HEIC image")
	}
	if len(image) == 0 {
		return nil, domain.NewValidationError("image", "is required")
	}
	if len(image) > MaxImageSize {
		return nil, domain.NewValidationError("image", fmt.Sprintf("must be at most %d bytes", MaxImageSize))
	}

	id := uuid.New().String()
	uri, err := s.objects.Upload(ctx, ObjectName(s.userID, id, ext, s.now()), contentType, image)
	if err != nil {
		return nil, domain.NewStorageError("upload receipt", err)
	}

	job := &jobs.AnalyzeReceiptJob{
		JobID:       id,
		UserID:      s.userID,
		ReceiptURI:  uri,
		ContentType: contentType,
		CreatedAt:   s.now(),
	}
	if err := s.publisher.PublishAnalyzeReceipt(ctx, job); err != nil {
		return nil, domain.NewStorageError("publish receipt job", err)
	}

	log := logger.FromContext(ctx)

	log.Info().Str("job_id", job.JobID).Str("receipt_uri", uri).Msg("Queued receipt analysis")
	return job.Clone(), nil
}

// Job returns the state of an analysis job.
func (s *Service) Job(ctx context.Context, id string) (*jobs.AnalyzeReceiptJob, error) {
	job, err := s.jobStore.GetJob(ctx, id)
	if errors.Is(err, jobs.ErrJobNotFound) {
		return nil, domain.NewNotFoundError("job", id)
	}
	if err != nil {
		return nil, domain.NewStorageError("get job", err)
	}
	return job, nil
}

// Jobs lists the analysis jobs of the service user, newest first.
func (s *Service) Jobs(ctx context.Context, status jobs.JobStatus, limit, offset int) ([]*jobs.AnalyzeReceiptJob, error) {
	list, err := s.jobStore.ListJobs(ctx, jobs.JobFilter{
		UserID: s.userID,
		Status: status,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, domain.NewStorageError("list jobs", err)
	}
	if list == nil {
		list = []*jobs.AnalyzeReceiptJob{}
	}
	return list, nil
}

// Confirm turns the analysis of a completed job into a ledger transaction
// and records the transaction id on the job. Confirming a job again returns
// the transaction it was first confirmed as.
//
// If the transaction is added but the job cannot be saved, the transaction
// is returned together with a StorageError.
func (s *Service) Confirm(ctx context.Context, l Ledger, jobID string, o Overrides) (Confirmation, error) {
	s.confirmMu.Lock()
	defer s.confirmMu.Unlock()

	job, err := s.Job(ctx, jobID)
	if err != nil {
		return Confirmation{}, err
	}
	if job.TransactionID != "" {
		tx, ok := l.Transaction(job.TransactionID)
		if !ok {
			return Confirmation{}, domain.NewValidationError("job", "already confirmed as transaction "+job.TransactionID)
		}
		return Confirmation{Transaction: tx, Replayed: true}, nil
	}
	if job.Status != jobs.JobStatusCompleted || job.Analysis == nil {
		return Confirmation{}, domain.NewValidationError("job", "analysis is not complete")
	}

	date := o.Date
	if date.IsZero() {
		date = s.now()
	}
	input := TransactionInput(*job.Analysis, date)
	if o.Amount != nil {
		input.Amount = *o.Amount
	}
	if o.Description != nil {
		input.Description = *o.Description
	}
	if o.Category != nil {
		input.Category = *o.Category
	}

	tx, err := l.AddTransaction(ctx, input)
	if tx.ID == "" {
		return Confirmation{}, err
	}

	confirmedAt := s.now()
	job.TransactionID = tx.ID
	job.ConfirmedAt = &confirmedAt
	if saveErr := s.jobStore.SaveJob(ctx, job); saveErr != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(saveErr).Str("job_id", job.JobID).Str("transaction_id", tx.ID).Msg("Failed to record receipt confirmation")
		if err == nil {
			err = domain.NewStorageError("save confirmed job", saveErr)
		}
	}
	return Confirmation{Transaction: tx}, err
}

// NewJobHandler returns the worker handler that fetches a receipt, analyzes
// it and stores the result on the job.
func NewJobHandler(objects ObjectStore, analyzer Analyzer) jobs.JobHandler {
	return func(ctx context.Context, job *jobs.AnalyzeReceiptJob) error {
		image, err := objects.Fetch(ctx, job.ReceiptURI)
		if err != nil {
			return fmt.Errorf("handle receipt job: fetch: %w", err)
		}

		analysis, err := analyzer.Analyze(ctx, image, job.ContentType)
		if err != nil {
			return fmt.Errorf("handle receipt job: analyze: %w", err)
		}

		job.Analysis = &analysis
		log := logger.FromContext(ctx)
		log.Info().
			Str("job_id", job.JobID).
			Str("category", analysis.Category).
			Str("amount", analysis.Amount.String()).
			Float64("confidence", analysis.Confidence).
			Msg("Receipt analyzed")
		return nil
	}
}

// TransactionInput turns an analysis into ledger input. The caller confirms
// or edits it before adding the transaction.
func TransactionInput(a domain.ReceiptAnalysis, date time.Time) domain.TransactionInput {
	confidence := a.Confidence
	return domain.TransactionInput{
		Amount:        a.Amount,
		Date:          date,
		Description:   a.Description,
		Establishment: a.Establishment,
		Category:      a.Category,
		Type:          a.Type,
		PaymentMethod: a.PaymentMethod,
		Confidence:    &confidence,
	}
}
