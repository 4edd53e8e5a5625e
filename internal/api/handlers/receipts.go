package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/dvloznov/finance-assistant/internal/api/middleware"
	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/jobs"
	"github.com/dvloznov/finance-assistant/internal/ledger"
	"github.com/dvloznov/finance-assistant/internal/receipts"
	"github.com/shopspring/decimal"
)

// ReceiptsHandler accepts receipt images and reports on their analysis.
type ReceiptsHandler struct {
	service *receipts.Service
	ledger  *ledger.Ledger
}

func NewReceiptsHandler(service *receipts.Service, l *ledger.Ledger) *ReceiptsHandler {
	return &ReceiptsHandler{service: service, ledger: l}
}

type confirmRequest struct {
	Amount      *decimal.Decimal `json:"amount"`
	Date        string           `json:"date"`
	Description *string          `json:"description"`
	Category    *string          `json:"category"`
}

// UploadReceipt handles POST /api/receipts
//
// The image is either the "file" part of a multipart form or the raw request
// body with an image content type.
func (h *ReceiptsHandler) UploadReceipt(w http.ResponseWriter, r *http.Request) {
	image, contentType, err := readImage(w, r)
	if err != nil {
		middleware.WriteDomainError(r.Context(), w, err)
		return
	}

	job, err := h.service.Submit(r.Context(), image, contentType)
	if err != nil {
		middleware.WriteDomainError(r.Context(), w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusAccepted, job)
}

func readImage(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	body := http.MaxBytesReader(w, r.Body, receipts.MaxImageSize+(1<<20))
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType != "multipart/form-data" {
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, "", imageReadError(err)
		}
		return data, r.Header.Get("Content-Type"), nil
	}

	r.Body = body
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", imageReadError(err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", imageReadError(err)
	}
	return data, header.Header.Get("Content-Type"), nil
}

func imageReadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return domain.NewValidationError("image", fmt.Sprintf("must be at most %d bytes", receipts.MaxImageSize))
	}
	if errors.Is(err, http.ErrMissingFile) {
		return domain.NewValidationError("file", "is required")
	}
	return domain.NewValidationError("image", "could not read upload: "+err.Error())
}

// GetJob handles GET /api/jobs/{id}
func (h *ReceiptsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.Job(r.Context(), r.PathValue("id"))
	if err != nil {
		middleware.WriteDomainError(r.Context(), w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *ReceiptsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	status := jobs.JobStatus(strings.ToLower(r.URL.Query().Get("status")))
	switch status {
	case "", jobs.JobStatusPending, jobs.JobStatusRunning, jobs.JobStatusCompleted, jobs.JobStatusFailed:
	default:
		middleware.WriteDomainError(r.Context(), w, domain.NewValidationError("status", "unknown job status"))
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		middleware.WriteDomainError(r.Context(), w, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		middleware.WriteDomainError(r.Context(), w, err)
		return
	}

	list, err := h.service.Jobs(r.Context(), status, limit, offset)
	if err != nil {
		middleware.WriteDomainError(r.Context(), w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  list,
		"count": len(list),
	})
}

// ConfirmJob handles POST /api/jobs/{id}/confirm
//
// The analysis of a completed job becomes a ledger transaction. The body may
// override the amount, date, description or category; an empty body accepts
// the suggestion as is. A repeated confirm answers 200 with the transaction
// created the first time.
func (h *ReceiptsHandler) ConfirmJob(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			middleware.WriteDomainError(r.Context(), w, err)
			return
		}
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		middleware.WriteDomainError(r.Context(), w, err)
		return
	}

	res, err := h.service.Confirm(r.Context(), h.ledger, r.PathValue("id"), receipts.Overrides{
		Amount:      req.Amount,
		Date:        date,
		Description: req.Description,
		Category:    req.Category,
	})
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	respond(w, r, status, "transaction", res.Transaction, res.Transaction.ID != "", err)
}
