package handle

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"assist-bot/api/internal/booking"
	"assist-bot/api/internal/evidence"
	"assist-bot/api/internal/service"
)

// Reviewer — операции сервиса ревью, доступные по HTTP.
type Reviewer interface {
	CreateRequest(ctx context.Context, incidentType string, category *string) (*evidence.Request, error)
	GetRequest(ctx context.Context, id string) (*evidence.Request, error)
	SubmitPhoto(ctx context.Context, requestID string, up service.PhotoUpload) (*evidence.Item, evidence.PhotoOutcome, error)
	SubmitForm(ctx context.Context, requestID string, form evidence.FormSubmission) (*evidence.FormSubmission, evidence.FormOutcome, error)
	Escalate(ctx context.Context, requestID, reason string) (*evidence.Request, error)
	Completeness(ctx context.Context, requestID string) (evidence.Completeness, error)
	DeleteEvidence(ctx context.Context, id string) error
	DecideEvidence(ctx context.Context, itemID string, status evidence.ReviewStatus, actor, note string) (*evidence.Item, error)
	CreateBooking(ctx context.Context, requestID, provider string, scheduledAt *time.Time) (*booking.Booking, error)
	ChangeBookingStatus(ctx context.Context, bookingID string, to booking.Status, actor, note string) (*booking.Booking, booking.HistoryEntry, error)
	BookingHistory(ctx context.Context, bookingID string) ([]booking.HistoryEntry, error)
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handle struct {
	svc     Reviewer
	tables  *evidence.Tables
	db      Pinger
	timeout time.Duration
	// лимит тела загрузки фото
	maxPhotoBody int64
}

func New(svc Reviewer, tables *evidence.Tables, db Pinger, timeout time.Duration) *Handle {
	if tables == nil {
		tables = evidence.DefaultTables()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Handle{svc: svc, tables: tables, db: db, timeout: timeout, maxPhotoBody: photoBodyLimit(tables)}
}

// photoBodyLimit: самый большой MaxBytes среди правил, с запасом на base64 (4/3) и JSON-обёртку.
func photoBodyLimit(t *evidence.Tables) int64 {
	largest := evidence.DefaultRule.MaxBytes()
	for _, r := range t.Rules {
		if b := r.MaxBytes(); b > largest {
			largest = b
		}
	}
	return largest/3*4 + 64<<10
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, errorBody{Error: err.Error()})
}

// statusFor — код ответа для ошибок хранилища и сервиса.
func statusFor(err error) int {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return http.StatusNotFound
	case errors.Is(err, booking.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, service.ErrInvalidDecision):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// withTimeout: X-Request-Timeout (сек) или timeoutSec в query, иначе значение по умолчанию.
func (h *Handle) withTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	deadline := h.timeout
	if ts := r.Header.Get("X-Request-Timeout"); ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 {
			deadline = time.Duration(v) * time.Second
		}
	} else if ts := r.URL.Query().Get("timeoutSec"); ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 {
			deadline = time.Duration(v) * time.Second
		}
	}
	return context.WithTimeout(r.Context(), deadline)
}

func (h *Handle) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db: not ok\n" + err.Error()))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
