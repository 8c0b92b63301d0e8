// Package service связывает оркестратор ревью с хранилищем и уведомлениями.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"assist-bot/api/internal/booking"
	"assist-bot/api/internal/evidence"
	"assist-bot/api/internal/store"
	"assist-bot/api/internal/util"
)

type RequestStore interface {
	Create(ctx context.Context, req *evidence.Request) error
	Get(ctx context.Context, id string) (*evidence.Request, error)
	UpdateStatus(ctx context.Context, id, status, notes string) error
}

type EvidenceStore interface {
	Insert(ctx context.Context, it *evidence.Item) error
	Get(ctx context.Context, id string) (*evidence.Item, error)
	SaveReview(ctx context.Context, it *evidence.Item) error
	Delete(ctx context.Context, id string) error
}

type FormStore interface {
	Insert(ctx context.Context, f *evidence.FormSubmission) error
}

type ReviewLog interface {
	Append(ctx context.Context, e store.ReviewLogEntry) error
}

type BookingStore interface {
	Create(ctx context.Context, b *booking.Booking) error
	Get(ctx context.Context, id string) (*booking.Booking, error)
	SaveTransition(ctx context.Context, b *booking.Booking, h booking.HistoryEntry) error
	History(ctx context.Context, bookingID string) ([]booking.HistoryEntry, error)
}

// PhotoUpload — загруженный файл до ревью.
type PhotoUpload struct {
	DocumentType evidence.DocumentType
	FileName     string
	MIME         string
	Content      []byte
}

type Review struct {
	Orch     *evidence.Orchestrator
	Requests RequestStore
	Evidence EvidenceStore
	Forms    FormStore
	Log      ReviewLog
	Bookings BookingStore

	clock func() time.Time
}

func NewReview(o *evidence.Orchestrator, rq RequestStore, ev EvidenceStore, fs FormStore, lg ReviewLog, bs BookingStore) *Review {
	return &Review{Orch: o, Requests: rq, Evidence: ev, Forms: fs, Log: lg, Bookings: bs, clock: time.Now}
}

func (s *Review) WithClock(clock func() time.Time) *Review {
	s.clock = clock
	s.Orch.WithClock(clock)
	return s
}

// ErrInvalidDecision — администратор может поставить только APPROVED, REJECTED или NEEDS_RESUBMIT.
var ErrInvalidDecision = errors.New("invalid admin decision")

// CreateRequest заводит новую заявку в статусе OPEN.
func (s *Review) CreateRequest(ctx context.Context, incidentType string, category *string) (*evidence.Request, error) {
	incidentType = strings.TrimSpace(incidentType)
	if incidentType == "" {
		return nil, errors.New("incident_type is required")
	}
	if category != nil && strings.TrimSpace(*category) == "" {
		category = nil
	}
	req := &evidence.Request{
		ID:              uuid.NewString(),
		IncidentType:    incidentType,
		ServiceCategory: category,
		Status:          evidence.RequestOpen,
	}
	if err := s.Requests.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("save request: %w", err)
	}
	s.appendLog(ctx, store.ReviewLogEntry{
		RequestID:   req.ID,
		SubjectKind: store.SubjectRequest,
		SubjectID:   req.ID,
		Status:      req.Status,
		Note:        "created",
	})
	return req, nil
}

func (s *Review) GetRequest(ctx context.Context, id string) (*evidence.Request, error) {
	return s.Requests.Get(ctx, id)
}

// SubmitPhoto проверяет загрузку и сохраняет её. Если политика не принимает фото,
// ничего не сохраняется: исход несёт указание перейти к форме.
func (s *Review) SubmitPhoto(ctx context.Context, requestID string, up PhotoUpload) (*evidence.Item, evidence.PhotoOutcome, error) {
	req, err := s.Requests.Get(ctx, requestID)
	if err != nil {
		return nil, evidence.PhotoOutcome{}, fmt.Errorf("load request %s: %w", requestID, err)
	}

	it := &evidence.Item{
		ID:           uuid.NewString(),
		RequestID:    req.ID,
		DocumentType: up.DocumentType,
		FileName:     up.FileName,
		Extension:    uploadExt(up),
		Size:         int64(len(up.Content)),
		Status:       evidence.StatusSubmitted,
		UploadedAt:   s.clock(),
		Content:      up.Content,
	}
	out, err := s.Orch.ReviewPhoto(ctx, req, it)
	if err != nil {
		return nil, out, err
	}
	if out.Directive.Kind == evidence.DirectiveSwitchToForm {
		return nil, out, nil
	}

	if err := s.Evidence.Insert(ctx, it); err != nil {
		return nil, out, fmt.Errorf("save item: %w", err)
	}
	conf := it.Confidence
	s.appendLog(ctx, store.ReviewLogEntry{
		RequestID:   req.ID,
		SubjectKind: store.SubjectItem,
		SubjectID:   it.ID,
		Status:      string(it.Status),
		Confidence:  &conf,
		Directive:   string(out.Directive.Kind),
		Note:        it.Notes,
	})
	if out.Directive.Kind == evidence.DirectiveEscalateAdmin {
		if err := s.persistEscalation(ctx, req); err != nil {
			return it, out, err
		}
		s.Orch.Notify(ctx, req)
	}
	return it, out, nil
}

// SubmitForm оценивает форму, сохраняет её и, при эскалации, статус заявки.
// Администратор получает уведомление только после того, как всё сохранено.
// Форма не того типа не сохраняется.
func (s *Review) SubmitForm(ctx context.Context, requestID string, form evidence.FormSubmission) (*evidence.FormSubmission, evidence.FormOutcome, error) {
	req, err := s.Requests.Get(ctx, requestID)
	if err != nil {
		return nil, evidence.FormOutcome{}, fmt.Errorf("load request %s: %w", requestID, err)
	}

	f := form
	f.ID = uuid.NewString()
	f.RequestID = req.ID
	f.CreatedAt = s.clock()
	f.Status = evidence.StatusSubmitted

	out, err := s.Orch.ReviewForm(ctx, req, &f)
	if err != nil {
		return nil, out, err
	}
	if out.Directive.Kind == evidence.DirectiveUseForm {
		return nil, out, nil
	}
	if err := s.Forms.Insert(ctx, &f); err != nil {
		return nil, out, fmt.Errorf("save form: %w", err)
	}
	score := f.Score
	s.appendLog(ctx, store.ReviewLogEntry{
		RequestID:   req.ID,
		SubjectKind: store.SubjectForm,
		SubjectID:   f.ID,
		Status:      string(f.Status),
		Score:       &score,
		Directive:   string(out.Directive.Kind),
		Note:        out.Directive.Reason,
	})
	if out.Directive.Kind == evidence.DirectiveEscalateAdmin {
		if err := s.persistEscalation(ctx, req); err != nil {
			return &f, out, err
		}
		s.Orch.Notify(ctx, req)
	}
	return &f, out, nil
}

// Escalate вручную передаёт заявку администратору.
func (s *Review) Escalate(ctx context.Context, requestID, reason string) (*evidence.Request, error) {
	req, err := s.Requests.Get(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("load request %s: %w", requestID, err)
	}
	if strings.TrimSpace(reason) == "" {
		reason = "escalated manually"
	}
	s.Orch.MarkEscalated(req, reason)
	if err := s.persistEscalation(ctx, req); err != nil {
		return nil, err
	}
	s.Orch.Notify(ctx, req)
	return req, nil
}

func (s *Review) Completeness(ctx context.Context, requestID string) (evidence.Completeness, error) {
	req, err := s.Requests.Get(ctx, requestID)
	if err != nil {
		return evidence.Completeness{}, fmt.Errorf("load request %s: %w", requestID, err)
	}
	return s.Orch.Tables.CheckCompleteness(req), nil
}

func (s *Review) DeleteEvidence(ctx context.Context, id string) error {
	return s.Evidence.Delete(ctx, id)
}

// DecideEvidence — ручное решение администратора по документу (стадия admin_review).
func (s *Review) DecideEvidence(ctx context.Context, itemID string, status evidence.ReviewStatus, actor, note string) (*evidence.Item, error) {
	switch status {
	case evidence.StatusApproved, evidence.StatusRejected, evidence.StatusNeedsResubmit:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidDecision, status)
	}
	it, err := s.Evidence.Get(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("load item %s: %w", itemID, err)
	}
	if actor == "" {
		actor = "admin"
	}
	at := s.clock()
	it.Status = status
	it.Notes = fmt.Sprintf("decided by %s", actor)
	if n := strings.TrimSpace(note); n != "" {
		it.Notes += ": " + n
	}
	it.ReviewedAt = &at
	if err := s.Evidence.SaveReview(ctx, it); err != nil {
		return nil, fmt.Errorf("save decision: %w", err)
	}
	conf := it.Confidence
	s.appendLog(ctx, store.ReviewLogEntry{
		RequestID:   it.RequestID,
		SubjectKind: store.SubjectItem,
		SubjectID:   it.ID,
		Status:      string(it.Status),
		Confidence:  &conf,
		Directive:   string(evidence.StageAdminReview),
		Note:        it.Notes,
	})
	return it, nil
}

// CreateBooking заказывает услугу по заявке; бронь начинается в PENDING.
func (s *Review) CreateBooking(ctx context.Context, requestID, provider string, scheduledAt *time.Time) (*booking.Booking, error) {
	if s.Bookings == nil {
		return nil, errors.New("bookings are not configured")
	}
	req, err := s.Requests.Get(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("load request %s: %w", requestID, err)
	}
	b := booking.New(req.ID, string(s.Orch.Tables.AssistanceTypeOf(req)), s.clock())
	if req.ServiceCategory != nil {
		b.ServiceCategory = *req.ServiceCategory
	}
	b.Provider = strings.TrimSpace(provider)
	b.ScheduledAt = scheduledAt
	if err := s.Bookings.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("save booking: %w", err)
	}
	log.Printf("booking %s created for request %s (%s)", b.ID, req.ID, b.ServiceCategory)
	return b, nil
}

// ChangeBookingStatus применяет переход и сохраняет его вместе с историей.
func (s *Review) ChangeBookingStatus(ctx context.Context, bookingID string, to booking.Status, actor, note string) (*booking.Booking, booking.HistoryEntry, error) {
	if s.Bookings == nil {
		return nil, booking.HistoryEntry{}, errors.New("bookings are not configured")
	}
	b, err := s.Bookings.Get(ctx, bookingID)
	if err != nil {
		return nil, booking.HistoryEntry{}, fmt.Errorf("load booking %s: %w", bookingID, err)
	}
	h, err := booking.Transition(b, to, actor, note, s.clock())
	if err != nil {
		return nil, booking.HistoryEntry{}, err
	}
	if err := s.Bookings.SaveTransition(ctx, b, h); err != nil {
		return nil, booking.HistoryEntry{}, err
	}
	log.Printf("booking %s: %s -> %s by %s", b.ID, h.From, h.To, actor)
	return b, h, nil
}

func (s *Review) BookingHistory(ctx context.Context, bookingID string) ([]booking.HistoryEntry, error) {
	if s.Bookings == nil {
		return nil, errors.New("bookings are not configured")
	}
	return s.Bookings.History(ctx, bookingID)
}

func (s *Review) persistEscalation(ctx context.Context, req *evidence.Request) error {
	if err := s.Requests.UpdateStatus(ctx, req.ID, req.Status, req.ResolutionNotes); err != nil {
		return fmt.Errorf("save escalation: %w", err)
	}
	s.appendLog(ctx, store.ReviewLogEntry{
		RequestID:   req.ID,
		SubjectKind: store.SubjectRequest,
		SubjectID:   req.ID,
		Status:      req.Status,
		Directive:   string(evidence.DirectiveEscalateAdmin),
		Note:        req.ResolutionNotes,
	})
	return nil
}

// журнал вспомогательный: ошибка записи не отменяет решение
func (s *Review) appendLog(ctx context.Context, e store.ReviewLogEntry) {
	if s.Log == nil {
		return
	}
	if err := s.Log.Append(ctx, e); err != nil {
		log.Printf("review log: append %s %s failed: %v", e.SubjectKind, e.SubjectID, err)
	}
}

func uploadExt(up PhotoUpload) string {
	if ext := evidence.NormalizeExt(filepath.Ext(up.FileName)); ext != "" {
		return ext
	}
	return util.ExtFromMIME(util.PickMIME(up.MIME, "", up.Content))
}
