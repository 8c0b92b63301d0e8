package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assist-bot/api/internal/booking"
	"assist-bot/api/internal/evidence"
	"assist-bot/api/internal/forms"
	"assist-bot/api/internal/store"
)

var (
	now  = time.Date(2026, 6, 1, 8, 30, 0, 0, time.UTC)
	jpeg = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}
)

type memRequests struct {
	m map[string]*evidence.Request
}

func (r *memRequests) Create(_ context.Context, req *evidence.Request) error {
	cp := *req
	r.m[req.ID] = &cp
	return nil
}

func (r *memRequests) Get(_ context.Context, id string) (*evidence.Request, error) {
	req, ok := r.m[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *req
	return &cp, nil
}

func (r *memRequests) UpdateStatus(_ context.Context, id, status, notes string) error {
	req, ok := r.m[id]
	if !ok {
		return store.ErrNotFound
	}
	req.Status, req.ResolutionNotes = status, notes
	return nil
}

type memEvidence struct {
	items map[string]*evidence.Item
}

func (e *memEvidence) Insert(_ context.Context, it *evidence.Item) error {
	e.items[it.ID] = it
	return nil
}

func (e *memEvidence) Get(_ context.Context, id string) (*evidence.Item, error) {
	it, ok := e.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *it
	return &cp, nil
}

func (e *memEvidence) SaveReview(_ context.Context, it *evidence.Item) error {
	if _, ok := e.items[it.ID]; !ok {
		return store.ErrNotFound
	}
	e.items[it.ID] = it
	return nil
}

func (e *memEvidence) Delete(_ context.Context, id string) error {
	it, ok := e.items[id]
	if !ok {
		return store.ErrNotFound
	}
	if !it.Deletable() {
		return store.ErrApprovedEvidence
	}
	delete(e.items, id)
	return nil
}

type memForms struct {
	saved []*evidence.FormSubmission
	err   error
}

func (f *memForms) Insert(_ context.Context, fs *evidence.FormSubmission) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, fs)
	return nil
}

type memLog struct {
	entries []store.ReviewLogEntry
	err     error
}

func (l *memLog) Append(_ context.Context, e store.ReviewLogEntry) error {
	l.entries = append(l.entries, e)
	return l.err
}

type memBookings struct {
	b    map[string]*booking.Booking
	hist []booking.HistoryEntry
}

func (m *memBookings) Create(_ context.Context, b *booking.Booking) error {
	m.b[b.ID] = b
	return nil
}

func (m *memBookings) Get(_ context.Context, id string) (*booking.Booking, error) {
	b, ok := m.b[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memBookings) SaveTransition(_ context.Context, b *booking.Booking, h booking.HistoryEntry) error {
	m.b[b.ID] = b
	m.hist = append(m.hist, h)
	return nil
}

func (m *memBookings) History(_ context.Context, id string) ([]booking.HistoryEntry, error) {
	return m.hist, nil
}

type countingNotifier struct{ n int }

func (c *countingNotifier) NotifyEscalation(context.Context, *evidence.Request, string) error {
	c.n++
	return nil
}

type fixture struct {
	svc      *Review
	requests *memRequests
	items    *memEvidence
	forms    *memForms
	log      *memLog
	bookings *memBookings
	notifier *countingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cat := "towing"
	f := &fixture{
		requests: &memRequests{m: map[string]*evidence.Request{
			"road":   {ID: "road", IncidentType: "MAWDY_ROADSIDE", ServiceCategory: &cat, Status: evidence.RequestOpen},
			"health": {ID: "health", IncidentType: "MAWDY_HEALTH_LINE", ServiceCategory: strptr("health"), Status: evidence.RequestOpen},
			"damage": {ID: "damage", IncidentType: "VEHICLE_DAMAGE", Status: evidence.RequestOpen},
		}},
		items:    &memEvidence{items: map[string]*evidence.Item{}},
		forms:    &memForms{},
		log:      &memLog{},
		bookings: &memBookings{b: map[string]*booking.Booking{"b-1": {ID: "b-1", Status: booking.StatusPending}}},
		notifier: &countingNotifier{},
	}
	analyzer := forms.NewAnalyzer(nil).WithClock(func() time.Time { return now })
	orch := evidence.NewOrchestrator(nil, nil, analyzer, f.notifier)
	f.svc = NewReview(orch, f.requests, f.items, f.forms, f.log, f.bookings).
		WithClock(func() time.Time { return now })
	return f
}

func strptr(s string) *string { return &s }

func TestSubmitPhoto_Approved(t *testing.T) {
	f := newFixture(t)
	it, out, err := f.svc.SubmitPhoto(context.Background(), "road", PhotoUpload{
		DocumentType: evidence.DocPhotoVehicle,
		FileName:     "car.JPG",
		Content:      jpeg,
	})
	require.NoError(t, err)
	require.NotNil(t, it)
	assert.Equal(t, "jpg", it.Extension)
	assert.Equal(t, evidence.StatusApproved, it.Status)
	assert.Equal(t, evidence.DirectiveNone, out.Directive.Kind)
	assert.NoError(t, out.Err())
	assert.Contains(t, f.items.items, it.ID)
	require.Len(t, f.log.entries, 1)
	assert.Equal(t, store.SubjectItem, f.log.entries[0].SubjectKind)
}

func TestSubmitPhoto_ExtensionFromMIME(t *testing.T) {
	f := newFixture(t)
	it, _, err := f.svc.SubmitPhoto(context.Background(), "road", PhotoUpload{
		DocumentType: evidence.DocPhotoDamage,
		Content:      jpeg,
	})
	require.NoError(t, err)
	assert.Equal(t, "jpg", it.Extension)
}

func TestSubmitPhoto_BadFormatFallsBackToForm(t *testing.T) {
	f := newFixture(t)
	it, out, err := f.svc.SubmitPhoto(context.Background(), "road", PhotoUpload{
		DocumentType: evidence.DocLicensePlate,
		FileName:     "plate.gif",
		Content:      []byte("GIF89a"),
	})
	require.NoError(t, err)
	assert.Equal(t, evidence.StatusNeedsResubmit, it.Status)
	assert.Equal(t, evidence.DirectiveUseForm, out.Directive.Kind)
	assert.Equal(t, evidence.FormRoadsideReport, out.Directive.FormType)

	var verr *evidence.ValidationError
	assert.ErrorAs(t, out.Err(), &verr)
}

func TestSubmitPhoto_HealthIsFormOnly(t *testing.T) {
	f := newFixture(t)
	it, out, err := f.svc.SubmitPhoto(context.Background(), "health", PhotoUpload{
		DocumentType: evidence.DocMedicalReport,
		FileName:     "report.pdf",
		Content:      []byte("%PDF-1.4"),
	})
	require.NoError(t, err)
	assert.Nil(t, it)
	assert.Equal(t, evidence.DirectiveSwitchToForm, out.Directive.Kind)
	assert.Empty(t, f.items.items)
	assert.Empty(t, f.log.entries)

	var pm *evidence.PolicyMismatch
	require.ErrorAs(t, out.Err(), &pm)
	assert.Equal(t, evidence.FormHealthClaim, pm.FormType)
}

func TestSubmitPhoto_UnknownRequest(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.svc.SubmitPhoto(context.Background(), "nope", PhotoUpload{DocumentType: evidence.DocPhotoVehicle})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSubmitForm_Approved(t *testing.T) {
	f := newFixture(t)
	sub, out, err := f.svc.SubmitForm(context.Background(), "health", evidence.FormSubmission{
		Fields: map[string]string{
			"patient_name":  "Maria Lopez",
			"id_number":     "CC123456",
			"phone":         "+57 310 000 0000",
			"incident_date": "2026-05-30",
			"symptoms":      "High fever and headache",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, evidence.FormHealthClaim, sub.FormType)
	assert.Equal(t, evidence.StatusApproved, sub.Status)
	assert.Equal(t, 100, sub.Score)
	assert.Equal(t, now, sub.CreatedAt)
	assert.NoError(t, out.Err())
	assert.Equal(t, 0, f.notifier.n)
	assert.Equal(t, evidence.RequestOpen, f.requests.m["health"].Status)
}

func TestSubmitForm_EscalatesAndPersistsStatus(t *testing.T) {
	f := newFixture(t)
	sub, out, err := f.svc.SubmitForm(context.Background(), "road", evidence.FormSubmission{
		Fields: map[string]string{"driver_name": "Ana"},
	})
	require.NoError(t, err)
	assert.Equal(t, evidence.StatusNeedsInfo, sub.Status)
	assert.Equal(t, evidence.DirectiveEscalateAdmin, out.Directive.Kind)

	var esc *evidence.EscalationRequired
	require.ErrorAs(t, out.Err(), &esc)
	assert.Equal(t, "road", esc.RequestID)

	assert.Equal(t, 1, f.notifier.n)
	assert.Equal(t, evidence.RequestPendingAdminReview, f.requests.m["road"].Status)
	assert.NotEmpty(t, f.requests.m["road"].ResolutionNotes)
	require.Len(t, f.log.entries, 2)
	assert.Equal(t, store.SubjectForm, f.log.entries[0].SubjectKind)
	assert.Equal(t, store.SubjectRequest, f.log.entries[1].SubjectKind)
}

func TestSubmitForm_LogFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.log.err = errors.New("disk full")
	_, _, err := f.svc.SubmitForm(context.Background(), "road", evidence.FormSubmission{})
	assert.NoError(t, err)
}

func TestEscalate(t *testing.T) {
	f := newFixture(t)
	req, err := f.svc.Escalate(context.Background(), "road", "  ")
	require.NoError(t, err)
	assert.Equal(t, evidence.RequestPendingAdminReview, req.Status)
	assert.Equal(t, "escalated manually", req.ResolutionNotes)
	assert.Equal(t, evidence.RequestPendingAdminReview, f.requests.m["road"].Status)
	assert.Equal(t, 1, f.notifier.n)
}

func TestCompleteness(t *testing.T) {
	f := newFixture(t)
	f.requests.m["road"].Items = []evidence.Item{
		{DocumentType: evidence.DocPhotoVehicle, Status: evidence.StatusApproved},
		{DocumentType: evidence.DocLicensePlate, Status: evidence.StatusReviewing},
	}
	c, err := f.svc.Completeness(context.Background(), "road")
	require.NoError(t, err)
	assert.False(t, c.Complete)
	assert.Equal(t, []evidence.DocumentType{evidence.DocPhotoDamage}, c.Missing)
	assert.Equal(t, []evidence.DocumentType{evidence.DocLicensePlate}, c.Pending)
}

func TestDeleteEvidence(t *testing.T) {
	f := newFixture(t)
	f.items.items["a"] = &evidence.Item{ID: "a", Status: evidence.StatusApproved}
	f.items.items["b"] = &evidence.Item{ID: "b", Status: evidence.StatusRejected}

	assert.ErrorIs(t, f.svc.DeleteEvidence(context.Background(), "a"), store.ErrApprovedEvidence)
	assert.NoError(t, f.svc.DeleteEvidence(context.Background(), "b"))
	assert.NotContains(t, f.items.items, "b")
}

func TestChangeBookingStatus(t *testing.T) {
	f := newFixture(t)
	b, h, err := f.svc.ChangeBookingStatus(context.Background(), "b-1", booking.StatusConfirmed, "admin", "")
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, b.Status)
	assert.Equal(t, now, h.At)

	_, _, err = f.svc.ChangeBookingStatus(context.Background(), "b-1", booking.StatusCompleted, "admin", "")
	assert.ErrorIs(t, err, booking.ErrInvalidTransition)

	hist, err := f.svc.BookingHistory(context.Background(), "b-1")
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}

func TestSubmitForm_SaveFailureDoesNotEscalate(t *testing.T) {
	f := newFixture(t)
	f.forms.err = errors.New("db down")

	_, _, err := f.svc.SubmitForm(context.Background(), "road", evidence.FormSubmission{
		Fields: map[string]string{"driver_name": "Ana"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save form")
	// ничего не сохранено, значит и администратора не зовём
	assert.Zero(t, f.notifier.n)
	assert.Equal(t, evidence.RequestOpen, f.requests.m["road"].Status)
	assert.Empty(t, f.log.entries)
}

func TestSubmitForm_WrongTypeIsNotSaved(t *testing.T) {
	f := newFixture(t)
	sub, out, err := f.svc.SubmitForm(context.Background(), "road", evidence.FormSubmission{
		FormType: evidence.FormHealthClaim,
		Fields: map[string]string{
			"patient_name":  "Maria Lopez",
			"id_number":     "CC123456",
			"phone":         "+57 310 000 0000",
			"incident_date": "2026-05-30",
			"symptoms":      "High fever and headache",
		},
	})
	require.NoError(t, err)
	assert.Nil(t, sub)
	assert.Equal(t, evidence.DirectiveUseForm, out.Directive.Kind)
	assert.Equal(t, evidence.FormRoadsideReport, out.Directive.FormType)
	assert.Empty(t, f.forms.saved)
	assert.Empty(t, f.log.entries)

	var fm *evidence.FormMismatch
	assert.ErrorAs(t, out.Err(), &fm)
}

func TestSubmitPhoto_VehicleDamageEscalatesAfterSave(t *testing.T) {
	f := newFixture(t)
	it, out, err := f.svc.SubmitPhoto(context.Background(), "damage", PhotoUpload{
		DocumentType: evidence.DocPhotoDamage,
		FileName:     "dent.gif",
		Content:      []byte("GIF89a"),
	})
	require.NoError(t, err)
	assert.Equal(t, evidence.StatusEscalated, it.Status)
	assert.Equal(t, evidence.DirectiveEscalateAdmin, out.Directive.Kind)
	assert.Contains(t, f.items.items, it.ID)
	assert.Equal(t, evidence.RequestPendingAdminReview, f.requests.m["damage"].Status)
	assert.Equal(t, 1, f.notifier.n)
	require.Len(t, f.log.entries, 2)
	assert.Equal(t, store.SubjectItem, f.log.entries[0].SubjectKind)
	assert.Equal(t, store.SubjectRequest, f.log.entries[1].SubjectKind)
}

func TestCreateRequest(t *testing.T) {
	f := newFixture(t)
	req, err := f.svc.CreateRequest(context.Background(), " MAWDY_ROADSIDE ", strptr(""))
	require.NoError(t, err)
	assert.Equal(t, "MAWDY_ROADSIDE", req.IncidentType)
	assert.Nil(t, req.ServiceCategory)
	assert.Equal(t, evidence.RequestOpen, req.Status)
	assert.Contains(t, f.requests.m, req.ID)

	got, err := f.svc.GetRequest(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, req.ID, got.ID)

	_, err = f.svc.CreateRequest(context.Background(), "  ", nil)
	assert.Error(t, err)
}

func TestDecideEvidence(t *testing.T) {
	f := newFixture(t)
	f.items.items["x"] = &evidence.Item{ID: "x", RequestID: "road", Status: evidence.StatusEscalated, Confidence: 0.5}

	it, err := f.svc.DecideEvidence(context.Background(), "x", evidence.StatusApproved, "ops", "checked by phone")
	require.NoError(t, err)
	assert.Equal(t, evidence.StatusApproved, it.Status)
	assert.Equal(t, "decided by ops: checked by phone", it.Notes)
	require.NotNil(t, it.ReviewedAt)
	assert.Equal(t, now, *it.ReviewedAt)
	assert.Equal(t, evidence.StatusApproved, f.items.items["x"].Status)
	require.Len(t, f.log.entries, 1)

	_, err = f.svc.DecideEvidence(context.Background(), "x", evidence.StatusEscalated, "ops", "")
	assert.ErrorIs(t, err, ErrInvalidDecision)

	_, err = f.svc.DecideEvidence(context.Background(), "nope", evidence.StatusRejected, "", "")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCreateBooking(t *testing.T) {
	f := newFixture(t)
	at := now.Add(2 * time.Hour)
	b, err := f.svc.CreateBooking(context.Background(), "road", " Grúas Norte ", &at)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPending, b.Status)
	assert.Equal(t, "road", b.RequestID)
	assert.Equal(t, "towing", b.ServiceCategory)
	assert.Equal(t, "Grúas Norte", b.Provider)
	assert.Equal(t, now, b.CreatedAt)
	assert.Contains(t, f.bookings.b, b.ID)

	// без категории берётся тип ассистанса
	b, err = f.svc.CreateBooking(context.Background(), "damage", "", nil)
	require.NoError(t, err)
	assert.Equal(t, string(evidence.AssistRoadside), b.ServiceCategory)

	_, err = f.svc.CreateBooking(context.Background(), "nope", "", nil)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
