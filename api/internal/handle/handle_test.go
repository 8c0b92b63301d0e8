package handle

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assist-bot/api/internal/booking"
	"assist-bot/api/internal/evidence"
	"assist-bot/api/internal/service"
	"assist-bot/api/internal/store"
)

// fakeReviewer прогоняет фото и формы через настоящий оркестратор, без хранилища.
type fakeReviewer struct {
	orch      *evidence.Orchestrator
	req       *evidence.Request
	lastPhoto service.PhotoUpload
	deleteErr error
	bookingFn func(to booking.Status) (*booking.Booking, booking.HistoryEntry, error)
	// дедлайны контекстов, с которыми звали сервис
	deadlines []time.Time
}

func (f *fakeReviewer) track(ctx context.Context) {
	if dl, ok := ctx.Deadline(); ok {
		f.deadlines = append(f.deadlines, dl)
	}
}

func (f *fakeReviewer) CreateRequest(_ context.Context, incidentType string, category *string) (*evidence.Request, error) {
	f.req = &evidence.Request{ID: "req-new", IncidentType: incidentType, ServiceCategory: category, Status: evidence.RequestOpen}
	return f.req, nil
}

func (f *fakeReviewer) GetRequest(_ context.Context, id string) (*evidence.Request, error) {
	return f.load(id)
}

func (f *fakeReviewer) DecideEvidence(_ context.Context, itemID string, status evidence.ReviewStatus, actor, note string) (*evidence.Item, error) {
	switch status {
	case evidence.StatusApproved, evidence.StatusRejected, evidence.StatusNeedsResubmit:
	default:
		return nil, service.ErrInvalidDecision
	}
	if itemID != "it-1" {
		return nil, sql.ErrNoRows
	}
	return &evidence.Item{ID: itemID, Status: status, Notes: "decided by " + actor + ": " + note}, nil
}

func (f *fakeReviewer) CreateBooking(_ context.Context, requestID, provider string, scheduledAt *time.Time) (*booking.Booking, error) {
	if _, err := f.load(requestID); err != nil {
		return nil, err
	}
	return &booking.Booking{ID: "b-1", RequestID: requestID, Provider: provider, ScheduledAt: scheduledAt, Status: booking.StatusPending}, nil
}

func (f *fakeReviewer) load(id string) (*evidence.Request, error) {
	if f.req == nil || f.req.ID != id {
		return nil, store.ErrNotFound
	}
	return f.req, nil
}

func (f *fakeReviewer) SubmitPhoto(ctx context.Context, requestID string, up service.PhotoUpload) (*evidence.Item, evidence.PhotoOutcome, error) {
	f.lastPhoto = up
	req, err := f.load(requestID)
	if err != nil {
		return nil, evidence.PhotoOutcome{}, err
	}
	it := &evidence.Item{ID: "it-1", RequestID: req.ID, DocumentType: up.DocumentType, Extension: "jpg", Size: int64(len(up.Content)), Content: up.Content}
	if up.FileName != "" {
		it.Extension = up.FileName[len(up.FileName)-3:]
	}
	out, err := f.orch.ReviewPhoto(ctx, req, it)
	if out.Directive.Kind == evidence.DirectiveSwitchToForm {
		return nil, out, err
	}
	return it, out, err
}

func (f *fakeReviewer) SubmitForm(ctx context.Context, requestID string, form evidence.FormSubmission) (*evidence.FormSubmission, evidence.FormOutcome, error) {
	req, err := f.load(requestID)
	if err != nil {
		return nil, evidence.FormOutcome{}, err
	}
	form.ID = "f-1"
	out, err := f.orch.ReviewForm(ctx, req, &form)
	return &form, out, err
}

func (f *fakeReviewer) Escalate(ctx context.Context, requestID, reason string) (*evidence.Request, error) {
	req, err := f.load(requestID)
	if err != nil {
		return nil, err
	}
	f.orch.Escalate(ctx, req, reason)
	return req, nil
}

func (f *fakeReviewer) Completeness(ctx context.Context, requestID string) (evidence.Completeness, error) {
	f.track(ctx)
	req, err := f.load(requestID)
	if err != nil {
		return evidence.Completeness{}, err
	}
	return f.orch.Tables.CheckCompleteness(req), nil
}

func (f *fakeReviewer) DeleteEvidence(ctx context.Context, _ string) error {
	f.track(ctx)
	return f.deleteErr
}

func (f *fakeReviewer) ChangeBookingStatus(ctx context.Context, _ string, to booking.Status, _, _ string) (*booking.Booking, booking.HistoryEntry, error) {
	f.track(ctx)
	return f.bookingFn(to)
}

func (f *fakeReviewer) BookingHistory(ctx context.Context, _ string) ([]booking.HistoryEntry, error) {
	f.track(ctx)
	return []booking.HistoryEntry{{ID: "h-1", From: booking.StatusPending, To: booking.StatusConfirmed}}, nil
}

type fixedAnalyzer struct{ an evidence.FormAnalysis }

func (a fixedAnalyzer) Analyze(context.Context, evidence.FormSubmission) (evidence.FormAnalysis, error) {
	return a.an, nil
}

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

const jpegB64 = "/9j/4AAQSkZJRg==" // FF D8 FF E0 00 10 'JFIF'

func newServer(t *testing.T, incident string, an evidence.FormAnalysis) (*httptest.Server, *fakeReviewer) {
	t.Helper()
	fr := &fakeReviewer{
		orch: evidence.NewOrchestrator(nil, nil, fixedAnalyzer{an: an}, nil),
		req:  &evidence.Request{ID: "req-1", IncidentType: incident, Status: evidence.RequestOpen},
	}
	srv := httptest.NewServer(New(fr, nil, pinger{}, 5*time.Second).Routes())
	t.Cleanup(srv.Close)
	return srv, fr
}

func post(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	js, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(js))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestSubmitPhoto_Created(t *testing.T) {
	srv, fr := newServer(t, "MAWDY_ROADSIDE", evidence.FormAnalysis{})
	resp := post(t, srv.URL+"/v1/requests/req-1/photos", PhotoRequest{
		DocumentType: "photo_vehicle",
		FileName:     "car.jpg",
		Image:        "data:image/jpeg;base64," + jpegB64,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decode[PhotoResponse](t, resp)
	require.NotNil(t, body.Item)
	assert.Equal(t, evidence.StatusApproved, body.Item.Status)
	assert.Equal(t, evidence.DirectiveNone, body.Outcome.Directive.Kind)
	assert.Equal(t, evidence.DocPhotoVehicle, fr.lastPhoto.DocumentType)
	assert.Equal(t, "image/jpeg", fr.lastPhoto.MIME)
}

func TestSubmitPhoto_ValidationFailure(t *testing.T) {
	srv, _ := newServer(t, "MAWDY_ROADSIDE", evidence.FormAnalysis{})
	resp := post(t, srv.URL+"/v1/requests/req-1/photos", PhotoRequest{
		DocumentType: evidence.DocLicensePlate,
		FileName:     "plate.gif",
		Image:        jpegB64,
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body := decode[PhotoResponse](t, resp)
	assert.Equal(t, evidence.DirectiveUseForm, body.Outcome.Directive.Kind)
	assert.Equal(t, evidence.FormRoadsideReport, body.Outcome.Directive.FormType)
	assert.Contains(t, body.Error, evidence.IssueInvalidFormat)
}

func TestSubmitPhoto_PolicyMismatch(t *testing.T) {
	srv, _ := newServer(t, "MAWDY_HEALTH", evidence.FormAnalysis{})
	resp := post(t, srv.URL+"/v1/requests/req-1/photos", PhotoRequest{
		DocumentType: evidence.DocMedicalReport,
		FileName:     "scan.jpg",
		Image:        jpegB64,
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decode[PhotoResponse](t, resp)
	assert.Nil(t, body.Item)
	assert.Equal(t, evidence.DirectiveSwitchToForm, body.Outcome.Directive.Kind)
	assert.Equal(t, evidence.FormHealthClaim, body.Outcome.Directive.FormType)
}

func TestSubmitPhoto_BadInput(t *testing.T) {
	srv, _ := newServer(t, "MAWDY_ROADSIDE", evidence.FormAnalysis{})

	resp := post(t, srv.URL+"/v1/requests/req-1/photos", PhotoRequest{DocumentType: evidence.DocPhotoVehicle, Image: "%%%"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, srv.URL+"/v1/requests/req-1/photos", PhotoRequest{Image: jpegB64})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, srv.URL+"/v1/requests/missing/photos", PhotoRequest{DocumentType: evidence.DocPhotoVehicle, Image: jpegB64})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSubmitForm(t *testing.T) {
	t.Run("approved", func(t *testing.T) {
		srv, _ := newServer(t, "MAWDY_ROADSIDE", evidence.FormAnalysis{Score: 95, CanSubmit: true})
		resp := post(t, srv.URL+"/v1/requests/req-1/forms", FormRequest{Fields: map[string]string{"plate": "ABC123"}})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		body := decode[FormResponse](t, resp)
		assert.Equal(t, evidence.StatusApproved, body.Form.Status)
		assert.Equal(t, evidence.FormRoadsideReport, body.Form.FormType)
	})
	t.Run("escalated", func(t *testing.T) {
		srv, fr := newServer(t, "MAWDY_ROADSIDE", evidence.FormAnalysis{Score: 65, CanSubmit: true})
		resp := post(t, srv.URL+"/v1/requests/req-1/forms", FormRequest{})
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
		body := decode[FormResponse](t, resp)
		assert.Equal(t, evidence.StatusReviewing, body.Form.Status)
		assert.Equal(t, evidence.DirectiveEscalateAdmin, body.Outcome.Directive.Kind)
		assert.Equal(t, evidence.RequestPendingAdminReview, fr.req.Status)
	})
}

func TestCompletenessAndEscalate(t *testing.T) {
	srv, fr := newServer(t, "MAWDY_ROADSIDE", evidence.FormAnalysis{})
	fr.req.Items = []evidence.Item{{DocumentType: evidence.DocPhotoVehicle, Status: evidence.StatusApproved}}

	resp, err := http.Get(srv.URL + "/v1/requests/req-1/completeness")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	c := decode[evidence.Completeness](t, resp)
	assert.False(t, c.Complete)
	assert.Len(t, c.Missing, 2)

	resp2 := post(t, srv.URL+"/v1/requests/req-1/escalate", EscalateRequest{Reason: "customer called"})
	require.Equal(t, http.StatusOK, resp2.StatusCode)
	req := decode[evidence.Request](t, resp2)
	assert.Equal(t, evidence.RequestPendingAdminReview, req.Status)
	assert.Equal(t, "customer called", req.ResolutionNotes)
}

func TestDeleteEvidence(t *testing.T) {
	srv, fr := newServer(t, "MAWDY_ROADSIDE", evidence.FormAnalysis{})
	del := func() int {
		req, err := http.NewRequest(http.MethodDelete, srv.URL+"/v1/evidence/it-1", nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		return resp.StatusCode
	}
	assert.Equal(t, http.StatusNoContent, del())
	fr.deleteErr = store.ErrApprovedEvidence
	assert.Equal(t, http.StatusConflict, del())
	fr.deleteErr = sql.ErrNoRows
	assert.Equal(t, http.StatusNotFound, del())
}

func TestFlow(t *testing.T) {
	srv, _ := newServer(t, "", evidence.FormAnalysis{})
	resp, err := http.Get(srv.URL + "/v1/flow?incident_type=mawdy_health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[evidence.FlowResolution](t, resp)
	assert.Equal(t, evidence.AssistHealth, res.Type)
	assert.True(t, res.Ambiguous)
	assert.Equal(t, evidence.MatchSubstring, res.Match)

	resp2, err := http.Get(srv.URL + "/v1/flow")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestChangeBookingStatus(t *testing.T) {
	srv, fr := newServer(t, "", evidence.FormAnalysis{})
	fr.bookingFn = func(to booking.Status) (*booking.Booking, booking.HistoryEntry, error) {
		if to == booking.StatusCompleted {
			return nil, booking.HistoryEntry{}, booking.ErrInvalidTransition
		}
		return &booking.Booking{ID: "b-1", Status: to}, booking.HistoryEntry{From: booking.StatusPending, To: to}, nil
	}

	resp := post(t, srv.URL+"/v1/bookings/b-1/status", StatusRequest{Status: "confirmed"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[StatusResponse](t, resp)
	assert.Equal(t, booking.StatusConfirmed, body.Booking.Status)

	resp = post(t, srv.URL+"/v1/bookings/b-1/status", StatusRequest{Status: "completed"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = post(t, srv.URL+"/v1/bookings/b-1/status", StatusRequest{Status: "teleported"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	hr, err := http.Get(srv.URL + "/v1/bookings/b-1/history")
	require.NoError(t, err)
	defer hr.Body.Close()
	hist := decode[[]booking.HistoryEntry](t, hr)
	assert.Len(t, hist, 1)
}

func TestHealthz(t *testing.T) {
	h := New(&fakeReviewer{}, nil, pinger{err: errors.New("conn refused")}, 0)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	h = New(&fakeReviewer{}, nil, pinger{}, 0)
	rec = httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestWithTimeoutHeader(t *testing.T) {
	h := New(&fakeReviewer{}, nil, nil, time.Minute)
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("X-Request-Timeout", "2")
	ctx, cancel := h.withTimeout(r)
	defer cancel()
	dl, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(2*time.Second), dl, time.Second)
}

type lowVision struct{}

func (lowVision) Name() string    { return "low" }
func (lowVision) Available() bool { return true }
func (lowVision) Check(context.Context, evidence.VisionInput) (evidence.VisionVerdict, error) {
	return evidence.VisionVerdict{Confidence: 0.6}, nil
}

func TestSubmitPhoto_EscalatedIsAccepted(t *testing.T) {
	srv, fr := newServer(t, "VEHICLE_DAMAGE", evidence.FormAnalysis{})
	fr.orch = evidence.NewOrchestrator(nil, evidence.NewScorer(evidence.DefaultTables(), lowVision{}), nil, nil)

	resp := post(t, srv.URL+"/v1/requests/req-1/photos", PhotoRequest{
		DocumentType: evidence.DocPhotoDamage,
		FileName:     "dmg.jpg",
		Image:        jpegB64,
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	body := decode[PhotoResponse](t, resp)
	assert.Equal(t, evidence.DirectiveEscalateAdmin, body.Outcome.Directive.Kind)
	assert.Equal(t, evidence.StatusEscalated, body.Item.Status)
	assert.Equal(t, evidence.RequestPendingAdminReview, fr.req.Status)
}

func TestSubmitPhoto_BodyTooLarge(t *testing.T) {
	fr := &fakeReviewer{
		orch: evidence.NewOrchestrator(nil, nil, nil, nil),
		req:  &evidence.Request{ID: "req-1", IncidentType: "MAWDY_ROADSIDE"},
	}
	h := New(fr, nil, pinger{}, time.Second)
	// по умолчанию лимит от самого крупного правила (10 MB)
	assert.Greater(t, h.maxPhotoBody, int64(10<<20))

	h.maxPhotoBody = 1024
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)

	big := make([]byte, 4096)
	for i := range big {
		big[i] = 'A'
	}
	resp := post(t, srv.URL+"/v1/requests/req-1/photos", PhotoRequest{DocumentType: evidence.DocPhotoVehicle, Image: string(big)})
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Empty(t, fr.lastPhoto.Content)
}

func TestSubmitForm_WrongTypeConflict(t *testing.T) {
	srv, fr := newServer(t, "MAWDY_ROADSIDE", evidence.FormAnalysis{Score: 95, CanSubmit: true})
	resp := post(t, srv.URL+"/v1/requests/req-1/forms", FormRequest{FormType: evidence.FormHealthClaim})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decode[FormResponse](t, resp)
	assert.Equal(t, evidence.DirectiveUseForm, body.Outcome.Directive.Kind)
	assert.Equal(t, evidence.FormRoadsideReport, body.Outcome.Directive.FormType)
	assert.Contains(t, body.Error, "submit form ROADSIDE_REPORT")
	assert.Equal(t, evidence.RequestOpen, fr.req.Status)
}

func TestCreateAndGetRequest(t *testing.T) {
	srv, _ := newServer(t, "", evidence.FormAnalysis{})

	resp := post(t, srv.URL+"/v1/requests", CreateRequestBody{IncidentType: "MAWDY_ROADSIDE"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[evidence.Request](t, resp)
	assert.Equal(t, "req-new", created.ID)
	assert.Equal(t, evidence.RequestOpen, created.Status)

	got, err := http.Get(srv.URL + "/v1/requests/req-new")
	require.NoError(t, err)
	defer got.Body.Close()
	require.Equal(t, http.StatusOK, got.StatusCode)
	assert.Equal(t, "MAWDY_ROADSIDE", decode[evidence.Request](t, got).IncidentType)

	missing, err := http.Get(srv.URL + "/v1/requests/nope")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)

	resp = post(t, srv.URL+"/v1/requests", CreateRequestBody{IncidentType: "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDecideEvidence(t *testing.T) {
	srv, _ := newServer(t, "", evidence.FormAnalysis{})

	resp := post(t, srv.URL+"/v1/evidence/it-1/decision", DecisionRequest{Status: "approved", Actor: "ana", Note: "ok"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	it := decode[evidence.Item](t, resp)
	assert.Equal(t, evidence.StatusApproved, it.Status)
	assert.Equal(t, "decided by ana: ok", it.Notes)

	resp = post(t, srv.URL+"/v1/evidence/it-1/decision", DecisionRequest{Status: "escalated"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, srv.URL+"/v1/evidence/it-9/decision", DecisionRequest{Status: "rejected"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateBooking(t *testing.T) {
	srv, _ := newServer(t, "MAWDY_ROADSIDE", evidence.FormAnalysis{})
	at := time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC)

	resp := post(t, srv.URL+"/v1/bookings", BookingRequest{RequestID: "req-1", Provider: "Grúas Sur", ScheduledAt: &at})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	b := decode[booking.Booking](t, resp)
	assert.Equal(t, booking.StatusPending, b.Status)
	assert.Equal(t, "Grúas Sur", b.Provider)
	require.NotNil(t, b.ScheduledAt)
	assert.True(t, at.Equal(*b.ScheduledAt))

	resp = post(t, srv.URL+"/v1/bookings", BookingRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, srv.URL+"/v1/bookings", BookingRequest{RequestID: "nope"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandlersHonourRequestTimeout(t *testing.T) {
	srv, fr := newServer(t, "MAWDY_ROADSIDE", evidence.FormAnalysis{})
	fr.bookingFn = func(to booking.Status) (*booking.Booking, booking.HistoryEntry, error) {
		return &booking.Booking{ID: "b-1", Status: to}, booking.HistoryEntry{}, nil
	}

	do := func(method, path string, body any) {
		var rd *bytes.Reader
		if body != nil {
			js, err := json.Marshal(body)
			require.NoError(t, err)
			rd = bytes.NewReader(js)
		} else {
			rd = bytes.NewReader(nil)
		}
		req, err := http.NewRequest(method, srv.URL+path, rd)
		require.NoError(t, err)
		req.Header.Set("X-Request-Timeout", "2")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
	}
	do(http.MethodGet, "/v1/requests/req-1/completeness", nil)
	do(http.MethodDelete, "/v1/evidence/it-1", nil)
	do(http.MethodPost, "/v1/bookings/b-1/status", StatusRequest{Status: "confirmed"})
	do(http.MethodGet, "/v1/bookings/b-1/history", nil)

	require.Len(t, fr.deadlines, 4)
	for _, dl := range fr.deadlines {
		assert.WithinDuration(t, time.Now().Add(2*time.Second), dl, 2*time.Second)
	}
}
