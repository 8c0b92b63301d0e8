package evidence

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

const (
	FormApproveScore = 80
	FormReviewScore  = 60
)

type DirectiveKind string

const (
	DirectiveNone DirectiveKind = "none"
	// фото для этого типа не принимаются, сразу форма
	DirectiveSwitchToForm DirectiveKind = "switch_to_form"
	// фото не прошло автопроверку, дальше форма
	DirectiveUseForm       DirectiveKind = "use_form"
	DirectiveEscalateAdmin DirectiveKind = "escalate_admin"
)

type Directive struct {
	Kind     DirectiveKind `json:"kind"`
	FormType FormType      `json:"form_type,omitempty"`
	Reason   string        `json:"reason,omitempty"`
}

type PhotoOutcome struct {
	Flow      FlowResolution `json:"flow"`
	Status    ReviewStatus   `json:"status"`
	Result    *ReviewResult  `json:"result,omitempty"` // nil, если скоринг не запускался
	Directive Directive      `json:"directive"`

	incidentType string
	docType      DocumentType
	requestID    string
}

// Err переводит исход в таксономию ошибок для транспортного слоя.
func (o PhotoOutcome) Err() error {
	if o.Directive.Kind == DirectiveSwitchToForm {
		return &PolicyMismatch{IncidentType: o.incidentType, Assistance: o.Flow.Type, FormType: o.Directive.FormType}
	}
	if o.Result != nil && o.Result.HasErrors() {
		return &ValidationError{DocumentType: o.docType, Issues: o.Result.Issues}
	}
	if o.Directive.Kind == DirectiveEscalateAdmin {
		return &EscalationRequired{RequestID: o.requestID, Reason: o.Directive.Reason}
	}
	return nil
}

type FormOutcome struct {
	Flow      FlowResolution `json:"flow"`
	Status    ReviewStatus   `json:"status"`
	Analysis  FormAnalysis   `json:"analysis"`
	Directive Directive      `json:"directive"`

	requestID string
	submitted FormType
}

func (o FormOutcome) Err() error {
	if o.Directive.Kind == DirectiveUseForm {
		return &FormMismatch{Assistance: o.Flow.Type, Got: o.submitted, Want: o.Directive.FormType}
	}
	if o.Directive.Kind == DirectiveEscalateAdmin {
		return &EscalationRequired{RequestID: o.requestID, Reason: o.Directive.Reason}
	}
	return nil
}

// Orchestrator ведёт одно доказательство по цепочке: фото -> форма -> администратор.
// Каждый вызов даёт одно синхронное решение, без повторов.
type Orchestrator struct {
	Tables   *Tables
	Scorer   *Scorer
	Forms    FormAnalyzer
	Notifier Notifier

	clock func() time.Time
}

func NewOrchestrator(t *Tables, scorer *Scorer, forms FormAnalyzer, n Notifier) *Orchestrator {
	if t == nil {
		t = DefaultTables()
	}
	if scorer == nil {
		scorer = NewScorer(t, nil)
	}
	return &Orchestrator{Tables: t, Scorer: scorer, Forms: forms, Notifier: n, clock: time.Now}
}

// WithClock подменяет часы (для тестов).
func (o *Orchestrator) WithClock(clock func() time.Time) *Orchestrator {
	o.clock = clock
	return o
}

// ReviewPhoto проверяет фото/скан. Если политика не принимает фото, скоринг не запускается.
func (o *Orchestrator) ReviewPhoto(ctx context.Context, req *Request, it *Item) (PhotoOutcome, error) {
	if req == nil {
		return PhotoOutcome{}, ErrNilRequest
	}
	if it == nil {
		return PhotoOutcome{}, ErrNilItem
	}
	if err := ctx.Err(); err != nil {
		return PhotoOutcome{}, fmt.Errorf("review photo: %w", err)
	}

	flow := o.Tables.ResolveFlow(req.IncidentType)
	if !flow.Config.AllowPhotos {
		return PhotoOutcome{
			Flow:         flow,
			Status:       it.Status,
			incidentType: req.IncidentType,
			docType:      it.DocumentType,
			Directive: Directive{
				Kind:     DirectiveSwitchToForm,
				FormType: flow.Config.FormType,
				Reason:   fmt.Sprintf("%s assistance accepts forms only", flow.Type),
			},
		}, nil
	}

	it.Status = StatusReviewing
	res := o.Scorer.Score(ctx, it)
	ApplyReviewPolicy(&res)
	it.apply(res, o.clock())

	out := PhotoOutcome{Flow: flow, Status: res.Status, Result: &res, incidentType: req.IncidentType, docType: it.DocumentType, requestID: req.ID}
	if res.Status == StatusApproved {
		out.Directive = Directive{Kind: DirectiveNone}
		return out, nil
	}

	// следующая стадия берётся из цепочки политики
	if flow.Config.Next(StageAIVision) == StageAdminReview {
		reason := fmt.Sprintf("%s %s: %s", it.DocumentType, res.Status, res.Notes)
		it.Status = StatusEscalated
		out.Status = StatusEscalated
		out.Directive = Directive{Kind: DirectiveEscalateAdmin, Reason: reason}
		o.MarkEscalated(req, reason)
		log.Printf("review: item %s (%s) -> %s, confidence=%.2f; escalated to admin",
			it.ID, it.DocumentType, res.Status, res.Confidence)
		return out, nil
	}
	out.Directive = Directive{
		Kind:     DirectiveUseForm,
		FormType: flow.Config.FormType,
		Reason:   res.Notes,
	}
	log.Printf("review: item %s (%s) -> %s, confidence=%.2f; fallback to form %s",
		it.ID, it.DocumentType, res.Status, res.Confidence, flow.Config.FormType)
	return out, nil
}

// ReviewForm оценивает форму: >=80 и можно отправить: APPROVED,
// [60,80): REVIEWING, <60: NEEDS_INFO; в двух последних случаях эскалация.
func (o *Orchestrator) ReviewForm(ctx context.Context, req *Request, form *FormSubmission) (FormOutcome, error) {
	if req == nil {
		return FormOutcome{}, ErrNilRequest
	}
	if form == nil {
		return FormOutcome{}, errors.New("evidence: nil form")
	}
	if o.Forms == nil {
		return FormOutcome{}, errors.New("evidence: form analyzer is not configured")
	}
	if err := ctx.Err(); err != nil {
		return FormOutcome{}, fmt.Errorf("review form: %w", err)
	}

	flow := o.Tables.ResolveFlow(req.IncidentType)
	form.FormType = FormType(strings.ToUpper(strings.TrimSpace(string(form.FormType))))
	if form.FormType == "" {
		form.FormType = flow.Config.FormType
	}
	if form.FormType != flow.Config.FormType {
		// форма не того типа не оценивается
		return FormOutcome{
			Flow:   flow,
			Status: form.Status,
			Directive: Directive{
				Kind:     DirectiveUseForm,
				FormType: flow.Config.FormType,
				Reason:   fmt.Sprintf("%s assistance expects form %s, got %s", flow.Type, flow.Config.FormType, form.FormType),
			},
			requestID: req.ID,
			submitted: form.FormType,
		}, nil
	}
	form.Status = StatusReviewing

	an, err := o.Forms.Analyze(ctx, *form)
	if err != nil {
		// анализ недоступен, решение за человеком
		log.Printf("review: form analysis failed for %s: %v", form.ID, err)
		reason := "automatic form analysis is unavailable"
		o.MarkEscalated(req, reason)
		return FormOutcome{
			Flow:      flow,
			Status:    form.Status,
			Directive: Directive{Kind: DirectiveEscalateAdmin, Reason: reason},
			requestID: req.ID,
		}, nil
	}
	an.Score = clampScore(an.Score)
	form.Score = an.Score
	form.Issues = append([]Issue(nil), an.Issues...)

	out := FormOutcome{Flow: flow, Analysis: an, requestID: req.ID}
	switch {
	case an.Score >= FormApproveScore && an.CanSubmit:
		form.Status = StatusApproved
		out.Directive = Directive{Kind: DirectiveNone}
	case an.Score >= FormReviewScore:
		form.Status = StatusReviewing
		out.Directive = Directive{
			Kind:   DirectiveEscalateAdmin,
			Reason: fmt.Sprintf("form %s scored %d/100, needs admin review", form.FormType, an.Score),
		}
	default:
		form.Status = StatusNeedsInfo
		out.Directive = Directive{
			Kind:   DirectiveEscalateAdmin,
			Reason: fmt.Sprintf("form %s scored %d/100, more information required", form.FormType, an.Score),
		}
	}
	out.Status = form.Status

	if out.Directive.Kind == DirectiveEscalateAdmin {
		o.MarkEscalated(req, out.Directive.Reason)
	}
	return out, nil
}

// Escalate переводит заявку в очередь администратора и сразу уведомляет его.
// Всегда успешно: ошибка уведомления только логируется.
func (o *Orchestrator) Escalate(ctx context.Context, req *Request, reason string) {
	if req == nil {
		return
	}
	o.MarkEscalated(req, reason)
	o.Notify(ctx, req)
}

// MarkEscalated меняет только заявку в памяти. ReviewPhoto и ReviewForm уведомлений
// не шлют: вызывающий сохраняет результат и потом зовёт Notify.
func (o *Orchestrator) MarkEscalated(req *Request, reason string) {
	if req == nil {
		return
	}
	req.Status = RequestPendingAdminReview
	req.ResolutionNotes = reason
}

// Notify отправляет администратору уведомление об эскалации с req.ResolutionNotes.
func (o *Orchestrator) Notify(ctx context.Context, req *Request) {
	if o.Notifier == nil || req == nil {
		return
	}
	if err := o.Notifier.NotifyEscalation(ctx, req, req.ResolutionNotes); err != nil {
		log.Printf("review: escalation notify failed for request %s: %v", req.ID, err)
	}
}

func clampScore(s int) int {
	switch {
	case s < 0:
		return 0
	case s > 100:
		return 100
	}
	return s
}
