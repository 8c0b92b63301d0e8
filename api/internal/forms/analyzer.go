package forms

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"assist-bot/api/internal/evidence"
)

const (
	IssueMissingField = "MISSING_FIELD"
	IssueInvalidField = "INVALID_FIELD"
	IssueInconsistent = "INCONSISTENT_FIELD"
	IssueUnknownForm  = "UNKNOWN_FORM_TYPE"

	requiredWeight = 2
	optionalWeight = 1
	dateLayout     = "2006-01-02"
)

var (
	rePhone  = regexp.MustCompile(`^\+?[0-9][0-9 ()-]{6,19}$`)
	rePlate  = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]{4,9}$`)
	rePolicy = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]{5,19}$`)
)

// Analyzer — локальная реализация evidence.FormAnalyzer.
// Балл = 100 * набранный вес / возможный вес; обязательные поля весят вдвое больше,
// необязательные учитываются, только если заполнены.
type Analyzer struct {
	templates map[evidence.FormType]Template
	clock     func() time.Time
}

func NewAnalyzer(templates map[evidence.FormType]Template) *Analyzer {
	if templates == nil {
		templates = DefaultTemplates()
	}
	return &Analyzer{templates: templates, clock: time.Now}
}

func (a *Analyzer) WithClock(clock func() time.Time) *Analyzer {
	a.clock = clock
	return a
}

func (a *Analyzer) Template(ft evidence.FormType) (Template, bool) {
	t, ok := a.templates[ft]
	return t, ok
}

func (a *Analyzer) Analyze(ctx context.Context, form evidence.FormSubmission) (evidence.FormAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return evidence.FormAnalysis{}, err
	}
	tpl, ok := a.templates[form.FormType]
	if !ok {
		return evidence.FormAnalysis{
			Score: 0,
			Issues: []evidence.Issue{{
				Code:     IssueUnknownForm,
				Message:  fmt.Sprintf("unknown form type %q", form.FormType),
				Severity: evidence.SeverityError,
			}},
		}, nil
	}

	var (
		earned, possible int
		issues           []evidence.Issue
		missingRequired  bool
	)
	for _, f := range tpl.Fields {
		val := strings.TrimSpace(form.Fields[f.Name])
		w := optionalWeight
		if f.Required {
			w = requiredWeight
		}
		if val == "" {
			if f.Required {
				possible += w
				missingRequired = true
				issues = append(issues, evidence.Issue{
					Code:     IssueMissingField,
					Message:  f.Label + " is required",
					Severity: evidence.SeverityError,
				})
			}
			continue
		}
		possible += w
		if is := a.checkField(f, val); is != nil {
			issues = append(issues, *is)
			continue
		}
		earned += w
	}

	score := 0
	if possible > 0 {
		score = int(math.Round(100 * float64(earned) / float64(possible)))
	}
	return evidence.FormAnalysis{
		Score:     score,
		CanSubmit: !missingRequired,
		Issues:    issues,
	}, nil
}

func (a *Analyzer) checkField(f FieldDefinition, val string) *evidence.Issue {
	invalid := func(msg string) *evidence.Issue {
		return &evidence.Issue{Code: IssueInvalidField, Message: f.Label + ": " + msg, Severity: evidence.SeverityWarning}
	}
	switch f.Kind {
	case KindPhone:
		if !rePhone.MatchString(val) {
			return invalid("not a valid phone number")
		}
	case KindPlate:
		if !rePlate.MatchString(strings.ToUpper(val)) {
			return invalid("not a valid license plate")
		}
	case KindPolicy:
		if !rePolicy.MatchString(strings.ToUpper(val)) {
			return invalid("not a valid policy number")
		}
	case KindDate:
		d, err := time.Parse(dateLayout, val)
		if err != nil {
			return invalid("expected date as YYYY-MM-DD")
		}
		if f.PastOnly && d.After(a.clock()) {
			return &evidence.Issue{Code: IssueInconsistent, Message: f.Label + " is in the future", Severity: evidence.SeverityWarning}
		}
	case KindOptions:
		for _, o := range f.Options {
			if strings.EqualFold(o, val) {
				return nil
			}
		}
		return invalid("expected one of " + strings.Join(f.Options, ", "))
	default:
		if f.MinLength > 0 && len([]rune(val)) < f.MinLength {
			return invalid(fmt.Sprintf("at least %d characters", f.MinLength))
		}
	}
	return nil
}

var _ evidence.FormAnalyzer = (*Analyzer)(nil)
