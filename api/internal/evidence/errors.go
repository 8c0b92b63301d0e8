package evidence

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNilRequest = errors.New("evidence: nil request")
	ErrNilItem    = errors.New("evidence: nil item")
)

// ValidationError — загрузка не прошла правила (формат, размер).
type ValidationError struct {
	DocumentType DocumentType
	Issues       []Issue
}

func (e *ValidationError) Error() string {
	codes := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		if is.Severity == SeverityError {
			codes = append(codes, is.Code)
		}
	}
	return fmt.Sprintf("validation failed for %s: %s", e.DocumentType, strings.Join(codes, ", "))
}

// PolicyMismatch — фото прислали туда, где политика принимает только форму.
type PolicyMismatch struct {
	IncidentType string
	Assistance   AssistanceType
	FormType     FormType
}

func (e *PolicyMismatch) Error() string {
	return fmt.Sprintf("photos are not accepted for %s (%s); submit form %s instead", e.IncidentType, e.Assistance, e.FormType)
}

// FormMismatch — прислана форма не того типа, который ждёт политика.
type FormMismatch struct {
	Assistance AssistanceType
	Got        FormType
	Want       FormType
}

func (e *FormMismatch) Error() string {
	return fmt.Sprintf("form %s is not accepted for %s; submit form %s instead", e.Got, e.Assistance, e.Want)
}

// EscalationRequired — не ошибка, а решение передать заявку администратору.
type EscalationRequired struct {
	RequestID string
	Reason    string
}

func (e *EscalationRequired) Error() string {
	return fmt.Sprintf("request %s escalated to admin review: %s", e.RequestID, e.Reason)
}
