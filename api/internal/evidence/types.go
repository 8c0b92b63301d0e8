package evidence

import "time"

type DocumentType string

const (
	DocPhotoVehicle        DocumentType = "PHOTO_VEHICLE"
	DocPhotoDamage         DocumentType = "PHOTO_DAMAGE"
	DocPhotoScene          DocumentType = "PHOTO_SCENE"
	DocLicensePlate        DocumentType = "LICENSE_PLATE"
	DocDriverLicense       DocumentType = "DRIVER_LICENSE"
	DocVehicleRegistration DocumentType = "VEHICLE_REGISTRATION"
	DocPolicyDocument      DocumentType = "POLICY_DOCUMENT"
	DocIDDocument          DocumentType = "ID_DOCUMENT"
	DocMedicalReport       DocumentType = "MEDICAL_REPORT"
	DocPrescription        DocumentType = "PRESCRIPTION"
	DocInvoice             DocumentType = "INVOICE"
)

// AssistanceType — ключ таблиц манифеста и политик.
type AssistanceType string

const (
	AssistHealth        AssistanceType = "HEALTH"
	AssistRoadside      AssistanceType = "ROADSIDE"
	AssistVehicleDamage AssistanceType = "VEHICLE_DAMAGE"
)

type ReviewStatus string

const (
	StatusSubmitted     ReviewStatus = "SUBMITTED"
	StatusReviewing     ReviewStatus = "REVIEWING"
	StatusApproved      ReviewStatus = "APPROVED"
	StatusRejected      ReviewStatus = "REJECTED"
	StatusNeedsResubmit ReviewStatus = "NEEDS_RESUBMIT"
	StatusNeedsInfo     ReviewStatus = "NEEDS_INFO"
	StatusEscalated     ReviewStatus = "ESCALATED"
)

// Статусы заявки, которые пишет оркестратор.
const (
	RequestOpen               = "OPEN"
	RequestPendingAdminReview = "PENDING_ADMIN_REVIEW"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue codes.
const (
	IssueInvalidFormat     = "INVALID_FORMAT"
	IssueFileTooLarge      = "FILE_TOO_LARGE"
	IssueVisionUnavailable = "VISION_UNAVAILABLE"
)

type Issue struct {
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// ReviewResult строится один раз на ревью и дальше не меняется;
// в Item копируются только поля статуса.
type ReviewResult struct {
	Confidence float64      `json:"confidence"`
	Issues     []Issue      `json:"issues"`
	Status     ReviewStatus `json:"status"`
	Notes      string       `json:"notes"`
}

func (r ReviewResult) HasErrors() bool {
	return hasErrors(r.Issues)
}

func hasErrors(issues []Issue) bool {
	for _, is := range issues {
		if is.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Item — фото или документ, приложенный к заявке.
type Item struct {
	ID           string       `json:"id"`
	RequestID    string       `json:"request_id"`
	DocumentType DocumentType `json:"document_type"`
	FileName     string       `json:"file_name,omitempty"`
	Extension    string       `json:"extension"`
	Size         int64        `json:"size"`
	Status       ReviewStatus `json:"status"`
	Confidence   float64      `json:"confidence"`
	Issues       []Issue      `json:"issues,omitempty"`
	Notes        string       `json:"notes,omitempty"`
	UploadedAt   time.Time    `json:"uploaded_at"`
	ReviewedAt   *time.Time   `json:"reviewed_at,omitempty"`

	// Content нужен только vision-проверке, в БД не хранится.
	Content []byte `json:"-"`
}

// Deletable: одобренные документы удалять нельзя.
func (it *Item) Deletable() bool {
	return it.Status != StatusApproved
}

func (it *Item) apply(res ReviewResult, at time.Time) {
	it.Status = res.Status
	it.Confidence = res.Confidence
	it.Issues = append([]Issue(nil), res.Issues...)
	it.Notes = res.Notes
	it.ReviewedAt = &at
}

type FormType string

const (
	FormHealthClaim    FormType = "HEALTH_CLAIM"
	FormRoadsideReport FormType = "ROADSIDE_REPORT"
	FormVehicleDamage  FormType = "VEHICLE_DAMAGE_REPORT"
)

type FormSubmission struct {
	ID        string            `json:"id"`
	RequestID string            `json:"request_id"`
	FormType  FormType          `json:"form_type"`
	Fields    map[string]string `json:"fields"`
	Status    ReviewStatus      `json:"status"`
	Score     int               `json:"score"`
	Issues    []Issue           `json:"issues,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Request — заявка на ассистанс. ServiceCategory == nil означает, что категория не задана.
type Request struct {
	ID              string           `json:"id"`
	IncidentType    string           `json:"incident_type"`
	ServiceCategory *string          `json:"service_category,omitempty"`
	Items           []Item           `json:"items"`
	Forms           []FormSubmission `json:"forms"`
	Status          string           `json:"status"`
	ResolutionNotes string           `json:"resolution_notes,omitempty"`
}
