package evidence

import "strings"

type ManifestEntry struct {
	Type        DocumentType `yaml:"type" json:"type"`
	Required    bool         `yaml:"required" json:"required"`
	Description string       `yaml:"description" json:"description"`
}

func defaultManifest() map[AssistanceType][]ManifestEntry {
	return map[AssistanceType][]ManifestEntry{
		AssistRoadside: {
			{Type: DocPhotoVehicle, Required: true, Description: "Photo of the vehicle showing its current position"},
			{Type: DocLicensePlate, Required: true, Description: "Readable photo of the license plate"},
			{Type: DocPhotoDamage, Required: true, Description: "Photo of the failure or damage that needs assistance"},
			{Type: DocDriverLicense, Required: false, Description: "Driver license of the person at the scene"},
			{Type: DocPhotoScene, Required: false, Description: "Wide photo of the location"},
		},
		AssistHealth: {
			{Type: DocIDDocument, Required: true, Description: "Identity document of the patient"},
			{Type: DocMedicalReport, Required: true, Description: "Medical report or doctor's note"},
			{Type: DocPrescription, Required: false, Description: "Prescription, if medication was issued"},
			{Type: DocInvoice, Required: false, Description: "Invoice for reimbursable expenses"},
		},
		AssistVehicleDamage: {
			{Type: DocPhotoVehicle, Required: true, Description: "Photo of the whole vehicle"},
			{Type: DocPhotoDamage, Required: true, Description: "Close-up photos of every damaged area"},
			{Type: DocLicensePlate, Required: true, Description: "Readable photo of the license plate"},
			{Type: DocDriverLicense, Required: true, Description: "Driver license of the driver"},
			{Type: DocVehicleRegistration, Required: true, Description: "Vehicle registration card"},
			{Type: DocPolicyDocument, Required: false, Description: "Insurance policy document"},
			{Type: DocPhotoScene, Required: false, Description: "Photo of the accident scene"},
		},
	}
}

// Completeness — готовность заявки по обязательным документам.
type Completeness struct {
	AssistanceType AssistanceType `json:"assistance_type"`
	Complete       bool           `json:"complete"`
	Missing        []DocumentType `json:"missing"`
	Pending        []DocumentType `json:"pending"`
	TotalRequired  int            `json:"total_required"`
	TotalUploaded  int            `json:"total_uploaded"`
	TotalApproved  int            `json:"total_approved"`
}

// AssistanceTypeOf: категория сервиса заявки, без категории (или неизвестная) даёт ROADSIDE.
func (t *Tables) AssistanceTypeOf(req *Request) AssistanceType {
	if req.ServiceCategory == nil {
		return AssistRoadside
	}
	at := AssistanceType(strings.ToUpper(strings.TrimSpace(*req.ServiceCategory)))
	if _, ok := t.Manifest[at]; !ok {
		return AssistRoadside
	}
	return at
}

// CheckCompleteness сверяет документы заявки с манифестом. Необязательные
// типы никогда не попадают ни в Missing, ни в Pending.
func (t *Tables) CheckCompleteness(req *Request) Completeness {
	at := t.AssistanceTypeOf(req)

	uploaded := make(map[DocumentType]bool)
	approved := make(map[DocumentType]bool)
	for _, it := range req.Items {
		uploaded[it.DocumentType] = true
		if it.Status == StatusApproved {
			approved[it.DocumentType] = true
		}
	}

	out := Completeness{
		AssistanceType: at,
		Missing:        []DocumentType{},
		Pending:        []DocumentType{},
		TotalUploaded:  len(uploaded),
		TotalApproved:  len(approved),
	}
	for _, e := range t.Manifest[at] {
		if !e.Required {
			continue
		}
		out.TotalRequired++
		switch {
		case !uploaded[e.Type]:
			out.Missing = append(out.Missing, e.Type)
		case !approved[e.Type]:
			out.Pending = append(out.Pending, e.Type)
		}
	}
	out.Complete = len(out.Missing) == 0 && len(out.Pending) == 0
	return out
}
