package evidence

import "strings"

const bytesPerMB = 1024 * 1024

// ValidationRule — статические правила для одного типа документа.
type ValidationRule struct {
	AllowedFormats []string `yaml:"allowed_formats" json:"allowed_formats"`
	MaxSizeMB      float64  `yaml:"max_size_mb" json:"max_size_mb"`
	// Checks — именованные проверки содержимого, их выполняет VisionChecker.
	Checks []string `yaml:"checks,omitempty" json:"checks,omitempty"`
}

func (r ValidationRule) Allows(ext string) bool {
	ext = NormalizeExt(ext)
	for _, f := range r.AllowedFormats {
		if f == ext {
			return true
		}
	}
	return false
}

func (r ValidationRule) MaxBytes() int64 {
	return int64(r.MaxSizeMB * bytesPerMB)
}

// NormalizeExt: "JPG", ".jpg", " jpg " -> "jpg".
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

var imageFormats = []string{"jpg", "jpeg", "png", "webp"}
var docFormats = []string{"pdf", "jpg", "jpeg", "png"}

// DefaultRule применяется к типам, которых нет в таблице.
var DefaultRule = ValidationRule{
	AllowedFormats: []string{"jpg", "jpeg", "png", "pdf"},
	MaxSizeMB:      10,
}

func defaultRules() map[DocumentType]ValidationRule {
	return map[DocumentType]ValidationRule{
		DocPhotoVehicle: {
			AllowedFormats: imageFormats,
			MaxSizeMB:      10,
			Checks:         []string{"is_vehicle_visible", "image_quality"},
		},
		DocPhotoDamage: {
			AllowedFormats: imageFormats,
			MaxSizeMB:      10,
			Checks:         []string{"is_damage_visible", "image_quality"},
		},
		DocPhotoScene: {
			AllowedFormats: imageFormats,
			MaxSizeMB:      10,
			Checks:         []string{"image_quality"},
		},
		DocLicensePlate: {
			AllowedFormats: []string{"jpg", "jpeg", "png"},
			MaxSizeMB:      5,
			Checks:         []string{"is_plate_readable"},
		},
		DocDriverLicense: {
			AllowedFormats: docFormats,
			MaxSizeMB:      5,
			Checks:         []string{"is_document_readable", "is_not_expired"},
		},
		DocVehicleRegistration: {
			AllowedFormats: docFormats,
			MaxSizeMB:      5,
			Checks:         []string{"is_document_readable"},
		},
		DocPolicyDocument: {
			AllowedFormats: []string{"pdf"},
			MaxSizeMB:      10,
		},
		DocIDDocument: {
			AllowedFormats: docFormats,
			MaxSizeMB:      5,
			Checks:         []string{"is_document_readable", "is_not_expired"},
		},
		DocMedicalReport: {
			AllowedFormats: docFormats,
			MaxSizeMB:      10,
			Checks:         []string{"is_document_readable"},
		},
		DocPrescription: {
			AllowedFormats: docFormats,
			MaxSizeMB:      10,
			Checks:         []string{"is_document_readable"},
		},
		DocInvoice: {
			AllowedFormats: docFormats,
			MaxSizeMB:      10,
		},
	}
}

// Rule возвращает правило для типа документа или DefaultRule.
func (t *Tables) Rule(dt DocumentType) ValidationRule {
	if r, ok := t.Rules[dt]; ok {
		return r
	}
	return DefaultRule
}
