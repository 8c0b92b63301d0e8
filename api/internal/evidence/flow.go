package evidence

import (
	"fmt"
	"strings"
)

type Stage string

const (
	StageAIVision    Stage = "ai_vision"
	StageForm        Stage = "form"
	StageAdminReview Stage = "admin_review"
)

// FlowConfig — цепочка фоллбэков для типа ассистанса.
type FlowConfig struct {
	AllowPhotos bool     `yaml:"allow_photos" json:"allow_photos"`
	Primary     Stage    `yaml:"primary" json:"primary"`
	Chain       []Stage  `yaml:"chain" json:"chain"`
	FormType    FormType `yaml:"form_type" json:"form_type"`
}

func (f FlowConfig) Validate() error {
	if f.Primary != StageAIVision && f.Primary != StageForm {
		return fmt.Errorf("primary must be %q or %q, got %q", StageAIVision, StageForm, f.Primary)
	}
	if len(f.Chain) == 0 || f.Chain[len(f.Chain)-1] != StageAdminReview {
		return fmt.Errorf("chain must end with %q", StageAdminReview)
	}
	if f.Chain[0] != f.Primary {
		return fmt.Errorf("chain must start with primary stage %q", f.Primary)
	}
	if f.Primary == StageAIVision && !f.AllowPhotos {
		return fmt.Errorf("primary %q requires allow_photos", StageAIVision)
	}
	if f.FormType == "" {
		return fmt.Errorf("form_type is required")
	}
	return nil
}

// Next — стадия после s в цепочке; после последней остаётся admin_review.
func (f FlowConfig) Next(s Stage) Stage {
	for i, st := range f.Chain {
		if st == s && i+1 < len(f.Chain) {
			return f.Chain[i+1]
		}
	}
	return StageAdminReview
}

func defaultFlows() map[AssistanceType]FlowConfig {
	return map[AssistanceType]FlowConfig{
		// только форма
		AssistHealth: {
			AllowPhotos: false,
			Primary:     StageForm,
			Chain:       []Stage{StageForm, StageAdminReview},
			FormType:    FormHealthClaim,
		},
		// сначала фото
		AssistRoadside: {
			AllowPhotos: true,
			Primary:     StageAIVision,
			Chain:       []Stage{StageAIVision, StageForm, StageAdminReview},
			FormType:    FormRoadsideReport,
		},
		// сначала форма, фото как дополнение
		AssistVehicleDamage: {
			AllowPhotos: true,
			Primary:     StageForm,
			Chain:       []Stage{StageForm, StageAIVision, StageAdminReview},
			FormType:    FormVehicleDamage,
		},
	}
}

type MatchKind string

const (
	MatchSubstring MatchKind = "substring"
	MatchExact     MatchKind = "exact"
	MatchDefault   MatchKind = "default"
)

// FlowResolution — какая политика выбрана и каким способом.
type FlowResolution struct {
	Type   AssistanceType `json:"assistance_type"`
	Config FlowConfig     `json:"config"`
	Match  MatchKind      `json:"match"`
	// Ambiguous: строка содержит и HEALTH, и MAWDY, выбрана HEALTH.
	Ambiguous bool `json:"ambiguous,omitempty"`
}

// ResolveFlow нормализует incident_type: HEALTH в строке -> HEALTH, затем MAWDY -> ROADSIDE,
// затем точное совпадение с ключом таблицы, иначе ROADSIDE.
func (t *Tables) ResolveFlow(incidentType string) FlowResolution {
	s := strings.ToUpper(strings.TrimSpace(incidentType))
	hasHealth := strings.Contains(s, "HEALTH")
	hasMawdy := strings.Contains(s, "MAWDY")

	switch {
	case hasHealth:
		return t.resolution(AssistHealth, MatchSubstring, hasMawdy)
	case hasMawdy:
		return t.resolution(AssistRoadside, MatchSubstring, false)
	}
	if _, ok := t.Flows[AssistanceType(s)]; ok {
		return t.resolution(AssistanceType(s), MatchExact, false)
	}
	return t.resolution(AssistRoadside, MatchDefault, false)
}

func (t *Tables) resolution(at AssistanceType, m MatchKind, ambiguous bool) FlowResolution {
	cfg, ok := t.Flows[at]
	if !ok {
		at, cfg = AssistRoadside, t.Flows[AssistRoadside]
	}
	return FlowResolution{Type: at, Config: cfg, Match: m, Ambiguous: ambiguous}
}
