// Package forms анализирует структурированные формы заявок: полнота и согласованность полей.
package forms

import "assist-bot/api/internal/evidence"

type FieldKind string

const (
	KindText    FieldKind = "text"
	KindPhone   FieldKind = "phone"
	KindDate    FieldKind = "date"
	KindPlate   FieldKind = "plate"
	KindPolicy  FieldKind = "policy"
	KindOptions FieldKind = "options"
)

type FieldDefinition struct {
	Name      string    `json:"name"`
	Label     string    `json:"label"`
	Kind      FieldKind `json:"kind"`
	Required  bool      `json:"required,omitempty"`
	MinLength int       `json:"min_length,omitempty"`
	Options   []string  `json:"options,omitempty"`
	// Прошедшие даты: дата инцидента не может быть в будущем.
	PastOnly bool `json:"past_only,omitempty"`
}

type Template struct {
	FormType evidence.FormType `json:"form_type"`
	Fields   []FieldDefinition `json:"fields"`
}

func DefaultTemplates() map[evidence.FormType]Template {
	return map[evidence.FormType]Template{
		evidence.FormHealthClaim: {
			FormType: evidence.FormHealthClaim,
			Fields: []FieldDefinition{
				{Name: "patient_name", Label: "Patient name", Kind: KindText, Required: true, MinLength: 3},
				{Name: "id_number", Label: "ID number", Kind: KindText, Required: true, MinLength: 5},
				{Name: "phone", Label: "Contact phone", Kind: KindPhone, Required: true},
				{Name: "incident_date", Label: "Date of incident", Kind: KindDate, Required: true, PastOnly: true},
				{Name: "symptoms", Label: "Symptoms", Kind: KindText, Required: true, MinLength: 10},
				{Name: "hospital", Label: "Hospital or clinic", Kind: KindText},
				{Name: "policy_number", Label: "Policy number", Kind: KindPolicy},
			},
		},
		evidence.FormRoadsideReport: {
			FormType: evidence.FormRoadsideReport,
			Fields: []FieldDefinition{
				{Name: "driver_name", Label: "Driver name", Kind: KindText, Required: true, MinLength: 3},
				{Name: "phone", Label: "Contact phone", Kind: KindPhone, Required: true},
				{Name: "plate", Label: "License plate", Kind: KindPlate, Required: true},
				{Name: "location", Label: "Location", Kind: KindText, Required: true, MinLength: 5},
				{Name: "incident_date", Label: "Date of incident", Kind: KindDate, Required: true, PastOnly: true},
				{Name: "problem_description", Label: "What happened", Kind: KindText, Required: true, MinLength: 10},
				{Name: "vehicle_brand", Label: "Vehicle brand", Kind: KindText},
				{Name: "vehicle_color", Label: "Vehicle color", Kind: KindText},
			},
		},
		evidence.FormVehicleDamage: {
			FormType: evidence.FormVehicleDamage,
			Fields: []FieldDefinition{
				{Name: "driver_name", Label: "Driver name", Kind: KindText, Required: true, MinLength: 3},
				{Name: "phone", Label: "Contact phone", Kind: KindPhone, Required: true},
				{Name: "plate", Label: "License plate", Kind: KindPlate, Required: true},
				{Name: "policy_number", Label: "Policy number", Kind: KindPolicy, Required: true},
				{Name: "incident_date", Label: "Date of incident", Kind: KindDate, Required: true, PastOnly: true},
				{Name: "location", Label: "Location", Kind: KindText, Required: true, MinLength: 5},
				{Name: "damage_description", Label: "Damage description", Kind: KindText, Required: true, MinLength: 10},
				{Name: "third_party_involved", Label: "Third party involved", Kind: KindOptions, Options: []string{"yes", "no"}},
			},
		},
	}
}
