package evidence

// Tables — таблицы правил, манифеста и политик. Собираются один раз при старте
// (DefaultTables + опциональный YAML) и дальше только читаются.
type Tables struct {
	Rules    map[DocumentType]ValidationRule
	Manifest map[AssistanceType][]ManifestEntry
	Flows    map[AssistanceType]FlowConfig
}

func DefaultTables() *Tables {
	return &Tables{
		Rules:    defaultRules(),
		Manifest: defaultManifest(),
		Flows:    defaultFlows(),
	}
}

// Merge накладывает непустые секции override поверх t (по ключам).
func (t *Tables) Merge(o *Tables) {
	if o == nil {
		return
	}
	for k, v := range o.Rules {
		t.Rules[k] = v
	}
	for k, v := range o.Manifest {
		t.Manifest[k] = v
	}
	for k, v := range o.Flows {
		t.Flows[k] = v
	}
}
