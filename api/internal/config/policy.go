package config

import (
	"errors"
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"assist-bot/api/internal/evidence"
)

// PolicyFile — YAML-переопределения таблиц. Каждая секция накладывается по ключам
// поверх встроенных значений.
type PolicyFile struct {
	Rules    map[evidence.DocumentType]evidence.ValidationRule    `yaml:"rules"`
	Manifest map[evidence.AssistanceType][]evidence.ManifestEntry `yaml:"manifest"`
	Flows    map[evidence.AssistanceType]evidence.FlowConfig      `yaml:"flows"`
}

// LoadPolicy возвращает встроенные таблицы с наложенным файлом path.
// Пустой путь или отсутствующий файл дают только встроенные таблицы.
func LoadPolicy(path string) (*evidence.Tables, error) {
	t := evidence.DefaultTables()
	if path == "" {
		return t, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("policy file %s not found, using built-in tables", path)
			return t, nil
		}
		return nil, fmt.Errorf("policy read: %w", err)
	}
	var f PolicyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("policy unmarshal: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("policy %s: %w", path, err)
	}
	t.Merge(&evidence.Tables{Rules: f.Rules, Manifest: f.Manifest, Flows: f.Flows})
	return t, nil
}

func (f *PolicyFile) Validate() error {
	var errs []error
	for dt, r := range f.Rules {
		if len(r.AllowedFormats) == 0 {
			errs = append(errs, fmt.Errorf("rules.%s: allowed_formats is empty", dt))
		}
		if r.MaxSizeMB <= 0 {
			errs = append(errs, fmt.Errorf("rules.%s: max_size_mb must be > 0", dt))
		}
	}
	for at, entries := range f.Manifest {
		for i, e := range entries {
			if e.Type == "" {
				errs = append(errs, fmt.Errorf("manifest.%s[%d]: type is empty", at, i))
			}
		}
	}
	for at, fc := range f.Flows {
		if err := fc.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("flows.%s: %w", at, err))
		}
	}
	return errors.Join(errs...)
}
