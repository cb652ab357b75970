package bunstore

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"chairbook/internal/domain"
)

//go:embed seed_catalog.yaml
var seedCatalogYAML []byte

type seedFile struct {
	Services []domain.Service `yaml:"services"`
}

// SeedCatalog parses the built-in catalog. Every entry is active.
func SeedCatalog() ([]domain.Service, error) {
	var f seedFile
	if err := yaml.Unmarshal(seedCatalogYAML, &f); err != nil {
		return nil, fmt.Errorf("parse seed catalog: %w", err)
	}
	seen := make(map[string]struct{}, len(f.Services))
	for i := range f.Services {
		s := &f.Services[i]
		if !domain.ValidServiceID(s.ID) || s.Name == "" || s.PriceMinorUnits < 0 || s.DurationMinutes <= 0 {
			return nil, fmt.Errorf("seed catalog entry %d is invalid", i)
		}
		if _, dup := seen[s.ID]; dup {
			return nil, fmt.Errorf("seed catalog id %q is duplicated", s.ID)
		}
		seen[s.ID] = struct{}{}
		s.Active = true
	}
	return f.Services, nil
}
