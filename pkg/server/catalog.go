package server

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/NicolasHaas/sosmeet/pkg/model"
)

// AlarmCodeYAML is one alarm code in a catalog file.
type AlarmCodeYAML struct {
	Title   string `yaml:"title"`
	Color   string `yaml:"color,omitempty"`
	Sound   string `yaml:"sound,omitempty"`
	Mode    string `yaml:"mode,omitempty"`
	Message string `yaml:"message,omitempty"`
}

// CatalogConfig is the top-level YAML for the codes seeded into new groups.
type CatalogConfig struct {
	AlarmCodes []AlarmCodeYAML `yaml:"alarm_codes"`
}

// LoadCatalogFromYAML reads a catalog file.
func LoadCatalogFromYAML(path string, v *AlarmValidator) ([]model.AlarmCodeSpec, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path from operator config
	if err != nil {
		return nil, fmt.Errorf("read alarm catalog: %w", err)
	}
	return ImportCatalogFromYAML(data, v)
}

// ImportCatalogFromYAML parses catalog YAML and runs every entry through v.
// An empty catalog is an error: every group needs at least one code.
func ImportCatalogFromYAML(data []byte, v *AlarmValidator) ([]model.AlarmCodeSpec, error) {
	var cfg CatalogConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse alarm catalog: %w", err)
	}
	if len(cfg.AlarmCodes) == 0 {
		return nil, fmt.Errorf("parse alarm catalog: no alarm_codes")
	}

	specs := make([]model.AlarmCodeSpec, 0, len(cfg.AlarmCodes))
	for i, c := range cfg.AlarmCodes {
		spec, err := v.Apply(model.AlarmCodeSpec{
			Title:       c.Title,
			ColorHex:    c.Color,
			SoundKey:    c.Sound,
			Mode:        model.AlarmMode(c.Mode),
			MessageText: c.Message,
		})
		if err != nil {
			return nil, fmt.Errorf("alarm catalog entry %d (%q): %w", i, c.Title, err)
		}
		specs = append(specs, spec)
	}

	slog.Info("imported alarm catalog from YAML", "count", len(specs))
	return specs, nil
}

// ExportCatalogYAML renders specs in the catalog file format.
func ExportCatalogYAML(specs []model.AlarmCodeSpec) ([]byte, error) {
	cfg := CatalogConfig{AlarmCodes: make([]AlarmCodeYAML, 0, len(specs))}
	for _, s := range specs {
		cfg.AlarmCodes = append(cfg.AlarmCodes, AlarmCodeYAML{
			Title:   s.Title,
			Color:   s.ColorHex,
			Sound:   s.SoundKey,
			Mode:    string(s.Mode),
			Message: s.MessageText,
		})
	}
	return yaml.Marshal(&cfg)
}
