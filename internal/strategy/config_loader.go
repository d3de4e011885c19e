package strategy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is one strategy entry in the YAML parameter file.
type Config struct {
	ID     string `yaml:"id"`
	Params Params `yaml:"params"`
}

// ConfigFile is the top-level YAML structure.
type ConfigFile struct {
	Strategies []Config `yaml:"strategies"`
}

// LoadConfig reads per-strategy parameter overrides from a YAML file and
// returns them keyed by strategy id. A missing file is not an error; the
// defaults apply.
func LoadConfig(path string) (map[string]Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Params{}, nil
		}
		return nil, err
	}

	var file ConfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	out := make(map[string]Params, len(file.Strategies))
	for _, cfg := range file.Strategies {
		if _, err := New(cfg.ID, cfg.Params); err != nil {
			return nil, err
		}
		out[cfg.ID] = cfg.Params
	}
	return out, nil
}
