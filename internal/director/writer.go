package director

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// WriteScenario writes a scenario to a YAML file
func WriteScenario(scenario *Scenario, path string) error {
	data, err := yaml.Marshal(scenario)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ReadScenario reads a scenario from a YAML file
func ReadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if scenario.Version != scenarioVersion {
		return nil, fmt.Errorf("%s: unsupported scenario version %q", path, scenario.Version)
	}
	for _, plan := range scenario.Clips {
		for _, b := range plan.Zoom {
			if err := b.Validate(); err != nil {
				return nil, fmt.Errorf("%s: clip %s: %w", path, plan.ClipID, err)
			}
		}
	}
	return &scenario, nil
}
