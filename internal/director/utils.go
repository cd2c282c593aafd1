package director

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// GenerateScenarioPath creates a timestamped scenario filename in dir
func GenerateScenarioPath(dir string, now time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("scenario_%s.yaml", now.Format("2006-01-02_15-04-05")))
}

// FindLatestScenario finds the most recently modified scenario file in dir
func FindLatestScenario(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read scenarios directory: %w", err)
	}

	type candidate struct {
		path string
		mod  time.Time
	}
	var scenarios []candidate
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "scenario_") || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		scenarios = append(scenarios, candidate{filepath.Join(dir, entry.Name()), info.ModTime()})
	}

	if len(scenarios) == 0 {
		return "", fmt.Errorf("no scenario files found in %s", dir)
	}

	// newest first
	sort.Slice(scenarios, func(i, j int) bool { return scenarios[i].mod.After(scenarios[j].mod) })
	return scenarios[0].path, nil
}
