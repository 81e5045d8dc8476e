package fixture

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/solar-monitor/internal/domain/plant"
)

// DefaultUpdateInterval is the background refresh period in seconds.
const DefaultUpdateInterval = 300

var (
	errEmptyFleet      = errors.New("fleet has no plants")
	errMissingPlantID  = errors.New("plant without id")
	errDuplicatePlant  = errors.New("duplicate plant id")
	errInvalidInterval = errors.New("update interval must be positive")
)

// Fleet is the YAML description of the simulated plants.
type Fleet struct {
	// UpdateInterval is the background refresh period in seconds.
	UpdateInterval int `yaml:"update_interval"`
	// Monitoring tells whether background refresh starts enabled.
	Monitoring bool `yaml:"monitoring"`
	// Plants lists the simulated plants.
	Plants []plant.Snapshot `yaml:"plants"`
}

// LoadFleet reads and validates a fleet file.
func LoadFleet(path string) (*Fleet, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read fleet: %w", err)
	}

	var fleet Fleet
	if err := yaml.Unmarshal(contents, &fleet); err != nil {
		return nil, fmt.Errorf("unmarshal fleet: %w", err)
	}

	if err := fleet.Validate(); err != nil {
		return nil, err
	}

	return &fleet, nil
}

// Validate checks plant IDs and fills defaults.
func (f *Fleet) Validate() error {
	if len(f.Plants) == 0 {
		return errEmptyFleet
	}

	if f.UpdateInterval == 0 {
		f.UpdateInterval = DefaultUpdateInterval
	}

	if f.UpdateInterval < 0 {
		return errInvalidInterval
	}

	seen := make(map[string]struct{}, len(f.Plants))

	for i, snapshot := range f.Plants {
		if snapshot.ID == "" {
			return fmt.Errorf("%w at position %d", errMissingPlantID, i)
		}

		if _, ok := seen[snapshot.ID]; ok {
			return fmt.Errorf("%w: %s", errDuplicatePlant, snapshot.ID)
		}

		seen[snapshot.ID] = struct{}{}
	}

	return nil
}
