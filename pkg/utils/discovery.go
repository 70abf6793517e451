package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/picogrid/skyguard-c2/pkg/logger"
	"github.com/picogrid/skyguard-c2/pkg/simulation"
)

// DescriptorFile is the file name that marks a simulation directory
const DescriptorFile = "simulation.yaml"

// SimulationInfo contains information about a discovered simulation
type SimulationInfo struct {
	Path   string
	Config simulation.SimulationConfig
}

// DiscoverSimulations finds every simulation descriptor under <project root>/cmd
func DiscoverSimulations() ([]SimulationInfo, error) {
	root, err := FindProjectRoot()
	if err != nil {
		return nil, err
	}
	return DiscoverSimulationsIn(filepath.Join(root, "cmd"))
}

// DiscoverSimulationsIn walks dir for descriptors. Unreadable descriptors are
// logged and skipped. Results are sorted by name.
func DiscoverSimulationsIn(dir string) ([]SimulationInfo, error) {
	var simulations []SimulationInfo

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != DescriptorFile {
			return nil
		}

		info, err := LoadSimulationConfig(path)
		if err != nil {
			logger.Warnf("Skipping %s: %v", path, err)
			return nil
		}
		simulations = append(simulations, *info)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan for simulations: %w", err)
	}

	slices.SortFunc(simulations, func(a, b SimulationInfo) int {
		return strings.Compare(a.Config.Name, b.Config.Name)
	})
	return simulations, nil
}

// FindSimulation returns the discovered simulation with the given descriptor name
func FindSimulation(simulations []SimulationInfo, name string) (SimulationInfo, bool) {
	for _, s := range simulations {
		if strings.EqualFold(s.Config.Name, name) {
			return s, true
		}
	}
	return SimulationInfo{}, false
}

// LoadSimulationConfig reads one simulation.yaml
func LoadSimulationConfig(path string) (*SimulationInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read simulation config: %w", err)
	}

	var config simulation.SimulationConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse simulation config: %w", err)
	}
	if config.Name == "" {
		return nil, errors.New("simulation config has no name")
	}

	return &SimulationInfo{
		Path:   filepath.Dir(path),
		Config: config,
	}, nil
}

// FindProjectRoot walks up from the working directory to the nearest go.mod
func FindProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("could not find project root (no go.mod found)")
		}
		dir = parent
	}
}
