package simulation

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"time"
)

// Parameter types understood by the CLI
const (
	TypeInteger  = "integer"
	TypeFloat    = "float"
	TypeString   = "string"
	TypeDuration = "duration"
	TypeBoolean  = "boolean"
)

// SimulationConfig is the simulation.yaml descriptor shipped next to each simulation
type SimulationConfig struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Version     string      `yaml:"version"`
	Category    string      `yaml:"category"`
	Parameters  []Parameter `yaml:"parameters"`
}

// Parameter defines a configurable parameter for a simulation
type Parameter struct {
	Name        string      `yaml:"name"`
	Type        string      `yaml:"type"`
	Description string      `yaml:"description"`
	Default     interface{} `yaml:"default"`
	Required    bool        `yaml:"required"`
	Min         interface{} `yaml:"min,omitempty"`
	Max         interface{} `yaml:"max,omitempty"`
	Options     []string    `yaml:"options,omitempty"` // For string enums
}

// Defaults returns every parameter's default, coerced to its declared type
func (c SimulationConfig) Defaults() (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(c.Parameters))
	for _, p := range c.Parameters {
		if p.Default == nil {
			continue
		}
		v, err := p.Coerce(p.Default)
		if err != nil {
			return nil, fmt.Errorf("default for %s: %w", p.Name, err)
		}
		out[p.Name] = v
	}
	return out, nil
}

// Parameter returns the named parameter
func (c SimulationConfig) Parameter(name string) (Parameter, bool) {
	for _, p := range c.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// Coerce converts a YAML, environment or prompt value to the parameter's type
func (p Parameter) Coerce(v interface{}) (interface{}, error) {
	switch p.Type {
	case TypeInteger:
		switch val := v.(type) {
		case int:
			return val, nil
		case int64:
			return int(val), nil
		case float64:
			if val != math.Trunc(val) || math.IsInf(val, 0) {
				return nil, fmt.Errorf("%s must be a whole number, got %v", p.Name, val)
			}
			return int(val), nil
		case string:
			return strconv.Atoi(val)
		}
	case TypeFloat:
		switch val := v.(type) {
		case float64:
			return val, nil
		case int:
			return float64(val), nil
		case int64:
			return float64(val), nil
		case string:
			return strconv.ParseFloat(val, 64)
		}
	case TypeString:
		return fmt.Sprintf("%v", v), nil
	case TypeBoolean:
		switch val := v.(type) {
		case bool:
			return val, nil
		case string:
			return strconv.ParseBool(val)
		}
	case TypeDuration:
		switch val := v.(type) {
		case time.Duration:
			return val, nil
		case string:
			return time.ParseDuration(val)
		case int:
			return time.Duration(val) * time.Second, nil
		}
	default:
		return nil, fmt.Errorf("unsupported parameter type: %s", p.Type)
	}
	return nil, fmt.Errorf("cannot use %T as %s", v, p.Type)
}

// Check validates an already-coerced value against Min, Max and Options
func (p Parameter) Check(v interface{}) error {
	switch val := v.(type) {
	case int:
		return p.checkRange(float64(val))
	case float64:
		return p.checkRange(val)
	case string:
		if len(p.Options) > 0 && !slices.Contains(p.Options, val) {
			return fmt.Errorf("%s must be one of %v", p.Name, p.Options)
		}
	}
	return nil
}

func (p Parameter) checkRange(v float64) error {
	if p.Min != nil {
		if lo, err := toFloat(p.Min); err == nil && v < lo {
			return fmt.Errorf("%s must be at least %g", p.Name, lo)
		}
	}
	if p.Max != nil {
		if hi, err := toFloat(p.Max); err == nil && v > hi {
			return fmt.Errorf("%s must be at most %g", p.Name, hi)
		}
	}
	return nil
}

func toFloat(v interface{}) (float64, error) {
	switch val := v.(type) {
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case float64:
		return val, nil
	case string:
		return strconv.ParseFloat(val, 64)
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}
