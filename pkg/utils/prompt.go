package utils

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"

	"github.com/picogrid/skyguard-c2/pkg/simulation"
)

// Environment variables consulted while resolving parameters
const (
	EnvPrefix      = "SKYGUARD_"
	EnvSkipPrompts = EnvPrefix + "SKIP_PROMPTS"
)

// EnvKey returns the environment variable that overrides a parameter
func EnvKey(name string) string {
	return EnvPrefix + strings.ToUpper(name)
}

// SkipPrompts reports whether prompting is disabled through the environment
func SkipPrompts() bool {
	v := strings.ToLower(os.Getenv(EnvSkipPrompts))
	return v == "true" || v == "1" || v == "yes"
}

// ResolveParameters produces a value for every parameter. Values already in
// preset win, then SKYGUARD_<NAME> variables, then either an interactive prompt
// or the declared default.
func ResolveParameters(params []simulation.Parameter, preset map[string]interface{}, interactive bool) (map[string]interface{}, error) {
	result := make(map[string]interface{}, len(params))

	for _, param := range params {
		if v, ok := preset[param.Name]; ok {
			coerced, err := param.Coerce(v)
			if err != nil {
				return nil, fmt.Errorf("invalid %s: %w", param.Name, err)
			}
			if err := param.Check(coerced); err != nil {
				return nil, err
			}
			result[param.Name] = coerced
			continue
		}

		if envValue := os.Getenv(EnvKey(param.Name)); envValue != "" {
			parsed, err := param.Coerce(envValue)
			if err != nil {
				return nil, fmt.Errorf("invalid %s in %s: %w", param.Name, EnvKey(param.Name), err)
			}
			if !interactive {
				if err := param.Check(parsed); err != nil {
					return nil, err
				}
				result[param.Name] = parsed
				continue
			}
			param.Default = parsed
		}

		if !interactive {
			if param.Default == nil {
				if param.Required {
					return nil, fmt.Errorf("required parameter %s not provided and no default available", param.Name)
				}
				continue
			}
			v, err := param.Coerce(param.Default)
			if err != nil {
				return nil, fmt.Errorf("default for %s: %w", param.Name, err)
			}
			result[param.Name] = v
			continue
		}

		// Optional overrides without a default are only prompted when a blank
		// answer can mean "keep the configured value"; a yes/no cannot.
		if param.Default == nil && !param.Required && param.Type == simulation.TypeBoolean {
			continue
		}

		value, err := promptForParameter(param)
		if err != nil {
			return nil, fmt.Errorf("failed to get %s: %w", param.Name, err)
		}
		if value != nil {
			result[param.Name] = value
		}
	}

	return result, nil
}

// PromptForParameters asks for every parameter interactively
func PromptForParameters(params []simulation.Parameter) (map[string]interface{}, error) {
	return ResolveParameters(params, nil, !SkipPrompts())
}

// SelectSimulation asks the user to pick one of the discovered simulations
func SelectSimulation(simulations []SimulationInfo) (SimulationInfo, error) {
	if len(simulations) == 0 {
		return SimulationInfo{}, fmt.Errorf("no simulations found")
	}
	if len(simulations) == 1 {
		return simulations[0], nil
	}

	options := make([]string, len(simulations))
	for i, s := range simulations {
		options[i] = fmt.Sprintf("%s - %s", s.Config.Name, s.Config.Description)
	}

	var idx int
	if err := survey.AskOne(&survey.Select{Message: "Select a simulation:", Options: options}, &idx); err != nil {
		return SimulationInfo{}, err
	}
	return simulations[idx], nil
}

func promptForParameter(param simulation.Parameter) (interface{}, error) {
	defaultStr := ""
	if param.Default != nil {
		defaultStr = fmt.Sprintf("%v", param.Default)
	}

	switch param.Type {
	case simulation.TypeBoolean:
		def, _ := param.Coerce(param.Default)
		b, _ := def.(bool)
		var result bool
		err := survey.AskOne(&survey.Confirm{Message: param.Description, Default: b}, &result)
		return result, err

	case simulation.TypeString:
		if len(param.Options) > 0 && param.Default != nil {
			var result string
			err := survey.AskOne(&survey.Select{Message: param.Description, Options: param.Options, Default: defaultStr}, &result)
			return result, err
		}
	}

	message := param.Description
	if param.Type == simulation.TypeDuration {
		message += " (e.g., 5m, 1h30m, 30s)"
	}

	if param.Default == nil && !param.Required {
		message += " (blank to keep)"
	}

	var opts []survey.AskOpt
	if param.Required {
		opts = append(opts, survey.WithValidator(survey.Required))
	}
	opts = append(opts, survey.WithValidator(func(val interface{}) error {
		s, _ := val.(string)
		if s == "" {
			return nil
		}
		v, err := param.Coerce(s)
		if err != nil {
			return fmt.Errorf("invalid %s value: %w", param.Type, err)
		}
		return param.Check(v)
	}))

	var result string
	if err := survey.AskOne(&survey.Input{Message: message, Default: defaultStr}, &result, opts...); err != nil {
		return nil, err
	}
	if result == "" && !param.Required {
		return nil, nil
	}
	return param.Coerce(result)
}

// FormatValue renders a resolved parameter for display
func FormatValue(v interface{}) string {
	switch val := v.(type) {
	case time.Duration:
		return val.String()
	case float64:
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
