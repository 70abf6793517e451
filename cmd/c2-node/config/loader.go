package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/picogrid/skyguard-c2/pkg/logger"
)

// DefaultSearchPaths are tried in order when no config path is given
var DefaultSearchPaths = []string{
	"config.yaml",
	"c2-node.yaml",
	"c2-node.toml",
	filepath.Join("cmd", "c2-node", "config.yaml"),
}

// LoadConfig loads configuration from a YAML or TOML file, chosen by extension.
// Fields absent from the file keep their default values.
func LoadConfig(path string) (*NodeConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := GetDefaultConfig()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), config); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// LoadConfigOrDefault loads config from path, then the default search paths,
// then falls back to GetDefaultConfig. Environment overrides are always applied.
func LoadConfigOrDefault(path string) (*NodeConfig, error) {
	var config *NodeConfig

	if path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			logger.Warnf("Could not load config from %s: %v", path, err)
		} else {
			config = loaded
		}
	}

	if config == nil {
		for _, p := range DefaultSearchPaths {
			if _, err := os.Stat(p); err != nil {
				continue
			}
			loaded, err := LoadConfig(p)
			if err == nil {
				logger.Infof("Loaded config from: %s", p)
				config = loaded
				break
			}
		}
	}

	if config == nil {
		logger.Info("Using default configuration")
		config = GetDefaultConfig()
	}

	if err := MergeWithEnvironment(config); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveConfig writes configuration as YAML or TOML, chosen by extension
func SaveConfig(config *NodeConfig, path string) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var data []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(config); err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		data = buf.Bytes()
	default:
		out, err := yaml.Marshal(config)
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		data = out
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// MergeWithEnvironment applies SKYGUARD_* environment variables
func MergeWithEnvironment(config *NodeConfig) error {
	if err := env.Parse(config); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// MergeWithCLIOverrides applies parameters collected by the CLI. Values of the
// wrong type or outside their valid range are ignored.
func MergeWithCLIOverrides(config *NodeConfig, overrides map[string]interface{}) {
	for key, value := range overrides {
		switch key {
		case "scenario":
			if s, ok := value.(string); ok && s != "" {
				config.Scenario.Type = s
			}
		case "target_count":
			if n, ok := asInt(value); ok && n > 0 {
				config.Scenario.TargetCount = uint32(n)
			}
		case "detection_zone_radius_m":
			if f, ok := asFloat(value); ok && f > 0 {
				config.Scenario.DetectionZoneRadiusM = f
			}
		case "cycle_interval":
			if d, ok := value.(time.Duration); ok && d > 0 {
				config.Simulation.CycleInterval = d
			}
		case "fixed_dt":
			if f, ok := asFloat(value); ok && f >= 0 {
				config.Simulation.FixedDtS = f
			}
		case "duration":
			if d, ok := value.(time.Duration); ok && d >= 0 {
				config.Simulation.Duration = d
			}
		case "max_cycles":
			if n, ok := asInt(value); ok && n >= 0 {
				config.Simulation.MaxCycles = uint64(n)
			}
		case "seed":
			if n, ok := asInt(value); ok && n >= 0 {
				config.Simulation.Seed = uint64(n)
			}
		case "peer_host":
			if s, ok := value.(string); ok && s != "" {
				config.Network.PeerHost = s
			}
		case "send_port":
			if n, ok := asInt(value); ok && n > 0 && n <= 65535 {
				config.Network.SendPort = n
			}
		case "receive_port":
			if n, ok := asInt(value); ok && n >= 0 && n <= 65535 {
				config.Network.ReceivePort = n
			}
		case "engage_threshold":
			if f, ok := asFloat(value); ok {
				config.Engagement.Threshold = f
			}
		case "dashboard_every":
			if n, ok := asInt(value); ok && n >= 0 {
				config.Engagement.DashboardEvery = n
			}
		case "log_level":
			if s, ok := value.(string); ok {
				for _, valid := range validLogLevels {
					if s == valid {
						config.Logging.Level = s
						break
					}
				}
			}
		case "log_file":
			if s, ok := value.(string); ok {
				config.Logging.File = s
			}
		case "verbose":
			if b, ok := value.(bool); ok {
				config.Logging.Verbose = b
			}
		case "record":
			if b, ok := value.(bool); ok {
				config.Recording.Enabled = b
			}
		case "database_path":
			if s, ok := value.(string); ok && s != "" {
				config.Recording.DatabasePath = s
			}
		case "report_format":
			if s, ok := value.(string); ok {
				for _, valid := range validReportFormats {
					if s == valid {
						config.Recording.ReportFormat = s
						break
					}
				}
			}
		}
	}
}

// LoadConfigWithOverrides loads config and applies both environment and CLI overrides
func LoadConfigWithOverrides(path string, cliOverrides map[string]interface{}) (*NodeConfig, error) {
	config, err := LoadConfigOrDefault(path)
	if err != nil {
		return nil, err
	}

	if cliOverrides != nil {
		MergeWithCLIOverrides(config, cliOverrides)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed after overrides: %w", err)
	}
	return config, nil
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		return int(n), n == float64(int(n))
	default:
		return 0, false
	}
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
