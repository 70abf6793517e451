package config

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/picogrid/skyguard-c2/cmd/c2-node/controllers"
	"github.com/picogrid/skyguard-c2/cmd/c2-node/core"
	"github.com/picogrid/skyguard-c2/pkg/logger"
)

// NodeConfig holds the complete C2 node configuration
type NodeConfig struct {
	// Loop cadence and run bounds
	Simulation SimulationSettings `yaml:"simulation" toml:"simulation"`

	// Synthetic track population
	Scenario ScenarioSettings `yaml:"scenario" toml:"scenario"`

	// Fire-control peer link
	Network NetworkConfig `yaml:"network" toml:"network"`

	// Dispatch policy and periodic output
	Engagement EngagementConfig `yaml:"engagement" toml:"engagement"`

	Logging LoggingConfig `yaml:"logging" toml:"logging"`

	// Persistence and after-action output
	Recording RecordingConfig `yaml:"recording" toml:"recording"`
}

// SimulationSettings holds basic loop settings
type SimulationSettings struct {
	Name          string        `yaml:"name" toml:"name"`
	Description   string        `yaml:"description" toml:"description"`
	CycleInterval time.Duration `yaml:"cycle_interval" toml:"cycle_interval" env:"SKYGUARD_CYCLE_INTERVAL"`
	FixedDtS      float64       `yaml:"fixed_dt" toml:"fixed_dt" env:"SKYGUARD_FIXED_DT"`
	Duration      time.Duration `yaml:"duration" toml:"duration" env:"SKYGUARD_DURATION"`
	MaxCycles     uint64        `yaml:"max_cycles" toml:"max_cycles" env:"SKYGUARD_MAX_CYCLES"`
	Seed          uint64        `yaml:"seed" toml:"seed" env:"SKYGUARD_SEED"` // 0 = system entropy
}

// ScenarioSettings mirrors core.ScenarioConfig with a named type
type ScenarioSettings struct {
	Type                 string  `yaml:"type" toml:"type" env:"SKYGUARD_SCENARIO"`
	TargetCount          uint32  `yaml:"target_count" toml:"target_count" env:"SKYGUARD_TARGET_COUNT"`
	MinRangeM            float64 `yaml:"min_range_m" toml:"min_range_m"`
	MaxRangeM            float64 `yaml:"max_range_m" toml:"max_range_m"`
	MinVelocityMs        float64 `yaml:"min_velocity_ms" toml:"min_velocity_ms"`
	MaxVelocityMs        float64 `yaml:"max_velocity_ms" toml:"max_velocity_ms"`
	MinElevationRad      float64 `yaml:"min_elevation_rad" toml:"min_elevation_rad"`
	MaxElevationRad      float64 `yaml:"max_elevation_rad" toml:"max_elevation_rad"`
	DetectionZoneRadiusM float64 `yaml:"detection_zone_radius_m" toml:"detection_zone_radius_m" env:"SKYGUARD_DETECTION_ZONE_RADIUS_M"`
}

// NetworkConfig describes the UDP link to the fire-control peer
type NetworkConfig struct {
	PeerHost    string        `yaml:"peer_host" toml:"peer_host" env:"SKYGUARD_PEER_HOST"`
	SendPort    int           `yaml:"send_port" toml:"send_port" env:"SKYGUARD_SEND_PORT"`
	ReceivePort int           `yaml:"receive_port" toml:"receive_port" env:"SKYGUARD_RECEIVE_PORT"`
	PollWindow  time.Duration `yaml:"poll_window" toml:"poll_window"`
}

// EngagementConfig holds dispatch policy
type EngagementConfig struct {
	Threshold      float64 `yaml:"threshold" toml:"threshold" env:"SKYGUARD_ENGAGE_THRESHOLD"`
	SummaryEvery   int     `yaml:"summary_every" toml:"summary_every"`
	DashboardEvery int     `yaml:"dashboard_every" toml:"dashboard_every"`
}

// LoggingConfig controls console and file logging
type LoggingConfig struct {
	Level   string `yaml:"level" toml:"level" env:"SKYGUARD_LOG_LEVEL"` // empty keeps the process level
	File    string `yaml:"file" toml:"file" env:"SKYGUARD_LOG_FILE"`
	NoColor bool   `yaml:"no_color" toml:"no_color" env:"SKYGUARD_NO_COLOR"`
	Verbose bool   `yaml:"verbose" toml:"verbose"` // per-cycle track tables
}

// RecordingConfig controls the SQLite recorder and the run summary
type RecordingConfig struct {
	Enabled        bool   `yaml:"enabled" toml:"enabled" env:"SKYGUARD_RECORD"`
	DatabasePath   string `yaml:"database_path" toml:"database_path" env:"SKYGUARD_DATABASE_PATH"`
	GenerateReport bool   `yaml:"generate_report" toml:"generate_report"`
	ReportPath     string `yaml:"report_path" toml:"report_path" env:"SKYGUARD_REPORT_PATH"`
	ReportFormat   string `yaml:"report_format" toml:"report_format"` // json or markdown
}

var (
	validLogLevels     = []string{"debug", "info", "warn", "error"}
	validReportFormats = []string{"json", "markdown"}
)

// Validate checks if the configuration is valid
func (c *NodeConfig) Validate() error {
	if c.Simulation.Name == "" {
		return fmt.Errorf("simulation name is required")
	}
	if c.Simulation.CycleInterval <= 0 {
		return fmt.Errorf("cycle interval must be positive")
	}
	if c.Simulation.FixedDtS < 0 || math.IsNaN(c.Simulation.FixedDtS) {
		return fmt.Errorf("fixed dt must be zero or positive")
	}
	if c.Simulation.Duration < 0 {
		return fmt.Errorf("duration must not be negative")
	}

	if _, err := core.ParseScenarioType(c.Scenario.Type); err != nil {
		return err
	}
	if c.Scenario.MinRangeM > c.Scenario.MaxRangeM {
		return fmt.Errorf("scenario range min must not exceed max")
	}
	if c.Scenario.MinVelocityMs > c.Scenario.MaxVelocityMs {
		return fmt.Errorf("scenario velocity min must not exceed max")
	}
	if c.Scenario.MinElevationRad > c.Scenario.MaxElevationRad {
		return fmt.Errorf("scenario elevation min must not exceed max")
	}
	if c.Scenario.DetectionZoneRadiusM <= 0 {
		return fmt.Errorf("detection zone radius must be positive")
	}

	if c.Network.SendPort < 1 || c.Network.SendPort > 65535 {
		return fmt.Errorf("send port must be between 1 and 65535")
	}
	if c.Network.ReceivePort < 0 || c.Network.ReceivePort > 65535 {
		return fmt.Errorf("receive port must be between 0 and 65535")
	}

	if math.IsNaN(c.Engagement.Threshold) || math.IsInf(c.Engagement.Threshold, 0) {
		return fmt.Errorf("engagement threshold must be finite")
	}
	if c.Engagement.SummaryEvery < 0 || c.Engagement.DashboardEvery < 0 {
		return fmt.Errorf("summary and dashboard intervals must not be negative")
	}

	if c.Logging.Level != "" && !slices.Contains(validLogLevels, strings.ToLower(c.Logging.Level)) {
		return fmt.Errorf("log level must be one of %v", validLogLevels)
	}
	if c.Recording.GenerateReport && !slices.Contains(validReportFormats, c.Recording.ReportFormat) {
		return fmt.Errorf("report format must be one of %v", validReportFormats)
	}
	if c.Recording.Enabled && c.Recording.DatabasePath == "" {
		return fmt.Errorf("recording requires a database path")
	}

	return nil
}

// ScenarioConfig converts the scenario section for the engine
func (c *NodeConfig) ScenarioConfig() (core.ScenarioType, core.ScenarioConfig, error) {
	scenarioType, err := core.ParseScenarioType(c.Scenario.Type)
	if err != nil {
		return 0, core.ScenarioConfig{}, err
	}
	return scenarioType, core.ScenarioConfig{
		Type:                 scenarioType,
		TargetCount:          c.Scenario.TargetCount,
		MinRangeM:            c.Scenario.MinRangeM,
		MaxRangeM:            c.Scenario.MaxRangeM,
		MinVelocityMs:        c.Scenario.MinVelocityMs,
		MaxVelocityMs:        c.Scenario.MaxVelocityMs,
		MinElevationRad:      c.Scenario.MinElevationRad,
		MaxElevationRad:      c.Scenario.MaxElevationRad,
		DetectionZoneRadiusM: c.Scenario.DetectionZoneRadiusM,
	}, nil
}

// CoordinatorConfig converts loop settings for the coordinator
func (c *NodeConfig) CoordinatorConfig() controllers.Config {
	return controllers.Config{
		CycleInterval:   c.Simulation.CycleInterval,
		FixedDtS:        c.Simulation.FixedDtS,
		EngageThreshold: c.Engagement.Threshold,
		MaxCycles:       c.Simulation.MaxCycles,
		Duration:        c.Simulation.Duration,
		SummaryEvery:    c.Engagement.SummaryEvery,
	}
}

// LogLevel returns the parsed logging level, or the current global level when
// none is configured
func (c *NodeConfig) LogLevel() logger.Level {
	if c.Logging.Level == "" {
		return logger.GetLevel()
	}
	return logger.ParseLevel(c.Logging.Level)
}

// String returns a human-readable representation of the configuration
func (c *NodeConfig) String() string {
	return fmt.Sprintf(`Node Configuration:
  Name: %s
  Cycle Interval: %v
  Fixed dt: %g s
  Duration: %v
  Max Cycles: %d

Scenario:
  Type: %s
  Target Count: %d
  Range: %.0f-%.0f m
  Velocity: %.0f-%.0f m/s
  Elevation: %.2f-%.2f rad
  Detection Zone: %.0f m

Network:
  Assignments: %s:%d
  Status Port: %d

Engagement:
  Threshold: %.2f
  Summary Every: %d cycles
  Dashboard Every: %d cycles

Logging:
  Level: %s
  File: %s

Recording:
  Enabled: %t
  Database: %s
  Report: %t (%s)`,
		c.Simulation.Name,
		c.Simulation.CycleInterval,
		c.Simulation.FixedDtS,
		c.Simulation.Duration,
		c.Simulation.MaxCycles,
		c.Scenario.Type,
		c.Scenario.TargetCount,
		c.Scenario.MinRangeM,
		c.Scenario.MaxRangeM,
		c.Scenario.MinVelocityMs,
		c.Scenario.MaxVelocityMs,
		c.Scenario.MinElevationRad,
		c.Scenario.MaxElevationRad,
		c.Scenario.DetectionZoneRadiusM,
		c.Network.PeerHost,
		c.Network.SendPort,
		c.Network.ReceivePort,
		c.Engagement.Threshold,
		c.Engagement.SummaryEvery,
		c.Engagement.DashboardEvery,
		c.Logging.Level,
		c.Logging.File,
		c.Recording.Enabled,
		c.Recording.DatabasePath,
		c.Recording.GenerateReport,
		c.Recording.ReportFormat,
	)
}

// GetDefaultConfig returns the stock node configuration: a five-target swarm
// at 10 Hz talking to a peer on loopback
func GetDefaultConfig() *NodeConfig {
	scenario := core.DefaultScenarioConfig()
	return &NodeConfig{
		Simulation: SimulationSettings{
			Name:          "c2-node",
			Description:   "Counter-UAS command and control node",
			CycleInterval: 100 * time.Millisecond,
		},
		Scenario: ScenarioSettings{
			Type:                 core.ScenarioSwarm.String(),
			TargetCount:          5,
			MinRangeM:            scenario.MinRangeM,
			MaxRangeM:            scenario.MaxRangeM,
			MinVelocityMs:        scenario.MinVelocityMs,
			MaxVelocityMs:        scenario.MaxVelocityMs,
			MinElevationRad:      scenario.MinElevationRad,
			MaxElevationRad:      scenario.MaxElevationRad,
			DetectionZoneRadiusM: scenario.DetectionZoneRadiusM,
		},
		Network: NetworkConfig{
			PeerHost:    "127.0.0.1",
			SendPort:    8888,
			ReceivePort: 8889,
			PollWindow:  time.Millisecond,
		},
		Engagement: EngagementConfig{
			Threshold:      0.5,
			SummaryEvery:   100,
			DashboardEvery: 10,
		},
		Recording: RecordingConfig{
			DatabasePath:   "c2-node.db",
			GenerateReport: true,
			ReportPath:     "./reports/",
			ReportFormat:   "json",
		},
	}
}
