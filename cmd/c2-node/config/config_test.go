package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/picogrid/skyguard-c2/cmd/c2-node/core"
)

func TestLoadConfig(t *testing.T) {
	config, err := LoadConfig("../config.yaml")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.Simulation.Name != "c2-node" {
		t.Errorf("Expected simulation name 'c2-node', got '%s'", config.Simulation.Name)
	}

	if config.Simulation.CycleInterval != 100*time.Millisecond {
		t.Errorf("Expected cycle interval 100ms, got %v", config.Simulation.CycleInterval)
	}

	if config.Scenario.Type != "swarm" {
		t.Errorf("Expected scenario 'swarm', got '%s'", config.Scenario.Type)
	}

	if config.Scenario.TargetCount != 5 {
		t.Errorf("Expected 5 targets, got %d", config.Scenario.TargetCount)
	}

	if config.Scenario.DetectionZoneRadiusM != 15000 {
		t.Errorf("Expected detection zone 15000m, got %f", config.Scenario.DetectionZoneRadiusM)
	}

	if config.Network.SendPort != 8888 || config.Network.ReceivePort != 8889 {
		t.Errorf("Expected ports 8888/8889, got %d/%d", config.Network.SendPort, config.Network.ReceivePort)
	}

	if config.Network.PollWindow != time.Millisecond {
		t.Errorf("Expected poll window 1ms, got %v", config.Network.PollWindow)
	}

	if config.Engagement.Threshold != 0.5 {
		t.Errorf("Expected threshold 0.5, got %f", config.Engagement.Threshold)
	}
}

func TestLoadTOMLConfig(t *testing.T) {
	config, err := LoadConfig("../scenarios/saturation.toml")
	if err != nil {
		t.Fatalf("Failed to load TOML config: %v", err)
	}

	if config.Scenario.Type != "saturation" {
		t.Errorf("Expected scenario 'saturation', got '%s'", config.Scenario.Type)
	}

	if config.Simulation.CycleInterval != 50*time.Millisecond {
		t.Errorf("Expected cycle interval 50ms, got %v", config.Simulation.CycleInterval)
	}

	if config.Simulation.Seed != 7 {
		t.Errorf("Expected seed 7, got %d", config.Simulation.Seed)
	}

	if config.Recording.ReportFormat != "markdown" {
		t.Errorf("Expected markdown report, got %s", config.Recording.ReportFormat)
	}

	// Sections absent from the file keep defaults
	if config.Network.SendPort != 8888 {
		t.Errorf("Expected default send port 8888, got %d", config.Network.SendPort)
	}
}

func TestPartialYAMLKeepsDefaults(t *testing.T) {
	config, err := LoadConfig("../scenarios/single_target.yaml")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.Scenario.Type != "single_target" {
		t.Errorf("Expected single_target, got %s", config.Scenario.Type)
	}

	if config.Scenario.MaxRangeM != 10000 {
		t.Errorf("Expected default max range 10000, got %f", config.Scenario.MaxRangeM)
	}

	if !config.Logging.Verbose {
		t.Error("Expected verbose logging")
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig("does-not-exist.yaml"); err == nil {
		t.Error("Expected error for missing file")
	}

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	cfg := GetDefaultConfig()
	if err := SaveConfig(cfg, filepath.Join(dir, "ok.yaml")); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	if err := SaveConfig(cfg, bad); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	if _, err := LoadConfig(bad); err == nil {
		t.Error("Expected error for unsupported extension")
	}
}

func TestGetDefaultConfig(t *testing.T) {
	config := GetDefaultConfig()

	if err := config.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}

	scenarioType, scenario, err := config.ScenarioConfig()
	if err != nil {
		t.Fatalf("ScenarioConfig failed: %v", err)
	}

	if scenarioType != core.ScenarioSwarm {
		t.Errorf("Expected swarm scenario, got %v", scenarioType)
	}

	if scenario.MinVelocityMs != 50 || scenario.MaxVelocityMs != 300 {
		t.Errorf("Unexpected velocity bounds %f-%f", scenario.MinVelocityMs, scenario.MaxVelocityMs)
	}

	coordinator := config.CoordinatorConfig()
	if coordinator.CycleInterval != 100*time.Millisecond || coordinator.EngageThreshold != 0.5 {
		t.Errorf("Unexpected coordinator config %+v", coordinator)
	}

	if !strings.Contains(config.String(), "Assignments: 127.0.0.1:8888") {
		t.Errorf("String() missing network section:\n%s", config.String())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*NodeConfig)
	}{
		{"empty name", func(c *NodeConfig) { c.Simulation.Name = "" }},
		{"zero interval", func(c *NodeConfig) { c.Simulation.CycleInterval = 0 }},
		{"negative fixed dt", func(c *NodeConfig) { c.Simulation.FixedDtS = -1 }},
		{"unknown scenario", func(c *NodeConfig) { c.Scenario.Type = "blizzard" }},
		{"inverted range", func(c *NodeConfig) { c.Scenario.MinRangeM, c.Scenario.MaxRangeM = 9000, 1000 }},
		{"inverted velocity", func(c *NodeConfig) { c.Scenario.MinVelocityMs = 400 }},
		{"inverted elevation", func(c *NodeConfig) { c.Scenario.MinElevationRad = 1 }},
		{"zero zone", func(c *NodeConfig) { c.Scenario.DetectionZoneRadiusM = 0 }},
		{"send port", func(c *NodeConfig) { c.Network.SendPort = 0 }},
		{"receive port", func(c *NodeConfig) { c.Network.ReceivePort = 70000 }},
		{"log level", func(c *NodeConfig) { c.Logging.Level = "loud" }},
		{"report format", func(c *NodeConfig) { c.Recording.ReportFormat = "pdf" }},
		{"recording without db", func(c *NodeConfig) { c.Recording.Enabled = true; c.Recording.DatabasePath = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := GetDefaultConfig()
			tt.mutate(config)
			if err := config.Validate(); err == nil {
				t.Errorf("Expected validation error")
			}
		})
	}
}

func TestMergeWithCLIOverrides(t *testing.T) {
	config := GetDefaultConfig()

	overrides := map[string]interface{}{
		"scenario":         "saturation",
		"target_count":     15,
		"cycle_interval":   50 * time.Millisecond,
		"duration":         2 * time.Minute,
		"send_port":        9999,
		"engage_threshold": 0.75,
		"log_level":        "debug",
		"record":           true,
		"report_format":    "markdown",
		"seed":             42,
		"unknown_key":      "ignored",
	}

	MergeWithCLIOverrides(config, overrides)

	if config.Scenario.Type != "saturation" {
		t.Errorf("Expected scenario override, got %s", config.Scenario.Type)
	}
	if config.Scenario.TargetCount != 15 {
		t.Errorf("Expected 15 targets, got %d", config.Scenario.TargetCount)
	}
	if config.Simulation.CycleInterval != 50*time.Millisecond {
		t.Errorf("Expected 50ms interval, got %v", config.Simulation.CycleInterval)
	}
	if config.Simulation.Duration != 2*time.Minute {
		t.Errorf("Expected 2m duration, got %v", config.Simulation.Duration)
	}
	if config.Network.SendPort != 9999 {
		t.Errorf("Expected send port 9999, got %d", config.Network.SendPort)
	}
	if config.Engagement.Threshold != 0.75 {
		t.Errorf("Expected threshold 0.75, got %f", config.Engagement.Threshold)
	}
	if config.Logging.Level != "debug" || !config.Recording.Enabled || config.Recording.ReportFormat != "markdown" {
		t.Errorf("Unexpected logging/recording overrides: %+v %+v", config.Logging, config.Recording)
	}
	if config.Simulation.Seed != 42 {
		t.Errorf("Expected seed 42, got %d", config.Simulation.Seed)
	}
}

func TestInvalidCLIOverridesIgnored(t *testing.T) {
	config := GetDefaultConfig()

	MergeWithCLIOverrides(config, map[string]interface{}{
		"target_count":   -3,
		"send_port":      70000,
		"cycle_interval": "fast",
		"log_level":      "loud",
	})

	if config.Scenario.TargetCount != 5 {
		t.Errorf("Expected target count unchanged, got %d", config.Scenario.TargetCount)
	}
	if config.Network.SendPort != 8888 {
		t.Errorf("Expected send port unchanged, got %d", config.Network.SendPort)
	}
	if config.Simulation.CycleInterval != 100*time.Millisecond {
		t.Errorf("Expected cycle interval unchanged, got %v", config.Simulation.CycleInterval)
	}
	if config.Logging.Level != "" {
		t.Errorf("Expected log level unchanged, got %s", config.Logging.Level)
	}
}

func TestMergeWithEnvironment(t *testing.T) {
	t.Setenv("SKYGUARD_SCENARIO", "single_target")
	t.Setenv("SKYGUARD_SEND_PORT", "7777")
	t.Setenv("SKYGUARD_CYCLE_INTERVAL", "250ms")
	t.Setenv("SKYGUARD_ENGAGE_THRESHOLD", "0.9")
	t.Setenv("SKYGUARD_RECORD", "true")

	config := GetDefaultConfig()
	if err := MergeWithEnvironment(config); err != nil {
		t.Fatalf("MergeWithEnvironment failed: %v", err)
	}

	if config.Scenario.Type != "single_target" {
		t.Errorf("Expected scenario from env, got %s", config.Scenario.Type)
	}
	if config.Network.SendPort != 7777 {
		t.Errorf("Expected send port 7777, got %d", config.Network.SendPort)
	}
	if config.Simulation.CycleInterval != 250*time.Millisecond {
		t.Errorf("Expected 250ms, got %v", config.Simulation.CycleInterval)
	}
	if config.Engagement.Threshold != 0.9 {
		t.Errorf("Expected threshold 0.9, got %f", config.Engagement.Threshold)
	}
	if !config.Recording.Enabled {
		t.Error("Expected recording enabled from env")
	}
	if config.Network.ReceivePort != 8889 {
		t.Errorf("Unset variables must keep defaults, got receive port %d", config.Network.ReceivePort)
	}

	t.Setenv("SKYGUARD_SEND_PORT", "not-a-port")
	if err := MergeWithEnvironment(GetDefaultConfig()); err == nil {
		t.Error("Expected error for malformed env value")
	}
}

func TestLoadConfigWithOverrides(t *testing.T) {
	t.Setenv("SKYGUARD_TARGET_COUNT", "8")

	config, err := LoadConfigWithOverrides("../config.yaml", map[string]interface{}{"scenario": "saturation"})
	if err != nil {
		t.Fatalf("LoadConfigWithOverrides failed: %v", err)
	}

	if config.Scenario.TargetCount != 8 {
		t.Errorf("Expected env target count 8, got %d", config.Scenario.TargetCount)
	}
	if config.Scenario.Type != "saturation" {
		t.Errorf("Expected CLI scenario override, got %s", config.Scenario.Type)
	}

	if _, err := LoadConfigWithOverrides("../config.yaml", map[string]interface{}{"scenario": "blizzard"}); err == nil {
		t.Error("Expected validation error after invalid override")
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := GetDefaultConfig()
	want.Scenario.Type = "saturation"
	want.Simulation.Duration = 90 * time.Second

	for _, name := range []string{"node.yaml", "node.toml"} {
		path := filepath.Join(dir, name)
		if err := SaveConfig(want, path); err != nil {
			t.Fatalf("SaveConfig(%s) failed: %v", name, err)
		}

		loaded, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig(%s) failed: %v", name, err)
		}
		if *loaded != *want {
			t.Errorf("%s round trip mismatch:\nwant %+v\ngot  %+v", name, want, loaded)
		}
	}
}
