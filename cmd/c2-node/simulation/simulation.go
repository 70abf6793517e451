package simulation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/picogrid/skyguard-c2/cmd/c2-node/config"
	"github.com/picogrid/skyguard-c2/cmd/c2-node/controllers"
	"github.com/picogrid/skyguard-c2/cmd/c2-node/core"
	"github.com/picogrid/skyguard-c2/cmd/c2-node/reporting"
	"github.com/picogrid/skyguard-c2/pkg/gateway"
	"github.com/picogrid/skyguard-c2/pkg/logger"
	"github.com/picogrid/skyguard-c2/pkg/simulation"
)

// Name is the registry and descriptor name of the node
const Name = "C2 Node"

// ParamConfigPath selects the node configuration file; every other parameter
// is passed to config.MergeWithCLIOverrides
const ParamConfigPath = "config_path"

// C2NodeSimulation runs the C2 loop: simulated radar, threat ranking and the
// UDP link to the fire-control peer
type C2NodeSimulation struct {
	config *config.NodeConfig

	// Core systems
	radar     *core.RadarSimulator
	evaluator *core.ThreatEvaluator
	channel   *gateway.Channel

	coordinator *controllers.Coordinator

	// Reporting
	simLogger *reporting.SimulationLogger
	recorder  *reporting.Recorder

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewC2NodeSimulation creates an unconfigured node
func NewC2NodeSimulation() simulation.Simulation {
	return &C2NodeSimulation{}
}

// Name returns the simulation name
func (s *C2NodeSimulation) Name() string {
	return Name
}

// Description returns the simulation description
func (s *C2NodeSimulation) Description() string {
	return "Counter-UAS C2 node: ranks simulated radar tracks and assigns the top threat to a fire-control peer over UDP"
}

// Configure loads the node configuration and applies params as overrides
func (s *C2NodeSimulation) Configure(params map[string]interface{}) error {
	logger.Info("Configuring C2 node...")

	path, _ := params[ParamConfigPath].(string)
	overrides := make(map[string]interface{}, len(params))
	for k, v := range params {
		if k != ParamConfigPath {
			overrides[k] = v
		}
	}

	cfg, err := config.LoadConfigWithOverrides(path, overrides)
	if err != nil {
		return err
	}
	if err := applyLogging(cfg.Logging); err != nil {
		return err
	}

	s.config = cfg
	logger.Infof("Configuration: %s scenario, %d targets, %v cycle, peer %s:%d",
		cfg.Scenario.Type, cfg.Scenario.TargetCount, cfg.Simulation.CycleInterval,
		cfg.Network.PeerHost, cfg.Network.SendPort)
	logger.Debug(cfg.String())
	return nil
}

func applyLogging(cfg config.LoggingConfig) error {
	if cfg.Level != "" {
		logger.SetLevel(logger.ParseLevel(cfg.Level))
	}
	if cfg.NoColor {
		logger.SetNoColor(true)
	}
	if cfg.File != "" {
		if err := logger.SetLogFile(cfg.File); err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
	}
	return nil
}

// Run builds the node and blocks until ctx is cancelled, Stop is called or a
// configured bound is reached
func (s *C2NodeSimulation) Run(ctx context.Context) error {
	if s.config == nil {
		if err := s.Configure(nil); err != nil {
			return err
		}
	}
	cfg := s.config

	if err := s.setup(); err != nil {
		s.teardown()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	logger.Successf("C2 node running | run %s | assignments -> %s | status <- %s",
		s.simLogger.RunID(), s.channel.SendAddr(), s.channel.ReceiveAddr())

	runErr := s.coordinator.Run(runCtx)

	totals := s.coordinator.Totals()
	logger.Infof("C2 node stopped after %d cycles", totals.Cycles)
	s.finish(cfg, totals)
	s.teardown()

	return runErr
}

// setup creates every component from the loaded configuration
func (s *C2NodeSimulation) setup() error {
	cfg := s.config

	scenarioType, scenarioCfg, err := cfg.ScenarioConfig()
	if err != nil {
		return err
	}

	var engineOpts []core.EngineOption
	if cfg.Simulation.Seed != 0 {
		engineOpts = append(engineOpts, core.WithSeed(cfg.Simulation.Seed))
	}
	s.radar = core.NewRadarSimulator(core.NewScenarioEngine(engineOpts...))
	effective := s.radar.SetScenario(scenarioType, scenarioCfg)
	if effective.TargetCount != scenarioCfg.TargetCount {
		logger.Warnf("Target count %d adjusted to %d for %s scenario",
			scenarioCfg.TargetCount, effective.TargetCount, scenarioType)
	}
	s.evaluator = core.NewThreatEvaluator()

	s.channel = gateway.New(
		gateway.WithSendHost(cfg.Network.PeerHost),
		gateway.WithPollWindow(cfg.Network.PollWindow),
	)
	if err := s.channel.Initialize(cfg.Network.SendPort, cfg.Network.ReceivePort); err != nil {
		return fmt.Errorf("initialize fire-control link: %w", err)
	}

	s.simLogger = reporting.NewSimulationLogger("")
	reporters := []controllers.Reporter{s.simLogger}

	dashboardEvery := cfg.Engagement.DashboardEvery
	if cfg.Logging.Verbose {
		dashboardEvery = 1
	}
	if dashboardEvery > 0 {
		_, noColor := logger.Console()
		reporters = append(reporters, reporting.NewDashboard(dashboardEvery, nil, noColor, s.evaluator))
	}

	if cfg.Recording.Enabled {
		err := logger.WithSpinner("Opening recorder "+cfg.Recording.DatabasePath, func() error {
			rec, err := reporting.OpenRecorder(cfg.Recording.DatabasePath, s.simLogger.RunID(), scenarioType.String())
			s.recorder = rec
			return err
		})
		if err != nil {
			return err
		}
		reporters = append(reporters, s.recorder)
	}

	s.coordinator = controllers.New(
		cfg.CoordinatorConfig(),
		s.radar,
		s.evaluator,
		s.channel,
		controllers.WithReporter(reporting.NewMulti(reporters...)),
	)
	return nil
}

// finish writes the summary, the recorder totals and the after action report
func (s *C2NodeSimulation) finish(cfg *config.NodeConfig, totals controllers.Totals) {
	w, _ := logger.Console()
	s.simLogger.PrintSummary(w)

	if totals.ReporterPanics > 0 {
		logger.Warnf("%d reporter panics were suppressed", totals.ReporterPanics)
	}

	if s.recorder != nil {
		if err := s.recorder.Finish(totals); err != nil {
			logger.Errorf("Failed to store run totals: %v", err)
		}
		if err := s.recorder.Err(); err != nil {
			logger.Warnf("Recording incomplete: %v", err)
		}
	}

	if !cfg.Recording.GenerateReport {
		return
	}
	generator := reporting.NewAARGenerator(s.simLogger, reporting.AARConfig{
		OutputDir:     cfg.Recording.ReportPath,
		Format:        cfg.Recording.ReportFormat,
		CycleInterval: cfg.Simulation.CycleInterval,
		Settings:      reportSettings(cfg),
	})
	if _, err := generator.SaveAAR(generator.GenerateAAR(totals)); err != nil {
		logger.Errorf("Failed to save after action report: %v", err)
	}
}

// teardown releases sockets and the database; safe to call more than once
func (s *C2NodeSimulation) teardown() {
	if s.channel != nil {
		if err := s.channel.Shutdown(); err != nil {
			logger.Warnf("Channel shutdown: %v", err)
		}
	}
	if s.recorder != nil {
		if err := s.recorder.Close(); err != nil {
			logger.Warnf("Recorder close: %v", err)
		}
	}
}

// Stop ends a running loop at the next cycle boundary
func (s *C2NodeSimulation) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

func reportSettings(cfg *config.NodeConfig) map[string]interface{} {
	return map[string]interface{}{
		"scenario":         cfg.Scenario.Type,
		"target_count":     cfg.Scenario.TargetCount,
		"cycle_interval":   cfg.Simulation.CycleInterval.String(),
		"fixed_dt":         cfg.Simulation.FixedDtS,
		"seed":             cfg.Simulation.Seed,
		"engage_threshold": cfg.Engagement.Threshold,
		"peer":             fmt.Sprintf("%s:%d", cfg.Network.PeerHost, cfg.Network.SendPort),
		"receive_port":     cfg.Network.ReceivePort,
		"duration":         cfg.Simulation.Duration.Round(time.Millisecond).String(),
	}
}

func init() {
	err := simulation.DefaultRegistry.Register(Name, NewC2NodeSimulation)
	if err != nil {
		logger.Errorf("Failed to register C2 node simulation: %v", err)
		return
	}
}
