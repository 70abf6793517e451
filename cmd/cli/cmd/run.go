package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/picogrid/skyguard-c2/pkg/logger"
	"github.com/picogrid/skyguard-c2/pkg/simulation"
	"github.com/picogrid/skyguard-c2/pkg/utils"

	// Import simulations to register them
	c2node "github.com/picogrid/skyguard-c2/cmd/c2-node/simulation"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation",
	Long: `Run a simulation interactively or with specified parameters.

Parameters are resolved in order: --params file, SKYGUARD_<NAME> environment
variables, then an interactive prompt (or the descriptor default when stdin is
not a terminal or SKYGUARD_SKIP_PROMPTS is set).`,
	RunE: runSimulation,
}

func init() {
	runCmd.Flags().StringP("simulation", "s", "", "simulation name to run (default: prompt, or "+c2node.Name+")")
	runCmd.Flags().StringP("params", "p", "", "parameters file (YAML)")
	runCmd.Flags().String("node-config", "", "C2 node configuration file, shorthand for config_path in --params")
	runCmd.Flags().Bool("no-prompt", false, "never prompt; use params, environment and defaults")
}

func runSimulation(cmd *cobra.Command, _ []string) error {
	interactive := isInteractive(cmd)

	simInfo, err := selectSimulation(cmd, interactive)
	if err != nil {
		return fmt.Errorf("failed to select simulation: %w", err)
	}

	sim, err := simulation.DefaultRegistry.Get(simInfo.Config.Name)
	if err != nil {
		return fmt.Errorf("failed to get simulation: %w", err)
	}

	preset, err := loadParams(cmd)
	if err != nil {
		return err
	}

	params, err := utils.ResolveParameters(simInfo.Config.Parameters, preset, interactive)
	if err != nil {
		return fmt.Errorf("failed to get parameters: %w", err)
	}

	if err := sim.Configure(params); err != nil {
		return fmt.Errorf("failed to configure simulation: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			logger.Warn("Received interrupt signal, stopping simulation...")
			if err := sim.Stop(); err != nil {
				logger.Errorf("Failed to stop simulation: %v", err)
			}
			cancel()
		case <-ctx.Done():
		}
	}()

	logger.LogSection(fmt.Sprintf("Starting %s", sim.Name()))
	if err := sim.Run(ctx); err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}

	logger.Success("Simulation completed successfully")
	return nil
}

// isInteractive reports whether parameters may be prompted for
func isInteractive(cmd *cobra.Command) bool {
	if noPrompt, _ := cmd.Flags().GetBool("no-prompt"); noPrompt {
		return false
	}
	if utils.SkipPrompts() {
		return false
	}
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// loadParams reads the --params file and applies --node-config on top
func loadParams(cmd *cobra.Command) (map[string]interface{}, error) {
	preset := make(map[string]interface{})

	if path, _ := cmd.Flags().GetString("params"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read params file: %w", err)
		}
		if err := yaml.Unmarshal(data, &preset); err != nil {
			return nil, fmt.Errorf("failed to parse params file: %w", err)
		}
		if preset == nil {
			preset = make(map[string]interface{})
		}
	}

	if nodeConfig, _ := cmd.Flags().GetString("node-config"); nodeConfig != "" {
		preset[c2node.ParamConfigPath] = nodeConfig
	}

	// An explicit --log-level beats the node configuration file
	if f := cmd.Flag("log-level"); f != nil && f.Changed {
		if _, ok := preset["log_level"]; !ok {
			preset["log_level"] = f.Value.String()
		}
	}
	return preset, nil
}

func selectSimulation(cmd *cobra.Command, interactive bool) (utils.SimulationInfo, error) {
	simInfos, err := utils.DiscoverSimulations()
	if err != nil {
		return utils.SimulationInfo{}, fmt.Errorf("failed to discover simulations: %w", err)
	}

	// Check if simulation is specified via flag
	simName, _ := cmd.Flags().GetString("simulation")
	if simName == "" && !interactive {
		simName = c2node.Name
	}
	if simName != "" {
		info, ok := utils.FindSimulation(simInfos, simName)
		if !ok {
			return utils.SimulationInfo{}, fmt.Errorf("simulation %s not found", simName)
		}
		return info, nil
	}

	return utils.SelectSimulation(simInfos)
}
