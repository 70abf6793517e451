package simulation

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picogrid/skyguard-c2/cmd/c2-node/config"
	"github.com/picogrid/skyguard-c2/cmd/c2-node/reporting"
	"github.com/picogrid/skyguard-c2/pkg/logger"
	"github.com/picogrid/skyguard-c2/pkg/protocol"
	"github.com/picogrid/skyguard-c2/pkg/simulation"
)

func quietLogs(t *testing.T) {
	t.Helper()
	logger.SetOutput(io.Discard)
	logger.SetNoColor(true)
	t.Cleanup(func() {
		logger.SetOutput(os.Stdout)
		logger.SetLevel(logger.InfoLevel)
	})
}

// listenPeer opens a loopback socket standing in for the fire-control peer
func listenPeer(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func writeConfig(t *testing.T, mutate func(*config.NodeConfig)) string {
	t.Helper()
	dir := t.TempDir()
	cfg := config.GetDefaultConfig()
	cfg.Simulation.CycleInterval = 5 * time.Millisecond
	cfg.Simulation.Seed = 42
	cfg.Network.ReceivePort = 0
	cfg.Engagement.DashboardEvery = 0
	cfg.Recording.GenerateReport = false
	cfg.Recording.ReportPath = filepath.Join(dir, "reports")
	cfg.Recording.DatabasePath = filepath.Join(dir, "runs.db")
	mutate(cfg)

	path := filepath.Join(dir, "node.yaml")
	require.NoError(t, config.SaveConfig(cfg, path))
	return path
}

func TestRegistered(t *testing.T) {
	sim, err := simulation.DefaultRegistry.Get(Name)
	require.NoError(t, err)
	assert.Equal(t, Name, sim.Name())
	assert.NotEmpty(t, sim.Description())
}

func TestConfigureAppliesOverrides(t *testing.T) {
	quietLogs(t)
	path := writeConfig(t, func(c *config.NodeConfig) {})

	sim := NewC2NodeSimulation().(*C2NodeSimulation)
	err := sim.Configure(map[string]interface{}{
		ParamConfigPath: path,
		"scenario":      "saturation",
		"target_count":  12,
		"send_port":     9100,
		"log_level":     "warn",
	})
	require.NoError(t, err)

	assert.Equal(t, "saturation", sim.config.Scenario.Type)
	assert.Equal(t, uint32(12), sim.config.Scenario.TargetCount)
	assert.Equal(t, 9100, sim.config.Network.SendPort)
	assert.Equal(t, uint64(42), sim.config.Simulation.Seed, "file value kept")
	assert.Equal(t, logger.WarnLevel, logger.GetLevel())
}

func TestConfigureKeepsProcessLogLevel(t *testing.T) {
	quietLogs(t)
	path := writeConfig(t, func(c *config.NodeConfig) {})

	logger.SetLevel(logger.DebugLevel)
	sim := NewC2NodeSimulation()
	require.NoError(t, sim.Configure(map[string]interface{}{ParamConfigPath: path}))
	assert.Equal(t, logger.DebugLevel, logger.GetLevel())

	require.NoError(t, sim.Configure(nil))
	assert.Equal(t, logger.DebugLevel, logger.GetLevel())

	require.NoError(t, sim.Configure(map[string]interface{}{"log_level": "error"}))
	assert.Equal(t, logger.ErrorLevel, logger.GetLevel())
}

func TestConfigureRejectsInvalidResult(t *testing.T) {
	quietLogs(t)
	path := writeConfig(t, func(c *config.NodeConfig) {})
	t.Setenv("SKYGUARD_SCENARIO", "blizzard")

	sim := NewC2NodeSimulation()
	assert.Error(t, sim.Configure(map[string]interface{}{ParamConfigPath: path}))
}

func TestRunSendsAssignmentsAndRecords(t *testing.T) {
	quietLogs(t)
	peer := listenPeer(t)
	port := peer.LocalAddr().(*net.UDPAddr).Port

	path := writeConfig(t, func(c *config.NodeConfig) {
		c.Network.SendPort = port
		c.Simulation.MaxCycles = 5
		c.Engagement.Threshold = -1
		c.Recording.Enabled = true
		c.Recording.GenerateReport = true
		c.Recording.ReportFormat = reporting.FormatMarkdown
	})

	sim := NewC2NodeSimulation().(*C2NodeSimulation)
	require.NoError(t, sim.Configure(map[string]interface{}{ParamConfigPath: path}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sim.Run(ctx))
	require.NoError(t, sim.Stop())

	totals := sim.coordinator.Totals()
	assert.Equal(t, uint64(5), totals.Cycles)
	assert.Equal(t, uint64(5), totals.AssignmentsSent)
	assert.Zero(t, totals.SendFailures)

	buf := make([]byte, 64)
	require.NoError(t, peer.SetReadDeadline(time.Now().Add(time.Second)))
	n, _, err := peer.ReadFromUDP(buf)
	require.NoError(t, err)
	require.Equal(t, protocol.TargetAssignmentSize, n)
	a, err := protocol.DecodeTargetAssignment(buf[:n])
	require.NoError(t, err)
	assert.NotZero(t, a.TargetID)

	// The recorder is closed after Run; reopen under a fresh run to inspect
	// the stored totals.
	rec, err := reporting.OpenRecorder(sim.config.Recording.DatabasePath, "inspect", "swarm")
	require.NoError(t, err)
	defer rec.Close()
	run, err := rec.Run(sim.simLogger.RunID())
	require.NoError(t, err)
	assert.Equal(t, uint64(5), run.Cycles)
	assert.Equal(t, uint64(5), run.AssignmentsSent)
	assert.True(t, run.EndedAt.Valid)

	reports, err := filepath.Glob(filepath.Join(sim.config.Recording.ReportPath, "AAR_*.md"))
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestStopEndsUnboundedRun(t *testing.T) {
	quietLogs(t)
	peer := listenPeer(t)
	path := writeConfig(t, func(c *config.NodeConfig) {
		c.Network.SendPort = peer.LocalAddr().(*net.UDPAddr).Port
	})

	sim := NewC2NodeSimulation()
	require.NoError(t, sim.Configure(map[string]interface{}{ParamConfigPath: path}))
	require.NoError(t, sim.Stop(), "stop before run is a no-op")

	done := make(chan error, 1)
	go func() { done <- sim.Run(context.Background()) }()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, sim.Stop())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop")
	}
	require.NoError(t, sim.Stop())
}

func TestRunFailsOnBusyReceivePort(t *testing.T) {
	quietLogs(t)
	busy, err := net.ListenUDP("udp", &net.UDPAddr{})
	require.NoError(t, err)
	defer busy.Close()
	path := writeConfig(t, func(c *config.NodeConfig) {
		c.Network.ReceivePort = busy.LocalAddr().(*net.UDPAddr).Port
		c.Simulation.MaxCycles = 1
	})

	sim := NewC2NodeSimulation()
	require.NoError(t, sim.Configure(map[string]interface{}{ParamConfigPath: path}))
	assert.Error(t, sim.Run(context.Background()))
}
