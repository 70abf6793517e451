package reporting

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picogrid/skyguard-c2/cmd/c2-node/controllers"
	"github.com/picogrid/skyguard-c2/cmd/c2-node/core"
	"github.com/picogrid/skyguard-c2/pkg/logger"
	"github.com/picogrid/skyguard-c2/pkg/protocol"
)

// captureLog redirects the package logger for the duration of a test
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	logger.SetNoColor(true)
	t.Cleanup(func() { logger.SetOutput(os.Stdout) })
	return &buf
}

func assignment(id uint32) protocol.TargetAssignment {
	return protocol.TargetAssignment{
		TargetID:     id,
		RangeM:       2500,
		AzimuthRad:   0.25,
		ElevationRad: 0.1,
		VelocityMs:   180,
		Priority:     5,
	}
}

func TestSimulationLoggerGeneratesRunID(t *testing.T) {
	captureLog(t)

	sl := NewSimulationLogger("")
	assert.Len(t, sl.RunID(), 36)
	assert.Equal(t, "fixed", NewSimulationLogger("fixed").RunID())
}

func TestSimulationLoggerStateTransitions(t *testing.T) {
	out := captureLog(t)
	sl := NewSimulationLogger("run-1")

	sl.ReportAssignment(1, assignment(1), core.ThreatScore{TrackID: 1, Score: 0.6, Priority: 5})
	sl.ReportStatus(1, protocol.EngagementStatus{TargetID: 1, State: core.StateAcquiring})
	sl.ReportStatus(2, protocol.EngagementStatus{TargetID: 1, State: core.StateAcquiring})
	sl.ReportStatus(3, protocol.EngagementStatus{TargetID: 1, State: core.StateTracking})
	sl.ReportStatus(4, protocol.EngagementStatus{TargetID: 1, State: core.StateFiring, Firing: true})

	counts := sl.Counts()
	assert.Equal(t, uint64(1), counts.Assignments)
	assert.Equal(t, uint64(4), counts.Statuses)
	assert.Equal(t, uint64(3), counts.Transitions)
	assert.Zero(t, counts.Violations)

	text := out.String()
	assert.Contains(t, text, "target 1 None → Acquiring")
	assert.Contains(t, text, "target 1 Acquiring → Tracking")
	assert.Contains(t, text, "target 1 Tracking → Firing")
	assert.Contains(t, text, "[ASSIGN]")
	assert.NotContains(t, text, "VIOLATION")

	latest, ok := sl.LatestStatus()
	require.True(t, ok)
	assert.Equal(t, core.StateFiring, latest.State)

	summary := sl.GetSummary()
	assert.Equal(t, 2, summary.StateCounts["Acquiring"])
	assert.Equal(t, 1, summary.StateCounts["Firing"])
	assert.Equal(t, 1, summary.TargetsAssigned)
}

func TestSimulationLoggerSafetyViolations(t *testing.T) {
	tests := []struct {
		name   string
		status protocol.EngagementStatus
		detail string
	}{
		{
			name:   "unknown state",
			status: protocol.EngagementStatus{TargetID: 3, State: 9},
			detail: "target 3 reported unknown state 9",
		},
		{
			name:   "firing without assignment",
			status: protocol.EngagementStatus{TargetID: 4, State: core.StateFiring, Firing: true},
			detail: "target 4 reported firing without an assignment",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := captureLog(t)
			sl := NewSimulationLogger("run-v")

			sl.ReportStatus(1, tt.status)

			assert.Equal(t, uint64(1), sl.Counts().Violations)
			assert.Contains(t, out.String(), "[SAFETY]")
			assert.Contains(t, out.String(), "VIOLATION: "+tt.detail)

			var found bool
			for _, e := range sl.GetEvents() {
				if e.Type == EventTypeViolation {
					found = true
					assert.Equal(t, SeverityCritical, e.Severity)
					assert.Equal(t, tt.status.TargetID, e.TargetID)
				}
			}
			assert.True(t, found)
		})
	}
}

func TestSimulationLoggerUnknownStateName(t *testing.T) {
	captureLog(t)
	sl := NewSimulationLogger("run-u")

	sl.ReportStatus(1, protocol.EngagementStatus{TargetID: 1, State: 7})
	assert.Equal(t, 1, sl.GetSummary().StateCounts["Unknown(7)"])
}

func TestSimulationLoggerErrorsAndMetrics(t *testing.T) {
	out := captureLog(t)
	sl := NewSimulationLogger("run-2")

	sl.ReportError(1, controllers.ComponentGateway, nil)
	sl.ReportError(1, controllers.ComponentGateway, errors.New("send: connection refused"))
	assert.Equal(t, uint64(1), sl.Counts().Errors)
	assert.Contains(t, out.String(), "[gateway]")
	assert.Contains(t, out.String(), "connection refused")

	sl.ReportTracks(1, make([]core.Track, 4))
	sl.ReportTracks(2, make([]core.Track, 2))
	sl.ReportCycle(controllers.CycleStats{Cycle: 2, Latency: 1500 * time.Microsecond})

	metrics := sl.GetMetrics()
	assert.InDelta(t, 1.5, metrics[MetricCycleLatency].Value, 1e-9)
	assert.Equal(t, "ms", metrics[MetricCycleLatency].Unit)
	assert.Equal(t, 2.0, metrics[MetricActiveTracks].Value)
	assert.Len(t, metrics[MetricActiveTracks].History, 2)
	assert.Equal(t, 4, sl.GetSummary().PeakTracks)
	assert.Equal(t, uint64(2), sl.Counts().Cycles)

	sl.ReportSummary(controllers.PerformanceSummary{
		Cycle:            100,
		WindowCycles:     100,
		MeanLatency:      2 * time.Millisecond,
		P95Latency:       3 * time.Millisecond,
		MeanActiveTracks: 4.5,
	})
	assert.Contains(t, out.String(), "avg_cycle_time=2.000ms")
	assert.Contains(t, out.String(), "p95_cycle_time=3.000ms")
	assert.Contains(t, out.String(), "active_tracks=4.500")
}

func TestMetricHistoryIsBounded(t *testing.T) {
	captureLog(t)
	sl := NewSimulationLogger("run-h")

	for i := 0; i < maxMetricHistory+50; i++ {
		sl.UpdateMetric("x", float64(i), "")
	}
	history := sl.GetMetrics()["x"].History
	require.Len(t, history, maxMetricHistory)
	assert.Equal(t, float64(50), history[0].Value)
}

func TestPrintSummary(t *testing.T) {
	captureLog(t)
	sl := NewSimulationLogger("abcdef0123456789")
	sl.ReportStatus(1, protocol.EngagementStatus{TargetID: 2, State: core.StateTracking})
	sl.ReportCycle(controllers.CycleStats{Cycle: 1, Latency: time.Millisecond})

	var buf bytes.Buffer
	sl.PrintSummary(&buf)

	text := buf.String()
	assert.Contains(t, text, "RUN SUMMARY - abcdef01")
	assert.Contains(t, text, "Tracking")
	assert.Contains(t, text, MetricCycleLatency)
}

func TestDashboardRendersEveryN(t *testing.T) {
	var buf bytes.Buffer
	d := NewDashboard(2, &buf, true, core.NewThreatEvaluator())

	tracks := []core.Track{
		{ID: 1, RangeM: 1000, VelocityMs: 200},
		{ID: 2, RangeM: 9000, VelocityMs: 50},
	}
	d.ReportTracks(1, tracks)
	d.ReportCycle(controllers.CycleStats{Cycle: 1, TopTrackID: 1})
	assert.Zero(t, buf.Len())

	d.ReportTracks(2, tracks)
	d.ReportCycle(controllers.CycleStats{Cycle: 2, TopTrackID: 1})

	text := buf.String()
	assert.Contains(t, text, "C2 DASHBOARD | cycle 2 | tracks 2")
	assert.Contains(t, text, "SCORE")
	assert.Contains(t, text, "1.000")
	assert.Contains(t, text, "Engagement: no status received")

	lines := strings.Split(text, "\n")
	var marked []string
	for _, l := range lines {
		if strings.HasPrefix(l, ">") {
			marked = append(marked, l)
		}
	}
	require.Len(t, marked, 1)
	assert.Contains(t, marked[0], "1000")
}

func TestDashboardStatusLine(t *testing.T) {
	var buf bytes.Buffer
	d := NewDashboard(1, &buf, true, nil)

	d.ReportStatus(1, protocol.EngagementStatus{TargetID: 7, State: core.StateEngaging, LeadAngleRad: 0.01, TimeToImpactS: 2.5})
	d.ReportCycle(controllers.CycleStats{Cycle: 1})

	text := buf.String()
	assert.Contains(t, text, "No active tracks")
	assert.Contains(t, text, "Engagement: target 7 | Engaging | firing no")
	assert.Contains(t, text, "tti 2.50s")
	assert.NotContains(t, text, "SCORE")
}

func TestDashboardDisabled(t *testing.T) {
	var buf bytes.Buffer
	d := NewDashboard(0, &buf, true, nil)
	for i := uint64(1); i <= 5; i++ {
		d.ReportCycle(controllers.CycleStats{Cycle: i})
	}
	assert.Zero(t, buf.Len())
}

func populatedLogger(t *testing.T) *SimulationLogger {
	t.Helper()
	captureLog(t)

	sl := NewSimulationLogger("0123456789abcdef")
	for i := uint64(1); i <= 10; i++ {
		sl.ReportTracks(i, make([]core.Track, 3))
		sl.ReportCycle(controllers.CycleStats{Cycle: i, Latency: time.Duration(i) * time.Millisecond})
	}
	sl.ReportAssignment(3, assignment(1), core.ThreatScore{TrackID: 1, Score: 0.8, Priority: 8})
	sl.ReportStatus(4, protocol.EngagementStatus{TargetID: 1, State: core.StateTracking})
	sl.ReportStatus(5, protocol.EngagementStatus{TargetID: 2, State: core.StateFiring, Firing: true})
	return sl
}

func TestGenerateAAR(t *testing.T) {
	sl := populatedLogger(t)
	gen := NewAARGenerator(sl, AARConfig{CycleInterval: 5 * time.Millisecond})

	aar := gen.GenerateAAR(controllers.Totals{Cycles: 10, AssignmentsSent: 1, StatusesReceived: 2})

	assert.Equal(t, "0123456789abcdef", aar.Metadata.RunID)
	assert.Equal(t, "Completed with safety violations", aar.Summary.Outcome)
	assert.Equal(t, uint64(1), aar.Summary.SafetyViolations)
	assert.Equal(t, 1, aar.Engagements.TargetsAssigned)
	assert.Equal(t, uint64(2), aar.Engagements.Transitions)

	assert.Equal(t, 10, aar.Performance.SampledCycles)
	assert.InDelta(t, 5.5, aar.Performance.MeanCycleMs, 1e-9)
	assert.InDelta(t, 10.0, aar.Performance.MaxCycleMs, 1e-9)
	assert.InDelta(t, 3.0, aar.Performance.MeanActiveTracks, 1e-9)
	assert.Equal(t, 1.0, aar.Performance.Stability)

	var titles []string
	for _, rec := range aar.Recommendations {
		titles = append(titles, rec.Title)
	}
	assert.Contains(t, titles, "Review fire-control reports")
	assert.Contains(t, titles, "Cycle overrun")

	require.NotEmpty(t, aar.Summary.KeyEvents)
	assert.Contains(t, aar.Summary.KeyEvents[0], "first assignment")
	require.NotEmpty(t, aar.Timeline)
}

func TestGenerateAARNominal(t *testing.T) {
	captureLog(t)
	sl := NewSimulationLogger("nominal")
	sl.ReportAssignment(1, assignment(1), core.ThreatScore{Score: 0.7})
	sl.ReportStatus(1, protocol.EngagementStatus{TargetID: 1, State: core.StateAcquiring})

	aar := NewAARGenerator(sl, AARConfig{}).GenerateAAR(controllers.Totals{Cycles: 1, AssignmentsSent: 1, StatusesReceived: 1})
	assert.Equal(t, "Completed nominally", aar.Summary.Outcome)
	assert.Empty(t, aar.Recommendations)
}

func TestSaveAAR(t *testing.T) {
	sl := populatedLogger(t)
	dir := t.TempDir()
	fixed := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

	t.Run("json", func(t *testing.T) {
		gen := NewAARGenerator(sl, AARConfig{OutputDir: dir, Format: FormatJSON})
		gen.now = func() time.Time { return fixed }

		path, err := gen.SaveAAR(gen.GenerateAAR(controllers.Totals{Cycles: 10}))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "AAR_01234567_20260301_123000.json"), path)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &decoded))
		metadata := decoded["metadata"].(map[string]interface{})
		assert.Equal(t, "0123456789abcdef", metadata["run_id"])
	})

	t.Run("markdown", func(t *testing.T) {
		gen := NewAARGenerator(sl, AARConfig{OutputDir: dir, Format: FormatMarkdown})
		path, err := gen.SaveAAR(gen.GenerateAAR(controllers.Totals{Cycles: 10}))
		require.NoError(t, err)
		assert.Equal(t, ".md", filepath.Ext(path))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "# After Action Report")
		assert.Contains(t, string(data), "| Tracking | 1 |")
	})

	t.Run("unsupported", func(t *testing.T) {
		gen := NewAARGenerator(sl, AARConfig{OutputDir: dir, Format: "html"})
		_, err := gen.SaveAAR(gen.GenerateAAR(controllers.Totals{}))
		assert.ErrorContains(t, err, "unsupported format")
	})
}

func TestRecorder(t *testing.T) {
	captureLog(t)
	path := filepath.Join(t.TempDir(), "node.db")

	rec, err := OpenRecorder(path, "run-a", "swarm")
	require.NoError(t, err)
	t.Cleanup(func() { rec.Close() })

	now := time.Now()
	rec.ReportCycle(controllers.CycleStats{Cycle: 1, Timestamp: now, DtS: 0.1, ActiveTracks: 2, TopTrackID: 1, TopScore: 0.9, AssignmentSent: true})
	rec.ReportCycle(controllers.CycleStats{Cycle: 2, Timestamp: now, DtS: 0.1, Err: errors.New("boom")})
	rec.ReportAssignment(1, assignment(1), core.ThreatScore{TrackID: 1, Score: 0.9, Priority: 9})
	rec.ReportStatus(2, protocol.EngagementStatus{TargetID: 1, State: core.StateTracking, Firing: false})
	rec.ReportError(2, controllers.ComponentCoordinator, errors.New("boom"))
	rec.ReportError(2, controllers.ComponentCoordinator, nil)
	require.NoError(t, rec.Err())

	for table, want := range map[string]int{"cycles": 2, "assignments": 1, "statuses": 1, "component_errors": 1} {
		n, err := rec.Count(table)
		require.NoError(t, err, table)
		assert.Equal(t, want, n, table)
	}
	_, err = rec.Count("runs; DROP TABLE runs")
	assert.Error(t, err)

	require.NoError(t, rec.Finish(controllers.Totals{Cycles: 2, AssignmentsSent: 1, StatusesReceived: 1, CycleErrors: 1}))
	run, err := rec.Run("run-a")
	require.NoError(t, err)
	assert.Equal(t, "swarm", run.Scenario)
	assert.Equal(t, uint64(2), run.Cycles)
	assert.Equal(t, uint64(1), run.CycleErrors)
	assert.True(t, run.EndedAt.Valid)
}

func TestRecorderReopenKeepsRunsSeparate(t *testing.T) {
	captureLog(t)
	path := filepath.Join(t.TempDir(), "node.db")

	first, err := OpenRecorder(path, "run-1", "swarm")
	require.NoError(t, err)
	first.ReportCycle(controllers.CycleStats{Cycle: 1, Timestamp: time.Now()})
	require.NoError(t, first.Close())
	require.NoError(t, first.Close())

	second, err := OpenRecorder(path, "run-2", "saturation")
	require.NoError(t, err)
	defer second.Close()

	n, err := second.Count("cycles")
	require.NoError(t, err)
	assert.Zero(t, n)

	run, err := second.Run("run-1")
	require.NoError(t, err)
	assert.False(t, run.EndedAt.Valid)

	_, err = OpenRecorder(path, "run-2", "saturation")
	assert.Error(t, err, "duplicate run id must be rejected")
}

func TestRecorderIgnoresWritesAfterClose(t *testing.T) {
	captureLog(t)
	rec, err := OpenRecorder(filepath.Join(t.TempDir(), "node.db"), "run-c", "swarm")
	require.NoError(t, err)
	require.NoError(t, rec.Close())

	rec.ReportCycle(controllers.CycleStats{Cycle: 1})
	assert.NoError(t, rec.Err())
	assert.NoError(t, rec.Finish(controllers.Totals{}))
}

type countingReporter struct {
	controllers.NopReporter
	cycles int
}

func (c *countingReporter) ReportCycle(controllers.CycleStats) { c.cycles++ }

type panickingReporter struct {
	controllers.NopReporter
}

func (panickingReporter) ReportCycle(controllers.CycleStats) { panic("display offline") }

func TestMultiIsolatesPanics(t *testing.T) {
	out := captureLog(t)
	before, after := &countingReporter{}, &countingReporter{}

	m := NewMulti(before, nil, panickingReporter{}, after)
	require.Len(t, m, 3)

	assert.NotPanics(t, func() { m.ReportCycle(controllers.CycleStats{Cycle: 1}) })
	assert.Equal(t, 1, before.cycles)
	assert.Equal(t, 1, after.cycles)
	assert.Contains(t, out.String(), "display offline")
}
