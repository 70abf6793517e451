package reporting

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/picogrid/skyguard-c2/cmd/c2-node/controllers"
	"github.com/picogrid/skyguard-c2/cmd/c2-node/core"
	"github.com/picogrid/skyguard-c2/pkg/logger"
	"github.com/picogrid/skyguard-c2/pkg/protocol"
)

// SimulationLogger keeps the node's event log and metrics and writes notable
// events to the console. It implements controllers.Reporter.
type SimulationLogger struct {
	runID       string
	startTime   time.Time
	now         func() time.Time
	events      []SimulationEvent
	metrics     map[string]Metric
	targets     map[uint32]*targetRecord
	stateCounts map[string]int
	counts      EventCounts
	peakTracks  int
	latest      *protocol.EngagementStatus
	mu          sync.RWMutex
}

// SimulationEvent represents a logged node event
type SimulationEvent struct {
	Timestamp time.Time
	Cycle     uint64
	Type      string
	Severity  string
	TargetID  uint32
	Message   string
	Details   map[string]interface{}
}

// Metric represents a tracked metric
type Metric struct {
	Name        string
	Value       float64
	Unit        string
	LastUpdated time.Time
	History     []MetricPoint
}

// MetricPoint represents a metric value at a point in time
type MetricPoint struct {
	Timestamp time.Time
	Value     float64
}

// EventCounts are running totals of what the logger has seen
type EventCounts struct {
	Cycles      uint64 `json:"cycles"`
	Assignments uint64 `json:"assignments"`
	Statuses    uint64 `json:"statuses"`
	Transitions uint64 `json:"transitions"`
	Violations  uint64 `json:"violations"`
	Errors      uint64 `json:"errors"`
}

// targetRecord is the per-target view used for transition and violation checks
type targetRecord struct {
	assigned bool
	hasState bool
	state    uint8
}

// EventType constants
const (
	EventTypeAssignment  = "assignment"
	EventTypeStatus      = "status"
	EventTypeTransition  = "state_transition"
	EventTypeViolation   = "safety_violation"
	EventTypeError       = "error"
	EventTypePerformance = "performance"
	EventTypeSystem      = "system"
)

// Severity constants
const (
	SeverityDebug    = "debug"
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Metric names
const (
	MetricActiveTracks = "active_tracks"
	MetricCycleLatency = "cycle_latency"
	MetricAvgCycleTime = "avg_cycle_time"
	MetricP95CycleTime = "p95_cycle_time"
)

const (
	maxEvents        = 10000
	maxMetricHistory = 1000
	firstStateName   = "None"
)

var (
	colorSuccess = color.New(color.FgGreen)
	colorBanner  = color.New(color.FgCyan, color.Bold)
	colorAlert   = color.New(color.FgRed, color.Bold)
)

// NewSimulationLogger creates a logger for one run. An empty runID gets a fresh UUID.
func NewSimulationLogger(runID string) *SimulationLogger {
	if runID == "" {
		runID = uuid.New().String()
	}
	sl := &SimulationLogger{
		runID:       runID,
		now:         time.Now,
		events:      make([]SimulationEvent, 0),
		metrics:     make(map[string]Metric),
		targets:     make(map[uint32]*targetRecord),
		stateCounts: make(map[string]int),
	}
	sl.startTime = sl.now()

	logger.Infof("Run started | ID: %s | Time: %s", runID, sl.startTime.Format("15:04:05"))
	return sl
}

// RunID returns the run identifier
func (sl *SimulationLogger) RunID() string {
	return sl.runID
}

// StartTime returns when the run started
func (sl *SimulationLogger) StartTime() time.Time {
	return sl.startTime
}

// ReportTracks tracks the active population size
func (sl *SimulationLogger) ReportTracks(cycle uint64, tracks []core.Track) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if len(tracks) > sl.peakTracks {
		sl.peakTracks = len(tracks)
	}
	sl.updateMetric(MetricActiveTracks, float64(len(tracks)), "")
}

// ReportAssignment logs an assignment sent to the fire-control peer
func (sl *SimulationLogger) ReportAssignment(cycle uint64, a protocol.TargetAssignment, score core.ThreatScore) {
	sl.mu.Lock()
	sl.target(a.TargetID).assigned = true
	sl.counts.Assignments++
	sl.logEvent(SimulationEvent{
		Cycle:    cycle,
		Type:     EventTypeAssignment,
		Severity: SeverityInfo,
		TargetID: a.TargetID,
		Message:  fmt.Sprintf("Assigned target %d (score %.3f, priority %d)", a.TargetID, score.Score, a.Priority),
		Details: map[string]interface{}{
			"range_m":   a.RangeM,
			"azimuth":   a.AzimuthRad,
			"elevation": a.ElevationRad,
			"velocity":  a.VelocityMs,
			"score":     score.Score,
			"priority":  a.Priority,
		},
	})
	sl.mu.Unlock()

	logger.LogTargetAssignment(a.TargetID, a.RangeM, a.AzimuthRad)
}

// ReportStatus records an inbound engagement status, logging state changes and
// flagging reports that break engagement rules
func (sl *SimulationLogger) ReportStatus(cycle uint64, s protocol.EngagementStatus) {
	var violations []string
	var transition []string

	sl.mu.Lock()
	sl.counts.Statuses++
	stateName := core.StateName(s.State)
	sl.stateCounts[stateName]++
	latest := s
	sl.latest = &latest

	rec := sl.target(s.TargetID)
	if s.State > core.MaxKnownState {
		violations = append(violations, fmt.Sprintf("target %d reported unknown state %d", s.TargetID, s.State))
	}
	if s.Firing && !rec.assigned {
		violations = append(violations, fmt.Sprintf("target %d reported firing without an assignment", s.TargetID))
	}

	if !rec.hasState || rec.state != s.State {
		from := firstStateName
		if rec.hasState {
			from = core.StateName(rec.state)
		}
		transition = []string{from, stateName}
		sl.counts.Transitions++
		sl.logEvent(SimulationEvent{
			Cycle:    cycle,
			Type:     EventTypeTransition,
			Severity: SeverityInfo,
			TargetID: s.TargetID,
			Message:  fmt.Sprintf("Target %d: %s -> %s", s.TargetID, from, stateName),
		})
	}
	rec.hasState = true
	rec.state = s.State

	sl.logEvent(SimulationEvent{
		Cycle:    cycle,
		Type:     EventTypeStatus,
		Severity: SeverityDebug,
		TargetID: s.TargetID,
		Message:  fmt.Sprintf("Status target %d: %s", s.TargetID, stateName),
		Details: map[string]interface{}{
			"state":          s.State,
			"firing":         s.Firing,
			"lead_angle_rad": s.LeadAngleRad,
			"time_to_impact": s.TimeToImpactS,
		},
	})
	for _, v := range violations {
		sl.counts.Violations++
		sl.logEvent(SimulationEvent{
			Cycle:    cycle,
			Type:     EventTypeViolation,
			Severity: SeverityCritical,
			TargetID: s.TargetID,
			Message:  v,
		})
	}
	sl.mu.Unlock()

	if transition != nil {
		logger.LogStateTransition(s.TargetID, transition[0], transition[1])
	}
	for _, v := range violations {
		logger.LogSafetyViolation(v)
	}
}

// ReportCycle records per-cycle latency
func (sl *SimulationLogger) ReportCycle(stats controllers.CycleStats) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	sl.counts.Cycles = stats.Cycle
	sl.updateMetric(MetricCycleLatency, durationMs(stats.Latency), "ms")
}

// ReportError logs a component failure
func (sl *SimulationLogger) ReportError(cycle uint64, component string, err error) {
	if err == nil {
		return
	}

	sl.mu.Lock()
	sl.counts.Errors++
	sl.logEvent(SimulationEvent{
		Cycle:    cycle,
		Type:     EventTypeError,
		Severity: SeverityError,
		Message:  fmt.Sprintf("%s: %v", component, err),
		Details: map[string]interface{}{
			"component": component,
			"error":     err.Error(),
		},
	})
	sl.mu.Unlock()

	logger.LogComponentError(component, err)
}

// ReportSummary logs the periodic performance metrics
func (sl *SimulationLogger) ReportSummary(summary controllers.PerformanceSummary) {
	avg := durationMs(summary.MeanLatency)
	p95 := durationMs(summary.P95Latency)

	sl.mu.Lock()
	sl.updateMetric(MetricAvgCycleTime, avg, "ms")
	sl.updateMetric(MetricP95CycleTime, p95, "ms")
	sl.logEvent(SimulationEvent{
		Cycle:    summary.Cycle,
		Type:     EventTypePerformance,
		Severity: SeverityInfo,
		Message:  fmt.Sprintf("Cycle %d: avg %.3fms p95 %.3fms over %d cycles", summary.Cycle, avg, p95, summary.WindowCycles),
		Details: map[string]interface{}{
			"mean_active_tracks": summary.MeanActiveTracks,
			"max_latency_ms":     durationMs(summary.MaxLatency),
			"stddev_latency_ms":  durationMs(summary.StdDevLatency),
		},
	})
	sl.mu.Unlock()

	logger.LogPerformanceMetric(MetricAvgCycleTime, avg, "ms")
	logger.LogPerformanceMetric(MetricP95CycleTime, p95, "ms")
	logger.LogPerformanceMetric(MetricActiveTracks, summary.MeanActiveTracks, "")
}

// UpdateMetric updates a metric value
func (sl *SimulationLogger) UpdateMetric(name string, value float64, unit string) {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.updateMetric(name, value, unit)
}

func (sl *SimulationLogger) updateMetric(name string, value float64, unit string) {
	now := sl.now()
	metric, exists := sl.metrics[name]
	if !exists {
		metric = Metric{Name: name, Unit: unit}
	}

	metric.Value = value
	metric.LastUpdated = now
	metric.History = append(metric.History, MetricPoint{Timestamp: now, Value: value})
	if len(metric.History) > maxMetricHistory {
		metric.History = metric.History[len(metric.History)-maxMetricHistory:]
	}

	sl.metrics[name] = metric
}

// GetEvents returns all logged events
func (sl *SimulationLogger) GetEvents() []SimulationEvent {
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	return slices.Clone(sl.events)
}

// GetMetrics returns current metrics
func (sl *SimulationLogger) GetMetrics() map[string]Metric {
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	return maps.Clone(sl.metrics)
}

// Counts returns the running event totals
func (sl *SimulationLogger) Counts() EventCounts {
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	return sl.counts
}

// LatestStatus returns the most recent engagement status, if any
func (sl *SimulationLogger) LatestStatus() (protocol.EngagementStatus, bool) {
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	if sl.latest == nil {
		return protocol.EngagementStatus{}, false
	}
	return *sl.latest, true
}

// GetSummary returns a run summary
func (sl *SimulationLogger) GetSummary() SimulationSummary {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	eventCounts := make(map[string]int)
	for _, event := range sl.events {
		eventCounts[event.Type]++
	}

	assigned := 0
	for _, rec := range sl.targets {
		if rec.assigned {
			assigned++
		}
	}

	return SimulationSummary{
		RunID:           sl.runID,
		StartTime:       sl.startTime,
		Duration:        sl.now().Sub(sl.startTime),
		TotalEvents:     len(sl.events),
		EventCounts:     eventCounts,
		StateCounts:     maps.Clone(sl.stateCounts),
		Counts:          sl.counts,
		PeakTracks:      sl.peakTracks,
		TargetsAssigned: assigned,
		Metrics:         maps.Clone(sl.metrics),
	}
}

// SimulationSummary represents a summary of the run
type SimulationSummary struct {
	RunID           string
	StartTime       time.Time
	Duration        time.Duration
	TotalEvents     int
	EventCounts     map[string]int
	StateCounts     map[string]int
	Counts          EventCounts
	PeakTracks      int
	TargetsAssigned int
	Metrics         map[string]Metric
}

// PrintSummary writes a formatted summary to w
func (sl *SimulationLogger) PrintSummary(w io.Writer) {
	summary := sl.GetSummary()
	rule := "════════════════════════════════════════════════════════════"

	colorSuccess.Fprintln(w, "\n"+rule)
	colorBanner.Fprintf(w, "  RUN SUMMARY - %s\n", shortID(summary.RunID))
	colorSuccess.Fprintln(w, rule)

	fmt.Fprintf(w, "\nDuration: %v | Cycles: %d | Peak tracks: %d\n",
		summary.Duration.Round(time.Millisecond), summary.Counts.Cycles, summary.PeakTracks)
	fmt.Fprintf(w, "Assignments: %d | Statuses: %d | Transitions: %d | Errors: %d\n",
		summary.Counts.Assignments, summary.Counts.Statuses, summary.Counts.Transitions, summary.Counts.Errors)
	if summary.Counts.Violations > 0 {
		colorAlert.Fprintf(w, "Safety violations: %d\n", summary.Counts.Violations)
	}

	if len(summary.StateCounts) > 0 {
		fmt.Fprintln(w, "\nEngagement states reported:")
		for _, name := range sortedKeys(summary.StateCounts) {
			fmt.Fprintf(w, "   %-20s: %d\n", name, summary.StateCounts[name])
		}
	}

	if len(summary.Metrics) > 0 {
		fmt.Fprintln(w, "\nPerformance metrics:")
		for _, name := range sortedKeys(summary.Metrics) {
			metric := summary.Metrics[name]
			fmt.Fprintf(w, "   %-20s: %.3f %s\n", name, metric.Value, metric.Unit)
		}
	}

	colorSuccess.Fprintln(w, rule)
}

// logEvent appends an event; callers hold the write lock
func (sl *SimulationLogger) logEvent(event SimulationEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = sl.now()
	}
	sl.events = append(sl.events, event)

	if len(sl.events) > maxEvents {
		sl.events = sl.events[len(sl.events)-maxEvents:]
	}
}

func (sl *SimulationLogger) target(id uint32) *targetRecord {
	rec, ok := sl.targets[id]
	if !ok {
		rec = &targetRecord{}
		sl.targets[id] = rec
	}
	return rec
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
