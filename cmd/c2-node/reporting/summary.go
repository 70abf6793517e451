package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/picogrid/skyguard-c2/cmd/c2-node/controllers"
	"github.com/picogrid/skyguard-c2/pkg/logger"
)

// Report formats
const (
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

const (
	reportVersion   = "1.0"
	maxTimeline     = 200
	maxKeyEvents    = 10
	stabilityTarget = 0.99
)

// AARGenerator builds After Action Reports from a finished run
type AARGenerator struct {
	logger *SimulationLogger
	config AARConfig
	now    func() time.Time
}

// AARConfig configures AAR generation
type AARConfig struct {
	OutputDir     string
	Format        string                 // "json" or "markdown"
	CycleInterval time.Duration          // configured cadence, used to judge latency
	Settings      map[string]interface{} // configuration used for the run
}

// AAR represents an After Action Report
type AAR struct {
	Metadata        AARMetadata            `json:"metadata"`
	Summary         ExecutiveSummary       `json:"summary"`
	Engagements     EngagementAnalysis     `json:"engagements"`
	Performance     PerformanceAnalysis    `json:"performance"`
	Timeline        []TimelineEntry        `json:"timeline"`
	Recommendations []Recommendation       `json:"recommendations"`
	Settings        map[string]interface{} `json:"settings,omitempty"`
}

// AARMetadata contains report metadata
type AARMetadata struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	RunStart    time.Time `json:"run_start"`
	RunEnd      time.Time `json:"run_end"`
	Duration    string    `json:"duration"`
	Version     string    `json:"version"`
}

// ExecutiveSummary provides the high-level outcome
type ExecutiveSummary struct {
	Outcome          string   `json:"outcome"`
	TotalCycles      uint64   `json:"total_cycles"`
	AssignmentsSent  uint64   `json:"assignments_sent"`
	StatusesReceived uint64   `json:"statuses_received"`
	SafetyViolations uint64   `json:"safety_violations"`
	KeyEvents        []string `json:"key_events"`
}

// EngagementAnalysis covers the exchange with the fire-control peer
type EngagementAnalysis struct {
	AssignmentsSent  uint64         `json:"assignments_sent"`
	SendFailures     uint64         `json:"send_failures"`
	StatusesReceived uint64         `json:"statuses_received"`
	ReceiveFailures  uint64         `json:"receive_failures"`
	TargetsAssigned  int            `json:"targets_assigned"`
	Transitions      uint64         `json:"state_transitions"`
	StateCounts      map[string]int `json:"state_counts"`
}

// PerformanceAnalysis contains loop timing over the most recent cycles
type PerformanceAnalysis struct {
	SampledCycles    int     `json:"sampled_cycles"`
	MeanCycleMs      float64 `json:"mean_cycle_ms"`
	StdDevCycleMs    float64 `json:"stddev_cycle_ms"`
	P95CycleMs       float64 `json:"p95_cycle_ms"`
	MaxCycleMs       float64 `json:"max_cycle_ms"`
	MeanActiveTracks float64 `json:"mean_active_tracks"`
	PeakActiveTracks int     `json:"peak_active_tracks"`
	CycleErrors      uint64  `json:"cycle_errors"`
	ReporterPanics   uint64  `json:"reporter_panics"`
	Stability        float64 `json:"stability"` // fraction of cycles without error
}

// TimelineEntry represents a significant event
type TimelineEntry struct {
	Timestamp   time.Time `json:"timestamp"`
	ElapsedTime string    `json:"elapsed_time"`
	Cycle       uint64    `json:"cycle"`
	EventType   string    `json:"event_type"`
	Description string    `json:"description"`
	Impact      string    `json:"impact"`
}

// Recommendation is a follow-up suggested by the run's results
type Recommendation struct {
	Priority    string `json:"priority"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// NewAARGenerator creates a new AAR generator
func NewAARGenerator(l *SimulationLogger, config AARConfig) *AARGenerator {
	if config.Format == "" {
		config.Format = FormatJSON
	}
	return &AARGenerator{logger: l, config: config, now: time.Now}
}

// GenerateAAR builds the report from the logger state and the coordinator's totals
func (g *AARGenerator) GenerateAAR(totals controllers.Totals) *AAR {
	summary := g.logger.GetSummary()
	events := g.logger.GetEvents()

	aar := &AAR{
		Metadata: AARMetadata{
			RunID:       summary.RunID,
			GeneratedAt: g.now(),
			RunStart:    summary.StartTime,
			RunEnd:      summary.StartTime.Add(summary.Duration),
			Duration:    summary.Duration.Round(time.Millisecond).String(),
			Version:     reportVersion,
		},
		Settings: g.config.Settings,
	}

	aar.Engagements = EngagementAnalysis{
		AssignmentsSent:  totals.AssignmentsSent,
		SendFailures:     totals.SendFailures,
		StatusesReceived: totals.StatusesReceived,
		ReceiveFailures:  totals.ReceiveFailures,
		TargetsAssigned:  summary.TargetsAssigned,
		Transitions:      summary.Counts.Transitions,
		StateCounts:      summary.StateCounts,
	}
	aar.Performance = g.analyzePerformance(summary, totals)
	aar.Timeline = g.buildTimeline(events, summary.StartTime)
	aar.Summary = g.generateExecutiveSummary(events, summary, totals)
	aar.Recommendations = g.generateRecommendations(aar)

	return aar
}

// SaveAAR writes the report under OutputDir and returns its path
func (g *AARGenerator) SaveAAR(aar *AAR) (string, error) {
	if err := os.MkdirAll(g.config.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := g.now().Format("20060102_150405")
	filename := fmt.Sprintf("AAR_%s_%s", shortID(aar.Metadata.RunID), timestamp)

	var (
		path string
		err  error
	)
	switch g.config.Format {
	case FormatJSON:
		path = filepath.Join(g.config.OutputDir, filename+".json")
		err = saveJSON(aar, path)
	case FormatMarkdown:
		path = filepath.Join(g.config.OutputDir, filename+".md")
		err = os.WriteFile(path, []byte(RenderMarkdown(aar)), 0o644)
	default:
		return "", fmt.Errorf("unsupported format: %s", g.config.Format)
	}
	if err != nil {
		return "", err
	}

	logger.Successf("AAR saved to: %s", path)
	return path, nil
}

func saveJSON(aar *AAR, path string) error {
	data, err := json.MarshalIndent(aar, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal AAR: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// RenderMarkdown renders the report as Markdown
func RenderMarkdown(aar *AAR) string {
	var sb strings.Builder

	sb.WriteString("# After Action Report\n\n")
	fmt.Fprintf(&sb, "**Run ID:** %s\n", aar.Metadata.RunID)
	fmt.Fprintf(&sb, "**Generated:** %s\n", aar.Metadata.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "**Duration:** %s\n\n", aar.Metadata.Duration)

	sb.WriteString("## Executive Summary\n\n")
	fmt.Fprintf(&sb, "**Outcome:** %s\n\n", aar.Summary.Outcome)
	fmt.Fprintf(&sb, "- **Cycles:** %d\n", aar.Summary.TotalCycles)
	fmt.Fprintf(&sb, "- **Assignments Sent:** %d\n", aar.Summary.AssignmentsSent)
	fmt.Fprintf(&sb, "- **Statuses Received:** %d\n", aar.Summary.StatusesReceived)
	fmt.Fprintf(&sb, "- **Safety Violations:** %d\n\n", aar.Summary.SafetyViolations)

	if len(aar.Summary.KeyEvents) > 0 {
		sb.WriteString("### Key Events\n")
		for _, event := range aar.Summary.KeyEvents {
			fmt.Fprintf(&sb, "- %s\n", event)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Engagement Analysis\n\n")
	fmt.Fprintf(&sb, "- **Targets Assigned:** %d\n", aar.Engagements.TargetsAssigned)
	fmt.Fprintf(&sb, "- **Send Failures:** %d\n", aar.Engagements.SendFailures)
	fmt.Fprintf(&sb, "- **Receive Failures:** %d\n", aar.Engagements.ReceiveFailures)
	fmt.Fprintf(&sb, "- **State Transitions:** %d\n\n", aar.Engagements.Transitions)

	if len(aar.Engagements.StateCounts) > 0 {
		sb.WriteString("| State | Reports |\n|---|---|\n")
		for _, name := range sortedKeys(aar.Engagements.StateCounts) {
			fmt.Fprintf(&sb, "| %s | %d |\n", name, aar.Engagements.StateCounts[name])
		}
		sb.WriteString("\n")
	}

	p := aar.Performance
	sb.WriteString("## System Performance\n\n")
	fmt.Fprintf(&sb, "- **Cycle Time (last %d cycles):** mean %.3fms, stddev %.3fms, p95 %.3fms, max %.3fms\n",
		p.SampledCycles, p.MeanCycleMs, p.StdDevCycleMs, p.P95CycleMs, p.MaxCycleMs)
	fmt.Fprintf(&sb, "- **Active Tracks:** mean %.1f, peak %d\n", p.MeanActiveTracks, p.PeakActiveTracks)
	fmt.Fprintf(&sb, "- **Cycle Errors:** %d\n", p.CycleErrors)
	fmt.Fprintf(&sb, "- **Stability:** %.1f%%\n\n", p.Stability*100)

	if len(aar.Recommendations) > 0 {
		sb.WriteString("## Recommendations\n\n")
		for _, rec := range aar.Recommendations {
			fmt.Fprintf(&sb, "### %s (%s Priority)\n", rec.Title, rec.Priority)
			fmt.Fprintf(&sb, "%s\n\n", rec.Description)
		}
	}

	if len(aar.Timeline) > 0 {
		sb.WriteString("## Timeline\n\n")
		for _, entry := range aar.Timeline {
			fmt.Fprintf(&sb, "- `%s` cycle %d [%s] %s\n", entry.ElapsedTime, entry.Cycle, entry.EventType, entry.Description)
		}
	}

	return sb.String()
}

func (g *AARGenerator) analyzePerformance(summary SimulationSummary, totals controllers.Totals) PerformanceAnalysis {
	perf := PerformanceAnalysis{
		PeakActiveTracks: summary.PeakTracks,
		CycleErrors:      totals.CycleErrors,
		ReporterPanics:   totals.ReporterPanics,
		Stability:        1,
	}
	if totals.Cycles > 0 {
		perf.Stability = 1 - float64(totals.CycleErrors)/float64(totals.Cycles)
	}

	if latencies := historyValues(summary.Metrics[MetricCycleLatency]); len(latencies) > 0 {
		perf.SampledCycles = len(latencies)
		perf.MeanCycleMs, perf.StdDevCycleMs = stat.MeanStdDev(latencies, nil)
		if len(latencies) < 2 {
			perf.StdDevCycleMs = 0
		}
		slices.Sort(latencies)
		perf.P95CycleMs = stat.Quantile(0.95, stat.Empirical, latencies, nil)
		perf.MaxCycleMs = floats.Max(latencies)
	}
	if tracks := historyValues(summary.Metrics[MetricActiveTracks]); len(tracks) > 0 {
		perf.MeanActiveTracks = stat.Mean(tracks, nil)
	}
	return perf
}

func (g *AARGenerator) buildTimeline(events []SimulationEvent, start time.Time) []TimelineEntry {
	timeline := make([]TimelineEntry, 0)
	for _, event := range events {
		if !isSignificantEvent(event) {
			continue
		}
		timeline = append(timeline, TimelineEntry{
			Timestamp:   event.Timestamp,
			ElapsedTime: formatDuration(event.Timestamp.Sub(start)),
			Cycle:       event.Cycle,
			EventType:   event.Type,
			Description: event.Message,
			Impact:      assessImpact(event),
		})
	}
	if len(timeline) > maxTimeline {
		timeline = timeline[len(timeline)-maxTimeline:]
	}
	return timeline
}

func (g *AARGenerator) generateExecutiveSummary(events []SimulationEvent, summary SimulationSummary, totals controllers.Totals) ExecutiveSummary {
	es := ExecutiveSummary{
		TotalCycles:      totals.Cycles,
		AssignmentsSent:  totals.AssignmentsSent,
		StatusesReceived: totals.StatusesReceived,
		SafetyViolations: summary.Counts.Violations,
		KeyEvents:        make([]string, 0),
	}

	switch {
	case summary.Counts.Violations > 0:
		es.Outcome = "Completed with safety violations"
	case totals.CycleErrors > 0 || totals.SendFailures > 0 || totals.ReceiveFailures > 0:
		es.Outcome = "Completed with degraded cycles"
	case totals.AssignmentsSent == 0:
		es.Outcome = "Completed without engagements"
	default:
		es.Outcome = "Completed nominally"
	}

	firstAssignment := true
	for _, event := range events {
		if len(es.KeyEvents) >= maxKeyEvents {
			break
		}
		switch event.Type {
		case EventTypeAssignment:
			if firstAssignment {
				es.KeyEvents = append(es.KeyEvents, fmt.Sprintf("Cycle %d: first assignment, %s", event.Cycle, event.Message))
				firstAssignment = false
			}
		case EventTypeViolation, EventTypeError:
			es.KeyEvents = append(es.KeyEvents, fmt.Sprintf("Cycle %d: %s", event.Cycle, event.Message))
		}
	}
	return es
}

func (g *AARGenerator) generateRecommendations(aar *AAR) []Recommendation {
	recs := make([]Recommendation, 0)

	if aar.Summary.SafetyViolations > 0 {
		recs = append(recs, Recommendation{
			Priority:    "High",
			Title:       "Review fire-control reports",
			Description: fmt.Sprintf("The peer reported %d status messages that break engagement rules.", aar.Summary.SafetyViolations),
		})
	}
	if aar.Engagements.SendFailures > 0 || aar.Engagements.ReceiveFailures > 0 {
		recs = append(recs, Recommendation{
			Priority: "Medium",
			Title:    "Check the peer link",
			Description: fmt.Sprintf("%d sends and %d receives failed; verify peer host and ports.",
				aar.Engagements.SendFailures, aar.Engagements.ReceiveFailures),
		})
	}
	if g.config.CycleInterval > 0 && aar.Performance.P95CycleMs > durationMs(g.config.CycleInterval) {
		recs = append(recs, Recommendation{
			Priority: "Medium",
			Title:    "Cycle overrun",
			Description: fmt.Sprintf("p95 cycle time %.3fms exceeds the %v cadence.",
				aar.Performance.P95CycleMs, g.config.CycleInterval),
		})
	}
	if aar.Performance.Stability < stabilityTarget {
		recs = append(recs, Recommendation{
			Priority:    "Medium",
			Title:       "Investigate cycle errors",
			Description: fmt.Sprintf("%d cycles failed (%.1f%% stability).", aar.Performance.CycleErrors, aar.Performance.Stability*100),
		})
	}
	if aar.Summary.AssignmentsSent > 0 && aar.Summary.StatusesReceived == 0 {
		recs = append(recs, Recommendation{
			Priority:    "Low",
			Title:       "No engagement status received",
			Description: "Assignments were sent but the peer never answered; confirm it is running and bound to the status port.",
		})
	}
	return recs
}

func isSignificantEvent(event SimulationEvent) bool {
	switch event.Type {
	case EventTypeTransition, EventTypeViolation, EventTypeError:
		return true
	default:
		return false
	}
}

func assessImpact(event SimulationEvent) string {
	switch event.Severity {
	case SeverityCritical:
		return "Critical"
	case SeverityError:
		return "High"
	case SeverityWarning:
		return "Medium"
	default:
		return "Low"
	}
}

func historyValues(m Metric) []float64 {
	values := make([]float64, len(m.History))
	for i, p := range m.History {
		values[i] = p.Value
	}
	return values
}

func formatDuration(d time.Duration) string {
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
