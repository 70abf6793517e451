package controllers

import (
	"context"
	"fmt"
	"time"

	"github.com/picogrid/skyguard-c2/cmd/c2-node/core"
	"github.com/picogrid/skyguard-c2/pkg/protocol"
)

// Component names passed to Reporter.ReportError
const (
	ComponentCoordinator = "coordinator"
	ComponentGateway     = "gateway"
)

// TrackSource is the simulated sensor feeding the coordinator
type TrackSource interface {
	Update(dt float64)
	ActiveTracks() []core.Track
}

// Prioritizer ranks tracks by threat
type Prioritizer interface {
	Evaluate(track core.Track) core.ThreatScore
	Prioritize(tracks []core.Track) []core.ThreatScore
}

// Transport exchanges messages with the fire-control peer. Receive returns
// ok == false with a nil error when nothing is pending.
type Transport interface {
	Send(assignment protocol.TargetAssignment) error
	Receive() (protocol.EngagementStatus, bool, error)
}

// Reporter receives read-only views of each cycle. The coordinator never
// depends on a reporter succeeding; panics inside a reporter are swallowed.
type Reporter interface {
	ReportTracks(cycle uint64, tracks []core.Track)
	ReportAssignment(cycle uint64, assignment protocol.TargetAssignment, score core.ThreatScore)
	ReportStatus(cycle uint64, status protocol.EngagementStatus)
	ReportCycle(stats CycleStats)
	ReportError(cycle uint64, component string, err error)
	ReportSummary(summary PerformanceSummary)
}

// Config controls loop cadence and engagement policy
type Config struct {
	CycleInterval   time.Duration
	FixedDtS        float64 // when > 0, used instead of measured wall-clock dt
	EngageThreshold float64 // top score must exceed this to send an assignment
	MaxCycles       uint64  // 0 = unbounded
	Duration        time.Duration
	SummaryEvery    int // cycles per performance summary, 0 disables
}

// DefaultConfig returns a 10 Hz loop with a 0.5 engagement threshold
func DefaultConfig() Config {
	return Config{
		CycleInterval:   100 * time.Millisecond,
		EngageThreshold: 0.5,
		SummaryEvery:    100,
	}
}

// CycleStats describes one completed cycle
type CycleStats struct {
	Cycle          uint64
	Timestamp      time.Time
	DtS            float64
	ActiveTracks   int
	TopTrackID     uint32
	TopScore       float64
	AssignmentSent bool
	StatusReceived bool
	Latency        time.Duration
	Err            error
}

// Totals are cumulative counters over the coordinator's lifetime
type Totals struct {
	Cycles           uint64
	AssignmentsSent  uint64
	SendFailures     uint64
	StatusesReceived uint64
	ReceiveFailures  uint64
	CycleErrors      uint64
	ReporterPanics   uint64
}

// Coordinator drives sense, evaluate, dispatch and receive once per cycle. It is
// the sole owner of its collaborators and is not safe for concurrent use.
type Coordinator struct {
	cfg         Config
	tracks      TrackSource
	prioritizer Prioritizer
	transport   Transport
	reporter    Reporter
	now         func() time.Time

	cycle     uint64
	lastCycle time.Time
	totals    Totals
	window    *latencyWindow
}

// Option customizes a Coordinator
type Option func(*Coordinator)

// WithClock replaces the wall clock used for dt and latency measurement
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithReporter sets the reporting collaborator
func WithReporter(r Reporter) Option {
	return func(c *Coordinator) {
		if r != nil {
			c.reporter = r
		}
	}
}

// New creates a coordinator. A zero CycleInterval falls back to the default.
func New(cfg Config, tracks TrackSource, prioritizer Prioritizer, transport Transport, opts ...Option) *Coordinator {
	if cfg.CycleInterval <= 0 {
		cfg.CycleInterval = DefaultConfig().CycleInterval
	}
	c := &Coordinator{
		cfg:         cfg,
		tracks:      tracks,
		prioritizer: prioritizer,
		transport:   transport,
		reporter:    NopReporter{},
		now:         time.Now,
		window:      newLatencyWindow(cfg.SummaryEvery),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes cycles at the configured cadence until ctx is cancelled or a
// configured bound (MaxCycles, Duration) is reached. Cancellation is observed
// only between cycles.
func (c *Coordinator) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.CycleInterval)
	defer ticker.Stop()

	start := c.now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.Step()
			if c.boundReached(start) {
				return nil
			}
		}
	}
}

// Step runs exactly one cycle and returns its statistics
func (c *Coordinator) Step() CycleStats {
	start := c.now()
	c.cycle++
	c.totals.Cycles++

	stats := CycleStats{Cycle: c.cycle, Timestamp: start}
	if err := c.runCycle(start, &stats); err != nil {
		c.totals.CycleErrors++
		stats.Err = err
		c.safely(func() { c.reporter.ReportError(stats.Cycle, ComponentCoordinator, err) })
	}
	stats.Latency = c.now().Sub(start)

	c.safely(func() { c.reporter.ReportCycle(stats) })

	// The window is only filled while summaries drain it.
	if c.cfg.SummaryEvery > 0 {
		c.window.observe(stats)
		if c.cycle%uint64(c.cfg.SummaryEvery) == 0 {
			summary := c.window.summarize(c.cycle, c.totals)
			c.window.reset()
			c.safely(func() { c.reporter.ReportSummary(summary) })
		}
	}
	return stats
}

// Cycle returns the number of cycles run so far
func (c *Coordinator) Cycle() uint64 {
	return c.cycle
}

// Totals returns the cumulative counters
func (c *Coordinator) Totals() Totals {
	return c.totals
}

// runCycle performs the cycle body. A panic in any collaborator becomes the
// returned error.
func (c *Coordinator) runCycle(start time.Time, stats *CycleStats) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle %d panicked: %v", stats.Cycle, r)
		}
	}()

	stats.DtS = c.deltaSeconds(start)
	c.tracks.Update(stats.DtS)
	tracks := c.tracks.ActiveTracks()
	stats.ActiveTracks = len(tracks)
	c.safely(func() { c.reporter.ReportTracks(stats.Cycle, tracks) })

	if len(tracks) > 0 {
		c.dispatch(tracks, stats)
	}

	status, ok, rerr := c.transport.Receive()
	switch {
	case rerr != nil:
		c.totals.ReceiveFailures++
		c.safely(func() { c.reporter.ReportError(stats.Cycle, ComponentGateway, fmt.Errorf("receive: %w", rerr)) })
	case ok:
		c.totals.StatusesReceived++
		stats.StatusReceived = true
		c.safely(func() { c.reporter.ReportStatus(stats.Cycle, status) })
	}
	return nil
}

// dispatch sends an assignment for the top-ranked track when it clears the threshold
func (c *Coordinator) dispatch(tracks []core.Track, stats *CycleStats) {
	scores := c.prioritizer.Prioritize(tracks)
	if len(scores) == 0 {
		return
	}
	top := scores[0]
	stats.TopTrackID = top.TrackID
	stats.TopScore = top.Score
	if top.Score <= c.cfg.EngageThreshold {
		return
	}

	track, found := findTrack(tracks, top.TrackID)
	if !found {
		return
	}
	score := c.prioritizer.Evaluate(track)
	assignment := AssignmentFor(track, score)

	if err := c.transport.Send(assignment); err != nil {
		c.totals.SendFailures++
		c.safely(func() { c.reporter.ReportError(stats.Cycle, ComponentGateway, fmt.Errorf("send assignment for track %d: %w", track.ID, err)) })
		return
	}
	c.totals.AssignmentsSent++
	stats.AssignmentSent = true
	c.safely(func() { c.reporter.ReportAssignment(stats.Cycle, assignment, score) })
}

func (c *Coordinator) deltaSeconds(now time.Time) float64 {
	if c.cfg.FixedDtS > 0 {
		return c.cfg.FixedDtS
	}
	dt := c.cfg.CycleInterval.Seconds()
	if !c.lastCycle.IsZero() {
		dt = now.Sub(c.lastCycle).Seconds()
	}
	c.lastCycle = now
	return dt
}

func (c *Coordinator) boundReached(start time.Time) bool {
	if c.cfg.MaxCycles > 0 && c.cycle >= c.cfg.MaxCycles {
		return true
	}
	if c.cfg.Duration > 0 && c.now().Sub(start) >= c.cfg.Duration {
		return true
	}
	return false
}

// safely isolates the loop from reporter panics
func (c *Coordinator) safely(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.totals.ReporterPanics++
		}
	}()
	fn()
}

func findTrack(tracks []core.Track, id uint32) (core.Track, bool) {
	for _, t := range tracks {
		if t.ID == id {
			return t, true
		}
	}
	return core.Track{}, false
}

// AssignmentFor builds the outbound message for a track
func AssignmentFor(track core.Track, score core.ThreatScore) protocol.TargetAssignment {
	return protocol.TargetAssignment{
		TargetID:     track.ID,
		RangeM:       track.RangeM,
		AzimuthRad:   track.AzimuthRad,
		ElevationRad: track.ElevationRad,
		VelocityMs:   track.VelocityMs,
		Priority:     score.Priority,
	}
}

// NopReporter discards everything
type NopReporter struct{}

func (NopReporter) ReportTracks(uint64, []core.Track)                                    {}
func (NopReporter) ReportAssignment(uint64, protocol.TargetAssignment, core.ThreatScore) {}
func (NopReporter) ReportStatus(uint64, protocol.EngagementStatus)                       {}
func (NopReporter) ReportCycle(CycleStats)                                               {}
func (NopReporter) ReportError(uint64, string, error)                                    {}
func (NopReporter) ReportSummary(PerformanceSummary)                                     {}
