package reporting

import (
	"github.com/picogrid/skyguard-c2/cmd/c2-node/controllers"
	"github.com/picogrid/skyguard-c2/cmd/c2-node/core"
	"github.com/picogrid/skyguard-c2/pkg/logger"
	"github.com/picogrid/skyguard-c2/pkg/protocol"
)

// Multi fans every report out to a list of reporters. A reporter that panics
// is logged and skipped for that call; the others still run.
type Multi []controllers.Reporter

// NewMulti drops nil reporters
func NewMulti(reporters ...controllers.Reporter) Multi {
	m := make(Multi, 0, len(reporters))
	for _, r := range reporters {
		if r != nil {
			m = append(m, r)
		}
	}
	return m
}

func (m Multi) ReportTracks(cycle uint64, tracks []core.Track) {
	m.each(func(r controllers.Reporter) { r.ReportTracks(cycle, tracks) })
}

func (m Multi) ReportAssignment(cycle uint64, a protocol.TargetAssignment, score core.ThreatScore) {
	m.each(func(r controllers.Reporter) { r.ReportAssignment(cycle, a, score) })
}

func (m Multi) ReportStatus(cycle uint64, s protocol.EngagementStatus) {
	m.each(func(r controllers.Reporter) { r.ReportStatus(cycle, s) })
}

func (m Multi) ReportCycle(stats controllers.CycleStats) {
	m.each(func(r controllers.Reporter) { r.ReportCycle(stats) })
}

func (m Multi) ReportError(cycle uint64, component string, err error) {
	m.each(func(r controllers.Reporter) { r.ReportError(cycle, component, err) })
}

func (m Multi) ReportSummary(summary controllers.PerformanceSummary) {
	m.each(func(r controllers.Reporter) { r.ReportSummary(summary) })
}

func (m Multi) each(fn func(controllers.Reporter)) {
	for _, r := range m {
		func() {
			defer func() {
				if p := recover(); p != nil {
					logger.Warnf("Reporter %T panicked: %v", r, p)
				}
			}()
			fn(r)
		}()
	}
}
