package reporting

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/fatih/color"

	"github.com/picogrid/skyguard-c2/cmd/c2-node/controllers"
	"github.com/picogrid/skyguard-c2/cmd/c2-node/core"
	"github.com/picogrid/skyguard-c2/pkg/logger"
	"github.com/picogrid/skyguard-c2/pkg/protocol"
)

var (
	colorDashTitle = color.New(color.FgCyan, color.Bold)
	colorFiring    = color.New(color.FgRed, color.Bold)
	colorEngaged   = color.New(color.FgYellow)
	colorQuiet     = color.New(color.FgHiBlack)
)

// Dashboard prints a compact track table and the latest engagement status
// every N cycles. It only reads what the coordinator hands it.
type Dashboard struct {
	controllers.NopReporter

	every     uint64
	out       io.Writer
	noColor   bool
	evaluator controllers.Prioritizer

	tracks []core.Track
	latest *protocol.EngagementStatus
	top    uint32
}

// NewDashboard creates a dashboard that renders every `every` cycles (0 disables).
// A nil writer means the logger's console; evaluator may be nil, which drops the score column.
func NewDashboard(every int, out io.Writer, noColor bool, evaluator controllers.Prioritizer) *Dashboard {
	if every < 0 {
		every = 0
	}
	return &Dashboard{
		every:     uint64(every),
		out:       out,
		noColor:   noColor,
		evaluator: evaluator,
	}
}

func (d *Dashboard) ReportTracks(_ uint64, tracks []core.Track) {
	d.tracks = append(d.tracks[:0], tracks...)
}

func (d *Dashboard) ReportStatus(_ uint64, s protocol.EngagementStatus) {
	latest := s
	d.latest = &latest
}

func (d *Dashboard) ReportCycle(stats controllers.CycleStats) {
	d.top = stats.TopTrackID
	if d.every == 0 || stats.Cycle%d.every != 0 {
		return
	}
	d.Render(d.writer(), stats)
}

// Render writes the dashboard for the given cycle
func (d *Dashboard) Render(w io.Writer, stats controllers.CycleStats) {
	title := fmt.Sprintf("C2 DASHBOARD | cycle %d | tracks %d | latency %.3fms",
		stats.Cycle, len(d.tracks), durationMs(stats.Latency))
	rule := strings.Repeat("=", len(title))
	fmt.Fprintln(w, d.paint(colorDashTitle, rule))
	fmt.Fprintln(w, d.paint(colorDashTitle, title))
	fmt.Fprintln(w, d.paint(colorDashTitle, rule))

	if len(d.tracks) == 0 {
		fmt.Fprintln(w, d.paint(colorQuiet, "No active tracks"))
	} else {
		d.trackTable().Render(w, d.noColor)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, d.statusLine())
}

func (d *Dashboard) trackTable() *logger.Table {
	headers := []string{"", "ID", "RANGE(m)", "AZ(deg)", "EL(deg)", "VEL(m/s)", "HDG(deg)"}
	if d.evaluator != nil {
		headers = append(headers, "SCORE", "PRI")
	}
	table := logger.NewTable(headers...)

	for _, t := range d.tracks {
		marker := ""
		if t.ID == d.top {
			marker = ">"
		}
		row := []string{
			marker,
			fmt.Sprintf("%d", t.ID),
			fmt.Sprintf("%.0f", t.RangeM),
			fmt.Sprintf("%.1f", degrees(t.AzimuthRad)),
			fmt.Sprintf("%.1f", degrees(t.ElevationRad)),
			fmt.Sprintf("%.0f", t.VelocityMs),
			fmt.Sprintf("%.1f", degrees(t.HeadingRad)),
		}
		if d.evaluator != nil {
			score := d.evaluator.Evaluate(t)
			row = append(row, fmt.Sprintf("%.3f", score.Score), fmt.Sprintf("%d", score.Priority))
		}
		table.AddRow(row...)
	}
	return table
}

func (d *Dashboard) statusLine() string {
	if d.latest == nil {
		return d.paint(colorQuiet, "Engagement: no status received")
	}

	s := d.latest
	line := fmt.Sprintf("Engagement: target %d | %s | firing %s | lead %.4f rad | tti %.2fs",
		s.TargetID, core.StateName(s.State), yesNo(s.Firing), s.LeadAngleRad, s.TimeToImpactS)
	switch {
	case s.Firing:
		return d.paint(colorFiring, line)
	case s.State == core.StateEngaging || s.State == core.StateTracking:
		return d.paint(colorEngaged, line)
	default:
		return line
	}
}

func (d *Dashboard) writer() io.Writer {
	if d.out != nil {
		return d.out
	}
	w, _ := logger.Console()
	return w
}

func (d *Dashboard) paint(c *color.Color, s string) string {
	if d.noColor {
		return s
	}
	return c.Sprint(s)
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
