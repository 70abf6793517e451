package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Icons used by the console helpers
const (
	IconSuccess = "✅"
	IconTarget  = "🎯"
	IconWarning = "⚠️"
	IconError   = "❌"
	IconMetric  = "📊"
	IconDot     = "•"
	IconArrow   = "→"
)

var (
	colorSection  = color.New(color.FgCyan, color.Bold)
	colorRule     = color.New(color.FgCyan)
	colorSubRule  = color.New(color.FgHiBlack)
	colorKey      = color.New(color.FgCyan)
	colorHeader   = color.New(color.Bold)
	colorCritical = color.New(color.FgRed, color.Bold)
)

// Console returns the default logger's writer and colour setting
func Console() (io.Writer, bool) {
	if s := defaultSink(); s != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.out, s.noColor
	}
	return os.Stdout, true
}

// Success logs a success message with a green checkmark
func Success(args ...interface{}) {
	defaultLogger.Info(IconSuccess + " " + fmt.Sprint(args...))
}

// Successf logs a formatted success message
func Successf(format string, args ...interface{}) {
	Success(fmt.Sprintf(format, args...))
}

// LogTargetAssignment records an assignment sent to the fire-control peer
func LogTargetAssignment(targetID uint32, rangeM, azimuthRad float64) {
	defaultLogger.WithPrefix("ASSIGN").Infof("%s target %d at %.0fm az %.3f rad", IconTarget, targetID, rangeM, azimuthRad)
}

// LogStateTransition records an engagement state change for a target
func LogStateTransition(targetID uint32, from, to string) {
	defaultLogger.WithPrefix("STATE").Infof("target %d %s %s %s", targetID, from, IconArrow, to)
}

// LogSafetyViolation records a report that breaks engagement rules
func LogSafetyViolation(detail string) {
	_, noColor := Console()
	defaultLogger.WithPrefix("SAFETY").Error(paint(noColor, colorCritical, IconWarning+" VIOLATION: "+detail))
}

// LogComponentError records a failure inside a named component
func LogComponentError(component string, err error) {
	defaultLogger.WithPrefix(component).Errorf("%s %v", IconError, err)
}

// LogPerformanceMetric records a named measurement
func LogPerformanceMetric(name string, value float64, unit string) {
	defaultLogger.WithPrefix("PERF").Infof("%s %s=%.3f%s", IconMetric, name, value, unit)
}

// LogSection creates a visual section separator
func LogSection(title string) {
	w, noColor := Console()
	line := strings.Repeat("=", 60)
	fmt.Fprintln(w, paint(noColor, colorRule, line))
	fmt.Fprintln(w, paint(noColor, colorSection, title))
	fmt.Fprintln(w, paint(noColor, colorRule, line))
}

// LogSubSection creates a visual subsection separator
func LogSubSection(title string) {
	w, noColor := Console()
	line := strings.Repeat("-", 40)
	fmt.Fprintln(w, paint(noColor, colorSubRule, line))
	fmt.Fprintln(w, paint(noColor, colorSubRule, title))
}

// LogKeyValue prints an aligned key-value pair
func LogKeyValue(key string, value interface{}) {
	w, noColor := Console()
	fmt.Fprintf(w, "  %s %v\n", paint(noColor, colorKey, fmt.Sprintf("%-22s", key+":")), value)
}

// LogList logs a list of items with bullets
func LogList(title string, items []string) {
	Info(title)
	w, _ := Console()
	for _, item := range items {
		fmt.Fprintf(w, "  %s %s\n", IconDot, item)
	}
}

// Table is a fixed-column text table
type Table struct {
	headers []string
	rows    [][]string
}

// NewTable creates a new table
func NewTable(headers ...string) *Table {
	return &Table{headers: headers}
}

// AddRow adds a row; missing cells render empty and extra cells are dropped
func (t *Table) AddRow(values ...string) {
	t.rows = append(t.rows, values)
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.rows)
}

// Render writes the table to w
func (t *Table) Render(w io.Writer, noColor bool) {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = len(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	for i, h := range t.headers {
		fmt.Fprintf(&b, "%-*s  ", widths[i], h)
	}
	fmt.Fprintln(w, paint(noColor, colorHeader, strings.TrimRight(b.String(), " ")))

	b.Reset()
	for i := range t.headers {
		b.WriteString(strings.Repeat("-", widths[i]) + "  ")
	}
	fmt.Fprintln(w, strings.TrimRight(b.String(), " "))

	for _, row := range t.rows {
		b.Reset()
		for i := range widths {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			fmt.Fprintf(&b, "%-*s  ", widths[i], cell)
		}
		fmt.Fprintln(w, strings.TrimRight(b.String(), " "))
	}
}

// Print writes the table to the default logger's console
func (t *Table) Print() {
	w, noColor := Console()
	t.Render(w, noColor)
}
