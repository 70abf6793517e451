package controllers

import (
	"slices"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// PerformanceSummary aggregates the cycles since the previous summary
type PerformanceSummary struct {
	Cycle            uint64
	WindowCycles     int
	MeanLatency      time.Duration
	StdDevLatency    time.Duration
	P95Latency       time.Duration
	MaxLatency       time.Duration
	MeanActiveTracks float64
	Totals           Totals
}

// latencyWindow collects per-cycle samples between summaries
type latencyWindow struct {
	latenciesMs []float64
	tracks      []float64
}

func newLatencyWindow(capacity int) *latencyWindow {
	if capacity < 0 {
		capacity = 0
	}
	return &latencyWindow{
		latenciesMs: make([]float64, 0, capacity),
		tracks:      make([]float64, 0, capacity),
	}
}

func (w *latencyWindow) observe(stats CycleStats) {
	w.latenciesMs = append(w.latenciesMs, float64(stats.Latency)/float64(time.Millisecond))
	w.tracks = append(w.tracks, float64(stats.ActiveTracks))
}

func (w *latencyWindow) reset() {
	w.latenciesMs = w.latenciesMs[:0]
	w.tracks = w.tracks[:0]
}

func (w *latencyWindow) summarize(cycle uint64, totals Totals) PerformanceSummary {
	summary := PerformanceSummary{
		Cycle:        cycle,
		WindowCycles: len(w.latenciesMs),
		Totals:       totals,
	}
	if len(w.latenciesMs) == 0 {
		return summary
	}

	mean, std := stat.MeanStdDev(w.latenciesMs, nil)
	if len(w.latenciesMs) < 2 {
		std = 0
	}
	sorted := slices.Clone(w.latenciesMs)
	slices.Sort(sorted)

	summary.MeanLatency = msToDuration(mean)
	summary.StdDevLatency = msToDuration(std)
	summary.P95Latency = msToDuration(stat.Quantile(0.95, stat.Empirical, sorted, nil))
	summary.MaxLatency = msToDuration(floats.Max(sorted))
	summary.MeanActiveTracks = stat.Mean(w.tracks, nil)
	return summary
}

func msToDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
