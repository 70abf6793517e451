package core

import (
	"fmt"
	"math"
)

// MaxHistory is the number of prior snapshots a TrackState retains
const MaxHistory = 10

// Velocity limits applied to maneuvering tracks (m/s)
const (
	MinManeuverVelocityMs = 50.0
	MaxManeuverVelocityMs = 500.0
)

// Maneuver parameter ranges used when a maneuvering track is created or re-randomized
const (
	MaxAccelerationMs2     = 50.0
	MaxAngularVelocityRads = 0.5
)

// Track is an instantaneous kinematic snapshot of a detected object
type Track struct {
	ID           uint32
	RangeM       float64
	AzimuthRad   float64
	ElevationRad float64
	VelocityMs   float64
	HeadingRad   float64
}

// String returns a compact human-readable form of the track
func (t Track) String() string {
	return fmt.Sprintf("TK-%04d rng=%.0fm az=%.3f el=%.3f v=%.1fm/s hdg=%.3f",
		t.ID, t.RangeM, t.AzimuthRad, t.ElevationRad, t.VelocityMs, t.HeadingRad)
}

// MotionModel selects how a track evolves between cycles
type MotionModel int

const (
	// MotionLinear keeps velocity and heading constant
	MotionLinear MotionModel = iota
	// MotionManeuvering changes velocity and heading every cycle
	MotionManeuvering
)

func (m MotionModel) String() string {
	switch m {
	case MotionLinear:
		return "linear"
	case MotionManeuvering:
		return "maneuvering"
	default:
		return fmt.Sprintf("MotionModel(%d)", int(m))
	}
}

// TrackState owns a Track plus the engine's bookkeeping for it
type TrackState struct {
	Track       Track
	MotionModel MotionModel

	AccelerationMs2     float64
	AngularVelocityRads float64
	LastUpdateTimeS     float64

	Active     bool
	AgeCycles  uint32
	EntryTimeS float64

	history []Track
}

// History returns the retained snapshots, oldest first
func (ts *TrackState) History() []Track {
	out := make([]Track, len(ts.history))
	copy(out, ts.history)
	return out
}

// pushHistory appends a snapshot, evicting the oldest once MaxHistory is reached
func (ts *TrackState) pushHistory(t Track) {
	if len(ts.history) >= MaxHistory {
		copy(ts.history, ts.history[1:])
		ts.history = ts.history[:MaxHistory-1]
	}
	ts.history = append(ts.history, t)
}

// WrapAngle normalizes an angle in radians into (-π, π]
func WrapAngle(a float64) float64 {
	if math.IsNaN(a) || math.IsInf(a, 0) {
		return a
	}
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// ThreatScore is the evaluator's ranking of one track
type ThreatScore struct {
	TrackID  uint32
	Score    float64
	Priority uint8
}
