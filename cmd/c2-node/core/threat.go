package core

import (
	"math"
	"slices"
)

// ThreatEvaluator scores tracks so that closer and faster objects rank higher.
// It holds no state and is safe to share.
type ThreatEvaluator struct{}

// NewThreatEvaluator returns a ThreatEvaluator
func NewThreatEvaluator() *ThreatEvaluator {
	return &ThreatEvaluator{}
}

// Evaluate scores a single track
func (ThreatEvaluator) Evaluate(t Track) ThreatScore {
	score := computeThreatScore(t)
	return ThreatScore{
		TrackID:  t.ID,
		Score:    score,
		Priority: priorityFromScore(score),
	}
}

// Prioritize returns scores sorted by descending score; equal scores keep input order
func (ev ThreatEvaluator) Prioritize(tracks []Track) []ThreatScore {
	scores := make([]ThreatScore, 0, len(tracks))
	for _, t := range tracks {
		scores = append(scores, ev.Evaluate(t))
	}
	slices.SortStableFunc(scores, func(a, b ThreatScore) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
	return scores
}

func computeThreatScore(t Track) float64 {
	rangeFactor := 1.0 / (1.0 + t.RangeM/1000.0)
	velocityFactor := t.VelocityMs / 100.0
	return rangeFactor * velocityFactor
}

// priorityFromScore maps score*10 onto a byte, saturating at both ends
func priorityFromScore(score float64) uint8 {
	p := math.Round(score * 10)
	switch {
	case math.IsNaN(p), p <= 0:
		return 0
	case p >= math.MaxUint8:
		return math.MaxUint8
	default:
		return uint8(p)
	}
}
