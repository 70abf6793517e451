package core

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"
)

// ScenarioType names a track population profile
type ScenarioType int

const (
	// ScenarioSingleTarget keeps exactly one object moving through the zone
	ScenarioSingleTarget ScenarioType = iota
	// ScenarioSwarm keeps 3-10 simultaneous objects
	ScenarioSwarm
	// ScenarioSaturation keeps 10-20 simultaneous objects
	ScenarioSaturation
)

// Target count bounds per scenario type
const (
	swarmMinTargets      = 3
	swarmMaxTargets      = 10
	saturationMinTargets = 10
	saturationMaxTargets = 20
)

// Per-cycle probabilities
const (
	spawnProbability      = 0.10
	reManeuverProbability = 0.05
)

func (s ScenarioType) String() string {
	switch s {
	case ScenarioSingleTarget:
		return "single_target"
	case ScenarioSwarm:
		return "swarm"
	case ScenarioSaturation:
		return "saturation"
	default:
		return fmt.Sprintf("ScenarioType(%d)", int(s))
	}
}

// ParseScenarioType accepts the names produced by String plus a few common aliases
func ParseScenarioType(name string) (ScenarioType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "single_target", "single-target", "single", "singletarget":
		return ScenarioSingleTarget, nil
	case "swarm":
		return ScenarioSwarm, nil
	case "saturation":
		return ScenarioSaturation, nil
	default:
		return 0, fmt.Errorf("unknown scenario type %q", name)
	}
}

// ScenarioConfig bounds the generated population
type ScenarioConfig struct {
	Type                 ScenarioType
	TargetCount          uint32
	MinRangeM            float64
	MaxRangeM            float64
	MinVelocityMs        float64
	MaxVelocityMs        float64
	MinElevationRad      float64
	MaxElevationRad      float64
	DetectionZoneRadiusM float64
}

// DefaultScenarioConfig returns a single-target scenario with the stock bounds
func DefaultScenarioConfig() ScenarioConfig {
	return ScenarioConfig{
		Type:                 ScenarioSingleTarget,
		TargetCount:          1,
		MinRangeM:            1000.0,
		MaxRangeM:            10000.0,
		MinVelocityMs:        50.0,
		MaxVelocityMs:        300.0,
		MinElevationRad:      -0.5,
		MaxElevationRad:      0.5,
		DetectionZoneRadiusM: 15000.0,
	}
}

// ScenarioEngine generates and evolves track populations for the active scenario.
// It is not safe for concurrent use; the coordinator is its only driver.
type ScenarioEngine struct {
	config      ScenarioConfig
	nextTrackID uint32
	rng         *rand.Rand
	now         func() time.Time
	epoch       time.Time
	startTimeS  float64
}

// EngineOption customizes a ScenarioEngine
type EngineOption func(*ScenarioEngine)

// WithRand injects the random source used for generation and maneuvering
func WithRand(r *rand.Rand) EngineOption {
	return func(e *ScenarioEngine) {
		if r != nil {
			e.rng = r
		}
	}
}

// WithSeed seeds a deterministic random source
func WithSeed(seed uint64) EngineOption {
	return func(e *ScenarioEngine) {
		e.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithClock replaces the wall clock used for entry and update timestamps
func WithClock(now func() time.Time) EngineOption {
	return func(e *ScenarioEngine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewScenarioEngine creates an engine running the default single-target scenario
func NewScenarioEngine(opts ...EngineOption) *ScenarioEngine {
	e := &ScenarioEngine{
		config:      DefaultScenarioConfig(),
		nextTrackID: 1,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	e.epoch = e.now()
	e.startTimeS = e.currentTime()
	return e
}

// SetScenario installs a new configuration, clamps its target count for the type
// and restarts track numbering. The effective configuration is returned.
func (e *ScenarioEngine) SetScenario(scenarioType ScenarioType, config ScenarioConfig) ScenarioConfig {
	config.Type = scenarioType

	switch scenarioType {
	case ScenarioSingleTarget:
		config.TargetCount = 1
	case ScenarioSwarm:
		config.TargetCount = clampCount(config.TargetCount, swarmMinTargets, swarmMaxTargets)
	case ScenarioSaturation:
		config.TargetCount = clampCount(config.TargetCount, saturationMinTargets, saturationMaxTargets)
	}

	e.config = config
	e.nextTrackID = 1
	e.startTimeS = e.currentTime()
	return config
}

// Config returns the active scenario configuration
func (e *ScenarioEngine) Config() ScenarioConfig {
	return e.config
}

// CurrentScenario returns the active scenario type
func (e *ScenarioEngine) CurrentScenario() ScenarioType {
	return e.config.Type
}

// ElapsedS returns seconds since the active scenario was installed
func (e *ScenarioEngine) ElapsedS() float64 {
	return e.currentTime() - e.startTimeS
}

// GenerateInitialTracks creates TargetCount independently sampled tracks
func (e *ScenarioEngine) GenerateInitialTracks() []*TrackState {
	tracks := make([]*TrackState, 0, e.config.TargetCount)
	for i := uint32(0); i < e.config.TargetCount; i++ {
		tracks = e.AddNewTrack(tracks)
	}
	return tracks
}

// AddNewTrack appends one freshly generated track to the population
func (e *ScenarioEngine) AddNewTrack(tracks []*TrackState) []*TrackState {
	ts := e.createRandomTrack(e.nextTrackID)
	e.nextTrackID++
	ts.EntryTimeS = e.currentTime()
	ts.LastUpdateTimeS = ts.EntryTimeS
	return append(tracks, ts)
}

// UpdateTracks advances every active track by dt seconds, drops tracks that left
// the detection zone and spawns replacements per the scenario type.
func (e *ScenarioEngine) UpdateTracks(tracks []*TrackState, dt float64) []*TrackState {
	now := e.currentTime()

	for _, ts := range tracks {
		if !ts.Active {
			continue
		}
		ts.pushHistory(ts.Track)
		e.ApplyMotionModel(ts, dt)
		ts.AgeCycles++
		ts.LastUpdateTimeS = now
	}

	tracks = e.RemoveOutOfBounds(tracks)

	switch e.config.Type {
	case ScenarioSingleTarget:
		if len(tracks) == 0 {
			tracks = e.AddNewTrack(tracks)
		}
	case ScenarioSwarm, ScenarioSaturation:
		if uint32(len(tracks)) < e.config.TargetCount && e.rng.Float64() < spawnProbability {
			tracks = e.AddNewTrack(tracks)
		}
	}

	return tracks
}

// RemoveOutOfBounds filters the population in place, keeping order
func (e *ScenarioEngine) RemoveOutOfBounds(tracks []*TrackState) []*TrackState {
	kept := tracks[:0]
	for _, ts := range tracks {
		if e.IsInBounds(ts) {
			kept = append(kept, ts)
		}
	}
	for i := len(kept); i < len(tracks); i++ {
		tracks[i] = nil
	}
	return kept
}

// IsInBounds reports whether the track lies inside the detection zone envelope
func (e *ScenarioEngine) IsInBounds(ts *TrackState) bool {
	t := ts.Track
	if t.RangeM < e.config.MinRangeM || t.RangeM > e.config.DetectionZoneRadiusM {
		return false
	}
	if t.ElevationRad < e.config.MinElevationRad || t.ElevationRad > e.config.MaxElevationRad {
		return false
	}
	return true
}

func (e *ScenarioEngine) createRandomTrack(id uint32) *TrackState {
	ts := &TrackState{
		Track: Track{
			ID:           id,
			RangeM:       e.uniform(e.config.MinRangeM, e.config.MaxRangeM),
			AzimuthRad:   e.randomAngle(),
			ElevationRad: e.uniform(e.config.MinElevationRad, e.config.MaxElevationRad),
			VelocityMs:   e.uniform(e.config.MinVelocityMs, e.config.MaxVelocityMs),
			HeadingRad:   e.randomAngle(),
		},
		MotionModel: MotionLinear,
		Active:      true,
	}

	if e.rng.IntN(2) == 1 {
		ts.MotionModel = MotionManeuvering
		e.randomizeManeuver(ts)
	}

	return ts
}

func (e *ScenarioEngine) randomizeManeuver(ts *TrackState) {
	ts.AccelerationMs2 = e.uniform(-MaxAccelerationMs2, MaxAccelerationMs2)
	ts.AngularVelocityRads = e.uniform(-MaxAngularVelocityRads, MaxAngularVelocityRads)
}

// uniform samples [lo, hi); an inverted pair is sampled as if swapped
func (e *ScenarioEngine) uniform(lo, hi float64) float64 {
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo + e.rng.Float64()*(hi-lo)
}

// randomAngle samples (-π, π]
func (e *ScenarioEngine) randomAngle() float64 {
	return math.Pi - e.rng.Float64()*2*math.Pi
}

func (e *ScenarioEngine) currentTime() float64 {
	return e.now().Sub(e.epoch).Seconds()
}

func clampCount(n, lo, hi uint32) uint32 {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
