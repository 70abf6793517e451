package core

// DefaultCycleDeltaS is the update step used when the caller has no measured delta
const DefaultCycleDeltaS = 0.1

// RadarSimulator owns a track population and drives a ScenarioEngine over it
type RadarSimulator struct {
	engine      *ScenarioEngine
	tracks      []*TrackState
	initialized bool
}

// NewRadarSimulator wraps the given engine. The population is generated lazily
// on the first update unless SetScenario is called first.
func NewRadarSimulator(engine *ScenarioEngine) *RadarSimulator {
	if engine == nil {
		engine = NewScenarioEngine()
	}
	return &RadarSimulator{engine: engine}
}

// SetScenario replaces the population with a freshly generated one
func (r *RadarSimulator) SetScenario(scenarioType ScenarioType, config ScenarioConfig) ScenarioConfig {
	effective := r.engine.SetScenario(scenarioType, config)
	r.tracks = r.engine.GenerateInitialTracks()
	r.initialized = true
	return effective
}

// CurrentScenario returns the active scenario type
func (r *RadarSimulator) CurrentScenario() ScenarioType {
	return r.engine.CurrentScenario()
}

// Engine exposes the underlying scenario engine
func (r *RadarSimulator) Engine() *ScenarioEngine {
	return r.engine
}

// Update advances the population by dt seconds
func (r *RadarSimulator) Update(dt float64) {
	if !r.initialized {
		r.tracks = r.engine.GenerateInitialTracks()
		r.initialized = true
	}
	r.tracks = r.engine.UpdateTracks(r.tracks, dt)
}

// ActiveTracks returns snapshots of every active track
func (r *RadarSimulator) ActiveTracks() []Track {
	out := make([]Track, 0, len(r.tracks))
	for _, ts := range r.tracks {
		if ts.Active {
			out = append(out, ts.Track)
		}
	}
	return out
}

// TrackStates returns the population; callers must treat it as read-only
func (r *RadarSimulator) TrackStates() []*TrackState {
	return r.tracks
}

// ActiveTrackCount returns the number of active tracks
func (r *RadarSimulator) ActiveTrackCount() int {
	n := 0
	for _, ts := range r.tracks {
		if ts.Active {
			n++
		}
	}
	return n
}
