package core

import "math"

// ApplyMotionModel advances a track by dt seconds using its motion model
func (e *ScenarioEngine) ApplyMotionModel(ts *TrackState, dt float64) {
	switch ts.MotionModel {
	case MotionManeuvering:
		e.applyManeuveringMotion(ts, dt)
	default:
		applyLinearMotion(ts, dt)
	}
}

// applyLinearMotion moves the track along its heading at constant speed.
// Angular deltas are skipped at zero or negative range, where they are undefined.
func applyLinearMotion(ts *TrackState, dt float64) {
	t := &ts.Track
	displacement := t.VelocityMs * dt
	cosEl := math.Cos(t.ElevationRad)

	rangeDelta := displacement * cosEl * math.Cos(t.HeadingRad)
	var azimuthDelta, elevationDelta float64
	if t.RangeM > 0 {
		azimuthDelta = displacement * cosEl * math.Sin(t.HeadingRad) / t.RangeM
		elevationDelta = -displacement * math.Sin(t.ElevationRad) / t.RangeM
	}

	t.RangeM += rangeDelta
	t.AzimuthRad = WrapAngle(t.AzimuthRad + azimuthDelta)
	t.ElevationRad = clamp(t.ElevationRad+elevationDelta, -math.Pi/2, math.Pi/2)
}

// applyManeuveringMotion integrates acceleration and turn rate, then moves linearly
func (e *ScenarioEngine) applyManeuveringMotion(ts *TrackState, dt float64) {
	t := &ts.Track
	t.VelocityMs = clamp(t.VelocityMs+ts.AccelerationMs2*dt, MinManeuverVelocityMs, MaxManeuverVelocityMs)
	t.HeadingRad = WrapAngle(t.HeadingRad + ts.AngularVelocityRads*dt)

	applyLinearMotion(ts, dt)

	if e.rng.Float64() < reManeuverProbability {
		e.randomizeManeuver(ts)
	}
}
