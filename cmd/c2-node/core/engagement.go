package core

import "fmt"

// Engagement states reported by the fire-control peer
const (
	StateIdle uint8 = iota
	StateAcquiring
	StateTracking
	StateEngaging
	StateFiring
	StateCeaseFire
)

// MaxKnownState is the highest state value the peer is allowed to report
const MaxKnownState = StateCeaseFire

var stateNames = [...]string{
	StateIdle:      "Idle",
	StateAcquiring: "Acquiring",
	StateTracking:  "Tracking",
	StateEngaging:  "Engaging",
	StateFiring:    "Firing",
	StateCeaseFire: "Cease Fire",
}

// StateName returns the display name of an engagement state byte
func StateName(state uint8) string {
	if int(state) < len(stateNames) {
		return stateNames[state]
	}
	return fmt.Sprintf("Unknown(%d)", state)
}
