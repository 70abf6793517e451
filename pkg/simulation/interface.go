// Package simulation defines the contract between the CLI and the runnable
// simulations it can launch.
package simulation

import "context"

// Simulation defines the interface that all simulations must implement
type Simulation interface {
	// Name returns the registry name of the simulation
	Name() string

	// Description returns a brief description of what the simulation does
	Description() string

	// Configure applies parameters collected from the user, the environment or a params file
	Configure(params map[string]interface{}) error

	// Run blocks until ctx is cancelled or the simulation finishes on its own
	Run(ctx context.Context) error

	// Stop releases resources; it must be safe to call after Run returns
	Stop() error
}
