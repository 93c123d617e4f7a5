package workflow

import "context"

// StateMachine tracks the current state of one report and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire reports whether trigger would succeed for the actor in ctx
	CanFire(ctx context.Context, trigger Trigger) bool

	// Fire attempts to execute the trigger, transitioning to the new state if allowed
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns the triggers whose guards pass for ctx, sorted
	PermittedTriggers(ctx context.Context) []Trigger
}
