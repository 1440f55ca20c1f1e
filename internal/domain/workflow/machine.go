package workflow

import "context"

// StateMachine tracks the current document status and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the trigger is permitted in the current state
	CanFire(trigger Trigger) bool

	// Fire attempts to execute the trigger, transitioning to the new state if allowed
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns all triggers that can be fired in the current state
	PermittedTriggers() []Trigger
}

// NewDocumentMachine builds the approval-document state machine with the
// full transition table, starting from the given status. Terminal states
// (APPROVED, REJECTED, CANCELLED) permit nothing.
func NewDocumentMachine(initial State) StateMachine {
	b := NewBuilder()

	b.Configure(StateDraft).
		Permit(TriggerSubmit, StateSubmitted).
		Permit(TriggerCancel, StateCancelled)

	b.Configure(StateSubmitted).
		Permit(TriggerProgress, StateInProgress).
		Permit(TriggerApprove, StateApproved).
		Permit(TriggerReject, StateRejected).
		Permit(TriggerCancel, StateCancelled)

	b.Configure(StateInProgress).
		Permit(TriggerProgress, StateInProgress).
		Permit(TriggerApprove, StateApproved).
		Permit(TriggerReject, StateRejected).
		Permit(TriggerCancel, StateCancelled)

	return b.Build(initial)
}
