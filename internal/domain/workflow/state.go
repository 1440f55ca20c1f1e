package workflow

// State represents a document status in the approval lifecycle
type State string

const (
	StateDraft      State = "DRAFT"
	StateSubmitted  State = "SUBMITTED"
	StateInProgress State = "IN_PROGRESS"
	StateApproved   State = "APPROVED"
	StateRejected   State = "REJECTED"
	StateCancelled  State = "CANCELLED"
)

var validStates = map[State]bool{
	StateDraft:      true,
	StateSubmitted:  true,
	StateInProgress: true,
	StateApproved:   true,
	StateRejected:   true,
	StateCancelled:  true,
}

var terminalStates = map[State]bool{
	StateApproved:  true,
	StateRejected:  true,
	StateCancelled: true,
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid document status
func (s State) IsValid() bool {
	return validStates[s]
}
