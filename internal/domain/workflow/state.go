package workflow

// State represents the lifecycle state of a work report
type State string

const (
	StateDraft     State = "draft"
	StateSend      State = "send"
	StateSubmitted State = "submitted"
	StateRejected  State = "rejected"
	StateApproved  State = "approved"
)

var validStates = map[State]bool{
	StateDraft:     true,
	StateSend:      true,
	StateSubmitted: true,
	StateRejected:  true,
	StateApproved:  true,
}

// editableStates are the states in which the team leader may change report data
var editableStates = map[State]bool{
	StateDraft:    true,
	StateRejected: true,
}

// IsEditable returns true if report data may be modified in this state
func (s State) IsEditable() bool {
	return editableStates[s]
}

// IsTerminal returns true if no further transitions leave this state
func (s State) IsTerminal() bool {
	return s == StateApproved
}

// HasOutcome returns true once a submission outcome has been recorded
func (s State) HasOutcome() bool {
	return s == StateSubmitted || s == StateRejected || s == StateApproved
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known report state
func (s State) IsValid() bool {
	return validStates[s]
}
