package workflow

// Trigger represents an action that can cause a state transition
type Trigger string

const (
	TriggerSend            Trigger = "SEND"
	TriggerSubmitSucceeded Trigger = "SUBMIT_SUCCEEDED"
	TriggerSubmitFailed    Trigger = "SUBMIT_FAILED"
	TriggerApprove         Trigger = "APPROVE"
	TriggerReject          Trigger = "REJECT"
	TriggerReset           Trigger = "RESET"
)

var validTriggers = map[Trigger]bool{
	TriggerSend:            true,
	TriggerSubmitSucceeded: true,
	TriggerSubmitFailed:    true,
	TriggerApprove:         true,
	TriggerReject:          true,
	TriggerReset:           true,
}

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

// IsValid returns true if the trigger is known
func (t Trigger) IsValid() bool {
	return validTriggers[t]
}
