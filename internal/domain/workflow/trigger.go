package workflow

// Trigger represents an event that can cause a status transition
type Trigger string

const (
	TriggerSubmit   Trigger = "SUBMIT"
	TriggerProgress Trigger = "PROGRESS"
	TriggerApprove  Trigger = "APPROVE"
	TriggerReject   Trigger = "REJECT"
	TriggerCancel   Trigger = "CANCEL"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
