package entity

import "time"

// HistoryAction is the recorded action of an audit trail entry.
type HistoryAction string

const (
	ActionApprove HistoryAction = "APPROVE"
	ActionReject  HistoryAction = "REJECT"
	ActionCancel  HistoryAction = "CANCEL"
)

// ApprovalHistory is an append-only audit trail entry. Entries are never
// updated or deleted, cancellation included.
type ApprovalHistory struct {
	ID           string        `json:"id"`
	RequestID    string        `json:"request_id"`
	ApproverID   string        `json:"approver_id"`
	ApproverName string        `json:"approver_name"`
	Action       HistoryAction `json:"action"`
	Comment      string        `json:"comment,omitempty"`
	IPAddress    string        `json:"ip_address,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}
