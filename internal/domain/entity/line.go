package entity

import "time"

// LineStatus is the decision state of a single approver's slot.
type LineStatus string

const (
	LinePending  LineStatus = "PENDING"
	LineApproved LineStatus = "APPROVED"
	LineRejected LineStatus = "REJECTED"
)

// IsDecided returns true once the line left PENDING. A decided line
// never returns to PENDING.
func (s LineStatus) IsDecided() bool {
	return s == LineApproved || s == LineRejected
}

// ApprovalLine is one approver's slot in one request's approval chain.
// StepOrder positions the slot; lower steps must clear before higher ones.
// Parallel lines share a step and do not wait on each other.
type ApprovalLine struct {
	ID           string     `json:"id"`
	RequestID    string     `json:"request_id"`
	ApproverID   string     `json:"approver_id"`
	ApproverName string     `json:"approver_name"`
	StepOrder    int        `json:"step_order"`
	IsRequired   bool       `json:"is_required"`
	IsParallel   bool       `json:"is_parallel"`
	Status       LineStatus `json:"status"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	Comment      string     `json:"comment,omitempty"`
}
