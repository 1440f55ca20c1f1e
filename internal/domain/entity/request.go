package entity

import (
	"time"

	"github.com/baeksung/approval-engine/internal/domain/workflow"
)

// ApprovalRequest represents one document under approval.
type ApprovalRequest struct {
	ID             string                 `json:"id"`
	TemplateID     string                 `json:"template_id"`
	DocumentNumber string                 `json:"document_number"`
	Title          string                 `json:"title"`
	Content        string                 `json:"content"`
	FormData       map[string]interface{} `json:"form_data"`
	RequesterID    string                 `json:"requester_id"`
	RequesterName  string                 `json:"requester_name"`
	DepartmentID   string                 `json:"department_id,omitempty"`
	Status         workflow.State         `json:"status"`
	CurrentStep    int                    `json:"current_step"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
	SubmittedAt    *time.Time             `json:"submitted_at,omitempty"`
	CompletedAt    *time.Time             `json:"completed_at,omitempty"`
}

// IsCompleted returns true once the request reached a final decision.
// Cancelled requests are closed but not completed: no decision was made.
func (r *ApprovalRequest) IsCompleted() bool {
	return r.Status == workflow.StateApproved || r.Status == workflow.StateRejected
}
