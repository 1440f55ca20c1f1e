package port

import "context"

// Event types pushed through the notification gateway.
const (
	EventNewApprovalRequest    = "new_approval_request"
	EventApprovalStatusChanged = "approval_status_changed"
	EventApprovalCompleted     = "approval_completed"
	EventApprovalCancelled     = "approval_cancelled"
	EventApprovalPendingCount  = "approval_pending_count"
)

// Notification is one event payload destined for one user.
type Notification struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

// NotificationGateway delivers events to users. Delivery is best-effort:
// implementations report failures through the returned error, and callers
// log and continue. A failed delivery never affects a committed state
// transition.
type NotificationGateway interface {
	Notify(ctx context.Context, userID string, notification Notification) error
}
