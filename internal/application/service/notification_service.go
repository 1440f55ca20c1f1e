package service

import (
	"context"
	"time"

	"github.com/baeksung/approval-engine/internal/application/port"
	"github.com/baeksung/approval-engine/internal/domain/entity"
)

// NotificationService fans approval events out to the affected users
// through the configured gateway. Delivery is best effort: a failed or
// disconnected recipient is logged and skipped, and never fails the
// approval operation that produced the event.
type NotificationService struct {
	gateway  port.NotificationGateway
	lineRepo port.LineRepository
	logger   Logger
}

var _ Notifier = (*NotificationService)(nil)

// NewNotificationService creates a new NotificationService
func NewNotificationService(gateway port.NotificationGateway, lineRepo port.LineRepository, logger Logger) *NotificationService {
	return &NotificationService{gateway: gateway, lineRepo: lineRepo, logger: logger}
}

// NotifyNewRequest informs the given approvers that a request now waits
// on them, along with their refreshed pending count.
func (s *NotificationService) NotifyNewRequest(ctx context.Context, request *entity.ApprovalRequest, approverIDs []string) {
	payload := requestPayload(request)
	for _, approverID := range dedupe(approverIDs) {
		s.send(ctx, approverID, port.Notification{
			Type: port.EventNewApprovalRequest,
			Data: payload,
		})
		s.sendPendingCount(ctx, approverID)
	}
}

// NotifyStatusChanged informs the requester that one approver acted on
// their request, and refreshes that approver's pending count.
func (s *NotificationService) NotifyStatusChanged(ctx context.Context, request *entity.ApprovalRequest, lineStatus entity.LineStatus, approverID string) {
	payload := requestPayload(request)
	payload["line_status"] = string(lineStatus)
	payload["approver_id"] = approverID

	s.send(ctx, request.RequesterID, port.Notification{
		Type: port.EventApprovalStatusChanged,
		Data: payload,
	})
	s.sendPendingCount(ctx, approverID)
}

// NotifyCompleted informs the requester and every approver that the
// request reached a final status.
func (s *NotificationService) NotifyCompleted(ctx context.Context, request *entity.ApprovalRequest, lines []*entity.ApprovalLine) {
	payload := requestPayload(request)
	for _, userID := range participants(request, lines) {
		s.send(ctx, userID, port.Notification{
			Type: port.EventApprovalCompleted,
			Data: payload,
		})
		if userID != request.RequesterID {
			s.sendPendingCount(ctx, userID)
		}
	}
}

// NotifyCancelled informs every approver that the requester withdrew
// the request; their pending lines are no longer actionable.
func (s *NotificationService) NotifyCancelled(ctx context.Context, request *entity.ApprovalRequest, lines []*entity.ApprovalLine) {
	payload := requestPayload(request)
	for _, userID := range participants(request, lines) {
		s.send(ctx, userID, port.Notification{
			Type: port.EventApprovalCancelled,
			Data: payload,
		})
		if userID != request.RequesterID {
			s.sendPendingCount(ctx, userID)
		}
	}
}

func (s *NotificationService) sendPendingCount(ctx context.Context, userID string) {
	pending, err := s.lineRepo.ListPendingByApprover(ctx, userID, 0, 0)
	if err != nil {
		s.logger.Warn("Failed to count pending approvals", "error", err, "user_id", userID)
		return
	}
	s.send(ctx, userID, port.Notification{
		Type: port.EventApprovalPendingCount,
		Data: map[string]interface{}{"count": len(pending)},
	})
}

func (s *NotificationService) send(ctx context.Context, userID string, notification port.Notification) {
	if err := s.gateway.Notify(ctx, userID, notification); err != nil {
		s.logger.Warn("Notification delivery failed",
			"error", err, "user_id", userID, "type", notification.Type)
	}
}

func requestPayload(request *entity.ApprovalRequest) map[string]interface{} {
	payload := map[string]interface{}{
		"request_id":      request.ID,
		"document_number": request.DocumentNumber,
		"title":           request.Title,
		"requester_id":    request.RequesterID,
		"requester_name":  request.RequesterName,
		"status":          request.Status.String(),
		"current_step":    request.CurrentStep,
		"updated_at":      request.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if request.CompletedAt != nil {
		payload["completed_at"] = request.CompletedAt.UTC().Format(time.RFC3339)
	}
	return payload
}

// participants returns the requester plus every distinct approver.
func participants(request *entity.ApprovalRequest, lines []*entity.ApprovalLine) []string {
	ids := make([]string, 0, len(lines)+1)
	ids = append(ids, request.RequesterID)
	for _, line := range lines {
		ids = append(ids, line.ApproverID)
	}
	return dedupe(ids)
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
