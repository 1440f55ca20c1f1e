package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baeksung/approval-engine/internal/application/port"
	"github.com/baeksung/approval-engine/internal/domain/entity"
)

func TestNotifyNewRequest(t *testing.T) {
	gateway := newMockGateway()
	lineRepo := &mockLineRepo{
		listPendingFn: func(ctx context.Context, approverID string, limit, offset int) ([]*entity.ApprovalLine, error) {
			return []*entity.ApprovalLine{{ApproverID: approverID}}, nil
		},
	}
	svc := NewNotificationService(gateway, lineRepo, nopLogger{})

	request := inProgressRequest("req-1", "u-1")
	svc.NotifyNewRequest(context.Background(), request, []string{"a-1", "a-2", "a-1"})

	// Each distinct approver gets the event plus a pending-count refresh.
	assert.Equal(t, []string{port.EventNewApprovalRequest, port.EventApprovalPendingCount}, gateway.typesFor("a-1"))
	assert.Equal(t, []string{port.EventNewApprovalRequest, port.EventApprovalPendingCount}, gateway.typesFor("a-2"))

	payload := gateway.sent["a-1"][0].Data
	assert.Equal(t, "req-1", payload["request_id"])
	assert.Equal(t, request.DocumentNumber, payload["document_number"])
}

func TestNotifyStatusChangedTargetsRequester(t *testing.T) {
	gateway := newMockGateway()
	svc := NewNotificationService(gateway, &mockLineRepo{}, nopLogger{})

	request := inProgressRequest("req-1", "u-1")
	svc.NotifyStatusChanged(context.Background(), request, entity.LineApproved, "a-1")

	require.Len(t, gateway.sent["u-1"], 1)
	assert.Equal(t, port.EventApprovalStatusChanged, gateway.sent["u-1"][0].Type)
	assert.Equal(t, string(entity.LineApproved), gateway.sent["u-1"][0].Data["line_status"])

	// The acting approver only gets their refreshed pending count.
	assert.Equal(t, []string{port.EventApprovalPendingCount}, gateway.typesFor("a-1"))
}

func TestNotifyCompletedReachesAllParticipants(t *testing.T) {
	gateway := newMockGateway()
	svc := NewNotificationService(gateway, &mockLineRepo{}, nopLogger{})

	request := inProgressRequest("req-1", "u-1")
	lines := []*entity.ApprovalLine{
		{ApproverID: "a-1"},
		{ApproverID: "a-2"},
		{ApproverID: "a-1"},
	}
	svc.NotifyCompleted(context.Background(), request, lines)

	assert.Equal(t, []string{port.EventApprovalCompleted}, gateway.typesFor("u-1"))
	assert.Contains(t, gateway.typesFor("a-1"), port.EventApprovalCompleted)
	assert.Contains(t, gateway.typesFor("a-2"), port.EventApprovalCompleted)
	// Duplicate approver slots still mean one completion event.
	count := 0
	for _, typ := range gateway.typesFor("a-1") {
		if typ == port.EventApprovalCompleted {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestNotifyCancelled(t *testing.T) {
	gateway := newMockGateway()
	svc := NewNotificationService(gateway, &mockLineRepo{}, nopLogger{})

	request := inProgressRequest("req-1", "u-1")
	request.Status = "CANCELLED"
	svc.NotifyCancelled(context.Background(), request, []*entity.ApprovalLine{{ApproverID: "a-1"}})

	assert.Equal(t, []string{port.EventApprovalCancelled}, gateway.typesFor("u-1"))
	assert.Contains(t, gateway.typesFor("a-1"), port.EventApprovalCancelled)
}

func TestNotifyDeliveryFailureIsSwallowed(t *testing.T) {
	gateway := newMockGateway()
	gateway.err = errors.New("connection reset")
	svc := NewNotificationService(gateway, &mockLineRepo{}, nopLogger{})

	request := inProgressRequest("req-1", "u-1")

	// Must not panic or propagate the gateway error.
	svc.NotifyStatusChanged(context.Background(), request, entity.LineApproved, "a-1")
	svc.NotifyCompleted(context.Background(), request, nil)
}
