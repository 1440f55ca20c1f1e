package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/baeksung/approval-engine/internal/domain/entity"
)

func line(id, approverID string, step int, required bool, status entity.LineStatus) *entity.ApprovalLine {
	return &entity.ApprovalLine{
		ID:         id,
		RequestID:  "req-1",
		ApproverID: approverID,
		StepOrder:  step,
		IsRequired: required,
		Status:     status,
	}
}

func TestIsActionableSequentialGating(t *testing.T) {
	engine := NewLineEngine()

	l1 := line("l1", "a-1", 1, true, entity.LinePending)
	l2 := line("l2", "a-2", 2, true, entity.LinePending)
	lines := []*entity.ApprovalLine{l1, l2}

	assert.True(t, engine.IsActionable(lines, l1))
	assert.False(t, engine.IsActionable(lines, l2), "step 2 blocked while step 1 pending")

	l1.Status = entity.LineApproved
	assert.True(t, engine.IsActionable(lines, l2))
	assert.False(t, engine.IsActionable(lines, l1), "decided line is never actionable")
}

func TestIsActionableParallelGroup(t *testing.T) {
	engine := NewLineEngine()

	p1 := line("p1", "a-1", 1, true, entity.LinePending)
	p2 := line("p2", "a-2", 1, true, entity.LinePending)
	p1.IsParallel = true
	p2.IsParallel = true
	next := line("n1", "a-3", 2, true, entity.LinePending)
	lines := []*entity.ApprovalLine{p1, p2, next}

	// Both members of the parallel step act independently.
	assert.True(t, engine.IsActionable(lines, p1))
	assert.True(t, engine.IsActionable(lines, p2))
	assert.False(t, engine.IsActionable(lines, next))

	// The next step opens only when the whole group is decided.
	p1.Status = entity.LineApproved
	assert.False(t, engine.IsActionable(lines, next))
	p2.Status = entity.LineApproved
	assert.True(t, engine.IsActionable(lines, next))
}

func TestIsActionableOptionalDoesNotBlock(t *testing.T) {
	engine := NewLineEngine()

	optional := line("o1", "cc", 1, false, entity.LinePending)
	next := line("n1", "a-1", 2, true, entity.LinePending)
	lines := []*entity.ApprovalLine{optional, next}

	assert.True(t, engine.IsActionable(lines, next), "pending optional line does not gate later steps")
	assert.True(t, engine.IsActionable(lines, optional))
}

func TestIsActionableAfterRejection(t *testing.T) {
	engine := NewLineEngine()

	rejected := line("r1", "a-1", 1, true, entity.LineRejected)
	later := line("l2", "a-2", 2, true, entity.LinePending)
	sibling := line("l3", "a-3", 1, false, entity.LinePending)
	lines := []*entity.ApprovalLine{rejected, later, sibling}

	assert.False(t, engine.IsActionable(lines, later))
	assert.False(t, engine.IsActionable(lines, sibling))
}

func TestCurrentStep(t *testing.T) {
	engine := NewLineEngine()

	tests := []struct {
		name  string
		lines []*entity.ApprovalLine
		want  int
	}{
		{
			name: "first step pending",
			lines: []*entity.ApprovalLine{
				line("l1", "a-1", 1, true, entity.LinePending),
				line("l2", "a-2", 2, true, entity.LinePending),
			},
			want: 1,
		},
		{
			name: "advances past approved step",
			lines: []*entity.ApprovalLine{
				line("l1", "a-1", 1, true, entity.LineApproved),
				line("l2", "a-2", 2, true, entity.LinePending),
			},
			want: 2,
		},
		{
			name: "pending optional line does not hold the step",
			lines: []*entity.ApprovalLine{
				line("l1", "a-1", 1, false, entity.LinePending),
				line("l2", "a-2", 2, true, entity.LinePending),
			},
			want: 2,
		},
		{
			name: "all required decided",
			lines: []*entity.ApprovalLine{
				line("l1", "a-1", 1, true, entity.LineApproved),
				line("l2", "a-2", 2, true, entity.LineApproved),
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, engine.CurrentStep(tt.lines))
		})
	}
}

func TestRecompute(t *testing.T) {
	engine := NewLineEngine()

	tests := []struct {
		name  string
		lines []*entity.ApprovalLine
		want  AggregateOutcome
	}{
		{
			name: "pending required keeps it in progress",
			lines: []*entity.ApprovalLine{
				line("l1", "a-1", 1, true, entity.LineApproved),
				line("l2", "a-2", 2, true, entity.LinePending),
			},
			want: AggregateInProgress,
		},
		{
			name: "all required approved",
			lines: []*entity.ApprovalLine{
				line("l1", "a-1", 1, true, entity.LineApproved),
				line("l2", "a-2", 1, false, entity.LinePending),
			},
			want: AggregateApproved,
		},
		{
			name: "any rejection wins",
			lines: []*entity.ApprovalLine{
				line("l1", "a-1", 1, true, entity.LineApproved),
				line("l2", "a-2", 2, true, entity.LineRejected),
				line("l3", "a-3", 3, true, entity.LinePending),
			},
			want: AggregateRejected,
		},
		{
			name: "optional rejection still rejects",
			lines: []*entity.ApprovalLine{
				line("l1", "a-1", 1, false, entity.LineRejected),
				line("l2", "a-2", 2, true, entity.LinePending),
			},
			want: AggregateRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.Recompute(tt.lines)
			assert.Equal(t, tt.want, got)
			// Idempotent on an unchanged snapshot.
			assert.Equal(t, got, engine.Recompute(tt.lines))
		})
	}
}
