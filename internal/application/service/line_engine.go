package service

import "github.com/baeksung/approval-engine/internal/domain/entity"

// LineEngine owns the step-gating policy: given a request's full line
// set, it decides whether a given approver's line is currently
// actionable.
//
// The policy is sequential with parallel groups. A line at step S is
// blocked while any other line at a strictly earlier step is required
// and still pending. Parallel only affects siblings within one step; it
// never lets a later step run ahead of an earlier required one.
// Non-required earlier lines never block. Once any line of the request
// is rejected, nothing further is actionable.
type LineEngine struct{}

// NewLineEngine creates a new LineEngine
func NewLineEngine() *LineEngine {
	return &LineEngine{}
}

// IsActionable reports whether the given line may be acted on right now,
// judged against the request's full line set.
func (e *LineEngine) IsActionable(lines []*entity.ApprovalLine, line *entity.ApprovalLine) bool {
	if line == nil || line.Status != entity.LinePending {
		return false
	}

	for _, other := range lines {
		if other.Status == entity.LineRejected {
			return false
		}
	}

	for _, other := range lines {
		if other.ID == line.ID {
			continue
		}
		if other.StepOrder < line.StepOrder && other.IsRequired && other.Status == entity.LinePending {
			return false
		}
	}

	return true
}

// FilterActionable returns the subset of candidate lines that are
// actionable within their request's full line set. linesByRequest maps a
// request id to its complete ordered line set.
func (e *LineEngine) FilterActionable(candidates []*entity.ApprovalLine, linesByRequest map[string][]*entity.ApprovalLine) []*entity.ApprovalLine {
	actionable := make([]*entity.ApprovalLine, 0, len(candidates))
	for _, line := range candidates {
		if e.IsActionable(linesByRequest[line.RequestID], line) {
			actionable = append(actionable, line)
		}
	}
	return actionable
}

// CurrentStep returns the lowest step that still holds a pending
// required line, or 0 when every required line is decided.
func (e *LineEngine) CurrentStep(lines []*entity.ApprovalLine) int {
	step := 0
	for _, line := range lines {
		if line.IsRequired && line.Status == entity.LinePending {
			if step == 0 || line.StepOrder < step {
				step = line.StepOrder
			}
		}
	}
	return step
}

// Recompute derives the request-level aggregate status from the full
// line set. The computation is pure and idempotent: the same snapshot
// always yields the same status.
//
// Any rejected line rejects the request. Otherwise the request is
// approved once every required line is approved, and in progress until
// then. A request whose lines are all optional and undecided stays in
// progress only if at least one decision was made; the caller guards
// against recomputing before the first action.
func (e *LineEngine) Recompute(lines []*entity.ApprovalLine) AggregateOutcome {
	for _, line := range lines {
		if line.Status == entity.LineRejected {
			return AggregateRejected
		}
	}

	for _, line := range lines {
		if line.IsRequired && line.Status != entity.LineApproved {
			return AggregateInProgress
		}
	}

	return AggregateApproved
}

// AggregateOutcome is the result of recomputing a request's status from
// its line set.
type AggregateOutcome int

const (
	AggregateInProgress AggregateOutcome = iota
	AggregateApproved
	AggregateRejected
)
