package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/baeksung/approval-engine/internal/application/port"
	"github.com/baeksung/approval-engine/internal/domain/entity"
	"github.com/baeksung/approval-engine/internal/domain/workflow"
	"github.com/baeksung/approval-engine/pkg/utils"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Notifier is the side channel informed after each committed transition.
// Implementations must be safe to fail: the lifecycle manager logs errors
// and continues.
type Notifier interface {
	NotifyNewRequest(ctx context.Context, request *entity.ApprovalRequest, approverIDs []string)
	NotifyStatusChanged(ctx context.Context, request *entity.ApprovalRequest, lineStatus entity.LineStatus, approverID string)
	NotifyCompleted(ctx context.Context, request *entity.ApprovalRequest, lines []*entity.ApprovalLine)
	NotifyCancelled(ctx context.Context, request *entity.ApprovalRequest, lines []*entity.ApprovalLine)
}

// IntegrityAppender appends one hash-chain link for a completed request.
type IntegrityAppender interface {
	AppendLink(ctx context.Context, requestID, actorID string) (*entity.DocumentIntegrity, error)
}

// CreateRequestInput carries the fields for drafting a new request.
type CreateRequestInput struct {
	Title        string
	Content      string
	RequesterID  string
	TemplateID   string
	FormData     map[string]interface{}
	DepartmentID string
}

// LineInput is one approver slot when setting a request's approval line.
type LineInput struct {
	ApproverID string
	StepOrder  int
	IsRequired bool
	IsParallel bool
}

// ApprovalService manages the document approval lifecycle: drafting,
// line editing, submission, per-approver actions, cancellation and the
// read-side queries.
type ApprovalService interface {
	CreateRequest(ctx context.Context, input CreateRequestInput) (*entity.ApprovalRequest, error)
	SetLines(ctx context.Context, requestID, requesterID string, inputs []LineInput) ([]*entity.ApprovalLine, error)
	Submit(ctx context.Context, requestID, requesterID string) (*entity.ApprovalRequest, error)
	ProcessAction(ctx context.Context, requestID, approverID string, action entity.HistoryAction, comment, ipAddress string) (*entity.ApprovalRequest, error)
	Cancel(ctx context.Context, requestID, requesterID string) (*entity.ApprovalRequest, error)

	GetRequest(ctx context.Context, requestID, userID string) (*entity.ApprovalRequest, error)
	GetLines(ctx context.Context, requestID, userID string) ([]*entity.ApprovalLine, error)
	GetHistory(ctx context.Context, requestID, userID string) ([]*entity.ApprovalHistory, error)
	ListMyRequests(ctx context.Context, requesterID string, limit, offset int) ([]*entity.ApprovalRequest, error)
	ListActionable(ctx context.Context, approverID string) ([]*entity.ApprovalLine, error)
	ListMyApprovalHistory(ctx context.Context, approverID string, limit, offset int) ([]*entity.ApprovalLine, error)
}

type approvalServiceImpl struct {
	requestRepo  port.RequestRepository
	lineRepo     port.LineRepository
	historyRepo  port.HistoryRepository
	templateRepo port.TemplateRepository
	userRepo     port.UserRepository
	txManager    port.TransactionManager
	engine       *LineEngine
	docNumbers   *DocumentNumberService
	notifier     Notifier
	integrity    IntegrityAppender
	locks        *requestLocker
	logger       Logger
}

// NewApprovalService creates a new ApprovalService
func NewApprovalService(
	requestRepo port.RequestRepository,
	lineRepo port.LineRepository,
	historyRepo port.HistoryRepository,
	templateRepo port.TemplateRepository,
	userRepo port.UserRepository,
	txManager port.TransactionManager,
	engine *LineEngine,
	docNumbers *DocumentNumberService,
	notifier Notifier,
	integrity IntegrityAppender,
	logger Logger,
) ApprovalService {
	return &approvalServiceImpl{
		requestRepo:  requestRepo,
		lineRepo:     lineRepo,
		historyRepo:  historyRepo,
		templateRepo: templateRepo,
		userRepo:     userRepo,
		txManager:    txManager,
		engine:       engine,
		docNumbers:   docNumbers,
		notifier:     notifier,
		integrity:    integrity,
		locks:        newRequestLocker(),
		logger:       logger,
	}
}

// CreateRequest drafts a new approval request. When the template defines
// default approval steps, the line set is seeded from them.
func (s *approvalServiceImpl) CreateRequest(ctx context.Context, input CreateRequestInput) (*entity.ApprovalRequest, error) {
	requester, err := s.requireUser(ctx, input.RequesterID)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if strings.TrimSpace(input.Content) == "" {
		return nil, fmt.Errorf("%w: content is required", ErrValidation)
	}

	var template *entity.DocumentTemplate
	if input.TemplateID != "" {
		template, err = s.templateRepo.GetByID(ctx, input.TemplateID)
		if err != nil {
			return nil, fmt.Errorf("get template: %w", err)
		}
		if template == nil {
			return nil, fmt.Errorf("%w: template %s", ErrNotFound, input.TemplateID)
		}
	}

	documentNumber, err := s.docNumbers.Generate(ctx, template, input.DepartmentID)
	if err != nil {
		return nil, fmt.Errorf("generate document number: %w", err)
	}

	now := time.Now()
	formData := input.FormData
	if formData == nil {
		formData = map[string]interface{}{}
	}
	request := &entity.ApprovalRequest{
		ID:             newID(),
		TemplateID:     input.TemplateID,
		DocumentNumber: documentNumber,
		Title:          strings.TrimSpace(input.Title),
		Content:        input.Content,
		FormData:       formData,
		RequesterID:    requester.ID,
		RequesterName:  requester.Name,
		DepartmentID:   input.DepartmentID,
		Status:         workflow.StateDraft,
		CurrentStep:    0,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.requestRepo.Create(txCtx, request); err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		if template != nil && len(template.DefaultSteps) > 0 {
			lines, err := s.linesFromTemplate(txCtx, request.ID, template.DefaultSteps)
			if err != nil {
				return err
			}
			if err := s.lineRepo.CreateBatch(txCtx, lines); err != nil {
				return fmt.Errorf("create default lines: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create request", "error", err, "requester_id", input.RequesterID)
		return nil, err
	}

	s.logger.Info("Request created",
		"request_id", request.ID,
		"document_number", request.DocumentNumber,
		"requester_id", requester.ID)
	return request, nil
}

// SetLines replaces the request's full approval line set. Only the
// requester may edit, and only while the request is still a draft.
func (s *approvalServiceImpl) SetLines(ctx context.Context, requestID, requesterID string, inputs []LineInput) ([]*entity.ApprovalLine, error) {
	request, err := s.requireOwnedRequest(ctx, requestID, requesterID)
	if err != nil {
		return nil, err
	}

	if request.CurrentStep > 0 || request.Status != workflow.StateDraft {
		return nil, fmt.Errorf("%w: approval lines are frozen once the approval process started", ErrInvalidState)
	}

	seen := make(map[string]bool, len(inputs))
	approverIDs := make([]string, 0, len(inputs))
	for _, input := range inputs {
		key := fmt.Sprintf("%s@%d", input.ApproverID, input.StepOrder)
		if seen[key] {
			return nil, fmt.Errorf("%w: approver %s at step %d", ErrDuplicateApprover, input.ApproverID, input.StepOrder)
		}
		seen[key] = true
		approverIDs = append(approverIDs, input.ApproverID)
	}

	users, err := s.userRepo.GetByIDs(ctx, approverIDs)
	if err != nil {
		return nil, fmt.Errorf("get approvers: %w", err)
	}

	lines := make([]*entity.ApprovalLine, 0, len(inputs))
	for _, input := range inputs {
		approver, ok := users[input.ApproverID]
		if !ok {
			return nil, fmt.Errorf("%w: approver %s", ErrNotFound, input.ApproverID)
		}
		lines = append(lines, &entity.ApprovalLine{
			ID:           newID(),
			RequestID:    requestID,
			ApproverID:   approver.ID,
			ApproverName: approver.Name,
			StepOrder:    input.StepOrder,
			IsRequired:   input.IsRequired,
			IsParallel:   input.IsParallel,
			Status:       entity.LinePending,
		})
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.lineRepo.DeleteByRequestID(txCtx, requestID); err != nil {
			return fmt.Errorf("delete existing lines: %w", err)
		}
		if err := s.lineRepo.CreateBatch(txCtx, lines); err != nil {
			return fmt.Errorf("create lines: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to set approval lines", "error", err, "request_id", requestID)
		return nil, err
	}

	s.logger.Info("Approval lines set", "request_id", requestID, "count", len(lines))
	return lines, nil
}

// Submit moves a draft into the approval flow: status SUBMITTED, current
// step 1, and the step-1 approvers are notified.
func (s *approvalServiceImpl) Submit(ctx context.Context, requestID, requesterID string) (*entity.ApprovalRequest, error) {
	unlock := s.locks.Lock(requestID)
	defer unlock()

	request, err := s.requireOwnedRequest(ctx, requestID, requesterID)
	if err != nil {
		return nil, err
	}

	machine := workflow.NewDocumentMachine(request.Status)
	if !machine.CanFire(workflow.TriggerSubmit) {
		return nil, fmt.Errorf("%w: only draft requests can be submitted (status %s)", ErrInvalidState, request.Status)
	}

	lines, err := s.lineRepo.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get approval lines: %w", err)
	}
	if len(lines) == 0 {
		return nil, ErrNoApprovalLines
	}

	if err := machine.Fire(ctx, workflow.TriggerSubmit); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	now := time.Now()
	request.Status = machine.State()
	request.CurrentStep = 1
	request.SubmittedAt = &now
	request.UpdatedAt = now

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return s.requestRepo.Update(txCtx, request)
	})
	if err != nil {
		s.logger.Error("Failed to submit request", "error", err, "request_id", requestID)
		return nil, err
	}

	s.logger.Info("Request submitted", "request_id", requestID, "document_number", request.DocumentNumber)

	firstStep := make([]string, 0, len(lines))
	for _, line := range lines {
		if line.StepOrder == 1 {
			firstStep = append(firstStep, line.ApproverID)
		}
	}
	s.notifier.NotifyNewRequest(ctx, request, firstStep)

	return request, nil
}

// ProcessAction records one approver's decision and recomputes the
// request's aggregate status. A transition into APPROVED or REJECTED
// additionally triggers the completion notification and an integrity
// chain append; both run after the commit and never roll it back.
func (s *approvalServiceImpl) ProcessAction(ctx context.Context, requestID, approverID string, action entity.HistoryAction, comment, ipAddress string) (*entity.ApprovalRequest, error) {
	if action != entity.ActionApprove && action != entity.ActionReject {
		return nil, fmt.Errorf("%w: unsupported action %s", ErrValidation, action)
	}

	comment = utils.SanitizeComment(comment)

	unlock := s.locks.Lock(requestID)
	defer unlock()

	approver, err := s.requireUser(ctx, approverID)
	if err != nil {
		return nil, err
	}

	request, err := s.requireRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	machine := workflow.NewDocumentMachine(request.Status)
	if !machine.CanFire(workflow.TriggerApprove) {
		return nil, fmt.Errorf("%w: request is not open for approval (status %s)", ErrInvalidState, request.Status)
	}

	lines, err := s.lineRepo.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get approval lines: %w", err)
	}

	line := findActionLine(lines, approverID)
	if line == nil {
		return nil, fmt.Errorf("%w: %s is not an approver of this request", ErrForbidden, approverID)
	}
	if line.Status != entity.LinePending {
		return nil, fmt.Errorf("%w: line already %s", ErrAlreadyProcessed, line.Status)
	}

	now := time.Now()
	lineStatus := entity.LineApproved
	trigger := workflow.TriggerProgress
	if action == entity.ActionReject {
		lineStatus = entity.LineRejected
	}

	line.Status = lineStatus
	line.ApprovedAt = &now
	line.Comment = comment

	// Recompute the aggregate from the fresh snapshot. Idempotent: the
	// same line set always yields the same outcome.
	switch s.engine.Recompute(lines) {
	case AggregateApproved:
		trigger = workflow.TriggerApprove
	case AggregateRejected:
		trigger = workflow.TriggerReject
	}

	if err := machine.Fire(ctx, trigger); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	request.Status = machine.State()
	request.UpdatedAt = now
	if request.Status.IsTerminal() {
		// current_step freezes at the step that decided the request; a
		// rejection must not advance it to steps that never opened.
		request.CompletedAt = &now
	} else if step := s.engine.CurrentStep(lines); step > 0 {
		request.CurrentStep = step
	}

	history := &entity.ApprovalHistory{
		ID:           newID(),
		RequestID:    requestID,
		ApproverID:   approver.ID,
		ApproverName: approver.Name,
		Action:       action,
		Comment:      comment,
		IPAddress:    ipAddress,
		CreatedAt:    now,
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.lineRepo.Update(txCtx, line); err != nil {
			return fmt.Errorf("update line: %w", err)
		}
		if err := s.historyRepo.Create(txCtx, history); err != nil {
			return fmt.Errorf("create history: %w", err)
		}
		if err := s.requestRepo.Update(txCtx, request); err != nil {
			return fmt.Errorf("update request: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to process action",
			"error", err, "request_id", requestID, "approver_id", approverID, "action", action)
		return nil, err
	}

	s.logger.Info("Approval action processed",
		"request_id", requestID,
		"approver_id", approverID,
		"action", action,
		"status", request.Status)

	s.runPostCommitHooks(ctx, request, lines, lineStatus, approverID)

	return request, nil
}

// Cancel aborts a live request. Only the requester may cancel, and not
// once the request is approved, rejected or already cancelled. Completed
// approvals stay in history but no longer drive completion.
func (s *approvalServiceImpl) Cancel(ctx context.Context, requestID, requesterID string) (*entity.ApprovalRequest, error) {
	unlock := s.locks.Lock(requestID)
	defer unlock()

	request, err := s.requireOwnedRequest(ctx, requestID, requesterID)
	if err != nil {
		return nil, err
	}

	machine := workflow.NewDocumentMachine(request.Status)
	if err := machine.Fire(ctx, workflow.TriggerCancel); err != nil {
		return nil, fmt.Errorf("%w: cannot cancel request in status %s", ErrInvalidState, request.Status)
	}

	now := time.Now()
	request.Status = machine.State()
	request.UpdatedAt = now

	history := &entity.ApprovalHistory{
		ID:           newID(),
		RequestID:    requestID,
		ApproverID:   requesterID,
		ApproverName: request.RequesterName,
		Action:       entity.ActionCancel,
		CreatedAt:    now,
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.requestRepo.Update(txCtx, request); err != nil {
			return fmt.Errorf("update request: %w", err)
		}
		if err := s.historyRepo.Create(txCtx, history); err != nil {
			return fmt.Errorf("create history: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to cancel request", "error", err, "request_id", requestID)
		return nil, err
	}

	s.logger.Info("Request cancelled", "request_id", requestID)

	lines, lerr := s.lineRepo.GetByRequestID(ctx, requestID)
	if lerr != nil {
		s.logger.Warn("Cancelled but could not load lines for notification", "error", lerr, "request_id", requestID)
		lines = nil
	}
	s.notifier.NotifyCancelled(ctx, request, lines)

	return request, nil
}

// GetRequest returns a request readable by its requester, any of its
// approvers, or an admin.
func (s *approvalServiceImpl) GetRequest(ctx context.Context, requestID, userID string) (*entity.ApprovalRequest, error) {
	request, err := s.requireRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := s.requireReadAccess(ctx, request, userID); err != nil {
		return nil, err
	}
	return request, nil
}

// GetLines returns the request's ordered line set, subject to the same
// read access rule as GetRequest.
func (s *approvalServiceImpl) GetLines(ctx context.Context, requestID, userID string) ([]*entity.ApprovalLine, error) {
	request, err := s.requireRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := s.requireReadAccess(ctx, request, userID); err != nil {
		return nil, err
	}
	return s.lineRepo.GetByRequestID(ctx, requestID)
}

// GetHistory returns the request's audit trail in creation order.
func (s *approvalServiceImpl) GetHistory(ctx context.Context, requestID, userID string) ([]*entity.ApprovalHistory, error) {
	request, err := s.requireRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := s.requireReadAccess(ctx, request, userID); err != nil {
		return nil, err
	}
	return s.historyRepo.GetByRequestID(ctx, requestID)
}

// ListMyRequests returns the requests drafted by the given user.
func (s *approvalServiceImpl) ListMyRequests(ctx context.Context, requesterID string, limit, offset int) ([]*entity.ApprovalRequest, error) {
	return s.requestRepo.ListByRequester(ctx, requesterID, limit, offset)
}

// ListActionable returns the approver's pending lines that are currently
// actionable under the step-gating policy. Lines of requests that are no
// longer open (cancelled, completed) are excluded.
func (s *approvalServiceImpl) ListActionable(ctx context.Context, approverID string) ([]*entity.ApprovalLine, error) {
	pending, err := s.lineRepo.ListPendingByApprover(ctx, approverID, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("list pending lines: %w", err)
	}

	linesByRequest := make(map[string][]*entity.ApprovalLine)
	openRequests := make(map[string]bool)
	candidates := make([]*entity.ApprovalLine, 0, len(pending))

	for _, line := range pending {
		if _, ok := linesByRequest[line.RequestID]; !ok {
			request, err := s.requestRepo.GetByID(ctx, line.RequestID)
			if err != nil {
				return nil, fmt.Errorf("get request %s: %w", line.RequestID, err)
			}
			open := request != nil &&
				(request.Status == workflow.StateSubmitted || request.Status == workflow.StateInProgress)
			openRequests[line.RequestID] = open

			all, err := s.lineRepo.GetByRequestID(ctx, line.RequestID)
			if err != nil {
				return nil, fmt.Errorf("get lines for request %s: %w", line.RequestID, err)
			}
			linesByRequest[line.RequestID] = all
		}
		if openRequests[line.RequestID] {
			candidates = append(candidates, line)
		}
	}

	return s.engine.FilterActionable(candidates, linesByRequest), nil
}

// ListMyApprovalHistory returns the approver's decided lines, newest first.
func (s *approvalServiceImpl) ListMyApprovalHistory(ctx context.Context, approverID string, limit, offset int) ([]*entity.ApprovalLine, error) {
	return s.lineRepo.ListByApprover(ctx, approverID, limit, offset)
}

// runPostCommitHooks executes the best-effort side effects of a
// committed action: status notifications and, on completion, the
// integrity chain append. Each hook swallows and logs its own error.
func (s *approvalServiceImpl) runPostCommitHooks(ctx context.Context, request *entity.ApprovalRequest, lines []*entity.ApprovalLine, lineStatus entity.LineStatus, approverID string) {
	s.notifier.NotifyStatusChanged(ctx, request, lineStatus, approverID)

	if !request.IsCompleted() {
		return
	}

	s.notifier.NotifyCompleted(ctx, request, lines)

	if _, err := s.integrity.AppendLink(ctx, request.ID, approverID); err != nil {
		s.logger.Warn("Integrity chain append failed after completion",
			"error", err, "request_id", request.ID)
	}
}

func (s *approvalServiceImpl) requireUser(ctx context.Context, userID string) (*entity.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	return user, nil
}

func (s *approvalServiceImpl) requireRequest(ctx context.Context, requestID string) (*entity.ApprovalRequest, error) {
	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	if request == nil {
		return nil, fmt.Errorf("%w: request %s", ErrNotFound, requestID)
	}
	return request, nil
}

func (s *approvalServiceImpl) requireOwnedRequest(ctx context.Context, requestID, requesterID string) (*entity.ApprovalRequest, error) {
	request, err := s.requireRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.RequesterID != requesterID {
		return nil, fmt.Errorf("%w: only the requester may modify this request", ErrForbidden)
	}
	return request, nil
}

func (s *approvalServiceImpl) requireReadAccess(ctx context.Context, request *entity.ApprovalRequest, userID string) error {
	if request.RequesterID == userID {
		return nil
	}

	lines, err := s.lineRepo.GetByRequestID(ctx, request.ID)
	if err != nil {
		return fmt.Errorf("get approval lines: %w", err)
	}
	for _, line := range lines {
		if line.ApproverID == userID {
			return nil
		}
	}

	user, err := s.requireUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.IsAdmin() {
		return nil
	}

	return fmt.Errorf("%w: no permission to view this request", ErrForbidden)
}

func (s *approvalServiceImpl) linesFromTemplate(ctx context.Context, requestID string, steps []entity.TemplateStep) ([]*entity.ApprovalLine, error) {
	ids := make([]string, 0, len(steps))
	for _, step := range steps {
		ids = append(ids, step.ApproverID)
	}
	users, err := s.userRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get template approvers: %w", err)
	}

	lines := make([]*entity.ApprovalLine, 0, len(steps))
	for _, step := range steps {
		approver, ok := users[step.ApproverID]
		if !ok {
			return nil, fmt.Errorf("%w: template approver %s", ErrNotFound, step.ApproverID)
		}
		lines = append(lines, &entity.ApprovalLine{
			ID:           newID(),
			RequestID:    requestID,
			ApproverID:   approver.ID,
			ApproverName: approver.Name,
			StepOrder:    step.StepOrder,
			IsRequired:   step.IsRequired,
			IsParallel:   step.IsParallel,
			Status:       entity.LinePending,
		})
	}
	return lines, nil
}

// findActionLine picks the approver's pending line with the lowest step,
// falling back to any of their lines so the caller can distinguish
// already-processed from not-an-approver.
func findActionLine(lines []*entity.ApprovalLine, approverID string) *entity.ApprovalLine {
	var fallback *entity.ApprovalLine
	var pending *entity.ApprovalLine
	for _, line := range lines {
		if line.ApproverID != approverID {
			continue
		}
		if fallback == nil {
			fallback = line
		}
		if line.Status == entity.LinePending && (pending == nil || line.StepOrder < pending.StepOrder) {
			pending = line
		}
	}
	if pending != nil {
		return pending
	}
	return fallback
}

// newID generates a lexicographically sortable unique id.
func newID() string {
	return ulid.Make().String()
}
