package service

import (
	"context"
	"sync"
	"time"

	"github.com/baeksung/approval-engine/internal/application/port"
	"github.com/baeksung/approval-engine/internal/domain/entity"
	"github.com/baeksung/approval-engine/internal/domain/workflow"
)

// Hand-written mocks with overridable function fields. Unset fields fall
// back to empty results so each test only wires what it exercises.

type mockRequestRepo struct {
	createFn       func(ctx context.Context, request *entity.ApprovalRequest) error
	getByIDFn      func(ctx context.Context, id string) (*entity.ApprovalRequest, error)
	getByDocNumFn  func(ctx context.Context, documentNumber string) (*entity.ApprovalRequest, error)
	updateFn       func(ctx context.Context, request *entity.ApprovalRequest) error
	listByReqFn    func(ctx context.Context, requesterID string, limit, offset int) ([]*entity.ApprovalRequest, error)
	listByStatusFn func(ctx context.Context, status workflow.State, limit, offset int) ([]*entity.ApprovalRequest, error)
}

func (m *mockRequestRepo) Create(ctx context.Context, request *entity.ApprovalRequest) error {
	if m.createFn != nil {
		return m.createFn(ctx, request)
	}
	return nil
}

func (m *mockRequestRepo) GetByID(ctx context.Context, id string) (*entity.ApprovalRequest, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockRequestRepo) GetByDocumentNumber(ctx context.Context, documentNumber string) (*entity.ApprovalRequest, error) {
	if m.getByDocNumFn != nil {
		return m.getByDocNumFn(ctx, documentNumber)
	}
	return nil, nil
}

func (m *mockRequestRepo) Update(ctx context.Context, request *entity.ApprovalRequest) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, request)
	}
	return nil
}

func (m *mockRequestRepo) ListByRequester(ctx context.Context, requesterID string, limit, offset int) ([]*entity.ApprovalRequest, error) {
	if m.listByReqFn != nil {
		return m.listByReqFn(ctx, requesterID, limit, offset)
	}
	return nil, nil
}

func (m *mockRequestRepo) ListByStatus(ctx context.Context, status workflow.State, limit, offset int) ([]*entity.ApprovalRequest, error) {
	if m.listByStatusFn != nil {
		return m.listByStatusFn(ctx, status, limit, offset)
	}
	return nil, nil
}

type mockLineRepo struct {
	createFn       func(ctx context.Context, line *entity.ApprovalLine) error
	createBatchFn  func(ctx context.Context, lines []*entity.ApprovalLine) error
	getByIDFn      func(ctx context.Context, id string) (*entity.ApprovalLine, error)
	getByRequestFn func(ctx context.Context, requestID string) ([]*entity.ApprovalLine, error)
	getByStepFn    func(ctx context.Context, requestID string, stepOrder int) ([]*entity.ApprovalLine, error)
	listPendingFn  func(ctx context.Context, approverID string, limit, offset int) ([]*entity.ApprovalLine, error)
	listByApprvFn  func(ctx context.Context, approverID string, limit, offset int) ([]*entity.ApprovalLine, error)
	updateFn       func(ctx context.Context, line *entity.ApprovalLine) error
	deleteByReqFn  func(ctx context.Context, requestID string) error
}

func (m *mockLineRepo) Create(ctx context.Context, line *entity.ApprovalLine) error {
	if m.createFn != nil {
		return m.createFn(ctx, line)
	}
	return nil
}

func (m *mockLineRepo) CreateBatch(ctx context.Context, lines []*entity.ApprovalLine) error {
	if m.createBatchFn != nil {
		return m.createBatchFn(ctx, lines)
	}
	return nil
}

func (m *mockLineRepo) GetByID(ctx context.Context, id string) (*entity.ApprovalLine, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockLineRepo) GetByRequestID(ctx context.Context, requestID string) ([]*entity.ApprovalLine, error) {
	if m.getByRequestFn != nil {
		return m.getByRequestFn(ctx, requestID)
	}
	return nil, nil
}

func (m *mockLineRepo) GetByRequestAndStep(ctx context.Context, requestID string, stepOrder int) ([]*entity.ApprovalLine, error) {
	if m.getByStepFn != nil {
		return m.getByStepFn(ctx, requestID, stepOrder)
	}
	return nil, nil
}

func (m *mockLineRepo) ListPendingByApprover(ctx context.Context, approverID string, limit, offset int) ([]*entity.ApprovalLine, error) {
	if m.listPendingFn != nil {
		return m.listPendingFn(ctx, approverID, limit, offset)
	}
	return nil, nil
}

func (m *mockLineRepo) ListByApprover(ctx context.Context, approverID string, limit, offset int) ([]*entity.ApprovalLine, error) {
	if m.listByApprvFn != nil {
		return m.listByApprvFn(ctx, approverID, limit, offset)
	}
	return nil, nil
}

func (m *mockLineRepo) Update(ctx context.Context, line *entity.ApprovalLine) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, line)
	}
	return nil
}

func (m *mockLineRepo) DeleteByRequestID(ctx context.Context, requestID string) error {
	if m.deleteByReqFn != nil {
		return m.deleteByReqFn(ctx, requestID)
	}
	return nil
}

type mockHistoryRepo struct {
	createFn       func(ctx context.Context, history *entity.ApprovalHistory) error
	getByRequestFn func(ctx context.Context, requestID string) ([]*entity.ApprovalHistory, error)
}

func (m *mockHistoryRepo) Create(ctx context.Context, history *entity.ApprovalHistory) error {
	if m.createFn != nil {
		return m.createFn(ctx, history)
	}
	return nil
}

func (m *mockHistoryRepo) GetByRequestID(ctx context.Context, requestID string) ([]*entity.ApprovalHistory, error) {
	if m.getByRequestFn != nil {
		return m.getByRequestFn(ctx, requestID)
	}
	return nil, nil
}

type mockIntegrityRepo struct {
	createFn       func(ctx context.Context, record *entity.DocumentIntegrity) error
	getLatestFn    func(ctx context.Context, requestID string) (*entity.DocumentIntegrity, error)
	getChainFn     func(ctx context.Context, requestID string) ([]*entity.DocumentIntegrity, error)
	updateVerifyFn func(ctx context.Context, id string, verifiedAt time.Time, tampered bool) error
	listTamperedFn func(ctx context.Context, limit, offset int) ([]*entity.DocumentIntegrity, int, error)
}

func (m *mockIntegrityRepo) Create(ctx context.Context, record *entity.DocumentIntegrity) error {
	if m.createFn != nil {
		return m.createFn(ctx, record)
	}
	return nil
}

func (m *mockIntegrityRepo) GetLatestByRequestID(ctx context.Context, requestID string) (*entity.DocumentIntegrity, error) {
	if m.getLatestFn != nil {
		return m.getLatestFn(ctx, requestID)
	}
	return nil, nil
}

func (m *mockIntegrityRepo) GetChainByRequestID(ctx context.Context, requestID string) ([]*entity.DocumentIntegrity, error) {
	if m.getChainFn != nil {
		return m.getChainFn(ctx, requestID)
	}
	return nil, nil
}

func (m *mockIntegrityRepo) UpdateVerification(ctx context.Context, id string, verifiedAt time.Time, tampered bool) error {
	if m.updateVerifyFn != nil {
		return m.updateVerifyFn(ctx, id, verifiedAt, tampered)
	}
	return nil
}

func (m *mockIntegrityRepo) ListTampered(ctx context.Context, limit, offset int) ([]*entity.DocumentIntegrity, int, error) {
	if m.listTamperedFn != nil {
		return m.listTamperedFn(ctx, limit, offset)
	}
	return nil, 0, nil
}

type mockUserRepo struct {
	getByIDFn  func(ctx context.Context, id string) (*entity.User, error)
	getByIDsFn func(ctx context.Context, ids []string) (map[string]*entity.User, error)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) GetByIDs(ctx context.Context, ids []string) (map[string]*entity.User, error) {
	if m.getByIDsFn != nil {
		return m.getByIDsFn(ctx, ids)
	}
	return map[string]*entity.User{}, nil
}

type mockTemplateRepo struct {
	getByIDFn func(ctx context.Context, id string) (*entity.DocumentTemplate, error)
}

func (m *mockTemplateRepo) GetByID(ctx context.Context, id string) (*entity.DocumentTemplate, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}

// mockTxManager runs the transactional closure inline.
type mockTxManager struct{}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// mockNotifier records every notification call for assertions.
type mockNotifier struct {
	mu            sync.Mutex
	newRequests   [][]string
	statusChanges []string
	completed     []string
	cancelled     []string
}

func (m *mockNotifier) NotifyNewRequest(ctx context.Context, request *entity.ApprovalRequest, approverIDs []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.newRequests = append(m.newRequests, approverIDs)
}

func (m *mockNotifier) NotifyStatusChanged(ctx context.Context, request *entity.ApprovalRequest, lineStatus entity.LineStatus, approverID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusChanges = append(m.statusChanges, approverID)
}

func (m *mockNotifier) NotifyCompleted(ctx context.Context, request *entity.ApprovalRequest, lines []*entity.ApprovalLine) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed = append(m.completed, request.ID)
}

func (m *mockNotifier) NotifyCancelled(ctx context.Context, request *entity.ApprovalRequest, lines []*entity.ApprovalLine) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = append(m.cancelled, request.ID)
}

// mockIntegrityAppender records completion-triggered chain appends.
type mockIntegrityAppender struct {
	mu       sync.Mutex
	appended []string
	err      error
}

func (m *mockIntegrityAppender) AppendLink(ctx context.Context, requestID, actorID string) (*entity.DocumentIntegrity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.appended = append(m.appended, requestID)
	return &entity.DocumentIntegrity{RequestID: requestID, DocumentVersion: len(m.appended)}, nil
}

// nopLogger discards all log output.
type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

// mockGateway captures notifications sent through the gateway, keyed by
// recipient.
type mockGateway struct {
	mu   sync.Mutex
	sent map[string][]port.Notification
	err  error
}

func newMockGateway() *mockGateway {
	return &mockGateway{sent: make(map[string][]port.Notification)}
}

func (m *mockGateway) Notify(ctx context.Context, userID string, notification port.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent[userID] = append(m.sent[userID], notification)
	return nil
}

func (m *mockGateway) typesFor(userID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, 0, len(m.sent[userID]))
	for _, n := range m.sent[userID] {
		types = append(types, n.Type)
	}
	return types
}
