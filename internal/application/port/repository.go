package port

import (
	"context"
	"time"

	"github.com/baeksung/approval-engine/internal/domain/entity"
	"github.com/baeksung/approval-engine/internal/domain/workflow"
)

// RequestRepository defines persistence operations for ApprovalRequest
type RequestRepository interface {
	Create(ctx context.Context, request *entity.ApprovalRequest) error
	GetByID(ctx context.Context, id string) (*entity.ApprovalRequest, error)
	GetByDocumentNumber(ctx context.Context, documentNumber string) (*entity.ApprovalRequest, error)
	Update(ctx context.Context, request *entity.ApprovalRequest) error
	ListByRequester(ctx context.Context, requesterID string, limit, offset int) ([]*entity.ApprovalRequest, error)
	ListByStatus(ctx context.Context, status workflow.State, limit, offset int) ([]*entity.ApprovalRequest, error)
}

// LineRepository defines persistence operations for ApprovalLine
type LineRepository interface {
	Create(ctx context.Context, line *entity.ApprovalLine) error
	CreateBatch(ctx context.Context, lines []*entity.ApprovalLine) error
	GetByID(ctx context.Context, id string) (*entity.ApprovalLine, error)
	// GetByRequestID returns the request's full line set ordered by step_order.
	GetByRequestID(ctx context.Context, requestID string) ([]*entity.ApprovalLine, error)
	GetByRequestAndStep(ctx context.Context, requestID string, stepOrder int) ([]*entity.ApprovalLine, error)
	ListPendingByApprover(ctx context.Context, approverID string, limit, offset int) ([]*entity.ApprovalLine, error)
	ListByApprover(ctx context.Context, approverID string, limit, offset int) ([]*entity.ApprovalLine, error)
	Update(ctx context.Context, line *entity.ApprovalLine) error
	DeleteByRequestID(ctx context.Context, requestID string) error
}

// HistoryRepository defines persistence operations for ApprovalHistory.
// The trail is append-only; there are no update or delete operations.
type HistoryRepository interface {
	Create(ctx context.Context, history *entity.ApprovalHistory) error
	// GetByRequestID returns entries in creation-time order.
	GetByRequestID(ctx context.Context, requestID string) ([]*entity.ApprovalHistory, error)
}

// IntegrityRepository defines persistence operations for DocumentIntegrity
type IntegrityRepository interface {
	Create(ctx context.Context, record *entity.DocumentIntegrity) error
	GetLatestByRequestID(ctx context.Context, requestID string) (*entity.DocumentIntegrity, error)
	// GetChainByRequestID returns all links for a request in version order.
	GetChainByRequestID(ctx context.Context, requestID string) ([]*entity.DocumentIntegrity, error)
	// UpdateVerification records a verification pass: increments the count,
	// stamps last_verified_at and stores the tamper flag. Hashed fields are
	// never touched.
	UpdateVerification(ctx context.Context, id string, verifiedAt time.Time, tampered bool) error
	ListTampered(ctx context.Context, limit, offset int) ([]*entity.DocumentIntegrity, int, error)
}

// UserRepository defines lookup operations against the user directory
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]*entity.User, error)
}

// TemplateRepository defines lookup operations for DocumentTemplate
type TemplateRepository interface {
	GetByID(ctx context.Context, id string) (*entity.DocumentTemplate, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
