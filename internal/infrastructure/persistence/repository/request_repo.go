package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/baeksung/approval-engine/internal/application/port"
	"github.com/baeksung/approval-engine/internal/domain/entity"
	"github.com/baeksung/approval-engine/internal/domain/workflow"
	"github.com/baeksung/approval-engine/internal/infrastructure/persistence/sqlite"
)

// RequestRepository implements port.RequestRepository
type RequestRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db *sql.DB, logger *zap.Logger) port.RequestRepository {
	return &RequestRepository{
		db:     db,
		logger: logger,
	}
}

const requestColumns = `
	id, template_id, document_number, title, content, form_data,
	requester_id, requester_name, department_id, status, current_step,
	submitted_at, completed_at, created_at, updated_at
`

// Create inserts a new approval request
func (r *RequestRepository) Create(ctx context.Context, request *entity.ApprovalRequest) error {
	formData, err := json.Marshal(request.FormData)
	if err != nil {
		return fmt.Errorf("failed to marshal form data: %w", err)
	}

	query := `
		INSERT INTO approval_requests (` + requestColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query,
		request.ID,
		request.TemplateID,
		request.DocumentNumber,
		request.Title,
		request.Content,
		string(formData),
		request.RequesterID,
		request.RequesterName,
		request.DepartmentID,
		request.Status.String(),
		request.CurrentStep,
		request.SubmittedAt,
		request.CompletedAt,
		request.CreatedAt,
		request.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create approval request", zap.Error(err))
		return fmt.Errorf("failed to create request: %w", err)
	}

	return nil
}

// GetByID retrieves a request by its id
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*entity.ApprovalRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM approval_requests WHERE id = ?`

	row := sqlite.GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id)
	request, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get request by ID", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return request, nil
}

// GetByDocumentNumber retrieves a request by its document number
func (r *RequestRepository) GetByDocumentNumber(ctx context.Context, documentNumber string) (*entity.ApprovalRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM approval_requests WHERE document_number = ?`

	row := sqlite.GetExecutor(ctx, r.db).QueryRowContext(ctx, query, documentNumber)
	request, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get request by document number",
			zap.String("document_number", documentNumber), zap.Error(err))
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return request, nil
}

// Update persists the request's mutable fields
func (r *RequestRepository) Update(ctx context.Context, request *entity.ApprovalRequest) error {
	formData, err := json.Marshal(request.FormData)
	if err != nil {
		return fmt.Errorf("failed to marshal form data: %w", err)
	}

	query := `
		UPDATE approval_requests
		SET title = ?, content = ?, form_data = ?, status = ?,
			current_step = ?, submitted_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query,
		request.Title,
		request.Content,
		string(formData),
		request.Status.String(),
		request.CurrentStep,
		request.SubmittedAt,
		request.CompletedAt,
		request.UpdatedAt,
		request.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update request", zap.String("id", request.ID), zap.Error(err))
		return fmt.Errorf("failed to update request: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("request %s not found", request.ID)
	}
	return nil
}

// ListByRequester retrieves the user's requests, newest first
func (r *RequestRepository) ListByRequester(ctx context.Context, requesterID string, limit, offset int) ([]*entity.ApprovalRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM approval_requests
		WHERE requester_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := sqlite.GetExecutor(ctx, r.db).QueryContext(ctx, query, requesterID, normalizeLimit(limit), offset)
	if err != nil {
		r.logger.Error("Failed to list requests by requester",
			zap.String("requester_id", requesterID), zap.Error(err))
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	return collectRequests(rows)
}

// ListByStatus retrieves requests in the given status, newest first
func (r *RequestRepository) ListByStatus(ctx context.Context, status workflow.State, limit, offset int) ([]*entity.ApprovalRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM approval_requests
		WHERE status = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := sqlite.GetExecutor(ctx, r.db).QueryContext(ctx, query, status.String(), normalizeLimit(limit), offset)
	if err != nil {
		r.logger.Error("Failed to list requests by status",
			zap.String("status", status.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	return collectRequests(rows)
}

// rowScanner covers *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(row rowScanner) (*entity.ApprovalRequest, error) {
	var request entity.ApprovalRequest
	var status, formData string
	var submittedAt, completedAt sql.NullTime

	err := row.Scan(
		&request.ID,
		&request.TemplateID,
		&request.DocumentNumber,
		&request.Title,
		&request.Content,
		&formData,
		&request.RequesterID,
		&request.RequesterName,
		&request.DepartmentID,
		&status,
		&request.CurrentStep,
		&submittedAt,
		&completedAt,
		&request.CreatedAt,
		&request.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	request.Status = workflow.State(status)
	if formData != "" {
		if err := json.Unmarshal([]byte(formData), &request.FormData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal form data: %w", err)
		}
	}
	if submittedAt.Valid {
		request.SubmittedAt = &submittedAt.Time
	}
	if completedAt.Valid {
		request.CompletedAt = &completedAt.Time
	}
	return &request, nil
}

func collectRequests(rows *sql.Rows) ([]*entity.ApprovalRequest, error) {
	var requests []*entity.ApprovalRequest
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, request)
	}
	return requests, rows.Err()
}

// normalizeLimit maps a non-positive limit to a sane page size
func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}

// unboundedLimit maps a non-positive limit to SQLite's "no limit" (-1),
// for listings that must return every row.
func unboundedLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

// Verify interface compliance
var _ port.RequestRepository = (*RequestRepository)(nil)
