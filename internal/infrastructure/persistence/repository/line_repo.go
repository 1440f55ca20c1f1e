package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/baeksung/approval-engine/internal/application/port"
	"github.com/baeksung/approval-engine/internal/domain/entity"
	"github.com/baeksung/approval-engine/internal/infrastructure/persistence/sqlite"
)

// LineRepository implements port.LineRepository
type LineRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewLineRepository creates a new line repository
func NewLineRepository(db *sql.DB, logger *zap.Logger) port.LineRepository {
	return &LineRepository{
		db:     db,
		logger: logger,
	}
}

const lineColumns = `
	id, request_id, approver_id, approver_name, step_order,
	is_required, is_parallel, status, approved_at, comment
`

// Create inserts a single approval line
func (r *LineRepository) Create(ctx context.Context, line *entity.ApprovalLine) error {
	query := `
		INSERT INTO approval_lines (` + lineColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query,
		line.ID,
		line.RequestID,
		line.ApproverID,
		line.ApproverName,
		line.StepOrder,
		line.IsRequired,
		line.IsParallel,
		string(line.Status),
		line.ApprovedAt,
		line.Comment,
	)
	if err != nil {
		r.logger.Error("Failed to create approval line", zap.Error(err))
		return fmt.Errorf("failed to create line: %w", err)
	}
	return nil
}

// CreateBatch inserts a full line set in one statement batch
func (r *LineRepository) CreateBatch(ctx context.Context, lines []*entity.ApprovalLine) error {
	for _, line := range lines {
		if err := r.Create(ctx, line); err != nil {
			return err
		}
	}
	return nil
}

// GetByID retrieves a line by its id
func (r *LineRepository) GetByID(ctx context.Context, id string) (*entity.ApprovalLine, error) {
	query := `SELECT ` + lineColumns + ` FROM approval_lines WHERE id = ?`

	row := sqlite.GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id)
	line, err := scanLine(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get line by ID", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get line: %w", err)
	}
	return line, nil
}

// GetByRequestID retrieves the request's full line set ordered by step
func (r *LineRepository) GetByRequestID(ctx context.Context, requestID string) ([]*entity.ApprovalLine, error) {
	query := `
		SELECT ` + lineColumns + `
		FROM approval_lines
		WHERE request_id = ?
		ORDER BY step_order ASC, id ASC
	`

	rows, err := sqlite.GetExecutor(ctx, r.db).QueryContext(ctx, query, requestID)
	if err != nil {
		r.logger.Error("Failed to get lines by request ID",
			zap.String("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to get lines: %w", err)
	}
	defer rows.Close()

	return collectLines(rows)
}

// GetByRequestAndStep retrieves one step's lines
func (r *LineRepository) GetByRequestAndStep(ctx context.Context, requestID string, stepOrder int) ([]*entity.ApprovalLine, error) {
	query := `
		SELECT ` + lineColumns + `
		FROM approval_lines
		WHERE request_id = ? AND step_order = ?
		ORDER BY id ASC
	`

	rows, err := sqlite.GetExecutor(ctx, r.db).QueryContext(ctx, query, requestID, stepOrder)
	if err != nil {
		r.logger.Error("Failed to get lines by step",
			zap.String("request_id", requestID), zap.Int("step_order", stepOrder), zap.Error(err))
		return nil, fmt.Errorf("failed to get lines: %w", err)
	}
	defer rows.Close()

	return collectLines(rows)
}

// ListPendingByApprover retrieves the approver's undecided lines.
// Actionability gating and pending counts evaluate the full set, so a
// non-positive limit means no cap rather than a default page size.
func (r *LineRepository) ListPendingByApprover(ctx context.Context, approverID string, limit, offset int) ([]*entity.ApprovalLine, error) {
	query := `
		SELECT ` + lineColumns + `
		FROM approval_lines
		WHERE approver_id = ? AND status = ?
		ORDER BY id ASC
		LIMIT ? OFFSET ?
	`

	rows, err := sqlite.GetExecutor(ctx, r.db).QueryContext(ctx, query,
		approverID, string(entity.LinePending), unboundedLimit(limit), offset)
	if err != nil {
		r.logger.Error("Failed to list pending lines",
			zap.String("approver_id", approverID), zap.Error(err))
		return nil, fmt.Errorf("failed to list pending lines: %w", err)
	}
	defer rows.Close()

	return collectLines(rows)
}

// ListByApprover retrieves the approver's decided lines, newest first
func (r *LineRepository) ListByApprover(ctx context.Context, approverID string, limit, offset int) ([]*entity.ApprovalLine, error) {
	query := `
		SELECT ` + lineColumns + `
		FROM approval_lines
		WHERE approver_id = ? AND status != ?
		ORDER BY approved_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := sqlite.GetExecutor(ctx, r.db).QueryContext(ctx, query,
		approverID, string(entity.LinePending), normalizeLimit(limit), offset)
	if err != nil {
		r.logger.Error("Failed to list lines by approver",
			zap.String("approver_id", approverID), zap.Error(err))
		return nil, fmt.Errorf("failed to list lines: %w", err)
	}
	defer rows.Close()

	return collectLines(rows)
}

// Update persists the line's decision fields
func (r *LineRepository) Update(ctx context.Context, line *entity.ApprovalLine) error {
	query := `
		UPDATE approval_lines
		SET status = ?, approved_at = ?, comment = ?
		WHERE id = ?
	`

	result, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query,
		string(line.Status),
		line.ApprovedAt,
		line.Comment,
		line.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update line", zap.String("id", line.ID), zap.Error(err))
		return fmt.Errorf("failed to update line: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("line %s not found", line.ID)
	}
	return nil
}

// DeleteByRequestID removes the request's whole line set
func (r *LineRepository) DeleteByRequestID(ctx context.Context, requestID string) error {
	query := `DELETE FROM approval_lines WHERE request_id = ?`

	_, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query, requestID)
	if err != nil {
		r.logger.Error("Failed to delete lines",
			zap.String("request_id", requestID), zap.Error(err))
		return fmt.Errorf("failed to delete lines: %w", err)
	}
	return nil
}

func scanLine(row rowScanner) (*entity.ApprovalLine, error) {
	var line entity.ApprovalLine
	var status string
	var approvedAt sql.NullTime

	err := row.Scan(
		&line.ID,
		&line.RequestID,
		&line.ApproverID,
		&line.ApproverName,
		&line.StepOrder,
		&line.IsRequired,
		&line.IsParallel,
		&status,
		&approvedAt,
		&line.Comment,
	)
	if err != nil {
		return nil, err
	}

	line.Status = entity.LineStatus(status)
	if approvedAt.Valid {
		line.ApprovedAt = &approvedAt.Time
	}
	return &line, nil
}

func collectLines(rows *sql.Rows) ([]*entity.ApprovalLine, error) {
	var lines []*entity.ApprovalLine
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan line: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// Verify interface compliance
var _ port.LineRepository = (*LineRepository)(nil)
