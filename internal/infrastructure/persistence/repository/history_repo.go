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

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a history entry. The trail is append-only.
func (r *HistoryRepository) Create(ctx context.Context, history *entity.ApprovalHistory) error {
	query := `
		INSERT INTO approval_history (
			id, request_id, approver_id, approver_name,
			action, comment, ip_address, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query,
		history.ID,
		history.RequestID,
		history.ApproverID,
		history.ApproverName,
		string(history.Action),
		history.Comment,
		history.IPAddress,
		history.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create history entry", zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}
	return nil
}

// GetByRequestID retrieves the request's trail in creation order
func (r *HistoryRepository) GetByRequestID(ctx context.Context, requestID string) ([]*entity.ApprovalHistory, error) {
	query := `
		SELECT id, request_id, approver_id, approver_name,
			action, comment, ip_address, created_at
		FROM approval_history
		WHERE request_id = ?
		ORDER BY created_at ASC, id ASC
	`

	rows, err := sqlite.GetExecutor(ctx, r.db).QueryContext(ctx, query, requestID)
	if err != nil {
		r.logger.Error("Failed to get history by request ID",
			zap.String("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var entries []*entity.ApprovalHistory
	for rows.Next() {
		var entry entity.ApprovalHistory
		var action string
		err := rows.Scan(
			&entry.ID,
			&entry.RequestID,
			&entry.ApproverID,
			&entry.ApproverName,
			&action,
			&entry.Comment,
			&entry.IPAddress,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entry.Action = entity.HistoryAction(action)
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
