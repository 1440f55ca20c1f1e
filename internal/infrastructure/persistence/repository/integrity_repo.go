package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/baeksung/approval-engine/internal/application/port"
	"github.com/baeksung/approval-engine/internal/domain/entity"
	"github.com/baeksung/approval-engine/internal/infrastructure/persistence/sqlite"
)

// IntegrityRepository implements port.IntegrityRepository
type IntegrityRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewIntegrityRepository creates a new integrity repository
func NewIntegrityRepository(db *sql.DB, logger *zap.Logger) port.IntegrityRepository {
	return &IntegrityRepository{
		db:     db,
		logger: logger,
	}
}

const integrityColumns = `
	id, request_id, content_hash, previous_hash, hash_algorithm,
	document_version, metadata_hash, created_at, created_by,
	verification_count, last_verified_at, is_tampered
`

// Create appends a chain link. The (request_id, document_version) pair
// is unique, so a concurrent duplicate append fails at the database.
func (r *IntegrityRepository) Create(ctx context.Context, record *entity.DocumentIntegrity) error {
	query := `
		INSERT INTO document_integrity (` + integrityColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query,
		record.ID,
		record.RequestID,
		record.ContentHash,
		record.PreviousHash,
		record.HashAlgorithm,
		record.DocumentVersion,
		record.MetadataHash,
		record.CreatedAt,
		record.CreatedBy,
		record.VerificationCount,
		record.LastVerifiedAt,
		record.IsTampered,
	)
	if err != nil {
		r.logger.Error("Failed to create integrity record",
			zap.String("request_id", record.RequestID), zap.Error(err))
		return fmt.Errorf("failed to create integrity record: %w", err)
	}
	return nil
}

// GetLatestByRequestID retrieves the request's highest-version link
func (r *IntegrityRepository) GetLatestByRequestID(ctx context.Context, requestID string) (*entity.DocumentIntegrity, error) {
	query := `
		SELECT ` + integrityColumns + `
		FROM document_integrity
		WHERE request_id = ?
		ORDER BY document_version DESC
		LIMIT 1
	`

	row := sqlite.GetExecutor(ctx, r.db).QueryRowContext(ctx, query, requestID)
	record, err := scanIntegrity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get latest integrity record",
			zap.String("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to get integrity record: %w", err)
	}
	return record, nil
}

// GetChainByRequestID retrieves all links in version order
func (r *IntegrityRepository) GetChainByRequestID(ctx context.Context, requestID string) ([]*entity.DocumentIntegrity, error) {
	query := `
		SELECT ` + integrityColumns + `
		FROM document_integrity
		WHERE request_id = ?
		ORDER BY document_version ASC
	`

	rows, err := sqlite.GetExecutor(ctx, r.db).QueryContext(ctx, query, requestID)
	if err != nil {
		r.logger.Error("Failed to get integrity chain",
			zap.String("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to get integrity chain: %w", err)
	}
	defer rows.Close()

	var chain []*entity.DocumentIntegrity
	for rows.Next() {
		record, err := scanIntegrity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan integrity record: %w", err)
		}
		chain = append(chain, record)
	}
	return chain, rows.Err()
}

// UpdateVerification records one verification pass. Only the bookkeeping
// fields move; hashed fields are immutable.
func (r *IntegrityRepository) UpdateVerification(ctx context.Context, id string, verifiedAt time.Time, tampered bool) error {
	query := `
		UPDATE document_integrity
		SET verification_count = verification_count + 1,
			last_verified_at = ?,
			is_tampered = ?
		WHERE id = ?
	`

	result, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query, verifiedAt, tampered, id)
	if err != nil {
		r.logger.Error("Failed to update verification", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to update verification: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("integrity record %s not found", id)
	}
	return nil
}

// ListTampered retrieves tampered links, newest first, with the total
func (r *IntegrityRepository) ListTampered(ctx context.Context, limit, offset int) ([]*entity.DocumentIntegrity, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM document_integrity WHERE is_tampered = 1`
	if err := sqlite.GetExecutor(ctx, r.db).QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		r.logger.Error("Failed to count tampered records", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to count tampered records: %w", err)
	}

	query := `
		SELECT ` + integrityColumns + `
		FROM document_integrity
		WHERE is_tampered = 1
		ORDER BY last_verified_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := sqlite.GetExecutor(ctx, r.db).QueryContext(ctx, query, normalizeLimit(limit), offset)
	if err != nil {
		r.logger.Error("Failed to list tampered records", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list tampered records: %w", err)
	}
	defer rows.Close()

	var records []*entity.DocumentIntegrity
	for rows.Next() {
		record, err := scanIntegrity(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan integrity record: %w", err)
		}
		records = append(records, record)
	}
	return records, total, rows.Err()
}

func scanIntegrity(row rowScanner) (*entity.DocumentIntegrity, error) {
	var record entity.DocumentIntegrity
	var lastVerifiedAt sql.NullTime

	err := row.Scan(
		&record.ID,
		&record.RequestID,
		&record.ContentHash,
		&record.PreviousHash,
		&record.HashAlgorithm,
		&record.DocumentVersion,
		&record.MetadataHash,
		&record.CreatedAt,
		&record.CreatedBy,
		&record.VerificationCount,
		&lastVerifiedAt,
		&record.IsTampered,
	)
	if err != nil {
		return nil, err
	}

	if lastVerifiedAt.Valid {
		record.LastVerifiedAt = &lastVerifiedAt.Time
	}
	return &record, nil
}

// Verify interface compliance
var _ port.IntegrityRepository = (*IntegrityRepository)(nil)
