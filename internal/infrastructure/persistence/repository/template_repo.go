package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/baeksung/approval-engine/internal/application/port"
	"github.com/baeksung/approval-engine/internal/domain/entity"
	"github.com/baeksung/approval-engine/internal/infrastructure/persistence/sqlite"
)

// TemplateRepository implements port.TemplateRepository
type TemplateRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTemplateRepository creates a new template repository
func NewTemplateRepository(db *sql.DB, logger *zap.Logger) port.TemplateRepository {
	return &TemplateRepository{
		db:     db,
		logger: logger,
	}
}

// GetByID retrieves a document template
func (r *TemplateRepository) GetByID(ctx context.Context, id string) (*entity.DocumentTemplate, error) {
	query := `
		SELECT id, name, document_prefix, default_steps, created_at
		FROM document_templates
		WHERE id = ?
	`

	var template entity.DocumentTemplate
	var defaultSteps string
	err := sqlite.GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&template.ID,
		&template.Name,
		&template.DocumentPrefix,
		&defaultSteps,
		&template.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get template by ID", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	if defaultSteps != "" {
		if err := json.Unmarshal([]byte(defaultSteps), &template.DefaultSteps); err != nil {
			return nil, fmt.Errorf("failed to unmarshal default steps: %w", err)
		}
	}
	return &template, nil
}

// Verify interface compliance
var _ port.TemplateRepository = (*TemplateRepository)(nil)
