package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/baeksung/approval-engine/internal/application/port"
	"github.com/baeksung/approval-engine/internal/domain/entity"
)

const (
	defaultDocumentPrefix = "DOC"
	defaultDepartmentCode = "GEN"
	docNumberAttempts     = 5
)

// DocumentNumberService issues human-readable document numbers of the
// form PREFIX-YEAR-DEPT-SERIAL, e.g. EXP-2026-FIN-01J8ZK.
type DocumentNumberService struct {
	requestRepo port.RequestRepository
	logger      Logger
}

// NewDocumentNumberService creates a new DocumentNumberService
func NewDocumentNumberService(requestRepo port.RequestRepository, logger Logger) *DocumentNumberService {
	return &DocumentNumberService{requestRepo: requestRepo, logger: logger}
}

// Generate produces a unique document number. The serial segment comes
// from a ULID so numbers stay sortable within a year; uniqueness is
// still confirmed against the store before the number is handed out.
func (s *DocumentNumberService) Generate(ctx context.Context, template *entity.DocumentTemplate, departmentID string) (string, error) {
	prefix := defaultDocumentPrefix
	if template != nil && template.DocumentPrefix != "" {
		prefix = template.DocumentPrefix
	}
	dept := departmentCode(departmentID)
	year := time.Now().Year()

	for attempt := 0; attempt < docNumberAttempts; attempt++ {
		serial := ulid.Make().String()
		number := fmt.Sprintf("%s-%d-%s-%s", prefix, year, dept, serial[len(serial)-6:])

		existing, err := s.requestRepo.GetByDocumentNumber(ctx, number)
		if err != nil {
			return "", fmt.Errorf("check document number: %w", err)
		}
		if existing == nil {
			return number, nil
		}
		s.logger.Warn("Document number collision, retrying", "number", number)
	}

	return "", fmt.Errorf("could not allocate a unique document number after %d attempts", docNumberAttempts)
}

// departmentCode normalizes a department id into the short uppercase
// segment used inside document numbers.
func departmentCode(departmentID string) string {
	code := strings.ToUpper(strings.TrimSpace(departmentID))
	if code == "" {
		return defaultDepartmentCode
	}
	if len(code) > 8 {
		code = code[:8]
	}
	return code
}
