package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/baeksung/approval-engine/internal/application/port"
	"github.com/baeksung/approval-engine/internal/domain/entity"
	"github.com/baeksung/approval-engine/pkg/canonical"
)

// IntegrityService maintains the per-request tamper-evidence hash chain
// and answers verification queries against it.
type IntegrityService interface {
	AppendLink(ctx context.Context, requestID, actorID string) (*entity.DocumentIntegrity, error)
	Verify(ctx context.Context, requestID string) (*entity.IntegrityVerification, error)
	GetChain(ctx context.Context, requestID, userID string) (*entity.IntegrityChain, error)
	ListTampered(ctx context.Context, userID string, limit, offset int) ([]*entity.DocumentIntegrity, int, error)
}

type integrityServiceImpl struct {
	integrityRepo port.IntegrityRepository
	requestRepo   port.RequestRepository
	lineRepo      port.LineRepository
	historyRepo   port.HistoryRepository
	userRepo      port.UserRepository
	txManager     port.TransactionManager
	logger        Logger
}

// NewIntegrityService creates a new IntegrityService
func NewIntegrityService(
	integrityRepo port.IntegrityRepository,
	requestRepo port.RequestRepository,
	lineRepo port.LineRepository,
	historyRepo port.HistoryRepository,
	userRepo port.UserRepository,
	txManager port.TransactionManager,
	logger Logger,
) IntegrityService {
	return &integrityServiceImpl{
		integrityRepo: integrityRepo,
		requestRepo:   requestRepo,
		lineRepo:      lineRepo,
		historyRepo:   historyRepo,
		userRepo:      userRepo,
		txManager:     txManager,
		logger:        logger,
	}
}

// AppendLink seals the request's current state into a new chain link.
// The first link carries version 1 and an empty previous hash; every
// later link stores the content hash of its predecessor.
func (s *integrityServiceImpl) AppendLink(ctx context.Context, requestID, actorID string) (*entity.DocumentIntegrity, error) {
	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	if request == nil {
		return nil, fmt.Errorf("%w: request %s", ErrNotFound, requestID)
	}

	lines, err := s.lineRepo.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get approval lines: %w", err)
	}
	histories, err := s.historyRepo.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get histories: %w", err)
	}

	contentHash, err := ContentHash(request)
	if err != nil {
		return nil, fmt.Errorf("content hash: %w", err)
	}
	metadataHash, err := MetadataHash(lines, histories)
	if err != nil {
		return nil, fmt.Errorf("metadata hash: %w", err)
	}

	latest, err := s.integrityRepo.GetLatestByRequestID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get latest link: %w", err)
	}

	record := &entity.DocumentIntegrity{
		ID:              newID(),
		RequestID:       requestID,
		ContentHash:     contentHash,
		HashAlgorithm:   entity.HashAlgorithmSHA256,
		DocumentVersion: 1,
		MetadataHash:    metadataHash,
		CreatedAt:       time.Now(),
		CreatedBy:       actorID,
	}
	if latest != nil {
		record.DocumentVersion = latest.DocumentVersion + 1
		record.PreviousHash = latest.ContentHash
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return s.integrityRepo.Create(txCtx, record)
	})
	if err != nil {
		s.logger.Error("Failed to append integrity link", "error", err, "request_id", requestID)
		return nil, err
	}

	s.logger.Info("Integrity link appended",
		"request_id", requestID,
		"version", record.DocumentVersion,
		"content_hash", record.ContentHash)
	return record, nil
}

// Verify recomputes the request's hashes from its current stored state
// and checks them against the latest chain link, then walks the whole
// chain for linkage. A mismatch is reported in the result, never as an
// error; the link's verification bookkeeping is updated either way.
func (s *integrityServiceImpl) Verify(ctx context.Context, requestID string) (*entity.IntegrityVerification, error) {
	now := time.Now()
	result := &entity.IntegrityVerification{
		RequestID:      requestID,
		VerifiedAt:     now,
		TamperedFields: []string{},
	}

	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	if request == nil {
		return nil, fmt.Errorf("%w: request %s", ErrNotFound, requestID)
	}

	latest, err := s.integrityRepo.GetLatestByRequestID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get latest link: %w", err)
	}
	if latest == nil {
		result.ErrorMessage = "no integrity record exists for this request"
		return result, nil
	}

	lines, err := s.lineRepo.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get approval lines: %w", err)
	}
	histories, err := s.historyRepo.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get histories: %w", err)
	}

	contentHash, err := ContentHash(request)
	if err != nil {
		return nil, fmt.Errorf("content hash: %w", err)
	}
	metadataHash, err := MetadataHash(lines, histories)
	if err != nil {
		return nil, fmt.Errorf("metadata hash: %w", err)
	}

	result.ContentHashValid = contentHash == latest.ContentHash
	result.MetadataHashValid = metadataHash == latest.MetadataHash
	if !result.ContentHashValid {
		result.TamperedFields = append(result.TamperedFields, "content")
	}
	if !result.MetadataHashValid {
		result.TamperedFields = append(result.TamperedFields, "metadata")
	}

	chain, err := s.integrityRepo.GetChainByRequestID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get chain: %w", err)
	}
	broken := brokenAtVersion(chain)
	result.ChainValid = broken == 0
	if !result.ChainValid {
		result.TamperedFields = append(result.TamperedFields,
			fmt.Sprintf("chain@v%d", broken))
	}

	result.IsValid = result.ContentHashValid && result.MetadataHashValid && result.ChainValid
	if !result.IsValid {
		result.ErrorMessage = "integrity violation: " + strings.Join(result.TamperedFields, ", ")
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return s.integrityRepo.UpdateVerification(txCtx, latest.ID, now, !result.IsValid)
	})
	if err != nil {
		s.logger.Warn("Failed to record verification bookkeeping", "error", err, "request_id", requestID)
	}

	if !result.IsValid {
		s.logger.Warn("Integrity verification failed",
			"request_id", requestID,
			"tampered_fields", result.TamperedFields)
	}
	return result, nil
}

// GetChain returns the request's full chain in version order, with the
// first broken link flagged when linkage does not hold.
func (s *integrityServiceImpl) GetChain(ctx context.Context, requestID, userID string) (*entity.IntegrityChain, error) {
	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	if request == nil {
		return nil, fmt.Errorf("%w: request %s", ErrNotFound, requestID)
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	if request.RequesterID != userID && !user.IsAdmin() {
		return nil, fmt.Errorf("%w: no permission to view the integrity chain", ErrForbidden)
	}

	chain, err := s.integrityRepo.GetChainByRequestID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get chain: %w", err)
	}

	broken := brokenAtVersion(chain)
	return &entity.IntegrityChain{
		RequestID:       requestID,
		Chain:           chain,
		IsValid:         broken == 0,
		BrokenAtVersion: broken,
	}, nil
}

// ListTampered returns links flagged as tampered, newest first. Admin only.
func (s *integrityServiceImpl) ListTampered(ctx context.Context, userID string, limit, offset int) ([]*entity.DocumentIntegrity, int, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, 0, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	if !user.IsAdmin() {
		return nil, 0, fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	return s.integrityRepo.ListTampered(ctx, limit, offset)
}

// brokenAtVersion walks a version-ordered chain and returns the version
// of the first link whose linkage does not hold, or 0 when the chain is
// intact. Versions must start at 1 and be contiguous, and every link
// after the first must carry its predecessor's content hash.
func brokenAtVersion(chain []*entity.DocumentIntegrity) int {
	for i, link := range chain {
		if link.DocumentVersion != i+1 {
			return link.DocumentVersion
		}
		if i == 0 {
			if link.PreviousHash != "" {
				return link.DocumentVersion
			}
			continue
		}
		if link.PreviousHash != chain[i-1].ContentHash {
			return link.DocumentVersion
		}
	}
	return 0
}

// ContentHash hashes the approval request's document fields. The payload
// is canonical JSON so the hex digest is reproducible across processes.
func ContentHash(request *entity.ApprovalRequest) (string, error) {
	payload := map[string]interface{}{
		"id":              request.ID,
		"title":           request.Title,
		"content":         request.Content,
		"form_data":       request.FormData,
		"template_id":     request.TemplateID,
		"document_number": request.DocumentNumber,
		"requester_id":    request.RequesterID,
		"department_id":   request.DepartmentID,
		"status":          request.Status.String(),
		"completed_at":    timePayload(request.CompletedAt),
	}
	return hashPayload(payload)
}

// MetadataHash hashes the approval trail: the line set ordered by step
// and the history ordered by creation time, plus both counts so a
// deleted row cannot go unnoticed.
func MetadataHash(lines []*entity.ApprovalLine, histories []*entity.ApprovalHistory) (string, error) {
	sortedLines := make([]*entity.ApprovalLine, len(lines))
	copy(sortedLines, lines)
	sort.SliceStable(sortedLines, func(i, j int) bool {
		return sortedLines[i].StepOrder < sortedLines[j].StepOrder
	})

	sortedHistories := make([]*entity.ApprovalHistory, len(histories))
	copy(sortedHistories, histories)
	sort.SliceStable(sortedHistories, func(i, j int) bool {
		return sortedHistories[i].CreatedAt.Before(sortedHistories[j].CreatedAt)
	})

	linePayload := make([]interface{}, 0, len(sortedLines))
	for _, line := range sortedLines {
		linePayload = append(linePayload, map[string]interface{}{
			"approver_id":   line.ApproverID,
			"approver_name": line.ApproverName,
			"step_order":    line.StepOrder,
			"status":        string(line.Status),
			"is_required":   line.IsRequired,
			"is_parallel":   line.IsParallel,
			"approved_at":   timePayload(line.ApprovedAt),
			"comment":       line.Comment,
		})
	}

	historyPayload := make([]interface{}, 0, len(sortedHistories))
	for _, history := range sortedHistories {
		historyPayload = append(historyPayload, map[string]interface{}{
			"approver_id":   history.ApproverID,
			"approver_name": history.ApproverName,
			"action":        string(history.Action),
			"created_at":    history.CreatedAt.UTC().Format(time.RFC3339Nano),
			"ip_address":    history.IPAddress,
			"comment":       history.Comment,
		})
	}

	payload := map[string]interface{}{
		"lines":           linePayload,
		"histories":       historyPayload,
		"lines_count":     len(lines),
		"histories_count": len(histories),
	}
	return hashPayload(payload)
}

func hashPayload(payload map[string]interface{}) (string, error) {
	data, err := canonical.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// timePayload renders an optional timestamp for hashing; nil stays nil
// so a missing completion date hashes differently from any real one.
func timePayload(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}
