package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/baeksung/approval-engine/internal/application/port"
	"github.com/baeksung/approval-engine/internal/application/service"
	"github.com/baeksung/approval-engine/internal/domain/entity"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	approvalService  service.ApprovalService
	integrityService service.IntegrityService
	userRepo         port.UserRepository
	tokens           *TokenIssuer
	logger           Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	approvalService service.ApprovalService,
	integrityService service.IntegrityService,
	userRepo port.UserRepository,
	tokens *TokenIssuer,
	logger Logger,
) *Handlers {
	return &Handlers{
		approvalService:  approvalService,
		integrityService: integrityService,
		userRepo:         userRepo,
		tokens:           tokens,
		logger:           logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// respondError maps application sentinel errors onto HTTP status codes.
// Anything unrecognized is an internal fault and is not leaked to the
// client.
func (h *Handlers) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, Response{Success: false, Error: err.Error()})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, Response{Success: false, Error: err.Error()})
	case errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrAlreadyProcessed):
		c.JSON(http.StatusConflict, Response{Success: false, Error: err.Error()})
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrNoApprovalLines),
		errors.Is(err, service.ErrDuplicateApprover):
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
	default:
		h.logger.Error("Request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "internal error"})
	}
}

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	respondOK(c, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	})
}

// IssueTokenRequest is the token issuing payload
type IssueTokenRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// IssueToken handles POST /api/auth/token
func (h *Handlers) IssueToken(c *gin.Context) {
	var req IssueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "user_id is required"})
		return
	}

	user, err := h.userRepo.GetByID(c.Request.Context(), req.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "unknown user"})
		return
	}

	token, err := h.tokens.Issue(user)
	if err != nil {
		h.logger.Error("Failed to issue token", "user_id", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "internal error"})
		return
	}

	respondOK(c, gin.H{"token": token})
}

// CreateRequestPayload is the request body for drafting a request
type CreateRequestPayload struct {
	Title        string                 `json:"title" binding:"required"`
	Content      string                 `json:"content" binding:"required"`
	TemplateID   string                 `json:"template_id"`
	FormData     map[string]interface{} `json:"form_data"`
	DepartmentID string                 `json:"department_id"`
}

// CreateRequest handles POST /api/approvals
func (h *Handlers) CreateRequest(c *gin.Context) {
	var payload CreateRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "title and content are required"})
		return
	}

	request, err := h.approvalService.CreateRequest(c.Request.Context(), service.CreateRequestInput{
		Title:        payload.Title,
		Content:      payload.Content,
		TemplateID:   payload.TemplateID,
		FormData:     payload.FormData,
		DepartmentID: payload.DepartmentID,
		RequesterID:  currentUserID(c),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: request})
}

// LinePayload is one approver slot in a SetLines request
type LinePayload struct {
	ApproverID string `json:"approver_id" binding:"required"`
	StepOrder  int    `json:"step_order" binding:"required,min=1"`
	IsRequired *bool  `json:"is_required"`
	IsParallel bool   `json:"is_parallel"`
}

// SetLinesPayload is the request body for replacing the line set
type SetLinesPayload struct {
	Lines []LinePayload `json:"lines" binding:"required,min=1,dive"`
}

// SetLines handles PUT /api/approvals/:id/lines
func (h *Handlers) SetLines(c *gin.Context) {
	var payload SetLinesPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "at least one approval line is required"})
		return
	}

	inputs := make([]service.LineInput, 0, len(payload.Lines))
	for _, line := range payload.Lines {
		required := true
		if line.IsRequired != nil {
			required = *line.IsRequired
		}
		inputs = append(inputs, service.LineInput{
			ApproverID: line.ApproverID,
			StepOrder:  line.StepOrder,
			IsRequired: required,
			IsParallel: line.IsParallel,
		})
	}

	lines, err := h.approvalService.SetLines(c.Request.Context(), c.Param("id"), currentUserID(c), inputs)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, lines)
}

// GetRequest handles GET /api/approvals/:id
func (h *Handlers) GetRequest(c *gin.Context) {
	request, err := h.approvalService.GetRequest(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, request)
}

// GetLines handles GET /api/approvals/:id/lines
func (h *Handlers) GetLines(c *gin.Context) {
	lines, err := h.approvalService.GetLines(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, lines)
}

// GetHistory handles GET /api/approvals/:id/history
func (h *Handlers) GetHistory(c *gin.Context) {
	history, err := h.approvalService.GetHistory(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, history)
}

// Submit handles POST /api/approvals/:id/submit
func (h *Handlers) Submit(c *gin.Context) {
	request, err := h.approvalService.Submit(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, request)
}

// ActionPayload carries the optional comment for approve/reject
type ActionPayload struct {
	Comment string `json:"comment"`
}

// Approve handles POST /api/approvals/:id/approve
func (h *Handlers) Approve(c *gin.Context) {
	h.processAction(c, entity.ActionApprove)
}

// Reject handles POST /api/approvals/:id/reject
func (h *Handlers) Reject(c *gin.Context) {
	h.processAction(c, entity.ActionReject)
}

func (h *Handlers) processAction(c *gin.Context, action entity.HistoryAction) {
	var payload ActionPayload
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, Response{Success: false, Error: "malformed body"})
			return
		}
	}

	request, err := h.approvalService.ProcessAction(
		c.Request.Context(), c.Param("id"), currentUserID(c), action, payload.Comment, c.ClientIP())
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, request)
}

// Cancel handles POST /api/approvals/:id/cancel
func (h *Handlers) Cancel(c *gin.Context) {
	request, err := h.approvalService.Cancel(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, request)
}

// PageQuery holds common pagination query parameters
type PageQuery struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

func (q *PageQuery) normalize() {
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
}

// ListMyRequests handles GET /api/approvals/my
func (h *Handlers) ListMyRequests(c *gin.Context) {
	var query PageQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid query parameters"})
		return
	}
	query.normalize()

	requests, err := h.approvalService.ListMyRequests(c.Request.Context(), currentUserID(c), query.Limit, query.Offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, requests)
}

// ListActionable handles GET /api/approvals/pending
func (h *Handlers) ListActionable(c *gin.Context) {
	lines, err := h.approvalService.ListActionable(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, lines)
}

// ListMyApprovalHistory handles GET /api/approvals/history
func (h *Handlers) ListMyApprovalHistory(c *gin.Context) {
	var query PageQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid query parameters"})
		return
	}
	query.normalize()

	lines, err := h.approvalService.ListMyApprovalHistory(c.Request.Context(), currentUserID(c), query.Limit, query.Offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, lines)
}

// VerifyIntegrity handles GET /api/approvals/:id/integrity/verify
func (h *Handlers) VerifyIntegrity(c *gin.Context) {
	result, err := h.integrityService.Verify(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, result)
}

// GetIntegrityChain handles GET /api/approvals/:id/integrity/chain
func (h *Handlers) GetIntegrityChain(c *gin.Context) {
	chain, err := h.integrityService.GetChain(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, chain)
}

// TamperedListResponse pages through tampered integrity records
type TamperedListResponse struct {
	Records []*entity.DocumentIntegrity `json:"records"`
	Total   int                         `json:"total"`
}

// ListTampered handles GET /api/integrity/tampered
func (h *Handlers) ListTampered(c *gin.Context) {
	var query PageQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid query parameters"})
		return
	}
	query.normalize()

	records, total, err := h.integrityService.ListTampered(c.Request.Context(), currentUserID(c), query.Limit, query.Offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, TamperedListResponse{Records: records, Total: total})
}
