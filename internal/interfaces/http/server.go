// Package http provides the HTTP server adapter for the application
// layer. It is a thin translation layer: requests in, service calls,
// JSON responses out.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/baeksung/approval-engine/internal/application/port"
	"github.com/baeksung/approval-engine/internal/application/service"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// WebsocketHandler attaches a live event connection for the given user.
type WebsocketHandler interface {
	ServeConnection(c *gin.Context, userID string)
}

// Server is the HTTP server adapter
type Server struct {
	config           ServerConfig
	httpServer       *http.Server
	router           *gin.Engine
	approvalService  service.ApprovalService
	integrityService service.IntegrityService
	userRepo         port.UserRepository
	tokens           *TokenIssuer
	websocket        WebsocketHandler
	logger           Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(
	config ServerConfig,
	approvalService service.ApprovalService,
	integrityService service.IntegrityService,
	userRepo port.UserRepository,
	tokens *TokenIssuer,
	websocket WebsocketHandler,
	logger Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		config:           config,
		router:           gin.New(),
		approvalService:  approvalService,
		integrityService: integrityService,
		userRepo:         userRepo,
		tokens:           tokens,
		websocket:        websocket,
		logger:           logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	handlers := NewHandlers(s.approvalService, s.integrityService, s.userRepo, s.tokens, s.logger)

	// Health check
	s.router.GET("/health", handlers.HealthCheck)

	// Token issuing; callers are already authenticated by the gateway
	// in front of this internal service.
	s.router.POST("/api/auth/token", handlers.IssueToken)

	api := s.router.Group("/api", s.authMiddleware())
	{
		approvals := api.Group("/approvals")
		{
			approvals.POST("", handlers.CreateRequest)
			approvals.GET("/my", handlers.ListMyRequests)
			approvals.GET("/pending", handlers.ListActionable)
			approvals.GET("/history", handlers.ListMyApprovalHistory)

			approvals.GET("/:id", handlers.GetRequest)
			approvals.PUT("/:id/lines", handlers.SetLines)
			approvals.GET("/:id/lines", handlers.GetLines)
			approvals.GET("/:id/history", handlers.GetHistory)
			approvals.POST("/:id/submit", handlers.Submit)
			approvals.POST("/:id/approve", handlers.Approve)
			approvals.POST("/:id/reject", handlers.Reject)
			approvals.POST("/:id/cancel", handlers.Cancel)

			approvals.GET("/:id/integrity/verify", handlers.VerifyIntegrity)
			approvals.GET("/:id/integrity/chain", handlers.GetIntegrityChain)
		}

		api.GET("/integrity/tampered", handlers.ListTampered)

		// Live event stream
		api.GET("/ws", func(c *gin.Context) {
			s.websocket.ServeConnection(c, currentUserID(c))
		})
	}
}

// Start starts the HTTP server and blocks until the context is
// cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
