// Package http is the gin adapter that exposes the backend services as the
// table, auth and procedure endpoints the client consumes.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/expense-desk/internal/application/service"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
	// MaxUploadBytes caps the body of a capture upload
	MaxUploadBytes int64
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:           "0.0.0.0",
		Port:           8080,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		AllowedOrigins: []string{"*"},
		MaxUploadBytes: 10 << 20,
	}
}

// Services are the backend operations served over HTTP
type Services struct {
	Auth     service.AuthService
	Expenses service.ExpenseService
	Profiles service.ProfileService
	Catalog  service.CatalogService
	Capture  service.CaptureService
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	handlers   *Handlers
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, services Services, logger Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = DefaultServerConfig().MaxUploadBytes
	}

	s := &Server{
		config:   config,
		router:   gin.New(),
		handlers: NewHandlers(services, config.MaxUploadBytes, logger),
		logger:   logger,
	}

	s.router.Use(s.recoveryMiddleware())
	s.router.Use(s.loggingMiddleware())
	s.router.Use(s.corsMiddleware())

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	h := s.handlers

	s.router.GET("/health", h.HealthCheck)

	authGroup := s.router.Group("/auth/v1")
	{
		authGroup.POST("/signup", h.SignUp)
		authGroup.POST("/token", h.SignIn)
	}

	rest := s.router.Group("/rest/v1", h.authMiddleware())
	{
		rest.GET("/expenses", h.ListExpenses)
		rest.POST("/expenses", h.CreateExpense)
		rest.GET("/expenses/:id", h.GetExpense)
		rest.DELETE("/expenses/:id", h.DeleteExpense)
		rest.GET("/expenses/:id/history", h.ExpenseHistory)
		rest.GET("/expenses/:id/actions", h.ExpenseActions)

		rest.GET("/profiles", h.ListProfiles)
		rest.GET("/profiles/:id", h.GetProfile)

		rest.GET("/categories", h.ListCategories)
		rest.GET("/rules", h.ListRules)

		rest.POST("/capture", h.Capture)
	}

	rpc := s.router.Group("/rpc", h.authMiddleware())
	{
		rpc.POST("/submit_expense", h.SubmitExpense)
		rpc.POST("/approve_expense", h.ApproveExpense)
		rpc.POST("/reject_expense", h.RejectExpense)
		rpc.POST("/promote_user_to_admin", h.PromoteUserToAdmin)
	}
}

// Start serves until the context is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
