// Package http exposes the carrier integration layer over HTTP: the admin API,
// the carrier webhook receiver, health and metrics.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/garyjia/carrier-integration/internal/application/service"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// MaxWebhookBytes caps webhook bodies
	MaxWebhookBytes int64
	// MaxUploadBytes caps multipart document uploads
	MaxUploadBytes int64
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    2 * time.Minute,
		MaxWebhookBytes: 1 << 20,
		MaxUploadBytes:  25 << 20,
	}
}

// Server is the HTTP server adapter
type Server struct {
	config         ServerConfig
	httpServer     *http.Server
	router         *gin.Engine
	carrierService service.CarrierService
	webhookService service.WebhookService
	reports        ReportWriter
	metrics        http.Handler
	logger         Logger
}

// NewServer creates a new HTTP server. metricsHandler may be nil, in which
// case /metrics is not mounted.
func NewServer(
	config ServerConfig,
	carrierService service.CarrierService,
	webhookService service.WebhookService,
	reports ReportWriter,
	metricsHandler http.Handler,
	logger Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	if config.MaxUploadBytes > 0 {
		router.MaxMultipartMemory = config.MaxUploadBytes
	}

	server := &Server{
		config:         config,
		router:         router,
		carrierService: carrierService,
		webhookService: webhookService,
		reports:        reports,
		metrics:        metricsHandler,
		logger:         logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// RequestIDHeader carries the id logged for every request. A caller-supplied
// value is kept so carrier webhook deliveries can be traced end to end.
const RequestIDHeader = "X-Request-ID"

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		if path == "/health" || path == "/metrics" {
			return
		}

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		kv := []interface{}{
			"request_id", c.GetString("request_id"),
			"method", c.Request.Method,
			"route", route,
			"path", path,
			"status", status,
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		}
		switch {
		case status >= http.StatusInternalServerError:
			s.logger.Error("HTTP request", kv...)
		case status >= http.StatusBadRequest:
			s.logger.Warn("HTTP request", kv...)
		default:
			s.logger.Info("HTTP request", kv...)
		}
	}
}

func (s *Server) setupRoutes() {
	handlers := NewHandlers(s.carrierService, s.webhookService, s.reports, s.config, s.logger)

	s.router.GET("/health", handlers.HealthCheck)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics))
	}

	api := s.router.Group("/api")
	{
		// Claims
		api.POST("/claims/:id/file", handlers.FileClaim)
		api.POST("/claims/:id/sync", handlers.SyncClaim)
		api.POST("/claims/:id/supplements", handlers.FileSupplement)
		api.POST("/claims/:id/documents", handlers.UploadDocument)
		api.GET("/claims/:id/documents", handlers.GetDocuments)

		// Carriers
		api.GET("/carriers", handlers.ListCarriers)
		api.PUT("/carriers/:code", handlers.UpdateCarrier)
		api.GET("/carriers/:code/health", handlers.TestConnection)
		api.GET("/carriers/:code/sync", handlers.SyncCarrier)
		api.POST("/carriers/:code/sync", handlers.SyncCarrier)
	}

	s.router.POST("/webhooks/carriers/:code", handlers.ReceiveWebhook)
}

// Start starts the HTTP server and blocks until ctx is done or it fails
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
