package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/farsisweep/internal/api/handler"
	"github.com/jon4hz/farsisweep/internal/config"
	"github.com/jon4hz/farsisweep/internal/engine"
)

// APIKeyHeader carries the API key when one is configured.
const APIKeyHeader = "X-API-Key"

type Server struct {
	cfg       *config.Config
	ginEngine *gin.Engine
	handler   *handler.Handler
	log       *log.Logger
}

func New(cfg *config.Config, e *engine.Engine) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if e == nil {
		return nil, fmt.Errorf("engine is required")
	}
	return NewWithHandler(cfg, handler.New(e.DB(), e.Tracker(), e.LinkCache(), e.GetScheduler())), nil
}

// NewWithHandler creates a server around an existing handler.
func NewWithHandler(cfg *config.Config, h *handler.Handler) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		cfg:       cfg,
		ginEngine: gin.New(),
		handler:   h,
		log:       log.Default().WithPrefix("api"),
	}
	s.setupRoutes()
	return s
}

// Handler returns the http handler of the server.
func (s *Server) Handler() http.Handler {
	return s.ginEngine
}

func (s *Server) setupRoutes() {
	s.ginEngine.Use(gin.Recovery(), s.requestLogger(), gzip.Gzip(gzip.DefaultCompression))

	s.ginEngine.GET("/healthz", s.handler.Healthz)

	api := s.ginEngine.Group("/api")
	api.Use(RequireAPIKey(s.cfg.APIKey))
	api.GET("/stats", s.handler.Stats)
	api.GET("/new", s.handler.NewContent)
	api.GET("/snapshot", s.handler.Snapshot)
	api.GET("/jobs", s.handler.Jobs)
	api.POST("/jobs/:id/run", s.handler.RunJob)
	api.POST("/jobs/:id/enable", s.handler.EnableJob)
	api.POST("/jobs/:id/disable", s.handler.DisableJob)
}

// RequireAPIKey rejects requests without the configured key. An empty key disables the check.
func RequireAPIKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}
		got := c.GetHeader(APIKeyHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
			return
		}
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"took", time.Since(start),
		)
	}
}

// Run serves the API until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.ginEngine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting API server", "listen", s.cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.log.Info("shutting down API server")
	return srv.Shutdown(shutdownCtx)
}
