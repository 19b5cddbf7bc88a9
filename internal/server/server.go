package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"snapshot-restore/internal/catalog"
	"snapshot-restore/internal/config"
	"snapshot-restore/internal/livestore"
	"snapshot-restore/internal/logging"
	"snapshot-restore/internal/restore"
	"snapshot-restore/internal/snapshot"
	"snapshot-restore/internal/verify"
	"snapshot-restore/internal/worker"
)

// Server exposes the backup and restore operations over REST
type Server struct {
	cfg      *config.Config
	logger   *logging.Logger
	catalog  *catalog.Catalog
	store    *livestore.Store
	storage  snapshot.StorageProvider
	runner   *worker.Runner
	planner  *restore.Planner
	executor *restore.Executor
	verifier *verify.Verifier

	engine *gin.Engine
	http   *http.Server
}

// New assembles the HTTP server and its routes
func New(cfg *config.Config, logger *logging.Logger, cat *catalog.Catalog, store *livestore.Store,
	storage snapshot.StorageProvider, runner *worker.Runner, planner *restore.Planner,
	executor *restore.Executor, verifier *verify.Verifier) *Server {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		catalog:  cat,
		store:    store,
		storage:  storage,
		runner:   runner,
		planner:  planner,
		executor: executor,
		verifier: verifier,
		engine:   engine,
	}
	s.routes()

	return s
}

func (s *Server) routes() {
	s.engine.Use(s.requestLogger())

	api := s.engine.Group("/api/v1")
	{
		api.POST("/backups", s.handleCreateBackup)
		api.GET("/backups", s.handleListBackups)
		api.GET("/backups/:id", s.handleGetBackup)
		api.GET("/backups/:id/download", s.handleDownloadBackup)
		api.POST("/backups/:id/verify", s.handleVerifyBackup)
		api.POST("/restore/preview", s.handlePreviewRestore)
		api.POST("/restore/confirm", s.handleConfirmRestore)
		api.GET("/summary", s.handleSummary)
		api.GET("/health", s.handleHealth)
	}
}

// Router returns the HTTP handler, mainly for tests
func (s *Server) Router() http.Handler {
	return s.engine
}

// Start listens until Shutdown is called
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)

	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: s.cfg.Server.WriteTimeoutDuration(),
	}

	s.logger.WithField("addr", addr).Info("HTTP server listening")

	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then waits for background backup
// jobs so a restart never strands a RUNNING record.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http != nil {
		if err := s.http.Shutdown(ctx); err != nil {
			return err
		}
	}
	s.runner.Wait()
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		s.logger.WithFields(map[string]interface{}{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(started).String(),
		}).Debug("Request handled")
	}
}
