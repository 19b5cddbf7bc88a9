package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"snapshot-restore/internal/catalog"
	apperrors "snapshot-restore/internal/errors"
	"snapshot-restore/internal/restore"
)

type createBackupRequest struct {
	BackupType string `json:"backup_type" binding:"required"`
	Quick      bool   `json:"quick"`
	Verify     bool   `json:"verify"`
}

type restoreRequest struct {
	BackupID      string `json:"backup_id" binding:"required"`
	MergeStrategy string `json:"merge_strategy" binding:"required"`
	Force         bool   `json:"force"`
}

func (s *Server) handleCreateBackup(c *gin.Context) {
	var req createBackupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, apperrors.NewValidationError("invalid request body", err))
		return
	}

	backupType, ok := catalog.ParseBackupType(req.BackupType)
	if !ok {
		s.renderError(c, apperrors.NewValidationError(
			fmt.Sprintf("invalid backup type: %s", req.BackupType), nil))
		return
	}

	record, err := s.runner.Enqueue(c.Request.Context(), backupType, req.Quick, req.Verify)
	if err != nil {
		s.renderError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"backup_id": record.ID,
		"status":    record.Status,
	})
}

func (s *Server) handleListBackups(c *gin.Context) {
	filter := catalog.ListFilter{}
	if status := c.Query("status"); status != "" {
		filter.Status = catalog.BackupStatus(status)
	}
	if backupType := c.Query("type"); backupType != "" {
		parsed, ok := catalog.ParseBackupType(backupType)
		if !ok {
			s.renderError(c, apperrors.NewValidationError(
				fmt.Sprintf("invalid backup type: %s", backupType), nil))
			return
		}
		filter.BackupType = parsed
	}

	records, err := s.catalog.List(c.Request.Context(), filter)
	if err != nil {
		s.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"backups": records, "count": len(records)})
}

func (s *Server) handleGetBackup(c *gin.Context) {
	record, err := s.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

func (s *Server) handleDownloadBackup(c *gin.Context) {
	backupID := c.Param("id")

	record, err := s.catalog.Get(c.Request.Context(), backupID)
	if err != nil {
		s.renderError(c, err)
		return
	}
	if record.Status != catalog.StatusSuccess {
		s.renderError(c, apperrors.NewBackupNotReadyError(backupID, string(record.Status)))
		return
	}

	object, err := s.storage.Retrieve(c.Request.Context(), backupID)
	if err != nil {
		s.renderError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.snapshot", backupID))
	c.Data(http.StatusOK, "application/octet-stream", object.Data)
}

func (s *Server) handleVerifyBackup(c *gin.Context) {
	result, err := s.verifier.Verify(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) handlePreviewRestore(c *gin.Context) {
	var req restoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, apperrors.NewValidationError("invalid request body", err))
		return
	}

	strategy, ok := restore.ParseMergeStrategy(req.MergeStrategy)
	if !ok {
		s.renderError(c, apperrors.NewValidationError(
			fmt.Sprintf("invalid merge strategy: %s", req.MergeStrategy), nil))
		return
	}

	plan, err := s.planner.Plan(c.Request.Context(), req.BackupID, strategy)
	if err != nil {
		s.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, plan)
}

// handleConfirmRestore trusts nothing from a previous preview; the
// executor recomputes the plan inside its own transaction.
func (s *Server) handleConfirmRestore(c *gin.Context) {
	var req restoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, apperrors.NewValidationError("invalid request body", err))
		return
	}

	strategy, ok := restore.ParseMergeStrategy(req.MergeStrategy)
	if !ok {
		s.renderError(c, apperrors.NewValidationError(
			fmt.Sprintf("invalid merge strategy: %s", req.MergeStrategy), nil))
		return
	}

	result, err := s.executor.Execute(c.Request.Context(), req.BackupID, strategy, req.Force)
	if err != nil {
		s.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleSummary(c *gin.Context) {
	summary, err := s.catalog.Summarize(c.Request.Context())
	if err != nil {
		s.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"summary":         summary,
		"recommendations": s.catalog.Recommendations(summary),
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx := c.Request.Context()
	healthy := true
	checks := gin.H{}

	if err := s.store.HealthCheck(ctx); err != nil {
		healthy = false
		checks["live_store"] = err.Error()
	} else {
		checks["live_store"] = "ok"
	}

	if err := s.storage.HealthCheck(ctx); err != nil {
		healthy = false
		checks["storage"] = err.Error()
	} else {
		checks["storage"] = "ok"
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"healthy": healthy, "checks": checks})
}

func (s *Server) renderError(c *gin.Context, err error) {
	errorType := apperrors.GetErrorType(err)

	var appErr *apperrors.AppError
	message := err.Error()
	if ae, ok := err.(*apperrors.AppError); ok {
		appErr = ae
		if appErr.UserMessage != "" {
			message = appErr.UserMessage
		}
	}

	status := statusForErrorType(errorType)
	if status >= http.StatusInternalServerError {
		s.logger.Errorf("Request failed: %v", err)
	}

	c.JSON(status, gin.H{
		"error": gin.H{
			"type":    errorType,
			"message": message,
		},
	})
}

func statusForErrorType(errorType apperrors.ErrorType) int {
	switch errorType {
	case apperrors.ErrorTypeValidation:
		return http.StatusBadRequest
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case apperrors.ErrorTypeUnsafeRestore,
		apperrors.ErrorTypeRestoreInProgress,
		apperrors.ErrorTypeBackupNotReady,
		apperrors.ErrorTypeBackupNotSuccessful:
		return http.StatusConflict
	case apperrors.ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
