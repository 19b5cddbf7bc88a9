package errors

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
)

func TestAppError(t *testing.T) {
	cause := errors.New("underlying error")
	appErr := NewAppError(ErrorTypeConnection, "connection failed", cause)

	if appErr.Type != ErrorTypeConnection {
		t.Errorf("Expected type %v, got %v", ErrorTypeConnection, appErr.Type)
	}

	if appErr.Message != "connection failed" {
		t.Errorf("Expected message 'connection failed', got %v", appErr.Message)
	}

	if appErr.Cause != cause {
		t.Errorf("Expected cause %v, got %v", cause, appErr.Cause)
	}

	if appErr.IsRecoverable() {
		t.Error("Expected non-recoverable error")
	}

	expectedError := "connection: connection failed (caused by: underlying error)"
	if appErr.Error() != expectedError {
		t.Errorf("Expected error string %v, got %v", expectedError, appErr.Error())
	}
}

func TestAppErrorWithContext(t *testing.T) {
	appErr := NewAppError(ErrorTypeSQL, "query failed", nil)
	appErr.WithContext("model", "patients").WithContext("backup_id", "backup-1")

	if appErr.Context["model"] != "patients" {
		t.Errorf("Expected context model=patients, got %v", appErr.Context["model"])
	}

	if appErr.Context["backup_id"] != "backup-1" {
		t.Errorf("Expected context backup_id=backup-1, got %v", appErr.Context["backup_id"])
	}
}

func TestDomainErrorConstructors(t *testing.T) {
	tests := []struct {
		name         string
		err          *AppError
		expectedType ErrorType
	}{
		{"encoding", NewEncodingError("bad field", nil), ErrorTypeEncoding},
		{"corrupt snapshot", NewCorruptSnapshotError("checksum mismatch", nil), ErrorTypeCorruptSnapshot},
		{"not found", NewNotFoundError("missing", nil), ErrorTypeNotFound},
		{"backup not successful", NewBackupNotSuccessfulError("backup-1", "FAILED"), ErrorTypeBackupNotSuccessful},
		{"backup not ready", NewBackupNotReadyError("backup-1", "RUNNING"), ErrorTypeBackupNotReady},
		{"unsafe restore", NewUnsafeRestoreError("backup-1", 3), ErrorTypeUnsafeRestore},
		{"restore in progress", NewRestoreInProgressError("backup-1"), ErrorTypeRestoreInProgress},
		{"restore failed", NewRestoreFailedError("backup-1", errors.New("boom")), ErrorTypeRestoreFailed},
		{"storage", NewStorageError("io failed", nil), ErrorTypeStorage},
		{"validation", NewValidationError("bad input", nil), ErrorTypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Type != tt.expectedType {
				t.Errorf("Expected type %v, got %v", tt.expectedType, tt.err.Type)
			}
			if tt.err.IsRecoverable() {
				t.Error("Domain errors should not be recoverable")
			}
		})
	}
}

func TestUnsafeRestoreErrorContext(t *testing.T) {
	appErr := NewUnsafeRestoreError("backup-20240101-abc", 5)

	if appErr.Context["backup_id"] != "backup-20240101-abc" {
		t.Errorf("Expected backup_id in context, got %v", appErr.Context["backup_id"])
	}

	if appErr.Context["conflicts"] != 5 {
		t.Errorf("Expected conflicts=5 in context, got %v", appErr.Context["conflicts"])
	}
}

func TestErrorClassifier_ClassifyMySQLError(t *testing.T) {
	classifier := NewErrorClassifier()

	tests := []struct {
		name         string
		mysqlErr     *mysql.MySQLError
		expectedType ErrorType
		recoverable  bool
	}{
		{
			name:         "access denied",
			mysqlErr:     &mysql.MySQLError{Number: 1045, Message: "Access denied"},
			expectedType: ErrorTypeValidation,
			recoverable:  false,
		},
		{
			name:         "unknown database",
			mysqlErr:     &mysql.MySQLError{Number: 1049, Message: "Unknown database"},
			expectedType: ErrorTypeValidation,
			recoverable:  false,
		},
		{
			name:         "missing table",
			mysqlErr:     &mysql.MySQLError{Number: 1146, Message: "Table doesn't exist"},
			expectedType: ErrorTypeSQL,
			recoverable:  false,
		},
		{
			name:         "lock wait timeout",
			mysqlErr:     &mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"},
			expectedType: ErrorTypeTimeout,
			recoverable:  true,
		},
		{
			name:         "deadlock",
			mysqlErr:     &mysql.MySQLError{Number: 1213, Message: "Deadlock found"},
			expectedType: ErrorTypeSQL,
			recoverable:  true,
		},
		{
			name:         "server unreachable",
			mysqlErr:     &mysql.MySQLError{Number: 2003, Message: "Can't connect"},
			expectedType: ErrorTypeConnection,
			recoverable:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := classifier.ClassifyError(tt.mysqlErr)

			if appErr.Type != tt.expectedType {
				t.Errorf("Expected type %v, got %v", tt.expectedType, appErr.Type)
			}

			if appErr.IsRecoverable() != tt.recoverable {
				t.Errorf("Expected recoverable=%v, got %v", tt.recoverable, appErr.IsRecoverable())
			}
		})
	}
}

func TestErrorClassifier_SQLDriverErrors(t *testing.T) {
	classifier := NewErrorClassifier()

	if got := classifier.ClassifyError(sql.ErrNoRows); got.Type != ErrorTypeNotFound {
		t.Errorf("Expected not_found for sql.ErrNoRows, got %v", got.Type)
	}

	if got := classifier.ClassifyError(sql.ErrConnDone); !got.IsRecoverable() {
		t.Error("Expected sql.ErrConnDone to classify as recoverable")
	}
}

func TestErrorClassifier_ContextErrors(t *testing.T) {
	classifier := NewErrorClassifier()

	deadlineErr := classifier.ClassifyError(context.DeadlineExceeded)
	if deadlineErr.Type != ErrorTypeTimeout {
		t.Errorf("Expected timeout type, got %v", deadlineErr.Type)
	}

	cancelErr := classifier.ClassifyError(context.Canceled)
	if cancelErr.Type != ErrorTypeInterruption {
		t.Errorf("Expected interruption type, got %v", cancelErr.Type)
	}
	if cancelErr.IsRecoverable() {
		t.Error("Cancellation should not be recoverable")
	}
}

func TestErrorClassifier_PassesThroughAppError(t *testing.T) {
	classifier := NewErrorClassifier()
	original := NewUnsafeRestoreError("backup-1", 2)

	classified := classifier.ClassifyError(original)
	if classified != original {
		t.Error("Expected classifier to return the original AppError unchanged")
	}
}

func TestRetryHandler_SucceedsAfterRecoverableFailures(t *testing.T) {
	handler := NewRetryHandler(RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    10 * time.Millisecond,
		Multiplier:  2.0,
	})

	attempts := 0
	err := handler.Retry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return NewRecoverableError(ErrorTypeConnection, "transient", nil)
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}

	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetryHandler_DoesNotRetryPermanentErrors(t *testing.T) {
	handler := NewDefaultRetryHandler()

	attempts := 0
	err := handler.Retry(context.Background(), func() error {
		attempts++
		return NewUnsafeRestoreError("backup-1", 1)
	})

	if err == nil {
		t.Fatal("Expected error from Retry()")
	}

	if attempts != 1 {
		t.Errorf("Expected a single attempt for a permanent error, got %d", attempts)
	}

	if GetErrorType(err) != ErrorTypeUnsafeRestore {
		t.Errorf("Expected unsafe_restore type, got %v", GetErrorType(err))
	}
}

func TestRetryHandler_ExhaustsAttempts(t *testing.T) {
	handler := NewRetryHandler(RetryConfig{
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Multiplier:  2.0,
	})

	attempts := 0
	err := handler.Retry(context.Background(), func() error {
		attempts++
		return NewRecoverableError(ErrorTypeConnection, "still down", nil)
	})

	if err == nil {
		t.Fatal("Expected error after exhausting attempts")
	}

	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}
}

func TestWrapError(t *testing.T) {
	original := NewCorruptSnapshotError("checksum mismatch", nil)
	wrapped := WrapError(original, "failed to load snapshot")

	if GetErrorType(wrapped) != ErrorTypeCorruptSnapshot {
		t.Errorf("Expected wrapped error to keep type, got %v", GetErrorType(wrapped))
	}

	if !errors.Is(wrapped, original) {
		t.Error("Expected wrapped error to unwrap to the original")
	}
}

func TestIsType(t *testing.T) {
	err := NewBackupNotReadyError("backup-1", "PENDING")

	if !IsType(err, ErrorTypeBackupNotReady) {
		t.Error("Expected IsType to match backup_not_ready")
	}

	if IsType(err, ErrorTypeUnsafeRestore) {
		t.Error("Expected IsType not to match unsafe_restore")
	}

	if !IsType(errors.New("plain"), ErrorTypeUnknown) {
		t.Error("Expected plain errors to classify as unknown")
	}
}
