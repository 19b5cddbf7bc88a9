package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
)

// LogLevel represents the logging level
type LogLevel string

const (
	// LogLevelQuiet suppresses all output except critical errors
	LogLevelQuiet LogLevel = "quiet"
	// LogLevelNormal shows standard operational messages
	LogLevelNormal LogLevel = "normal"
	// LogLevelVerbose shows detailed operational information
	LogLevelVerbose LogLevel = "verbose"
	// LogLevelDebug shows all debug information
	LogLevelDebug LogLevel = "debug"
)

// Logger provides structured logging capabilities
type Logger struct {
	logger *logrus.Logger
	level  LogLevel
}

// Config holds logger configuration
type Config struct {
	Level      LogLevel
	Output     io.Writer
	Format     string // "text" or "json"
	ShowCaller bool
	LogFile    string
}

// NewLogger creates a new logger with the specified configuration
func NewLogger(config Config) (*Logger, error) {
	logger := logrus.New()

	if config.Output != nil {
		logger.SetOutput(config.Output)
	} else {
		logger.SetOutput(os.Stdout)
	}

	switch config.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			DisableColors:   false,
		})
	}

	switch config.Level {
	case LogLevelQuiet:
		logger.SetLevel(logrus.ErrorLevel)
	case LogLevelNormal:
		logger.SetLevel(logrus.InfoLevel)
	case LogLevelVerbose:
		logger.SetLevel(logrus.DebugLevel)
	case LogLevelDebug:
		logger.SetLevel(logrus.TraceLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	if config.ShowCaller {
		logger.SetReportCaller(true)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			CallerPrettyfier: func(f *runtime.Frame) (string, string) {
				filename := filepath.Base(f.File)
				return fmt.Sprintf("%s()", f.Function), fmt.Sprintf("%s:%d", filename, f.Line)
			},
		})
	}

	if config.LogFile != "" {
		file, err := os.OpenFile(config.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", config.LogFile, err)
		}

		if config.Output == nil {
			logger.SetOutput(io.MultiWriter(os.Stdout, file))
		} else {
			logger.SetOutput(io.MultiWriter(config.Output, file))
		}
	}

	return &Logger{
		logger: logger,
		level:  config.Level,
	}, nil
}

// NewDefaultLogger creates a logger with default configuration
func NewDefaultLogger() *Logger {
	config := Config{
		Level:      LogLevelNormal,
		Output:     os.Stdout,
		Format:     "text",
		ShowCaller: false,
	}

	logger, _ := NewLogger(config)
	return logger
}

// WithContext returns a logger with context fields
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	return l.logger.WithContext(ctx)
}

// WithFields returns a logger with additional fields
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return l.logger.WithFields(fields)
}

// WithField returns a logger with a single additional field
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.logger.WithField(key, value)
}

// Domain operation logging methods

// LogBackupJob logs the outcome of a backup job
func (l *Logger) LogBackupJob(backupID, backupType string, quick bool, sizeBytes int64, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation":   "backup_job",
		"backup_id":   backupID,
		"backup_type": backupType,
		"quick":       quick,
		"size_bytes":  sizeBytes,
		"duration":    duration.String(),
	}

	if err != nil {
		fields["error"] = err.Error()
		l.logger.WithFields(fields).Error("Backup job failed")
	} else {
		l.logger.WithFields(fields).Info("Backup job completed")
	}
}

// LogRestorePlan logs a computed restore plan
func (l *Logger) LogRestorePlan(backupID, strategy string, totalRecords, conflicts int, safe bool) {
	l.logger.WithFields(logrus.Fields{
		"operation":       "restore_plan",
		"backup_id":       backupID,
		"merge_strategy":  strategy,
		"total_records":   totalRecords,
		"conflicts":       conflicts,
		"safe_to_restore": safe,
	}).Info("Restore plan computed")
}

// LogRestoreExecution logs the outcome of a restore execution
func (l *Logger) LogRestoreExecution(backupID, strategy string, created, updated, skipped int, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation":       "restore_execution",
		"backup_id":       backupID,
		"merge_strategy":  strategy,
		"records_created": created,
		"records_updated": updated,
		"records_skipped": skipped,
		"duration":        duration.String(),
	}

	if err != nil {
		fields["error"] = err.Error()
		l.logger.WithFields(fields).Error("Restore failed and was rolled back")
	} else {
		l.logger.WithFields(fields).Info("Restore committed")
	}
}

// LogVerification logs the outcome of a backup verification
func (l *Logger) LogVerification(backupID string, valid bool, issues []string, duration time.Duration) {
	fields := logrus.Fields{
		"operation": "verification",
		"backup_id": backupID,
		"valid":     valid,
		"duration":  duration.String(),
	}

	if valid {
		l.logger.WithFields(fields).Info("Backup verified")
	} else {
		fields["issues"] = issues
		l.logger.WithFields(fields).Warn("Backup verification failed")
	}
}

// LogSnapshotIO logs snapshot storage reads and writes
func (l *Logger) LogSnapshotIO(op, backupID, provider string, sizeBytes int64, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation":  op,
		"backup_id":  backupID,
		"provider":   provider,
		"size_bytes": sizeBytes,
		"duration":   duration.String(),
	}

	if err != nil {
		fields["error"] = err.Error()
		l.logger.WithFields(fields).Error("Snapshot storage operation failed")
	} else {
		l.logger.WithFields(fields).Debug("Snapshot storage operation completed")
	}
}

// Standard logging methods

// Trace logs a trace message
func (l *Logger) Trace(args ...interface{}) {
	l.logger.Trace(args...)
}

// Debug logs a debug message
func (l *Logger) Debug(args ...interface{}) {
	l.logger.Debug(args...)
}

// Debugf logs a formatted debug message
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logger.Debugf(format, args...)
}

// Info logs an info message
func (l *Logger) Info(args ...interface{}) {
	l.logger.Info(args...)
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.logger.Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(args ...interface{}) {
	l.logger.Warn(args...)
}

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logger.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(args ...interface{}) {
	l.logger.Error(args...)
}

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf(format, args...)
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() LogLevel {
	return l.level
}

// SetOutput changes the logger output destination
func (l *Logger) SetOutput(w io.Writer) {
	l.logger.SetOutput(w)
}
