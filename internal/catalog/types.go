package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BackupStatus is the lifecycle state of a backup record
type BackupStatus string

const (
	StatusPending BackupStatus = "PENDING"
	StatusRunning BackupStatus = "RUNNING"
	StatusSuccess BackupStatus = "SUCCESS"
	StatusFailed  BackupStatus = "FAILED"
)

// IsTerminal reports whether the status is a final state
func (s BackupStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Valid reports whether the status is a known state
func (s BackupStatus) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusSuccess, StatusFailed:
		return true
	}
	return false
}

// BackupType identifies the scope of a backup
type BackupType string

const (
	BackupTypeFull     BackupType = "FULL"
	BackupTypeDatabase BackupType = "DATABASE"
	BackupTypeMedia    BackupType = "MEDIA"
)

// Valid reports whether the backup type is known
func (t BackupType) Valid() bool {
	switch t {
	case BackupTypeFull, BackupTypeDatabase, BackupTypeMedia:
		return true
	}
	return false
}

// ParseBackupType normalizes a user-supplied backup type
func ParseBackupType(s string) (BackupType, bool) {
	t := BackupType(strings.ToUpper(strings.TrimSpace(s)))
	return t, t.Valid()
}

// BackupRecord is one row in the backup catalog
type BackupRecord struct {
	ID           string       `json:"id"`
	BackupType   BackupType   `json:"backup_type"`
	Quick        bool         `json:"quick"`
	Status       BackupStatus `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
	SizeBytes    int64        `json:"size_bytes"`
	Checksum     string       `json:"checksum,omitempty"`
	RecordCount  int          `json:"record_count"`
	DurationMs   int64        `json:"duration_ms"`
	VerifiedAt   *time.Time   `json:"verified_at,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`

	// IsRecent is derived at read time from the freshness window,
	// never stored.
	IsRecent bool `json:"is_recent"`
}

// CompletionMetrics carries the measurements recorded when a backup
// reaches a terminal state.
type CompletionMetrics struct {
	SizeBytes    int64
	Checksum     string
	RecordCount  int
	DurationMs   int64
	ErrorMessage string
}

// ListFilter narrows List results
type ListFilter struct {
	Status     BackupStatus
	BackupType BackupType
	Limit      int
}

// Summary aggregates backup health over a rolling window of recent records
type Summary struct {
	WindowSize        int        `json:"window_size"`
	TotalBackups      int        `json:"total_backups"`
	SuccessCount      int        `json:"success_count"`
	FailureCount      int        `json:"failure_count"`
	SuccessRate       float64    `json:"success_rate"`
	AverageDurationMs int64      `json:"average_duration_ms"`
	AverageSizeBytes  int64      `json:"average_size_bytes"`
	LastSuccessAt     *time.Time `json:"last_success_at,omitempty"`
	LastFailureAt     *time.Time `json:"last_failure_at,omitempty"`
	LastFullSuccessAt *time.Time `json:"last_full_success_at,omitempty"`
	HasRecentBackup   bool       `json:"has_recent_backup"`

	// LastSuccessVerified reports whether the most recent SUCCESS record
	// in the window carries a verified timestamp.
	LastSuccessVerified bool `json:"last_success_verified"`
}

// RecommendationPriority orders operational advice by urgency
type RecommendationPriority string

const (
	PriorityHigh   RecommendationPriority = "high"
	PriorityMedium RecommendationPriority = "medium"
	PriorityLow    RecommendationPriority = "low"
)

// Recommendation is one derived piece of operational advice. Action is a
// stable machine-readable identifier; Message is for humans.
type Recommendation struct {
	Priority RecommendationPriority `json:"priority"`
	Action   string                 `json:"action"`
	Message  string                 `json:"message"`
}

// NewBackupID generates a catalog identifier of the form
// backup-<timestamp>-<short uuid>.
func NewBackupID(now time.Time) string {
	return fmt.Sprintf("backup-%s-%s", now.UTC().Format("20060102150405"), uuid.NewString()[:8])
}
