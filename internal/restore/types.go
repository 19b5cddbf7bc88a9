package restore

import (
	"strings"

	"snapshot-restore/internal/snapshot"
)

// MergeStrategy is the policy used to reconcile a snapshot record with an
// existing live record.
type MergeStrategy string

const (
	// StrategyReplace overwrites every business field of an existing live
	// record with the snapshot values.
	StrategyReplace MergeStrategy = "REPLACE"
	// StrategyMerge fills only live fields that are null or empty; a
	// populated live field is never overwritten.
	StrategyMerge MergeStrategy = "MERGE"
	// StrategySkip leaves every existing live record untouched and only
	// creates records missing from live state.
	StrategySkip MergeStrategy = "SKIP"
)

// Valid reports whether the strategy is known
func (s MergeStrategy) Valid() bool {
	switch s {
	case StrategyReplace, StrategyMerge, StrategySkip:
		return true
	}
	return false
}

// ParseMergeStrategy normalizes a user-supplied strategy name
func ParseMergeStrategy(s string) (MergeStrategy, bool) {
	strategy := MergeStrategy(strings.ToUpper(strings.TrimSpace(s)))
	return strategy, strategy.Valid()
}

// Classification is the verdict for one snapshot record against live state
type Classification string

const (
	ClassificationNew       Classification = "NEW"
	ClassificationIdentical Classification = "IDENTICAL"
	ClassificationConflict  Classification = "CONFLICT"
)

// ConflictEntry describes one record present on both sides whose business
// fields differ.
type ConflictEntry struct {
	PrimaryKey     string          `json:"primary_key"`
	LiveRecord     snapshot.Record `json:"live_record"`
	SnapshotRecord snapshot.Record `json:"snapshot_record"`
	Classification Classification  `json:"classification"`
}

// ModelPlan is the classification outcome for a single model
type ModelPlan struct {
	Model           string          `json:"model"`
	TotalRecords    int             `json:"total_records"`
	NewRecords      int             `json:"new_records"`
	ExistingRecords int             `json:"existing_records"`
	Conflicts       []ConflictEntry `json:"conflicts,omitempty"`
}

// PlanSummary aggregates classification counts across all models
type PlanSummary struct {
	TotalRecords    int `json:"total_records"`
	NewRecords      int `json:"new_records"`
	ExistingRecords int `json:"existing_records"`
	Conflicts       int `json:"conflicts"`
	ModelsAffected  int `json:"models_affected"`
}

// RestorePlan is the read-only preview of a restore. It is computed on
// demand and never persisted; the executor recomputes an equivalent plan
// inside its transaction before committing.
type RestorePlan struct {
	BackupID      string        `json:"backup_id"`
	Strategy      MergeStrategy `json:"merge_strategy"`
	Models        []ModelPlan   `json:"models"`
	Summary       PlanSummary   `json:"summary"`
	SafeToRestore bool          `json:"safe_to_restore"`
}

// ModelResult is the committed outcome for a single model
type ModelResult struct {
	Model          string `json:"model"`
	RecordsCreated int    `json:"records_created"`
	RecordsUpdated int    `json:"records_updated"`
	RecordsSkipped int    `json:"records_skipped"`
}

// RestoreResult reports exactly what one committed restore changed
type RestoreResult struct {
	BackupID       string        `json:"backup_id"`
	Strategy       MergeStrategy `json:"merge_strategy"`
	RecordsCreated int           `json:"records_created"`
	RecordsUpdated int           `json:"records_updated"`
	RecordsSkipped int           `json:"records_skipped"`
	Models         []ModelResult `json:"models"`
	DurationMs     int64         `json:"duration_ms"`
}
