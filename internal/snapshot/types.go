package snapshot

import (
	"time"

	apperrors "snapshot-restore/internal/errors"
)

// FormatVersion is the current snapshot serialization format version.
// Decoders reject snapshots written with a newer version.
const FormatVersion = 1

// Record is a single exported row keyed by column name
type Record map[string]interface{}

// ModelSet holds all exported records for one model, in primary key order
type ModelSet struct {
	Name       string   `json:"name"`
	PrimaryKey string   `json:"primary_key"`
	Records    []Record `json:"records"`
}

// Snapshot is a point-in-time export of the live store
type Snapshot struct {
	FormatVersion int        `json:"format_version"`
	BackupID      string     `json:"backup_id"`
	BackupType    string     `json:"backup_type"`
	CreatedAt     time.Time  `json:"created_at"`
	ModelSets     []ModelSet `json:"model_sets"`
}

// TotalRecords returns the number of records across all model sets
func (s *Snapshot) TotalRecords() int {
	total := 0
	for _, ms := range s.ModelSets {
		total += len(ms.Records)
	}
	return total
}

// FindModelSet returns the model set with the given name, or nil
func (s *Snapshot) FindModelSet(name string) *ModelSet {
	for i := range s.ModelSets {
		if s.ModelSets[i].Name == name {
			return &s.ModelSets[i]
		}
	}
	return nil
}

// Validate checks structural integrity of the snapshot
func (s *Snapshot) Validate() error {
	if s.FormatVersion <= 0 {
		return apperrors.NewValidationError("snapshot format version must be positive", nil)
	}
	if s.BackupID == "" {
		return apperrors.NewValidationError("snapshot backup ID is required", nil)
	}

	seen := make(map[string]bool, len(s.ModelSets))
	for _, ms := range s.ModelSets {
		if ms.Name == "" {
			return apperrors.NewValidationError("model set name is required", nil)
		}
		if seen[ms.Name] {
			return apperrors.NewValidationError("duplicate model set: "+ms.Name, nil)
		}
		seen[ms.Name] = true

		if ms.PrimaryKey == "" {
			return apperrors.NewValidationError("primary key is required for model set "+ms.Name, nil)
		}

		for _, rec := range ms.Records {
			if _, ok := rec[ms.PrimaryKey]; !ok {
				return apperrors.NewValidationError(
					"record in model set "+ms.Name+" is missing primary key field "+ms.PrimaryKey, nil)
			}
		}
	}

	return nil
}
