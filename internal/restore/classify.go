package restore

import (
	"fmt"
	"reflect"
	"sort"

	"snapshot-restore/internal/config"
	apperrors "snapshot-restore/internal/errors"
	"snapshot-restore/internal/livestore"
	"snapshot-restore/internal/snapshot"
)

// recordLoader returns a model's live records indexed by primary key
type recordLoader func(model config.ModelConfig) (map[string]snapshot.Record, error)

// buildPlan classifies every snapshot record against live state. The
// planner and executor both run it, the executor inside its transaction,
// so a preview can never diverge from what a commit applies.
func buildPlan(snap *snapshot.Snapshot, strategy MergeStrategy, cfg *config.Config, load recordLoader) (*RestorePlan, error) {
	plan, _, err := buildPlanIndexed(snap, strategy, cfg, load)
	return plan, err
}

// buildPlanIndexed additionally returns the live records it loaded, keyed
// by model name, so the executor can apply the plan without re-reading.
func buildPlanIndexed(snap *snapshot.Snapshot, strategy MergeStrategy, cfg *config.Config,
	load recordLoader) (*RestorePlan, map[string]map[string]snapshot.Record, error) {
	plan := &RestorePlan{
		BackupID: snap.BackupID,
		Strategy: strategy,
	}
	liveByModel := make(map[string]map[string]snapshot.Record, len(snap.ModelSets))

	for _, set := range snap.ModelSets {
		model := modelFor(cfg, set)

		live, err := load(model)
		if err != nil {
			return nil, nil, err
		}
		liveByModel[set.Name] = live

		modelPlan := classifyModelSet(set, model, live)
		plan.Models = append(plan.Models, modelPlan)

		plan.Summary.TotalRecords += modelPlan.TotalRecords
		plan.Summary.NewRecords += modelPlan.NewRecords
		plan.Summary.ExistingRecords += modelPlan.ExistingRecords
		plan.Summary.Conflicts += len(modelPlan.Conflicts)
		if modelPlan.NewRecords > 0 || len(modelPlan.Conflicts) > 0 {
			plan.Summary.ModelsAffected++
		}
	}

	// REPLACE destroys live data on conflict, so conflicts make it unsafe
	// by default. MERGE and SKIP never overwrite populated live fields.
	plan.SafeToRestore = !(strategy == StrategyReplace && plan.Summary.Conflicts > 0)

	return plan, liveByModel, nil
}

func classifyModelSet(set snapshot.ModelSet, model config.ModelConfig, live map[string]snapshot.Record) ModelPlan {
	modelPlan := ModelPlan{Model: set.Name}

	for _, record := range set.Records {
		modelPlan.TotalRecords++

		key := livestore.KeyString(record[model.PrimaryKey])
		liveRecord, exists := live[key]
		if !exists {
			modelPlan.NewRecords++
			continue
		}

		if businessFieldsEqual(record, liveRecord, model) {
			modelPlan.ExistingRecords++
			continue
		}

		modelPlan.Conflicts = append(modelPlan.Conflicts, ConflictEntry{
			PrimaryKey:     key,
			LiveRecord:     liveRecord,
			SnapshotRecord: record,
			Classification: ClassificationConflict,
		})
	}

	return modelPlan
}

// modelFor resolves snapshot model sets against the configured registry.
// Unregistered models restore with the set's own primary key and a table
// named after the model.
func modelFor(cfg *config.Config, set snapshot.ModelSet) config.ModelConfig {
	if cfg != nil {
		if model := cfg.FindModel(set.Name); model != nil {
			return *model
		}
	}
	return config.ModelConfig{
		Name:       set.Name,
		Table:      set.Name,
		PrimaryKey: set.PrimaryKey,
	}
}

// businessFields lists a snapshot record's comparable fields in sorted
// order. The primary key and system-managed fields (auto timestamps and
// the like) are excluded so metadata churn never reads as a conflict.
func businessFields(record snapshot.Record, model config.ModelConfig) []string {
	excluded := make(map[string]bool, len(model.SystemManagedFields)+1)
	excluded[model.PrimaryKey] = true
	for _, field := range model.SystemManagedFields {
		excluded[field] = true
	}

	fields := make([]string, 0, len(record))
	for field := range record {
		if !excluded[field] {
			fields = append(fields, field)
		}
	}
	sort.Strings(fields)
	return fields
}

func businessFieldsEqual(snapRecord, liveRecord snapshot.Record, model config.ModelConfig) bool {
	for _, field := range businessFields(snapRecord, model) {
		if !valuesEqual(snapRecord[field], liveRecord[field]) {
			return false
		}
	}
	return true
}

// replaceChanges returns the business fields REPLACE would overwrite:
// every field whose snapshot value differs from live.
func replaceChanges(snapRecord, liveRecord snapshot.Record, model config.ModelConfig) snapshot.Record {
	changes := make(snapshot.Record)
	for _, field := range businessFields(snapRecord, model) {
		if !valuesEqual(snapRecord[field], liveRecord[field]) {
			changes[field] = snapRecord[field]
		}
	}
	return changes
}

// mergeChanges returns the business fields MERGE would fill: only fields
// empty on the live side with a populated snapshot value.
func mergeChanges(snapRecord, liveRecord snapshot.Record, model config.ModelConfig) snapshot.Record {
	changes := make(snapshot.Record)
	for _, field := range businessFields(snapRecord, model) {
		if isEmptyValue(liveRecord[field]) && !isEmptyValue(snapRecord[field]) {
			changes[field] = snapRecord[field]
		}
	}
	return changes
}

func valuesEqual(a, b interface{}) bool {
	return reflect.DeepEqual(livestore.NormalizeValue(a), livestore.NormalizeValue(b))
}

func isEmptyValue(value interface{}) bool {
	return value == nil || value == ""
}

// PlansEqual reports whether two plans describe the same outcome. Used to
// detect live-state drift between a preview and its confirmation.
func PlansEqual(a, b *RestorePlan) bool {
	return reflect.DeepEqual(a, b)
}

func validateStrategy(strategy MergeStrategy) error {
	if !strategy.Valid() {
		return apperrors.NewValidationError(
			fmt.Sprintf("invalid merge strategy: %s", strategy), nil)
	}
	return nil
}
