package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"snapshot-restore/internal/restore"
)

var (
	restoreStrategy string
	restoreForce    bool
)

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Preview or apply a restore from a backup",
}

var restorePreviewCmd = &cobra.Command{
	Use:   "preview <backup-id>",
	Short: "Show what a restore would change without touching live data",
	Args:  cobra.ExactArgs(1),
	RunE:  runRestorePreview,
}

var restoreConfirmCmd = &cobra.Command{
	Use:   "confirm <backup-id>",
	Short: "Apply a restore transactionally",
	Args:  cobra.ExactArgs(1),
	RunE:  runRestoreConfirm,
}

func init() {
	rootCmd.AddCommand(restoreCmd)
	restoreCmd.AddCommand(restorePreviewCmd)
	restoreCmd.AddCommand(restoreConfirmCmd)

	for _, cmd := range []*cobra.Command{restorePreviewCmd, restoreConfirmCmd} {
		cmd.Flags().StringVarP(&restoreStrategy, "strategy", "s", "", "merge strategy (REPLACE, MERGE, SKIP)")
		cmd.MarkFlagRequired("strategy")
	}
	restoreConfirmCmd.Flags().BoolVar(&restoreForce, "force", false, "apply an unsafe REPLACE restore despite conflicts")
}

func runRestorePreview(cmd *cobra.Command, args []string) error {
	strategy, ok := restore.ParseMergeStrategy(restoreStrategy)
	if !ok {
		return fmt.Errorf("invalid merge strategy %q, expected REPLACE, MERGE or SKIP", restoreStrategy)
	}

	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	plan, err := a.planner.Plan(ctx, args[0], strategy)
	if err != nil {
		return err
	}

	printPlan(plan)
	return nil
}

func runRestoreConfirm(cmd *cobra.Command, args []string) error {
	strategy, ok := restore.ParseMergeStrategy(restoreStrategy)
	if !ok {
		return fmt.Errorf("invalid merge strategy %q, expected REPLACE, MERGE or SKIP", restoreStrategy)
	}

	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.executor.Execute(ctx, args[0], strategy, restoreForce)
	if err != nil {
		return err
	}

	fmt.Printf("Restore of %s committed under %s\n", result.BackupID, result.Strategy)
	fmt.Printf("  created: %d\n", result.RecordsCreated)
	fmt.Printf("  updated: %d\n", result.RecordsUpdated)
	fmt.Printf("  skipped: %d\n", result.RecordsSkipped)
	for _, model := range result.Models {
		fmt.Printf("  %s: created=%d updated=%d skipped=%d\n",
			model.Model, model.RecordsCreated, model.RecordsUpdated, model.RecordsSkipped)
	}
	return nil
}

func printPlan(plan *restore.RestorePlan) {
	fmt.Printf("Restore plan for %s under %s\n", plan.BackupID, plan.Strategy)
	fmt.Printf("  total records:   %d\n", plan.Summary.TotalRecords)
	fmt.Printf("  new records:     %d\n", plan.Summary.NewRecords)
	fmt.Printf("  identical:       %d\n", plan.Summary.ExistingRecords)
	fmt.Printf("  conflicts:       %d\n", plan.Summary.Conflicts)
	fmt.Printf("  models affected: %d\n", plan.Summary.ModelsAffected)
	fmt.Printf("  safe to restore: %t\n", plan.SafeToRestore)

	for _, model := range plan.Models {
		if len(model.Conflicts) == 0 {
			continue
		}
		fmt.Printf("\nConflicts in %s:\n", model.Model)
		for _, conflict := range model.Conflicts {
			fmt.Printf("  key %s: live=%v snapshot=%v\n",
				conflict.PrimaryKey, conflict.LiveRecord, conflict.SnapshotRecord)
		}
	}

	if !plan.SafeToRestore {
		fmt.Println("\nThis restore would overwrite conflicting live records.")
		fmt.Println("Re-run confirm with --force to apply it anyway, or choose MERGE or SKIP.")
	}
}
