package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"snapshot-restore/internal/catalog"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show catalog health and recent backups",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().IntVarP(&statusLimit, "limit", "n", 10, "number of recent backups to list")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	summary, err := a.catalog.Summarize(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Backup catalog (last %d backups)\n", summary.WindowSize)
	fmt.Printf("  total:        %d\n", summary.TotalBackups)
	fmt.Printf("  successful:   %d\n", summary.SuccessCount)
	fmt.Printf("  failed:       %d\n", summary.FailureCount)
	fmt.Printf("  success rate: %.0f%%\n", summary.SuccessRate*100)
	if summary.LastSuccessAt != nil {
		fmt.Printf("  last success: %s\n", summary.LastSuccessAt.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Printf("  recent backup available: %t\n", summary.HasRecentBackup)

	if recommendations := a.catalog.Recommendations(summary); len(recommendations) > 0 {
		fmt.Println("\nRecommendations:")
		for _, rec := range recommendations {
			fmt.Printf("  - [%s] %s\n", rec.Priority, rec.Message)
		}
	}

	records, err := a.catalog.List(ctx, catalog.ListFilter{Limit: statusLimit})
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	fmt.Println("\nRecent backups:")
	for _, record := range records {
		line := fmt.Sprintf("  %s  %-8s %-7s", record.ID, record.BackupType, record.Status)
		if record.Quick {
			line += "  quick"
		}
		if record.VerifiedAt != nil {
			line += "  verified"
		}
		fmt.Println(line)
	}

	return nil
}
