package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"snapshot-restore/internal/catalog"
)

var (
	backupType   string
	backupQuick  bool
	backupVerify bool
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create a backup and wait for it to finish",
	RunE:  runBackup,
}

func init() {
	rootCmd.AddCommand(backupCmd)

	backupCmd.Flags().StringVarP(&backupType, "type", "t", "FULL", "backup type (FULL, DATABASE, MEDIA)")
	backupCmd.Flags().BoolVar(&backupQuick, "quick", false, "exclude low-value models such as logs")
	backupCmd.Flags().BoolVar(&backupVerify, "verify", false, "verify the backup after it completes")
}

func runBackup(cmd *cobra.Command, args []string) error {
	parsed, ok := catalog.ParseBackupType(backupType)
	if !ok {
		return fmt.Errorf("invalid backup type %q, expected FULL, DATABASE or MEDIA", backupType)
	}

	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	record, err := a.runner.Run(ctx, parsed, backupQuick, backupVerify)
	if err != nil {
		return err
	}

	fmt.Printf("Backup %s finished with status %s\n", record.ID, record.Status)
	if record.Status == catalog.StatusSuccess {
		fmt.Printf("  records:  %d\n", record.RecordCount)
		fmt.Printf("  size:     %d bytes\n", record.SizeBytes)
		fmt.Printf("  checksum: %s\n", record.Checksum)
		fmt.Printf("  duration: %dms\n", record.DurationMs)
	} else if record.ErrorMessage != "" {
		fmt.Printf("  error: %s\n", record.ErrorMessage)
	}

	if record.Status != catalog.StatusSuccess {
		return fmt.Errorf("backup %s did not succeed", record.ID)
	}
	return nil
}
