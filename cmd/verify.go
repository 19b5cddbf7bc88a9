package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <backup-id>",
	Short: "Re-check the integrity of a completed backup",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.verifier.Verify(ctx, args[0])
	if err != nil {
		return err
	}

	if result.Valid {
		fmt.Printf("Backup %s verified at %s\n", result.BackupID, result.VerifiedAt.Format("2006-01-02 15:04:05 MST"))
		return nil
	}

	fmt.Printf("Backup %s failed verification:\n", result.BackupID)
	for _, issue := range result.Issues {
		fmt.Printf("  - %s\n", issue)
	}
	return fmt.Errorf("backup %s is not valid", result.BackupID)
}
