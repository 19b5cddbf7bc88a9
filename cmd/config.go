package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"snapshot-restore/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print a sample configuration file",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	sample := &config.Config{
		Catalog: config.DatabaseConfig{
			Host:     "localhost",
			User:     "backup",
			Password: "secret",
			Database: "backup_catalog",
		},
		LiveStore: config.DatabaseConfig{
			Host:     "localhost",
			User:     "app",
			Password: "secret",
			Database: "clinic",
		},
		Models: []config.ModelConfig{
			{
				Name:                "patients",
				PrimaryKey:          "id",
				SystemManagedFields: []string{"created_at", "updated_at"},
			},
			{
				Name:       "appointments",
				PrimaryKey: "id",
			},
			{
				Name:  "documents",
				Media: true,
			},
			{
				Name:          "logs",
				QuickExcluded: true,
			},
		},
		Storage: config.StorageConfig{
			Provider: "local",
			Local:    &config.LocalConfig{BasePath: "/var/lib/snapshot-restore"},
		},
	}
	sample.SetDefaults()

	data, err := yaml.Marshal(sample)
	if err != nil {
		return fmt.Errorf("failed to render sample configuration: %w", err)
	}

	fmt.Println("# snapshot-restore sample configuration")
	fmt.Print(string(data))
	return nil
}
