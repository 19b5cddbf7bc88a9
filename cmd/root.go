package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"snapshot-restore/internal/config"
	"snapshot-restore/internal/logging"
)

var cfgFile string

var (
	verbose bool
	quiet   bool
	logFile string
	logJSON bool
)

var rootCmd = &cobra.Command{
	Use:   "snapshot-restore",
	Short: "Backup and restore reconciliation engine for a relational data store",
	Long: `snapshot-restore creates point-in-time exports of a live MySQL database,
catalogs and verifies them, and restores a chosen backup into a live,
possibly-changed database under a merge strategy (REPLACE, MERGE or SKIP)
with a mandatory dry-run preview.

Examples:
  # Run the HTTP API
  snapshot-restore serve --config=config.yaml

  # Take a quick database backup and verify it
  snapshot-restore backup --type=DATABASE --quick --verify

  # Preview a restore, then commit it
  snapshot-restore restore preview backup-20240601120000-a1b2c3d4 --strategy=MERGE
  snapshot-restore restore confirm backup-20240601120000-a1b2c3d4 --strategy=MERGE

  # Inspect catalog health
  snapshot-restore status`,
	SilenceUsage: true,
}

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./snapshot-restore.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to file instead of stderr")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log in JSON format")

	viper.BindPFlag("logging.file", rootCmd.PersistentFlags().Lookup("log-file"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("snapshot-restore")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/snapshot-restore")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		// A config file is optional; environment variables can carry
		// the full configuration.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			fmt.Fprintf(os.Stderr, "Failed to read config file: %v\n", err)
			os.Exit(1)
		}
	}
}

// buildConfig merges the config file, environment variables and flags
func buildConfig() (*config.Config, error) {
	cfg := &config.Config{}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg.SetDefaults()
	cfg.LoadFromEnvironment()

	if verbose {
		cfg.Logging.Level = "verbose"
	}
	if quiet {
		cfg.Logging.Level = "quiet"
	}
	if logFile != "" {
		cfg.Logging.File = logFile
	}
	if logJSON {
		cfg.Logging.Format = "json"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func buildLogger(cfg *config.Config) (*logging.Logger, error) {
	return logging.NewLogger(logging.Config{
		Level:      logging.LogLevel(cfg.Logging.Level),
		Format:     cfg.Logging.Format,
		ShowCaller: cfg.Logging.ShowCaller,
		LogFile:    cfg.Logging.File,
	})
}
