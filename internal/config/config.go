package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the full engine configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Catalog     DatabaseConfig    `mapstructure:"catalog" yaml:"catalog"`
	LiveStore   DatabaseConfig    `mapstructure:"live_store" yaml:"live_store"`
	Models      []ModelConfig     `mapstructure:"models" yaml:"models"`
	Storage     StorageConfig     `mapstructure:"storage" yaml:"storage"`
	Compression CompressionConfig `mapstructure:"compression" yaml:"compression"`
	Encryption  EncryptionConfig  `mapstructure:"encryption" yaml:"encryption"`
	Backup      BackupConfig      `mapstructure:"backup" yaml:"backup"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host"`
	Port            int    `mapstructure:"port" yaml:"port"`
	ReadTimeout     string `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    string `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout string `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// DatabaseConfig holds MySQL connection settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
	Database string `mapstructure:"database" yaml:"database"`
	Params   string `mapstructure:"params" yaml:"params"`
}

// DSN builds a go-sql-driver/mysql connection string
func (dc *DatabaseConfig) DSN() string {
	params := dc.Params
	if params == "" {
		params = "parseTime=true&charset=utf8mb4"
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		dc.User, dc.Password, dc.Host, dc.Port, dc.Database, params)
}

// ModelConfig describes one record type exported into snapshots
type ModelConfig struct {
	Name                string   `mapstructure:"name" yaml:"name"`
	Table               string   `mapstructure:"table" yaml:"table"`
	PrimaryKey          string   `mapstructure:"primary_key" yaml:"primary_key"`
	SystemManagedFields []string `mapstructure:"system_managed_fields" yaml:"system_managed_fields"`
	Media               bool     `mapstructure:"media" yaml:"media"`
	QuickExcluded       bool     `mapstructure:"quick_excluded" yaml:"quick_excluded"`
}

// StorageConfig defines snapshot storage provider configuration
type StorageConfig struct {
	Provider string       `mapstructure:"provider" yaml:"provider"`
	Local    *LocalConfig `mapstructure:"local,omitempty" yaml:"local,omitempty"`
	S3       *S3Config    `mapstructure:"s3,omitempty" yaml:"s3,omitempty"`
	Azure    *AzureConfig `mapstructure:"azure,omitempty" yaml:"azure,omitempty"`
	GCS      *GCSConfig   `mapstructure:"gcs,omitempty" yaml:"gcs,omitempty"`
}

// LocalConfig for local file system storage
type LocalConfig struct {
	BasePath    string `mapstructure:"base_path" yaml:"base_path"`
	Permissions string `mapstructure:"permissions" yaml:"permissions"`
}

// S3Config for Amazon S3 storage
type S3Config struct {
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
	Region    string `mapstructure:"region" yaml:"region"`
	Prefix    string `mapstructure:"prefix" yaml:"prefix"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
}

// AzureConfig for Azure Blob Storage
type AzureConfig struct {
	AccountName   string `mapstructure:"account_name" yaml:"account_name"`
	AccountKey    string `mapstructure:"account_key" yaml:"account_key"`
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
}

// GCSConfig for Google Cloud Storage
type GCSConfig struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	CredentialsPath string `mapstructure:"credentials_path" yaml:"credentials_path"`
	ProjectID       string `mapstructure:"project_id" yaml:"project_id"`
}

// CompressionConfig defines snapshot compression settings
type CompressionConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Algorithm string `mapstructure:"algorithm" yaml:"algorithm"`
	Level     int    `mapstructure:"level" yaml:"level"`
	Threshold int64  `mapstructure:"threshold" yaml:"threshold"`
}

// EncryptionConfig defines snapshot encryption-at-rest settings
type EncryptionConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	KeySource string `mapstructure:"key_source" yaml:"key_source"`
	KeyPath   string `mapstructure:"key_path" yaml:"key_path"`
	KeyEnvVar string `mapstructure:"key_env_var" yaml:"key_env_var"`
}

// BackupConfig defines backup job behavior
type BackupConfig struct {
	FreshnessWindow   string `mapstructure:"freshness_window" yaml:"freshness_window"`
	JobTimeout        string `mapstructure:"job_timeout" yaml:"job_timeout"`
	SummaryWindow     int    `mapstructure:"summary_window" yaml:"summary_window"`
	VerifyAfterBackup bool   `mapstructure:"verify_after_backup" yaml:"verify_after_backup"`
	WatchdogInterval  string `mapstructure:"watchdog_interval" yaml:"watchdog_interval"`
	Parallelism       int    `mapstructure:"parallelism" yaml:"parallelism"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	ShowCaller bool   `mapstructure:"show_caller" yaml:"show_caller"`
	File       string `mapstructure:"file" yaml:"file"`
}

const envPrefix = "SNAPSHOT_RESTORE"

// Validate validates the full configuration
func (c *Config) Validate() error {
	var errs []error

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("server: %w", err))
	}
	if err := c.Catalog.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("catalog: %w", err))
	}
	if err := c.LiveStore.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("live_store: %w", err))
	}
	if err := c.validateModels(); err != nil {
		errs = append(errs, fmt.Errorf("models: %w", err))
	}
	if err := c.Storage.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("storage: %w", err))
	}
	if err := c.Compression.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("compression: %w", err))
	}
	if err := c.Encryption.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("encryption: %w", err))
	}
	if err := c.Backup.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("backup: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// SetDefaults sets default values for the full configuration
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Catalog.SetDefaults()
	c.LiveStore.SetDefaults()
	c.Storage.SetDefaults()
	c.Compression.SetDefaults()
	c.Encryption.SetDefaults()
	c.Backup.SetDefaults()
	c.Logging.SetDefaults()

	for i := range c.Models {
		c.Models[i].SetDefaults()
	}
}

// LoadFromEnvironment loads configuration overrides from environment variables
func (c *Config) LoadFromEnvironment() {
	c.Server.LoadFromEnvironment()
	c.Catalog.LoadFromEnvironment("CATALOG")
	c.LiveStore.LoadFromEnvironment("LIVE_STORE")
	c.Storage.LoadFromEnvironment()
	c.Compression.LoadFromEnvironment()
	c.Encryption.LoadFromEnvironment()
	c.Backup.LoadFromEnvironment()
}

func (c *Config) validateModels() error {
	if len(c.Models) == 0 {
		return errors.New("at least one model must be configured")
	}

	seen := make(map[string]bool, len(c.Models))
	for _, m := range c.Models {
		if m.Name == "" {
			return errors.New("model name is required")
		}
		if seen[m.Name] {
			return fmt.Errorf("duplicate model name: %s", m.Name)
		}
		seen[m.Name] = true

		if m.PrimaryKey == "" {
			return fmt.Errorf("primary key is required for model %s", m.Name)
		}
	}

	return nil
}

// FindModel returns the configuration for the named model, or nil
func (c *Config) FindModel(name string) *ModelConfig {
	for i := range c.Models {
		if c.Models[i].Name == name {
			return &c.Models[i]
		}
	}
	return nil
}

// ModelsForBackupType returns the models included in the given backup type.
// FULL covers everything, DATABASE excludes media models, MEDIA covers only
// media models.
func (c *Config) ModelsForBackupType(backupType string) []ModelConfig {
	var out []ModelConfig
	for _, m := range c.Models {
		switch strings.ToUpper(backupType) {
		case "FULL":
			out = append(out, m)
		case "DATABASE":
			if !m.Media {
				out = append(out, m)
			}
		case "MEDIA":
			if m.Media {
				out = append(out, m)
			}
		}
	}
	return out
}

// Validate validates the server configuration
func (sc *ServerConfig) Validate() error {
	if sc.Port < 1 || sc.Port > 65535 {
		return fmt.Errorf("invalid port: %d", sc.Port)
	}

	for name, val := range map[string]string{
		"read_timeout":     sc.ReadTimeout,
		"write_timeout":    sc.WriteTimeout,
		"shutdown_timeout": sc.ShutdownTimeout,
	} {
		if val != "" {
			if _, err := time.ParseDuration(val); err != nil {
				return fmt.Errorf("invalid %s duration: %w", name, err)
			}
		}
	}

	return nil
}

// SetDefaults sets default values for the server configuration
func (sc *ServerConfig) SetDefaults() {
	if sc.Host == "" {
		sc.Host = "0.0.0.0"
	}
	if sc.Port == 0 {
		sc.Port = 8080
	}
	if sc.ReadTimeout == "" {
		sc.ReadTimeout = "30s"
	}
	if sc.WriteTimeout == "" {
		sc.WriteTimeout = "30s"
	}
	if sc.ShutdownTimeout == "" {
		sc.ShutdownTimeout = "10s"
	}
}

// ReadTimeoutDuration returns the parsed read timeout
func (sc *ServerConfig) ReadTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(sc.ReadTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// WriteTimeoutDuration returns the parsed write timeout
func (sc *ServerConfig) WriteTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(sc.WriteTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// ShutdownTimeoutDuration returns the parsed shutdown timeout
func (sc *ServerConfig) ShutdownTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(sc.ShutdownTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// LoadFromEnvironment loads server configuration from environment variables
func (sc *ServerConfig) LoadFromEnvironment() {
	if val := os.Getenv(envPrefix + "_SERVER_HOST"); val != "" {
		sc.Host = val
	}
	if val := os.Getenv(envPrefix + "_SERVER_PORT"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			sc.Port = parsed
		}
	}
}

// Validate validates the database configuration
func (dc *DatabaseConfig) Validate() error {
	if dc.Host == "" {
		return errors.New("host is required")
	}
	if dc.Port < 1 || dc.Port > 65535 {
		return fmt.Errorf("invalid port: %d", dc.Port)
	}
	if dc.User == "" {
		return errors.New("user is required")
	}
	if dc.Database == "" {
		return errors.New("database name is required")
	}
	return nil
}

// SetDefaults sets default values for the database configuration
func (dc *DatabaseConfig) SetDefaults() {
	if dc.Host == "" {
		dc.Host = "localhost"
	}
	if dc.Port == 0 {
		dc.Port = 3306
	}
}

// LoadFromEnvironment loads database configuration from environment variables
// using the given section name, e.g. CATALOG or LIVE_STORE.
func (dc *DatabaseConfig) LoadFromEnvironment(section string) {
	prefix := envPrefix + "_" + section
	if val := os.Getenv(prefix + "_HOST"); val != "" {
		dc.Host = val
	}
	if val := os.Getenv(prefix + "_PORT"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			dc.Port = parsed
		}
	}
	if val := os.Getenv(prefix + "_USER"); val != "" {
		dc.User = val
	}
	if val := os.Getenv(prefix + "_PASSWORD"); val != "" {
		dc.Password = val
	}
	if val := os.Getenv(prefix + "_DATABASE"); val != "" {
		dc.Database = val
	}
}

// SetDefaults sets default values for a model configuration
func (mc *ModelConfig) SetDefaults() {
	if mc.Table == "" {
		mc.Table = mc.Name
	}
	if mc.PrimaryKey == "" {
		mc.PrimaryKey = "id"
	}
}

// Validate validates the storage configuration
func (sc *StorageConfig) Validate() error {
	if sc.Provider == "" {
		return errors.New("storage provider is required")
	}

	switch sc.Provider {
	case "local":
		if sc.Local == nil {
			return errors.New("local storage configuration is required when provider is 'local'")
		}
		return sc.Local.Validate()
	case "s3":
		if sc.S3 == nil {
			return errors.New("S3 storage configuration is required when provider is 's3'")
		}
		return sc.S3.Validate()
	case "azure":
		if sc.Azure == nil {
			return errors.New("Azure storage configuration is required when provider is 'azure'")
		}
		return sc.Azure.Validate()
	case "gcs":
		if sc.GCS == nil {
			return errors.New("GCS storage configuration is required when provider is 'gcs'")
		}
		return sc.GCS.Validate()
	default:
		return fmt.Errorf("invalid storage provider: %s", sc.Provider)
	}
}

// SetDefaults sets default values for the storage configuration
func (sc *StorageConfig) SetDefaults() {
	if sc.Provider == "" {
		sc.Provider = "local"
	}

	switch sc.Provider {
	case "local":
		if sc.Local == nil {
			sc.Local = &LocalConfig{}
		}
		sc.Local.SetDefaults()
	case "s3":
		if sc.S3 == nil {
			sc.S3 = &S3Config{}
		}
		sc.S3.SetDefaults()
	case "azure":
		if sc.Azure == nil {
			sc.Azure = &AzureConfig{}
		}
	case "gcs":
		if sc.GCS == nil {
			sc.GCS = &GCSConfig{}
		}
		sc.GCS.SetDefaults()
	}
}

// LoadFromEnvironment loads storage configuration from environment variables
func (sc *StorageConfig) LoadFromEnvironment() {
	if val := os.Getenv(envPrefix + "_STORAGE_PROVIDER"); val != "" {
		sc.Provider = strings.ToLower(val)
	}

	switch sc.Provider {
	case "local":
		if sc.Local == nil {
			sc.Local = &LocalConfig{}
		}
		if val := os.Getenv(envPrefix + "_STORAGE_LOCAL_BASE_PATH"); val != "" {
			sc.Local.BasePath = val
		}
	case "s3":
		if sc.S3 == nil {
			sc.S3 = &S3Config{}
		}
		if val := os.Getenv(envPrefix + "_STORAGE_S3_BUCKET"); val != "" {
			sc.S3.Bucket = val
		}
		if val := os.Getenv(envPrefix + "_STORAGE_S3_REGION"); val != "" {
			sc.S3.Region = val
		}
		if val := os.Getenv("AWS_ACCESS_KEY_ID"); val != "" && sc.S3.AccessKey == "" {
			sc.S3.AccessKey = val
		}
		if val := os.Getenv("AWS_SECRET_ACCESS_KEY"); val != "" && sc.S3.SecretKey == "" {
			sc.S3.SecretKey = val
		}
	case "azure":
		if sc.Azure == nil {
			sc.Azure = &AzureConfig{}
		}
		if val := os.Getenv(envPrefix + "_STORAGE_AZURE_ACCOUNT_NAME"); val != "" {
			sc.Azure.AccountName = val
		}
		if val := os.Getenv(envPrefix + "_STORAGE_AZURE_ACCOUNT_KEY"); val != "" {
			sc.Azure.AccountKey = val
		}
		if val := os.Getenv(envPrefix + "_STORAGE_AZURE_CONTAINER_NAME"); val != "" {
			sc.Azure.ContainerName = val
		}
	case "gcs":
		if sc.GCS == nil {
			sc.GCS = &GCSConfig{}
		}
		if val := os.Getenv(envPrefix + "_STORAGE_GCS_BUCKET"); val != "" {
			sc.GCS.Bucket = val
		}
		if val := os.Getenv(envPrefix + "_STORAGE_GCS_CREDENTIALS_PATH"); val != "" {
			sc.GCS.CredentialsPath = val
		}
	}
}

// Validate validates the local storage configuration
func (lc *LocalConfig) Validate() error {
	if lc.BasePath == "" {
		return errors.New("base path is required for local storage")
	}
	return nil
}

// SetDefaults sets default values for the local storage configuration
func (lc *LocalConfig) SetDefaults() {
	if lc.BasePath == "" {
		lc.BasePath = "./snapshots"
	}
	if lc.Permissions == "" {
		lc.Permissions = "0755"
	}
}

// Validate validates the S3 storage configuration
func (s3c *S3Config) Validate() error {
	if s3c.Bucket == "" {
		return errors.New("bucket is required for S3 storage")
	}
	if s3c.Region == "" {
		return errors.New("region is required for S3 storage")
	}
	return nil
}

// SetDefaults sets default values for the S3 storage configuration
func (s3c *S3Config) SetDefaults() {
	if s3c.Region == "" {
		s3c.Region = "us-east-1"
	}
}

// Validate validates the Azure storage configuration
func (ac *AzureConfig) Validate() error {
	if ac.AccountName == "" {
		return errors.New("account name is required for Azure storage")
	}
	if ac.AccountKey == "" {
		return errors.New("account key is required for Azure storage")
	}
	if ac.ContainerName == "" {
		return errors.New("container name is required for Azure storage")
	}
	return nil
}

// Validate validates the GCS storage configuration
func (gc *GCSConfig) Validate() error {
	if gc.Bucket == "" {
		return errors.New("bucket is required for GCS storage")
	}
	return nil
}

// SetDefaults sets default values for the GCS storage configuration
func (gc *GCSConfig) SetDefaults() {
	if gc.CredentialsPath == "" {
		gc.CredentialsPath = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	}
}

// Validate validates the compression configuration
func (cc *CompressionConfig) Validate() error {
	if !cc.Enabled {
		return nil
	}

	switch strings.ToLower(cc.Algorithm) {
	case "gzip":
		if cc.Level < 1 || cc.Level > 9 {
			return errors.New("gzip compression level must be between 1 and 9")
		}
	case "lz4":
		if cc.Level < 1 || cc.Level > 12 {
			return errors.New("lz4 compression level must be between 1 and 12")
		}
	case "zstd":
		if cc.Level < 1 || cc.Level > 22 {
			return errors.New("zstd compression level must be between 1 and 22")
		}
	case "":
		return errors.New("compression algorithm is required when compression is enabled")
	default:
		return fmt.Errorf("invalid compression algorithm: %s", cc.Algorithm)
	}

	if cc.Threshold < 0 {
		return errors.New("compression threshold cannot be negative")
	}

	return nil
}

// SetDefaults sets default values for the compression configuration
func (cc *CompressionConfig) SetDefaults() {
	if cc.Enabled && cc.Algorithm == "" {
		cc.Algorithm = "zstd"
	}

	if cc.Enabled && cc.Level == 0 {
		switch strings.ToLower(cc.Algorithm) {
		case "gzip":
			cc.Level = 6
		case "lz4":
			cc.Level = 1
		case "zstd":
			cc.Level = 3
		}
	}

	if cc.Threshold == 0 {
		cc.Threshold = 1024
	}
}

// LoadFromEnvironment loads compression configuration from environment variables
func (cc *CompressionConfig) LoadFromEnvironment() {
	if val := os.Getenv(envPrefix + "_COMPRESSION_ENABLED"); val != "" {
		cc.Enabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv(envPrefix + "_COMPRESSION_ALGORITHM"); val != "" {
		cc.Algorithm = strings.ToLower(val)
	}
	if val := os.Getenv(envPrefix + "_COMPRESSION_LEVEL"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			cc.Level = parsed
		}
	}
}

// Validate validates the encryption configuration
func (ec *EncryptionConfig) Validate() error {
	if !ec.Enabled {
		return nil
	}

	switch ec.KeySource {
	case "env":
		if ec.KeyEnvVar == "" {
			return errors.New("key environment variable name is required for env key source")
		}
	case "file":
		if ec.KeyPath == "" {
			return errors.New("key file path is required for file key source")
		}
	case "":
		return errors.New("key source is required when encryption is enabled")
	default:
		return fmt.Errorf("invalid key source: %s", ec.KeySource)
	}

	return nil
}

// SetDefaults sets default values for the encryption configuration
func (ec *EncryptionConfig) SetDefaults() {
	if ec.Enabled && ec.KeySource == "" {
		ec.KeySource = "env"
		ec.KeyEnvVar = envPrefix + "_ENCRYPTION_KEY"
	}
}

// LoadFromEnvironment loads encryption configuration from environment variables
func (ec *EncryptionConfig) LoadFromEnvironment() {
	if val := os.Getenv(envPrefix + "_ENCRYPTION_ENABLED"); val != "" {
		ec.Enabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv(envPrefix + "_ENCRYPTION_KEY_SOURCE"); val != "" {
		ec.KeySource = val
	}
	if val := os.Getenv(envPrefix + "_ENCRYPTION_KEY_PATH"); val != "" {
		ec.KeyPath = val
	}
}

// Key resolves the encryption key from the configured source
func (ec *EncryptionConfig) Key() ([]byte, error) {
	if !ec.Enabled {
		return nil, nil
	}

	switch ec.KeySource {
	case "env":
		val := os.Getenv(ec.KeyEnvVar)
		if val == "" {
			return nil, fmt.Errorf("encryption key environment variable %s is not set", ec.KeyEnvVar)
		}
		return []byte(val), nil
	case "file":
		data, err := os.ReadFile(ec.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read encryption key file: %w", err)
		}
		return []byte(strings.TrimSpace(string(data))), nil
	default:
		return nil, fmt.Errorf("invalid key source: %s", ec.KeySource)
	}
}

// Validate validates the backup configuration
func (bc *BackupConfig) Validate() error {
	for name, val := range map[string]string{
		"freshness_window":  bc.FreshnessWindow,
		"job_timeout":       bc.JobTimeout,
		"watchdog_interval": bc.WatchdogInterval,
	} {
		if val != "" {
			if _, err := time.ParseDuration(val); err != nil {
				return fmt.Errorf("invalid %s duration: %w", name, err)
			}
		}
	}

	if bc.SummaryWindow < 0 {
		return errors.New("summary window cannot be negative")
	}
	if bc.Parallelism < 0 {
		return errors.New("parallelism cannot be negative")
	}

	return nil
}

// SetDefaults sets default values for the backup configuration
func (bc *BackupConfig) SetDefaults() {
	if bc.FreshnessWindow == "" {
		bc.FreshnessWindow = "24h"
	}
	if bc.JobTimeout == "" {
		bc.JobTimeout = "30m"
	}
	if bc.WatchdogInterval == "" {
		bc.WatchdogInterval = "1m"
	}
	if bc.SummaryWindow == 0 {
		bc.SummaryWindow = 50
	}
	if bc.Parallelism == 0 {
		bc.Parallelism = 4
	}
}

// LoadFromEnvironment loads backup configuration from environment variables
func (bc *BackupConfig) LoadFromEnvironment() {
	if val := os.Getenv(envPrefix + "_BACKUP_FRESHNESS_WINDOW"); val != "" {
		bc.FreshnessWindow = val
	}
	if val := os.Getenv(envPrefix + "_BACKUP_JOB_TIMEOUT"); val != "" {
		bc.JobTimeout = val
	}
	if val := os.Getenv(envPrefix + "_BACKUP_VERIFY_AFTER"); val != "" {
		bc.VerifyAfterBackup = strings.ToLower(val) == "true"
	}
}

// FreshnessWindowDuration returns the parsed freshness window
func (bc *BackupConfig) FreshnessWindowDuration() time.Duration {
	d, err := time.ParseDuration(bc.FreshnessWindow)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// JobTimeoutDuration returns the parsed job timeout
func (bc *BackupConfig) JobTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(bc.JobTimeout)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

// WatchdogIntervalDuration returns the parsed watchdog interval
func (bc *BackupConfig) WatchdogIntervalDuration() time.Duration {
	d, err := time.ParseDuration(bc.WatchdogInterval)
	if err != nil {
		return time.Minute
	}
	return d
}

// SetDefaults sets default values for the logging configuration
func (lc *LoggingConfig) SetDefaults() {
	if lc.Level == "" {
		lc.Level = "normal"
	}
	if lc.Format == "" {
		lc.Format = "text"
	}
}
