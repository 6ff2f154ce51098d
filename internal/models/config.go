// Package models contains the data structures used throughout mysql-dr-dump.
package models

import "time"

// AppConfig holds the complete configuration for every entry point.
type AppConfig struct {
	AWS         AWSSettings
	Storage     StorageSettings
	Dump        DumpSettings
	Environment EnvironmentSettings
	Secrets     SecretsSettings
	Telegram    *TelegramConfig // nil if not configured
	Metrics     *MetricsConfig  // nil if not configured
}

// AWSSettings holds settings for the management (default) credential scope.
type AWSSettings struct {
	Region string // empty means the SDK default chain decides
}

// StorageSettings locates the objects the system reads and writes.
type StorageSettings struct {
	BucketParameter    string // parameter-store name holding the bucket name
	StackTemplateKey   string // object key of the storage stack template
	FunctionPackageKey string // object key of the listing function package
}

// DumpSettings configures the dump pipeline.
type DumpSettings struct {
	WorkDir        string
	MySQLDumpPath  string
	TarPath        string
	DfPath         string
	MinFreeMB      int64         // 0 disables the free-space threshold
	CommandTimeout time.Duration // 0 means no internal timeout
	ConnectTimeout time.Duration
	KeepArtifacts  bool
}

// EnvironmentSettings configures provisioning of the source environment.
type EnvironmentSettings struct {
	StackName        string
	FunctionName     string
	RolePrefix       string
	FunctionMemoryMB int32
	FunctionTimeout  time.Duration
	FunctionRuntime  string
	FunctionHandler  string
	PollInterval     time.Duration
	PollTimeout      time.Duration
}

// SecretsSettings selects and configures the secret backend.
type SecretsSettings struct {
	Backend  string // "secretsmanager" (default) or "vault"
	IDPrefix string
	Vault    *VaultConfig // nil unless backend is vault
}

// VaultConfig holds HashiCorp Vault settings.
type VaultConfig struct {
	Address string
	Token   string
	Mount   string
	Field   string
}

// MetricsConfig holds Prometheus Pushgateway settings.
type MetricsConfig struct {
	PushgatewayURL string
	Job            string
}
