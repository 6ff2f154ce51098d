// Package config provides configuration file parsing.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fgeck/mysql-dr-dump/internal/models"
	"github.com/fgeck/mysql-dr-dump/internal/services/secrets"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. DBDUMP_DUMP_WORK_DIR.
const EnvPrefix = "DBDUMP"

// Parser handles configuration file parsing.
type Parser struct {
	v *viper.Viper
}

// NewParser creates a new configuration parser with defaults and
// environment overrides applied.
func NewParser() *Parser {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return &Parser{v: v}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.bucket_parameter", "/dbdump/bucket")
	v.SetDefault("storage.stack_template_key", "cfn/dbdump-common-bucket.json")
	v.SetDefault("storage.function_package_key", "lambda/dbdump-mysql.zip")

	v.SetDefault("dump.work_dir", "/tmp/dbdump")
	v.SetDefault("dump.mysqldump_path", "mysqldump")
	v.SetDefault("dump.tar_path", "tar")
	v.SetDefault("dump.df_path", "df")
	v.SetDefault("dump.min_free_mb", 0)
	v.SetDefault("dump.command_timeout", time.Duration(0))
	v.SetDefault("dump.connect_timeout", 10*time.Second)
	v.SetDefault("dump.keep_artifacts", false)

	v.SetDefault("environment.stack_name", "dbdump-common-bucket")
	v.SetDefault("environment.function_name", "dbdump-mysql-get-databases")
	v.SetDefault("environment.role_prefix", "dbdump-mysql-lambda")
	v.SetDefault("environment.function_memory_mb", 1024)
	v.SetDefault("environment.function_timeout", 10*time.Minute)
	v.SetDefault("environment.function_runtime", "provided.al2023")
	v.SetDefault("environment.function_handler", "GetDatabases")
	v.SetDefault("environment.poll_interval", 5*time.Second)
	v.SetDefault("environment.poll_timeout", 10*time.Minute)

	v.SetDefault("secrets.backend", secrets.BackendSecretsManager)
	v.SetDefault("secrets.id_prefix", "dbdump")
	v.SetDefault("secrets.vault.mount", "secret")
	v.SetDefault("secrets.vault.field", "value")

	v.SetDefault("metrics.job", "mysql_dr_dump")
}

// Load reads the file at path, or only defaults and environment overrides
// when path is empty.
func (p *Parser) Load(path string) (*models.AppConfig, error) {
	if path == "" {
		return p.parse()
	}
	return p.LoadFile(path)
}

// LoadFile loads configuration from a file path.
func (p *Parser) LoadFile(path string) (*models.AppConfig, error) {
	p.v.SetConfigFile(path)

	if err := p.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return p.parse()
}

// LoadReader loads configuration from a reader (useful for testing).
func (p *Parser) LoadReader(content string) (*models.AppConfig, error) {
	if err := p.v.ReadConfig(strings.NewReader(content)); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return p.parse()
}

func (p *Parser) parse() (*models.AppConfig, error) {
	cfg := &models.AppConfig{}

	cfg.AWS = models.AWSSettings{
		Region: p.v.GetString("aws.region"),
	}

	cfg.Storage = models.StorageSettings{
		BucketParameter:    p.v.GetString("storage.bucket_parameter"),
		StackTemplateKey:   p.v.GetString("storage.stack_template_key"),
		FunctionPackageKey: p.v.GetString("storage.function_package_key"),
	}

	cfg.Dump = models.DumpSettings{
		WorkDir:        p.expandEnv(p.v.GetString("dump.work_dir")),
		MySQLDumpPath:  p.v.GetString("dump.mysqldump_path"),
		TarPath:        p.v.GetString("dump.tar_path"),
		DfPath:         p.v.GetString("dump.df_path"),
		MinFreeMB:      p.v.GetInt64("dump.min_free_mb"),
		CommandTimeout: p.v.GetDuration("dump.command_timeout"),
		ConnectTimeout: p.v.GetDuration("dump.connect_timeout"),
		KeepArtifacts:  p.v.GetBool("dump.keep_artifacts"),
	}

	cfg.Environment = models.EnvironmentSettings{
		StackName:        p.v.GetString("environment.stack_name"),
		FunctionName:     p.v.GetString("environment.function_name"),
		RolePrefix:       p.v.GetString("environment.role_prefix"),
		FunctionMemoryMB: p.v.GetInt32("environment.function_memory_mb"),
		FunctionTimeout:  p.v.GetDuration("environment.function_timeout"),
		FunctionRuntime:  p.v.GetString("environment.function_runtime"),
		FunctionHandler:  p.v.GetString("environment.function_handler"),
		PollInterval:     p.v.GetDuration("environment.poll_interval"),
		PollTimeout:      p.v.GetDuration("environment.poll_timeout"),
	}

	cfg.Secrets = models.SecretsSettings{
		Backend:  p.v.GetString("secrets.backend"),
		IDPrefix: p.v.GetString("secrets.id_prefix"),
	}
	if cfg.Secrets.Backend == secrets.BackendVault {
		cfg.Secrets.Vault = &models.VaultConfig{
			Address: p.expandEnv(p.v.GetString("secrets.vault.address")),
			Token:   p.expandEnv(p.v.GetString("secrets.vault.token")),
			Mount:   p.v.GetString("secrets.vault.mount"),
			Field:   p.v.GetString("secrets.vault.field"),
		}
	}

	// Parse optional Telegram config.
	botToken := p.expandEnv(p.v.GetString("telegram.bot_token"))
	chatID := p.expandEnv(p.v.GetString("telegram.chat_id"))
	if p.v.IsSet("telegram") || botToken != "" || chatID != "" {
		cfg.Telegram = &models.TelegramConfig{
			BotToken: botToken,
			ChatID:   chatID,
		}
	}

	// Metrics are enabled by the gateway URL; the job name always has a default.
	if url := p.expandEnv(p.v.GetString("metrics.pushgateway_url")); url != "" {
		cfg.Metrics = &models.MetricsConfig{
			PushgatewayURL: url,
			Job:            p.v.GetString("metrics.job"),
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expandEnv expands environment variables in the format ${VAR} or $VAR.
func (p *Parser) expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Validate performs validation on the loaded configuration.
//
//nolint:gocyclo // one check per field
func Validate(cfg *models.AppConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if cfg.Storage.BucketParameter == "" {
		return fmt.Errorf("storage.bucket_parameter is required")
	}
	if cfg.Dump.WorkDir == "" {
		return fmt.Errorf("dump.work_dir is required")
	}
	if cfg.Dump.MinFreeMB < 0 {
		return fmt.Errorf("dump.min_free_mb must not be negative")
	}
	if cfg.Dump.CommandTimeout < 0 {
		return fmt.Errorf("dump.command_timeout must not be negative")
	}
	if cfg.Environment.FunctionName == "" {
		return fmt.Errorf("environment.function_name is required")
	}
	if cfg.Environment.StackName == "" {
		return fmt.Errorf("environment.stack_name is required")
	}
	if cfg.Environment.PollInterval <= 0 {
		return fmt.Errorf("environment.poll_interval must be positive")
	}
	if cfg.Environment.PollTimeout < cfg.Environment.PollInterval {
		return fmt.Errorf("environment.poll_timeout must not be shorter than environment.poll_interval")
	}
	if cfg.Environment.FunctionMemoryMB < 128 || cfg.Environment.FunctionMemoryMB > 10240 {
		return fmt.Errorf("environment.function_memory_mb must be between 128 and 10240")
	}

	switch cfg.Secrets.Backend {
	case "", secrets.BackendSecretsManager:
	case secrets.BackendVault:
		if cfg.Secrets.Vault == nil || cfg.Secrets.Vault.Address == "" {
			return fmt.Errorf("secrets.vault.address is required when secrets.backend is vault")
		}
	default:
		return fmt.Errorf("secrets.backend must be one of: secretsmanager, vault")
	}

	if cfg.Telegram != nil {
		if cfg.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is configured")
		}
		if cfg.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is configured")
		}
	}

	if cfg.Metrics != nil && cfg.Metrics.Job == "" {
		return fmt.Errorf("metrics.job is required when metrics are configured")
	}

	return nil
}
