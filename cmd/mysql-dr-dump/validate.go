package main

import (
	"fmt"
	"os"

	"github.com/fgeck/mysql-dr-dump/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  `Validate the configuration without contacting MySQL or AWS.`,
	RunE:  validateConfig,
}

func validateConfig(cmd *cobra.Command, args []string) error {
	// Check if file exists
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			log.Error().Str("file", configFile).Msg("config file not found")
			return fmt.Errorf("config file not found: %s", configFile)
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Validate configuration
	if err := config.Validate(cfg); err != nil {
		log.Error().Err(err).Msg("configuration validation failed")
		return err
	}

	// Print configuration summary
	fmt.Println("Configuration is valid!")
	fmt.Println()
	fmt.Println("Dump:")
	fmt.Printf("  Work dir: %s\n", cfg.Dump.WorkDir)
	fmt.Printf("  mysqldump: %s\n", cfg.Dump.MySQLDumpPath)
	fmt.Printf("  Min free: %d MB\n", cfg.Dump.MinFreeMB)
	fmt.Printf("  Command timeout: %s\n", cfg.Dump.CommandTimeout)
	fmt.Printf("  Keep artifacts: %v\n", cfg.Dump.KeepArtifacts)
	fmt.Println()
	fmt.Println("Storage:")
	fmt.Printf("  Bucket parameter: %s\n", cfg.Storage.BucketParameter)
	fmt.Printf("  Stack template: %s\n", cfg.Storage.StackTemplateKey)
	fmt.Printf("  Function package: %s\n", cfg.Storage.FunctionPackageKey)
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Printf("  Stack: %s\n", cfg.Environment.StackName)
	fmt.Printf("  Function: %s (%s, %d MB, %s)\n", cfg.Environment.FunctionName,
		cfg.Environment.FunctionRuntime, cfg.Environment.FunctionMemoryMB, cfg.Environment.FunctionTimeout)
	fmt.Printf("  Role prefix: %s\n", cfg.Environment.RolePrefix)
	fmt.Println()
	fmt.Println("Secrets:")
	fmt.Printf("  Backend: %s\n", cfg.Secrets.Backend)
	fmt.Printf("  ID prefix: %s\n", cfg.Secrets.IDPrefix)
	if cfg.Secrets.Vault != nil {
		fmt.Printf("  Vault: %s (mount %s)\n", cfg.Secrets.Vault.Address, cfg.Secrets.Vault.Mount)
	}
	fmt.Println()
	fmt.Println("Optional Features:")
	fmt.Printf("  Telegram: %v\n", cfg.Telegram != nil)
	fmt.Printf("  Metrics: %v\n", cfg.Metrics != nil)

	if cfg.Telegram != nil {
		fmt.Println()
		fmt.Println("Telegram Configuration:")
		fmt.Printf("  Chat ID: %s\n", cfg.Telegram.ChatID)
		fmt.Printf("  Bot Token: (configured)\n")
	}

	if cfg.Metrics != nil {
		fmt.Println()
		fmt.Println("Metrics Configuration:")
		fmt.Printf("  Pushgateway: %s\n", cfg.Metrics.PushgatewayURL)
		fmt.Printf("  Job: %s\n", cfg.Metrics.Job)
	}

	return nil
}
