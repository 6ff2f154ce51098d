package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fgeck/mysql-dr-dump/internal/handlers"
	"github.com/fgeck/mysql-dr-dump/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// errNoDatabases is returned when a listing failed; the cause has been logged.
var errNoDatabases = errors.New("databases could not be listed")

var (
	databasesSpec specFlags

	region         string
	projectID      string
	dbID           string
	subnetIDs      []string
	securityGroups []string
	callSpec       specFlags
)

var databasesCmd = &cobra.Command{
	Use:   "databases",
	Short: "List the databases of a MySQL server",
	RunE:  runDatabases,
}

var checkEnvCmd = &cobra.Command{
	Use:   "check-env",
	Short: "Check whether the listing function exists in a project's source account",
	RunE:  runCheckEnv,
}

var prepareEnvCmd = &cobra.Command{
	Use:   "prepare-env",
	Short: "Provision the storage stack, listing function and its network",
	Long: `Prepare a project's source environment:
1. Create the storage stack (if missing or broken)
2. Create the listing function (if missing)
3. Apply the network configuration (always)`,
	RunE: runPrepareEnv,
}

var callDatabasesCmd = &cobra.Command{
	Use:   "call-databases",
	Short: "List databases through the listing function of a project's source account",
	RunE:  runCallDatabases,
}

func init() {
	databasesSpec.register(databasesCmd)

	for _, cmd := range []*cobra.Command{checkEnvCmd, prepareEnvCmd, callDatabasesCmd} {
		cmd.Flags().StringVar(&region, "region", "", "source region (required)")
		cmd.Flags().StringVar(&projectID, "project", "", "project id (required)")
		_ = cmd.MarkFlagRequired("region")
		_ = cmd.MarkFlagRequired("project")
	}

	prepareEnvCmd.Flags().StringSliceVar(&subnetIDs, "subnet", nil, "subnet id of the listing function (repeatable)")
	prepareEnvCmd.Flags().StringSliceVar(&securityGroups, "security-group", nil, "security group id of the listing function (repeatable)")

	callDatabasesCmd.Flags().StringVar(&dbID, "db-id", "", "database id within the project (required)")
	_ = callDatabasesCmd.MarkFlagRequired("db-id")
	callSpec.register(callDatabasesCmd)
}

func runDatabases(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	spec, err := databasesSpec.resolve(cmd, os.Getenv)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	return printDatabases(handlers.New(log.Logger, *cfg).GetDatabases(ctx, spec))
}

func runCheckEnv(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	exists, err := handlers.New(log.Logger, *cfg).CheckEnvironment(ctx, models.CheckEnvironmentRequest{
		Region:    region,
		ProjectID: projectID,
	})
	if err != nil {
		log.Error().Err(err).Msg("environment check failed")
		return err
	}

	fmt.Println(exists)
	return nil
}

func runPrepareEnv(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	result, err := handlers.New(log.Logger, *cfg).PrepareEnvironment(ctx, models.PrepareEnvironmentRequest{
		Region:           region,
		ProjectID:        projectID,
		SubnetIDs:        subnetIDs,
		SecurityGroupIDs: securityGroups,
	})
	if err != nil {
		log.Error().Err(err).Msg("environment preparation failed")
		return err
	}

	fmt.Println("Environment is ready")
	fmt.Printf("  Stack created: %v\n", result.StackCreated)
	fmt.Printf("  Function created: %v\n", result.FunctionCreated)
	if result.RoleARN != "" {
		fmt.Printf("  Role: %s\n", result.RoleARN)
	}
	return nil
}

func runCallDatabases(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	spec, err := callSpec.resolve(cmd, os.Getenv)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	return printDatabases(handlers.New(log.Logger, *cfg).CallGetDatabases(ctx, models.CallGetDatabasesRequest{
		Region:      region,
		ProjectID:   projectID,
		DbID:        dbID,
		DbParameter: spec,
	}))
}

func printDatabases(databases []string) error {
	if databases == nil {
		return errNoDatabases
	}
	for _, name := range databases {
		fmt.Println(name)
	}
	return nil
}
