// Package handlers exposes the externally invocable entry points and wires
// them to the services of the right credential scope.
package handlers

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/fgeck/mysql-dr-dump/internal/apperr"
	"github.com/fgeck/mysql-dr-dump/internal/models"
	"github.com/fgeck/mysql-dr-dump/internal/services/awsenv"
	"github.com/fgeck/mysql-dr-dump/internal/services/command"
	"github.com/fgeck/mysql-dr-dump/internal/services/environment"
	"github.com/fgeck/mysql-dr-dump/internal/services/mysql"
	"github.com/fgeck/mysql-dr-dump/internal/services/runner"
	"github.com/fgeck/mysql-dr-dump/internal/services/secrets"
	"github.com/rs/zerolog"
)

// FunctionChecker reports whether the listing function is deployed.
type FunctionChecker interface {
	FunctionExists(ctx context.Context, name string) (bool, error)
}

// EnvironmentProvisioner prepares a source environment.
type EnvironmentProvisioner interface {
	Prepare(ctx context.Context, target models.ProvisioningTarget, network models.NetworkAttachment) (*models.PrepareResult, error)
}

// DatabaseLister lists databases through the deployed listing function.
type DatabaseLister interface {
	ListDatabases(ctx context.Context, functionName string, spec models.DbConnectionSpec) ([]string, error)
}

// Dependencies builds the collaborators of each entry point.
type Dependencies struct {
	LoadDefault  func(ctx context.Context) (aws.Config, error)
	LoadSource   func(ctx context.Context, region string, cred models.Credential) (aws.Config, error)
	Secrets      func(awsCfg aws.Config) (secrets.Service, error)
	Introspector func() mysql.Service
	Pipeline     func(awsCfg aws.Config, secretsSvc secrets.Service) runner.Service
	Checker      func(sourceCfg aws.Config) FunctionChecker
	Provisioner  func(localCfg, sourceCfg aws.Config) EnvironmentProvisioner
	Invoker      func(sourceCfg aws.Config) DatabaseLister
}

// DefaultDependencies returns the production wiring for cfg.
func DefaultDependencies(logger zerolog.Logger, cfg models.AppConfig) Dependencies {
	return Dependencies{
		LoadDefault: func(ctx context.Context) (aws.Config, error) {
			return awsenv.LoadDefault(ctx, cfg.AWS.Region)
		},
		LoadSource: awsenv.LoadSource,
		Secrets: func(awsCfg aws.Config) (secrets.Service, error) {
			return secrets.New(logger, cfg.Secrets, awsCfg)
		},
		Introspector: func() mysql.Service {
			return mysql.New(logger, cfg.Dump.ConnectTimeout)
		},
		Pipeline: func(awsCfg aws.Config, secretsSvc secrets.Service) runner.Service {
			return runner.New(logger, cfg, awsCfg, secretsSvc)
		},
		Checker: func(sourceCfg aws.Config) FunctionChecker {
			return environment.NewFunctionChecker(logger, environment.NewSourceClients(logger, sourceCfg).Lambda)
		},
		Provisioner: func(localCfg, sourceCfg aws.Config) EnvironmentProvisioner {
			return environment.NewProvisioner(logger, cfg.Environment, cfg.Storage,
				environment.NewScope(logger, localCfg),
				environment.NewSourceClients(logger, sourceCfg))
		},
		Invoker: func(sourceCfg aws.Config) DatabaseLister {
			return environment.NewInvoker(logger, environment.NewSourceClients(logger, sourceCfg).Lambda)
		},
	}
}

// Handlers implements the entry points.
type Handlers struct {
	cfg    models.AppConfig
	deps   Dependencies
	logger zerolog.Logger
}

// New creates handlers with the production wiring.
func New(logger zerolog.Logger, cfg models.AppConfig) *Handlers {
	return NewWithDependencies(logger, cfg, DefaultDependencies(logger, cfg))
}

// NewWithDependencies creates handlers with custom dependencies (for testing).
func NewWithDependencies(logger zerolog.Logger, cfg models.AppConfig, deps Dependencies) *Handlers {
	return &Handlers{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
	}
}

// GetDatabases lists the databases of the server described by spec, using
// the ambient credentials for the password lookup. Any failure is logged
// and yields nil.
func (h *Handlers) GetDatabases(ctx context.Context, spec models.DbConnectionSpec) []string {
	databases, err := h.getDatabases(ctx, spec)
	if err != nil {
		h.logger.Error().Err(err).Str("host", spec.Host).Msg("unable to list databases")
		return nil
	}
	return databases
}

func (h *Handlers) getDatabases(ctx context.Context, spec models.DbConnectionSpec) ([]string, error) {
	if spec.PasswordID == "" {
		return nil, apperr.New(apperr.KindValidation, "password id is required", nil)
	}
	if spec.Port == 0 {
		spec.Port = command.DefaultMySQLPort
	}

	awsCfg, err := h.deps.LoadDefault(ctx)
	if err != nil {
		return nil, err
	}
	secretsSvc, err := h.deps.Secrets(awsCfg)
	if err != nil {
		return nil, err
	}
	password, err := secretsSvc.GetSecret(ctx, spec.PasswordID)
	if err != nil {
		return nil, err
	}

	return h.deps.Introspector().ListDatabases(ctx, spec, password)
}

// CheckEnvironment reports whether the listing function exists in the
// project's source account. Errors other than not-found are returned.
func (h *Handlers) CheckEnvironment(ctx context.Context, req models.CheckEnvironmentRequest) (bool, error) {
	_, sourceCfg, err := h.scopes(ctx, req.Region, req.ProjectID)
	if err != nil {
		return false, err
	}

	exists, err := h.deps.Checker(sourceCfg).FunctionExists(ctx, h.cfg.Environment.FunctionName)
	if err != nil {
		return false, err
	}

	h.logger.Info().
		Str("region", req.Region).
		Str("project_id", req.ProjectID).
		Bool("exists", exists).
		Msg("environment checked")
	return exists, nil
}

// PrepareEnvironment provisions the project's source environment.
func (h *Handlers) PrepareEnvironment(ctx context.Context, req models.PrepareEnvironmentRequest) (*models.PrepareResult, error) {
	localCfg, sourceCfg, err := h.scopes(ctx, req.Region, req.ProjectID)
	if err != nil {
		return nil, err
	}

	target := models.ProvisioningTarget{
		Region:       req.Region,
		ProjectID:    req.ProjectID,
		StackName:    h.cfg.Environment.StackName,
		FunctionName: h.cfg.Environment.FunctionName,
	}
	network := models.NetworkAttachment{
		SubnetIDs:        req.SubnetIDs,
		SecurityGroupIDs: req.SecurityGroupIDs,
	}

	return h.deps.Provisioner(localCfg, sourceCfg).Prepare(ctx, target, network)
}

// DumpDatabase runs the dump pipeline and returns the uploaded artifact's
// file name.
func (h *Handlers) DumpDatabase(ctx context.Context, spec models.DbConnectionSpec) (string, error) {
	awsCfg, err := h.deps.LoadDefault(ctx)
	if err != nil {
		return "", err
	}
	secretsSvc, err := h.deps.Secrets(awsCfg)
	if err != nil {
		return "", err
	}

	result, err := h.deps.Pipeline(awsCfg, secretsSvc).Run(ctx, spec)
	if err != nil {
		return "", err
	}
	return result.Artifact.Name(), nil
}

// CallGetDatabases lists databases through the listing function deployed in
// the project's source account. The password id is derived from the
// project and database ids. Any failure is logged and yields nil.
func (h *Handlers) CallGetDatabases(ctx context.Context, req models.CallGetDatabasesRequest) []string {
	databases, err := h.callGetDatabases(ctx, req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("region", req.Region).
			Str("project_id", req.ProjectID).
			Str("db_id", req.DbID).
			Msg("unable to list databases remotely")
		return nil
	}
	return databases
}

func (h *Handlers) callGetDatabases(ctx context.Context, req models.CallGetDatabasesRequest) ([]string, error) {
	if req.DbID == "" {
		return nil, apperr.New(apperr.KindValidation, "db id is required", nil)
	}

	_, sourceCfg, err := h.scopes(ctx, req.Region, req.ProjectID)
	if err != nil {
		return nil, err
	}

	spec := req.DbParameter
	spec.PasswordID = secrets.DatabaseSecretID(h.cfg.Secrets.IDPrefix, req.ProjectID, req.DbID)

	return h.deps.Invoker(sourceCfg).ListDatabases(ctx, h.cfg.Environment.FunctionName, spec)
}

// scopes returns the management configuration and the source configuration
// built from the project's stored credential.
func (h *Handlers) scopes(ctx context.Context, region, projectID string) (aws.Config, aws.Config, error) {
	if region == "" {
		return aws.Config{}, aws.Config{}, apperr.New(apperr.KindValidation, "region is required", nil)
	}

	localCfg, err := h.deps.LoadDefault(ctx)
	if err != nil {
		return aws.Config{}, aws.Config{}, err
	}
	secretsSvc, err := h.deps.Secrets(localCfg)
	if err != nil {
		return aws.Config{}, aws.Config{}, err
	}

	cred, err := secrets.GetCredential(ctx, secretsSvc, h.cfg.Secrets.IDPrefix, projectID)
	if err != nil {
		return aws.Config{}, aws.Config{}, err
	}

	sourceCfg, err := h.deps.LoadSource(ctx, region, *cred)
	if err != nil {
		return aws.Config{}, aws.Config{}, fmt.Errorf("source scope for project %s: %w", projectID, err)
	}
	return localCfg, sourceCfg, nil
}
