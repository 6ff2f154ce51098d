package environment

import (
	"context"
	"time"

	"github.com/fgeck/mysql-dr-dump/internal/apperr"
	"github.com/fgeck/mysql-dr-dump/internal/models"
	"github.com/rs/zerolog"
)

// Provisioning steps, attached to errors as their stage.
const (
	StageStack    = "stack"
	StageFunction = "function"
	StageNetwork  = "network"
)

// Provisioner brings a project's source environment to the state the
// listing function needs. Every step is skipped when already satisfied, so
// repeated calls converge.
type Provisioner struct {
	local   Scope
	source  SourceClients
	checker *FunctionChecker
	env     models.EnvironmentSettings
	storage models.StorageSettings
	wait    waitSettings
	logger  zerolog.Logger
}

// waitSettings drive the SDK waiters: every state check is delay apart and
// a wait gives up after timeout.
type waitSettings struct {
	delay   time.Duration
	timeout time.Duration
}

// NewProvisioner creates a provisioner reading assets through local and
// provisioning through source.
func NewProvisioner(logger zerolog.Logger, env models.EnvironmentSettings, storageSettings models.StorageSettings, local Scope, source SourceClients) *Provisioner {
	return &Provisioner{
		local:   local,
		source:  source,
		checker: NewFunctionChecker(logger, source.Lambda),
		env:     env,
		storage: storageSettings,
		wait: waitSettings{
			delay:   env.PollInterval,
			timeout: env.PollTimeout,
		},
		logger: logger,
	}
}

// prepareRun caches per-call lookups so each bucket is resolved once.
type prepareRun struct {
	p      *Provisioner
	target models.ProvisioningTarget
	local  string
	source string
}

func (r *prepareRun) localBucket(ctx context.Context) (string, error) {
	if r.local == "" {
		bucket, err := r.p.local.Params.GetParameter(ctx, r.p.storage.BucketParameter)
		if err != nil {
			return "", err
		}
		r.local = bucket
	}
	return r.local, nil
}

func (r *prepareRun) sourceBucket(ctx context.Context) (string, error) {
	if r.source == "" {
		bucket, err := r.p.source.Params.GetParameter(ctx, r.p.storage.BucketParameter)
		if err != nil {
			return "", err
		}
		r.source = bucket
	}
	return r.source, nil
}

// Prepare runs the stack, function and network steps in order and stops at
// the first failure. The network step always runs and replaces the
// function's network configuration.
func (p *Provisioner) Prepare(ctx context.Context, target models.ProvisioningTarget, network models.NetworkAttachment) (*models.PrepareResult, error) {
	if target.StackName == "" {
		target.StackName = p.env.StackName
	}
	if target.FunctionName == "" {
		target.FunctionName = p.env.FunctionName
	}

	p.logger.Info().
		Str("region", target.Region).
		Str("project_id", target.ProjectID).
		Msg("preparing environment")

	run := &prepareRun{p: p, target: target}
	result := &models.PrepareResult{}

	stackCreated, err := p.ensureStack(ctx, run)
	result.StackCreated = stackCreated
	if err != nil {
		return result, apperr.WithStage(err, StageStack, apperr.KindProvider)
	}

	functionCreated, roleARN, err := p.ensureFunction(ctx, run)
	result.FunctionCreated = functionCreated
	result.RoleARN = roleARN
	if err != nil {
		return result, apperr.WithStage(err, StageFunction, apperr.KindProvider)
	}

	if err := p.attachNetwork(ctx, target.FunctionName, network); err != nil {
		return result, apperr.WithStage(err, StageNetwork, apperr.KindProvider)
	}

	p.logger.Info().
		Bool("stack_created", result.StackCreated).
		Bool("function_created", result.FunctionCreated).
		Msg("environment prepared")
	return result, nil
}
