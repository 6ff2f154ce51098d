package environment

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/fgeck/mysql-dr-dump/internal/apperr"
	"github.com/fgeck/mysql-dr-dump/internal/models"
)

// ensureFunction creates the listing function unless it already exists.
// It returns whether it created the function and the role it used.
func (p *Provisioner) ensureFunction(ctx context.Context, run *prepareRun) (bool, string, error) {
	name := run.target.FunctionName
	logger := p.logger.With().Str("function", name).Logger()

	exists, err := p.checker.FunctionExists(ctx, name)
	if err != nil {
		return false, "", err
	}
	if exists {
		logger.Info().Msg("function already exists")
		return false, "", nil
	}

	role, err := FindRole(ctx, p.source.IAM, p.env.RolePrefix)
	if err != nil {
		return false, "", err
	}
	roleARN := aws.ToString(role.Arn)
	logger.Debug().Str("role", roleARN).Msg("execution role found")

	sourceBucket, err := p.copyPackage(ctx, run)
	if err != nil {
		return false, "", err
	}

	logger.Info().Msg("creating function")
	_, err = p.source.Lambda.CreateFunction(ctx, &lambda.CreateFunctionInput{
		FunctionName: aws.String(name),
		Runtime:      lambdatypes.Runtime(p.env.FunctionRuntime),
		Handler:      aws.String(p.env.FunctionHandler),
		Role:         aws.String(roleARN),
		MemorySize:   aws.Int32(p.env.FunctionMemoryMB),
		Timeout:      aws.Int32(int32(p.env.FunctionTimeout / time.Second)),
		Code: &lambdatypes.FunctionCode{
			S3Bucket: aws.String(sourceBucket),
			S3Key:    aws.String(p.storage.FunctionPackageKey),
		},
	})
	if err != nil {
		return false, "", apperr.New(apperr.KindProvider, fmt.Sprintf("creating function %s", name), err)
	}

	if err := p.waitFunctionActive(ctx, name); err != nil {
		return true, roleARN, err
	}

	logger.Info().Msg("function created")
	return true, roleARN, nil
}

// copyPackage copies the function package from the management bucket to the
// source bucket and returns the source bucket name.
func (p *Provisioner) copyPackage(ctx context.Context, run *prepareRun) (string, error) {
	localBucket, err := run.localBucket(ctx)
	if err != nil {
		return "", err
	}
	sourceBucket, err := run.sourceBucket(ctx)
	if err != nil {
		return "", err
	}

	key := p.storage.FunctionPackageKey
	body, err := p.local.Storage.GetObject(ctx, localBucket, key)
	if err != nil {
		return "", err
	}
	if err := p.source.Storage.PutObject(ctx, sourceBucket, key, body); err != nil {
		return "", err
	}

	p.logger.Debug().
		Str("from", localBucket).
		Str("to", sourceBucket).
		Str("key", key).
		Msg("function package copied")
	return sourceBucket, nil
}

// attachNetwork replaces the function's network configuration. Empty lists
// detach the function from any network.
func (p *Provisioner) attachNetwork(ctx context.Context, name string, network models.NetworkAttachment) error {
	if err := p.waitFunctionActive(ctx, name); err != nil {
		return err
	}
	if err := p.waitFunctionUpdated(ctx, name); err != nil {
		return err
	}

	subnets := network.SubnetIDs
	if subnets == nil {
		subnets = []string{}
	}
	groups := network.SecurityGroupIDs
	if groups == nil {
		groups = []string{}
	}

	p.logger.Info().
		Str("function", name).
		Strs("subnets", subnets).
		Strs("security_groups", groups).
		Msg("updating function network configuration")

	_, err := p.source.Lambda.UpdateFunctionConfiguration(ctx, &lambda.UpdateFunctionConfigurationInput{
		FunctionName: aws.String(name),
		VpcConfig: &lambdatypes.VpcConfig{
			SubnetIds:        subnets,
			SecurityGroupIds: groups,
		},
	})
	if err != nil {
		return apperr.New(apperr.KindProvider, fmt.Sprintf("updating function %s", name), err)
	}

	return p.waitFunctionUpdated(ctx, name)
}

func (p *Provisioner) waitFunctionActive(ctx context.Context, name string) error {
	waiter := lambda.NewFunctionActiveV2Waiter(p.source.Lambda, func(o *lambda.FunctionActiveV2WaiterOptions) {
		o.MinDelay, o.MaxDelay = p.wait.delay, p.wait.delay
	})
	err := waiter.Wait(ctx, &lambda.GetFunctionInput{FunctionName: aws.String(name)}, p.wait.timeout)
	return p.functionWaitError(ctx, name, "did not become active", err)
}

func (p *Provisioner) waitFunctionUpdated(ctx context.Context, name string) error {
	waiter := lambda.NewFunctionUpdatedV2Waiter(p.source.Lambda, func(o *lambda.FunctionUpdatedV2WaiterOptions) {
		o.MinDelay, o.MaxDelay = p.wait.delay, p.wait.delay
	})
	err := waiter.Wait(ctx, &lambda.GetFunctionInput{FunctionName: aws.String(name)}, p.wait.timeout)
	return p.functionWaitError(ctx, name, "did not finish updating", err)
}

// functionWaitError explains a failed wait with the reason the function
// reports for its state.
func (p *Provisioner) functionWaitError(ctx context.Context, name, what string, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	msg := fmt.Sprintf("function %s %s", name, what)
	if reason := p.checker.failureReason(ctx, name); reason != "" {
		msg += ": " + reason
	}
	return apperr.New(apperr.KindProvider, msg, err)
}
