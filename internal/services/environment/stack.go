package environment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/smithy-go"
	"github.com/fgeck/mysql-dr-dump/internal/apperr"
)

type stackCondition int

const (
	stackAbsent stackCondition = iota
	stackValid
	stackInProgress
	// stackRecreate is a stack whose creation rolled back. It owns no
	// resources worth keeping, so it is deleted and created again.
	stackRecreate
	// stackRollbackFailed is an update whose rollback failed. Its resources
	// are live, so the rollback is continued instead.
	stackRollbackFailed
	// stackBroken needs an operator before it can be touched again.
	stackBroken
)

var validStackStatuses = map[cfntypes.StackStatus]bool{
	cfntypes.StackStatusCreateComplete:         true,
	cfntypes.StackStatusUpdateComplete:         true,
	cfntypes.StackStatusUpdateRollbackComplete: true,
	cfntypes.StackStatusImportComplete:         true,
	cfntypes.StackStatusImportRollbackComplete: true,
}

func classifyStack(stack *cfntypes.Stack) stackCondition {
	if stack == nil || stack.StackStatus == cfntypes.StackStatusDeleteComplete {
		return stackAbsent
	}
	switch status := stack.StackStatus; {
	case validStackStatuses[status]:
		return stackValid
	case status == cfntypes.StackStatusRollbackComplete, status == cfntypes.StackStatusRollbackFailed:
		return stackRecreate
	case status == cfntypes.StackStatusUpdateRollbackFailed:
		return stackRollbackFailed
	case status == cfntypes.StackStatusReviewInProgress:
		// an unexecuted change set never settles on its own
		return stackBroken
	case strings.HasSuffix(string(status), "_IN_PROGRESS"):
		return stackInProgress
	default:
		return stackBroken
	}
}

func isStackNotFound(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) &&
		apiErr.ErrorCode() == "ValidationError" &&
		strings.Contains(apiErr.ErrorMessage(), "does not exist")
}

func stackInput(name string) *cloudformation.DescribeStacksInput {
	return &cloudformation.DescribeStacksInput{StackName: aws.String(name)}
}

func firstStack(out *cloudformation.DescribeStacksOutput) *cfntypes.Stack {
	if out == nil || len(out.Stacks) == 0 {
		return nil
	}
	return &out.Stacks[0]
}

func (p *Provisioner) describeStack(ctx context.Context, client CloudFormationAPI, name string) (*cfntypes.Stack, error) {
	out, err := client.DescribeStacks(ctx, stackInput(name))
	if err != nil {
		if isStackNotFound(err) {
			return nil, nil
		}
		return nil, apperr.New(apperr.KindProvider, fmt.Sprintf("describing stack %s", name), err)
	}
	return firstStack(out), nil
}

// waitSettled waits until no operation is running on the stack and returns
// its last description, nil when it does not exist. None of the stock
// waiters accept "absent or any terminal state", so the exists waiter runs
// with a retry rule of its own.
func (p *Provisioner) waitSettled(ctx context.Context, client CloudFormationAPI, name string) (*cfntypes.Stack, error) {
	var stack *cfntypes.Stack
	waiter := cloudformation.NewStackExistsWaiter(client, func(o *cloudformation.StackExistsWaiterOptions) {
		o.MinDelay, o.MaxDelay = p.wait.delay, p.wait.delay
		o.Retryable = func(_ context.Context, _ *cloudformation.DescribeStacksInput, out *cloudformation.DescribeStacksOutput, err error) (bool, error) {
			if err != nil {
				if isStackNotFound(err) {
					stack = nil
					return false, nil
				}
				return false, apperr.New(apperr.KindProvider, fmt.Sprintf("describing stack %s", name), err)
			}
			stack = firstStack(out)
			if classifyStack(stack) == stackInProgress {
				p.logger.Debug().Str("stack", name).Str("status", string(stack.StackStatus)).Msg("stack busy")
				return true, nil
			}
			return false, nil
		}
	})

	if err := waiter.Wait(ctx, stackInput(name), p.wait.timeout); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, apperr.New(apperr.KindProvider, fmt.Sprintf("timeout waiting for stack %s to settle", name), err)
	}
	return stack, nil
}

// requireValid turns the outcome of a stack waiter into an error unless the
// stack ended in a usable state.
func (p *Provisioner) requireValid(ctx context.Context, client CloudFormationAPI, name string, stack *cfntypes.Stack, waitErr error) error {
	if waitErr == nil && classifyStack(stack) == stackValid {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	stack, err := p.describeStack(ctx, client, name)
	if err != nil {
		return err
	}
	switch classifyStack(stack) {
	case stackValid:
		return nil
	case stackAbsent:
		return apperr.New(apperr.KindProvider, fmt.Sprintf("stack %s disappeared", name), waitErr)
	}
	return apperr.New(apperr.KindProvider, fmt.Sprintf("stack %s ended in %s: %s",
		name, stack.StackStatus, aws.ToString(stack.StackStatusReason)), waitErr)
}

func (p *Provisioner) deleteStack(ctx context.Context, client CloudFormationAPI, name string) error {
	if _, err := client.DeleteStack(ctx, &cloudformation.DeleteStackInput{StackName: aws.String(name)}); err != nil {
		return apperr.New(apperr.KindProvider, fmt.Sprintf("deleting stack %s", name), err)
	}

	waiter := cloudformation.NewStackDeleteCompleteWaiter(client, func(o *cloudformation.StackDeleteCompleteWaiterOptions) {
		o.MinDelay, o.MaxDelay = p.wait.delay, p.wait.delay
	})
	out, waitErr := waiter.WaitForOutput(ctx, stackInput(name), p.wait.timeout)
	if waitErr == nil && classifyStack(firstStack(out)) == stackAbsent {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	stack, err := p.describeStack(ctx, client, name)
	if err != nil {
		return err
	}
	if classifyStack(stack) == stackAbsent {
		return nil
	}
	return apperr.New(apperr.KindProvider,
		fmt.Sprintf("stack %s could not be deleted: %s", name, aws.ToString(stack.StackStatusReason)), waitErr)
}

func (p *Provisioner) continueRollback(ctx context.Context, client CloudFormationAPI, name string) error {
	_, err := client.ContinueUpdateRollback(ctx, &cloudformation.ContinueUpdateRollbackInput{StackName: aws.String(name)})
	if err != nil {
		return apperr.New(apperr.KindProvider, fmt.Sprintf("continuing rollback of stack %s", name), err)
	}

	waiter := cloudformation.NewStackRollbackCompleteWaiter(client, func(o *cloudformation.StackRollbackCompleteWaiterOptions) {
		o.MinDelay, o.MaxDelay = p.wait.delay, p.wait.delay
	})
	out, waitErr := waiter.WaitForOutput(ctx, stackInput(name), p.wait.timeout)
	return p.requireValid(ctx, client, name, firstStack(out), waitErr)
}

// createStack submits the stack and waits for it. It reports whether the
// stack was submitted.
func (p *Provisioner) createStack(ctx context.Context, run *prepareRun) (bool, error) {
	cfn := p.source.CloudFormation
	name := run.target.StackName

	bucket, err := run.localBucket(ctx)
	if err != nil {
		return false, err
	}
	template, err := p.local.Storage.GetObject(ctx, bucket, p.storage.StackTemplateKey)
	if err != nil {
		return false, err
	}

	_, err = cfn.CreateStack(ctx, &cloudformation.CreateStackInput{
		StackName:    aws.String(name),
		TemplateBody: aws.String(string(template)),
		Capabilities: []cfntypes.Capability{cfntypes.CapabilityCapabilityNamedIam},
	})
	if err != nil {
		return false, apperr.New(apperr.KindProvider, fmt.Sprintf("creating stack %s", name), err)
	}

	waiter := cloudformation.NewStackCreateCompleteWaiter(cfn, func(o *cloudformation.StackCreateCompleteWaiterOptions) {
		o.MinDelay, o.MaxDelay = p.wait.delay, p.wait.delay
	})
	out, waitErr := waiter.WaitForOutput(ctx, stackInput(name), p.wait.timeout)
	return true, p.requireValid(ctx, cfn, name, firstStack(out), waitErr)
}

// ensureStack makes sure the common storage stack exists in a valid state,
// creating it from the template in the management bucket when needed.
// It reports whether a stack was submitted.
func (p *Provisioner) ensureStack(ctx context.Context, run *prepareRun) (bool, error) {
	cfn := p.source.CloudFormation
	name := run.target.StackName
	logger := p.logger.With().Str("stack", name).Logger()

	stack, err := p.waitSettled(ctx, cfn, name)
	if err != nil {
		return false, err
	}

	switch classifyStack(stack) {
	case stackValid:
		logger.Info().Str("status", string(stack.StackStatus)).Msg("stack already exists")
		return false, nil
	case stackRollbackFailed:
		logger.Warn().Str("reason", aws.ToString(stack.StackStatusReason)).Msg("stack update rollback failed, continuing it")
		if err := p.continueRollback(ctx, cfn, name); err != nil {
			return false, err
		}
		logger.Info().Msg("stack rolled back")
		return false, nil
	case stackBroken:
		return false, apperr.New(apperr.KindProvider, fmt.Sprintf("stack %s is %s and needs manual repair: %s",
			name, stack.StackStatus, aws.ToString(stack.StackStatusReason)), nil)
	case stackRecreate:
		logger.Warn().Str("status", string(stack.StackStatus)).Msg("stack creation rolled back, deleting it")
		if err := p.deleteStack(ctx, cfn, name); err != nil {
			return false, err
		}
	}

	logger.Info().Msg("creating stack")
	if submitted, err := p.createStack(ctx, run); err != nil {
		return submitted, err
	}

	logger.Info().Msg("stack created")
	return true, nil
}
