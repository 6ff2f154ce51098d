package environment

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/fgeck/mysql-dr-dump/internal/apperr"
	"github.com/rs/zerolog"
)

// FunctionChecker answers read-only questions about the listing function.
type FunctionChecker struct {
	client LambdaAPI
	logger zerolog.Logger
}

// NewFunctionChecker creates a checker backed by client.
func NewFunctionChecker(logger zerolog.Logger, client LambdaAPI) *FunctionChecker {
	return &FunctionChecker{
		client: client,
		logger: logger,
	}
}

// FunctionExists reports whether the function is deployed. Only a
// not-found response means false; any other failure is returned.
func (p *FunctionChecker) FunctionExists(ctx context.Context, name string) (bool, error) {
	_, err := p.configuration(ctx, name)
	if err == nil {
		return true, nil
	}

	var notFound *lambdatypes.ResourceNotFoundException
	if errors.As(err, &notFound) {
		p.logger.Debug().Str("function", name).Msg("function not found")
		return false, nil
	}
	return false, apperr.New(apperr.KindProvider, fmt.Sprintf("checking function %s", name), err)
}

func (p *FunctionChecker) configuration(ctx context.Context, name string) (*lambdatypes.FunctionConfiguration, error) {
	out, err := p.client.GetFunction(ctx, &lambda.GetFunctionInput{
		FunctionName: aws.String(name),
	})
	if err != nil {
		return nil, err
	}
	if out.Configuration == nil {
		return &lambdatypes.FunctionConfiguration{}, nil
	}
	return out.Configuration, nil
}

// failureReason returns why the function is not usable, or an empty string
// when it cannot tell.
func (p *FunctionChecker) failureReason(ctx context.Context, name string) string {
	cfg, err := p.configuration(ctx, name)
	if err != nil {
		return ""
	}
	if reason := aws.ToString(cfg.LastUpdateStatusReason); reason != "" && cfg.LastUpdateStatus == lambdatypes.LastUpdateStatusFailed {
		return reason
	}
	if reason := aws.ToString(cfg.StateReason); reason != "" {
		return reason
	}
	return string(cfg.State)
}
