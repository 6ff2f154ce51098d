package environment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/fgeck/mysql-dr-dump/internal/apperr"
	"github.com/fgeck/mysql-dr-dump/internal/models"
	"github.com/rs/zerolog"
)

// Invoker calls the deployed listing function.
type Invoker struct {
	client LambdaAPI
	logger zerolog.Logger
}

// NewInvoker creates an invoker backed by client.
func NewInvoker(logger zerolog.Logger, client LambdaAPI) *Invoker {
	return &Invoker{
		client: client,
		logger: logger,
	}
}

// ListDatabases invokes the function synchronously with spec as payload and
// decodes the returned list of names.
func (i *Invoker) ListDatabases(ctx context.Context, functionName string, spec models.DbConnectionSpec) ([]string, error) {
	payload, err := json.Marshal(spec)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "encoding connection spec", err)
	}

	i.logger.Debug().
		Str("function", functionName).
		Str("host", spec.Host).
		Msg("invoking listing function")

	out, err := i.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName: aws.String(functionName),
		Payload:      payload,
	})
	if err != nil {
		return nil, apperr.New(apperr.KindProvider, fmt.Sprintf("invoking function %s", functionName), err)
	}
	if out.FunctionError != nil {
		return nil, apperr.New(apperr.KindProvider,
			fmt.Sprintf("function %s reported %s: %s", functionName, aws.ToString(out.FunctionError), string(out.Payload)), nil)
	}

	var databases []string
	if err := json.Unmarshal(out.Payload, &databases); err != nil {
		return nil, apperr.New(apperr.KindProvider, fmt.Sprintf("decoding response of function %s", functionName), err)
	}
	if databases == nil {
		return nil, apperr.New(apperr.KindProvider, fmt.Sprintf("function %s returned no database list", functionName), nil)
	}
	return databases, nil
}
