// Package main is the AWS Lambda entry point for mysql-dr-dump. The Lambda
// runtime names the entry point to serve in the _HANDLER variable.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/fgeck/mysql-dr-dump/internal/config"
	"github.com/fgeck/mysql-dr-dump/internal/handlers"
	"github.com/fgeck/mysql-dr-dump/internal/models"
	"github.com/rs/zerolog"
)

// Entry point names, as configured in the function's handler setting.
const (
	HandlerGetDatabases       = "GetDatabases"
	HandlerCheckEnvironment   = "CheckEnvironment"
	HandlerPrepareEnvironment = "PrepareEnvironment"
	HandlerDumpDatabase       = "DumpDatabase"
	HandlerCallGetDatabases   = "CallGetDatabases"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.NewParser().Load(os.Getenv("DBDUMP_CONFIG"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	name := os.Getenv("_HANDLER")
	handler, err := handlerFor(name, handlers.New(logger, *cfg))
	if err != nil {
		logger.Fatal().Err(err).Msg("no handler to serve")
	}

	logger.Info().Str("handler", name).Msg("starting")
	lambda.Start(handler)
}

// handlerFor returns the typed Lambda handler for the named entry point.
func handlerFor(name string, h *handlers.Handlers) (interface{}, error) {
	switch name {
	case HandlerGetDatabases:
		return func(ctx context.Context, spec models.DbConnectionSpec) ([]string, error) {
			return h.GetDatabases(ctx, spec), nil
		}, nil
	case HandlerCheckEnvironment:
		return h.CheckEnvironment, nil
	case HandlerPrepareEnvironment:
		return h.PrepareEnvironment, nil
	case HandlerDumpDatabase:
		return h.DumpDatabase, nil
	case HandlerCallGetDatabases:
		return func(ctx context.Context, req models.CallGetDatabasesRequest) ([]string, error) {
			return h.CallGetDatabases(ctx, req), nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown handler %q", name)
	}
}
