// Package params resolves values from the SSM parameter store.
package params

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/fgeck/mysql-dr-dump/internal/apperr"
	"github.com/rs/zerolog"
)

// Service defines the interface for parameter lookups.
type Service interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// SSMAPI is the subset of the SSM client used here.
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Impl implements the Service interface.
type Impl struct {
	client SSMAPI
	logger zerolog.Logger
}

// New creates a new parameter service for the scope described by cfg.
func New(logger zerolog.Logger, cfg aws.Config) *Impl {
	return &Impl{
		client: ssm.NewFromConfig(cfg),
		logger: logger,
	}
}

// NewWithClient creates a new parameter service with a custom client (for testing).
func NewWithClient(logger zerolog.Logger, client SSMAPI) *Impl {
	return &Impl{
		client: client,
		logger: logger,
	}
}

// GetParameter returns the decrypted value of name. A missing parameter or
// an empty value is a configuration error.
func (s *Impl) GetParameter(ctx context.Context, name string) (string, error) {
	out, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var notFound *ssmtypes.ParameterNotFound
		if errors.As(err, &notFound) {
			return "", apperr.New(apperr.KindConfiguration, fmt.Sprintf("unable to find parameter %s", name), err)
		}
		return "", apperr.New(apperr.KindProvider, fmt.Sprintf("reading parameter %s", name), err)
	}

	if out.Parameter == nil || aws.ToString(out.Parameter.Value) == "" {
		return "", apperr.New(apperr.KindConfiguration, fmt.Sprintf("parameter %s is empty", name), nil)
	}

	s.logger.Debug().Str("parameter", name).Msg("parameter resolved")
	return aws.ToString(out.Parameter.Value), nil
}
