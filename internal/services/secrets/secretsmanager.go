package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/fgeck/mysql-dr-dump/internal/apperr"
	"github.com/rs/zerolog"
)

// SecretsManagerAPI is the subset of the Secrets Manager client used here.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManagerImpl reads secrets from AWS Secrets Manager.
type SecretsManagerImpl struct {
	client SecretsManagerAPI
	logger zerolog.Logger
}

// NewSecretsManager creates a Secrets Manager backed service.
func NewSecretsManager(logger zerolog.Logger, cfg aws.Config) *SecretsManagerImpl {
	return &SecretsManagerImpl{
		client: secretsmanager.NewFromConfig(cfg),
		logger: logger,
	}
}

// NewSecretsManagerWithClient creates a Secrets Manager backed service with a custom client (for testing).
func NewSecretsManagerWithClient(logger zerolog.Logger, client SecretsManagerAPI) *SecretsManagerImpl {
	return &SecretsManagerImpl{
		client: client,
		logger: logger,
	}
}

// GetSecret returns the string value of the secret id.
func (s *SecretsManagerImpl) GetSecret(ctx context.Context, id string) (string, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(id),
	})
	if err != nil {
		var notFound *smtypes.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return "", apperr.New(apperr.KindConfiguration, fmt.Sprintf("secret %s not found", id), err)
		}
		return "", apperr.New(apperr.KindProvider, fmt.Sprintf("reading secret %s", id), err)
	}

	value := aws.ToString(out.SecretString)
	if value == "" {
		return "", apperr.New(apperr.KindConfiguration, fmt.Sprintf("secret %s has no string value", id), nil)
	}

	s.logger.Debug().Str("secret_id", id).Msg("secret resolved")
	return value, nil
}
