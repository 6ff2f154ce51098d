// Package awsenv builds AWS configurations for the two credential scopes:
// the management scope (ambient default chain) and a project's source scope.
package awsenv

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/fgeck/mysql-dr-dump/internal/apperr"
	"github.com/fgeck/mysql-dr-dump/internal/models"
	"github.com/google/uuid"
)

const sessionNamePrefix = "dbdump-"

// LoadDefault returns the management scope configuration. An empty region
// leaves region resolution to the SDK default chain.
func LoadDefault(ctx context.Context, region string) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, apperr.New(apperr.KindConfiguration, "loading default AWS configuration", err)
	}
	return cfg, nil
}

// LoadSource returns the source scope configuration for region built only
// from cred. Static keys become the base credentials; a role ARN is then
// assumed on top of them.
func LoadSource(ctx context.Context, region string, cred models.Credential) (aws.Config, error) {
	if region == "" {
		return aws.Config{}, apperr.New(apperr.KindValidation, "source region is required", nil)
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cred.AccessKeyID != "" && cred.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cred.AccessKeyID, cred.SecretAccessKey, cred.SessionToken),
		))
	} else if cred.RoleARN == "" {
		return aws.Config{}, apperr.New(apperr.KindConfiguration, "source credential has neither access keys nor a role", nil)
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, apperr.New(apperr.KindConfiguration, "loading source AWS configuration", err)
	}

	if cred.RoleARN != "" {
		provider := stscreds.NewAssumeRoleProvider(sts.NewFromConfig(cfg), cred.RoleARN, func(o *stscreds.AssumeRoleOptions) {
			o.RoleSessionName = sessionNamePrefix + uuid.NewString()
			if cred.ExternalID != "" {
				o.ExternalID = aws.String(cred.ExternalID)
			}
		})
		cfg.Credentials = aws.NewCredentialsCache(provider)
	}

	return cfg, nil
}
