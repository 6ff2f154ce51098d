// Package secrets resolves database passwords and project credentials from
// a secret backend.
package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/fgeck/mysql-dr-dump/internal/apperr"
	"github.com/fgeck/mysql-dr-dump/internal/models"
	"github.com/rs/zerolog"
)

// Backend names.
const (
	BackendSecretsManager = "secretsmanager"
	BackendVault          = "vault"
)

// Service defines the interface for secret lookups.
type Service interface {
	GetSecret(ctx context.Context, id string) (string, error)
}

// New creates the secret service selected by settings. cfg is only used by
// the Secrets Manager backend.
func New(logger zerolog.Logger, settings models.SecretsSettings, cfg aws.Config) (Service, error) {
	switch settings.Backend {
	case "", BackendSecretsManager:
		return NewSecretsManager(logger, cfg), nil
	case BackendVault:
		if settings.Vault == nil {
			return nil, apperr.New(apperr.KindConfiguration, "vault backend selected without vault settings", nil)
		}
		return NewVault(logger, *settings.Vault)
	default:
		return nil, apperr.New(apperr.KindConfiguration, fmt.Sprintf("unknown secrets backend %q", settings.Backend), nil)
	}
}

// DatabaseSecretID returns the id of the password secret for a source database.
func DatabaseSecretID(prefix, projectID, dbID string) string {
	return joinID(prefix, projectID, "source", "db", dbID)
}

// CredentialSecretID returns the id of a project's source credential.
func CredentialSecretID(prefix, projectID string) string {
	return joinID(prefix, projectID, "credential")
}

func joinID(parts ...string) string {
	trimmed := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.Trim(p, "/"); p != "" {
			trimmed = append(trimmed, p)
		}
	}
	return strings.Join(trimmed, "/")
}

// GetCredential reads and decodes the source credential of projectID.
func GetCredential(ctx context.Context, svc Service, prefix, projectID string) (*models.Credential, error) {
	if projectID == "" {
		return nil, apperr.New(apperr.KindValidation, "project id is required", nil)
	}

	id := CredentialSecretID(prefix, projectID)
	raw, err := svc.GetSecret(ctx, id)
	if err != nil {
		return nil, err
	}

	var cred models.Credential
	if err := json.Unmarshal([]byte(raw), &cred); err != nil {
		// The payload is secret material; never include it in the error.
		return nil, apperr.New(apperr.KindConfiguration, fmt.Sprintf("credential %s is not valid JSON", id), nil)
	}

	hasKeys := cred.AccessKeyID != "" && cred.SecretAccessKey != ""
	if !hasKeys && cred.RoleARN == "" {
		return nil, apperr.New(apperr.KindConfiguration, fmt.Sprintf("credential %s has neither access keys nor a role", id), nil)
	}
	return &cred, nil
}
