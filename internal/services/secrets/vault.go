package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fgeck/mysql-dr-dump/internal/apperr"
	"github.com/fgeck/mysql-dr-dump/internal/models"
	"github.com/hashicorp/vault/api"
	"github.com/rs/zerolog"
)

const defaultVaultMount = "secret"

// KVReader reads KV v2 secrets. *api.KVv2 satisfies it.
type KVReader interface {
	Get(ctx context.Context, secretPath string) (*api.KVSecret, error)
}

// VaultImpl reads secrets from a HashiCorp Vault KV v2 mount.
type VaultImpl struct {
	kv     KVReader
	field  string
	logger zerolog.Logger
}

// NewVault creates a Vault backed service. The token falls back to VAULT_TOKEN.
func NewVault(logger zerolog.Logger, cfg models.VaultConfig) (*VaultImpl, error) {
	vaultConfig := api.DefaultConfig()
	if cfg.Address != "" {
		vaultConfig.Address = cfg.Address
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, apperr.New(apperr.KindConfiguration, "failed to create vault client", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}

	mount := cfg.Mount
	if mount == "" {
		mount = defaultVaultMount
	}

	return NewVaultWithReader(logger, client.KVv2(mount), cfg.Field), nil
}

// NewVaultWithReader creates a Vault backed service with a custom reader (for testing).
func NewVaultWithReader(logger zerolog.Logger, kv KVReader, field string) *VaultImpl {
	return &VaultImpl{
		kv:     kv,
		field:  field,
		logger: logger,
	}
}

// GetSecret returns the configured field of the secret at id. When the
// field is absent the whole data map is returned as JSON, so structured
// secrets such as credentials can be stored as plain KV pairs.
func (s *VaultImpl) GetSecret(ctx context.Context, id string) (string, error) {
	secret, err := s.kv.Get(ctx, id)
	if err != nil {
		if errors.Is(err, api.ErrSecretNotFound) {
			return "", apperr.New(apperr.KindConfiguration, fmt.Sprintf("secret %s not found", id), err)
		}
		return "", apperr.New(apperr.KindProvider, fmt.Sprintf("reading secret %s", id), err)
	}
	if secret == nil || len(secret.Data) == 0 {
		return "", apperr.New(apperr.KindConfiguration, fmt.Sprintf("secret %s has no data", id), nil)
	}

	if s.field != "" {
		if val, ok := secret.Data[s.field]; ok {
			str, isString := val.(string)
			if !isString || str == "" {
				return "", apperr.New(apperr.KindConfiguration, fmt.Sprintf("field %q of secret %s is not a non-empty string", s.field, id), nil)
			}
			s.logger.Debug().Str("secret_id", id).Msg("secret resolved")
			return str, nil
		}
	}

	data, err := json.Marshal(secret.Data)
	if err != nil {
		return "", apperr.New(apperr.KindConfiguration, fmt.Sprintf("encoding secret %s", id), err)
	}
	s.logger.Debug().Str("secret_id", id).Msg("secret resolved")
	return string(data), nil
}
