package config

import (
	"context"
	"fmt"
	"os"

	vault "github.com/hashicorp/vault/api"
	"github.com/rs/zerolog/log"
)

// VaultClient wraps the HashiCorp Vault client for resolving provider API
// keys and the store DSN, mirroring cryptofunk's internal/config/secrets.go
// Vault integration, trimmed to this engine's two secret classes.
type VaultClient struct {
	client *vault.Client
	cfg    VaultConfig
}

// NewVaultClient creates a Vault client from configuration. Token
// authentication only; this engine has no Kubernetes/AppRole deployment
// target, unlike the teacher's multi-tenant agent fleet.
func NewVaultClient(cfg VaultConfig) (*VaultClient, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("vault is not enabled in configuration")
	}

	vc := vault.DefaultConfig()
	vc.Address = cfg.Address
	client, err := vault.NewClient(vc)
	if err != nil {
		return nil, fmt.Errorf("create vault client: %w", err)
	}

	token := cfg.Token
	if token == "" {
		token = os.Getenv("VAULT_TOKEN")
	}
	if token == "" {
		return nil, fmt.Errorf("VAULT_TOKEN not set")
	}
	client.SetToken(token)

	return &VaultClient{client: client, cfg: cfg}, nil
}

// GetSecretString retrieves a single string value from a KV v2 secret.
func (vc *VaultClient) GetSecretString(ctx context.Context, path, key string) (string, error) {
	fullPath := fmt.Sprintf("%s/data/%s/%s", vc.cfg.MountPath, vc.cfg.SecretPath, path)
	secret, err := vc.client.Logical().ReadWithContext(ctx, fullPath)
	if err != nil {
		return "", fmt.Errorf("read secret %s: %w", fullPath, err)
	}
	if secret == nil {
		return "", fmt.Errorf("secret not found at %s", fullPath)
	}
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		data = secret.Data
	}
	value, ok := data[key].(string)
	if !ok {
		return "", fmt.Errorf("key %q not found at %s", key, fullPath)
	}
	return value, nil
}

// ResolveProviderSecrets fills each provider's API key from Vault when
// enabled, falling back to the provider's configured environment variable,
// exactly the fallback order EXPANSION A documents.
func ResolveProviderSecrets(ctx context.Context, cfg *Config) map[string]string {
	keys := make(map[string]string, len(cfg.Providers))

	var vc *VaultClient
	if cfg.Vault.Enabled {
		var err error
		vc, err = NewVaultClient(cfg.Vault)
		if err != nil {
			log.Warn().Err(err).Msg("vault unavailable, falling back to environment variables for provider keys")
			vc = nil
		}
	}

	for name, p := range cfg.Providers {
		if vc != nil {
			if key, err := vc.GetSecretString(ctx, "providers/"+name, "api_key"); err == nil && key != "" {
				keys[name] = key
				continue
			}
		}
		if p.APIKeyEnv != "" {
			keys[name] = os.Getenv(p.APIKeyEnv)
		}
	}
	return keys
}

// ResolveDatabaseURL prefers Vault, then the configured DSN, then
// DATABASE_URL, matching cryptofunk/internal/db.New's fallback order.
func ResolveDatabaseURL(ctx context.Context, cfg *Config) string {
	if cfg.Vault.Enabled {
		if vc, err := NewVaultClient(cfg.Vault); err == nil {
			if dsn, err := vc.GetSecretString(ctx, "database", "dsn"); err == nil && dsn != "" {
				return dsn
			}
		}
	}
	if cfg.Store.DatabaseURL != "" {
		return cfg.Store.DatabaseURL
	}
	return os.Getenv("DATABASE_URL")
}
