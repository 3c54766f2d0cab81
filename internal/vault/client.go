// Package vault retrieves provider API keys, the Telegram alert bot
// token, and store connection secrets from HashiCorp Vault's KV v2
// engine, so none of it needs to sit in plaintext config files.
//
// ============================================================================
// SECURITY NOTICE
// ============================================================================
// For LOCAL DEVELOPMENT:
//   - Uses VAULT_DEV_TOKEN environment variable (predictable, insecure)
//   - Vault runs in dev mode with no authentication required
//
// For PRODUCTION:
//   - Use VAULT_TOKEN with proper AppRole/Kubernetes authentication
//   - Enable TLS for Vault communication (VAULT_ADDR should use https://)
//   - Implement secret rotation and lease management
//
// NEVER use development tokens in production environments.
// ============================================================================
package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var insecureDevTokens = map[string]bool{
	"solarb-dev-token": true,
	"root":             true,
	"dev":               true,
	"test":              true,
}

// Client retrieves secrets from Vault's KV v2 engine, caching each path
// for a configurable TTL.
type Client struct {
	address    string
	token      string
	httpClient *http.Client
	log        zerolog.Logger

	cacheMu  sync.RWMutex
	cache    map[string]*cachedSecret
	cacheTTL time.Duration
}

type cachedSecret struct {
	data      map[string]interface{}
	expiresAt time.Time
}

type secretData struct {
	Data map[string]interface{} `json:"data"`
}

type secretResponse struct {
	Data   *secretData `json:"data"`
	Errors []string    `json:"errors"`
}

// Config holds Vault client configuration.
type Config struct {
	Address  string
	Token    string
	CacheTTL time.Duration
	Timeout  time.Duration
}

// NewClient builds a Vault client, falling back to VAULT_ADDR/VAULT_TOKEN/
// VAULT_DEV_TOKEN environment variables for anything left unset in cfg.
func NewClient(cfg Config, log zerolog.Logger) (*Client, error) {
	log = log.With().Str("component", "vault").Logger()

	if cfg.Address == "" {
		cfg.Address = os.Getenv("VAULT_ADDR")
		if cfg.Address == "" {
			cfg.Address = "http://localhost:8200"
		}
	}

	tokenSource := "config"
	if cfg.Token == "" {
		cfg.Token = os.Getenv("VAULT_TOKEN")
		if cfg.Token != "" {
			tokenSource = "VAULT_TOKEN"
		} else {
			cfg.Token = os.Getenv("VAULT_DEV_TOKEN")
			if cfg.Token != "" {
				tokenSource = "VAULT_DEV_TOKEN"
			}
		}
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("vault token is required (set VAULT_TOKEN or VAULT_DEV_TOKEN)")
	}

	if insecureDevTokens[cfg.Token] {
		log.Warn().Str("token_source", tokenSource).Msg("using a known insecure development token, do not use in production")
	}
	if strings.HasPrefix(cfg.Address, "http://") && !strings.Contains(cfg.Address, "localhost") && !strings.Contains(cfg.Address, "127.0.0.1") {
		log.Warn().Str("vault_addr", cfg.Address).Msg("unencrypted http connection to a non-localhost vault address")
	}

	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	log.Info().Str("vault_addr", cfg.Address).Str("token_source", tokenSource).Dur("cache_ttl", cfg.CacheTTL).Msg("vault client initialized")

	return &Client{
		address:    cfg.Address,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log,
		cache:      make(map[string]*cachedSecret),
		cacheTTL:   cfg.CacheTTL,
	}, nil
}

// GetSecret fetches a KV v2 secret (path already includes the mount's
// "data" segment, e.g. "solarb/data/production").
func (c *Client) GetSecret(ctx context.Context, path string) (map[string]interface{}, error) {
	if cached := c.getCached(path); cached != nil {
		return cached, nil
	}

	url := fmt.Sprintf("%s/v1/%s", c.address, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build vault request: %w", err)
	}
	req.Header.Set("X-Vault-Token", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch secret from vault: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read vault response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vault returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed secretResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse vault secret response: %w", err)
	}
	if len(parsed.Errors) > 0 {
		return nil, fmt.Errorf("vault errors: %v", parsed.Errors)
	}
	if parsed.Data == nil || parsed.Data.Data == nil {
		return nil, fmt.Errorf("secret not found at path: %s", path)
	}

	c.setCached(path, parsed.Data.Data)
	return parsed.Data.Data, nil
}

// GetSecretString retrieves one string-valued key from a secret.
func (c *Client) GetSecretString(ctx context.Context, path, key string) (string, error) {
	data, err := c.GetSecret(ctx, path)
	if err != nil {
		return "", err
	}
	value, ok := data[key]
	if !ok {
		return "", fmt.Errorf("key %q not found in secret at %s", key, path)
	}
	strValue, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("key %q is not a string at %s", key, path)
	}
	return strValue, nil
}

func (c *Client) getCached(path string) map[string]interface{} {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()
	cached, ok := c.cache[path]
	if !ok || time.Now().After(cached.expiresAt) {
		return nil
	}
	return cached.data
}

func (c *Client) setCached(path string, data map[string]interface{}) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	c.cache[path] = &cachedSecret{data: data, expiresAt: time.Now().Add(c.cacheTTL)}
}

// Health reports whether Vault is reachable and unsealed.
func (c *Client) Health(ctx context.Context) error {
	url := fmt.Sprintf("%s/v1/sys/health", c.address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build vault health request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("vault is not healthy: status %d", resp.StatusCode)
	}
	return nil
}

// ProviderSecrets holds one quote provider's credentials, fetched in
// place of config.ProviderConfig.APIKeyEnv reading a plaintext env var.
type ProviderSecrets struct {
	APIKey    string
	APISecret string
}

// GetProviderSecrets reads {api_key, api_secret} for one provider name
// from "<mountPath>/data/<secretPath>/providers/<name>".
func (c *Client) GetProviderSecrets(ctx context.Context, mountPath, secretPath, providerName string) (ProviderSecrets, error) {
	path := fmt.Sprintf("%s/data/%s/providers/%s", mountPath, secretPath, providerName)
	data, err := c.GetSecret(ctx, path)
	if err != nil {
		return ProviderSecrets{}, err
	}
	var s ProviderSecrets
	if v, ok := data["api_key"].(string); ok {
		s.APIKey = v
	}
	if v, ok := data["api_secret"].(string); ok {
		s.APISecret = v
	}
	return s, nil
}

// GetAlertsSecrets reads the Telegram alert bot token from
// "<mountPath>/data/<secretPath>/alerts".
func (c *Client) GetAlertsSecrets(ctx context.Context, mountPath, secretPath string) (string, error) {
	path := fmt.Sprintf("%s/data/%s/alerts", mountPath, secretPath)
	return c.GetSecretString(ctx, path, "telegram_bot_token")
}

// GetDatabaseURL reads the store's Postgres connection string from
// "<mountPath>/data/<secretPath>/database".
func (c *Client) GetDatabaseURL(ctx context.Context, mountPath, secretPath string) (string, error) {
	path := fmt.Sprintf("%s/data/%s/database", mountPath, secretPath)
	return c.GetSecretString(ctx, path, "database_url")
}
