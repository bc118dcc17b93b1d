// internal/config/secrets.go
//
// `vault:` reference resolution.
//
// A secret-bearing field may hold `vault:<mount>/<path>#<key>` instead of a
// literal.  resolveSecrets swaps every such reference for the KV-v2 value.
// The Vault client is created lazily, only when at least one reference is
// present, so development setups never need VAULT_ADDR.

package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yanizio/bookshelf/internal/vault"
)

const (
	vaultPrefix = "vault:"
	secretTTL   = 10 * time.Minute
)

// ErrBadSecretRef is returned for a `vault:` value without a `#key` part.
var ErrBadSecretRef = errors.New("malformed vault reference")

// SecretSource is the subset of *vault.Client the resolver needs.
type SecretSource interface {
	GetKV(ctx context.Context, secretPath, key string, ttl time.Duration) (string, error)
}

// secretFields lists every field that may carry a vault reference.
func secretFields(c *Config) map[string]*string {
	return map[string]*string{
		"http.csrf_key":        &c.HTTP.CSRFKey,
		"store.dsn":            &c.Store.DSN,
		"store.redis_password": &c.Store.RedisPassword,
	}
}

// resolveSecrets rewrites vault references in place.  src may be nil; a
// Vault client is then built from the environment on first use.
func resolveSecrets(ctx context.Context, c *Config, src SecretSource) error {
	for name, ptr := range secretFields(c) {
		if !strings.HasPrefix(*ptr, vaultPrefix) {
			continue
		}
		path, key, ok := strings.Cut(strings.TrimPrefix(*ptr, vaultPrefix), "#")
		if !ok || path == "" || key == "" {
			return fmt.Errorf("%s: %w", name, ErrBadSecretRef)
		}
		if src == nil {
			if os.Getenv("VAULT_ADDR") == "" {
				return fmt.Errorf("%s references vault but VAULT_ADDR is not set", name)
			}
			cli, err := vault.New(ctx, zap.S().Infof)
			if err != nil {
				return err
			}
			src = cli
		}
		val, err := src.GetKV(ctx, path, key, secretTTL)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*ptr = val
		zap.S().Debugw("config secret resolved", "field", name)
	}
	return nil
}
