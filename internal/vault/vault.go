// internal/vault/vault.go
//
// Vault client wrapper used by the configuration loader.
//
// Context
// -------
//   - Wraps the HashiCorp Vault Go SDK behind one small type.
//   - Keeps the token alive with a lifetime watcher and caches KV-v2 reads
//     per `path#key` for a caller-chosen TTL.
//
// Public workflow
// ---------------
//  1. cli, err := vault.New(ctx, log.Printf)       // during boot.
//  2. pw,  err := cli.GetKV(ctx, path, key, ttl)   // resolve a secret.
//
// Environment: VAULT_ADDR and VAULT_TOKEN (or ~/.vault-token), read by the SDK.
package vault

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	vault "github.com/hashicorp/vault/api"
)

// Client is safe for concurrent use.  Zero value is invalid.
type Client struct {
	api   *vault.Client
	logFn func(string, ...any)

	mu    sync.RWMutex
	cache map[string]cached
}

type cached struct {
	val string
	exp time.Time
}

// New constructs a client from the environment and starts token renewal,
// which stops when ctx is done.
func New(ctx context.Context, logFn func(string, ...any)) (*Client, error) {
	if logFn == nil {
		logFn = func(string, ...any) {}
	}

	cfg := vault.DefaultConfig()
	if err := cfg.ReadEnvironment(); err != nil {
		return nil, fmt.Errorf("vault env cfg: %w", err)
	}
	apiCli, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault api: %w", err)
	}

	c := &Client{api: apiCli, logFn: logFn, cache: make(map[string]cached)}
	go c.keepAlive(ctx)
	return c, nil
}

// GetKV fetches one key of a KV-v2 secret.  secretPath is "<mount>/<rel>".
// With ttl > 0 the value is served from cache until it expires.
func (c *Client) GetKV(ctx context.Context, secretPath, key string, ttl time.Duration) (string, error) {
	if secretPath == "" || key == "" {
		return "", errors.New("vault: secret path and key must be non-empty")
	}
	ck := secretPath + "#" + key

	if ttl > 0 {
		c.mu.RLock()
		hit, ok := c.cache[ck]
		c.mu.RUnlock()
		if ok && time.Now().Before(hit.exp) {
			return hit.val, nil
		}
	}

	mount, rel, _ := strings.Cut(secretPath, "/")
	sec, err := c.api.KVv2(mount).Get(ctx, rel)
	if err != nil {
		return "", fmt.Errorf("vault get %s: %w", secretPath, err)
	}
	raw, ok := sec.Data[key]
	if !ok {
		return "", fmt.Errorf("vault: key %q not found in %q", key, secretPath)
	}
	val, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("vault: %s is not a string", ck)
	}

	if ttl > 0 {
		c.mu.Lock()
		c.cache[ck] = cached{val: val, exp: time.Now().Add(ttl)}
		c.mu.Unlock()
	}
	return val, nil
}

// keepAlive renews the client token for as long as ctx lives.  Tokens that
// are not renewable are probed again hourly.
func (c *Client) keepAlive(ctx context.Context) {
	for ctx.Err() == nil {
		sec, err := c.api.Auth().Token().RenewSelfWithContext(ctx, 0)
		if err != nil {
			c.logFn("vault: token renew failed: %v", err)
			sleep(ctx, 30*time.Second)
			continue
		}
		if sec == nil || sec.Auth == nil || !sec.Auth.Renewable {
			sleep(ctx, time.Hour)
			continue
		}

		w, err := c.api.NewLifetimeWatcher(&vault.LifetimeWatcherInput{Secret: sec})
		if err != nil {
			c.logFn("vault: watcher init failed: %v", err)
			sleep(ctx, 30*time.Second)
			continue
		}
		go w.Start()
		c.watch(ctx, w)
		w.Stop()
		sleep(ctx, 15*time.Second)
	}
}

func (c *Client) watch(ctx context.Context, w *vault.LifetimeWatcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-w.DoneCh():
			if err != nil {
				c.logFn("vault: token renewal stopped: %v", err)
			}
			return
		case ev := <-w.RenewCh():
			if ev != nil && ev.Secret != nil && ev.Secret.Auth != nil {
				c.logFn("vault: token renewed, ttl=%ds", ev.Secret.Auth.LeaseDuration)
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
