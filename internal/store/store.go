// internal/store/store.go
//
// Persistent session store.
//
// Context
// -------
// Every browser session owns a small key/value namespace (its "scope",
// the session cookie id).  The auth session manager is the only writer of
// the auth keys below; nothing else in the process touches them.
//
// The contract is deliberately tiny: Get, Set, Remove.  No validation
// happens here.  The only failure a caller can observe is "storage
// unavailable", reported as an error matching ErrUnavailable, which callers
// tolerate by falling back to the unauthenticated state.
//
// Backends
// --------
// One Backend serves every scope of the process:
//
//	memory – map guarded by a RWMutex (tests, development)
//	file   – one JSON document, rewritten atomically
//	mysql  – sqlx + go-sql-driver/mysql, table session_kv
//	sqlite – sqlx + modernc.org/sqlite,  table session_kv
//	redis  – go-redis, one hash per scope
//
// Open(ctx, cfg) picks the backend from configuration; Scope(b, id) hands
// out the per-session view.
package store

import (
	"context"
	"errors"
	"fmt"
)

// Keys owned by the auth session manager.
const (
	KeyAuthToken = "authToken"
	KeyAuthState = "authState"
	KeyUsername  = "username"
)

// AuthStateTrue is the only value ever written under KeyAuthState.
const AuthStateTrue = "true"

// ErrUnavailable marks every storage failure.
var ErrUnavailable = errors.New("session storage unavailable")

// Store is the key/value view of one browser session.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Backend is the process-wide storage shared by all scopes.
type Backend interface {
	Load(ctx context.Context, scope, key string) (string, bool, error)
	Save(ctx context.Context, scope, key, value string) error
	Delete(ctx context.Context, scope, key string) error
	Close() error
}

// Scope returns the Store for one session id.  Backend errors come back
// wrapped so that errors.Is(err, ErrUnavailable) holds.
func Scope(b Backend, scope string) Store {
	return &scoped{b: b, scope: scope}
}

type scoped struct {
	b     Backend
	scope string
}

func (s *scoped) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := s.b.Load(ctx, s.scope, key)
	if err != nil {
		return "", false, unavailable("get", key, err)
	}
	return v, ok, nil
}

func (s *scoped) Set(ctx context.Context, key, value string) error {
	if err := s.b.Save(ctx, s.scope, key, value); err != nil {
		return unavailable("set", key, err)
	}
	return nil
}

func (s *scoped) Remove(ctx context.Context, key string) error {
	if err := s.b.Delete(ctx, s.scope, key); err != nil {
		return unavailable("remove", key, err)
	}
	return nil
}

func unavailable(op, key string, err error) error {
	if errors.Is(err, ErrUnavailable) {
		return fmt.Errorf("store %s %q: %w", op, key, err)
	}
	return fmt.Errorf("store %s %q: %w: %w", op, key, ErrUnavailable, err)
}
