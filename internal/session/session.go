// internal/session/session.go
//
// Auth session manager.
//
// Context
//   One Manager exists per browser session.  It exclusively owns the
//   session's authentication state and the auth keys of its store scope:
//
//      Anonymous                    – no token
//      Authenticated(token, user)   – token non-empty
//
//   The invariant Authenticated ⇔ token != "" holds for the in-memory state
//   at all times and for the store after every committed transition.
//
//   Transitions (Login, Register, Logout, DeleteAccount, and the forced
//   logout run by the API client's 401 hook) are serialised by a weight-1
//   semaphore.  Each one commits its store writes detached from the
//   caller's cancellation, so an aborted request never leaves half a
//   session behind.  Subscribers are notified in commit order while the
//   transition still holds the semaphore.
//
// Style
//   Two-space sentence spacing, Oxford comma, terse inline notes.
//
//------------------------------------------------------------------------------

package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/yanizio/bookshelf/internal/api"
	"github.com/yanizio/bookshelf/internal/metrics"
	"github.com/yanizio/bookshelf/internal/store"
)

// Navigation targets signalled by transitions.
const (
	HomePath  = "/"
	LoginPath = "/login"
)

// NoticeRegistered is shown after a registration that did not log in.
const NoticeRegistered = "Registration succeeded, please log in."

var (
	ErrAlreadyAuthenticated = errors.New("session is already authenticated")
	ErrNotAuthenticated     = errors.New("session is not authenticated")
)

// State is a snapshot of the session.
type State struct {
	Authenticated bool
	Token         string
	Username      string
}

// Outcome tells the caller where to send the browser next.
type Outcome struct {
	Navigate string
	Notice   string
}

// Event is delivered to subscribers after every committed transition.
type Event struct {
	Transition string // login, register, logout, forced_logout, delete_account
	State      State
	Navigate   string
}

// Manager is safe for concurrent use.
type Manager struct {
	store  store.Store
	client *api.Client
	bound  *api.Client
	log    *zap.SugaredLogger
	sem    *semaphore.Weighted

	mu      sync.RWMutex
	state   State
	pending string

	subMu  sync.Mutex
	subs   []subscriber
	nextID uint64
}

type subscriber struct {
	id uint64
	fn func(Event)
}

// New restores the session from st.  A token without the auth flag, or the
// flag without a token, is repaired to match the invariant.  When st is
// unavailable the session starts Anonymous.
func New(ctx context.Context, st store.Store, client *api.Client, log *zap.SugaredLogger) *Manager {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	m := &Manager{
		store:  st,
		client: client,
		log:    log,
		sem:    semaphore.NewWeighted(1),
	}
	m.bound = client.Bind(m, m.forcedLogout)
	m.restore(ctx)
	return m
}

func (m *Manager) restore(ctx context.Context) {
	tok, hasTok, err := m.store.Get(ctx, store.KeyAuthToken)
	if err != nil {
		m.log.Warnw("session store unavailable, starting anonymous", "err", err)
		return
	}
	flag, hasFlag, err := m.store.Get(ctx, store.KeyAuthState)
	if err != nil {
		m.log.Warnw("session store unavailable, starting anonymous", "err", err)
		return
	}
	user, hasUser, err := m.store.Get(ctx, store.KeyUsername)
	if err != nil {
		m.log.Warnw("session store unavailable, starting anonymous", "err", err)
		return
	}

	if hasTok && tok != "" {
		m.state = State{Authenticated: true, Token: tok, Username: user}
		if !hasFlag || flag != store.AuthStateTrue {
			m.log.Infow("session repaired: token without auth flag")
			if err := m.store.Set(ctx, store.KeyAuthState, store.AuthStateTrue); err != nil {
				m.log.Warnw("session repair failed", "err", err)
			}
		}
		return
	}
	if hasTok || hasFlag || hasUser {
		m.log.Infow("session repaired: stale auth keys without token")
		m.clearStore(ctx)
	}
}

/*──────────────────────────── read side ─────────────────────────────────*/

// State returns a snapshot.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) IsAuthenticated() bool { return m.State().Authenticated }

// CurrentUser returns the username of an authenticated session.
func (m *Manager) CurrentUser() (string, bool) {
	s := m.State()
	return s.Username, s.Authenticated
}

// AuthToken implements api.TokenSource.
func (m *Manager) AuthToken() (string, bool) {
	s := m.State()
	return s.Token, s.Authenticated
}

// API returns the backend client bound to this session: it sends the
// current token and turns a 401 into a forced logout.  Must not be used
// from a subscriber.
func (m *Manager) API() *api.Client { return m.bound }

// RememberDestination records path for the next successful login.
func (m *Manager) RememberDestination(path string) {
	m.mu.Lock()
	m.pending = path
	m.mu.Unlock()
}

// PendingDestination returns the recorded destination without consuming it.
func (m *Manager) PendingDestination() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pending
}

// TakePendingDestination returns and clears the recorded destination.
func (m *Manager) TakePendingDestination() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.pending
	m.pending = ""
	return p
}

// Subscribe registers fn for every committed transition.  fn runs while
// the transition holds the session, so it must not start a transition or
// call the bound API client.
func (m *Manager) Subscribe(fn func(Event)) (cancel func()) {
	m.subMu.Lock()
	m.nextID++
	id := m.nextID
	m.subs = append(m.subs, subscriber{id: id, fn: fn})
	m.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.subMu.Lock()
			defer m.subMu.Unlock()
			for i, s := range m.subs {
				if s.id == id {
					m.subs = append(m.subs[:i], m.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Subscribers reports how many subscriptions are live.
func (m *Manager) Subscribers() int {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	return len(m.subs)
}

/*──────────────────────────── internals ─────────────────────────────────*/

// commit installs s and notifies subscribers.  Caller holds m.sem.
func (m *Manager) commit(transition string, s State, navigate string) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()

	m.subMu.Lock()
	subs := make([]subscriber, len(m.subs))
	copy(subs, m.subs)
	m.subMu.Unlock()

	ev := Event{Transition: transition, State: s, Navigate: navigate}
	for _, sub := range subs {
		sub.fn(ev)
	}
}

// persist writes an authenticated session.  On failure the keys already
// written are removed again.
func (m *Manager) persist(ctx context.Context, token, username string) error {
	writes := [...][2]string{
		{store.KeyAuthToken, token},
		{store.KeyUsername, username},
		{store.KeyAuthState, store.AuthStateTrue},
	}
	for _, kv := range writes {
		if err := m.store.Set(ctx, kv[0], kv[1]); err != nil {
			m.clearStore(ctx)
			return err
		}
	}
	return nil
}

// clearStore removes every auth key, logging failures.
func (m *Manager) clearStore(ctx context.Context) {
	for _, k := range [...]string{store.KeyAuthToken, store.KeyAuthState, store.KeyUsername} {
		if err := m.store.Remove(ctx, k); err != nil {
			m.log.Warnw("session store clear failed", "key", k, "err", err)
		}
	}
}

func (m *Manager) acquire(ctx context.Context) error {
	return m.sem.Acquire(ctx, 1)
}

func (m *Manager) release() { m.sem.Release(1) }

func observe(transition, result string) {
	metrics.AuthTransitionsTotal.WithLabelValues(transition, result).Inc()
}
