package session

import (
	"context"
	"errors"
	"net/http"

	"github.com/yanizio/bookshelf/internal/api"
	"github.com/yanizio/bookshelf/internal/form"
)

// Credentials is the login form.
type Credentials struct {
	Username string `form:"username" validate:"required,max=50"`
	Password string `form:"password" validate:"required,max=128"`
}

// Signup is the registration form.
type Signup struct {
	Username        string `form:"username" validate:"required,max=50"`
	Email           string `form:"email" validate:"required,email,max=254"`
	Password        string `form:"password" validate:"required,max=128"`
	ConfirmPassword string `form:"confirm_password" validate:"eqfield=Password"`
}

const invalidCredentials = "Invalid username or password."

// Login authenticates an Anonymous session.  Rejected credentials come back
// as a ClientError and leave the session Anonymous.
func (m *Manager) Login(ctx context.Context, c Credentials) (Outcome, error) {
	if err := form.Check("Login", c); err != nil {
		observe("login", "invalid")
		return Outcome{}, err
	}
	if err := m.acquire(ctx); err != nil {
		return Outcome{}, err
	}
	defer m.release()

	if m.State().Authenticated {
		observe("login", "rejected")
		return Outcome{}, ErrAlreadyAuthenticated
	}

	res, err := m.client.Login(ctx, c.Username, c.Password)
	if err != nil {
		observe("login", "failed")
		var e *api.Error
		if errors.As(err, &e) && (e.Kind == api.Unauthorized || e.Status == http.StatusNotFound) {
			return Outcome{}, &api.Error{Op: "Login", Kind: api.ClientError, Status: e.Status, Detail: invalidCredentials, Err: err}
		}
		return Outcome{}, err
	}

	user := res.User.Username
	if user == "" {
		user = c.Username
	}
	return m.authenticate(ctx, "login", res.Token, user)
}

// Register creates an account.  When the backend returns a token the
// session is authenticated exactly as on Login; otherwise it stays
// Anonymous and the outcome sends the browser to the login page with
// NoticeRegistered.
func (m *Manager) Register(ctx context.Context, s Signup) (Outcome, error) {
	if err := form.Check("Register", s); err != nil {
		observe("register", "invalid")
		return Outcome{}, err
	}
	if err := m.acquire(ctx); err != nil {
		return Outcome{}, err
	}
	defer m.release()

	if m.State().Authenticated {
		observe("register", "rejected")
		return Outcome{}, ErrAlreadyAuthenticated
	}

	res, err := m.client.Register(ctx, api.Registration{
		Username: s.Username,
		Email:    s.Email,
		Password: s.Password,
	})
	if err != nil {
		observe("register", "failed")
		return Outcome{}, err
	}
	if res.Token == "" {
		observe("register", "ok")
		m.log.Infow("account registered", "user", s.Username)
		return Outcome{Navigate: LoginPath, Notice: NoticeRegistered}, nil
	}

	user := res.User.Username
	if user == "" {
		user = s.Username
	}
	return m.authenticate(ctx, "register", res.Token, user)
}

// authenticate persists and commits an authenticated state.  Caller holds
// m.sem.
func (m *Manager) authenticate(ctx context.Context, transition, token, user string) (Outcome, error) {
	cctx := context.WithoutCancel(ctx)
	if err := m.persist(cctx, token, user); err != nil {
		observe(transition, "store_failed")
		m.log.Warnw("session store write failed, staying anonymous", "err", err)
		return Outcome{}, err
	}

	dest := m.TakePendingDestination()
	if dest == "" {
		dest = HomePath
	}
	m.commit(transition, State{Authenticated: true, Token: token, Username: user}, dest)
	observe(transition, "ok")
	m.log.Infow("session authenticated", "user", user, "via", transition)
	return Outcome{Navigate: dest}, nil
}

// Logout ends the session.  The backend call is best effort; the local
// transition always happens.  Logging out an Anonymous session is a no-op
// apart from clearing stray keys.
func (m *Manager) Logout(ctx context.Context) (Outcome, error) {
	if err := m.acquire(ctx); err != nil {
		return Outcome{}, err
	}
	defer m.release()

	cur := m.State()
	cctx := context.WithoutCancel(ctx)
	if !cur.Authenticated {
		m.clearStore(cctx)
		observe("logout", "noop")
		return Outcome{Navigate: HomePath}, nil
	}

	if err := m.client.WithToken(cur.Token).Logout(ctx); err != nil {
		m.log.Warnw("backend logout failed, clearing session anyway", "err", err)
	}

	m.end(cctx, "logout", HomePath)
	observe("logout", "ok")
	return Outcome{Navigate: HomePath}, nil
}

// DeleteAccount deletes the backend account and ends the session without
// calling Logout.  A 401 ends the session as a forced logout would.
func (m *Manager) DeleteAccount(ctx context.Context) (Outcome, error) {
	if err := m.acquire(ctx); err != nil {
		return Outcome{}, err
	}
	defer m.release()

	cur := m.State()
	if !cur.Authenticated {
		observe("delete_account", "rejected")
		return Outcome{}, ErrNotAuthenticated
	}

	if err := m.client.WithToken(cur.Token).DeleteUser(ctx); err != nil {
		observe("delete_account", "failed")
		if errors.Is(err, api.ErrUnauthorized) {
			m.expire(context.WithoutCancel(ctx), cur.Token, RouteFrom(ctx))
		}
		return Outcome{}, err
	}

	m.end(context.WithoutCancel(ctx), "delete_account", HomePath)
	observe("delete_account", "ok")
	m.log.Infow("account deleted", "user", cur.Username)
	return Outcome{Navigate: HomePath}, nil
}

// forcedLogout is the API client's 401 hook.  It ends the session only if
// rejected is still the current token; a 401 for a token that has since
// been replaced is stale.
func (m *Manager) forcedLogout(ctx context.Context, rejected string) {
	cctx := context.WithoutCancel(ctx)
	if err := m.acquire(cctx); err != nil {
		return
	}
	defer m.release()
	m.expire(cctx, rejected, RouteFrom(ctx))
}

// expire clears a session whose token the backend rejected and records
// route as the pending destination.  Caller holds m.sem.
func (m *Manager) expire(ctx context.Context, rejected, route string) {
	cur := m.State()
	if !cur.Authenticated || cur.Token != rejected {
		observe("forced_logout", "stale")
		m.log.Debugw("ignoring 401 for a superseded token")
		return
	}
	if route != "" {
		m.RememberDestination(route)
	}
	m.clearStore(ctx)
	m.commit("forced_logout", State{}, LoginPath)
	observe("forced_logout", "ok")
	m.log.Infow("session expired by backend", "user", cur.Username, "pending", route)
}

// end clears store and state after a user-initiated exit.  Caller holds
// m.sem.
func (m *Manager) end(ctx context.Context, transition, navigate string) {
	m.clearStore(ctx)
	m.TakePendingDestination()
	m.commit(transition, State{}, navigate)
}
