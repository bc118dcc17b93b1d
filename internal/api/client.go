// internal/api/client.go
//
// Typed client of the book-catalogue REST backend.
//
// Context
// -------
// Each logical operation maps to one row of a fixed endpoint table (method,
// path, auth mode).  The client builds the request against the configured
// base URL, attaches `Authorization: Token <t>` when the endpoint allows it
// and a token is available, decodes the JSON body on 2xx, and classifies
// everything else into an *Error.
//
// The client never touches session storage.  It learns the token from a
// TokenSource and reports a rejected token through an UnauthorizedFunc;
// the auth session manager supplies both through Bind.
//
// Notes
// -----
//   - A `required` endpoint called without a token fails locally with
//     Unauthorized and no network traffic.
//   - The 401 hook fires only when the rejected request carried a token.
//   - Two spaces after periods.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yanizio/bookshelf/internal/config"
	"github.com/yanizio/bookshelf/internal/metrics"
)

const maxBody = 4 << 20

// AuthMode says whether an endpoint is sent a token.
type AuthMode uint8

const (
	AuthNever AuthMode = iota
	AuthOptional
	AuthRequired
)

type endpoint struct {
	op     string
	method string
	path   string // relative to the base URL; may hold one %v verb
	auth   AuthMode
}

var (
	epLogin         = endpoint{"Login", http.MethodPost, "login/", AuthNever}
	epLogout        = endpoint{"Logout", http.MethodGet, "logout/", AuthRequired}
	epRegister      = endpoint{"Register", http.MethodPost, "register/", AuthNever}
	epHome          = endpoint{"Home", http.MethodGet, "", AuthOptional}
	epMyBooks       = endpoint{"MyBooks", http.MethodGet, "my-books/", AuthRequired}
	epBooksByStatus = endpoint{"ListBooksByStatus", http.MethodGet, "books/%v/", AuthOptional}
	epBookDetail    = endpoint{"GetBookDetail", http.MethodGet, "books/details/%v/", AuthOptional}
	epCreateBook    = endpoint{"CreateBook", http.MethodPost, "books/create/", AuthRequired}
	epUpdateBook    = endpoint{"UpdateBook", http.MethodPatch, "books/edit/%v/", AuthRequired}
	epDeleteBook    = endpoint{"DeleteBook", http.MethodDelete, "books/delete/%v/", AuthRequired}
	epRateBook      = endpoint{"RateBook", http.MethodPost, "books/rate-book/%v/", AuthRequired}
	epUserDetails   = endpoint{"GetUserDetails", http.MethodGet, "users/", AuthRequired}
	epUpdateProfile = endpoint{"UpdateUserProfile", http.MethodPatch, "users/update-profile/", AuthRequired}
	epDeleteUser    = endpoint{"DeleteUser", http.MethodDelete, "users/delete/", AuthRequired}
)

// TokenSource yields the token of the current session, if any.
type TokenSource interface {
	AuthToken() (string, bool)
}

// UnauthorizedFunc is invoked after a 401 on a request that carried
// rejected.  ctx is the ctx of that request.
type UnauthorizedFunc func(ctx context.Context, rejected string)

// Client is safe for concurrent use.  Bind and WithToken return shallow
// copies sharing the transport.
type Client struct {
	base           *url.URL
	hc             *http.Client
	log            *zap.SugaredLogger
	tokens         TokenSource
	onUnauthorized UnauthorizedFunc
}

// New returns an unbound client.  hc may be nil, in which case one with
// cfg.Timeout is created.
func New(cfg config.API, hc *http.Client, log *zap.SugaredLogger) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("api base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api base url %q: scheme must be http or https", cfg.BaseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Client{base: u, hc: hc, log: log}, nil
}

// Bind returns a copy that reads its token from ts and reports 401s to fn.
func (c *Client) Bind(ts TokenSource, fn UnauthorizedFunc) *Client {
	cp := *c
	cp.tokens, cp.onUnauthorized = ts, fn
	return &cp
}

// WithToken returns a copy that sends tok and has no 401 hook.
func (c *Client) WithToken(tok string) *Client {
	cp := *c
	cp.tokens, cp.onUnauthorized = staticToken(tok), nil
	return &cp
}

// BaseURL returns a copy of the configured base.
func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

type staticToken string

func (s staticToken) AuthToken() (string, bool) { return string(s), s != "" }

/*──────────────────────────── request core ──────────────────────────────*/

func (c *Client) target(ep endpoint, arg any, query url.Values) *url.URL {
	p := ep.path
	if strings.Contains(p, "%v") {
		p = fmt.Sprintf(p, arg)
	}
	u := c.base.ResolveReference(&url.URL{Path: p})
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u
}

// do runs one request.  body, when non-nil, is sent as JSON; out, when
// non-nil, receives the decoded 2xx body.
func (c *Client) do(ctx context.Context, ep endpoint, target *url.URL, body, out any) error {
	start := time.Now()

	var tok string
	var hasTok bool
	if ep.auth != AuthNever && c.tokens != nil {
		tok, hasTok = c.tokens.AuthToken()
	}
	if ep.auth == AuthRequired && !hasTok {
		return c.finish(ep, start, &Error{Op: ep.op, Kind: Unauthorized, Detail: "Please log in to continue."})
	}

	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return c.finish(ep, start, &Error{Op: ep.op, Kind: ClientError, Err: err})
		}
		rdr = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, ep.method, target.String(), rdr)
	if err != nil {
		return c.finish(ep, start, &Error{Op: ep.op, Kind: ClientError, Err: err})
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if hasTok {
		req.Header.Set("Authorization", "Token "+tok)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			err = cerr
		}
		return c.finish(ep, start, &Error{Op: ep.op, Kind: NetworkFailure, Err: err})
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return c.finish(ep, start, &Error{Op: ep.op, Kind: NetworkFailure, Status: resp.StatusCode, Err: err})
	}

	switch s := resp.StatusCode; {
	case s >= 200 && s < 300:
		if out != nil && len(bytes.TrimSpace(raw)) > 0 {
			if err := json.Unmarshal(raw, out); err != nil {
				return c.finish(ep, start, &Error{
					Op: ep.op, Kind: ServerError, Status: s,
					Detail: "The book service sent an unreadable response.", Err: err,
				})
			}
		}
		return c.finish(ep, start, nil)

	case s == http.StatusUnauthorized:
		e := &Error{Op: ep.op, Kind: Unauthorized, Status: s}
		e.parseBody(raw)
		c.finish(ep, start, e)
		if hasTok && c.onUnauthorized != nil {
			c.onUnauthorized(ctx, tok)
		}
		return e

	case s >= 400 && s < 500:
		e := &Error{Op: ep.op, Kind: ClientError, Status: s}
		e.parseBody(raw)
		return c.finish(ep, start, e)

	default:
		e := &Error{Op: ep.op, Kind: ServerError, Status: s}
		e.parseBody(raw)
		return c.finish(ep, start, e)
	}
}

// finish records metrics and logs; it returns err untouched.
func (c *Client) finish(ep endpoint, start time.Time, err error) error {
	outcome := "ok"
	var e *Error
	if errors.As(err, &e) {
		outcome = e.Kind.String()
	}
	dur := time.Since(start)
	metrics.APIRequestsTotal.WithLabelValues(ep.op, outcome).Inc()
	metrics.APIRequestDuration.WithLabelValues(ep.op).Observe(dur.Seconds())

	switch {
	case err == nil:
		c.log.Debugw("api call", "op", ep.op, "dur", dur)
	case e != nil && e.Kind == NetworkFailure:
		c.log.Warnw("api call failed", "op", ep.op, "err", err, "dur", dur)
	default:
		c.log.Infow("api call rejected", "op", ep.op, "outcome", outcome, "status", e.Status, "dur", dur)
	}
	return err
}
