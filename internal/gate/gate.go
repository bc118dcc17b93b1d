// internal/gate/gate.go
//
// Route authorization gate.
//
// Context
// -------
// Decide is the whole policy: a public route, or any route while the session
// is authenticated, is allowed; a protected route on an anonymous session
// redirects to login and remembers where the browser was going.
//
// Guard applies Decide on every request.  Watch applies it again on every
// session event, so a page already on screen is revoked the moment the
// session ends.
package gate

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/yanizio/bookshelf/internal/metrics"
	"github.com/yanizio/bookshelf/internal/session"
)

// Verdict is the outcome of Decide.
type Verdict uint8

const (
	Allow Verdict = iota
	Redirect
)

// Decision says what to show.  On Allow, Target is the requested path; on
// Redirect, Target is the login page and Remember the requested path.
// Cause names the session transition behind a decision from Watch.
type Decision struct {
	Verdict  Verdict
	Target   string
	Remember string
	Cause    string
}

// Decide is pure.
func Decide(s session.State, r Route, requested string) Decision {
	if !r.Protected || s.Authenticated {
		return Decision{Verdict: Allow, Target: requested}
	}
	return Decision{Verdict: Redirect, Target: Login.Pattern, Remember: requested}
}

// Guard redirects anonymous sessions away from r with 303 See Other after
// recording the requested URI as the pending destination.
func Guard(r Route) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			var st session.State
			m, ok := session.FromContext(req.Context())
			if ok {
				st = m.State()
			}
			d := Decide(st, r, req.URL.RequestURI())
			if d.Verdict == Allow {
				next.ServeHTTP(w, req)
				return
			}
			if ok && req.Method == http.MethodGet {
				m.RememberDestination(d.Remember)
			}
			metrics.GateRedirectsTotal.WithLabelValues(r.Name).Inc()
			zap.S().Debugw("gate redirect", "route", r.Name, "remember", d.Remember)
			http.Redirect(w, req, d.Target, http.StatusSeeOther)
		})
	}
}

// Source is the read side of a session.
type Source interface {
	State() session.State
	Subscribe(func(session.Event)) (cancel func())
}

// Watch evaluates r for path now and again, synchronously, on every event
// of src.  It returns the current decision; fn receives each later one.
func Watch(src Source, r Route, path string, fn func(Decision)) (Decision, func()) {
	cancel := src.Subscribe(func(ev session.Event) {
		d := Decide(ev.State, r, path)
		d.Cause = ev.Transition
		fn(d)
	})
	return Decide(src.State(), r, path), cancel
}
