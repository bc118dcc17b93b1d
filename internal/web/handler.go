// internal/web/handler.go
//
// Router and shared handler plumbing.
//
/*
Context
--------
NewRouter mounts every browser route of the gate table on one chi router:

  • RequestID, Recoverer, access log, security headers, optional
    force-HTTPS, in that order, on every request.
  • Session cookie, CSRF check, and the route's gate guard on every page.
  • /static and /metrics outside the session group.

Handlers talk to the backend only through the manager's bound client, so a
401 anywhere turns into a forced logout before the handler sees the error.

Rendering
---------
render checks the request context first: a navigation that aborted the
connection discards the in-flight result instead of rendering it.  fail maps
error kinds onto views:

  • ClientError, ConflictState  → the form again, inline messages
  • Unauthorized                 → 303 to /login
  • ServerError, NetworkFailure  → general failure notice
*/
package web

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yanizio/bookshelf/internal/api"
	"github.com/yanizio/bookshelf/internal/form"
	"github.com/yanizio/bookshelf/internal/gate"
	"github.com/yanizio/bookshelf/internal/middleware"
	"github.com/yanizio/bookshelf/internal/session"
	"github.com/yanizio/bookshelf/internal/store"
	"github.com/yanizio/bookshelf/internal/view"
)

//go:embed static
var staticFS embed.FS

// Options wires the router.
type Options struct {
	Registry     *Registry
	Views        *view.Engine
	CSRF         *form.CSRF
	SecureCookie bool
	ForceHTTPS   bool
	Log          *zap.SugaredLogger

	// Done, when closed, ends every open /events stream.
	Done <-chan struct{}
}

// Handler serves the browser views.
type Handler struct {
	views *view.Engine
	csrf  *form.CSRF
	log   *zap.SugaredLogger
	done  <-chan struct{}
}

// NewRouter builds the full HTTP surface.
func NewRouter(o Options) http.Handler {
	if o.Log == nil {
		o.Log = zap.NewNop().Sugar()
	}
	h := &Handler{views: o.Views, csrf: o.CSRF, log: o.Log, done: o.Done}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLog(o.Log.Named("http")))
	r.Use(middleware.Security)
	r.Use(middleware.ForceHTTPS(o.ForceHTTPS))

	static, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(o.Registry.Sessions(o.SecureCookie))
		r.Use(o.CSRF.Protect(session.IDFromRequest))

		r.Get("/events", h.events)

		h.mount(r, gate.Home, h.home, nil)
		h.mount(r, gate.Login, h.loginForm, h.login)
		h.mount(r, gate.Register, h.registerForm, h.register)
		h.mount(r, gate.Logout, h.logoutForm, h.logout)
		h.mount(r, gate.MyBooks, h.myBooks, nil)
		h.mount(r, gate.BooksByStatus, h.booksByStatus, nil)
		h.mount(r, gate.AddBook, h.addBookForm, h.addBook)
		h.mount(r, gate.BookDetail, h.bookDetail, nil)
		h.mount(r, gate.BookEdit, h.editBookForm, h.editBook)
		h.mount(r, gate.BookDelete, h.deleteBookForm, h.deleteBook)
		h.mount(r, gate.UserDetails, h.userDetails, nil)
		h.mount(r, gate.UserEdit, h.editUserForm, h.editUser)
		h.mount(r, gate.UserDelete, h.deleteUserForm, h.deleteUser)

		r.With(gate.Guard(gate.BookDetail)).Post(gate.BookDetail.Pattern+"/rate", h.rateBook)
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		h.render(w, req, http.StatusNotFound, "error", &view.Page{Title: "Not found", Error: "That page does not exist."})
	})
	return r
}

func (h *Handler) mount(r chi.Router, rt gate.Route, get, post http.HandlerFunc) {
	g := r.With(gate.Guard(rt))
	g.Get(rt.Pattern, get)
	if post != nil {
		g.Post(rt.Pattern, post)
	}
}

//
// shared helpers
//

func manager(r *http.Request) *session.Manager {
	m, _ := session.FromContext(r.Context())
	return m
}

// page starts the template data for r.
func (h *Handler) page(r *http.Request, title string) *view.Page {
	st := manager(r).State()
	tok, err := h.csrf.Token(session.IDFrom(r.Context()))
	if err != nil {
		h.log.Errorw("csrf token failed", "err", err)
	}
	p := &view.Page{
		Title:         title,
		User:          st.Username,
		Authenticated: st.Authenticated,
		CSRF:          tok,
		Path:          r.URL.RequestURI(),
	}
	if rt, _, ok := gate.Match(r.URL.Path); ok && rt.Protected {
		p.Watch = true
	}
	return p
}

// render writes page unless the request was abandoned.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, page string, p *view.Page) {
	if err := r.Context().Err(); err != nil {
		h.log.Debugw("request abandoned, result discarded", "path", r.URL.Path, "err", err)
		return
	}
	if err := h.views.Render(w, status, page, p); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// redirect sends the browser to target with 303 See Other.
func redirect(w http.ResponseWriter, r *http.Request, target string) {
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// fail maps err onto a response.  page is re-rendered with inline messages
// for client errors; every other kind renders the error page.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, page string, p *view.Page, err error) {
	if r.Context().Err() != nil || errors.Is(err, context.Canceled) {
		h.log.Debugw("request abandoned", "path", r.URL.Path, "err", err)
		return
	}

	var e *api.Error
	switch {
	case errors.Is(err, api.ErrUnauthorized), errors.Is(err, session.ErrNotAuthenticated):
		redirect(w, r, gate.Login.Pattern)
		return
	case errors.Is(err, session.ErrAlreadyAuthenticated):
		redirect(w, r, gate.Home.Pattern)
		return
	case errors.As(err, &e) && (e.Kind == api.ClientError || e.Kind == api.ConflictState):
		p.Error = e.Message()
		p.Fields = e.Fields
		status := e.Status
		if status < 400 || status > 499 {
			status = http.StatusBadRequest
		}
		if e.Kind == api.ConflictState {
			status = http.StatusConflict
		}
		h.render(w, r, status, page, p)
		return
	case errors.As(err, &e):
		h.log.Warnw("backend call failed", "op", e.Op, "kind", e.Kind.String(), "status", e.Status, "err", err)
		p.Error = e.Message()
		h.render(w, r, http.StatusBadGateway, "error", p)
		return
	case errors.Is(err, store.ErrUnavailable):
		h.log.Errorw("session store unavailable", "err", err)
		p.Error = "Your session could not be saved.  Please try again."
		h.render(w, r, http.StatusServiceUnavailable, "error", p)
		return
	}
	h.log.Errorw("request failed", "path", r.URL.Path, "err", err)
	p.Error = "Something went wrong.  Please try again."
	h.render(w, r, http.StatusInternalServerError, "error", p)
}

// formValues snapshots the named inputs for re-rendering.
func formValues(r *http.Request, names ...string) map[string]string {
	out := make(map[string]string, len(names))
	for _, n := range names {
		out[n] = r.PostFormValue(n)
	}
	return out
}
