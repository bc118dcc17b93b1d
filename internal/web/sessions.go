package web

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/yanizio/bookshelf/internal/session"
)

// CookieName carries the browser's session id.
const CookieName = "bookshelf_sid"

const cookieMaxAge = 30 * 24 * 60 * 60 // seconds

// Sessions ensures every request carries a session cookie and attaches the
// cookie's id, its manager, and the requested route to the request context.
// The manager stays pinned in the registry until the handler returns.
func (r *Registry) Sessions(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sid := ""
			if c, err := req.Cookie(CookieName); err == nil {
				if id, err := uuid.Parse(c.Value); err == nil {
					sid = id.String()
				}
			}
			if sid == "" {
				sid = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     CookieName,
					Value:    sid,
					Path:     "/",
					MaxAge:   cookieMaxAge,
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			m, release, err := r.Acquire(req.Context(), sid)
			if err != nil {
				r.log.Errorw("session restore failed", "sid", sid, "err", err)
				http.Error(w, "session unavailable", http.StatusServiceUnavailable)
				return
			}
			defer release()

			route := req.URL.Path
			if req.Method == http.MethodGet {
				route = req.URL.RequestURI()
			}
			ctx := session.WithRoute(session.NewContext(req.Context(), m), route)
			ctx = session.WithID(ctx, sid)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	}
}
