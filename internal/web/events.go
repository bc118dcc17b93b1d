// internal/web/events.go
//
// Server-sent events for displayed pages.
//
// Context
// -------
// A protected page opens GET /events?path=<displayed path>.  The handler
// runs gate.Watch for that path against the browser's session: whenever a
// transition turns the decision into Redirect, one `redirect` event carries
// the login URL and the stream ends.  The page script follows it.
//
// The stream holds a subscription on the manager, which keeps the manager
// out of registry eviction for as long as the tab is open.
package web

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/yanizio/bookshelf/internal/gate"
	"github.com/yanizio/bookshelf/internal/session"
)

const heartbeat = 25 * time.Second

func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	m := manager(r)
	path := r.URL.Query().Get("path")
	rt, _, ok := gate.Match(path)
	if !ok || !strings.HasPrefix(path, "/") {
		http.Error(w, "unknown path", http.StatusBadRequest)
		return
	}

	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.log.Debugw("sse write deadline not lifted", "err", err)
	}

	decisions := make(chan gate.Decision, 1)
	now, cancel := gate.Watch(m, rt, path, func(d gate.Decision) {
		if d.Verdict != gate.Redirect {
			return
		}
		select {
		case decisions <- d:
		default:
		}
	})
	defer cancel()

	hd := w.Header()
	hd.Set("Content-Type", "text/event-stream")
	hd.Set("Cache-Control", "no-cache")
	hd.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if now.Verdict == gate.Redirect {
		h.sendRedirect(w, rc, m, now)
		return
	}
	fmt.Fprint(w, ": watching\n\n")
	if err := rc.Flush(); err != nil {
		return
	}

	tick := time.NewTicker(heartbeat)
	defer tick.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.done:
			return
		case d := <-decisions:
			h.sendRedirect(w, rc, m, d)
			return
		case <-tick.C:
			fmt.Fprint(w, ": ping\n\n")
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

// sendRedirect records the revoked page unless a forced logout already did
// or the user ended the session on purpose, then tells the browser where to
// go.
func (h *Handler) sendRedirect(w http.ResponseWriter, rc *http.ResponseController, m *session.Manager, d gate.Decision) {
	switch d.Cause {
	case "logout", "delete_account":
	default:
		if m.PendingDestination() == "" {
			m.RememberDestination(d.Remember)
		}
	}
	fmt.Fprintf(w, "event: redirect\ndata: %s\n\n", d.Target)
	_ = rc.Flush()
	h.log.Debugw("page revoked", "path", d.Remember, "target", d.Target)
}

// sessionRoute returns the request context with route recorded as the page
// on screen.
func sessionRoute(r *http.Request, route string) context.Context {
	return session.WithRoute(r.Context(), route)
}
