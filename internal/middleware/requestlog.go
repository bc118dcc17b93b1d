// internal/middleware/requestlog.go
//
// Access-log middleware.
//
/*
Context
--------
Sits right after chi's RequestID and Recoverer.  For every request it
records one INFO line once the handler returns:

  • method, path, status, bytes written, duration
  • client IP (left-most X-Forwarded-For, X-Real-IP, or RemoteAddr)
  • browser family, device class, and bot flag from uasurfer

Server-sent-event streams log when they close, so their duration is the
lifetime of the stream.

Notes
-----
  • The response writer is wrapped with chi's WrapResponseWriter, which
    keeps http.Flusher and Unwrap working for the SSE handler.
  • Oxford commas, two spaces after periods.  No em dash.
*/
package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/yanizio/bookshelf/internal/ua"
)

/*──────────────────────────── middleware ───────────────────────────────────*/

// RequestLog logs one line per request through log.
func RequestLog(log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			info := ua.Parse(r.UserAgent())
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			log.Infow("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"dur", time.Since(start),
				"ip", ClientIP(r),
				"browser", info.Browser,
				"device", info.Device,
				"bot", info.IsBot,
				"req_id", chimw.GetReqID(r.Context()),
			)
		})
	}
}

/*──────────────────────────── client IP helper ─────────────────────────────*/

// ClientIP extracts the left-most address from X-Forwarded-For or
// X-Real-IP, falling back to r.RemoteAddr ("ip:port").
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, part := range strings.Split(xff, ",") {
			if ip := net.ParseIP(strings.TrimSpace(part)); ip != nil {
				return ip.String()
			}
		}
	}
	if xrip := r.Header.Get("X-Real-Ip"); xrip != "" {
		if ip := net.ParseIP(strings.TrimSpace(xrip)); ip != nil {
			return ip.String()
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
