// internal/server/timeouts.go
//
// HTTP server helper with robust timeouts.
//
// Production hardening recommends:
//
//   • ReadHeaderTimeout – abort slow-loris headers (5 s)
//   • ReadTimeout       – cap the whole request read (10 s)
//   • WriteTimeout      – cap total response time (30 s, backend calls
//                          included)
//   • IdleTimeout       – close keep-alives on idle clients (60 s)
//
// The /events stream lifts its own write deadline through
// http.ResponseController; every other handler lives within WriteTimeout.
//

package server

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// New constructs an *http.Server with the defaults above.  Server-side
// errors (TLS handshakes, hijack failures) go to the zap logger.
func New(addr string, handler http.Handler) *http.Server {
	errLog, _ := zap.NewStdLogAt(zap.L().Named("http"), zap.WarnLevel)
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          errLog,
	}
}
