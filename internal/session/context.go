package session

import (
	"context"
	"net/http"
)

type ctxKey int

const (
	managerKey ctxKey = iota
	routeKey
	idKey
)

// NewContext attaches m to ctx.
func NewContext(ctx context.Context, m *Manager) context.Context {
	return context.WithValue(ctx, managerKey, m)
}

// FromContext returns the Manager attached by the session middleware.
func FromContext(ctx context.Context) (*Manager, bool) {
	m, ok := ctx.Value(managerKey).(*Manager)
	return m, ok
}

// WithRoute records the route the browser is looking at.  A forced logout
// triggered by a call made with ctx keeps it as the pending destination.
func WithRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, routeKey, route)
}

// RouteFrom returns the route recorded by WithRoute.
func RouteFrom(ctx context.Context) string {
	r, _ := ctx.Value(routeKey).(string)
	return r
}

// WithID records the session cookie's id.
func WithID(ctx context.Context, sid string) context.Context {
	return context.WithValue(ctx, idKey, sid)
}

// IDFrom returns the id recorded by WithID, or "".
func IDFrom(ctx context.Context) string {
	sid, _ := ctx.Value(idKey).(string)
	return sid
}

// IDFromRequest is IDFrom for r's context.
func IDFromRequest(r *http.Request) string { return IDFrom(r.Context()) }
