// internal/gate/routes.go
//
// Browser route table.
//
// Context
// -------
// Every page the frontend serves is one Route.  Patterns use chi syntax so
// the same table mounts the router (internal/web) and answers Match for
// paths that arrive as data, e.g. the page an SSE stream is watching.
//
// Protected routes are all except home, login, logout, and register.
package gate

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/bookshelf/internal/session"
)

// Route names one browser view.
type Route struct {
	Name      string
	Pattern   string
	Protected bool
}

var (
	Home          = Route{"home", session.HomePath, false}
	Login         = Route{"login", session.LoginPath, false}
	Logout        = Route{"logout", "/logout", false}
	Register      = Route{"register", "/register", false}
	MyBooks       = Route{"my-books", "/my-books", true}
	BooksByStatus = Route{"books-by-status", "/books/status/{status}", true}
	BookDetail    = Route{"book-detail", "/books/{id}", true}
	BookEdit      = Route{"book-edit", "/books/{id}/edit", true}
	BookDelete    = Route{"book-delete", "/books/{id}/delete", true}
	AddBook       = Route{"add-book", "/books/add", true}
	UserDetails   = Route{"user-details", "/users", true}
	UserEdit      = Route{"user-edit", "/users/edit", true}
	UserDelete    = Route{"user-delete", "/users/delete", true}
)

// Table lists every route.
var Table = []Route{
	Home, Login, Logout, Register,
	MyBooks, BooksByStatus, BookDetail, BookEdit, BookDelete, AddBook,
	UserDetails, UserEdit, UserDelete,
}

var (
	matcher   = chi.NewRouter()
	byPattern = make(map[string]Route, len(Table))
	byName    = make(map[string]Route, len(Table))
)

func init() {
	noop := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	for _, r := range Table {
		matcher.Get(r.Pattern, noop)
		byPattern[r.Pattern] = r
		byName[r.Name] = r
	}
}

// Named returns the route called name.
func Named(name string) (Route, bool) {
	r, ok := byName[name]
	return r, ok
}

// Match resolves a browser path to its Route and URL parameters.
func Match(path string) (Route, map[string]string, bool) {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	rctx := chi.NewRouteContext()
	if !matcher.Match(rctx, http.MethodGet, path) {
		return Route{}, nil, false
	}
	r, ok := byPattern[rctx.RoutePattern()]
	if !ok {
		return Route{}, nil, false
	}
	params := make(map[string]string, len(rctx.URLParams.Keys))
	for i, k := range rctx.URLParams.Keys {
		params[k] = rctx.URLParams.Values[i]
	}
	return r, params, true
}

// Path fills the pattern's {params} in order.
func (r Route) Path(args ...string) string {
	var b strings.Builder
	rest := r.Pattern
	for _, a := range args {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			break
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			break
		}
		b.WriteString(rest[:open])
		b.WriteString(url.PathEscape(a))
		rest = rest[open+end+1:]
	}
	b.WriteString(rest)
	return b.String()
}
