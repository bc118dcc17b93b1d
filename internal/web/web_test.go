// internal/web/web_test.go
//
// End-to-end handler tests: a fake backend, the real router, and a browser
// client with a cookie jar that does not follow redirects.
//
// Run: go test ./internal/web -v

package web

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yanizio/bookshelf/internal/api"
	"github.com/yanizio/bookshelf/internal/config"
	"github.com/yanizio/bookshelf/internal/form"
	"github.com/yanizio/bookshelf/internal/session"
	"github.com/yanizio/bookshelf/internal/store"
	"github.com/yanizio/bookshelf/internal/view"
)

/*──────────────────────────── fake backend ─────────────────────────────────*/

type fakeAPI struct {
	mu      sync.Mutex
	revoked bool
	rated   map[string]any
	ratedAt string
	wrote   apiWrite
}

// apiWrite is the last create, edit, delete, or profile update received.
type apiWrite struct {
	method, path, auth string
	body               map[string]any
}

func (f *fakeAPI) record(r *http.Request) {
	w := apiWrite{method: r.Method, path: r.URL.Path, auth: r.Header.Get("Authorization")}
	_ = json.NewDecoder(r.Body).Decode(&w.body)
	f.mu.Lock()
	f.wrote = w
	f.mu.Unlock()
}

func (f *fakeAPI) lastWrite() apiWrite {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.wrote
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeAPI) revoke() {
	f.mu.Lock()
	f.revoked = true
	f.mu.Unlock()
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	revoked := f.revoked
	f.mu.Unlock()

	if h := r.Header.Get("Authorization"); h != "" && (h != "Token abc" || revoked) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid token."})
		return
	}

	origin := "http://" + r.Host + "/api/"
	switch p := r.URL.Path; {
	case p == "/api/login/":
		writeJSON(w, http.StatusOK, map[string]any{"token": "abc", "user": map[string]any{"id": 1, "username": "alice"}})
	case p == "/api/logout/":
		writeJSON(w, http.StatusOK, map[string]any{})
	case p == "/api/":
		writeJSON(w, http.StatusOK, map[string]any{"books_by_genre": map[string]any{
			"Fantasy": []any{map[string]any{"id": 7, "name": "Earthsea", "author": "Le Guin", "average_rating": 4.5}},
		}})
	case p == "/api/my-books/":
		writeJSON(w, http.StatusOK, map[string]any{"status": [][]string{{"Read", "Read"}, {"Want to Buy", "Want to Buy"}}})
	case p == "/api/books/Read/":
		page := r.URL.Query().Get("page")
		body := map[string]any{"count": 2, "previous": nil, "next": origin + "books/Read/?page=2",
			"results": []any{map[string]any{"id": 1, "name": "First", "author": "A", "average_rating": "Not available"}}}
		if page == "2" {
			body = map[string]any{"count": 2, "previous": origin + "books/Read/", "next": nil,
				"results": []any{map[string]any{"id": 2, "name": "Second", "author": "B", "average_rating": 3}}}
		}
		writeJSON(w, http.StatusOK, body)
	case p == "/api/books/details/42/":
		writeJSON(w, http.StatusOK, map[string]any{
			"book":    map[string]any{"id": 42, "name": "Dune", "author": "Herbert", "average_rating": "Not available"},
			"is_auth": false, "user_rating": nil,
		})
	case p == "/api/books/details/7/":
		writeJSON(w, http.StatusOK, map[string]any{
			"book":    map[string]any{"id": 7, "name": "Earthsea", "author": "Le Guin", "status": "Read", "average_rating": 4.5},
			"is_auth": true, "user_rating": 4,
		})
	case p == "/api/books/rate-book/42/":
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.rated, f.ratedAt = body, r.Method+" "+p
		f.mu.Unlock()
		writeJSON(w, http.StatusCreated, map[string]any{"id": 42, "name": "Dune", "author": "Herbert", "average_rating": 5})
	case p == "/api/books/create/":
		f.record(r)
		writeJSON(w, http.StatusCreated, map[string]any{"id": 99, "name": "Dune", "author": "Herbert", "status": "Read"})
	case p == "/api/books/edit/7/":
		f.record(r)
		writeJSON(w, http.StatusOK, map[string]any{"id": 7, "name": "Earthsea", "author": "Le Guin", "status": "Reading"})
	case p == "/api/books/delete/7/":
		f.record(r)
		w.WriteHeader(http.StatusNoContent)
	case p == "/api/users/update-profile/":
		f.record(r)
		writeJSON(w, http.StatusOK, map[string]any{"first_name": "Alice"})
	case p == "/api/users/":
		writeJSON(w, http.StatusOK, map[string]any{
			"user":         map[string]any{"id": 1, "username": "alice", "email": "alice@example.com"},
			"user_profile": map[string]any{"first_name": "Alice"},
		})
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
	}
}

/*──────────────────────────── fixture ──────────────────────────────────────*/

type fixture struct {
	api     *fakeAPI
	srv     *httptest.Server
	reg     *Registry
	csrf    *form.CSRF
	browser *http.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fa := &fakeAPI{}
	backend := httptest.NewServer(fa)
	t.Cleanup(backend.Close)

	client, err := api.New(config.API{BaseURL: backend.URL + "/api/", Timeout: 5 * time.Second}, nil, nil)
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}
	csrf, err := form.NewCSRF("")
	if err != nil {
		t.Fatalf("NewCSRF: %v", err)
	}
	reg := NewRegistry(store.NewMemory(), client, config.Sessions{IdleTTL: time.Hour, EvictInterval: time.Hour}, nil)
	srv := httptest.NewServer(NewRouter(Options{Registry: reg, Views: view.New(nil), CSRF: csrf}))
	t.Cleanup(srv.Close)

	jar, _ := cookiejar.New(nil)
	browser := &http.Client{
		Jar:           jar,
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
	return &fixture{api: fa, srv: srv, reg: reg, csrf: csrf, browser: browser}
}

func (f *fixture) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := f.browser.Get(f.srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, string(b)
}

func (f *fixture) post(t *testing.T, path string, vals url.Values) (*http.Response, string) {
	t.Helper()
	if vals == nil {
		vals = url.Values{}
	}
	if _, ok := vals[form.FieldName]; !ok {
		tok, err := f.csrf.Token(f.sid(t))
		if err != nil {
			t.Fatalf("csrf: %v", err)
		}
		vals.Set(form.FieldName, tok)
	}
	resp, err := f.browser.PostForm(f.srv.URL+path, vals)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, string(b)
}

// sid returns the browser's session id, visiting the login page first when
// the jar has no cookie yet.
func (f *fixture) sid(t *testing.T) string {
	t.Helper()
	u, _ := url.Parse(f.srv.URL)
	for i := 0; i < 2; i++ {
		for _, c := range f.browser.Jar.Cookies(u) {
			if c.Name == CookieName {
				return c.Value
			}
		}
		f.get(t, "/login")
	}
	t.Fatal("no session cookie")
	return ""
}

func (f *fixture) manager(t *testing.T) *session.Manager {
	t.Helper()
	m, err := f.reg.Get(context.Background(), f.sid(t))
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return m
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	resp, _ := f.post(t, "/login", url.Values{"username": {"alice"}, "password": {"pw1"}})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
}

func wantRedirect(t *testing.T, resp *http.Response, target string) {
	t.Helper()
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != target {
		t.Fatalf("got %d → %q, want 303 → %q", resp.StatusCode, resp.Header.Get("Location"), target)
	}
}

/*──────────────────────────── tests ────────────────────────────────────────*/

func TestSessionCookie(t *testing.T) {
	f := newFixture(t)
	resp, body := f.get(t, "/")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "Earthsea") {
		t.Fatalf("home: %d\n%s", resp.StatusCode, body)
	}
	var sid *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == CookieName {
			sid = c
		}
	}
	if sid == nil || !sid.HttpOnly || sid.SameSite != http.SameSiteLaxMode {
		t.Fatalf("cookie = %+v", sid)
	}
	if f.reg.Len() != 1 {
		t.Fatalf("registry len = %d", f.reg.Len())
	}
}

func TestLoginReturnsToPendingDestination(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.get(t, "/my-books")
	wantRedirect(t, resp, "/login")

	resp, _ = f.post(t, "/login", url.Values{"username": {"alice"}, "password": {"pw1"}})
	wantRedirect(t, resp, "/my-books")

	st := f.manager(t).State()
	if !st.Authenticated || st.Token != "abc" || st.Username != "alice" {
		t.Fatalf("state = %+v", st)
	}
	resp, body := f.get(t, "/my-books")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "/books/status/Want%20to%20Buy") {
		t.Fatalf("my-books: %d\n%s", resp.StatusCode, body)
	}
}

func TestLoginFormValidation(t *testing.T) {
	f := newFixture(t)
	resp, body := f.post(t, "/login", url.Values{"username": {"alice"}})
	if resp.StatusCode != http.StatusBadRequest || !strings.Contains(body, "This field is required.") {
		t.Fatalf("status = %d\n%s", resp.StatusCode, body)
	}
	if !strings.Contains(body, `value="alice"`) {
		t.Error("username not kept")
	}
}

func TestCSRFRequired(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.post(t, "/login", url.Values{"username": {"alice"}, "password": {"pw1"}, form.FieldName: {"forged"}})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if f.manager(t).IsAuthenticated() {
		t.Fatal("forged form logged in")
	}
}

func TestCSRFTokenFromAnotherSession(t *testing.T) {
	f := newFixture(t)
	f.sid(t)
	planted, err := f.csrf.Token(uuid.NewString())
	if err != nil {
		t.Fatalf("csrf: %v", err)
	}
	resp, _ := f.post(t, "/login", url.Values{"username": {"mallory"}, "password": {"pw1"}, form.FieldName: {planted}})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if f.manager(t).IsAuthenticated() {
		t.Fatal("planted token logged in")
	}
}

func TestRegisterConflictInline(t *testing.T) {
	f := newFixture(t)
	resp, body := f.post(t, "/register", url.Values{
		"username": {"bob"}, "email": {"bob@example.com"},
		"password": {"pw1"}, "confirm_password": {"pw2"},
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if strings.Count(body, "Passwords do not match.") != 2 || !strings.Contains(body, `value="bob@example.com"`) {
		t.Fatalf("body:\n%s", body)
	}
}

func TestBookDetailWithoutBackendAuth(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	resp, body := f.get(t, "/books/42")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "Dune") {
		t.Fatalf("detail: %d\n%s", resp.StatusCode, body)
	}
	for _, s := range []string{`name="rating"`, "/books/42/edit", "/books/42/delete"} {
		if strings.Contains(body, s) {
			t.Errorf("detail contains %q", s)
		}
	}
}

func TestBookDetailOwner(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	_, body := f.get(t, "/books/7")
	for _, s := range []string{`name="rating"`, "/books/7/edit", "/books/7/delete", `data-watch="/books/7"`} {
		if !strings.Contains(body, s) {
			t.Errorf("detail lacks %q", s)
		}
	}
}

func TestRateBookShowsReturnedBook(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	resp, body := f.post(t, "/books/42/rate", url.Values{"rating": {"5"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d\n%s", resp.StatusCode, body)
	}
	f.api.mu.Lock()
	rated, at := f.api.rated, f.api.ratedAt
	f.api.mu.Unlock()
	if at != "POST /api/books/rate-book/42/" || rated["rating"] != float64(5) {
		t.Fatalf("backend saw %s %v", at, rated)
	}
	if !strings.Contains(body, "5.00") || !strings.Contains(body, `value="5" checked`) {
		t.Fatalf("returned book not shown:\n%s", body)
	}
}

func TestRateBookOutOfRange(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	resp, body := f.post(t, "/books/42/rate", url.Values{"rating": {"9"}})
	if resp.StatusCode != http.StatusBadRequest || !strings.Contains(body, "Ratings run from 1 to 5.") {
		t.Fatalf("status = %d\n%s", resp.StatusCode, body)
	}
}

func TestUnauthorizedForcesLogout(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.api.revoke()

	resp, _ := f.get(t, "/users")
	wantRedirect(t, resp, "/login")

	m := f.manager(t)
	if m.IsAuthenticated() {
		t.Fatal("still authenticated after 401")
	}
	if got := m.PendingDestination(); got != "/users" {
		t.Fatalf("pending = %q", got)
	}

	resp, _ = f.post(t, "/login", url.Values{"username": {"alice"}, "password": {"pw1"}})
	wantRedirect(t, resp, "/users")
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	_, body := f.get(t, "/logout")
	if !strings.Contains(body, "Log out of alice?") {
		t.Fatalf("confirm page:\n%s", body)
	}
	resp, _ := f.post(t, "/logout", nil)
	wantRedirect(t, resp, "/")
	if f.manager(t).IsAuthenticated() {
		t.Fatal("still authenticated")
	}
	resp, _ = f.get(t, "/users")
	wantRedirect(t, resp, "/login")
}

func TestBooksByStatus(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	_, body := f.get(t, "/books/status/Read")
	if !strings.Contains(body, "First") || strings.Contains(body, "Second") || !strings.Contains(body, "?page=2") {
		t.Fatalf("page 1:\n%s", body)
	}
	_, body = f.get(t, "/books/status/Read?page=2")
	if !strings.Contains(body, "Second") || !strings.Contains(body, "?page=1") {
		t.Fatalf("page 2:\n%s", body)
	}
	_, body = f.get(t, "/books/status/Read?all=1")
	if !strings.Contains(body, "First") || !strings.Contains(body, "Second") || strings.Contains(body, `rel="next"`) {
		t.Fatalf("all pages:\n%s", body)
	}
}

func TestAddBookValidation(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	resp, body := f.post(t, "/books/add", url.Values{"name": {"X"}, "status": {"Lost"}, "price": {"-3"}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, "This field is required.") {
		t.Fatalf("author error missing:\n%s", body)
	}
}

func TestAddBook(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	resp, _ := f.post(t, "/books/add", url.Values{
		"name": {"Dune"}, "author": {"Herbert"}, "status": {"Read"}, "genre": {"Fiction"}, "price": {"9.50"},
	})
	wantRedirect(t, resp, "/books/99")

	w := f.api.lastWrite()
	if w.method != http.MethodPost || w.path != "/api/books/create/" || w.auth != "Token abc" {
		t.Fatalf("backend saw %s %s auth %q", w.method, w.path, w.auth)
	}
	if w.body["name"] != "Dune" || w.body["price"] != 9.5 || w.body["picture"] != nil {
		t.Fatalf("body = %v", w.body)
	}
}

func TestEditBook(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	_, body := f.get(t, "/books/7/edit")
	if !strings.Contains(body, `value="Earthsea"`) {
		t.Fatalf("edit form not prefilled:\n%s", body)
	}

	resp, _ := f.post(t, "/books/7/edit", url.Values{
		"name": {"Earthsea"}, "author": {"Le Guin"}, "status": {"Reading"}, "description": {"Wizards."},
	})
	wantRedirect(t, resp, "/books/7")

	w := f.api.lastWrite()
	if w.method != http.MethodPatch || w.path != "/api/books/edit/7/" || w.auth != "Token abc" {
		t.Fatalf("backend saw %s %s auth %q", w.method, w.path, w.auth)
	}
	if w.body["status"] != "Reading" || w.body["description"] != "Wizards." || w.body["price"] != nil {
		t.Fatalf("body = %v", w.body)
	}
}

func TestDeleteBook(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	resp, _ := f.post(t, "/books/7/delete", nil)
	wantRedirect(t, resp, "/my-books")

	w := f.api.lastWrite()
	if w.method != http.MethodDelete || w.path != "/api/books/delete/7/" || w.auth != "Token abc" {
		t.Fatalf("backend saw %s %s auth %q", w.method, w.path, w.auth)
	}
}

func TestEditUser(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	resp, _ := f.post(t, "/users/edit", url.Values{"first_name": {"Alice"}, "last_name": {""}, "gender": {"Female"}})
	wantRedirect(t, resp, "/users")

	w := f.api.lastWrite()
	if w.method != http.MethodPatch || w.path != "/api/users/update-profile/" || w.auth != "Token abc" {
		t.Fatalf("backend saw %s %s auth %q", w.method, w.path, w.auth)
	}
	if w.body["first_name"] != "Alice" || w.body["gender"] != "Female" {
		t.Fatalf("body = %v", w.body)
	}
	for _, k := range []string{"last_name", "email", "profile_picture"} {
		if v, ok := w.body[k]; !ok || v != nil {
			t.Errorf("body[%s] = %v (present %v), want null", k, v, ok)
		}
	}
}

func TestEventsRedirectOnLogout(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	resp, err := f.browser.Get(f.srv.URL + "/events?path=" + url.QueryEscape("/users"))
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content-type = %q", ct)
	}
	lines := bufio.NewScanner(resp.Body)
	if !lines.Scan() || lines.Text() != ": watching" {
		t.Fatalf("first line = %q", lines.Text())
	}

	if _, err := f.manager(t).Logout(context.Background()); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	var got []string
	for lines.Scan() {
		if l := lines.Text(); l != "" {
			got = append(got, l)
		}
		if len(got) == 2 {
			break
		}
	}
	if len(got) != 2 || got[0] != "event: redirect" || got[1] != "data: /login" {
		t.Fatalf("events = %q", got)
	}

	// A deliberate logout leaves no destination behind for the next login.
	if p := f.manager(t).PendingDestination(); p != "" {
		t.Fatalf("pending after logout = %q", p)
	}
	resp2, _ := f.post(t, "/login", url.Values{"username": {"alice"}, "password": {"pw1"}})
	wantRedirect(t, resp2, "/")
}

func TestEventsAnonymousRedirectsAtOnce(t *testing.T) {
	f := newFixture(t)
	resp, body := f.get(t, "/events?path=/my-books")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "event: redirect\ndata: /login") {
		t.Fatalf("events: %d %q", resp.StatusCode, body)
	}
	if _, body := f.get(t, "/events?path=/nowhere/at/all"); !strings.Contains(body, "unknown path") {
		t.Fatalf("unknown path accepted: %q", body)
	}
}

func TestNotFound(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.get(t, "/no/such/page")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
