package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusTeapot)
})

func TestForceHTTPS(t *testing.T) {
	h := ForceHTTPS(true)(ok)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://books.example/users?x=1", nil))
	if rec.Code != http.StatusPermanentRedirect || rec.Header().Get("Location") != "https://books.example/users?x=1" {
		t.Fatalf("code = %d, location = %q", rec.Code, rec.Header().Get("Location"))
	}

	for name, req := range map[string]*http.Request{
		"localhost": httptest.NewRequest(http.MethodGet, "http://localhost:8080/", nil),
		"loopback":  httptest.NewRequest(http.MethodGet, "http://127.0.0.1:8080/", nil),
		"proxy":     func() *http.Request { r := httptest.NewRequest(http.MethodGet, "http://books.example/", nil); r.Header.Set("X-Forwarded-Proto", "https"); return r }(),
		"tls":       func() *http.Request { r := httptest.NewRequest(http.MethodGet, "http://books.example/", nil); r.TLS = &tls.ConnectionState{}; return r }(),
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusTeapot {
			t.Errorf("%s: code = %d", name, rec.Code)
		}
	}

	rec = httptest.NewRecorder()
	ForceHTTPS(false)(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://books.example/", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("disabled: code = %d", rec.Code)
	}
}

func TestSecurity(t *testing.T) {
	rec := httptest.NewRecorder()
	Security(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("X-Frame-Options") != "DENY" || rec.Header().Get("Content-Security-Policy") == "" {
		t.Fatalf("headers = %v", rec.Header())
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS on plain HTTP")
	}
}

func TestRequestLog(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := RequestLog(zap.New(core).Sugar())(ok)

	req := httptest.NewRequest(http.MethodGet, "/books/7", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d", len(entries))
	}
	f := entries[0].ContextMap()
	if f["status"] != int64(http.StatusTeapot) || f["path"] != "/books/7" || f["ip"] != "203.0.113.9" {
		t.Fatalf("fields = %v", f)
	}
}
