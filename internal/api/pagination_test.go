package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"testing"
)

func strptr(s string) *string { return &s }

func TestCursorPages(t *testing.T) {
	p := BookPage{
		Next:     strptr("http://api.local/books/Read/?page=3"),
		Previous: strptr("http://api.local/books/Read/"),
	}
	if n, ok := p.NextPage(); !ok || n != 3 {
		t.Errorf("next = %d %v", n, ok)
	}
	if n, ok := p.PreviousPage(); !ok || n != 1 {
		t.Errorf("previous = %d %v", n, ok)
	}
	if _, ok := (BookPage{}).NextPage(); ok {
		t.Error("nil cursor reported a page")
	}
	if _, ok := (BookPage{Next: strptr("http://api.local/books/Read/?page=zero")}).NextPage(); ok {
		t.Error("non-numeric page accepted")
	}
}

// pagedBackend serves pages of status Read; link decides the next cursor
// of page n.
func pagedBackend(t *testing.T, link func(base string, n int) *string) (*Client, func() []int) {
	t.Helper()
	var (
		mu     sync.Mutex
		served []int
	)
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/books/Read/" {
			t.Errorf("path = %q", r.URL.Path)
		}
		n := 1
		if p := r.URL.Query().Get("page"); p != "" {
			n, _ = strconv.Atoi(p)
		}
		mu.Lock()
		served = append(served, n)
		mu.Unlock()
		body := map[string]any{"results": []any{map[string]any{"id": n, "name": "b", "author": "a", "average_rating": 3}}}
		body["next"] = link("http://"+r.Host, n)
		writeJSON(w, http.StatusOK, body)
	}))
	return c, func() []int {
		mu.Lock()
		defer mu.Unlock()
		return append([]int(nil), served...)
	}
}

func TestWalkTerminates(t *testing.T) {
	c, served := pagedBackend(t, func(base string, n int) *string {
		if n >= 3 {
			return nil
		}
		return strptr(base + "/books/Read/?page=" + strconv.Itoa(n+1))
	})

	var ids []int64
	err := c.WalkBooksByStatus(context.Background(), "Read", func(p *BookPage) error {
		for _, b := range p.Results {
			ids = append(ids, b.ID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	if len(ids) != 3 || ids[0] != 1 || ids[2] != 3 {
		t.Fatalf("ids = %v", ids)
	}
	if len(served()) != 3 {
		t.Fatalf("served = %v", served())
	}
}

func TestWalkDetectsCycle(t *testing.T) {
	c, served := pagedBackend(t, func(base string, n int) *string {
		if n == 2 {
			return strptr(base + "/books/Read/?page=1")
		}
		return strptr(base + "/books/Read/?page=2")
	})

	err := c.WalkBooksByStatus(context.Background(), "Read", func(*BookPage) error { return nil })
	if !errors.Is(err, ErrPaginationCycle) {
		t.Fatalf("err = %v, want ErrPaginationCycle", err)
	}
	if len(served()) != 2 {
		t.Fatalf("served = %v, want each page once", served())
	}
}

func TestWalkStopsOnCallbackError(t *testing.T) {
	c, served := pagedBackend(t, func(base string, n int) *string {
		return strptr(base + "/books/Read/?page=" + strconv.Itoa(n+1))
	})
	stop := errors.New("stop")

	err := c.WalkBooksByStatus(context.Background(), "Read", func(*BookPage) error { return stop })
	if !errors.Is(err, stop) {
		t.Fatalf("err = %v", err)
	}
	if len(served()) != 1 {
		t.Fatalf("served = %v", served())
	}
}

func TestFollowPageRefusesForeignOrigin(t *testing.T) {
	c, served := pagedBackend(t, func(string, int) *string { return nil })

	_, err := c.WithToken("abc").FollowPage(context.Background(), "http://evil.example/books/Read/?page=2")
	if !errors.Is(err, ErrForeignCursor) {
		t.Fatalf("err = %v, want ErrForeignCursor", err)
	}
	if len(served()) != 0 {
		t.Fatal("foreign cursor reached the backend")
	}

	if _, err := c.FollowPage(context.Background(), "/books/Read/?page=2"); err != nil {
		t.Fatalf("relative cursor: %v", err)
	}
}
