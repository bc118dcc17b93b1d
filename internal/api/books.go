package api

import (
	"context"
	"net/url"
	"strconv"
	"strings"
)

// Home fetches the feed of books grouped by genre.
func (c *Client) Home(ctx context.Context) (*Home, error) {
	var out Home
	if err := c.do(ctx, epHome, c.target(epHome, nil, nil), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MyBooks lists the statuses the caller can browse.
func (c *Client) MyBooks(ctx context.Context) (*StatusList, error) {
	var out StatusList
	if err := c.do(ctx, epMyBooks, c.target(epMyBooks, nil, nil), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BooksByStatus fetches one page.  page < 2 requests the first page.
func (c *Client) BooksByStatus(ctx context.Context, status string, page int) (*BookPage, error) {
	if !validSegment(status) {
		return nil, &Error{Op: epBooksByStatus.op, Kind: ClientError, Detail: "Unknown book status."}
	}
	var q url.Values
	if page > 1 {
		q = url.Values{"page": {strconv.Itoa(page)}}
	}
	var out BookPage
	if err := c.do(ctx, epBooksByStatus, c.target(epBooksByStatus, status, q), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FollowPage fetches the page a next or previous cursor points at.  The
// cursor must share the base URL's scheme and host, so a token is never
// sent to another origin.
func (c *Client) FollowPage(ctx context.Context, cursor string) (*BookPage, error) {
	u, err := c.cursorURL(cursor)
	if err != nil {
		return nil, err
	}
	var out BookPage
	if err := c.do(ctx, epBooksByStatus, u, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WalkBooksByStatus calls fn for every page of status, following next
// cursors until one is null.  A cursor that revisits a page ends the walk
// with ErrPaginationCycle.
func (c *Client) WalkBooksByStatus(ctx context.Context, status string, fn func(*BookPage) error) error {
	page, err := c.BooksByStatus(ctx, status, 1)
	if err != nil {
		return err
	}
	seen := map[string]struct{}{pageKey(c.target(epBooksByStatus, status, nil)): {}}

	for {
		if err := fn(page); err != nil {
			return err
		}
		if page.Next == nil || *page.Next == "" {
			return nil
		}
		u, err := c.cursorURL(*page.Next)
		if err != nil {
			return err
		}
		k := pageKey(u)
		if _, dup := seen[k]; dup {
			return &Error{Op: epBooksByStatus.op, Kind: ServerError, Detail: "The book list links back to a page already shown.", Err: ErrPaginationCycle}
		}
		seen[k] = struct{}{}

		var next BookPage
		if err := c.do(ctx, epBooksByStatus, u, nil, &next); err != nil {
			return err
		}
		page = &next
	}
}

// BookDetail fetches one book with the caller's relation to it.
func (c *Client) BookDetail(ctx context.Context, id int64) (*BookDetail, error) {
	var out BookDetail
	if err := c.do(ctx, epBookDetail, c.target(epBookDetail, id, nil), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateBook adds a book owned by the caller.
func (c *Client) CreateBook(ctx context.Context, in BookInput) (*Book, error) {
	var out Book
	if err := c.do(ctx, epCreateBook, c.target(epCreateBook, nil, nil), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateBook patches a book the caller owns.
func (c *Client) UpdateBook(ctx context.Context, id int64, in BookInput) (*Book, error) {
	var out Book
	if err := c.do(ctx, epUpdateBook, c.target(epUpdateBook, id, nil), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteBook removes a book the caller owns.
func (c *Client) DeleteBook(ctx context.Context, id int64) error {
	return c.do(ctx, epDeleteBook, c.target(epDeleteBook, id, nil), nil, nil)
}

// RateBook records the caller's rating (1–5) and returns the updated book.
func (c *Client) RateBook(ctx context.Context, id int64, rating int) (*Book, error) {
	if rating < 1 || rating > 5 {
		return nil, &Error{
			Op: epRateBook.op, Kind: ClientError,
			Detail: "Ratings run from 1 to 5.",
			Fields: map[string][]string{"rating": {"Ratings run from 1 to 5."}},
		}
	}
	var out Book
	body := map[string]int{"rating": rating}
	if err := c.do(ctx, epRateBook, c.target(epRateBook, id, nil), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

/*──────────────────────────── cursors ───────────────────────────────────*/

func (c *Client) cursorURL(cursor string) (*url.URL, error) {
	u, err := url.Parse(cursor)
	if err != nil {
		return nil, &Error{Op: epBooksByStatus.op, Kind: ServerError, Detail: "Malformed page link.", Err: err}
	}
	u = c.base.ResolveReference(u)
	if !strings.EqualFold(u.Scheme, c.base.Scheme) || !strings.EqualFold(u.Host, c.base.Host) {
		return nil, &Error{Op: epBooksByStatus.op, Kind: ServerError, Detail: "Page link points to another site.", Err: ErrForeignCursor}
	}
	return u, nil
}

// pageKey identifies a page by path and page number; a missing page
// parameter is page 1.
func pageKey(u *url.URL) string {
	p := u.Query().Get("page")
	if p == "" {
		p = "1"
	}
	return u.Path + "?page=" + p
}

func validSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}
