package web

import (
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/bookshelf/internal/api"
	"github.com/yanizio/bookshelf/internal/form"
	"github.com/yanizio/bookshelf/internal/gate"
	"github.com/yanizio/bookshelf/internal/view"
)

//
// Listings
//

func (h *Handler) home(w http.ResponseWriter, r *http.Request) {
	feed, err := manager(r).API().Home(r.Context())
	p := h.page(r, "Home")
	if err != nil {
		h.fail(w, r, "error", p, err)
		return
	}
	p.Data = feed
	h.render(w, r, http.StatusOK, "home", p)
}

func (h *Handler) myBooks(w http.ResponseWriter, r *http.Request) {
	list, err := manager(r).API().MyBooks(r.Context())
	p := h.page(r, "My books")
	if err != nil {
		h.fail(w, r, "error", p, err)
		return
	}
	p.Data = list
	h.render(w, r, http.StatusOK, "my_books", p)
}

// statusView is the books-by-status listing.  Prev and Next are page
// numbers, 0 at either end.  All marks a listing of every page at once.
type statusView struct {
	Status string
	Count  int
	Books  []api.Book
	Page   int
	Prev   int
	Next   int
	All    bool
}

func (h *Handler) booksByStatus(w http.ResponseWriter, r *http.Request) {
	status := urlParam(r, "status")
	p := h.page(r, status)
	c := manager(r).API()
	v := statusView{Status: status}

	if r.URL.Query().Get("all") != "" {
		v.All = true
		err := c.WalkBooksByStatus(r.Context(), status, func(pg *api.BookPage) error {
			v.Count = pg.Count
			v.Books = append(v.Books, pg.Results...)
			return nil
		})
		if err != nil {
			h.fail(w, r, "error", p, err)
			return
		}
	} else {
		n, err := strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil || n < 1 {
			n = 1
		}
		pg, err := c.BooksByStatus(r.Context(), status, n)
		if err != nil {
			h.fail(w, r, "error", p, err)
			return
		}
		v.Count, v.Books, v.Page = pg.Count, pg.Results, n
		v.Prev, _ = pg.PreviousPage()
		v.Next, _ = pg.NextPage()
	}
	p.Data = v
	h.render(w, r, http.StatusOK, "books_by_status", p)
}

//
// Detail and rating
//

func (h *Handler) bookDetail(w http.ResponseWriter, r *http.Request) {
	p := h.page(r, "Book")
	id, ok := bookID(r)
	if !ok {
		h.notFound(w, r, p)
		return
	}
	d, err := manager(r).API().BookDetail(r.Context(), id)
	if err != nil {
		h.fail(w, r, "error", p, err)
		return
	}
	p.Title = d.Book.Name
	p.Data = d
	h.render(w, r, http.StatusOK, "book_detail", p)
}

// rateBook posts the rating and shows the book the backend returned.
func (h *Handler) rateBook(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(r)
	if !ok {
		h.notFound(w, r, h.page(r, "Book"))
		return
	}
	detailPath := gate.BookDetail.Path(strconv.FormatInt(id, 10))
	ctx := sessionRoute(r, detailPath)
	c := manager(r).API()

	p := h.page(r, "Book")
	p.Path, p.Watch = detailPath, true

	n, err := strconv.Atoi(r.PostFormValue("rating"))
	if err != nil {
		n = 0 // RateBook rejects it with a field message
	}
	book, err := c.RateBook(ctx, id, n)
	if err != nil {
		if api.KindOf(err) != api.ClientError {
			h.fail(w, r, "error", p, err)
			return
		}
		d, derr := c.BookDetail(ctx, id)
		if derr != nil {
			h.fail(w, r, "error", p, derr)
			return
		}
		p.Title, p.Data = d.Book.Name, d
		h.fail(w, r, "book_detail", p, err)
		return
	}

	p.Title = book.Name
	p.Notice = "Thanks for rating this book."
	p.Data = &api.BookDetail{Book: *book, IsAuth: true, UserRating: &n}
	h.render(w, r, http.StatusOK, "book_detail", p)
}

//
// Add, edit, delete
//

// bookForm is the add and edit form.
type bookForm struct {
	Name        string `form:"name" validate:"required,max=200"`
	Author      string `form:"author" validate:"required,max=200"`
	Picture     string `form:"picture" validate:"omitempty,url"`
	Description string `form:"description" validate:"max=2000"`
	Status      string `form:"status" validate:"required"`
	Genre       string `form:"genre"`
	Price       string `form:"price" validate:"omitempty,numeric"`
}

var bookFields = []string{"name", "author", "picture", "description", "status", "genre", "price"}

// bookFormView feeds book_form.html.  ID is 0 when adding.
type bookFormView struct {
	ID       int64
	Statuses []string
	Genres   []string
}

func readBookForm(r *http.Request) bookForm {
	return bookForm{
		Name:        strings.TrimSpace(r.PostFormValue("name")),
		Author:      strings.TrimSpace(r.PostFormValue("author")),
		Picture:     strings.TrimSpace(r.PostFormValue("picture")),
		Description: r.PostFormValue("description"),
		Status:      r.PostFormValue("status"),
		Genre:       r.PostFormValue("genre"),
		Price:       strings.TrimSpace(r.PostFormValue("price")),
	}
}

// input validates f and converts it to the backend body.
func (f bookForm) input(op string) (api.BookInput, error) {
	if err := form.Check(op, f); err != nil {
		return api.BookInput{}, err
	}
	fields := map[string][]string{}
	if !slices.Contains(api.Statuses, f.Status) {
		fields["status"] = []string{"Select one of: " + strings.Join(api.Statuses, ", ") + "."}
	}
	if f.Genre != "" && !slices.Contains(api.Genres, f.Genre) {
		fields["genre"] = []string{"Select a genre from the list."}
	}
	in := api.BookInput{
		Name:        f.Name,
		Author:      f.Author,
		Picture:     form.Optional(f.Picture),
		Description: form.Optional(f.Description),
		Status:      f.Status,
		Genre:       f.Genre,
	}
	if f.Price != "" {
		v, err := strconv.ParseFloat(f.Price, 64)
		if err != nil || v < 0 {
			fields["price"] = []string{"Enter a price of zero or more."}
		} else {
			in.Price = &v
		}
	}
	if len(fields) > 0 {
		return api.BookInput{}, &api.Error{Op: op, Kind: api.ClientError, Detail: "Please correct the highlighted fields.", Fields: fields}
	}
	return in, nil
}

func (h *Handler) bookFormPage(r *http.Request, title string, id int64) *view.Page {
	p := h.page(r, title)
	p.Data = bookFormView{ID: id, Statuses: api.Statuses, Genres: api.Genres}
	return p
}

func (h *Handler) addBookForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "book_form", h.bookFormPage(r, "Add a book", 0))
}

func (h *Handler) addBook(w http.ResponseWriter, r *http.Request) {
	p := h.bookFormPage(r, "Add a book", 0)
	p.Form = formValues(r, bookFields...)

	in, err := readBookForm(r).input("CreateBook")
	if err != nil {
		h.fail(w, r, "book_form", p, err)
		return
	}
	book, err := manager(r).API().CreateBook(r.Context(), in)
	if err != nil {
		h.fail(w, r, "book_form", p, err)
		return
	}
	redirect(w, r, gate.BookDetail.Path(strconv.FormatInt(book.ID, 10)))
}

func (h *Handler) editBookForm(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(r)
	if !ok {
		h.notFound(w, r, h.page(r, "Edit book"))
		return
	}
	p := h.bookFormPage(r, "Edit book", id)
	d, err := manager(r).API().BookDetail(r.Context(), id)
	if err != nil {
		h.fail(w, r, "error", p, err)
		return
	}
	if !d.CanManage() {
		h.forbidden(w, r, p)
		return
	}
	b := d.Book
	p.Form = map[string]string{
		"name":        b.Name,
		"author":      b.Author,
		"picture":     deref(b.Picture),
		"description": deref(b.Description),
		"status":      deref(b.Status),
		"genre":       b.Genre,
	}
	if b.Price != nil {
		p.Form["price"] = strconv.FormatFloat(*b.Price, 'f', 2, 64)
	}
	h.render(w, r, http.StatusOK, "book_form", p)
}

func (h *Handler) editBook(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(r)
	if !ok {
		h.notFound(w, r, h.page(r, "Edit book"))
		return
	}
	p := h.bookFormPage(r, "Edit book", id)
	p.Form = formValues(r, bookFields...)

	in, err := readBookForm(r).input("UpdateBook")
	if err != nil {
		h.fail(w, r, "book_form", p, err)
		return
	}
	if _, err := manager(r).API().UpdateBook(r.Context(), id, in); err != nil {
		h.fail(w, r, "book_form", p, err)
		return
	}
	redirect(w, r, gate.BookDetail.Path(strconv.FormatInt(id, 10)))
}

func (h *Handler) deleteBookForm(w http.ResponseWriter, r *http.Request) {
	p := h.page(r, "Delete book")
	id, ok := bookID(r)
	if !ok {
		h.notFound(w, r, p)
		return
	}
	d, err := manager(r).API().BookDetail(r.Context(), id)
	if err != nil {
		h.fail(w, r, "error", p, err)
		return
	}
	if !d.CanManage() {
		h.forbidden(w, r, p)
		return
	}
	p.Data = &d.Book
	h.render(w, r, http.StatusOK, "book_delete", p)
}

func (h *Handler) deleteBook(w http.ResponseWriter, r *http.Request) {
	p := h.page(r, "Delete book")
	id, ok := bookID(r)
	if !ok {
		h.notFound(w, r, p)
		return
	}
	if err := manager(r).API().DeleteBook(r.Context(), id); err != nil {
		h.fail(w, r, "error", p, err)
		return
	}
	redirect(w, r, gate.MyBooks.Pattern)
}

//
// helpers
//

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request, p *view.Page) {
	p.Error = "That book does not exist."
	h.render(w, r, http.StatusNotFound, "error", p)
}

func (h *Handler) forbidden(w http.ResponseWriter, r *http.Request, p *view.Page) {
	p.Error = "Only the owner can change this book."
	h.render(w, r, http.StatusForbidden, "error", p)
}

func bookID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// urlParam returns the unescaped path parameter.  chi hands out the raw
// segment when the request path carried escapes of its own.
func urlParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}
