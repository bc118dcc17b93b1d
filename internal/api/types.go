package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
)

// Book statuses and genres offered by the backend.
var (
	Statuses = []string{"Read", "Reading", "Unread", "Want to Buy"}
	Genres   = []string{
		"Novel", "Fiction", "Non-Fiction", "Mystery", "Science Fiction",
		"Fantasy", "Romance", "Horror", "Thriller", "Historical Fiction",
		"Biography", "Autobiography", "Self-Help", "Business", "Travel",
		"Cooking", "Science", "Philosophy", "Poetry", "Children",
		"Young Adult", "Comics",
	}
	Genders = []string{"Female", "Male", "Other"}
)

//
// Users
//

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// LoginResult is the 200 body of Login.
type LoginResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Registration is the Register request.  The password confirmation is
// checked by the caller and never sent.
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterResult is the 2xx body of Register.  Token is empty unless the
// backend logs the new account in.
type RegisterResult struct {
	Message string `json:"message"`
	User    User   `json:"user"`
	Token   string `json:"token,omitempty"`
}

type Profile struct {
	FirstName      *string `json:"first_name"`
	LastName       *string `json:"last_name"`
	ProfilePicture *string `json:"profile_picture"`
	Gender         *string `json:"gender"`
}

// UserDetails is the body of GetUserDetails.
type UserDetails struct {
	User    User    `json:"user"`
	Profile Profile `json:"user_profile"`
}

// ProfileUpdate is the PATCH body of UpdateUserProfile.  Nil fields are
// sent as null, which clears them.
type ProfileUpdate struct {
	ProfilePicture *string `json:"profile_picture"`
	FirstName      *string `json:"first_name"`
	LastName       *string `json:"last_name"`
	Email          *string `json:"email"`
	Gender         *string `json:"gender"`
}

//
// Books
//

// Rating is an average rating: a number, or "Not available" for books
// nobody has rated yet.
type Rating struct {
	Value float64
	Valid bool
}

const ratingUnavailable = "Not available"

func (r *Rating) UnmarshalJSON(b []byte) error {
	switch {
	case bytes.Equal(b, []byte("null")):
		*r = Rating{}
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			*r = Rating{Value: f, Valid: true}
		} else {
			*r = Rating{}
		}
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("average_rating: %w", err)
	}
	*r = Rating{Value: f, Valid: true}
	return nil
}

func (r Rating) MarshalJSON() ([]byte, error) {
	if !r.Valid {
		return json.Marshal(ratingUnavailable)
	}
	return json.Marshal(r.Value)
}

func (r Rating) String() string {
	if !r.Valid {
		return ratingUnavailable
	}
	return strconv.FormatFloat(r.Value, 'f', 2, 64)
}

// Book as serialized by the backend.  Status is only present when the
// requesting user owns the book.
type Book struct {
	ID            int64    `json:"id"`
	Name          string   `json:"name"`
	Author        string   `json:"author"`
	Picture       *string  `json:"picture"`
	Description   *string  `json:"description"`
	Status        *string  `json:"status,omitempty"`
	Genre         string   `json:"genre,omitempty"`
	Price         *float64 `json:"price"`
	AverageRating Rating   `json:"average_rating"`
}

// Owned reports whether the backend served the owner's view of the book.
func (b Book) Owned() bool { return b.Status != nil }

// BookInput is the body of CreateBook and UpdateBook.
type BookInput struct {
	Name        string   `json:"name"`
	Author      string   `json:"author"`
	Picture     *string  `json:"picture"`
	Description *string  `json:"description"`
	Status      string   `json:"status"`
	Genre       string   `json:"genre,omitempty"`
	Price       *float64 `json:"price"`
}

// Home is the canonical feed shape: books grouped by genre.
type Home struct {
	BooksByGenre map[string][]Book `json:"books_by_genre"`
}

// GenreNames returns the feed's genres in stable order.
func (h Home) GenreNames() []string {
	out := make([]string, 0, len(h.BooksByGenre))
	for g := range h.BooksByGenre {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// StatusChoice is one `[value, label]` pair of the my-books listing.
type StatusChoice struct {
	Value string
	Label string
}

func (s *StatusChoice) UnmarshalJSON(b []byte) error {
	var pair []string
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("status choice: want [value, label], got %d items", len(pair))
	}
	s.Value, s.Label = pair[0], pair[1]
	return nil
}

// StatusList is the body of MyBooks.
type StatusList struct {
	Status []StatusChoice `json:"status"`
}

// BookPage is one page of ListBooksByStatus.  Next and Previous are
// opaque cursor URLs, nil at either end.
type BookPage struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []Book  `json:"results"`
}

// NextPage reports the page number the next cursor points at.
func (p BookPage) NextPage() (int, bool) { return cursorPage(p.Next) }

// PreviousPage reports the page number the previous cursor points at.
func (p BookPage) PreviousPage() (int, bool) { return cursorPage(p.Previous) }

// cursorPage extracts ?page=n.  A cursor without the parameter is page 1,
// which is how the backend links back to the first page.
func cursorPage(cursor *string) (int, bool) {
	if cursor == nil || *cursor == "" {
		return 0, false
	}
	u, err := url.Parse(*cursor)
	if err != nil {
		return 0, false
	}
	raw := u.Query().Get("page")
	if raw == "" {
		return 1, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// BookDetail is the body of GetBookDetail.  UserRating is the caller's own
// rating, nil when unrated or anonymous.
type BookDetail struct {
	Book       Book `json:"book"`
	IsAuth     bool `json:"is_auth"`
	UserRating *int `json:"user_rating"`
}

// CanRate reports whether the rating widget applies.
func (d BookDetail) CanRate() bool { return d.IsAuth }

// CanManage reports whether edit and delete controls apply.
func (d BookDetail) CanManage() bool { return d.IsAuth && d.Book.Owned() }
