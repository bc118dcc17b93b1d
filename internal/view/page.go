package view

// Page is what every template receives.  Data carries the page-specific
// payload; the rest is shared by the layout and the form partials.
type Page struct {
	Title         string
	User          string
	Authenticated bool
	CSRF          string

	// Path is the displayed browser path.  Watch asks the layout to open the
	// /events stream for it.
	Path  string
	Watch bool

	Notice string
	Error  string
	Fields map[string][]string
	Form   map[string]string

	Data any
}

// FieldError returns the first message for the named input.
func (p *Page) FieldError(name string) string {
	if msgs := p.Fields[name]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// FieldErrors returns every message for the named input.
func (p *Page) FieldErrors(name string) []string { return p.Fields[name] }

// Value returns the submitted value of the named input.
func (p *Page) Value(name string) string { return p.Form[name] }
