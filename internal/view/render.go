// internal/view/render.go
//
// Central view engine: embedded templates, func-map injection, and an LRU of
// parsed *template.Template* sets.
//
// Public helpers
// --------------
//   - Render – execute a page inside the layout and write it to w.
//
// Every page is parsed together with layout.html and partials.html, so each
// page file only defines "title" and "content":
//
//	{{ define "title" }}My books{{ end }}
//	{{ define "content" }} … {{ end }}
//
// Output is buffered; a failing template never sends a half-written page.
//
// Style
// -----
// • Oxford commas, two spaces after periods.

package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"go.uber.org/zap"

	"github.com/yanizio/bookshelf/internal/cache"
)

//go:embed templates/*.html
var builtin embed.FS

const (
	layoutFile   = "layout.html"
	partialsFile = "partials.html"
	layoutName   = "layout"
)

// Engine renders pages.  Safe for concurrent use.
type Engine struct {
	fsys  fs.FS
	funcs template.FuncMap
	sets  *cache.LRU[string, *template.Template]
	log   *zap.SugaredLogger
}

// New returns an Engine over the embedded templates.
func New(log *zap.SugaredLogger) *Engine {
	sub, err := fs.Sub(builtin, "templates")
	if err != nil {
		panic(err) // embed pattern guarantees the directory
	}
	return NewFS(sub, log)
}

// NewFS returns an Engine reading templates from fsys.
func NewFS(fsys fs.FS, log *zap.SugaredLogger) *Engine {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Engine{
		fsys:  fsys,
		funcs: funcMap(),
		sets:  cache.New[string, *template.Template](64),
		log:   log,
	}
}

//
// public helpers
//

// Render executes page inside the layout and writes it with status.
func (e *Engine) Render(w http.ResponseWriter, status int, page string, p *Page) error {
	t, err := e.load(page)
	if err != nil {
		return err
	}
	if p == nil {
		p = &Page{}
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, layoutName, p); err != nil {
		e.log.Errorw("template execute failed", "page", page, "err", err)
		return fmt.Errorf("view %s: %w", page, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err = buf.WriteTo(w)
	return err
}

//
// internal: load
//

// load parses (or fetches from cache) the set for page.
func (e *Engine) load(page string) (*template.Template, error) {
	if t, ok := e.sets.Get(page); ok {
		return t, nil
	}
	t, err := template.New(page).Funcs(e.funcs).
		ParseFS(e.fsys, layoutFile, partialsFile, page+".html")
	if err != nil {
		e.log.Errorw("template parse failed", "page", page, "err", err)
		return nil, fmt.Errorf("view %s: %w", page, err)
	}
	e.sets.Add(page, t)
	return t, nil
}
