// internal/view/funcs.go
//
// Template helpers.
//
//	dict        – {{ template "field" dict "Page" $ "Name" "email" }}
//	stars       – "★★★☆☆" for an average rating
//	rating      – "4.50" or "Not available"
//	deref       – *string → string, "" for nil
//	derefFloat  – *float64 → "12.50", "" for nil
//	route       – {{ route "book-edit" .ID }} → "/books/7/edit"
//	seq         – {{ range seq 1 5 }}
//	isSelected  – compare an optional int with a loop index

package view

import (
	"fmt"
	"html/template"
	"math"
	"strconv"
	"strings"

	"github.com/yanizio/bookshelf/internal/api"
	"github.com/yanizio/bookshelf/internal/gate"
)

func funcMap() template.FuncMap {
	return template.FuncMap{
		"dict":       dict,
		"stars":      stars,
		"rating":     rating,
		"deref":      deref,
		"derefFloat": derefFloat,
		"route":      route,
		"seq":        seq,
		"isSelected": isSelected,
	}
}

// dict builds a map in templates: {{ dict "k" 1 "k2" "v" }}.
func dict(kv ...any) map[string]any {
	m := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		m[key] = kv[i+1]
	}
	return m
}

func stars(r api.Rating) string {
	if !r.Valid {
		return ""
	}
	n := int(math.Round(r.Value))
	n = max(0, min(5, n))
	return strings.Repeat("★", n) + strings.Repeat("☆", 5-n)
}

func rating(r api.Rating) string { return r.String() }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', 2, 64)
}

// route renders a gate route by name.  Unknown names render "#" so a typo
// shows up as a dead link rather than a template error.
func route(name string, args ...any) string {
	r, ok := gate.Named(name)
	if !ok {
		return "#"
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprint(a)
	}
	return r.Path(parts...)
}

func seq(from, to int) []int {
	if to < from {
		return nil
	}
	out := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

func isSelected(v *int, n int) bool { return v != nil && *v == n }
