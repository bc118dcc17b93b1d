// internal/form/validate.go
//
// Bookshelf – form validation.
//
// Context
//   Handlers decode a POST body into a tagged struct and call Check before
//   anything reaches the backend.  Rules live in `validate:"…"` tags
//   (go-playground/validator), and `form:"…"` names the HTML input so the
//   messages line up with the fields the template renders.
//
//   Failures come back as *api.Error so views treat them exactly like a
//   backend 400:
//
//     •  any `eqfield` failure (password confirmation)  → ConflictState,
//     •  everything else                               → ClientError.
//
//------------------------------------------------------------------------------

package form

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/yanizio/bookshelf/internal/api"
)

var (
	once     sync.Once
	validate *validator.Validate
)

func engine() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("form"), ",")
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
	})
	return validate
}

// Check validates v.  op names the logical operation for the error.
func Check(op string, v any) error {
	err := engine().Struct(v)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return &api.Error{Op: op, Kind: api.ClientError, Err: err}
	}

	out := &api.Error{
		Op:     op,
		Kind:   api.ClientError,
		Detail: "Please correct the highlighted fields.",
		Fields: make(map[string][]string, len(ves)),
	}
	for _, fe := range ves {
		msg := message(fe)
		out.Fields[fe.Field()] = append(out.Fields[fe.Field()], msg)
		if fe.Tag() == "eqfield" {
			out.Kind = api.ConflictState
			out.Detail = msg
		}
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "url", "http_url":
		return "Enter a valid URL."
	case "numeric", "number":
		return "Enter a number."
	case "eqfield":
		if strings.Contains(strings.ToLower(fe.Param()), "password") {
			return "Passwords do not match."
		}
		return fmt.Sprintf("Must match %s.", fe.Param())
	case "oneof":
		return "Select one of: " + strings.Join(strings.Fields(fe.Param()), ", ") + "."
	case "min", "gte":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Use at least %s characters.", fe.Param())
		}
		return fmt.Sprintf("Must be at least %s.", fe.Param())
	case "max", "lte":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Use at most %s characters.", fe.Param())
		}
		return fmt.Sprintf("Must be at most %s.", fe.Param())
	}
	return "Invalid value."
}

// Optional trims s and returns nil when nothing is left.  The backend
// clears nullable columns on null.
func Optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
