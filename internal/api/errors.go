// internal/api/errors.go
//
// Error taxonomy of the backend client.
//
// Context
// -------
// Every failure the client returns is an *Error carrying one Kind:
//
//	NetworkFailure – no response (dial, TLS, timeout, cancelled ctx)
//	Unauthorized   – 401, or a token-required call made without a token
//	ClientError    – any other 4xx; Detail and Fields hold the DRF body
//	ServerError    – 5xx, unexpected statuses, malformed 2xx bodies
//	ConflictState  – detected locally before any request (form checks)
//
// errors.Is(err, ErrUnauthorized) and friends match on Kind, so callers
// never need to type-assert.  The transport error, when there is one, is
// reachable through Unwrap.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies a failure.
type Kind uint8

const (
	NetworkFailure Kind = iota + 1
	Unauthorized
	ClientError
	ServerError
	ConflictState
)

func (k Kind) String() string {
	switch k {
	case NetworkFailure:
		return "network_failure"
	case Unauthorized:
		return "unauthorized"
	case ClientError:
		return "client_error"
	case ServerError:
		return "server_error"
	case ConflictState:
		return "conflict_state"
	}
	return "unknown"
}

// Kind sentinels for errors.Is.
var (
	ErrNetworkFailure = errors.New("network failure")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrClientError    = errors.New("client error")
	ErrServerError    = errors.New("server error")
	ErrConflictState  = errors.New("conflict state")
)

var (
	// ErrPaginationCycle is returned when a next cursor revisits a page.
	ErrPaginationCycle = errors.New("pagination cursor revisits a page")
	// ErrForeignCursor is returned for cursors pointing off the API origin.
	ErrForeignCursor = errors.New("pagination cursor leaves the API origin")
)

func (k Kind) sentinel() error {
	switch k {
	case NetworkFailure:
		return ErrNetworkFailure
	case Unauthorized:
		return ErrUnauthorized
	case ClientError:
		return ErrClientError
	case ServerError:
		return ErrServerError
	case ConflictState:
		return ErrConflictState
	}
	return nil
}

// Error is the typed result of a failed call.
type Error struct {
	Op     string              // logical operation, e.g. "Login"
	Kind   Kind
	Status int                 // HTTP status; 0 when no response arrived
	Detail string              // human-readable summary
	Fields map[string][]string // per-field messages
	Err    error               // underlying cause, if any
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("api ")
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (%d)", e.Status)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the Kind sentinel.
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// Message is the single line a view shows for the error.
func (e *Error) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	switch e.Kind {
	case NetworkFailure:
		return "The book service could not be reached.  Please try again."
	case Unauthorized:
		return "Your session has ended.  Please log in again."
	case ServerError:
		return "The book service failed to handle the request."
	}
	return "The request was rejected."
}

// Conflict builds a ConflictState error attached to one form field.
func Conflict(op, field, msg string) *Error {
	return &Error{
		Op:     op,
		Kind:   ConflictState,
		Detail: msg,
		Fields: map[string][]string{field: {msg}},
	}
}

// KindOf reports the Kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// FieldErrors returns the per-field messages of err, or nil.
func FieldErrors(err error) map[string][]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}

// parseBody fills Detail and Fields from a DRF error document:
//
//	{"detail": "Invalid credentials"}
//	{"username": ["This field is required."], "non_field_errors": ["…"]}
//
// Anything else is ignored.
func (e *Error) parseBody(raw []byte) {
	var doc map[string]json.RawMessage
	if json.Unmarshal(raw, &doc) != nil {
		return
	}

	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var general []string
	for _, k := range keys {
		msgs := messages(doc[k])
		if len(msgs) == 0 {
			continue
		}
		switch k {
		case "detail", "error", "message", "non_field_errors":
			general = append(general, msgs...)
		default:
			if e.Fields == nil {
				e.Fields = make(map[string][]string)
			}
			e.Fields[k] = msgs
		}
	}
	if len(general) > 0 {
		e.Detail = strings.Join(general, " ")
	}
}

func messages(raw json.RawMessage) []string {
	var one string
	if json.Unmarshal(raw, &one) == nil {
		return []string{one}
	}
	var many []string
	if json.Unmarshal(raw, &many) == nil {
		return many
	}
	return nil
}
