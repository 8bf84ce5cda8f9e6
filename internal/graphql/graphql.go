// Package graphql is the client's single request pipeline: queries and
// mutations over HTTP with bearer auth and a shared token refresh, and
// subscriptions over one graphql-transport-ws socket.
package graphql

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSessionExpired is returned to every caller waiting on a refresh that failed.
	ErrSessionExpired = errors.New("session expired")
	// ErrUnauthorized is returned when a request is still rejected after a successful refresh.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNoRefreshToken means a refresh was needed but none is stored.
	ErrNoRefreshToken = errors.New("no refresh token")
	// ErrWrongTransport is returned when an operation is sent over the transport that does not carry its kind.
	ErrWrongTransport = errors.New("operation kind not supported by this transport")
	// ErrNotConnected is returned by Subscribe before Connect or after the socket dropped.
	ErrNotConnected = errors.New("subscription socket not connected")
)

// Request is one GraphQL operation.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// Error is one entry of a GraphQL `errors` array.
type Error struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e Error) Error() string { return e.Message }

// Errors is a non-empty GraphQL `errors` array. Its message is the first
// server message verbatim, which is what screens display.
type Errors []Error

func (e Errors) Error() string {
	if len(e) == 0 {
		return "graphql: empty error list"
	}
	return e[0].Message
}

// Unauthorized reports whether any message contains "unauthorized",
// case-insensitively.
func (e Errors) Unauthorized() bool {
	for _, err := range e {
		if strings.Contains(strings.ToLower(err.Message), "unauthorized") {
			return true
		}
	}
	return false
}

// HTTPError is a non-2xx response whose body was not a GraphQL response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("graphql: http status %d", e.StatusCode)
	}
	return fmt.Sprintf("graphql: http status %d: %s", e.StatusCode, e.Body)
}

// Response is the standard GraphQL response envelope.
type Response struct {
	Data   json.RawMessage `json:"data"`
	Errors Errors          `json:"errors,omitempty"`
}

// Decode returns the errors, if any, or unmarshals data into out.
func (r *Response) Decode(out any) error {
	if len(r.Errors) > 0 {
		return r.Errors
	}
	if out == nil || len(r.Data) == 0 || string(r.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(r.Data, out); err != nil {
		return fmt.Errorf("graphql: decode data: %w", err)
	}
	return nil
}

// Kind is the operation type of a document's main definition.
type Kind int

const (
	KindQuery Kind = iota
	KindMutation
	KindSubscription
)

func (k Kind) String() string {
	switch k {
	case KindMutation:
		return "mutation"
	case KindSubscription:
		return "subscription"
	}
	return "query"
}

// OperationKind returns the kind of the first operation definition in
// query, skipping comments, strings and fragment definitions. A document
// that starts with a bare selection set is a query.
func OperationKind(query string) Kind {
	depth := 0
	for i := 0; i < len(query); {
		c := query[i]
		switch {
		case c == '#':
			for i < len(query) && query[i] != '\n' {
				i++
			}
		case c == '"':
			i = skipString(query, i)
		case c == '{':
			if depth == 0 {
				// A top-level selection set before any keyword is the query shorthand;
				// one after a fragment header is the fragment's body.
				if !inFragment(query[:i]) {
					return KindQuery
				}
			}
			depth++
			i++
		case c == '}':
			depth--
			i++
		case depth == 0 && isNameStart(c):
			j := i
			for j < len(query) && isNameChar(query[j]) {
				j++
			}
			switch query[i:j] {
			case "query":
				return KindQuery
			case "mutation":
				return KindMutation
			case "subscription":
				return KindSubscription
			}
			i = j
		default:
			i++
		}
	}
	return KindQuery
}

// inFragment reports whether the last top-level keyword before a brace was
// a fragment header.
func inFragment(prefix string) bool {
	trimmed := strings.TrimSpace(prefix)
	last := strings.LastIndex(trimmed, "}")
	if last >= 0 {
		trimmed = trimmed[last+1:]
	}
	return strings.HasPrefix(strings.TrimSpace(trimmed), "fragment")
}

func skipString(s string, i int) int {
	if strings.HasPrefix(s[i:], `"""`) {
		end := strings.Index(s[i+3:], `"""`)
		if end < 0 {
			return len(s)
		}
		return i + 3 + end + 3
	}
	i++
	for i < len(s) {
		switch s[i] {
		case '\\':
			i += 2
			continue
		case '"':
			return i + 1
		}
		i++
	}
	return i
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameChar(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9')
}
