package authapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	// ErrUnauthorized matches any 401 response.
	ErrUnauthorized = errors.New("authapi: unauthorized")
	// ErrValidation matches 400 and 422 responses.
	ErrValidation = errors.New("authapi: validation failed")
	// ErrServer matches 5xx responses.
	ErrServer = errors.New("authapi: server error")
	// ErrTransport wraps failures to reach the server at all.
	ErrTransport = errors.New("authapi: transport failure")
	// ErrDecode is returned when a success body cannot be decoded.
	ErrDecode = errors.New("authapi: malformed response")
)

// APIError is a non-2xx response from the auth service.
type APIError struct {
	StatusCode int
	Message    string
	// Fields maps a form field to its validation messages.
	Fields map[string][]string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("authapi: status %d: %s", e.StatusCode, e.HumanMessage())
}

// Is lets callers match status classes with errors.Is.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrValidation:
		return e.StatusCode == http.StatusBadRequest || e.StatusCode == http.StatusUnprocessableEntity
	case ErrServer:
		return e.StatusCode >= http.StatusInternalServerError
	}
	return false
}

// HumanMessage returns the most specific message the response carried:
// the server's own message, else the first field error, else a generic
// status line.
func (e *APIError) HumanMessage() string {
	if e.Message != "" {
		return e.Message
	}
	if len(e.Fields) > 0 {
		names := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, name := range names {
			if msgs := e.Fields[name]; len(msgs) > 0 {
				if name == "non_field_errors" {
					return msgs[0]
				}
				return name + ": " + msgs[0]
			}
		}
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}

// decodeAPIError understands the shapes the backend produces:
// {"error": "..."}, {"detail": "..."}, {"message": "..."},
// {"error": "...", "details": {field: [...]}} and bare DRF field maps.
func decodeAPIError(status int, body []byte) *APIError {
	e := &APIError{StatusCode: status}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		if s := strings.TrimSpace(string(body)); s != "" && len(s) < 200 && !strings.HasPrefix(s, "<") {
			e.Message = s
		}
		return e
	}

	for _, key := range []string{"error", "detail", "message"} {
		if v, ok := raw[key]; ok {
			var s string
			if json.Unmarshal(v, &s) == nil && s != "" {
				e.Message = s
				break
			}
		}
	}

	if v, ok := raw["details"]; ok {
		e.Fields = decodeFieldMap(v)
		return e
	}
	fields := make(map[string][]string)
	for k, v := range raw {
		switch k {
		case "error", "detail", "message":
			continue
		}
		if msgs := decodeMessages(v); len(msgs) > 0 {
			fields[k] = msgs
		}
	}
	if len(fields) > 0 {
		e.Fields = fields
	}
	return e
}

func decodeFieldMap(v json.RawMessage) map[string][]string {
	var m map[string]json.RawMessage
	if json.Unmarshal(v, &m) != nil {
		return nil
	}
	out := make(map[string][]string, len(m))
	for k, raw := range m {
		if msgs := decodeMessages(raw); len(msgs) > 0 {
			out[k] = msgs
		}
	}
	return out
}

func decodeMessages(v json.RawMessage) []string {
	var list []string
	if json.Unmarshal(v, &list) == nil {
		return list
	}
	var one string
	if json.Unmarshal(v, &one) == nil && one != "" {
		return []string{one}
	}
	return nil
}
