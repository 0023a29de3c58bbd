package platform

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a lookup by id or natural key finds nothing.
var ErrNotFound = errors.New("not found")

// HTTPError is a non-2xx response from the shop or the relay.
type HTTPError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Endpoint, e.StatusCode, e.Body)
}

// GraphQLError is a response with a populated top-level errors array.
type GraphQLError struct {
	Messages []string
	Codes    []string
}

func (e *GraphQLError) Error() string {
	return strings.Join(e.Messages, "; ")
}

// Throttled reports whether the API rejected the query for cost reasons.
func (e *GraphQLError) Throttled() bool {
	for _, c := range e.Codes {
		if c == "THROTTLED" {
			return true
		}
	}
	return false
}

type graphQLEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message    string `json:"message"`
		Extensions struct {
			Code string `json:"code"`
		} `json:"extensions"`
	} `json:"errors"`
}

// checkGraphQL returns a *GraphQLError when body carries GraphQL errors.
func checkGraphQL(body []byte) *GraphQLError {
	var env graphQLEnvelope
	if err := json.Unmarshal(body, &env); err != nil || len(env.Errors) == 0 {
		return nil
	}
	gqlErr := &GraphQLError{}
	for _, e := range env.Errors {
		gqlErr.Messages = append(gqlErr.Messages, e.Message)
		if e.Extensions.Code != "" {
			gqlErr.Codes = append(gqlErr.Codes, e.Extensions.Code)
		}
	}
	return gqlErr
}

// UserError is a field-level error reported by a mutation.
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

// UserErrors is the userErrors list of a mutation payload.
type UserErrors []UserError

func (e UserErrors) Error() string {
	msgs := make([]string, len(e))
	for i, u := range e {
		msgs[i] = u.Message
	}
	return strings.Join(msgs, ", ")
}

// Err returns nil for an empty list and the list itself otherwise.
func (e UserErrors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}
