package client

import (
	"errors"
	"fmt"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrRejected     = errors.New("rejected by server")
)

// StatusError is a non-2xx answer from the server.
type StatusError struct {
	Code    int
	Message string
	Fields  map[string]string
	kind    error
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.kind, e.Code)
	}
	return fmt.Sprintf("%s: status %d: %s", e.kind, e.Code, e.Message)
}

func (e *StatusError) Unwrap() error {
	return e.kind
}
