// Package translator invokes the translator module inside the embedded
// interpreter: it resolves the module, calls its entry point with a Query
// and returns the raw payload the module produced.
package translator

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrEmptyQuery is returned for a query whose text is blank.
var ErrEmptyQuery = errors.New("query text is empty")

// Query is one request to the translator.
type Query struct {
	Text        string
	Credential  string
	CatalogPath string
	OutputPath  string
}

// Validate rejects queries that must not reach the interpreter.
func (q Query) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return ErrEmptyQuery
	}
	return nil
}

// RawPayload is the translator's undecoded return value.
type RawPayload string

// InvocationError means the translator module could not be called or failed
// while running.
type InvocationError struct {
	Module  string
	Message string
	Err     error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("translator %s failed: %s", e.Module, e.Message)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// TimeoutError means the translator did not return before the deadline.
type TimeoutError struct {
	Module string
	After  time.Duration
}

func (e *TimeoutError) Error() string {
	if e.After > 0 {
		return fmt.Sprintf("translator %s timed out after %s", e.Module, e.After)
	}
	return fmt.Sprintf("translator %s timed out", e.Module)
}
