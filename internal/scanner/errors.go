package scanner

import (
	"errors"
	"fmt"
)

// ErrNotRegistered is returned when no scanner answers to a module id.
var ErrNotRegistered = errors.New("scanner is not registered")

// FetchError reports a page that could not be downloaded: a transport
// failure, an empty body or a non-2xx status.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e == nil {
		return "fetch failed"
	}
	switch {
	case e.Err != nil && e.Status != 0:
		return fmt.Sprintf("fetch %s: HTTP %d: %v", e.URL, e.Status, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.Status)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports a payload the document engine could not load.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	if e == nil {
		return "parse failed"
	}
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError reports a malformed invocation parameter. It is raised
// before any request is made.
type ValidationError struct {
	Param  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "invalid parameter"
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Param, e.Value, e.Reason)
}
