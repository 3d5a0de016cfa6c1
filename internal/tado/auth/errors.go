package auth

import (
	"errors"
	"fmt"
)

// ErrTimeout is returned when the device grant expires before the
// authorization is approved.
var ErrTimeout = errors.New("device authentication flow took too long to complete")

// HTTPError reports a transport or status-level failure while talking to the
// auth endpoints.
type HTTPError struct {
	Op  string
	Err error
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// HeaderError reports a response header whose value could not be decoded as
// text.
type HeaderError struct {
	Name string
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("header %s could not be decoded as text", e.Name)
}

// MissingParamError reports a required parameter absent from the approval
// redirect URL.
type MissingParamError struct {
	Param string
}

func (e *MissingParamError) Error() string {
	return fmt.Sprintf("missing required parameter %s", e.Param)
}

// UnexpectedStatusError reports a response outside the expected
// success/pending cases.
type UnexpectedStatusError struct {
	Status int
	URL    string
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("unexpected auth API status %d for URL %s", e.Status, e.URL)
}

// URLParseError reports a constructed or extracted URL that was malformed.
type URLParseError struct {
	Value string
	Err   error
}

func (e *URLParseError) Error() string {
	return fmt.Sprintf("failed to parse URL %q: %v", e.Value, e.Err)
}

func (e *URLParseError) Unwrap() error {
	return e.Err
}
