// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package helpcenter

import (
	"fmt"
)

// maxErrorBody bounds how much of a failed response is kept in an
// APIError.
const maxErrorBody = 1024

// APIError is returned when the help-center API answers with a
// non-success status, or hands back a pagination cursor that cannot be
// followed.
type APIError struct {
	URL        string
	StatusCode int
	Body       string
	Message    string
}

// Error implements error.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("help center API %s: %s", e.URL, e.Message)
	}
	return fmt.Sprintf("help center API %s: unexpected status %d: %s", e.URL, e.StatusCode, e.Body)
}

// ParseError is returned when a response body is not the JSON document
// the API promised.
type ParseError struct {
	URL string
	Err error
}

// Error implements error.
func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse response from %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying decoding error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

func truncate(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody]) + "..."
	}
	return string(body)
}
