// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package release

import (
	"errors"
	"fmt"
	"net/http"
)

// NetworkError reports a failed request to the mirror. StatusCode is
// zero when the request never produced a response.
type NetworkError struct {
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (err *NetworkError) Error() string {
	if err.StatusCode != 0 {
		message := fmt.Sprintf("release: GET %s: HTTP %d", err.URL, err.StatusCode)
		if err.Body != "" {
			message += ": " + err.Body
		}
		return message
	}
	return fmt.Sprintf("release: GET %s: %v", err.URL, err.Err)
}

func (err *NetworkError) Unwrap() error { return err.Err }

// Temporary reports whether retrying the request could succeed:
// transport failures, server errors and rate limiting.
func (err *NetworkError) Temporary() bool {
	if err.StatusCode == 0 {
		return true
	}
	return err.StatusCode >= 500 || err.StatusCode == http.StatusTooManyRequests
}

// IsNotFound reports whether err is an HTTP 404 from the mirror.
func IsNotFound(err error) bool {
	var networkError *NetworkError
	return errors.As(err, &networkError) && networkError.StatusCode == http.StatusNotFound
}

// IntegrityError reports a downloaded archive whose digest does not
// match the published checksum. The file has already been discarded.
type IntegrityError struct {
	URL      string
	Expected string
	Actual   string
}

func (err *IntegrityError) Error() string {
	return fmt.Sprintf("release: checksum mismatch for %s: expected sha256 %s, got %s", err.URL, err.Expected, err.Actual)
}
