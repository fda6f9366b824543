// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides HTTP I/O helpers for mirror access.
//
// ReadResponse and ErrorBody bound body reads so that a misbehaving
// mirror cannot exhaust memory when alpack reads a release index or an
// error page. Archive downloads are streamed with io.Copy instead.
package netutil

import (
	"fmt"
	"io"
	"strings"
)

// MaxResponseSize bounds index and checksum reads: 16 MB. Alpine's
// release directory listings and latest-releases.yaml are a few
// kilobytes.
const MaxResponseSize int64 = 16 << 20

// maxErrorSnippet is how much of an error body ends up in messages.
const maxErrorSnippet = 512

// ReadResponse reads a response body up to MaxResponseSize bytes and
// fails if the body is larger.
func ReadResponse(body io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, MaxResponseSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > MaxResponseSize {
		return nil, fmt.Errorf("response body exceeds %d bytes", MaxResponseSize)
	}
	return data, nil
}

// ErrorBody reads an HTTP error response body and returns a trimmed
// snippet for diagnostic messages. Read errors are ignored.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, maxErrorSnippet))
	return strings.TrimSpace(string(data))
}
