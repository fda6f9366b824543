// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"
)

func TestReadResponse(t *testing.T) {
	t.Run("normal body", func(t *testing.T) {
		data, err := ReadResponse(bytes.NewReader([]byte("- flavor: alpine-minirootfs\n")))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != "- flavor: alpine-minirootfs\n" {
			t.Fatalf("got %q", data)
		}
	})

	t.Run("empty body", func(t *testing.T) {
		data, err := ReadResponse(bytes.NewReader(nil))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(data) != 0 {
			t.Fatalf("expected empty, got %d bytes", len(data))
		}
	})

	t.Run("oversized body", func(t *testing.T) {
		oversized := io.LimitReader(zeroReader{}, MaxResponseSize+10)
		if _, err := ReadResponse(oversized); err == nil {
			t.Fatal("expected error for oversized body")
		}
	})

	t.Run("read error propagates", func(t *testing.T) {
		if _, err := ReadResponse(&failReader{}); err == nil {
			t.Fatal("expected error from failing reader")
		}
	})
}

func TestErrorBody(t *testing.T) {
	t.Run("trims whitespace", func(t *testing.T) {
		if got := ErrorBody(strings.NewReader("  404 Not Found\n")); got != "404 Not Found" {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("truncates long bodies", func(t *testing.T) {
		got := ErrorBody(strings.NewReader(strings.Repeat("x", 4096)))
		if len(got) != maxErrorSnippet {
			t.Fatalf("len = %d, want %d", len(got), maxErrorSnippet)
		}
	})

	t.Run("read error returns empty", func(t *testing.T) {
		if got := ErrorBody(&failReader{}); got != "" {
			t.Fatalf("expected empty from failing reader, got %q", got)
		}
	})
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

// failReader always returns an error on Read.
type failReader struct{}

func (*failReader) Read([]byte) (int, error) {
	return 0, fmt.Errorf("simulated read failure")
}
