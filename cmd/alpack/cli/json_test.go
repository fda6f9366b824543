// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"testing"
)

func TestEmitJSON(t *testing.T) {
	var buffer bytes.Buffer
	original := JSONOutputWriter
	JSONOutputWriter = &buffer
	t.Cleanup(func() { JSONOutputWriter = original })

	output := JSONOutput{}
	if done, err := output.EmitJSON([]string{"a"}); done || err != nil {
		t.Fatalf("EmitJSON without --json = %v, %v, want false, nil", done, err)
	}
	if buffer.Len() != 0 {
		t.Fatalf("EmitJSON without --json wrote %q", buffer.String())
	}

	output.OutputJSON = true
	var empty []string
	if done, err := output.EmitJSON(empty); !done || err != nil {
		t.Fatalf("EmitJSON = %v, %v, want true, nil", done, err)
	}
	if got := buffer.String(); got != "[]\n" {
		t.Errorf("nil slice encoded as %q, want []", got)
	}

	buffer.Reset()
	if _, err := output.EmitJSON(map[string]int{"count": 2}); err != nil {
		t.Fatal(err)
	}
	if got := buffer.String(); got != "{\n  \"count\": 2\n}\n" {
		t.Errorf("map encoded as %q", got)
	}
}
