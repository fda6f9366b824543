// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// maxDiagnostic bounds the diagnostic text attached to a DecodeError.
const maxDiagnostic = 512

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	// Core Deterministic Encoding (RFC 8949 §4.2) with nanosecond RFC 3339
	// timestamps.
	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	mode, err := encOptions.EncMode()
	if err != nil {
		panic("codec: building CBOR encoder: " + err.Error())
	}
	encMode = mode

	// Unknown fields are skipped so older binaries read newer metadata.
	decoder, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: building CBOR decoder: " + err.Error())
	}
	decMode = decoder
}

// DecodeError reports bytes that could not be decoded into the target.
// Diagnostic holds the RFC 8949 diagnostic notation of the input when it
// is well-formed CBOR, or a hex prefix when it is not.
type DecodeError struct {
	Err        error
	Diagnostic string
}

func (err *DecodeError) Error() string {
	return fmt.Sprintf("codec: %v (content: %s)", err.Err, err.Diagnostic)
}

func (err *DecodeError) Unwrap() error { return err.Err }

// Marshal encodes v deterministically: identical values always produce
// identical bytes.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes data into v. Failures are returned as *DecodeError.
func Unmarshal(data []byte, v any) error {
	if err := decMode.Unmarshal(data, v); err != nil {
		return &DecodeError{Err: err, Diagnostic: diagnose(data)}
	}
	return nil
}

func diagnose(data []byte) string {
	text, err := cbor.Diagnose(data)
	if err != nil {
		prefix := data
		if len(prefix) > 32 {
			prefix = prefix[:32]
		}
		text = fmt.Sprintf("%d bytes, not CBOR: %x", len(data), prefix)
	}
	if len(text) > maxDiagnostic {
		text = text[:maxDiagnostic] + "..."
	}
	return text
}
