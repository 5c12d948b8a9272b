// Package canon produces RFC 8785 JSON Canonicalization Scheme (JCS)
// byte encodings, the deterministic serialization that manifest and
// challenge signatures are computed over.
package canon

import (
	"encoding/json"
	"fmt"

	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
)

// Marshal canonicalizes v: it marshals v to JSON, then runs the result
// through JCS so that two structurally equal values produce byte-identical
// output regardless of field order or number formatting.
func Marshal(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canon: marshal: %w", err)
	}
	return Transform(raw)
}

// Transform canonicalizes an already-serialized JSON document.
func Transform(jsonBytes []byte) ([]byte, error) {
	out, err := jsoncanonicalizer.Transform(jsonBytes)
	if err != nil {
		return nil, fmt.Errorf("canon: transform: %w", err)
	}
	return out, nil
}
