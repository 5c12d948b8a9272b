// Package multibase implements the single multibase variant this system
// relies on: the "z" prefix over base58btc (Bitcoin alphabet).
package multibase

import (
	"errors"

	"github.com/mr-tron/base58"
)

// ErrBadPrefix reports input that lacks the "z" multibase prefix. Decode
// does not return it: Decode accepts input with or without the prefix.
var ErrBadPrefix = errors.New("multibase: missing z prefix")

// Encode returns "z" + base58btc(data). Empty input encodes to "z".
func Encode(data []byte) string {
	return "z" + base58.Encode(data)
}

// Decode accepts a string with or without a leading "z" and returns the
// decoded bytes. It rejects any character outside the base58btc alphabet.
func Decode(s string) ([]byte, error) {
	if s == "" {
		return []byte{}, nil
	}
	if s[0] == 'z' {
		s = s[1:]
	}
	if s == "" {
		return []byte{}, nil
	}
	return base58.Decode(s)
}
