package crypto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrNotObject is returned when a body to be signed is not a JSON object.
var ErrNotObject = errors.New("crypto: payload is not a JSON object")

// Canonicalize returns the signing form of a JSON object: compact, keys
// sorted lexicographically at every level, numbers kept as written. An empty
// body canonicalizes to {}.
func Canonicalize(body []byte) ([]byte, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return []byte("{}"), nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotObject, err)
	}
	if obj == nil {
		return nil, ErrNotObject
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data", ErrNotObject)
	}
	return marshalCompact(obj)
}

// marshalCompact encodes v without HTML escaping or a trailing newline.
// encoding/json sorts map keys, which is what makes the output canonical.
func marshalCompact(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
