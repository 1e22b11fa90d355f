// Package translate turns raw compiler stdout into editor values.
//
// All functions are pure; they never touch the filesystem or the process.
package translate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotArray reports JSON output whose top-level value is not an array.
var ErrNotArray = errors.New("expected a JSON array")

// decodeArray decodes a JSON array into out.
//
// The canonical encoding is a plain array. Some compiler builds print the
// array as a JSON string instead; exactly one such level is unwrapped and
// anything else is rejected.
func decodeArray(raw []byte, out any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return errors.New("empty output")
	}
	if trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return fmt.Errorf("decode string-wrapped output: %w", err)
		}
		trimmed = bytes.TrimSpace([]byte(inner))
		if len(trimmed) == 0 || trimmed[0] != '[' {
			return ErrNotArray
		}
	}
	if trimmed[0] != '[' {
		return ErrNotArray
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return err
	}
	return nil
}
