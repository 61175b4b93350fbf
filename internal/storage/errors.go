package storage

import "errors"

// ErrInvalidInput is returned when input validation fails.
// Duplicate keys are not an error: stores skip them.
var ErrInvalidInput = errors.New("invalid input")
