package decoder

import (
	"errors"
	"fmt"
)

// ErrEmptyPayload is returned when a log carries no data bytes.
var ErrEmptyPayload = errors.New("empty payload")

// DecodeError describes a single log record that could not be decoded.
// Callers count and skip these; they never abort a fetch.
type DecodeError struct {
	Block    uint64
	LogIndex uint
	Reason   string
	Err      error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode log %d:%d: %s: %v", e.Block, e.LogIndex, e.Reason, e.Err)
	}
	return fmt.Sprintf("decode log %d:%d: %s", e.Block, e.LogIndex, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
