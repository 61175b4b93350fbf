package features

import (
	"errors"
	"fmt"
)

// ErrOutOfOrder is returned when events are not strictly ascending by (block, log index).
var ErrOutOfOrder = errors.New("events not in ascending (block, log index) order")

// SchemaError reports a stored event missing a field the pipeline requires.
type SchemaError struct {
	Field    string
	Block    uint64
	LogIndex uint
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("event %d:%d missing required field %s", e.Block, e.LogIndex, e.Field)
}
