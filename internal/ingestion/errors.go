package ingestion

import (
	"errors"
	"fmt"
)

// ErrInvalidRange is returned for an empty pool address or a range with to < from.
var ErrInvalidRange = errors.New("invalid fetch range")

// AdapterQueryError is returned when a chunk keeps failing after all retries.
// The run can be restarted from ResumeBlock without losing or duplicating data.
type AdapterQueryError struct {
	From      uint64 // first block of the failing chunk
	To        uint64 // last block of the failing chunk
	Width     uint64 // chunk width at the final attempt
	Attempts  int    // failed attempts on this chunk
	LastBlock uint64 // last block fully stored before the failure
	HasLast   bool   // false when no chunk completed in this run
	Err       error  // last adapter error
}

func (e *AdapterQueryError) Error() string {
	return fmt.Sprintf("get logs %d-%d failed after %d attempts (width %d), resume from block %d: %v",
		e.From, e.To, e.Attempts, e.Width, e.ResumeBlock(), e.Err)
}

func (e *AdapterQueryError) Unwrap() error {
	return e.Err
}

// ResumeBlock is the first block a restarted run should fetch.
func (e *AdapterQueryError) ResumeBlock() uint64 {
	return e.From
}
