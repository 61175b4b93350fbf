package ingestion

import (
	"errors"
	"sort"

	"dex-exec-lab/internal/domain"
)

// ErrInvalidOrdering is returned when events are not properly ordered.
var ErrInvalidOrdering = errors.New("events are not in deterministic order")

// SortSwapEvents orders events by (block_number ASC, log_index ASC).
// This is the canonical on-chain order of logs.
func SortSwapEvents(events []*domain.SwapEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return compareSwapEvents(events[i], events[j]) < 0
	})
}

// ValidateSwapEventOrdering checks that events are strictly increasing.
// Returns ErrInvalidOrdering if not.
func ValidateSwapEventOrdering(events []*domain.SwapEvent) error {
	for i := 1; i < len(events); i++ {
		if compareSwapEvents(events[i-1], events[i]) >= 0 {
			return ErrInvalidOrdering
		}
	}
	return nil
}

// compareSwapEvents returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
//
// Order: (block_number ASC, log_index ASC)
func compareSwapEvents(a, b *domain.SwapEvent) int {
	if a.BlockNumber != b.BlockNumber {
		if a.BlockNumber < b.BlockNumber {
			return -1
		}
		return 1
	}
	if a.LogIndex != b.LogIndex {
		if a.LogIndex < b.LogIndex {
			return -1
		}
		return 1
	}
	return 0
}
