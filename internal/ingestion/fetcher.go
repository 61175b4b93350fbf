package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"dex-exec-lab/internal/chain"
	"dex-exec-lab/internal/decoder"
	"dex-exec-lab/internal/domain"
	"dex-exec-lab/internal/observability"
	"dex-exec-lab/internal/storage"
)

// Fetcher defaults.
const (
	DefaultInitialWidth = 3000
	DefaultMinWidth     = 50
	DefaultMaxRetries   = 5
	DefaultRetryDelay   = 800 * time.Millisecond
	DefaultPacing       = 50 * time.Millisecond
)

// RangeFetcher walks a block range in chunks, decodes Swap logs and stores them.
// A failing chunk is retried at half width until MaxRetries is exhausted.
type RangeFetcher struct {
	source       chain.LogSource
	store        storage.SwapEventStore
	venue        string
	pool         common.Address
	initialWidth uint64
	minWidth     uint64
	maxRetries   int
	retryDelay   time.Duration
	limiter      *rate.Limiter
	remoteTS     TimestampStore
	logger       logrus.FieldLogger
	metrics      *observability.Metrics
}

// FetcherOptions contains configuration for creating a RangeFetcher.
type FetcherOptions struct {
	Source       chain.LogSource
	Store        storage.SwapEventStore
	Venue        string
	Pool         common.Address
	InitialWidth uint64
	MinWidth     uint64
	// MaxRetries is raised when needed so a chunk reaches MinWidth before failing.
	MaxRetries int
	RetryDelay time.Duration
	// Pacing is the minimum spacing between adapter requests. Negative disables pacing.
	Pacing time.Duration
	// TimestampStore is an optional cache shared across runs.
	TimestampStore TimestampStore
	Logger         logrus.FieldLogger
	Metrics        *observability.Metrics
}

// NewRangeFetcher creates a new RangeFetcher. Zero option values take defaults.
func NewRangeFetcher(opts FetcherOptions) *RangeFetcher {
	initial := opts.InitialWidth
	if initial == 0 {
		initial = DefaultInitialWidth
	}
	minWidth := opts.MinWidth
	if minWidth == 0 {
		minWidth = DefaultMinWidth
	}
	if minWidth > initial {
		minWidth = initial
	}
	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = DefaultMaxRetries
	}
	// A chunk must get at least one attempt at the minimum width.
	if steps := shrinkSteps(initial, minWidth); maxRetries < steps {
		maxRetries = steps
	}
	retryDelay := opts.RetryDelay
	if retryDelay == 0 {
		retryDelay = DefaultRetryDelay
	}
	if retryDelay < 0 {
		retryDelay = 0
	}

	pacing := opts.Pacing
	if pacing == 0 {
		pacing = DefaultPacing
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if pacing > 0 {
		limiter = rate.NewLimiter(rate.Every(pacing), 1)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &RangeFetcher{
		source:       opts.Source,
		store:        opts.Store,
		venue:        opts.Venue,
		pool:         opts.Pool,
		initialWidth: initial,
		minWidth:     minWidth,
		maxRetries:   maxRetries,
		retryDelay:   retryDelay,
		limiter:      limiter,
		remoteTS:     opts.TimestampStore,
		logger:       logger.WithFields(logrus.Fields{"component": "fetcher", "pool": opts.Pool.Hex()}),
		metrics:      opts.Metrics,
	}
}

// FetchResult contains statistics from a fetch run.
type FetchResult struct {
	Chunks       int
	Logs         int
	Stored       int
	Duplicates   int
	DecodeErrors int
	Retries      int
	FinalWidth   uint64
	LastBlock    uint64 // last block fully stored; valid when Chunks > 0
	Duration     time.Duration
}

// chunkState is the retry state of the chunk currently being fetched.
// width only ever shrinks within a run; retries resets after each success.
type chunkState struct {
	width   uint64
	retries int
}

// shrinkSteps is the number of halvings that take initial down to min.
func shrinkSteps(initial, min uint64) int {
	steps := 0
	for w := initial; w > min; steps++ {
		w /= 2
	}
	return steps
}

// shrink records one failure and halves the width, never below min.
func (s chunkState) shrink(min uint64) chunkState {
	s.retries++
	s.width /= 2
	if s.width < min {
		s.width = min
	}
	return s
}

// Fetch ingests all Swap logs of the configured pool in [from, to].
// On a fatal adapter failure it returns the partial result and an *AdapterQueryError.
func (f *RangeFetcher) Fetch(ctx context.Context, from, to uint64) (*FetchResult, error) {
	if f.pool == (common.Address{}) || to < from {
		return nil, fmt.Errorf("pool %s blocks %d-%d: %w", f.pool.Hex(), from, to, ErrInvalidRange)
	}

	start := time.Now()
	result := &FetchResult{}
	tsCache := NewTimestampCache(f.source, f.remoteTS, f.logger, f.metrics)
	state := chunkState{width: f.initialWidth}
	topics := decoder.SwapFilter()

	f.logger.WithFields(logrus.Fields{"from": from, "to": to, "width": state.width}).Info("starting fetch")

	cur := from
	for {
		if err := f.limiter.Wait(ctx); err != nil {
			return f.finish(result, state, start), err
		}

		end := to
		if to-cur >= state.width {
			end = cur + state.width - 1
		}

		callStart := time.Now()
		logs, err := f.source.GetLogs(ctx, f.pool, topics, cur, end)
		var events []*domain.SwapEvent
		var decodeErrs []error
		if err == nil {
			events, decodeErrs = decoder.DecodeSwaps(f.venue, logs)
			err = f.resolveTimestamps(ctx, tsCache, events)
		}
		f.metrics.RecordChunk(err == nil, time.Since(callStart).Seconds(), state.width)

		if err != nil {
			if ctx.Err() != nil {
				return f.finish(result, state, start), ctx.Err()
			}

			failedWidth := state.width
			state = state.shrink(f.minWidth)
			result.Retries++

			if state.retries > f.maxRetries {
				return f.finish(result, state, start), &AdapterQueryError{
					From:      cur,
					To:        end,
					Width:     failedWidth,
					Attempts:  state.retries,
					LastBlock: result.LastBlock,
					HasLast:   result.Chunks > 0,
					Err:       err,
				}
			}

			f.logger.WithError(err).WithFields(logrus.Fields{
				"from":    cur,
				"to":      end,
				"width":   state.width,
				"attempt": state.retries,
			}).Warn("chunk failed, shrinking range")

			if err := sleep(ctx, f.retryDelay); err != nil {
				return f.finish(result, state, start), err
			}
			continue
		}

		for _, derr := range decodeErrs {
			f.logger.WithError(derr).WithFields(logrus.Fields{"from": cur, "to": end}).Warn("skipping undecodable log")
		}

		SortSwapEvents(events)
		inserted, err := f.store.InsertIfAbsent(ctx, events)
		if err != nil {
			return f.finish(result, state, start), fmt.Errorf("store blocks %d-%d: %w", cur, end, err)
		}

		result.Chunks++
		result.Logs += len(logs)
		result.DecodeErrors += len(decodeErrs)
		result.Stored += inserted
		result.Duplicates += len(events) - inserted
		result.LastBlock = end
		state.retries = 0

		f.metrics.RecordStored(len(logs), len(decodeErrs), inserted, len(events)-inserted, end)
		f.logger.WithFields(logrus.Fields{
			"from":          cur,
			"to":            end,
			"swaps":         inserted,
			"decode_errors": len(decodeErrs),
			"total":         result.Stored,
			"width":         state.width,
			"elapsed":       time.Since(start).Round(time.Millisecond).String(),
		}).Info("chunk stored")

		if end >= to {
			break
		}
		cur = end + 1
	}

	result = f.finish(result, state, start)
	f.logger.WithFields(logrus.Fields{
		"chunks":        result.Chunks,
		"stored":        result.Stored,
		"duplicates":    result.Duplicates,
		"decode_errors": result.DecodeErrors,
		"retries":       result.Retries,
		"duration":      result.Duration.Round(time.Millisecond).String(),
	}).Info("fetch complete")

	return result, nil
}

func (f *RangeFetcher) resolveTimestamps(ctx context.Context, cache *TimestampCache, events []*domain.SwapEvent) error {
	for _, ev := range events {
		ts, err := cache.Get(ctx, ev.BlockNumber)
		if err != nil {
			return err
		}
		ev.BlockTimestamp = ts
	}
	return nil
}

func (f *RangeFetcher) finish(result *FetchResult, state chunkState, start time.Time) *FetchResult {
	result.FinalWidth = state.width
	result.Duration = time.Since(start)
	return result
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsFatal reports whether err ended a fetch because the adapter kept failing.
func IsFatal(err error) bool {
	var aqe *AdapterQueryError
	return errors.As(err, &aqe)
}
