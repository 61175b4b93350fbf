package sizing

import (
	"fmt"
	"sort"
)

// QuantileMethod selects how a quantile falls between two order statistics.
type QuantileMethod string

const (
	// QuantileLinear interpolates between neighbours at index q*(n-1).
	QuantileLinear QuantileMethod = "linear"
	// QuantileLower takes the order statistic at floor(q*(n-1)).
	QuantileLower QuantileMethod = "lower"
)

// ParseQuantileMethod accepts "linear", "lower" or "" (linear).
func ParseQuantileMethod(s string) (QuantileMethod, error) {
	switch QuantileMethod(s) {
	case "", QuantileLinear:
		return QuantileLinear, nil
	case QuantileLower:
		return QuantileLower, nil
	default:
		return "", fmt.Errorf("unknown quantile method %q", s)
	}
}

// Quantile returns the q-quantile of an ascending slice.
// Returns 0 for an empty slice.
func Quantile(sorted []float64, q float64, method QuantileMethod) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 || q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[n-1]
	}

	idx := q * float64(n-1)
	lower := int(idx)
	if method == QuantileLower {
		return sorted[lower]
	}
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// quantileOf sorts a copy of values and returns its q-quantile.
func quantileOf(values []float64, q float64, method QuantileMethod) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return Quantile(sorted, q, method)
}

// Window holds the last N values in arrival order and in sorted order,
// so the quantile of the window is exact without re-sorting per step.
type Window struct {
	size   int
	ring   []float64
	head   int
	sorted []float64
}

// maxWindowPrealloc bounds the capacity reserved up front; larger windows grow on demand.
const maxWindowPrealloc = 4096

// NewWindow creates an empty window of the given size.
func NewWindow(size int) *Window {
	if size < 1 {
		size = 1
	}
	capacity := min(size, maxWindowPrealloc)
	return &Window{
		size:   size,
		ring:   make([]float64, 0, capacity),
		sorted: make([]float64, 0, capacity),
	}
}

// Len returns the number of values currently held.
func (w *Window) Len() int { return len(w.sorted) }

// Full reports whether the window holds size values.
func (w *Window) Full() bool { return len(w.sorted) == w.size }

// Push appends v, evicting the oldest value once the window is full.
func (w *Window) Push(v float64) {
	if len(w.ring) < w.size {
		w.ring = append(w.ring, v)
	} else {
		old := w.ring[w.head]
		w.ring[w.head] = v
		w.head = (w.head + 1) % w.size
		w.remove(old)
	}
	w.insert(v)
}

// Quantile returns the q-quantile of the values in the window.
func (w *Window) Quantile(q float64, method QuantileMethod) float64 {
	return Quantile(w.sorted, q, method)
}

func (w *Window) insert(v float64) {
	i := sort.SearchFloat64s(w.sorted, v)
	w.sorted = append(w.sorted, 0)
	copy(w.sorted[i+1:], w.sorted[i:])
	w.sorted[i] = v
}

func (w *Window) remove(v float64) {
	i := sort.SearchFloat64s(w.sorted, v)
	if i >= len(w.sorted) || w.sorted[i] != v {
		return
	}
	w.sorted = append(w.sorted[:i], w.sorted[i+1:]...)
}
