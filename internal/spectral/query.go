// SPDX-License-Identifier: MIT
package spectral

import (
	"errors"
	"fmt"
	"math"
	"sync"
)

// Snapshot is a consumer-owned copy of a spectral frame.
type Snapshot struct {
	Bins          []Bin  `json:"bins"`
	Timestamp     int64  `json:"timestamp"`      // sample time the frame's window ended
	RequestedTime int64  `json:"requested_time"` // sample time the caller asked for
	Generation    uint64 `json:"generation"`
	Stale         bool   `json:"stale"` // served from the last coherent read
}

// Peak returns the index and amplitude of the loudest bin, or -1.
func (s Snapshot) Peak() (int, float32) {
	f := Frame{Bins: s.Bins}
	return f.Peak()
}

// Query is the consumer-side read path over a Ring. It is safe for
// concurrent use; its lock is never touched by the producer.
type Query struct {
	ring  *Ring
	clock func() int64

	mu      sync.Mutex
	scratch *Frame
	last    *Frame
	hasLast bool
}

// NewQuery creates a query over ring. clock supplies the current host sample
// time for Current and may be nil.
func NewQuery(ring *Ring, clock func() int64) *Query {
	return &Query{
		ring:    ring,
		clock:   clock,
		scratch: ring.NewFrame(),
		last:    ring.NewFrame(),
	}
}

// Spectrum returns the frame nearest to, and not later than, sample time t,
// or the newest frame when t is in the future. It returns an error wrapping
// ErrNotYetAvailable when no such frame exists. When the ring keeps changing
// under the reader the previous coherent snapshot is returned with Stale set.
func (q *Query) Spectrum(t int64) (Snapshot, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	err := q.ring.ReadNearest(t, q.scratch)
	switch {
	case err == nil:
		q.last.CopyFrom(q.scratch)
		q.hasLast = true
		return snapshotOf(q.scratch, t, false), nil
	case errors.Is(err, ErrTornRead) && q.hasLast:
		return snapshotOf(q.last, t, true), nil
	default:
		return Snapshot{RequestedTime: t}, fmt.Errorf("%w: %w", ErrNotYetAvailable, err)
	}
}

// Current returns the spectrum at the current host sample time.
func (q *Query) Current() (Snapshot, error) {
	if q.clock == nil {
		return q.Spectrum(math.MaxInt64)
	}
	return q.Spectrum(q.clock())
}

// Bins returns the bin count of every snapshot.
func (q *Query) Bins() int {
	return q.ring.Bins()
}

func snapshotOf(f *Frame, requested int64, stale bool) Snapshot {
	bins := make([]Bin, len(f.Bins))
	copy(bins, f.Bins)
	return Snapshot{
		Bins:          bins,
		Timestamp:     f.Timestamp,
		RequestedTime: requested,
		Generation:    f.Generation,
		Stale:         stale,
	}
}
