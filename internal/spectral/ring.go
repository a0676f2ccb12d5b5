// SPDX-License-Identifier: MIT
package spectral

import (
	"math"
	"sync/atomic"
)

// MaxReadRetries bounds how often a reader retries after detecting that the
// slot it copied was overwritten mid-copy.
const MaxReadRetries = 4

// Values per bin stored in a slot: amplitude, min, max.
const binWords = 3

// slot is one frame of ring storage guarded by a sequence counter. The
// counter is odd while the writer is copying into the slot and even once the
// copy is published. Every field is accessed atomically so the copy-then-
// validate protocol holds under the Go memory model.
type slot struct {
	seq        atomic.Uint64
	timestamp  atomic.Int64
	generation atomic.Uint64
	data       []atomic.Uint32 // binWords per bin, float32 bits
}

// Ring is a fixed-capacity circular store of spectral frames with a single
// writer and any number of readers. The writer never blocks or allocates;
// readers copy frames out and retry when they detect a concurrent overwrite.
type Ring struct {
	slots   []slot
	bins    int
	next    int           // writer-owned cursor
	written atomic.Uint64 // completed writes, also the last generation

	// Test hooks simulating preemption: writeHook runs halfway through a
	// slot copy, readHook between a reader's copy and its re-validation.
	writeHook func()
	readHook  func()
}

// NewRing allocates capacity slots of bins bins each.
func NewRing(capacity, bins int) *Ring {
	r := &Ring{
		slots: make([]slot, capacity),
		bins:  bins,
	}
	for i := range r.slots {
		r.slots[i].data = make([]atomic.Uint32, bins*binWords)
	}
	return r
}

// Cap returns the number of slots.
func (r *Ring) Cap() int { return len(r.slots) }

// Bins returns the bin count of every stored frame.
func (r *Ring) Bins() int { return r.bins }

// Written returns the number of frames written since allocation.
func (r *Ring) Written() uint64 { return r.written.Load() }

// Len returns the number of frames currently retained.
func (r *Ring) Len() int {
	return int(min(r.written.Load(), uint64(len(r.slots))))
}

// NewFrame allocates a frame sized for this ring.
func (r *Ring) NewFrame() *Frame {
	return NewFrame(r.bins)
}

// Write stores f in the oldest slot and returns the generation it was
// published under. Only one goroutine may call Write. Timestamps must be
// strictly increasing across writes; the kernel guarantees this.
func (r *Ring) Write(f *Frame) uint64 {
	s := &r.slots[r.next]
	seq := s.seq.Load()
	s.seq.Store(seq + 1)

	n := min(len(f.Bins), r.bins)
	for i := range n {
		b := f.Bins[i]
		w := s.data[i*binWords : (i+1)*binWords]
		w[0].Store(math.Float32bits(b.Amplitude))
		w[1].Store(math.Float32bits(b.Min))
		w[2].Store(math.Float32bits(b.Max))
		if i == n/2 && r.writeHook != nil {
			r.writeHook()
		}
	}
	for i := n; i < r.bins; i++ {
		w := s.data[i*binWords : (i+1)*binWords]
		w[0].Store(0)
		w[1].Store(0)
		w[2].Store(0)
	}

	gen := r.written.Load() + 1
	s.timestamp.Store(f.Timestamp)
	s.generation.Store(gen)
	s.seq.Store(seq + 2)
	r.written.Store(gen)

	f.Generation = gen
	r.next++
	if r.next == len(r.slots) {
		r.next = 0
	}
	return gen
}

// ReadNearest copies into dst the frame with the largest timestamp not later
// than t. A request at or after the newest frame returns the newest frame.
// It returns ErrEmpty if nothing was written, ErrNotFound if every retained
// frame is later than t, and ErrTornRead if no coherent copy could be taken
// within MaxReadRetries attempts. dst is only meaningful on a nil error.
func (r *Ring) ReadNearest(t int64, dst *Frame) error {
	if len(dst.Bins) != r.bins {
		return ErrFrameSize
	}

	for range MaxReadRetries {
		if r.written.Load() == 0 {
			return ErrEmpty
		}

		best, newest := -1, -1
		var bestTS, newestTS int64
		for i := range r.slots {
			ts, ok := r.peekTimestamp(&r.slots[i])
			if !ok {
				continue
			}
			if newest < 0 || ts > newestTS {
				newest, newestTS = i, ts
			}
			if ts <= t && (best < 0 || ts > bestTS) {
				best, bestTS = i, ts
			}
		}
		if newest < 0 {
			// Every published slot was mid-write.
			continue
		}
		if best < 0 {
			return ErrNotFound
		}

		if r.copySlot(&r.slots[best], dst) && dst.Timestamp == bestTS {
			return nil
		}
	}
	return ErrTornRead
}

// Latest copies the most recently written frame into dst.
func (r *Ring) Latest(dst *Frame) error {
	return r.ReadNearest(math.MaxInt64, dst)
}

// peekTimestamp reads a slot's timestamp if the slot is published and stable.
func (r *Ring) peekTimestamp(s *slot) (int64, bool) {
	seq := s.seq.Load()
	if seq == 0 || seq&1 == 1 {
		return 0, false
	}
	ts := s.timestamp.Load()
	return ts, s.seq.Load() == seq
}

// copySlot copies s into dst and reports whether the copy is coherent.
func (r *Ring) copySlot(s *slot, dst *Frame) bool {
	seq := s.seq.Load()
	if seq == 0 || seq&1 == 1 {
		return false
	}
	for i := range dst.Bins {
		w := s.data[i*binWords : (i+1)*binWords]
		dst.Bins[i] = Bin{
			Amplitude: math.Float32frombits(w[0].Load()),
			Min:       math.Float32frombits(w[1].Load()),
			Max:       math.Float32frombits(w[2].Load()),
		}
	}
	dst.Timestamp = s.timestamp.Load()
	dst.Generation = s.generation.Load()
	if r.readHook != nil {
		r.readHook()
	}
	return s.seq.Load() == seq
}
