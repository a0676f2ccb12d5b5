// SPDX-License-Identifier: MIT
package spectral

// Bin is one frequency band of a spectral frame.
type Bin struct {
	Amplitude float32 `json:"amplitude"`
	Min       float32 `json:"min"`
	Max       float32 `json:"max"`
}

// Frame is one spectral snapshot. Timestamp is the host sample time just past
// the last sample of the window it was computed from; Generation is the ring's
// write count when it was published.
type Frame struct {
	Bins       []Bin
	Timestamp  int64
	Generation uint64
}

// NewFrame allocates a frame with the given number of bins.
func NewFrame(bins int) *Frame {
	return &Frame{Bins: make([]Bin, bins)}
}

// CopyFrom overwrites f with src. Both frames must have the same bin count.
func (f *Frame) CopyFrom(src *Frame) {
	copy(f.Bins, src.Bins)
	f.Timestamp = src.Timestamp
	f.Generation = src.Generation
}

// Peak returns the index and amplitude of the loudest bin, or -1 for an
// empty frame.
func (f *Frame) Peak() (int, float32) {
	peak := -1
	var amp float32
	for i, b := range f.Bins {
		if peak < 0 || b.Amplitude > amp {
			peak, amp = i, b.Amplitude
		}
	}
	return peak, amp
}
