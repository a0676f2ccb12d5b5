// SPDX-License-Identifier: MIT
package spectral

// Window is a completed analysis window.
type Window struct {
	Samples  []float32 // exactly W samples, oldest first
	Channels int       // channels reduced into Samples
}

// Accumulator gathers interleaved frames into fixed-size analysis windows.
// All storage is allocated by NewAccumulator; Push, Release and Reset never
// allocate.
type Accumulator struct {
	window  Window
	fill    int
	overlap int
	mix     ChannelMix
}

// NewAccumulator creates an accumulator for windows of size samples that keeps
// overlap samples between consecutive windows.
func NewAccumulator(size, overlap int, mix ChannelMix) *Accumulator {
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return &Accumulator{
		window:  Window{Samples: make([]float32, size)},
		overlap: overlap,
		mix:     mix,
	}
}

// Push appends interleaved frames and returns how many frames it consumed and
// whether the window is now complete. A complete window accepts nothing until
// Release; the surplus is left to the caller, or dropped if ignored.
func (a *Accumulator) Push(samples []float32, channels int) (int, bool) {
	size := len(a.window.Samples)
	if a.fill >= size {
		return 0, true
	}
	if channels <= 0 {
		return 0, false
	}

	n := min(len(samples)/channels, size-a.fill)
	dst := a.window.Samples[a.fill : a.fill+n]

	switch {
	case channels == 1:
		copy(dst, samples[:n])
	case a.mix == MixAverage:
		scale := 1 / float32(channels)
		for i := range dst {
			frame := samples[i*channels : (i+1)*channels]
			var sum float32
			for _, s := range frame {
				sum += s
			}
			dst[i] = sum * scale
		}
	default:
		for i := range dst {
			dst[i] = samples[i*channels]
		}
	}

	a.fill += n
	a.window.Channels = channels
	return n, a.fill == size
}

// Window returns the window being filled. Its contents are only a complete
// analysis window after Push reported full.
func (a *Accumulator) Window() *Window {
	return &a.window
}

// Full reports whether a completed window is waiting for Release.
func (a *Accumulator) Full() bool {
	return a.fill == len(a.window.Samples)
}

// Fill returns the number of samples currently held.
func (a *Accumulator) Fill() int {
	return a.fill
}

// Release starts the next window after a completed one, carrying the last
// overlap samples over as its head.
func (a *Accumulator) Release() {
	size := len(a.window.Samples)
	if a.fill < size {
		return
	}
	if a.overlap > 0 {
		copy(a.window.Samples, a.window.Samples[size-a.overlap:])
	}
	a.fill = a.overlap
}

// Reset discards any partial window.
func (a *Accumulator) Reset() {
	clear(a.window.Samples)
	a.fill = 0
	a.window.Channels = 0
}
