// SPDX-License-Identifier: MIT
package spectral

import "sync/atomic"

// Kernel is the per-block real-time entry point. It passes audio through
// unchanged, accumulates analysis windows, transforms every completed window
// and publishes the frame to the ring.
//
// Performance Critical (Hot Path):
// - No allocations, locks or I/O in Process
// - Parameters are sampled once per block
// - Inconsistent blocks skip analysis and the next window heals the state
type Kernel struct {
	acc      *Accumulator
	tf       *Transformer
	ring     *Ring
	params   *Params
	channels int
	frame    *Frame // scratch frame written into the ring

	silenceReset int64 // <0 disables
	silentFrames int64
	wasReset     bool // reset already done for the current silence run

	paramVersion uint64
	gate         float32

	clock   atomic.Int64 // sample time of the next input frame
	windows atomic.Uint64
	skipped atomic.Uint64
}

// NewKernel wires a kernel for the given configuration around an existing
// transformer and ring. cfg must already be validated.
func NewKernel(cfg Config, tf *Transformer, ring *Ring, params *Params) *Kernel {
	k := &Kernel{
		acc:          NewAccumulator(cfg.WindowSize, cfg.Overlap, cfg.Mix),
		tf:           tf,
		ring:         ring,
		params:       params,
		channels:     cfg.Channels,
		frame:        ring.NewFrame(),
		silenceReset: int64(cfg.SilenceReset),
	}
	k.loadParams()
	return k
}

// Process analyses one block of interleaved frames. It copies in to out and
// returns the output silence flag, which equals the input flag since a tap
// adds no signal.
func (k *Kernel) Process(in, out []float32, frames, channels int, silent bool) bool {
	start := k.clock.Load()
	if frames <= 0 {
		return silent
	}
	if channels <= 0 {
		k.skipped.Add(1)
		k.clock.Store(start + int64(frames))
		return silent
	}
	n := frames * channels
	consistent := channels == k.channels && len(in) >= n

	copy(out, in[:min(n, len(in))])

	if v := k.params.Version(); v != k.paramVersion {
		k.loadParams()
	}
	quiet := silent
	if !quiet && k.gate > 0 && consistent {
		quiet = peak(in[:n]) < k.gate
	}

	if quiet {
		k.silentFrames += int64(frames)
		if k.silenceReset >= 0 && k.silentFrames > k.silenceReset && !k.wasReset {
			k.resetState()
			k.wasReset = true
		}
	} else {
		k.silentFrames = 0
		k.wasReset = false
	}

	if !consistent {
		k.skipped.Add(1)
		k.clock.Store(start + int64(frames))
		return silent
	}

	off := 0
	for off < frames {
		used, full := k.acc.Push(in[off*channels:n], channels)
		off += used
		if !full {
			break
		}
		k.frame.Timestamp = start + int64(off)
		if k.tf.Transform(k.acc.Window(), k.frame) {
			k.ring.Write(k.frame)
			k.windows.Add(1)
		} else {
			k.skipped.Add(1)
		}
		k.acc.Release()
	}

	k.clock.Store(start + int64(frames))
	return silent
}

// Reset clears the partial window and envelope history. Frames already in
// the ring are kept. Only call while Process is quiesced.
func (k *Kernel) Reset() {
	k.resetState()
	k.silentFrames = 0
	k.wasReset = false
}

// SampleTime returns the sample time of the next frame Process will see.
// Safe from any goroutine.
func (k *Kernel) SampleTime() int64 {
	return k.clock.Load()
}

// Windows returns the number of frames published so far.
func (k *Kernel) Windows() uint64 {
	return k.windows.Load()
}

// Skipped returns the number of blocks or windows whose analysis was skipped.
func (k *Kernel) Skipped() uint64 {
	return k.skipped.Load()
}

func (k *Kernel) resetState() {
	k.acc.Reset()
	k.tf.ResetEnvelope()
}

func (k *Kernel) loadParams() {
	k.paramVersion = k.params.Version()
	k.gate = k.params.Gate()
}

// peak returns the largest absolute sample value.
func peak(samples []float32) float32 {
	var p float32
	for _, s := range samples {
		if s < 0 {
			s = -s
		}
		p = max(p, s)
	}
	return p
}
