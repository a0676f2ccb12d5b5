// SPDX-License-Identifier: MIT
package spectral

import (
	"fmt"
	"math"
	"math/cmplx"

	"xspectrum/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Pre-allocated buffers for the transform.
type transformWorkspace struct {
	input  []float64    // windowed samples
	coeffs []complex128 // FFT output, W/2+1 values
	window []float64    // window coefficients
	amp    []float32    // folded amplitudes of the current transform
}

// envelope tracks per-bin min/max over the last depth transforms, or since
// the last reset when depth is 0.
type envelope struct {
	depth   int
	history []float32 // depth rows of bins amplitudes
	rows    int       // valid rows in history
	next    int       // row overwritten by the next push
	min     []float32
	max     []float32
	primed  bool
}

// Transformer turns a complete analysis window into a spectral frame.
//
// Binning rule: FFT bin k (1 <= k <= W/2, DC dropped) is folded into output
// bin round(k*B/(W/2)), clamped to B-1, and each output bin holds the mean
// magnitude of the FFT bins folded into it. Output bin b is therefore centred
// on b*(sampleRate/2)/B. An output bin that receives no FFT bin (B > W/2)
// repeats its lower neighbour.
//
// Magnitudes are scaled by 2/sum(window) so a full-scale sine centred on an
// FFT bin reads 1.0 at that bin.
type Transformer struct {
	fft        *fourier.FFT
	size       int
	bins       int
	sampleRate float64
	windowType WindowFunc
	scale      float64
	binOf      []int32   // FFT bin -> output bin, indexed by k
	binWeight  []float32 // 1/count for each output bin, 0 if empty
	workspace  transformWorkspace
	env        envelope
}

// NewTransformer validates the sizes and pre-allocates every buffer.
func NewTransformer(size, bins int, sampleRate float64, windowType WindowFunc, depth int) (*Transformer, error) {
	if !bitint.IsPowerOfTwo(size) {
		return nil, configErr("window size", size, "must be a power of two")
	}
	if bins <= 0 || bins > MaxBins {
		return nil, configErr("bin count", bins, fmt.Sprintf("must be within [1, %d]", MaxBins))
	}
	if sampleRate <= 0 {
		return nil, configErr("sample rate", sampleRate, "must be positive")
	}
	if depth < 0 {
		return nil, configErr("envelope depth", depth, "must not be negative")
	}

	half := size / 2
	t := &Transformer{
		fft:        fourier.NewFFT(size),
		size:       size,
		bins:       bins,
		sampleRate: sampleRate,
		windowType: windowType,
		binOf:      make([]int32, half+1),
		binWeight:  make([]float32, bins),
		workspace: transformWorkspace{
			input:  make([]float64, size),
			coeffs: make([]complex128, half+1),
			window: make([]float64, size),
			amp:    make([]float32, bins),
		},
		env: envelope{
			depth:   depth,
			history: make([]float32, depth*bins),
			min:     make([]float32, bins),
			max:     make([]float32, bins),
		},
	}

	windowCoefficients(t.workspace.window, windowType)
	var sum float64
	for _, w := range t.workspace.window {
		sum += w
	}
	t.scale = 2 / sum

	counts := make([]int, bins)
	for k := 1; k <= half; k++ {
		// round(k*B/half) in integer arithmetic.
		b := min((2*k*bins+half)/size, bins-1)
		t.binOf[k] = int32(b)
		counts[b]++
	}
	for b, c := range counts {
		if c > 0 {
			t.binWeight[b] = 1 / float32(c)
		}
	}

	return t, nil
}

// Size returns the analysis window length W.
func (t *Transformer) Size() int { return t.size }

// Bins returns the output bin count B.
func (t *Transformer) Bins() int { return t.bins }

// WindowType returns the analysis window function.
func (t *Transformer) WindowType() WindowFunc { return t.windowType }

// BinFrequency returns the centre frequency in Hz of output bin b.
func (t *Transformer) BinFrequency(b int) float64 {
	if b < 0 || b >= t.bins {
		return 0
	}
	return float64(b) * (t.sampleRate / 2) / float64(t.bins)
}

// BinForFrequency returns the output bin whose centre is nearest to hz.
func (t *Transformer) BinForFrequency(hz float64) int {
	b := int(math.Round(hz * float64(t.bins) / (t.sampleRate / 2)))
	return max(0, min(b, t.bins-1))
}

// Transform analyses w into dst. It returns false, leaving dst and the
// envelope untouched, when the window has the wrong length, dst has the wrong
// bin count or the result is not finite. An all-zero window produces zero
// amplitudes and does not move the envelope.
func (t *Transformer) Transform(w *Window, dst *Frame) bool {
	if w == nil || dst == nil || len(w.Samples) != t.size || len(dst.Bins) != t.bins {
		return false
	}

	ws := &t.workspace
	silent := true
	for i, s := range w.Samples {
		if s != 0 {
			silent = false
		}
		ws.input[i] = float64(s) * ws.window[i]
	}

	if silent {
		clear(ws.amp)
		t.emit(dst)
		return true
	}

	t.fft.Coefficients(ws.coeffs, ws.input)

	clear(ws.amp)
	for k := 1; k < len(ws.coeffs); k++ {
		ws.amp[t.binOf[k]] += float32(cmplx.Abs(ws.coeffs[k]) * t.scale)
	}
	for b := range ws.amp {
		switch {
		case t.binWeight[b] > 0:
			ws.amp[b] *= t.binWeight[b]
		case b > 0:
			ws.amp[b] = ws.amp[b-1]
		}
		v := float64(ws.amp[b])
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}

	t.env.push(ws.amp)
	t.emit(dst)
	return true
}

// ResetEnvelope forgets all min/max history.
func (t *Transformer) ResetEnvelope() {
	t.env.reset()
}

func (t *Transformer) emit(dst *Frame) {
	for b, a := range t.workspace.amp {
		bin := Bin{Amplitude: a}
		if t.env.primed {
			bin.Min = t.env.min[b]
			bin.Max = t.env.max[b]
		}
		dst.Bins[b] = bin
	}
}

func (e *envelope) push(amp []float32) {
	if e.depth == 0 {
		if !e.primed {
			copy(e.min, amp)
			copy(e.max, amp)
			e.primed = true
			return
		}
		for b, a := range amp {
			e.min[b] = min(e.min[b], a)
			e.max[b] = max(e.max[b], a)
		}
		return
	}

	bins := len(amp)
	copy(e.history[e.next*bins:(e.next+1)*bins], amp)
	e.next = (e.next + 1) % e.depth
	e.rows = min(e.rows+1, e.depth)

	copy(e.min, amp)
	copy(e.max, amp)
	for r := range e.rows {
		row := e.history[r*bins : (r+1)*bins]
		for b, a := range row {
			e.min[b] = min(e.min[b], a)
			e.max[b] = max(e.max[b], a)
		}
	}
	e.primed = true
}

func (e *envelope) reset() {
	clear(e.min)
	clear(e.max)
	e.rows = 0
	e.next = 0
	e.primed = false
}
