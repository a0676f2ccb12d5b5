// SPDX-License-Identifier: MIT
package spectral

import (
	"fmt"
	"math"
	"testing"

	"xspectrum/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amplitudes(f *Frame) []float32 {
	out := make([]float32, len(f.Bins))
	for i, b := range f.Bins {
		out[i] = b.Amplitude
	}
	return out
}

func transformSine(t *testing.T, tf *Transformer, sampleRate, hz, amp float64) *Frame {
	t.Helper()
	w := &Window{Samples: utils.GenerateSineWave(tf.Size(), sampleRate, hz, amp), Channels: 1}
	frame := NewFrame(tf.Bins())
	require.True(t, tf.Transform(w, frame))
	return frame
}

func TestTransformSinusoidDominatesItsBin(t *testing.T) {
	tests := []struct {
		size, bins int
		sampleRate float64
		bin        int
	}{
		{256, 16, 8000, 3},
		{512, 256, 16000, 20},
		{1024, 64, 44100, 10},
		{2048, 128, 48000, 20},
		{4096, 32, 96000, 5},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("W%d_B%d_%.0fHz_bin%d", tt.size, tt.bins, tt.sampleRate, tt.bin), func(t *testing.T) {
			tf, err := NewTransformer(tt.size, tt.bins, tt.sampleRate, Hann, 0)
			require.NoError(t, err)

			hz := tf.BinFrequency(tt.bin)
			require.LessOrEqual(t, 8*hz, tt.sampleRate)

			amp := amplitudes(transformSine(t, tf, tt.sampleRate, hz, 0.8))
			assert.Equal(t, tt.bin, utils.FindPeakBin(amp, 0, len(amp)-1))
			assert.Less(t, amp[tt.bin-1], amp[tt.bin])
			assert.Less(t, amp[tt.bin+1], amp[tt.bin])
		})
	}
}

func TestTransformAmplitudeCalibration(t *testing.T) {
	// One FFT bin per output bin, so the peak reads the scaled magnitude.
	tf, err := NewTransformer(1024, 512, 44100, Hann, 0)
	require.NoError(t, err)

	frame := transformSine(t, tf, 44100, tf.BinFrequency(100), 1.0)
	assert.InDelta(t, 1.0, frame.Bins[100].Amplitude, 0.05)
}

func TestTransformZeroWindowKeepsEnvelope(t *testing.T) {
	tf, err := NewTransformer(256, 16, 8000, Hann, 0)
	require.NoError(t, err)

	silent := &Window{Samples: make([]float32, 256)}
	frame := NewFrame(16)
	require.True(t, tf.Transform(silent, frame))
	for _, b := range frame.Bins {
		assert.Equal(t, Bin{}, b, "silence with no history is all zero")
	}

	loud := transformSine(t, tf, 8000, 1000, 0.5)
	require.True(t, tf.Transform(silent, frame))
	for i, b := range frame.Bins {
		assert.Zero(t, b.Amplitude)
		assert.Equal(t, loud.Bins[i].Min, b.Min, "bin %d min moved", i)
		assert.Equal(t, loud.Bins[i].Max, b.Max, "bin %d max moved", i)
	}
}

func TestTransformEnvelopeTracksSinceReset(t *testing.T) {
	tf, err := NewTransformer(1024, 64, 44100, Hann, 0)
	require.NoError(t, err)
	hz := tf.BinFrequency(8)

	first := transformSine(t, tf, 44100, hz, 1.0)
	transformSine(t, tf, 44100, hz, 0.5)
	last := transformSine(t, tf, 44100, hz, 0.25)

	assert.Equal(t, first.Bins[8].Amplitude, last.Bins[8].Max)
	assert.Equal(t, last.Bins[8].Amplitude, last.Bins[8].Min)
	assert.Less(t, last.Bins[8].Min, last.Bins[8].Max)
}

func TestTransformEnvelopeDepth(t *testing.T) {
	tf, err := NewTransformer(1024, 64, 44100, Hann, 2)
	require.NoError(t, err)
	hz := tf.BinFrequency(8)

	transformSine(t, tf, 44100, hz, 1.0)
	second := transformSine(t, tf, 44100, hz, 0.5)
	third := transformSine(t, tf, 44100, hz, 0.25)

	assert.Equal(t, second.Bins[8].Amplitude, third.Bins[8].Max, "the loudest frame fell out of a depth-2 envelope")
	assert.Equal(t, third.Bins[8].Amplitude, third.Bins[8].Min)
}

func TestTransformResetIdempotent(t *testing.T) {
	once, err := NewTransformer(512, 32, 16000, Hann, 0)
	require.NoError(t, err)
	twice, err := NewTransformer(512, 32, 16000, Hann, 0)
	require.NoError(t, err)

	for _, tf := range []*Transformer{once, twice} {
		transformSine(t, tf, 16000, 500, 0.9)
		transformSine(t, tf, 16000, 2000, 0.1)
	}

	once.ResetEnvelope()
	twice.ResetEnvelope()
	twice.ResetEnvelope()

	a := transformSine(t, once, 16000, 1200, 0.3)
	b := transformSine(t, twice, 16000, 1200, 0.3)
	assert.Equal(t, a.Bins, b.Bins)
	for i, bin := range a.Bins {
		assert.Equal(t, bin.Amplitude, bin.Min, "bin %d", i)
		assert.Equal(t, bin.Amplitude, bin.Max, "bin %d", i)
	}
}

func TestTransformRejectsBadInput(t *testing.T) {
	tf, err := NewTransformer(256, 16, 8000, Hann, 0)
	require.NoError(t, err)

	frame := NewFrame(16)
	frame.Bins[0].Amplitude = 42

	short := &Window{Samples: make([]float32, 128)}
	assert.False(t, tf.Transform(short, frame))

	nan := &Window{Samples: utils.GenerateSineWave(256, 8000, 1000, 0.5)}
	nan.Samples[10] = float32(math.NaN())
	assert.False(t, tf.Transform(nan, frame))

	assert.False(t, tf.Transform(&Window{Samples: make([]float32, 256)}, NewFrame(8)))
	assert.Equal(t, float32(42), frame.Bins[0].Amplitude, "rejected transforms leave dst untouched")
}

func TestTransformMoreBinsThanFFTBins(t *testing.T) {
	tf, err := NewTransformer(64, 64, 8000, Hann, 0)
	require.NoError(t, err)

	frame := transformSine(t, tf, 8000, 1000, 0.5)
	for j := 0; j <= 30; j++ {
		assert.Equal(t, frame.Bins[2*j].Amplitude, frame.Bins[2*j+1].Amplitude, "empty bin %d repeats its neighbour", 2*j+1)
	}
}

func TestNewTransformerValidation(t *testing.T) {
	_, err := NewTransformer(1000, 64, 44100, Hann, 0)
	assert.ErrorIs(t, err, ErrConfiguration)
	_, err = NewTransformer(1024, 0, 44100, Hann, 0)
	assert.ErrorIs(t, err, ErrConfiguration)
	_, err = NewTransformer(1024, 64, 0, Hann, 0)
	assert.ErrorIs(t, err, ErrConfiguration)
	_, err = NewTransformer(1024, 64, 44100, Hann, -1)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestBinFrequencyMapping(t *testing.T) {
	tf, err := NewTransformer(1024, 64, 44100, Hann, 0)
	require.NoError(t, err)

	assert.Equal(t, 0.0, tf.BinFrequency(0))
	assert.InDelta(t, 22050.0/64, tf.BinFrequency(1), 1e-9)
	assert.Equal(t, 0.0, tf.BinFrequency(64))
	assert.Equal(t, 3, tf.BinForFrequency(1000))
	assert.Equal(t, 63, tf.BinForFrequency(30000))
	assert.Equal(t, 0, tf.BinForFrequency(-5))
}

func TestTransformHotPath(t *testing.T) {
	tf, err := NewTransformer(1024, 64, 44100, Hann, 8)
	require.NoError(t, err)

	w := &Window{Samples: utils.GenerateComplexWave(1024, 44100), Channels: 1}
	frame := NewFrame(64)
	tf.Transform(w, frame)

	allocs := testing.AllocsPerRun(100, func() {
		tf.Transform(w, frame)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in Transform, got %.1f", allocs)
	}
}

func BenchmarkTransform(b *testing.B) {
	tf, err := NewTransformer(1024, 64, 44100, Hann, 0)
	if err != nil {
		b.Fatal(err)
	}
	w := &Window{Samples: utils.GenerateComplexWave(1024, 44100), Channels: 1}
	frame := NewFrame(64)

	b.ReportAllocs()
	for b.Loop() {
		tf.Transform(w, frame)
	}
}
