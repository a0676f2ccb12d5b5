// SPDX-License-Identifier: MIT
package spectral

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drain pushes samples through acc the way the kernel does and returns a copy
// of every completed window.
func drain(acc *Accumulator, samples []float32, channels int) [][]float32 {
	var windows [][]float32
	for off := 0; off < len(samples)/channels; {
		used, full := acc.Push(samples[off*channels:], channels)
		off += used
		if !full {
			break
		}
		w := make([]float32, len(acc.Window().Samples))
		copy(w, acc.Window().Samples)
		windows = append(windows, w)
		acc.Release()
	}
	return windows
}

func TestAccumulatorEmitsWholeWindowsInOrder(t *testing.T) {
	const size, count = 64, 10
	acc := NewAccumulator(size, 0, MixFirst)
	rng := rand.New(rand.NewSource(7))

	next := 0
	var windows [][]float32
	for next < size*count {
		block := min(1+rng.Intn(150), size*count-next)
		samples := make([]float32, block)
		for i := range samples {
			samples[i] = float32(next + i)
		}
		next += block
		windows = append(windows, drain(acc, samples, 1)...)
	}

	require.Len(t, windows, count)
	for w, window := range windows {
		require.Len(t, window, size)
		for i, s := range window {
			assert.Equal(t, float32(w*size+i), s, "window %d sample %d", w, i)
		}
	}
	assert.Equal(t, 0, acc.Fill())
}

func TestAccumulatorDropsWhenFull(t *testing.T) {
	acc := NewAccumulator(8, 0, MixFirst)
	used, full := acc.Push(make([]float32, 12), 1)
	assert.Equal(t, 8, used)
	assert.True(t, full)

	used, full = acc.Push([]float32{1, 2, 3}, 1)
	assert.Equal(t, 0, used, "a full window must not accept more samples")
	assert.True(t, full)
	assert.True(t, acc.Full())
}

func TestAccumulatorChannelMix(t *testing.T) {
	stereo := []float32{1, 3, 2, 4, -1, 1, 0.5, 0.5}

	tests := []struct {
		name string
		mix  ChannelMix
		want []float32
	}{
		{"First", MixFirst, []float32{1, 2, -1, 0.5}},
		{"Average", MixAverage, []float32{2, 3, 0, 0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := NewAccumulator(4, 0, tt.mix)
			used, full := acc.Push(stereo, 2)
			require.Equal(t, 4, used)
			require.True(t, full)
			assert.Equal(t, tt.want, acc.Window().Samples)
			assert.Equal(t, 2, acc.Window().Channels)
		})
	}
}

func TestAccumulatorOverlap(t *testing.T) {
	acc := NewAccumulator(8, 4, MixFirst)
	samples := make([]float32, 16)
	for i := range samples {
		samples[i] = float32(i)
	}

	windows := drain(acc, samples, 1)
	require.Len(t, windows, 3)
	assert.Equal(t, []float32{0, 1, 2, 3, 4, 5, 6, 7}, windows[0])
	assert.Equal(t, []float32{4, 5, 6, 7, 8, 9, 10, 11}, windows[1])
	assert.Equal(t, []float32{8, 9, 10, 11, 12, 13, 14, 15}, windows[2])
	assert.Equal(t, 4, acc.Fill())
}

func TestAccumulatorReleaseBeforeFullIsNoop(t *testing.T) {
	acc := NewAccumulator(8, 0, MixFirst)
	acc.Push([]float32{1, 2, 3}, 1)
	acc.Release()
	assert.Equal(t, 3, acc.Fill())

	acc.Reset()
	assert.Equal(t, 0, acc.Fill())
	assert.False(t, acc.Full())
}

func TestAccumulatorRejectsBadChannelCount(t *testing.T) {
	acc := NewAccumulator(8, 0, MixFirst)
	used, full := acc.Push([]float32{1, 2}, 0)
	assert.Equal(t, 0, used)
	assert.False(t, full)
}

func TestAccumulatorHotPath(t *testing.T) {
	acc := NewAccumulator(1024, 256, MixAverage)
	block := make([]float32, 512*2)

	allocs := testing.AllocsPerRun(100, func() {
		for off := 0; off < 512; {
			used, full := acc.Push(block[off*2:], 2)
			off += used
			if full {
				acc.Release()
			}
		}
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in Push, got %.1f", allocs)
	}
}
