// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"testing"

	"xspectrum/internal/spectral"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotWith(bins int, amps map[int]float32) spectral.Snapshot {
	s := spectral.Snapshot{Bins: make([]spectral.Bin, bins), Timestamp: 4096}
	for b, a := range amps {
		s.Bins[b].Amplitude = a
	}
	return s
}

func TestBandAnalyzerMapping(t *testing.T) {
	a, err := NewBandAnalyzer(44100, 64, DefaultBands)
	require.NoError(t, err)

	// Bin spacing is 22050/64 = 344.5 Hz.
	assert.InDelta(t, 1033.59, a.BinFrequency(3), 0.01)

	s, err := a.Summarize(snapshotWith(64, nil))
	require.NoError(t, err)

	counts := map[string]int{}
	total := 0
	for _, l := range s.Levels {
		counts[l.Name] = l.Bins
		total += l.Bins
	}
	assert.Equal(t, map[string]int{
		"sub":     0,
		"bass":    0,
		"lowMid":  1, // 344.5 Hz
		"mid":     4, // 689 - 1723 Hz
		"highMid": 6, // 2067 - 3790 Hz
		"treble":  52,
	}, counts)
	assert.Equal(t, 63, total, "bin 0 (DC) is below every band")
}

func TestSummarize(t *testing.T) {
	a, err := NewBandAnalyzer(44100, 64, DefaultBands)
	require.NoError(t, err)

	s, err := a.Summarize(snapshotWith(64, map[int]float32{3: 1, 20: 0.5}))
	require.NoError(t, err)

	assert.Equal(t, int64(4096), s.Timestamp)
	assert.Equal(t, 3, s.PeakBin)
	assert.Equal(t, float32(1), s.PeakAmplitude)
	assert.InDelta(t, a.BinFrequency(3), s.PeakHz, 1e-9)
	assert.InDelta(t, math.Sqrt(1.25/64), s.RMS, 1e-9)

	mid, ok := s.Level("mid")
	require.True(t, ok)
	assert.InDelta(t, 0.5, mid.Level, 1e-9) // sqrt(1/4)
	assert.Equal(t, float32(1), mid.Peak)
	assert.InDelta(t, -6.0206, mid.DB(), 1e-3)

	treble, ok := s.Level("treble")
	require.True(t, ok)
	assert.InDelta(t, 0.5/math.Sqrt(52), treble.Level, 1e-9)

	sub, ok := s.Level("sub")
	require.True(t, ok)
	assert.Zero(t, sub.Level)
	assert.True(t, math.IsInf(sub.DB(), -1))

	_, ok = s.Level("missing")
	assert.False(t, ok)
}

func TestSummarizeRejectsWrongBinCount(t *testing.T) {
	a, err := NewBandAnalyzer(48000, 32, DefaultBands)
	require.NoError(t, err)
	_, err = a.Summarize(snapshotWith(64, nil))
	assert.Error(t, err)
}

func TestSummarizeEmptySnapshot(t *testing.T) {
	a, err := NewBandAnalyzer(48000, 32, DefaultBands)
	require.NoError(t, err)
	s, err := a.Summarize(snapshotWith(32, nil))
	require.NoError(t, err)
	assert.Zero(t, s.RMS)
	assert.Equal(t, 0, s.PeakBin, "all-zero frames report bin 0")
}

func TestNewBandAnalyzerValidation(t *testing.T) {
	_, err := NewBandAnalyzer(0, 64, DefaultBands)
	assert.Error(t, err)
	_, err = NewBandAnalyzer(44100, 0, DefaultBands)
	assert.Error(t, err)
	_, err = NewBandAnalyzer(44100, 64, []Band{{Name: "bad", LowHz: 100, HighHz: 100}})
	assert.Error(t, err)
}
