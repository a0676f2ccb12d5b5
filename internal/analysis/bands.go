// SPDX-License-Identifier: MIT

// Package analysis summarises spectral snapshots on the consumer side.
package analysis

import (
	"fmt"
	"math"

	"xspectrum/internal/spectral"
)

// Band is a named frequency range, LowHz inclusive and HighHz exclusive.
type Band struct {
	Name   string
	LowHz  float64
	HighHz float64
}

// DefaultBands split the audible range the way mixing engineers usually do.
var DefaultBands = []Band{
	{Name: "sub", LowHz: 20, HighHz: 60},
	{Name: "bass", LowHz: 60, HighHz: 250},
	{Name: "lowMid", LowHz: 250, HighHz: 500},
	{Name: "mid", LowHz: 500, HighHz: 2000},
	{Name: "highMid", LowHz: 2000, HighHz: 4000},
	{Name: "treble", LowHz: 4000, HighHz: math.Inf(1)},
}

// Level is the RMS amplitude of the bins whose centre falls inside a band.
type Level struct {
	Band
	Level float64 // RMS of bin amplitudes, 0 when the band has no bins
	Peak  float32 // loudest bin in the band
	Bins  int     // bins covered
}

// DB returns the level in dBFS, or -Inf for silence.
func (l Level) DB() float64 {
	return 20 * math.Log10(l.Level)
}

// Summary describes one snapshot.
type Summary struct {
	Timestamp     int64
	Levels        []Level
	PeakBin       int // -1 for an empty snapshot
	PeakHz        float64
	PeakAmplitude float32
	RMS           float64 // over all bins
}

// Level returns the level of the named band.
func (s Summary) Level(name string) (Level, bool) {
	for _, l := range s.Levels {
		if l.Name == name {
			return l, true
		}
	}
	return Level{}, false
}

// BandAnalyzer maps output bins to bands for one stream format.
type BandAnalyzer struct {
	bands      []Band
	bins       int
	sampleRate float64
	binBand    []int // band index per bin, -1 if none
	counts     []int // bins per band
}

// NewBandAnalyzer precomputes the bin to band mapping for bins output bins
// spanning 0 to sampleRate/2.
func NewBandAnalyzer(sampleRate float64, bins int, bands []Band) (*BandAnalyzer, error) {
	if sampleRate <= 0 || bins <= 0 {
		return nil, fmt.Errorf("analysis: invalid format %.0f Hz, %d bins", sampleRate, bins)
	}
	for _, b := range bands {
		if !(b.LowHz < b.HighHz) {
			return nil, fmt.Errorf("analysis: band %q has an empty range", b.Name)
		}
	}

	a := &BandAnalyzer{
		bands:      bands,
		bins:       bins,
		sampleRate: sampleRate,
		binBand:    make([]int, bins),
		counts:     make([]int, len(bands)),
	}
	for b := range a.binBand {
		a.binBand[b] = -1
		hz := a.BinFrequency(b)
		for i, band := range bands {
			if hz >= band.LowHz && hz < band.HighHz {
				a.binBand[b] = i
				a.counts[i]++
				break
			}
		}
	}
	return a, nil
}

// BinFrequency returns the centre frequency of output bin b.
func (a *BandAnalyzer) BinFrequency(b int) float64 {
	return float64(b) * (a.sampleRate / 2) / float64(a.bins)
}

// Bands returns the configured bands.
func (a *BandAnalyzer) Bands() []Band {
	return a.bands
}

// Summarize computes band levels and the spectral peak of snap.
func (a *BandAnalyzer) Summarize(snap spectral.Snapshot) (Summary, error) {
	if len(snap.Bins) != a.bins {
		return Summary{}, fmt.Errorf("analysis: snapshot has %d bins, want %d", len(snap.Bins), a.bins)
	}

	s := Summary{
		Timestamp: snap.Timestamp,
		Levels:    make([]Level, len(a.bands)),
	}
	energy := make([]float64, len(a.bands))
	var total float64

	for b, bin := range snap.Bins {
		amp := float64(bin.Amplitude)
		total += amp * amp
		i := a.binBand[b]
		if i < 0 {
			continue
		}
		energy[i] += amp * amp
		s.Levels[i].Peak = max(s.Levels[i].Peak, bin.Amplitude)
	}

	for i, band := range a.bands {
		s.Levels[i].Band = band
		s.Levels[i].Bins = a.counts[i]
		if a.counts[i] > 0 {
			s.Levels[i].Level = math.Sqrt(energy[i] / float64(a.counts[i]))
		}
	}
	s.RMS = math.Sqrt(total / float64(a.bins))

	s.PeakBin, s.PeakAmplitude = snap.Peak()
	if s.PeakBin >= 0 {
		s.PeakHz = a.BinFrequency(s.PeakBin)
	}
	return s, nil
}
