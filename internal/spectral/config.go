// SPDX-License-Identifier: MIT
package spectral

import (
	"fmt"
	"math"
	"strings"

	"xspectrum/pkg/bitint"
)

// Supported bounds, checked once when a stream format is negotiated.
const (
	MinWindowSize    = 64
	MaxWindowSize    = 16384
	MaxBins          = 512
	MaxChannels      = 32
	MinSampleRate    = 8000
	MaxSampleRate    = 192000
	MaxBlockSize     = 8192
	MinRingSize      = 2
	MaxRingSize      = 4096
	MaxEnvelopeDepth = 256

	DefaultWindowSize    = 1024
	DefaultBins          = 64
	DefaultRingSize      = 64
	DefaultEnvelopeDepth = 0 // track since last reset
)

// ChannelMix is the rule that reduces interleaved input to one analysis channel.
type ChannelMix int

const (
	// MixFirst analyses channel 0 only.
	MixFirst ChannelMix = iota
	// MixAverage analyses the arithmetic mean of all channels.
	MixAverage
)

func (m ChannelMix) String() string {
	switch m {
	case MixFirst:
		return "first"
	case MixAverage:
		return "average"
	default:
		return fmt.Sprintf("ChannelMix(%d)", int(m))
	}
}

// ParseChannelMix converts "first" or "average" (case-insensitive).
func ParseChannelMix(name string) (ChannelMix, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "first", "left":
		return MixFirst, nil
	case "average", "avg", "mean":
		return MixAverage, nil
	default:
		return MixFirst, fmt.Errorf("unknown channel mix: %q", name)
	}
}

// Config is the stream format plus analysis settings supplied at negotiation.
type Config struct {
	SampleRate    float64    // Hz
	BlockSize     int        // maximum frames per Process call
	Channels      int        // interleaved channels per frame
	WindowSize    int        // W, power of two
	Bins          int        // B, output bins per frame
	EnvelopeDepth int        // K, transforms tracked by min/max; 0 = since reset
	Overlap       int        // samples shared by consecutive windows
	RingSize      int        // N, frames of history
	Mix           ChannelMix // multi-channel reduction rule
	Window        WindowFunc // analysis window
	SilenceReset  int        // silent frames tolerated before reset; <0 never
}

// DefaultConfig returns a mono 44.1 kHz configuration with W=1024 and B=64.
func DefaultConfig() Config {
	return Config{
		SampleRate:    44100,
		BlockSize:     512,
		Channels:      1,
		WindowSize:    DefaultWindowSize,
		Bins:          DefaultBins,
		EnvelopeDepth: DefaultEnvelopeDepth,
		RingSize:      DefaultRingSize,
		Mix:           MixFirst,
		Window:        Hann,
		SilenceReset:  DefaultWindowSize,
	}
}

// Validate reports the first unsupported field as a *ConfigError.
func (c Config) Validate() error {
	switch {
	case math.IsNaN(c.SampleRate) || c.SampleRate < MinSampleRate || c.SampleRate > MaxSampleRate:
		return configErr("sample rate", c.SampleRate, fmt.Sprintf("must be within [%d, %d] Hz", MinSampleRate, MaxSampleRate))
	case c.BlockSize <= 0 || c.BlockSize > MaxBlockSize:
		return configErr("block size", c.BlockSize, fmt.Sprintf("must be within [1, %d]", MaxBlockSize))
	case c.Channels <= 0 || c.Channels > MaxChannels:
		return configErr("channel count", c.Channels, fmt.Sprintf("must be within [1, %d]", MaxChannels))
	case !bitint.InRange(c.WindowSize, MinWindowSize, MaxWindowSize):
		return configErr("window size", c.WindowSize, fmt.Sprintf("must be a power of two within [%d, %d]", MinWindowSize, MaxWindowSize))
	case c.Bins <= 0 || c.Bins > MaxBins:
		return configErr("bin count", c.Bins, fmt.Sprintf("must be within [1, %d]", MaxBins))
	case c.EnvelopeDepth < 0 || c.EnvelopeDepth > MaxEnvelopeDepth:
		return configErr("envelope depth", c.EnvelopeDepth, fmt.Sprintf("must be within [0, %d]", MaxEnvelopeDepth))
	case c.Overlap < 0 || c.Overlap >= c.WindowSize:
		return configErr("overlap", c.Overlap, "must be non-negative and smaller than the window size")
	case c.RingSize < MinRingSize || c.RingSize > MaxRingSize:
		return configErr("ring size", c.RingSize, fmt.Sprintf("must be within [%d, %d]", MinRingSize, MaxRingSize))
	case c.Mix != MixFirst && c.Mix != MixAverage:
		return configErr("channel mix", c.Mix, "unknown rule")
	case c.Window < Hann || c.Window > Rectangular:
		return configErr("window function", c.Window, "unknown window")
	}
	return nil
}

// Hop is the number of new samples between consecutive windows.
func (c Config) Hop() int {
	return c.WindowSize - c.Overlap
}

// FramesPerSecond is the spectral frame rate produced by this configuration.
func (c Config) FramesPerSecond() float64 {
	return c.SampleRate / float64(c.Hop())
}

// History is the span of audio covered by a full ring buffer, in seconds.
func (c Config) History() float64 {
	return float64(c.RingSize) / c.FramesPerSecond()
}
