// SPDX-License-Identifier: MIT
package spectral

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1024, cfg.Hop())
	assert.InDelta(t, 44100.0/1024, cfg.FramesPerSecond(), 1e-9)
	assert.InDelta(t, 64/(44100.0/1024), cfg.History(), 1e-9)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"SampleRateLow", func(c *Config) { c.SampleRate = 4000 }, "sample rate"},
		{"SampleRateNaN", func(c *Config) { c.SampleRate = math.NaN() }, "sample rate"},
		{"BlockSizeZero", func(c *Config) { c.BlockSize = 0 }, "block size"},
		{"BlockSizeHuge", func(c *Config) { c.BlockSize = MaxBlockSize + 1 }, "block size"},
		{"NoChannels", func(c *Config) { c.Channels = 0 }, "channel count"},
		{"TooManyChannels", func(c *Config) { c.Channels = MaxChannels + 1 }, "channel count"},
		{"WindowNotPow2", func(c *Config) { c.WindowSize = 1000 }, "window size"},
		{"WindowTooSmall", func(c *Config) { c.WindowSize = 32 }, "window size"},
		{"WindowTooLarge", func(c *Config) { c.WindowSize = 32768 }, "window size"},
		{"NoBins", func(c *Config) { c.Bins = 0 }, "bin count"},
		{"TooManyBins", func(c *Config) { c.Bins = MaxBins + 1 }, "bin count"},
		{"NegativeDepth", func(c *Config) { c.EnvelopeDepth = -1 }, "envelope depth"},
		{"OverlapTooLarge", func(c *Config) { c.Overlap = c.WindowSize }, "overlap"},
		{"RingTooSmall", func(c *Config) { c.RingSize = 1 }, "ring size"},
		{"UnknownMix", func(c *Config) { c.Mix = ChannelMix(9) }, "channel mix"},
		{"UnknownWindow", func(c *Config) { c.Window = WindowFunc(42) }, "window function"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfiguration))

			var cerr *ConfigError
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, tt.field, cerr.Field)
		})
	}
}

func TestParseChannelMix(t *testing.T) {
	mix, err := ParseChannelMix("Average")
	require.NoError(t, err)
	assert.Equal(t, MixAverage, mix)

	mix, err = ParseChannelMix("")
	require.NoError(t, err)
	assert.Equal(t, MixFirst, mix)

	_, err = ParseChannelMix("sum")
	assert.Error(t, err)
	assert.Equal(t, "average", MixAverage.String())
}

func TestParseWindowFunc(t *testing.T) {
	tests := []struct {
		in   string
		want WindowFunc
		ok   bool
	}{
		{"Hann", Hann, true},
		{"hanning", Hann, true},
		{"HAMMING", Hamming, true},
		{"blackmannuttall", BlackmanNuttall, true},
		{"none", Rectangular, true},
		{"kaiser", Hann, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseWindowFunc(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, err == nil)
		})
	}
	assert.Equal(t, "nuttall", Nuttall.String())
}

func TestWindowCoefficients(t *testing.T) {
	coeffs := make([]float64, 64)

	windowCoefficients(coeffs, Rectangular)
	for _, c := range coeffs {
		assert.Equal(t, 1.0, c)
	}

	windowCoefficients(coeffs, Hann)
	assert.InDelta(t, 0, coeffs[0], 1e-12, "Hann starts at zero")
	assert.Less(t, coeffs[0], coeffs[32])
}
