// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"net"
	"time"

	applog "xspectrum/internal/log"
	"xspectrum/internal/spectral"
)

// Defaults applied before the config file and environment are read.
const (
	DefaultLogLevel        = "info"
	DefaultDeviceID        = MinDeviceID // system default input
	DefaultSampleRate      = 44100
	DefaultFramesPerBuffer = 512
	DefaultChannels        = 1
	DefaultLowLatency      = false

	DefaultWindow       = "hann"
	DefaultChannelMix   = "first"
	DefaultSilenceReset = spectral.DefaultWindowSize

	DefaultRecordingDir  = "./recordings"
	DefaultBitDepth      = 16
	DefaultQueueBlocks   = 64
	DefaultSendInterval  = 33 * time.Millisecond // ~30Hz
	DefaultUDPTarget     = "127.0.0.1:9090"
	DefaultWebSocketAddr = ":8080"
	DefaultRedisAddr     = "127.0.0.1:6379"
	DefaultRedisChannel  = "xspectrum:spectrum"

	// MinDeviceID selects the system default device.
	MinDeviceID = -1
)

// ErrInvalid is wrapped by every validation failure outside the analysis
// section, which reports *spectral.ConfigError instead.
var ErrInvalid = errors.New("config: invalid value")

// Config is the application configuration, loaded from YAML.
type Config struct {
	LogLevel  string          `yaml:"log_level"` // debug, info, warn, error
	Audio     AudioConfig     `yaml:"audio"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Recording RecordingConfig `yaml:"recording"`
	Transport TransportConfig `yaml:"transport"`
}

// AudioConfig describes the live input stream.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index, -1 for default
	SampleRate      float64 `yaml:"sample_rate"`       // Hz
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // frames per callback
	InputChannels   int     `yaml:"input_channels"`
	LowLatency      bool    `yaml:"low_latency"` // use the device's low input latency
}

// AnalysisConfig holds the spectral settings. Names are parsed by
// spectral.ParseWindowFunc and spectral.ParseChannelMix.
type AnalysisConfig struct {
	WindowSize    int     `yaml:"window_size"`    // power of two
	Bins          int     `yaml:"bins"`           // output bins per frame
	EnvelopeDepth int     `yaml:"envelope_depth"` // 0 tracks min/max since reset
	Overlap       int     `yaml:"overlap"`        // samples shared by consecutive windows
	RingSize      int     `yaml:"ring_size"`      // frames of history
	ChannelMix    string  `yaml:"channel_mix"`    // first, average
	Window        string  `yaml:"window"`         // hann, hamming, blackman, ...
	SilenceReset  int     `yaml:"silence_reset"`  // silent frames before reset, <0 never
	Gate          float64 `yaml:"gate"`           // peak below which a block is silent, 0 disables
}

// RecordingConfig controls WAV capture of the tapped signal.
type RecordingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	OutputDir   string `yaml:"output_dir"`
	BitDepth    int    `yaml:"bit_depth"`    // 16, 24 or 32
	QueueBlocks int    `yaml:"queue_blocks"` // callback blocks buffered for the writer
}

// TransportConfig controls where snapshots are published.
type TransportConfig struct {
	SendInterval     time.Duration `yaml:"send_interval"` // publisher poll period
	WebSocketEnabled bool          `yaml:"websocket_enabled"`
	WebSocketAddress string        `yaml:"websocket_address"` // listen address, e.g. ":8080"
	WebSocketSecret  string        `yaml:"websocket_secret"`  // HS256 key for client tokens, empty disables auth
	UDPEnabled       bool          `yaml:"udp_enabled"`
	UDPTargetAddress string        `yaml:"udp_target_address"` // host:port
	RedisEnabled     bool          `yaml:"redis_enabled"`
	RedisAddress     string        `yaml:"redis_address"` // host:port
	RedisPassword    string        `yaml:"redis_password"`
	RedisDB          int           `yaml:"redis_db"`
	RedisChannel     string        `yaml:"redis_channel"` // pub/sub channel; the latest snapshot is kept at <channel>:latest
	LogEnabled       bool          `yaml:"log_enabled"`   // log band levels at debug level
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Audio: AudioConfig{
			InputDevice:     DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			InputChannels:   DefaultChannels,
			LowLatency:      DefaultLowLatency,
		},
		Analysis: AnalysisConfig{
			WindowSize:    spectral.DefaultWindowSize,
			Bins:          spectral.DefaultBins,
			EnvelopeDepth: spectral.DefaultEnvelopeDepth,
			RingSize:      spectral.DefaultRingSize,
			ChannelMix:    DefaultChannelMix,
			Window:        DefaultWindow,
			SilenceReset:  DefaultSilenceReset,
		},
		Recording: RecordingConfig{
			OutputDir:   DefaultRecordingDir,
			BitDepth:    DefaultBitDepth,
			QueueBlocks: DefaultQueueBlocks,
		},
		Transport: TransportConfig{
			SendInterval:     DefaultSendInterval,
			WebSocketAddress: DefaultWebSocketAddr,
			UDPTargetAddress: DefaultUDPTarget,
			RedisAddress:     DefaultRedisAddr,
			RedisChannel:     DefaultRedisChannel,
		},
	}
}

// Spectral converts the audio and analysis sections into a spectral
// configuration. The result is not validated.
func (c *Config) Spectral() (spectral.Config, error) {
	window, err := spectral.ParseWindowFunc(c.Analysis.Window)
	if err != nil {
		return spectral.Config{}, fmt.Errorf("analysis.window: %w", err)
	}
	mix, err := spectral.ParseChannelMix(c.Analysis.ChannelMix)
	if err != nil {
		return spectral.Config{}, fmt.Errorf("analysis.channel_mix: %w", err)
	}
	return spectral.Config{
		SampleRate:    c.Audio.SampleRate,
		BlockSize:     c.Audio.FramesPerBuffer,
		Channels:      c.Audio.InputChannels,
		WindowSize:    c.Analysis.WindowSize,
		Bins:          c.Analysis.Bins,
		EnvelopeDepth: c.Analysis.EnvelopeDepth,
		Overlap:       c.Analysis.Overlap,
		RingSize:      c.Analysis.RingSize,
		Mix:           mix,
		Window:        window,
		SilenceReset:  c.Analysis.SilenceReset,
	}, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("%w: log_level %q", ErrInvalid, c.LogLevel)
	}
	if c.Audio.InputDevice < MinDeviceID {
		return fmt.Errorf("%w: audio.input_device %d", ErrInvalid, c.Audio.InputDevice)
	}

	analysis, err := c.Spectral()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := analysis.Validate(); err != nil {
		return err
	}
	if c.Analysis.Gate < 0 || c.Analysis.Gate > 1 {
		return fmt.Errorf("%w: analysis.gate %v must be within [0, 1]", ErrInvalid, c.Analysis.Gate)
	}

	if c.Recording.Enabled {
		switch c.Recording.BitDepth {
		case 16, 24, 32:
		default:
			return fmt.Errorf("%w: recording.bit_depth %d must be 16, 24 or 32", ErrInvalid, c.Recording.BitDepth)
		}
		if c.Recording.QueueBlocks < 2 {
			return fmt.Errorf("%w: recording.queue_blocks %d must be at least 2", ErrInvalid, c.Recording.QueueBlocks)
		}
	}

	t := c.Transport
	if (t.WebSocketEnabled || t.UDPEnabled || t.RedisEnabled || t.LogEnabled) && t.SendInterval <= 0 {
		return fmt.Errorf("%w: transport.send_interval must be positive", ErrInvalid)
	}
	if t.UDPEnabled {
		if _, _, err := net.SplitHostPort(t.UDPTargetAddress); err != nil {
			return fmt.Errorf("%w: transport.udp_target_address %q: %w", ErrInvalid, t.UDPTargetAddress, err)
		}
	}
	if t.WebSocketEnabled {
		if _, _, err := net.SplitHostPort(t.WebSocketAddress); err != nil {
			return fmt.Errorf("%w: transport.websocket_address %q: %w", ErrInvalid, t.WebSocketAddress, err)
		}
	}
	if t.RedisEnabled {
		if _, _, err := net.SplitHostPort(t.RedisAddress); err != nil {
			return fmt.Errorf("%w: transport.redis_address %q: %w", ErrInvalid, t.RedisAddress, err)
		}
		if t.RedisChannel == "" || t.RedisDB < 0 {
			return fmt.Errorf("%w: transport.redis_channel must be set and redis_db non-negative", ErrInvalid)
		}
	}
	return nil
}
