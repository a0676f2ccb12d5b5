// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	applog "xspectrum/internal/log"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "XSPECTRUM_"

// DefaultPaths are searched in order when LoadConfig is given no path.
var DefaultPaths = []string{"xspectrum.yaml", "config.yaml"}

var log = applog.Named("config")

// LoadConfig loads configuration from the YAML file at path. If path is
// empty, DefaultPaths are searched and built-in defaults are used when none
// exists. A .env file in the working directory, when present, seeds the
// environment before XSPECTRUM_* overrides are applied. The result is
// validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range DefaultPaths {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
		log.Debugf("loaded %s", path)
	}

	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// readFile decodes path over the current values. Unknown keys are errors.
func (c *Config) readFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// loadDotEnv loads files into the environment without overriding variables
// that are already set. Missing files are ignored.
func loadDotEnv(files ...string) error {
	for _, file := range files {
		if _, err := os.Stat(file); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return nil
}

// applyEnvOverrides applies XSPECTRUM_* variables. A variable that is set but
// cannot be parsed is an error.
func (c *Config) applyEnvOverrides() error {
	overrides := []struct {
		name string
		set  func(string) error
	}{
		{"LOG_LEVEL", setString(&c.LogLevel)},
		{"INPUT_DEVICE", setInt(&c.Audio.InputDevice)},
		{"SAMPLE_RATE", setFloat(&c.Audio.SampleRate)},
		{"FRAMES_PER_BUFFER", setInt(&c.Audio.FramesPerBuffer)},
		{"INPUT_CHANNELS", setInt(&c.Audio.InputChannels)},
		{"LOW_LATENCY", setBool(&c.Audio.LowLatency)},
		{"WINDOW_SIZE", setInt(&c.Analysis.WindowSize)},
		{"BINS", setInt(&c.Analysis.Bins)},
		{"ENVELOPE_DEPTH", setInt(&c.Analysis.EnvelopeDepth)},
		{"OVERLAP", setInt(&c.Analysis.Overlap)},
		{"RING_SIZE", setInt(&c.Analysis.RingSize)},
		{"CHANNEL_MIX", setString(&c.Analysis.ChannelMix)},
		{"WINDOW", setString(&c.Analysis.Window)},
		{"SILENCE_RESET", setInt(&c.Analysis.SilenceReset)},
		{"GATE", setFloat(&c.Analysis.Gate)},
		{"RECORDING_ENABLED", setBool(&c.Recording.Enabled)},
		{"RECORDING_DIR", setString(&c.Recording.OutputDir)},
		{"SEND_INTERVAL", setDuration(&c.Transport.SendInterval)},
		{"WEBSOCKET_ENABLED", setBool(&c.Transport.WebSocketEnabled)},
		{"WEBSOCKET_ADDRESS", setString(&c.Transport.WebSocketAddress)},
		{"UDP_ENABLED", setBool(&c.Transport.UDPEnabled)},
		{"WEBSOCKET_SECRET", setString(&c.Transport.WebSocketSecret)},
		{"UDP_TARGET_ADDRESS", setString(&c.Transport.UDPTargetAddress)},
		{"REDIS_ENABLED", setBool(&c.Transport.RedisEnabled)},
		{"REDIS_ADDRESS", setString(&c.Transport.RedisAddress)},
		{"REDIS_PASSWORD", setString(&c.Transport.RedisPassword)},
		{"REDIS_DB", setInt(&c.Transport.RedisDB)},
		{"REDIS_CHANNEL", setString(&c.Transport.RedisChannel)},
		{"LOG_SPECTRUM", setBool(&c.Transport.LogEnabled)},
	}

	for _, o := range overrides {
		key := EnvPrefix + o.name
		val, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		if err := o.set(val); err != nil {
			return fmt.Errorf("%w: %s=%q: %w", ErrInvalid, key, val, err)
		}
		log.Debugf("override %s from environment", key)
	}
	return nil
}

func setString(dst *string) func(string) error {
	return func(v string) error {
		*dst = v
		return nil
	}
}

func setInt(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err == nil {
			*dst = n
		}
		return err
	}
}

func setFloat(dst *float64) func(string) error {
	return func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			*dst = f
		}
		return err
	}
}

func setBool(dst *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err == nil {
			*dst = b
		}
		return err
	}
}

func setDuration(dst *time.Duration) func(string) error {
	return func(v string) error {
		d, err := time.ParseDuration(v)
		if err == nil {
			*dst = d
		}
		return err
	}
}
