// SPDX-License-Identifier: MIT
/*
Package audio hosts the spectral analyzer on a live PortAudio input stream
and on WAV files:

  - Engine opens the input device and drives the analyzer from the callback
  - Recorder writes the tapped signal to WAV off the callback
  - AnalyzeFile streams a WAV file through a private analyzer

Thread Safety:
  - The stream callback only touches preallocated buffers and atomics
  - Recording state is an atomic pointer swapped outside the callback
  - Lifecycle calls (Start, Stop, Close) are made from one goroutine
*/
package audio

import (
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"xspectrum/internal/config"
	applog "xspectrum/internal/log"
	"xspectrum/internal/spectral"

	"github.com/gordonklaus/portaudio"
)

// Analyzer is the spectral core as seen by the host.
type Analyzer interface {
	spectral.Analyzer
	Parameter(id spectral.ParamID) (float64, error)
	SetParameter(id spectral.ParamID, v float64) error
	Drain() error
}

var _ Analyzer = (*spectral.Engine)(nil)

type Engine struct {
	config   *config.Config
	format   spectral.Config
	analyzer Analyzer

	// Audio input handling.
	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	inputStream  *portaudio.Stream

	tap      []float32 // analyzer pass-through output
	recorder atomic.Pointer[Recorder]

	callbacks  atomic.Uint64
	underflows atomic.Uint64
	overflows  atomic.Uint64

	log *applog.Logger
}

// NewEngine resolves the configured input device and allocates analyzer for
// the stream format.
func NewEngine(cfg *config.Config, analyzer Analyzer) (*Engine, error) {
	inputDevice, err := InputDevice(cfg.Audio.InputDevice)
	if err != nil {
		return nil, err
	}
	if cfg.Audio.InputChannels > inputDevice.MaxInputChannels {
		return nil, fmt.Errorf("device %q has %d input channels, %d requested",
			inputDevice.Name, inputDevice.MaxInputChannels, cfg.Audio.InputChannels)
	}

	e, err := newEngine(cfg, analyzer)
	if err != nil {
		return nil, err
	}
	e.inputDevice = inputDevice
	if cfg.Audio.LowLatency {
		e.inputLatency = inputDevice.DefaultLowInputLatency
	} else {
		e.inputLatency = inputDevice.DefaultHighInputLatency
	}
	return e, nil
}

// newEngine builds the device-independent part of the engine.
func newEngine(cfg *config.Config, analyzer Analyzer) (*Engine, error) {
	format, err := cfg.Spectral()
	if err != nil {
		return nil, err
	}
	if err := analyzer.Allocate(format); err != nil {
		return nil, err
	}
	if err := analyzer.SetParameter(spectral.ParamGate, cfg.Analysis.Gate); err != nil {
		return nil, err
	}

	return &Engine{
		config:   cfg,
		format:   format,
		analyzer: analyzer,
		tap:      make([]float32, format.BlockSize*format.Channels),
		log:      applog.Named("audio"),
	}, nil
}

// Format returns the negotiated stream format.
func (e *Engine) Format() spectral.Config {
	return e.format
}

// StartInputStream opens and starts the PortAudio stream. From here on the
// callback drives the analyzer.
func (e *Engine) StartInputStream() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.format.Channels,
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		},
		FramesPerBuffer: e.format.BlockSize,
		SampleRate:      e.format.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.processInputStream)
	if err != nil {
		return fmt.Errorf("open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("start input stream: %w", err)
	}
	e.inputStream = stream

	e.log.Infof("input %q, %.0f Hz, %d ch, %d frames/buffer, latency %v",
		e.inputDevice.Name, e.format.SampleRate, e.format.Channels, e.format.BlockSize, e.inputLatency)
	return nil
}

// StopInputStream stops and closes the stream and drains the analyzer, which
// keeps its history queryable.
func (e *Engine) StopInputStream() error {
	if e.inputStream == nil {
		return nil
	}
	if err := e.inputStream.Stop(); err != nil {
		return err
	}
	if err := e.inputStream.Close(); err != nil {
		return err
	}
	e.inputStream = nil
	return e.analyzer.Drain()
}

// processInputStream is the PortAudio callback.
// Performance Critical:
// - Uses pre-allocated buffers only
// - No locks, logging or I/O
func (e *Engine) processInputStream(in []float32, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
	e.callbacks.Add(1)
	if flags&portaudio.InputOverflow != 0 {
		e.overflows.Add(1)
	}
	// Underflowed input is padding, not signal.
	silent := flags&portaudio.InputUnderflow != 0
	if silent {
		e.underflows.Add(1)
	}
	e.process(in, silent)
}

// process feeds one interleaved block through the analyzer and on to the
// recorder, splitting blocks larger than the negotiated size.
func (e *Engine) process(in []float32, silent bool) {
	channels := e.format.Channels
	for len(in) > 0 {
		n := min(len(in), len(e.tap))
		out := e.tap[:n]
		e.analyzer.Process(in[:n], out, n/channels, channels, silent)

		if r := e.recorder.Load(); r != nil {
			r.Push(out)
		}
		in = in[n:]
	}
}

// StartRecording starts writing the tapped signal to filename.
func (e *Engine) StartRecording(filename string) error {
	if e.recorder.Load() != nil {
		return ErrRecording
	}
	r, err := NewRecorder(filename,
		int(e.format.SampleRate),
		e.format.Channels,
		e.config.Recording.BitDepth,
		len(e.tap),
		e.config.Recording.QueueBlocks)
	if err != nil {
		return err
	}
	if !e.recorder.CompareAndSwap(nil, r) {
		r.Close()
		return ErrRecording
	}
	return nil
}

// StopRecording detaches the recorder from the callback and finalises the
// file. It is a no-op when not recording.
func (e *Engine) StopRecording() error {
	r := e.recorder.Swap(nil)
	if r == nil {
		return nil
	}
	return r.Close()
}

// Recording returns the active recorder, or nil.
func (e *Engine) Recording() *Recorder {
	return e.recorder.Load()
}

// RecordingPath returns a timestamped file name in the configured directory.
func (e *Engine) RecordingPath(now time.Time) string {
	name := "recording-" + now.UTC().Format("02-01-2006-150405") + ".wav"
	return filepath.Join(e.config.Recording.OutputDir, name)
}

// Stats reports callback, input underflow and overflow counts.
func (e *Engine) Stats() (callbacks, underflows, overflows uint64) {
	return e.callbacks.Load(), e.underflows.Load(), e.overflows.Load()
}

// Close stops recording and the input stream.
func (e *Engine) Close() error {
	if err := e.StopRecording(); err != nil {
		return err
	}
	return e.StopInputStream()
}
