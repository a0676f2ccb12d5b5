// SPDX-License-Identifier: MIT
/*
Package spectral implements the real-time spectral analysis core:

  - Accumulator gathers interleaved audio into fixed-size analysis windows
  - Transformer windows and FFTs them into B bins with a min/max envelope
  - Ring stores timestamped frames for cross-thread hand-off
  - Kernel is the per-block pass-through tap driven by the audio callback
  - Query serves "the spectrum as of sample time T" to consumers

Thread Safety:
  - One producer goroutine calls Engine.Process; it never blocks or allocates
  - Any number of consumers call Spectrum; they synchronise with the producer
    only through the ring's per-slot sequence counters
  - Lifecycle calls (Allocate, Reset, Drain, Teardown) require the producer
    to be quiesced
  - Consumer calls (Spectrum, SampleTime, Stats, BinFrequency) stay safe
    across Allocate and Teardown
*/
package spectral

import (
	"fmt"
	"sync/atomic"

	applog "xspectrum/internal/log"
)

// State is the engine lifecycle state.
type State int32

const (
	StateUnconfigured State = iota
	StateReady
	StateRunning
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Analyzer is the capability set a host needs from the spectral core.
type Analyzer interface {
	Allocate(cfg Config) error
	Process(in, out []float32, frames, channels int, silent bool) bool
	Spectrum(t int64) (Snapshot, error)
	Reset() error
}

// allocation is everything built for one stream format. It is swapped as a
// whole so consumers never see a half torn down engine.
type allocation struct {
	cfg    Config
	ring   *Ring
	tf     *Transformer
	kernel *Kernel
	query  *Query
}

// Engine owns the ring, transformer and kernel for one stream format.
type Engine struct {
	state  atomic.Int32
	params *Params
	cur    atomic.Pointer[allocation]

	log *applog.Logger
}

var _ Analyzer = (*Engine)(nil)

// NewEngine returns an unconfigured engine. Parameters are created here and
// survive format changes.
func NewEngine() *Engine {
	return &Engine{
		params: NewParams(),
		log:    applog.Named("spectral"),
	}
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Config returns the active configuration, or the zero Config when
// unconfigured.
func (e *Engine) Config() Config {
	if a := e.cur.Load(); a != nil {
		return a.cfg
	}
	return Config{}
}

// Allocate validates cfg and allocates all buffers for it. It is valid from
// Unconfigured, Ready and Draining; a running engine must Drain first. On a
// configuration error the previous allocation is kept.
func (e *Engine) Allocate(cfg Config) error {
	if st := e.State(); st == StateRunning {
		return fmt.Errorf("allocate while %s: %w", st, ErrInvalidState)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	tf, err := NewTransformer(cfg.WindowSize, cfg.Bins, cfg.SampleRate, cfg.Window, cfg.EnvelopeDepth)
	if err != nil {
		return err
	}
	ring := NewRing(cfg.RingSize, cfg.Bins)
	kernel := NewKernel(cfg, tf, ring, e.params)

	e.cur.Store(&allocation{
		cfg:    cfg,
		ring:   ring,
		tf:     tf,
		kernel: kernel,
		query:  NewQuery(ring, kernel.SampleTime),
	})
	e.state.Store(int32(StateReady))

	e.log.Infof("allocated (rate %.0f Hz, %d ch, W=%d, B=%d, K=%d, overlap %d, ring %d frames ≈ %.2fs, window %s, mix %s)",
		cfg.SampleRate, cfg.Channels, cfg.WindowSize, cfg.Bins, cfg.EnvelopeDepth,
		cfg.Overlap, cfg.RingSize, cfg.History(), cfg.Window, cfg.Mix)
	return nil
}

// Process is the real-time entry point. In Ready the first call moves the
// engine to Running. Unconfigured and Draining engines pass audio through
// without analysis.
func (e *Engine) Process(in, out []float32, frames, channels int, silent bool) bool {
	switch State(e.state.Load()) {
	case StateReady:
		e.state.CompareAndSwap(int32(StateReady), int32(StateRunning))
		fallthrough
	case StateRunning:
		if a := e.cur.Load(); a != nil {
			return a.kernel.Process(in, out, frames, channels, silent)
		}
	}
	if frames > 0 && channels > 0 {
		copy(out, in[:min(frames*channels, len(in))])
	}
	return silent
}

// Spectrum returns the frame nearest to, and not later than, sample time t.
// Safe to call from any goroutine at any time.
func (e *Engine) Spectrum(t int64) (Snapshot, error) {
	a := e.cur.Load()
	if a == nil {
		return Snapshot{RequestedTime: t}, ErrNotYetAvailable
	}
	return a.query.Spectrum(t)
}

// CurrentSpectrum returns the spectrum at the current sample time.
func (e *Engine) CurrentSpectrum() (Snapshot, error) {
	a := e.cur.Load()
	if a == nil {
		return Snapshot{}, ErrNotYetAvailable
	}
	return a.query.Current()
}

// Query returns the consumer read path, or nil when unconfigured.
func (e *Engine) Query() *Query {
	if a := e.cur.Load(); a != nil {
		return a.query
	}
	return nil
}

// SampleTime returns the sample time of the next frame to be processed.
func (e *Engine) SampleTime() int64 {
	if a := e.cur.Load(); a != nil {
		return a.kernel.SampleTime()
	}
	return 0
}

// Reset clears the accumulator and envelope but keeps ring history.
func (e *Engine) Reset() error {
	a := e.cur.Load()
	if a == nil {
		return fmt.Errorf("reset while unconfigured: %w", ErrInvalidState)
	}
	a.kernel.Reset()
	e.log.Debugf("reset (windows %d, skipped %d)", a.kernel.Windows(), a.kernel.Skipped())
	return nil
}

// Drain stops analysis while keeping ring history queryable.
func (e *Engine) Drain() error {
	switch e.State() {
	case StateReady, StateRunning:
		e.state.Store(int32(StateDraining))
		windows, _ := e.Stats()
		e.log.Debugf("draining after %d windows", windows)
		return nil
	case StateDraining:
		return nil
	default:
		return fmt.Errorf("drain while unconfigured: %w", ErrInvalidState)
	}
}

// Resume returns a draining engine to Ready without reallocating.
func (e *Engine) Resume() error {
	if !e.state.CompareAndSwap(int32(StateDraining), int32(StateReady)) {
		return fmt.Errorf("resume while %s: %w", e.State(), ErrInvalidState)
	}
	return nil
}

// Teardown releases all buffers and returns to Unconfigured. Idempotent.
func (e *Engine) Teardown() error {
	if e.State() == StateUnconfigured {
		return nil
	}
	e.state.Store(int32(StateUnconfigured))
	e.cur.Store(nil)
	e.log.Infof("torn down")
	return nil
}

// Params returns the parameter table.
func (e *Engine) Params() *Params {
	return e.params
}

// Parameter returns the normalized value of parameter id.
func (e *Engine) Parameter(id ParamID) (float64, error) {
	p, err := e.params.Get(id)
	if err != nil {
		return 0, err
	}
	return p.Value(), nil
}

// SetParameter stores a normalized value, clamped to [0, 1]. The kernel picks
// it up at the next block boundary.
func (e *Engine) SetParameter(id ParamID, v float64) error {
	p, err := e.params.Get(id)
	if err != nil {
		return err
	}
	p.SetValue(v)
	return nil
}

// BinFrequency returns the centre frequency of output bin b, or 0 when
// unconfigured.
func (e *Engine) BinFrequency(b int) float64 {
	if a := e.cur.Load(); a != nil {
		return a.tf.BinFrequency(b)
	}
	return 0
}

// Stats reports published and skipped window counts.
func (e *Engine) Stats() (windows, skipped uint64) {
	if a := e.cur.Load(); a != nil {
		return a.kernel.Windows(), a.kernel.Skipped()
	}
	return 0, 0
}
