// SPDX-License-Identifier: MIT
package spectral

import (
	"math"
	"sync/atomic"
)

// ParamID identifies a host-controllable parameter.
type ParamID uint32

const (
	// ParamGate is the peak level below which a block counts as silent for
	// the silence reset policy. 0 disables the gate.
	ParamGate ParamID = iota

	numParams
)

// Parameter is a named control whose normalized value lives in [0, 1]. The
// value is published as a single atomic word so the audio thread can read it
// without locks.
type Parameter struct {
	ID      ParamID
	Name    string
	Unit    string
	Min     float64
	Max     float64
	Default float64 // normalized

	value   atomic.Uint64 // float64 bits
	version *atomic.Uint64
}

// Value returns the normalized value.
func (p *Parameter) Value() float64 {
	return math.Float64frombits(p.value.Load())
}

// SetValue stores the normalized value, clamped to [0, 1]. NaN is ignored.
func (p *Parameter) SetValue(v float64) {
	if math.IsNaN(v) {
		return
	}
	v = max(0, min(v, 1))
	p.value.Store(math.Float64bits(v))
	if p.version != nil {
		p.version.Add(1)
	}
}

// Plain returns the value mapped onto [Min, Max].
func (p *Parameter) Plain() float64 {
	return p.Min + p.Value()*(p.Max-p.Min)
}

// SetPlain stores a value given in [Min, Max] units.
func (p *Parameter) SetPlain(plain float64) {
	if p.Max <= p.Min {
		p.SetValue(0)
		return
	}
	p.SetValue((plain - p.Min) / (p.Max - p.Min))
}

// Reset restores the default value.
func (p *Parameter) Reset() {
	p.SetValue(p.Default)
}

// Params is the engine's fixed parameter table. Any write bumps a shared
// version so the kernel can pick up changes once per block.
type Params struct {
	list    [numParams]*Parameter
	version atomic.Uint64
}

// NewParams registers every parameter at its default value.
func NewParams() *Params {
	p := &Params{}
	p.list[ParamGate] = &Parameter{
		ID:      ParamGate,
		Name:    "Gate",
		Unit:    "peak",
		Min:     0,
		Max:     1,
		Default: 0,
	}
	for _, param := range p.list {
		param.version = &p.version
		param.Reset()
	}
	return p
}

// Get returns the parameter with the given id.
func (p *Params) Get(id ParamID) (*Parameter, error) {
	if id >= numParams {
		return nil, ErrUnknownParameter
	}
	return p.list[id], nil
}

// All returns every parameter ordered by id.
func (p *Params) All() []*Parameter {
	return p.list[:]
}

// Version changes whenever any parameter is written.
func (p *Params) Version() uint64 {
	return p.version.Load()
}

// Gate returns the gate threshold as a peak amplitude.
func (p *Params) Gate() float32 {
	return float32(p.list[ParamGate].Plain())
}
