// SPDX-License-Identifier: MIT
package audio

import "xspectrum/internal/spectral"

// SetGateThreshold sets the peak level below which input counts as silence.
// The value is in the range of 0.0-1.0 where 0 disables the gate. It takes
// effect at the next callback.
func (e *Engine) SetGateThreshold(threshold float64) error {
	return e.analyzer.SetParameter(spectral.ParamGate, threshold)
}

// GateThreshold returns the current gate threshold.
func (e *Engine) GateThreshold() float64 {
	v, err := e.analyzer.Parameter(spectral.ParamGate)
	if err != nil {
		return 0
	}
	return v
}
