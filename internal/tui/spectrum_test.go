// SPDX-License-Identifier: MIT
package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xspectrum/internal/spectral"
	"xspectrum/internal/transport"
)

type fakeGate struct{ v float64 }

func (g *fakeGate) GateThreshold() float64 { return g.v }
func (g *fakeGate) SetGateThreshold(v float64) error {
	g.v = v
	return nil
}

func spectrumSource(snap spectral.Snapshot, err error) transport.Source {
	return transport.SourceFunc(func() (spectral.Snapshot, error) { return snap, err })
}

func testSnapshot() spectral.Snapshot {
	s := spectral.Snapshot{Bins: make([]spectral.Bin, 64), Timestamp: 5120, Generation: 5}
	s.Bins[3] = spectral.Bin{Amplitude: 0.2, Min: 0.001, Max: 1}
	return s
}

func update(t *testing.T, m SpectrumModel, msg tea.Msg) SpectrumModel {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(SpectrumModel)
}

func TestSpectrumModelPolls(t *testing.T) {
	m, err := NewSpectrumModel("xspectrum", spectrumSource(testSnapshot(), nil), 44100, 64, time.Millisecond, nil)
	require.NoError(t, err)
	assert.Contains(t, m.View(), "waiting for audio")

	m = update(t, m, tea.WindowSizeMsg{Width: 64, Height: 20})
	m = update(t, m, tickMsg(time.Now()))
	require.True(t, m.hasSnap)
	assert.Equal(t, 3, m.summary.PeakBin)

	view := m.View()
	assert.Contains(t, view, "t=5120")
	assert.Contains(t, view, "peak 1034 Hz (-14.0 dB)")
	assert.Contains(t, view, "█")
	assert.Contains(t, view, "mid")
	assert.NotContains(t, view, "gate", "no gate control")
}

func TestSpectrumModelNotYetAvailable(t *testing.T) {
	src := spectrumSource(spectral.Snapshot{}, spectral.ErrNotYetAvailable)
	m, err := NewSpectrumModel("x", src, 44100, 64, time.Millisecond, nil)
	require.NoError(t, err)

	m = update(t, m, tickMsg(time.Now()))
	assert.False(t, m.hasSnap)
	assert.NoError(t, m.err)

	src = spectrumSource(spectral.Snapshot{}, errors.New("boom"))
	m.source = src
	m = update(t, m, tickMsg(time.Now()))
	assert.Contains(t, m.View(), "error: boom")
}

func TestSpectrumModelKeys(t *testing.T) {
	gate := &fakeGate{}
	m, err := NewSpectrumModel("x", spectrumSource(testSnapshot(), nil), 44100, 64, time.Millisecond, gate)
	require.NoError(t, err)

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'+'}})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'+'}})
	assert.InDelta(t, 2*gateStep, gate.v, 1e-12)
	for range 5 {
		m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'-'}})
	}
	assert.Zero(t, gate.v, "gate clamps at 0")

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'p'}})
	m = update(t, m, tickMsg(time.Now()))
	assert.False(t, m.hasSnap, "paused views do not poll")

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'p'}})
	m = update(t, m, tickMsg(time.Now()))
	assert.True(t, m.hasSnap)
	assert.Contains(t, m.View(), "gate 0.000")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestSpectrumGraphMarkers(t *testing.T) {
	m, err := NewSpectrumModel("x", spectrumSource(testSnapshot(), nil), 44100, 64, time.Millisecond, nil)
	require.NoError(t, err)
	m = update(t, m, tickMsg(time.Now()))

	// One column per bin, 9 dB per row. Bin 3 has amp -14 dB, max 0 dB
	// and min -60 dB.
	lines := strings.Split(strings.TrimRight(m.graph(64, 10), "\n"), "\n")
	require.Len(t, lines, 10)
	col := func(line string, c int) string { return string([]rune(stripANSI(line))[c]) }
	assert.Equal(t, "─", col(lines[0], 3))
	assert.Equal(t, "█", col(lines[1], 3))
	assert.Equal(t, "█", col(lines[5], 3))
	assert.Equal(t, "·", col(lines[6], 3))
	assert.Equal(t, "█", col(lines[9], 3))
	for _, line := range lines {
		assert.Equal(t, " ", col(line, 0), "silent bins draw nothing")
	}
}

// stripANSI removes SGR escape sequences.
func stripANSI(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == 0x1b {
			for i < len(s) && s[i] != 'm' {
				i++
			}
			continue
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

func TestLevel(t *testing.T) {
	assert.Equal(t, 0.0, level(0))
	assert.Equal(t, 1.0, level(1))
	assert.Equal(t, 1.0, level(2))
	assert.InDelta(t, 0.5, level(float32(0.0000316227766)), 1e-3) // -45 dB
}
