// SPDX-License-Identifier: MIT
package tui

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"xspectrum/internal/analysis"
	"xspectrum/internal/spectral"
	"xspectrum/internal/transport"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	floorDB  = -90.0 // bottom of the graph in dBFS
	gateStep = 0.005
)

// GateControl adjusts the analyzer gate from the UI.
type GateControl interface {
	GateThreshold() float64
	SetGateThreshold(threshold float64) error
}

var (
	keyGateUp   = key.NewBinding(key.WithKeys("+", "="))
	keyGateDown = key.NewBinding(key.WithKeys("-", "_"))
	keyPause    = key.NewBinding(key.WithKeys(" ", "p"))
)

type tickMsg time.Time

// SpectrumModel polls a Source and draws the latest snapshot as bars, with
// the envelope maximum and minimum of every column marked above and inside
// the bar.
type SpectrumModel struct {
	title    string
	source   transport.Source
	bands    *analysis.BandAnalyzer
	gate     GateControl // optional
	interval time.Duration

	width, height int
	paused        bool

	snap    spectral.Snapshot
	summary analysis.Summary
	hasSnap bool
	err     error
}

// NewSpectrumModel creates a view for a stream with the given format.
func NewSpectrumModel(title string, source transport.Source, sampleRate float64, bins int, interval time.Duration, gate GateControl) (SpectrumModel, error) {
	bands, err := analysis.NewBandAnalyzer(sampleRate, bins, analysis.DefaultBands)
	if err != nil {
		return SpectrumModel{}, err
	}
	return SpectrumModel{
		title:    title,
		source:   source,
		bands:    bands,
		gate:     gate,
		interval: interval,
		width:    80,
		height:   24,
	}, nil
}

func (m SpectrumModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init starts polling.
func (m SpectrumModel) Init() tea.Cmd {
	return m.tick()
}

// Update handles ticks, resizes and keys.
func (m SpectrumModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case tickMsg:
		if !m.paused {
			m.poll()
		}
		return m, m.tick()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keyQuit):
			return m, tea.Quit
		case key.Matches(msg, keyPause):
			m.paused = !m.paused
		case key.Matches(msg, keyGateUp):
			m.nudgeGate(gateStep)
		case key.Matches(msg, keyGateDown):
			m.nudgeGate(-gateStep)
		}
	}
	return m, nil
}

func (m *SpectrumModel) poll() {
	snap, err := m.source.Current()
	if err != nil {
		if !errors.Is(err, spectral.ErrNotYetAvailable) {
			m.err = err
		}
		return
	}
	summary, err := m.bands.Summarize(snap)
	if err != nil {
		m.err = err
		return
	}
	m.snap, m.summary, m.hasSnap, m.err = snap, summary, true, nil
}

func (m *SpectrumModel) nudgeGate(delta float64) {
	if m.gate == nil {
		return
	}
	if err := m.gate.SetGateThreshold(max(0, min(1, m.gate.GateThreshold()+delta))); err != nil {
		m.err = err
	}
}

// View renders the header, graph, band levels and help line.
func (m SpectrumModel) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(m.title))
	sb.WriteString("\n")
	sb.WriteString(m.header())
	sb.WriteString("\n\n")

	rows := max(4, m.height-8)
	if m.hasSnap {
		sb.WriteString(m.graph(max(8, m.width), rows))
		sb.WriteString("\n")
		sb.WriteString(m.levels())
	} else {
		sb.WriteString(dimStyle.Render("waiting for audio..."))
		sb.WriteString(strings.Repeat("\n", rows))
	}
	sb.WriteString("\n")
	if m.err != nil {
		sb.WriteString(maxStyle.Render("error: " + m.err.Error()))
		sb.WriteString("\n")
	}
	sb.WriteString(infoStyle.Render("+/-: Gate • Space: Pause • q: Quit"))
	return sb.String()
}

func (m SpectrumModel) header() string {
	if !m.hasSnap {
		return ""
	}
	s := fmt.Sprintf("t=%d  gen=%d  peak %.0f Hz (%.1f dB)",
		m.snap.Timestamp, m.snap.Generation, m.summary.PeakHz, toDB(m.summary.PeakAmplitude))
	if m.gate != nil {
		s += fmt.Sprintf("  gate %.3f", m.gate.GateThreshold())
	}
	if m.snap.Stale {
		s += "  " + maxStyle.Render("stale")
	}
	if m.paused {
		s += "  " + highlightStyle.Render("paused")
	}
	return s
}

// column reduces a run of bins to the loudest amplitude and the widest
// envelope.
type column struct {
	amp, lo, hi float64
}

func (m SpectrumModel) columns(width int) []column {
	bins := m.snap.Bins
	n := min(width, len(bins))
	cols := make([]column, n)
	for c := range cols {
		from, to := c*len(bins)/n, (c+1)*len(bins)/n
		col := column{lo: math.Inf(1)}
		for _, b := range bins[from:to] {
			col.amp = max(col.amp, level(b.Amplitude))
			col.hi = max(col.hi, level(b.Max))
			col.lo = min(col.lo, level(b.Min))
		}
		cols[c] = col
	}
	return cols
}

// graph draws rows lines, top first. A cell is filled when the amplitude
// reaches it, marked ─ at the envelope maximum and · at the minimum.
func (m SpectrumModel) graph(width, rows int) string {
	cols := m.columns(width)
	var sb strings.Builder
	for r := range rows {
		top := 1 - float64(r)/float64(rows)
		bottom := 1 - float64(r+1)/float64(rows)
		for _, c := range cols {
			switch {
			case c.hi > bottom && c.hi <= top && c.amp <= bottom:
				sb.WriteString(maxStyle.Render("─"))
			case c.amp > bottom:
				if c.lo > bottom && c.lo <= top {
					sb.WriteString(minStyle.Render("·"))
				} else {
					sb.WriteString(barStyle.Render("█"))
				}
			default:
				sb.WriteString(" ")
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m SpectrumModel) levels() string {
	parts := make([]string, 0, len(m.summary.Levels))
	for _, l := range m.summary.Levels {
		if l.Bins == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %5.1f", l.Name, max(l.DB(), floorDB)))
	}
	return dimStyle.Render(strings.Join(parts, "  "))
}

// level maps an amplitude onto [0, 1] over the display range.
func level(a float32) float64 {
	return max(0, min(1, (toDB(a)-floorDB)/-floorDB))
}

func toDB(a float32) float64 {
	if a <= 0 {
		return floorDB
	}
	return max(floorDB, 20*math.Log10(float64(a)))
}

// RunSpectrum runs the live view full screen until the user quits.
func RunSpectrum(m SpectrumModel) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
