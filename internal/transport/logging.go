// SPDX-License-Identifier: MIT
package transport

import (
	"fmt"
	"strings"

	"xspectrum/internal/analysis"
	applog "xspectrum/internal/log"
	"xspectrum/internal/spectral"
)

// LoggingTransport writes a one-line band summary of every snapshot at debug
// level. It is meant for headless runs and troubleshooting.
type LoggingTransport struct {
	bands *analysis.BandAnalyzer
	log   *applog.Logger
}

// NewLoggingTransport summarises snapshots of a stream with the given format.
func NewLoggingTransport(sampleRate float64, bins int) (*LoggingTransport, error) {
	bands, err := analysis.NewBandAnalyzer(sampleRate, bins, analysis.DefaultBands)
	if err != nil {
		return nil, err
	}
	return &LoggingTransport{bands: bands, log: applog.Named("spectrum")}, nil
}

// Send logs the snapshot summary.
func (lt *LoggingTransport) Send(snap spectral.Snapshot) error {
	if applog.GetLevel() > applog.LevelDebug {
		return nil
	}
	line, err := lt.Format(snap)
	if err != nil {
		return err
	}
	lt.log.Debugf("%s", line)
	return nil
}

// Format renders a snapshot summary without logging it.
func (lt *LoggingTransport) Format(snap spectral.Snapshot) (string, error) {
	s, err := lt.bands.Summarize(snap)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "t=%d gen=%d peak=%.0fHz(%.3f)", s.Timestamp, snap.Generation, s.PeakHz, s.PeakAmplitude)
	for _, l := range s.Levels {
		fmt.Fprintf(&b, " %s=%.1fdB", l.Name, l.DB())
	}
	if snap.Stale {
		b.WriteString(" stale")
	}
	return b.String(), nil
}

// Close is a no-op.
func (lt *LoggingTransport) Close() error {
	return nil
}

var _ Transport = (*LoggingTransport)(nil)
