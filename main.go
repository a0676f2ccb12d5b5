// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"xspectrum/cmd"
	"xspectrum/internal/audio"
	"xspectrum/internal/config"
	applog "xspectrum/internal/log"
	"xspectrum/internal/spectral"
	"xspectrum/internal/transport"
	"xspectrum/internal/transport/pubsub"
	"xspectrum/internal/transport/udp"
	"xspectrum/internal/tui"
	"xspectrum/pkg/build"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"
)

// main is the entry point. The live flow has three phases:
//
// 1. Startup Phase (Cold Path):
//   - Resolve build information and parse the command line
//   - Initialize PortAudio and allocate the spectral engine
//   - Open transports and the publisher
//
// 2. Concurrent Phase (Hot Path):
//   - The PortAudio callback drives the spectral kernel
//   - The publisher and the TUI read snapshots from the query side
//
// 3. Shutdown Phase (Cold Path):
//   - Stop the stream, finalise the recording, close transports
func main() {
	if err := build.Initialize(); err != nil {
		applog.Fatalf("%v", err)
	}

	inv, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	if inv == nil {
		return
	}
	if level, ok := applog.ParseLevel(inv.Config.LogLevel); ok {
		applog.SetLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch inv.Command {
	case cmd.CommandVersion:
		printVersion(os.Stdout)
	case cmd.CommandAnalyze:
		err = runAnalyze(ctx, inv)
	case cmd.CommandList:
		err = runList(inv)
	default:
		err = runLive(ctx, inv)
	}
	if err != nil {
		applog.Fatalf("%v", err)
	}
}

func printVersion(w io.Writer) {
	info := build.GetBuildFlags()
	fmt.Fprintf(w, "%s %s\n  commit: %s\n  built:  %s\n  go:     %s\n",
		info.Name, info.Version, info.Commit, info.Time, info.GoVersion)
}

func runList(inv *cmd.Invocation) error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	if !inv.Interactive {
		return audio.ListDevices(os.Stdout)
	}
	sel, ok, err := tui.RunDeviceSelector()
	if err != nil || !ok {
		return err
	}
	fmt.Printf("%s: --device %d --sample-rate %.0f\n", sel.DeviceName, sel.DeviceID, sel.SampleRate)
	return nil
}

func runLive(ctx context.Context, inv *cmd.Invocation) error {
	cfg := inv.Config

	// ==================== STARTUP PHASE (Cold Path) ====================

	// One thread for the audio callback, one for UI and I/O.
	runtime.GOMAXPROCS(2)

	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	analyzer := spectral.NewEngine()
	engine, err := audio.NewEngine(cfg, analyzer)
	if err != nil {
		return err
	}
	format := engine.Format()

	transports, err := openTransports(ctx, cfg, format)
	if err != nil {
		return err
	}
	var publisher *transport.Publisher
	if len(transports) > 0 {
		publisher, err = transport.NewPublisher(cfg.Transport.SendInterval, analyzer.Query(), transports...)
		if err != nil {
			return err
		}
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	// The first callback moves the analyzer from Ready to Running.
	if err := engine.StartInputStream(); err != nil {
		return err
	}
	if publisher != nil {
		publisher.Start()
	}

	recording := cfg.Recording.Enabled || inv.Output != ""
	if recording {
		path := inv.Output
		if path == "" {
			if err := os.MkdirAll(cfg.Recording.OutputDir, 0o755); err != nil {
				return err
			}
			path = engine.RecordingPath(time.Now())
		}
		if err := engine.StartRecording(path); err != nil {
			return err
		}
	}

	if inv.TUI {
		title := fmt.Sprintf("%s %s", build.GetBuildFlags().Name, build.GetBuildFlags().Version)
		view, err := tui.NewSpectrumModel(title, analyzer.Query(), format.SampleRate, format.Bins,
			cfg.Transport.SendInterval, engine)
		if err != nil {
			return err
		}
		if err := tui.RunSpectrum(view); err != nil {
			applog.Errorf("tui: %v", err)
		}
	} else {
		fmt.Printf("%s listening, press Ctrl+C to stop ('%s --help' for usage).\n",
			build.GetBuildFlags().Name, build.GetBuildFlags().Name)
		<-ctx.Done()
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	var errs []error
	if r := engine.Recording(); r != nil {
		path, dropped := r.Path(), r.Dropped()
		if err := engine.StopRecording(); err != nil {
			errs = append(errs, fmt.Errorf("stop recording: %w", err))
		} else {
			fmt.Printf("\nRecording saved to: %s\n", path)
		}
		if dropped > 0 {
			applog.Warnf("recording dropped %d blocks", dropped)
		}
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close transports: %w", err))
		}
	}
	if err := engine.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close audio engine: %w", err))
	}

	callbacks, underflows, overflows := engine.Stats()
	windows, skipped := analyzer.Stats()
	applog.Infof("callbacks %d (underflow %d, overflow %d), windows %d, skipped %d",
		callbacks, underflows, overflows, windows, skipped)
	return errors.Join(errs...)
}

// openTransports creates every enabled transport. On error the ones already
// open are closed.
func openTransports(ctx context.Context, cfg *config.Config, format spectral.Config) ([]transport.Transport, error) {
	tc := cfg.Transport
	var out []transport.Transport
	fail := func(err error) ([]transport.Transport, error) {
		for _, t := range out {
			t.Close()
		}
		return nil, err
	}

	if tc.WebSocketEnabled {
		ws, err := transport.NewWebSocketTransport(tc.WebSocketAddress, format.Bins,
			transport.WithTokenSecret(tc.WebSocketSecret))
		if err != nil {
			return fail(err)
		}
		out = append(out, ws)
	}
	if tc.UDPEnabled {
		u, err := udp.NewTransport(tc.UDPTargetAddress, format.Bins)
		if err != nil {
			return fail(err)
		}
		out = append(out, u)
	}
	if tc.RedisEnabled {
		r, err := pubsub.New(ctx, pubsub.Options{
			Addr:      tc.RedisAddress,
			Password:  tc.RedisPassword,
			DB:        tc.RedisDB,
			Channel:   tc.RedisChannel,
			LatestTTL: time.Minute,
		})
		if err != nil {
			return fail(err)
		}
		out = append(out, r)
	}
	if tc.LogEnabled {
		l, err := transport.NewLoggingTransport(format.SampleRate, format.Bins)
		if err != nil {
			return fail(err)
		}
		out = append(out, l)
	}
	return out, nil
}

// runAnalyze prints every spectral frame of a WAV file, as JSON lines or as
// band summaries. A progress bar is drawn on stderr when it is a terminal.
func runAnalyze(ctx context.Context, inv *cmd.Invocation) error {
	format, err := inv.Config.Spectral()
	if err != nil {
		return err
	}
	probe, err := audio.ProbeFile(inv.File)
	if err != nil {
		return err
	}
	format.SampleRate = float64(probe.SampleRate)
	format.Channels = probe.Channels

	summary, err := transport.NewLoggingTransport(format.SampleRate, format.Bins)
	if err != nil {
		return err
	}

	var (
		progress *mpb.Progress
		bar      *mpb.Bar
	)
	if term.IsTerminal(int(os.Stderr.Fd())) {
		progress = mpb.NewWithContext(ctx, mpb.WithOutput(os.Stderr), mpb.WithWidth(64))
		bar = progress.AddBar(probe.Frames,
			mpb.PrependDecorators(
				decor.Name("Analyzing: "),
				decor.CountersNoUnit("%d / %d"),
			),
			mpb.AppendDecorators(
				decor.Percentage(),
				decor.EwmaETA(decor.ET_STYLE_GO, 60),
			),
		)
	}

	enc := json.NewEncoder(os.Stdout)
	var done int64
	last := time.Now()
	info, err := audio.AnalyzeFile(ctx, inv.File, format, func(s spectral.Snapshot) error {
		if bar != nil {
			bar.EwmaIncrInt64(s.Timestamp-done, time.Since(last))
			done, last = s.Timestamp, time.Now()
		}
		if inv.JSON {
			return enc.Encode(s)
		}
		line, err := summary.Format(s)
		if err != nil {
			return err
		}
		_, err = fmt.Println(line)
		return err
	})
	if bar != nil {
		bar.SetTotal(-1, true)
		progress.Wait()
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "%s: %d Hz, %d ch, %d bit, %v, %d frames\n",
		inv.File, info.SampleRate, info.Channels, info.BitDepth, info.Duration().Round(time.Millisecond), info.Windows)
	return nil
}
