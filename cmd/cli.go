// SPDX-License-Identifier: MIT

// Package cmd defines the command line. Parsing only builds an Invocation;
// main executes it.
package cmd

import (
	"fmt"

	"xspectrum/internal/config"
	"xspectrum/pkg/build"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Commands understood by main.
const (
	CommandRun     = "run"
	CommandAnalyze = "analyze"
	CommandList    = "list"
	CommandVersion = "version"
)

// Invocation is a parsed command line with the configuration it resolved to.
type Invocation struct {
	Command string
	Config  *config.Config

	ConfigPath  string
	File        string // analyze: input WAV
	TUI         bool   // run: live spectrum view
	Interactive bool   // list: device selector
	JSON        bool   // analyze: one JSON snapshot per line
	Output      string // run: recording file, overrides the generated name
}

// flagValues mirrors the configuration fields settable from the command line.
type flagValues struct {
	logLevel        string
	verbose         bool
	deviceID        int
	channels        int
	sampleRate      float64
	framesPerBuffer int
	lowLatency      bool

	windowSize    int
	bins          int
	envelopeDepth int
	overlap       int
	window        string
	channelMix    string
	gate          float64

	record bool

	websocket   string
	udp         string
	logSpectrum bool
}

// ParseArgs parses args (without the program name) into an Invocation.
func ParseArgs(args []string) (*Invocation, error) {
	buildInfo := build.GetBuildFlags()
	inv := &Invocation{}
	var fv flagValues

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(inv.ConfigPath)
			if err != nil {
				return err
			}
			applyFlags(cmd.Flags(), &fv, cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid flags: %w", err)
			}
			inv.Config = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			inv.Command = CommandRun
			return nil
		},
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Analyse the live input device (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv.Command = CommandRun
			return nil
		},
	}
	runCmd.Flags().BoolVarP(&inv.TUI, "tui", "t", false, "Show the live spectrum view")
	runCmd.Flags().BoolVarP(&fv.record, "record", "r", false, "Record the input to a WAV file")
	runCmd.Flags().StringVarP(&inv.Output, "output", "o", "",
		"Recording file name. Default is <output_dir>/recording-DD-MM-YYYY-HHMMSS.wav")
	runCmd.Flags().StringVar(&fv.websocket, "websocket", "", "Serve snapshots over WebSocket on this address")
	runCmd.Flags().StringVar(&fv.udp, "udp", "", "Send snapshot datagrams to this host:port")
	runCmd.Flags().BoolVar(&fv.logSpectrum, "log-spectrum", false, "Log band levels at debug level")

	analyzeCmd := &cobra.Command{
		Use:   "analyze <file.wav>",
		Short: "Analyse a WAV file and print its spectral frames",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inv.Command = CommandAnalyze
			inv.File = args[0]
			return nil
		},
	}
	analyzeCmd.Flags().BoolVar(&inv.JSON, "json", false, "Print one JSON snapshot per line")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv.Command = CommandList
			return nil
		},
	}
	listCmd.Flags().BoolVarP(&inv.Interactive, "interactive", "i", false, "Pick a device and sample rate interactively")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv.Command = CommandVersion
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, analyzeCmd, listCmd, versionCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&inv.ConfigPath, "config", "",
		fmt.Sprintf("Configuration file (default: first of %v)", config.DefaultPaths))
	pf.StringVar(&fv.logLevel, "log-level", config.DefaultLogLevel, "Log level: debug, info, warn, error")
	pf.BoolVarP(&fv.verbose, "verbose", "v", false, "Shorthand for --log-level=debug")

	// Audio Device Configuration
	pf.IntVarP(&fv.deviceID, "device", "d", config.DefaultDeviceID,
		"Input device ID. Use the 'list' command to see available devices.")
	pf.IntVarP(&fv.channels, "channels", "c", config.DefaultChannels,
		"Number of input channels (1=mono, 2=stereo)")
	pf.Float64VarP(&fv.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	pf.IntVarP(&fv.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	pf.BoolVarP(&fv.lowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use the device's low input latency")

	// Analysis Configuration
	pf.IntVarP(&fv.windowSize, "window-size", "w", 0, "FFT window size, a power of two")
	pf.IntVar(&fv.bins, "bins", 0, "Output bins per frame")
	pf.IntVar(&fv.envelopeDepth, "envelope", 0, "Transforms tracked by the min/max envelope, 0 since reset")
	pf.IntVar(&fv.overlap, "overlap", 0, "Samples shared by consecutive windows")
	pf.StringVar(&fv.window, "window", config.DefaultWindow, "Window function")
	pf.StringVar(&fv.channelMix, "mix", config.DefaultChannelMix, "Channel mix: first, average")
	pf.Float64Var(&fv.gate, "gate", 0, "Peak level below which input counts as silent, 0 disables")

	// cobra falls back to os.Args on nil.
	if args == nil {
		args = []string{}
	}
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	// --help and --version return without running a command.
	if inv.Command == "" {
		return nil, nil
	}
	return inv, nil
}

// applyFlags copies explicitly set flags over cfg, so the config file and
// environment stay in charge of everything else.
func applyFlags(fs *pflag.FlagSet, fv *flagValues, cfg *config.Config) {
	set := func(name string) bool {
		f := fs.Lookup(name)
		return f != nil && f.Changed
	}

	if set("log-level") {
		cfg.LogLevel = fv.logLevel
	}
	if fv.verbose {
		cfg.LogLevel = "debug"
	}
	if set("device") {
		cfg.Audio.InputDevice = fv.deviceID
	}
	if set("channels") {
		cfg.Audio.InputChannels = fv.channels
	}
	if set("sample-rate") {
		cfg.Audio.SampleRate = fv.sampleRate
	}
	if set("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = fv.framesPerBuffer
	}
	if set("low-latency") {
		cfg.Audio.LowLatency = fv.lowLatency
	}

	if set("window-size") {
		cfg.Analysis.WindowSize = fv.windowSize
	}
	if set("bins") {
		cfg.Analysis.Bins = fv.bins
	}
	if set("envelope") {
		cfg.Analysis.EnvelopeDepth = fv.envelopeDepth
	}
	if set("overlap") {
		cfg.Analysis.Overlap = fv.overlap
	}
	if set("window") {
		cfg.Analysis.Window = fv.window
	}
	if set("mix") {
		cfg.Analysis.ChannelMix = fv.channelMix
	}
	if set("gate") {
		cfg.Analysis.Gate = fv.gate
	}

	if set("record") {
		cfg.Recording.Enabled = fv.record
	}
	if set("websocket") {
		cfg.Transport.WebSocketEnabled = true
		cfg.Transport.WebSocketAddress = fv.websocket
	}
	if set("udp") {
		cfg.Transport.UDPEnabled = true
		cfg.Transport.UDPTargetAddress = fv.udp
	}
	if set("log-spectrum") {
		cfg.Transport.LogEnabled = fv.logSpectrum
	}
}
