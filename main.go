package main

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/olivier-w/notegrid/internal/analyzer"
	"github.com/olivier-w/notegrid/internal/capture"
	"github.com/olivier-w/notegrid/internal/capture/microphone"
	"github.com/olivier-w/notegrid/internal/config"
	"github.com/olivier-w/notegrid/internal/logging"
	"github.com/olivier-w/notegrid/internal/queue"
	"github.com/olivier-w/notegrid/internal/ui"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var configFile string

	cmd := &cobra.Command{
		Use:   "notegrid [flags]",
		Short: "Show the notes you play on a 12-cell grid",
		Long: `notegrid listens to the default microphone (or replays an audio file),
detects the pitch of each block, and lights up the matching note cell.`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, configFile)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", "", "config file (json, yaml or toml)")
	defineFlags(flags, config.Default())
	cobra.CheckErr(bindFlags(v, flags))
	return cmd
}

func defineFlags(flags *pflag.FlagSet, d config.Config) {
	flags.String("file", d.File, "replay an audio file instead of the microphone (mp3, wav, flac, ogg)")
	flags.Bool("monitor", d.Monitor, "play the replayed file through the speakers")
	flags.Float64("sensitivity", d.Sensitivity, "note acceptance in (0, 1], higher accepts more out-of-tune notes")
	flags.Int("buffer-size", d.BufferSize, "samples per analysis block")
	flags.Int("sample-rate", d.SampleRate, "microphone sample rate in Hz")
	flags.Float64("decay", d.Decay, "per-tick marker fade factor in (0, 1)")
	flags.Float64("threshold", d.Threshold, "opacity at which a marker is removed")
	flags.Duration("tick", d.Tick, "render interval")
	flags.Float64("min-freq", d.MinFreq, "lowest accepted frequency in Hz")
	flags.Float64("max-freq", d.MaxFreq, "highest accepted frequency in Hz")
	flags.Int("queue-size", d.QueueSize, "detections buffered between frames")
	flags.String("log-file", d.LogFile, "log file path, empty disables logging")
	flags.String("log-level", d.LogLevel, "trace, debug, info, warn, error or off")
}

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"file":        "file",
	"monitor":     "monitor",
	"sensitivity": "sensitivity",
	"buffer-size": "bufferSize",
	"sample-rate": "sampleRate",
	"decay":       "decay",
	"threshold":   "threshold",
	"tick":        "tick",
	"min-freq":    "minFreq",
	"max-freq":    "maxFreq",
	"queue-size":  "queueSize",
	"log-file":    "logFile",
	"log-level":   "logLevel",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("binding flag --%s: %w", name, err)
		}
	}
	return nil
}

func run(cfg config.Config) error {
	log, closeLog, err := logging.Open(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer closeLog()

	events := queue.New[analyzer.Detection](cfg.QueueSize)
	an := analyzer.New(analyzer.Settings{
		SampleRate:  cfg.SampleRate,
		BlockSize:   cfg.BufferSize,
		Sensitivity: cfg.Sensitivity,
		MinFreq:     cfg.MinFreq,
		MaxFreq:     cfg.MaxFreq,
	}, events, log)

	src, position, err := openSource(cfg, log)
	if err != nil {
		return err
	}
	an.SetSampleRate(src.SampleRate())

	log.Info().
		Str("source", src.Name()).
		Int("rate", src.SampleRate()).
		Int("block", cfg.BufferSize).
		Float64("sensitivity", cfg.Sensitivity).
		Msg("starting")

	if err := startSource(src, an, log); err != nil {
		return err
	}

	model := ui.New(ui.Options{
		Config:   cfg,
		Events:   events,
		Analyzer: an,
		Title:    src.Name(),
		Done:     src.Done(),
		Position: position,
		Log:      log,
	})
	defer model.Close()

	_, runErr := tea.NewProgram(model, tea.WithAltScreen()).Run()
	if err := src.Stop(); err != nil {
		log.Error().Err(err).Msg("stopping source")
	}

	stats := an.Stats()
	log.Info().
		Uint64("blocks", stats.Blocks).
		Uint64("accepted", stats.Accepted).
		Uint64("dropped", stats.Dropped).
		Msg("stopped")

	if runErr != nil {
		return fmt.Errorf("running program: %w", runErr)
	}
	return nil
}

// startSource starts src. On failure the source is stopped again so a
// half-opened device is released.
func startSource(src capture.Source, sink capture.Sink, log zerolog.Logger) error {
	if err := src.Start(sink); err != nil {
		if stopErr := src.Stop(); stopErr != nil {
			log.Error().Err(stopErr).Msg("stopping source")
		}
		return fmt.Errorf("starting %s: %w", src.Name(), err)
	}
	return nil
}

// openSource picks the replay file when one is configured and the default
// microphone otherwise. position is nil for live input.
func openSource(cfg config.Config, log zerolog.Logger) (capture.Source, func() time.Duration, error) {
	if cfg.File != "" {
		fs, err := capture.OpenFile(cfg.File, cfg.BufferSize, cfg.Monitor, log)
		if err != nil {
			return nil, nil, err
		}
		return fs, fs.Position, nil
	}
	return microphone.New(cfg.SampleRate, cfg.BufferSize, log), nil, nil
}
