package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/olivier-w/notegrid/internal/capture"
	"github.com/olivier-w/notegrid/internal/config"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func parse(t *testing.T, args ...string) config.Config {
	t.Helper()
	v := viper.New()
	flags := pflag.NewFlagSet("notegrid", pflag.ContinueOnError)
	defineFlags(flags, config.Default())
	if err := bindFlags(v, flags); err != nil {
		t.Fatalf("bindFlags: %v", err)
	}
	if err := flags.Parse(args); err != nil {
		t.Fatalf("parse %v: %v", args, err)
	}
	cfg, err := config.Load(v, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return cfg
}

func TestFlagsDefaultToConfigDefaults(t *testing.T) {
	if got, want := parse(t), config.Default(); got != want {
		t.Fatalf("expected defaults %+v, got %+v", want, got)
	}
}

func TestFlagsOverrideConfig(t *testing.T) {
	cfg := parse(t,
		"--sensitivity", "0.5",
		"--buffer-size", "4096",
		"--tick", "20ms",
		"--min-freq", "60",
		"--log-level", "debug",
		"--file", "take.wav",
		"--monitor",
	)
	if cfg.Sensitivity != 0.5 || cfg.BufferSize != 4096 || cfg.Tick != 20*time.Millisecond {
		t.Fatalf("unexpected analysis settings %+v", cfg)
	}
	if cfg.MinFreq != 60 || cfg.LogLevel != "debug" || cfg.File != "take.wav" || !cfg.Monitor {
		t.Fatalf("unexpected settings %+v", cfg)
	}
}

func TestEnvAppliesWhenFlagUnset(t *testing.T) {
	t.Setenv("NOTEGRID_DECAY", "0.9")
	if got := parse(t).Decay; got != 0.9 {
		t.Fatalf("expected env decay 0.9, got %v", got)
	}
	if got := parse(t, "--decay", "0.5").Decay; got != 0.5 {
		t.Fatalf("expected flag to beat env, got %v", got)
	}
}

func TestEveryFlagIsBound(t *testing.T) {
	flags := pflag.NewFlagSet("notegrid", pflag.ContinueOnError)
	defineFlags(flags, config.Default())
	flags.VisitAll(func(f *pflag.Flag) {
		if _, ok := flagKeys[f.Name]; !ok {
			t.Fatalf("flag --%s has no config key", f.Name)
		}
	})
}

func TestRootCommandRejectsInvalidConfig(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--decay", "1.5"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected invalid decay to fail before opening audio")
	}
}

type failingSource struct {
	startErr, stopErr error
	stopped           bool
}

func (s *failingSource) Name() string             { return "broken" }
func (s *failingSource) SampleRate() int          { return 44100 }
func (s *failingSource) Done() <-chan struct{}    { return nil }
func (s *failingSource) Start(capture.Sink) error { return s.startErr }
func (s *failingSource) Stop() error              { s.stopped = true; return s.stopErr }

type nopSink struct{}

func (nopSink) Process([]float32) {}
func (nopSink) Report(string)     {}

func TestStartSourceLogsStopErrorOnFailedStart(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)
	src := &failingSource{
		startErr: errors.New("no input device"),
		stopErr:  errors.New("stream not open"),
	}

	err := startSource(src, nopSink{}, log)
	if err == nil || !errors.Is(err, src.startErr) {
		t.Fatalf("expected wrapped start error, got %v", err)
	}
	if !src.stopped {
		t.Fatal("expected source stopped after failed start")
	}
	if !strings.Contains(buf.String(), "stream not open") {
		t.Fatalf("expected stop error logged, got %q", buf.String())
	}
}

func TestStartSourceSucceeds(t *testing.T) {
	src := &failingSource{}
	if err := startSource(src, nopSink{}, zerolog.Nop()); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if src.stopped {
		t.Fatal("expected running source left started")
	}
}
