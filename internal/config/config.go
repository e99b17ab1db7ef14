// Package config loads notegrid settings from defaults, an optional config
// file, NOTEGRID_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// EnvPrefix is the prefix for environment overrides, e.g. NOTEGRID_SENSITIVITY.
const EnvPrefix = "NOTEGRID"

// Config holds the runtime settings.
type Config struct {
	Sensitivity float64       `mapstructure:"sensitivity"`
	BufferSize  int           `mapstructure:"bufferSize"`
	SampleRate  int           `mapstructure:"sampleRate"`
	Decay       float64       `mapstructure:"decay"`
	Threshold   float64       `mapstructure:"threshold"`
	Tick        time.Duration `mapstructure:"tick"`
	MinFreq     float64       `mapstructure:"minFreq"`
	MaxFreq     float64       `mapstructure:"maxFreq"`
	QueueSize   int           `mapstructure:"queueSize"`

	File    string `mapstructure:"file"`
	Monitor bool   `mapstructure:"monitor"`

	LogFile  string `mapstructure:"logFile"`
	LogLevel string `mapstructure:"logLevel"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("sensitivity", 0.85)
	v.SetDefault("bufferSize", 2048)
	v.SetDefault("sampleRate", 44100)
	v.SetDefault("decay", 0.97)
	v.SetDefault("threshold", 0.05)
	v.SetDefault("tick", "50ms")
	v.SetDefault("minFreq", 30.0)
	v.SetDefault("maxFreq", 2000.0)
	v.SetDefault("queueSize", 64)

	v.SetDefault("file", "")
	v.SetDefault("monitor", false)

	v.SetDefault("logFile", "notegrid.log")
	v.SetDefault("logLevel", "info")
}

// Load resolves the configuration held by v. If configFile is non-empty it
// is read first; its format is taken from the extension.
func Load(v *viper.Viper, configFile string) (Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration with every key at its default.
func Default() Config {
	cfg, err := Load(viper.New(), "")
	if err != nil {
		panic(err) // defaults always validate
	}
	return cfg
}

// Validate reports the first setting that is out of range.
func (c Config) Validate() error {
	switch {
	case !(c.Sensitivity > 0 && c.Sensitivity <= 1):
		return fmt.Errorf("%w: sensitivity %v must be in (0, 1]", ErrInvalid, c.Sensitivity)
	case c.BufferSize < 64:
		return fmt.Errorf("%w: bufferSize %d must be at least 64", ErrInvalid, c.BufferSize)
	case c.SampleRate <= 0:
		return fmt.Errorf("%w: sampleRate %d must be positive", ErrInvalid, c.SampleRate)
	case !(c.Decay > 0 && c.Decay < 1):
		return fmt.Errorf("%w: decay %v must be in (0, 1)", ErrInvalid, c.Decay)
	case !(c.Threshold > 0 && c.Threshold < 1):
		return fmt.Errorf("%w: threshold %v must be in (0, 1)", ErrInvalid, c.Threshold)
	case c.Tick <= 0:
		return fmt.Errorf("%w: tick %v must be positive", ErrInvalid, c.Tick)
	case c.MinFreq < 0 || c.MinFreq >= c.MaxFreq:
		return fmt.Errorf("%w: frequency range %v-%v is empty", ErrInvalid, c.MinFreq, c.MaxFreq)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queueSize %d must be at least 1", ErrInvalid, c.QueueSize)
	case c.Monitor && c.File == "":
		return fmt.Errorf("%w: monitor requires a replay file", ErrInvalid)
	}
	return nil
}

// FPS returns the render rate implied by Tick, at least 1.
func (c Config) FPS() int {
	if c.Tick <= 0 {
		return 1
	}
	fps := int(time.Second / c.Tick)
	if fps < 1 {
		return 1
	}
	return fps
}
