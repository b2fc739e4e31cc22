package cli

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"
)

// Config holds the environment defaults for the run command.
// Flags set on the command line take precedence.
type Config struct {
	Database    string `env:"PARORCH_DB"`
	RkrBin      string `env:"PARORCH_RKR_BIN" envDefault:"rkr"`
	Workdir     string `env:"PARORCH_WORKDIR" envDefault:"."`
	TraceFile   string `env:"PARORCH_TRACE_FILE" envDefault:"rkr-trace.txt"`
	TraceFormat string `env:"PARORCH_TRACE_FORMAT" envDefault:"riker"`
	MaxRounds   int    `env:"PARORCH_MAX_ROUNDS" envDefault:"0"`

	// OTLPEndpoint is a host:port gRPC collector. Empty disables export.
	OTLPEndpoint string `env:"PARORCH_OTLP_ENDPOINT"`
	OTLPInsecure bool   `env:"PARORCH_OTLP_INSECURE" envDefault:"false"`
}

// LoadConfig reads Config from the process environment.
func LoadConfig() (Config, error) {
	return loadConfig(env.ToMap(os.Environ()))
}

func loadConfig(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// applyConfig fills every run flag the user did not set from cfg.
func applyConfig(cmd *cobra.Command, opts *RunOptions, cfg Config) {
	flags := cmd.Flags()
	if !flags.Changed("db") {
		opts.Database = cfg.Database
	}
	if !flags.Changed("rkr") {
		opts.RkrBin = cfg.RkrBin
	}
	if !flags.Changed("workdir") {
		opts.Workdir = cfg.Workdir
	}
	if !flags.Changed("trace-file") {
		opts.TraceFile = cfg.TraceFile
	}
	if !flags.Changed("trace-format") {
		opts.TraceFormat = cfg.TraceFormat
	}
	if !flags.Changed("max-rounds") {
		opts.MaxRounds = cfg.MaxRounds
	}
	if !flags.Changed("otlp-endpoint") {
		opts.OTLPEndpoint = cfg.OTLPEndpoint
	}
	if !flags.Changed("otlp-insecure") {
		opts.OTLPInsecure = cfg.OTLPInsecure
	}
}
