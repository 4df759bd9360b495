package app

import (
	"errors"

	"github.com/quakeworks/srcmodel/internal/convert"
)

// DefaultWorkers bounds how many model files are converted concurrently
// when the configuration does not say otherwise.
const DefaultWorkers = 10

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	Paths  []string // model files or directories holding them
	Output string   // directory (pack, csv) receiving written files

	LogFormat string
	LogLevel  string
	LogFile   string // rotated log file; empty logs to the log writer
	Workers   int

	// Log rotation knobs, used only when LogFile is set.
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool

	// Consolidate rewrites each model before conversion, merging point
	// sources into multi-point sources.
	Consolidate bool

	// MaxWeight, when positive, adds a report splitting each group into
	// blocks of at most this weight.
	MaxWeight float64

	Converter convert.Params
}

func NewConfig(cfg Config) (*Config, error) {
	if len(cfg.Paths) == 0 {
		return nil, errors.New("at least one model path is required")
	}
	if cfg.MaxWeight < 0 {
		return nil, errors.New("max weight cannot be negative")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}

	return &cfg, nil
}
