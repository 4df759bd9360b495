package app

import (
	"io"
	"log/slog"

	"github.com/quakeworks/srcmodel/internal/convert"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle. Tables and exported data go to outW; the logger writes to its
// own stream so that piped output stays parseable.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	cfg    *Config
	conv   *convert.SourceConverter
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger and converter.
func NewApp(outW, logW io.Writer, cfg *Config) *App {
	logger := newLogger(cfg, logW)
	logger.Debug("Logger configured successfully.")

	conv := convert.NewSourceConverter(cfg.Converter)
	logger.Debug("Source converter ready.",
		"investigation_time", conv.Params().InvestigationTime,
		"rupture_mesh_spacing", conv.Params().RuptureMeshSpacing,
		"width_of_mfd_bin", conv.Params().WidthOfMFDBin)

	return &App{
		outW:   outW,
		logger: logger,
		cfg:    cfg,
		conv:   conv,
	}
}

// Logger returns the application's logger. This is primarily for testing.
func (a *App) Logger() *slog.Logger {
	return a.logger
}
