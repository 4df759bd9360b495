package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/quakeworks/srcmodel/internal/app"
	"github.com/quakeworks/srcmodel/internal/convert"
	"github.com/quakeworks/srcmodel/internal/source"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// version is overridden through ldflags at release builds.
var version = "dev"

// Run builds the command tree and executes it against args. Tables and
// exported rows go to outW; logs and errors go to errW.
func Run(outW, errW io.Writer, args []string) error {
	v, err := newViper()
	if err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}

	root := newRootCmd(v, outW, errW)
	root.SetOut(outW)
	root.SetErr(errW)
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

const rootLongDescription = `Srcmodel converts seismic source model files into typed sources and
groups, flattens them into tables, and packs converted groups into a
compact binary form.

A PATH argument is a single model file or a directory searched
recursively. Settings come from flags, SRCMODEL_* environment variables
and an optional srcmodel.yaml in the working directory, in that order of
precedence.`

func newRootCmd(v *viper.Viper, outW, errW io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "srcmodel",
		Short:         "Seismic source model conversion tool",
		Long:          rootLongDescription,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ExitError{Code: 2, Message: err.Error()}
	})

	configureRootFlags(cmd, v)
	cmd.AddCommand(
		newConvertCmd(v, outW, errW),
		newCSVCmd(v, outW, errW),
		newInfoCmd(v, outW, errW),
		newPackCmd(v, outW, errW),
		newUnpackCmd(v, outW, errW),
	)
	return cmd
}

func configureRootFlags(cmd *cobra.Command, v *viper.Viper) {
	flags := cmd.PersistentFlags()

	flags.String(logLevelFlagName, v.GetString(logLevelKey),
		"logging level: 'debug', 'info', 'warn' or 'error'")
	bindFlagToConfig(v, flags.Lookup(logLevelFlagName), logLevelKey)

	flags.String(logFormatFlagName, v.GetString(logFormatKey),
		"log output format: 'text' or 'json'")
	bindFlagToConfig(v, flags.Lookup(logFormatFlagName), logFormatKey)

	flags.String(logFileFlagName, v.GetString(logFileKey),
		"write logs to this rotated file instead of stderr")
	bindFlagToConfig(v, flags.Lookup(logFileFlagName), logFileKey)

	flags.Int(workersFlagName, v.GetInt(workersKey),
		"number of model files processed concurrently")
	bindFlagToConfig(v, flags.Lookup(workersFlagName), workersKey)

	flags.StringP(outputFlagName, "o", v.GetString(outputKey),
		"output directory for written files")
	bindFlagToConfig(v, flags.Lookup(outputFlagName), outputKey)

	flags.Float64(investigationTimeFlagName, v.GetFloat64(investigationTimeKey),
		"investigation time in years for temporal occurrence models")
	bindFlagToConfig(v, flags.Lookup(investigationTimeFlagName), investigationTimeKey)

	flags.Float64(ruptureSpacingFlagName, v.GetFloat64(ruptureSpacingKey),
		"rupture mesh spacing in km")
	bindFlagToConfig(v, flags.Lookup(ruptureSpacingFlagName), ruptureSpacingKey)

	flags.Float64(complexSpacingFlagName, v.GetFloat64(complexSpacingKey),
		"complex fault mesh spacing in km (0 uses the rupture mesh spacing)")
	bindFlagToConfig(v, flags.Lookup(complexSpacingFlagName), complexSpacingKey)

	flags.Float64(binWidthFlagName, v.GetFloat64(binWidthKey),
		"magnitude bin width for Gutenberg-Richter distributions")
	bindFlagToConfig(v, flags.Lookup(binWidthFlagName), binWidthKey)

	flags.Float64(areaDiscFlagName, v.GetFloat64(areaDiscKey),
		"fallback area discretization in km (0 makes sources without their own fail)")
	bindFlagToConfig(v, flags.Lookup(areaDiscFlagName), areaDiscKey)

	flags.StringArray(minMagFlagName, v.GetStringSlice(minMagKey),
		`magnitude floor, as FLOOR or "TRT=FLOOR" (can be repeated)`)
	bindFlagToConfig(v, flags.Lookup(minMagFlagName), minMagKey)

	flags.StringArray(sourceIDFlagName, v.GetStringSlice(sourceIDsKey),
		"convert only the source with this id (can be repeated)")
	bindFlagToConfig(v, flags.Lookup(sourceIDFlagName), sourceIDsKey)

	flags.StringArray(discardTRTFlagName, v.GetStringSlice(discardTRTsKey),
		"drop sources of this tectonic region type (can be repeated)")
	bindFlagToConfig(v, flags.Lookup(discardTRTFlagName), discardTRTsKey)

	flags.Bool(strictFlagName, v.GetBool(strictKey),
		"treat duplicated distribution values as errors instead of merging them")
	bindFlagToConfig(v, flags.Lookup(strictFlagName), strictKey)

	flags.Bool(collapseFlagName, v.GetBool(collapseKey),
		"collapse nodal plane and hypocentral depth distributions to their first value")
	bindFlagToConfig(v, flags.Lookup(collapseFlagName), collapseKey)

	flags.Bool(consolidateFlagName, v.GetBool(consolidateKey),
		"merge compatible point sources into multi-point sources before converting")
	bindFlagToConfig(v, flags.Lookup(consolidateFlagName), consolidateKey)
}

// bindFlagToConfig wires a cobra flag to a viper key so config and env
// values feed the flag.
func bindFlagToConfig(v *viper.Viper, flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(v.BindPFlag(key, flag))
}

// needsPaths rejects invocations without positional path arguments.
func needsPaths(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return &ExitError{Code: 2, Message: cmd.Name() + " needs at least one path argument"}
	}
	return nil
}

// appConfig assembles the application configuration from the resolved
// settings and the positional path arguments.
func appConfig(v *viper.Viper, paths []string) (*app.Config, error) {
	logFormat := strings.ToLower(v.GetString(logFormatKey))
	if logFormat != "text" && logFormat != "json" {
		return nil, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(v.GetString(logLevelKey))
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	floor, err := minMagFloor(v)
	if err != nil {
		return nil, err
	}

	cfg, err := app.NewConfig(app.Config{
		Paths:         paths,
		Output:        v.GetString(outputKey),
		LogFormat:     logFormat,
		LogLevel:      logLevel,
		LogFile:       v.GetString(logFileKey),
		Workers:       v.GetInt(workersKey),
		LogMaxSizeMB:  v.GetInt(logMaxSizeKey),
		LogMaxBackups: v.GetInt(logMaxBackupsKey),
		LogMaxAgeDays: v.GetInt(logMaxAgeKey),
		LogCompress:   v.GetBool(logCompressKey),
		Consolidate:   v.GetBool(consolidateKey),
		MaxWeight:     v.GetFloat64(maxWeightKey),
		Converter: convert.Params{
			InvestigationTime:       v.GetFloat64(investigationTimeKey),
			RuptureMeshSpacing:      v.GetFloat64(ruptureSpacingKey),
			ComplexFaultMeshSpacing: v.GetFloat64(complexSpacingKey),
			WidthOfMFDBin:           v.GetFloat64(binWidthKey),
			AreaDiscretization:      v.GetFloat64(areaDiscKey),
			MinimumMagnitude:        floor,
			DisableSpinningFloating: v.GetBool(collapseKey),
			SourceIDs:               v.GetStringSlice(sourceIDsKey),
			DiscardTRTs:             v.GetStringSlice(discardTRTsKey),
			Strict:                  v.GetBool(strictKey),
		},
	})
	if err != nil {
		return nil, &ExitError{Code: 2, Message: err.Error()}
	}
	return cfg, nil
}

// minMagFloor parses the magnitude floor entries. A bare float sets the
// default floor; "TRT=FLOOR" sets a per-region one. Entries are a list
// rather than a map because tectonic region types are case-sensitive.
func minMagFloor(v *viper.Viper) (source.MagFloor, error) {
	entries := v.GetStringSlice(minMagKey)
	if len(entries) == 0 {
		return nil, nil
	}
	floor := source.MagFloor{}
	for _, entry := range entries {
		trt, raw, found := strings.Cut(entry, "=")
		if !found {
			trt, raw = source.DefaultKey, entry
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, &ExitError{Code: 2,
				Message: fmt.Sprintf("invalid min-mag entry %q: want FLOOR or TRT=FLOOR", entry)}
		}
		floor[strings.TrimSpace(trt)] = f
	}
	return floor, nil
}
