package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/quakeworks/srcmodel/internal/app"
	"github.com/quakeworks/srcmodel/internal/convert"
)

const (
	envPrefix      = "SRCMODEL"
	configBaseName = "srcmodel"

	logLevelFlagName  = "log-level"
	logFormatFlagName = "log-format"
	logFileFlagName   = "log-file"
	workersFlagName   = "workers"
	outputFlagName    = "output"

	investigationTimeFlagName = "investigation-time"
	ruptureSpacingFlagName    = "rupture-mesh-spacing"
	complexSpacingFlagName    = "complex-mesh-spacing"
	binWidthFlagName          = "mfd-bin-width"
	areaDiscFlagName          = "area-discretization"
	minMagFlagName            = "min-mag"
	sourceIDFlagName          = "source-id"
	discardTRTFlagName        = "discard-trt"
	strictFlagName            = "strict"
	collapseFlagName          = "collapse-dists"
	consolidateFlagName       = "consolidate"
	maxWeightFlagName         = "max-weight"

	logLevelKey      = "log.level"
	logFormatKey     = "log.format"
	logFileKey       = "log.file"
	logMaxSizeKey    = "log.max_size"
	logMaxBackupsKey = "log.max_backups"
	logMaxAgeKey     = "log.max_age"
	logCompressKey   = "log.compress"
	workersKey       = "workers"
	outputKey        = "output"

	investigationTimeKey = "convert.investigation_time"
	ruptureSpacingKey    = "convert.rupture_mesh_spacing"
	complexSpacingKey    = "convert.complex_mesh_spacing"
	binWidthKey          = "convert.mfd_bin_width"
	areaDiscKey          = "convert.area_discretization"
	minMagKey            = "convert.min_mag"
	sourceIDsKey         = "convert.source_ids"
	discardTRTsKey       = "convert.discard_trts"
	strictKey            = "convert.strict"
	collapseKey          = "convert.collapse_dists"
	consolidateKey       = "convert.consolidate"
	maxWeightKey         = "convert.max_weight"

	defaultLogLevel      = "info"
	defaultLogFormat     = "text"
	defaultLogMaxSize    = 10
	defaultLogMaxBackups = 3
	defaultLogMaxAge     = 28
	defaultLogCompress   = true
)

// newViper builds the settings registry. Precedence, lowest first:
// defaults, an optional srcmodel.yaml in the working directory, SRCMODEL_*
// environment variables, bound flags. A missing config file is fine; a
// malformed one is not.
func newViper() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigName(configBaseName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault(logLevelKey, defaultLogLevel)
	v.SetDefault(logFormatKey, defaultLogFormat)
	v.SetDefault(logFileKey, "")
	v.SetDefault(logMaxSizeKey, defaultLogMaxSize)
	v.SetDefault(logMaxBackupsKey, defaultLogMaxBackups)
	v.SetDefault(logMaxAgeKey, defaultLogMaxAge)
	v.SetDefault(logCompressKey, defaultLogCompress)
	v.SetDefault(workersKey, app.DefaultWorkers)
	v.SetDefault(outputKey, "")

	v.SetDefault(investigationTimeKey, convert.DefaultInvestigationTime)
	v.SetDefault(ruptureSpacingKey, convert.DefaultRuptureMeshSpacing)
	v.SetDefault(complexSpacingKey, 0.0)
	v.SetDefault(binWidthKey, convert.DefaultWidthOfMFDBin)
	v.SetDefault(areaDiscKey, 0.0)
	v.SetDefault(minMagKey, []string{})
	v.SetDefault(sourceIDsKey, []string{})
	v.SetDefault(discardTRTsKey, []string{})
	v.SetDefault(strictKey, false)
	v.SetDefault(collapseKey, false)
	v.SetDefault(consolidateKey, false)
	v.SetDefault(maxWeightKey, 0.0)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%s.yaml: %w", configBaseName, err)
		}
	}
	return v, nil
}
