package cli

import (
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quakeworks/srcmodel/internal/app"
)

const csvLongDescription = `Flatten the given source models into one row per source, with the
geometry as WKT. Without --output all rows stream to stdout under a
single header; with it, every model file becomes a .csv of the same base
name in the output directory.

Characteristic and non-parametric sources have no tabular form and make
the export fail.`

func newCSVCmd(v *viper.Viper, outW, errW io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "csv PATH...",
		Short: "Export source models as CSV rows with WKT geometry",
		Long:  csvLongDescription,
		Args:  needsPaths,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appConfig(v, args)
			if err != nil {
				return err
			}
			return app.NewApp(outW, errW, cfg).CSV(cmd.Context())
		},
	}
}
