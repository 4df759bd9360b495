package cli

import (
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quakeworks/srcmodel/internal/app"
)

func newPackCmd(v *viper.Viper, outW, errW io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "pack PATH...",
		Short: "Convert source models and write each group as a binary file",
		Long: `Convert the given source models and write every group to its own
checksummed binary file under the output directory, one file per group,
named after the model. The files decode back with unpack.`,
		Args: needsPaths,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appConfig(v, args)
			if err != nil {
				return err
			}
			return app.NewApp(outW, errW, cfg).Pack(cmd.Context())
		},
	}
}
