package cli

import (
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quakeworks/srcmodel/internal/app"
)

const convertLongDescription = `Convert the given source model files and print one summary table per
model, with the sources and rupture counts of every group.

With --max-weight, each model also gets a report splitting its groups
into blocks of bounded weight, the way a calculation would distribute
them over workers.`

func newConvertCmd(v *viper.Viper, outW, errW io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert PATH...",
		Short: "Convert source models and summarize their groups",
		Long:  convertLongDescription,
		Args:  needsPaths,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appConfig(v, args)
			if err != nil {
				return err
			}
			return app.NewApp(outW, errW, cfg).Convert(cmd.Context())
		},
	}

	cmd.Flags().Float64(maxWeightFlagName, v.GetFloat64(maxWeightKey),
		"also report group blocks of at most this weight (0 disables)")
	bindFlagToConfig(v, cmd.Flags().Lookup(maxWeightFlagName), maxWeightKey)

	return cmd
}
