package cli

import (
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quakeworks/srcmodel/internal/app"
)

func newInfoCmd(v *viper.Viper, outW, errW io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "info PATH...",
		Short: "Show the per-source detail of converted models",
		Long: `Convert the given source models and print, group by group, every
source with its kind, magnitude range and rupture count.`,
		Args: needsPaths,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appConfig(v, args)
			if err != nil {
				return err
			}
			return app.NewApp(outW, errW, cfg).Info(cmd.Context())
		},
	}
}
