package cli

import (
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quakeworks/srcmodel/internal/app"
)

func newUnpackCmd(v *viper.Viper, outW, errW io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "unpack PATH...",
		Short: "Read binary group files back and show their contents",
		Long: `Decode binary group files written by pack, verifying their checksums,
and print every group with its sources.`,
		Args: needsPaths,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appConfig(v, args)
			if err != nil {
				return err
			}
			return app.NewApp(outW, errW, cfg).Unpack(cmd.Context())
		},
	}
}
