package cmd

import (
	"github.com/spf13/cobra"

	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/app"
)

func newTransformCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transform",
		Short: "Flatten the current raw store into the dataset file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(_ *runtime, a *app.App) error {
				report, err := a.Pipeline().Export(cmd.Context())
				if err != nil {
					return err
				}
				printExport(cmd.OutOrStdout(), report)
				return nil
			})
		},
	}
}
