package cmd

import (
	"github.com/spf13/cobra"

	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/app"
)

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Wipe the raw store and refetch every region",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(_ *runtime, a *app.App) error {
				summary, err := a.Pipeline().Ingest(cmd.Context())
				printIngest(cmd.OutOrStdout(), summary)
				return err
			})
		},
	}
}
