package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/app"
)

func newDashboardCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Serve the vacancy dashboard over the dataset file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			if port == 0 {
				port = rt.cfg.Dashboard.Port
			}
			srv := app.Dashboard(rt.cfg, rt.logger)
			return srv.ListenAndServe(cmd.Context(), fmt.Sprintf(":%d", port))
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "port overriding dashboard.port")
	return cmd
}
