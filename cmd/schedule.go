package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/app"
	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/scheduler"
)

func newScheduleCmd() *cobra.Command {
	var spec string
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the pipeline on a cron schedule until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(rt *runtime, a *app.App) error {
				if spec == "" {
					spec = rt.cfg.Schedule.Cron
				}
				p := a.Pipeline()
				s, err := scheduler.New(spec, func(ctx context.Context) error {
					_, err := p.Run(ctx)
					return err
				}, rt.logger.Named("scheduler"))
				if err != nil {
					return err
				}
				if err := s.Start(cmd.Context()); err != nil {
					return err
				}
				<-cmd.Context().Done()
				s.Stop()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&spec, "cron", "", "cron spec overriding schedule.cron")
	return cmd
}
