package cmd

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/app"
	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/ingest"
	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/pipeline"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run a full refresh: ingest every region, transform, write the dataset",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(rt *runtime, a *app.App) error {
				report, err := a.Pipeline().Run(cmd.Context())
				printIngest(cmd.OutOrStdout(), report.Ingest)
				if err != nil {
					return err
				}
				printExport(cmd.OutOrStdout(), report)
				rt.logger.Info("pipeline run finished",
					zap.String("run_id", report.Ingest.RunID),
					zap.Duration("duration", report.Duration),
				)
				return nil
			})
		},
	}
}

func printIngest(w io.Writer, s ingest.Summary) {
	if s.RunID == "" && s.PerRegion == nil {
		return
	}
	fmt.Fprintf(w, "run %s: wiped %d documents, stored %d vacancies in %s\n", s.RunID, s.Wiped, s.Total, s.Duration.Round(time.Millisecond))
	regions := make([]int, 0, len(s.PerRegion))
	for id := range s.PerRegion {
		regions = append(regions, id)
	}
	sort.Ints(regions)
	for _, id := range regions {
		fmt.Fprintf(w, "  region %d: %d\n", id, s.PerRegion[id])
	}
	for _, failure := range s.Failures {
		fmt.Fprintf(w, "  failed: %v\n", failure)
	}
}

func printExport(w io.Writer, r pipeline.Report) {
	fmt.Fprintf(w, "dataset %s: %d rows (%d raw documents skipped), sha256 %s\n",
		r.Dataset.Path, r.Dataset.Rows, r.Transform.Skipped, r.Dataset.SHA256)
	if r.MirrorURI != "" {
		fmt.Fprintf(w, "mirrored to %s\n", r.MirrorURI)
	}
}
