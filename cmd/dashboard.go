package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/forecast-cli/internal/dashboard"
	"github.com/sells-group/forecast-cli/pkg/forecastapi"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Load the exploratory views for a granularity",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		g, _ := cmd.Flags().GetString("granularity")
		granularity, ok := forecastapi.ParseGranularity(g)
		if !ok {
			return eris.Errorf("unknown granularity %q (daily, weekly, monthly)", g)
		}
		column, _ := cmd.Flags().GetString("column")

		c := dashboard.NewComposer(newClient(),
			dashboard.WithPreviewLimit(cfg.Dashboard.PreviewLimit),
			dashboard.WithBins(cfg.Dashboard.HistogramBins),
			dashboard.WithTopN(cfg.Dashboard.TopN),
			dashboard.WithLogger(zap.L()),
		)
		defer c.Close()

		snap, err := c.Load(ctx, dashboard.Selection{Granularity: granularity, Column: column})
		if err != nil {
			return eris.Wrap(err, "dashboard")
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			if err := writeJSON(os.Stdout, snap); err != nil {
				return err
			}
		} else {
			formatDashboard(os.Stdout, snap)
		}

		if out, _ := cmd.Flags().GetString("xlsx"); out != "" {
			if err := dashboard.WriteXLSX(out, snap); err != nil {
				return eris.Wrap(err, "dashboard export")
			}
			_, _ = fmt.Fprintf(os.Stderr, "Wrote %s\n", out)
		}
		return nil
	},
}

func init() {
	dashboardCmd.Flags().String("granularity", string(forecastapi.GranularityDaily), "daily, weekly or monthly")
	dashboardCmd.Flags().String("column", "", "distribution column (default: the value column)")
	dashboardCmd.Flags().String("xlsx", "", "also write the views to this workbook")
	dashboardCmd.Flags().Bool("json", false, "print the full snapshot as JSON")
	rootCmd.AddCommand(dashboardCmd)
}
