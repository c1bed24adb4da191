package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/forecast-cli/pkg/forecastapi"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check that the forecast service is reachable",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		res := forecastapi.Try[forecastapi.HealthStatus](ctx, newClient(), forecastapi.Request{Path: "/health"})
		if res.Failure.Canceled() {
			return ctx.Err()
		}
		if !res.OK() {
			_, _ = fmt.Fprintf(out, "%s: unreachable (%s)\n", cfg.API.BaseURL, res.Failure.Error)
			return eris.New("forecast service unavailable")
		}
		name := res.Data.Service
		if name == "" {
			name = "forecast service"
		}
		_, _ = fmt.Fprintf(out, "%s: %s ok=%t\n", cfg.API.BaseURL, name, res.Data.OK)
		_, _ = fmt.Fprintf(out, "role=%s env=%s\n", cfg.Session.Role, cfg.Session.Env)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
