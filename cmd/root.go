package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/forecast-cli/internal/config"
)

var cfg *config.Config

var (
	flagRole string
	flagEnv  string
)

var rootCmd = &cobra.Command{
	Use:   "forecast-cli",
	Short: "Forecast workbench client",
	Long:  "Runs the forecast service's data stages, edits and saves forecast configurations, explores aggregated data and serves a local session API.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if flagRole != "" {
			c.Session.Role = flagRole
		}
		if flagEnv != "" {
			c.Session.Env = flagEnv
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagRole, "role", "", "session role: viewer, editor or approver (default from config)")
	rootCmd.PersistentFlags().StringVar(&flagEnv, "env", "", "target environment: dev or prod (default from config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
