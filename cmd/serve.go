package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/forecast-cli/internal/api"
	"github.com/sells-group/forecast-cli/internal/dashboard"
	"github.com/sells-group/forecast-cli/internal/pipeline"
	"github.com/sells-group/forecast-cli/internal/wizard"
	"github.com/sells-group/forecast-cli/pkg/forecastapi"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local session API",
	Long:  "Holds one pipeline, wizard and dashboard session and exposes it over HTTP for a browser front end.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}
		role, err := sessionRole()
		if err != nil {
			return err
		}
		env, err := sessionEnv()
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		client := newClient()
		ch := newChannel()

		ctrl := pipeline.NewController(client, nil,
			pipeline.WithRecorder(st),
			pipeline.WithLogger(zap.L()),
		)
		wiz := wizard.New(client,
			wizard.WithRole(role),
			wizard.WithEnvironment(env),
			wizard.WithDetectedClearer(ch),
			wizard.WithSnapshotStore(st),
			wizard.WithLogger(zap.L()),
		)
		dash := dashboard.NewComposer(client,
			dashboard.WithPreviewLimit(cfg.Dashboard.PreviewLimit),
			dashboard.WithBins(cfg.Dashboard.HistogramBins),
			dashboard.WithTopN(cfg.Dashboard.TopN),
			dashboard.WithLogger(zap.L()),
		)
		defer dash.Close()

		if err := wiz.LoadDefaults(ctx); err != nil && !forecastapi.IsCanceled(err) {
			zap.L().Warn("serve: defaults unavailable, using built-in draft", zap.Error(err))
		}
		if err := wiz.RefreshHistory(ctx); err != nil && !forecastapi.IsCanceled(err) {
			zap.L().Warn("serve: config history unavailable", zap.Error(err))
		}

		srvAPI := api.NewServer(ctrl, wiz, dash, client)
		srvAPI.SetRunLister(st)

		watcher, err := srvAPI.WatchDetected(ctx, ch)
		if err != nil {
			return err
		}
		defer watcher.Stop()

		port := cfg.Server.Port
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           srvAPI.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.String("service", cfg.API.BaseURL),
			zap.String("role", string(role)),
			zap.String("env", string(env)),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
