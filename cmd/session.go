package main

import (
	"context"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/forecast-cli/internal/model"
	"github.com/sells-group/forecast-cli/internal/notify"
	"github.com/sells-group/forecast-cli/internal/store"
	"github.com/sells-group/forecast-cli/pkg/forecastapi"
)

// errReadOnly is returned when a viewer runs a mutating command.
var errReadOnly = eris.New("the viewer role cannot change the forecast service; use --role editor")

func newClient() forecastapi.Client {
	opts := []forecastapi.Option{
		forecastapi.WithBaseURL(cfg.API.BaseURL),
		forecastapi.WithLogger(zap.L()),
	}
	if t := cfg.API.Timeout(); t > 0 {
		opts = append(opts, forecastapi.WithHTTPClient(&http.Client{Timeout: t}))
	}
	if cfg.API.RatePerSec > 0 {
		opts = append(opts, forecastapi.WithRateLimiter(rate.NewLimiter(rate.Limit(cfg.API.RatePerSec), 1)))
	}
	return forecastapi.NewClient(opts...)
}

func sessionRole() (model.Role, error) {
	role, ok := model.ParseRole(cfg.Session.Role)
	if !ok {
		return "", eris.Errorf("unknown role %q (viewer, editor, approver)", cfg.Session.Role)
	}
	return role, nil
}

func sessionEnv() (model.Environment, error) {
	env, ok := model.ParseEnvironment(cfg.Session.Env)
	if !ok {
		return "", eris.Errorf("unknown environment %q (dev, prod)", cfg.Session.Env)
	}
	return env, nil
}

// requireEditor fails for roles that may not mutate.
func requireEditor() (model.Role, error) {
	role, err := sessionRole()
	if err != nil {
		return "", err
	}
	if !role.CanEdit() {
		return "", errReadOnly
	}
	return role, nil
}

func openStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
}

func newChannel() *notify.Channel {
	return notify.NewChannel(cfg.Session.StateDir)
}
