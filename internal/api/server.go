// Package api exposes one interactive session (pipeline, wizard,
// dashboard and hierarchy editor) over HTTP for a browser front end.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/forecast-cli/internal/dashboard"
	"github.com/sells-group/forecast-cli/internal/model"
	"github.com/sells-group/forecast-cli/internal/notify"
	"github.com/sells-group/forecast-cli/internal/pipeline"
	"github.com/sells-group/forecast-cli/internal/store"
	"github.com/sells-group/forecast-cli/internal/wizard"
	"github.com/sells-group/forecast-cli/pkg/forecastapi"
)

// Service is the part of the forecast service used directly by the
// session API.
type Service interface {
	HierarchyMapping(ctx context.Context) (*forecastapi.HierarchyMapping, error)
	SaveHierarchyMapping(ctx context.Context, mapping forecastapi.HierarchyMapping, role string) (*forecastapi.HierarchyMapping, error)
	TestRollup(ctx context.Context, values map[string]float64) (*forecastapi.RollupPreview, error)
	Health(ctx context.Context) (*forecastapi.HealthStatus, error)
}

// RunLister lists recorded stage runs.
type RunLister interface {
	ListStageRuns(ctx context.Context, filter store.StageRunFilter) ([]model.StageRun, error)
}

// Server holds the session components.
type Server struct {
	pipeline  *pipeline.Controller
	wizard    *wizard.Machine
	dashboard *dashboard.Composer
	service   Service
	runs      RunLister
	logger    *zap.Logger
}

// NewServer creates a session server.
func NewServer(p *pipeline.Controller, w *wizard.Machine, d *dashboard.Composer, svc Service) *Server {
	return &Server{
		pipeline:  p,
		wizard:    w,
		dashboard: d,
		service:   svc,
	}
}

// SetRunLister enables GET /api/pipeline/runs.
func (s *Server) SetRunLister(runs RunLister) {
	s.runs = runs
}

// SetLogger overrides the global logger.
func (s *Server) SetLogger(l *zap.Logger) {
	s.logger = l
}

func (s *Server) log() *zap.Logger {
	if s.logger != nil {
		return s.logger
	}
	return zap.L()
}

// WatchDetected feeds every change of the detected summary to the wizard.
func (s *Server) WatchDetected(ctx context.Context, ch *notify.Channel) (*notify.Watcher, error) {
	return ch.Watch(ctx, func(n *notify.Notice) {
		if s.wizard.ObserveDetected(n) {
			s.log().Info("api: detected defaults applied", zap.String("notice_id", n.ID))
		}
	})
}

// Handler returns the HTTP router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", s.health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/session", s.getSession)

		r.Route("/pipeline", func(r chi.Router) {
			r.Get("/", s.getPipeline)
			r.With(s.requireEditor).Post("/run", s.runStage)
			r.Post("/advance", s.advanceStage)
			r.Post("/retreat", s.retreatStage)
			r.Get("/runs", s.listRuns)
		})

		r.Route("/wizard", func(r chi.Router) {
			r.Get("/", s.getWizard)
			r.Post("/next", s.wizardNext)
			r.Post("/back", s.wizardBack)
			r.Get("/download", s.wizardDownload)
			r.Put("/role", s.setRole)
			r.Put("/env", s.setEnv)
			r.Group(func(r chi.Router) {
				r.Use(s.requireEditor)
				r.Post("/intents", s.wizardIntent)
				r.Post("/reset", s.wizardReset)
				r.Post("/confirm", s.wizardConfirm)
				r.Post("/template", s.wizardTemplate)
				r.Post("/detected/clear", s.wizardClearDetected)
				r.Post("/promo", s.wizardPromo)
			})
		})

		r.Route("/dashboard", func(r chi.Router) {
			r.Get("/", s.selectDashboard)
			r.Get("/state", s.dashboardState)
		})

		r.Route("/hierarchy", func(r chi.Router) {
			r.Get("/", s.getHierarchy)
			r.With(s.requireEditor).Put("/", s.putHierarchy)
			r.Post("/rollup", s.rollup)
		})
	})
	return r
}

// requireEditor rejects mutations from viewers. It only mirrors what the
// service enforces itself.
func (s *Server) requireEditor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.wizard.CanEdit() {
			writeError(w, http.StatusForbidden, wizard.ErrReadOnly.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	st := s.wizard.State()
	resp := map[string]any{
		"role":     st.Role,
		"env":      st.Env,
		"can_edit": st.CanEdit,
		"roles":    model.Roles,
	}
	if h, err := s.service.Health(r.Context()); err != nil {
		resp["service_error"] = err.Error()
	} else {
		resp["service"] = h
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// upstreamStatus maps a service failure onto a response status. Client
// errors from the service pass through.
func upstreamStatus(err error) int {
	var apiErr *forecastapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Kind {
		case forecastapi.KindService:
			if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
				return apiErr.StatusCode
			}
		case forecastapi.KindCanceled:
			return http.StatusServiceUnavailable
		}
	}
	return http.StatusBadGateway
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	return dec.Decode(v)
}
