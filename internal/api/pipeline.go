package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/sells-group/forecast-cli/internal/model"
	"github.com/sells-group/forecast-cli/internal/pipeline"
	"github.com/sells-group/forecast-cli/internal/store"
	"github.com/sells-group/forecast-cli/pkg/forecastapi"
)

type pipelineView struct {
	Stages []pipeline.Stage `json:"stages"`
	State  pipeline.State   `json:"state"`
	Moved  *bool            `json:"moved,omitempty"`
}

func (s *Server) pipelineView() pipelineView {
	return pipelineView{Stages: s.pipeline.Stages(), State: s.pipeline.State()}
}

func (s *Server) getPipeline(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pipelineView())
}

// runStage runs the current stage. Stage failures are part of the
// returned state, not an HTTP error.
func (s *Server) runStage(w http.ResponseWriter, r *http.Request) {
	err := s.pipeline.Run(r.Context())
	switch {
	case errors.Is(err, pipeline.ErrInFlight), errors.Is(err, pipeline.ErrStale):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil && forecastapi.IsCanceled(err):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.pipelineView())
}

func (s *Server) advanceStage(w http.ResponseWriter, r *http.Request) {
	moved := s.pipeline.Advance()
	view := s.pipelineView()
	view.Moved = &moved
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) retreatStage(w http.ResponseWriter, r *http.Request) {
	moved := s.pipeline.Retreat()
	view := s.pipelineView()
	view.Moved = &moved
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run history not configured")
		return
	}
	q := r.URL.Query()
	filter := store.StageRunFilter{
		StageID: q.Get("stage"),
		Status:  model.StageStatus(q.Get("status")),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}
	runs, err := s.runs.ListStageRuns(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []model.StageRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}
