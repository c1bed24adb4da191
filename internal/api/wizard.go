package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sells-group/forecast-cli/internal/model"
	"github.com/sells-group/forecast-cli/internal/wizard"
	"github.com/sells-group/forecast-cli/pkg/forecastapi"
)

const maxUploadSize = 20 << 20 // 20MB

func (s *Server) getWizard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.wizard.State())
}

func (s *Server) wizardIntent(w http.ResponseWriter, r *http.Request) {
	var in wizard.Intent
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid intent body")
		return
	}
	if err := s.wizard.Dispatch(in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.wizard.State())
}

func (s *Server) wizardNext(w http.ResponseWriter, r *http.Request) {
	err := s.wizard.Next()
	var verr *wizard.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, s.wizard.State())
		return
	case err != nil:
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.wizard.State())
}

func (s *Server) wizardBack(w http.ResponseWriter, r *http.Request) {
	s.wizard.Back()
	writeJSON(w, http.StatusOK, s.wizard.State())
}

func (s *Server) wizardReset(w http.ResponseWriter, r *http.Request) {
	s.wizard.Reset()
	writeJSON(w, http.StatusOK, s.wizard.State())
}

func (s *Server) wizardConfirm(w http.ResponseWriter, r *http.Request) {
	_, err := s.wizard.Confirm(r.Context())
	switch {
	case errors.Is(err, wizard.ErrNotReviewing), errors.Is(err, wizard.ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		writeError(w, upstreamStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.wizard.State())
}

func (s *Server) wizardTemplate(w http.ResponseWriter, r *http.Request) {
	var entry forecastapi.HistoryEntry
	if err := decodeBody(r, &entry); err != nil || entry.Path == "" {
		writeError(w, http.StatusBadRequest, "template path is required")
		return
	}
	if err := s.wizard.LoadTemplate(r.Context(), entry); err != nil {
		writeError(w, upstreamStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.wizard.State())
}

func (s *Server) wizardClearDetected(w http.ResponseWriter, r *http.Request) {
	if err := s.wizard.ClearDetected(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.wizard.State())
}

func (s *Server) wizardDownload(w http.ResponseWriter, r *http.Request) {
	exp, err := s.wizard.Download(r.Context())
	if err != nil {
		writeError(w, upstreamStatus(err), err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/x-yaml")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exp.Filename))
	w.WriteHeader(http.StatusOK)
	w.Write(exp.Content) //nolint:errcheck
}

func (s *Server) wizardPromo(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "file too large (max 20MB)")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close() //nolint:errcheck

	preview, err := s.wizard.UploadPromoCalendar(r.Context(), header.Filename, file)
	if err != nil {
		writeError(w, upstreamStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (s *Server) setRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role string `json:"role"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	role, ok := model.ParseRole(req.Role)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown role %q", req.Role))
		return
	}
	s.wizard.SetRole(role)
	writeJSON(w, http.StatusOK, s.wizard.State())
}

// setEnv switches environment. A failed history reload is reported in
// the wizard state.
func (s *Server) setEnv(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Env string `json:"env"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	env, ok := model.ParseEnvironment(req.Env)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown environment %q", req.Env))
		return
	}
	s.wizard.SetEnvironment(r.Context(), env) //nolint:errcheck
	writeJSON(w, http.StatusOK, s.wizard.State())
}
