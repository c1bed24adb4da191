package api

import (
	"net/http"

	"github.com/sells-group/forecast-cli/internal/dashboard"
	"github.com/sells-group/forecast-cli/pkg/forecastapi"
)

// selectDashboard switches the selection and waits for its load. A client
// that goes away leaves the load running for GET /api/dashboard/state.
func (s *Server) selectDashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	g := forecastapi.GranularityDaily
	if v := q.Get("granularity"); v != "" {
		var ok bool
		if g, ok = forecastapi.ParseGranularity(v); !ok {
			writeError(w, http.StatusBadRequest, "granularity must be daily, weekly or monthly")
			return
		}
	}

	done := s.dashboard.Select(dashboard.Selection{Granularity: g, Column: q.Get("column")})
	select {
	case <-done:
	case <-r.Context().Done():
		return
	}

	st := s.dashboard.State()
	status := http.StatusOK
	if st.Status == dashboard.StatusFailed {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, st)
}

func (s *Server) dashboardState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.dashboard.State())
}
