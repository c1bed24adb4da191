package api

import (
	"net/http"

	"github.com/sells-group/forecast-cli/internal/rollup"
	"github.com/sells-group/forecast-cli/pkg/forecastapi"
)

func (s *Server) getHierarchy(w http.ResponseWriter, r *http.Request) {
	m, err := s.service.HierarchyMapping(r.Context())
	if err != nil {
		writeError(w, upstreamStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// putHierarchy accepts either a mapping or editor rows; blank keys are
// dropped before saving.
func (s *Server) putHierarchy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RestaurantToCity map[string]string `json:"restaurant_to_city"`
		StoreToCity      map[string]string `json:"store_to_city"`
		CityToCountry    map[string]string `json:"city_to_country"`
		Restaurants      []rollup.Row      `json:"restaurants"`
		Cities           []rollup.Row      `json:"cities"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid mapping body")
		return
	}
	restaurants, cities := req.Restaurants, req.Cities
	if restaurants == nil && cities == nil {
		toCity := req.RestaurantToCity
		if toCity == nil {
			toCity = req.StoreToCity
		}
		restaurants, cities = rollup.Rows(toCity), rollup.Rows(req.CityToCountry)
	}
	mapping := rollup.Mapping(restaurants, cities)

	role := string(s.wizard.State().Role)
	saved, err := s.service.SaveHierarchyMapping(r.Context(), mapping, role)
	if err != nil {
		writeError(w, upstreamStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

type rollupRequest struct {
	RestaurantValues map[string]float64            `json:"restaurant_values"`
	Mapping          *forecastapi.HierarchyMapping `json:"mapping,omitempty"`
	Remote           bool                          `json:"remote"`
}

type rollupResponse struct {
	forecastapi.RollupPreview
	rollup.Report
}

// rollup previews aggregate sums. An inline mapping is cleaned like a saved
// one; without it the stored mapping is used. Remote asks the service to
// compute instead.
func (s *Server) rollup(w http.ResponseWriter, r *http.Request) {
	var req rollupRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid rollup body")
		return
	}

	var mapping forecastapi.HierarchyMapping
	if req.Mapping != nil {
		mapping = rollup.Mapping(rollup.Rows(req.Mapping.RestaurantToCity), rollup.Rows(req.Mapping.CityToCountry))
	} else {
		m, err := s.service.HierarchyMapping(r.Context())
		if err != nil {
			writeError(w, upstreamStatus(err), err.Error())
			return
		}
		mapping = *m
	}

	resp := rollupResponse{Report: rollup.Coverage(req.RestaurantValues, mapping)}
	if req.Remote {
		preview, err := s.service.TestRollup(r.Context(), req.RestaurantValues)
		if err != nil {
			writeError(w, upstreamStatus(err), err.Error())
			return
		}
		resp.RollupPreview = *preview
	} else {
		resp.RollupPreview = rollup.Compute(req.RestaurantValues, mapping)
	}
	writeJSON(w, http.StatusOK, resp)
}
