package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/forecast-cli/internal/dashboard"
	"github.com/sells-group/forecast-cli/internal/notify"
	"github.com/sells-group/forecast-cli/internal/pipeline"
	"github.com/sells-group/forecast-cli/internal/wizard"
	"github.com/sells-group/forecast-cli/pkg/forecastapi"
)

type testEnv struct {
	svc     *fakeService
	runs    *memRuns
	wizard  *wizard.Machine
	server  *Server
	handler http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	svc := newFakeService()
	runs := &memRuns{}
	nop := zap.NewNop()

	ctrl := pipeline.NewController(svc, nil, pipeline.WithRecorder(runs), pipeline.WithLogger(nop))
	m := wizard.New(svc, wizard.WithLogger(nop))
	comp := dashboard.NewComposer(svc, dashboard.WithLogger(nop))
	t.Cleanup(comp.Close)

	srv := NewServer(ctrl, m, comp, svc)
	srv.SetRunLister(runs)
	srv.SetLogger(nop)
	return &testEnv{svc: svc, runs: runs, wizard: m, server: srv, handler: srv.Handler()}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestSession(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, http.MethodGet, "/api/session", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[map[string]any](t, w)
	assert.Equal(t, "editor", resp["role"])
	assert.Equal(t, "dev", resp["env"])
	assert.Equal(t, true, resp["can_edit"])
	assert.NotNil(t, resp["service"])
}

func TestPipeline_RunAdvanceRetreat(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/api/pipeline/advance", nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[pipelineView](t, w)
	require.NotNil(t, view.Moved)
	assert.False(t, *view.Moved)
	assert.Len(t, view.Stages, 3)

	w = e.do(t, http.MethodPost, "/api/pipeline/run", nil)
	require.Equal(t, http.StatusOK, w.Code)
	view = decode[pipelineView](t, w)
	assert.Equal(t, "succeeded", string(view.State.Status))
	assert.Equal(t, forecastapi.PathValidateData, view.State.Summary["endpoint"])

	w = e.do(t, http.MethodPost, "/api/pipeline/advance", nil)
	view = decode[pipelineView](t, w)
	assert.True(t, *view.Moved)
	assert.Equal(t, 1, view.State.Cursor)
	assert.Nil(t, view.State.Summary)

	w = e.do(t, http.MethodPost, "/api/pipeline/retreat", nil)
	view = decode[pipelineView](t, w)
	assert.True(t, *view.Moved)
	assert.Equal(t, 0, view.State.Cursor)

	w = e.do(t, http.MethodGet, "/api/pipeline/runs?stage=validate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	runs := decode[[]map[string]any](t, w)
	assert.Len(t, runs, 1)

	w = e.do(t, http.MethodGet, "/api/pipeline/runs?limit=x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPipeline_FailureIsState(t *testing.T) {
	e := newTestEnv(t)
	e.svc.stageErr = &forecastapi.Error{Kind: forecastapi.KindService, StatusCode: 400, Message: "Missing required columns"}

	w := e.do(t, http.MethodPost, "/api/pipeline/run", nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[pipelineView](t, w)
	assert.Equal(t, "failed", string(view.State.Status))
	assert.Equal(t, "Missing required columns", view.State.Error)
}

func TestViewer_MutationsForbidden(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPut, "/api/wizard/role", map[string]string{"role": "viewer"})
	require.Equal(t, http.StatusOK, w.Code)

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/pipeline/run"},
		{http.MethodPost, "/api/wizard/intents"},
		{http.MethodPost, "/api/wizard/reset"},
		{http.MethodPost, "/api/wizard/confirm"},
		{http.MethodPost, "/api/wizard/template"},
		{http.MethodPost, "/api/wizard/detected/clear"},
		{http.MethodPost, "/api/wizard/promo"},
		{http.MethodPut, "/api/hierarchy"},
	} {
		w := e.do(t, tc.method, tc.path, map[string]any{})
		assert.Equal(t, http.StatusForbidden, w.Code, tc.path)
	}

	// Read-only navigation still works.
	w = e.do(t, http.MethodPost, "/api/wizard/next", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, e.svc.stageRuns)
}

func TestWizard_Flow(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/api/wizard/intents", wizard.SetField(wizard.FieldHorizonDays, 10))
	require.Equal(t, http.StatusOK, w.Code)
	w = e.do(t, http.MethodPost, "/api/wizard/intents", wizard.SetField(wizard.FieldLeadTimeDays, 14))
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodPost, "/api/wizard/next", nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	st := decode[map[string]any](t, w)
	assert.Equal(t, "timing", st["step"])
	assert.Equal(t, "Forecast horizon must be greater than or equal to lead time.", st["validation"])

	for _, in := range []wizard.Intent{
		wizard.SetField(wizard.FieldHorizonDays, 30),
		wizard.SetField(wizard.FieldName, "Plan"),
		wizard.SetField(wizard.FieldCreatedBy, "asha"),
		wizard.SetField(wizard.FieldPromoCalendarPath, "promo.csv"),
	} {
		w = e.do(t, http.MethodPost, "/api/wizard/intents", in)
		require.Equal(t, http.StatusOK, w.Code)
	}
	for i := 0; i < 3; i++ {
		w = e.do(t, http.MethodPost, "/api/wizard/next", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w = e.do(t, http.MethodPost, "/api/wizard/confirm", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	st = decode[map[string]any](t, w)
	assert.Equal(t, "success", st["step"])
	info := st["save_info"].(map[string]any)
	assert.Equal(t, "configs/dev/saved.yaml", info["path"])

	w = e.do(t, http.MethodGet, "/api/wizard/download", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="project_config.yaml"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "config_version: '1.0'\n", w.Body.String())

	w = e.do(t, http.MethodPost, "/api/wizard/confirm", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestWizard_BadIntent(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, http.MethodPost, "/api/wizard/intents", wizard.SetField("meta.owner", "x"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPut, "/api/wizard/role", map[string]string{"role": "admin"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPut, "/api/wizard/env", map[string]string{"env": "prod"})
	require.Equal(t, http.StatusOK, w.Code)
	st := decode[map[string]any](t, w)
	assert.Equal(t, "prod", st["env"])
	assert.Len(t, st["history"], 1)
}

func TestWizard_PromoUpload(t *testing.T) {
	e := newTestEnv(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "promo.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("date,promo_name\n2024-01-01,sale\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/wizard/promo", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "promo.csv", e.svc.promoName)
	assert.Equal(t, "data/uploads/dev/promo.csv", e.wizard.Draft().Forecast.PromoCalendarPath)
}

func TestDashboard(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodGet, "/api/dashboard?granularity=hourly", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodGet, "/api/dashboard?granularity=weekly&column=sales", nil)
	require.Equal(t, http.StatusOK, w.Code)
	st := decode[dashboard.State](t, w)
	assert.Equal(t, dashboard.StatusReady, st.Status)
	require.NotNil(t, st.Snapshot)
	assert.Equal(t, "weekly", st.Snapshot.Preview[0]["granularity"])

	e.svc.headErr = &forecastapi.Error{Kind: forecastapi.KindService, StatusCode: 400, Message: "No aggregated data found"}
	w = e.do(t, http.MethodGet, "/api/dashboard?granularity=daily", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = e.do(t, http.MethodGet, "/api/dashboard/state", nil)
	st = decode[dashboard.State](t, w)
	assert.Equal(t, dashboard.StatusFailed, st.Status)
	assert.Equal(t, "No aggregated data found", st.Err)
}

func TestHierarchy_SaveDropsBlankKeys(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPut, "/api/hierarchy", map[string]any{
		"restaurants": []map[string]string{{"key": "A", "value": "CityX"}, {"key": " ", "value": "CityY"}},
		"cities":      []map[string]string{{"key": "CityX", "value": "CountryZ"}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, e.svc.saved)
	assert.Equal(t, map[string]string{"A": "CityX"}, e.svc.saved.RestaurantToCity)
	assert.Equal(t, "editor", e.svc.savedRole)

	w = e.do(t, http.MethodPut, "/api/hierarchy", map[string]any{
		"store_to_city":   map[string]string{"B": "CityX", "": "Nowhere"},
		"city_to_country": map[string]string{"CityX": "CountryZ"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]string{"B": "CityX"}, e.svc.saved.RestaurantToCity)
}

func TestHierarchy_Rollup(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/api/hierarchy/rollup", map[string]any{
		"restaurant_values": map[string]float64{"A": 120, "B": 95, "C": 140, "D": 5},
	})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[rollupResponse](t, w)
	assert.Equal(t, map[string]float64{"CityX": 215, "CityY": 140}, resp.Cities)
	assert.Equal(t, map[string]float64{"CountryZ": 215}, resp.Countries)
	assert.Equal(t, []string{"D"}, resp.UnmappedRestaurants)
	assert.Equal(t, []string{"CityY"}, resp.UnmappedCities)

	w = e.do(t, http.MethodPost, "/api/hierarchy/rollup", map[string]any{
		"restaurant_values": map[string]float64{"A": 1},
		"remote":            true,
	})
	require.Equal(t, http.StatusOK, w.Code)
	resp = decode[rollupResponse](t, w)
	assert.Equal(t, map[string]float64{"remote": 1}, resp.Cities)
}

func TestHierarchy_RollupInlineMappingDropsBlankKeys(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/api/hierarchy/rollup", map[string]any{
		"restaurant_values": map[string]float64{"A": 10, "B": 5, "": 2},
		"mapping": map[string]any{
			"restaurant_to_city": map[string]string{"A": "CityX ", " B ": "CityY", "": "CityQ"},
			"city_to_country":    map[string]string{"CityX": "CountryZ", " ": "CountryQ"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[rollupResponse](t, w)
	assert.Equal(t, map[string]float64{"CityX": 10, "CityY": 5}, resp.Cities)
	assert.Equal(t, map[string]float64{"CountryZ": 10}, resp.Countries)
	assert.Equal(t, []string{""}, resp.UnmappedRestaurants)
	assert.Equal(t, []string{"CityY"}, resp.UnmappedCities)
	assert.Nil(t, e.svc.saved)
}

func TestWatchDetected_FeedsWizard(t *testing.T) {
	e := newTestEnv(t)
	ch := notify.NewChannel(filepath.Join(t.TempDir(), "state"), notify.WithLogger(zap.NewNop()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watcher, err := e.server.WatchDetected(ctx, ch)
	require.NoError(t, err)
	defer watcher.Stop()

	_, err = ch.Publish(forecastapi.DetectedSummary{
		SuggestedConfig: forecastapi.SuggestedConfig{
			ForecastHorizonDays: 84,
			LeadTimeDays:        7,
			Granularity:         forecastapi.GranularityWeekly,
			Hierarchy:           "single-restaurant",
		},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return e.wizard.Draft().Forecast.HorizonDays == 84
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "restaurant", e.wizard.Draft().Forecast.Hierarchy)
}
