package api

import (
	"context"
	"io"
	"sync"

	"github.com/sells-group/forecast-cli/internal/model"
	"github.com/sells-group/forecast-cli/internal/store"
	"github.com/sells-group/forecast-cli/pkg/forecastapi"
)

// fakeService stands in for the forecast service behind every component.
type fakeService struct {
	mu        sync.Mutex
	stageErr  error
	stageRuns []string
	saved     *forecastapi.HierarchyMapping
	savedRole string
	mapping   forecastapi.HierarchyMapping
	promoName string
	headErr   error
}

func newFakeService() *fakeService {
	return &fakeService{
		mapping: forecastapi.HierarchyMapping{
			RestaurantToCity: map[string]string{"A": "CityX", "B": "CityX", "C": "CityY"},
			CityToCountry:    map[string]string{"CityX": "CountryZ"},
		},
	}
}

func (f *fakeService) RunStage(ctx context.Context, endpoint string) (*forecastapi.StageResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stageRuns = append(f.stageRuns, endpoint)
	if f.stageErr != nil {
		return nil, f.stageErr
	}
	return &forecastapi.StageResult{Status: "success", Summary: map[string]any{"endpoint": endpoint}}, nil
}

func (f *fakeService) Defaults(ctx context.Context) (*forecastapi.Defaults, error) {
	return &forecastapi.Defaults{ForecastHorizonDays: 30, LeadTimeDays: 7, Granularity: "weekly", Hierarchy: "restaurant", Country: "India"}, nil
}

func (f *fakeService) SaveConfig(ctx context.Context, doc forecastapi.ConfigDocument, env, role string) (*forecastapi.SaveResult, error) {
	return &forecastapi.SaveResult{Status: "saved", Path: "configs/" + env + "/saved.yaml", Config: &doc}, nil
}

func (f *fakeService) DownloadConfig(ctx context.Context, env, path string) (*forecastapi.ConfigExport, error) {
	return &forecastapi.ConfigExport{Path: "configs/" + env + "/project_config.yaml", YAML: "config_version: '1.0'\n"}, nil
}

func (f *fakeService) Versions(ctx context.Context, env string, limit int) ([]forecastapi.HistoryEntry, error) {
	return []forecastapi.HistoryEntry{{Env: env, Path: "configs/" + env + "/saved.yaml"}}, nil
}

func (f *fakeService) UploadPromoCalendar(ctx context.Context, env, role, filename string, content io.Reader) (*forecastapi.PromoPreview, error) {
	f.mu.Lock()
	f.promoName = filename
	f.mu.Unlock()
	return &forecastapi.PromoPreview{Status: "uploaded", Path: "data/uploads/" + env + "/" + filename, TotalRows: 1}, nil
}

func (f *fakeService) DataHead(ctx context.Context, g forecastapi.Granularity, limit int) ([]map[string]any, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	return []map[string]any{{"granularity": string(g)}}, nil
}

func (f *fakeService) EDASummary(ctx context.Context, g forecastapi.Granularity) (*forecastapi.EDASummary, error) {
	return &forecastapi.EDASummary{Missing: map[string]int{"price": 2}}, nil
}

func (f *fakeService) TimeSeries(ctx context.Context, g forecastapi.Granularity) ([]forecastapi.TimeSeriesPoint, error) {
	return nil, nil
}

func (f *fakeService) Correlation(ctx context.Context, g forecastapi.Granularity) (forecastapi.CorrelationMatrix, error) {
	return forecastapi.CorrelationMatrix{}, nil
}

func (f *fakeService) Distribution(ctx context.Context, g forecastapi.Granularity, column string, bins int) (*forecastapi.Distribution, error) {
	return &forecastapi.Distribution{}, nil
}

func (f *fakeService) HierarchyMapping(ctx context.Context) (*forecastapi.HierarchyMapping, error) {
	m := f.mapping
	return &m, nil
}

func (f *fakeService) SaveHierarchyMapping(ctx context.Context, mapping forecastapi.HierarchyMapping, role string) (*forecastapi.HierarchyMapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = &mapping
	f.savedRole = role
	return &mapping, nil
}

func (f *fakeService) TestRollup(ctx context.Context, values map[string]float64) (*forecastapi.RollupPreview, error) {
	return &forecastapi.RollupPreview{Cities: map[string]float64{"remote": 1}, Countries: map[string]float64{}}, nil
}

func (f *fakeService) Health(ctx context.Context) (*forecastapi.HealthStatus, error) {
	return &forecastapi.HealthStatus{OK: true, Service: "forecast"}, nil
}

type memRuns struct {
	mu   sync.Mutex
	runs []model.StageRun
}

func (m *memRuns) RecordStageRun(_ context.Context, run model.StageRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *memRuns) ListStageRuns(_ context.Context, filter store.StageRunFilter) ([]model.StageRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.StageRun
	for _, r := range m.runs {
		if filter.StageID != "" && r.StageID != filter.StageID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
