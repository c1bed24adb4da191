package forecastapi

import (
	"encoding/json"
	"strings"
)

// Granularity is the temporal aggregation level of a dataset.
type Granularity string

const (
	GranularityDaily   Granularity = "daily"
	GranularityWeekly  Granularity = "weekly"
	GranularityMonthly Granularity = "monthly"
)

// Granularities lists the supported levels in display order.
var Granularities = []Granularity{GranularityDaily, GranularityWeekly, GranularityMonthly}

// Valid reports whether g is one of the supported levels.
func (g Granularity) Valid() bool {
	switch g {
	case GranularityDaily, GranularityWeekly, GranularityMonthly:
		return true
	}
	return false
}

// ParseGranularity normalizes s. The boolean is false for unknown values.
func ParseGranularity(s string) (Granularity, bool) {
	g := Granularity(strings.ToLower(strings.TrimSpace(s)))
	return g, g.Valid()
}

// StageResult is the decoded response of a processing stage. The service
// either wraps the summary as {"status": ..., "summary": {...}} or returns a
// flat object, in which case the whole object is the summary.
type StageResult struct {
	Status  string         `json:"status,omitempty"`
	Summary map[string]any `json:"summary"`
}

func (r *StageResult) UnmarshalJSON(data []byte) error {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if status, ok := doc["status"].(string); ok {
		r.Status = status
	}
	if summary, ok := doc["summary"].(map[string]any); ok {
		r.Summary = summary
		return nil
	}
	r.Summary = doc
	return nil
}

// SuggestedConfig holds defaults the service inferred from an upload.
type SuggestedConfig struct {
	ForecastHorizonDays int         `json:"forecast_horizon_days"`
	LeadTimeDays        int         `json:"lead_time_days"`
	Granularity         Granularity `json:"granularity"`
	Hierarchy           string      `json:"hierarchy"`
	Country             string      `json:"country"`
}

// DetectedSummary describes an uploaded dataset and the defaults suggested for it.
type DetectedSummary struct {
	Columns         []string        `json:"columns"`
	DateColumn      string          `json:"date_column"`
	TargetColumn    string          `json:"target_column,omitempty"`
	StartDate       string          `json:"start_date"`
	EndDate         string          `json:"end_date"`
	Frequency       Granularity     `json:"frequency"`
	Hierarchy       string          `json:"hierarchy"`
	Rows            int             `json:"rows"`
	Notes           string          `json:"notes"`
	SuggestedConfig SuggestedConfig `json:"suggested_config"`
}

// UploadResult is the response of POST /api/upload_csv.
type UploadResult struct {
	Status     string           `json:"status"`
	Data       *DetectedSummary `json:"data,omitempty"`
	StoredPath string           `json:"stored_path,omitempty"`
	Message    string           `json:"message,omitempty"`
}

// IngestFiles are the optional CSVs of POST /api/ingest_data, keyed by form
// field: sales, inventory or prices.
type IngestFiles map[string]Multipart

// IngestedFile is one file stored by the ingest endpoint.
type IngestedFile struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

// IngestResult is the response of POST /api/ingest_data.
type IngestResult struct {
	Status        string         `json:"status"`
	UploadedFiles []IngestedFile `json:"uploaded_files"`
	Summary       map[string]any `json:"summary"`
}

// Defaults is the response of GET /api/defaults.
type Defaults struct {
	ForecastHorizonDays int         `json:"forecast_horizon_days"`
	LeadTimeDays        int         `json:"lead_time_days"`
	Granularity         Granularity `json:"granularity"`
	Hierarchy           string      `json:"hierarchy"`
	Country             string      `json:"country"`
	ConfigVersion       string      `json:"config_version"`
}

// HierarchyMapping translates restaurants to cities and cities to countries.
type HierarchyMapping struct {
	RestaurantToCity map[string]string `json:"restaurant_to_city"`
	CityToCountry    map[string]string `json:"city_to_country"`
}

// UnmarshalJSON also accepts the legacy store_to_city key.
func (m *HierarchyMapping) UnmarshalJSON(data []byte) error {
	var doc struct {
		RestaurantToCity map[string]string `json:"restaurant_to_city"`
		StoreToCity      map[string]string `json:"store_to_city"`
		CityToCountry    map[string]string `json:"city_to_country"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	m.RestaurantToCity = doc.RestaurantToCity
	if m.RestaurantToCity == nil {
		m.RestaurantToCity = doc.StoreToCity
	}
	m.CityToCountry = doc.CityToCountry
	return nil
}

// RollupPreview holds aggregate sums per city and per country.
type RollupPreview struct {
	Cities    map[string]float64 `json:"cities"`
	Countries map[string]float64 `json:"countries"`
}

// ConfigMeta is the descriptive part of a configuration document.
type ConfigMeta struct {
	Name      string `json:"name" yaml:"name"`
	CreatedBy string `json:"created_by" yaml:"created_by"`
	CreatedAt string `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	Notes     string `json:"notes" yaml:"notes"`
}

// ForecastSettings is the forecast part of a configuration document.
type ForecastSettings struct {
	HorizonDays       int         `json:"horizon_days" yaml:"horizon_days"`
	LeadTimeDays      int         `json:"lead_time_days" yaml:"lead_time_days"`
	Granularity       Granularity `json:"granularity" yaml:"granularity"`
	Hierarchy         string      `json:"hierarchy" yaml:"hierarchy"`
	Country           string      `json:"country" yaml:"country"`
	PromoCalendarPath string      `json:"promo_calendar_path" yaml:"promo_calendar_path"`
	PromoScope        string      `json:"promo_scope,omitempty" yaml:"promo_scope,omitempty"`
}

// ConfigDocument is a full forecast configuration as sent to save_config.
type ConfigDocument struct {
	ConfigVersion string           `json:"config_version" yaml:"config_version"`
	VersionTag    string           `json:"version_tag,omitempty" yaml:"version_tag,omitempty"`
	Meta          ConfigMeta       `json:"meta" yaml:"meta"`
	Forecast      ForecastSettings `json:"forecast" yaml:"forecast"`
}

// SaveResult is the response of POST /api/save_config.
type SaveResult struct {
	Status      string          `json:"status"`
	Path        string          `json:"path"`
	Warnings    []string        `json:"warnings"`
	HistorySize int             `json:"history_size"`
	Config      *ConfigDocument `json:"config,omitempty"`
}

// ConfigExport is the response of GET /api/download_config and
// GET /api/load_config. Config is kept raw so callers can tell which fields
// the stored document actually carries.
type ConfigExport struct {
	Path   string          `json:"path"`
	YAML   string          `json:"yaml,omitempty"`
	Config json.RawMessage `json:"config"`
}

// HistoryEntry describes a previously saved configuration.
type HistoryEntry struct {
	Env        string   `json:"env"`
	Path       string   `json:"path"`
	CreatedAt  string   `json:"created_at"`
	CreatedBy  string   `json:"created_by"`
	VersionTag string   `json:"version_tag"`
	Name       string   `json:"name"`
	Warnings   []string `json:"warnings"`
}

// InvalidPromoRow is a promo calendar row with its problems.
type InvalidPromoRow struct {
	Row    map[string]string `json:"row"`
	Issues []string          `json:"issues"`
}

// PromoPreview is the response of POST /api/upload_promo_calendar.
type PromoPreview struct {
	Status      string              `json:"status,omitempty"`
	Path        string              `json:"path"`
	Preview     []map[string]string `json:"preview"`
	InvalidRows []InvalidPromoRow   `json:"invalid_rows"`
	TotalRows   int                 `json:"total_rows"`
}

// ColumnStats are descriptive statistics of one numeric column.
type ColumnStats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// OutlierInfo is the IQR outlier report for the value column.
type OutlierInfo struct {
	Column     string   `json:"column"`
	Outliers   int      `json:"outliers"`
	LowerBound *float64 `json:"lower_bound"`
	UpperBound *float64 `json:"upper_bound"`
}

// SeriesCoverage is the observed date span of one series.
type SeriesCoverage struct {
	SeriesID     any    `json:"series_id"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	Observations int    `json:"observations"`
	SpanDays     int    `json:"span_days"`
}

// TrendPoint is one seasonal trend bucket.
type TrendPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// EDASummary is the summary block of GET /api/eda/summary.
type EDASummary struct {
	Basic    map[string]ColumnStats `json:"basic"`
	Missing  map[string]int         `json:"missing"`
	Outliers OutlierInfo            `json:"outliers"`
	Coverage []SeriesCoverage       `json:"coverage"`
	Trend    []TrendPoint           `json:"trend"`
}

// TimeSeriesPoint is one resampled observation with rolling statistics.
type TimeSeriesPoint struct {
	Date        string  `json:"date"`
	Value       float64 `json:"value"`
	RollingMean float64 `json:"rolling_mean"`
	RollingStd  float64 `json:"rolling_std"`
	RollingVar  float64 `json:"rolling_var"`
}

// CorrelationMatrix maps column pairs to coefficients; nil means undefined.
type CorrelationMatrix map[string]map[string]*float64

// Distribution is a histogram: len(Bins) == len(Counts)+1 edges.
type Distribution struct {
	Bins   []float64 `json:"bins"`
	Counts []int     `json:"counts"`
}

// Holiday is a public holiday.
type Holiday struct {
	Date string `json:"date"`
	Name string `json:"name"`
}

// HolidayList is the response of GET /api/holidays.
type HolidayList struct {
	Country   string    `json:"country"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
	Count     int       `json:"count"`
	Holidays  []Holiday `json:"holidays"`
}

// HealthStatus is the response of GET /health.
type HealthStatus struct {
	OK      bool   `json:"ok"`
	Service string `json:"service"`
}
