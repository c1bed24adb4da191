package forecastapi

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Stage endpoints.
const (
	PathValidateData  = "/api/validate_data"
	PathBuildTimeline = "/api/build_timeline"
	PathAggregateData = "/api/aggregate_data"
)

func (c *httpClient) RunStage(ctx context.Context, endpoint string) (*StageResult, error) {
	var out StageResult
	if err := c.Call(ctx, Request{Method: http.MethodPost, Path: endpoint}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) ValidateData(ctx context.Context) (*StageResult, error) {
	return c.RunStage(ctx, PathValidateData)
}

func (c *httpClient) BuildTimeline(ctx context.Context) (*StageResult, error) {
	return c.RunStage(ctx, PathBuildTimeline)
}

func (c *httpClient) AggregateData(ctx context.Context) (*StageResult, error) {
	return c.RunStage(ctx, PathAggregateData)
}

func (c *httpClient) UploadCSV(ctx context.Context, filename string, content io.Reader) (*UploadResult, error) {
	var out UploadResult
	err := c.Call(ctx, Request{
		Method:    http.MethodPost,
		Path:      "/api/upload_csv",
		Multipart: &Multipart{Field: "file", Filename: filename, Content: content},
	}, &out)
	if err != nil {
		return nil, err
	}
	// Parse failures come back as 200 with status "error".
	if out.Status == "error" || out.Data == nil {
		msg := out.Message
		if msg == "" {
			msg = "The uploaded file could not be analyzed."
		}
		return nil, c.fail(&Error{
			Kind:       KindService,
			Endpoint:   "/api/upload_csv",
			StatusCode: http.StatusOK,
			Message:    msg,
		})
	}
	return &out, nil
}

func (c *httpClient) Defaults(ctx context.Context) (*Defaults, error) {
	var out Defaults
	if err := c.Call(ctx, Request{Path: "/api/defaults"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) HierarchyMapping(ctx context.Context) (*HierarchyMapping, error) {
	var out HierarchyMapping
	if err := c.Call(ctx, Request{Path: "/api/hierarchy_mapping"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) SaveHierarchyMapping(ctx context.Context, mapping HierarchyMapping, role string) (*HierarchyMapping, error) {
	var out struct {
		Status  string           `json:"status"`
		Mapping HierarchyMapping `json:"mapping"`
	}
	err := c.Call(ctx, Request{
		Method: http.MethodPost,
		Path:   "/api/hierarchy_mapping",
		Query:  roleQuery(role),
		JSON:   mapping,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Mapping, nil
}

func (c *httpClient) TestRollup(ctx context.Context, values map[string]float64) (*RollupPreview, error) {
	var out RollupPreview
	err := c.Call(ctx, Request{
		Method: http.MethodPost,
		Path:   "/api/test_rollup",
		JSON:   map[string]any{"restaurant_values": values},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) SaveConfig(ctx context.Context, doc ConfigDocument, env, role string) (*SaveResult, error) {
	q := url.Values{}
	q.Set("env", env)
	if role != "" {
		q.Set("role", role)
	}
	var out SaveResult
	err := c.Call(ctx, Request{
		Method: http.MethodPost,
		Path:   "/api/save_config",
		Query:  q,
		JSON:   doc,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) DownloadConfig(ctx context.Context, env, path string) (*ConfigExport, error) {
	q := url.Values{}
	q.Set("env", env)
	if path != "" {
		q.Set("path", path)
	}
	var out ConfigExport
	if err := c.Call(ctx, Request{Path: "/api/download_config", Query: q}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) LoadConfig(ctx context.Context, env string) (*ConfigExport, error) {
	q := url.Values{}
	q.Set("env", env)
	var out ConfigExport
	if err := c.Call(ctx, Request{Path: "/api/load_config", Query: q}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) Versions(ctx context.Context, env string, limit int) ([]HistoryEntry, error) {
	q := url.Values{}
	if env != "" {
		q.Set("env", env)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out struct {
		History []HistoryEntry `json:"history"`
	}
	if err := c.Call(ctx, Request{Path: "/api/get_versions", Query: q}, &out); err != nil {
		return nil, err
	}
	return out.History, nil
}

// IngestFields are the form fields accepted by the ingest endpoint, in the
// order they are sent.
var IngestFields = []string{"sales", "inventory", "prices"}

func (c *httpClient) IngestData(ctx context.Context, files IngestFiles, useExisting bool) (*IngestResult, error) {
	req := Request{Method: http.MethodPost, Path: "/api/ingest_data"}
	for _, field := range IngestFields {
		f, ok := files[field]
		if !ok {
			continue
		}
		f.Field = field
		if f.Filename == "" {
			f.Filename = field + ".csv"
		}
		req.Files = append(req.Files, f)
	}
	if useExisting {
		req.Query = url.Values{"use_existing": {"true"}}
	}
	var out IngestResult
	if err := c.Call(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) UploadPromoCalendar(ctx context.Context, env, role, filename string, content io.Reader) (*PromoPreview, error) {
	q := roleQuery(role)
	q.Set("env", env)
	var out PromoPreview
	err := c.Call(ctx, Request{
		Method:    http.MethodPost,
		Path:      "/api/upload_promo_calendar",
		Query:     q,
		Multipart: &Multipart{Field: "file", Filename: filename, Content: content},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) Holidays(ctx context.Context, country string, start, end time.Time) (*HolidayList, error) {
	q := url.Values{}
	q.Set("country", country)
	q.Set("start_date", start.Format(time.DateOnly))
	q.Set("end_date", end.Format(time.DateOnly))
	var out HolidayList
	if err := c.Call(ctx, Request{Path: "/api/holidays", Query: q}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) Health(ctx context.Context) (*HealthStatus, error) {
	var out HealthStatus
	if err := c.Call(ctx, Request{Path: "/health"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func roleQuery(role string) url.Values {
	q := url.Values{}
	if role != "" {
		q.Set("role", role)
	}
	return q
}
