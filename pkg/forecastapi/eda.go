package forecastapi

import (
	"context"
	"net/url"
	"strconv"
)

func edaQuery(granularity Granularity) url.Values {
	q := url.Values{}
	if granularity != "" {
		q.Set("granularity", string(granularity))
	}
	return q
}

func (c *httpClient) DataHead(ctx context.Context, granularity Granularity, limit int) ([]map[string]any, error) {
	q := edaQuery(granularity)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out struct {
		DataHead []map[string]any `json:"data_head"`
	}
	if err := c.Call(ctx, Request{Path: "/api/eda/datahead", Query: q}, &out); err != nil {
		return nil, err
	}
	return out.DataHead, nil
}

func (c *httpClient) EDASummary(ctx context.Context, granularity Granularity) (*EDASummary, error) {
	var out struct {
		Summary EDASummary `json:"summary"`
	}
	if err := c.Call(ctx, Request{Path: "/api/eda/summary", Query: edaQuery(granularity)}, &out); err != nil {
		return nil, err
	}
	return &out.Summary, nil
}

func (c *httpClient) TimeSeries(ctx context.Context, granularity Granularity) ([]TimeSeriesPoint, error) {
	var out struct {
		TimeSeries []TimeSeriesPoint `json:"timeseries"`
	}
	if err := c.Call(ctx, Request{Path: "/api/eda/timeseries", Query: edaQuery(granularity)}, &out); err != nil {
		return nil, err
	}
	return out.TimeSeries, nil
}

func (c *httpClient) Correlation(ctx context.Context, granularity Granularity) (CorrelationMatrix, error) {
	var out struct {
		Correlation CorrelationMatrix `json:"correlation"`
	}
	if err := c.Call(ctx, Request{Path: "/api/eda/correlation", Query: edaQuery(granularity)}, &out); err != nil {
		return nil, err
	}
	return out.Correlation, nil
}

func (c *httpClient) Distribution(ctx context.Context, granularity Granularity, column string, bins int) (*Distribution, error) {
	q := edaQuery(granularity)
	if column != "" {
		q.Set("column", column)
	}
	if bins > 0 {
		q.Set("bins", strconv.Itoa(bins))
	}
	var out struct {
		Distribution Distribution `json:"distribution"`
	}
	if err := c.Call(ctx, Request{Path: "/api/eda/distribution", Query: q}, &out); err != nil {
		return nil, err
	}
	return &out.Distribution, nil
}
