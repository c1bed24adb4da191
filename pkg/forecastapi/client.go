// Package forecastapi provides a client for the forecast workbench service:
// the processing stages, uploads, exploratory statistics, hierarchy mapping
// and configuration versioning endpoints.
package forecastapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "http://localhost:8000"

// Caller issues a single request against the service and decodes the JSON
// response into out. It is the throwing entry point; see Try for the
// non-throwing one.
type Caller interface {
	Call(ctx context.Context, req Request, out any) error
}

// Client defines the forecast service operations.
type Client interface {
	Caller

	// RunStage posts to a processing stage endpoint with no body.
	RunStage(ctx context.Context, endpoint string) (*StageResult, error)
	ValidateData(ctx context.Context) (*StageResult, error)
	BuildTimeline(ctx context.Context) (*StageResult, error)
	AggregateData(ctx context.Context) (*StageResult, error)

	// UploadCSV sends a sales CSV and returns the detected data summary.
	UploadCSV(ctx context.Context, filename string, content io.Reader) (*UploadResult, error)
	// IngestData uploads any of the sales, inventory and prices CSVs in one
	// request and validates the primary one. With no files, useExisting
	// re-validates the latest upload.
	IngestData(ctx context.Context, files IngestFiles, useExisting bool) (*IngestResult, error)

	DataHead(ctx context.Context, granularity Granularity, limit int) ([]map[string]any, error)
	EDASummary(ctx context.Context, granularity Granularity) (*EDASummary, error)
	TimeSeries(ctx context.Context, granularity Granularity) ([]TimeSeriesPoint, error)
	Correlation(ctx context.Context, granularity Granularity) (CorrelationMatrix, error)
	Distribution(ctx context.Context, granularity Granularity, column string, bins int) (*Distribution, error)

	Defaults(ctx context.Context) (*Defaults, error)
	HierarchyMapping(ctx context.Context) (*HierarchyMapping, error)
	SaveHierarchyMapping(ctx context.Context, mapping HierarchyMapping, role string) (*HierarchyMapping, error)
	TestRollup(ctx context.Context, values map[string]float64) (*RollupPreview, error)

	SaveConfig(ctx context.Context, doc ConfigDocument, env, role string) (*SaveResult, error)
	DownloadConfig(ctx context.Context, env, path string) (*ConfigExport, error)
	LoadConfig(ctx context.Context, env string) (*ConfigExport, error)
	Versions(ctx context.Context, env string, limit int) ([]HistoryEntry, error)
	UploadPromoCalendar(ctx context.Context, env, role, filename string, content io.Reader) (*PromoPreview, error)

	Holidays(ctx context.Context, country string, start, end time.Time) (*HolidayList, error)
	Health(ctx context.Context) (*HealthStatus, error)
}

// Request describes one call against the service. Path is relative to the
// base URL. JSON is ignored when Multipart or Files is set.
type Request struct {
	Method    string
	Path      string
	Query     url.Values
	JSON      any
	Multipart *Multipart
	// Files are additional form files sent in the same multipart body.
	Files []Multipart
}

// Multipart is one file of a form upload.
type Multipart struct {
	Field    string
	Filename string
	Content  io.Reader
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the service base URL. An empty value keeps the default.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		if strings.TrimSpace(u) != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimiter paces outgoing requests. Requests are never retried.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(c *httpClient) {
		c.limiter = l
	}
}

// WithLogger sets the logger used for failure diagnostics. Defaults to the
// global zap logger at call time.
func WithLogger(l *zap.Logger) Option {
	return func(c *httpClient) {
		c.logger = l
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a forecast service client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: DefaultBaseURL,
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) log() *zap.Logger {
	if c.logger != nil {
		return c.logger
	}
	return zap.L()
}

// URL builds the absolute URL for a service path.
func (c *httpClient) URL(path string, query url.Values) string {
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *httpClient) Call(ctx context.Context, req Request, out any) error {
	endpoint := req.Path

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return c.fail(transportError(ctx, endpoint, err))
		}
	}

	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return eris.Wrapf(err, "forecastapi: build request %s", endpoint)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return c.fail(transportError(ctx, endpoint, err))
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.fail(transportError(ctx, endpoint, err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.fail(serviceError(endpoint, resp.StatusCode, resp.Status, body))
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return c.fail(&Error{
			Kind:       KindDecode,
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Message:    "The forecast service returned an unexpected response.",
			Err:        eris.Wrapf(err, "forecastapi: decode %s", endpoint),
		})
	}
	return nil
}

func (c *httpClient) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var (
		body        io.Reader
		contentType = "application/json"
	)
	switch {
	case req.Multipart != nil || len(req.Files) > 0:
		files := req.Files
		if req.Multipart != nil {
			files = append([]Multipart{*req.Multipart}, files...)
		}
		buf := &bytes.Buffer{}
		w := multipart.NewWriter(buf)
		for _, f := range files {
			if err := writeFormFile(w, f); err != nil {
				return nil, err
			}
		}
		if err := w.Close(); err != nil {
			return nil, eris.Wrap(err, "forecastapi: close multipart writer")
		}
		body = buf
		contentType = w.FormDataContentType()
	case req.JSON != nil:
		b, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, eris.Wrap(err, "forecastapi: marshal request")
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.URL(req.Path, req.Query), body)
	if err != nil {
		return nil, eris.Wrap(err, "forecastapi: create request")
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	return httpReq, nil
}

func writeFormFile(w *multipart.Writer, f Multipart) error {
	field := f.Field
	if field == "" {
		field = "file"
	}
	part, err := w.CreateFormFile(field, f.Filename)
	if err != nil {
		return eris.Wrapf(err, "forecastapi: create form file %s", field)
	}
	if f.Content != nil {
		if _, err := io.Copy(part, f.Content); err != nil {
			return eris.Wrapf(err, "forecastapi: copy form file %s", field)
		}
	}
	return nil
}

func (c *httpClient) fail(e *Error) error {
	if e.Kind == KindCanceled {
		c.log().Debug("forecastapi: request canceled", zap.String("endpoint", e.Endpoint))
		return e
	}
	c.log().Warn("forecastapi: request failed",
		zap.String("endpoint", e.Endpoint),
		zap.String("kind", e.Kind.String()),
		zap.Int("status", e.StatusCode),
		zap.String("message", e.Message),
		zap.NamedError("cause", e.Err),
	)
	return e
}
