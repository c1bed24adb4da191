// Package dashboard composes the exploratory data views for one
// granularity and focus column. A selection change cancels the fetches
// of the previous selection and its late results are dropped.
package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/forecast-cli/pkg/forecastapi"
)

// Source is the part of the forecast service the composer reads.
type Source interface {
	DataHead(ctx context.Context, granularity forecastapi.Granularity, limit int) ([]map[string]any, error)
	EDASummary(ctx context.Context, granularity forecastapi.Granularity) (*forecastapi.EDASummary, error)
	TimeSeries(ctx context.Context, granularity forecastapi.Granularity) ([]forecastapi.TimeSeriesPoint, error)
	Correlation(ctx context.Context, granularity forecastapi.Granularity) (forecastapi.CorrelationMatrix, error)
	Distribution(ctx context.Context, granularity forecastapi.Granularity, column string, bins int) (*forecastapi.Distribution, error)
}

// Selection is the user's current choice of views.
type Selection struct {
	Granularity forecastapi.Granularity `json:"granularity"`
	Column      string                  `json:"column"`
}

// Snapshot is one fully loaded group of views.
type Snapshot struct {
	Selection    Selection                     `json:"selection"`
	Preview      []map[string]any              `json:"preview"`
	Summary      *forecastapi.EDASummary       `json:"summary"`
	TimeSeries   []forecastapi.TimeSeriesPoint `json:"timeseries"`
	Correlation  forecastapi.CorrelationMatrix `json:"correlation"`
	Distribution *forecastapi.Distribution     `json:"distribution"`
	TopMissing   []MissingCount                `json:"top_missing"`
	TopTrend     []forecastapi.TrendPoint      `json:"top_trend"`
	LoadedAt     time.Time                     `json:"loaded_at"`
}

// Status is the lifecycle of the current selection.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return "idle"
	}
}

// MarshalText renders the status name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name.
func (s *Status) UnmarshalText(b []byte) error {
	for _, st := range []Status{StatusIdle, StatusLoading, StatusReady, StatusFailed} {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return eris.Errorf("dashboard: unknown status %q", b)
}

// State is a copy of the composer state.
type State struct {
	Selection  Selection `json:"selection"`
	Status     Status    `json:"status"`
	Snapshot   *Snapshot `json:"snapshot,omitempty"`
	Err        string    `json:"error,omitempty"`
	Generation uint64    `json:"generation"`
}

// Defaults for the composer options.
const (
	DefaultPreviewLimit = 20
	DefaultBins         = 20
	DefaultTopN         = 6
)

// Option configures a Composer.
type Option func(*Composer)

// WithPreviewLimit sets the number of preview rows requested.
func WithPreviewLimit(n int) Option {
	return func(c *Composer) {
		if n > 0 {
			c.previewLimit = n
		}
	}
}

// WithBins sets the histogram bin count.
func WithBins(n int) Option {
	return func(c *Composer) {
		if n > 0 {
			c.bins = n
		}
	}
}

// WithTopN sets the length of the derived missing and trend slices.
func WithTopN(n int) Option {
	return func(c *Composer) {
		if n > 0 {
			c.topN = n
		}
	}
}

// WithLogger overrides the global logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Composer) {
		c.logger = l
	}
}

// Composer loads dashboard views for the latest selection.
type Composer struct {
	src          Source
	previewLimit int
	bins         int
	topN         int
	logger       *zap.Logger
	now          func() time.Time

	mu     sync.Mutex
	state  State
	gen    uint64
	cancel context.CancelFunc
	closed bool
	loads  errgroup.Group
}

// NewComposer creates an idle composer.
func NewComposer(src Source, opts ...Option) *Composer {
	c := &Composer{
		src:          src,
		previewLimit: DefaultPreviewLimit,
		bins:         DefaultBins,
		topN:         DefaultTopN,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Composer) log() *zap.Logger {
	if c.logger != nil {
		return c.logger
	}
	return zap.L()
}

// Load fetches every view for sel in a fixed order: preview, summary,
// time series, correlation, distribution. The first failure stops the
// sequence and nothing after it is requested.
func (c *Composer) Load(ctx context.Context, sel Selection) (*Snapshot, error) {
	snap := &Snapshot{Selection: sel}
	var err error

	if snap.Preview, err = c.src.DataHead(ctx, sel.Granularity, c.previewLimit); err != nil {
		return nil, err
	}
	if snap.Summary, err = c.src.EDASummary(ctx, sel.Granularity); err != nil {
		return nil, err
	}
	if snap.TimeSeries, err = c.src.TimeSeries(ctx, sel.Granularity); err != nil {
		return nil, err
	}
	if snap.Correlation, err = c.src.Correlation(ctx, sel.Granularity); err != nil {
		return nil, err
	}
	if snap.Distribution, err = c.src.Distribution(ctx, sel.Granularity, sel.Column, c.bins); err != nil {
		return nil, err
	}

	if snap.Summary != nil {
		snap.TopMissing = TopMissing(snap.Summary.Missing, c.topN)
		snap.TopTrend = TopTrend(snap.Summary.Trend, c.topN)
	}
	snap.LoadedAt = c.now()
	return snap, nil
}

// Select starts loading sel and cancels any load still running for an
// earlier selection. The returned channel is closed when this load has
// finished, whether or not its result was applied.
func (c *Composer) Select(sel Selection) <-chan struct{} {
	done := make(chan struct{})

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(done)
		return done
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	gen := c.gen
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.state = State{Selection: sel, Status: StatusLoading, Generation: gen}

	c.loads.Go(func() error {
		defer close(done)
		defer cancel()

		snap, err := c.Load(ctx, sel)
		c.apply(gen, snap, err)
		return nil
	})
	c.mu.Unlock()
	return done
}

func (c *Composer) apply(gen uint64, snap *Snapshot, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		c.log().Debug("dashboard: dropped stale load", zap.Uint64("generation", gen), zap.Uint64("current", c.gen))
		return
	}
	if err != nil && (forecastapi.IsCanceled(err) || c.closed) {
		return
	}
	if err != nil {
		c.state.Status = StatusFailed
		c.state.Err = err.Error()
		c.log().Warn("dashboard: load failed",
			zap.String("granularity", string(c.state.Selection.Granularity)),
			zap.Error(err),
		)
		return
	}
	c.state.Status = StatusReady
	c.state.Snapshot = snap
	c.state.Err = ""
}

// State returns the current state.
func (c *Composer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close cancels any running load and waits for it to return.
func (c *Composer) Close() {
	c.mu.Lock()
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()
	_ = c.loads.Wait()
}
