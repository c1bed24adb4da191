package dashboard

import (
	"context"
	"sync"

	"github.com/sells-group/forecast-cli/pkg/forecastapi"
)

// fakeSource answers every view with data tagged by granularity. DataHead
// blocks while a gate is registered for the granularity.
type fakeSource struct {
	mu      sync.Mutex
	calls   []string
	gates   map[forecastapi.Granularity]chan struct{}
	started chan forecastapi.Granularity
	errs    map[string]error
	// deaf makes gated calls ignore cancellation so they answer late.
	deaf bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		gates:   make(map[forecastapi.Granularity]chan struct{}),
		started: make(chan forecastapi.Granularity, 8),
		errs:    make(map[string]error),
	}
}

func (f *fakeSource) gate(g forecastapi.Granularity) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[g] = ch
	return ch
}

func (f *fakeSource) record(view string, g forecastapi.Granularity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, view+":"+string(g))
	return f.errs[view]
}

func (f *fakeSource) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func canceled(err error) error {
	return &forecastapi.Error{Kind: forecastapi.KindCanceled, Message: "request canceled", Err: err}
}

func (f *fakeSource) DataHead(ctx context.Context, g forecastapi.Granularity, limit int) ([]map[string]any, error) {
	err := f.record("datahead", g)

	f.mu.Lock()
	gate := f.gates[g]
	deaf := f.deaf
	f.mu.Unlock()
	if gate != nil {
		f.started <- g
		if deaf {
			<-gate
		} else {
			select {
			case <-gate:
			case <-ctx.Done():
				return nil, canceled(ctx.Err())
			}
		}
	}
	if err != nil {
		return nil, err
	}
	return []map[string]any{{"granularity": string(g), "sales": 10.0, "limit": float64(limit)}}, nil
}

func (f *fakeSource) EDASummary(ctx context.Context, g forecastapi.Granularity) (*forecastapi.EDASummary, error) {
	if err := f.record("summary", g); err != nil {
		return nil, err
	}
	return &forecastapi.EDASummary{
		Basic:   map[string]forecastapi.ColumnStats{"sales": {Count: 3, Mean: 2, Median: 2, Std: 1, Min: 1, Max: 3}},
		Missing: map[string]int{"promo": 4, "price": 9, "city": 4, "date": 0},
		Trend:   []forecastapi.TrendPoint{{Label: string(g), Value: 1}},
	}, nil
}

func (f *fakeSource) TimeSeries(ctx context.Context, g forecastapi.Granularity) ([]forecastapi.TimeSeriesPoint, error) {
	if err := f.record("timeseries", g); err != nil {
		return nil, err
	}
	return []forecastapi.TimeSeriesPoint{{Date: string(g), Value: 1}}, nil
}

func (f *fakeSource) Correlation(ctx context.Context, g forecastapi.Granularity) (forecastapi.CorrelationMatrix, error) {
	if err := f.record("correlation", g); err != nil {
		return nil, err
	}
	one := 1.0
	return forecastapi.CorrelationMatrix{"sales": {"sales": &one}}, nil
}

func (f *fakeSource) Distribution(ctx context.Context, g forecastapi.Granularity, column string, bins int) (*forecastapi.Distribution, error) {
	if err := f.record("distribution", g); err != nil {
		return nil, err
	}
	return &forecastapi.Distribution{Bins: []float64{0, 1}, Counts: []int{bins}}, nil
}
