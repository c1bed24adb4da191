package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/sells-group/forecast-cli/pkg/forecastapi"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	daily  = Selection{Granularity: forecastapi.GranularityDaily, Column: "sales"}
	weekly = Selection{Granularity: forecastapi.GranularityWeekly, Column: "sales"}
)

func newTestComposer(src Source, opts ...Option) *Composer {
	return NewComposer(src, append([]Option{WithLogger(zap.NewNop())}, opts...)...)
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("load did not finish")
	}
}

func TestLoad_AllViews(t *testing.T) {
	src := newFakeSource()
	c := newTestComposer(src, WithPreviewLimit(5), WithBins(7), WithTopN(2))

	snap, err := c.Load(context.Background(), daily)
	require.NoError(t, err)

	assert.Equal(t, daily, snap.Selection)
	require.Len(t, snap.Preview, 1)
	assert.Equal(t, 5.0, snap.Preview[0]["limit"])
	assert.Equal(t, []int{7}, snap.Distribution.Counts)
	assert.Equal(t, []MissingCount{{"price", 9}, {"city", 4}}, snap.TopMissing)
	assert.Len(t, snap.TopTrend, 1)
	assert.False(t, snap.LoadedAt.IsZero())

	assert.Equal(t, []string{
		"datahead:daily", "summary:daily", "timeseries:daily", "correlation:daily", "distribution:daily",
	}, src.Calls())
}

func TestLoad_StopsAtFirstFailure(t *testing.T) {
	tests := []struct {
		failing string
		calls   []string
	}{
		{"summary", []string{"datahead:daily", "summary:daily"}},
		{"timeseries", []string{"datahead:daily", "summary:daily", "timeseries:daily"}},
		{"correlation", []string{"datahead:daily", "summary:daily", "timeseries:daily", "correlation:daily"}},
	}
	for _, tt := range tests {
		t.Run(tt.failing, func(t *testing.T) {
			src := newFakeSource()
			src.errs[tt.failing] = &forecastapi.Error{Kind: forecastapi.KindService, StatusCode: 500, Message: tt.failing + " failed"}
			c := newTestComposer(src)

			snap, err := c.Load(context.Background(), daily)
			assert.Nil(t, snap)
			assert.EqualError(t, err, tt.failing+" failed")
			assert.Equal(t, tt.calls, src.Calls())
		})
	}
}

func TestSelect_PreviewFailureShortCircuits(t *testing.T) {
	src := newFakeSource()
	src.errs["datahead"] = &forecastapi.Error{Kind: forecastapi.KindService, StatusCode: 400, Message: "No aggregated data found"}
	c := newTestComposer(src)
	defer c.Close()

	waitDone(t, c.Select(daily))

	st := c.State()
	assert.Equal(t, StatusFailed, st.Status)
	assert.Equal(t, "No aggregated data found", st.Err)
	assert.Nil(t, st.Snapshot)
	assert.Equal(t, []string{"datahead:daily"}, src.Calls())
}

func TestSelect_DependentFailureFailsGroup(t *testing.T) {
	src := newFakeSource()
	src.errs["correlation"] = &forecastapi.Error{Kind: forecastapi.KindService, StatusCode: 500, Message: "correlation failed"}
	c := newTestComposer(src)
	defer c.Close()

	waitDone(t, c.Select(daily))

	st := c.State()
	assert.Equal(t, StatusFailed, st.Status)
	assert.Equal(t, "correlation failed", st.Err)
	assert.Nil(t, st.Snapshot, "partial groups are never applied")
}

func TestSelect_LateStaleResultDropped(t *testing.T) {
	src := newFakeSource()
	src.deaf = true
	gate := src.gate(forecastapi.GranularityDaily)
	c := newTestComposer(src)
	defer c.Close()

	first := c.Select(daily)
	require.Equal(t, forecastapi.GranularityDaily, <-src.started)
	assert.Equal(t, StatusLoading, c.State().Status)

	second := c.Select(weekly)
	waitDone(t, second)

	st := c.State()
	require.Equal(t, StatusReady, st.Status)
	assert.Equal(t, weekly, st.Selection)

	// The daily responses arrive after the switch and must not land.
	close(gate)
	waitDone(t, first)

	st = c.State()
	assert.Equal(t, StatusReady, st.Status)
	assert.Equal(t, weekly, st.Selection)
	require.NotNil(t, st.Snapshot)
	assert.Equal(t, "weekly", st.Snapshot.Preview[0]["granularity"])
	assert.Equal(t, "weekly", st.Snapshot.TimeSeries[0].Date)
	assert.Equal(t, uint64(2), st.Generation)
}

func TestSelect_CanceledLoadNotReported(t *testing.T) {
	src := newFakeSource()
	src.gate(forecastapi.GranularityDaily)
	c := newTestComposer(src)
	defer c.Close()

	first := c.Select(daily)
	<-src.started
	second := c.Select(weekly)
	waitDone(t, first)
	waitDone(t, second)

	st := c.State()
	assert.Equal(t, StatusReady, st.Status)
	assert.Empty(t, st.Err)
	assert.NotContains(t, src.Calls(), "summary:daily")
}

func TestClose_CancelsAndWaits(t *testing.T) {
	src := newFakeSource()
	src.gate(forecastapi.GranularityDaily)
	c := newTestComposer(src)

	done := c.Select(daily)
	<-src.started
	c.Close()

	select {
	case <-done:
	default:
		t.Fatal("close returned before the load finished")
	}
	st := c.State()
	assert.Equal(t, StatusLoading, st.Status)
	assert.Empty(t, st.Err)

	after := c.Select(weekly)
	waitDone(t, after)
	assert.Equal(t, daily, c.State().Selection, "closed composer ignores selections")
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "idle", StatusIdle.String())
	assert.Equal(t, "loading", StatusLoading.String())
	assert.Equal(t, "ready", StatusReady.String())
	assert.Equal(t, "failed", StatusFailed.String())
}
