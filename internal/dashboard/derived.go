package dashboard

import (
	"sort"

	"github.com/sells-group/forecast-cli/pkg/forecastapi"
)

// MissingCount is the number of missing values in one field.
type MissingCount struct {
	Field string `json:"field"`
	Count int    `json:"count"`
}

// TopMissing returns the n fields with the most missing values, ties
// broken by name.
func TopMissing(missing map[string]int, n int) []MissingCount {
	out := make([]MissingCount, 0, len(missing))
	for field, count := range missing {
		out = append(out, MissingCount{Field: field, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Field < out[j].Field
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// TopTrend returns the first n trend points in service order.
func TopTrend(trend []forecastapi.TrendPoint, n int) []forecastapi.TrendPoint {
	if n >= 0 && len(trend) > n {
		trend = trend[:n]
	}
	return append([]forecastapi.TrendPoint(nil), trend...)
}
