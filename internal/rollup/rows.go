package rollup

import (
	"sort"
	"strings"

	"github.com/sells-group/forecast-cli/pkg/forecastapi"
)

// Row is one editable key/value pair of a mapping table. Keys may be blank
// while an operator is typing.
type Row struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Rows returns m as rows sorted by key.
func Rows(m map[string]string) []Row {
	rows := make([]Row, 0, len(m))
	for k, v := range m {
		rows = append(rows, Row{Key: k, Value: v})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })
	return rows
}

// FromRows builds a map from rows. Keys are trimmed and blank keys are
// dropped. A later duplicate key wins.
func FromRows(rows []Row) map[string]string {
	m := make(map[string]string, len(rows))
	for _, r := range rows {
		key := strings.TrimSpace(r.Key)
		if key == "" {
			continue
		}
		m[key] = strings.TrimSpace(r.Value)
	}
	return m
}

// Mapping builds a hierarchy mapping from the two edited tables.
func Mapping(restaurants, cities []Row) forecastapi.HierarchyMapping {
	return forecastapi.HierarchyMapping{
		RestaurantToCity: FromRows(restaurants),
		CityToCountry:    FromRows(cities),
	}
}
