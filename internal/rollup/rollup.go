// Package rollup aggregates restaurant-level values through a hierarchy
// mapping into city and country totals.
package rollup

import (
	"sort"

	"github.com/sells-group/forecast-cli/pkg/forecastapi"
)

// Compute sums values per city and per country. Restaurants without a city
// are dropped from every aggregate. Cities without a country keep their city
// total but contribute nothing to country totals.
func Compute(values map[string]float64, m forecastapi.HierarchyMapping) forecastapi.RollupPreview {
	cities := make(map[string]float64)
	for restaurant, v := range values {
		city, ok := m.RestaurantToCity[restaurant]
		if !ok {
			continue
		}
		cities[city] += v
	}

	countries := make(map[string]float64)
	for city, sum := range cities {
		country, ok := m.CityToCountry[city]
		if !ok {
			continue
		}
		countries[country] += sum
	}

	return forecastapi.RollupPreview{Cities: cities, Countries: countries}
}

// Report lists the inputs a roll-up left out.
type Report struct {
	UnmappedRestaurants []string `json:"unmapped_restaurants"`
	UnmappedCities      []string `json:"unmapped_cities"`
}

// Complete reports whether every input reached a country total.
func (r Report) Complete() bool {
	return len(r.UnmappedRestaurants) == 0 && len(r.UnmappedCities) == 0
}

// Coverage returns the restaurants dropped entirely and the cities kept
// only at city level, both sorted.
func Coverage(values map[string]float64, m forecastapi.HierarchyMapping) Report {
	r := Report{UnmappedRestaurants: []string{}, UnmappedCities: []string{}}
	seen := make(map[string]bool)
	for restaurant := range values {
		city, ok := m.RestaurantToCity[restaurant]
		if !ok {
			r.UnmappedRestaurants = append(r.UnmappedRestaurants, restaurant)
			continue
		}
		if seen[city] {
			continue
		}
		seen[city] = true
		if _, ok := m.CityToCountry[city]; !ok {
			r.UnmappedCities = append(r.UnmappedCities, city)
		}
	}
	sort.Strings(r.UnmappedRestaurants)
	sort.Strings(r.UnmappedCities)
	return r
}
