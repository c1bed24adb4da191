// Package pipeline drives the validate, timeline and aggregate processing
// stages of the forecast service one at a time with forward gating.
package pipeline

import "github.com/sells-group/forecast-cli/pkg/forecastapi"

// Stage is one external processing step.
type Stage struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Endpoint    string `json:"endpoint"`
}

// DefaultStages returns the fixed stage list of the forecast service.
func DefaultStages() []Stage {
	return []Stage{
		{
			ID:          "validate",
			Name:        "Validate data",
			Description: "Check the uploaded sales file for required columns, types and duplicates.",
			Endpoint:    forecastapi.PathValidateData,
		},
		{
			ID:          "timeline",
			Name:        "Build timeline",
			Description: "Fill the calendar so every series has one row per day.",
			Endpoint:    forecastapi.PathBuildTimeline,
		},
		{
			ID:          "aggregate",
			Name:        "Aggregate",
			Description: "Roll daily rows up to weekly and monthly granularity.",
			Endpoint:    forecastapi.PathAggregateData,
		},
	}
}
