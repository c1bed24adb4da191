// Package wizard implements the five-step forecast setup wizard: a draft
// configuration edited through intents, gated step navigation, detected
// default merging, template loading and persistence through the service.
package wizard

import (
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/forecast-cli/pkg/forecastapi"
)

// Hierarchy labels.
const (
	HierarchySingle = "restaurant"
	HierarchyMulti  = "restaurant > city > country"
)

// Meta is the descriptive part of a draft.
type Meta struct {
	Name      string `json:"name" yaml:"name"`
	CreatedBy string `json:"created_by" yaml:"created_by"`
	Notes     string `json:"notes" yaml:"notes"`
}

// Forecast is the forecast part of a draft.
type Forecast struct {
	HorizonDays       int                     `json:"horizon_days" yaml:"horizon_days"`
	LeadTimeDays      int                     `json:"lead_time_days" yaml:"lead_time_days"`
	Granularity       forecastapi.Granularity `json:"granularity" yaml:"granularity"`
	Hierarchy         string                  `json:"hierarchy" yaml:"hierarchy"`
	Country           string                  `json:"country" yaml:"country"`
	PromoCalendarPath string                  `json:"promo_calendar_path" yaml:"promo_calendar_path"`
	PromoScope        string                  `json:"promo_scope,omitempty" yaml:"promo_scope,omitempty"`
}

// Draft is the configuration being edited. It holds only values, so a
// copy never shares state with the original.
type Draft struct {
	ConfigVersion string   `json:"config_version" yaml:"config_version"`
	VersionTag    string   `json:"version_tag" yaml:"version_tag"`
	Meta          Meta     `json:"meta" yaml:"meta"`
	Forecast      Forecast `json:"forecast" yaml:"forecast"`
}

// DraftFromDefaults seeds a draft from the service defaults.
func DraftFromDefaults(d forecastapi.Defaults) Draft {
	version := d.ConfigVersion
	if version == "" {
		version = "1.0"
	}
	return Draft{
		ConfigVersion: version,
		VersionTag:    "draft",
		Forecast: Forecast{
			HorizonDays:  d.ForecastHorizonDays,
			LeadTimeDays: d.LeadTimeDays,
			Granularity:  d.Granularity,
			Hierarchy:    d.Hierarchy,
			Country:      d.Country,
		},
	}
}

// FallbackDraft is used when defaults cannot be fetched.
func FallbackDraft() Draft {
	return DraftFromDefaults(forecastapi.Defaults{
		ForecastHorizonDays: 30,
		LeadTimeDays:        7,
		Granularity:         forecastapi.GranularityWeekly,
		Hierarchy:           HierarchyMulti,
		Country:             "India",
		ConfigVersion:       "1.0",
	})
}

// Document converts the draft into the save_config payload.
func (d Draft) Document() forecastapi.ConfigDocument {
	return forecastapi.ConfigDocument{
		ConfigVersion: d.ConfigVersion,
		VersionTag:    d.VersionTag,
		Meta: forecastapi.ConfigMeta{
			Name:      d.Meta.Name,
			CreatedBy: d.Meta.CreatedBy,
			Notes:     d.Meta.Notes,
		},
		Forecast: forecastapi.ForecastSettings{
			HorizonDays:       d.Forecast.HorizonDays,
			LeadTimeDays:      d.Forecast.LeadTimeDays,
			Granularity:       d.Forecast.Granularity,
			Hierarchy:         d.Forecast.Hierarchy,
			Country:           d.Forecast.Country,
			PromoCalendarPath: d.Forecast.PromoCalendarPath,
			PromoScope:        d.Forecast.PromoScope,
		},
	}
}

// EncodeYAML renders the draft as a YAML document.
func EncodeYAML(d Draft) ([]byte, error) {
	out, err := yaml.Marshal(d)
	if err != nil {
		return nil, eris.Wrap(err, "wizard: encode draft")
	}
	return out, nil
}

// DecodeYAML parses a YAML draft. Fields absent from data keep the values
// of base.
func DecodeYAML(data []byte, base Draft) (Draft, error) {
	d := base
	if err := yaml.Unmarshal(data, &d); err != nil {
		return base, eris.Wrap(err, "wizard: decode draft")
	}
	return d, nil
}
