package wizard

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/forecast-cli/pkg/forecastapi"
)

// templateDoc marks which fields a stored document actually carries.
type templateDoc struct {
	ConfigVersion *string `json:"config_version" yaml:"config_version"`
	VersionTag    *string `json:"version_tag" yaml:"version_tag"`
	Meta          *struct {
		Name      *string `json:"name" yaml:"name"`
		CreatedBy *string `json:"created_by" yaml:"created_by"`
		Notes     *string `json:"notes" yaml:"notes"`
	} `json:"meta" yaml:"meta"`
	Forecast *struct {
		HorizonDays       *int    `json:"horizon_days" yaml:"horizon_days"`
		LeadTimeDays      *int    `json:"lead_time_days" yaml:"lead_time_days"`
		Granularity       *string `json:"granularity" yaml:"granularity"`
		Hierarchy         *string `json:"hierarchy" yaml:"hierarchy"`
		Country           *string `json:"country" yaml:"country"`
		PromoCalendarPath *string `json:"promo_calendar_path" yaml:"promo_calendar_path"`
	} `json:"forecast" yaml:"forecast"`
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// MergeTemplate overlays the fields present in export onto d. The promo
// scope is never taken from a template.
func MergeTemplate(d Draft, export *forecastapi.ConfigExport) (Draft, error) {
	var doc templateDoc
	switch {
	case len(bytes.TrimSpace(export.Config)) > 0 && !bytes.Equal(bytes.TrimSpace(export.Config), []byte("null")):
		if err := json.Unmarshal(export.Config, &doc); err != nil {
			return d, eris.Wrap(err, "wizard: decode template")
		}
	case export.YAML != "":
		if err := yaml.Unmarshal([]byte(export.YAML), &doc); err != nil {
			return d, eris.Wrap(err, "wizard: decode template yaml")
		}
	default:
		return d, eris.Errorf("wizard: template %s has no content", export.Path)
	}

	setIf(&d.ConfigVersion, doc.ConfigVersion)
	setIf(&d.VersionTag, doc.VersionTag)
	if doc.Meta != nil {
		setIf(&d.Meta.Name, doc.Meta.Name)
		setIf(&d.Meta.CreatedBy, doc.Meta.CreatedBy)
		setIf(&d.Meta.Notes, doc.Meta.Notes)
	}
	if f := doc.Forecast; f != nil {
		setIf(&d.Forecast.HorizonDays, f.HorizonDays)
		setIf(&d.Forecast.LeadTimeDays, f.LeadTimeDays)
		if f.Granularity != nil {
			d.Forecast.Granularity = forecastapi.Granularity(*f.Granularity)
		}
		setIf(&d.Forecast.Hierarchy, f.Hierarchy)
		setIf(&d.Forecast.Country, f.Country)
		setIf(&d.Forecast.PromoCalendarPath, f.PromoCalendarPath)
	}
	return d, nil
}

// LoadTemplate downloads a previously saved configuration and merges it
// into the current draft.
func (m *Machine) LoadTemplate(ctx context.Context, entry forecastapi.HistoryEntry) error {
	m.mu.Lock()
	env := entry.Env
	if env == "" {
		env = string(m.env)
	}
	m.mu.Unlock()

	export, err := m.api.DownloadConfig(ctx, env, ConfigRootPath(entry.Path))
	if err != nil {
		m.fail(err)
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := MergeTemplate(m.draft, export)
	if err != nil {
		m.errMsg = err.Error()
		return err
	}
	m.draft = next
	m.revision++
	m.errMsg = ""
	m.log().Info("wizard: loaded template", zap.String("path", export.Path), zap.String("env", env))
	return nil
}
