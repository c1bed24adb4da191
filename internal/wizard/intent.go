package wizard

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/forecast-cli/pkg/forecastapi"
)

// Intent types.
const (
	IntentSetField   = "SET_FIELD"
	IntentResetDraft = "RESET_DRAFT"
)

// Draft field paths accepted by SET_FIELD.
const (
	FieldConfigVersion     = "config_version"
	FieldVersionTag        = "version_tag"
	FieldName              = "meta.name"
	FieldCreatedBy         = "meta.created_by"
	FieldNotes             = "meta.notes"
	FieldHorizonDays       = "forecast.horizon_days"
	FieldLeadTimeDays      = "forecast.lead_time_days"
	FieldGranularity       = "forecast.granularity"
	FieldHierarchy         = "forecast.hierarchy"
	FieldCountry           = "forecast.country"
	FieldPromoCalendarPath = "forecast.promo_calendar_path"
	FieldPromoScope        = "forecast.promo_scope"
)

// Fields lists every settable field path.
var Fields = []string{
	FieldConfigVersion, FieldVersionTag,
	FieldName, FieldCreatedBy, FieldNotes,
	FieldHorizonDays, FieldLeadTimeDays, FieldGranularity, FieldHierarchy,
	FieldCountry, FieldPromoCalendarPath, FieldPromoScope,
}

// Intent is a single draft edit emitted by a step.
type Intent struct {
	Type  string `json:"type"`
	Field string `json:"field,omitempty"`
	Value any    `json:"value,omitempty"`
	// Draft replaces the whole draft for RESET_DRAFT.
	Draft *Draft `json:"draft,omitempty"`
}

// SetField builds a SET_FIELD intent.
func SetField(field string, value any) Intent {
	return Intent{Type: IntentSetField, Field: field, Value: value}
}

// Reduce applies in to d and returns the new draft. d is never modified.
func Reduce(d Draft, in Intent) (Draft, error) {
	switch in.Type {
	case IntentResetDraft:
		if in.Draft == nil {
			return d, eris.New("wizard: reset without a draft")
		}
		return *in.Draft, nil
	case IntentSetField:
		return setField(d, in.Field, in.Value)
	default:
		return d, eris.Errorf("wizard: unknown intent %q", in.Type)
	}
}

func setField(d Draft, field string, value any) (Draft, error) {
	if isIntField(field) {
		n, err := toInt(value)
		if err != nil {
			return d, eris.Wrapf(err, "wizard: set %s", field)
		}
		switch field {
		case FieldHorizonDays:
			d.Forecast.HorizonDays = n
		case FieldLeadTimeDays:
			d.Forecast.LeadTimeDays = n
		}
		return d, nil
	}

	s, err := toString(value)
	if err != nil {
		return d, eris.Wrapf(err, "wizard: set %s", field)
	}
	switch field {
	case FieldConfigVersion:
		d.ConfigVersion = s
	case FieldVersionTag:
		d.VersionTag = s
	case FieldName:
		d.Meta.Name = s
	case FieldCreatedBy:
		d.Meta.CreatedBy = s
	case FieldNotes:
		d.Meta.Notes = s
	case FieldGranularity:
		if g, ok := forecastapi.ParseGranularity(s); ok {
			d.Forecast.Granularity = g
		} else {
			d.Forecast.Granularity = forecastapi.Granularity(s)
		}
	case FieldHierarchy:
		d.Forecast.Hierarchy = s
	case FieldCountry:
		d.Forecast.Country = s
	case FieldPromoCalendarPath:
		d.Forecast.PromoCalendarPath = s
	case FieldPromoScope:
		d.Forecast.PromoScope = s
	default:
		return d, eris.Errorf("wizard: unknown field %q", field)
	}
	return d, nil
}

func isIntField(field string) bool {
	return field == FieldHorizonDays || field == FieldLeadTimeDays
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%v is not a whole number", n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		return int(i), err
	case string:
		return strconv.Atoi(strings.TrimSpace(n))
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}

func toString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case nil:
		return "", nil
	default:
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.String {
			return rv.String(), nil
		}
		return "", fmt.Errorf("expected text, got %T", v)
	}
}
