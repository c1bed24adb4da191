package wizard

import (
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/forecast-cli/internal/notify"
	"github.com/sells-group/forecast-cli/pkg/forecastapi"
)

// Hierarchy values reported by the detection step.
const (
	DetectedSingle = "single-restaurant"
	DetectedMulti  = "multi-location"
)

// HierarchyLabel translates a detected hierarchy into the label the draft
// uses. Unknown values pass through.
func HierarchyLabel(detected string) string {
	switch strings.TrimSpace(detected) {
	case DetectedSingle:
		return HierarchySingle
	case DetectedMulti:
		return HierarchyMulti
	}
	return detected
}

// ObserveDetected records the latest detected summary and merges its
// suggested settings into the draft the first time its ID is seen. A nil
// notice means the summary was cleared. It reports whether the draft
// changed.
func (m *Machine) ObserveDetected(n *notify.Notice) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.detected = n
	if n == nil {
		m.appliedID = ""
		return false
	}
	if n.ID == m.appliedID {
		return false
	}

	m.draft = mergeSuggested(m.draft, n.Summary.SuggestedConfig)
	m.appliedID = n.ID
	m.revision++
	m.log().Info("wizard: applied detected defaults",
		zap.String("notice_id", n.ID),
		zap.Int("horizon_days", m.draft.Forecast.HorizonDays),
		zap.String("granularity", string(m.draft.Forecast.Granularity)),
	)
	return true
}

func mergeSuggested(d Draft, s forecastapi.SuggestedConfig) Draft {
	d.Forecast.HorizonDays = s.ForecastHorizonDays
	d.Forecast.LeadTimeDays = s.LeadTimeDays
	d.Forecast.Granularity = s.Granularity
	d.Forecast.Hierarchy = HierarchyLabel(s.Hierarchy)
	if !blank(s.Country) {
		d.Forecast.Country = s.Country
	}
	return d
}

// ClearDetected removes the shared summary and forgets which notice was
// applied. The draft keeps whatever was merged.
func (m *Machine) ClearDetected() error {
	if m.clearer != nil {
		if err := m.clearer.Clear(); err != nil {
			return eris.Wrap(err, "wizard: clear detected summary")
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.detected = nil
	m.appliedID = ""
	return nil
}
