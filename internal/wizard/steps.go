package wizard

import (
	"fmt"
	"strings"
)

// Step is a wizard position.
type Step int

const (
	StepTiming Step = iota
	StepStructure
	StepSpecialEvents
	StepReview
	StepSuccess
)

var stepNames = [...]string{"timing", "structure", "special_events", "review", "success"}

// Steps lists every step in order.
var Steps = []Step{StepTiming, StepStructure, StepSpecialEvents, StepReview, StepSuccess}

func (s Step) String() string {
	if s < 0 || int(s) >= len(stepNames) {
		return fmt.Sprintf("step(%d)", int(s))
	}
	return stepNames[s]
}

// MarshalText renders the step name.
func (s Step) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether s is the success step.
func (s Step) Terminal() bool {
	return s == StepSuccess
}

// ValidationError blocks a forward move.
type ValidationError struct {
	Step    Step
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validate returns the problem that keeps d from leaving step s, or nil.
// Review and success have no structural precondition.
func Validate(s Step, d Draft) *ValidationError {
	var msg string
	switch s {
	case StepTiming:
		f := d.Forecast
		switch {
		case f.HorizonDays < 1:
			msg = "Forecast horizon must be at least 1 day."
		case f.LeadTimeDays < 0:
			msg = "Lead time cannot be negative."
		case f.HorizonDays < f.LeadTimeDays:
			msg = "Forecast horizon must be greater than or equal to lead time."
		case !f.Granularity.Valid():
			msg = "Granularity must be daily, weekly or monthly."
		}
	case StepStructure:
		var missing []string
		if blank(d.Meta.Name) {
			missing = append(missing, "config name")
		}
		if blank(d.Meta.CreatedBy) {
			missing = append(missing, "created by")
		}
		if blank(d.Forecast.Hierarchy) {
			missing = append(missing, "hierarchy")
		}
		if blank(d.Forecast.Country) {
			missing = append(missing, "country")
		}
		if len(missing) > 0 {
			msg = "Fill in " + strings.Join(missing, ", ") + "."
		}
	case StepSpecialEvents:
		if blank(d.Forecast.PromoCalendarPath) {
			msg = "Promo calendar path is required."
		}
	}
	if msg == "" {
		return nil
	}
	return &ValidationError{Step: s, Message: msg}
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
