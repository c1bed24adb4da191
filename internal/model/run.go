package model

import "time"

// StageStatus is the status of the pipeline stage under the cursor.
type StageStatus string

const (
	StageIdle      StageStatus = "idle"
	StageRunning   StageStatus = "running"
	StageSucceeded StageStatus = "succeeded"
	StageFailed    StageStatus = "failed"
)

// Terminal reports whether the status is a finished attempt.
func (s StageStatus) Terminal() bool {
	return s == StageSucceeded || s == StageFailed
}

// StageRun is one recorded attempt of a processing stage.
type StageRun struct {
	ID         string         `json:"id"`
	StageID    string         `json:"stage_id"`
	Endpoint   string         `json:"endpoint"`
	Status     StageStatus    `json:"status"`
	Summary    map[string]any `json:"summary,omitempty"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// Duration is the wall time of the attempt.
func (r StageRun) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// ConfigSnapshot is a locally kept copy of a configuration saved through
// the wizard.
type ConfigSnapshot struct {
	ID       string      `json:"id"`
	Env      Environment `json:"env"`
	Path     string      `json:"path"`
	Name     string      `json:"name"`
	SavedBy  string      `json:"saved_by"`
	Role     Role        `json:"role"`
	Document []byte      `json:"document"` // YAML
	Warnings []string    `json:"warnings,omitempty"`
	SavedAt  time.Time   `json:"saved_at"`
}
