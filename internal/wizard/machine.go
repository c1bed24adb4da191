package wizard

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/forecast-cli/internal/model"
	"github.com/sells-group/forecast-cli/internal/notify"
	"github.com/sells-group/forecast-cli/pkg/forecastapi"
)

var (
	// ErrReadOnly is returned by interaction layers when a viewer tries to
	// mutate the draft. The machine itself never returns it.
	ErrReadOnly = eris.New("wizard: read-only role")
	// ErrNotReviewing is returned by Confirm outside the review step.
	ErrNotReviewing = eris.New("wizard: confirm is only available on the review step")
	// ErrBusy is returned while a save is outstanding.
	ErrBusy = eris.New("wizard: save already in progress")
)

// API is the part of the forecast service the wizard uses.
type API interface {
	Defaults(ctx context.Context) (*forecastapi.Defaults, error)
	SaveConfig(ctx context.Context, doc forecastapi.ConfigDocument, env, role string) (*forecastapi.SaveResult, error)
	DownloadConfig(ctx context.Context, env, path string) (*forecastapi.ConfigExport, error)
	Versions(ctx context.Context, env string, limit int) ([]forecastapi.HistoryEntry, error)
	UploadPromoCalendar(ctx context.Context, env, role, filename string, content io.Reader) (*forecastapi.PromoPreview, error)
}

// DetectedClearer removes the shared detected summary.
type DetectedClearer interface {
	Clear() error
}

// SnapshotStore keeps a local copy of every saved configuration.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap model.ConfigSnapshot) (*model.ConfigSnapshot, error)
}

// SaveInfo describes the last successful save.
type SaveInfo struct {
	Path    string    `json:"path"`
	SavedAt time.Time `json:"saved_at"`
	SavedBy string    `json:"saved_by"`
}

// State is a point-in-time copy of the machine.
type State struct {
	Step            Step                       `json:"step"`
	Draft           Draft                      `json:"draft"`
	Revision        int                        `json:"revision"`
	Role            model.Role                 `json:"role"`
	Env             model.Environment          `json:"env"`
	CanEdit         bool                       `json:"can_edit"`
	Validation      string                     `json:"validation,omitempty"`
	Warnings        []string                   `json:"warnings,omitempty"`
	Error           string                     `json:"error,omitempty"`
	History         []forecastapi.HistoryEntry `json:"history"`
	HistoryError    string                     `json:"history_error,omitempty"`
	LastSaved       *Draft                     `json:"last_saved,omitempty"`
	SaveInfo        *SaveInfo                  `json:"save_info,omitempty"`
	Detected        *notify.Notice             `json:"detected,omitempty"`
	DetectedApplied bool                       `json:"detected_applied"`
	Promo           *forecastapi.PromoPreview  `json:"promo,omitempty"`
}

// Option configures a Machine.
type Option func(*Machine)

// WithDetectedClearer wires the shared detected-summary channel.
func WithDetectedClearer(c DetectedClearer) Option {
	return func(m *Machine) {
		m.clearer = c
	}
}

// WithSnapshotStore records saved drafts locally.
func WithSnapshotStore(s SnapshotStore) Option {
	return func(m *Machine) {
		m.snapshots = s
	}
}

// WithRole sets the initial role.
func WithRole(r model.Role) Option {
	return func(m *Machine) {
		m.role = r
	}
}

// WithEnvironment sets the initial environment.
func WithEnvironment(e model.Environment) Option {
	return func(m *Machine) {
		m.env = e
	}
}

// WithLogger overrides the global logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Machine) {
		m.logger = l
	}
}

// Machine owns the draft and the step cursor. Network calls are made
// without holding the lock.
type Machine struct {
	api       API
	clearer   DetectedClearer
	snapshots SnapshotStore
	logger    *zap.Logger
	now       func() time.Time

	mu         sync.Mutex
	step       Step
	draft      Draft
	defaults   Draft
	revision   int
	role       model.Role
	env        model.Environment
	validation string
	warnings   []string
	errMsg     string
	history    []forecastapi.HistoryEntry
	historyErr string
	lastSaved  *Draft
	saveInfo   *SaveInfo
	detected   *notify.Notice
	appliedID  string
	promo      *forecastapi.PromoPreview
	saving     bool
}

// New creates a machine at the timing step with the fallback draft. Call
// LoadDefaults to seed it from the service.
func New(api API, opts ...Option) *Machine {
	m := &Machine{
		api:      api,
		now:      time.Now,
		role:     model.RoleEditor,
		env:      model.EnvDev,
		defaults: FallbackDraft(),
	}
	m.draft = m.defaults
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Machine) log() *zap.Logger {
	if m.logger != nil {
		return m.logger
	}
	return zap.L()
}

// State returns a copy of the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := State{
		Step:            m.step,
		Draft:           m.draft,
		Revision:        m.revision,
		Role:            m.role,
		Env:             m.env,
		CanEdit:         m.role.CanEdit(),
		Validation:      m.validation,
		Warnings:        append([]string(nil), m.warnings...),
		Error:           m.errMsg,
		History:         append([]forecastapi.HistoryEntry(nil), m.history...),
		HistoryError:    m.historyErr,
		Detected:        m.detected,
		DetectedApplied: m.detected != nil && m.detected.ID == m.appliedID,
		Promo:           m.promo,
	}
	if m.lastSaved != nil {
		d := *m.lastSaved
		st.LastSaved = &d
	}
	if m.saveInfo != nil {
		info := *m.saveInfo
		st.SaveInfo = &info
	}
	return st
}

// Draft returns the current draft.
func (m *Machine) Draft() Draft {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.draft
}

// Step returns the current step.
func (m *Machine) Step() Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.step
}

// CanEdit reports whether the current role may mutate the draft.
func (m *Machine) CanEdit() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.role.CanEdit()
}

// Dispatch applies an intent to the draft. A RESET_DRAFT without a draft
// restores the loaded defaults.
func (m *Machine) Dispatch(in Intent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if in.Type == IntentResetDraft && in.Draft == nil {
		d := m.defaults
		in.Draft = &d
	}
	next, err := Reduce(m.draft, in)
	if err != nil {
		return err
	}
	m.draft = next
	m.revision++
	m.validation = ""
	return nil
}

// Next moves forward when the current step is valid. A blocked move
// returns a *ValidationError and records its message.
func (m *Machine) Next() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.step >= StepReview {
		return eris.Errorf("wizard: no step after %s", m.step)
	}
	if verr := Validate(m.step, m.draft); verr != nil {
		m.validation = verr.Message
		return verr
	}
	m.step++
	m.validation = ""
	return nil
}

// Back moves to the previous step. The success step only leaves through
// Reset.
func (m *Machine) Back() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.step == StepTiming || m.step.Terminal() {
		return false
	}
	m.step--
	m.validation = ""
	return true
}

// Reset returns to the first step with the loaded defaults. History and
// the last save are kept.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.step = StepTiming
	m.draft = m.defaults
	m.revision++
	m.validation = ""
	m.warnings = nil
	m.errMsg = ""
	m.promo = nil
}

// SetRole changes the session role.
func (m *Machine) SetRole(r model.Role) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.role = r
}

// SetEnvironment switches the target environment and reloads its history.
func (m *Machine) SetEnvironment(ctx context.Context, env model.Environment) error {
	m.mu.Lock()
	changed := m.env != env
	m.env = env
	if changed {
		m.history = nil
		m.historyErr = ""
	}
	m.mu.Unlock()

	if !changed {
		return nil
	}
	return m.RefreshHistory(ctx)
}

// LoadDefaults fetches the service defaults. An untouched draft is
// replaced by them.
func (m *Machine) LoadDefaults(ctx context.Context) error {
	d, err := m.api.Defaults(ctx)
	if err != nil {
		m.fail(err)
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaults = DraftFromDefaults(*d)
	if m.revision == 0 {
		m.draft = m.defaults
	}
	return nil
}

// RefreshHistory reloads saved versions for the active environment.
// Failures are recorded separately from save errors.
func (m *Machine) RefreshHistory(ctx context.Context) error {
	m.mu.Lock()
	env := m.env
	m.mu.Unlock()

	history, err := m.api.Versions(ctx, string(env), 0)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.env != env {
		return nil
	}
	if err != nil {
		if !forecastapi.IsCanceled(err) {
			m.historyErr = err.Error()
		}
		return err
	}
	m.history = history
	m.historyErr = ""
	return nil
}

// fail records a user-visible error unless the call was canceled.
func (m *Machine) fail(err error) {
	if forecastapi.IsCanceled(err) {
		return
	}
	m.mu.Lock()
	m.errMsg = err.Error()
	m.mu.Unlock()
}
