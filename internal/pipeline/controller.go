package pipeline

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/forecast-cli/internal/model"
	"github.com/sells-group/forecast-cli/pkg/forecastapi"
)

var (
	// ErrInFlight is returned by Run while the current stage is running.
	ErrInFlight = eris.New("pipeline: stage already running")
	// ErrStale is returned by Run when the cursor moved before the stage
	// answered. The answer is dropped.
	ErrStale = eris.New("pipeline: result discarded after navigation")
)

// StageRunner posts to a stage endpoint. forecastapi.Client satisfies it.
type StageRunner interface {
	RunStage(ctx context.Context, endpoint string) (*forecastapi.StageResult, error)
}

// Recorder persists finished stage attempts.
type Recorder interface {
	RecordStageRun(ctx context.Context, run model.StageRun) error
}

// State is a point-in-time copy of the controller.
type State struct {
	Cursor   int               `json:"cursor"`
	Stage    Stage             `json:"stage"`
	Total    int               `json:"total"`
	Status   model.StageStatus `json:"status"`
	Summary  map[string]any    `json:"summary,omitempty"`
	Error    string            `json:"error,omitempty"`
	Complete bool              `json:"complete"`
}

// Option configures a Controller.
type Option func(*Controller)

// WithRecorder records every finished attempt. Recorder errors are logged
// and never fail the run.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) {
		c.recorder = r
	}
}

// WithLogger overrides the global logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithStartStage places the cursor on the stage with the given ID, for a
// session whose earlier stages already ran on the service. Unknown IDs
// leave the cursor on the first stage.
func WithStartStage(id string) Option {
	return func(c *Controller) {
		if i := c.indexOf(id); i >= 0 {
			c.cursor = i
		}
	}
}

// Controller runs stages in order. At most one stage call is outstanding,
// and the cursor only moves forward past a succeeded stage.
type Controller struct {
	runner   StageRunner
	stages   []Stage
	recorder Recorder
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	cursor  int
	status  model.StageStatus
	summary map[string]any
	errMsg  string
	epoch   uint64
}

// NewController creates a controller positioned at the first stage. A nil
// or empty stage list uses DefaultStages.
func NewController(runner StageRunner, stages []Stage, opts ...Option) *Controller {
	if len(stages) == 0 {
		stages = DefaultStages()
	}
	c := &Controller{
		runner: runner,
		stages: append([]Stage(nil), stages...),
		now:    time.Now,
		status: model.StageIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) indexOf(id string) int {
	for i, s := range c.stages {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func (c *Controller) log() *zap.Logger {
	if c.logger != nil {
		return c.logger
	}
	return zap.L()
}

// Stages returns the stage list.
func (c *Controller) Stages() []Stage {
	return append([]Stage(nil), c.stages...)
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Cursor:   c.cursor,
		Stage:    c.stages[c.cursor],
		Total:    len(c.stages),
		Status:   c.status,
		Summary:  maps.Clone(c.summary),
		Error:    c.errMsg,
		Complete: c.completeLocked(),
	}
}

// Run invokes the current stage. The outcome is stored in the controller
// and also returned. A canceled call puts the stage back to idle.
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.status == model.StageRunning {
		c.mu.Unlock()
		return ErrInFlight
	}
	stage := c.stages[c.cursor]
	epoch := c.epoch
	c.status = model.StageRunning
	c.summary = nil
	c.errMsg = ""
	c.mu.Unlock()

	log := c.log().With(zap.String("stage", stage.ID))
	log.Info("pipeline: running stage", zap.String("endpoint", stage.Endpoint))

	started := c.now()
	res, err := c.runner.RunStage(ctx, stage.Endpoint)
	finished := c.now()

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		log.Debug("pipeline: discarding result after navigation")
		return ErrStale
	}

	run := model.StageRun{
		ID:         uuid.New().String(),
		StageID:    stage.ID,
		Endpoint:   stage.Endpoint,
		StartedAt:  started,
		FinishedAt: finished,
	}
	switch {
	case err != nil && forecastapi.IsCanceled(err):
		c.status = model.StageIdle
		c.mu.Unlock()
		log.Debug("pipeline: stage canceled")
		return err
	case err != nil:
		c.status = model.StageFailed
		c.errMsg = err.Error()
		run.Status = model.StageFailed
		run.Error = c.errMsg
	default:
		summary := map[string]any{}
		if res != nil && res.Summary != nil {
			summary = res.Summary
		}
		c.status = model.StageSucceeded
		c.summary = summary
		run.Status = model.StageSucceeded
		run.Summary = maps.Clone(summary)
	}
	c.mu.Unlock()

	if err != nil {
		log.Warn("pipeline: stage failed", zap.Error(err), zap.Duration("duration", run.Duration()))
	} else {
		log.Info("pipeline: stage succeeded", zap.Duration("duration", run.Duration()))
	}
	c.record(ctx, run)
	return err
}

func (c *Controller) record(ctx context.Context, run model.StageRun) {
	if c.recorder == nil {
		return
	}
	// The run already finished; a canceled caller should not lose the record.
	if err := c.recorder.RecordStageRun(context.WithoutCancel(ctx), run); err != nil {
		c.log().Warn("pipeline: failed to record stage run",
			zap.String("stage", run.StageID),
			zap.Error(err),
		)
	}
}

// Advance moves to the next stage when the current one succeeded. It
// reports whether the cursor moved.
func (c *Controller) Advance() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != model.StageSucceeded || c.cursor >= len(c.stages)-1 {
		return false
	}
	c.cursor++
	c.resetLocked()
	return true
}

// Retreat moves to the previous stage. Artifacts later stages produced on
// the service are left in place.
func (c *Controller) Retreat() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cursor == 0 {
		return false
	}
	c.cursor--
	c.resetLocked()
	return true
}

// Complete reports whether the final stage succeeded.
func (c *Controller) Complete() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completeLocked()
}

func (c *Controller) completeLocked() bool {
	return c.cursor == len(c.stages)-1 && c.status == model.StageSucceeded
}

func (c *Controller) resetLocked() {
	c.status = model.StageIdle
	c.summary = nil
	c.errMsg = ""
	c.epoch++
}

// RunAll runs the remaining stages in order, stopping at the first failure.
func (c *Controller) RunAll(ctx context.Context) error {
	for {
		if err := c.Run(ctx); err != nil {
			return err
		}
		if !c.Advance() {
			return nil
		}
	}
}
