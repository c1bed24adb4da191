package pipeline

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/forecast-cli/internal/model"
	"github.com/sells-group/forecast-cli/pkg/forecastapi"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) RunStage(ctx context.Context, endpoint string) (*forecastapi.StageResult, error) {
	args := m.Called(ctx, endpoint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*forecastapi.StageResult), args.Error(1)
}

// gatedRunner blocks every call until release is closed.
type gatedRunner struct {
	started chan string
	release chan struct{}
	result  *forecastapi.StageResult
	err     error

	mu    sync.Mutex
	calls int
}

func newGatedRunner() *gatedRunner {
	return &gatedRunner{
		started: make(chan string, 8),
		release: make(chan struct{}),
		result:  &forecastapi.StageResult{Status: "success", Summary: map[string]any{"rows": 10.0}},
	}
}

func (g *gatedRunner) RunStage(ctx context.Context, endpoint string) (*forecastapi.StageResult, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	g.started <- endpoint
	select {
	case <-g.release:
		return g.result, g.err
	case <-ctx.Done():
		return nil, &forecastapi.Error{Kind: forecastapi.KindCanceled, Endpoint: endpoint, Err: ctx.Err()}
	}
}

func (g *gatedRunner) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type memRecorder struct {
	mu   sync.Mutex
	runs []model.StageRun
	err  error
}

func (r *memRecorder) RecordStageRun(_ context.Context, run model.StageRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	return r.err
}

func (r *memRecorder) Runs() []model.StageRun {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.StageRun(nil), r.runs...)
}
