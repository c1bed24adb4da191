package wizard

import (
	"context"
	"io"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/forecast-cli/internal/model"
	"github.com/sells-group/forecast-cli/pkg/forecastapi"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) Defaults(ctx context.Context) (*forecastapi.Defaults, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*forecastapi.Defaults), args.Error(1)
}

func (m *mockAPI) SaveConfig(ctx context.Context, doc forecastapi.ConfigDocument, env, role string) (*forecastapi.SaveResult, error) {
	args := m.Called(ctx, doc, env, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*forecastapi.SaveResult), args.Error(1)
}

func (m *mockAPI) DownloadConfig(ctx context.Context, env, path string) (*forecastapi.ConfigExport, error) {
	args := m.Called(ctx, env, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*forecastapi.ConfigExport), args.Error(1)
}

func (m *mockAPI) Versions(ctx context.Context, env string, limit int) ([]forecastapi.HistoryEntry, error) {
	args := m.Called(ctx, env, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]forecastapi.HistoryEntry), args.Error(1)
}

func (m *mockAPI) UploadPromoCalendar(ctx context.Context, env, role, filename string, content io.Reader) (*forecastapi.PromoPreview, error) {
	args := m.Called(ctx, env, role, filename, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*forecastapi.PromoPreview), args.Error(1)
}

type fakeClearer struct {
	calls int
	err   error
}

func (c *fakeClearer) Clear() error {
	c.calls++
	return c.err
}

type memSnapshots struct {
	mu    sync.Mutex
	snaps []model.ConfigSnapshot
}

func (s *memSnapshots) SaveSnapshot(_ context.Context, snap model.ConfigSnapshot) (*model.ConfigSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = append(s.snaps, snap)
	return &snap, nil
}
