package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/app"
	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/clock/system"
	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/config"
	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/dataset"
	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/metrics"
	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/storage/memory"
)

func init() {
	metrics.Init()
}

// MockCloser records shutdown calls.
type MockCloser struct {
	mock.Mock
}

// Close satisfies app.Closer for the mock.
func (m *MockCloser) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func testConfig(t *testing.T, apiURL string) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.API.BaseURL = apiURL
	cfg.API.PageDelay = 0
	cfg.Ingest.Regions = []int{1061, 1146}
	cfg.Ingest.Workers = 2
	cfg.Storage.Provider = "memory"
	cfg.Dataset.Path = filepath.Join(t.TempDir(), "superset", "arctic_vacancies.parquet")
	cfg.Dashboard.DataPath = cfg.Dataset.Path
	return cfg
}

func TestPipelineEndToEnd(t *testing.T) {
	t.Parallel()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		area := r.URL.Query().Get("area")
		items := []map[string]any{
			{"id": "shared", "name": "Welder", "area": map[string]string{"name": "Arctic"}},
			{"id": "only-" + area, "name": "Cook", "area": map[string]string{"name": area},
				"salary": map[string]any{"from": 50000, "to": 70000, "currency": "RUR"}},
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": items, "pages": 1})
	}))
	defer api.Close()

	cfg := testConfig(t, api.URL)
	a, err := app.New(context.Background(), cfg, nil,
		app.WithClock(system.Fixed(time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC))))
	require.NoError(t, err)
	defer a.Close(context.Background())

	report, err := a.Pipeline().Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, report.Ingest.Total)
	require.Empty(t, report.Ingest.Failures)
	require.Equal(t, 3, report.Dataset.Rows)

	rows, err := dataset.Read(cfg.Dataset.Path)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	rec := httptest.NewRecorder()
	app.Dashboard(cfg, nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/summary", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"count":2`)
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "http://localhost")
	cfg.Storage.Provider = "sqlite"
	_, err := app.New(context.Background(), cfg, nil)
	require.ErrorContains(t, err, "unknown storage provider")
}

func TestNewWithStoreSkipsConnection(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "http://localhost")
	cfg.Storage.Provider = "postgres"
	store := memory.NewRawStore()
	a, err := app.New(context.Background(), cfg, nil, app.WithStore(store))
	require.NoError(t, err)
	require.Same(t, store, a.Store())
	a.Close(context.Background())
}

func TestCloseRunsClosersInReverse(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "http://localhost")
	a, err := app.New(context.Background(), cfg, nil)
	require.NoError(t, err)

	var order []string
	first, second := &MockCloser{}, &MockCloser{}
	first.On("Close", mock.Anything).Run(func(mock.Arguments) { order = append(order, "first") }).Return(nil)
	second.On("Close", mock.Anything).Run(func(mock.Arguments) { order = append(order, "second") }).Return(errors.New("boom"))
	a.AddCloser(first.Close)
	a.AddCloser(second.Close)

	a.Close(context.Background())
	first.AssertExpectations(t)
	second.AssertExpectations(t)
	require.Equal(t, []string{"second", "first"}, order)

	a.Close(context.Background())
	first.AssertNumberOfCalls(t, "Close", 1)
}
