package handlers

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/dissent/internal/cache"
	"github.com/stwalsh4118/dissent/internal/dataset"
	"github.com/stwalsh4118/dissent/internal/logger"
	"github.com/stwalsh4118/dissent/internal/middleware"
	"github.com/stwalsh4118/dissent/internal/models"
	"github.com/stwalsh4118/dissent/internal/pipeline"
	"github.com/stwalsh4118/dissent/internal/population"
	"github.com/stwalsh4118/dissent/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func floatPtr(v float64) *float64 { return &v }

func day(s string) *time.Time {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func handlerFixture() []models.Event {
	return []models.Event{
		{ID: 1, Title: "Rally A", State: "TX", Locality: "Austin", Date: day("2025-01-01"),
			Lat: floatPtr(30.27), Lon: floatPtr(-97.74), SizeMean: floatPtr(100), Organizations: "indivisible"},
		{ID: 2, Title: "Rally B", State: "TX", Locality: "Austin", Date: day("2025-01-01"),
			Lat: floatPtr(30.27), Lon: floatPtr(-97.74), SizeMean: floatPtr(300)},
		{ID: 3, Title: "March", State: "CA", Locality: "Oakland", Date: day("2025-01-02"),
			Lat: floatPtr(37.8), Lon: floatPtr(-122.27), Arrests: floatPtr(2)},
		{ID: 4, Title: "Vigil", State: "NY", Locality: "New York", Date: day("2025-01-03"),
			SizeMean: floatPtr(50)},
	}
}

// newFixtureService returns a DashboardService over handlerFixture. When loaded is false
// the dataset is never loaded.
func newFixtureService(t *testing.T, loaded bool) services.DashboardService {
	t.Helper()
	holder := dataset.NewHolder(func(ctx context.Context) (*dataset.Dataset, error) {
		return dataset.New(handlerFixture(), 0, dataset.OriginMemory, time.Date(2025, 1, 4, 0, 0, 0, 0, time.UTC)), nil
	})
	if loaded {
		_, _, err := holder.Reload(context.Background())
		require.NoError(t, err)
	}
	return services.NewDashboardService(
		holder,
		cache.NewMemo[pipeline.Result](time.Minute, time.Minute),
		&population.Table{National: 10000, States: map[string]float64{"TX": 1000}},
		nil,
		services.DashboardOptions{Clock: clockwork.NewFakeClock(), NationalPopulation: 10000},
		logger.Nop(),
	)
}

// newTestRouter returns a router with the request ID and logger middleware installed.
func newTestRouter() *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger.Nop()))
	return router
}

// MockDashboardService is a mock implementation of DashboardService for testing
type MockDashboardService struct {
	mock.Mock
}

func (m *MockDashboardService) Dashboard(ctx context.Context, params pipeline.Params) (*pipeline.Result, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pipeline.Result), args.Error(1)
}

func (m *MockDashboardService) Events(ctx context.Context, params pipeline.Params, page services.Page) (*services.EventPage, error) {
	args := m.Called(ctx, params, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.EventPage), args.Error(1)
}

func (m *MockDashboardService) LocationEvents(ctx context.Context, params pipeline.Params, label string) ([]models.Event, error) {
	args := m.Called(ctx, params, label)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Event), args.Error(1)
}

func (m *MockDashboardService) FilterOptions(ctx context.Context, states []string) (*services.FilterOptions, error) {
	args := m.Called(ctx, states)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.FilterOptions), args.Error(1)
}

func (m *MockDashboardService) Export(ctx context.Context, w io.Writer, params pipeline.Params, scope services.ExportScope) (int, error) {
	args := m.Called(ctx, w, params, scope)
	return args.Int(0), args.Error(1)
}

func (m *MockDashboardService) Info(ctx context.Context) (*services.DatasetInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.DatasetInfo), args.Error(1)
}

func (m *MockDashboardService) Reload(ctx context.Context) (*services.DatasetInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.DatasetInfo), args.Error(1)
}
