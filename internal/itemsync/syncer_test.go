package itemsync

import (
	"context"
	"testing"
	"time"
	_ "time/tzdata"

	"example.com/backstage/services/erpgateway/internal/cache"
	"example.com/backstage/services/erpgateway/internal/erptest"
	"example.com/backstage/services/erpgateway/internal/gateway"
	"example.com/backstage/services/erpgateway/internal/messaging"
	"example.com/backstage/services/erpgateway/internal/metrics"
	"example.com/backstage/services/erpgateway/internal/models"
	"example.com/backstage/services/erpgateway/internal/search"
	"example.com/backstage/services/erpgateway/internal/session"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Mock indexer for testing
type MockIndexer struct {
	mock.Mock
}

func (m *MockIndexer) IndexItems(ctx context.Context, docs []search.ItemDocument) error {
	args := m.Called(ctx, docs)
	return args.Error(0)
}

// Mock cache for testing
type MockCache struct {
	mock.Mock
}

func (m *MockCache) InvalidatePrefix(ctx context.Context, prefix string) error {
	args := m.Called(ctx, prefix)
	return args.Error(0)
}

// Mock publisher for testing
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, eventType string, data interface{}) error {
	args := m.Called(ctx, eventType, data)
	return args.Error(0)
}

func (m *MockPublisher) PublishAll(ctx context.Context, eventType string, data []interface{}) error {
	args := m.Called(ctx, eventType, data)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	return m.Called().Error(0)
}

var (
	helsinki, _ = time.LoadLocation("Europe/Helsinki")
	groups      = []models.GroupProperty{{Code: 100, PropertyName: "Properties5", IsFrozen: true}}
	start       = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
)

func changedItem(code, date, clock string) models.Item {
	it := models.Item{ItemCode: code, ItemName: "Item " + code, UpdateDate: date, UpdateTime: clock}
	it.Properties[4] = "tYES"
	it.Properties[27] = "tYES"
	return it
}

type fixture struct {
	srv       *erptest.Server
	syncer    *Syncer
	cps       *MemoryCheckpoints
	indexer   *MockIndexer
	cache     *MockCache
	publisher *MockPublisher
	metrics   *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := erptest.NewServer()
	t.Cleanup(srv.Close)

	f := &fixture{
		srv:       srv,
		cps:       NewMemoryCheckpoints(),
		indexer:   new(MockIndexer),
		cache:     new(MockCache),
		publisher: new(MockPublisher),
		metrics:   metrics.NewMetrics(),
	}
	manager := session.NewManager(srv.BaseURL(), session.Credentials{CompanyDB: "SBODEMO"}, srv.Client(), f.metrics)
	f.syncer = NewSyncer(manager, gateway.NewClient(f.metrics, 2), groups, start, helsinki, Options{
		Checkpoints: f.cps,
		Indexer:     f.indexer,
		Cache:       f.cache,
		Publisher:   f.publisher,
		Metrics:     f.metrics,
	})
	return f
}

func TestRunSyncsChangedItems(t *testing.T) {
	f := newFixture(t)
	f.srv.Seed("Items",
		changedItem("A1", "2024-03-01", "10:00:00"),
		changedItem("A2", "2024-03-02T00:00:00Z", "08:15:30"),
		changedItem("A3", "", ""),
	)

	f.indexer.On("IndexItems", mock.Anything, mock.MatchedBy(func(docs []search.ItemDocument) bool {
		return len(docs) == 2 && docs[0].ItemCode == "A1" && *docs[0].GroupCode == 100 && docs[0].Frozen && !docs[0].Organic
	})).Return(nil)
	f.publisher.On("PublishAll", mock.Anything, messaging.EventItemChanged, mock.MatchedBy(func(events []interface{}) bool {
		return len(events) == 2
	})).Return(nil)
	f.cache.On("InvalidatePrefix", mock.Anything, cache.ItemPagePrefix).Return(nil)

	result, err := f.syncer.Run(context.Background())
	require.NoError(t, err)

	newest := time.Date(2024, 3, 2, 8, 15, 30, 0, helsinki)
	assert.Equal(t, 2, result.Synced)
	assert.Equal(t, 1, result.Skipped)
	assert.True(t, newest.Equal(result.Newest))

	// Pages of two: the short second page ends the read
	reqs := f.srv.RequestsFor("GET", "Items")
	require.Len(t, reqs, 2)
	assert.Equal(t,
		"(UpdateDate gt 2024-01-01 or (UpdateDate eq 2024-01-01 and UpdateTime gt 02:00:00))",
		reqs[0].Filter())
	assert.Equal(t, "ItemCode", reqs[0].Query.Get("$orderby"))

	cp, err := f.cps.Get(context.Background(), Entity)
	require.NoError(t, err)
	assert.True(t, newest.Equal(cp.LastUpdatedAt))
	assert.Equal(t, int64(2), cp.ItemsSynced)
	assert.Equal(t, int64(2), f.metrics.GetCounters()[metrics.ItemsSynced])
	assert.Len(t, f.srv.RequestsFor("POST", "Logout"), 1)

	f.indexer.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
	f.cache.AssertExpectations(t)
}

func TestRunContinuesFromCheckpoint(t *testing.T) {
	f := newFixture(t)
	last := time.Date(2024, 3, 2, 8, 15, 30, 0, helsinki)
	require.NoError(t, f.cps.Save(context.Background(), &models.SyncCheckpoint{Entity: Entity, LastUpdatedAt: last, ItemsSynced: 7}))

	result, err := f.syncer.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Synced)
	assert.True(t, last.Equal(result.Newest))

	req := f.srv.RequestsFor("GET", "Items")[0]
	assert.Equal(t,
		"(UpdateDate gt 2024-03-02 or (UpdateDate eq 2024-03-02 and UpdateTime gt 08:15:30))",
		req.Filter())
	f.indexer.AssertNotCalled(t, "IndexItems", mock.Anything, mock.Anything)
	f.publisher.AssertNotCalled(t, "PublishAll", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunKeepsCheckpointWhenIndexingFails(t *testing.T) {
	f := newFixture(t)
	f.srv.Seed("Items", changedItem("A1", "2024-03-01", "10:00:00"))
	f.indexer.On("IndexItems", mock.Anything, mock.Anything).Return(errors.New("cluster red"))

	_, err := f.syncer.Run(context.Background())
	require.Error(t, err)

	cp, err := f.cps.Get(context.Background(), Entity)
	require.NoError(t, err)
	assert.Nil(t, cp)
	f.publisher.AssertNotCalled(t, "PublishAll", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunToleratesSinkFailures(t *testing.T) {
	f := newFixture(t)
	f.srv.Seed("Items", changedItem("A1", "2024-03-01", "10:00:00"))
	f.indexer.On("IndexItems", mock.Anything, mock.Anything).Return(nil)
	f.publisher.On("PublishAll", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("queue down"))
	f.cache.On("InvalidatePrefix", mock.Anything, mock.Anything).Return(cache.ErrCacheDisabled)

	result, err := f.syncer.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Synced)

	cp, _ := f.cps.Get(context.Background(), Entity)
	require.NotNil(t, cp)
	assert.Equal(t, int64(1), cp.ItemsSynced)
}

func TestRunFailsWhenLoginFails(t *testing.T) {
	f := newFixture(t)
	f.srv.LoginStatus = 401

	_, err := f.syncer.Run(context.Background())

	var authErr *session.AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Empty(t, f.srv.RequestsFor("GET", "Items"))
}

func TestNewSyncerDefaults(t *testing.T) {
	s := NewSyncer(nil, gateway.NewClient(nil, 0), nil, start, nil, Options{})
	assert.Equal(t, time.UTC, s.location)
	assert.IsType(t, &MemoryCheckpoints{}, s.checkpoints)
	assert.IsType(t, messaging.NopPublisher{}, s.publisher)
	assert.Nil(t, s.indexer)
}
