package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/KBesada24/test-suite-manager/config"
	"github.com/KBesada24/test-suite-manager/models"
	"github.com/KBesada24/test-suite-manager/repository"
	"github.com/KBesada24/test-suite-manager/store"
	"github.com/KBesada24/test-suite-manager/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockWebSocketHub is a mock implementation of WebSocketBroadcaster
type MockWebSocketHub struct {
	mock.Mock
}

func (m *MockWebSocketHub) BroadcastToTenant(tenantID, msgType string, data interface{}) {
	m.Called(tenantID, msgType, data)
}

// MockSuiteRepository is a mock implementation of SuiteRepository
type MockSuiteRepository struct {
	mock.Mock
}

func (m *MockSuiteRepository) LoadTree(ctx context.Context, tenantID string) ([]models.TestSuite, store.Sequences, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).([]models.TestSuite), args.Get(1).(store.Sequences), args.Error(2)
}

func (m *MockSuiteRepository) SaveTree(ctx context.Context, tenantID string, suites []models.TestSuite, seq store.Sequences) error {
	return m.Called(ctx, tenantID, suites, seq).Error(0)
}

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.PersistMaxAttempts = 1
	cfg.PersistBreakerFailures = 2
	return cfg
}

func newTestRepository(t *testing.T) *repository.Repository {
	t.Helper()
	repo, err := repository.Open(repository.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	require.NoError(t, repo.Migrate(context.Background()))
	return repo
}

func seedTenant(t *testing.T, repo *repository.Repository, tenantID, adminUserID string) {
	t.Helper()
	err := repo.CreateTenant(context.Background(),
		&models.Tenant{ID: tenantID, Name: "Acme", Plan: "basic", CreatedAt: fixedNow, UpdatedAt: fixedNow},
		&models.TenantUser{ID: "m-" + adminUserID, TenantID: tenantID, UserID: adminUserID, Email: adminUserID + "@example.com", Role: models.RoleAdmin, JoinedAt: fixedNow},
	)
	require.NoError(t, err)
}

func newSuiteService(t *testing.T, repo SuiteRepository, hub WebSocketBroadcaster) *SuiteService {
	t.Helper()
	svc := NewSuiteService(testConfig(), repo, hub, store.WithClock(func() time.Time { return fixedNow }))
	svc.retryConfig.InitialDelay = time.Millisecond
	return svc
}

func newCaseRequest(name string, steps ...string) *models.CreateTestCaseRequest {
	return &models.CreateTestCaseRequest{
		Name:            name,
		Priority:        models.PriorityHigh,
		Steps:           steps,
		ExpectedResults: "works",
	}
}

func TestSuiteService_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	seedTenant(t, repo, "t1", "alice")

	svc := newSuiteService(t, repo, nil)

	created, err := svc.CreateTestSuite(ctx, "t1", &models.CreateTestSuiteRequest{Name: "Checkout"})
	require.NoError(t, err)
	require.NotNil(t, created.Suite)
	assert.Equal(t, 1, created.Ref.SuiteID)
	assert.Nil(t, created.Child)

	parent := created.Ref.SuiteID
	child, err := svc.CreateTestSuite(ctx, "t1", &models.CreateTestSuiteRequest{Name: "Payment", ParentID: &parent})
	require.NoError(t, err)
	require.NotNil(t, child.Child)
	assert.Equal(t, 1, child.Child.ID)
	assert.Equal(t, parent, child.Child.ParentID)

	tc, err := svc.AddTestCase(ctx, "t1", parent, child.Ref.ChildID, newCaseRequest("pay by card", "open cart", "  ", "pay"))
	require.NoError(t, err)
	assert.Equal(t, []string{"open cart", "pay"}, tc.Steps)
	assert.Equal(t, models.StatusNotStarted, tc.Status)

	executed, err := svc.ExecuteTestCase(ctx, "t1", parent, child.Ref.ChildID, tc.ID, &models.ExecuteTestCaseRequest{Status: models.StatusFailed, Comment: "declined"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, executed.Status)
	require.NotNil(t, executed.LastExecuted)
	assert.True(t, fixedNow.Equal(*executed.LastExecuted))

	reloaded := newSuiteService(t, repo, nil)
	snap, err := reloaded.Snapshot(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, snap.Suites, 1)
	require.Len(t, snap.Suites[0].Children, 1)
	cases := snap.Suites[0].Children[0].TestCases
	require.Len(t, cases, 1)
	assert.Equal(t, models.StatusFailed, cases[0].Status)
	require.Len(t, cases[0].ExecutionHistory, 1)
	assert.Equal(t, "declined", cases[0].ExecutionHistory[0].Comment)

	// ids keep growing after a reload
	next, err := reloaded.CreateTestSuite(ctx, "t1", &models.CreateTestSuiteRequest{Name: "Search"})
	require.NoError(t, err)
	assert.Equal(t, 2, next.Ref.SuiteID)
}

func TestSuiteService_BroadcastsSnapshots(t *testing.T) {
	ctx := context.Background()
	hub := &MockWebSocketHub{}
	hub.On("BroadcastToTenant", "t1", models.WSTypeSuiteSnapshot, mock.AnythingOfType("models.SnapshotMessage")).Return()

	svc := newSuiteService(t, nil, hub)

	_, err := svc.CreateTestSuite(ctx, "t1", &models.CreateTestSuiteRequest{Name: "Auth"})
	require.NoError(t, err)
	_, err = svc.UpdateTestSuite(ctx, "t1", 1, &models.UpdateTestSuiteRequest{Name: strPtr("Authentication")})
	require.NoError(t, err)

	hub.AssertNumberOfCalls(t, "BroadcastToTenant", 2)
	last := hub.Calls[1].Arguments.Get(2).(models.SnapshotMessage)
	assert.Equal(t, uint64(2), last.Version)
	require.Len(t, last.Suites, 1)
	assert.Equal(t, "Authentication", last.Suites[0].Name)
}

func TestSuiteService_NotFoundLeavesTreeUntouched(t *testing.T) {
	ctx := context.Background()
	repo := &MockSuiteRepository{}
	repo.On("LoadTree", mock.Anything, "t1").Return([]models.TestSuite{}, store.Sequences{}, nil)

	svc := newSuiteService(t, repo, nil)

	_, err := svc.UpdateTestSuite(ctx, "t1", 42, &models.UpdateTestSuiteRequest{Name: strPtr("x")})
	require.True(t, store.IsNotFound(err))

	err = svc.DeleteTestCase(ctx, "t1", 1, store.NoChild, 1)
	require.True(t, store.IsNotFound(err))

	repo.AssertNotCalled(t, "SaveTree", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSuiteService_PersistenceFailureEvictsTenant(t *testing.T) {
	ctx := context.Background()
	repo := &MockSuiteRepository{}
	repo.On("LoadTree", mock.Anything, "t1").Return([]models.TestSuite{}, store.Sequences{}, nil)
	repo.On("SaveTree", mock.Anything, "t1", mock.Anything, mock.Anything).Return(errors.New("disk I/O error"))

	svc := newSuiteService(t, repo, nil)

	_, err := svc.CreateTestSuite(ctx, "t1", &models.CreateTestSuiteRequest{Name: "Auth"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Empty(t, svc.LoadedTenants())

	snap, err := svc.Snapshot(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, snap.Suites)
	repo.AssertNumberOfCalls(t, "LoadTree", 2)
}

func TestSuiteService_PersistenceFailureResyncsClients(t *testing.T) {
	ctx := context.Background()
	repo := &MockSuiteRepository{}
	repo.On("LoadTree", mock.Anything, "t1").Return([]models.TestSuite{{ID: 1, Name: "Saved"}}, store.Sequences{}, nil)
	repo.On("SaveTree", mock.Anything, "t1", mock.Anything, mock.Anything).Return(errors.New("disk I/O error"))

	hub := &MockWebSocketHub{}
	hub.On("BroadcastToTenant", "t1", models.WSTypeSuiteSnapshot, mock.AnythingOfType("models.SnapshotMessage")).Return()

	svc := newSuiteService(t, repo, hub)

	_, err := svc.CreateTestSuite(ctx, "t1", &models.CreateTestSuiteRequest{Name: "Unsaved"})
	require.ErrorIs(t, err, ErrPersistence)

	hub.AssertNumberOfCalls(t, "BroadcastToTenant", 2)
	unsaved := hub.Calls[0].Arguments.Get(2).(models.SnapshotMessage)
	restored := hub.Calls[1].Arguments.Get(2).(models.SnapshotMessage)

	assert.Len(t, unsaved.Suites, 2)
	require.Len(t, restored.Suites, 1)
	assert.Equal(t, "Saved", restored.Suites[0].Name)
	assert.Greater(t, restored.Version, unsaved.Version)
}

func TestSuiteService_OpenCircuitFailsFast(t *testing.T) {
	ctx := context.Background()
	repo := &MockSuiteRepository{}
	repo.On("LoadTree", mock.Anything, "t1").Return([]models.TestSuite{}, store.Sequences{}, nil)
	repo.On("SaveTree", mock.Anything, "t1", mock.Anything, mock.Anything).Return(errors.New("disk I/O error"))

	svc := newSuiteService(t, repo, nil)

	for i := 0; i < 2; i++ {
		_, err := svc.CreateTestSuite(ctx, "t1", &models.CreateTestSuiteRequest{Name: "Auth"})
		require.Error(t, err)
	}
	assert.Equal(t, "OPEN", svc.PersistenceStats().State)

	_, err := svc.CreateTestSuite(ctx, "t1", &models.CreateTestSuiteRequest{Name: "Auth"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.True(t, utils.IsCircuitBreakerError(err))
	repo.AssertNumberOfCalls(t, "SaveTree", 2)
}

func TestSuiteService_Selection(t *testing.T) {
	ctx := context.Background()
	svc := newSuiteService(t, nil, nil)

	_, err := svc.CreateTestSuite(ctx, "t1", &models.CreateTestSuiteRequest{Name: "Auth"})
	require.NoError(t, err)
	suiteID := 1
	_, err = svc.CreateTestSuite(ctx, "t1", &models.CreateTestSuiteRequest{Name: "SSO", ParentID: &suiteID})
	require.NoError(t, err)
	_, err = svc.AddTestCase(ctx, "t1", suiteID, 1, newCaseRequest("login", "open"))
	require.NoError(t, err)

	childID := 1
	_, err = svc.UpdateSelection(ctx, "t1", &models.SelectionRequest{ChildID: &childID})
	var fieldErrors utils.FieldErrors
	require.ErrorAs(t, err, &fieldErrors)
	assert.Contains(t, fieldErrors, "suite_id")

	view, err := svc.UpdateSelection(ctx, "t1", &models.SelectionRequest{SuiteID: &suiteID, ChildID: &childID})
	require.NoError(t, err)
	require.NotNil(t, view.Suite)
	require.NotNil(t, view.Child)
	assert.Equal(t, "SSO", view.Child.Name)
	require.Len(t, view.TestCases, 1)

	open := true
	view, err = svc.UpdateSelection(ctx, "t1", &models.SelectionRequest{CreateModalOpen: &open})
	require.NoError(t, err)
	assert.True(t, view.Selection.CreateModalOpen)
	assert.NotNil(t, view.Selection.SuiteID)

	missing := 9
	_, err = svc.UpdateSelection(ctx, "t1", &models.SelectionRequest{SuiteID: &missing})
	assert.True(t, store.IsNotFound(err))

	view, err = svc.UpdateSelection(ctx, "t1", &models.SelectionRequest{})
	require.NoError(t, err)
	assert.Nil(t, view.Selection.SuiteID)
	assert.Nil(t, view.Selection.ChildID)
	assert.Empty(t, view.TestCases)

	require.NoError(t, svc.DeleteTestSuite(ctx, "t1", suiteID))
	view, err = svc.Selection(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, view.Suite)
}

func TestSuiteService_ConcurrentWritersPersistEveryChange(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	seedTenant(t, repo, "t1", "alice")

	svc := newSuiteService(t, repo, nil)
	_, err := svc.CreateTestSuite(ctx, "t1", &models.CreateTestSuiteRequest{Name: "Load"})
	require.NoError(t, err)

	const writers = 10
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AddTestCase(ctx, "t1", 1, store.NoChild, newCaseRequest("case", "step"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	suites, _, err := repo.LoadTree(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, suites, 1)

	ids := make([]int, 0, writers)
	for _, tc := range suites[0].TestCases {
		ids = append(ids, tc.ID)
	}
	sort.Ints(ids)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, ids)
}

func TestSuiteService_HistoryAndStats(t *testing.T) {
	ctx := context.Background()
	svc := newSuiteService(t, nil, nil)

	_, err := svc.ReplaceTestSuites(ctx, "t1", []models.TestSuite{
		{ID: 3, Name: "Imported", TestCases: []models.TestCase{
			{ID: 1, Name: "a", Priority: models.PriorityLow, Steps: []string{"x"}},
			{ID: 2, Name: "b", Priority: models.PriorityHigh, Steps: []string{"y"}},
		}},
	})
	require.NoError(t, err)

	_, err = svc.ExecuteTestCase(ctx, "t1", 3, store.NoChild, 1, &models.ExecuteTestCaseRequest{Status: models.StatusCompleted})
	require.NoError(t, err)
	_, err = svc.ExecuteTestCase(ctx, "t1", 3, store.NoChild, 2, &models.ExecuteTestCaseRequest{Status: models.StatusFailed})
	require.NoError(t, err)

	history, err := svc.History(ctx, "t1", 1)
	require.NoError(t, err)
	require.Len(t, history, 1)

	stats, err := svc.Stats(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TestCases)
	assert.Equal(t, 1, stats.ByStatus[models.StatusCompleted])
	assert.Equal(t, 1, stats.ByStatus[models.StatusFailed])
	assert.InDelta(t, 50.0, stats.PassRate, 0.001)

	tc, err := svc.GetTestCase(ctx, "t1", 3, store.NoChild, 2)
	require.NoError(t, err)
	assert.Equal(t, "b", tc.Name)

	suite, err := svc.GetTestSuite(ctx, "t1", 3)
	require.NoError(t, err)
	assert.Equal(t, "Imported", suite.Name)

	created, err := svc.CreateTestSuite(ctx, "t1", &models.CreateTestSuiteRequest{Name: "Next"})
	require.NoError(t, err)
	assert.Equal(t, 4, created.Ref.SuiteID)
}

func strPtr(s string) *string { return &s }

func TestSuiteService_InvalidReplaceKeepsCircuitClosed(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	seedTenant(t, repo, "t1", "alice")
	seedTenant(t, repo, "t2", "bob")

	svc := newSuiteService(t, repo, nil)
	_, err := svc.CreateTestSuite(ctx, "t1", &models.CreateTestSuiteRequest{Name: "Kept"})
	require.NoError(t, err)

	invalid := []models.TestSuite{
		{ID: 1, Name: "A", Children: []models.TestSuiteChild{{ID: 0, Name: "zero", ParentID: 1}}},
		{ID: 1, Name: "B"},
	}
	for i := 0; i < 5; i++ {
		_, err := svc.ReplaceTestSuites(ctx, "t1", invalid)
		var fields utils.FieldErrors
		require.True(t, errors.As(err, &fields), "got %v", err)
		assert.Contains(t, fields, "suites[1].id")
		assert.Contains(t, fields, "suites[0].children[0].id")
		assert.NotErrorIs(t, err, ErrPersistence)
	}
	assert.Equal(t, "CLOSED", svc.PersistenceStats().State)
	assert.Zero(t, svc.PersistenceStats().Failures)

	snap, err := svc.Snapshot(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, snap.Suites, 1)
	assert.Equal(t, "Kept", snap.Suites[0].Name)

	_, err = svc.CreateTestSuite(ctx, "t2", &models.CreateTestSuiteRequest{Name: "Other tenant"})
	require.NoError(t, err)
}

func TestSuiteService_ConflictDoesNotOpenCircuit(t *testing.T) {
	ctx := context.Background()
	repo := &MockSuiteRepository{}
	repo.On("LoadTree", mock.Anything, "t1").Return([]models.TestSuite{}, store.Sequences{}, nil)
	repo.On("SaveTree", mock.Anything, "t1", mock.Anything, mock.Anything).
		Return(fmt.Errorf("inserting suite 1: %w", repository.ErrConflict))

	svc := newSuiteService(t, repo, nil)

	for i := 0; i < 3; i++ {
		_, err := svc.CreateTestSuite(ctx, "t1", &models.CreateTestSuiteRequest{Name: "Auth"})
		require.ErrorIs(t, err, repository.ErrConflict)
		assert.NotErrorIs(t, err, ErrPersistence)
	}
	assert.Equal(t, "CLOSED", svc.PersistenceStats().State)
	repo.AssertNumberOfCalls(t, "SaveTree", 3)
}

func TestSuiteService_TestCaseVersions(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	seedTenant(t, repo, "t1", "alice")
	svc := newSuiteService(t, repo, nil)

	created, err := svc.CreateTestSuite(ctx, "t1", &models.CreateTestSuiteRequest{Name: "Checkout"})
	require.NoError(t, err)
	suiteID := created.Ref.SuiteID

	tc, err := svc.AddTestCase(ctx, "t1", suiteID, store.NoChild, newCaseRequest("pay", "open cart"))
	require.NoError(t, err)
	assert.Equal(t, store.InitialVersion, tc.Version)

	updated, err := svc.UpdateTestCase(ctx, "t1", suiteID, store.NoChild, tc.ID, &models.UpdateTestCaseRequest{Name: strPtr("pay by card")})
	require.NoError(t, err)
	assert.Equal(t, "1.1", updated.Version)

	status := models.StatusCompleted
	updated, err = svc.UpdateTestCase(ctx, "t1", suiteID, store.NoChild, tc.ID, &models.UpdateTestCaseRequest{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, "1.1", updated.Version)

	reloaded := newSuiteService(t, repo, nil)
	versions, err := reloaded.TestCaseVersions(ctx, "t1", suiteID, store.NoChild, tc.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, "1.0", versions[0].Version)
	assert.Equal(t, "pay", versions[0].Name)

	version, err := reloaded.TestCaseVersion(ctx, "t1", suiteID, store.NoChild, tc.ID, "1.0")
	require.NoError(t, err)
	assert.Equal(t, []string{"open cart"}, version.Steps)

	_, err = reloaded.TestCaseVersion(ctx, "t1", suiteID, store.NoChild, tc.ID, "1.1")
	assert.True(t, store.IsNotFound(err))
}
