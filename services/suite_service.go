package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/KBesada24/test-suite-manager/config"
	"github.com/KBesada24/test-suite-manager/models"
	"github.com/KBesada24/test-suite-manager/repository"
	"github.com/KBesada24/test-suite-manager/store"
	"github.com/KBesada24/test-suite-manager/utils"
)

// SuiteService applies suite tree operations to the tenant's store, saves the
// resulting tree and lets store observers push snapshots to websocket clients.
type SuiteService struct {
	registry    *store.Registry
	repo        SuiteRepository
	wsHub       WebSocketBroadcaster
	breaker     *utils.CircuitBreaker
	retryConfig *utils.RetryConfig
	logger      *utils.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// CreatedSuite is the result of creating a suite or a child suite
type CreatedSuite struct {
	Ref   store.SuiteRef         `json:"ref"`
	Suite *models.TestSuite      `json:"suite,omitempty"`
	Child *models.TestSuiteChild `json:"child,omitempty"`
}

// SelectionView is the current selection together with what it points at
type SelectionView struct {
	Selection store.Selection        `json:"selection"`
	Suite     *models.TestSuite      `json:"suite,omitempty"`
	Child     *models.TestSuiteChild `json:"child,omitempty"`
	TestCases []models.TestCase      `json:"test_cases"`
}

// NewSuiteService creates a suite service. A nil repo keeps trees in memory only.
func NewSuiteService(cfg *config.Config, repo SuiteRepository, wsHub WebSocketBroadcaster, opts ...store.Option) *SuiteService {
	logger := utils.GetLogger()

	retryConfig := utils.DefaultRetryConfig()
	breakerConfig := utils.DefaultCircuitBreakerConfig("persistence")
	if cfg != nil {
		retryConfig.MaxAttempts = cfg.PersistMaxAttempts
		breakerConfig.MaxFailures = cfg.PersistBreakerFailures
		breakerConfig.Timeout = time.Duration(cfg.PersistBreakerTimeoutSec) * time.Second
	}
	// a rejected tree says nothing about the health of the database
	breakerConfig.IsFailure = func(err error) bool {
		return !errors.Is(err, repository.ErrConflict)
	}

	var load store.LoadFunc
	if repo != nil {
		load = repo.LoadTree
	}

	s := &SuiteService{
		registry:    store.NewRegistry(load, opts...),
		repo:        repo,
		wsHub:       wsHub,
		breaker:     utils.NewCircuitBreaker(breakerConfig, logger),
		retryConfig: retryConfig,
		logger:      logger,
		locks:       make(map[string]*sync.Mutex),
	}
	s.registry.OnCreate(s.attachBroadcaster)
	return s
}

// attachBroadcaster forwards every snapshot of a tenant store to its websocket clients
func (s *SuiteService) attachBroadcaster(tenantID string, st *store.Store) {
	if s.wsHub == nil {
		return
	}
	st.Subscribe(store.ObserverFunc(func(snap store.Snapshot) {
		s.wsHub.BroadcastToTenant(tenantID, models.WSTypeSuiteSnapshot, models.SnapshotMessage{
			Version: snap.Version,
			Suites:  snap.Suites,
		})
	}))
}

func (s *SuiteService) tenantLock(tenantID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[tenantID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[tenantID] = l
	}
	return l
}

// mutate runs fn against the tenant store and saves the result. Writers of one
// tenant are serialized so every save sees its own change.
func (s *SuiteService) mutate(ctx context.Context, tenantID string, fn func(st *store.Store) error) error {
	l := s.tenantLock(tenantID)
	l.Lock()
	defer l.Unlock()

	st, err := s.registry.Get(ctx, tenantID)
	if err != nil {
		return err
	}
	if err := fn(st); err != nil {
		return err
	}
	return s.persist(ctx, tenantID, st.Snapshot())
}

func (s *SuiteService) persist(ctx context.Context, tenantID string, snap store.Snapshot) error {
	if s.repo == nil {
		return nil
	}

	err := utils.RetryWithCircuitBreaker(ctx, s.retryConfig, s.breaker, func(ctx context.Context) error {
		return s.repo.SaveTree(ctx, tenantID, snap.Suites, snap.Sequences)
	}, s.logger)
	if err != nil {
		// the cached tree no longer matches the database
		s.registry.Evict(tenantID)
		s.logger.WithTenant(tenantID).WithSource("suite_service").Error("Failed to persist test suites", err, map[string]interface{}{
			"version": snap.Version,
		})
		s.resync(ctx, tenantID)
		if errors.Is(err, repository.ErrConflict) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

// resync reloads an evicted tenant and pushes the persisted tree to its
// clients, which were already sent the unsaved change
func (s *SuiteService) resync(ctx context.Context, tenantID string) {
	if s.wsHub == nil {
		return
	}
	st, err := s.registry.Get(ctx, tenantID)
	if err != nil {
		s.logger.WithTenant(tenantID).WithSource("suite_service").Warn("Failed to reload test suites after a failed save", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	snap := st.Snapshot()
	s.wsHub.BroadcastToTenant(tenantID, models.WSTypeSuiteSnapshot, models.SnapshotMessage{
		Version: snap.Version,
		Suites:  snap.Suites,
	})
}

// view runs fn against the tenant store without saving
func (s *SuiteService) view(ctx context.Context, tenantID string, fn func(st *store.Store) error) error {
	st, err := s.registry.Get(ctx, tenantID)
	if err != nil {
		return err
	}
	return fn(st)
}

// Snapshot returns the tenant's current snapshot
func (s *SuiteService) Snapshot(ctx context.Context, tenantID string) (store.Snapshot, error) {
	var snap store.Snapshot
	err := s.view(ctx, tenantID, func(st *store.Store) error {
		snap = st.Snapshot()
		return nil
	})
	return snap, err
}

// ReplaceTestSuites replaces the whole tree of a tenant. A tree with missing
// or duplicate ids is rejected with utils.FieldErrors and changes nothing.
func (s *SuiteService) ReplaceTestSuites(ctx context.Context, tenantID string, suites []models.TestSuite) (store.Snapshot, error) {
	var snap store.Snapshot
	err := s.mutate(ctx, tenantID, func(st *store.Store) error {
		if err := st.SetTestSuites(suites); err != nil {
			var invalid *store.InvalidTreeError
			if errors.As(err, &invalid) {
				return utils.FieldErrors(invalid.Problems)
			}
			return err
		}
		snap = st.Snapshot()
		return nil
	})
	return snap, err
}

// CreateTestSuite adds a top-level suite, or a child when ParentID is set
func (s *SuiteService) CreateTestSuite(ctx context.Context, tenantID string, req *models.CreateTestSuiteRequest) (*CreatedSuite, error) {
	var created CreatedSuite
	err := s.mutate(ctx, tenantID, func(st *store.Store) error {
		ref, err := st.AddTestSuite(store.SuiteInput{
			Name:        req.Name,
			Description: req.Description,
			ParentID:    req.ParentID,
		})
		if err != nil {
			return err
		}
		created.Ref = ref

		if ref.ChildID != store.NoChild {
			child, err := st.Child(ref.SuiteID, ref.ChildID)
			if err != nil {
				return err
			}
			created.Child = &child
			return nil
		}
		suite, err := st.Suite(ref.SuiteID)
		if err != nil {
			return err
		}
		created.Suite = &suite
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// GetTestSuite returns one top-level suite
func (s *SuiteService) GetTestSuite(ctx context.Context, tenantID string, suiteID int) (models.TestSuite, error) {
	var suite models.TestSuite
	err := s.view(ctx, tenantID, func(st *store.Store) error {
		var err error
		suite, err = st.Suite(suiteID)
		return err
	})
	return suite, err
}

// UpdateTestSuite changes the name or description of a suite
func (s *SuiteService) UpdateTestSuite(ctx context.Context, tenantID string, suiteID int, req *models.UpdateTestSuiteRequest) (models.TestSuite, error) {
	var suite models.TestSuite
	err := s.mutate(ctx, tenantID, func(st *store.Store) error {
		var err error
		suite, err = st.UpdateTestSuite(suiteID, store.SuitePatch{
			Name:        req.Name,
			Description: req.Description,
		})
		return err
	})
	return suite, err
}

// DeleteTestSuite removes a suite with its children and test cases
func (s *SuiteService) DeleteTestSuite(ctx context.Context, tenantID string, suiteID int) error {
	return s.mutate(ctx, tenantID, func(st *store.Store) error {
		return st.DeleteTestSuite(suiteID)
	})
}

// UpdateSelection applies a selection request. A request without any field
// clears the selection.
func (s *SuiteService) UpdateSelection(ctx context.Context, tenantID string, req *models.SelectionRequest) (*SelectionView, error) {
	if req.ChildID != nil && req.SuiteID == nil {
		return nil, utils.FieldErrors{"suite_id": "suite_id is required when child_id is set"}
	}

	var view *SelectionView
	err := s.view(ctx, tenantID, func(st *store.Store) error {
		switch {
		case req.SuiteID != nil:
			childID := store.NoChild
			if req.ChildID != nil {
				childID = *req.ChildID
			}
			if err := st.SelectSuite(*req.SuiteID, childID); err != nil {
				return err
			}
		case req.CreateModalOpen == nil:
			st.ClearSelection()
		}

		if req.CreateModalOpen != nil {
			st.SetCreateModalOpen(*req.CreateModalOpen)
		}
		view = selectionView(st)
		return nil
	})
	return view, err
}

// Selection returns the current selection with the selected suite, child and test cases
func (s *SuiteService) Selection(ctx context.Context, tenantID string) (*SelectionView, error) {
	var view *SelectionView
	err := s.view(ctx, tenantID, func(st *store.Store) error {
		view = selectionView(st)
		return nil
	})
	return view, err
}

func selectionView(st *store.Store) *SelectionView {
	view := &SelectionView{
		Selection: st.Selection(),
		TestCases: st.SelectedTestCases(),
	}
	if suite, ok := st.SelectedSuite(); ok {
		view.Suite = &suite
	}
	if child, ok := st.SelectedChild(); ok {
		view.Child = &child
	}
	return view
}

// AddTestCase creates a test case in a suite (childID = store.NoChild) or a child suite
func (s *SuiteService) AddTestCase(ctx context.Context, tenantID string, suiteID, childID int, req *models.CreateTestCaseRequest) (models.TestCase, error) {
	var tc models.TestCase
	err := s.mutate(ctx, tenantID, func(st *store.Store) error {
		var err error
		tc, err = st.AddTestCase(suiteID, childID, store.TestCaseInput{
			Name:            req.Name,
			Description:     req.Description,
			Priority:        req.Priority,
			Steps:           req.Steps,
			ExpectedResults: req.ExpectedResults,
		})
		return err
	})
	return tc, err
}

// GetTestCase returns one test case
func (s *SuiteService) GetTestCase(ctx context.Context, tenantID string, suiteID, childID, testCaseID int) (models.TestCase, error) {
	var tc models.TestCase
	err := s.view(ctx, tenantID, func(st *store.Store) error {
		var err error
		tc, err = st.TestCase(suiteID, childID, testCaseID)
		return err
	})
	return tc, err
}

// UpdateTestCase merges the non-nil fields of req into a test case
func (s *SuiteService) UpdateTestCase(ctx context.Context, tenantID string, suiteID, childID, testCaseID int, req *models.UpdateTestCaseRequest) (models.TestCase, error) {
	var tc models.TestCase
	err := s.mutate(ctx, tenantID, func(st *store.Store) error {
		var err error
		tc, err = st.UpdateTestCase(suiteID, childID, testCaseID, store.TestCasePatch{
			Name:            req.Name,
			Description:     req.Description,
			Priority:        req.Priority,
			Status:          req.Status,
			Steps:           req.Steps,
			ExpectedResults: req.ExpectedResults,
		})
		return err
	})
	return tc, err
}

// TestCaseVersions returns the archived versions of a test case, newest first
func (s *SuiteService) TestCaseVersions(ctx context.Context, tenantID string, suiteID, childID, testCaseID int) ([]models.TestCaseVersion, error) {
	var versions []models.TestCaseVersion
	err := s.view(ctx, tenantID, func(st *store.Store) error {
		var err error
		versions, err = st.TestCaseVersions(suiteID, childID, testCaseID)
		return err
	})
	return versions, err
}

// TestCaseVersion returns one archived version of a test case
func (s *SuiteService) TestCaseVersion(ctx context.Context, tenantID string, suiteID, childID, testCaseID int, label string) (models.TestCaseVersion, error) {
	var version models.TestCaseVersion
	err := s.view(ctx, tenantID, func(st *store.Store) error {
		var err error
		version, err = st.TestCaseVersion(suiteID, childID, testCaseID, label)
		return err
	})
	return version, err
}

// DeleteTestCase removes a test case
func (s *SuiteService) DeleteTestCase(ctx context.Context, tenantID string, suiteID, childID, testCaseID int) error {
	return s.mutate(ctx, tenantID, func(st *store.Store) error {
		return st.DeleteTestCase(suiteID, childID, testCaseID)
	})
}

// ExecuteTestCase records an execution result
func (s *SuiteService) ExecuteTestCase(ctx context.Context, tenantID string, suiteID, childID, testCaseID int, req *models.ExecuteTestCaseRequest) (models.TestCase, error) {
	var tc models.TestCase
	err := s.mutate(ctx, tenantID, func(st *store.Store) error {
		var err error
		tc, err = st.ExecuteTestCase(suiteID, childID, testCaseID, store.ExecutionResult{
			Status:  req.Status,
			Comment: req.Comment,
		})
		return err
	})
	return tc, err
}

// History returns the tenant's execution history, newest first
func (s *SuiteService) History(ctx context.Context, tenantID string, limit int) ([]models.HistoryEntry, error) {
	var history []models.HistoryEntry
	err := s.view(ctx, tenantID, func(st *store.Store) error {
		history = st.History(limit)
		return nil
	})
	return history, err
}

// Stats returns dashboard counters for the tenant
func (s *SuiteService) Stats(ctx context.Context, tenantID string) (models.DashboardStats, error) {
	var stats models.DashboardStats
	err := s.view(ctx, tenantID, func(st *store.Store) error {
		stats = st.Stats()
		return nil
	})
	return stats, err
}

// LoadedTenants returns the tenants whose trees are cached in memory
func (s *SuiteService) LoadedTenants() []string {
	return s.registry.Tenants()
}

// PersistenceStats reports the state of the persistence circuit breaker
func (s *SuiteService) PersistenceStats() utils.CircuitBreakerStats {
	return s.breaker.Stats()
}
