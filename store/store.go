// Package store holds the hierarchical test suite tree of a workspace.
//
// A Store is a state container: every mutation produces a new suite slice
// (copy-on-write along the touched path), bumps the snapshot version and
// synchronously notifies subscribed observers. Snapshots handed out by the
// store are never modified afterwards and must be treated as read-only.
package store

import (
	"strings"
	"sync"
	"time"

	"github.com/KBesada24/test-suite-manager/models"
)

// NoChild addresses the suite's own test case list instead of a child's
const NoChild = 0

// Selection is the current detail-view selection of a workspace
type Selection struct {
	SuiteID         *int `json:"selected_suite_id"`
	ChildID         *int `json:"selected_child_id"`
	CreateModalOpen bool `json:"is_create_modal_open"`
}

// Snapshot is an immutable view of the store after a mutation
type Snapshot struct {
	Version   uint64             `json:"version"`
	Suites    []models.TestSuite `json:"test_suites"`
	Selection Selection          `json:"selection"`
	Sequences Sequences          `json:"-"`
}

// SuiteInput describes a suite to create. A non-nil ParentID creates a child suite.
type SuiteInput struct {
	Name        string
	Description string
	ParentID    *int
}

// SuiteRef locates a created suite. ChildID is NoChild for top-level suites.
type SuiteRef struct {
	SuiteID int `json:"suite_id"`
	ChildID int `json:"child_id,omitempty"`
}

// SuitePatch holds the suite fields to overwrite; nil fields are kept
type SuitePatch struct {
	Name        *string
	Description *string
}

// TestCaseInput holds the user-supplied fields of a new test case
type TestCaseInput struct {
	Name            string
	Description     string
	Priority        models.Priority
	Steps           []string
	ExpectedResults string
}

// TestCasePatch holds the test case fields to overwrite; nil fields are kept
type TestCasePatch struct {
	Name            *string
	Description     *string
	Priority        *models.Priority
	Status          *models.TestStatus
	Steps           []string
	ExpectedResults *string
}

// ExecutionResult is the outcome recorded by ExecuteTestCase
type ExecutionResult struct {
	Status  models.TestStatus
	Comment string
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the time source used for execution timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithVersion starts the snapshot version counter at v
func WithVersion(v uint64) Option {
	return func(s *Store) {
		s.version = v
	}
}

// Store is the hierarchical test suite state container
type Store struct {
	mu        sync.RWMutex
	notifyMu  sync.Mutex
	suites    []models.TestSuite
	selection Selection
	seq       Sequences
	version   uint64

	observers      []observerEntry
	nextObserverID int

	now func() time.Time
}

// New creates an empty store
func New(opts ...Option) *Store {
	s := &Store{
		suites: make([]models.TestSuite, 0),
		seq:    newSequences(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// state is the working copy handed to a mutation
type state struct {
	suites    []models.TestSuite
	selection Selection
	seq       Sequences
}

// update runs fn against the current state and commits the result.
// Observers run after the write lock is released but before the next
// mutation can notify, so they see snapshots in commit order.
func (s *Store) update(fn func(st *state) error) error {
	s.mu.Lock()
	st := state{suites: s.suites, selection: s.selection, seq: s.seq}
	if err := fn(&st); err != nil {
		s.mu.Unlock()
		return err
	}

	s.suites = st.suites
	s.selection = st.selection
	s.seq = st.seq
	s.version++
	snap := s.snapshotLocked()
	observers := make([]Observer, 0, len(s.observers))
	for _, entry := range s.observers {
		observers = append(observers, entry.observer)
	}

	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	for _, observer := range observers {
		observer.OnSnapshot(snap)
	}
	return nil
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Version:   s.version,
		Suites:    s.suites,
		Selection: s.selection,
		Sequences: s.seq,
	}
}

// Snapshot returns the current state
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// TestSuites returns the current suite tree
func (s *Store) TestSuites() []models.TestSuite {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.suites
}

// SetTestSuites replaces the whole collection, typically after an external fetch.
// Id sequences are raised to the highest id present so new ids never collide.
// A tree with missing or duplicate ids is rejected with an *InvalidTreeError
// and the store is left untouched.
func (s *Store) SetTestSuites(suites []models.TestSuite) error {
	if err := ValidateTree(suites); err != nil {
		return err
	}
	s.Restore(suites, Sequences{})
	return nil
}

// Restore replaces the collection and merges persisted id sequences
func (s *Store) Restore(suites []models.TestSuite, seq Sequences) {
	cloned := cloneSuites(suites)
	_ = s.update(func(st *state) error {
		st.suites = cloned
		st.seq = st.seq.merge(seq).seed(cloned)
		st.selection = pruneSelection(st.selection, cloned)
		return nil
	})
}

// AddTestSuite appends a top-level suite, or a child suite when ParentID is set
func (s *Store) AddTestSuite(in SuiteInput) (SuiteRef, error) {
	var ref SuiteRef
	err := s.update(func(st *state) error {
		if in.ParentID == nil {
			id := st.seq.Suite + 1
			st.seq = st.seq.withSuite(id)
			suites := make([]models.TestSuite, len(st.suites), len(st.suites)+1)
			copy(suites, st.suites)
			st.suites = append(suites, models.TestSuite{
				ID:          id,
				Name:        in.Name,
				Description: in.Description,
				Children:    []models.TestSuiteChild{},
				TestCases:   []models.TestCase{},
			})
			ref = SuiteRef{SuiteID: id}
			return nil
		}

		parentID := *in.ParentID
		idx := indexOfSuite(st.suites, parentID)
		if idx < 0 {
			return notFound(KindSuite, parentID)
		}

		id := st.seq.Child + 1
		st.seq = st.seq.withChild(id)
		parent := st.suites[idx]
		children := make([]models.TestSuiteChild, len(parent.Children), len(parent.Children)+1)
		copy(children, parent.Children)
		parent.Children = append(children, models.TestSuiteChild{
			ID:          id,
			Name:        in.Name,
			Description: in.Description,
			TestCases:   []models.TestCase{},
			ParentID:    parentID,
		})
		st.suites = replaceSuite(st.suites, idx, parent)
		ref = SuiteRef{SuiteID: parentID, ChildID: id}
		return nil
	})
	return ref, err
}

// UpdateTestSuite shallow-merges patch into the suite with the given id
func (s *Store) UpdateTestSuite(id int, patch SuitePatch) (models.TestSuite, error) {
	var updated models.TestSuite
	err := s.update(func(st *state) error {
		idx := indexOfSuite(st.suites, id)
		if idx < 0 {
			return notFound(KindSuite, id)
		}

		suite := st.suites[idx]
		if patch.Name != nil {
			suite.Name = *patch.Name
		}
		if patch.Description != nil {
			suite.Description = *patch.Description
		}
		st.suites = replaceSuite(st.suites, idx, suite)
		updated = suite
		return nil
	})
	return updated, err
}

// DeleteTestSuite removes a suite together with its children and test cases.
// A selection pointing at the suite is cleared.
func (s *Store) DeleteTestSuite(id int) error {
	return s.update(func(st *state) error {
		idx := indexOfSuite(st.suites, id)
		if idx < 0 {
			return notFound(KindSuite, id)
		}

		suites := make([]models.TestSuite, 0, len(st.suites)-1)
		suites = append(suites, st.suites[:idx]...)
		st.suites = append(suites, st.suites[idx+1:]...)

		if st.selection.SuiteID != nil && *st.selection.SuiteID == id {
			st.selection.SuiteID = nil
			st.selection.ChildID = nil
		}
		return nil
	})
}

// SelectSuite sets the suite (and optionally child) shown in the detail view
func (s *Store) SelectSuite(id int, childID int) error {
	return s.update(func(st *state) error {
		idx := indexOfSuite(st.suites, id)
		if idx < 0 {
			return notFound(KindSuite, id)
		}

		sel := st.selection
		suiteID := id
		sel.SuiteID = &suiteID
		sel.ChildID = nil
		if childID != NoChild {
			if indexOfChild(st.suites[idx].Children, childID) < 0 {
				return notFound(KindChild, childID)
			}
			cid := childID
			sel.ChildID = &cid
		}
		st.selection = sel
		return nil
	})
}

// ClearSelection resets the suite and child selection
func (s *Store) ClearSelection() {
	_ = s.update(func(st *state) error {
		st.selection.SuiteID = nil
		st.selection.ChildID = nil
		return nil
	})
}

// SetCreateModalOpen toggles the create-suite dialog flag
func (s *Store) SetCreateModalOpen(open bool) {
	_ = s.update(func(st *state) error {
		st.selection.CreateModalOpen = open
		return nil
	})
}

// AddTestCase appends a new test case to the suite's list, or to a child's list
// when childID is not NoChild. The case starts not_started with an empty history.
func (s *Store) AddTestCase(suiteID, childID int, in TestCaseInput) (models.TestCase, error) {
	if !isValidPriority(in.Priority) {
		return models.TestCase{}, ErrInvalidPriority
	}
	steps := filterSteps(in.Steps)
	if len(steps) == 0 {
		return models.TestCase{}, ErrNoSteps
	}

	var created models.TestCase
	err := s.update(func(st *state) error {
		return st.editCases(suiteID, childID, func(owner CaseOwner, cases []models.TestCase) ([]models.TestCase, error) {
			id := st.seq.nextCase(owner, cases)
			st.seq = st.seq.withCase(owner, id)
			created = models.TestCase{
				ID:               id,
				Name:             in.Name,
				Description:      in.Description,
				Priority:         in.Priority,
				Status:           models.StatusNotStarted,
				Steps:            steps,
				ExpectedResults:  in.ExpectedResults,
				ExecutionHistory: []models.ExecutionRecord{},
				Version:          InitialVersion,
				Versions:         []models.TestCaseVersion{},
			}
			next := make([]models.TestCase, len(cases), len(cases)+1)
			copy(next, cases)
			return append(next, created), nil
		})
	})
	return created, err
}

// UpdateTestCase shallow-merges patch into the matching test case. When the
// content changes the previous content is archived as a version and the
// version label is bumped; a status-only change is not versioned.
func (s *Store) UpdateTestCase(suiteID, childID, testCaseID int, patch TestCasePatch) (models.TestCase, error) {
	if patch.Priority != nil && !isValidPriority(*patch.Priority) {
		return models.TestCase{}, ErrInvalidPriority
	}
	if patch.Status != nil && !patch.Status.IsValid() {
		return models.TestCase{}, ErrInvalidStatus
	}
	var steps []string
	if patch.Steps != nil {
		steps = filterSteps(patch.Steps)
		if len(steps) == 0 {
			return models.TestCase{}, ErrNoSteps
		}
	}

	var updated models.TestCase
	err := s.update(func(st *state) error {
		return st.editCases(suiteID, childID, func(_ CaseOwner, cases []models.TestCase) ([]models.TestCase, error) {
			idx := indexOfCase(cases, testCaseID)
			if idx < 0 {
				return nil, notFound(KindTestCase, testCaseID)
			}

			tc := cases[idx]
			if patch.Name != nil {
				tc.Name = *patch.Name
			}
			if patch.Description != nil {
				tc.Description = *patch.Description
			}
			if patch.Priority != nil {
				tc.Priority = *patch.Priority
			}
			if patch.Status != nil {
				tc.Status = *patch.Status
			}
			if steps != nil {
				tc.Steps = steps
			}
			if patch.ExpectedResults != nil {
				tc.ExpectedResults = *patch.ExpectedResults
			}
			if contentChanged(cases[idx], tc) {
				tc = archive(cases[idx], tc, s.now().UTC())
			}
			updated = tc
			return replaceCase(cases, idx, tc), nil
		})
	})
	return updated, err
}

// DeleteTestCase removes the matching test case from its owning list
func (s *Store) DeleteTestCase(suiteID, childID, testCaseID int) error {
	return s.update(func(st *state) error {
		return st.editCases(suiteID, childID, func(_ CaseOwner, cases []models.TestCase) ([]models.TestCase, error) {
			idx := indexOfCase(cases, testCaseID)
			if idx < 0 {
				return nil, notFound(KindTestCase, testCaseID)
			}
			next := make([]models.TestCase, 0, len(cases)-1)
			next = append(next, cases[:idx]...)
			return append(next, cases[idx+1:]...), nil
		})
	})
}

// ExecuteTestCase records an execution: the status is overwritten, lastExecuted
// is set to now and one entry is appended to the execution history. Any status
// may follow any other; the history is never edited.
func (s *Store) ExecuteTestCase(suiteID, childID, testCaseID int, result ExecutionResult) (models.TestCase, error) {
	if !result.Status.IsExecutionResult() {
		return models.TestCase{}, ErrInvalidStatus
	}

	var executed models.TestCase
	err := s.update(func(st *state) error {
		return st.editCases(suiteID, childID, func(_ CaseOwner, cases []models.TestCase) ([]models.TestCase, error) {
			idx := indexOfCase(cases, testCaseID)
			if idx < 0 {
				return nil, notFound(KindTestCase, testCaseID)
			}

			now := s.now().UTC()
			tc := cases[idx]
			history := make([]models.ExecutionRecord, len(tc.ExecutionHistory), len(tc.ExecutionHistory)+1)
			copy(history, tc.ExecutionHistory)
			tc.ExecutionHistory = append(history, models.ExecutionRecord{
				Date:    now,
				Status:  result.Status,
				Comment: result.Comment,
			})
			tc.Status = result.Status
			tc.LastExecuted = &now
			executed = tc
			return replaceCase(cases, idx, tc), nil
		})
	})
	return executed, err
}

// editCases locates the test case list addressed by (suiteID, childID), lets
// edit produce a replacement list and rebuilds the path up to the root.
func (st *state) editCases(suiteID, childID int, edit func(owner CaseOwner, cases []models.TestCase) ([]models.TestCase, error)) error {
	sIdx := indexOfSuite(st.suites, suiteID)
	if sIdx < 0 {
		return notFound(KindSuite, suiteID)
	}
	suite := st.suites[sIdx]
	owner := CaseOwner{SuiteID: suiteID, ChildID: childID}

	if childID == NoChild {
		cases, err := edit(owner, suite.TestCases)
		if err != nil {
			return err
		}
		suite.TestCases = cases
		st.suites = replaceSuite(st.suites, sIdx, suite)
		return nil
	}

	cIdx := indexOfChild(suite.Children, childID)
	if cIdx < 0 {
		return notFound(KindChild, childID)
	}
	child := suite.Children[cIdx]
	cases, err := edit(owner, child.TestCases)
	if err != nil {
		return err
	}
	child.TestCases = cases

	children := make([]models.TestSuiteChild, len(suite.Children))
	copy(children, suite.Children)
	children[cIdx] = child
	suite.Children = children
	st.suites = replaceSuite(st.suites, sIdx, suite)
	return nil
}

func indexOfSuite(suites []models.TestSuite, id int) int {
	for i := range suites {
		if suites[i].ID == id {
			return i
		}
	}
	return -1
}

func indexOfChild(children []models.TestSuiteChild, id int) int {
	for i := range children {
		if children[i].ID == id {
			return i
		}
	}
	return -1
}

func indexOfCase(cases []models.TestCase, id int) int {
	for i := range cases {
		if cases[i].ID == id {
			return i
		}
	}
	return -1
}

func replaceSuite(suites []models.TestSuite, idx int, suite models.TestSuite) []models.TestSuite {
	next := make([]models.TestSuite, len(suites))
	copy(next, suites)
	next[idx] = suite
	return next
}

func replaceCase(cases []models.TestCase, idx int, tc models.TestCase) []models.TestCase {
	next := make([]models.TestCase, len(cases))
	copy(next, cases)
	next[idx] = tc
	return next
}

// filterSteps drops blank steps, keeping order
func filterSteps(steps []string) []string {
	filtered := make([]string, 0, len(steps))
	for _, step := range steps {
		if strings.TrimSpace(step) == "" {
			continue
		}
		filtered = append(filtered, step)
	}
	return filtered
}

func isValidPriority(p models.Priority) bool {
	switch p {
	case models.PriorityHigh, models.PriorityMedium, models.PriorityLow:
		return true
	default:
		return false
	}
}

// pruneSelection drops a selection that no longer resolves in suites
func pruneSelection(sel Selection, suites []models.TestSuite) Selection {
	if sel.SuiteID == nil {
		return sel
	}
	idx := indexOfSuite(suites, *sel.SuiteID)
	if idx < 0 {
		sel.SuiteID = nil
		sel.ChildID = nil
		return sel
	}
	if sel.ChildID != nil && indexOfChild(suites[idx].Children, *sel.ChildID) < 0 {
		sel.ChildID = nil
	}
	return sel
}
