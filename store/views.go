package store

import (
	"sort"

	"github.com/KBesada24/test-suite-manager/models"
)

// Suite returns the suite with the given id
func (s *Store) Suite(id int) (models.TestSuite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := indexOfSuite(s.suites, id)
	if idx < 0 {
		return models.TestSuite{}, notFound(KindSuite, id)
	}
	return s.suites[idx], nil
}

// Child returns a child suite of the given suite
func (s *Store) Child(suiteID, childID int) (models.TestSuiteChild, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return findChild(s.suites, suiteID, childID)
}

// TestCases returns the test case list addressed by (suiteID, childID)
func (s *Store) TestCases(suiteID, childID int) ([]models.TestCase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return findCases(s.suites, suiteID, childID)
}

// TestCase returns a single test case
func (s *Store) TestCase(suiteID, childID, testCaseID int) (models.TestCase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cases, err := findCases(s.suites, suiteID, childID)
	if err != nil {
		return models.TestCase{}, err
	}
	idx := indexOfCase(cases, testCaseID)
	if idx < 0 {
		return models.TestCase{}, notFound(KindTestCase, testCaseID)
	}
	return cases[idx], nil
}

// Selection returns the current selection
func (s *Store) Selection() Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selection
}

// SelectedSuite returns the selected suite, if any
func (s *Store) SelectedSuite() (models.TestSuite, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.selection.SuiteID == nil {
		return models.TestSuite{}, false
	}
	idx := indexOfSuite(s.suites, *s.selection.SuiteID)
	if idx < 0 {
		return models.TestSuite{}, false
	}
	return s.suites[idx], true
}

// SelectedChild returns the selected child suite, if any
func (s *Store) SelectedChild() (models.TestSuiteChild, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.selection.SuiteID == nil || s.selection.ChildID == nil {
		return models.TestSuiteChild{}, false
	}
	child, err := findChild(s.suites, *s.selection.SuiteID, *s.selection.ChildID)
	if err != nil {
		return models.TestSuiteChild{}, false
	}
	return child, true
}

// SelectedTestCases returns the test cases of the current selection: the
// selected child's list when a child is selected, else the suite's own list.
func (s *Store) SelectedTestCases() []models.TestCase {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.selection.SuiteID == nil {
		return nil
	}
	childID := NoChild
	if s.selection.ChildID != nil {
		childID = *s.selection.ChildID
	}
	cases, err := findCases(s.suites, *s.selection.SuiteID, childID)
	if err != nil {
		return nil
	}
	return cases
}

// Stats counts suites, test cases and executions of the current tree
func (s *Store) Stats() models.DashboardStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := models.DashboardStats{
		ByStatus:   make(map[models.TestStatus]int, len(models.AllStatuses)),
		ByPriority: make(map[models.Priority]int, 3),
	}
	for _, status := range models.AllStatuses {
		stats.ByStatus[status] = 0
	}
	for _, p := range []models.Priority{models.PriorityHigh, models.PriorityMedium, models.PriorityLow} {
		stats.ByPriority[p] = 0
	}

	count := func(cases []models.TestCase) {
		for _, tc := range cases {
			stats.TestCases++
			stats.ByStatus[tc.Status]++
			stats.ByPriority[tc.Priority]++
			stats.Executions += len(tc.ExecutionHistory)
		}
	}

	for _, suite := range s.suites {
		stats.Suites++
		count(suite.TestCases)
		for _, child := range suite.Children {
			stats.Children++
			count(child.TestCases)
		}
	}

	finished := stats.ByStatus[models.StatusCompleted] + stats.ByStatus[models.StatusFailed]
	if finished > 0 {
		stats.PassRate = float64(stats.ByStatus[models.StatusCompleted]) / float64(finished) * 100
	}
	return stats
}

// History flattens every execution record of the tree, newest first.
// A limit <= 0 returns all entries.
func (s *Store) History(limit int) []models.HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]models.HistoryEntry, 0)
	collect := func(suite models.TestSuite, child *models.TestSuiteChild, cases []models.TestCase) {
		for _, tc := range cases {
			for _, rec := range tc.ExecutionHistory {
				entry := models.HistoryEntry{
					SuiteID:      suite.ID,
					SuiteName:    suite.Name,
					TestCaseID:   tc.ID,
					TestCaseName: tc.Name,
					Date:         rec.Date,
					Status:       rec.Status,
					Comment:      rec.Comment,
				}
				if child != nil {
					childID := child.ID
					entry.ChildID = &childID
					entry.ChildName = child.Name
				}
				entries = append(entries, entry)
			}
		}
	}

	for _, suite := range s.suites {
		collect(suite, nil, suite.TestCases)
		for i := range suite.Children {
			collect(suite, &suite.Children[i], suite.Children[i].TestCases)
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Date.After(entries[j].Date)
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

func findChild(suites []models.TestSuite, suiteID, childID int) (models.TestSuiteChild, error) {
	sIdx := indexOfSuite(suites, suiteID)
	if sIdx < 0 {
		return models.TestSuiteChild{}, notFound(KindSuite, suiteID)
	}
	cIdx := indexOfChild(suites[sIdx].Children, childID)
	if cIdx < 0 {
		return models.TestSuiteChild{}, notFound(KindChild, childID)
	}
	return suites[sIdx].Children[cIdx], nil
}

func findCases(suites []models.TestSuite, suiteID, childID int) ([]models.TestCase, error) {
	if childID == NoChild {
		sIdx := indexOfSuite(suites, suiteID)
		if sIdx < 0 {
			return nil, notFound(KindSuite, suiteID)
		}
		return suites[sIdx].TestCases, nil
	}
	child, err := findChild(suites, suiteID, childID)
	if err != nil {
		return nil, err
	}
	return child.TestCases, nil
}
