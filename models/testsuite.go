package models

import "time"

// Priority represents the importance of a test case
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// TestStatus represents the execution state of a test case
type TestStatus string

const (
	StatusNotStarted TestStatus = "not_started"
	StatusInProgress TestStatus = "in_progress"
	StatusCompleted  TestStatus = "completed"
	StatusFailed     TestStatus = "failed"
	StatusPending    TestStatus = "pending"
	StatusSkipped    TestStatus = "skipped"
)

// AllStatuses lists every test case status in display order
var AllStatuses = []TestStatus{
	StatusNotStarted,
	StatusInProgress,
	StatusCompleted,
	StatusFailed,
	StatusPending,
	StatusSkipped,
}

// IsValid reports whether s is a known test case status
func (s TestStatus) IsValid() bool {
	for _, status := range AllStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// IsExecutionResult reports whether s may be recorded by an execution
func (s TestStatus) IsExecutionResult() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusPending, StatusSkipped:
		return true
	default:
		return false
	}
}

// ExecutionRecord is one entry of a test case's execution history
type ExecutionRecord struct {
	Date    time.Time  `json:"date" yaml:"date"`
	Status  TestStatus `json:"status" yaml:"status"`
	Comment string     `json:"comment" yaml:"comment"`
}

// TestCase represents a manual test case with its execution trail
type TestCase struct {
	ID               int               `json:"id" yaml:"id"`
	Name             string            `json:"name" yaml:"name"`
	Description      string            `json:"description" yaml:"description"`
	Priority         Priority          `json:"priority" yaml:"priority"`
	Status           TestStatus        `json:"status" yaml:"status"`
	Steps            []string          `json:"steps" yaml:"steps"`
	ExpectedResults  string            `json:"expected_results" yaml:"expected_results"`
	LastExecuted     *time.Time        `json:"last_executed,omitempty" yaml:"last_executed,omitempty"`
	ExecutionHistory []ExecutionRecord `json:"execution_history" yaml:"execution_history"`
	Version          string            `json:"version" yaml:"version"`
	Versions         []TestCaseVersion `json:"versions" yaml:"versions"`
}

// TestCaseVersion is the content of a test case before an edit replaced it.
// Version is the label the content carried, CreatedAt when it was replaced.
type TestCaseVersion struct {
	Version         string    `json:"version" yaml:"version"`
	Name            string    `json:"name" yaml:"name"`
	Description     string    `json:"description" yaml:"description"`
	Priority        Priority  `json:"priority" yaml:"priority"`
	Steps           []string  `json:"steps" yaml:"steps"`
	ExpectedResults string    `json:"expected_results" yaml:"expected_results"`
	CreatedAt       time.Time `json:"created_at" yaml:"created_at"`
}

// TestSuiteChild is a sub-suite nested under a top-level TestSuite
type TestSuiteChild struct {
	ID          int        `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	TestCases   []TestCase `json:"test_cases" yaml:"test_cases"`
	ParentID    int        `json:"parent_id" yaml:"parent_id"`
}

// TestSuite is a top-level suite owning its children and direct test cases
type TestSuite struct {
	ID          int              `json:"id" yaml:"id"`
	Name        string           `json:"name" yaml:"name"`
	Description string           `json:"description" yaml:"description"`
	Children    []TestSuiteChild `json:"children" yaml:"children"`
	TestCases   []TestCase       `json:"test_cases" yaml:"test_cases"`
}

// CreateTestSuiteRequest represents a request to create a suite or a child suite
type CreateTestSuiteRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=255"`
	Description string `json:"description" validate:"max=2000"`
	ParentID    *int   `json:"parent_id,omitempty" validate:"omitempty,min=1"`
}

// UpdateTestSuiteRequest represents a partial update of a suite
type UpdateTestSuiteRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
}

// ReplaceTestSuitesRequest replaces the whole suite tree of a tenant
type ReplaceTestSuitesRequest struct {
	Suites []TestSuite `json:"suites" validate:"dive"`
}

// CreateTestCaseRequest represents the user-supplied fields of a new test case
type CreateTestCaseRequest struct {
	Name            string   `json:"name" validate:"required,min=1,max=255"`
	Description     string   `json:"description" validate:"max=5000"`
	Priority        Priority `json:"priority" validate:"required,oneof=high medium low"`
	Steps           []string `json:"steps" validate:"required,min=1"`
	ExpectedResults string   `json:"expected_results" validate:"max=5000"`
}

// UpdateTestCaseRequest represents a partial update of a test case
type UpdateTestCaseRequest struct {
	Name            *string     `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Description     *string     `json:"description,omitempty" validate:"omitempty,max=5000"`
	Priority        *Priority   `json:"priority,omitempty" validate:"omitempty,oneof=high medium low"`
	Status          *TestStatus `json:"status,omitempty" validate:"omitempty,oneof=not_started in_progress completed failed pending skipped"`
	Steps           []string    `json:"steps,omitempty" validate:"omitempty,min=1"`
	ExpectedResults *string     `json:"expected_results,omitempty" validate:"omitempty,max=5000"`
}

// ExecuteTestCaseRequest records the outcome of a manual execution
type ExecuteTestCaseRequest struct {
	Status  TestStatus `json:"status" validate:"required,oneof=completed failed pending skipped"`
	Comment string     `json:"comment" validate:"max=2000"`
}

// SelectionRequest updates the current selection of a tenant workspace
type SelectionRequest struct {
	SuiteID         *int  `json:"suite_id,omitempty" validate:"omitempty,min=1"`
	ChildID         *int  `json:"child_id,omitempty" validate:"omitempty,min=1"`
	CreateModalOpen *bool `json:"create_modal_open,omitempty"`
}

// HistoryEntry is a flattened execution record with its location in the tree
type HistoryEntry struct {
	SuiteID      int        `json:"suite_id"`
	SuiteName    string     `json:"suite_name"`
	ChildID      *int       `json:"child_id,omitempty"`
	ChildName    string     `json:"child_name,omitempty"`
	TestCaseID   int        `json:"test_case_id"`
	TestCaseName string     `json:"test_case_name"`
	Date         time.Time  `json:"date"`
	Status       TestStatus `json:"status"`
	Comment      string     `json:"comment"`
}

// DashboardStats summarises the test cases of a tenant
type DashboardStats struct {
	Suites     int                `json:"suites"`
	Children   int                `json:"children"`
	TestCases  int                `json:"test_cases"`
	Executions int                `json:"executions"`
	ByStatus   map[TestStatus]int `json:"by_status"`
	ByPriority map[Priority]int   `json:"by_priority"`
	PassRate   float64            `json:"pass_rate"`
}
