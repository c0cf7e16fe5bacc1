package store

import "github.com/KBesada24/test-suite-manager/models"

// cloneSuites deep-copies suites so the store never aliases caller memory.
// Nil lists become empty ones and child back-references follow the owning suite.
func cloneSuites(suites []models.TestSuite) []models.TestSuite {
	cloned := make([]models.TestSuite, len(suites))
	for i, suite := range suites {
		children := make([]models.TestSuiteChild, len(suite.Children))
		for j, child := range suite.Children {
			child.ParentID = suite.ID
			child.TestCases = cloneCases(child.TestCases)
			children[j] = child
		}
		suite.Children = children
		suite.TestCases = cloneCases(suite.TestCases)
		cloned[i] = suite
	}
	return cloned
}

func cloneCases(cases []models.TestCase) []models.TestCase {
	cloned := make([]models.TestCase, len(cases))
	for i, tc := range cases {
		steps := make([]string, len(tc.Steps))
		copy(steps, tc.Steps)
		tc.Steps = steps

		history := make([]models.ExecutionRecord, len(tc.ExecutionHistory))
		copy(history, tc.ExecutionHistory)
		tc.ExecutionHistory = history

		if tc.LastExecuted != nil {
			last := *tc.LastExecuted
			tc.LastExecuted = &last
		}
		if tc.Status == "" {
			tc.Status = models.StatusNotStarted
		}
		if tc.Version == "" {
			tc.Version = InitialVersion
		}
		tc.Versions = cloneVersions(tc.Versions)
		cloned[i] = tc
	}
	return cloned
}

func cloneVersions(versions []models.TestCaseVersion) []models.TestCaseVersion {
	cloned := make([]models.TestCaseVersion, len(versions))
	for i, v := range versions {
		steps := make([]string, len(v.Steps))
		copy(steps, v.Steps)
		v.Steps = steps
		cloned[i] = v
	}
	return cloned
}

// CloneSuites returns a deep copy of suites that callers may modify freely
func CloneSuites(suites []models.TestSuite) []models.TestSuite {
	return cloneSuites(suites)
}
