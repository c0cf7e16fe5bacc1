package store

import (
	"fmt"
	"sort"
	"strings"

	"github.com/KBesada24/test-suite-manager/models"
)

// InvalidTreeError lists the problems found in a tree passed to SetTestSuites.
// Problems are keyed by the path of the offending field.
type InvalidTreeError struct {
	Problems map[string]string
}

func (e *InvalidTreeError) Error() string {
	paths := make([]string, 0, len(e.Problems))
	for path := range e.Problems {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	parts := make([]string, 0, len(paths))
	for _, path := range paths {
		parts = append(parts, path+": "+e.Problems[path])
	}
	return "invalid test suite tree: " + strings.Join(parts, "; ")
}

// ValidateTree checks that every id in suites is positive and unique in its
// scope: suite ids across suites, child ids across all children of all
// suites, test case ids within one list and version labels within one case.
func ValidateTree(suites []models.TestSuite) error {
	problems := make(map[string]string)
	suiteIDs := make(map[int]bool, len(suites))
	childIDs := make(map[int]string)

	for i, suite := range suites {
		path := fmt.Sprintf("suites[%d]", i)
		switch {
		case suite.ID <= 0:
			problems[path+".id"] = "Must be a positive integer"
		case suiteIDs[suite.ID]:
			problems[path+".id"] = fmt.Sprintf("Duplicate suite id %d", suite.ID)
		}
		suiteIDs[suite.ID] = true

		checkCases(problems, path+".test_cases", suite.TestCases)

		for j, child := range suite.Children {
			childPath := fmt.Sprintf("%s.children[%d]", path, j)
			if child.ID <= 0 {
				problems[childPath+".id"] = "Must be a positive integer"
			} else if first, seen := childIDs[child.ID]; seen {
				problems[childPath+".id"] = fmt.Sprintf("Duplicate child suite id %d, first used at %s", child.ID, first)
			} else {
				childIDs[child.ID] = childPath
			}
			checkCases(problems, childPath+".test_cases", child.TestCases)
		}
	}

	if len(problems) > 0 {
		return &InvalidTreeError{Problems: problems}
	}
	return nil
}

func checkCases(problems map[string]string, path string, cases []models.TestCase) {
	ids := make(map[int]bool, len(cases))
	for i, tc := range cases {
		casePath := fmt.Sprintf("%s[%d]", path, i)
		switch {
		case tc.ID <= 0:
			problems[casePath+".id"] = "Must be a positive integer"
		case ids[tc.ID]:
			problems[casePath+".id"] = fmt.Sprintf("Duplicate test case id %d", tc.ID)
		}
		ids[tc.ID] = true

		if tc.Status != "" && !tc.Status.IsValid() {
			problems[casePath+".status"] = fmt.Sprintf("Unknown status %q", tc.Status)
		}

		labels := make(map[string]bool, len(tc.Versions))
		for j, v := range tc.Versions {
			versionPath := fmt.Sprintf("%s.versions[%d].version", casePath, j)
			switch {
			case !IsVersionLabel(v.Version):
				problems[versionPath] = "Must look like 1.0"
			case labels[v.Version]:
				problems[versionPath] = fmt.Sprintf("Duplicate version %s", v.Version)
			}
			labels[v.Version] = true
		}
		if tc.Version != "" && !IsVersionLabel(tc.Version) {
			problems[casePath+".version"] = "Must look like 1.0"
		}
	}
}
