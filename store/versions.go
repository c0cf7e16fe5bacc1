package store

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/KBesada24/test-suite-manager/models"
)

// InitialVersion is the version label of a newly created test case
const InitialVersion = "1.0"

// IsVersionLabel reports whether v has the form major.minor
func IsVersionLabel(v string) bool {
	_, _, ok := parseVersion(v)
	return ok
}

func parseVersion(v string) (major, minor int, ok bool) {
	head, tail, found := strings.Cut(v, ".")
	if !found {
		return 0, 0, false
	}
	major, err := strconv.Atoi(head)
	if err != nil || major < 1 {
		return 0, 0, false
	}
	minor, err = strconv.Atoi(tail)
	if err != nil || minor < 0 {
		return 0, 0, false
	}
	return major, minor, true
}

// nextVersion bumps the minor part of v. Labels that do not parse restart at 1.1.
func nextVersion(v string) string {
	major, minor, ok := parseVersion(v)
	if !ok {
		major, minor = 1, 0
	}
	return strconv.Itoa(major) + "." + strconv.Itoa(minor+1)
}

// contentChanged reports whether the user-authored fields of two cases differ.
// Status and execution data are not content.
func contentChanged(before, after models.TestCase) bool {
	return before.Name != after.Name ||
		before.Description != after.Description ||
		before.Priority != after.Priority ||
		before.ExpectedResults != after.ExpectedResults ||
		!slices.Equal(before.Steps, after.Steps)
}

// archive returns after with the content of before appended to its versions
// and the version label bumped
func archive(before, after models.TestCase, at time.Time) models.TestCase {
	label := before.Version
	if label == "" {
		label = InitialVersion
	}

	versions := make([]models.TestCaseVersion, len(before.Versions), len(before.Versions)+1)
	copy(versions, before.Versions)
	after.Versions = append(versions, models.TestCaseVersion{
		Version:         label,
		Name:            before.Name,
		Description:     before.Description,
		Priority:        before.Priority,
		Steps:           before.Steps,
		ExpectedResults: before.ExpectedResults,
		CreatedAt:       at,
	})
	after.Version = nextVersion(label)
	return after
}

// TestCaseVersions returns the archived versions of a test case, newest first
func (s *Store) TestCaseVersions(suiteID, childID, testCaseID int) ([]models.TestCaseVersion, error) {
	tc, err := s.TestCase(suiteID, childID, testCaseID)
	if err != nil {
		return nil, err
	}

	versions := make([]models.TestCaseVersion, 0, len(tc.Versions))
	for i := len(tc.Versions) - 1; i >= 0; i-- {
		versions = append(versions, tc.Versions[i])
	}
	return versions, nil
}

// TestCaseVersion returns one archived version of a test case by its label
func (s *Store) TestCaseVersion(suiteID, childID, testCaseID int, label string) (models.TestCaseVersion, error) {
	tc, err := s.TestCase(suiteID, childID, testCaseID)
	if err != nil {
		return models.TestCaseVersion{}, err
	}

	for _, v := range tc.Versions {
		if v.Version == label {
			return v, nil
		}
	}
	return models.TestCaseVersion{}, &NotFoundError{Kind: KindVersion, Label: label}
}
