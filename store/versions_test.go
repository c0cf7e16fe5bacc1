package store

import (
	"testing"
	"time"

	"github.com/KBesada24/test-suite-manager/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextVersion(t *testing.T) {
	assert.Equal(t, "1.1", nextVersion("1.0"))
	assert.Equal(t, "2.10", nextVersion("2.9"))
	assert.Equal(t, "1.1", nextVersion(""))
	assert.Equal(t, "1.1", nextVersion("v1"))

	assert.True(t, IsVersionLabel("3.0"))
	assert.False(t, IsVersionLabel("0.1"))
	assert.False(t, IsVersionLabel("1"))
	assert.False(t, IsVersionLabel("1.x"))
}

func TestStore_UpdateTestCase_ArchivesContent(t *testing.T) {
	edited := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	s := New(WithClock(fixedClock(edited)))
	id := mustAddSuite(t, s, "suite")
	created := mustAddCase(t, s, id, NoChild, "login")
	assert.Equal(t, InitialVersion, created.Version)
	assert.Empty(t, created.Versions)

	name := "login with sso"
	updated, err := s.UpdateTestCase(id, NoChild, created.ID, TestCasePatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "1.1", updated.Version)
	require.Len(t, updated.Versions, 1)
	assert.Equal(t, models.TestCaseVersion{
		Version:         "1.0",
		Name:            "login",
		Description:     created.Description,
		Priority:        created.Priority,
		Steps:           created.Steps,
		ExpectedResults: created.ExpectedResults,
		CreatedAt:       edited,
	}, updated.Versions[0])

	_, err = s.UpdateTestCase(id, NoChild, created.ID, TestCasePatch{Steps: []string{"open sso page"}})
	require.NoError(t, err)

	versions, err := s.TestCaseVersions(id, NoChild, created.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "1.1", versions[0].Version)
	assert.Equal(t, name, versions[0].Name)
	assert.Equal(t, "1.0", versions[1].Version)

	v, err := s.TestCaseVersion(id, NoChild, created.ID, "1.0")
	require.NoError(t, err)
	assert.Equal(t, "login", v.Name)

	_, err = s.TestCaseVersion(id, NoChild, created.ID, "9.9")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, KindVersion, nf.Kind)
	assert.Equal(t, "test case version 9.9 not found", err.Error())
}

func TestStore_UpdateTestCase_UnchangedContentIsNotVersioned(t *testing.T) {
	s := New()
	id := mustAddSuite(t, s, "suite")
	created := mustAddCase(t, s, id, NoChild, "login")

	same := created.Name
	completed := models.StatusInProgress
	updated, err := s.UpdateTestCase(id, NoChild, created.ID, TestCasePatch{
		Name:   &same,
		Steps:  []string{"open page", "", "submit form"},
		Status: &completed,
	})
	require.NoError(t, err)
	assert.Equal(t, InitialVersion, updated.Version)
	assert.Empty(t, updated.Versions)

	_, err = s.ExecuteTestCase(id, NoChild, created.ID, ExecutionResult{Status: models.StatusCompleted})
	require.NoError(t, err)
	versions, err := s.TestCaseVersions(id, NoChild, created.ID)
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestStore_SetTestSuites_DefaultsVersion(t *testing.T) {
	s := New()
	require.NoError(t, s.SetTestSuites([]models.TestSuite{{ID: 1, TestCases: []models.TestCase{
		{ID: 1, Name: "a", Priority: models.PriorityLow, Steps: []string{"x"}},
		{ID: 2, Name: "b", Priority: models.PriorityLow, Steps: []string{"y"}, Version: "1.3",
			Versions: []models.TestCaseVersion{{Version: "1.2", Name: "old b"}}},
	}}}))

	a, err := s.TestCase(1, NoChild, 1)
	require.NoError(t, err)
	assert.Equal(t, InitialVersion, a.Version)
	assert.NotNil(t, a.Versions)

	name := "newer b"
	b, err := s.UpdateTestCase(1, NoChild, 2, TestCasePatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "1.4", b.Version)
	require.Len(t, b.Versions, 2)
	assert.Equal(t, "1.3", b.Versions[1].Version)
}
