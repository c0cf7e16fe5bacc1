package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/KBesada24/test-suite-manager/config"
	"github.com/KBesada24/test-suite-manager/middleware"
	"github.com/KBesada24/test-suite-manager/models"
	"github.com/KBesada24/test-suite-manager/services"
	"github.com/KBesada24/test-suite-manager/store"
	"github.com/KBesada24/test-suite-manager/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTenant = "tenant-1"

// apiResponse is StandardResponse with the payload left undecoded
type apiResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Data    json.RawMessage  `json:"data"`
	Error   *utils.ErrorInfo `json:"error"`
}

func setupTestApp() *fiber.App {
	logger := utils.NewLogger("error", "json")
	logger.SetOutput(io.Discard)

	return fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(middleware.ErrorHandlingConfig{Logger: logger}),
	})
}

// asMember stands in for Authenticate and RequireTenantMember
func asMember(tenantID, userID, email string, role models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(middleware.LocalUserID, userID)
		c.Locals(middleware.LocalUserEmail, email)
		c.Locals(middleware.LocalTenantID, tenantID)
		c.Locals(middleware.LocalMembership, &models.TenantUser{TenantID: tenantID, UserID: userID, Role: role})
		return c.Next()
	}
}

func doRequest(t *testing.T, app *fiber.App, method, path string, body interface{}) (int, apiResponse) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			data, err := json.Marshal(body)
			require.NoError(t, err)
			raw = string(data)
		}
		reader = bytes.NewBufferString(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out apiResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func decodeData(t *testing.T, resp apiResponse, target interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(resp.Data, target))
}

func newSuiteApp(t *testing.T) (*fiber.App, *services.SuiteService) {
	t.Helper()
	svc := services.NewSuiteService(config.Default(), nil, nil)
	h := NewSuiteHandler(svc)

	app := setupTestApp()
	tenant := app.Group("/api/tenants/:tenantId", asMember(testTenant, "user-1", "user@example.com", models.RoleUser))
	tenant.Get("/suites", h.GetTestSuites)
	tenant.Put("/suites", h.ReplaceTestSuites)
	tenant.Post("/suites", h.CreateTestSuite)
	tenant.Get("/suites/:suiteId", h.GetTestSuite)
	tenant.Patch("/suites/:suiteId", h.UpdateTestSuite)
	tenant.Delete("/suites/:suiteId", h.DeleteTestSuite)
	tenant.Get("/selection", h.GetSelection)
	tenant.Put("/selection", h.UpdateSelection)
	for _, prefix := range []string{"/suites/:suiteId/cases", "/suites/:suiteId/children/:childId/cases"} {
		cases := tenant.Group(prefix)
		cases.Post("/", h.CreateTestCase)
		cases.Get("/:caseId", h.GetTestCase)
		cases.Patch("/:caseId", h.UpdateTestCase)
		cases.Delete("/:caseId", h.DeleteTestCase)
		cases.Post("/:caseId/execute", h.ExecuteTestCase)
		cases.Get("/:caseId/versions", h.ListTestCaseVersions)
		cases.Get("/:caseId/versions/:version", h.GetTestCaseVersion)
	}
	tenant.Get("/history", h.GetHistory)
	tenant.Get("/dashboard", h.GetDashboard)
	return app, svc
}

func TestSuiteHandler_Lifecycle(t *testing.T) {
	app, _ := newSuiteApp(t)
	base := "/api/tenants/" + testTenant

	status, resp := doRequest(t, app, http.MethodPost, base+"/suites", models.CreateTestSuiteRequest{Name: "Checkout"})
	require.Equal(t, http.StatusCreated, status, resp.Error)
	var created services.CreatedSuite
	decodeData(t, resp, &created)
	assert.Equal(t, store.SuiteRef{SuiteID: 1}, created.Ref)

	parent := 1
	status, resp = doRequest(t, app, http.MethodPost, base+"/suites", models.CreateTestSuiteRequest{Name: "Cards", ParentID: &parent})
	require.Equal(t, http.StatusCreated, status)
	decodeData(t, resp, &created)
	assert.Equal(t, store.SuiteRef{SuiteID: 1, ChildID: 1}, created.Ref)
	require.NotNil(t, created.Child)
	assert.Equal(t, 1, created.Child.ParentID)

	status, resp = doRequest(t, app, http.MethodPost, base+"/suites/1/cases", models.CreateTestCaseRequest{
		Name:     "empty cart",
		Priority: models.PriorityLow,
		Steps:    []string{"open cart", "  ", "check total"},
	})
	require.Equal(t, http.StatusCreated, status, resp.Error)
	var tc models.TestCase
	decodeData(t, resp, &tc)
	assert.Equal(t, 1, tc.ID)
	assert.Equal(t, models.StatusNotStarted, tc.Status)
	assert.Equal(t, []string{"open cart", "check total"}, tc.Steps)

	status, resp = doRequest(t, app, http.MethodPost, base+"/suites/1/children/1/cases", models.CreateTestCaseRequest{
		Name:     "pay with visa",
		Priority: models.PriorityHigh,
		Steps:    []string{"pay"},
	})
	require.Equal(t, http.StatusCreated, status)
	decodeData(t, resp, &tc)
	assert.Equal(t, 1, tc.ID)

	status, resp = doRequest(t, app, http.MethodPatch, base+"/suites/1/children/1/cases/1", map[string]interface{}{
		"name": "pay with mastercard",
	})
	require.Equal(t, http.StatusOK, status)
	decodeData(t, resp, &tc)
	assert.Equal(t, "pay with mastercard", tc.Name)
	assert.Equal(t, models.StatusNotStarted, tc.Status)

	status, resp = doRequest(t, app, http.MethodPost, base+"/suites/1/children/1/cases/1/execute", models.ExecuteTestCaseRequest{
		Status:  models.StatusFailed,
		Comment: "card declined",
	})
	require.Equal(t, http.StatusOK, status)
	decodeData(t, resp, &tc)
	assert.Equal(t, models.StatusFailed, tc.Status)
	assert.NotNil(t, tc.LastExecuted)
	require.Len(t, tc.ExecutionHistory, 1)
	assert.Equal(t, "card declined", tc.ExecutionHistory[0].Comment)

	status, resp = doRequest(t, app, http.MethodGet, base+"/history?limit=10", nil)
	require.Equal(t, http.StatusOK, status)
	var history []models.HistoryEntry
	decodeData(t, resp, &history)
	require.Len(t, history, 1)
	assert.Equal(t, "Cards", history[0].ChildName)
	assert.Equal(t, "pay with mastercard", history[0].TestCaseName)

	status, resp = doRequest(t, app, http.MethodGet, base+"/dashboard", nil)
	require.Equal(t, http.StatusOK, status)
	var stats models.DashboardStats
	decodeData(t, resp, &stats)
	assert.Equal(t, 1, stats.Suites)
	assert.Equal(t, 1, stats.Children)
	assert.Equal(t, 2, stats.TestCases)
	assert.Equal(t, 1, stats.ByStatus[models.StatusFailed])

	status, _ = doRequest(t, app, http.MethodDelete, base+"/suites/1/cases/1", nil)
	assert.Equal(t, http.StatusOK, status)
	status, resp = doRequest(t, app, http.MethodGet, base+"/suites/1/cases/1", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)

	status, _ = doRequest(t, app, http.MethodDelete, base+"/suites/1", nil)
	assert.Equal(t, http.StatusOK, status)

	status, resp = doRequest(t, app, http.MethodGet, base+"/suites", nil)
	require.Equal(t, http.StatusOK, status)
	var snap store.Snapshot
	decodeData(t, resp, &snap)
	assert.Empty(t, snap.Suites)
}

func TestSuiteHandler_Errors(t *testing.T) {
	app, _ := newSuiteApp(t)
	base := "/api/tenants/" + testTenant

	tests := []struct {
		name       string
		method     string
		path       string
		body       interface{}
		wantStatus int
		wantCode   string
		wantField  string
	}{
		{
			name:       "unknown suite",
			method:     http.MethodGet,
			path:       base + "/suites/99",
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:       "non numeric suite id",
			method:     http.MethodPatch,
			path:       base + "/suites/abc",
			body:       map[string]string{"name": "x"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
			wantField:  "suiteId",
		},
		{
			name:       "suite without name",
			method:     http.MethodPost,
			path:       base + "/suites",
			body:       map[string]string{"description": "nameless"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
			wantField:  "name",
		},
		{
			name:       "malformed body",
			method:     http.MethodPost,
			path:       base + "/suites",
			body:       `{"name":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
			wantField:  "_body",
		},
		{
			name:       "test case in unknown suite",
			method:     http.MethodPost,
			path:       base + "/suites/7/cases",
			body:       models.CreateTestCaseRequest{Name: "x", Priority: models.PriorityLow, Steps: []string{"a"}},
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:       "execution cannot set in progress",
			method:     http.MethodPost,
			path:       base + "/suites/1/cases/1/execute",
			body:       map[string]string{"status": "in_progress"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
			wantField:  "status",
		},
		{
			name:       "history limit out of range",
			method:     http.MethodGet,
			path:       base + "/history?limit=0",
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
			wantField:  "limit",
		},
		{
			name:       "selection child without suite",
			method:     http.MethodPut,
			path:       base + "/selection",
			body:       map[string]int{"child_id": 1},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
			wantField:  "suite_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := doRequest(t, app, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, status)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			if tt.wantField != "" {
				assert.Contains(t, resp.Error.Details, tt.wantField)
			}
		})
	}
}

func TestSuiteHandler_ReplaceAndSelect(t *testing.T) {
	app, _ := newSuiteApp(t)
	base := "/api/tenants/" + testTenant

	tree := models.ReplaceTestSuitesRequest{Suites: []models.TestSuite{
		{ID: 4, Name: "Search", Children: []models.TestSuiteChild{
			{ID: 9, ParentID: 4, Name: "Filters", TestCases: []models.TestCase{
				{ID: 1, Name: "by price", Priority: models.PriorityMedium, Status: models.StatusPending, Steps: []string{"filter"}},
			}},
		}},
	}}
	status, resp := doRequest(t, app, http.MethodPut, base+"/suites", tree)
	require.Equal(t, http.StatusOK, status, resp.Error)
	var snap store.Snapshot
	decodeData(t, resp, &snap)
	assert.Equal(t, uint64(1), snap.Version)
	require.Len(t, snap.Suites, 1)

	// ids keep counting from the replaced tree
	status, resp = doRequest(t, app, http.MethodPost, base+"/suites", models.CreateTestSuiteRequest{Name: "Profile"})
	require.Equal(t, http.StatusCreated, status)
	var created services.CreatedSuite
	decodeData(t, resp, &created)
	assert.Equal(t, 5, created.Ref.SuiteID)

	status, resp = doRequest(t, app, http.MethodPut, base+"/selection", map[string]interface{}{
		"suite_id": 4,
		"child_id": 9,
	})
	require.Equal(t, http.StatusOK, status, resp.Error)
	var view services.SelectionView
	decodeData(t, resp, &view)
	require.NotNil(t, view.Suite)
	require.NotNil(t, view.Child)
	assert.Equal(t, "Filters", view.Child.Name)
	assert.Len(t, view.TestCases, 1)

	status, resp = doRequest(t, app, http.MethodPut, base+"/selection", map[string]bool{"create_modal_open": true})
	require.Equal(t, http.StatusOK, status)
	decodeData(t, resp, &view)
	assert.True(t, view.Selection.CreateModalOpen)
	require.NotNil(t, view.Selection.SuiteID)
	assert.Equal(t, 4, *view.Selection.SuiteID)

	status, resp = doRequest(t, app, http.MethodPut, base+"/selection", map[string]interface{}{})
	require.Equal(t, http.StatusOK, status)
	status, resp = doRequest(t, app, http.MethodGet, base+"/selection", nil)
	require.Equal(t, http.StatusOK, status)
	view = services.SelectionView{}
	decodeData(t, resp, &view)
	assert.Nil(t, view.Selection.SuiteID)
	assert.Nil(t, view.Suite)
	assert.Empty(t, view.TestCases)
}

func TestSuiteHandler_ReplaceRejectsInvalidTree(t *testing.T) {
	app, svc := newSuiteApp(t)
	base := "/api/tenants/" + testTenant

	status, resp := doRequest(t, app, http.MethodPost, base+"/suites", models.CreateTestSuiteRequest{Name: "Kept"})
	require.Equal(t, http.StatusCreated, status, resp.Error)

	tree := models.ReplaceTestSuitesRequest{Suites: []models.TestSuite{
		{ID: 1, Name: "A", Children: []models.TestSuiteChild{{ID: 0, ParentID: 1, Name: "zero"}}},
		{ID: 1, Name: "B"},
	}}
	status, resp = doRequest(t, app, http.MethodPut, base+"/suites", tree)
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Contains(t, resp.Error.Details, "suites[1].id")
	assert.Contains(t, resp.Error.Details, "suites[0].children[0].id")

	snap, err := svc.Snapshot(context.Background(), testTenant)
	require.NoError(t, err)
	require.Len(t, snap.Suites, 1)
	assert.Equal(t, "Kept", snap.Suites[0].Name)
}

func TestSuiteHandler_TestCaseVersions(t *testing.T) {
	app, _ := newSuiteApp(t)
	base := "/api/tenants/" + testTenant

	status, resp := doRequest(t, app, http.MethodPost, base+"/suites", models.CreateTestSuiteRequest{Name: "Checkout"})
	require.Equal(t, http.StatusCreated, status, resp.Error)
	status, resp = doRequest(t, app, http.MethodPost, base+"/suites/1/cases", models.CreateTestCaseRequest{
		Name:     "pay",
		Priority: models.PriorityLow,
		Steps:    []string{"open cart"},
	})
	require.Equal(t, http.StatusCreated, status, resp.Error)

	status, resp = doRequest(t, app, http.MethodPatch, base+"/suites/1/cases/1", map[string]interface{}{
		"steps": []string{"open cart", "pay"},
	})
	require.Equal(t, http.StatusOK, status, resp.Error)
	var tc models.TestCase
	decodeData(t, resp, &tc)
	assert.Equal(t, "1.1", tc.Version)

	status, resp = doRequest(t, app, http.MethodGet, base+"/suites/1/cases/1/versions", nil)
	require.Equal(t, http.StatusOK, status, resp.Error)
	var versions []models.TestCaseVersion
	decodeData(t, resp, &versions)
	require.Len(t, versions, 1)
	assert.Equal(t, "1.0", versions[0].Version)

	status, resp = doRequest(t, app, http.MethodGet, base+"/suites/1/cases/1/versions/1.0", nil)
	require.Equal(t, http.StatusOK, status, resp.Error)
	var version models.TestCaseVersion
	decodeData(t, resp, &version)
	assert.Equal(t, []string{"open cart"}, version.Steps)

	status, resp = doRequest(t, app, http.MethodGet, base+"/suites/1/cases/1/versions/2.0", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)

	status, resp = doRequest(t, app, http.MethodGet, base+"/suites/1/cases/1/versions/latest", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, resp.Error.Details, "version")
}

func TestSuiteHandler_TenantsAreIsolated(t *testing.T) {
	svc := services.NewSuiteService(config.Default(), nil, nil)
	h := NewSuiteHandler(svc)

	app := setupTestApp()
	app.Post("/a/suites", asMember("tenant-a", "u", "", models.RoleUser), h.CreateTestSuite)
	app.Get("/b/suites", asMember("tenant-b", "u", "", models.RoleUser), h.GetTestSuites)

	status, _ := doRequest(t, app, http.MethodPost, "/a/suites", models.CreateTestSuiteRequest{Name: "Only in A"})
	require.Equal(t, http.StatusCreated, status)

	status, resp := doRequest(t, app, http.MethodGet, "/b/suites", nil)
	require.Equal(t, http.StatusOK, status)
	var snap store.Snapshot
	decodeData(t, resp, &snap)
	assert.Empty(t, snap.Suites)
	assert.Equal(t, uint64(0), snap.Version)
}
