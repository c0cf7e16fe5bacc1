package handlers

import (
	"context"

	"github.com/KBesada24/test-suite-manager/middleware"
	"github.com/KBesada24/test-suite-manager/models"
	"github.com/KBesada24/test-suite-manager/services"
	"github.com/KBesada24/test-suite-manager/store"
	"github.com/KBesada24/test-suite-manager/utils"
	"github.com/gofiber/fiber/v2"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// SuiteServiceInterface defines the suite tree operations used by SuiteHandler
type SuiteServiceInterface interface {
	Snapshot(ctx context.Context, tenantID string) (store.Snapshot, error)
	ReplaceTestSuites(ctx context.Context, tenantID string, suites []models.TestSuite) (store.Snapshot, error)
	CreateTestSuite(ctx context.Context, tenantID string, req *models.CreateTestSuiteRequest) (*services.CreatedSuite, error)
	GetTestSuite(ctx context.Context, tenantID string, suiteID int) (models.TestSuite, error)
	UpdateTestSuite(ctx context.Context, tenantID string, suiteID int, req *models.UpdateTestSuiteRequest) (models.TestSuite, error)
	DeleteTestSuite(ctx context.Context, tenantID string, suiteID int) error
	UpdateSelection(ctx context.Context, tenantID string, req *models.SelectionRequest) (*services.SelectionView, error)
	Selection(ctx context.Context, tenantID string) (*services.SelectionView, error)
	AddTestCase(ctx context.Context, tenantID string, suiteID, childID int, req *models.CreateTestCaseRequest) (models.TestCase, error)
	GetTestCase(ctx context.Context, tenantID string, suiteID, childID, testCaseID int) (models.TestCase, error)
	UpdateTestCase(ctx context.Context, tenantID string, suiteID, childID, testCaseID int, req *models.UpdateTestCaseRequest) (models.TestCase, error)
	DeleteTestCase(ctx context.Context, tenantID string, suiteID, childID, testCaseID int) error
	ExecuteTestCase(ctx context.Context, tenantID string, suiteID, childID, testCaseID int, req *models.ExecuteTestCaseRequest) (models.TestCase, error)
	TestCaseVersions(ctx context.Context, tenantID string, suiteID, childID, testCaseID int) ([]models.TestCaseVersion, error)
	TestCaseVersion(ctx context.Context, tenantID string, suiteID, childID, testCaseID int, label string) (models.TestCaseVersion, error)
	History(ctx context.Context, tenantID string, limit int) ([]models.HistoryEntry, error)
	Stats(ctx context.Context, tenantID string) (models.DashboardStats, error)
}

// SuiteHandler handles the test suite tree of a tenant. Every route runs
// behind RequireTenantMember, so the tenant id comes from the locals.
type SuiteHandler struct {
	suiteService SuiteServiceInterface
}

// NewSuiteHandler creates a new suite handler instance
func NewSuiteHandler(suiteService SuiteServiceInterface) *SuiteHandler {
	return &SuiteHandler{suiteService: suiteService}
}

// GetTestSuites handles GET /api/tenants/:tenantId/suites
func (h *SuiteHandler) GetTestSuites(c *fiber.Ctx) error {
	snap, err := h.suiteService.Snapshot(c.UserContext(), middleware.TenantID(c))
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, "Test suites retrieved successfully", snap)
}

// ReplaceTestSuites handles PUT /api/tenants/:tenantId/suites
func (h *SuiteHandler) ReplaceTestSuites(c *fiber.Ctx) error {
	var req models.ReplaceTestSuitesRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Suites == nil {
		req.Suites = []models.TestSuite{}
	}

	snap, err := h.suiteService.ReplaceTestSuites(c.UserContext(), middleware.TenantID(c), req.Suites)
	if err != nil {
		return err
	}

	middleware.GetLoggerFromContext(c).Info("Test suites replaced", map[string]interface{}{
		"suites":  len(snap.Suites),
		"version": snap.Version,
	})
	return utils.SuccessResponse(c, "Test suites replaced successfully", snap)
}

// CreateTestSuite handles POST /api/tenants/:tenantId/suites
func (h *SuiteHandler) CreateTestSuite(c *fiber.Ctx) error {
	var req models.CreateTestSuiteRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	created, err := h.suiteService.CreateTestSuite(c.UserContext(), middleware.TenantID(c), &req)
	if err != nil {
		return err
	}
	return utils.CreatedResponse(c, "Test suite created successfully", created)
}

// GetTestSuite handles GET /api/tenants/:tenantId/suites/:suiteId
func (h *SuiteHandler) GetTestSuite(c *fiber.Ctx) error {
	suiteID, err := idParam(c, "suiteId")
	if err != nil {
		return err
	}

	suite, err := h.suiteService.GetTestSuite(c.UserContext(), middleware.TenantID(c), suiteID)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, "Test suite retrieved successfully", suite)
}

// UpdateTestSuite handles PATCH /api/tenants/:tenantId/suites/:suiteId
func (h *SuiteHandler) UpdateTestSuite(c *fiber.Ctx) error {
	suiteID, err := idParam(c, "suiteId")
	if err != nil {
		return err
	}
	var req models.UpdateTestSuiteRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	suite, err := h.suiteService.UpdateTestSuite(c.UserContext(), middleware.TenantID(c), suiteID, &req)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, "Test suite updated successfully", suite)
}

// DeleteTestSuite handles DELETE /api/tenants/:tenantId/suites/:suiteId
func (h *SuiteHandler) DeleteTestSuite(c *fiber.Ctx) error {
	suiteID, err := idParam(c, "suiteId")
	if err != nil {
		return err
	}

	if err := h.suiteService.DeleteTestSuite(c.UserContext(), middleware.TenantID(c), suiteID); err != nil {
		return err
	}

	middleware.GetLoggerFromContext(c).Info("Test suite deleted", map[string]interface{}{
		"suite_id": suiteID,
	})
	return utils.SuccessResponse(c, "Test suite deleted successfully", nil)
}

// GetSelection handles GET /api/tenants/:tenantId/selection
func (h *SuiteHandler) GetSelection(c *fiber.Ctx) error {
	view, err := h.suiteService.Selection(c.UserContext(), middleware.TenantID(c))
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, "Selection retrieved successfully", view)
}

// UpdateSelection handles PUT /api/tenants/:tenantId/selection
func (h *SuiteHandler) UpdateSelection(c *fiber.Ctx) error {
	var req models.SelectionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	view, err := h.suiteService.UpdateSelection(c.UserContext(), middleware.TenantID(c), &req)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, "Selection updated successfully", view)
}

// CreateTestCase handles POST .../suites/:suiteId/cases and
// .../suites/:suiteId/children/:childId/cases
func (h *SuiteHandler) CreateTestCase(c *fiber.Ctx) error {
	suiteID, err := idParam(c, "suiteId")
	if err != nil {
		return err
	}
	childID, err := childParam(c)
	if err != nil {
		return err
	}
	var req models.CreateTestCaseRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	tc, err := h.suiteService.AddTestCase(c.UserContext(), middleware.TenantID(c), suiteID, childID, &req)
	if err != nil {
		return err
	}
	return utils.CreatedResponse(c, "Test case created successfully", tc)
}

// GetTestCase handles GET .../cases/:caseId
func (h *SuiteHandler) GetTestCase(c *fiber.Ctx) error {
	suiteID, childID, caseID, err := caseLocation(c)
	if err != nil {
		return err
	}

	tc, err := h.suiteService.GetTestCase(c.UserContext(), middleware.TenantID(c), suiteID, childID, caseID)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, "Test case retrieved successfully", tc)
}

// ListTestCaseVersions handles GET .../cases/:caseId/versions
func (h *SuiteHandler) ListTestCaseVersions(c *fiber.Ctx) error {
	suiteID, childID, caseID, err := caseLocation(c)
	if err != nil {
		return err
	}

	versions, err := h.suiteService.TestCaseVersions(c.UserContext(), middleware.TenantID(c), suiteID, childID, caseID)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, "Test case versions retrieved successfully", versions)
}

// GetTestCaseVersion handles GET .../cases/:caseId/versions/:version
func (h *SuiteHandler) GetTestCaseVersion(c *fiber.Ctx) error {
	suiteID, childID, caseID, err := caseLocation(c)
	if err != nil {
		return err
	}
	label := c.Params("version")
	if !store.IsVersionLabel(label) {
		return utils.FieldErrors{"version": "Must look like 1.0"}
	}

	version, err := h.suiteService.TestCaseVersion(c.UserContext(), middleware.TenantID(c), suiteID, childID, caseID, label)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, "Test case version retrieved successfully", version)
}

// UpdateTestCase handles PATCH .../cases/:caseId
func (h *SuiteHandler) UpdateTestCase(c *fiber.Ctx) error {
	suiteID, childID, caseID, err := caseLocation(c)
	if err != nil {
		return err
	}
	var req models.UpdateTestCaseRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	tc, err := h.suiteService.UpdateTestCase(c.UserContext(), middleware.TenantID(c), suiteID, childID, caseID, &req)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, "Test case updated successfully", tc)
}

// DeleteTestCase handles DELETE .../cases/:caseId
func (h *SuiteHandler) DeleteTestCase(c *fiber.Ctx) error {
	suiteID, childID, caseID, err := caseLocation(c)
	if err != nil {
		return err
	}

	if err := h.suiteService.DeleteTestCase(c.UserContext(), middleware.TenantID(c), suiteID, childID, caseID); err != nil {
		return err
	}
	return utils.SuccessResponse(c, "Test case deleted successfully", nil)
}

// ExecuteTestCase handles POST .../cases/:caseId/execute
func (h *SuiteHandler) ExecuteTestCase(c *fiber.Ctx) error {
	suiteID, childID, caseID, err := caseLocation(c)
	if err != nil {
		return err
	}
	var req models.ExecuteTestCaseRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	tc, err := h.suiteService.ExecuteTestCase(c.UserContext(), middleware.TenantID(c), suiteID, childID, caseID, &req)
	if err != nil {
		return err
	}

	middleware.GetLoggerFromContext(c).Info("Test case executed", map[string]interface{}{
		"suite_id":     suiteID,
		"child_id":     childID,
		"test_case_id": caseID,
		"status":       tc.Status,
	})
	return utils.SuccessResponse(c, "Test case executed successfully", tc)
}

// GetHistory handles GET /api/tenants/:tenantId/history?limit=N
func (h *SuiteHandler) GetHistory(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultHistoryLimit)
	if limit < 1 || limit > maxHistoryLimit {
		return utils.FieldErrors{"limit": "Value must be between 1 and 500"}
	}

	history, err := h.suiteService.History(c.UserContext(), middleware.TenantID(c), limit)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, "Execution history retrieved successfully", history)
}

// GetDashboard handles GET /api/tenants/:tenantId/dashboard
func (h *SuiteHandler) GetDashboard(c *fiber.Ctx) error {
	stats, err := h.suiteService.Stats(c.UserContext(), middleware.TenantID(c))
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, "Dashboard retrieved successfully", stats)
}
