package main

import (
	"time"

	"github.com/KBesada24/test-suite-manager/config"
	"github.com/KBesada24/test-suite-manager/handlers"
	"github.com/KBesada24/test-suite-manager/middleware"
	"github.com/KBesada24/test-suite-manager/models"
	"github.com/KBesada24/test-suite-manager/repository"
	"github.com/KBesada24/test-suite-manager/services"
	"github.com/KBesada24/test-suite-manager/utils"
	"github.com/KBesada24/test-suite-manager/websocket"
	"github.com/gofiber/fiber/v2"
)

const appVersion = "1.0.0"

// application holds the services and the fiber app of a running server
type application struct {
	cfg    *config.Config
	logger *utils.Logger
	repo   *repository.Repository

	hub         *websocket.Hub
	suites      *services.SuiteService
	tenants     *services.TenantService
	teams       *services.TeamService
	invitations *services.InvitationService
	metrics     *middleware.PerformanceMetrics

	fiber *fiber.App
}

// newApplication wires services, middleware and routes around repo.
// The websocket hub is created but not started.
func newApplication(cfg *config.Config, repo *repository.Repository) *application {
	a := &application{
		cfg:         cfg,
		logger:      utils.GetLogger(),
		repo:        repo,
		tenants:     services.NewTenantService(repo),
		invitations: services.NewInvitationService(repo, cfg.InvitationTTLDays),
		metrics:     middleware.NewPerformanceMetrics(),
	}

	var broadcaster services.WebSocketBroadcaster
	if cfg.EnableWebSocket {
		a.hub = websocket.NewHub()
		broadcaster = a.hub
	}
	a.suites = services.NewSuiteService(cfg, repo, broadcaster)
	a.teams = services.NewTeamService(repo, repo, a.suites)

	a.fiber = createFiberApp(cfg, a.logger)
	setupMiddleware(a)
	setupRoutes(a)
	return a
}

// createFiberApp creates and configures the Fiber application
func createFiberApp(cfg *config.Config, logger *utils.Logger) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:      "Test Suite Manager v" + appVersion,
		ServerHeader: "Test-Suite-Manager",
		ErrorHandler: middleware.ErrorHandler(middleware.ErrorHandlingConfig{
			Logger:               logger,
			EnableStackTrace:     cfg.IsDevelopment(),
			EnableDetailedErrors: cfg.EnableDetailedErrors,
		}),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BodyLimit:    10 * 1024 * 1024, // 10MB
		JSONEncoder:  utils.JSONMarshal,
		JSONDecoder:  utils.JSONUnmarshal,
	})
}

// setupMiddleware configures the middleware shared by every route
func setupMiddleware(a *application) {
	app := a.fiber

	// Recovery middleware (should be first)
	app.Use(middleware.PanicRecovery(middleware.ErrorHandlingConfig{
		Logger:           a.logger,
		EnableStackTrace: a.cfg.IsDevelopment(),
	}))

	app.Use(middleware.CorrelationID())
	app.Use(middleware.CORSForFrontend(a.cfg.FrontendURL))
	app.Use(middleware.RequestValidation())

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.Logger = a.logger
	app.Use(middleware.RequestLogging(loggingConfig))
	app.Use(middleware.StructuredLogging(a.logger))

	app.Use(a.metrics.Middleware())

	if a.cfg.EnableRateLimiting {
		app.Use(middleware.RateLimiting(middleware.RateLimitConfig{
			RequestsPerMinute: a.cfg.RateLimitPerMinute,
			SkipPaths:         []string{"/health"},
		}))
	}
}

// setupRoutes configures all routes for the application
func setupRoutes(a *application) {
	app := a.fiber

	var hubStats handlers.HubStatsSource
	if a.hub != nil {
		hubStats = a.hub
	}
	healthHandler := handlers.NewHealthHandler(appVersion, a.cfg.Environment, a.repo, hubStats, a.suites, a.metrics)
	app.Get("/health", healthHandler.HealthCheck)
	app.Get("/metrics", healthHandler.Metrics)

	if a.hub != nil {
		wsHandler := websocket.NewHandler(a.hub, a.suites)
		app.Get("/ws/stats", healthHandler.WebSocketStats)
		app.Get(a.cfg.WSEndpoint,
			middleware.Authenticate(),
			middleware.RequireTenantMember(a.tenants, middleware.TenantFromQuery("tenant_id")),
			wsHandler.Upgrade,
			wsHandler.Serve(),
		)
	}

	api := app.Group("/api", middleware.Authenticate())

	tenantHandler := handlers.NewTenantHandler(a.tenants)
	invitationHandler := handlers.NewInvitationHandler(a.invitations)

	api.Get("/tenants", tenantHandler.ListTenants)
	api.Post("/tenants", tenantHandler.CreateTenant)
	setupInvitationRoutes(api, invitationHandler)

	tenant := api.Group("/tenants/:tenantId",
		middleware.ValidateParams(map[string]string{"tenantId": "required,max=64"}),
		middleware.RequireTenantMember(a.tenants, middleware.TenantFromParam("tenantId")))

	setupTenantRoutes(tenant, tenantHandler, invitationHandler)
	setupTeamRoutes(tenant, handlers.NewTeamHandler(a.teams))
	setupSuiteRoutes(tenant, handlers.NewSuiteHandler(a.suites))

	app.Use(middleware.NotFoundHandler())

	a.logger.Info("Routes configured successfully", map[string]interface{}{
		"health_endpoint":    "/health",
		"api_base":           "/api",
		"websocket_endpoint": a.cfg.WSEndpoint,
		"websocket_enabled":  a.hub != nil,
	})
}

// Role guards
var (
	adminOnly      = middleware.RequireRole(models.RoleAdmin)
	adminOrManager = middleware.RequireRole(models.RoleAdmin, models.RoleManager)
	suiteEditors   = middleware.RequireRole(models.RoleAdmin, models.RoleManager, models.RoleUser)
)

// setupInvitationRoutes configures the routes used by invitees
func setupInvitationRoutes(api fiber.Router, h *handlers.InvitationHandler) {
	invitations := api.Group("/invitations")
	invitations.Get("/:token", h.GetInvitation)
	invitations.Post("/:token/accept", h.AcceptInvitation)
}

// setupTenantRoutes configures tenant and membership routes
func setupTenantRoutes(tenant fiber.Router, h *handlers.TenantHandler, inv *handlers.InvitationHandler) {
	tenant.Get("/", h.GetTenant)
	tenant.Put("/", adminOnly, h.UpdateTenant)

	tenant.Get("/members", h.ListMembers)
	tenant.Post("/members", adminOnly, h.AddMember)
	tenant.Put("/members/:memberId", adminOnly, h.UpdateMemberRole)
	tenant.Delete("/members/:memberId", adminOnly, h.RemoveMember)

	tenant.Post("/invitations", adminOrManager, inv.CreateInvitation)
}

// setupTeamRoutes configures team routes
func setupTeamRoutes(tenant fiber.Router, h *handlers.TeamHandler) {
	tenant.Get("/teams", h.ListTeams)
	tenant.Post("/teams", adminOrManager, h.CreateTeam)
	tenant.Get("/teams/:teamId", h.GetTeam)
	tenant.Patch("/teams/:teamId", adminOrManager, h.UpdateTeam)
	tenant.Delete("/teams/:teamId", adminOrManager, h.DeleteTeam)
	tenant.Post("/teams/:teamId/members", adminOrManager, h.AddMember)
	tenant.Put("/teams/:teamId/members/:userId", adminOrManager, h.UpdateMemberRole)
	tenant.Delete("/teams/:teamId/members/:userId", adminOrManager, h.RemoveMember)
	tenant.Post("/teams/:teamId/suites", adminOrManager, h.LinkSuite)
	tenant.Delete("/teams/:teamId/suites/:suiteId", adminOrManager, h.UnlinkSuite)
}

// setupSuiteRoutes configures the suite tree routes. Guests can read but not change the tree.
func setupSuiteRoutes(tenant fiber.Router, h *handlers.SuiteHandler) {
	tenant.Get("/suites", h.GetTestSuites)
	tenant.Put("/suites", suiteEditors, h.ReplaceTestSuites)
	tenant.Post("/suites", suiteEditors, h.CreateTestSuite)
	tenant.Get("/suites/:suiteId", h.GetTestSuite)
	tenant.Patch("/suites/:suiteId", suiteEditors, h.UpdateTestSuite)
	tenant.Delete("/suites/:suiteId", suiteEditors, h.DeleteTestSuite)

	tenant.Get("/selection", h.GetSelection)
	tenant.Put("/selection", suiteEditors, h.UpdateSelection)

	for _, prefix := range []string{"/suites/:suiteId/cases", "/suites/:suiteId/children/:childId/cases"} {
		tenant.Post(prefix, suiteEditors, h.CreateTestCase)
		tenant.Get(prefix+"/:caseId", h.GetTestCase)
		tenant.Patch(prefix+"/:caseId", suiteEditors, h.UpdateTestCase)
		tenant.Delete(prefix+"/:caseId", suiteEditors, h.DeleteTestCase)
		tenant.Post(prefix+"/:caseId/execute", suiteEditors, h.ExecuteTestCase)
		tenant.Get(prefix+"/:caseId/versions", h.ListTestCaseVersions)
		tenant.Get(prefix+"/:caseId/versions/:version", h.GetTestCaseVersion)
	}

	tenant.Get("/history", middleware.ValidateQuery(map[string]string{"limit": "omitempty,number"}), h.GetHistory)
	tenant.Get("/dashboard", h.GetDashboard)
}
