package handlers

import (
	"cohort/internal/app"
	auditController "cohort/internal/controllers/audit"
	"cohort/internal/handlers/middleware"
	"cohort/internal/logger"
	. "cohort/internal/models"

	"github.com/gofiber/fiber/v2"
)

type AuditHandler struct {
	Handler
	controller *auditController.AuditController
}

func NewAuditHandler(app app.App, router fiber.Router) *AuditHandler {
	log := logger.New("handlers").File("audit_handler")
	return &AuditHandler{
		controller: app.AuditController,
		Handler: Handler{
			log:        log,
			router:     router,
			middleware: app.Middleware,
		},
	}
}

func (h *AuditHandler) Register() {
	h.router.Get("/audit",
		h.middleware.RequirePrivileged(middleware.RoleAuditor, middleware.RoleAuditAdmin),
		h.query)
}

func (h *AuditHandler) query(c *fiber.Ctx) error {
	log := h.log.Function("query")

	query := AuditQuery{
		Action:      c.Query("action"),
		RiskLevel:   c.Query("riskLevel"),
		FlaggedOnly: c.QueryBool("flaggedOnly"),
		Limit:       c.QueryInt("limit"),
	}

	// Hashed identifiers stay excluded unless an audit admin asks for
	// them explicitly.
	role, _ := c.Locals("role").(string)
	if c.QueryBool("includeHashes") && role == middleware.RoleAuditAdmin {
		query.IncludeHashes = true
	}

	entries, err := h.controller.Query(c.Context(), query)
	if err != nil {
		log.Er("failed to query audit log", err)
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"message": "failed to query audit log"})
	}

	return c.JSON(fiber.Map{"message": "success", "entries": entries})
}
