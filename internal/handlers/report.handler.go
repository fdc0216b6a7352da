package handlers

import (
	"errors"

	"cohort/internal/app"
	reportController "cohort/internal/controllers/report"
	"cohort/internal/handlers/middleware"
	"cohort/internal/logger"
	. "cohort/internal/models"

	"github.com/gofiber/fiber/v2"
)

type ReportHandler struct {
	Handler
	controller *reportController.ReportController
}

func NewReportHandler(app app.App, router fiber.Router) *ReportHandler {
	log := logger.New("handlers").File("report_handler")
	return &ReportHandler{
		controller: app.ReportController,
		Handler: Handler{
			log:        log,
			router:     router,
			middleware: app.Middleware,
		},
	}
}

func (h *ReportHandler) Register() {
	reports := h.router.Group("/reports",
		h.middleware.RequirePrivileged(middleware.RoleResearcher, middleware.RoleAuditAdmin))
	reports.Post("/", h.generate)
	reports.Get("/:id", h.get)
}

func (h *ReportHandler) generate(c *fiber.Ctx) error {
	log := h.log.Function("generate")

	var query ReportQuery
	if err := c.BodyParser(&query); err != nil {
		log.Er("failed to parse report query", err)
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"message": "failed to parse report query"})
	}
	if !ValidReportType(query.ReportType) {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"message": "unknown report type"})
	}

	caller, _ := c.Locals("caller").(string)
	report, err := h.controller.Generate(c.Context(), query, caller, middleware.Meta(c))
	if errors.Is(err, reportController.ErrInsufficientSample) {
		return c.Status(fiber.StatusUnprocessableEntity).
			JSON(fiber.Map{"message": "not enough contributing segments for this query"})
	}
	if err != nil {
		log.Er("failed to generate report", err)
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"message": "failed to generate report"})
	}

	return c.JSON(fiber.Map{"message": "success", "report": report})
}

func (h *ReportHandler) get(c *fiber.Ctx) error {
	log := h.log.Function("get")

	report, err := h.controller.Get(c.Context(), c.Params("id"), middleware.Meta(c))
	if err != nil {
		log.Er("failed to load report", err)
		return c.Status(fiber.StatusNotFound).
			JSON(fiber.Map{"message": "report not found"})
	}

	return c.JSON(fiber.Map{"message": "success", "report": report})
}
