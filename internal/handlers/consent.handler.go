package handlers

import (
	"errors"

	"cohort/internal/app"
	consentController "cohort/internal/controllers/consent"
	"cohort/internal/handlers/middleware"
	"cohort/internal/logger"
	. "cohort/internal/models"

	"github.com/gofiber/fiber/v2"
)

type ConsentHandler struct {
	Handler
	controller *consentController.ConsentController
}

func NewConsentHandler(app app.App, router fiber.Router) *ConsentHandler {
	log := logger.New("handlers").File("consent_handler")
	return &ConsentHandler{
		controller: app.ConsentController,
		Handler: Handler{
			log:        log,
			router:     router,
			middleware: app.Middleware,
		},
	}
}

func (h *ConsentHandler) Register() {
	consent := h.router.Group("/consent")
	consent.Post("/", h.grant)
	consent.Put("/", h.update)
	consent.Delete("/", h.revoke)
	consent.Get("/status", h.status)
}

func (h *ConsentHandler) grant(c *fiber.Ctx) error {
	log := h.log.Function("grant")

	var request ConsentRequest
	if err := c.BodyParser(&request); err != nil {
		log.Er("failed to parse consent request", err)
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"message": "failed to parse consent request"})
	}
	if request.UserID == "" {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"message": "userId is required"})
	}

	status, err := h.controller.Grant(c.Context(), request, middleware.Meta(c))
	if errors.Is(err, consentController.ErrConsentConflict) {
		return c.Status(fiber.StatusConflict).
			JSON(fiber.Map{"message": "active consent already exists, use update"})
	}
	if err != nil {
		log.Er("failed to grant consent", err)
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"message": "failed to grant consent"})
	}

	return c.Status(fiber.StatusCreated).
		JSON(fiber.Map{"message": "success", "consent": status})
}

func (h *ConsentHandler) update(c *fiber.Ctx) error {
	log := h.log.Function("update")

	var request ConsentRequest
	if err := c.BodyParser(&request); err != nil {
		log.Er("failed to parse consent request", err)
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"message": "failed to parse consent request"})
	}
	if request.UserID == "" {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"message": "userId is required"})
	}

	status, err := h.controller.Update(c.Context(), request, middleware.Meta(c))
	if errors.Is(err, consentController.ErrConsentNotFound) {
		return c.Status(fiber.StatusNotFound).
			JSON(fiber.Map{"message": "no active consent to update"})
	}
	if err != nil {
		log.Er("failed to update consent", err)
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"message": "failed to update consent"})
	}

	return c.JSON(fiber.Map{"message": "success", "consent": status})
}

type RevokeRequest struct {
	UserID string `json:"userId"`
}

func (h *ConsentHandler) revoke(c *fiber.Ctx) error {
	log := h.log.Function("revoke")

	var request RevokeRequest
	if err := c.BodyParser(&request); err != nil || request.UserID == "" {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"message": "userId is required"})
	}

	err := h.controller.Revoke(c.Context(), request.UserID, middleware.Meta(c))
	if errors.Is(err, consentController.ErrConsentNotFound) {
		return c.Status(fiber.StatusNotFound).
			JSON(fiber.Map{"message": "no active consent to revoke"})
	}
	if err != nil {
		log.Er("failed to revoke consent", err)
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"message": "failed to revoke consent"})
	}

	return c.JSON(fiber.Map{"message": "success"})
}

func (h *ConsentHandler) status(c *fiber.Ctx) error {
	log := h.log.Function("status")

	userID := c.Query("userId")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"message": "userId is required"})
	}

	status, err := h.controller.Status(c.Context(), userID)
	if errors.Is(err, consentController.ErrConsentNotFound) {
		return c.Status(fiber.StatusNotFound).
			JSON(fiber.Map{"message": "no consent record"})
	}
	if err != nil {
		log.Er("failed to get consent status", err)
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"message": "failed to get consent status"})
	}

	return c.JSON(fiber.Map{"message": "success", "consent": status})
}
