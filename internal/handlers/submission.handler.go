package handlers

import (
	"errors"
	"time"

	"cohort/internal/app"
	consentController "cohort/internal/controllers/consent"
	submissionController "cohort/internal/controllers/submission"
	"cohort/internal/handlers/middleware"
	"cohort/internal/logger"
	. "cohort/internal/models"

	"github.com/gofiber/fiber/v2"
)

type SubmissionHandler struct {
	Handler
	controller *submissionController.SubmissionController
}

func NewSubmissionHandler(app app.App, router fiber.Router) *SubmissionHandler {
	log := logger.New("handlers").File("submission_handler")
	return &SubmissionHandler{
		controller: app.SubmissionController,
		Handler: Handler{
			log:        log,
			router:     router,
			middleware: app.Middleware,
		},
	}
}

func (h *SubmissionHandler) Register() {
	h.router.Post("/submissions", h.submit)
}

type SubmitRequest struct {
	UserID    string    `json:"userId"`
	DataType  string    `json:"dataType"`
	Timestamp time.Time `json:"timestamp"`
	Event     RawEvent  `json:"event"`
}

func (h *SubmissionHandler) submit(c *fiber.Ctx) error {
	log := h.log.Function("submit")

	var request SubmitRequest
	if err := c.BodyParser(&request); err != nil {
		log.Er("failed to parse submission request", err)
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"message": "failed to parse submission request"})
	}

	if request.Timestamp.IsZero() {
		request.Timestamp = time.Now().UTC()
	}

	result, err := h.controller.Submit(c.Context(), request.UserID, request.DataType,
		request.Event, request.Timestamp, middleware.Meta(c))

	switch {
	case errors.Is(err, submissionController.ErrInvalidSubmission):
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"message": "invalid submission"})
	case errors.Is(err, submissionController.ErrRateLimited):
		return c.Status(fiber.StatusTooManyRequests).
			JSON(fiber.Map{"message": "too many submissions"})
	case errors.Is(err, consentController.ErrConsentDenied):
		return c.Status(fiber.StatusForbidden).
			JSON(fiber.Map{"message": "consent denied", "result": result})
	case errors.Is(err, submissionController.ErrValidationFailed):
		// Failed checks are actionable detail; the raw input never
		// comes back.
		return c.Status(fiber.StatusUnprocessableEntity).
			JSON(fiber.Map{"message": "privacy validation failed", "result": result})
	case err != nil:
		log.Er("submission failed", err)
		return c.Status(fiber.StatusServiceUnavailable).
			JSON(fiber.Map{"message": "submission temporarily unavailable"})
	}

	return c.JSON(fiber.Map{"message": "success", "result": result})
}
