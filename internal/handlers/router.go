package handlers

import (
	"cohort/config"
	"cohort/internal/app"
	"cohort/internal/handlers/middleware"
	"cohort/internal/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handler struct {
	middleware middleware.Middleware
	log        logger.Logger
	router     fiber.Router
}

func Router(router fiber.Router, app *app.App) (err error) {
	setupWebSocketRoute(router, app)
	router.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := router.Group("/api")
	HealthHandler(api, app.Config)
	NewSubmissionHandler(*app, api).Register()
	NewConsentHandler(*app, api).Register()
	NewReportHandler(*app, api).Register()
	NewAuditHandler(*app, api).Register()

	return nil
}

func setupWebSocketRoute(router fiber.Router, app *app.App) {
	router.Use("/ws/alerts", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/ws/alerts",
		app.Middleware.RequirePrivileged(middleware.RoleAuditor, middleware.RoleAuditAdmin),
		websocket.New(func(c *websocket.Conn) {
			app.Websocket.HandleWebSocket(c)
		}))
}

func HealthHandler(router fiber.Router, config config.Config) {
	router.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":            "ok",
			"kAnonymityMinSize": config.KAnonymityMinSize,
			"aggregationWindow": config.AggregationWindow,
		})
	})
}
