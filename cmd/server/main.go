package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cohort/internal/app"
	"cohort/internal/handlers"
	"cohort/internal/logger"

	"github.com/gofiber/fiber/v2"
)

func main() {
	log := logger.New("main")

	application, err := app.New()
	if err != nil {
		log.Er("failed to initialize application", err)
		os.Exit(1)
	}
	defer application.Close()

	maintenanceCtx, stopMaintenance := context.WithCancel(context.Background())
	defer stopMaintenance()
	application.StartMaintenance(maintenanceCtx, time.Hour)

	server := fiber.New(fiber.Config{
		AppName:               "cohort",
		DisableStartupMessage: true,
	})

	if err := handlers.Router(server, application); err != nil {
		log.Er("failed to register routes", err)
		os.Exit(1)
	}

	go func() {
		addr := fmt.Sprintf(":%d", application.Config.Port)
		log.Info("Starting server", "addr", addr)
		if err := server.Listen(addr); err != nil {
			log.Er("server stopped", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down")
	if err := server.Shutdown(); err != nil {
		log.Er("failed to shut down server", err)
	}
}
