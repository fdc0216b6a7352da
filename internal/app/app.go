package app

import (
	"context"
	"time"

	"cohort/config"
	auditController "cohort/internal/controllers/audit"
	consentController "cohort/internal/controllers/consent"
	reportController "cohort/internal/controllers/report"
	submissionController "cohort/internal/controllers/submission"
	"cohort/internal/database"
	"cohort/internal/handlers/middleware"
	"cohort/internal/logger"
	"cohort/internal/privacy"
	"cohort/internal/repositories"
	"cohort/internal/services"
	"cohort/internal/websockets"
)

type App struct {
	Database   database.DB
	Middleware middleware.Middleware
	Websocket  *websockets.Manager
	Config     config.Config

	Limiter       *privacy.WindowLimiter
	AlertThrottle *privacy.AlertThrottle

	// Services
	TransactionService       *services.TransactionService
	CacheInvalidationService *services.CacheInvalidationService

	// Repositories
	DataPointRepo repositories.DataPointRepository
	ConsentRepo   repositories.ConsentRepository
	AuditRepo     repositories.AuditRepository
	ReportRepo    repositories.ReportRepository

	// Controllers
	AuditController      *auditController.AuditController
	ConsentController    *consentController.ConsentController
	SubmissionController *submissionController.SubmissionController
	ReportController     *reportController.ReportController
}

func New() (*App, error) {
	log := logger.New("app").Function("New")

	config, err := config.InitConfig()
	if err != nil {
		return &App{}, log.Err("failed to initialize config", err)
	}

	db, err := database.New(config)
	if err != nil {
		return &App{}, log.Err("failed to create database", err)
	}

	// Initialize services
	transactionService := services.NewTransactionService(db)
	cacheInvalidationService := services.NewCacheInvalidationService(db)

	// Initialize repositories
	dataPointRepo := repositories.NewDataPoint(db)
	consentRepo := repositories.NewConsent(db, cacheInvalidationService)
	auditRepo := repositories.NewAudit(db)
	reportRepo := repositories.NewReport(db)

	// Privacy components
	hasher := privacy.NewHasher(config.HashSecret, config.AggregationWindow)
	noiseInjector := privacy.NewNoiseInjector(config.Epsilon, config.NoiseScale)
	validator := privacy.NewValidator(config.KAnonymityMinSize,
		noiseInjector.MinimumNoiseLevel(), config.MaxOptionalFields, dataPointRepo)
	limiter := privacy.NewWindowLimiter(config.RateLimitMax,
		time.Duration(config.RateLimitWindowMinutes)*time.Minute)
	alertThrottle := privacy.NewAlertThrottle(map[string]time.Duration{
		"privacy_violation": 5 * time.Minute,
		"data_submission":   30 * time.Minute,
	}, 15*time.Minute)

	websocket := websockets.New(config)

	// Initialize controllers with repositories and services
	auditCtrl := auditController.New(auditRepo, alertThrottle, websocket)
	consentCtrl := consentController.New(consentRepo, auditCtrl, hasher)
	submissionCtrl := submissionController.New(dataPointRepo, consentCtrl, auditCtrl,
		transactionService, cacheInvalidationService, hasher, noiseInjector,
		validator, limiter, config)
	reportCtrl := reportController.New(dataPointRepo, reportRepo, auditCtrl, config)

	app := &App{
		Database:                 db,
		Config:                   config,
		Middleware:               middleware.New(config),
		Websocket:                websocket,
		Limiter:                  limiter,
		AlertThrottle:            alertThrottle,
		TransactionService:       transactionService,
		CacheInvalidationService: cacheInvalidationService,
		DataPointRepo:            dataPointRepo,
		ConsentRepo:              consentRepo,
		AuditRepo:                auditRepo,
		ReportRepo:               reportRepo,
		AuditController:          auditCtrl,
		ConsentController:        consentCtrl,
		SubmissionController:     submissionCtrl,
		ReportController:         reportCtrl,
	}

	if err := app.validate(); err != nil {
		return &App{}, log.Err("failed to validate app", err)
	}

	return app, nil
}

func (a *App) validate() error {
	log := logger.New("app").Function("validate")
	if a.Database.SQL == nil {
		return log.ErrMsg("database is nil")
	}

	if a.Config == (config.Config{}) {
		return log.ErrMsg("config is nil")
	}

	nilChecks := []any{
		a.Websocket,
		a.TransactionService,
		a.CacheInvalidationService,
		a.DataPointRepo,
		a.ConsentRepo,
		a.AuditRepo,
		a.ReportRepo,
		a.AuditController,
		a.ConsentController,
		a.SubmissionController,
		a.ReportController,
	}

	for _, check := range nilChecks {
		if check == nil {
			return log.ErrMsg("nil check failed")
		}
	}

	return nil
}

// StartMaintenance runs the periodic housekeeping loop until ctx is
// canceled: retention purge of expired data points and sweeps of the
// rate limiter and alert throttle.
func (a *App) StartMaintenance(ctx context.Context, interval time.Duration) {
	log := logger.New("app").Function("StartMaintenance")

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := time.Now().UTC().AddDate(0, 0, -a.Config.RetentionDays)
				purged, err := a.DataPointRepo.PurgeExpired(ctx, cutoff)
				if err != nil {
					log.Er("retention purge failed", err)
				} else if purged > 0 {
					log.Info("purged expired data points", "count", purged)
				}

				a.Limiter.Sweep()
				a.AlertThrottle.Sweep()
			}
		}
	}()
}

func (a *App) Close() (err error) {
	if dbErr := a.Database.Close(); dbErr != nil {
		err = dbErr
	}

	return err
}
