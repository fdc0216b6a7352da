package repositories

import (
	"context"
	"time"

	"cohort/internal/database"
	"cohort/internal/logger"
	. "cohort/internal/models"
	"cohort/internal/services"

	"gorm.io/gorm"
)

const reportCacheExpiry = 15 * time.Minute

type ReportRepository interface {
	Create(ctx context.Context, report *AggregatedReport) error
	GetByID(ctx context.Context, id string) (*AggregatedReport, error)
	RecordAccess(ctx context.Context, id string) error
	GetCached(ctx context.Context, cacheKey string, report *AggregatedReport) (bool, error)
	SetCached(ctx context.Context, cacheKey string, report *AggregatedReport) error
}

type reportRepository struct {
	db  database.DB
	log logger.Logger
}

func NewReport(db database.DB) ReportRepository {
	return &reportRepository{
		db:  db,
		log: logger.New("reportRepository"),
	}
}

func (r *reportRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := services.GetTransaction(ctx); ok {
		return tx
	}
	return r.db.SQLWithContext(ctx)
}

func (r *reportRepository) Create(ctx context.Context, report *AggregatedReport) error {
	log := r.log.Function("Create")

	if err := r.getDB(ctx).Create(report).Error; err != nil {
		return log.Err("failed to create report", err, "reportType", report.ReportType)
	}

	return nil
}

func (r *reportRepository) GetByID(ctx context.Context, id string) (*AggregatedReport, error) {
	log := r.log.Function("GetByID")

	var report AggregatedReport
	if err := r.getDB(ctx).First(&report, "id = ?", id).Error; err != nil {
		return nil, log.Err("failed to get report", err, "id", id)
	}

	return &report, nil
}

// RecordAccess bumps the access counters. The payload itself is never
// mutated after generation.
func (r *reportRepository) RecordAccess(ctx context.Context, id string) error {
	log := r.log.Function("RecordAccess")

	now := time.Now().UTC()
	err := r.getDB(ctx).Model(&AggregatedReport{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"download_count": gorm.Expr("download_count + 1"),
			"last_accessed":  now,
		}).Error
	if err != nil {
		return log.Err("failed to record report access", err, "id", id)
	}

	return nil
}

func (r *reportRepository) GetCached(ctx context.Context, cacheKey string, report *AggregatedReport) (bool, error) {
	return database.NewCacheBuilder(r.db.Cache.Report, "report:"+cacheKey).
		WithContext(ctx).
		Get(report)
}

func (r *reportRepository) SetCached(ctx context.Context, cacheKey string, report *AggregatedReport) error {
	err := database.NewCacheBuilder(r.db.Cache.Report, "report:"+cacheKey).
		WithStruct(report).
		WithTTL(reportCacheExpiry).
		WithContext(ctx).
		Set()
	if err == database.ErrCacheDisabled {
		return nil
	}
	return err
}
