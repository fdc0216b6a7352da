package services

import (
	"context"

	"cohort/internal/database"
	"cohort/internal/logger"
)

// CacheInvalidationService keeps the cache tier coherent with writes:
// consent entries are dropped on every consent transition, report
// caches are cleared when newly accepted data would change aggregates.
type CacheInvalidationService struct {
	db  database.DB
	log logger.Logger
}

func NewCacheInvalidationService(db database.DB) *CacheInvalidationService {
	return &CacheInvalidationService{
		db:  db,
		log: logger.New("CacheInvalidationService"),
	}
}

func (s *CacheInvalidationService) InvalidateConsent(ctx context.Context, hashedUserID string) error {
	log := s.log.Function("InvalidateConsent")

	if err := database.NewCacheBuilder(s.db.Cache.Consent, "consent:"+hashedUserID).
		WithContext(ctx).
		Delete(); err != nil {
		return log.Err("failed to invalidate consent cache", err)
	}

	return nil
}

func (s *CacheInvalidationService) InvalidateReports(ctx context.Context) error {
	log := s.log.Function("InvalidateReports")

	if s.db.Cache.Report == nil {
		return nil
	}

	client := s.db.Cache.Report
	if err := client.Do(ctx, client.B().Flushdb().Build()).Error(); err != nil {
		return log.Err("failed to flush report cache", err)
	}

	return nil
}
