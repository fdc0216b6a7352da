package repositories

import (
	"context"
	"errors"
	"time"

	"cohort/internal/database"
	"cohort/internal/logger"
	. "cohort/internal/models"
	"cohort/internal/services"

	"gorm.io/gorm"
)

const consentCacheExpiry = 5 * time.Minute

// ErrNoActiveConsent is returned when no active (granted, non-revoked)
// consent record exists for the hashed user identifier.
var ErrNoActiveConsent = errors.New("no active consent")

type ConsentRepository interface {
	GetActive(ctx context.Context, hashedUserID string) (*Consent, error)
	GetLatest(ctx context.Context, hashedUserID string) (*Consent, error)
	Create(ctx context.Context, consent *Consent) error
	Update(ctx context.Context, consent *Consent) error
}

type consentRepository struct {
	db    database.DB
	cache *services.CacheInvalidationService
	log   logger.Logger
}

func NewConsent(db database.DB, cache *services.CacheInvalidationService) ConsentRepository {
	return &consentRepository{
		db:    db,
		cache: cache,
		log:   logger.New("consentRepository"),
	}
}

func (r *consentRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := services.GetTransaction(ctx); ok {
		return tx
	}
	return r.db.SQLWithContext(ctx)
}

// GetActive returns the single active consent record, cache-aside.
func (r *consentRepository) GetActive(ctx context.Context, hashedUserID string) (*Consent, error) {
	log := r.log.Function("GetActive")

	var consent Consent
	if found, err := database.NewCacheBuilder(r.db.Cache.Consent, "consent:"+hashedUserID).
		WithContext(ctx).
		Get(&consent); err == nil && found {
		if consent.Active() {
			return &consent, nil
		}
		return nil, ErrNoActiveConsent
	}

	err := r.getDB(ctx).
		Where("hashed_user_id = ? AND consent_given = ? AND revoke_date IS NULL", hashedUserID, true).
		First(&consent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoActiveConsent
	}
	if err != nil {
		return nil, log.Err("failed to get active consent", err)
	}

	if err := r.addToCache(ctx, &consent); err != nil {
		log.Warn("failed to cache consent", "error", err)
	}

	return &consent, nil
}

// GetLatest returns the most recent consent record regardless of
// state, for status reads after revocation.
func (r *consentRepository) GetLatest(ctx context.Context, hashedUserID string) (*Consent, error) {
	log := r.log.Function("GetLatest")

	var consent Consent
	err := r.getDB(ctx).
		Where("hashed_user_id = ?", hashedUserID).
		Order("created_at DESC").
		First(&consent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, gorm.ErrRecordNotFound
	}
	if err != nil {
		return nil, log.Err("failed to get latest consent", err)
	}

	return &consent, nil
}

func (r *consentRepository) Create(ctx context.Context, consent *Consent) error {
	log := r.log.Function("Create")

	if err := r.getDB(ctx).Create(consent).Error; err != nil {
		return log.Err("failed to create consent", err)
	}

	if err := r.cache.InvalidateConsent(ctx, consent.HashedUserID); err != nil {
		log.Warn("failed to invalidate consent cache", "error", err)
	}

	return nil
}

func (r *consentRepository) Update(ctx context.Context, consent *Consent) error {
	log := r.log.Function("Update")

	if err := r.getDB(ctx).Save(consent).Error; err != nil {
		return log.Err("failed to update consent", err)
	}

	if err := r.cache.InvalidateConsent(ctx, consent.HashedUserID); err != nil {
		log.Warn("failed to invalidate consent cache", "error", err)
	}

	return nil
}

func (r *consentRepository) addToCache(ctx context.Context, consent *Consent) error {
	err := database.NewCacheBuilder(r.db.Cache.Consent, "consent:"+consent.HashedUserID).
		WithStruct(consent).
		WithTTL(consentCacheExpiry).
		WithContext(ctx).
		Set()
	if err == database.ErrCacheDisabled {
		return nil
	}
	return err
}
