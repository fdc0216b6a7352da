package repositories

import (
	"context"

	"cohort/internal/database"
	"cohort/internal/logger"
	. "cohort/internal/models"
	"cohort/internal/services"

	"gorm.io/gorm"
)

const auditQueryDefaultLimit = 100

// AuditRepository is append-only: entries are created and queried,
// never updated or deleted.
type AuditRepository interface {
	Create(ctx context.Context, entry *PrivacyAuditEntry) error
	Query(ctx context.Context, query AuditQuery) ([]*PrivacyAuditEntry, error)
}

type auditRepository struct {
	db  database.DB
	log logger.Logger
}

func NewAudit(db database.DB) AuditRepository {
	return &auditRepository{
		db:  db,
		log: logger.New("auditRepository"),
	}
}

func (r *auditRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := services.GetTransaction(ctx); ok {
		return tx
	}
	return r.db.SQLWithContext(ctx)
}

func (r *auditRepository) Create(ctx context.Context, entry *PrivacyAuditEntry) error {
	log := r.log.Function("Create")

	if err := r.getDB(ctx).Create(entry).Error; err != nil {
		return log.Err("failed to create audit entry", err, "action", entry.Action)
	}

	return nil
}

func (r *auditRepository) Query(ctx context.Context, query AuditQuery) ([]*PrivacyAuditEntry, error) {
	log := r.log.Function("Query")

	db := r.getDB(ctx).Model(&PrivacyAuditEntry{})
	if query.Action != "" {
		db = db.Where("action = ?", query.Action)
	}
	if query.RiskLevel != "" {
		db = db.Where("risk_level = ?", query.RiskLevel)
	}
	if query.FlaggedOnly {
		db = db.Where("flagged = ?", true)
	}

	limit := query.Limit
	if limit <= 0 || limit > 1000 {
		limit = auditQueryDefaultLimit
	}

	var entries []*PrivacyAuditEntry
	if err := db.Order("created_at DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, log.Err("failed to query audit entries", err)
	}

	// Hashed identifiers are stripped unless the privileged caller
	// explicitly asked for them.
	if !query.IncludeHashes {
		for _, entry := range entries {
			entry.HashedUserID = nil
		}
	}

	return entries, nil
}
