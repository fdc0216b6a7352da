package auditController

import (
	"context"

	"cohort/internal/logger"
	. "cohort/internal/models"
	"cohort/internal/privacy"
	"cohort/internal/repositories"
	"cohort/internal/services"
)

// Broadcaster pushes flagged entries to connected operators. Nil when
// no stream is attached.
type Broadcaster interface {
	Broadcast(alert privacy.Alert)
}

// AuditController owns the append-only privacy audit trail. Writes are
// best-effort: a failed audit write is logged for operational
// visibility but never blocks or fails the operation it documents.
type AuditController struct {
	auditRepo   repositories.AuditRepository
	throttle    *privacy.AlertThrottle
	broadcaster Broadcaster
	log         logger.Logger
}

func New(
	auditRepo repositories.AuditRepository,
	throttle *privacy.AlertThrottle,
	broadcaster Broadcaster,
) *AuditController {
	return &AuditController{
		auditRepo:   auditRepo,
		throttle:    throttle,
		broadcaster: broadcaster,
		log:         logger.New("AuditController"),
	}
}

// Record appends one entry. The write is detached from the caller's
// cancellation and from any storage transaction the caller holds.
func (ac *AuditController) Record(ctx context.Context, entry *PrivacyAuditEntry) {
	log := ac.log.Function("Record")

	detached := services.DetachTransaction(context.WithoutCancel(ctx))
	if err := ac.auditRepo.Create(detached, entry); err != nil {
		log.Er("audit write failed", err, "action", entry.Action)
	}

	if entry.Flagged {
		ac.alert(entry)
	}
}

func (ac *AuditController) alert(entry *PrivacyAuditEntry) {
	if ac.broadcaster == nil {
		return
	}

	alert := privacy.Alert{
		Type:    entry.Action,
		Trigger: entry.RiskLevel,
		Message: entry.Details["reason"],
	}
	if ac.throttle != nil && !ac.throttle.Allow(alert) {
		return
	}
	ac.broadcaster.Broadcast(alert)
}

// Query reads the log for privileged callers.
func (ac *AuditController) Query(ctx context.Context, query AuditQuery) ([]*PrivacyAuditEntry, error) {
	entries, err := ac.auditRepo.Query(ctx, query)
	if err != nil {
		return nil, ac.log.Function("Query").Err("failed to query audit log", err)
	}

	return entries, nil
}
