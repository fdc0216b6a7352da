package consentController

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	auditController "cohort/internal/controllers/audit"
	"cohort/internal/logger"
	. "cohort/internal/models"
	"cohort/internal/privacy"
	"cohort/internal/repositories"

	"gorm.io/gorm"
)

var (
	// ErrConsentDenied rejects a submission lacking an active,
	// sufficiently granular consent.
	ErrConsentDenied = errors.New("consent denied")
	// ErrConsentConflict rejects a grant when an active consent
	// already exists; callers must update instead.
	ErrConsentConflict = errors.New("active consent already exists")
	// ErrConsentNotFound is returned by update/revoke/status without an
	// applicable record. Revoking twice yields this on the second call.
	ErrConsentNotFound = errors.New("no consent record")
)

const lockStripes = 64

// ConsentController is the authority on whether a user's data may be
// transformed and stored. Writes for one hashed user are serialized
// through a striped lock set: the stripe count bounds memory regardless
// of user count, and distinct users rarely share a stripe.
type ConsentController struct {
	consentRepo repositories.ConsentRepository
	auditCtrl   *auditController.AuditController
	hasher      privacy.Hasher
	log         logger.Logger

	locks [lockStripes]sync.Mutex
}

func New(
	consentRepo repositories.ConsentRepository,
	auditCtrl *auditController.AuditController,
	hasher privacy.Hasher,
) *ConsentController {
	return &ConsentController{
		consentRepo: consentRepo,
		auditCtrl:   auditCtrl,
		hasher:      hasher,
		log:         logger.New("ConsentController"),
	}
}

func (cc *ConsentController) lockUser(hashedUserID string) func() {
	lock := &cc.locks[lockStripe(hashedUserID)]
	lock.Lock()
	return lock.Unlock
}

func lockStripe(hashedUserID string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(hashedUserID))
	return h.Sum32() % lockStripes
}

// Grant creates the first active consent record for a user. Fails with
// ErrConsentConflict when one already exists.
func (cc *ConsentController) Grant(ctx context.Context, request ConsentRequest, meta RequestMeta) (ConsentStatus, error) {
	log := cc.log.Function("Grant")

	hashedUserID := cc.hasher.UserHash(request.UserID)
	unlock := cc.lockUser(hashedUserID)
	defer unlock()

	if _, err := cc.consentRepo.GetActive(ctx, hashedUserID); err == nil {
		return ConsentStatus{}, ErrConsentConflict
	} else if !errors.Is(err, repositories.ErrNoActiveConsent) {
		return ConsentStatus{}, log.Err("failed to check existing consent", err)
	}

	privacyLevel := request.PrivacyLevel
	if privacyLevel == "" {
		privacyLevel = PrivacyLevelStandard
	}
	if !validPrivacyLevel(privacyLevel) {
		return ConsentStatus{}, log.Error("invalid privacy level", "privacyLevel", privacyLevel)
	}

	consent := Consent{
		HashedUserID:    hashedUserID,
		ConsentGiven:    true,
		ConsentDate:     time.Now().UTC(),
		Preferences:     request.Preferences,
		PrivacyLevel:    privacyLevel,
		HashedIP:        cc.hasher.Fingerprint(meta.IP),
		HashedUserAgent: cc.hasher.Fingerprint(meta.UserAgent),
	}
	if err := cc.consentRepo.Create(ctx, &consent); err != nil {
		return ConsentStatus{}, log.Err("failed to create consent", err)
	}

	cc.audit(ctx, hashedUserID, meta, "grant", RiskLevelLow)

	return consent.Status(), nil
}

// Update modifies preferences on the active record. Revoked or absent
// records cannot be updated.
func (cc *ConsentController) Update(ctx context.Context, request ConsentRequest, meta RequestMeta) (ConsentStatus, error) {
	log := cc.log.Function("Update")

	hashedUserID := cc.hasher.UserHash(request.UserID)
	unlock := cc.lockUser(hashedUserID)
	defer unlock()

	consent, err := cc.consentRepo.GetActive(ctx, hashedUserID)
	if errors.Is(err, repositories.ErrNoActiveConsent) {
		return ConsentStatus{}, ErrConsentNotFound
	}
	if err != nil {
		return ConsentStatus{}, log.Err("failed to load consent", err)
	}

	consent.Preferences = request.Preferences
	if request.PrivacyLevel != "" {
		if !validPrivacyLevel(request.PrivacyLevel) {
			return ConsentStatus{}, log.Error("invalid privacy level", "privacyLevel", request.PrivacyLevel)
		}
		consent.PrivacyLevel = request.PrivacyLevel
	}

	if err := cc.consentRepo.Update(ctx, consent); err != nil {
		return ConsentStatus{}, log.Err("failed to update consent", err)
	}

	cc.audit(ctx, hashedUserID, meta, "update", RiskLevelLow)

	return consent.Status(), nil
}

// Revoke sets the revocation date on the active record. One-way: the
// record is never deleted, and a second revoke returns
// ErrConsentNotFound.
func (cc *ConsentController) Revoke(ctx context.Context, userID string, meta RequestMeta) error {
	log := cc.log.Function("Revoke")

	hashedUserID := cc.hasher.UserHash(userID)
	unlock := cc.lockUser(hashedUserID)
	defer unlock()

	consent, err := cc.consentRepo.GetActive(ctx, hashedUserID)
	if errors.Is(err, repositories.ErrNoActiveConsent) {
		return ErrConsentNotFound
	}
	if err != nil {
		return log.Err("failed to load consent", err)
	}

	now := time.Now().UTC()
	consent.RevokeDate = &now
	if err := cc.consentRepo.Update(ctx, consent); err != nil {
		return log.Err("failed to revoke consent", err)
	}

	cc.audit(ctx, hashedUserID, meta, "revoke", RiskLevelMedium)

	return nil
}

// Status returns the latest consent shape with sensitive fields
// stripped. Repeated calls without intervening writes return identical
// results.
func (cc *ConsentController) Status(ctx context.Context, userID string) (ConsentStatus, error) {
	log := cc.log.Function("Status")

	hashedUserID := cc.hasher.UserHash(userID)
	consent, err := cc.consentRepo.GetLatest(ctx, hashedUserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ConsentStatus{}, ErrConsentNotFound
	}
	if err != nil {
		return ConsentStatus{}, log.Err("failed to load consent status", err)
	}

	return consent.Status(), nil
}

// IsAuthorized reports whether data of the given type may be processed
// for the user, and names the missing facet when not.
func (cc *ConsentController) IsAuthorized(ctx context.Context, userID, dataType string) (bool, string, *Consent) {
	hashedUserID := cc.hasher.UserHash(userID)

	consent, err := cc.consentRepo.GetActive(ctx, hashedUserID)
	if err != nil {
		return false, "consentGiven", nil
	}
	if !consent.Active() {
		return false, "consentGiven", nil
	}
	if !consent.Preferences.AllowsDataType(dataType) {
		return false, facetForDataType(dataType), nil
	}

	return true, "", consent
}

func (cc *ConsentController) audit(ctx context.Context, hashedUserID string, meta RequestMeta, operation, riskLevel string) {
	cc.auditCtrl.Record(ctx, &PrivacyAuditEntry{
		Action:          AuditActionConsentUpdate,
		HashedUserID:    &hashedUserID,
		Details:         map[string]string{"operation": operation},
		HashedIP:        cc.hasher.Fingerprint(meta.IP),
		HashedUserAgent: cc.hasher.Fingerprint(meta.UserAgent),
		RiskLevel:       riskLevel,
	})
}

func facetForDataType(dataType string) string {
	switch dataType {
	case DataTypeAdherence:
		return "includeAdherence"
	case DataTypeSideEffect:
		return "includeSideEffects"
	case DataTypePattern:
		return "includePatterns"
	case DataTypeRisk:
		return "includeRisk"
	}
	return "consentGiven"
}

func validPrivacyLevel(level string) bool {
	switch level {
	case PrivacyLevelMinimal, PrivacyLevelStandard, PrivacyLevelDetailed:
		return true
	}
	return false
}
