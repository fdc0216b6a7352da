package submissionController

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"cohort/config"
	auditController "cohort/internal/controllers/audit"
	consentController "cohort/internal/controllers/consent"
	"cohort/internal/logger"
	"cohort/internal/metrics"
	. "cohort/internal/models"
	"cohort/internal/privacy"
	"cohort/internal/repositories"
	"cohort/internal/services"
)

var (
	// ErrValidationFailed rejects a candidate that failed one or more
	// privacy checks. The record is discarded, never stored failing.
	ErrValidationFailed = errors.New("privacy validation failed")
	// ErrRateLimited rejects rapid repeated submissions.
	ErrRateLimited = errors.New("submission rate limit exceeded")
	// ErrInvalidSubmission rejects malformed input before any
	// transform work.
	ErrInvalidSubmission = errors.New("invalid submission")
)

// SubmissionController runs the ingestion pipeline: rate limit →
// consent gate → generalize + noise → validate → transactional group
// count and persist → audit.
type SubmissionController struct {
	dataPointRepo      repositories.DataPointRepository
	consentCtrl        *consentController.ConsentController
	auditCtrl          *auditController.AuditController
	transactionService *services.TransactionService
	cacheInvalidation  *services.CacheInvalidationService

	hasher        privacy.Hasher
	generalizer   privacy.Generalizer
	noiseInjector *privacy.NoiseInjector
	validator     *privacy.Validator
	limiter       privacy.RateLimiter

	kMinSize int
	log      logger.Logger
}

func New(
	dataPointRepo repositories.DataPointRepository,
	consentCtrl *consentController.ConsentController,
	auditCtrl *auditController.AuditController,
	transactionService *services.TransactionService,
	cacheInvalidation *services.CacheInvalidationService,
	hasher privacy.Hasher,
	noiseInjector *privacy.NoiseInjector,
	validator *privacy.Validator,
	limiter privacy.RateLimiter,
	config config.Config,
) *SubmissionController {
	return &SubmissionController{
		dataPointRepo:      dataPointRepo,
		consentCtrl:        consentCtrl,
		auditCtrl:          auditCtrl,
		transactionService: transactionService,
		cacheInvalidation:  cacheInvalidation,
		hasher:             hasher,
		generalizer:        privacy.NewGeneralizer(config.GeographicGranularity, config.DemographicGranularity),
		noiseInjector:      noiseInjector,
		validator:          validator,
		limiter:            limiter,
		kMinSize:           config.KAnonymityMinSize,
		log:                logger.New("SubmissionController"),
	}
}

// Submit ingests one raw event. The returned result always carries the
// risk score and, on acceptance, the segment identifier. Rejections
// come back as typed errors alongside a populated result; raw input is
// never echoed.
func (sc *SubmissionController) Submit(ctx context.Context, userID, dataType string, event RawEvent, timestamp time.Time, meta RequestMeta) (SubmissionResult, error) {
	log := sc.log.Function("Submit")

	if userID == "" || !ValidDataType(dataType) || event.Variant(dataType) == nil {
		return SubmissionResult{}, ErrInvalidSubmission
	}

	hashedUserID := sc.hasher.UserHash(userID)

	if !sc.limiter.Allow(hashedUserID) {
		metrics.SubmissionsTotal.WithLabelValues("rate_limited", dataType).Inc()
		sc.auditViolation(ctx, hashedUserID, meta, map[string]string{
			"reason":   "rate_limit",
			"dataType": dataType,
		}, RiskLevelMedium, false)
		return SubmissionResult{}, ErrRateLimited
	}

	authorized, missingFacet, consent := sc.consentCtrl.IsAuthorized(ctx, userID, dataType)
	if !authorized {
		metrics.SubmissionsTotal.WithLabelValues("consent_denied", dataType).Inc()
		sc.auditCtrl.Record(ctx, &PrivacyAuditEntry{
			Action:       AuditActionSubmission,
			HashedUserID: &hashedUserID,
			Details: map[string]string{
				"outcome":      "denied",
				"dataType":     dataType,
				"missingFacet": missingFacet,
			},
			HashedIP:        sc.hasher.Fingerprint(meta.IP),
			HashedUserAgent: sc.hasher.Fingerprint(meta.UserAgent),
			RiskLevel:       RiskLevelLow,
		})
		return SubmissionResult{}, consentController.ErrConsentDenied
	}

	candidate, err := sc.transform(userID, dataType, event, timestamp, consent)
	if err != nil {
		return SubmissionResult{}, log.Err("failed to transform event", err, "dataType", dataType)
	}

	validation, err := sc.validator.Validate(ctx, candidate)
	if err != nil {
		return SubmissionResult{}, log.Err("validation unavailable", err)
	}
	metrics.GroupSize.Observe(float64(validation.GroupSize))

	// Failures other than group size disqualify the record entirely;
	// it is not even counted toward its quasi-identifier group.
	if hardFailed(validation.FailedChecks) {
		sc.reject(ctx, hashedUserID, dataType, meta, validation)
		return SubmissionResult{
			Accepted:  false,
			RiskScore: validation.RiskScore,
			Warnings:  validation.Warnings,
		}, ErrValidationFailed
	}

	accepted := false
	groupSize := 0
	err = sc.transactionService.Execute(ctx, func(txCtx context.Context) error {
		// Membership is recorded for every otherwise-valid submission,
		// so a group can grow toward the threshold; the data point is
		// only persisted once the threshold is met. Upsert and count
		// share the transaction, closing the concurrent-submission
		// race.
		size, err := sc.dataPointRepo.RecordGroupMember(txCtx, candidate.TupleKey, candidate.SegmentID)
		if err != nil {
			return err
		}
		groupSize = size
		if size < sc.kMinSize {
			return nil
		}

		now := time.Now().UTC()
		candidate.PrivacyValidated = true
		candidate.ValidationScore = 0
		candidate.ProcessedAt = &now
		if err := sc.dataPointRepo.Create(txCtx, candidate); err != nil {
			return err
		}
		accepted = true
		return nil
	})
	if err != nil {
		return SubmissionResult{}, log.Err("failed to persist submission", err, "dataType", dataType)
	}

	if !accepted {
		rejection := privacy.ValidationResult{
			RiskScore:    privacy.Penalty(privacy.CheckKAnonymity),
			FailedChecks: []string{privacy.CheckKAnonymity},
			Warnings: []string{
				"quasi-identifier group below minimum size",
			},
			GroupSize: groupSize,
		}
		sc.reject(ctx, hashedUserID, dataType, meta, rejection)
		return SubmissionResult{
			Accepted:  false,
			RiskScore: rejection.RiskScore,
			Warnings:  rejection.Warnings,
		}, ErrValidationFailed
	}

	metrics.SubmissionsTotal.WithLabelValues("accepted", dataType).Inc()
	sc.auditCtrl.Record(ctx, &PrivacyAuditEntry{
		Action:       AuditActionSubmission,
		HashedUserID: &hashedUserID,
		Details: map[string]string{
			"outcome":  "accepted",
			"dataType": dataType,
		},
		HashedIP:        sc.hasher.Fingerprint(meta.IP),
		HashedUserAgent: sc.hasher.Fingerprint(meta.UserAgent),
		RiskLevel:       RiskLevelLow,
	})

	if err := sc.cacheInvalidation.InvalidateReports(ctx); err != nil {
		log.Warn("failed to invalidate report caches", "error", err)
	}

	return SubmissionResult{
		Accepted:  true,
		SegmentID: candidate.SegmentID,
	}, nil
}

// transform builds the anonymized candidate: window-scoped segment ID,
// generalized categoricals, noised primary metric. Optional
// quasi-identifiers are included only when the matching consent facet
// allows them.
func (sc *SubmissionController) transform(userID, dataType string, event RawEvent, timestamp time.Time, consent *Consent) (*AnonymizedDataPoint, error) {
	timeWindow := sc.hasher.TimeWindow(timestamp)

	primaryBucket, metricSet, err := sc.generalizer.Generalize(dataType, event)
	if err != nil {
		return nil, err
	}

	noised, noiseLevel := sc.noiseInjector.AddNoiseFor(dataType, rawMetricValue(dataType, event))

	candidate := &AnonymizedDataPoint{
		TimeWindow:       timeWindow,
		SegmentID:        sc.hasher.SegmentID(userID, timeWindow),
		DataType:         dataType,
		PrimaryBucket:    primaryBucket,
		MetricValue:      noised,
		Metrics:          metricSet,
		NoiseLevel:       noiseLevel,
		KAnonymityLevel:  sc.kMinSize,
		SubmissionWindow: sc.hasher.TimeWindow(time.Now().UTC()),
	}

	if consent.Preferences.AllowTemporalAnalysis {
		weekday := privacy.WeekdayBucket(timestamp)
		candidate.WeekdayBucket = &weekday
	}
	if consent.PrivacyLevel != PrivacyLevelMinimal && event.Region != nil {
		if region := sc.generalizer.Region(*event.Region); region != "" {
			candidate.RegionCode = &region
		}
	}
	if consent.Preferences.AllowDemographicAnalysis && event.AgeYears != nil {
		if bucket := sc.generalizer.AgeBucket(*event.AgeYears); bucket != "" {
			candidate.DemographicBucket = &bucket
		}
	}

	candidate.TupleKey = tupleKey(candidate)

	return candidate, nil
}

// tupleKey serializes the quasi-identifying attribute combination the
// k-anonymity counter groups by.
func tupleKey(candidate *AnonymizedDataPoint) string {
	region, demographic := "", ""
	if candidate.RegionCode != nil {
		region = *candidate.RegionCode
	}
	if candidate.DemographicBucket != nil {
		demographic = *candidate.DemographicBucket
	}
	return strings.Join([]string{
		candidate.TimeWindow,
		candidate.DataType,
		region,
		demographic,
	}, "|")
}

func (sc *SubmissionController) reject(ctx context.Context, hashedUserID, dataType string, meta RequestMeta, validation privacy.ValidationResult) {
	metrics.SubmissionsTotal.WithLabelValues("validation_failed", dataType).Inc()
	metrics.RiskScore.Observe(float64(validation.RiskScore))
	for _, check := range validation.FailedChecks {
		metrics.CheckFailuresTotal.WithLabelValues(check).Inc()
	}

	sc.auditViolation(ctx, hashedUserID, meta, map[string]string{
		"reason":       strings.Join(validation.FailedChecks, ","),
		"dataType":     dataType,
		"riskScore":    strconv.Itoa(validation.RiskScore),
		"failedChecks": strings.Join(validation.FailedChecks, ","),
	}, riskLevelForScore(validation.RiskScore), true)
}

func (sc *SubmissionController) auditViolation(ctx context.Context, hashedUserID string, meta RequestMeta, details map[string]string, riskLevel string, reviewRequired bool) {
	sc.auditCtrl.Record(ctx, &PrivacyAuditEntry{
		Action:          AuditActionPrivacyViolation,
		HashedUserID:    &hashedUserID,
		Details:         details,
		HashedIP:        sc.hasher.Fingerprint(meta.IP),
		HashedUserAgent: sc.hasher.Fingerprint(meta.UserAgent),
		RiskLevel:       riskLevel,
		Flagged:         true,
		ReviewRequired:  reviewRequired,
	})
}

// hardFailed reports whether any check other than k-anonymity failed.
// Group size alone is re-decided authoritatively inside the
// transaction.
func hardFailed(failedChecks []string) bool {
	for _, check := range failedChecks {
		if check != privacy.CheckKAnonymity {
			return true
		}
	}
	return false
}

func rawMetricValue(dataType string, event RawEvent) float64 {
	switch dataType {
	case DataTypeAdherence:
		return event.Adherence.AdherenceRate
	case DataTypeSideEffect:
		return event.SideEffect.SeverityScore
	case DataTypePattern:
		return event.Pattern.ConsistencyScore
	case DataTypeRisk:
		return event.Risk.RiskScore
	}
	return 0
}

func riskLevelForScore(score int) string {
	switch {
	case score >= 50:
		return RiskLevelHigh
	case score >= 25:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}
