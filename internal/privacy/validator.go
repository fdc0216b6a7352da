package privacy

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"cohort/internal/logger"
	. "cohort/internal/models"
)

// Check names, in evaluation order.
const (
	CheckPIIScan          = "pii_scan"
	CheckKAnonymity       = "k_anonymity"
	CheckNoiseSufficiency = "noise_sufficiency"
	CheckMinimization     = "data_minimization"
	CheckAnomaly          = "anomaly"
)

// Penalty weights are policy: fixed, reproducible, independent of
// storage.
var checkPenalties = map[string]int{
	CheckPIIScan:          30,
	CheckKAnonymity:       25,
	CheckNoiseSufficiency: 20,
	CheckMinimization:     15,
	CheckAnomaly:          10,
}

// GroupCounter reports how many distinct segments share a candidate's
// quasi-identifier tuple, with the candidate provisionally included.
// This is the one check that must consult the persisted store.
type GroupCounter interface {
	CountGroup(ctx context.Context, tupleKey, segmentID string) (int, error)
}

type ValidationResult struct {
	Passed       bool     `json:"passed"`
	RiskScore    int      `json:"riskScore"`
	FailedChecks []string `json:"failedChecks,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
	GroupSize    int      `json:"groupSize"`
}

// Validator runs the privacy checklist over a candidate data point.
type Validator struct {
	kMinSize          int
	minNoiseLevel     float64
	maxOptionalFields int
	counter           GroupCounter
	log               logger.Logger
}

func NewValidator(kMinSize int, minNoiseLevel float64, maxOptionalFields int, counter GroupCounter) *Validator {
	return &Validator{
		kMinSize:          kMinSize,
		minNoiseLevel:     minNoiseLevel,
		maxOptionalFields: maxOptionalFields,
		counter:           counter,
		log:               logger.New("Validator"),
	}
}

var piiPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`), // email
	regexp.MustCompile(`\+?\d[\d\s().-]{8,}\d`),                          // phone
	regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),                          // SSN-like
	regexp.MustCompile(`\b[A-Z]{1,2}\d{6,9}\b`),                          // passport-like
}

// Validate runs every check in order and sums the penalties of the
// ones that fail. Passing requires zero failures. Only the k-anonymity
// check can return an error, when the store is unreachable.
func (v *Validator) Validate(ctx context.Context, candidate *AnonymizedDataPoint) (ValidationResult, error) {
	log := v.log.Function("Validate")
	result := ValidationResult{Passed: true}

	fail := func(check, warning string) {
		result.Passed = false
		result.RiskScore += checkPenalties[check]
		result.FailedChecks = append(result.FailedChecks, check)
		result.Warnings = append(result.Warnings, warning)
	}

	if detail := v.scanPII(candidate); detail != "" {
		fail(CheckPIIScan, detail)
	}

	groupSize, err := v.counter.CountGroup(ctx, candidate.TupleKey, candidate.SegmentID)
	if err != nil {
		return ValidationResult{}, log.Err("group count unavailable", err,
			"tupleKey", candidate.TupleKey)
	}
	result.GroupSize = groupSize
	if groupSize < v.kMinSize {
		fail(CheckKAnonymity, fmt.Sprintf(
			"quasi-identifier group has %d of %d required segments", groupSize, v.kMinSize))
	}

	if candidate.NoiseLevel < v.minNoiseLevel {
		fail(CheckNoiseSufficiency, fmt.Sprintf(
			"noise level %.3f below required %.3f", candidate.NoiseLevel, v.minNoiseLevel))
	}

	if n := optionalFieldCount(candidate); n > v.maxOptionalFields {
		fail(CheckMinimization, fmt.Sprintf(
			"%d optional fields exceed allowance of %d", n, v.maxOptionalFields))
	}

	if detail := v.scanAnomaly(candidate); detail != "" {
		fail(CheckAnomaly, detail)
	}

	if result.RiskScore > 100 {
		result.RiskScore = 100
	}

	return result, nil
}

// scanPII matches identifying patterns against the serialized
// candidate. Generalized buckets should never contain any.
func (v *Validator) scanPII(candidate *AnonymizedDataPoint) string {
	serialized, err := json.Marshal(candidate.Metrics)
	if err != nil {
		return "metrics not serializable"
	}
	payload := string(serialized) + "|" + candidate.PrimaryBucket
	for _, pattern := range piiPatterns {
		if pattern.MatchString(payload) {
			return "identifying pattern detected in metrics"
		}
	}
	return ""
}

// scanAnomaly flags statistically unusual shapes that could act as a
// fingerprint: a clamp-pinned metric combined with a fully populated
// quasi-identifier set narrows the record to very few candidates.
func (v *Validator) scanAnomaly(candidate *AnonymizedDataPoint) string {
	domain, ok := metricDomains[candidate.DataType]
	if !ok {
		return ""
	}
	pinned := candidate.MetricValue == domain.Min || candidate.MetricValue == domain.Max
	if pinned && optionalFieldCount(candidate) == 3 {
		return "boundary metric with full quasi-identifier set"
	}
	return ""
}

func optionalFieldCount(candidate *AnonymizedDataPoint) int {
	n := 0
	if candidate.WeekdayBucket != nil && *candidate.WeekdayBucket != "" {
		n++
	}
	if candidate.RegionCode != nil && *candidate.RegionCode != "" {
		n++
	}
	if candidate.DemographicBucket != nil && *candidate.DemographicBucket != "" {
		n++
	}
	return n
}

// Penalty exposes the policy weight of a check for reporting.
func Penalty(check string) int {
	return checkPenalties[check]
}
