package reportController

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"cohort/config"
	auditController "cohort/internal/controllers/audit"
	"cohort/internal/logger"
	"cohort/internal/metrics"
	. "cohort/internal/models"
	"cohort/internal/repositories"
)

// ErrInsufficientSample rejects report generation when fewer distinct
// segments contributed than the anonymity threshold requires.
var ErrInsufficientSample = errors.New("insufficient sample size")

// Nominal confidence parameters; not a proper statistical computation.
const (
	nominalConfidenceLevel  = 0.95
	nominalConfidenceMargin = 5.0
)

// ReportController answers research queries. The minimum-group-size
// filter is re-applied to every slice at query time: write-time noise
// and k-anonymity protect records, not every aggregate a report might
// carve out.
type ReportController struct {
	dataPointRepo repositories.DataPointRepository
	reportRepo    repositories.ReportRepository
	auditCtrl     *auditController.AuditController
	kMinSize      int
	epsilon       float64
	log           logger.Logger
}

func New(
	dataPointRepo repositories.DataPointRepository,
	reportRepo repositories.ReportRepository,
	auditCtrl *auditController.AuditController,
	config config.Config,
) *ReportController {
	return &ReportController{
		dataPointRepo: dataPointRepo,
		reportRepo:    reportRepo,
		auditCtrl:     auditCtrl,
		kMinSize:      config.KAnonymityMinSize,
		epsilon:       config.Epsilon,
		log:           logger.New("ReportController"),
	}
}

var reportDataTypes = map[string]string{
	ReportTypeAdherenceSummary:    DataTypeAdherence,
	ReportTypeSideEffectFrequency: DataTypeSideEffect,
	ReportTypeUsagePatterns:       DataTypePattern,
	ReportTypeRiskOverview:        DataTypeRisk,
}

// Generate materializes a report for the query. Cached results are
// served when present; every generation and access is audited with
// sample size and dimensions, never segment identifiers.
func (rc *ReportController) Generate(ctx context.Context, query ReportQuery, generatedBy string, meta RequestMeta) (*AggregatedReport, error) {
	log := rc.log.Function("Generate")

	dataType, ok := reportDataTypes[query.ReportType]
	if !ok {
		return nil, log.Error("unknown report type", "reportType", query.ReportType)
	}

	if query.TimeRangeEnd.IsZero() {
		query.TimeRangeEnd = time.Now().UTC()
	}
	if query.TimeRangeStart.IsZero() {
		query.TimeRangeStart = query.TimeRangeEnd.AddDate(0, -3, 0)
	}
	if !query.TimeRangeStart.Before(query.TimeRangeEnd) {
		return nil, log.Error("empty time range")
	}

	// The caller may raise the floor, never lower it below the
	// configured minimum.
	minGroupSize := rc.kMinSize
	if query.MinGroupSize > minGroupSize {
		minGroupSize = query.MinGroupSize
	}

	cacheKey := rc.cacheKey(query, minGroupSize)
	var cached AggregatedReport
	if found, err := rc.reportRepo.GetCached(ctx, cacheKey, &cached); err == nil && found {
		// The cached copy carries the access counters from when it was
		// written; reload them from the store so the caller sees current
		// values.
		report := &cached
		if fresh, err := rc.reportRepo.GetByID(ctx, cached.ID); err == nil {
			report = fresh
		}
		rc.recordAccess(ctx, report, query, meta)
		return report, nil
	}

	sampleSize, err := rc.dataPointRepo.DistinctSegments(ctx, dataType,
		query.TimeRangeStart, query.TimeRangeEnd, query.Filters)
	if err != nil {
		return nil, log.Err("failed to compute sample size", err)
	}
	if sampleSize < minGroupSize {
		return nil, ErrInsufficientSample
	}

	rows, err := rc.dataPointRepo.AggregateGroups(ctx, dataType,
		query.TimeRangeStart, query.TimeRangeEnd, query.Dimensions, query.Filters)
	if err != nil {
		return nil, log.Err("failed to aggregate", err)
	}

	payload := rc.buildPayload(rows, query.Dimensions, minGroupSize)
	metrics.SuppressedGroupsTotal.Add(float64(payload.SuppressedGroups))

	report := &AggregatedReport{
		ReportType:        query.ReportType,
		TimeRangeStart:    query.TimeRangeStart,
		TimeRangeEnd:      query.TimeRangeEnd,
		SampleSize:        sampleSize,
		ConfidenceLevel:   nominalConfidenceLevel,
		Payload:           payload,
		DataQualityScore:  dataQualityScore(payload),
		PrivacyScore:      rc.privacyScore(minGroupSize),
		CompletenessScore: completenessScore(payload),
		GeneratedBy:       generatedBy,
		AccessLevel:       "research",
	}

	if err := rc.reportRepo.Create(ctx, report); err != nil {
		return nil, log.Err("failed to persist report", err)
	}

	if err := rc.reportRepo.SetCached(ctx, cacheKey, report); err != nil {
		log.Warn("failed to cache report", "error", err)
	}

	metrics.ReportsGeneratedTotal.WithLabelValues(query.ReportType).Inc()
	rc.recordAccess(ctx, report, query, meta)

	return report, nil
}

// Get fetches a materialized report by ID and counts the access.
func (rc *ReportController) Get(ctx context.Context, id string, meta RequestMeta) (*AggregatedReport, error) {
	log := rc.log.Function("Get")

	report, err := rc.reportRepo.GetByID(ctx, id)
	if err != nil {
		return nil, log.Err("failed to load report", err, "id", id)
	}

	rc.recordAccess(ctx, report, ReportQuery{ReportType: report.ReportType}, meta)

	return report, nil
}

// buildPayload applies the read-time anonymity floor: any group with
// fewer distinct segments than the minimum is dropped and only counted.
func (rc *ReportController) buildPayload(rows []repositories.AggregateRow, dimensions []string, minGroupSize int) ReportPayload {
	if len(dimensions) == 0 {
		dimensions = []string{"timeWindow"}
	}

	payload := ReportPayload{
		MinGroupSize: minGroupSize,
		Dimensions:   dimensions,
		Groups:       []ReportGroup{},
	}

	for _, row := range rows {
		if row.SegmentCount < minGroupSize {
			payload.SuppressedGroups++
			continue
		}

		group := ReportGroup{
			Dimensions:    map[string]string{},
			SegmentCount:  row.SegmentCount,
			RecordCount:   row.RecordCount,
			MeanValue:     row.MeanValue,
			ConfidenceLow: row.MeanValue - nominalConfidenceMargin,
			ConfidenceHi:  row.MeanValue + nominalConfidenceMargin,
		}
		for _, dimension := range dimensions {
			group.Dimensions[dimension] = dimensionValue(row, dimension)
		}
		payload.Groups = append(payload.Groups, group)
	}

	return payload
}

func (rc *ReportController) recordAccess(ctx context.Context, report *AggregatedReport, query ReportQuery, meta RequestMeta) {
	log := rc.log.Function("recordAccess")

	if report.ID != "" {
		if err := rc.reportRepo.RecordAccess(ctx, report.ID); err != nil {
			log.Warn("failed to record report access", "reportID", report.ID, "error", err)
		} else {
			now := time.Now().UTC()
			report.DownloadCount++
			report.LastAccessed = &now
		}
	}

	rc.auditCtrl.Record(ctx, &PrivacyAuditEntry{
		Action: AuditActionReportAccess,
		Details: map[string]string{
			"reportType": report.ReportType,
			"sampleSize": strconv.Itoa(report.SampleSize),
			"dimensions": strings.Join(query.Dimensions, ","),
		},
		RiskLevel: RiskLevelLow,
	})
}

func (rc *ReportController) cacheKey(query ReportQuery, minGroupSize int) string {
	serialized, _ := json.Marshal(struct {
		ReportQuery
		MinGroupSize int
	}{query, minGroupSize})
	sum := sha256.Sum256(serialized)
	return hex.EncodeToString(sum[:16])
}

func dimensionValue(row repositories.AggregateRow, dimension string) string {
	switch dimension {
	case "timeWindow":
		return row.TimeWindow
	case "primaryBucket":
		return row.PrimaryBucket
	case "regionCode":
		return row.RegionCode
	case "demographicBucket":
		return row.DemographicBucket
	case "weekdayBucket":
		return row.WeekdayBucket
	}
	return ""
}

// Quality scores are coarse heuristics surfaced with the report, not
// statistical guarantees.
func dataQualityScore(payload ReportPayload) float64 {
	total := len(payload.Groups) + payload.SuppressedGroups
	if total == 0 {
		return 0
	}
	return float64(len(payload.Groups)) / float64(total)
}

func (rc *ReportController) privacyScore(minGroupSize int) float64 {
	score := 0.5
	if minGroupSize >= 5 {
		score += 0.3
	}
	if rc.epsilon <= 1.0 {
		score += 0.2
	}
	return score
}

func completenessScore(payload ReportPayload) float64 {
	if len(payload.Groups) == 0 {
		return 0
	}
	records := 0
	for _, group := range payload.Groups {
		records += group.RecordCount
	}
	if records >= 100 {
		return 1
	}
	return float64(records) / 100
}
