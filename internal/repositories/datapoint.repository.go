package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cohort/internal/database"
	"cohort/internal/logger"
	. "cohort/internal/models"
	"cohort/internal/services"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const groupSizeCacheExpiry = 5 * time.Minute

// Dimension names accepted by aggregation queries, mapped onto real
// columns. Anything else is rejected before SQL is built.
var dimensionColumns = map[string]string{
	"timeWindow":        "time_window",
	"primaryBucket":     "primary_bucket",
	"regionCode":        "region_code",
	"demographicBucket": "demographic_bucket",
	"weekdayBucket":     "weekday_bucket",
}

// AggregateRow is one raw group produced by the aggregation query,
// before the read-time anonymity filter is applied.
type AggregateRow struct {
	TimeWindow        string  `json:"timeWindow"`
	PrimaryBucket     string  `json:"primaryBucket"`
	RegionCode        string  `json:"regionCode"`
	DemographicBucket string  `json:"demographicBucket"`
	WeekdayBucket     string  `json:"weekdayBucket"`
	SegmentCount      int     `json:"segmentCount"`
	RecordCount       int     `json:"recordCount"`
	MeanValue         float64 `json:"meanValue"`
}

type DataPointRepository interface {
	Create(ctx context.Context, dataPoint *AnonymizedDataPoint) error
	CountGroup(ctx context.Context, tupleKey, segmentID string) (int, error)
	RecordGroupMember(ctx context.Context, tupleKey, segmentID string) (int, error)
	AggregateGroups(ctx context.Context, dataType string, start, end time.Time,
		dimensions []string, filters map[string]string) ([]AggregateRow, error)
	DistinctSegments(ctx context.Context, dataType string, start, end time.Time,
		filters map[string]string) (int, error)
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

type dataPointRepository struct {
	db  database.DB
	log logger.Logger
}

func NewDataPoint(db database.DB) DataPointRepository {
	return &dataPointRepository{
		db:  db,
		log: logger.New("dataPointRepository"),
	}
}

func (r *dataPointRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := services.GetTransaction(ctx); ok {
		return tx
	}
	return r.db.SQLWithContext(ctx)
}

func (r *dataPointRepository) Create(ctx context.Context, dataPoint *AnonymizedDataPoint) error {
	log := r.log.Function("Create")

	if err := r.getDB(ctx).Create(dataPoint).Error; err != nil {
		return log.Err("failed to create data point", err, "dataType", dataPoint.DataType)
	}

	return nil
}

// CountGroup counts distinct segments sharing the quasi-identifier
// tuple, with the candidate provisionally included. Serves the
// validator's standalone check; the authoritative count happens in
// RecordGroupMember inside the submission transaction.
func (r *dataPointRepository) CountGroup(ctx context.Context, tupleKey, segmentID string) (int, error) {
	log := r.log.Function("CountGroup")

	var cached int
	if found, err := database.NewCacheBuilder(r.db.Cache.Groups, groupCacheKey(tupleKey, segmentID)).
		WithContext(ctx).
		Get(&cached); err == nil && found {
		return cached, nil
	}

	var count int64
	if err := r.getDB(ctx).Model(&QuasiGroupMember{}).
		Where("tuple_key = ?", tupleKey).
		Count(&count).Error; err != nil {
		return 0, log.Err("failed to count group", err, "tupleKey", tupleKey)
	}

	var existing int64
	if err := r.getDB(ctx).Model(&QuasiGroupMember{}).
		Where("tuple_key = ? AND segment_id = ?", tupleKey, segmentID).
		Count(&existing).Error; err != nil {
		return 0, log.Err("failed to check group membership", err, "tupleKey", tupleKey)
	}

	size := int(count)
	if existing == 0 {
		size++
	}

	if err := database.NewCacheBuilder(r.db.Cache.Groups, groupCacheKey(tupleKey, segmentID)).
		WithStruct(size).
		WithTTL(groupSizeCacheExpiry).
		WithContext(ctx).
		Set(); err != nil && err != database.ErrCacheDisabled {
		log.Warn("failed to cache group size", "tupleKey", tupleKey, "error", err)
	}

	return size, nil
}

// RecordGroupMember upserts the (tuple, segment) membership row and
// returns the resulting distinct-segment count. Called inside the
// submission transaction so two concurrent near-identical submissions
// cannot both observe a pre-threshold count and slip through.
func (r *dataPointRepository) RecordGroupMember(ctx context.Context, tupleKey, segmentID string) (int, error) {
	log := r.log.Function("RecordGroupMember")

	member := QuasiGroupMember{TupleKey: tupleKey, SegmentID: segmentID}
	if err := r.getDB(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&member).Error; err != nil {
		return 0, log.Err("failed to record group member", err, "tupleKey", tupleKey)
	}

	var count int64
	if err := r.getDB(ctx).Model(&QuasiGroupMember{}).
		Where("tuple_key = ?", tupleKey).
		Count(&count).Error; err != nil {
		return 0, log.Err("failed to count group after insert", err, "tupleKey", tupleKey)
	}

	if err := database.NewCacheBuilder(r.db.Cache.Groups, groupCacheKey(tupleKey, segmentID)).
		WithContext(ctx).
		Delete(); err != nil {
		log.Warn("failed to invalidate group size cache", "tupleKey", tupleKey, "error", err)
	}

	return int(count), nil
}

// AggregateGroups groups validated data points by the requested
// dimensions and computes per-group statistics. Callers must still
// apply the minimum-group-size filter to the result.
func (r *dataPointRepository) AggregateGroups(ctx context.Context, dataType string, start, end time.Time, dimensions []string, filters map[string]string) ([]AggregateRow, error) {
	log := r.log.Function("AggregateGroups")

	if len(dimensions) == 0 {
		dimensions = []string{"timeWindow"}
	}

	selects := []string{
		"COUNT(DISTINCT segment_id) AS segment_count",
		"COUNT(*) AS record_count",
		"AVG(metric_value) AS mean_value",
	}
	groups := make([]string, 0, len(dimensions))
	for _, dimension := range dimensions {
		column, ok := dimensionColumns[dimension]
		if !ok {
			return nil, log.Error("unknown aggregation dimension", "dimension", dimension)
		}
		selects = append(selects, fmt.Sprintf("COALESCE(%s, '') AS %s", column, column))
		groups = append(groups, column)
	}

	query := r.getDB(ctx).Model(&AnonymizedDataPoint{}).
		Where("data_type = ? AND privacy_validated = ?", dataType, true).
		Where("created_at >= ? AND created_at < ?", start, end)

	for filterDimension, value := range filters {
		column, ok := dimensionColumns[filterDimension]
		if !ok {
			return nil, log.Error("unknown filter dimension", "dimension", filterDimension)
		}
		query = query.Where(fmt.Sprintf("%s = ?", column), value)
	}

	var rows []AggregateRow
	if err := query.Select(selects).Group(strings.Join(groups, ", ")).Scan(&rows).Error; err != nil {
		return nil, log.Err("failed to aggregate groups", err, "dataType", dataType)
	}

	return rows, nil
}

// DistinctSegments counts the distinct segments contributing to a
// report's scope; this is the report sample size. Filters narrow the
// scope exactly like AggregateGroups, so the sample always describes
// the same set of records the report aggregates.
func (r *dataPointRepository) DistinctSegments(ctx context.Context, dataType string, start, end time.Time, filters map[string]string) (int, error) {
	log := r.log.Function("DistinctSegments")

	query := r.getDB(ctx).Model(&AnonymizedDataPoint{}).
		Where("data_type = ? AND privacy_validated = ?", dataType, true).
		Where("created_at >= ? AND created_at < ?", start, end)

	for filterDimension, value := range filters {
		column, ok := dimensionColumns[filterDimension]
		if !ok {
			return 0, log.Error("unknown filter dimension", "dimension", filterDimension)
		}
		query = query.Where(fmt.Sprintf("%s = ?", column), value)
	}

	var count int64
	if err := query.Distinct("segment_id").
		Count(&count).Error; err != nil {
		return 0, log.Err("failed to count distinct segments", err, "dataType", dataType)
	}

	return int(count), nil
}

// PurgeExpired hard-deletes data points past the retention window.
// There is no per-record manual deletion path: segment identifiers are
// not reversible to a user, so retention expiry is the only removal.
func (r *dataPointRepository) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	log := r.log.Function("PurgeExpired")

	result := r.getDB(ctx).Unscoped().
		Where("created_at < ?", before).
		Delete(&AnonymizedDataPoint{})
	if result.Error != nil {
		return 0, log.Err("failed to purge expired data points", result.Error)
	}

	return result.RowsAffected, nil
}

func groupCacheKey(tupleKey, segmentID string) string {
	return "group:" + tupleKey + ":" + segmentID
}
