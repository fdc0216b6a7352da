package repositories

import (
	"context"
	"fmt"
	"testing"
	"time"

	. "cohort/internal/models"
	"cohort/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDataPoint(segmentID string) *AnonymizedDataPoint {
	return &AnonymizedDataPoint{
		TimeWindow:    "2026-03",
		SegmentID:     segmentID,
		DataType:      DataTypeAdherence,
		PrimaryBucket: "ssri",
		MetricValue:   75,
		Metrics: map[string]string{
			"medicationClass": "ssri",
			"streakBucket":    "8-30",
		},
		NoiseLevel:       1.0,
		KAnonymityLevel:  5,
		SubmissionWindow: "2026-03",
		TupleKey:         "2026-03|adherence||",
		PrivacyValidated: true,
	}
}

func TestDataPointRepository_Create(t *testing.T) {
	db := testDB(t)
	repo := NewDataPoint(db)
	ctx := context.Background()

	dataPoint := testDataPoint("segment-1")
	err := repo.Create(ctx, dataPoint)
	require.NoError(t, err)
	assert.NotEmpty(t, dataPoint.ID, "UUID should be assigned on create")

	var stored AnonymizedDataPoint
	require.NoError(t, db.SQL.First(&stored, "id = ?", dataPoint.ID).Error)
	assert.Equal(t, "ssri", stored.PrimaryBucket)
	assert.Equal(t, map[string]string{
		"medicationClass": "ssri",
		"streakBucket":    "8-30",
	}, stored.Metrics)
}

func TestDataPointRepository_CountGroup_ProvisionalInclude(t *testing.T) {
	db := testDB(t)
	repo := NewDataPoint(db)
	ctx := context.Background()

	// Empty group: the candidate itself counts as one.
	size, err := repo.CountGroup(ctx, "tuple-a", "segment-1")
	require.NoError(t, err)
	assert.Equal(t, 1, size)

	_, err = repo.RecordGroupMember(ctx, "tuple-a", "segment-1")
	require.NoError(t, err)

	// Already a member: no provisional increment.
	size, err = repo.CountGroup(ctx, "tuple-a", "segment-1")
	require.NoError(t, err)
	assert.Equal(t, 1, size)

	// A new segment sees the existing member plus itself.
	size, err = repo.CountGroup(ctx, "tuple-a", "segment-2")
	require.NoError(t, err)
	assert.Equal(t, 2, size)
}

func TestDataPointRepository_RecordGroupMember(t *testing.T) {
	db := testDB(t)
	repo := NewDataPoint(db)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		size, err := repo.RecordGroupMember(ctx, "tuple-a", fmt.Sprintf("segment-%d", i))
		require.NoError(t, err)
		assert.Equal(t, i, size)
	}

	// Re-recording an existing member is idempotent.
	size, err := repo.RecordGroupMember(ctx, "tuple-a", "segment-3")
	require.NoError(t, err)
	assert.Equal(t, 5, size)

	// Other tuples are unaffected.
	size, err = repo.RecordGroupMember(ctx, "tuple-b", "segment-1")
	require.NoError(t, err)
	assert.Equal(t, 1, size)
}

func TestDataPointRepository_RecordGroupMember_InTransaction(t *testing.T) {
	db := testDB(t)
	repo := NewDataPoint(db)
	txService := services.NewTransactionService(db)
	ctx := context.Background()

	err := txService.Execute(ctx, func(txCtx context.Context) error {
		size, err := repo.RecordGroupMember(txCtx, "tuple-a", "segment-1")
		require.NoError(t, err)
		assert.Equal(t, 1, size)
		return fmt.Errorf("force rollback")
	})
	assert.Error(t, err)

	var count int64
	require.NoError(t, db.SQL.Model(&QuasiGroupMember{}).Count(&count).Error)
	assert.Zero(t, count, "rolled back membership must not persist")
}

func TestDataPointRepository_AggregateGroups(t *testing.T) {
	db := testDB(t)
	repo := NewDataPoint(db)
	ctx := context.Background()

	for i, metric := range []float64{60, 70, 80} {
		dataPoint := testDataPoint(fmt.Sprintf("segment-%d", i))
		dataPoint.MetricValue = metric
		require.NoError(t, repo.Create(ctx, dataPoint))
	}

	other := testDataPoint("segment-9")
	other.PrimaryBucket = "snri"
	other.MetricValue = 40
	require.NoError(t, repo.Create(ctx, other))

	unvalidated := testDataPoint("segment-x")
	unvalidated.PrivacyValidated = false
	require.NoError(t, repo.Create(ctx, unvalidated))

	start := time.Now().UTC().Add(-time.Hour)
	end := time.Now().UTC().Add(time.Hour)

	rows, err := repo.AggregateGroups(ctx, DataTypeAdherence, start, end,
		[]string{"primaryBucket"}, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byBucket := map[string]AggregateRow{}
	for _, row := range rows {
		byBucket[row.PrimaryBucket] = row
	}

	ssri := byBucket["ssri"]
	assert.Equal(t, 3, ssri.SegmentCount)
	assert.Equal(t, 3, ssri.RecordCount)
	assert.InDelta(t, 70, ssri.MeanValue, 1e-9)

	snri := byBucket["snri"]
	assert.Equal(t, 1, snri.SegmentCount)
}

func TestDataPointRepository_AggregateGroups_Filters(t *testing.T) {
	db := testDB(t)
	repo := NewDataPoint(db)
	ctx := context.Background()

	withRegion := testDataPoint("segment-1")
	withRegion.RegionCode = strPtr("US")
	require.NoError(t, repo.Create(ctx, withRegion))

	elsewhere := testDataPoint("segment-2")
	elsewhere.RegionCode = strPtr("DE")
	require.NoError(t, repo.Create(ctx, elsewhere))

	start := time.Now().UTC().Add(-time.Hour)
	end := time.Now().UTC().Add(time.Hour)

	rows, err := repo.AggregateGroups(ctx, DataTypeAdherence, start, end,
		[]string{"regionCode"}, map[string]string{"regionCode": "US"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "US", rows[0].RegionCode)
}

func TestDataPointRepository_AggregateGroups_RejectsUnknownDimension(t *testing.T) {
	db := testDB(t)
	repo := NewDataPoint(db)
	ctx := context.Background()

	start := time.Now().UTC().Add(-time.Hour)
	end := time.Now().UTC().Add(time.Hour)

	_, err := repo.AggregateGroups(ctx, DataTypeAdherence, start, end,
		[]string{"segment_id"}, nil)
	assert.Error(t, err, "raw column names must not pass the whitelist")

	_, err = repo.AggregateGroups(ctx, DataTypeAdherence, start, end,
		[]string{"timeWindow"}, map[string]string{"id; DROP TABLE": "x"})
	assert.Error(t, err)
}

func TestDataPointRepository_DistinctSegments(t *testing.T) {
	db := testDB(t)
	repo := NewDataPoint(db)
	ctx := context.Background()

	for _, segment := range []string{"segment-1", "segment-1", "segment-2"} {
		require.NoError(t, repo.Create(ctx, testDataPoint(segment)))
	}

	start := time.Now().UTC().Add(-time.Hour)
	end := time.Now().UTC().Add(time.Hour)

	count, err := repo.DistinctSegments(ctx, DataTypeAdherence, start, end, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "sample size counts segments, not records")
}

func TestDataPointRepository_DistinctSegments_HonorsFilters(t *testing.T) {
	db := testDB(t)
	repo := NewDataPoint(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, testDataPoint(fmt.Sprintf("ssri-%d", i))))
	}
	snri := testDataPoint("snri-1")
	snri.PrimaryBucket = "snri"
	require.NoError(t, repo.Create(ctx, snri))

	start := time.Now().UTC().Add(-time.Hour)
	end := time.Now().UTC().Add(time.Hour)

	count, err := repo.DistinctSegments(ctx, DataTypeAdherence, start, end,
		map[string]string{"primaryBucket": "snri"})
	require.NoError(t, err)
	assert.Equal(t, 1, count, "sample must describe the filtered scope only")

	_, err = repo.DistinctSegments(ctx, DataTypeAdherence, start, end,
		map[string]string{"id; DROP TABLE": "x"})
	assert.Error(t, err, "filter dimensions go through the same whitelist as grouping")
}

func TestDataPointRepository_PurgeExpired(t *testing.T) {
	db := testDB(t)
	repo := NewDataPoint(db)
	ctx := context.Background()

	old := testDataPoint("segment-1")
	require.NoError(t, repo.Create(ctx, old))
	require.NoError(t, db.SQL.Model(old).
		Update("created_at", time.Now().UTC().Add(-48*time.Hour)).Error)

	fresh := testDataPoint("segment-2")
	require.NoError(t, repo.Create(ctx, fresh))

	purged, err := repo.PurgeExpired(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	var count int64
	require.NoError(t, db.SQL.Model(&AnonymizedDataPoint{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
