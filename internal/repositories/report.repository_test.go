package repositories

import (
	"context"
	"testing"
	"time"

	. "cohort/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testReport() *AggregatedReport {
	return &AggregatedReport{
		ReportType:      ReportTypeAdherenceSummary,
		TimeRangeStart:  time.Now().UTC().Add(-30 * 24 * time.Hour),
		TimeRangeEnd:    time.Now().UTC(),
		SampleSize:      42,
		ConfidenceLevel: 0.95,
		Payload: ReportPayload{
			MinGroupSize: 5,
			Dimensions:   []string{"primaryBucket"},
			Groups: []ReportGroup{
				{
					Dimensions:   map[string]string{"primaryBucket": "ssri"},
					SegmentCount: 12,
					RecordCount:  30,
					MeanValue:    74.2,
				},
			},
			SuppressedGroups: 2,
		},
		DataQualityScore:  0.8,
		PrivacyScore:      0.9,
		CompletenessScore: 0.3,
		GeneratedBy:       "researcher",
		AccessLevel:       "researcher",
	}
}

func TestReportRepository_CreateAndGet(t *testing.T) {
	db := testDB(t)
	repo := NewReport(db)
	ctx := context.Background()

	report := testReport()
	require.NoError(t, repo.Create(ctx, report))
	assert.NotEmpty(t, report.ID)

	stored, err := repo.GetByID(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, ReportTypeAdherenceSummary, stored.ReportType)
	assert.Equal(t, 42, stored.SampleSize)
	require.Len(t, stored.Payload.Groups, 1)
	assert.Equal(t, 12, stored.Payload.Groups[0].SegmentCount)
	assert.Equal(t, 2, stored.Payload.SuppressedGroups)
}

func TestReportRepository_GetByID_NotFound(t *testing.T) {
	db := testDB(t)
	repo := NewReport(db)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.Error(t, err)
}

func TestReportRepository_RecordAccess(t *testing.T) {
	db := testDB(t)
	repo := NewReport(db)
	ctx := context.Background()

	report := testReport()
	require.NoError(t, repo.Create(ctx, report))
	assert.Zero(t, report.DownloadCount)
	assert.Nil(t, report.LastAccessed)

	require.NoError(t, repo.RecordAccess(ctx, report.ID))
	require.NoError(t, repo.RecordAccess(ctx, report.ID))

	stored, err := repo.GetByID(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.DownloadCount)
	assert.NotNil(t, stored.LastAccessed)
}

func TestReportRepository_CacheDisabled(t *testing.T) {
	db := testDB(t)
	repo := NewReport(db)
	ctx := context.Background()

	report := testReport()
	var cached AggregatedReport

	found, err := repo.GetCached(ctx, "key", &cached)
	require.NoError(t, err)
	assert.False(t, found, "disabled cache reads as a miss")

	assert.NoError(t, repo.SetCached(ctx, "key", report))
}
