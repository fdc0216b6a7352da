package repositories

import (
	"context"
	"testing"

	. "cohort/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditRepository_Create(t *testing.T) {
	db := testDB(t)
	repo := NewAudit(db)
	ctx := context.Background()

	entry := &PrivacyAuditEntry{
		Action:       AuditActionSubmission,
		HashedUserID: strPtr("hash-1"),
		Details:      map[string]string{"outcome": "accepted", "dataType": DataTypeAdherence},
		RiskLevel:    RiskLevelLow,
	}
	require.NoError(t, repo.Create(ctx, entry))
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
}

func TestAuditRepository_Query_Filters(t *testing.T) {
	db := testDB(t)
	repo := NewAudit(db)
	ctx := context.Background()

	entries := []*PrivacyAuditEntry{
		{Action: AuditActionSubmission, RiskLevel: RiskLevelLow},
		{Action: AuditActionSubmission, RiskLevel: RiskLevelHigh, Flagged: true, ReviewRequired: true},
		{Action: AuditActionConsentUpdate, RiskLevel: RiskLevelMedium},
		{Action: AuditActionPrivacyViolation, RiskLevel: RiskLevelHigh, Flagged: true},
	}
	for _, entry := range entries {
		require.NoError(t, repo.Create(ctx, entry))
	}

	tests := []struct {
		name     string
		query    AuditQuery
		expected int
	}{
		{name: "no filters", query: AuditQuery{}, expected: 4},
		{name: "by action", query: AuditQuery{Action: AuditActionSubmission}, expected: 2},
		{name: "by risk level", query: AuditQuery{RiskLevel: RiskLevelHigh}, expected: 2},
		{name: "flagged only", query: AuditQuery{FlaggedOnly: true}, expected: 2},
		{
			name:     "combined",
			query:    AuditQuery{Action: AuditActionSubmission, FlaggedOnly: true},
			expected: 1,
		},
		{name: "limit", query: AuditQuery{Limit: 2}, expected: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := repo.Query(ctx, tt.query)
			require.NoError(t, err)
			assert.Len(t, results, tt.expected)
		})
	}
}

func TestAuditRepository_Query_StripsHashesByDefault(t *testing.T) {
	db := testDB(t)
	repo := NewAudit(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &PrivacyAuditEntry{
		Action:       AuditActionSubmission,
		HashedUserID: strPtr("hash-1"),
		RiskLevel:    RiskLevelLow,
	}))

	stripped, err := repo.Query(ctx, AuditQuery{})
	require.NoError(t, err)
	require.Len(t, stripped, 1)
	assert.Nil(t, stripped[0].HashedUserID)

	included, err := repo.Query(ctx, AuditQuery{IncludeHashes: true})
	require.NoError(t, err)
	require.Len(t, included, 1)
	require.NotNil(t, included[0].HashedUserID)
	assert.Equal(t, "hash-1", *included[0].HashedUserID)
}

func TestAuditRepository_Query_LimitBounds(t *testing.T) {
	db := testDB(t)
	repo := NewAudit(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, &PrivacyAuditEntry{
			Action:    AuditActionReportAccess,
			RiskLevel: RiskLevelLow,
		}))
	}

	results, err := repo.Query(ctx, AuditQuery{Limit: -5})
	require.NoError(t, err)
	assert.Len(t, results, 3, "non-positive limit falls back to default")

	results, err = repo.Query(ctx, AuditQuery{Limit: 5000})
	require.NoError(t, err)
	assert.Len(t, results, 3, "oversized limit falls back to default")
}
