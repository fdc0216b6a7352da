package repositories

import (
	"path/filepath"
	"testing"

	"cohort/config"
	"cohort/internal/database"
	. "cohort/internal/models"

	"github.com/stretchr/testify/require"
)

// testDB opens a throwaway sqlite database with the full schema and the
// cache tier disabled.
func testDB(t *testing.T) database.DB {
	t.Helper()

	db, err := database.New(config.Config{
		DatabaseDbPath: filepath.Join(t.TempDir(), "test.db"),
		ValkeyEnabled:  false,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	err = db.SQL.AutoMigrate(
		&AnonymizedDataPoint{},
		&QuasiGroupMember{},
		&Consent{},
		&PrivacyAuditEntry{},
		&AggregatedReport{},
	)
	require.NoError(t, err)

	return db
}

func strPtr(s string) *string {
	return &s
}
