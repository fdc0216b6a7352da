package initialize

import (
	"cohort/config"
	"cohort/internal/logger"

	"gorm.io/gorm"
)

var requiredTables = []string{
	"anonymized_data_points",
	"quasi_group_members",
	"consents",
	"privacy_audit_entries",
	"aggregated_reports",
}

// VerifyTables confirms the migrated schema carries every table the
// pipeline writes to before the server is allowed to start against it.
func VerifyTables(db *gorm.DB, config config.Config, log logger.Logger) error {
	log = log.Function("VerifyTables")
	log.Info("Verifying migrated schema")

	for _, table := range requiredTables {
		if !db.Migrator().HasTable(table) {
			return log.Error("required table missing", "table", table)
		}
	}

	log.Info("Schema verification complete", "tables", len(requiredTables))
	return nil
}
