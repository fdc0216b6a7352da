package main

import (
	"embed"
	"os"

	"cohort/cmd/migration/initialize"
	"cohort/config"
	"cohort/internal/database"
	"cohort/internal/logger"

	migrate "github.com/rubenv/sql-migrate"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

func main() {
	log := logger.New("migration")

	cfg, err := config.InitConfig()
	if err != nil {
		log.Er("failed to initialize config", err)
		os.Exit(1)
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Er("failed to open database", err)
		os.Exit(1)
	}
	defer db.Close()

	sqlDB, err := db.SQL.DB()
	if err != nil {
		log.Er("failed to get sql database handle", err)
		os.Exit(1)
	}

	source := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrationFiles,
		Root:       "migrations",
	}

	applied, err := migrate.Exec(sqlDB, "sqlite3", source, migrate.Up)
	if err != nil {
		log.Er("failed to apply migrations", err)
		os.Exit(1)
	}
	log.Info("Applied migrations", "count", applied)

	if err := initialize.VerifyTables(db.SQL, cfg, log); err != nil {
		log.Er("schema verification failed", err)
		os.Exit(1)
	}
}
