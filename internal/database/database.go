package database

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"cohort/config"
	logg "cohort/internal/logger"

	"github.com/valkey-io/valkey-go"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type CacheClient valkey.Client

// Cache holds one logical valkey client per concern. All nil when the
// cache tier is disabled; callers must treat cache misses and a
// disabled cache identically.
type Cache struct {
	Consent CacheClient
	Report  CacheClient
	Groups  CacheClient
}

type DB struct {
	SQL   *gorm.DB
	Cache Cache
	log   logg.Logger
}

func New(config config.Config) (DB, error) {
	log := logg.New("database").Function("New")

	log.Info("Initializing database")
	db := &DB{log: log}

	if err := db.initializeDB(config); err != nil {
		return DB{}, log.Err("failed to initialize database", err)
	}

	if err := db.initializeCacheDB(config); err != nil {
		return DB{}, log.Err("failed to initialize cache database", err)
	}

	return *db, nil
}

func TXDefer(tx *gorm.DB, log logg.Logger) {
	if tx.Error != nil {
		log.Er("failed to commit transaction", tx.Error)
		tx.Rollback()
	} else {
		err := tx.Commit().Error
		if err != nil {
			log.Er("failed to commit transaction", err)
		}
	}
}

func (s *DB) initializeDB(config config.Config) error {
	gormLogger := logger.New(
		slog.NewLogLogger(slog.Default().Handler(), slog.LevelInfo),
		logger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
			Colorful:                  false,
		},
	)

	gormConfig := &gorm.Config{
		Logger:                                   gormLogger,
		PrepareStmt:                              true,
		DisableForeignKeyConstraintWhenMigrating: false,
		CreateBatchSize:                          100,
	}

	return s.initializeSQLiteDB(gormConfig, config)
}

func (s *DB) initializeSQLiteDB(gormConfig *gorm.Config, config config.Config) error {
	log := s.log.Function("initializeSQLiteDB")

	dbPath := config.DatabaseDbPath
	if dbPath == "" {
		return log.Error("database path is empty", "dbPath", dbPath)
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return log.Err("failed to create database directory", err, "dir", dir)
	}

	log.Info("Connecting with GORM", "dbPath", dbPath)
	db, err := gorm.Open(sqlite.Open(dbPath), gormConfig)
	if err != nil {
		return log.Err("failed to open database with GORM", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return log.Err("failed to get database from GORM", err)
	}

	if err := sqlDB.Ping(); err != nil {
		return log.Err("failed to ping database through GORM", err)
	}

	// sqlite serializes writers; a single connection avoids SQLITE_BUSY
	// on the transactional group-count-and-insert path.
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	s.SQL = db

	return nil
}

func (s *DB) initializeCacheDB(config config.Config) error {
	log := s.log.Function("initializeCacheDB")

	if !config.ValkeyEnabled {
		log.Info("Cache tier disabled")
		return nil
	}

	for i, client := range []*CacheClient{&s.Cache.Consent, &s.Cache.Report, &s.Cache.Groups} {
		c, err := valkey.NewClient(valkey.ClientOption{
			InitAddress: []string{config.ValkeyAddress},
			SelectDB:    i,
		})
		if err != nil {
			return log.Err("failed to create valkey client", err,
				"address", config.ValkeyAddress, "db", i)
		}
		*client = c
	}

	return nil
}

func (s *DB) Close() (err error) {
	if s.SQL != nil {
		sqlDB, err := s.SQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				_ = s.log.Err("failed to close database", err)
			}
		}
	}

	if s.Cache.Consent != nil {
		s.Cache.Consent.Close()
	}

	if s.Cache.Report != nil {
		s.Cache.Report.Close()
	}

	if s.Cache.Groups != nil {
		s.Cache.Groups.Close()
	}

	return
}

func (s *DB) SQLWithContext(ctx context.Context) *gorm.DB {
	return s.SQL.WithContext(ctx)
}

func (s *DB) FlushAllCaches() error {
	log := s.log.Function("FlushAllCaches")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cacheClients := []struct {
		client CacheClient
		name   string
	}{
		{s.Cache.Consent, "Consent"},
		{s.Cache.Report, "Report"},
		{s.Cache.Groups, "Groups"},
	}

	for _, cache := range cacheClients {
		if cache.client != nil {
			if err := cache.client.Do(ctx, cache.client.B().Flushdb().Build()).Error(); err != nil {
				log.Er("Failed to flush cache database", err, "cache", cache.name)
				return err
			}
		}
	}

	return nil
}
