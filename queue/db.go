package queue

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the queue database. driver is "sqlite" (default) or "postgres".
// For sqlite the dsn is a file path; for postgres it is a connection string.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite", "":
		if dsn != ":memory:" {
			dsn = fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", dsn)
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB instance: %w", err)
	}
	if driver == "sqlite" || driver == "" {
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	} else {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(5)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// queueIndexes are created on every queue table. Index names are global in
// sqlite, so each one is prefixed with its table.
var queueIndexes = []struct {
	suffix  string
	columns string
}{
	{suffix: "status_run_at", columns: "status, run_at"},
	{suffix: "profile_id", columns: "profile_id"},
}

// indexName returns the name of a queue index on table.
func indexName(table, suffix string) string {
	return "idx_" + table + "_" + suffix
}

// Migrate creates or updates the queue tables and their indexes.
func Migrate(ctx context.Context, db *gorm.DB) error {
	tx := db.WithContext(ctx)
	for _, table := range []string{PostsTable, PhotosTable} {
		if err := tx.Table(table).AutoMigrate(&itemModel{}); err != nil {
			return fmt.Errorf("migrate %s: %w", table, err)
		}
		for _, idx := range queueIndexes {
			stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", indexName(table, idx.suffix), table, idx.columns)
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("create index on %s: %w", table, err)
			}
		}
	}
	return nil
}
