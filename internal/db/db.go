package db

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"cohortboard/internal/config"
	"cohortboard/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Init opens the configured database and migrates it. Failures are fatal.
func Init(cfg config.DatabaseConfig) *gorm.DB {
	level := logger.Warn
	if cfg.Debug {
		level = logger.Info
	}

	conn, err := Open(cfg.Driver, cfg.DSN, level)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Printf("Database connection established (%s)", cfg.Driver)

	if err := Migrate(conn); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database migration completed")

	return conn
}

func Open(driver, dsn string, level logger.LogLevel) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		Logger: logger.Default.LogMode(level),
	}

	switch driver {
	case "postgres":
		return gorm.Open(postgres.Open(dsn), gcfg)
	case "sqlite":
		if dir := filepath.Dir(dsn); dir != "." && dir != "" && !isMemoryDSN(dsn) {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		conn, err := gorm.Open(sqlite.Open(dsn), gcfg)
		if err != nil {
			return nil, err
		}
		// sqlite serialises writers; one connection avoids SQLITE_BUSY and
		// keeps in-memory databases alive.
		sqlDB, err := conn.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		return conn, nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

func Migrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&models.User{},
		&models.ApprovedUser{},
		&models.Post{},
		&models.Comment{},
		&models.Heart{},
		&models.HomeworkReview{},
	)
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || (len(dsn) > 5 && dsn[:5] == "file:")
}
