package database

import (
	"fmt"
	"log" // Standard log for critical connection errors
	"time"

	"buildinghub_backend/internal/config"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewGORM opens the PostgreSQL connection pool described by cfg.
func NewGORM(cfg *config.Config) (*gorm.DB, error) {
	newLogger := gormlogger.New(
		log.New(log.Writer(), "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogLevel(cfg.LogLevel),
			IgnoreRecordNotFoundError: true,
			Colorful:                  cfg.GinMode != "release",
		},
	)

	db, err := gorm.Open(postgres.Open(cfg.DBSource), &gorm.Config{
		Logger:      newLogger,
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.DBConnMaxLifetime)

	if err = sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Successfully connected to the database.")
	return db, nil
}

func gormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent", "fatal", "panic":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

// AutoMigrate creates or updates the tables of the given models when
// DB_AUTO_MIGRATE is enabled.
func AutoMigrate(cfg *config.Config, db *gorm.DB, logger *zap.Logger, models ...interface{}) error {
	if !cfg.DBAutoMigrate {
		logger.Info("Auto migration disabled, skipping")
		return nil
	}
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto migration failed: %w", err)
	}
	logger.Info("Database schema migrated", zap.Int("models", len(models)))
	return nil
}

// CloseGORMDB closes the GORM database connection.
func CloseGORMDB(db *gorm.DB) {
	if db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("Error getting underlying SQL DB for closing: %v\n", err)
		return
	}
	log.Println("Closing database connection...")
	if err := sqlDB.Close(); err != nil {
		log.Printf("Error closing database connection: %v\n", err)
	} else {
		log.Println("Database connection closed.")
	}
}
