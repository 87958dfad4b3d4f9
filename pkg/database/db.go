package database

import (
	"fmt"
	"log/slog"

	"rebooto/pkg/config"
	"rebooto/pkg/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect initializes the database connection. The driver is picked by
// configuration: sqlite for the embedded single-file deployment, postgres for
// everything else.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.DBDriver {
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(cfg.DBPath), gormConfig)
	case "postgres":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)
		db, err = gorm.Open(postgres.Open(dsn), gormConfig)
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.DBDriver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("Connected to database", "component", "Database", "driver", cfg.DBDriver)
	return db, nil
}

// Migrate creates the schema and seeds the built-in screenshot action used by
// the zombie screenshot sweep.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Creds{},
		&models.Device{},
		&models.Action{},
		&models.State{},
		&models.Rule{},
		&models.Work{},
		&models.Execution{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	screenshot := models.Action{
		Name:       models.ActionTypeScreenshot,
		ActionType: models.ActionTypeScreenshot,
		ActionData: models.ActionTypeScreenshot,
	}
	result := db.Where(models.Action{Name: screenshot.Name}).FirstOrCreate(&screenshot)
	if result.Error != nil {
		return fmt.Errorf("failed to seed screenshot action: %w", result.Error)
	}

	slog.Info("Schema migrated", "component", "Database")
	return nil
}
