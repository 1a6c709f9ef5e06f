package models

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// BaseModel contains common columns for all tables
type BaseModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver      string
	DSN         string
	AutoMigrate bool
	Debug       bool
}

// InitDB opens a gorm connection for the configured driver and, when asked,
// migrates the schema.
func InitDB(config DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch config.Driver {
	case "mysql", "":
		dialector = mysql.Open(config.DSN)
	case "postgres":
		dialector = postgres.Open(config.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", config.Driver)
	}

	logLevel := logger.Warn
	if config.Debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  logger.Default.LogMode(logLevel),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", config.Driver, err)
	}

	if config.AutoMigrate {
		if err := db.AutoMigrate(AllModels()...); err != nil {
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
	}

	return db, nil
}

// AllModels lists every persisted model in dependency order.
func AllModels() []interface{} {
	return []interface{}{
		&Account{},
		&Session{},
		&AuditLog{},
		&Patient{},
		&Reminder{},
		&ReminderLog{},
	}
}
