// Package db provides database connectivity and operations
package db

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/celestiaorg/reelcast/internal/config"
	"github.com/celestiaorg/reelcast/internal/db/models"
	"github.com/celestiaorg/reelcast/internal/logger"
)

// Database configuration constants
const (
	// DefaultHost is the default database host
	DefaultHost = "localhost"
	// DefaultPort is the default database port
	DefaultPort = 5432
	// DefaultUser is the default database user
	DefaultUser = "postgres"
	// DefaultPassword is the default database password
	DefaultPassword = "postgres"
	// DefaultDBName is the default database name
	DefaultDBName = "reelcast"
	// DefaultSSLMode is the default postgres ssl mode
	DefaultSSLMode = "disable"
)

// Options represents database connection configuration options
type Options struct {
	Host     string
	User     string
	Password string
	DBName   string
	Port     int
	SSLMode  string
	// SQLitePath selects an sqlite database instead of postgres
	SQLitePath string
	// AutoMigrate creates missing tables on connect
	AutoMigrate bool
	LogLevel    gormlogger.LogLevel
}

// OptionsFromConfig maps the server configuration to connection options
func OptionsFromConfig(cfg config.Database) Options {
	return Options{
		Host:       cfg.Host,
		User:       cfg.User,
		Password:   cfg.Password,
		DBName:     cfg.DBName,
		Port:       cfg.Port,
		SSLMode:    cfg.SSLMode,
		SQLitePath: cfg.SQLitePath,
	}
}

// gormWriter sends gorm's log lines through the application logger
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...interface{}) {
	logger.Warnf(format, args...)
}

// New creates a new database connection with the given options
func New(opts Options) (*gorm.DB, error) {
	opts = setDefaults(opts)

	config := &gorm.Config{
		Logger: gormlogger.New(gormWriter{}, gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  opts.LogLevel,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}

	var dialector gorm.Dialector
	if opts.SQLitePath != "" {
		dialector = sqlite.Open(opts.SQLitePath)
	} else {
		dialector = postgres.Open(DSN(opts))
	}

	db, err := gorm.Open(dialector, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if opts.SQLitePath != "" {
		// sqlite allows a single writer
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if opts.AutoMigrate {
		if err := migrate(db); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}
	return db, nil
}

// DSN returns the postgres connection string for opts
func DSN(opts Options) string {
	opts = setDefaults(opts)
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		opts.Host, opts.User, opts.Password, opts.DBName, opts.Port, opts.SSLMode)
}

// URL returns the postgres URL form used by the migration tool
func URL(opts Options) string {
	opts = setDefaults(opts)
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		opts.User, opts.Password, opts.Host, opts.Port, opts.DBName, opts.SSLMode)
}

func setDefaults(opts Options) Options {
	if opts.Host == "" {
		opts.Host = DefaultHost
	}
	if opts.User == "" {
		opts.User = DefaultUser
	}
	if opts.Password == "" {
		opts.Password = DefaultPassword
	}
	if opts.DBName == "" {
		opts.DBName = DefaultDBName
	}
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	if opts.SSLMode == "" {
		opts.SSLMode = DefaultSSLMode
	}
	if opts.LogLevel == 0 {
		opts.LogLevel = gormlogger.Warn
	}
	return opts
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Job{},
		&models.CreditEntry{},
	)
}
