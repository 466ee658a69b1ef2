package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jon4hz/farsisweep/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var _ DB = (*Client)(nil) // Ensure Client implements DB

// ErrInvalidCategory is returned for unknown content categories.
var ErrInvalidCategory = errors.New("invalid category")

// Client wraps the gorm.DB instance.
type Client struct {
	db  *gorm.DB
	now func() time.Time
}

// New creates a new database connection and performs migrations.
func New(dbpath string) (*Client, error) {
	if dir := filepath.Dir(dbpath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbpath+"?_pragma=busy_timeout(5000)"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	// sqlite allows a single writer, concurrent crawls queue on the connection
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.Show{},
		&models.Episode{},
		&models.Movie{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Client{db: db, now: time.Now}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func modelFor(category models.Category) (any, error) {
	switch category {
	case models.CategoryShows:
		return &models.Show{}, nil
	case models.CategoryEpisodes:
		return &models.Episode{}, nil
	case models.CategoryMovies:
		return &models.Movie{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
}
