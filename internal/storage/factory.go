package storage

import (
	"fmt"

	"feedbrief/internal/config"

	"github.com/sirupsen/logrus"
)

// NewStorage opens the store selected by the database configuration
func NewStorage(cfg config.DatabaseConfig, log logrus.FieldLogger) (Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return NewSQLiteStorage(cfg.DataDir, log)
	case config.DriverPostgres:
		return NewPostgresStorage(cfg.URL, log)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
