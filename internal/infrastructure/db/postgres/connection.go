package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/KretovDmitry/bistro/internal/config"
	"github.com/KretovDmitry/bistro/pkg/logger"
	_ "github.com/jackc/pgx/v5/stdlib"
	sqldblogger "github.com/simukti/sqldb-logger"
)

const pingTimeout = 5 * time.Second

// Connect opens the pool, wraps it with query logging and checks it is reachable.
// The caller owns the returned pool and must close it on shutdown.
func Connect(cfg *config.Config, logger logger.Logger) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("empty data source name")
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open the database: %w", err)
	}

	// Log every query to the database.
	logged := sqldblogger.OpenDriver(cfg.DSN, db.Driver(), logger,
		sqldblogger.WithMinimumLevel(sqldblogger.LevelDebug),
	)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err = logged.PingContext(ctx); err != nil {
		_ = logged.Close()
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping the database: %w", err)
	}

	// The plain pool is only needed for its driver.
	if err = db.Close(); err != nil {
		logger.Warnf("close bootstrap pool: %s", err)
	}

	return logged, nil
}
