package database

import (
	"context"
	"fmt"
	"time"

	"quiz-forge/internal/logger"

	_ "github.com/godror/godror" // OCI based Oracle driver, registered as "godror"
	"github.com/jmoiron/sqlx"
	_ "github.com/sijms/go-ora/v2" // pure Go Oracle driver, registered as "oracle"
	"go.uber.org/zap"
)

const (
	DriverGoOra  = "oracle"
	DriverGodror = "godror"
)

// NewSQLXOracleDB opens a pooled connection with the given driver and pings it.
func NewSQLXOracleDB(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case "":
		driver = DriverGoOra
	case DriverGoOra, DriverGodror:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open Oracle database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping Oracle database: %w", err)
	}

	logger.Get().Info("Connected to Oracle database", zap.String("driver", driver))
	return db, nil
}
