// Package mysql implements the storage interface against a MySQL server.
// It exists for multi-operator deployments where a single SQLite file on one
// machine is not enough; the contract is identical to the sqlite backend.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-sql-driver/mysql"

	"github.com/clearstack/clearflow/internal/storage"
)

// Store implements the storage.Storage interface using MySQL
type Store struct {
	db *sql.DB
}

// New connects to the MySQL server identified by dsn
// (user:pass@tcp(host:port)/dbname) and initializes the schema.
// Connection establishment is retried with exponential backoff for up to
// 30 seconds, since a freshly started server may not accept connections yet.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql DSN: %w", err)
	}
	cfg.ParseTime = true
	cfg.MultiStatements = true

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxElapsedTime = 30 * time.Second
	err = backoff.Retry(func() error {
		return db.PingContext(ctx)
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to reach mysql server: %w", err)
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// MySQL server error numbers we map onto storage sentinels.
const (
	erDupEntry        = 1062
	erLockWaitTimeout = 1205
	erLockDeadlock    = 1213
)

// wrapDBError wraps a database error with operation context, mapping driver
// conditions onto the storage sentinels the callers match against.
func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %v: %w", op, err, storage.ErrTransient)
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case erDupEntry:
			return fmt.Errorf("%s: %v: %w", op, err, storage.ErrConflict)
		case erLockWaitTimeout, erLockDeadlock:
			return fmt.Errorf("%s: %v: %w", op, err, storage.ErrTransient)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func wrapDBErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return wrapDBError(fmt.Sprintf(format, args...), err)
}
