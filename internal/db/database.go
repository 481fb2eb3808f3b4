package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type DatabaseConnection struct {
	*pgxpool.Pool
}

const DBRetryCount = 15

// NewDatabaseConnection creates a new database connection
func NewDatabaseConnection(ctx context.Context, pool *pgxpool.Pool) (*DatabaseConnection, error) {
	for i := range DBRetryCount {
		err := pool.Ping(ctx)
		if err == nil {
			return &DatabaseConnection{pool}, nil
		}

		// Golden ratio backoff
		fib := 1.61803398875
		sleep := time.Duration((float64(i) * fib)) * time.Second
		slog.Warn("could not ping the database", "error", err, "retry_in", sleep)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}

	return nil, fmt.Errorf("could not connect to database after %d retries", DBRetryCount)
}

// Close closes the database connection
func (db *DatabaseConnection) Close() {
	db.Pool.Close()
}

func (db *DatabaseConnection) Queries(ctx context.Context) *Queries {
	return New(db)
}

func (db *DatabaseConnection) NewWithTX(ctx context.Context) (*Queries, pgx.Tx, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return New(tx), tx, nil
}

// Store returns the pool-backed Store.
func (db *DatabaseConnection) Store() Store {
	return &poolStore{Queries: New(db), dbc: db}
}

type poolStore struct {
	*Queries
	dbc *DatabaseConnection
}

// InTx runs fn in a transaction, committing when fn returns nil.
func (s *poolStore) InTx(ctx context.Context, fn func(q Querier) error) error {
	q, tx, err := s.dbc.NewWithTX(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			slog.Warn("transaction rollback failed", "error", rbErr)
		}
	}()

	if err := fn(q); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

//go:embed sql/migrations/*.sql
var embedMigrations embed.FS

// Migrate runs the goose migrations
func (db *DatabaseConnection) Migrate(ctx context.Context) error {
	goose.SetBaseFS(embedMigrations)

	err := goose.SetDialect("postgres")
	if err != nil {
		return err
	}

	stdDb := stdlib.OpenDBFromPool(db.Pool)
	defer stdDb.Close()

	currentVersion, err := goose.GetDBVersionContext(ctx, stdDb)
	if err != nil {
		return err
	}

	migrations, err := goose.CollectMigrations("sql/migrations", 0, goose.MaxVersion)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		slog.Info("migration embedded", "source", m.Source, "version", m.Version, "current", m.Version == currentVersion)
	}

	if currentVersion == goose.MaxVersion {
		// No migrations to run. We're up to date
		return nil
	}

	var targetVersion int64
	if down, ok := os.LookupEnv("GOOSE_DOWN_TO"); ok {
		targetVersion, err = strconv.ParseInt(down, 10, 64)
		if err != nil {
			return fmt.Errorf("failed to parse GOOSE_DOWN_TO version: %w", err)
		}
		err = goose.DownToContext(ctx, stdDb, "sql/migrations", targetVersion)
	} else {
		// Handle up migrations
		if up, ok := os.LookupEnv("GOOSE_UP_TO"); ok {
			targetVersion, err = strconv.ParseInt(up, 10, 64)
			if err != nil {
				return fmt.Errorf("failed to parse GOOSE_UP_TO version: %w", err)
			}
		} else {
			// Default: migrate to latest version
			targetVersion = goose.MaxVersion
		}
		err = goose.UpToContext(ctx, stdDb, "sql/migrations", targetVersion)
	}

	if err != nil {
		return err
	}

	return nil
}
