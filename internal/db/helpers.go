package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"thirdcoast.systems/contentdna/internal/apperr"
)

func IsUndefinedColumnErr(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 42703 = undefined_column
		// 42P01 = undefined_table
		return pgErr.Code == "42703" || pgErr.Code == "42P01"
	}
	return false
}

// IsUniqueViolation reports a 23505 error.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// notFound translates pgx.ErrNoRows into apperr.ErrNotFound.
func notFound[T any](v *T, err error) (*T, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %w", apperr.ErrNotFound, err)
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func requireAffected(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: no rows updated", apperr.ErrNotFound)
	}
	return nil
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
