package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Strob0t/Studio/internal/domain"
	"github.com/Strob0t/Studio/internal/middleware"
)

const sqlstateUniqueViolation = "23505"

// scannable is satisfied by both pgx.Row and pgx.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// tenantFromCtx returns the tenant every scoped query filters on.
func tenantFromCtx(ctx context.Context) string {
	return middleware.TenantIDFromContext(ctx)
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// nullTime stores nil and the zero time as NULL, anything else in UTC.
func nullTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC()
}

// orEmpty keeps list endpoints answering [] rather than null.
func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// notFoundWrap prefixes err with the operation and turns pgx.ErrNoRows
// into domain.ErrNotFound.
func notFoundWrap(err error, op string, args ...any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		err = domain.ErrNotFound
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(op, args...), err)
}

// execExpectOne treats an Exec that touched no row as domain.ErrNotFound.
func execExpectOne(tag pgconn.CommandTag, err error, op string, args ...any) error {
	if err == nil && tag.RowsAffected() == 0 {
		err = domain.ErrNotFound
	}
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(op, args...), err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == sqlstateUniqueViolation
}
