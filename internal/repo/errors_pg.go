package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cyplat/gandalf/internal/domain"
)

var constraintFields = map[string]string{
	"users_pkey":             "user_id",
	"users_email_active_key": "email",
	"users_external_id_key":  "external_id",
}

// classifyPG maps pgx errors onto the domain storage taxonomy.
func classifyPG(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505": // unique_violation
			return &domain.UniqueViolationError{Field: uniqueField(pgErr)}
		case strings.HasPrefix(pgErr.Code, "08"), // connection_exception class
			pgErr.Code == "57P01", pgErr.Code == "57P02", pgErr.Code == "57P03": // admin/crash shutdown, cannot connect now
			return fmt.Errorf("%w: %w", domain.ErrConnection, err)
		}
		return fmt.Errorf("%w: %w", domain.ErrInternal, err)
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %w", domain.ErrConnection, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrInternal, err)
}

func uniqueField(pgErr *pgconn.PgError) string {
	if f, ok := constraintFields[pgErr.ConstraintName]; ok {
		return f
	}
	if pgErr.ColumnName != "" {
		return pgErr.ColumnName
	}
	return pgErr.ConstraintName
}
