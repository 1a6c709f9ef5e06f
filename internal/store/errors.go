package store

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	mysqlDuplicateEntry     = 1062
	postgresUniqueViolation = "23505"
)

// IsDuplicateKey reports whether err is a unique constraint violation from
// either supported driver.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == postgresUniqueViolation {
		return true
	}
	return false
}

// translate maps driver errors onto the store sentinels and wraps the rest.
func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case IsDuplicateKey(err):
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
