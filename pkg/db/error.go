package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Postgres SQLSTATE codes the stores react to.
const (
	PGUniqueViolation      = "23505"
	PGCheckViolation       = "23514"
	PGSerializationFailure = "40001"
	PGDeadlockDetected     = "40P01"
	PGLockNotAvailable     = "55P03"
)

// PGCode returns the SQLSTATE of a postgres error, or "" for other drivers.
func PGCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsDuplicateKeyErr reports a unique violation on any supported driver.
// gorm translates most of them when TranslateError is set. The message
// checks catch MySQL 1062 and SQLite when the dialector does not.
func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || PGCode(err) == PGUniqueViolation {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Error 1062") || strings.Contains(msg, "UNIQUE constraint failed")
}

// IsCheckViolation reports a rejected CHECK constraint, such as
// credits_used exceeding credits_total on the payments table.
func IsCheckViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrCheckConstraintViolated) || PGCode(err) == PGCheckViolation {
		return true
	}
	return strings.Contains(err.Error(), "CHECK constraint failed")
}
