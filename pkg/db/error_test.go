package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	assert.True(t, IsDuplicateKeyErr(gorm.ErrDuplicatedKey))
	assert.True(t, IsDuplicateKeyErr(fmt.Errorf("put: %w", &pgconn.PgError{Code: PGUniqueViolation})))
	assert.True(t, IsDuplicateKeyErr(errors.New("Error 1062 (23000): Duplicate entry 'pi_1' for key 'PRIMARY'")))
	assert.True(t, IsDuplicateKeyErr(errors.New("UNIQUE constraint failed: payments.id")))
	assert.False(t, IsDuplicateKeyErr(&pgconn.PgError{Code: PGSerializationFailure}))
	assert.False(t, IsDuplicateKeyErr(nil))
}

func TestIsCheckViolation(t *testing.T) {
	assert.True(t, IsCheckViolation(&pgconn.PgError{Code: PGCheckViolation}))
	assert.True(t, IsCheckViolation(errors.New("CHECK constraint failed: credits_used <= credits_total")))
	assert.False(t, IsCheckViolation(errors.New("connection refused")))
}

func TestPGCode(t *testing.T) {
	assert.Equal(t, PGDeadlockDetected, PGCode(fmt.Errorf("tx: %w", &pgconn.PgError{Code: PGDeadlockDetected})))
	assert.Equal(t, "", PGCode(errors.New("sqlite busy")))
}
