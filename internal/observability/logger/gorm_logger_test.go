package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestOperationFromSQL(t *testing.T) {
	cases := map[string]string{
		"SELECT * FROM payments":                                          "SELECT",
		"  update payments SET credits_used = credits_used + 1":           "UPDATE",
		"INSERT INTO usage_records (key) VALUES ($1) ON CONFLICT (key)":    "UPSERT",
		"INSERT INTO provider_usage (provider) VALUES (?) ON DUPLICATE KEY": "UPSERT",
		"WITH x AS (SELECT 1) DELETE FROM generations":                     "SELECT",
		"":                                                                "UNKNOWN",
	}
	for sql, want := range cases {
		assert.Equal(t, want, operationFromSQL(sql), sql)
	}
}

func TestTableFromSQL(t *testing.T) {
	assert.Equal(t, "payments", tableFromSQL(`SELECT * FROM "payments" WHERE id = $1`))
	assert.Equal(t, "payment_events", tableFromSQL("INSERT INTO `payment_events` (`id`) VALUES (?)"))
	assert.Equal(t, "usage_records", tableFromSQL("UPDATE usage_records SET credits_used = 1"))
	assert.Equal(t, "", tableFromSQL("SELECT 1"))
}

func TestTraceLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(restore)

	l := NewGormLogger(GormLoggerConfig{Level: gormlogger.Warn, SlowThreshold: time.Millisecond})
	ctx := context.Background()
	sql := func() (string, int64) { return "SELECT * FROM payments", 0 }

	l.Trace(ctx, time.Now(), sql, gorm.ErrRecordNotFound)
	l.Trace(ctx, time.Now(), sql, gorm.ErrDuplicatedKey)
	l.Trace(ctx, time.Now(), sql, errors.New("connection reset"))
	l.Trace(ctx, time.Now().Add(-time.Second), sql, nil)

	entries := logs.All()
	if assert.Len(t, entries, 4) {
		assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
		assert.Equal(t, zapcore.DebugLevel, entries[1].Level)
		assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
		assert.Equal(t, zapcore.WarnLevel, entries[3].Level)
		assert.Equal(t, "payments", entries[2].ContextMap()["table"])
	}
}
