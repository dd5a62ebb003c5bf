package database

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func TestConfig_DSN(t *testing.T) {
	t.Run("postgres defaults sslmode", func(t *testing.T) {
		cfg := Config{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "hermes"}
		assert.Equal(t, "host=db port=5432 user=u password=p dbname=hermes sslmode=disable", cfg.DSN())
	})

	t.Run("sqlite uses path", func(t *testing.T) {
		cfg := Config{Driver: DriverSQLite, Path: ":memory:"}
		assert.Equal(t, ":memory:", cfg.DSN())
	})
}

func TestConnect_SQLite(t *testing.T) {
	db, err := Connect(Config{Driver: DriverSQLite, Path: ":memory:"}, hclog.NewNullLogger())
	require.NoError(t, err)

	stats, err := GetPoolStats(db)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.MaxOpenConnections, "sqlite should use a single connection")

	var one int
	require.NoError(t, db.Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)
}

func TestConnect_Errors(t *testing.T) {
	t.Run("unsupported driver", func(t *testing.T) {
		_, err := Connect(Config{Driver: "mysql"}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported database driver")
	})

	t.Run("sqlite without path", func(t *testing.T) {
		_, err := Connect(Config{Driver: DriverSQLite}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sqlite path is required")
	})
}

func TestGormLogger_Trace(t *testing.T) {
	var buf bytes.Buffer
	log := hclog.New(&hclog.LoggerOptions{Output: &buf, Level: hclog.Debug})

	l := NewGormLogger(log)
	query := func() (string, int64) { return "SELECT 1", 1 }

	l.Trace(context.Background(), time.Now(), query, errors.New("boom"))
	assert.Contains(t, buf.String(), "database query failed")

	buf.Reset()
	l.Trace(context.Background(), time.Now(), query, nil)
	assert.Empty(t, buf.String(), "fast queries are not logged at warn level")

	buf.Reset()
	l.LogMode(logger.Info).Trace(context.Background(), time.Now(), query, nil)
	assert.Contains(t, buf.String(), "database query")

	buf.Reset()
	l.LogMode(logger.Silent).Trace(context.Background(), time.Now(), query, errors.New("boom"))
	assert.Empty(t, buf.String())
}
