package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms/backend/internal/domain/valuation"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "wms-backend", cfg.App.Name)
	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, valuation.CostingMethodFIFO, cfg.Costing.Method())
	assert.Equal(t, time.Minute, cfg.Reservation.SweepInterval)
	assert.Equal(t, 100, cfg.Reservation.SweepBatchSize)
	assert.Equal(t, 5*time.Second, cfg.Locking.WaitTimeout)
	assert.False(t, cfg.App.IsProduction())
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("WMS_DATABASE_HOST", "db.internal")
	t.Setenv("WMS_APP_PORT", "9090")
	t.Setenv("WMS_COSTING_DEFAULT_METHOD", "LIFO")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, valuation.CostingMethodLIFO, cfg.Costing.Method())
}

func TestLoad_InvalidCostingMethod(t *testing.T) {
	t.Setenv("WMS_COSTING_DEFAULT_METHOD", "AVERAGE")

	_, err := Load()

	assert.Error(t, err)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "secret",
		DBName:   "wms",
		SSLMode:  "disable",
	}

	dsn := d.DSN()

	assert.Contains(t, dsn, "host=localhost")
	assert.Contains(t, dsn, "dbname=wms")
	assert.Contains(t, dsn, "sslmode=disable")
}

func TestRedisConfig_Addr(t *testing.T) {
	r := RedisConfig{Host: "cache", Port: 6379}
	assert.Equal(t, "cache:6379", r.Addr())
}
