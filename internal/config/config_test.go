package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data/vendsim.db", cfg.DBPath)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, int64(50_000), cfg.StartingBalance)
	assert.Equal(t, int64(500), cfg.DailyFee)
	assert.Equal(t, int64(150), cfg.TaskFee)
	assert.Equal(t, 10, cfg.MissedPaymentLimit)
	assert.Equal(t, 2, cfg.DeliveryLeadPeriods)
	assert.Equal(t, 8, cfg.MaxSteps)
	assert.Equal(t, 45*time.Second, cfg.TickTimeout)
	assert.Zero(t, cfg.ApprovalTimeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("VENDSIM_PORT", "9090")
	t.Setenv("VENDSIM_DAILY_FEE", "750")
	t.Setenv("VENDSIM_APPROVAL_TIMEOUT", "5m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, int64(750), cfg.DailyFee)
	assert.Equal(t, 5*time.Minute, cfg.ApprovalTimeout)
}
