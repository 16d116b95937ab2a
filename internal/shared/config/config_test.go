package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/match-escrow/internal/ledger"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SERVICE_NAME", "result-worker")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "kafka", cfg.ResultSource)
	assert.Equal(t, 24*time.Hour, cfg.WithdrawalCooldown)
	assert.True(t, cfg.AutoFinalize)
	assert.Equal(t, "", cfg.HTTPPort)
	assert.Equal(t, "9097", cfg.MetricsPort)

	limits, err := cfg.TierLimitUnits()
	require.NoError(t, err)
	assert.Equal(t, [4]uint64{100 * ledger.Unit, 1_000 * ledger.Unit, 10_000 * ledger.Unit, 100_000 * ledger.Unit}, limits)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVICE_NAME", "escrow-service")
	t.Setenv("HTTP_PORT", "9999")
	t.Setenv("TIER_LIMITS", "1,2.5,3,4")
	t.Setenv("WITHDRAWAL_COOLDOWN", "90m")
	t.Setenv("RESULT_SOURCE", "nats")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.HTTPPort)
	assert.Equal(t, "9095", cfg.MetricsPort)
	assert.Equal(t, 90*time.Minute, cfg.WithdrawalCooldown)
	limits, err := cfg.TierLimitUnits()
	require.NoError(t, err)
	assert.Equal(t, 5*ledger.Unit/2, limits[1])
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string][2]string{
		"tier count":    {"TIER_LIMITS", "1,2,3"},
		"tier amount":   {"TIER_LIMITS", "1,x,3,4"},
		"result source": {"RESULT_SOURCE", "carrier-pigeon"},
		"store driver":  {"STORE_DRIVER", "sqlite"},
		"duration":      {"WITHDRAWAL_COOLDOWN", "soon"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
