package config

import (
	"testing"
	"time"

	"private-stake-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, models.CommitmentFinalized, cfg.Ledger.Commitment)
	assert.Equal(t, 90*time.Second, cfg.Ledger.ConfirmTimeout)
	assert.Equal(t, uint64(defaultFundingReserve), cfg.Orchestrator.FundingReserve)
	assert.Equal(t, uint64(defaultProtocolReserve), cfg.Orchestrator.ProtocolReserve)
	assert.Equal(t, "MARINADE_LIQUID_STAKE_KEY", cfg.Orchestrator.BurnerLabel)
	assert.Equal(t, 3, cfg.Orchestrator.NonceAttempts)
	assert.Equal(t, 3*time.Minute, cfg.Orchestrator.RecoveryTimeout)
	assert.False(t, cfg.Formance.Enabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MIN_STAKE", "1300000000")
	t.Setenv("LEDGER_COMMITMENT", "confirmed")
	t.Setenv("LEDGER_POLL_INTERVAL", "250ms")
	t.Setenv("FORMANCE_STACK_URL", "http://localhost:8080")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, uint64(1_300_000_000), cfg.Orchestrator.MinStake)
	assert.Equal(t, models.CommitmentConfirmed, cfg.Ledger.Commitment)
	assert.Equal(t, 250*time.Millisecond, cfg.Ledger.PollInterval)
	assert.True(t, cfg.Formance.Enabled())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad duration", "LEDGER_CONFIRM_TIMEOUT", "soon"},
		{"bad amount", "FUNDING_RESERVE", "-5"},
		{"bad commitment", "LEDGER_COMMITMENT", "processed"},
		{"reserve above funding", "PROTOCOL_RESERVE", "60000000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
