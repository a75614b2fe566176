package ops

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model/enum"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimalConfig = `{
  "venues": {
    "spot": {
      "credentials": {"secret": "hunter2", "key": "spot-route"},
      "baseUrl": "https://spot.example.com",
      "accessId": "id",
      "secretKey": "sk"
    }
  }
}`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.WebhookAddr)
	assert.Equal(t, ":9090", cfg.Server.MetricsAddr)
	assert.True(t, cfg.Server.EventsHub)

	assert.Equal(t, 2*time.Minute, cfg.Dispatch.BalanceWindow)
	assert.Equal(t, 5*time.Minute, cfg.Dispatch.GasSwapWindow)
	assert.True(t, cfg.Dispatch.AssumeNotFoundFilled)

	assert.Equal(t, 5*24*time.Hour, cfg.Admission.Retention)
	assert.Nil(t, cfg.Admission.Postgres)

	assert.Equal(t, 5, cfg.Request.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Request.BaseDelay)
	assert.Equal(t, 10, cfg.Settlement.MaxAttempts)
	assert.Equal(t, 270*time.Second, cfg.Settlement.BaseDelay)

	require.Contains(t, cfg.Venues, enum.VenueSpot)
	assert.Equal(t, "https://spot.example.com", cfg.Venues[enum.VenueSpot].BaseURL)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{
	  "server": {"webhookAddr": ":7777", "eventsHub": false},
	  "dispatch": {
	    "workers": 8,
	    "balanceWindowSeconds": 30,
	    "feeRate": "0.002",
	    "assumeNotFoundFilled": false,
	    "excludedSymbols": ["DOGE"]
	  },
	  "admission": {"retentionDays": 2},
	  "retry": {
	    "request": {"maxAttempts": 3, "baseDelaySeconds": 1},
	    "settlement": {"attemptMultiplier": false}
	  },
	  "venues": {
	    "chain": {
	      "credentials": {"secret": "s", "key": "k"},
	      "rpcUrl": "http://localhost:8545",
	      "routerUrl": "http://localhost:9000",
	      "walletAddress": "0xabc"
	    }
	  }
	}`))
	require.NoError(t, err)

	assert.Equal(t, ":7777", cfg.Server.WebhookAddr)
	assert.False(t, cfg.Server.EventsHub)
	assert.Equal(t, 8, cfg.Dispatch.Workers)
	assert.Equal(t, 30*time.Second, cfg.Dispatch.BalanceWindow)
	assert.False(t, cfg.Dispatch.AssumeNotFoundFilled)
	assert.Equal(t, []string{"DOGE"}, cfg.Dispatch.ExcludedSymbols)
	assert.Equal(t, 2*24*time.Hour, cfg.Admission.Retention)
	assert.Equal(t, 3, cfg.Request.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Request.BaseDelay)
	// Unset override fields keep their policy defaults.
	assert.Equal(t, 10, cfg.Settlement.MaxAttempts)
	assert.False(t, cfg.Settlement.AttemptMultiplier)
}

func TestLoadRejectsInvalidConfigs(t *testing.T) {
	for name, body := range map[string]string{
		"no venues":           `{}`,
		"unknown venue":       `{"venues": {"futures": {"credentials": {"secret": "s", "key": "k"}}}}`,
		"missing credentials": `{"venues": {"spot": {}}}`,
		"bad fee rate":        `{"dispatch": {"feeRate": "free"}, "venues": {"spot": {"credentials": {"secret": "s", "key": "k"}}}}`,
		"half telegram":       `{"telegram": {"token": "t"}, "venues": {"spot": {"credentials": {"secret": "s", "key": "k"}}}}`,
		"empty profiler":      `{"profiler": {}, "venues": {"spot": {"credentials": {"secret": "s", "key": "k"}}}}`,
		"not json":            `nope`,
	} {
		_, err := Load(writeConfig(t, body))
		assert.Error(t, err, name)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
