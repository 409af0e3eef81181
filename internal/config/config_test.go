package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "127.0.0.1:8000", cfg.ListenAddr())
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "llama-3.1-8b-instant", cfg.LLM.Model)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.True(t, cfg.Retention.SweepEnabled)
	assert.Equal(t, "https://router.project-osrm.org/route/v1/driving", cfg.Route.OSRMURL)
	assert.Equal(t, 15*time.Second, cfg.Route.Timeout)
}

func TestFromEnvOverlaysDefaults(t *testing.T) {
	t.Setenv("UNFOLD_PORT", "9090")
	t.Setenv("GROQ_API_KEY", "gsk-test")
	t.Setenv("UNFOLD_LLM_TIMEOUT", "5s")
	t.Setenv("UNFOLD_RETENTION_SWEEP", "false")
	t.Setenv("UNFOLD_OSRM_URL", "http://osrm.local/route/v1/driving")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Bind, "unset vars keep their default")
	assert.Equal(t, "gsk-test", cfg.LLM.APIKey)
	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
	assert.False(t, cfg.Retention.SweepEnabled)
	assert.Equal(t, "http://osrm.local/route/v1/driving", cfg.Route.OSRMURL)
	assert.Equal(t, "https://nominatim.openstreetmap.org/search", cfg.Route.NominatimURL)
}

func TestFromEnvInvalidValue(t *testing.T) {
	t.Setenv("UNFOLD_PORT", "not-a-port")

	_, err := FromEnv()
	assert.Error(t, err)
}
