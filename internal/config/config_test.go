package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	req := require.New(t)
	t.Setenv("CONFIG_ENV", "none") // no such file, defaults apply

	cfg, err := Load()
	req.NoError(err)
	req.Equal(3000, cfg.Port)
	req.Equal(15*time.Second, cfg.CallTimeout)
	req.Equal(60, cfg.RateLimit)
}

func TestCallTimeoutEnvIsMilliseconds(t *testing.T) {
	req := require.New(t)
	t.Setenv("CONFIG_ENV", "none")
	t.Setenv("CALL_TIMEOUT", "20000")

	cfg, err := Load()
	req.NoError(err)
	req.Equal(20*time.Second, cfg.CallTimeout)
}

func TestInvalidCallTimeoutEnv(t *testing.T) {
	req := require.New(t)
	t.Setenv("CONFIG_ENV", "none")
	t.Setenv("CALL_TIMEOUT", "soon")

	_, err := Load()
	req.Error(err)
}

func TestPortEnvOverride(t *testing.T) {
	req := require.New(t)
	t.Setenv("CONFIG_ENV", "none")
	t.Setenv("PORT", "8081")

	cfg, err := Load()
	req.NoError(err)
	req.Equal(8081, cfg.Port)
}
