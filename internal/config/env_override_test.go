package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvOverrides(t *testing.T) {
	t.Run("FSSIM_SEED and FSSIM_OPS", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("FSSIM_SEED", "99")
		t.Setenv("FSSIM_OPS", "7")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, int64(99), cfg.Seed)
		assert.Equal(t, 7, cfg.OpCount)
	})

	t.Run("malformed numbers are ignored", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("FSSIM_SEED", "abc")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, int64(1), cfg.Seed)
	})

	t.Run("FSSIM_USERS is a comma list", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("FSSIM_USERS", " x, y ,,z")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, []string{"x", "y", "z"}, cfg.Users)
	})

	t.Run("FSSIM_ACL_DB switches to sqlite", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("FSSIM_ACL_DB", "/tmp/grants.db")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "sqlite", cfg.Reference.ACL)
		assert.Equal(t, "/tmp/grants.db", cfg.Reference.ACLDB)
	})

	t.Run("FSSIM_REFERENCE_ROOT and FSSIM_LOG_LEVEL", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("FSSIM_REFERENCE_ROOT", "/var/tmp/ref")
		t.Setenv("FSSIM_LOG_LEVEL", "debug")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "/var/tmp/ref", cfg.Reference.Root)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})
}
