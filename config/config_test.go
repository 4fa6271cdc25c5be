package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg, err := ParseConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 3, cfg.Enrollment.MaxRetries)
	assert.Equal(t, 5*time.Minute, cfg.Worker.SweepInterval)
	assert.Equal(t, "session", cfg.JWT.CookieName)
	assert.Equal(t, "0.0.0.0:8080", cfg.GetServerAddress())
	assert.False(t, cfg.IsProduction())
}

func TestParseConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  interface{}
	}{
		{"unknown driver", "database.driver", "sqlite"},
		{"empty secret", "jwt.secret", ""},
		{"zero retries", "enrollment.max_retries", 0},
		{"zero sweep interval", "worker.sweep_interval", time.Duration(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			setDefaults(v)
			v.Set(tt.key, tt.val)

			_, err := ParseConfig(v)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("COURSEREG_DATABASE_DRIVER", "memory")
	t.Setenv("COURSEREG_ENROLLMENT_MAX_RETRIES", "5")

	v, err := LoadConfig()
	require.NoError(t, err)

	cfg, err := ParseConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 5, cfg.Enrollment.MaxRetries)
}

func TestParseConfigAdminEmails(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("users.admin_emails", []string{"head@school.no"})

	cfg, err := ParseConfig(v)
	require.NoError(t, err)
	assert.Equal(t, []string{"head@school.no"}, cfg.Users.AdminEmails)
}
