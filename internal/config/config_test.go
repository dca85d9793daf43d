package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("ADMIN_EMAILS", " Admin@Example.com, ops@example.com ,")
	t.Setenv("CORS_ORIGINS", "http://localhost:5173")
	t.Setenv("SITE_URL", "https://board.example.com/")

	cfg := Load()
	assert.Equal(t, "./data/cohortboard.db", cfg.Database.DSN)
	assert.Equal(t, []string{"admin@example.com", "ops@example.com"}, cfg.AdminEmails)
	assert.True(t, cfg.IsAdminEmail("ADMIN@example.com "))
	assert.False(t, cfg.IsAdminEmail("student@example.com"))
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "https://board.example.com", cfg.Server.SiteURL)
}

func TestLoadRateLimitConfig(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "10s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	rl := LoadRateLimitConfig()
	assert.Equal(t, 1, rl.Capacity)
	assert.Equal(t, 10*time.Second, rl.RefillEvery)
	assert.Equal(t, 50*time.Second, rl.TTL)
	assert.True(t, rl.Enabled)
}
