package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Google    GoogleConfig
	Storage   StorageConfig
	Mail      MailConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	// Emails that become admins on their first login instead of going through verification.
	AdminEmails []string
}

type ServerConfig struct {
	Port          string
	SiteURL       string
	SessionSecret string
	CORSOrigins   []string
	TemplatesDir  string
}

type DatabaseConfig struct {
	Driver string // postgres | sqlite
	DSN    string
	Debug  bool
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
}

type StorageConfig struct {
	Kind          string // local | imgur
	UploadDir     string
	IMGURClientID string
}

type MailConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled     bool
	Capacity    int
	RefillEvery time.Duration
	TTL         time.Duration
	Prefix      string
}

// Load reads .env (if present) and the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading env vars from system")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:          getEnvOrDefault("PORT", "8080"),
			SiteURL:       strings.TrimSuffix(getEnvOrDefault("SITE_URL", "http://localhost:8080"), "/"),
			SessionSecret: getEnvOrDefault("SESSION_SECRET", "secret_key_change_me"),
			CORSOrigins:   splitList(os.Getenv("CORS_ORIGINS")),
			TemplatesDir:  getEnvOrDefault("TEMPLATES_DIR", "./web/templates"),
		},
		Database: DatabaseConfig{
			Driver: getEnvOrDefault("DB_DRIVER", "postgres"),
			DSN:    os.Getenv("DATABASE_URL"),
			Debug:  envBool("DB_DEBUG", false),
		},
		Google: GoogleConfig{
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		},
		Storage: StorageConfig{
			Kind:          getEnvOrDefault("IMAGE_STORE", "local"),
			UploadDir:     getEnvOrDefault("UPLOAD_DIR", "./data/uploads"),
			IMGURClientID: os.Getenv("IMGUR_CLIENT_ID"),
		},
		Mail: MailConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     os.Getenv("SMTP_PORT"),
			Username: os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASS"),
			From:     os.Getenv("SMTP_FROM"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       envInt("REDIS_DB", 0),
		},
		RateLimit:   LoadRateLimitConfig(),
		AdminEmails: splitList(strings.ToLower(os.Getenv("ADMIN_EMAILS"))),
	}

	if cfg.Database.DSN == "" {
		switch cfg.Database.Driver {
		case "sqlite":
			cfg.Database.DSN = "./data/cohortboard.db"
		default:
			// local dev fallback
			cfg.Database.DSN = "host=localhost user=postgres password=postgres dbname=cohortboard port=5432 sslmode=disable TimeZone=Asia/Seoul"
		}
	}
	return cfg
}

// LoadRateLimitConfig covers the verification endpoint: a small burst, slow refill.
func LoadRateLimitConfig() RateLimitConfig {
	rl := RateLimitConfig{
		Enabled:     envBool("RATE_LIMIT_ENABLED", true),
		Capacity:    envInt("RATE_LIMIT_CAPACITY", 5),
		RefillEvery: envDur("RATE_LIMIT_REFILL_EVERY", time.Minute),
		TTL:         envDur("RATE_LIMIT_TTL", 30*time.Minute),
		Prefix:      getEnvOrDefault("RATE_LIMIT_PREFIX", "rl"),
	}
	if rl.Capacity < 1 {
		rl.Capacity = 1
	}
	if rl.RefillEvery <= 0 {
		rl.RefillEvery = time.Minute
	}
	if minTTL := 5 * rl.RefillEvery; rl.TTL < minTTL {
		rl.TTL = minTTL
	}
	return rl
}

func (c *Config) IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, e := range c.AdminEmails {
		if e == email {
			return true
		}
	}
	return false
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

func envInt(key string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return def
}

func envDur(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
