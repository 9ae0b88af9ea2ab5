package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	LogLevel string

	RedisAddr string // host:port or redis:// URL; empty means in-memory drafts
	DraftTTL  time.Duration
	Workers   int

	CORSOrigins []string

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	CompanyName string
}

var defaultOrigins = []string{
	"http://localhost:5173",
	"https://voice-challan-app.vercel.app",
}

// Load reads the environment, after merging an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Port:        getenv("PORT"),
		LogLevel:    getenv("LOG_LEVEL"),
		RedisAddr:   firstNonEmpty(getenv("REDIS_ADDR"), getenv("REDIS_URI"), getenv("REDIS_URL")),
		DraftTTL:    24 * time.Hour,
		Workers:     2,
		CORSOrigins: defaultOrigins,
		JWTSecret:   getenv("JWT_SECRET"),
		JWTIssuer:   getenv("JWT_ISSUER"),
		JWTAudience: getenv("JWT_AUDIENCE"),
		CompanyName: getenv("COMPANY_NAME"),
	}
	if cfg.Port == "" {
		cfg.Port = "10000"
	}
	if cfg.CompanyName == "" {
		cfg.CompanyName = "Shakti Trading Co."
	}

	if v := getenv("DRAFT_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid DRAFT_TTL %q", v)
		}
		cfg.DraftTTL = d
	}

	if v := getenv("WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid WORKERS %q", v)
		}
		cfg.Workers = n
	}

	if v := getenv("CORS_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		if len(origins) > 0 {
			cfg.CORSOrigins = origins
		}
	}
	return cfg, nil
}

func (c *Config) AuthEnabled() bool { return c.JWTSecret != "" }

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
