// Package config loads process settings from the environment, with an
// optional .env file for local runs.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Server configures cmd/web.
type Server struct {
	Env  string `env:"APP_ENV,default=development"`
	Port int    `env:"APP_PORT,default=8080"`

	DatabaseURL string `env:"DATABASE_URL,default=storefront.db"`
	SeedData    bool   `env:"SEED_DATA,default=true"`
	SeedCount   int    `env:"SEED_PRODUCTS,default=50"`

	JWTSecret string        `env:"JWT_SECRET,default=dev-secret-change-me"`
	TokenTTL  time.Duration `env:"TOKEN_TTL,default=24h"`

	RedisURL string `env:"REDIS_URL"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS,default=20"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST,default=40"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=text"`

	WSInsecureSkipVerify bool   `env:"WS_INSECURE_SKIP_VERIFY,default=false"`
	WSOrigins            string `env:"WS_ORIGINS"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

func (s Server) Production() bool { return s.Env == "production" }

func (s Server) Addr() string { return fmt.Sprintf(":%d", s.Port) }

// OriginPatterns splits WS_ORIGINS on commas.
func (s Server) OriginPatterns() []string {
	var out []string
	for _, p := range strings.Split(s.WSOrigins, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Client configures cmd/shopctl.
type Client struct {
	APIURL    string        `env:"SHOP_API_URL,default=http://localhost:8080"`
	StatePath string        `env:"SHOP_STATE,default=.shopctl.db"`
	Timeout   time.Duration `env:"SHOP_TIMEOUT,default=15s"`
	LogLevel  string        `env:"LOG_LEVEL,default=warn"`
	LogFormat string        `env:"LOG_FORMAT,default=text"`
}

// LoadServer reads .env files (if present) and then the environment.
func LoadServer(envFiles ...string) (*Server, error) {
	var cfg Server
	if err := load(&cfg, envFiles); err != nil {
		return nil, err
	}
	if cfg.Production() && cfg.JWTSecret == "dev-secret-change-me" {
		return nil, errors.New("JWT_SECRET must be set in production")
	}
	return &cfg, nil
}

func LoadClient(envFiles ...string) (*Client, error) {
	var cfg Client
	if err := load(&cfg, envFiles); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func load(target any, envFiles []string) error {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	// Defaults still apply when nothing is set in the environment.
	if err := envdecode.Decode(target); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return fmt.Errorf("failed to decode environment: %w", err)
	}
	return nil
}
