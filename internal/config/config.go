package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

const devJWTSecret = "dev-only-secret-change-me"

type Config struct {
	Env          string   `env:"APP_ENV, default=dev"`
	Port         int      `env:"PORT, default=8080"`
	CORSOrigins  []string `env:"CORS_ALLOWED_ORIGINS, default=http://localhost:3000"`
	MaxBodyBytes int64    `env:"MAX_BODY_BYTES, default=1048576"`

	DB        DBConfig
	JWT       JWTConfig
	Admin     AdminConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Tracing   TracingConfig
}

type DBConfig struct {
	URL      string `env:"DATABASE_URL"`
	Host     string `env:"DB_HOST, default=127.0.0.1"`
	Port     int    `env:"DB_PORT, default=5432"`
	User     string `env:"DB_USER, default=coursehub"`
	Password string `env:"DB_PASSWORD, default=coursehub"`
	Name     string `env:"DB_NAME, default=coursehub"`
	SSLMode  string `env:"DB_SSLMODE, default=disable"`
	MaxConns int32  `env:"DB_MAX_CONNS, default=5"`
}

type JWTConfig struct {
	Secret string        `env:"JWT_SECRET"`
	TTL    time.Duration `env:"JWT_TTL, default=60m"`
}

type AdminConfig struct {
	Username string `env:"ADMIN_USERNAME, default=admin"`
	Email    string `env:"ADMIN_EMAIL"`
	Password string `env:"ADMIN_PASSWORD"`
}

// Addr empty means the in-process limiter is used.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB, default=0"`
}

type RateLimitConfig struct {
	AuthLimit  int           `env:"RATE_LIMIT_AUTH, default=10"`
	AuthWindow time.Duration `env:"RATE_LIMIT_AUTH_WINDOW, default=1m"`
}

type TracingConfig struct {
	Endpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string  `env:"OTEL_SERVICE_NAME, default=coursehub-api"`
	SampleRatio float64 `env:"OTEL_SAMPLE_RATIO, default=1"`
}

// Load reads .env (when present) and then the process environment.
func Load(ctx context.Context) (Config, error) {
	// a missing .env is fine outside local development
	_ = godotenv.Load()

	return LoadWith(ctx, envconfig.OsLookuper())
}

func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var cfg Config

	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	})
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if cfg.JWT.Secret == "" {
		if !cfg.IsDev() {
			return Config{}, errors.New("load config: JWT_SECRET is required outside dev")
		}
		cfg.JWT.Secret = devJWTSecret
	}
	if cfg.JWT.TTL <= 0 {
		return Config{}, errors.New("load config: JWT_TTL must be positive")
	}

	return cfg, nil
}

func (c Config) IsDev() bool {
	return c.Env == "dev"
}

// DatabaseURL prefers DATABASE_URL and otherwise assembles one from DB_*.
func (c DBConfig) DatabaseURL() string {
	if c.URL != "" {
		return c.URL
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		User:   url.UserPassword(c.User, c.Password),
		Path:   c.Name,
	}
	q := u.Query()
	q.Set("sslmode", c.SSLMode)
	u.RawQuery = q.Encode()

	return u.String()
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}
