package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"

	MailDriverLog      = "log"
	MailDriverSES      = "ses"
	MailDriverPostmark = "postmark"
)

// Config is built once at startup and treated as read-only afterwards.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Database DatabaseConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Google   GoogleConfig
	Mail     MailConfig
}

type ServerConfig struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	Env             string        `env:"ENV" envDefault:"development"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	FrontendURL     string        `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
	TrustedProxies  []string      `env:"TRUSTED_PROXIES" envSeparator:","`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

type StoreConfig struct {
	Driver string `env:"STORE_DRIVER" envDefault:"postgres"`
}

type DatabaseConfig struct {
	Host              string        `env:"DB_HOST" envDefault:"localhost"`
	Port              int           `env:"DB_PORT" envDefault:"5432"`
	User              string        `env:"DB_USER" envDefault:"postgres"`
	Password          string        `env:"DB_PASSWORD"`
	Name              string        `env:"DB_NAME" envDefault:"accord"`
	SSLMode           string        `env:"DB_SSLMODE" envDefault:"disable"`
	MaxConns          int32         `env:"DB_MAX_CONNS" envDefault:"25"`
	MinConns          int32         `env:"DB_MIN_CONNS" envDefault:"5"`
	MaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"5m"`
	MaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"1m"`
	HealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m"`
}

type MongoConfig struct {
	URI            string        `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	Database       string        `env:"MONGO_DATABASE" envDefault:"accord"`
	ConnectTimeout time.Duration `env:"MONGO_CONNECT_TIMEOUT" envDefault:"10s"`
	RetryAttempts  int           `env:"MONGO_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"MONGO_RETRY_INTERVAL" envDefault:"2s"`
}

// RedisConfig backs the OAuth state store. An empty URL selects the
// in-process store, which is only accepted outside production.
type RedisConfig struct {
	URL            string        `env:"REDIS_URL"`
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"5s"`
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"2s"`
}

type AuthConfig struct {
	JWTSecret          string        `env:"JWT_SECRET"`
	CSRFKey            string        `env:"CSRF_KEY"`
	AccessTokenExpiry  time.Duration `env:"ACCESS_TOKEN_EXPIRY" envDefault:"15m"`
	RefreshTokenExpiry time.Duration `env:"REFRESH_TOKEN_EXPIRY" envDefault:"168h"`
	RefreshHashCost    int           `env:"REFRESH_HASH_COST" envDefault:"10"`
	MagicCodeTTL       time.Duration `env:"MAGIC_CODE_TTL" envDefault:"10m"`
	CleanupInterval    time.Duration `env:"MAGIC_CODE_CLEANUP_INTERVAL" envDefault:"15m"`
	OAuthStateTTL      time.Duration `env:"OAUTH_STATE_TTL" envDefault:"10m"`
	CookieDomain       string        `env:"COOKIE_DOMAIN"`
	FailureDelay       time.Duration `env:"AUTH_FAILURE_DELAY" envDefault:"250ms"`
	FailureJitter      time.Duration `env:"AUTH_FAILURE_JITTER" envDefault:"100ms"`
}

type GoogleConfig struct {
	ClientID             string `env:"GOOGLE_CLIENT_ID"`
	ClientSecret         string `env:"GOOGLE_CLIENT_SECRET"`
	RedirectURL          string `env:"GOOGLE_REDIRECT_URL" envDefault:"http://localhost:8080/api/auth/google/redirect"`
	RequireVerifiedEmail bool   `env:"GOOGLE_REQUIRE_VERIFIED_EMAIL" envDefault:"true"`
}

// Enabled reports whether Google sign-in routes should be mounted.
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

type MailConfig struct {
	Driver               string `env:"MAIL_DRIVER" envDefault:"log"`
	From                 string `env:"MAIL_FROM" envDefault:"Accord <no-reply@accord.local>"`
	AWSRegion            string `env:"AWS_REGION" envDefault:"us-east-1"`
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	PostmarkStream       string `env:"POSTMARK_MESSAGE_STREAM" envDefault:"outbound"`
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFrom builds a Config from an explicit variable set, ignoring the
// process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Env == EnvDevelopment
}

func (c *Config) finalize() error {
	c.Server.FrontendURL = strings.TrimRight(c.Server.FrontendURL, "/")
	c.Server.AllowedOrigins = trimAll(c.Server.AllowedOrigins)
	c.Server.TrustedProxies = trimAll(c.Server.TrustedProxies)
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{c.Server.FrontendURL}
	}
	return c.validate()
}

func (c *Config) validate() error {
	var errs []error

	if err := validateSecret("JWT_SECRET", c.Auth.JWTSecret, c.Server.Env); err != nil {
		errs = append(errs, err)
	}
	if err := validateSecret("CSRF_KEY", c.Auth.CSRFKey, c.Server.Env); err != nil {
		errs = append(errs, err)
	}
	if c.Auth.JWTSecret != "" && c.Auth.JWTSecret == c.Auth.CSRFKey {
		errs = append(errs, errors.New("CSRF_KEY must differ from JWT_SECRET"))
	}

	switch c.Store.Driver {
	case StoreDriverPostgres:
		if c.Database.Password == "" {
			errs = append(errs, errors.New("DB_PASSWORD is required"))
		}
	case StoreDriverMongo:
		if c.Mongo.URI == "" {
			errs = append(errs, errors.New("MONGO_URI is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q (got %q)",
			StoreDriverPostgres, StoreDriverMongo, c.Store.Driver))
	}

	switch c.Mail.Driver {
	case MailDriverLog:
		if c.Server.Env == EnvProduction {
			errs = append(errs, errors.New("MAIL_DRIVER=log is not allowed in production"))
		}
	case MailDriverSES:
	case MailDriverPostmark:
		if c.Mail.PostmarkServerToken == "" {
			errs = append(errs, errors.New("POSTMARK_SERVER_TOKEN is required for MAIL_DRIVER=postmark"))
		}
	default:
		errs = append(errs, fmt.Errorf("MAIL_DRIVER must be one of log, ses, postmark (got %q)", c.Mail.Driver))
	}

	if c.Server.Env == EnvProduction && c.Google.Enabled() && c.Redis.URL == "" {
		errs = append(errs, errors.New("REDIS_URL is required in production when Google sign-in is enabled"))
	}

	if c.Auth.RefreshHashCost < 4 || c.Auth.RefreshHashCost > 31 {
		errs = append(errs, fmt.Errorf("REFRESH_HASH_COST must be between 4 and 31 (got %d)", c.Auth.RefreshHashCost))
	}

	return errors.Join(errs...)
}

// validateSecret enforces minimum strength for signing keys
func validateSecret(name, secret, env string) error {
	if secret == "" {
		return fmt.Errorf("%s is required", name)
	}

	minLength := 16
	if env == EnvProduction {
		minLength = 32
	}
	if len(secret) < minLength {
		return fmt.Errorf("%s must be at least %d characters in %s environment (got %d)",
			name, minLength, env, len(secret))
	}

	weak := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}
	lower := strings.ToLower(secret)
	if strings.Repeat(lower[:1], len(lower)) == lower {
		return fmt.Errorf("%s cannot be a single repeated character", name)
	}
	stem := strings.Trim(lower, "0123456789-_!")
	for _, w := range weak {
		if stem == w {
			return fmt.Errorf("%s cannot be a common weak value", name)
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func trimAll(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
