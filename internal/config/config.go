package config

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"

	DefaultPort           = 3000
	DefaultKeepAlive      = 5 * time.Minute
	DefaultConnectTimeout = 30 * time.Second
)

type Config struct {
	Environment string `toml:"-"`

	Host string `toml:"host"`
	Port int    `toml:"port"`

	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	SentryEnabled bool   `toml:"sentry_enabled"`
	SentryDSN     string `toml:"-"`

	// backing store
	StoreDriver      string   `toml:"store_driver"`
	DBHost           string   `toml:"db_host"`
	DBPort           string   `toml:"db_port"`
	DBName           string   `toml:"db_name"`
	DBUser           string   `toml:"db_user"`
	DBPassword       string   `toml:"-"`
	DBSSLMode        string   `toml:"db_ssl_mode"`
	DBKeepAlive      Duration `toml:"db_keep_alive"`
	DBConnectTimeout Duration `toml:"db_connect_timeout"`

	// redis, optional - used for rate limiting
	RedisHost     string `toml:"redis_host"`
	RedisPort     string `toml:"redis_port"`
	RedisPassword string `toml:"-"`

	NewUserRateLimitPerMin     int `toml:"new_user_rate_limit_per_min"`
	AddExerciseRateLimitPerMin int `toml:"add_exercise_rate_limit_per_min"`

	CorsAllowedOrigins []string `toml:"cors_allowed_origins"`

	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`

	TracingEnabled bool `toml:"tracing_enabled"`
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	switch strings.ToLower(env) {
	case "dev", "development":
		return t.Development, nil
	case "prod", "production":
		return t.Production, nil
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
}

// Duration lets TOML values like "30s" decode into a time.Duration.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

// envOverrides are the process environment values that take precedence over the TOML file.
// USER/PASS/HOST/DB_PORT/DB/PORT keep the names the service has always been deployed with.
// Note that login shells export USER too, so outside a container it replaces db_user with the login name.
type envOverrides struct {
	DBUser           string `env:"USER"`
	DBPassword       string `env:"PASS"`
	DBHost           string `env:"HOST"`
	DBPort           string `env:"DB_PORT"`
	DBName           string `env:"DB"`
	Port             int    `env:"PORT"`
	StoreDriver      string `env:"STORE_DRIVER"`
	RedisPassword    string `env:"REDIS_PASS"`
	SentryDSN        string `env:"SENTRY_DSN"`
	HoneycombEnabled string `env:"HONEYCOMB_ENABLED"`
}

// Load reads the TOML section for env from path and applies environment overrides.
func Load(env, path string) (*Config, error) {
	return LoadWithLookuper(context.Background(), env, path, envconfig.OsLookuper())
}

func LoadWithLookuper(ctx context.Context, env, path string, lookuper envconfig.Lookuper) (*Config, error) {
	var t Toml
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("decode config file %s: %w", path, err)
	}

	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("config for env [%s] missing in %s", env, path)
	}
	cfg.Environment = strings.ToLower(env)

	var overrides envOverrides
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &overrides,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	cfg.applyOverrides(overrides)
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyOverrides(o envOverrides) {
	if o.DBUser != "" {
		if c.DBUser != "" && c.DBUser != o.DBUser {
			log.Debugf("config: db_user [%s] replaced by USER env var [%s]", c.DBUser, o.DBUser)
		}
		c.DBUser = o.DBUser
	}
	if o.DBPassword != "" {
		c.DBPassword = o.DBPassword
	}
	if o.DBHost != "" {
		c.DBHost = o.DBHost
	}
	if o.DBPort != "" {
		c.DBPort = o.DBPort
	}
	if o.DBName != "" {
		c.DBName = o.DBName
	}
	if o.Port != 0 {
		c.Port = o.Port
	}
	if o.StoreDriver != "" {
		c.StoreDriver = o.StoreDriver
	}
	if o.RedisPassword != "" {
		c.RedisPassword = o.RedisPassword
	}
	if o.SentryDSN != "" {
		c.SentryDSN = o.SentryDSN
	}
	if enabled, err := strconv.ParseBool(o.HoneycombEnabled); err == nil {
		c.TracingEnabled = enabled
	}
}

func (c *Config) setDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.StoreDriver == "" {
		c.StoreDriver = StoreDriverPostgres
	}
	c.StoreDriver = strings.ToLower(c.StoreDriver)
	if c.DBPort == "" {
		switch c.StoreDriver {
		case StoreDriverMongo:
			c.DBPort = "27017"
		default:
			c.DBPort = "5432"
		}
	}
	if c.DBSSLMode == "" {
		c.DBSSLMode = "disable"
	}
	if c.DBKeepAlive.Duration == 0 {
		c.DBKeepAlive.Duration = DefaultKeepAlive
	}
	if c.DBConnectTimeout.Duration == 0 {
		c.DBConnectTimeout.Duration = DefaultConnectTimeout
	}
	if c.RedisHost != "" && c.RedisPort == "" {
		c.RedisPort = "6379"
	}
}

func (c *Config) Validate() error {
	if c.StoreDriver != StoreDriverPostgres && c.StoreDriver != StoreDriverMongo {
		return fmt.Errorf("unsupported store driver: %s", c.StoreDriver)
	}
	if c.DBHost == "" {
		return errors.New("db host not set, use HOST env var or db_host")
	}
	if c.DBName == "" {
		return errors.New("db name not set, use DB env var or db_name")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	return nil
}

// RedisEnabled reports whether a redis instance is configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}
