package config

import (
	"errors"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	APIPort   int             `mapstructure:"apiPort"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rateLimit"`
	S3        S3Config        `mapstructure:"s3"`
	CORS      struct {
		AllowedOrigins []string `mapstructure:"allowedOrigins"`
	} `mapstructure:"cors"`
}

type DatabaseConfig struct {
	Type     string `mapstructure:"type"` // sqlite, postgres or pgx
	Path     string `mapstructure:"path"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslMode"`
	MaxConns int    `mapstructure:"maxConns"`
}

type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwtSecret"`
	AccessTTL  time.Duration `mapstructure:"accessTTL"`
	RefreshTTL time.Duration `mapstructure:"refreshTTL"`
}

type RateLimitConfig struct {
	Limit        int           `mapstructure:"limit"`
	Window       time.Duration `mapstructure:"window"`
	MinInterval  time.Duration `mapstructure:"minInterval"`
	Store        string        `mapstructure:"store"` // memory, file or s3
	Path         string        `mapstructure:"path"`
	ThrottlePath string        `mapstructure:"throttlePath"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"accessKeyID"`
	SecretAccessKey string `mapstructure:"secretAccessKey"`
	Prefix          string `mapstructure:"prefix"`
}

// envAliases maps config keys to the bare environment names deployments
// already use, on top of the automatic DATABASE_HOST style names.
var envAliases = map[string][]string{
	"database.host":     {"DB_HOST"},
	"database.port":     {"DB_PORT"},
	"database.user":     {"DB_USER"},
	"database.password": {"DB_PASS", "DB_PASSWORD"},
	"database.name":     {"DB_NAME"},
	"auth.jwtSecret":    {"JWT_SECRET"},
}

var keys = []string{
	"apiPort",
	"database.type", "database.path", "database.host", "database.port", "database.user",
	"database.password", "database.name", "database.sslMode", "database.maxConns",
	"auth.jwtSecret", "auth.accessTTL", "auth.refreshTTL",
	"rateLimit.limit", "rateLimit.window", "rateLimit.minInterval", "rateLimit.store",
	"rateLimit.path", "rateLimit.throttlePath",
	"s3.endpoint", "s3.region", "s3.bucket", "s3.accessKeyID", "s3.secretAccessKey", "s3.prefix",
	"cors.allowedOrigins",
}

// LoadConfig loads the configuration from file and environment variables.
// A missing file is not an error; everything can come from the environment.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Unmarshal only sees keys viper knows about, so bind every key up front
	for _, key := range keys {
		if err := v.BindEnv(append([]string{key, envName(key)}, envAliases[key]...)...); err != nil {
			return nil, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
			log.Printf("Warning: Could not read config file: %s. Using defaults or environment variables.", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Printf("Configuration loaded: port=%d database=%s ratelimit=%s", cfg.APIPort, cfg.Database.Type, cfg.RateLimit.Store)
	return &cfg, nil
}

func envName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func applyDefaults(cfg *Config) {
	if cfg.APIPort == 0 {
		cfg.APIPort = 8080
		log.Println("APIPort not specified, using default 8080")
	}

	if cfg.Database.Type == "" {
		cfg.Database.Type = "sqlite"
		log.Println("Database type not specified, using default sqlite")
	}
	if cfg.Database.Type == "sqlite" && cfg.Database.Path == "" {
		cfg.Database.Path = "data/todo.db"
		log.Println("Database path not specified, using default data/todo.db")
	}
	if cfg.Database.Port == "" {
		cfg.Database.Port = "5432"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}

	if cfg.Auth.AccessTTL == 0 {
		cfg.Auth.AccessTTL = time.Hour
	}
	if cfg.Auth.RefreshTTL == 0 {
		cfg.Auth.RefreshTTL = 72 * time.Hour
	}

	if cfg.RateLimit.Limit == 0 {
		cfg.RateLimit.Limit = 60
	}
	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = time.Minute
	}
	if cfg.RateLimit.MinInterval == 0 {
		cfg.RateLimit.MinInterval = time.Second
	}
	if cfg.RateLimit.Store == "" {
		cfg.RateLimit.Store = "memory"
		log.Println("Rate limit store not specified, using in-memory counters")
	}
	if cfg.RateLimit.Path == "" {
		cfg.RateLimit.Path = "cache/rate-limits.json"
	}
	if cfg.RateLimit.ThrottlePath == "" {
		cfg.RateLimit.ThrottlePath = "cache/throttles.json"
	}

	if cfg.S3.Region == "" {
		cfg.S3.Region = "us-east-1"
	}
	if cfg.S3.Prefix == "" {
		cfg.S3.Prefix = "ratelimit/"
	}

	if len(cfg.CORS.AllowedOrigins) == 0 {
		cfg.CORS.AllowedOrigins = []string{"*"}
	}
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwtSecret is required (set JWT_SECRET)")
	}

	switch c.Database.Type {
	case "sqlite":
	case "postgres", "pgx":
		if c.Database.Host == "" || c.Database.Name == "" {
			return errors.New("database.host and database.name are required for postgres")
		}
	default:
		return errors.New("unsupported database type: " + c.Database.Type)
	}

	switch c.RateLimit.Store {
	case "memory", "file":
	case "s3":
		if c.S3.Bucket == "" {
			return errors.New("s3.bucket is required when rateLimit.store is s3")
		}
	default:
		return errors.New("unsupported rate limit store: " + c.RateLimit.Store)
	}

	if c.RateLimit.Limit < 0 {
		return errors.New("rateLimit.limit must not be negative")
	}
	// Rate-limit records keep unix seconds
	if c.RateLimit.Window < time.Second || c.RateLimit.Window%time.Second != 0 {
		return errors.New("rateLimit.window must be a whole number of seconds")
	}
	return nil
}
