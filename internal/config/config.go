package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage drivers
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	AWS      AWSConfig      `yaml:"aws"`
	JWT      JWTConfig      `yaml:"jwt"`
	APNs     APNsConfig     `yaml:"apns"`
	Matching MatchingConfig `yaml:"matching"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	// Driver is one of postgres, mongo or memory
	Driver   string `yaml:"driver"`
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`

	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`
}

// AWSConfig holds S3-compatible object storage configuration
type AWSConfig struct {
	Region    string `yaml:"region"`
	S3Bucket  string `yaml:"s3_bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Endpoint  string `yaml:"endpoint"`

	// PublicBaseURL prefixes object keys to build public photo URLs
	PublicBaseURL string        `yaml:"public_base_url"`
	UploadTimeout time.Duration `yaml:"upload_timeout"`
	MaxPhotoBytes int64         `yaml:"max_photo_bytes"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret  string `yaml:"secret"`
	TTLDays int    `yaml:"ttl_days"`
}

// APNsConfig holds push notification configuration. Push is disabled when KeyFile is empty.
type APNsConfig struct {
	KeyFile    string `yaml:"key_file"`
	KeyID      string `yaml:"key_id"`
	TeamID     string `yaml:"team_id"`
	Topic      string `yaml:"topic"`
	Production bool   `yaml:"production"`
}

// MatchingConfig holds reconciliation options
type MatchingConfig struct {
	// DeterministicIDs derives the match id from the user pair so that
	// concurrent reciprocal likes collide instead of creating two matches
	DeterministicIDs bool `yaml:"deterministic_ids"`

	// DeckSize and DeckTTL bound the per-instance cache of loaded
	// discovery candidates
	DeckSize int           `yaml:"deck_size"`
	DeckTTL  time.Duration `yaml:"deck_ttl"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when a field is not set
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		Database: DatabaseConfig{
			Driver:        DriverPostgres,
			Host:          "localhost",
			Port:          5432,
			DBName:        "spark",
			SSLMode:       "disable",
			MongoDatabase: "spark",
		},
		AWS: AWSConfig{
			Region:        "us-east-1",
			UploadTimeout: 60 * time.Second,
			MaxPhotoBytes: 10 << 20,
		},
		JWT:      JWTConfig{TTLDays: 30},
		Matching: MatchingConfig{DeckSize: 10000, DeckTTL: time.Hour},
		Log:      LogConfig{Level: "info"},
	}
}

// Load reads configuration from a YAML file on top of the defaults, then
// applies environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString("SPARK_HOST", &cfg.Server.Host)
	setString("SPARK_DB_DRIVER", &cfg.Database.Driver)
	setString("SPARK_DATABASE_URL", &cfg.Database.URL)
	setString("SPARK_DB_PASSWORD", &cfg.Database.Password)
	setString("SPARK_MONGO_URI", &cfg.Database.MongoURI)
	setString("SPARK_JWT_SECRET", &cfg.JWT.Secret)
	setString("SPARK_S3_BUCKET", &cfg.AWS.S3Bucket)
	setString("SPARK_AWS_ACCESS_KEY", &cfg.AWS.AccessKey)
	setString("SPARK_AWS_SECRET_KEY", &cfg.AWS.SecretKey)
	setString("SPARK_LOG_LEVEL", &cfg.Log.Level)

	if v := os.Getenv("SPARK_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SPARK_PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	return nil
}

// Validate checks that the configuration can start the server
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverMemory:
	case DriverMongo:
		if c.Database.MongoURI == "" {
			return fmt.Errorf("database.mongo_uri is required for the mongo driver")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	if c.JWT.TTLDays <= 0 {
		return fmt.Errorf("jwt.ttl_days must be positive")
	}
	if c.Matching.DeckSize <= 0 || c.Matching.DeckTTL <= 0 {
		return fmt.Errorf("matching.deck_size and matching.deck_ttl must be positive")
	}
	if c.AWS.UploadTimeout <= 0 {
		return fmt.Errorf("aws.upload_timeout must be positive")
	}
	return nil
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
