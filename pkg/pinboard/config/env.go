package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// envConfig mirrors the supported environment variables. Unset variables
// leave the corresponding ServerConfig field untouched.
type envConfig struct {
	Port               string        `env:"PORT"`
	Environment        string        `env:"ENVIRONMENT"`
	DatabaseURL        string        `env:"DATABASE_URL"`
	DBSchema           string        `env:"DB_SCHEMA"`
	MongoDatabase      string        `env:"MONGO_DATABASE"`
	StorageURL         string        `env:"STORAGE_URL"`
	JWTSecret          string        `env:"JWT_SECRET"`
	MaxAssetBytes      int64         `env:"MAX_ASSET_BYTES"`
	AssetURLPrefix     string        `env:"ASSET_URL_PREFIX"`
	ObjectKeyGenerator string        `env:"OBJECT_KEY_GENERATOR"`
	ValidationWindow   time.Duration `env:"VALIDATION_WINDOW"`

	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	AWSRegion          string `env:"AWS_REGION"`
}

// WithEnv applies environment variable overrides.
//
// Server:
//   PORT - Server port (default: "8080")
//   ENVIRONMENT - Runtime environment (default: "development")
//   JWT_SECRET - HS256 secret for session tokens
//
// Database:
//   DATABASE_URL - Connection string; the type is detected from the scheme:
//                  "memory" (default), "postgres://...", "postgresql://...",
//                  "mongodb://...", "mongodb+srv://...", "sqlite:///path/to/pins.db"
//   DB_SCHEMA - Postgres schema (default: "pinboard")
//   MONGO_DATABASE - MongoDB database (default: "pinboard")
//
// Storage:
//   STORAGE_URL - one of:
//                 - "memory://" - In-memory storage (default)
//                 - "file:///path/to/data" - Filesystem storage
//                 - "s3://bucket?region=us-east-1&endpoint=http://localhost:9000&path_style=true"
//   MAX_ASSET_BYTES, ASSET_URL_PREFIX, OBJECT_KEY_GENERATOR
//
// Orchestration:
//   VALIDATION_WINDOW - How long the missing-fields flag stays raised (e.g. "2s")
func WithEnv() Option {
	return func(c *ServerConfig) error {
		var env envConfig
		if err := cleanenv.ReadEnv(&env); err != nil {
			return fmt.Errorf("read environment: %w", err)
		}

		if env.Port != "" {
			c.Port = env.Port
		}
		if env.Environment != "" {
			c.Environment = env.Environment
		}
		if env.JWTSecret != "" {
			c.JWTSecret = env.JWTSecret
		}
		if env.DBSchema != "" {
			c.DBSchema = env.DBSchema
		}
		if env.MongoDatabase != "" {
			c.MongoDatabase = env.MongoDatabase
		}
		if env.MaxAssetBytes != 0 {
			c.MaxAssetBytes = env.MaxAssetBytes
		}
		if env.AssetURLPrefix != "" {
			c.AssetURLPrefix = env.AssetURLPrefix
		}
		if env.ObjectKeyGenerator != "" {
			c.ObjectKeyGenerator = env.ObjectKeyGenerator
		}
		if env.ValidationWindow != 0 {
			c.ValidationWindow = env.ValidationWindow
		}

		if err := applyDatabaseURL(env.DatabaseURL, c); err != nil {
			return err
		}
		if err := applyStorageURL(env.StorageURL, c); err != nil {
			return err
		}

		if c.Storage.Type == StorageS3 {
			if env.AWSAccessKeyID != "" {
				c.Storage.S3.AccessKeyID = env.AWSAccessKeyID
			}
			if env.AWSSecretAccessKey != "" {
				c.Storage.S3.SecretAccessKey = env.AWSSecretAccessKey
			}
			if c.Storage.S3.Region == "" {
				c.Storage.S3.Region = env.AWSRegion
			}
		}
		return nil
	}
}

// WithDatabaseURL configures the database from a connection string.
func WithDatabaseURL(dbURL string) Option {
	return func(c *ServerConfig) error {
		return applyDatabaseURL(dbURL, c)
	}
}

// WithStorageURL configures the blob backend from a storage URL.
func WithStorageURL(storageURL string) Option {
	return func(c *ServerConfig) error {
		return applyStorageURL(storageURL, c)
	}
}

// applyDatabaseURL detects the database type from the URL scheme
func applyDatabaseURL(dbURL string, c *ServerConfig) error {
	switch {
	case dbURL == "" || dbURL == "memory" || dbURL == "memory://":
		c.DatabaseType = DatabaseMemory
		c.DatabaseURL = ""
	case strings.HasPrefix(dbURL, "postgresql://"), strings.HasPrefix(dbURL, "postgres://"):
		c.DatabaseType = DatabasePostgres
		c.DatabaseURL = dbURL
	case strings.HasPrefix(dbURL, "mongodb://"), strings.HasPrefix(dbURL, "mongodb+srv://"):
		c.DatabaseType = DatabaseMongo
		c.DatabaseURL = dbURL
	case strings.HasPrefix(dbURL, "sqlite://"):
		path := strings.TrimPrefix(dbURL, "sqlite://")
		if path == "" {
			return fmt.Errorf("sqlite path cannot be empty in DATABASE_URL")
		}
		c.DatabaseType = DatabaseSQLite
		c.DatabaseURL = dbURL
		c.SQLitePath = path
	default:
		return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory', 'postgresql://...', 'mongodb://...' or 'sqlite://...')", dbURL)
	}
	return nil
}

// applyStorageURL configures the blob backend from a storage URL
func applyStorageURL(storageURL string, c *ServerConfig) error {
	switch {
	case storageURL == "" || storageURL == "memory" || storageURL == "memory://":
		c.Storage.Type = StorageMemory
		return nil
	case strings.HasPrefix(storageURL, "file://"):
		path := strings.TrimPrefix(storageURL, "file://")
		if path == "" {
			return fmt.Errorf("filesystem path cannot be empty in STORAGE_URL")
		}
		c.Storage.Type = StorageFS
		c.Storage.BaseDir = path
		return nil
	case strings.HasPrefix(storageURL, "s3://"):
		return applyS3URL(storageURL, c)
	}
	return fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...', or 's3://...')", storageURL)
}

// applyS3URL configures S3 storage
// Format: s3://bucket?region=us-east-1&endpoint=http://localhost:9000&path_style=true
func applyS3URL(raw string, c *ServerConfig) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid STORAGE_URL: %w", err)
	}
	if u.Host == "" {
		return fmt.Errorf("S3 bucket name cannot be empty in STORAGE_URL")
	}

	s3cfg := S3Config{Bucket: u.Host, PresignDuration: 3600}
	q := u.Query()
	if v := q.Get("region"); v != "" {
		s3cfg.Region = v
	}
	s3cfg.Endpoint = q.Get("endpoint")
	s3cfg.PublicBaseURL = q.Get("public_url")
	if v := q.Get("path_style"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid path_style in STORAGE_URL: %w", err)
		}
		s3cfg.UsePathStyle = b
	}
	if v := q.Get("create_bucket"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid create_bucket in STORAGE_URL: %w", err)
		}
		s3cfg.CreateBucketIfNotExist = b
	}
	if v := q.Get("presign_duration"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid presign_duration in STORAGE_URL: %w", err)
		}
		s3cfg.PresignDuration = n
	}

	c.Storage.Type = StorageS3
	c.Storage.S3 = s3cfg
	return nil
}
