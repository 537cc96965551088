// Package config assembles a pinboard deployment: which content store and
// blob backend to use and how the HTTP surface is set up.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/tendant/simple-pins/pkg/pinboard"
	"github.com/tendant/simple-pins/pkg/pinboard/assets"
	"github.com/tendant/simple-pins/pkg/pinboard/objectkey"
)

// Database types.
const (
	DatabaseMemory   = "memory"
	DatabasePostgres = "postgres"
	DatabaseMongo    = "mongodb"
	DatabaseSQLite   = "sqlite"
)

// Storage backend types.
const (
	StorageMemory = "memory"
	StorageFS     = "fs"
	StorageS3     = "s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:               "8080",
		Environment:        "development",
		DatabaseType:       DatabaseMemory,
		DBSchema:           "pinboard",
		MongoDatabase:      "pinboard",
		Storage:            StorageConfig{Type: StorageMemory},
		MaxAssetBytes:      assets.DefaultMaxBytes,
		AssetURLPrefix:     assets.DefaultURLPrefix,
		ObjectKeyGenerator: "git",
		ValidationWindow:   pinboard.DefaultValidationWindow,
		EnableEventLogging: true,
	}
}

// ServerConfig represents configuration for a pinboard deployment
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseURL   string
	DatabaseType  string // "memory", "postgres", "mongodb", "sqlite"
	DBSchema      string // Postgres schema to use (default: pinboard)
	MongoDatabase string // MongoDB database name (default: pinboard)
	SQLitePath    string

	// Asset storage
	Storage            StorageConfig
	MaxAssetBytes      int64
	AssetURLPrefix     string
	ObjectKeyGenerator string // "git", "flat", "owner"

	// JWTSecret signs and verifies HS256 session tokens. Empty disables
	// authenticated routes.
	JWTSecret string

	ValidationWindow   time.Duration
	EnableEventLogging bool
}

// StorageConfig selects and configures the blob backend
type StorageConfig struct {
	Type string // "memory", "fs", "s3"

	BaseDir   string // fs
	URLPrefix string // fs, optional public prefix

	S3 S3Config
}

// S3Config is the subset of S3 settings exposed through configuration
type S3Config struct {
	Bucket                 string
	Region                 string
	Endpoint               string
	AccessKeyID            string
	SecretAccessKey        string
	UsePathStyle           bool
	PublicBaseURL          string
	PresignDuration        int
	CreateBucketIfNotExist bool
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	switch c.DatabaseType {
	case DatabaseMemory:
	case DatabasePostgres, DatabaseMongo:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database_url is required when using %s", c.DatabaseType)
		}
	case DatabaseSQLite:
		if c.SQLitePath == "" {
			return errors.New("sqlite path is required when using sqlite")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}

	if c.DatabaseType == DatabaseMongo && c.MongoDatabase == "" {
		return errors.New("mongo database name is required when using mongodb")
	}

	switch c.Storage.Type {
	case StorageMemory:
	case StorageFS:
		if c.Storage.BaseDir == "" {
			return errors.New("filesystem base directory is required")
		}
	case StorageS3:
		if c.Storage.S3.Bucket == "" {
			return errors.New("s3 bucket is required")
		}
	default:
		return fmt.Errorf("unsupported storage backend type: %s", c.Storage.Type)
	}

	if c.MaxAssetBytes <= 0 {
		return errors.New("max asset bytes must be positive")
	}
	if c.ValidationWindow <= 0 {
		return errors.New("validation window must be positive")
	}
	if _, err := objectkey.ByName(c.ObjectKeyGenerator); err != nil {
		return err
	}

	return nil
}

// OrchestratorOptions returns the pinboard options implied by the configuration.
func (c *ServerConfig) OrchestratorOptions() []pinboard.Option {
	opts := []pinboard.Option{pinboard.WithValidationWindow(c.ValidationWindow)}
	if c.EnableEventLogging {
		opts = append(opts, pinboard.WithEventSink(pinboard.NewLoggingEventSink(nil)))
	}
	return opts
}
