// Package config loads the service configuration from the environment.
package config

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/molpadia/molpalearn/internal/catalog"
	"github.com/molpadia/molpalearn/internal/domain/entity"
)

const (
	CatalogMemory   = "memory"
	CatalogMongo    = "mongo"
	CatalogDynamoDB = "dynamodb"
)

type Config struct {
	Addr     string
	CertFile string
	CertKey  string

	LogLevel  string
	LogFormat string

	FrontendURL   string
	PublicBaseURL string

	CatalogBackend string
	MongoURL       string
	DatabaseName   string
	DynamoDBTable  string

	StorageBackend   entity.StorageKind
	LocalStoragePath string
	AWSRegion        string
	S3Bucket         string
	S3Endpoint       string
	S3ForcePathStyle bool
	S3PresignExpiry  time.Duration
	S3Redirect       bool

	MaxVideoSizeMB    int64
	AllowedVideoTypes []string
}

// Max upload size in bytes.
func (c *Config) MaxUploadBytes() int64 { return c.MaxVideoSizeMB << 20 }

// Origins allowed to call the API from a browser.
func (c *Config) AllowedOrigins() []string {
	return splitList(c.FrontendURL)
}

// Get the value of the variable, or def when empty.
func env(lookup func(string) string, key, def string) string {
	if v := strings.TrimSpace(lookup(key)); v != "" {
		return v
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

// Load the configuration with lookup, typically os.Getenv.
func Load(lookup func(string) string) (*Config, error) {
	cfg, err := load(lookup)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load the configuration with lookup and let the command line arguments
// override the listen address and the TLS files.
func LoadArgs(lookup func(string) string, args []string) (*Config, error) {
	cfg, err := load(lookup)
	if err != nil {
		return nil, err
	}
	fs := flag.NewFlagSet("api", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "web server address")
	fs.StringVar(&cfg.CertFile, "cert", cfg.CertFile, "path of TLS certificate file")
	fs.StringVar(&cfg.CertKey, "key", cfg.CertKey, "path of TLS private key file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load(lookup func(string) string) (*Config, error) {
	cfg := &Config{
		Addr:             env(lookup, "ADDR", ":8000"),
		CertFile:         env(lookup, "CERT_FILE", ""),
		CertKey:          env(lookup, "CERT_KEY", ""),
		LogLevel:         env(lookup, "LOG_LEVEL", "info"),
		LogFormat:        env(lookup, "LOG_FORMAT", "json"),
		FrontendURL:      env(lookup, "FRONTEND_URL", "http://localhost:5173"),
		PublicBaseURL:    env(lookup, "PUBLIC_BASE_URL", ""),
		CatalogBackend:   strings.ToLower(env(lookup, "CATALOG_BACKEND", CatalogMemory)),
		MongoURL:         env(lookup, "MONGODB_URL", "mongodb://localhost:27017"),
		DatabaseName:     env(lookup, "DATABASE_NAME", "lms_db"),
		DynamoDBTable:    env(lookup, "AWS_DB_VOD_NAME", "videos"),
		StorageBackend:   entity.StorageKind(strings.ToLower(env(lookup, "STORAGE_BACKEND", string(entity.StorageLocal)))),
		LocalStoragePath: env(lookup, "LOCAL_STORAGE_PATH", "./storage/videos"),
		AWSRegion:        env(lookup, "AWS_REGION", "us-east-1"),
		S3Bucket:         env(lookup, "S3_BUCKET_NAME", ""),
		S3Endpoint:       env(lookup, "S3_ENDPOINT", ""),
	}
	cfg.AllowedVideoTypes = splitList(env(lookup, "ALLOWED_VIDEO_TYPES", strings.Join(catalog.DefaultAllowedTypes, ",")))
	var err error
	if cfg.S3ForcePathStyle, err = parseBool(lookup, "S3_FORCE_PATH_STYLE", false); err != nil {
		return nil, err
	}
	if cfg.S3Redirect, err = parseBool(lookup, "S3_REDIRECT", false); err != nil {
		return nil, err
	}
	if cfg.S3PresignExpiry, err = time.ParseDuration(env(lookup, "S3_PRESIGN_EXPIRY", "1h")); err != nil {
		return nil, fmt.Errorf("invalid S3_PRESIGN_EXPIRY: %w", err)
	}
	if cfg.MaxVideoSizeMB, err = strconv.ParseInt(env(lookup, "MAX_VIDEO_SIZE_MB", "500"), 10, 64); err != nil {
		return nil, fmt.Errorf("invalid MAX_VIDEO_SIZE_MB: %w", err)
	}
	return cfg, nil
}

func parseBool(lookup func(string) string, key string, def bool) (bool, error) {
	v := env(lookup, key, "")
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func (c *Config) Validate() error {
	switch c.CatalogBackend {
	case CatalogMemory, CatalogMongo, CatalogDynamoDB:
	default:
		return fmt.Errorf("unknown CATALOG_BACKEND %q", c.CatalogBackend)
	}
	if !c.StorageBackend.Valid() {
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	if c.StorageBackend == entity.StorageS3 && c.S3Bucket == "" {
		return fmt.Errorf("S3_BUCKET_NAME must be set for the s3 storage backend")
	}
	if c.MaxVideoSizeMB <= 0 {
		return fmt.Errorf("MAX_VIDEO_SIZE_MB must be positive, got %d", c.MaxVideoSizeMB)
	}
	if c.S3PresignExpiry <= 0 {
		return fmt.Errorf("S3_PRESIGN_EXPIRY must be positive, got %s", c.S3PresignExpiry)
	}
	if len(c.AllowedVideoTypes) == 0 {
		return fmt.Errorf("ALLOWED_VIDEO_TYPES must not be empty")
	}
	if (c.CertFile == "") != (c.CertKey == "") {
		return fmt.Errorf("CERT_FILE and CERT_KEY must be set together")
	}
	return nil
}
