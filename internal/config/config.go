// Package config loads the importer's HCL configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/hashicorp-forge/hermes-import/pkg/attachments"
	"github.com/hashicorp-forge/hermes-import/pkg/database"
	"github.com/hashicorp-forge/hermes-import/pkg/hierarchy"
)

// Storage backends.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Environment variables that override the kafka block.
const (
	EnvBrokers = "REDPANDA_BROKERS"
	EnvTopic   = "HERMES_PAGES_TOPIC"
)

// Config is the top-level configuration.
type Config struct {
	// LogLevel is the minimum level logged (default: "info").
	LogLevel string `hcl:"log_level,optional"`

	Database *Database `hcl:"database,block"`
	Storage  *Storage  `hcl:"storage,block"`
	Kafka    *Kafka    `hcl:"kafka,block"`
	Search   *Search   `hcl:"search,block"`
	Import   *Import   `hcl:"import,block"`
}

// Database configures the destination store.
type Database struct {
	Driver   string `hcl:"driver,optional"`
	Host     string `hcl:"host,optional"`
	Port     int    `hcl:"port,optional"`
	User     string `hcl:"user,optional"`
	Password string `hcl:"password,optional"`
	DBName   string `hcl:"dbname,optional"`
	SSLMode  string `hcl:"sslmode,optional"`

	// Path is the SQLite database file.
	Path string `hcl:"path,optional"`

	MaxOpenConns           int `hcl:"max_open_conns,optional"`
	MaxIdleConns           int `hcl:"max_idle_conns,optional"`
	ConnMaxLifetimeMinutes int `hcl:"conn_max_lifetime_minutes,optional"`
}

// Storage configures where attachments are uploaded.
type Storage struct {
	Backend string                `hcl:"backend,optional"`
	Local   *LocalStorage         `hcl:"local,block"`
	S3      *attachments.S3Config `hcl:"s3,block"`
}

// LocalStorage stores attachments on the local filesystem.
type LocalStorage struct {
	Root    string `hcl:"root,optional"`
	BaseURL string `hcl:"base_url,optional"`
}

// Kafka configures the event publisher. Without brokers events are logged.
type Kafka struct {
	Brokers    []string `hcl:"brokers,optional"`
	Topic      string   `hcl:"topic,optional"`
	MaxRetries int      `hcl:"max_retries,optional"`
}

// Search configures the local page index. Imported pages are indexed when
// index_path is set.
type Search struct {
	IndexPath string `hcl:"index_path,optional"`
}

// Import holds defaults for import runs.
type Import struct {
	WorkspaceID  string   `hcl:"workspace_id,optional"`
	CreatorID    string   `hcl:"creator_id,optional"`
	AdminUserIDs []string `hcl:"admin_user_ids,optional"`

	// OrphanPolicy is one of skip, promote or strict (default: skip).
	OrphanPolicy string `hcl:"orphan_policy,optional"`

	TransformConcurrency int `hcl:"transform_concurrency,optional"`
	BatchSize            int `hcl:"batch_size,optional"`

	// WorkDir receives extracted archives (default: system temp dir).
	WorkDir string `hcl:"work_dir,optional"`

	// StaleJobAfter is how long an unfinished job blocks new runs of the same
	// archive (default: 12h). "0" never expires jobs.
	StaleJobAfter string `hcl:"stale_job_after,optional"`
}

// StaleJobDuration parses StaleJobAfter. Invalid values are rejected by
// Validate and read as zero here.
func (i *Import) StaleJobDuration() time.Duration {
	d, _ := time.ParseDuration(i.StaleJobAfter)
	return d
}

// NewConfig parses an HCL configuration file. An empty path yields the
// default configuration.
func NewConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		if err := hclsimple.DecodeFile(path, nil, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Default returns a configuration that runs against a local SQLite database
// and local attachment storage.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills unset values.
func (c *Config) SetDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	if c.Database == nil {
		c.Database = &Database{}
	}
	if c.Database.Driver == "" {
		if c.Database.Host != "" {
			c.Database.Driver = database.DriverPostgres
		} else {
			c.Database.Driver = database.DriverSQLite
		}
	}
	switch c.Database.Driver {
	case database.DriverSQLite:
		if c.Database.Path == "" {
			c.Database.Path = ".hermes/import.db"
		}
	case database.DriverPostgres:
		if c.Database.Port == 0 {
			c.Database.Port = 5432
		}
	}

	if c.Storage == nil {
		c.Storage = &Storage{}
	}
	if c.Storage.Backend == "" {
		if c.Storage.S3 != nil {
			c.Storage.Backend = StorageS3
		} else {
			c.Storage.Backend = StorageLocal
		}
	}
	if c.Storage.Backend == StorageLocal {
		if c.Storage.Local == nil {
			c.Storage.Local = &LocalStorage{}
		}
		if c.Storage.Local.Root == "" {
			c.Storage.Local.Root = ".hermes/attachments"
		}
		if c.Storage.Local.BaseURL == "" {
			c.Storage.Local.BaseURL = "/attachments"
		}
	}
	if c.Storage.S3 != nil {
		c.Storage.S3.SetDefaults()
	}

	if c.Kafka == nil {
		c.Kafka = &Kafka{}
	}
	if brokers := os.Getenv(EnvBrokers); brokers != "" {
		c.Kafka.Brokers = splitList(brokers)
	}
	if topic := os.Getenv(EnvTopic); topic != "" {
		c.Kafka.Topic = topic
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		c.Kafka.Topic = "hermes.pages"
	}

	if c.Search == nil {
		c.Search = &Search{}
	}

	if c.Import == nil {
		c.Import = &Import{}
	}
	if c.Import.OrphanPolicy == "" {
		c.Import.OrphanPolicy = string(hierarchy.OrphanSkip)
	}
	if c.Import.TransformConcurrency == 0 {
		c.Import.TransformConcurrency = 4
	}
	if c.Import.BatchSize == 0 {
		c.Import.BatchSize = 100
	}
	if c.Import.StaleJobAfter == "" {
		c.Import.StaleJobAfter = "12h"
	}
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var result *multierror.Error

	switch c.LogLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		result = multierror.Append(result, fmt.Errorf("log_level %q is not one of trace, debug, info, warn, error", c.LogLevel))
	}

	if db := c.Database; db != nil {
		switch db.Driver {
		case database.DriverPostgres:
			if db.Host == "" {
				result = multierror.Append(result, fmt.Errorf("database.host is required for postgres"))
			}
			if db.DBName == "" {
				result = multierror.Append(result, fmt.Errorf("database.dbname is required for postgres"))
			}
		case database.DriverSQLite:
			if db.Path == "" {
				result = multierror.Append(result, fmt.Errorf("database.path is required for sqlite"))
			}
		default:
			result = multierror.Append(result, fmt.Errorf("database.driver %q must be postgres or sqlite", db.Driver))
		}
	}

	if s := c.Storage; s != nil {
		switch s.Backend {
		case StorageLocal:
		case StorageS3:
			if s.S3 == nil {
				result = multierror.Append(result, fmt.Errorf("storage.s3 block is required for the s3 backend"))
			} else if err := s.S3.Validate(); err != nil {
				result = multierror.Append(result, fmt.Errorf("storage.s3: %w", err))
			}
		default:
			result = multierror.Append(result, fmt.Errorf("storage.backend %q must be local or s3", s.Backend))
		}
	}

	if c.Kafka != nil && c.Kafka.MaxRetries < 0 {
		result = multierror.Append(result, fmt.Errorf("kafka.max_retries must not be negative"))
	}

	if imp := c.Import; imp != nil {
		if _, err := hierarchy.ParseOrphanPolicy(imp.OrphanPolicy); err != nil {
			result = multierror.Append(result, fmt.Errorf("import.orphan_policy: %w", err))
		}
		if imp.TransformConcurrency < 1 {
			result = multierror.Append(result, fmt.Errorf("import.transform_concurrency must be at least 1"))
		}
		if imp.BatchSize < 1 {
			result = multierror.Append(result, fmt.Errorf("import.batch_size must be at least 1"))
		}
		if d, err := time.ParseDuration(imp.StaleJobAfter); err != nil {
			result = multierror.Append(result, fmt.Errorf("import.stale_job_after: %w", err))
		} else if d < 0 {
			result = multierror.Append(result, fmt.Errorf("import.stale_job_after must not be negative"))
		}
	}

	return result.ErrorOrNil()
}

// DatabaseConfig converts the database block for database.Connect.
func (c *Config) DatabaseConfig() database.Config {
	db := c.Database
	return database.Config{
		Driver:          db.Driver,
		Host:            db.Host,
		Port:            db.Port,
		User:            db.User,
		Password:        db.Password,
		DBName:          db.DBName,
		SSLMode:         db.SSLMode,
		Path:            db.Path,
		MaxOpenConns:    db.MaxOpenConns,
		MaxIdleConns:    db.MaxIdleConns,
		ConnMaxLifetime: time.Duration(db.ConnMaxLifetimeMinutes) * time.Minute,
	}
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
