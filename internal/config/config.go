package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Config holds everything needed to run a build.
type Config struct {
	// Paths are .hcl files or directories holding software descriptors.
	Paths      []string `mapstructure:"paths"`
	WorkDir    string   `mapstructure:"work_dir"`
	InstallDir string   `mapstructure:"install_dir"`
	Workers    int      `mapstructure:"workers"`

	LogLevel     string `mapstructure:"log_level"`
	LogFormat    string `mapstructure:"log_format"`
	ReportFormat string `mapstructure:"report_format"`
	StatusPort   int    `mapstructure:"status_port"`

	// Overrides are "name=version" pairs replacing declared versions.
	Overrides []string `mapstructure:"overrides"`

	Fetch       FetchConfig       `mapstructure:"fetch"`
	Cache       CacheConfig       `mapstructure:"cache"`
	ObjectStore ObjectStoreConfig `mapstructure:"object_store"`
	Events      EventsConfig      `mapstructure:"events"`
}

// FetchConfig controls source downloads.
type FetchConfig struct {
	Attempts       int           `mapstructure:"attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// Cache backends.
const (
	CacheNone     = "none"
	CacheMemory   = "memory"
	CacheFile     = "file"
	CacheS3       = "s3"
	CachePostgres = "postgres"
)

// CacheConfig selects and configures the build cache.
type CacheConfig struct {
	Backend     string `mapstructure:"backend"`
	Dir         string `mapstructure:"dir"`
	Bucket      string `mapstructure:"bucket"`
	Prefix      string `mapstructure:"prefix"`
	DatabaseURL string `mapstructure:"database_url"`
}

// ObjectStoreConfig is the S3-compatible endpoint used for s3:// sources
// and the s3 cache.
type ObjectStoreConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// Enabled reports whether an endpoint is configured.
func (c ObjectStoreConfig) Enabled() bool { return c.Endpoint != "" }

// EventsConfig configures status streaming.
type EventsConfig struct {
	SocketIOURL        string `mapstructure:"socketio_url"`
	Namespace          string `mapstructure:"namespace"`
	EventName          string `mapstructure:"event_name"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		WorkDir:      ".omnibuild/work",
		InstallDir:   ".omnibuild/install",
		Workers:      runtime.NumCPU(),
		LogLevel:     "info",
		LogFormat:    "text",
		ReportFormat: "text",
		Fetch: FetchConfig{
			Attempts:       3,
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
			Timeout:        10 * time.Minute,
		},
		Cache: CacheConfig{
			Backend: CacheFile,
			Dir:     ".omnibuild/cache",
			Prefix:  "omnibuild/cache",
		},
		Events: EventsConfig{
			Namespace: "/",
			EventName: "build_status",
		},
	}
}

// Validate rejects values that cannot work before anything runs.
func (c *Config) Validate() error {
	var errs []error

	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log-level %q: must be 'debug', 'info', 'warn', or 'error'", c.LogLevel))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log-format %q: must be 'text' or 'json'", c.LogFormat))
	}
	switch c.ReportFormat {
	case "text", "json", "yaml":
	default:
		errs = append(errs, fmt.Errorf("invalid report format %q: must be 'text', 'json' or 'yaml'", c.ReportFormat))
	}
	if c.StatusPort < 0 || c.StatusPort > 65535 {
		errs = append(errs, fmt.Errorf("status-port %d out of range", c.StatusPort))
	}
	if c.Fetch.Attempts < 1 {
		errs = append(errs, fmt.Errorf("fetch attempts must be at least 1, got %d", c.Fetch.Attempts))
	}
	if c.Fetch.InitialBackoff < 0 || c.Fetch.MaxBackoff < 0 {
		errs = append(errs, errors.New("fetch backoff must not be negative"))
	}
	if c.WorkDir == "" || c.InstallDir == "" {
		errs = append(errs, errors.New("work-dir and install-dir are required"))
	}

	switch c.Cache.Backend {
	case CacheNone, CacheMemory:
	case CacheFile:
		if c.Cache.Dir == "" {
			errs = append(errs, errors.New("file cache requires cache.dir"))
		}
	case CacheS3:
		if !c.ObjectStore.Enabled() {
			errs = append(errs, errors.New("s3 cache requires object_store.endpoint"))
		}
		if c.Cache.Bucket == "" {
			errs = append(errs, errors.New("s3 cache requires cache.bucket"))
		}
	case CachePostgres:
		if c.Cache.DatabaseURL == "" {
			errs = append(errs, errors.New("postgres cache requires cache.database_url"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache backend %q", c.Cache.Backend))
	}

	if _, err := c.VersionOverrides(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// VersionOverrides parses Overrides into a name -> version map.
func (c *Config) VersionOverrides() (map[string]string, error) {
	out := make(map[string]string, len(c.Overrides))
	for _, o := range c.Overrides {
		name, version, ok := strings.Cut(o, "=")
		name, version = strings.TrimSpace(name), strings.TrimSpace(version)
		if !ok || name == "" || version == "" {
			return nil, fmt.Errorf("invalid override %q: want name=version", o)
		}
		if _, dup := out[name]; dup {
			return nil, fmt.Errorf("component %q overridden twice", name)
		}
		out[name] = version
	}
	return out, nil
}
