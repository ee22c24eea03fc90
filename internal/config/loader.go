package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. OMNIBUILD_WORKERS or
// OMNIBUILD_CACHE_BACKEND.
const EnvPrefix = "OMNIBUILD"

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"work-dir":        "work_dir",
	"install-dir":     "install_dir",
	"workers":         "workers",
	"log-level":       "log_level",
	"log-format":      "log_format",
	"output":          "report_format",
	"status-port":     "status_port",
	"override":        "overrides",
	"fetch-attempts":  "fetch.attempts",
	"cache":           "cache.backend",
	"cache-dir":       "cache.dir",
	"socketio-url":    "events.socketio_url",
	"s3-endpoint":     "object_store.endpoint",
	"cache-bucket":    "cache.bucket",
	"database-url":    "cache.database_url",
	"initial-backoff": "fetch.initial_backoff",
}

// Load resolves the configuration. configFile may be empty. Only flags that
// appear in flagKeys and exist in flags are bound.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("paths", d.Paths)
	v.SetDefault("work_dir", d.WorkDir)
	v.SetDefault("install_dir", d.InstallDir)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("report_format", d.ReportFormat)
	v.SetDefault("status_port", d.StatusPort)
	v.SetDefault("overrides", d.Overrides)

	v.SetDefault("fetch.attempts", d.Fetch.Attempts)
	v.SetDefault("fetch.initial_backoff", d.Fetch.InitialBackoff)
	v.SetDefault("fetch.max_backoff", d.Fetch.MaxBackoff)
	v.SetDefault("fetch.timeout", d.Fetch.Timeout)

	v.SetDefault("cache.backend", d.Cache.Backend)
	v.SetDefault("cache.dir", d.Cache.Dir)
	v.SetDefault("cache.bucket", d.Cache.Bucket)
	v.SetDefault("cache.prefix", d.Cache.Prefix)
	v.SetDefault("cache.database_url", d.Cache.DatabaseURL)

	v.SetDefault("object_store.endpoint", d.ObjectStore.Endpoint)
	v.SetDefault("object_store.access_key", d.ObjectStore.AccessKey)
	v.SetDefault("object_store.secret_key", d.ObjectStore.SecretKey)
	v.SetDefault("object_store.region", d.ObjectStore.Region)
	v.SetDefault("object_store.use_ssl", d.ObjectStore.UseSSL)

	v.SetDefault("events.socketio_url", d.Events.SocketIOURL)
	v.SetDefault("events.namespace", d.Events.Namespace)
	v.SetDefault("events.event_name", d.Events.EventName)
	v.SetDefault("events.insecure_skip_verify", d.Events.InsecureSkipVerify)
}
