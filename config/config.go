package config

import (
	"errors"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

const (
	ProbeICMP    = "icmp"
	ProbePinger  = "pinger"
	ProbeCommand = "command"
)

const (
	RegistryFile     = "file"
	RegistrySQLite   = "sqlite"
	RegistryPostgres = "postgres"
)

type ServerConfig struct {
	Address     string `mapstructure:"address"`
	Environment string `mapstructure:"environment"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type MonitorConfig struct {
	Interval         time.Duration `mapstructure:"interval"`
	RecoveryInterval time.Duration `mapstructure:"recovery_interval"`
	MaxConcurrency   int           `mapstructure:"max_concurrency"`
}

type ProbeConfig struct {
	Method          string        `mapstructure:"method"`
	Timeout         time.Duration `mapstructure:"timeout"`
	Retries         int           `mapstructure:"retries"`
	RetryInterval   time.Duration `mapstructure:"retry_interval"`
	MaxSocketErrors int           `mapstructure:"max_socket_errors"`
	Privileged      bool          `mapstructure:"privileged"`
	Source          string        `mapstructure:"source"`
}

type CacheConfig struct {
	URL              string        `mapstructure:"url"`
	Prefix           string        `mapstructure:"prefix"`
	OnlineTTL        time.Duration `mapstructure:"online_ttl"`
	OfflineTTL       time.Duration `mapstructure:"offline_ttl"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
	ResetTimeout     time.Duration `mapstructure:"reset_timeout"`
}

type RegistryConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	Query  string `mapstructure:"query"`
}

type WOLConfig struct {
	Broadcast   string        `mapstructure:"broadcast"`
	Port        int           `mapstructure:"port"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Window      time.Duration `mapstructure:"window"`
}

type StreamConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type MetricsConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Probe    ProbeConfig    `mapstructure:"probe"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Registry RegistryConfig `mapstructure:"registry"`
	WOL      WOLConfig      `mapstructure:"wol"`
	Stream   StreamConfig   `mapstructure:"stream"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// DefaultHostsQuery reads host references from the web application's table.
const DefaultHostsQuery = "SELECT id, name, ip, mac_address FROM hosts"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.environment", EnvDev)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", LogLevelInfo)

	v.SetDefault("monitor.interval", "30s")
	v.SetDefault("monitor.recovery_interval", "5s")
	v.SetDefault("monitor.max_concurrency", 0)

	v.SetDefault("probe.method", ProbeCommand)
	v.SetDefault("probe.timeout", "1500ms")
	v.SetDefault("probe.retries", 2)
	v.SetDefault("probe.retry_interval", "500ms")
	v.SetDefault("probe.max_socket_errors", 1)
	v.SetDefault("probe.privileged", false)
	v.SetDefault("probe.source", "")

	v.SetDefault("cache.url", "redis://localhost:6379/0")
	v.SetDefault("cache.prefix", "ping_cache")
	v.SetDefault("cache.online_ttl", "15s")
	v.SetDefault("cache.offline_ttl", "3s")
	v.SetDefault("cache.failure_threshold", 3)
	v.SetDefault("cache.reset_timeout", "30s")

	v.SetDefault("registry.driver", RegistryFile)
	v.SetDefault("registry.dsn", "hosts.yaml")
	v.SetDefault("registry.query", DefaultHostsQuery)

	v.SetDefault("wol.broadcast", "255.255.255.255")
	v.SetDefault("wol.port", 9)
	v.SetDefault("wol.max_attempts", 10)
	v.SetDefault("wol.window", "5m")

	v.SetDefault("stream.interval", "5s")
	v.SetDefault("metrics.buffer_size", 1000)
}

// Load reads config.yaml from ./config or the working directory. Pass a
// non-empty path to use a specific file instead. Environment variables
// override file values (CACHE_URL, PROBE_TIMEOUT, ...) and REDIS_URL is
// accepted for the cache connection string.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			slog.Error("failed to read config file", slog.String("file", path), slog.String("error", err.Error()))
			return nil, err
		}
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if err := v.BindEnv("cache.url", "CACHE_URL", "REDIS_URL"); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Warn("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server, validation.By(func(value interface{}) error {
			sc, ok := value.(ServerConfig)
			if !ok {
				return validation.NewError("validation_invalid_type", "must be a ServerConfig")
			}
			return validation.ValidateStruct(&sc,
				validation.Field(&sc.Environment,
					validation.Required,
					validation.In(EnvDev, EnvStaging, EnvProd),
				),
				validation.Field(&sc.Address,
					validation.Required,
					validation.By(ValidateHostPort),
				),
			)
		})),
		validation.Field(&c.Logging, validation.By(func(value interface{}) error {
			lc, ok := value.(LoggingConfig)
			if !ok {
				return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
			}
			return validation.ValidateStruct(&lc,
				validation.Field(&lc.Level,
					validation.Required,
					validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
				),
			)
		})),
		validation.Field(&c.Monitor, validation.By(func(value interface{}) error {
			mc, ok := value.(MonitorConfig)
			if !ok {
				return validation.NewError("validation_invalid_type", "must be a MonitorConfig")
			}
			return validation.ValidateStruct(&mc,
				validation.Field(&mc.Interval, validation.Required, validation.Min(time.Second)),
				validation.Field(&mc.RecoveryInterval, validation.Required, validation.Min(100*time.Millisecond)),
				validation.Field(&mc.MaxConcurrency, validation.Min(0)),
			)
		})),
		validation.Field(&c.Probe, validation.By(func(value interface{}) error {
			pc, ok := value.(ProbeConfig)
			if !ok {
				return validation.NewError("validation_invalid_type", "must be a ProbeConfig")
			}
			return validation.ValidateStruct(&pc,
				validation.Field(&pc.Method,
					validation.Required,
					validation.In(ProbeICMP, ProbePinger, ProbeCommand),
				),
				validation.Field(&pc.Timeout, validation.Required, validation.Min(10*time.Millisecond)),
				validation.Field(&pc.Retries, validation.Min(0), validation.Max(10)),
				validation.Field(&pc.RetryInterval, validation.Min(time.Duration(0))),
				validation.Field(&pc.MaxSocketErrors, validation.Required, validation.Min(1)),
				validation.Field(&pc.Source, is.IPv4),
			)
		})),
		validation.Field(&c.Cache, validation.By(func(value interface{}) error {
			cc, ok := value.(CacheConfig)
			if !ok {
				return validation.NewError("validation_invalid_type", "must be a CacheConfig")
			}
			return validation.ValidateStruct(&cc,
				validation.Field(&cc.URL, validation.Required, validation.By(validateRedisURL)),
				validation.Field(&cc.Prefix, validation.Required),
				validation.Field(&cc.OnlineTTL, validation.Required, validation.Min(time.Second)),
				validation.Field(&cc.OfflineTTL,
					validation.Required,
					validation.Min(time.Second),
					validation.By(func(value interface{}) error {
						if ttl, _ := value.(time.Duration); ttl >= cc.OnlineTTL {
							return validation.NewError("validation_offline_ttl", "must be shorter than online_ttl")
						}
						return nil
					}),
				),
				validation.Field(&cc.FailureThreshold, validation.Required, validation.Min(1)),
				validation.Field(&cc.ResetTimeout, validation.Required, validation.Min(time.Second)),
			)
		})),
		validation.Field(&c.Registry, validation.By(func(value interface{}) error {
			rc, ok := value.(RegistryConfig)
			if !ok {
				return validation.NewError("validation_invalid_type", "must be a RegistryConfig")
			}
			return validation.ValidateStruct(&rc,
				validation.Field(&rc.Driver,
					validation.Required,
					validation.In(RegistryFile, RegistrySQLite, RegistryPostgres),
				),
				validation.Field(&rc.DSN, validation.Required),
				validation.Field(&rc.Query,
					validation.When(rc.Driver != RegistryFile, validation.Required),
				),
			)
		})),
		validation.Field(&c.WOL, validation.By(func(value interface{}) error {
			wc, ok := value.(WOLConfig)
			if !ok {
				return validation.NewError("validation_invalid_type", "must be a WOLConfig")
			}
			return validation.ValidateStruct(&wc,
				validation.Field(&wc.Broadcast, validation.Required, is.IPv4),
				validation.Field(&wc.Port, validation.Required, validation.Min(1), validation.Max(65535)),
				validation.Field(&wc.MaxAttempts, validation.Min(0)),
				validation.Field(&wc.Window, validation.When(wc.MaxAttempts > 0, validation.Required)),
			)
		})),
		validation.Field(&c.Stream, validation.By(func(value interface{}) error {
			sc, ok := value.(StreamConfig)
			if !ok {
				return validation.NewError("validation_invalid_type", "must be a StreamConfig")
			}
			return validation.ValidateStruct(&sc,
				validation.Field(&sc.Interval, validation.Required, validation.Min(time.Second)),
			)
		})),
		validation.Field(&c.Metrics, validation.By(func(value interface{}) error {
			mc, ok := value.(MetricsConfig)
			if !ok {
				return validation.NewError("validation_invalid_type", "must be a MetricsConfig")
			}
			return validation.ValidateStruct(&mc,
				validation.Field(&mc.BufferSize, validation.Required, validation.Min(1)),
			)
		})),
	)
}

// ValidateHostPort accepts "host:port" and ":port" listen addresses.
func ValidateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateRedisURL(value interface{}) error {
	raw, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsed.Scheme != "redis" && parsed.Scheme != "rediss" && parsed.Scheme != "unix" {
		return validation.NewError("validation_invalid_scheme", "URL must use redis, rediss or unix scheme")
	}

	if parsed.Scheme != "unix" && parsed.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	return nil
}
