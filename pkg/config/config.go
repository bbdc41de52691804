package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/filerealm/pkg/api"
)

// EnvUsersFile overrides RealmConfig.UsersFile.
const EnvUsersFile = "FILEREALM_USERS_FILE"

// Config represents the filerealm configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (FILEREALM_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Metrics contains Prometheus metrics configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Realm configures the file realm and its change detection
	Realm RealmConfig `mapstructure:"realm" yaml:"realm"`

	// API contains REST API server configuration
	API api.APIConfig `mapstructure:"api" yaml:"api"`

	// LDAP configures directory group resolution
	LDAP LDAPConfig `mapstructure:"ldap" yaml:"ldap"`

	// Trust restricts which client certificates the API accepts
	Trust TrustConfig `mapstructure:"trust" yaml:"trust"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317"
	Endpoint string `mapstructure:"endpoint" validate:"required_if=Enabled true" yaml:"endpoint"`

	// Insecure controls whether to use a non-TLS connection to the collector
	// Default: true
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled
	// Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server URL
	// Default: "http://localhost:4040"
	Endpoint string `mapstructure:"endpoint" validate:"required_if=Enabled true" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig configures the Prometheus metrics. When Enabled is false no
// metrics are collected. Metrics are served on the API server's /metrics.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// RealmConfig configures the file realm.
type RealmConfig struct {
	// Name identifies the realm in logs, metrics and tokens
	// Default: "file1"
	Name string `mapstructure:"name" validate:"required" yaml:"name"`

	// UsersFile is the users file path. FILEREALM_USERS_FILE overrides it.
	// Default: <config dir>/users
	UsersFile string `mapstructure:"users_file" yaml:"users_file"`

	// UsersRolesFile is the users_roles file path. Empty disables roles.
	// Default: <config dir>/users_roles
	UsersRolesFile string `mapstructure:"users_roles_file" yaml:"users_roles_file"`

	// ReloadInterval is how often watched files are checked for changes
	// Default: 5s
	ReloadInterval time.Duration `mapstructure:"reload_interval" validate:"gt=0" yaml:"reload_interval"`

	// FSNotify wakes the change check early on filesystem events
	// Default: true
	FSNotify *bool `mapstructure:"fsnotify" yaml:"fsnotify"`
}

// UseFSNotify reports whether fsnotify wakeups are enabled.
func (c RealmConfig) UseFSNotify() bool {
	return c.FSNotify == nil || *c.FSNotify
}

// LDAPConfig configures directory group resolution.
type LDAPConfig struct {
	// Enabled turns on the groups endpoint
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// URL is ldap://host:port or ldaps://host:port
	URL string `mapstructure:"url" validate:"required_if=Enabled true" yaml:"url"`

	BindDN       string `mapstructure:"bind_dn" yaml:"bind_dn"`
	BindPassword string `mapstructure:"bind_password" yaml:"bind_password"`

	// Timeout bounds dialing and each group search. A search that hits the
	// timeout is reported as a timeout, never as "no groups".
	// Default: 5s
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0" yaml:"timeout"`

	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify"`

	// UserDNTemplate maps a username to its entry DN ("{0}" is the username)
	UserDNTemplate string `mapstructure:"user_dn_template" validate:"required_if=Enabled true" yaml:"user_dn_template"`

	GroupSearch GroupSearchConfig `mapstructure:"group_search" yaml:"group_search"`
}

// GroupSearchConfig configures the group search.
type GroupSearchConfig struct {
	BaseDN string `mapstructure:"base_dn" yaml:"base_dn"`

	// Scope is base, one_level or sub_tree
	// Default: sub_tree
	Scope string `mapstructure:"scope" validate:"omitempty,oneof=base one_level sub_tree" yaml:"scope"`

	// Filter has "{0}" standing for the user DN
	// Default: "(member={0})"
	Filter string `mapstructure:"filter" yaml:"filter"`

	// Attribute is returned for each group; empty or "dn" returns group DNs
	Attribute string `mapstructure:"attribute" yaml:"attribute"`

	// UserAttribute is read from the user entry and used in the filter
	// instead of the user DN
	UserAttribute string `mapstructure:"user_attribute" yaml:"user_attribute,omitempty"`
}

// TrustConfig restricts which client certificates are accepted.
type TrustConfig struct {
	// Enabled requires API clients to present certificates matching the
	// restrictions file. Requires api.tls.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// RestrictionsFile holds trust.restrictions.names; hot-reloaded
	RestrictionsFile string `mapstructure:"restrictions_file" validate:"required_if=Enabled true" yaml:"restrictions_file"`

	// ClientCAFile is the PEM bundle client chains must verify against
	ClientCAFile string `mapstructure:"client_ca_file" validate:"required_if=Enabled true" yaml:"client_ca_file"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (FILEREALM_*)
//  2. Configuration file
//  3. Default values
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		return GetDefaultConfig(), nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages when the file
// does not exist.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  filerealm init\n\n"+
				"Or specify a custom config file:\n"+
				"  filerealm <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("configuration file not found: %s\n\n"+
			"Please create the configuration file:\n"+
			"  filerealm init --config %s",
			configPath, configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to path in YAML.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Owner read/write only: the file may hold the JWT secret and bind password.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ResolveUsersFile returns the users file path: FILEREALM_USERS_FILE first,
// then the configured path, then <config dir>/users.
func ResolveUsersFile(cfg RealmConfig) string {
	if p := os.Getenv(EnvUsersFile); p != "" {
		return p
	}
	if cfg.UsersFile != "" {
		return cfg.UsersFile
	}
	return filepath.Join(getConfigDir(), "users")
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: FILEREALM_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("FILEREALM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// $XDG_CONFIG_HOME/filerealm/config.yaml
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks returns the combined decode hook for custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// durationDecodeHook converts strings like "30s", "5m", "1h" to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// Raw integers are nanoseconds
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns $XDG_CONFIG_HOME/filerealm, ~/.config/filerealm, or
// "." when no home directory can be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "filerealm")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "filerealm")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
