package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/filerealm/pkg/api"
	"github.com/marmos91/filerealm/pkg/auth/ldap"
	"github.com/marmos91/filerealm/pkg/watcher"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
// Zero values are replaced; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyShutdownTimeoutDefaults(cfg)
	applyRealmDefaults(&cfg.Realm)
	applyAPIDefaults(&cfg.API)
	applyLDAPDefaults(&cfg.LDAP)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	applyProfilingDefaults(&cfg.Profiling)
}

func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
}

// applyRealmDefaults leaves UsersFile empty so ResolveUsersFile can apply
// the environment override at startup.
func applyRealmDefaults(cfg *RealmConfig) {
	if cfg.Name == "" {
		cfg.Name = "file1"
	}
	if cfg.UsersRolesFile == "" {
		cfg.UsersRolesFile = filepath.Join(getConfigDir(), "users_roles")
	}
	if cfg.ReloadInterval == 0 {
		cfg.ReloadInterval = watcher.DefaultInterval
	}
	if cfg.FSNotify == nil {
		on := true
		cfg.FSNotify = &on
	}
}

func applyAPIDefaults(cfg *api.APIConfig) {
	cfg.ApplyDefaults()
}

func applyLDAPDefaults(cfg *LDAPConfig) {
	if cfg.URL == "" {
		cfg.URL = "ldap://localhost:389"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.GroupSearch.Scope == "" {
		cfg.GroupSearch.Scope = ldap.ScopeSubTree
	}
	if cfg.GroupSearch.Filter == "" {
		cfg.GroupSearch.Filter = ldap.DefaultFilter
	}
	if cfg.GroupSearch.Attribute == "" {
		cfg.GroupSearch.Attribute = "cn"
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
