package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(GetDefaultConfig()); err != nil {
		t.Errorf("Expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "INVALID"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "oneof") {
		t.Errorf("Expected 'oneof' validation error, got: %v", err)
	}
}

func TestValidate_InvalidAPIPort(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.API.Port = 70000

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for port out of range")
	}
	if !strings.Contains(err.Error(), "max") {
		t.Errorf("Expected 'max' validation error, got: %v", err)
	}
}

func TestValidate_TelemetryEnabledWithoutEndpoint(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.Endpoint = ""

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for telemetry enabled without endpoint")
	}
}

func TestValidate_TelemetrySampleRate(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Telemetry.SampleRate = 1.5

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for sample rate out of range")
	}
}

func TestValidate_LDAP(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.LDAP.Enabled = true
	if err := Validate(cfg); err == nil {
		t.Fatal("Expected error for ldap without user_dn_template")
	}

	cfg.LDAP.UserDNTemplate = "uid=alice,ou=people"
	if err := Validate(cfg); err == nil || !strings.Contains(err.Error(), "{0}") {
		t.Fatalf("Expected error for template without placeholder, got %v", err)
	}

	cfg.LDAP.UserDNTemplate = "uid={0},ou=people"
	if err := Validate(cfg); err != nil {
		t.Fatalf("Expected valid ldap config, got %v", err)
	}

	cfg.LDAP.GroupSearch.Scope = "everything"
	if err := Validate(cfg); err == nil {
		t.Fatal("Expected error for unknown scope")
	}
}

func TestValidate_TrustRequiresTLS(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Trust.Enabled = true
	cfg.Trust.RestrictionsFile = "restrictions.yml"
	cfg.Trust.ClientCAFile = "ca.pem"

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "api.tls") {
		t.Fatalf("Expected TLS requirement error, got %v", err)
	}

	cfg.API.TLS.CertFile = "server.crt"
	cfg.API.TLS.KeyFile = "server.key"
	if err := Validate(cfg); err != nil {
		t.Fatalf("Expected valid trust config, got %v", err)
	}

	cfg.API.TLS.KeyFile = ""
	if err := Validate(cfg); err == nil {
		t.Fatal("Expected error for cert without key")
	}
}

func TestValidate_ShortJWTSecret(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.API.JWT.Secret = "short"
	if err := Validate(cfg); err == nil {
		t.Fatal("Expected error for short JWT secret")
	}
}

func TestValidate_LogLevelNormalization(t *testing.T) {
	for _, level := range []string{"info", "INFO", "debug", "DEBUG", "warn", "WARN", "error", "ERROR"} {
		cfg := GetDefaultConfig()
		cfg.Logging.Level = level

		if err := Validate(cfg); err != nil {
			t.Errorf("Validation failed for level %q: %v", level, err)
		}
		if cfg.Logging.Level != level {
			t.Errorf("Expected level to remain %q after validation, got %q", level, cfg.Logging.Level)
		}
	}

	cfg := &Config{Logging: LoggingConfig{Level: "info"}}
	ApplyDefaults(cfg)
	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected ApplyDefaults to normalize 'info' to 'INFO', got %q", cfg.Logging.Level)
	}
}

func TestValidateTrustRestrictions(t *testing.T) {
	cfg := GetDefaultConfig()
	if err := ValidateTrustRestrictions(cfg); err != nil {
		t.Fatalf("Expected disabled trust to pass, got %v", err)
	}

	dir := t.TempDir()
	cfg.Trust.Enabled = true
	cfg.Trust.RestrictionsFile = filepath.Join(dir, "restrictions.yml")
	if err := ValidateTrustRestrictions(cfg); err == nil {
		t.Fatal("Expected error for missing restrictions file")
	}

	if err := os.WriteFile(cfg.Trust.RestrictionsFile, []byte("trust.restrictions.names: [\"node-*\"]\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := ValidateTrustRestrictions(cfg); err != nil {
		t.Fatalf("Expected valid restrictions, got %v", err)
	}
}
