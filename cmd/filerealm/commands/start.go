package commands

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/filerealm/internal/logger"
	"github.com/marmos91/filerealm/internal/telemetry"
	"github.com/marmos91/filerealm/pkg/api"
	"github.com/marmos91/filerealm/pkg/auth"
	"github.com/marmos91/filerealm/pkg/auth/file"
	"github.com/marmos91/filerealm/pkg/auth/ldap"
	"github.com/marmos91/filerealm/pkg/auth/trust"
	"github.com/marmos91/filerealm/pkg/config"
	"github.com/marmos91/filerealm/pkg/metrics"
	promMetrics "github.com/marmos91/filerealm/pkg/metrics/prometheus"
	"github.com/marmos91/filerealm/pkg/watcher"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the filerealm server",
	Long: `Start the filerealm server in the foreground.

The users file (and users_roles file, and trust restrictions file when
enabled) are watched and reloaded on change. A users file that cannot be
read leaves the realm with no users until it is fixed.

Examples:
  # Start with the default config
  filerealm start

  # Start with custom config file
  filerealm start --config /etc/filerealm/config.yaml

  # Override settings from the environment
  FILEREALM_LOGGING_LEVEL=DEBUG FILEREALM_USERS_FILE=/etc/filerealm/users filerealm start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "filerealm",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := telemetryShutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", logger.KeyError, err)
		}
	}()

	profilingStop, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "filerealm",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingStop(); err != nil {
			logger.Error("profiling shutdown error", logger.KeyError, err)
		}
	}()

	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}

	// Metrics must be initialized before the stores that record them.
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		logger.Info("Metrics enabled", "path", "/metrics")
	}
	realmMetrics := promMetrics.NewRealmMetrics()

	w := watcher.New(watcher.Config{
		Interval:    cfg.Realm.ReloadInterval,
		UseFSNotify: cfg.Realm.UseFSNotify(),
	})
	defer w.Stop()

	usersFile := config.ResolveUsersFile(cfg.Realm)
	store, err := file.NewStore(usersFile, w,
		file.WithRealmName(cfg.Realm.Name),
		file.WithMetrics(realmMetrics),
	)
	if err != nil {
		return fmt.Errorf("failed to open users file: %w", err)
	}
	defer func() { _ = store.Close() }()

	var roles *file.RolesStore
	if cfg.Realm.UsersRolesFile != "" {
		roles, err = file.NewRolesStore(cfg.Realm.UsersRolesFile, w, file.WithRealmName(cfg.Realm.Name))
		if err != nil {
			return fmt.Errorf("failed to open users_roles file: %w", err)
		}
		defer func() { _ = roles.Close() }()
	}

	realm := file.NewRealm(cfg.Realm.Name, store, roles, realmMetrics)
	logger.Info("Realm initialized",
		logger.KeyRealm, realm.Name(),
		logger.KeyPath, usersFile,
		logger.KeyCount, store.UsersCount(),
	)

	deps := api.Dependencies{
		RealmName:     realm.Name(),
		Authenticator: auth.NewAuthenticator(realm),
		Users:         store,
		Metrics:       metrics.Handler(),
	}

	if cfg.LDAP.Enabled {
		groups, err := newGroupLookup(cfg.LDAP)
		if err != nil {
			return err
		}
		deps.Groups = groups
		logger.Info("LDAP group resolution enabled", "url", cfg.LDAP.URL, "base_dn", cfg.LDAP.GroupSearch.BaseDN)
	}

	var verifier api.ClientVerifier
	if cfg.Trust.Enabled {
		restricted, closer, err := newClientVerifier(cfg.Trust, w)
		if err != nil {
			return err
		}
		defer func() { _ = closer.Close() }()
		verifier = restricted
		logger.Info("Client certificate restrictions enabled", logger.KeyPath, cfg.Trust.RestrictionsFile)
	}

	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}

	apiServer, err := api.NewServer(cfg.API, deps, verifier)
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- apiServer.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("Server is running. Press Ctrl+C to stop.", "port", cfg.API.Port)

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()

		select {
		case err := <-serverDone:
			if err != nil {
				logger.Error("Server shutdown error", logger.KeyError, err)
				return err
			}
		case <-time.After(cfg.ShutdownTimeout):
			return errors.New("graceful shutdown timed out")
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		if err != nil {
			logger.Error("Server error", logger.KeyError, err)
			return err
		}
		logger.Info("Server stopped")
	}

	return nil
}

func newGroupLookup(cfg config.LDAPConfig) (*ldap.GroupLookup, error) {
	scope, err := ldap.ParseScope(cfg.GroupSearch.Scope)
	if err != nil {
		return nil, err
	}
	resolver := &ldap.SearchGroupsResolver{
		BaseDN:        cfg.GroupSearch.BaseDN,
		Scope:         scope,
		Filter:        cfg.GroupSearch.Filter,
		Attribute:     cfg.GroupSearch.Attribute,
		UserAttribute: cfg.GroupSearch.UserAttribute,
		Metrics:       promMetrics.NewGroupMetrics(),
	}
	return ldap.NewGroupLookup(ldap.Config{
		URL:                cfg.URL,
		BindDN:             cfg.BindDN,
		BindPassword:       cfg.BindPassword,
		Timeout:            cfg.Timeout,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		UserDNTemplate:     cfg.UserDNTemplate,
	}, resolver), nil
}

// newClientVerifier verifies client chains against the CA bundle and then
// restricts them to the hot-reloaded trusted names.
func newClientVerifier(cfg config.TrustConfig, n watcher.Notifier) (*trust.RestrictedVerifier, io.Closer, error) {
	data, err := os.ReadFile(cfg.ClientCAFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read client CA file: %w", err)
	}
	roots := x509.NewCertPool()
	if !roots.AppendCertsFromPEM(data) {
		return nil, nil, fmt.Errorf("no certificates found in %s", cfg.ClientCAFile)
	}

	trustMetrics := promMetrics.NewTrustMetrics()
	restrictions, err := trust.NewRestrictions(cfg.RestrictionsFile, n, trustMetrics)
	if err != nil {
		return nil, nil, err
	}
	verifier := trust.NewRestrictedVerifier(&trust.X509Verifier{Roots: roots}, restrictions, trustMetrics)
	return verifier, restrictions, nil
}
