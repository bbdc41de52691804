package api

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/filerealm/internal/logger"
	"github.com/marmos91/filerealm/pkg/api/auth"
)

// ClientVerifier builds the server TLS config that checks client
// certificates. *trust.RestrictedVerifier satisfies it.
type ClientVerifier interface {
	ServerTLSConfig(base *tls.Config) *tls.Config
}

// Server provides an HTTP server for the REST API.
//
// The server supports graceful shutdown with configurable timeout.
type Server struct {
	server       *http.Server
	jwtService   *auth.JWTService
	config       APIConfig
	verifier     ClientVerifier
	shutdownOnce sync.Once

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
}

// NewServer creates a new API HTTP server in a stopped state.
//
// The JWT secret must be configured via config.JWT.Secret or the
// FILEREALM_API_SECRET environment variable. verifier may be nil; when set
// and TLS is configured, every client must present a trusted certificate.
func NewServer(config APIConfig, deps Dependencies, verifier ClientVerifier) (*Server, error) {
	config.ApplyDefaults()

	jwtSecret := config.GetJWTSecret()
	if len(jwtSecret) < 32 {
		return nil, fmt.Errorf("JWT secret must be at least 32 characters; set via %s env var or config", EnvJWTSecret)
	}

	jwtService, err := auth.NewJWTService(auth.JWTConfig{
		Secret:              jwtSecret,
		Issuer:              "filerealm",
		AccessTokenDuration: config.JWT.AccessTokenDuration,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT service: %w", err)
	}
	if verifier != nil && !config.TLS.Enabled() {
		return nil, errors.New("client certificate restrictions require api.tls.cert_file and api.tls.key_file")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      NewRouter(deps, jwtService),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	if config.TLS.Enabled() {
		base := &tls.Config{MinVersion: tls.VersionTLS12}
		if verifier != nil {
			base = verifier.ServerTLSConfig(base)
		}
		server.TLSConfig = base
	}

	return &Server{
		server:     server,
		jwtService: jwtService,
		config:     config,
		verifier:   verifier,
		ready:      make(chan struct{}),
	}, nil
}

// Start starts the API HTTP server and blocks until the context is cancelled
// or an error occurs. Cancellation triggers graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("API server failed: %w", err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	close(s.ready)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("API server listening",
			"port", s.Port(),
			"tls", s.config.TLS.Enabled(),
			"client_cert_restrictions", s.verifier != nil,
		)

		var serveErr error
		if s.config.TLS.Enabled() {
			serveErr = s.server.ServeTLS(ln, s.config.TLS.CertFile, s.config.TLS.KeyFile)
		} else {
			serveErr = s.server.Serve(ln)
		}
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- serveErr
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("API server shutdown signal received")
		// The cancelled ctx would abort the shutdown immediately.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("API server failed: %w", err)
	}
}

// Ready is closed once the server is listening.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Stop initiates graceful shutdown of the API server. Safe to call multiple
// times and concurrently with Start.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("API server shutdown initiated")

		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("API server shutdown error: %w", err)
			logger.Error("API server shutdown error", "error", err)
		} else {
			logger.Info("API server stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the TCP port the server listens on. Before Start it is the
// configured port.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
			return addr.Port
		}
	}
	return s.config.Port
}

// Handler returns the router, for in-process use.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}
