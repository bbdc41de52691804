// Package trust restricts which peers are accepted after certificate chain
// validation succeeds.
//
// A RestrictedVerifier decorates a ChainVerifier: the delegate validates the
// chain, then the leaf certificate's otherName common names must match one
// of the trusted name patterns.
package trust

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/marmos91/filerealm/internal/logger"
	"github.com/marmos91/filerealm/internal/telemetry"
	"github.com/marmos91/filerealm/pkg/metrics"
)

var (
	// ErrUntrusted is wrapped by every rejection from a RestrictedVerifier.
	ErrUntrusted = errors.New("trust: certificate does not match the trusted names")

	// ErrNoCertificate is returned for an empty chain.
	ErrNoCertificate = errors.New("trust: no certificate presented")
)

// ChainVerifier validates a peer certificate chain, leaf first.
type ChainVerifier interface {
	VerifyChain(chain []*x509.Certificate) error
}

// NameSource supplies the currently trusted names.
type NameSource interface {
	Current() *Names
}

// X509Verifier validates chains against a root pool using crypto/x509.
type X509Verifier struct {
	Roots *x509.CertPool

	// KeyUsages defaults to client authentication.
	KeyUsages []x509.ExtKeyUsage
}

// VerifyChain verifies chain[0] using the rest of the chain as intermediates.
func (v *X509Verifier) VerifyChain(chain []*x509.Certificate) error {
	if len(chain) == 0 {
		return ErrNoCertificate
	}
	intermediates := x509.NewCertPool()
	for _, c := range chain[1:] {
		intermediates.AddCert(c)
	}
	usages := v.KeyUsages
	if len(usages) == 0 {
		usages = []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth}
	}
	_, err := chain[0].Verify(x509.VerifyOptions{
		Roots:         v.Roots,
		Intermediates: intermediates,
		KeyUsages:     usages,
	})
	return err
}

// UntrustedError describes a certificate rejected by the trust restriction.
type UntrustedError struct {
	Subject string
	Serial  string
	Names   []string
	Trusted []string
}

func (e *UntrustedError) Error() string {
	return fmt.Sprintf("certificate for %s with serial %s and common-names [%s] does not match the trusted names [%s]",
		e.Subject, e.Serial, strings.Join(e.Names, ", "), strings.Join(e.Trusted, ", "))
}

func (e *UntrustedError) Unwrap() error { return ErrUntrusted }

// RestrictedVerifier accepts a chain only if the delegate accepts it and the
// leaf carries a trusted common name.
type RestrictedVerifier struct {
	delegate ChainVerifier
	names    NameSource
	metrics  metrics.TrustMetrics
}

// NewRestrictedVerifier decorates delegate. m may be nil.
func NewRestrictedVerifier(delegate ChainVerifier, names NameSource, m metrics.TrustMetrics) *RestrictedVerifier {
	logger.Debug("configured trust restrictions", logger.KeyTrusted, names.Current().String())
	return &RestrictedVerifier{delegate: delegate, names: names, metrics: m}
}

// VerifyChain implements ChainVerifier.
func (v *RestrictedVerifier) VerifyChain(chain []*x509.Certificate) error {
	if err := v.delegate.VerifyChain(chain); err != nil {
		v.observe(metrics.OutcomeError)
		return err
	}
	if len(chain) == 0 {
		v.observe(metrics.OutcomeError)
		return ErrNoCertificate
	}

	cert := chain[0]
	subject := cert.Subject.String()
	serial := cert.SerialNumber.Text(16)

	ctx, span := telemetry.StartTrustSpan(context.Background(), subject, serial)
	defer span.End()

	names, err := ExtractCommonNames(cert)
	if err != nil {
		v.observe(metrics.OutcomeError)
		telemetry.RecordError(ctx, err)
		return fmt.Errorf("certificate for %s with serial %s: %w", subject, serial, err)
	}
	slices.Sort(names)
	names = slices.Compact(names)

	trusted := v.names.Current()
	if pattern, name, ok := trusted.Match(names); ok {
		logger.Debug("trusting certificate",
			logger.KeySubject, subject,
			logger.KeySerial, serial,
			logger.KeyNames, names,
			"name", name,
			"pattern", pattern,
		)
		v.observe(metrics.OutcomeSuccess)
		telemetry.SetAttributes(ctx, telemetry.Outcome(metrics.OutcomeSuccess))
		return nil
	}

	logger.Info("rejecting certificate",
		logger.KeySubject, subject,
		logger.KeySerial, serial,
		logger.KeyNames, names,
		logger.KeyTrusted, trusted.Patterns(),
	)
	v.observe(metrics.OutcomeFailure)
	telemetry.SetAttributes(ctx, telemetry.Outcome(metrics.OutcomeFailure))
	return &UntrustedError{
		Subject: subject,
		Serial:  serial,
		Names:   names,
		Trusted: trusted.Patterns(),
	}
}

// VerifyPeerCertificate adapts the verifier to tls.Config.VerifyPeerCertificate.
// It parses the raw chain itself, so it works with InsecureSkipVerify or
// ClientAuth = RequireAnyClientCert.
func (v *RestrictedVerifier) VerifyPeerCertificate(rawCerts [][]byte, _ [][]*x509.Certificate) error {
	chain := make([]*x509.Certificate, 0, len(rawCerts))
	for _, raw := range rawCerts {
		c, err := x509.ParseCertificate(raw)
		if err != nil {
			return fmt.Errorf("trust: parse peer certificate: %w", err)
		}
		chain = append(chain, c)
	}
	return v.VerifyChain(chain)
}

// ServerTLSConfig returns a copy of base that requires client certificates
// and verifies them with v.
func (v *RestrictedVerifier) ServerTLSConfig(base *tls.Config) *tls.Config {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if base != nil {
		cfg = base.Clone()
	}
	cfg.ClientAuth = tls.RequireAnyClientCert
	cfg.VerifyPeerCertificate = v.VerifyPeerCertificate
	return cfg
}

func (v *RestrictedVerifier) observe(outcome string) {
	if v.metrics != nil {
		v.metrics.ObserveTrustDecision(outcome)
	}
}
