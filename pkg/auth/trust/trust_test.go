package trust

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	encasn1 "encoding/asn1"
	"errors"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"

	"github.com/marmos91/filerealm/pkg/watcher"
)

type testCA struct {
	cert *x509.Certificate
	key  *ecdsa.PrivateKey
	pool *x509.CertPool
}

func newCA(t *testing.T) *testCA {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test-ca"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	pool := x509.NewCertPool()
	pool.AddCert(cert)
	return &testCA{cert: cert, key: key, pool: pool}
}

// otherName describes one SAN otherName entry.
type otherName struct {
	oid   encasn1.ObjectIdentifier
	tag   cbasn1.Tag
	value string
}

func cn(v string) otherName {
	return otherName{oid: oidCommonName, tag: cbasn1.UTF8String, value: v}
}

// sanExtension encodes GeneralNames with the given otherNames plus a dNSName.
func sanExtension(t *testing.T, names ...otherName) []byte {
	t.Helper()
	b := cryptobyte.NewBuilder(nil)
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1(cbasn1.Tag(2).ContextSpecific(), func(b *cryptobyte.Builder) {
			b.AddBytes([]byte("node.example.com"))
		})
		for _, n := range names {
			b.AddASN1(tagOtherName, func(b *cryptobyte.Builder) {
				b.AddASN1ObjectIdentifier(n.oid)
				b.AddASN1(tagOtherName, func(b *cryptobyte.Builder) {
					b.AddASN1(n.tag, func(b *cryptobyte.Builder) {
						b.AddBytes([]byte(n.value))
					})
				})
			})
		}
	})
	der, err := b.Bytes()
	require.NoError(t, err)
	return der
}

func (ca *testCA) issue(t *testing.T, serial int64, names ...otherName) *x509.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject:      pkix.Name{CommonName: "node1", Organization: []string{"filerealm"}},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
		ExtraExtensions: []pkix.Extension{
			{Id: oidSubjectAltName, Value: sanExtension(t, names...)},
		},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, ca.cert, &key.PublicKey, ca.key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

func TestExtractCommonNames(t *testing.T) {
	ca := newCA(t)
	cert := ca.issue(t, 2,
		cn("node-1.cluster"),
		otherName{oid: encasn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 20, 2, 3}, tag: cbasn1.UTF8String, value: "upn@example.com"},
		otherName{oid: oidCommonName, tag: cbasn1.PrintableString, value: "client"},
		otherName{oid: oidCommonName, tag: cbasn1.IA5String, value: "ia5"},
		otherName{oid: oidCommonName, tag: cbasn1.OCTET_STRING, value: "octets"},
	)

	names, err := ExtractCommonNames(cert)
	require.NoError(t, err)
	assert.Equal(t, []string{"node-1.cluster", "client", "ia5"}, names)
}

func TestExtractCommonNames_NoSAN(t *testing.T) {
	ca := newCA(t)
	names, err := ExtractCommonNames(ca.cert)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestParseOtherNameCNs_Malformed(t *testing.T) {
	_, err := parseOtherNameCNs([]byte{0x30, 0x05, 0xA0, 0x03})
	assert.ErrorIs(t, err, ErrMalformedSAN)

	_, err = parseOtherNameCNs([]byte{0x04, 0x00})
	assert.ErrorIs(t, err, ErrMalformedSAN)
}

func TestRestrictedVerifier_Accepts(t *testing.T) {
	ca := newCA(t)
	cert := ca.issue(t, 0x2a, cn("node-7.cluster"))

	v := NewRestrictedVerifier(&X509Verifier{Roots: ca.pool}, MustNames("client", "node-*.cluster"), nil)
	assert.NoError(t, v.VerifyChain([]*x509.Certificate{cert}))
}

func TestRestrictedVerifier_RejectsWithDetails(t *testing.T) {
	ca := newCA(t)
	cert := ca.issue(t, 0x2a, cn("intruder"), cn("another"))
	m := &recordingTrustMetrics{}

	v := NewRestrictedVerifier(&X509Verifier{Roots: ca.pool}, MustNames("client", "node-*.cluster"), m)
	err := v.VerifyChain([]*x509.Certificate{cert})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUntrusted)

	var ue *UntrustedError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "CN=node1,O=filerealm", ue.Subject)
	assert.Equal(t, "2a", ue.Serial)
	assert.Equal(t, []string{"another", "intruder"}, ue.Names)
	assert.Equal(t, []string{"client", "node-*.cluster"}, ue.Trusted)
	assert.Equal(t,
		"certificate for CN=node1,O=filerealm with serial 2a and common-names [another, intruder] does not match the trusted names [client, node-*.cluster]",
		err.Error())
	assert.Equal(t, []string{"failure"}, m.outcomes)
}

func TestRestrictedVerifier_NoCommonNamesRejected(t *testing.T) {
	ca := newCA(t)
	cert := ca.issue(t, 3)

	v := NewRestrictedVerifier(&X509Verifier{Roots: ca.pool}, MustNames("*"), nil)
	assert.ErrorIs(t, v.VerifyChain([]*x509.Certificate{cert}), ErrUntrusted)
}

func TestRestrictedVerifier_DelegateFailureWins(t *testing.T) {
	ca := newCA(t)
	other := newCA(t)
	cert := other.issue(t, 4, cn("client"))

	v := NewRestrictedVerifier(&X509Verifier{Roots: ca.pool}, MustNames("client"), nil)
	err := v.VerifyChain([]*x509.Certificate{cert})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUntrusted)

	var unknown x509.UnknownAuthorityError
	assert.ErrorAs(t, err, &unknown)
}

func TestRestrictedVerifier_EmptyChain(t *testing.T) {
	v := NewRestrictedVerifier(&X509Verifier{}, MustNames("client"), nil)
	assert.ErrorIs(t, v.VerifyChain(nil), ErrNoCertificate)

	// A delegate that accepts anything still cannot hide an empty chain.
	v = NewRestrictedVerifier(acceptAll{}, MustNames("client"), nil)
	assert.ErrorIs(t, v.VerifyChain(nil), ErrNoCertificate)
}

func TestRestrictedVerifier_VerifyPeerCertificate(t *testing.T) {
	ca := newCA(t)
	good := ca.issue(t, 5, cn("client"))
	bad := ca.issue(t, 6, cn("stranger"))

	v := NewRestrictedVerifier(&X509Verifier{Roots: ca.pool}, MustNames("client"), nil)
	assert.NoError(t, v.VerifyPeerCertificate([][]byte{good.Raw}, nil))
	assert.ErrorIs(t, v.VerifyPeerCertificate([][]byte{bad.Raw}, nil), ErrUntrusted)
	assert.Error(t, v.VerifyPeerCertificate([][]byte{{0x01, 0x02}}, nil))

	cfg := v.ServerTLSConfig(nil)
	assert.Equal(t, tls.RequireAnyClientCert, cfg.ClientAuth)
	require.NotNil(t, cfg.VerifyPeerCertificate)
	assert.NoError(t, cfg.VerifyPeerCertificate([][]byte{good.Raw}, nil))
}

func TestNames(t *testing.T) {
	n, err := NewNames(" client ", "", "node-?.cluster", "[ab]-host")
	require.NoError(t, err)
	assert.Equal(t, 3, n.Len())
	assert.Equal(t, "[client, node-?.cluster, [ab]-host]", n.String())

	pattern, name, ok := n.Match([]string{"x", "node-3.cluster"})
	assert.True(t, ok)
	assert.Equal(t, "node-?.cluster", pattern)
	assert.Equal(t, "node-3.cluster", name)

	_, _, ok = n.Match([]string{"node-10.cluster", "c-host"})
	assert.False(t, ok)

	_, _, ok = NoNames.Match([]string{"client"})
	assert.False(t, ok)
}

func TestNames_InvalidPatterns(t *testing.T) {
	for _, p := range []string{"[abc", "abc\\", "[]", "[^]"} {
		_, err := NewNames(p)
		assert.Error(t, err, p)
	}
	assert.Panics(t, func() { MustNames("[") })
}

func TestLoadNames(t *testing.T) {
	dir := t.TempDir()

	flat := filepath.Join(dir, "flat.yml")
	require.NoError(t, os.WriteFile(flat, []byte("trust.restrictions.names: [\"client\", \"node-*.cluster\"]\n"), 0o600))
	n, err := LoadNames(flat)
	require.NoError(t, err)
	assert.Equal(t, []string{"client", "node-*.cluster"}, n.Patterns())

	nested := filepath.Join(dir, "nested.yml")
	require.NoError(t, os.WriteFile(nested, []byte("trust:\n  restrictions:\n    names:\n      - client\n"), 0o600))
	n, err = LoadNames(nested)
	require.NoError(t, err)
	assert.Equal(t, []string{"client"}, n.Patterns())

	missingKey := filepath.Join(dir, "other.yml")
	require.NoError(t, os.WriteFile(missingKey, []byte("foo: bar\n"), 0o600))
	_, err = LoadNames(missingKey)
	assert.Error(t, err)

	_, err = LoadNames(filepath.Join(dir, "absent.yml"))
	assert.Error(t, err)
}

func TestRestrictions_HotReloadFailsClosed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "restrictions.yml")
	require.NoError(t, os.WriteFile(path, []byte("trust.restrictions.names: [client]\n"), 0o600))

	n := &manualNotifier{}
	m := &recordingTrustMetrics{}
	r, err := NewRestrictions(path, n, m)
	require.NoError(t, err)
	assert.Equal(t, []string{"client"}, r.Current().Patterns())

	ca := newCA(t)
	cert := ca.issue(t, 7, cn("client"))
	v := NewRestrictedVerifier(&X509Verifier{Roots: ca.pool}, r, nil)
	require.NoError(t, v.VerifyChain([]*x509.Certificate{cert}))

	require.NoError(t, os.WriteFile(path, []byte("trust.restrictions.names: [\"[broken\"]\n"), 0o600))
	n.fire()
	assert.Zero(t, r.Current().Len())
	assert.ErrorIs(t, v.VerifyChain([]*x509.Certificate{cert}), ErrUntrusted)

	require.NoError(t, os.WriteFile(path, []byte("trust.restrictions.names: [\"cli*\"]\n"), 0o600))
	n.fire()
	require.NoError(t, v.VerifyChain([]*x509.Certificate{cert}))
	assert.Equal(t, []int{1, 0, 1}, m.trusted)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	assert.Equal(t, 1, n.closed)
}

func TestRestrictions_EditDuringConstructionIsNotLost(t *testing.T) {
	path := filepath.Join(t.TempDir(), "restrictions.yml")
	require.NoError(t, os.WriteFile(path, []byte("trust.restrictions.names: [client]\n"), 0o600))

	w := watcher.New(watcher.Config{Interval: time.Hour})
	t.Cleanup(w.Stop)

	n := &editingNotifier{Notifier: w, edit: func() {
		require.NoError(t, os.WriteFile(path, []byte("trust.restrictions.names: [server, node-*]\n"), 0o600))
	}}
	r, err := NewRestrictions(path, n, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	w.Check()
	assert.Equal(t, []string{"server", "node-*"}, r.Current().Patterns())
}

func TestRestrictions_NotifierError(t *testing.T) {
	_, err := NewRestrictions("x", &manualNotifier{err: errors.New("no watches left")}, nil)
	assert.Error(t, err)
	_, err = NewRestrictions("x", nil, nil)
	assert.Error(t, err)
}

type acceptAll struct{}

func (acceptAll) VerifyChain([]*x509.Certificate) error { return nil }

type manualNotifier struct {
	handler watcher.Handler
	closed  int
	err     error
}

func (n *manualNotifier) Watch(_ string, h watcher.Handler) (io.Closer, error) {
	if n.err != nil {
		return nil, n.err
	}
	n.handler = h
	return closer(func() error { n.closed++; return nil }), nil
}

func (n *manualNotifier) fire() { n.handler() }

type editingNotifier struct {
	watcher.Notifier
	edit func()
}

func (n *editingNotifier) Watch(path string, h watcher.Handler) (io.Closer, error) {
	n.edit()
	return n.Notifier.Watch(path, h)
}

type closer func() error

func (c closer) Close() error { return c() }

type recordingTrustMetrics struct {
	mu       sync.Mutex
	outcomes []string
	trusted  []int
}

func (m *recordingTrustMetrics) ObserveTrustDecision(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func (m *recordingTrustMetrics) SetTrustedNames(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trusted = append(m.trusted, n)
}
