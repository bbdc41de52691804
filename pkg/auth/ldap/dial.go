package ldap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// Config holds connection settings for the directory.
type Config struct {
	URL          string
	BindDN       string
	BindPassword string

	// Timeout bounds dialing and each request on the connection.
	Timeout time.Duration

	// InsecureSkipVerify disables server certificate checks for ldaps://.
	InsecureSkipVerify bool

	// UserDNTemplate maps a username to its entry DN, with "{0}" standing
	// for the DN-escaped username, e.g. "uid={0},ou=people,dc=example,dc=com".
	UserDNTemplate string
}

// ErrNoUserDNTemplate is returned when a lookup by username is attempted
// without a UserDNTemplate.
var ErrNoUserDNTemplate = errors.New("ldap: no user DN template configured")

// FormatUserDN substitutes the escaped username into template.
func FormatUserDN(template, username string) string {
	return strings.ReplaceAll(template, "{0}", ldap.EscapeDN(username))
}

// Dial connects to cfg.URL and binds when a bind DN is configured.
func Dial(cfg Config) (*ldap.Conn, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = ldap.DefaultTimeout
	}

	conn, err := ldap.DialURL(cfg.URL,
		ldap.DialWithDialer(&net.Dialer{Timeout: timeout}),
		ldap.DialWithTLSConfig(&tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // operator opt-in
			MinVersion:         tls.VersionTLS12,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("ldap: dial %s: %w", cfg.URL, err)
	}
	conn.SetTimeout(timeout)

	if cfg.BindDN != "" {
		if err := conn.Bind(cfg.BindDN, cfg.BindPassword); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("ldap: bind as %s: %w", cfg.BindDN, err)
		}
	}
	return conn, nil
}

// GroupLookup dials a connection per lookup and runs the resolver on it.
type GroupLookup struct {
	cfg      Config
	resolver *SearchGroupsResolver
	dial     func(Config) (Searcher, func() error, error)
}

// NewGroupLookup creates a GroupLookup.
func NewGroupLookup(cfg Config, resolver *SearchGroupsResolver) *GroupLookup {
	return &GroupLookup{
		cfg:      cfg,
		resolver: resolver,
		dial: func(c Config) (Searcher, func() error, error) {
			conn, err := Dial(c)
			if err != nil {
				return nil, nil, err
			}
			return conn, conn.Close, nil
		},
	}
}

// Groups resolves the groups of userDN. Dial failures are Failed results;
// a dial that outlives the configured timeout is a Timeout.
func (g *GroupLookup) Groups(ctx context.Context, userDN string) Result {
	conn, closeFn, err := g.dial(g.cfg)
	if err != nil {
		if isTimeout(err) || isNetTimeout(err) {
			return Timeout(err)
		}
		return Failed(err)
	}
	defer func() { _ = closeFn() }()

	return g.resolver.ResolveSync(ctx, conn, userDN, g.cfg.Timeout)
}

// GroupsForUser resolves the groups of the entry UserDNTemplate maps
// username to.
func (g *GroupLookup) GroupsForUser(ctx context.Context, username string) Result {
	if g.cfg.UserDNTemplate == "" {
		return Failed(ErrNoUserDNTemplate)
	}
	return g.Groups(ctx, FormatUserDN(g.cfg.UserDNTemplate, username))
}

func isNetTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
