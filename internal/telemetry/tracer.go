package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys used on filerealm spans.
const (
	AttrRealm     = "realm.name"
	AttrUsername  = "realm.username"
	AttrOutcome   = "realm.outcome"
	AttrUserCount = "realm.user_count"
	AttrPath      = "realm.path"

	AttrLDAPBaseDN = "ldap.base_dn"
	AttrLDAPUserDN = "ldap.user_dn"
	AttrLDAPResult = "ldap.result"
	AttrLDAPGroups = "ldap.group_count"

	AttrCertSubject = "tls.cert.subject"
	AttrCertSerial  = "tls.cert.serial"

	AttrClientIP = "client.ip"
)

func Realm(name string) attribute.KeyValue      { return attribute.String(AttrRealm, name) }
func Username(name string) attribute.KeyValue   { return attribute.String(AttrUsername, name) }
func Outcome(outcome string) attribute.KeyValue { return attribute.String(AttrOutcome, outcome) }
func UserCount(n int) attribute.KeyValue        { return attribute.Int(AttrUserCount, n) }
func Path(p string) attribute.KeyValue          { return attribute.String(AttrPath, p) }
func ClientIP(ip string) attribute.KeyValue     { return attribute.String(AttrClientIP, ip) }

// StartRealmSpan starts a span for a realm operation such as
// "authenticate" or "reload".
func StartRealmSpan(ctx context.Context, realm, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{Realm(realm)}, attrs...)
	return StartSpan(ctx, "realm."+operation, trace.WithAttributes(all...))
}

// StartLDAPSpan starts a client span for a directory search.
func StartLDAPSpan(ctx context.Context, operation, baseDN, userDN string) (context.Context, trace.Span) {
	return StartSpan(ctx, "ldap."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(AttrLDAPBaseDN, baseDN),
			attribute.String(AttrLDAPUserDN, userDN),
		),
	)
}

// StartTrustSpan starts a span for a certificate trust decision.
func StartTrustSpan(ctx context.Context, subject, serial string) (context.Context, trace.Span) {
	return StartSpan(ctx, "tls.verify_trust",
		trace.WithAttributes(
			attribute.String(AttrCertSubject, subject),
			attribute.String(AttrCertSerial, serial),
		),
	)
}
