package logger

import (
	"log/slog"
	"time"
)

// Standard field keys. Use these consistently so log queries work across
// packages.
const (
	// Tracing
	KeyTraceID   = "trace_id"
	KeySpanID    = "span_id"
	KeyRequestID = "request_id"

	// Realm and identity
	KeyRealm    = "realm"
	KeyUsername = "username"
	KeyClientIP = "client_ip"
	KeyScheme   = "scheme" // password hash scheme
	KeyOutcome  = "outcome"
	KeyRoles    = "roles"
	KeyGroups   = "groups"

	// Files and reloads
	KeyPath     = "path"
	KeyLine     = "line"
	KeyCount    = "count"
	KeyInterval = "interval"

	// Directory lookups
	KeyUserDN  = "user_dn"
	KeyBaseDN  = "base_dn"
	KeyTimeout = "timeout"

	// Certificates
	KeySubject = "subject"
	KeySerial  = "serial"
	KeyNames   = "names"
	KeyTrusted = "trusted"

	// Generic
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
)

// Path returns an attr for a file path.
func Path(p string) slog.Attr { return slog.String(KeyPath, p) }

// Count returns an attr for an entry count.
func Count(n int) slog.Attr { return slog.Int(KeyCount, n) }

// Username returns an attr for a username.
func Username(name string) slog.Attr { return slog.String(KeyUsername, name) }

// Realm returns an attr for a realm name.
func Realm(name string) slog.Attr { return slog.String(KeyRealm, name) }

// Err returns an attr for an error. A nil error yields an empty attr,
// which handlers drop.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// DurationMs returns an attr with the elapsed time since start in milliseconds.
func DurationMs(start time.Time) slog.Attr {
	return slog.Float64(KeyDurationMs, Duration(start))
}

// Strings returns an attr holding a string slice.
func Strings(key string, v []string) slog.Attr {
	return slog.Any(key, v)
}
