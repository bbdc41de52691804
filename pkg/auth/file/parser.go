package file

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/marmos91/filerealm/internal/logger"
)

// ParseMode selects how Parse treats unreadable files.
type ParseMode int

const (
	// Strict returns decode and I/O failures to the caller.
	Strict ParseMode = iota

	// Lenient logs decode and I/O failures and yields an empty snapshot.
	Lenient
)

func (m ParseMode) String() string {
	if m == Lenient {
		return "lenient"
	}
	return "strict"
}

var (
	// ErrDecode indicates the file content is not valid UTF-8 text.
	ErrDecode = errors.New("users file is not valid UTF-8 text")

	// ErrIO indicates the file exists but could not be read.
	ErrIO = errors.New("users file could not be read")
)

// DecodeError reports undecodable file content.
type DecodeError struct {
	Path   string
	Offset int
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode %s: %s at byte %d", e.Path, e.Reason, e.Offset)
}

func (e *DecodeError) Unwrap() error { return ErrDecode }

// IOError reports a read failure other than a missing file.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("cannot read %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() []error { return []error{ErrIO, e.Err} }

// Report is the detailed result of parsing a users file.
type Report struct {
	Snapshot *Snapshot

	// Skipped holds the 1-based numbers of malformed lines.
	Skipped []int

	// Duplicates lists usernames defined more than once (last one wins).
	Duplicates []string
}

// Parse reads a users file of "username:secretHash" lines.
//
// A missing file yields an empty snapshot in both modes.
func Parse(path string, mode ParseMode) (*Snapshot, error) {
	r, err := ParseWithReport(path, mode)
	if err != nil {
		return nil, err
	}
	return r.Snapshot, nil
}

// ParseWithReport is Parse plus the line-level details used by tooling.
func ParseWithReport(path string, mode ParseMode) (*Report, error) {
	r, err := parseFile(path)
	if err == nil {
		return r, nil
	}
	if mode == Strict {
		return nil, err
	}
	logger.Error("failed to parse users file",
		logger.KeyPath, path,
		logger.KeyError, err,
	)
	return &Report{Snapshot: EmptySnapshot()}, nil
}

// parseLenient is the store's load path: it never fails, but returns the
// swallowed error so callers can record it.
func parseLenient(path string) (*Snapshot, error) {
	r, err := parseFile(path)
	if err != nil {
		logger.Error("failed to parse users file",
			logger.KeyPath, path,
			logger.KeyError, err,
		)
		return EmptySnapshot(), err
	}
	return r.Snapshot, nil
}

func parseFile(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Debug("parsed [0] users", logger.KeyPath, path, logger.KeyCount, 0)
			return &Report{Snapshot: EmptySnapshot()}, nil
		}
		return nil, &IOError{Path: path, Err: err}
	}

	if off, reason, ok := checkText(data); !ok {
		return nil, &DecodeError{Path: path, Offset: off, Reason: reason}
	}

	r := parseLines(path, data)
	n := r.Snapshot.Len()
	logger.Debug(fmt.Sprintf("parsed [%d] users", n), logger.KeyPath, path, logger.KeyCount, n)
	return r, nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func parseLines(path string, data []byte) *Report {
	data = bytes.TrimPrefix(data, utf8BOM)

	users := make(map[string]string)
	r := &Report{}
	for i, raw := range strings.Split(string(data), "\n") {
		lineNo := i + 1
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		name, secret, found := strings.Cut(line, ":")
		name = strings.TrimSpace(name)
		if !found || name == "" {
			logger.Warn("invalid entry in users file",
				logger.KeyPath, path,
				logger.KeyLine, lineNo,
			)
			r.Skipped = append(r.Skipped, lineNo)
			continue
		}

		secret = strings.TrimSpace(secret)
		if secret == "" {
			logger.Debug("skipping user with empty secret",
				logger.KeyPath, path,
				logger.KeyLine, lineNo,
				logger.KeyUsername, name,
			)
			continue
		}

		if _, dup := users[name]; dup {
			r.Duplicates = append(r.Duplicates, name)
		}
		users[name] = secret
	}

	r.Snapshot = &Snapshot{users: users}
	return r
}

// checkText verifies data is UTF-8 without NUL bytes. On failure it returns
// the byte offset and a reason.
func checkText(data []byte) (int, string, bool) {
	for i := 0; i < len(data); {
		if data[i] == 0 {
			return i, "NUL byte", false
		}
		c, size := utf8.DecodeRune(data[i:])
		if c == utf8.RuneError && size <= 1 {
			return i, "invalid UTF-8 sequence", false
		}
		i += size
	}
	return 0, "", true
}
