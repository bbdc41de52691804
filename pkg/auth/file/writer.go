package file

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/natefinch/atomic"
)

// ErrInvalidUsername is returned for names that cannot be stored in a users
// file (empty, containing ':' or whitespace).
var ErrInvalidUsername = errors.New("invalid username")

// ValidateUsername checks that name can be written to a users file.
func ValidateUsername(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidUsername)
	}
	if strings.ContainsRune(name, ':') {
		return fmt.Errorf("%w: %q contains ':'", ErrInvalidUsername, name)
	}
	if strings.HasPrefix(name, "#") {
		return fmt.Errorf("%w: %q starts with '#'", ErrInvalidUsername, name)
	}
	if strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: %q contains whitespace", ErrInvalidUsername, name)
	}
	return nil
}

type entryLine struct {
	raw    string
	name   string // empty for comments, blanks and malformed lines
	secret string
}

// Entries is an editable view of a users file that keeps comments, blank
// lines and ordering intact.
type Entries struct {
	lines []entryLine
}

func parseEntries(data []byte) *Entries {
	data = bytes.TrimPrefix(data, utf8BOM)
	text := strings.TrimRight(string(data), "\r\n")
	e := &Entries{}
	if text == "" {
		return e
	}
	for _, raw := range strings.Split(text, "\n") {
		raw = strings.TrimSuffix(raw, "\r")
		l := entryLine{raw: raw}
		trimmed := strings.TrimSpace(raw)
		if trimmed != "" && !strings.HasPrefix(trimmed, "#") {
			if name, secret, ok := strings.Cut(trimmed, ":"); ok {
				l.name = strings.TrimSpace(name)
				l.secret = strings.TrimSpace(secret)
			}
		}
		e.lines = append(e.lines, l)
	}
	return e
}

// Get returns the effective secret for name (the last definition).
func (e *Entries) Get(name string) (string, bool) {
	for i := len(e.lines) - 1; i >= 0; i-- {
		if e.lines[i].name == name && e.lines[i].secret != "" {
			return e.lines[i].secret, true
		}
	}
	return "", false
}

// Names returns usernames in file order, each once.
func (e *Entries) Names() []string {
	seen := make(map[string]bool)
	var names []string
	for _, l := range e.lines {
		if l.name == "" || l.secret == "" || seen[l.name] {
			continue
		}
		seen[l.name] = true
		names = append(names, l.name)
	}
	return names
}

// Set adds or replaces name. An existing user keeps its position and any
// earlier duplicate definitions are dropped. Reports whether the user is new.
func (e *Entries) Set(name, secret string) (bool, error) {
	if err := ValidateUsername(name); err != nil {
		return false, err
	}
	if strings.TrimSpace(secret) == "" || strings.ContainsAny(secret, "\r\n") {
		return false, errors.New("invalid secret hash")
	}

	last := -1
	for i, l := range e.lines {
		if l.name == name {
			last = i
		}
	}
	line := entryLine{raw: name + ":" + secret, name: name, secret: secret}
	if last < 0 {
		e.lines = append(e.lines, line)
		return true, nil
	}
	e.lines[last] = line
	e.lines = dropEntries(e.lines, name, last)
	return false, nil
}

// Remove deletes every definition of name. Reports whether any existed.
func (e *Entries) Remove(name string) bool {
	n := len(e.lines)
	e.lines = dropEntries(e.lines, name, -1)
	return len(e.lines) != n
}

func dropEntries(lines []entryLine, name string, keep int) []entryLine {
	out := lines[:0]
	for i, l := range lines {
		if l.name == name && i != keep {
			continue
		}
		out = append(out, l)
	}
	return out
}

func (e *Entries) bytes() []byte {
	var buf bytes.Buffer
	for _, l := range e.lines {
		buf.WriteString(l.raw)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// ReadEntries reads path strictly into an editable Entries. A missing file
// yields no entries.
func ReadEntries(path string) (*Entries, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Entries{}, nil
		}
		return nil, &IOError{Path: path, Err: err}
	}
	if off, reason, ok := checkText(data); !ok {
		return nil, &DecodeError{Path: path, Offset: off, Reason: reason}
	}
	return parseEntries(data), nil
}

// Update applies fn to the users file and replaces it atomically, so a
// watching store never observes a partially written file. Nothing is written
// when fn returns an error.
func Update(path string, fn func(*Entries) error) error {
	e, err := ReadEntries(path)
	if err != nil {
		return err
	}
	if err := fn(e); err != nil {
		return err
	}
	if err := atomic.WriteFile(path, bytes.NewReader(e.bytes())); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
