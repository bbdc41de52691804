package file

import (
	"maps"
	"slices"
)

// Snapshot is an immutable username -> secret hash mapping.
type Snapshot struct {
	users map[string]string
}

var emptySnapshot = &Snapshot{users: map[string]string{}}

// EmptySnapshot returns the shared empty snapshot.
func EmptySnapshot() *Snapshot {
	return emptySnapshot
}

// NewSnapshot copies users into a new snapshot.
func NewSnapshot(users map[string]string) *Snapshot {
	return &Snapshot{users: maps.Clone(users)}
}

// Len returns the number of users.
func (s *Snapshot) Len() int {
	return len(s.users)
}

// Has reports whether name is present.
func (s *Snapshot) Has(name string) bool {
	_, ok := s.users[name]
	return ok
}

// Lookup returns the stored secret hash for name.
func (s *Snapshot) Lookup(name string) (string, bool) {
	h, ok := s.users[name]
	return h, ok
}

// Usernames returns the sorted usernames.
func (s *Snapshot) Usernames() []string {
	return slices.Sorted(maps.Keys(s.users))
}
