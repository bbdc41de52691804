package file

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/marmos91/filerealm/internal/logger"
)

// RoleSnapshot is an immutable user -> roles mapping built from a
// users_roles file of "role:user1,user2" lines.
type RoleSnapshot struct {
	roles map[string][]string
}

var emptyRoles = &RoleSnapshot{roles: map[string][]string{}}

// Roles returns the sorted roles of user. The returned slice is a copy.
func (s *RoleSnapshot) Roles(user string) []string {
	return slices.Clone(s.roles[user])
}

// Len returns the number of users with at least one role.
func (s *RoleSnapshot) Len() int {
	return len(s.roles)
}

// ParseRoles reads a users_roles file. Modes behave as in Parse.
func ParseRoles(path string, mode ParseMode) (*RoleSnapshot, error) {
	snap, err := parseRolesFile(path)
	if err == nil {
		return snap, nil
	}
	if mode == Strict {
		return nil, err
	}
	logger.Error("failed to parse users_roles file",
		logger.KeyPath, path,
		logger.KeyError, err,
	)
	return emptyRoles, nil
}

func parseRolesFile(path string) (*RoleSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return emptyRoles, nil
		}
		return nil, &IOError{Path: path, Err: err}
	}
	if off, reason, ok := checkText(data); !ok {
		return nil, &DecodeError{Path: path, Offset: off, Reason: reason}
	}

	byUser := make(map[string][]string)
	text := strings.TrimPrefix(string(data), string(utf8BOM))
	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		role, members, found := strings.Cut(line, ":")
		role = strings.TrimSpace(role)
		if !found || role == "" {
			logger.Warn("invalid entry in users_roles file",
				logger.KeyPath, path,
				logger.KeyLine, i+1,
			)
			continue
		}

		for _, u := range strings.Split(members, ",") {
			u = strings.TrimSpace(u)
			if u == "" || slices.Contains(byUser[u], role) {
				continue
			}
			byUser[u] = append(byUser[u], role)
		}
	}
	for _, roles := range byUser {
		slices.Sort(roles)
	}

	logger.Debug(fmt.Sprintf("parsed roles for [%d] users", len(byUser)),
		logger.KeyPath, path,
		logger.KeyCount, len(byUser),
	)
	return &RoleSnapshot{roles: byUser}, nil
}

// RolesStore hot-reloads a users_roles file with the same rules as Store.
type RolesStore struct {
	path string
	opts storeOptions

	current  atomic.Pointer[RoleSnapshot]
	reloadMu sync.Mutex

	reg       io.Closer
	closeOnce sync.Once
}

// NewRolesStore registers for change notifications, then loads path
// leniently, in the same order as NewStore.
func NewRolesStore(path string, n Notifier, opts ...StoreOption) (*RolesStore, error) {
	if n == nil {
		return nil, errors.New("roles store: nil notifier")
	}

	s := &RolesStore{path: path, opts: applyOptions(opts)}
	s.current.Store(emptyRoles)

	reg, err := n.Watch(path, s.Reload)
	if err != nil {
		return nil, fmt.Errorf("roles store: watch %s: %w", path, err)
	}
	s.reg = reg

	s.reloadMu.Lock()
	snap, _ := ParseRoles(path, Lenient)
	s.current.Store(snap)
	s.reloadMu.Unlock()
	return s, nil
}

// Roles returns the sorted roles of user in the current snapshot.
func (s *RolesStore) Roles(user string) []string {
	return s.current.Load().Roles(user)
}

// Snapshot returns the currently published role snapshot.
func (s *RolesStore) Snapshot() *RoleSnapshot {
	return s.current.Load()
}

// Reload re-parses the file leniently, publishes, then runs the callback.
func (s *RolesStore) Reload() {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	snap, _ := ParseRoles(s.path, Lenient)
	s.current.Store(snap)

	logger.Info("users_roles file reloaded",
		logger.KeyRealm, s.opts.realm,
		logger.KeyPath, s.path,
		logger.KeyCount, snap.Len(),
	)

	if s.opts.onReloaded != nil {
		s.opts.onReloaded()
	}
}

// Close stops change notifications. Idempotent.
func (s *RolesStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.reg != nil {
			err = s.reg.Close()
		}
	})
	return err
}
