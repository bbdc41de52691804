package file

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/marmos91/filerealm/internal/logger"
	"github.com/marmos91/filerealm/pkg/auth"
	"github.com/marmos91/filerealm/pkg/auth/hasher"
	"github.com/marmos91/filerealm/pkg/metrics"
	"github.com/marmos91/filerealm/pkg/watcher"
)

// Notifier delivers change callbacks for a single file.
type Notifier = watcher.Notifier

// StoreOption configures a Store or RolesStore.
type StoreOption func(*storeOptions)

type storeOptions struct {
	onReloaded func()
	metrics    metrics.RealmMetrics
	realm      string
}

// WithOnReloaded sets a callback invoked once after every published reload.
func WithOnReloaded(fn func()) StoreOption {
	return func(o *storeOptions) { o.onReloaded = fn }
}

// WithMetrics attaches realm metrics. A nil value disables recording.
func WithMetrics(m metrics.RealmMetrics) StoreOption {
	return func(o *storeOptions) { o.metrics = m }
}

// WithRealmName sets the realm label used in logs and metrics.
func WithRealmName(name string) StoreOption {
	return func(o *storeOptions) { o.realm = name }
}

func applyOptions(opts []StoreOption) storeOptions {
	o := storeOptions{realm: "file"}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Store holds the current users snapshot and swaps it when the file changes.
//
// Reads never block: they load the published snapshot through an atomic
// pointer. Reloads are serialized by reloadMu and always publish, so a file
// that becomes unreadable empties the store instead of keeping stale users.
//
// Thread Safety: all methods are safe for concurrent use.
type Store struct {
	path string
	opts storeOptions

	current  atomic.Pointer[Snapshot]
	reloadMu sync.Mutex

	reg       io.Closer
	closeOnce sync.Once
}

// NewStore registers for change notifications on path, then loads it
// leniently.
//
// Construction only fails when the notifier rejects the registration.
func NewStore(path string, n Notifier, opts ...StoreOption) (*Store, error) {
	if n == nil {
		return nil, errors.New("file store: nil notifier")
	}

	s := &Store{path: path, opts: applyOptions(opts)}
	s.current.Store(EmptySnapshot())

	// Register before the first parse: the notifier's baseline is taken at
	// registration, so any later edit is either in this parse or reported.
	reg, err := n.Watch(path, s.onFileChanged)
	if err != nil {
		return nil, fmt.Errorf("file store: watch %s: %w", path, err)
	}
	s.reg = reg

	s.reloadMu.Lock()
	snap, err := parseLenient(path)
	s.current.Store(snap)
	s.observeReload(snap, err)
	s.reloadMu.Unlock()

	logger.Info("users file loaded",
		logger.KeyRealm, s.opts.realm,
		logger.KeyPath, path,
		logger.KeyCount, snap.Len(),
	)
	return s, nil
}

// Path returns the users file path.
func (s *Store) Path() string {
	return s.path
}

// Snapshot returns the currently published snapshot.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// UsersCount returns the number of users in the current snapshot.
func (s *Store) UsersCount() int {
	return s.current.Load().Len()
}

// UserExists reports whether name is in the current snapshot.
func (s *Store) UserExists(name string) bool {
	return s.current.Load().Has(name)
}

// LookupSecretHash returns the stored secret hash for name.
func (s *Store) LookupSecretHash(name string) (string, bool) {
	return s.current.Load().Lookup(name)
}

// VerifyPassword checks password against the stored hash for name.
//
// An unknown user fails without running the verifier. The snapshot is read
// once, so a concurrent reload cannot mix old and new state.
func (s *Store) VerifyPassword(name string, password []byte) auth.Result {
	return s.verifyIn(s.current.Load(), name, password)
}

// verifyIn is VerifyPassword against a snapshot the caller already holds.
func (s *Store) verifyIn(snap *Snapshot, name string, password []byte) auth.Result {
	stored, ok := snap.Lookup(name)
	if !ok {
		return auth.Failure("unknown user")
	}
	if !hasher.Verify(stored, password) {
		return auth.Failure("password mismatch")
	}
	return auth.Success(&auth.User{Username: name, Realm: s.opts.realm})
}

// Reload re-parses the file leniently and publishes the result, then runs
// the reload callback. Concurrent calls are serialized.
func (s *Store) Reload() {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	snap, err := parseLenient(s.path)
	s.current.Store(snap)
	s.observeReload(snap, err)

	logger.Info("users file reloaded",
		logger.KeyRealm, s.opts.realm,
		logger.KeyPath, s.path,
		logger.KeyCount, snap.Len(),
	)

	if s.opts.onReloaded != nil {
		s.opts.onReloaded()
	}
}

// Close stops change notifications. Idempotent.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.reg != nil {
			err = s.reg.Close()
		}
	})
	return err
}

func (s *Store) onFileChanged() {
	logger.Debug("users file changed", logger.KeyPath, s.path)
	s.Reload()
}

func (s *Store) observeReload(snap *Snapshot, err error) {
	if s.opts.metrics != nil {
		s.opts.metrics.ObserveReload(s.opts.realm, snap.Len(), err)
	}
}
