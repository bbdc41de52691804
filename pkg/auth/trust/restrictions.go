package trust

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/marmos91/filerealm/internal/logger"
	"github.com/marmos91/filerealm/pkg/metrics"
	"github.com/marmos91/filerealm/pkg/watcher"
)

// restrictionsKey is the flat key used by restriction files.
const restrictionsKey = "trust.restrictions.names"

// restrictionsFile accepts both the flat key and its nested form:
//
//	trust.restrictions.names: ["node-*.cluster"]
//
//	trust:
//	  restrictions:
//	    names: ["node-*.cluster"]
type restrictionsFile struct {
	Flat   []string `yaml:"trust.restrictions.names"`
	Nested struct {
		Restrictions struct {
			Names []string `yaml:"names"`
		} `yaml:"restrictions"`
	} `yaml:"trust"`
}

// LoadNames reads a restrictions file.
func LoadNames(path string) (*Names, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("trust: read restrictions %s: %w", path, err)
	}

	var f restrictionsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("trust: parse restrictions %s: %w", path, err)
	}
	patterns := append(f.Flat, f.Nested.Restrictions.Names...)
	if f.Flat == nil && f.Nested.Restrictions.Names == nil {
		return nil, fmt.Errorf("trust: restrictions %s: missing %q", path, restrictionsKey)
	}
	return NewNames(patterns...)
}

// Restrictions keeps the trusted names of a file current. A file that cannot
// be read or parsed results in no trusted names, so every certificate is
// rejected until the file is fixed.
//
// Thread Safety: all methods are safe for concurrent use.
type Restrictions struct {
	path    string
	metrics metrics.TrustMetrics

	current  atomic.Pointer[Names]
	reloadMu sync.Mutex

	reg       io.Closer
	closeOnce sync.Once
}

// NewRestrictions registers for change notifications on path, then loads
// it. m may be nil.
func NewRestrictions(path string, n watcher.Notifier, m metrics.TrustMetrics) (*Restrictions, error) {
	if n == nil {
		return nil, errors.New("trust: nil notifier")
	}
	r := &Restrictions{path: path, metrics: m}
	r.current.Store(NoNames)

	// Watch first so an edit racing the initial load is never folded into
	// the notifier's baseline.
	reg, err := n.Watch(path, r.Reload)
	if err != nil {
		return nil, fmt.Errorf("trust: watch %s: %w", path, err)
	}
	r.reg = reg
	r.Reload()
	return r, nil
}

// Current returns the trusted names in effect.
func (r *Restrictions) Current() *Names {
	return r.current.Load()
}

// Reload re-reads the file and publishes the result.
func (r *Restrictions) Reload() {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()
	r.load()
}

func (r *Restrictions) load() {
	names, err := LoadNames(r.path)
	if err != nil {
		logger.Error("failed to load trust restrictions, rejecting all certificates",
			logger.KeyPath, r.path,
			logger.KeyError, err,
		)
		names = NoNames
	} else {
		logger.Info("trust restrictions loaded",
			logger.KeyPath, r.path,
			logger.KeyTrusted, names.Patterns(),
		)
	}
	r.current.Store(names)
	if r.metrics != nil {
		r.metrics.SetTrustedNames(names.Len())
	}
}

// Close stops change notifications. Idempotent.
func (r *Restrictions) Close() error {
	var err error
	r.closeOnce.Do(func() {
		if r.reg != nil {
			err = r.reg.Close()
		}
	})
	return err
}
