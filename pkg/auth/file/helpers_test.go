package file

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf16"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/filerealm/internal/logger"
	"github.com/marmos91/filerealm/pkg/watcher"
)

// syncBuffer is a goroutine-safe log sink; reloads log from watcher
// goroutines while tests read the output.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// linesWith returns the log lines containing substr.
func (b *syncBuffer) linesWith(substr string) []string {
	var out []string
	for _, l := range strings.Split(b.String(), "\n") {
		if strings.Contains(l, substr) {
			out = append(out, l)
		}
	}
	return out
}

func captureLogs(t *testing.T) *syncBuffer {
	t.Helper()
	buf := &syncBuffer{}
	logger.InitWithWriter(buf, "DEBUG", "text", false)
	t.Cleanup(func() { logger.InitWithWriter(os.Stderr, "INFO", "text", false) })
	return buf
}

// copyFixture copies testdata/<name> into a temp dir and returns the copy.
func copyFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	dst := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(dst, data, 0o600))
	return dst
}

// utf16Content mimics a Java writer using UTF-16: big-endian with a BOM.
func utf16Content(s string) []byte {
	out := []byte{0xFE, 0xFF}
	for _, u := range utf16.Encode([]rune(s)) {
		out = append(out, byte(u>>8), byte(u))
	}
	return out
}

func writeTemp(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users")
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return path
}

func writeLines(t *testing.T, lines ...string) string {
	t.Helper()
	return writeTemp(t, []byte(strings.Join(lines, "\n")+"\n"))
}

// manualNotifier records handlers and fires them on demand.
type manualNotifier struct {
	mu       sync.Mutex
	handlers map[string]watcher.Handler
	closed   map[string]int
	err      error
}

func newManualNotifier() *manualNotifier {
	return &manualNotifier{handlers: map[string]watcher.Handler{}, closed: map[string]int{}}
}

func (n *manualNotifier) Watch(path string, h watcher.Handler) (io.Closer, error) {
	if n.err != nil {
		return nil, n.err
	}
	n.mu.Lock()
	n.handlers[path] = h
	n.mu.Unlock()
	return closerFunc(func() error {
		n.mu.Lock()
		defer n.mu.Unlock()
		n.closed[path]++
		delete(n.handlers, path)
		return nil
	}), nil
}

func (n *manualNotifier) fire(path string) {
	n.mu.Lock()
	h := n.handlers[path]
	n.mu.Unlock()
	if h != nil {
		h()
	}
}

func (n *manualNotifier) closeCount(path string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.closed[path]
}

// editingNotifier runs edit just before delegating the registration, which
// is the window between a constructor starting and the watcher taking its
// baseline.
type editingNotifier struct {
	watcher.Notifier
	edit func()
}

func (n *editingNotifier) Watch(path string, h watcher.Handler) (io.Closer, error) {
	n.edit()
	return n.Notifier.Watch(path, h)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// waitSignal waits for one value on ch or fails the test.
func waitSignal(t *testing.T, ch <-chan struct{}, d time.Duration, msg string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(d):
		t.Fatal(msg)
	}
}
