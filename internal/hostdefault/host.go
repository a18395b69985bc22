// Package hostdefault is cmd/replete's concrete instance of the host
// capabilities spec §6 leaves to the embedder: reading files rooted at a
// sandbox directory, detecting MIME types, and watching locators for
// change so the registry can be told to invalidate. It implements both
// registry.Host and sourceserver.Host.
package hostdefault

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/gabriel-vasile/mimetype"

	"github.com/asaddevil123/Replete/internal/replerr"
)

// Host roots every locator at a single directory; any resolved path
// falling outside it is rejected with a ForbiddenError (spec §7).
type Host struct {
	root    string
	watcher *fsnotify.Watcher

	mu        sync.Mutex
	callbacks map[string][]func()
}

// New starts a Host rooted at root and its background filesystem watcher.
// Callers must Close it when done.
func New(root string) (*Host, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("hostdefault: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("hostdefault: %w", err)
	}
	h := &Host{root: abs, watcher: watcher, callbacks: map[string][]func(){}}
	go h.watchLoop()
	return h, nil
}

// ReadFile reads locator's content as text, rejecting anything outside root.
func (h *Host) ReadFile(locator string) (string, error) {
	path, err := h.localPath(locator)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", &replerr.ReadError{Locator: locator, Err: err}
	}
	return string(b), nil
}

// Mime sniffs locator's content type, with an extension override for the
// handful of JS flavors mimetype's sniffing doesn't distinguish from plain
// text (a bare `export const x = 1;` has no magic bytes to sniff).
func (h *Host) Mime(locator string) (string, error) {
	path, err := h.localPath(locator)
	if err != nil {
		return "", err
	}
	switch filepath.Ext(path) {
	case ".js", ".mjs", ".jsx", ".ts", ".tsx":
		return "application/javascript", nil
	}
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "", &replerr.ReadError{Locator: locator, Err: err}
	}
	return stripParams(mt.String()), nil
}

// IsJS reports whether locator's detected MIME type names a JS flavor —
// the predicate spec §4.4 gates hashing/versioning on ("If L is not a
// file-backed JS module, yields ⊥").
func (h *Host) IsJS(locator string) bool {
	mime, err := h.Mime(locator)
	if err != nil {
		return false
	}
	return strings.Contains(mime, "javascript") || strings.Contains(mime, "ecmascript")
}

// Watch registers onChange to fire on every future write/remove/rename of
// locator's file, the host capability spec §6 names `watch(locator) →
// fulfills on next change`. Neither servecmd nor evalcmd registers a watch,
// and nothing outside the tests calls Registry.Invalidate, so registry
// caches are not dropped when a file changes on disk. A locator that can't
// be watched (e.g. doesn't exist yet) is reported as an error.
func (h *Host) Watch(locator string, onChange func()) error {
	path, err := h.localPath(locator)
	if err != nil {
		return err
	}
	h.mu.Lock()
	_, already := h.callbacks[path]
	h.callbacks[path] = append(h.callbacks[path], onChange)
	h.mu.Unlock()
	if already {
		return nil
	}
	if err := h.watcher.Add(path); err != nil {
		return fmt.Errorf("hostdefault: watch %q: %w", locator, err)
	}
	return nil
}

// Close stops the background watcher.
func (h *Host) Close() error { return h.watcher.Close() }

func (h *Host) watchLoop() {
	for {
		select {
		case ev, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			h.mu.Lock()
			cbs := append([]func(){}, h.callbacks[ev.Name]...)
			h.mu.Unlock()
			for _, cb := range cbs {
				cb()
			}
		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			fmt.Fprintf(os.Stderr, "  \033[2m[watch] error: %v\033[0m\n", err)
		}
	}
}

func (h *Host) localPath(locator string) (string, error) {
	p := strings.TrimPrefix(locator, "file://")
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", &replerr.ReadError{Locator: locator, Err: err}
	}
	rel, err := filepath.Rel(h.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &replerr.ForbiddenError{Locator: locator, Root: h.root}
	}
	return abs, nil
}

func stripParams(mime string) string {
	if i := strings.Index(mime, ";"); i >= 0 {
		return strings.TrimSpace(mime[:i])
	}
	return mime
}
