package hostdefault

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/asaddevil123/Replete/internal/replerr"
)

func TestReadFileWithinRoot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.js")
	if err := os.WriteFile(path, []byte("export const x = 1;"), 0o644); err != nil {
		t.Fatal(err)
	}
	h, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	src, err := h.ReadFile("file://" + filepath.ToSlash(path))
	if err != nil {
		t.Fatal(err)
	}
	if src != "export const x = 1;" {
		t.Errorf("src = %q", src)
	}
	if !h.IsJS("file://" + filepath.ToSlash(path)) {
		t.Error("expected a.js to be recognized as JS")
	}
}

func TestReadFileOutsideRootIsForbidden(t *testing.T) {
	dir := t.TempDir()
	h, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	outside := filepath.Join(t.TempDir(), "evil.js")
	os.WriteFile(outside, []byte("x"), 0o644)

	_, err = h.ReadFile("file://" + filepath.ToSlash(outside))
	var forbidden *replerr.ForbiddenError
	if err == nil {
		t.Fatal("expected ForbiddenError")
	}
	if !asForbidden(err, &forbidden) {
		t.Errorf("err = %v, want *replerr.ForbiddenError", err)
	}
}

func asForbidden(err error, target **replerr.ForbiddenError) bool {
	fe, ok := err.(*replerr.ForbiddenError)
	if ok {
		*target = fe
	}
	return ok
}

func TestWatchFiresOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.js")
	if err := os.WriteFile(path, []byte("1"), 0o644); err != nil {
		t.Fatal(err)
	}
	h, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	fired := make(chan struct{}, 1)
	if err := h.Watch("file://"+filepath.ToSlash(path), func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	}); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte("2"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("watch callback never fired")
	}
}
