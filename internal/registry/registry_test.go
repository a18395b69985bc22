package registry

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type fakeHost struct{}

func (fakeHost) ReadFile(locator string) (string, error) {
	path := strings.TrimPrefix(locator, "file://")
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (fakeHost) IsJS(locator string) bool {
	return strings.HasSuffix(locator, ".js")
}

func locatorFor(path string) string {
	return "file://" + filepath.ToSlash(path)
}

func TestHashChangesWithDependency(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.js")
	b := filepath.Join(dir, "b.js")
	mustWrite(t, a, `import { x } from "./b.js"; x;`)
	mustWrite(t, b, `export const x = 1;`)

	reg := New(fakeHost{})
	ctx := context.Background()
	aLoc := locatorFor(a)
	bLoc := locatorFor(b)

	h1, ok, err := reg.Hash(ctx, aLoc)
	if err != nil || !ok {
		t.Fatalf("Hash(a) = %q, %v, %v", h1, ok, err)
	}

	mustWrite(t, b, `export const x = 2;`)
	reg.Invalidate(bLoc)

	h2, ok, err := reg.Hash(ctx, aLoc)
	if err != nil || !ok {
		t.Fatalf("Hash(a) after invalidate = %q, %v, %v", h2, ok, err)
	}
	if h1 == h2 {
		t.Error("hash(a) did not change after its dependency's content changed")
	}
}

func TestVersionMonotonicAndStable(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.js")
	mustWrite(t, a, `const x = 1;`)
	reg := New(fakeHost{})
	ctx := context.Background()
	loc := locatorFor(a)

	v0, err := reg.Version(ctx, loc)
	if err != nil || v0 != 0 {
		t.Fatalf("Version = %d, %v, want 0", v0, err)
	}
	v0again, err := reg.Version(ctx, loc)
	if err != nil || v0again != 0 {
		t.Fatalf("Version (repeat, unchanged) = %d, %v, want 0", v0again, err)
	}

	mustWrite(t, a, `const x = 2;`)
	reg.Invalidate(loc)
	v1, err := reg.Version(ctx, loc)
	if err != nil || v1 != 1 {
		t.Fatalf("Version after change = %d, %v, want 1", v1, err)
	}
}

func TestVersionizeFormat(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.js")
	mustWrite(t, a, `const x = 1;`)
	reg := New(fakeHost{})
	ctx := context.Background()
	loc := locatorFor(a)

	versioned, err := reg.Versionize(ctx, loc)
	if err != nil {
		t.Fatalf("Versionize: %v", err)
	}
	want := "file:///v0/" + reg.unguessable
	if !strings.HasPrefix(versioned, want) {
		t.Errorf("Versionize = %q, want prefix %q", versioned, want)
	}
	if !strings.HasSuffix(versioned, "/a.js") {
		t.Errorf("Versionize = %q, want suffix /a.js", versioned)
	}
}

func TestVersionizeNonJSPassesThrough(t *testing.T) {
	reg := New(fakeHost{})
	ctx := context.Background()
	got, err := reg.Versionize(ctx, "file:///tmp/x.png")
	if err != nil {
		t.Fatalf("Versionize: %v", err)
	}
	if got != "file:///tmp/x.png" {
		t.Errorf("Versionize(non-JS) = %q, want unchanged", got)
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
