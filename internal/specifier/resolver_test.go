package specifier

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestResolveConditionalExport(t *testing.T) {
	// S1 — conditional export.
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "b.js"), "")
	writeFile(t, filepath.Join(root, "a", "node_modules", "exports", "package.json"),
		`{"exports": {".": {"import": "./dist/import_default.js", "require": "./dist/require.js"}}}`)
	writeFile(t, filepath.Join(root, "a", "node_modules", "exports", "dist", "import_default.js"), "")

	r := Resolver{}
	got, err := r.Resolve("exports", "file://"+filepath.Join(root, "a", "b.js"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := "file://" + filepath.ToSlash(filepath.Join(root, "a", "node_modules", "exports", "dist", "import_default.js"))
	if got != want {
		t.Errorf("Resolve() = %q, want %q", got, want)
	}
}

func TestResolveGlobExport(t *testing.T) {
	// S2 — glob export, positive and negative cases.
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "b.js"), "")
	writeFile(t, filepath.Join(root, "a", "node_modules", "exports", "package.json"),
		`{"exports": {"./wildcard/*": "./dist/wildcard/*"}}`)
	writeFile(t, filepath.Join(root, "a", "node_modules", "exports", "dist", "wildcard", "img.svg"), "")

	r := Resolver{}
	got, err := r.Resolve("exports/wildcard/img.svg", "file://"+filepath.Join(root, "a", "b.js"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := "file://" + filepath.ToSlash(filepath.Join(root, "a", "node_modules", "exports", "dist", "wildcard", "img.svg"))
	if got != want {
		t.Errorf("Resolve() = %q, want %q", got, want)
	}

	writeFile(t, filepath.Join(root, "a", "node_modules", "wildcardext", "package.json"),
		`{"exports": {"./wildcard_ext/*.js": "./dist/wildcard_ext/*.js"}}`)
	_, err = r.Resolve("wildcardext/wildcard_ext/img.wrongext", "file://"+filepath.Join(root, "a", "b.js"))
	if err == nil {
		t.Error("Resolve() of mismatched extension should fail, got nil error")
	}
}

func TestResolveParentDirectorySearch(t *testing.T) {
	// S3 — package only visible from a descendant parent.
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "b.js"), "")
	writeFile(t, filepath.Join(root, "a", "b", "c", "d.js"), "")
	writeFile(t, filepath.Join(root, "a", "b", "c", "node_modules", "nested", "package.json"),
		`{"main": "./index.js"}`)
	writeFile(t, filepath.Join(root, "a", "b", "c", "node_modules", "nested", "index.js"), "")

	r := Resolver{}
	if _, err := r.Resolve("nested", "file://"+filepath.Join(root, "a", "b.js")); err == nil {
		t.Error("expected not-found resolving from a.js, got nil error")
	}
	got, err := r.Resolve("nested", "file://"+filepath.Join(root, "a", "b", "c", "d.js"))
	if err != nil {
		t.Fatalf("Resolve from d.js: %v", err)
	}
	want := "file://" + filepath.ToSlash(filepath.Join(root, "a", "b", "c", "node_modules", "nested", "index.js"))
	if got != want {
		t.Errorf("Resolve() = %q, want %q", got, want)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		spec string
		want Kind
	}{
		{"fs", KindBuiltin},
		{"node:fs", KindBuiltin},
		{"./a.js", KindRelative},
		{"../a.js", KindRelative},
		{"/abs/a.js", KindAbsolute},
		{"https://cdn.example.com/lib.js", KindQualified},
		{"data:text/javascript,export default 42", KindQualified},
		{"react", KindBare},
		{"@scope/pkg", KindBare},
	}
	for _, tt := range tests {
		if got := Classify(tt.spec); got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.spec, got, tt.want)
		}
	}
}
