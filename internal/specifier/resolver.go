package specifier

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/asaddevil123/Replete/internal/replerr"
)

// BuiltinScheme prefixes locators for platform builtin modules.
const BuiltinScheme = "node:"

// Resolver implements C1 against the local filesystem. It carries no
// mutable state: resolution is a pure function of the filesystem it
// touches (spec §8 invariant 7, "Resolver determinism").
type Resolver struct{}

// Resolve maps (specifier, parentLocator) to a locator, per spec §4.1.
func (Resolver) Resolve(specifier, parentLocator string) (string, error) {
	switch Classify(specifier) {
	case KindBuiltin:
		return BuiltinScheme + strings.TrimPrefix(specifier, "node:"), nil

	case KindQualified:
		// Already a locator (http(s)://, data:, an explicit file://, ...).
		return specifier, nil

	case KindRelative:
		parentPath, err := localPath(parentLocator)
		if err != nil {
			return "", &replerr.ResolveError{Specifier: specifier, Parent: parentLocator, Reason: err.Error()}
		}
		joined := filepath.Join(filepath.Dir(parentPath), specifier)
		return canonicalLocator(joined), nil

	case KindAbsolute:
		return canonicalLocator(specifier), nil

	default: // KindBare
		return resolveBare(specifier, parentLocator)
	}
}

func resolveBare(specifier, parentLocator string) (string, error) {
	pkgName, subpath := SplitPackageSpecifier(specifier)

	parentPath, err := localPath(parentLocator)
	if err != nil {
		return "", &replerr.ResolveError{Specifier: specifier, Parent: parentLocator, Reason: err.Error()}
	}

	dir := filepath.Dir(parentPath)
	for {
		manifestPath := filepath.Join(dir, "node_modules", pkgName, "package.json")
		if data, err := os.ReadFile(manifestPath); err == nil {
			var manifest Manifest
			if jsonErr := json.Unmarshal(data, &manifest); jsonErr != nil {
				return "", &replerr.ResolveError{Specifier: specifier, Parent: parentLocator, Reason: "malformed package.json: " + jsonErr.Error()}
			}
			entry, ok := resolveEntry(&manifest, subpath)
			if !ok {
				return "", &replerr.ResolveError{Specifier: specifier, Parent: parentLocator, Reason: "Not exported."}
			}
			pkgDir := filepath.Dir(manifestPath)
			resolved := filepath.Join(pkgDir, entry)
			return canonicalLocator(resolved), nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", &replerr.ResolveError{Specifier: specifier, Parent: parentLocator, Reason: "Package not found."}
		}
		dir = parent
	}
}

// localPath strips the file:// scheme from a locator, returning a plain
// filesystem path.
func localPath(locator string) (string, error) {
	if strings.HasPrefix(locator, "file://") {
		return strings.TrimPrefix(locator, "file://"), nil
	}
	if strings.Contains(locator, "://") {
		return "", &replerr.ResolveError{Parent: locator, Reason: "parent locator is not file-backed"}
	}
	return locator, nil
}

// canonicalLocator resolves symlinks (spec §4.1 step 5) and returns a
// file:// locator. If canonicalization fails, the non-canonical path is
// returned unchanged, per spec's explicit fallback.
func canonicalLocator(path string) string {
	if real, err := filepath.EvalSymlinks(path); err == nil {
		path = real
	}
	path = filepath.ToSlash(path)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "file://" + path
}
