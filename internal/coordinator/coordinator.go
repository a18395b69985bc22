// Package coordinator implements C7, the REPL coordinator: the glue that
// takes one evaluation request (source, parent locator, scope), runs it
// through C2 (analyzer), C4 (registry), C3 (replizer), and C6 (padawan),
// and reports back the evaluation or exception (spec §4.7).
package coordinator

import (
	"context"
	"errors"
	"sync"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/asaddevil123/Replete/internal/analyzer"
	"github.com/asaddevil123/Replete/internal/jsparse"
	"github.com/asaddevil123/Replete/internal/padawan"
	"github.com/asaddevil123/Replete/internal/registry"
	"github.com/asaddevil123/Replete/internal/replerr"
	"github.com/asaddevil123/Replete/internal/replizer"
)

// CommandHook rewrites source before it's parsed (spec §4.7 step 1,
// "external command hook").
type CommandHook func(source string) string

// SpecifyHook converts a resolved, versionized file:// locator into the
// URL the specific padawan variant will actually request — an HTTP URL
// for a CMDL/WEBL padawan fetching through C5, or the file locator itself
// unchanged when a padawan can dereference it directly (spec §4.7 step 3,
// "converts between file URLs and the HTTP URL the specific padawan will
// request").
type SpecifyHook func(locator string) string

// Coordinator is one REPL's C7 instance, holding the registry, the
// padawan transport it dispatches to, and the two external hooks.
type Coordinator struct {
	Registry *registry.Registry
	Padawan  padawan.Padawan
	Command  CommandHook
	Specify  SpecifyHook
}

// Eval runs the full 5-step flow against one fragment of source, returning
// exactly one of (evaluation, exception) on a successful round-trip.
// Resolution/read/parse failures are returned as errors (ResolveError,
// ReadError, ParseError); a padawan exception is not an error (spec §7).
func (c *Coordinator) Eval(ctx context.Context, source, parentLocator, scope string) (evaluation, exception string, err error) {
	if c.Command != nil {
		source = c.Command(source)
	}

	prog, err := jsparse.Parse(source)
	if err != nil {
		return "", "", &replerr.ParseError{Locator: parentLocator, Err: err}
	}
	mod, top := analyzer.Analyze(prog)

	imports, err := c.resolveImports(ctx, mod, parentLocator)
	if err != nil {
		return "", "", err
	}
	dynamics, err := c.resolveDynamics(ctx, mod, parentLocator)
	if err != nil {
		return "", "", err
	}

	script := replizer.Replize(source, prog, mod, top, replizer.Options{
		Scope:            scope,
		ResolvedDynamics: dynamics,
	})
	if err := validateScript(script); err != nil {
		return "", "", &replerr.ParseError{Locator: parentLocator, Err: err}
	}

	report, err := c.Padawan.Eval(ctx, script, imports, top.Wait)
	if err != nil {
		return "", "", &replerr.TransportError{Reason: "eval", Err: err}
	}
	return report.Evaluation, report.Exception, nil
}

// resolveImports resolves and versionizes every static import in source
// order, then runs each through the specify hook — the ordering
// replizer.Replize assumes when it numbers bindings against $imports[i].
func (c *Coordinator) resolveImports(ctx context.Context, mod analyzer.ModuleAnalysis, parentLocator string) ([]string, error) {
	imports := make([]string, len(mod.Imports))
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for i, imp := range mod.Imports {
		i, imp := i, imp
		wg.Add(1)
		go func() {
			defer wg.Done()
			loc, err := c.Registry.ResolveAndVersionize(ctx, imp.Source, parentLocator)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = wrapResolveErr(imp.Source, parentLocator, err)
				}
				return
			}
			imports[i] = c.specify(loc)
		}()
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return imports, nil
}

// resolveDynamics resolves and versionizes every dynamic-import-like site
// (import(), import.meta.resolve, new URL(..., import.meta.url)) in the
// same order jsparse recorded them in prog.Dynamics, which is the order
// replizer.Options.ResolvedDynamics must match.
func (c *Coordinator) resolveDynamics(ctx context.Context, mod analyzer.ModuleAnalysis, parentLocator string) ([]string, error) {
	resolved := make([]string, len(mod.Dynamics))
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for i, d := range mod.Dynamics {
		i, d := i, d
		wg.Add(1)
		go func() {
			defer wg.Done()
			loc, err := c.Registry.ResolveAndVersionize(ctx, d.Value, parentLocator)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = wrapResolveErr(d.Value, parentLocator, err)
				}
				return
			}
			resolved[i] = c.specify(loc)
		}()
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return resolved, nil
}

// wrapResolveErr passes an already-typed replerr error straight through
// (a ReadError surfacing partway through dependency hashing stays a
// ReadError) and only wraps genuinely untyped failures as ResolveError.
func wrapResolveErr(specifier, parent string, err error) error {
	var resolveErr *replerr.ResolveError
	var readErr *replerr.ReadError
	if errors.As(err, &resolveErr) || errors.As(err, &readErr) {
		return err
	}
	return &replerr.ResolveError{Specifier: specifier, Parent: parent, Reason: err.Error()}
}

func (c *Coordinator) specify(locator string) string {
	if c.Specify == nil {
		return locator
	}
	return c.Specify(locator)
}

// validateScript catches a REPL-ization bug (a malformed harness) before
// it ever reaches a padawan, the same defense-in-depth the teacher's
// handleSource applies to every file it serves: run it through esbuild's
// parser with output discarded, silenced so a caught error doesn't also
// print to the coordinator's own stderr.
func validateScript(script string) error {
	result := api.Transform(script, api.TransformOptions{
		Loader:   api.LoaderJS,
		LogLevel: api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return errors.New(result.Errors[0].Text)
	}
	return nil
}
