// Package evalcmd implements the `replete eval` CLI verb: a one-shot
// evaluation against a fresh CMDL padawan, for smoke-testing without a
// full host (SPEC_FULL supplemented feature #1).
package evalcmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/asaddevil123/Replete/internal/coordinator"
	"github.com/asaddevil123/Replete/internal/hostdefault"
	"github.com/asaddevil123/Replete/internal/nodechild"
	"github.com/asaddevil123/Replete/internal/padawan"
	"github.com/asaddevil123/Replete/internal/registry"
)

// Args configures one `eval` invocation.
type Args struct {
	Root    string
	Locator string
	Source  string
	File    string
	NodeBin string
}

// Result is the (evaluation, exception) pair a successful round-trip
// yields — exactly one is non-empty (spec §7).
type Result struct {
	Evaluation string
	Exception  string
}

// Run parses args, spawns a one-shot CMDL padawan, evaluates the fragment,
// tears the padawan down, and returns the result.
func Run(args Args) (Result, error) {
	source := args.Source
	if args.File != "" {
		b, err := os.ReadFile(args.File)
		if err != nil {
			return Result{}, fmt.Errorf("eval: %w", err)
		}
		source = string(b)
	}

	host, err := hostdefault.New(args.Root)
	if err != nil {
		return Result{}, err
	}
	defer host.Close()
	reg := registry.New(host)

	spawn, cleanup, err := nodechild.NewSpawnFunc(args.NodeBin)
	if err != nil {
		return Result{}, err
	}
	defer cleanup()

	cmdl, err := padawan.NewCMDL(spawn)
	if err != nil {
		return Result{}, err
	}
	defer cmdl.Destroy()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := cmdl.WaitConnected(ctx); err != nil {
		return Result{}, fmt.Errorf("eval: padawan never connected: %w", err)
	}

	co := &coordinator.Coordinator{Registry: reg, Padawan: cmdl}
	evaluation, exception, err := co.Eval(context.Background(), source, normalizeLocator(args.Locator), "")
	if err != nil {
		return Result{}, err
	}
	return Result{Evaluation: evaluation, Exception: exception}, nil
}

func normalizeLocator(locator string) string {
	if strings.HasPrefix(locator, "file://") {
		return locator
	}
	abs, err := filepath.Abs(locator)
	if err != nil {
		return locator
	}
	return "file://" + filepath.ToSlash(abs)
}
