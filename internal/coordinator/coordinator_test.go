package coordinator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/asaddevil123/Replete/internal/padawan"
	"github.com/asaddevil123/Replete/internal/registry"
)

type fakeHost struct{}

func (fakeHost) ReadFile(locator string) (string, error) {
	b, err := os.ReadFile(strings.TrimPrefix(locator, "file://"))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
func (fakeHost) IsJS(locator string) bool { return strings.HasSuffix(locator, ".js") }

type fakePadawan struct {
	lastScript  string
	lastImports []string
	lastWait    bool
	reply       padawan.Report
}

func (p *fakePadawan) Eval(ctx context.Context, script string, imports []string, wait bool) (padawan.Report, error) {
	p.lastScript, p.lastImports, p.lastWait = script, imports, wait
	return p.reply, nil
}
func (p *fakePadawan) Destroy() error { return nil }

func locatorFor(path string) string {
	return "file://" + filepath.ToSlash(path)
}

func TestEvalResolvesImportsAndDispatches(t *testing.T) {
	dir := t.TempDir()
	dep := filepath.Join(dir, "dep.js")
	if err := os.WriteFile(dep, []byte("export const x = 1;"), 0o644); err != nil {
		t.Fatal(err)
	}
	entry := locatorFor(filepath.Join(dir, "entry.js"))

	reg := registry.New(fakeHost{})
	pad := &fakePadawan{reply: padawan.Report{Evaluation: "1"}}
	co := &Coordinator{Registry: reg, Padawan: pad}

	evaluation, exception, err := co.Eval(context.Background(), `import { x } from "./dep.js"; x;`, entry, "")
	if err != nil {
		t.Fatal(err)
	}
	if exception != "" {
		t.Fatalf("unexpected exception: %s", exception)
	}
	if evaluation != "1" {
		t.Errorf("evaluation = %q, want %q", evaluation, "1")
	}
	if len(pad.lastImports) != 1 || !strings.Contains(pad.lastImports[0], "/dep.js") {
		t.Errorf("imports sent to padawan = %v", pad.lastImports)
	}
	if !strings.Contains(pad.lastImports[0], "/v0/"+reg.Unguessable()+"/") {
		t.Errorf("import specifier not versionized: %v", pad.lastImports)
	}
	if strings.Contains(pad.lastScript, "import {") {
		t.Errorf("script still contains the import statement: %s", pad.lastScript)
	}
}

func TestEvalAppliesCommandAndSpecifyHooks(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "dep.js"), []byte("export const x = 1;"), 0o644); err != nil {
		t.Fatal(err)
	}
	entry := locatorFor(filepath.Join(dir, "entry.js"))

	reg := registry.New(fakeHost{})
	pad := &fakePadawan{reply: padawan.Report{Evaluation: "2"}}
	co := &Coordinator{
		Registry: reg,
		Padawan:  pad,
		Command:  func(source string) string { return strings.Replace(source, "ONE", "1", 1) },
		Specify:  func(locator string) string { return "http://padawan.local" + strings.TrimPrefix(locator, "file://") },
	}

	_, _, err := co.Eval(context.Background(), `import { x } from "./dep.js"; ONE + 1;`, entry, "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(pad.lastScript, "1 + 1") {
		t.Errorf("command hook not applied: %s", pad.lastScript)
	}
	if len(pad.lastImports) != 1 || !strings.HasPrefix(pad.lastImports[0], "http://padawan.local/v0/"+reg.Unguessable()+"/") {
		t.Errorf("specify hook not applied: %v", pad.lastImports)
	}
}

func TestEvalReportsPadawanException(t *testing.T) {
	dir := t.TempDir()
	entry := locatorFor(filepath.Join(dir, "entry.js"))
	reg := registry.New(fakeHost{})
	pad := &fakePadawan{reply: padawan.Report{Exception: "ReferenceError: y is not defined"}}
	co := &Coordinator{Registry: reg, Padawan: pad}

	evaluation, exception, err := co.Eval(context.Background(), "y;", entry, "")
	if err != nil {
		t.Fatalf("padawan exception must not be a Go error: %v", err)
	}
	if evaluation != "" || exception == "" {
		t.Errorf("evaluation=%q exception=%q", evaluation, exception)
	}
}

func TestEvalResolveFailurePropagatesAsError(t *testing.T) {
	dir := t.TempDir()
	entry := locatorFor(filepath.Join(dir, "entry.js"))
	reg := registry.New(fakeHost{})
	pad := &fakePadawan{}
	co := &Coordinator{Registry: reg, Padawan: pad}

	_, _, err := co.Eval(context.Background(), `import { x } from "./missing.js"; x;`, entry, "")
	if err == nil {
		t.Fatal("expected resolve error for a nonexistent dependency")
	}
}
