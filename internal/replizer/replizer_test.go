package replizer

import (
	"strings"
	"testing"

	"github.com/asaddevil123/Replete/internal/analyzer"
	"github.com/asaddevil123/Replete/internal/jsparse"
)

func replize(t *testing.T, src string, opts Options) string {
	t.Helper()
	prog, err := jsparse.Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	mod, top := analyzer.Analyze(prog)
	return Replize(src, prog, mod, top, opts)
}

func TestReplizeS4Continuity(t *testing.T) {
	src := `const x = "x"; let y = "y"; z();
function z() { return "z"; }
const {a, b} = {a:"a", b:"b"};
`
	out := replize(t, src, Options{Scope: "repl"})

	for _, want := range []string{
		`if (!("x" in $scope)) $scope["x"] = undefined;`,
		`if (!("y" in $scope)) $scope["y"] = undefined;`,
		`if (!("z" in $scope)) $scope["z"] = undefined;`,
		`if (!("a" in $scope)) $scope["a"] = undefined;`,
		`if (!("b" in $scope)) $scope["b"] = undefined;`,
		"z = $z;",
		"function $z(",
		"with ($scope)",
		"$scope.$value = (function(){",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n--- output ---\n%s", want, out)
		}
	}
	if strings.Contains(out, "const x") || strings.Contains(out, "let y") {
		t.Error("declaration keywords should have been stripped")
	}
	if strings.Contains(out, "(async function") {
		t.Error("no top-level await present, should not async-wrap")
	}
}

func TestReplizeS5TopLevelAwait(t *testing.T) {
	src := `let a; if (true) { a = await Promise.resolve(42); } a;`
	out := replize(t, src, Options{Scope: "repl"})

	for _, want := range []string{
		"(async function(){ let $await;",
		"return $await;",
		"$await = a;",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n--- output ---\n%s", want, out)
		}
	}
}

func TestReplizeSoleTopLevelAwaitIsValueProducing(t *testing.T) {
	out := replize(t, `await Promise.resolve(42);`, Options{Scope: "repl"})

	for _, want := range []string{
		"(async function(){ let $await;",
		"$await = await Promise.resolve(42);",
		"return $await;",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n--- output ---\n%s", want, out)
		}
	}
}

func TestReplizeImportBindings(t *testing.T) {
	src := `import React, { useState as us } from "react"; React;`
	out := replize(t, src, Options{Scope: "repl"})

	for _, want := range []string{
		`$scope["React"] = $imports[0].default;`,
		`$scope["us"] = $imports[0]["useState"];`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n--- output ---\n%s", want, out)
		}
	}
	if strings.Contains(out, "import React") {
		t.Error("import statement should have been erased from the payload")
	}
}

func TestReplizeExportDefaultAndDynamic(t *testing.T) {
	src := `export default 42; import("./a.js");`
	prog, err := jsparse.Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	mod, top := analyzer.Analyze(prog)
	out := Replize(src, prog, mod, top, Options{
		Scope:            "repl",
		ResolvedDynamics: []string{"file:///v1/abc/a.js"},
	})

	if !strings.Contains(out, "$default = 42;") {
		t.Errorf("output missing default-export rewrite\n--- output ---\n%s", out)
	}
	if !strings.Contains(out, `file:///v1/abc/a.js`) {
		t.Errorf("resolved dynamic specifier not found in output\n--- output ---\n%s", out)
	}
}
