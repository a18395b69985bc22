package analyzer

import (
	"testing"

	"github.com/asaddevil123/Replete/internal/jsparse"
)

func TestAnalyzeImportsAndExports(t *testing.T) {
	src := `import React, { useState } from "react";
export * as utils from "./utils.js";
export default function () {}
`
	prog, err := jsparse.Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	mod, _ := Analyze(prog)
	if len(mod.Imports) != 1 {
		t.Fatalf("len(Imports) = %d, want 1", len(mod.Imports))
	}
	if mod.Imports[0].Default != "React" || mod.Imports[0].Source != "react" {
		t.Errorf("Imports[0] = %+v", mod.Imports[0])
	}
	if len(mod.Exports) != 2 {
		t.Fatalf("len(Exports) = %d, want 2", len(mod.Exports))
	}
	if mod.Exports[0].Kind != "all" || mod.Exports[0].Source == nil || *mod.Exports[0].Source != "./utils.js" {
		t.Errorf("Exports[0] = %+v", mod.Exports[0])
	}
	if mod.Exports[1].Kind != "default" {
		t.Errorf("Exports[1] = %+v", mod.Exports[1])
	}
}

func TestAnalyzeTopLevelAwaitAndValues(t *testing.T) {
	// S5. Both `a = await 42;` and `a + 1;` are ExpressionStatements, so
	// both are value-producing — an await-containing expression statement
	// is not exclusive of being value-producing.
	prog, err := jsparse.Parse(`if (true) { let a; a = await 42; a + 1; }`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	_, top := Analyze(prog)
	if !top.Wait {
		t.Error("Wait = false, want true")
	}
	if len(top.Values) != 2 {
		t.Fatalf("len(Values) = %d, want 2 (`a = await 42` and `a + 1`)", len(top.Values))
	}
}

func TestAnalyzeSoleTopLevelAwaitIsValueProducing(t *testing.T) {
	prog, err := jsparse.Parse(`await Promise.resolve(42);`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	_, top := Analyze(prog)
	if !top.Wait {
		t.Error("Wait = false, want true")
	}
	if len(top.Values) != 1 {
		t.Fatalf("len(Values) = %d, want 1 (the await expression itself)", len(top.Values))
	}
}

func TestAnalyzeS4Continuity(t *testing.T) {
	src := `const x = "x"; let y = "y"; z();
function z() { return "z"; }
const {a, b} = {a:"a", b:"b"};
`
	prog, err := jsparse.Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	_, top := Analyze(prog)
	if top.Wait {
		t.Error("Wait = true, want false (no await in this fragment)")
	}
	if len(top.Values) != 1 {
		t.Fatalf("len(Values) = %d, want 1 (only `z();`)", len(top.Values))
	}
}
