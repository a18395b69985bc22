// Package analyzer implements C2, the module analyzer: turning a parsed
// jsast.Program into the ModuleAnalysis and TopAnalysis records spec §3
// and §4.2 describe, ready for C3 (the REPL-izer) and C4 (the fingerprint
// registry) to consume.
package analyzer

import "github.com/asaddevil123/Replete/internal/jsast"

// ImportRecord is one static import statement.
type ImportRecord struct {
	Range Range
	// SourceRange bounds the specifier string literal itself, quotes
	// included (spec §4.5 step 3 rewrites only this span).
	SourceRange Range
	Default     string
	Namespace   string
	Named       []jsast.ImportSpecifier
	Source      string
}

// ExportRecord is one export statement. Source is non-nil when the
// statement carries a re-export specifier (`export ... from "..."`), in
// which case SourceRange bounds that literal, quotes included.
type ExportRecord struct {
	Range       Range
	Kind        string // "default" | "named" | "all"
	Source      *string
	SourceRange Range
}

// Range is a byte span into the original source.
type Range struct{ From, To int }

// ModuleAnalysis is the spec §3 tuple {imports, exports, dynamics, mains}.
type ModuleAnalysis struct {
	Imports  []ImportRecord
	Exports  []ExportRecord
	Dynamics []jsast.DynamicSite
	Mains    []jsast.MainSite
}

// TopAnalysis is the spec §3 tuple {values, wait}.
type TopAnalysis struct {
	Values []Range // top-level value-producing statements, in source order
	Wait   bool    // true if any top-level await / for-await-of is present
}

// Analyze walks prog.Body to build both analyses in one pass. Dynamics and
// Mains are copied straight from prog since jsparse already performed the
// exhaustive whole-source scan spec §4.2 requires for those two forms.
func Analyze(prog *jsast.Program) (ModuleAnalysis, TopAnalysis) {
	var mod ModuleAnalysis
	mod.Dynamics = prog.Dynamics
	mod.Mains = prog.Mains

	var top TopAnalysis
	walkTop(prog.Body, &mod, &top)
	return mod, top
}

// walkTop performs the combined module-level record collection and the
// top-level (non-function-body) value/await walk. It recurses into
// BlockLike nodes (if/for/while/try bodies) because spec §4.2 requires the
// top-level walk to see into them, but stops at FunctionDeclaration and
// ClassDeclaration without descending into their bodies.
func walkTop(body []jsast.Statement, mod *ModuleAnalysis, top *TopAnalysis) {
	for _, stmt := range body {
		switch s := stmt.(type) {
		case *jsast.ImportDeclaration:
			mod.Imports = append(mod.Imports, ImportRecord{
				Range:       Range{s.Start(), s.End()},
				SourceRange: Range{s.SourceFrom, s.SourceTo},
				Default:     s.Default,
				Namespace:   s.Namespace,
				Named:       s.Named,
				Source:      s.Source,
			})

		case *jsast.ExportDefaultDeclaration:
			mod.Exports = append(mod.Exports, ExportRecord{
				Range: Range{s.Start(), s.End()},
				Kind:  "default",
			})

		case *jsast.ExportNamedDeclaration:
			mod.Exports = append(mod.Exports, ExportRecord{
				Range:       Range{s.Start(), s.End()},
				Kind:        "named",
				Source:      s.Source,
				SourceRange: Range{s.SourceFrom, s.SourceTo},
			})
			if s.Inline != nil {
				walkTop([]jsast.Statement{s.Inline}, mod, top)
			}

		case *jsast.ExportAllDeclaration:
			source := s.Source
			mod.Exports = append(mod.Exports, ExportRecord{
				Range:       Range{s.Start(), s.End()},
				Kind:        "all",
				Source:      &source,
				SourceRange: Range{s.SourceFrom, s.SourceTo},
			})

		case *jsast.BlockLike:
			if s.Await {
				top.Wait = true
			}
			walkTop(s.Body, mod, top)

		case *jsast.ExpressionStatement:
			if s.HasAwait {
				top.Wait = true
			}
			top.Values = append(top.Values, Range{s.Start(), s.End()})

		case *jsast.FunctionDeclaration, *jsast.ClassDeclaration, *jsast.VariableDeclaration:
			// Not value-producing for TopAnalysis.Values, and their bodies
			// (if any) are opaque to the top-level walk by construction.
		}
	}
}
