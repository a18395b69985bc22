// Package replizer implements C3, the REPL-izer: rewriting a parsed module
// into a payload that can be evaluated repeatedly against a persistent
// per-scope object, per spec §4.3.
//
// The technique — a named $scope object on the global object, entered via a
// sloppy-mode `with` statement wrapping a strict-mode `eval` of the rewritten
// source — is the one spec.md prescribes verbatim; nothing here is
// original invention. A direct `eval()` call always inherits the calling
// context's lexical scope chain (including any enclosing `with`), which is
// what lets payload code read and write $scope properties as if they were
// ordinary variables. eval() parses its argument as an independent Script,
// in which a top-level `await` is a syntax error, so for rule 5 the payload
// itself carries the `(async function(){ ... }())` wrapper inside which
// `await` is legal.
package replizer

import (
	"fmt"
	"strings"

	"github.com/asaddevil123/Replete/internal/analyzer"
	"github.com/asaddevil123/Replete/internal/jsast"
)

// Options configures one REPL-ization.
type Options struct {
	// Scope names the persistent $scopes[Scope] slot this evaluation
	// targets (spec §3's "Scope object").
	Scope string
	// ResolvedDynamics holds, in the same order as the Program's Dynamics,
	// the already-resolved-and-versionized specifier text to splice into
	// each dynamic site's script-context range.
	ResolvedDynamics []string
}

// Replize turns source into the harness-wrapped script ready to hand a
// padawan for evaluation.
func Replize(source string, prog *jsast.Program, mod analyzer.ModuleAnalysis, top analyzer.TopAnalysis, opts Options) string {
	var edits []edit
	var prependAtZero []string
	var importBindings []importBinding
	remembered := newNameSet()

	importIndex := 0
	for _, stmt := range prog.Body {
		switch s := stmt.(type) {
		case *jsast.ImportDeclaration:
			edits = append(edits, edit{s.Start(), s.End(), ""})
			importBindings = append(importBindings, bindingsForImport(s, importIndex)...)
			importIndex++

		case *jsast.ExportDefaultDeclaration:
			edits = append(edits, edit{s.Start(), s.ValueStart, "$default = "})

		case *jsast.ExportAllDeclaration:
			edits = append(edits, edit{s.Start(), s.End(), ""})

		case *jsast.ExportNamedDeclaration:
			if s.Inline != nil {
				edits = append(edits, edit{s.Start(), s.Inline.Start(), ""})
				applyDeclRule(source, s.Inline, &edits, &prependAtZero, remembered)
			} else {
				edits = append(edits, edit{s.Start(), s.End(), ""})
			}

		default:
			applyDeclRule(source, stmt, &edits, &prependAtZero, remembered)
		}
	}

	for i, d := range prog.Dynamics {
		resolved := ""
		if i < len(opts.ResolvedDynamics) {
			resolved = opts.ResolvedDynamics[i]
		}
		edits = append(edits, edit{d.ScriptFrom, d.ScriptTo, jsStringLiteral(resolved)})
	}

	for _, m := range prog.Mains {
		edits = append(edits, edit{m.From, m.To, "true"})
	}

	// Appended before the $await prefixes: applyEdits keeps insertions at
	// the same offset in append order, so at offset 0 the hoisted-function
	// assignments come first and "$await = " stays on its own statement.
	if len(prependAtZero) > 0 {
		edits = append(edits, edit{0, 0, strings.Join(prependAtZero, "")})
	}

	if top.Wait {
		for _, v := range top.Values {
			edits = append(edits, edit{v.From, v.From, "$await = "})
		}
	}

	rewritten := applyEdits(source, edits)

	var payload string
	if top.Wait {
		payload = "(async function(){ let $await; " + rewritten + " return $await; }())"
	} else {
		payload = rewritten
	}

	return wrapHarness(opts.Scope, payload, importBindings, remembered.order)
}

// importBinding is one identifier this evaluation must bind from the
// padawan-resolved $imports array before running the payload.
type importBinding struct {
	Local string
	Expr  string
}

func bindingsForImport(s *jsast.ImportDeclaration, index int) []importBinding {
	var out []importBinding
	if s.Default != "" {
		out = append(out, importBinding{s.Default, fmt.Sprintf("$imports[%d].default", index)})
	}
	if s.Namespace != "" {
		out = append(out, importBinding{s.Namespace, fmt.Sprintf("$imports[%d]", index)})
	}
	for _, n := range s.Named {
		out = append(out, importBinding{n.Local, fmt.Sprintf("$imports[%d][%s]", index, jsStringLiteral(n.Imported))})
	}
	return out
}

// nameSet remembers identifiers in first-seen order, deduplicated — the
// names the harness must guarantee exist as $scope properties (spec §4.3
// step 3, "initializing un-imported names to undefined").
type nameSet struct {
	seen  map[string]bool
	order []string
}

func newNameSet() *nameSet { return &nameSet{seen: map[string]bool{}} }

func (n *nameSet) add(name string) {
	if name == "" || n.seen[name] {
		return
	}
	n.seen[name] = true
	n.order = append(n.order, name)
}

// applyDeclRule generates the rewrite edits for one top-level declaration
// statement (var/let/const, function, class) per spec §4.3's table. Any
// other statement shape (expressions, control flow, etc.) is left as-is.
func applyDeclRule(source string, stmt jsast.Statement, edits *[]edit, prependAtZero *[]string, remembered *nameSet) {
	switch s := stmt.(type) {
	case *jsast.VariableDeclaration:
		destructuredAny := false
		for _, d := range s.Declarations {
			if d.Destructured {
				destructuredAny = true
			}
			for _, n := range d.Names {
				remembered.add(n)
			}
		}

		if destructuredAny {
			*edits = append(*edits, edit{s.Start(), s.DeclStart, "("})
			closeAt := s.End()
			if closeAt > s.Start() && source[closeAt-1] == ';' {
				closeAt--
			}
			*edits = append(*edits, edit{closeAt, closeAt, ")"})
		} else {
			*edits = append(*edits, edit{s.Start(), s.DeclStart, ""})
		}

		for _, d := range s.Declarations {
			if !d.HasInit {
				*edits = append(*edits, edit{d.To, d.To, " = undefined"})
			}
		}

	case *jsast.FunctionDeclaration:
		remembered.add(s.Name)
		*edits = append(*edits, edit{s.NameStart, s.NameEnd, "$" + s.Name})
		*prependAtZero = append(*prependAtZero, s.Name+" = $"+s.Name+";")

	case *jsast.ClassDeclaration:
		remembered.add(s.Name)
		*edits = append(*edits, edit{s.Start(), s.Start(), s.Name + " = "})
		*edits = append(*edits, edit{s.End(), s.End(), ";"})
	}
}

// wrapHarness assembles the final wrapping spec §4.3 describes: the
// $scopes registry, the scope object, remembered-name and import-binding
// initialization, and the sloppy `with` enclosing a strict-mode `eval` of
// the rewritten payload.
func wrapHarness(scope, payload string, importBindings []importBinding, remembered []string) string {
	scopeLit := jsStringLiteral(scope)

	var b strings.Builder
	b.WriteString("this.$scopes = this.$scopes || Object.create(null);\n")
	fmt.Fprintf(&b, "if (!this.$scopes[%s]) { var $s = Object.create(null); $s.$default = undefined; $s.$value = undefined; this.$scopes[%s] = $s; }\n", scopeLit, scopeLit)
	fmt.Fprintf(&b, "var $scope = this.$scopes[%s];\n", scopeLit)

	for _, n := range remembered {
		fmt.Fprintf(&b, "if (!(%s in $scope)) $scope[%s] = undefined;\n", jsStringLiteral(n), jsStringLiteral(n))
	}

	// $imports is a global array the padawan populates (one resolved module
	// per static import, in declaration order) before handing control to
	// this script; see internal/padawan.
	for _, ib := range importBindings {
		fmt.Fprintf(&b, "$scope[%s] = %s;\n", jsStringLiteral(ib.Local), ib.Expr)
	}

	b.WriteString("with ($scope) {\n")
	fmt.Fprintf(&b, "  $scope.$value = (function(){ \"use strict\"; return eval(%s); })();\n", jsStringLiteral(payload))
	b.WriteString("}\n")

	return b.String()
}

// jsStringLiteral renders s as a double-quoted JS string literal: quotes and
// backslashes are backslash-escaped, control bytes become \u00XX escapes,
// and every other byte is passed through unchanged.
func jsStringLiteral(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case c < 0x20 || c == 0x7f:
			fmt.Fprintf(&b, "\\u%04x", c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}
