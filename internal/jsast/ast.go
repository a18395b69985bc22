// Package jsast is the minimal AST shape Replete's analyzer and REPL-izer
// consume. A full ECMAScript grammar is assumed supplied by a standards
// compliant parser (spec §1, "out of scope"); this package only models the
// handful of node shapes those two components actually inspect, each
// carrying byte offsets into the original source.
package jsast

// Pos is a zero-based byte offset into the module source.
type Pos = int

// Node is the common shape of every AST node: its source range.
type Node interface {
	Start() Pos
	End() Pos
}

type base struct {
	From, To Pos
}

func (b base) Start() Pos { return b.From }
func (b base) End() Pos   { return b.To }

// NewBase constructs the embeddable range for a node spanning [from, to).
func NewBase(from, to Pos) base { return base{From: from, To: to} }

// Statement is any top-level-walkable construct.
type Statement interface {
	Node
	stmtNode()
}

// Program is the root of a parsed module.
//
// Dynamics and Mains are populated by a whole-source scan rather than a
// structural walk of Body, because import()/import.meta.resolve()/
// new URL(..., import.meta.url)/import.meta.main may appear anywhere in the
// source, including inside function bodies that Body does not descend into
// (see jsparse for why).
type Program struct {
	base
	Body     []Statement
	Dynamics []DynamicSite
	Mains    []MainSite
}

// ImportSpecifier is one `{imported as local}` binding of a static import.
type ImportSpecifier struct {
	Imported string
	Local    string
}

// ImportDeclaration is a static `import ...` statement.
type ImportDeclaration struct {
	base
	Default   string // local name bound to the default export, "" if none
	Namespace string // local name bound to `* as ns`, "" if none
	Named     []ImportSpecifier
	Source    string // the specifier string literal's value
	// SourceFrom/SourceTo bound the literal itself, quotes included, for
	// rewrites that replace only the specifier text (spec §4.5 step 3).
	SourceFrom, SourceTo Pos
}

func (*ImportDeclaration) stmtNode() {}

// ExportDefaultDeclaration is `export default <expr-or-decl>`.
type ExportDefaultDeclaration struct {
	base
	ValueStart Pos // offset where the exported value begins (after "export default ")
}

func (*ExportDefaultDeclaration) stmtNode() {}

// ExportSpecifier is one `{local as exported}` binding of a named export.
type ExportSpecifier struct {
	Local    string
	Exported string
}

// ExportNamedDeclaration covers both `export { a, b } [from "..."]` and
// `export const x = ...` / `export function f(){}` / `export class C {}`.
// Inline is non-nil for the latter form; Source is non-nil for the former
// when it carries a `from` clause.
type ExportNamedDeclaration struct {
	base
	Inline     Statement
	Specifiers []ExportSpecifier
	Source     *string
	// SourceFrom/SourceTo bound the `from "..."` literal, quotes included;
	// meaningful only when Source != nil.
	SourceFrom, SourceTo Pos
}

func (*ExportNamedDeclaration) stmtNode() {}

// ExportAllDeclaration is `export * from "..."` or `export * as ns from "..."`.
type ExportAllDeclaration struct {
	base
	Exported             *string
	Source               string
	SourceFrom, SourceTo Pos // the `from "..."` literal's span, quotes included
}

func (*ExportAllDeclaration) stmtNode() {}

// VariableDeclarator is one binding within a var/let/const statement.
type VariableDeclarator struct {
	// From/To bound the whole declarator ("name = expr"), trimmed of
	// surrounding whitespace, within the original source.
	From, To Pos
	// IdStart/IdEnd bound just the declarator's binding target (identifier
	// or destructuring pattern).
	IdStart, IdEnd Pos
	Names          []string // flattened bound identifier names
	Destructured   bool     // true if Id is `{...}` or `[...]`
	Object         bool     // true if `{...}` destructuring (needs paren-wrap)
	HasInit        bool
}

// VariableDeclaration is a top-level `var`/`let`/`const` statement.
type VariableDeclaration struct {
	base
	Kind         string // "var" | "let" | "const"
	DeclStart    Pos    // offset where the declarator list begins (after the keyword and its trailing whitespace)
	Declarations []VariableDeclarator
}

func (*VariableDeclaration) stmtNode() {}

// FunctionDeclaration is a top-level named function declaration.
// NameStart/NameEnd bound only the identifier token, for the REPL-izer's
// rename-to-$f rule.
type FunctionDeclaration struct {
	base
	Name           string
	NameStart      Pos
	NameEnd        Pos
	BodyEnd        Pos // offset just past the function's closing brace
}

func (*FunctionDeclaration) stmtNode() {}

// ClassDeclaration is a top-level named class declaration.
type ClassDeclaration struct {
	base
	Name string
}

func (*ClassDeclaration) stmtNode() {}

// ExpressionStatement is any bare `expr;` at a walkable position. The
// top-level walk (analyzer) records these as value-producing statements.
// HasAwait is true when the expression itself contains a top-level
// `await` (e.g. `a = await f();`) — spec §4.2 treats value-producing and
// wait-triggering as independent facts about the same node, so a single
// ExpressionStatement can be both.
type ExpressionStatement struct {
	base
	HasAwait bool
}

func (*ExpressionStatement) stmtNode() {}

// BlockLike wraps a non-function nested construct (if/for/while/try/block)
// whose body the top-level walk must still descend into looking for
// value-producing statements and top-level await.
type BlockLike struct {
	base
	Body []Statement
	// Await is true when this node is itself a `for await (...)` loop.
	Await bool
}

func (*BlockLike) stmtNode() {}

// DynamicSite is one of the three dynamic-specifier forms (spec §3/§4.2):
// import("x"), import.meta.resolve("x"), new URL("./x", import.meta.url).
type DynamicSite struct {
	Value            string // the literal specifier text
	ModuleFrom, ModuleTo Pos // range to replace when the surrounding text is evaluated as a module
	ScriptFrom, ScriptTo Pos // range to replace when evaluated as a script
}

// MainSite is one occurrence of `import.meta.main`.
type MainSite struct {
	From, To Pos
}
