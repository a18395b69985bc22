// Package jsparse is Replete's internal stand-in for the "standards
// compliant ECMAScript parser" the analyzer and REPL-izer are specified
// against (spec §1 treats that parser as an assumed external collaborator).
// It recognizes the specific statement shapes those two components inspect
// by scanning source text directly — the same technique the teacher repo
// uses for its own specifier rewriting (bracket-depth tracking plus
// targeted regexes) rather than building a general-purpose grammar.
package jsparse

import (
	"regexp"
	"strings"

	"github.com/asaddevil123/Replete/internal/jsast"
)

// Parse scans source into a jsast.Program. It never returns an error for
// syntactically odd input; unrecognized constructs degrade to opaque
// ExpressionStatement ranges, which is safe for the analyzer (they simply
// won't be recognized as imports/exports) and for the REPL-izer (they are
// left untouched).
func Parse(source string) (*jsast.Program, error) {
	body := parseStatements(source, 0, len(source))
	prog := &jsast.Program{
		Body:     body,
		Dynamics: scanDynamicSites(source),
		Mains:    scanMainSites(source),
	}
	return prog, nil
}

var (
	reAsyncFunction = regexp.MustCompile(`^async\s+function\b`)
	reFunction      = regexp.MustCompile(`^function\b`)
)

func parseStatements(src string, start, end int) []jsast.Statement {
	var body []jsast.Statement
	i := start
	for i < end {
		i = skipSpaceAndComments(src, i)
		if i >= end {
			break
		}
		stmt, next := parseOneStatement(src, i, end)
		if stmt != nil {
			body = append(body, stmt)
		}
		if next <= i {
			next = i + 1
		}
		i = next
	}
	return body
}

// parseOneStatement parses exactly one statement starting at i (which is
// already past leading whitespace/comments) and returns it plus the index
// just past it.
func parseOneStatement(src string, i, end int) (jsast.Statement, int) {
	rest := src[i:end]

	switch {
	case strings.HasPrefix(rest, "import(") || matchesWord(rest, "import") && followedByDot(src, i+6):
		// dynamic import(...) or import.meta... used as a statement; treat as
		// an opaque expression statement, dynamic-site/meta scanning already
		// covers the semantics separately.
		e := scanSimpleStatementEnd(src, i, end)
		return exprStmt(src, i, e), e

	case matchesWord(rest, "import"):
		return parseImport(src, i, end)

	case matchesWord(rest, "export"):
		return parseExport(src, i, end)

	case reAsyncFunction.MatchString(rest), reFunction.MatchString(rest):
		return parseFunctionDecl(src, i, end)

	case matchesWord(rest, "class"):
		return parseClassDecl(src, i, end)

	case matchesWord(rest, "var"), matchesWord(rest, "let"), matchesWord(rest, "const"):
		return parseVarDecl(src, i, end)

	case matchesWord(rest, "if"):
		return parseParenBlockChain(src, i, end, []string{"if"}, true)

	case matchesWord(rest, "for"):
		return parseForLike(src, i, end)

	case matchesWord(rest, "while"):
		return parseParenBlockChain(src, i, end, []string{"while"}, false)

	case matchesWord(rest, "try"):
		return parseTry(src, i, end)

	case len(rest) > 0 && rest[0] == '{':
		close := matchBracket(src, i)
		if close == -1 {
			close = end - 1
		}
		blk := &jsast.BlockLike{Body: parseStatements(src, i+1, close)}
		setBase(blk, i, close+1)
		return blk, close + 1

	default:
		e := scanSimpleStatementEnd(src, i, end)
		return exprStmt(src, i, e), e
	}
}

func exprStmt(src string, from, to int) jsast.Statement {
	s := &jsast.ExpressionStatement{
		HasAwait: strings.Contains(src[from:to], "await") && hasTopLevelAwaitWord(src[from:to]),
	}
	setBase(s, from, to)
	return s
}

var reAwaitWord = regexp.MustCompile(`(^|[^A-Za-z0-9_$.])await([^A-Za-z0-9_$]|$)`)

func hasTopLevelAwaitWord(s string) bool {
	return reAwaitWord.MatchString(s)
}

// matchesWord reports whether rest begins with word as a whole identifier
// token (not a prefix of a longer identifier).
func matchesWord(rest, word string) bool {
	if !strings.HasPrefix(rest, word) {
		return false
	}
	if len(rest) == len(word) {
		return true
	}
	return !isIdentPart(rest[len(word)])
}

func followedByDot(src string, i int) bool {
	i = skipSpaceAndComments(src, i)
	return i < len(src) && src[i] == '.'
}

// scanSimpleStatementEnd finds the end (exclusive) of a non-block statement
// starting at i: either a depth-0 semicolon, or an ASI boundary at a
// depth-0 newline not obviously continued by the following token.
func scanSimpleStatementEnd(src string, i, end int) int {
	for i < end {
		c := src[i]
		switch {
		case c == '\'' || c == '"':
			i = skipString(src, i)
		case c == '`':
			i = skipTemplate(src, i)
		case c == '/' && i+1 < end && src[i+1] == '/':
			for i < end && src[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < end && src[i+1] == '*':
			i += 2
			for i+1 < end && !(src[i] == '*' && src[i+1] == '/') {
				i++
			}
			i += 2
		case c == '/' && regexAllowed(src, i):
			i = skipRegex(src, i)
		case c == '(' || c == '[' || c == '{':
			close := matchBracket(src, i)
			if close == -1 {
				return end
			}
			i = close + 1
		case c == ';':
			return i + 1
		case c == '\n':
			j := skipSpaceAndComments(src, i+1)
			if j >= end {
				return i + 1
			}
			nc := src[j]
			if strings.ContainsRune(".?:,)]}`+-*/%&|^", rune(nc)) {
				i++
				continue
			}
			if peekWord(src, j, "else") || peekWord(src, j, "catch") ||
				peekWord(src, j, "finally") || peekWord(src, j, "in") ||
				peekWord(src, j, "instanceof") {
				i++
				continue
			}
			return i + 1
		default:
			i++
		}
	}
	return end
}

func setBase(n interface{ /* has base embedded */ }, from, to int) {
	switch v := n.(type) {
	case *jsast.ExpressionStatement:
		setRange(&v.From, &v.To, from, to)
	case *jsast.BlockLike:
		setRange(&v.From, &v.To, from, to)
	case *jsast.ImportDeclaration:
		setRange(&v.From, &v.To, from, to)
	case *jsast.ExportDefaultDeclaration:
		setRange(&v.From, &v.To, from, to)
	case *jsast.ExportNamedDeclaration:
		setRange(&v.From, &v.To, from, to)
	case *jsast.ExportAllDeclaration:
		setRange(&v.From, &v.To, from, to)
	case *jsast.VariableDeclaration:
		setRange(&v.From, &v.To, from, to)
	case *jsast.FunctionDeclaration:
		setRange(&v.From, &v.To, from, to)
	case *jsast.ClassDeclaration:
		setRange(&v.From, &v.To, from, to)
	}
}

// setRange is a tiny shim because jsast.base's fields aren't exported for
// direct struct-literal construction from outside the package.
func setRange(from, to *int, f, t int) {
	*from, *to = f, t
}
