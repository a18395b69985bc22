package jsparse

import (
	"strings"

	"github.com/asaddevil123/Replete/internal/jsast"
)

// splitTopLevel splits s on commas that sit at bracket depth 0, skipping
// over strings/templates/comments/regexes so nested commas don't count.
func splitTopLevel(s string) []string {
	var parts []string
	depth := 0
	last := 0
	n := len(s)
	for i := 0; i < n; {
		c := s[i]
		switch {
		case c == '\'' || c == '"':
			i = skipString(s, i)
			continue
		case c == '`':
			i = skipTemplate(s, i)
			continue
		case i+1 < n && c == '/' && s[i+1] == '/':
			for i < n && s[i] != '\n' {
				i++
			}
			continue
		case i+1 < n && c == '/' && s[i+1] == '*':
			i += 2
			for i+1 < n && !(s[i] == '*' && s[i+1] == '/') {
				i++
			}
			i += 2
			continue
		case c == '(' || c == '[' || c == '{':
			depth++
			i++
		case c == ')' || c == ']' || c == '}':
			depth--
			i++
		case c == ',' && depth == 0:
			parts = append(parts, s[last:i])
			i++
			last = i
		default:
			i++
		}
	}
	parts = append(parts, s[last:])
	for idx, p := range parts {
		parts[idx] = strings.TrimSpace(p)
	}
	return parts
}

// scanStringLiteral reads a string literal starting at i (skipping leading
// whitespace), returning its decoded value and the index just past it.
func scanStringLiteral(src string, i int) (string, int) {
	value, _, after := scanStringLiteralSpan(src, i)
	return value, after
}

// scanStringLiteralSpan is scanStringLiteral plus the literal's own span
// (quotes included), needed wherever a rewrite must replace only the
// literal text rather than the enclosing statement.
func scanStringLiteralSpan(src string, i int) (value string, from, to int) {
	i = skipSpaceAndComments(src, i)
	if i >= len(src) || (src[i] != '\'' && src[i] != '"') {
		return "", i, i
	}
	end := skipString(src, i)
	return src[i+1 : end-1], i, end
}

func parseImport(src string, i, end int) (jsast.Statement, int) {
	start := i
	j := skipSpaceAndComments(src, i+len("import"))
	decl := &jsast.ImportDeclaration{}

	if j < end && (src[j] == '\'' || src[j] == '"') {
		source, srcFrom, after := scanStringLiteralSpan(src, j)
		decl.Source, decl.SourceFrom, decl.SourceTo = source, srcFrom, after
		stop := scanSimpleStatementEnd(src, after, end)
		setBase(decl, start, stop)
		return decl, stop
	}

	// clause: [Default] [, * as ns | , { ... }] from "source"
	fromIdx := findKeyword(src, j, end, "from")
	if fromIdx == -1 {
		stop := scanSimpleStatementEnd(src, start, end)
		e := exprStmt(src, start, stop)
		return e, stop
	}
	clause := strings.TrimSpace(src[j:fromIdx])
	parseImportClause(clause, decl)

	after := skipSpaceAndComments(src, fromIdx+len("from"))
	source, srcFrom, afterSrc := scanStringLiteralSpan(src, after)
	decl.Source, decl.SourceFrom, decl.SourceTo = source, srcFrom, afterSrc
	stop := scanSimpleStatementEnd(src, afterSrc, end)
	setBase(decl, start, stop)
	return decl, stop
}

func parseImportClause(clause string, decl *jsast.ImportDeclaration) {
	parts := splitTopLevel(clause)
	for _, p := range parts {
		p = strings.TrimSpace(p)
		switch {
		case p == "":
			continue
		case strings.HasPrefix(p, "*"):
			rest := strings.TrimSpace(strings.TrimPrefix(p, "*"))
			rest = strings.TrimSpace(strings.TrimPrefix(rest, "as"))
			decl.Namespace = rest
		case strings.HasPrefix(p, "{"):
			inner := strings.TrimSuffix(strings.TrimPrefix(p, "{"), "}")
			for _, spec := range splitTopLevel(inner) {
				spec = strings.TrimSpace(spec)
				if spec == "" {
					continue
				}
				imported, local := spec, spec
				if idx := strings.Index(spec, " as "); idx >= 0 {
					imported = strings.TrimSpace(spec[:idx])
					local = strings.TrimSpace(spec[idx+4:])
				}
				decl.Named = append(decl.Named, jsast.ImportSpecifier{Imported: imported, Local: local})
			}
		default:
			decl.Default = p
		}
	}
}

// findKeyword finds the next occurrence of word as a whole token at bracket
// depth 0 within [i, end), or -1.
func findKeyword(src string, i, end int, word string) int {
	depth := 0
	for i < end {
		c := src[i]
		switch {
		case c == '\'' || c == '"':
			i = skipString(src, i)
			continue
		case c == '`':
			i = skipTemplate(src, i)
			continue
		case c == '(' || c == '[' || c == '{':
			depth++
			i++
			continue
		case c == ')' || c == ']' || c == '}':
			depth--
			i++
			continue
		case depth == 0 && peekWord(src, i, word):
			return i
		case isIdentStart(c):
			_, next := scanIdent(src, i)
			i = next
			continue
		default:
			i++
		}
	}
	return -1
}

func parseExport(src string, i, end int) (jsast.Statement, int) {
	start := i
	j := skipSpaceAndComments(src, i+len("export"))

	if j < end && peekWord(src, j, "default") {
		j = skipSpaceAndComments(src, j+len("default"))
		stop := scanSimpleStatementEnd(src, j, end)
		d := &jsast.ExportDefaultDeclaration{ValueStart: j}
		setBase(d, start, stop)
		return d, stop
	}

	if j < end && src[j] == '*' {
		j = skipSpaceAndComments(src, j+1)
		var exported *string
		if peekWord(src, j, "as") {
			j = skipSpaceAndComments(src, j+2)
			name, next := scanIdent(src, j)
			exported = &name
			j = skipSpaceAndComments(src, next)
		}
		j = skipSpaceAndComments(src, j+len("from"))
		source, srcFrom, after := scanStringLiteralSpan(src, j)
		stop := scanSimpleStatementEnd(src, after, end)
		d := &jsast.ExportAllDeclaration{Exported: exported, Source: source, SourceFrom: srcFrom, SourceTo: after}
		setBase(d, start, stop)
		return d, stop
	}

	if j < end && src[j] == '{' {
		close := matchBracket(src, j)
		if close == -1 {
			close = end - 1
		}
		inner := src[j+1 : close]
		var specs []jsast.ExportSpecifier
		for _, spec := range splitTopLevel(inner) {
			spec = strings.TrimSpace(spec)
			if spec == "" {
				continue
			}
			local, exported := spec, spec
			if idx := strings.Index(spec, " as "); idx >= 0 {
				local = strings.TrimSpace(spec[:idx])
				exported = strings.TrimSpace(spec[idx+4:])
			}
			specs = append(specs, jsast.ExportSpecifier{Local: local, Exported: exported})
		}
		after := skipSpaceAndComments(src, close+1)
		var source *string
		var srcFrom, srcTo int
		if peekWord(src, after, "from") {
			after = skipSpaceAndComments(src, after+len("from"))
			s, sf, a2 := scanStringLiteralSpan(src, after)
			source = &s
			srcFrom, srcTo = sf, a2
			after = a2
		}
		stop := scanSimpleStatementEnd(src, after, end)
		d := &jsast.ExportNamedDeclaration{Specifiers: specs, Source: source, SourceFrom: srcFrom, SourceTo: srcTo}
		setBase(d, start, stop)
		return d, stop
	}

	// `export <decl>` — re-parse the inline declaration and wrap it.
	inline, stop := parseOneStatement(src, j, end)
	d := &jsast.ExportNamedDeclaration{Inline: inline}
	setBase(d, start, stop)
	return d, stop
}

func parseFunctionDecl(src string, i, end int) (jsast.Statement, int) {
	start := i
	j := i
	if peekWord(src, j, "async") {
		j = skipSpaceAndComments(src, j+len("async"))
	}
	j = skipSpaceAndComments(src, j+len("function"))
	if j < end && src[j] == '*' {
		j = skipSpaceAndComments(src, j+1)
	}
	nameStart := j
	name, nameEnd := scanIdent(src, j)
	j = skipSpaceAndComments(src, nameEnd)
	if j < end && src[j] == '(' {
		close := matchBracket(src, j)
		if close != -1 {
			j = skipSpaceAndComments(src, close+1)
		}
	}
	bodyEnd := end
	if j < end && src[j] == '{' {
		close := matchBracket(src, j)
		if close != -1 {
			bodyEnd = close + 1
		}
	}
	d := &jsast.FunctionDeclaration{Name: name, NameStart: nameStart, NameEnd: nameEnd, BodyEnd: bodyEnd}
	setBase(d, start, bodyEnd)
	return d, bodyEnd
}

func parseClassDecl(src string, i, end int) (jsast.Statement, int) {
	start := i
	j := skipSpaceAndComments(src, i+len("class"))
	name, nameEnd := scanIdent(src, j)
	j = nameEnd
	// skip to the class body's opening brace (past any `extends X`).
	for j < end && src[j] != '{' {
		if src[j] == '\'' || src[j] == '"' {
			j = skipString(src, j)
			continue
		}
		j++
	}
	bodyEnd := end
	if j < end && src[j] == '{' {
		close := matchBracket(src, j)
		if close != -1 {
			bodyEnd = close + 1
		}
	}
	d := &jsast.ClassDeclaration{Name: name}
	setBase(d, start, bodyEnd)
	return d, bodyEnd
}

func parseVarDecl(src string, i, end int) (jsast.Statement, int) {
	start := i
	kind, kindEnd := scanIdent(src, i)
	declStart := skipSpaceAndComments(src, kindEnd)
	stop := scanSimpleStatementEnd(src, i, end)

	declEnd := stop
	if declEnd > declStart && src[declEnd-1] == ';' {
		declEnd--
	}

	decl := &jsast.VariableDeclaration{Kind: kind, DeclStart: declStart}
	for _, sp := range splitTopLevelSpans(src, declStart, declEnd) {
		from, to := trimSpan(src, sp.from, sp.to)
		if from >= to {
			continue
		}
		decl.Declarations = append(decl.Declarations, parseDeclarator(src, from, to))
	}
	setBase(decl, start, stop)
	return decl, stop
}

type span struct{ from, to int }

// splitTopLevelSpans is splitTopLevel but returning absolute offsets into
// src instead of copied strings, needed so the REPL-izer can edit
// individual declarators in place.
func splitTopLevelSpans(src string, from, to int) []span {
	var spans []span
	depth := 0
	last := from
	i := from
	for i < to {
		c := src[i]
		switch {
		case c == '\'' || c == '"':
			i = skipString(src, i)
			continue
		case c == '`':
			i = skipTemplate(src, i)
			continue
		case i+1 < to && c == '/' && src[i+1] == '/':
			for i < to && src[i] != '\n' {
				i++
			}
			continue
		case i+1 < to && c == '/' && src[i+1] == '*':
			i += 2
			for i+1 < to && !(src[i] == '*' && src[i+1] == '/') {
				i++
			}
			i += 2
			continue
		case c == '(' || c == '[' || c == '{':
			depth++
			i++
		case c == ')' || c == ']' || c == '}':
			depth--
			i++
		case c == ',' && depth == 0:
			spans = append(spans, span{last, i})
			i++
			last = i
		default:
			i++
		}
	}
	spans = append(spans, span{last, to})
	return spans
}

func trimSpan(src string, from, to int) (int, int) {
	for from < to && isSpaceByte(src[from]) {
		from++
	}
	for to > from && isSpaceByte(src[to-1]) {
		to--
	}
	return from, to
}

func isSpaceByte(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func parseDeclarator(src string, from, to int) jsast.VariableDeclarator {
	eqIdx := findTopLevelEqualsAbs(src, from, to)
	idFrom, idTo := from, to
	hasInit := false
	if eqIdx >= 0 {
		idFrom, idTo = trimSpan(src, from, eqIdx)
		hasInit = true
	}
	idPart := src[idFrom:idTo]
	d := jsast.VariableDeclarator{From: from, To: to, IdStart: idFrom, IdEnd: idTo, HasInit: hasInit}
	switch {
	case strings.HasPrefix(idPart, "{"):
		d.Destructured = true
		d.Object = true
		inner := strings.TrimSuffix(strings.TrimPrefix(idPart, "{"), "}")
		d.Names = extractPatternNames(inner, true)
	case strings.HasPrefix(idPart, "["):
		d.Destructured = true
		inner := strings.TrimSuffix(strings.TrimPrefix(idPart, "["), "]")
		d.Names = extractPatternNames(inner, false)
	default:
		d.Names = []string{idPart}
	}
	return d
}

// findTopLevelEqualsAbs is findTopLevelEquals over src[from:to], returning
// an absolute index.
func findTopLevelEqualsAbs(src string, from, to int) int {
	rel := findTopLevelEquals(src[from:to])
	if rel < 0 {
		return -1
	}
	return from + rel
}

// findTopLevelEquals finds a bare `=` (not `==`, `===`, `<=`, `>=`, `!=`,
// `=>`) at bracket depth 0.
func findTopLevelEquals(s string) int {
	depth := 0
	n := len(s)
	for i := 0; i < n; {
		c := s[i]
		switch {
		case c == '\'' || c == '"':
			i = skipString(s, i)
			continue
		case c == '`':
			i = skipTemplate(s, i)
			continue
		case c == '(' || c == '[' || c == '{':
			depth++
			i++
			continue
		case c == ')' || c == ']' || c == '}':
			depth--
			i++
			continue
		case depth == 0 && c == '=':
			prev := byte(0)
			if i > 0 {
				prev = s[i-1]
			}
			var next byte
			if i+1 < n {
				next = s[i+1]
			}
			if next == '=' || prev == '=' || prev == '<' || prev == '>' || prev == '!' || next == '>' {
				i++
				continue
			}
			return i
		default:
			i++
		}
	}
	return -1
}

// extractPatternNames pulls bound identifier names out of an object/array
// destructuring pattern's inner text (without the surrounding braces).
func extractPatternNames(inner string, object bool) []string {
	var names []string
	for _, el := range splitTopLevel(inner) {
		el = strings.TrimSpace(el)
		el = strings.TrimPrefix(el, "...")
		if el == "" {
			continue
		}
		if object {
			if idx := strings.Index(el, ":"); idx >= 0 {
				el = el[idx+1:]
			}
		}
		if idx := findTopLevelEquals(el); idx >= 0 {
			el = el[:idx]
		}
		el = strings.TrimSpace(el)
		el = strings.Trim(el, "{}[]")
		if el == "" {
			continue
		}
		names = append(names, el)
	}
	return names
}

func parseParenBlockChain(src string, i, end int, keywords []string, allowElse bool) (jsast.Statement, int) {
	start := i
	var merged []jsast.Statement
	cur := i
	for _, kw := range keywords {
		cur = skipSpaceAndComments(src, cur+len(kw))
		if cur < end && src[cur] == '(' {
			close := matchBracket(src, cur)
			if close != -1 {
				cur = close + 1
			}
		}
		cur = skipSpaceAndComments(src, cur)
		stmt, next := parseOneStatement(src, cur, end)
		if blk, ok := stmt.(*jsast.BlockLike); ok {
			merged = append(merged, blk.Body...)
		} else if stmt != nil {
			merged = append(merged, stmt)
		}
		cur = next
	}
	if allowElse {
		probe := skipSpaceAndComments(src, cur)
		if peekWord(src, probe, "else") {
			probe = skipSpaceAndComments(src, probe+len("else"))
			stmt, next := parseOneStatement(src, probe, end)
			if blk, ok := stmt.(*jsast.BlockLike); ok {
				merged = append(merged, blk.Body...)
			} else if stmt != nil {
				merged = append(merged, stmt)
			}
			cur = next
		}
	}
	blk := &jsast.BlockLike{Body: merged}
	setBase(blk, start, cur)
	return blk, cur
}

func parseForLike(src string, i, end int) (jsast.Statement, int) {
	start := i
	j := skipSpaceAndComments(src, i+len("for"))
	isAwait := false
	if peekWord(src, j, "await") {
		isAwait = true
		j = skipSpaceAndComments(src, j+len("await"))
	}
	if j < end && src[j] == '(' {
		close := matchBracket(src, j)
		if close != -1 {
			j = close + 1
		}
	}
	j = skipSpaceAndComments(src, j)
	stmt, next := parseOneStatement(src, j, end)
	var body []jsast.Statement
	if blk, ok := stmt.(*jsast.BlockLike); ok {
		body = blk.Body
	} else if stmt != nil {
		body = []jsast.Statement{stmt}
	}
	blk := &jsast.BlockLike{Body: body, Await: isAwait}
	setBase(blk, start, next)
	return blk, next
}

func parseTry(src string, i, end int) (jsast.Statement, int) {
	start := i
	j := skipSpaceAndComments(src, i+len("try"))
	var merged []jsast.Statement
	stmt, next := parseOneStatement(src, j, end)
	if blk, ok := stmt.(*jsast.BlockLike); ok {
		merged = append(merged, blk.Body...)
	}
	j = skipSpaceAndComments(src, next)
	if peekWord(src, j, "catch") {
		j = skipSpaceAndComments(src, j+len("catch"))
		if j < end && src[j] == '(' {
			close := matchBracket(src, j)
			if close != -1 {
				j = close + 1
			}
		}
		j = skipSpaceAndComments(src, j)
		stmt, next = parseOneStatement(src, j, end)
		if blk, ok := stmt.(*jsast.BlockLike); ok {
			merged = append(merged, blk.Body...)
		}
		j = skipSpaceAndComments(src, next)
	}
	if peekWord(src, j, "finally") {
		j = skipSpaceAndComments(src, j+len("finally"))
		stmt, next = parseOneStatement(src, j, end)
		if blk, ok := stmt.(*jsast.BlockLike); ok {
			merged = append(merged, blk.Body...)
		}
		j = next
	}
	blk := &jsast.BlockLike{Body: merged}
	setBase(blk, start, j)
	return blk, j
}
