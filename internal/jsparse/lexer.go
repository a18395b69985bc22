package jsparse

import "strings"

// skipSpaceAndComments advances past whitespace, line comments and block
// comments starting at i, returning the index of the next significant byte.
func skipSpaceAndComments(src string, i int) int {
	n := len(src)
	for i < n {
		switch {
		case src[i] == ' ' || src[i] == '\t' || src[i] == '\n' || src[i] == '\r':
			i++
		case i+1 < n && src[i] == '/' && src[i+1] == '/':
			for i < n && src[i] != '\n' {
				i++
			}
		case i+1 < n && src[i] == '/' && src[i+1] == '*':
			i += 2
			for i+1 < n && !(src[i] == '*' && src[i+1] == '/') {
				i++
			}
			i += 2
			if i > n {
				i = n
			}
		default:
			return i
		}
	}
	return i
}

// skipString returns the index just past the closing quote of a string
// literal starting at i (src[i] is ' or ").
func skipString(src string, i int) int {
	n := len(src)
	quote := src[i]
	i++
	for i < n {
		if src[i] == '\\' {
			i += 2
			continue
		}
		if src[i] == quote {
			return i + 1
		}
		i++
	}
	return n
}

// skipTemplate returns the index just past the closing backtick of a
// template literal starting at i (src[i] == '`'), recursing into any
// ${...} interpolations so nested braces/strings don't confuse the caller.
func skipTemplate(src string, i int) int {
	n := len(src)
	i++ // opening backtick
	for i < n {
		switch {
		case src[i] == '\\':
			i += 2
		case src[i] == '`':
			return i + 1
		case i+1 < n && src[i] == '$' && src[i+1] == '{':
			i += 2
			depth := 1
			for i < n && depth > 0 {
				switch src[i] {
				case '{':
					depth++
					i++
				case '}':
					depth--
					i++
				case '\'', '"':
					i = skipString(src, i)
				case '`':
					i = skipTemplate(src, i)
				default:
					i++
				}
			}
		default:
			i++
		}
	}
	return n
}

// prevSignificant returns the last non-space byte before i, or 0.
func prevSignificant(src string, i int) byte {
	for i > 0 {
		i--
		c := src[i]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			continue
		}
		return c
	}
	return 0
}

// regexAllowed guesses whether a '/' at position i begins a regex literal
// rather than a division operator, based on the preceding significant byte.
// This is the same ambiguity every hand-rolled JS scanner hits; we resolve it
// heuristically rather than tracking full operator-precedence state.
func regexAllowed(src string, i int) bool {
	c := prevSignificant(src, i)
	if c == 0 {
		return true
	}
	switch {
	case c == ')' || c == ']':
		return false
	case c == '_' || c == '$' || isAlphaNum(c):
		return false
	default:
		return true
	}
}

func isAlphaNum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}

// skipRegex returns the index just past a regex literal's trailing flags,
// starting at i (src[i] == '/').
func skipRegex(src string, i int) int {
	n := len(src)
	i++
	inClass := false
	for i < n {
		switch {
		case src[i] == '\\':
			i += 2
		case src[i] == '[':
			inClass = true
			i++
		case src[i] == ']':
			inClass = false
			i++
		case src[i] == '/' && !inClass:
			i++
			for i < n && isAlphaNum(src[i]) {
				i++
			}
			return i
		default:
			i++
		}
	}
	return n
}

// scanIdent reads an identifier token starting at i, returning (name, end).
func scanIdent(src string, i int) (string, int) {
	start := i
	n := len(src)
	for i < n && isIdentPart(src[i]) {
		i++
	}
	return src[start:i], i
}

// peekWord reports whether the identifier-like token at i equals word and is
// not itself a prefix of a longer identifier.
func peekWord(src string, i int, word string) bool {
	if !strings.HasPrefix(src[i:], word) {
		return false
	}
	end := i + len(word)
	if end < len(src) && isIdentPart(src[end]) {
		return false
	}
	return true
}

// matchBracket returns the index of the byte matching the opening bracket at
// openIdx (one of '(', '[', '{'), skipping over strings/templates/comments/
// regexes so nested occurrences inside them don't throw off the count.
func matchBracket(src string, openIdx int) int {
	open := src[openIdx]
	var close byte
	switch open {
	case '(':
		close = ')'
	case '[':
		close = ']'
	case '{':
		close = '}'
	default:
		return -1
	}
	n := len(src)
	depth := 0
	i := openIdx
	for i < n {
		c := src[i]
		switch {
		case c == '\'' || c == '"':
			i = skipString(src, i)
			continue
		case c == '`':
			i = skipTemplate(src, i)
			continue
		case c == '/' && i+1 < n && src[i+1] == '/':
			for i < n && src[i] != '\n' {
				i++
			}
			continue
		case c == '/' && i+1 < n && src[i+1] == '*':
			i += 2
			for i+1 < n && !(src[i] == '*' && src[i+1] == '/') {
				i++
			}
			i += 2
			continue
		case c == '/' && regexAllowed(src, i):
			i = skipRegex(src, i)
			continue
		case c == open:
			depth++
			i++
		case c == close:
			depth--
			if depth == 0 {
				return i
			}
			i++
		default:
			i++
		}
	}
	return -1
}
