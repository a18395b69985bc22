package jsparse

import (
	"strings"

	"github.com/asaddevil123/Replete/internal/jsast"
)

// scanDynamicSites finds the three dynamic-specifier forms anywhere in
// source — import("x"), import.meta.resolve("x") and
// new URL("./x", import.meta.url) — regardless of nesting, since these can
// appear inside function bodies that the statement walk never enters. Each
// form replaces a different span depending on whether the surrounding code
// ends up evaluated as a module or a script (spec §4.2); see the three
// scan* helpers below for the exact ranges.
func scanDynamicSites(src string) []jsast.DynamicSite {
	var sites []jsast.DynamicSite
	n := len(src)
	for i := 0; i < n; i++ {
		c := src[i]
		switch {
		case c == '\'' || c == '"':
			i = skipString(src, i) - 1
			continue
		case c == '`':
			i = skipTemplate(src, i) - 1
			continue
		case i+1 < n && c == '/' && src[i+1] == '/':
			for i < n && src[i] != '\n' {
				i++
			}
			continue
		case i+1 < n && c == '/' && src[i+1] == '*':
			i += 2
			for i+1 < n && !(src[i] == '*' && src[i+1] == '/') {
				i++
			}
			i++
			continue
		case peekWord(src, i, "import") && !identBefore(src, i):
			j := skipSpaceAndComments(src, i+len("import"))
			if j < n && src[j] == '(' {
				if site, end, ok := scanImportExpression(src, j); ok {
					sites = append(sites, site)
					i = end - 1
				}
				continue
			}
			if j < n && src[j] == '.' {
				j = skipSpaceAndComments(src, j+1)
				if peekWord(src, j, "meta") {
					k := skipSpaceAndComments(src, j+len("meta"))
					if k < n && src[k] == '.' {
						k = skipSpaceAndComments(src, k+1)
						if peekWord(src, k, "resolve") {
							m := skipSpaceAndComments(src, k+len("resolve"))
							if m < n && src[m] == '(' {
								if site, end, ok := scanMetaResolve(src, i, m); ok {
									sites = append(sites, site)
									i = end - 1
								}
							}
						}
					}
				}
			}
		case peekWord(src, i, "new") && !identBefore(src, i):
			j := skipSpaceAndComments(src, i+len("new"))
			if peekWord(src, j, "URL") {
				k := skipSpaceAndComments(src, j+3)
				if k < n && src[k] == '(' {
					if site, end, ok := scanNewURLCall(src, k); ok {
						sites = append(sites, site)
						i = end - 1
					}
				}
			}
		}
	}
	return sites
}

func identBefore(src string, i int) bool {
	if i == 0 {
		return false
	}
	return isIdentPart(src[i-1])
}

// scanImportExpression handles import("x"): both ranges are the string
// literal argument alone (spec §4.2).
func scanImportExpression(src string, parenIdx int) (jsast.DynamicSite, int, bool) {
	close := matchBracket(src, parenIdx)
	if close == -1 {
		return jsast.DynamicSite{}, parenIdx + 1, false
	}
	litFrom, litTo, val, ok := findFirstStringLiteral(src, parenIdx+1, close)
	if !ok {
		return jsast.DynamicSite{}, close + 1, false
	}
	return jsast.DynamicSite{
		Value:      val,
		ModuleFrom: litFrom, ModuleTo: litTo,
		ScriptFrom: litFrom, ScriptTo: litTo,
	}, close + 1, true
}

// scanMetaResolve handles import.meta.resolve("x"): both ranges span the
// entire call, from the "import" keyword through the closing paren.
func scanMetaResolve(src string, callStart, parenIdx int) (jsast.DynamicSite, int, bool) {
	close := matchBracket(src, parenIdx)
	if close == -1 {
		return jsast.DynamicSite{}, parenIdx + 1, false
	}
	_, _, val, ok := findFirstStringLiteral(src, parenIdx+1, close)
	if !ok {
		return jsast.DynamicSite{}, close + 1, false
	}
	return jsast.DynamicSite{
		Value:      val,
		ModuleFrom: callStart, ModuleTo: close + 1,
		ScriptFrom: callStart, ScriptTo: close + 1,
	}, close + 1, true
}

// scanNewURLCall handles new URL("./x", import.meta.url): the module-range
// is the first argument alone (import.meta.url is legal there), the
// script-range is the whole argument list (so the call becomes
// `new URL("<resolved>")`, valid without a base since the resolved value is
// already absolute).
func scanNewURLCall(src string, parenIdx int) (jsast.DynamicSite, int, bool) {
	close := matchBracket(src, parenIdx)
	if close == -1 {
		return jsast.DynamicSite{}, parenIdx + 1, false
	}
	args := splitTopLevel(src[parenIdx+1 : close])
	if len(args) != 2 || !strings.Contains(args[1], "import.meta.url") {
		return jsast.DynamicSite{}, close + 1, false
	}
	litFrom, litTo, val, ok := findFirstStringLiteral(src, parenIdx+1, close)
	if !ok {
		return jsast.DynamicSite{}, close + 1, false
	}
	// Preserve the original (undocumented) predicate literally, per spec's
	// own open question: only "./" and "../" prefixes count; absolute paths
	// and fully-qualified URLs are silently left untouched.
	if !strings.HasPrefix(val, "./") && !strings.HasPrefix(val, "../") {
		return jsast.DynamicSite{}, close + 1, false
	}
	return jsast.DynamicSite{
		Value:      val,
		ModuleFrom: litFrom, ModuleTo: litTo,
		ScriptFrom: parenIdx + 1, ScriptTo: close,
	}, close + 1, true
}

func findFirstStringLiteral(src string, from, to int) (int, int, string, bool) {
	i := skipSpaceAndComments(src, from)
	if i >= to || (src[i] != '\'' && src[i] != '"') {
		return 0, 0, "", false
	}
	end := skipString(src, i)
	return i, end, src[i+1 : end-1], true
}

// scanMainSites finds every `import.meta.main` occurrence.
func scanMainSites(src string) []jsast.MainSite {
	var sites []jsast.MainSite
	n := len(src)
	for i := 0; i < n; i++ {
		if peekWord(src, i, "import") && !identBefore(src, i) {
			j := skipSpaceAndComments(src, i+len("import"))
			if j < n && src[j] == '.' {
				j = skipSpaceAndComments(src, j+1)
				if peekWord(src, j, "meta") {
					k := skipSpaceAndComments(src, j+len("meta"))
					if k < n && src[k] == '.' {
						k = skipSpaceAndComments(src, k+1)
						if peekWord(src, k, "main") {
							end := k + len("main")
							sites = append(sites, jsast.MainSite{From: i, To: end})
							i = end - 1
						}
					}
				}
			}
		}
	}
	return sites
}
