package specifier

import (
	"encoding/json"
	"strings"
)

// exportsValue mirrors the polymorphic shape of package.json's "exports"
// field: a string leaf, an array, or a map (either a subpath map keyed by
// "."/"./..." or a conditions map keyed by condition names). Grounded on
// the teacher's exportValue (common/package_json.go), extended with Array
// per spec §3 ("exports is either a string, an array, a conditional
// mapping... or a subpath mapping").
type exportsValue struct {
	Path  string
	Array []*exportsValue
	Map   map[string]*exportsValue
}

func (v *exportsValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v.Path = s
		return nil
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err == nil {
		v.Array = make([]*exportsValue, len(arr))
		for i, raw := range arr {
			child := &exportsValue{}
			if err := json.Unmarshal(raw, child); err != nil {
				return err
			}
			v.Array[i] = child
		}
		return nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	v.Map = make(map[string]*exportsValue, len(m))
	for k, raw := range m {
		child := &exportsValue{}
		if err := json.Unmarshal(raw, child); err != nil {
			return err
		}
		v.Map[k] = child
	}
	return nil
}

// Manifest is the subset of package.json recognized for resolution.
type Manifest struct {
	Main    string        `json:"main"`
	Module  string        `json:"module"`
	Exports *exportsValue `json:"exports"`
}

// conditionOrder is the fixed condition priority spec §3 names: "import",
// "module", "default" in that order; any other condition key is ignored.
// This diverges deliberately from the teacher's platform-parametrized
// node/browser condition lists (common/package_json.go's resolveCondition)
// because spec.md fixes the order rather than making it caller-supplied.
var conditionOrder = []string{"import", "module", "default"}

// resolveEntry resolves the subpath within a parsed manifest's exports
// field, or "", false if nothing exported for that subpath (spec §4.1
// step 4). ok is false to distinguish "not exported" from "resolved to the
// empty string", which never legitimately happens but keeps the contract
// explicit.
func resolveEntry(m *Manifest, subpath string) (string, bool) {
	if m.Exports != nil {
		if val, ok := lookupSubpath(m.Exports, subpath); ok {
			if resolved, ok := unwrap(val); ok {
				return resolved, true
			}
		}
		return "", false
	}
	if subpath == "." {
		if m.Module != "" {
			return m.Module, true
		}
		if m.Main != "" {
			return m.Main, true
		}
		return "./index.js", true
	}
	// exports absent and subpath non-root: used verbatim.
	return strings.TrimPrefix(subpath, "."), true
}

// lookupSubpath finds the raw (still possibly conditional) exports value
// for subpath: exact subpath-map match, then glob match, per spec §4.1
// step 4. For subpath "." against a conditions-only map (no "."-prefixed
// keys), the whole map is the value.
func lookupSubpath(exports *exportsValue, subpath string) (*exportsValue, bool) {
	if exports.Path != "" || exports.Array != nil {
		if subpath == "." {
			return exports, true
		}
		return nil, false
	}
	if exports.Map == nil {
		return nil, false
	}

	isSubpathMap := false
	for key := range exports.Map {
		if strings.HasPrefix(key, ".") {
			isSubpathMap = true
			break
		}
	}
	if !isSubpathMap {
		if subpath == "." {
			return exports, true
		}
		return nil, false
	}

	if entry, ok := exports.Map[subpath]; ok {
		return entry, true
	}

	// Glob match: each key/value may contain exactly one "*"; the matched
	// middle segment substitutes into the value's "*".
	for key, entry := range exports.Map {
		star := strings.IndexByte(key, '*')
		if star < 0 {
			continue
		}
		prefix, suffix := key[:star], key[star+1:]
		if !strings.HasPrefix(subpath, prefix) || !strings.HasSuffix(subpath, suffix) {
			continue
		}
		if len(subpath) < len(prefix)+len(suffix) {
			continue
		}
		mid := subpath[len(prefix) : len(subpath)-len(suffix)]
		substituted := substituteGlob(entry, mid)
		if substituted != nil {
			return substituted, true
		}
	}
	return nil, false
}

// substituteGlob recursively rewrites every "*" found in string leaves of
// entry with mid, preserving conditional/array structure.
func substituteGlob(entry *exportsValue, mid string) *exportsValue {
	if entry == nil {
		return nil
	}
	if entry.Path != "" {
		return &exportsValue{Path: strings.Replace(entry.Path, "*", mid, 1)}
	}
	if entry.Array != nil {
		out := make([]*exportsValue, len(entry.Array))
		for i, e := range entry.Array {
			out[i] = substituteGlob(e, mid)
		}
		return &exportsValue{Array: out}
	}
	if entry.Map != nil {
		out := make(map[string]*exportsValue, len(entry.Map))
		for k, e := range entry.Map {
			out[k] = substituteGlob(e, mid)
		}
		return &exportsValue{Map: out}
	}
	return entry
}

// unwrap recursively resolves a conditional/array value to a final path
// string, per spec §4.1 step 4 ("unwrap by recursively taking the first
// present among import, module, default. Arrays unwrap to their first
// element."). ok is false for "not exported" (undefined at any unwrap
// step), spec §4.1's "Edge cases".
func unwrap(v *exportsValue) (string, bool) {
	if v == nil {
		return "", false
	}
	if v.Path != "" {
		return v.Path, true
	}
	if v.Array != nil {
		if len(v.Array) == 0 {
			return "", false
		}
		return unwrap(v.Array[0])
	}
	if v.Map != nil {
		for _, cond := range conditionOrder {
			if entry, ok := v.Map[cond]; ok {
				if resolved, ok := unwrap(entry); ok {
					return resolved, true
				}
			}
		}
	}
	return "", false
}
