package resolve

import "strings"

// EdgeCaseHandler is a stateless, fast-`applies()` check for a
// language-specific reference shape that the generic strategies can't or
// shouldn't match (spec §4.3 strategy 2): UFCS forms, well-known stdlib
// prefixes, primitive types that never resolve to a repo entity.
type EdgeCaseHandler struct {
	Name    string
	Applies func(target string) bool

	// Resolve returns the normalized target to continue resolution with
	// (e.g. stripping the `<T as Trait>::` disambiguator down to `T::method`
	// so CallAliases can match it), and whether resolution should stop here
	// (true for "this is definitely external, mark unresolved-external and
	// move on" cases like primitives).
	Resolve func(target string) (normalized string, external bool)
}

// primitiveTypes mirrors the teacher's isPrimitiveOrBuiltinType, extended
// across the five first-class languages' builtin scalar names.
var primitiveTypes = map[string]bool{
	"string": true, "int": true, "int8": true, "int16": true, "int32": true, "int64": true,
	"uint": true, "uint8": true, "uint16": true, "uint32": true, "uint64": true,
	"float32": true, "float64": true, "complex64": true, "complex128": true,
	"bool": true, "byte": true, "rune": true, "error": true,
	"any": true, "interface{}": true,
	"i8": true, "i16": true, "i32": true, "i64": true, "i128": true, "isize": true,
	"u8": true, "u16": true, "u32": true, "u64": true, "u128": true, "usize": true,
	"f32": true, "f64": true, "str": true, "char": true,
	"None": true, "True": true, "False": true,
	"number": true, "boolean": true, "void": true, "undefined": true, "null": true,
	"int_t": true, "void_t": true,
	"Context": true,
}

var stdlibPrefixes = []string{
	"std::", "core::", "alloc::",
	"fmt.", "os.", "io.", "strings.", "strconv.", "context.", "errors.", "sync.", "time.",
	"java.lang.", "java.util.", "java.io.",
}

// DefaultEdgeCaseHandlers returns the built-in edge-case handlers applied
// before CallAliases, in order.
func DefaultEdgeCaseHandlers() []EdgeCaseHandler {
	return []EdgeCaseHandler{
		{
			Name: "ufcs-trait-disambiguator",
			Applies: func(target string) bool {
				return strings.HasPrefix(target, "<") && strings.Contains(target, " as ")
			},
			Resolve: func(target string) (string, bool) {
				// "<T as Trait>::method" -> "T::method": the normalized form
				// CallAliases stores for trait-impl methods (§4.3 strategy 2,
				// feeding strategy 3).
				inner := strings.TrimPrefix(target, "<")
				asIdx := strings.Index(inner, " as ")
				if asIdx < 0 {
					return target, false
				}
				typePart := inner[:asIdx]
				rest := inner[asIdx:]
				closeIdx := strings.Index(rest, ">")
				if closeIdx < 0 {
					return target, false
				}
				tail := rest[closeIdx+1:]
				return typePart + tail, false
			},
		},
		{
			Name: "primitive-type",
			Applies: func(target string) bool {
				return primitiveTypes[target]
			},
			Resolve: func(target string) (string, bool) {
				return target, true
			},
		},
		{
			Name: "stdlib-prefix",
			Applies: func(target string) bool {
				for _, prefix := range stdlibPrefixes {
					if strings.HasPrefix(target, prefix) {
						return true
					}
				}
				return false
			},
			Resolve: func(target string) (string, bool) {
				return target, true
			},
		},
	}
}
