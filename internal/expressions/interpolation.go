package expressions

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/rendis/tileflow/pkg/schema"
)

// Scope holds the data a ${{...}} reference in a title can resolve against.
type Scope struct {
	Inputs   map[string]any
	Workflow map[string]any
	Switch   map[string]any
}

// HasInterpolation reports whether s contains a ${{...}} reference.
func HasInterpolation(s string) bool {
	return strings.Contains(s, "${{")
}

// Interpolate replaces every ${{namespace.path}} reference in s.
// Namespaces: inputs, workflow, switch.
func Interpolate(s string, scope Scope) (string, error) {
	return expand(s, func(ref string) (string, error) {
		val, err := resolveRef(ref, scope)
		if err != nil {
			return "", err
		}
		return inline(val), nil
	})
}

// CheckTemplate verifies the ${{...}} references in s are well formed and
// use a known namespace, without resolving them.
func CheckTemplate(s string) error {
	_, err := expand(s, func(ref string) (string, error) {
		ns, field, _ := strings.Cut(ref, ".")
		if !slices.Contains(namespaces, ns) {
			return "", unknownNamespace(ns, ref)
		}
		if field == "" {
			return "", invalidReference(ns, ref)
		}
		return "", nil
	})
	return err
}

var namespaces = []string{"inputs", "workflow", "switch"}

// expand scans s and substitutes each reference with the output of resolve.
func expand(s string, resolve func(ref string) (string, error)) (string, error) {
	if !HasInterpolation(s) {
		return s, nil
	}

	var result strings.Builder
	result.Grow(len(s))

	i := 0
	for i < len(s) {
		idx := strings.Index(s[i:], "${{")
		if idx == -1 {
			result.WriteString(s[i:])
			break
		}

		result.WriteString(s[i : i+idx])
		start := i + idx + 3

		end := strings.Index(s[start:], "}}")
		if end == -1 {
			return "", schema.NewError(schema.ErrCodeExpression, "unclosed ${{ expression")
		}
		end += start

		ref := strings.TrimSpace(s[start:end])
		if strings.Contains(ref, "${{") {
			return "", schema.NewError(schema.ErrCodeExpression,
				"nested interpolation not allowed: ${{...}} cannot contain ${{")
		}
		if ref == "" {
			return "", schema.NewError(schema.ErrCodeExpression, "empty variable reference: ${{  }}")
		}

		out, err := resolve(ref)
		if err != nil {
			return "", err
		}
		result.WriteString(out)

		i = end + 2
	}

	return result.String(), nil
}

// resolveRef resolves a single path like "inputs.customer.name".
func resolveRef(ref string, scope Scope) (any, error) {
	parts := strings.SplitN(ref, ".", 2)
	var data map[string]any
	switch parts[0] {
	case "inputs":
		data = scope.Inputs
	case "workflow":
		data = scope.Workflow
	case "switch":
		data = scope.Switch
	default:
		return nil, unknownNamespace(parts[0], ref)
	}

	if len(parts) < 2 || parts[1] == "" {
		return nil, invalidReference(parts[0], ref)
	}
	if data == nil {
		return nil, schema.NewErrorf(schema.ErrCodeExpression,
			"cannot resolve %q: %s scope is empty", ref, parts[0]).
			WithDetails(map[string]any{"expression": ref})
	}

	// Direct key lookup first (supports keys with dots).
	if val, ok := data[parts[1]]; ok {
		return val, nil
	}
	return traversePath(data, parts[1], ref)
}

func unknownNamespace(ns, ref string) *schema.TileflowError {
	return schema.NewErrorf(schema.ErrCodeExpression,
		"unknown namespace %q in ${{%s}}; available: %s", ns, ref, strings.Join(namespaces, ", ")).
		WithDetails(map[string]any{"expression": ref, "available_namespaces": namespaces})
}

func invalidReference(ns, ref string) *schema.TileflowError {
	return schema.NewErrorf(schema.ErrCodeExpression,
		"invalid reference %q: expected %s.<field>", ref, ns).
		WithDetails(map[string]any{"expression": ref})
}

// traversePath navigates into nested maps using a dot-delimited path.
func traversePath(root any, path, ref string) (any, error) {
	current := root
	for i, seg := range strings.Split(path, ".") {
		if seg == "" {
			return nil, schema.NewErrorf(schema.ErrCodeExpression,
				"empty segment in path %q at position %d", ref, i).
				WithDetails(map[string]any{"expression": ref})
		}

		m, ok := current.(map[string]any)
		if !ok {
			return nil, schema.NewErrorf(schema.ErrCodeExpression,
				"cannot traverse into non-object at %q in %q (type: %T)", seg, ref, current).
				WithDetails(map[string]any{"expression": ref})
		}
		val, ok := m[seg]
		if !ok {
			keys := mapKeys(m)
			return nil, schema.NewErrorf(schema.ErrCodeExpression,
				"field %q not found in %q; available: [%s]", seg, ref, strings.Join(keys, ", ")).
				WithDetails(map[string]any{"expression": ref, "available_fields": keys})
		}
		current = val
	}
	return current, nil
}

// inline renders a resolved value for embedding in text.
func inline(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case nil:
		return "null"
	case bool, int, int64, float64:
		return fmt.Sprintf("%v", v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

func mapKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
