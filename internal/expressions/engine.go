package expressions

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rendis/tileflow/pkg/schema"
)

// Engine evaluates switch conditions.
// Three implementations: CEL (default), Expr and GoJQ.
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}

// Compiler is implemented by engines that can check an expression without
// evaluating it.
type Compiler interface {
	Compile(expression string) error
}

// Registry dispatches conditions to an engine by language name.
type Registry struct {
	engines map[string]Engine
}

// NewRegistry creates a registry with the CEL, Expr and GoJQ engines.
func NewRegistry() (*Registry, error) {
	celEngine, err := NewCELEngine()
	if err != nil {
		return nil, err
	}
	r := &Registry{engines: make(map[string]Engine, 3)}
	r.Register(celEngine)
	r.Register(NewExprEngine())
	r.Register(NewGoJQEngine())
	return r, nil
}

// Register adds or replaces an engine under its Name.
func (r *Registry) Register(e Engine) {
	r.engines[e.Name()] = e
}

// Languages returns the registered language names, sorted.
func (r *Registry) Languages() []string {
	out := make([]string, 0, len(r.engines))
	for name := range r.engines {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Engine returns the engine for lang. An empty lang selects CEL.
func (r *Registry) Engine(lang string) (Engine, error) {
	if lang == "" {
		lang = schema.LangCEL
	}
	e, ok := r.engines[lang]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeExpression,
			"unknown condition language %q; available: %s", lang, strings.Join(r.Languages(), ", ")).
			WithDetails(map[string]any{"lang": lang, "available": r.Languages()})
	}
	return e, nil
}

// Compile checks a condition without evaluating it.
func (r *Registry) Compile(lang, expression string) error {
	e, err := r.Engine(lang)
	if err != nil {
		return err
	}
	if c, ok := e.(Compiler); ok {
		return c.Compile(expression)
	}
	return nil
}

// EvaluateCondition evaluates a switch condition and coerces the result to a
// boolean. jq conditions follow jq truthiness (only false and null are false);
// CEL and Expr must produce a bool.
func (r *Registry) EvaluateCondition(ctx context.Context, lang, expression string, data map[string]any) (bool, error) {
	e, err := r.Engine(lang)
	if err != nil {
		return false, err
	}
	out, err := e.Evaluate(ctx, expression, data)
	if err != nil {
		return false, err
	}

	if e.Name() == schema.LangJQ {
		switch v := out.(type) {
		case nil:
			return false, nil
		case bool:
			return v, nil
		case JQOutputs:
			return false, schema.NewErrorf(schema.ErrCodeExpression,
				"jq condition %q produced %d outputs, want one", expression, len(v))
		default:
			return true, nil
		}
	}

	b, ok := out.(bool)
	if !ok {
		return false, schema.NewErrorf(schema.ErrCodeExpression,
			"%s condition %q produced %T, want bool", e.Name(), expression, out).
			WithDetails(map[string]any{"expression": expression, "result": fmt.Sprint(out)})
	}
	return b, nil
}
