package expressions

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/rendis/tileflow/pkg/schema"
)

// Top-level names a CEL switch condition can reference. Each is a
// map(string, dyn):
//   - inputs:   trace inputs
//   - workflow: definition metadata (id, title)
//   - switch:   the switch being decided (id, title, params)
var celVariables = []string{"inputs", "workflow", "switch"}

// CELEngine is the default condition language.
type CELEngine struct {
	env      *cel.Env
	programs *programCache[cel.Program]
}

func NewCELEngine() (*CELEngine, error) {
	vars := make([]cel.EnvOption, 0, len(celVariables))
	for _, name := range celVariables {
		vars = append(vars, cel.Variable(name, cel.MapType(cel.StringType, cel.DynType)))
	}
	env, err := cel.NewEnv(vars...)
	if err != nil {
		return nil, fmt.Errorf("cel environment: %w", err)
	}

	e := &CELEngine{env: env}
	e.programs = newProgramCache(schema.LangCEL, e.build)
	return e, nil
}

func (e *CELEngine) build(src string) (cel.Program, error) {
	ast, iss := e.env.Compile(src)
	if err := iss.Err(); err != nil {
		return nil, expressionError(schema.LangCEL, "compile", src, err)
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, expressionError(schema.LangCEL, "plan", src, err)
	}
	return prg, nil
}

func (e *CELEngine) Name() string { return schema.LangCEL }

func (e *CELEngine) Compile(expression string) error {
	_, err := e.programs.get(expression)
	return err
}

func (e *CELEngine) Evaluate(ctx context.Context, expression string, data map[string]any) (any, error) {
	prg, err := e.programs.get(expression)
	if err != nil {
		return nil, err
	}
	out, _, err := prg.ContextEval(ctx, celActivation(data))
	if err != nil {
		return nil, expressionError(schema.LangCEL, "eval", expression, err)
	}
	return out.Value(), nil
}

// celActivation binds every declared variable, using an empty map for the
// ones data lacks so has() and field selection never hit a missing name.
func celActivation(data map[string]any) map[string]any {
	act := make(map[string]any, len(celVariables))
	for _, name := range celVariables {
		v := data[name]
		if v == nil {
			v = map[string]any{}
		}
		act[name] = v
	}
	return act
}

var _ Engine = (*CELEngine)(nil)
