package expressions

import (
	"context"

	"github.com/itchyny/gojq"

	"github.com/rendis/tileflow/pkg/schema"
)

// GoJQEngine evaluates jq filters. The condition data is the input
// document; $ENV is always empty.
type GoJQEngine struct {
	programs *programCache[*gojq.Code]
}

func NewGoJQEngine() *GoJQEngine {
	return &GoJQEngine{programs: newProgramCache(schema.LangJQ, compileJQ)}
}

func compileJQ(src string) (*gojq.Code, error) {
	q, err := gojq.Parse(src)
	if err != nil {
		return nil, expressionError(schema.LangJQ, "parse", src, err)
	}
	code, err := gojq.Compile(q, gojq.WithEnvironLoader(func() []string { return nil }))
	if err != nil {
		return nil, expressionError(schema.LangJQ, "compile", src, err)
	}
	return code, nil
}

func (e *GoJQEngine) Name() string { return schema.LangJQ }

func (e *GoJQEngine) Compile(expression string) error {
	_, err := e.programs.get(expression)
	return err
}

// JQOutputs holds the results of a filter that emitted more than one value.
// A single array-valued output is returned as a plain []any instead.
type JQOutputs []any

// Evaluate returns nil for no output, the value for one output and
// JQOutputs for several.
func (e *GoJQEngine) Evaluate(ctx context.Context, expression string, data map[string]any) (any, error) {
	code, err := e.programs.get(expression)
	if err != nil {
		return nil, err
	}

	var input any = map[string]any{}
	if data != nil {
		input = jqValue(data)
	}

	var outs []any
	it := code.RunWithContext(ctx, input)
	for v, ok := it.Next(); ok; v, ok = it.Next() {
		if err, isErr := v.(error); isErr {
			return nil, expressionError(schema.LangJQ, "run", expression, err)
		}
		outs = append(outs, v)
	}

	switch len(outs) {
	case 0:
		return nil, nil
	case 1:
		return outs[0], nil
	}
	return JQOutputs(outs), nil
}

// jqValue rewrites Go integers and float32 as float64, the only number
// type gojq accepts besides *big.Int.
func jqValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[k] = jqValue(e)
		}
		return m
	case []any:
		s := make([]any, len(x))
		for i, e := range x {
			s[i] = jqValue(e)
		}
		return s
	case int:
		return float64(x)
	case int8:
		return float64(x)
	case int16:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	case float32:
		return float64(x)
	}
	return v
}

var _ Engine = (*GoJQEngine)(nil)
