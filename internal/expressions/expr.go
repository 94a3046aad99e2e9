package expressions

import (
	"context"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/rendis/tileflow/pkg/schema"
)

// ExprEngine evaluates conditions with expr-lang/expr. Useful when a
// condition needs filter/any/all over inputs, ?? or ?. on optional fields.
type ExprEngine struct {
	programs *programCache[*vm.Program]
}

func NewExprEngine() *ExprEngine {
	return &ExprEngine{programs: newProgramCache(schema.LangExpr, func(src string) (*vm.Program, error) {
		// Names resolve at run time so one program serves any inputs.
		prg, err := expr.Compile(src, expr.AllowUndefinedVariables())
		if err != nil {
			return nil, expressionError(schema.LangExpr, "compile", src, err)
		}
		return prg, nil
	})}
}

func (e *ExprEngine) Name() string { return schema.LangExpr }

func (e *ExprEngine) Compile(expression string) error {
	_, err := e.programs.get(expression)
	return err
}

// Evaluate runs expression with every key of data as a top-level variable.
func (e *ExprEngine) Evaluate(_ context.Context, expression string, data map[string]any) (any, error) {
	prg, err := e.programs.get(expression)
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = map[string]any{}
	}
	out, err := vm.Run(prg, data)
	if err != nil {
		return nil, expressionError(schema.LangExpr, "run", expression, err)
	}
	return out, nil
}

var _ Engine = (*ExprEngine)(nil)
