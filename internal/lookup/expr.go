package lookup

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"

	"github.com/vk/scenargo/internal/dslerr"
	"github.com/vk/scenargo/internal/value"
)

// Expr is a deferred resolver backed by a single compiled HCL expression.
//
// Evaluation is narrowly scoped by construction: the evaluation context
// carries only the variables derived from the supplied execution context
// and an empty function table. There is no ambient namespace, no standard
// library, and the expression grammar has no statements, so the only
// reachable state is what the scenario itself put into the context.
type Expr struct {
	source string
	expr   hcl.Expression
}

// NewExpr compiles a single-expression source string. Malformed syntax is a
// schema error at construction time.
func NewExpr(source string) (*Expr, error) {
	expr, diags := hclsyntax.ParseExpression([]byte(source), "<expr>", hcl.InitialPos)
	if diags.HasErrors() {
		return nil, &dslerr.SchemaError{
			Msg: "invalid expression syntax: " + diags.Error(),
			Loc: dslerr.NoLocation(),
		}
	}
	return &Expr{source: source, expr: expr}, nil
}

// Resolve evaluates the expression against the context. Context entries
// that cannot be represented as expression values (deferred functions,
// secrets) are dropped from scope rather than leaked. Any evaluation
// failure is reported as a runtime error carrying the expression source.
func (e *Expr) Resolve(ctx value.Context) (any, error) {
	vars := make(map[string]cty.Value, len(ctx))
	for name, item := range ctx {
		cv, err := toCty(item)
		if err != nil {
			continue
		}
		vars[name] = cv
	}

	evalCtx := &hcl.EvalContext{
		Variables: vars,
		Functions: map[string]function.Function{},
	}

	result, diags := e.expr.Value(evalCtx)
	if diags.HasErrors() {
		return nil, dslerr.NewRuntime("expression %q failed: %s", e.source, diags.Error())
	}

	native, err := fromCty(result)
	if err != nil {
		return nil, dslerr.NewRuntime("expression %q produced an unsupported value: %v", e.source, err)
	}
	return native, nil
}
