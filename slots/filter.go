package slots

import (
	"fmt"
	"time"

	"github.com/google/cel-go/cel"
)

// RowFilter is a compiled CEL boolean expression evaluated against a result row, which the
// expression sees as the map variable "row" keyed by column name.
type RowFilter struct {
	Expression string
	program    cel.Program
}

// NewRowFilter compiles expression, which must evaluate to a bool.
func NewRowFilter(expression string) (*RowFilter, error) {
	if expression == "" {
		return nil, fmt.Errorf("filter expression can't be empty")
	}
	env, err := cel.NewEnv(
		cel.Variable("row", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("error creating CEL environment: %w", err)
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("error compiling CEL expression: %w", issues.Err())
	}
	if t := ast.OutputType(); !t.IsExactType(cel.BoolType) && !t.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("filter expression '%s' must evaluate to a bool, not %v", expression, t)
	}
	p, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("error creating Program: %w", err)
	}
	return &RowFilter{
		Expression: expression,
		program:    p,
	}, nil
}

// Match evaluates the expression against row.
func (f *RowFilter) Match(row map[string]any) (bool, error) {
	converted := make(map[string]any, len(row))
	for k, v := range row {
		converted[k] = celValue(v)
	}
	out, _, err := f.program.Eval(map[string]any{
		"row": converted,
	})
	if err != nil {
		return false, fmt.Errorf("error evaluating CEL expression: %w", err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("filter expression '%s' returned %v, not a bool", f.Expression, out.Value())
	}
	return b, nil
}

// celValue maps driver values onto types CEL's default adapter understands. Values of
// other types (uuids, inet addresses) are compared by their string form.
func celValue(v any) any {
	switch t := v.(type) {
	case nil, string, bool, []byte, int64, uint64, float64, time.Duration, time.Time:
		return t
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case float32:
		return float64(t)
	case map[string]string:
		m := make(map[string]any, len(t))
		for k, x := range t {
			m[k] = x
		}
		return m
	case []string:
		l := make([]any, len(t))
		for i, x := range t {
			l[i] = x
		}
		return l
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}
