package broadcast

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
)

// MaxFilterLen bounds subscriber filter expressions.
const MaxFilterLen = 2048

// celFilter wraps a compiled CEL program evaluated against each record. When
// disabled, Eval always returns true.
type celFilter struct {
	prog    cel.Program
	enabled bool
}

func newCELFilter(expr string) (celFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return celFilter{}, nil
	}
	if len(expr) > MaxFilterLen {
		return celFilter{}, fmt.Errorf("broadcast: filter longer than %d bytes", MaxFilterLen)
	}
	env, err := cel.NewEnv(
		// Parsed record (map/list/values) for field filtering
		cel.Variable("json", cel.DynType),
		cel.Variable("size", cel.IntType),
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return celFilter{}, err
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return celFilter{}, fmt.Errorf("broadcast: invalid filter: %w", iss.Err())
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return celFilter{}, fmt.Errorf("broadcast: filter must evaluate to bool, got %s", ast.OutputType())
	}
	prog, err := env.Program(ast)
	if err != nil {
		return celFilter{}, err
	}
	return celFilter{prog: prog, enabled: true}, nil
}

// Eval reports whether the record passes the filter. Evaluation errors and
// non-bool results reject the record.
func (f celFilter) Eval(v parsedRecord) bool {
	if !f.enabled {
		return true
	}
	out, _, err := f.prog.Eval(map[string]any{
		"json":   v.value,
		"size":   int64(v.size),
		"now_ms": time.Now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}

type parsedRecord struct {
	value any
	size  int
}

// filterView parses a published payload at most once per Publish, and only
// when some subscriber has a filter.
type filterView struct {
	parsed *parsedRecord
}

func (v *filterView) get(data []byte) parsedRecord {
	if v.parsed == nil {
		var obj any
		_ = json.Unmarshal(data, &obj)
		v.parsed = &parsedRecord{value: obj, size: len(data)}
	}
	return *v.parsed
}
