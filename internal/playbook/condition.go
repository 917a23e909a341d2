package playbook

import (
	"fmt"
	"log/slog"
	"strings"

	"orion-sentinel/internal/schema"
)

// EvaluateCondition evaluates one comparison against an event's document
// tree. A missing field never satisfies a positive comparison; Negate
// inverts the final result, including the missing case. Type mismatches
// resolve to false and are logged, never raised.
func EvaluateCondition(cond Condition, event *schema.Event) bool {
	value, found := ResolvePath(event.Tree(), cond.Field)

	result := false
	if found {
		matched, err := compare(value, cond.Operator, cond.Value)
		if err != nil {
			slog.Warn("condition evaluation failed",
				"field", cond.Field,
				"operator", cond.Operator,
				"event_id", event.ID,
				"error", err)
			matched = false
		}
		result = matched
	}

	if cond.Negate {
		return !result
	}
	return result
}

// ResolvePath resolves a dot-separated path through nested maps.
// Returns the value and whether every segment was present. Only
// dict-of-dicts traversal is supported, no array indexing.
func ResolvePath(tree map[string]any, path string) (any, bool) {
	var current any = tree
	for _, segment := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		value, present := node[segment]
		if !present {
			return nil, false
		}
		current = value
	}
	return current, true
}

func compare(fieldValue any, op Operator, condValue any) (bool, error) {
	switch op {
	case OpEQ:
		return looseEqual(fieldValue, condValue), nil
	case OpNE:
		return !looseEqual(fieldValue, condValue), nil
	case OpGT, OpGE, OpLT, OpLE:
		return compareOrdered(fieldValue, op, condValue)
	case OpContains:
		return strings.Contains(stringify(fieldValue), stringify(condValue)), nil
	case OpNotContains:
		return !strings.Contains(stringify(fieldValue), stringify(condValue)), nil
	case OpIn:
		return membership(fieldValue, condValue)
	case OpNotIn:
		member, err := membership(fieldValue, condValue)
		if err != nil {
			return false, err
		}
		return !member, nil
	}
	return false, fmt.Errorf("unknown operator: %s", op)
}

// looseEqual compares values with numeric coercion, so YAML ints match
// JSON float64s.
func looseEqual(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return a == b
}

func compareOrdered(fieldValue any, op Operator, condValue any) (bool, error) {
	af, aok := toFloat(fieldValue)
	bf, bok := toFloat(condValue)
	if aok && bok {
		switch op {
		case OpGT:
			return af > bf, nil
		case OpGE:
			return af >= bf, nil
		case OpLT:
			return af < bf, nil
		case OpLE:
			return af <= bf, nil
		}
	}

	as, aok := fieldValue.(string)
	bs, bok := condValue.(string)
	if aok && bok {
		switch op {
		case OpGT:
			return as > bs, nil
		case OpGE:
			return as >= bs, nil
		case OpLT:
			return as < bs, nil
		case OpLE:
			return as <= bs, nil
		}
	}

	return false, fmt.Errorf("not comparable: %T %s %T", fieldValue, op, condValue)
}

func membership(fieldValue any, condValue any) (bool, error) {
	list, ok := condValue.([]any)
	if !ok {
		return false, fmt.Errorf("membership requires a list value, got %T", condValue)
	}
	for _, item := range list {
		if looseEqual(fieldValue, item) {
			return true, nil
		}
	}
	return false, nil
}

// toFloat coerces numeric types to float64. YAML decoding yields int,
// JSON decoding yields float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
