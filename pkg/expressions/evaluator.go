package expressions

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/jmespath/go-jmespath"
)

// Evaluator wraps JMESPath expression evaluation with a compile cache
type Evaluator struct {
	cache map[string]*jmespath.JMESPath
	mu    sync.RWMutex
}

func NewEvaluator() *Evaluator {
	return &Evaluator{
		cache: make(map[string]*jmespath.JMESPath),
	}
}

// Evaluate evaluates a JMESPath expression against data
func (e *Evaluator) Evaluate(expression string, data any) (any, error) {
	compiled, err := e.getOrCompile(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid expression %q: %w", expression, err)
	}

	result, err := compiled.Search(data)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate expression %q: %w", expression, err)
	}

	return result, nil
}

// EvaluateOptionalInt returns ok=false when the expression yields null.
func (e *Evaluator) EvaluateOptionalInt(expression string, data any) (int64, bool, error) {
	result, err := e.Evaluate(expression, data)
	if err != nil {
		return 0, false, err
	}

	switch v := result.(type) {
	case nil:
		return 0, false, nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false, fmt.Errorf("expression %q: %w", expression, err)
		}
		return n, true, nil
	case float64:
		return int64(v), true, nil
	case int:
		return int64(v), true, nil
	case int64:
		return v, true, nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, false, fmt.Errorf("expression %q: %w", expression, err)
		}
		return n, true, nil
	default:
		return 0, false, fmt.Errorf("expression %q: cannot convert %T to int", expression, result)
	}
}

// EvaluateRecords evaluates an expression that yields a list and re-encodes
// each element so it can be decoded on its own. Null yields no records.
func (e *Evaluator) EvaluateRecords(expression string, data any) ([]json.RawMessage, error) {
	result, err := e.Evaluate(expression, data)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	items, ok := result.([]any)
	if !ok {
		return nil, fmt.Errorf("expression %q: expected a list, got %T", expression, result)
	}

	records := make([]json.RawMessage, 0, len(items))
	for i, item := range items {
		raw, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("expression %q: failed to encode element %d: %w", expression, i, err)
		}
		records = append(records, raw)
	}
	return records, nil
}

// Validate checks if an expression is valid
func (e *Evaluator) Validate(expression string) error {
	_, err := e.getOrCompile(expression)
	return err
}

func (e *Evaluator) getOrCompile(expression string) (*jmespath.JMESPath, error) {
	e.mu.RLock()
	if compiled, ok := e.cache[expression]; ok {
		e.mu.RUnlock()
		return compiled, nil
	}
	e.mu.RUnlock()

	compiled, err := jmespath.Compile(expression)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[expression] = compiled
	e.mu.Unlock()

	return compiled, nil
}
