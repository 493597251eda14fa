// Package expression evaluates skip predicates and routing conditions
// against onboarding session state using expr-lang.
package expression

import (
	"fmt"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Engine is a wrapper around expr-lang/expr with a compiled-program cache.
// Predicates come from the static step catalog, so the cache is small and
// never evicted.
type Engine struct {
	programCache map[string]*vm.Program
	mu           sync.RWMutex
}

// NewEngine creates a new expression engine
func NewEngine() *Engine {
	return &Engine{
		programCache: make(map[string]*vm.Program),
	}
}

// Evaluate compiles (if needed) and runs an expression against the given environment
func (e *Engine) Evaluate(expression string, env map[string]interface{}) (interface{}, error) {
	program, err := e.getProgram(expression)
	if err != nil {
		return nil, err
	}
	return expr.Run(program, env)
}

// EvaluateBool runs a predicate expecting a boolean result. A non-boolean
// result is an error, not a truthy coercion.
func (e *Engine) EvaluateBool(expression string, env map[string]interface{}) (bool, error) {
	result, err := e.Evaluate(expression, env)
	if err != nil {
		return false, err
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("predicate %q returned %T, expected bool", expression, result)
	}
	return b, nil
}

// Validate checks that an expression compiles
func (e *Engine) Validate(expression string) error {
	_, err := e.getProgram(expression)
	return err
}

func (e *Engine) getProgram(expression string) (*vm.Program, error) {
	e.mu.RLock()
	if prog, ok := e.programCache[expression]; ok {
		e.mu.RUnlock()
		return prog, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	// Double check
	if prog, ok := e.programCache[expression]; ok {
		return prog, nil
	}

	options := []expr.Option{
		expr.AllowUndefinedVariables(),
		expr.Function("TODAY", func(params ...interface{}) (interface{}, error) {
			return time.Now().Format("2006-01-02"), nil
		}),
		expr.Function("HAS", func(params ...interface{}) (interface{}, error) {
			if len(params) != 2 {
				return nil, fmt.Errorf("HAS requires 2 arguments (map, key)")
			}
			m, ok := params[0].(map[string]interface{})
			if !ok {
				return false, nil
			}
			key, ok := params[1].(string)
			if !ok {
				return nil, fmt.Errorf("HAS key must be string")
			}
			v, exists := m[key]
			return exists && v != nil && v != "", nil
		}),
		expr.Function("COMPLETED", func(params ...interface{}) (interface{}, error) {
			if len(params) != 2 {
				return nil, fmt.Errorf("COMPLETED requires 2 arguments (steps, step)")
			}
			steps, ok := params[0].([]string)
			if !ok {
				// env may carry []interface{} after JSON round-trips
				raw, rok := params[0].([]interface{})
				if !rok {
					return false, nil
				}
				steps = make([]string, 0, len(raw))
				for _, r := range raw {
					if s, sok := r.(string); sok {
						steps = append(steps, s)
					}
				}
			}
			want, ok := params[1].(string)
			if !ok {
				return nil, fmt.Errorf("COMPLETED step must be string")
			}
			for _, s := range steps {
				if s == want {
					return true, nil
				}
			}
			return false, nil
		}),
	}

	program, err := expr.Compile(expression, options...)
	if err != nil {
		return nil, err
	}

	e.programCache[expression] = program
	return program, nil
}
