package selection

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"lumi/internal/event"
)

// Cut is a named event requirement.
// When holds a CEL expression that must evaluate to a bool; an event passes
// the cut when the expression is true.
// The CEL program is compiled by Init and reused for every event.
type Cut struct {
	// Name — label used in the cutflow.
	Name string `yaml:"name"`
	// When — CEL condition the event must satisfy.
	When string `yaml:"when"`
	// program — compiled CEL program for When.
	program cel.Program
}

// Init compiles When into an executable program using env.
// Syntax errors, type errors and non-bool expressions are reported.
func (c *Cut) Init(env *cel.Env) error {
	program, err := compile(env, c.When, cel.BoolType)
	if err != nil {
		return fmt.Errorf("cut %s: %w", c.Name, err)
	}
	c.program = program
	return nil
}

// Eval runs the cut on e.
// Unlike a scoring rule, an evaluation error is returned to the caller: an
// event that cannot be judged must not silently pass or fail.
func (c *Cut) Eval(e event.Event) (bool, error) {
	result, _, err := c.program.Eval(map[string]any(e))
	if err != nil {
		return false, fmt.Errorf("cut %s: %w", c.Name, err)
	}
	passed, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("cut %s: non-bool result %v", c.Name, result.Value())
	}
	return passed, nil
}

func compile(env *cel.Env, expr string, want *cel.Type) (cel.Program, error) {
	ast, iss := env.Parse(expr)
	if iss.Err() != nil {
		return nil, iss.Err()
	}

	checked, iss := env.Check(ast)
	if iss.Err() != nil {
		return nil, iss.Err()
	}

	if !checked.OutputType().IsExactType(want) {
		return nil, fmt.Errorf("expression '%s' returns %s, expected %s", expr, checked.OutputType(), want)
	}

	return env.Program(checked)
}
