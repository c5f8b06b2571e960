package selection

import (
	"fmt"
	"os"

	"github.com/google/cel-go/cel"
	"gopkg.in/yaml.v3"

	"lumi/internal/event"
)

// Selection is an event weight expression and an ordered list of cuts.
//
// The file format is:
//
//	weight: lumi_weight(mc_dataset_id) * mc_event_weight
//	cuts:
//	  - name: trigger
//	    when: trigger
//	  - name: two_leptons
//	    when: n_lep >= 2
type Selection struct {
	// Weight — CEL expression of type double giving the event weight.
	Weight string `yaml:"weight"`
	// Cuts — requirements applied in declaration order.
	Cuts []Cut `yaml:"cuts"`

	weightProgram cel.Program
}

// Result is the outcome of applying a selection to one event.
type Result struct {
	// Passed is true when the event survived every cut.
	Passed bool
	// FailedCut is the name of the first cut the event did not pass.
	FailedCut string
	// Weight is the evaluated weight expression, set for rejected events too.
	Weight float64
}

// Init compiles the weight expression and every cut. An empty weight
// expression is replaced with defaultWeight.
func (s *Selection) Init(env *cel.Env, defaultWeight string) error {
	if s.Weight == "" {
		s.Weight = defaultWeight
	}

	program, err := compile(env, s.Weight, cel.DoubleType)
	if err != nil {
		return fmt.Errorf("weight: %w", err)
	}
	s.weightProgram = program

	seen := make(map[string]bool, len(s.Cuts))
	for i := range s.Cuts {
		if s.Cuts[i].Name == "" {
			s.Cuts[i].Name = fmt.Sprintf("cut_%d", i+1)
		}
		if seen[s.Cuts[i].Name] {
			return fmt.Errorf("cut %s: duplicate name", s.Cuts[i].Name)
		}
		seen[s.Cuts[i].Name] = true

		if err := s.Cuts[i].Init(env); err != nil {
			return err
		}
	}
	return nil
}

// Apply evaluates the weight of e, then runs the cuts in order until one fails.
// The weight is computed first so every cutflow step can sum it.
func (s *Selection) Apply(e event.Event) (Result, error) {
	out, _, err := s.weightProgram.Eval(map[string]any(e))
	if err != nil {
		return Result{}, fmt.Errorf("weight: %w", err)
	}
	w, ok := out.Value().(float64)
	if !ok {
		return Result{}, fmt.Errorf("weight: non-double result %v", out.Value())
	}

	for i := range s.Cuts {
		passed, err := s.Cuts[i].Eval(e)
		if err != nil {
			return Result{}, err
		}
		if !passed {
			return Result{FailedCut: s.Cuts[i].Name, Weight: w}, nil
		}
	}
	return Result{Passed: true, Weight: w}, nil
}

// CutNames returns the cut names in evaluation order.
func (s *Selection) CutNames() []string {
	names := make([]string, len(s.Cuts))
	for i := range s.Cuts {
		names[i] = s.Cuts[i].Name
	}
	return names
}

// Parse decodes a YAML selection and compiles it against env.
func Parse(content []byte, env *cel.Env, defaultWeight string) (*Selection, error) {
	var s Selection
	if err := yaml.Unmarshal(content, &s); err != nil {
		return nil, err
	}
	if err := s.Init(env, defaultWeight); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadFromFile reads a YAML selection from file.
func LoadFromFile(file string, env *cel.Env, defaultWeight string) (*Selection, error) {
	content, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	return Parse(content, env, defaultWeight)
}
