package cutflow

import (
	"fmt"
	"strings"
	"sync"

	"lumi/internal/weight"
)

// Step is the tally of events that survived one cut.
type Step struct {
	Name     string           `json:"name"`
	Events   int64            `json:"events"`
	Weighted weight.JSONFloat `json:"weighted"`
}

// Cutflow counts events passing a sequence of named cuts. Steps are kept in
// the order their names were first seen.
type Cutflow struct {
	names []string
	steps map[string]*Step
	mu    sync.Mutex
}

// New creates a cutflow with the given steps registered up front, so that
// cuts nobody passes still show up with zero counts.
func New(names ...string) *Cutflow {
	c := &Cutflow{steps: make(map[string]*Step)}
	for _, name := range names {
		c.step(name)
	}
	return c
}

// Pass records that an event with weight w survived the cut name.
func (c *Cutflow) Pass(name string, w float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.step(name)
	s.Events++
	s.Weighted += weight.JSONFloat(w)
}

// Steps returns a copy of all steps in order.
func (c *Cutflow) Steps() []Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]Step, len(c.names))
	for i, name := range c.names {
		result[i] = *c.steps[name]
	}
	return result
}

// String renders one aligned "name: events weighted" line per step.
func (c *Cutflow) String() string {
	steps := c.Steps()
	if len(steps) == 0 {
		return "(no cuts)"
	}

	width := 0
	for _, s := range steps {
		width = max(width, len(s.Name))
	}

	var sb strings.Builder
	for _, s := range steps {
		fmt.Fprintf(&sb, "%s:%s\t%d\t%g\n", s.Name, strings.Repeat(" ", width-len(s.Name)), s.Events, s.Weighted)
	}
	return sb.String()
}

func (c *Cutflow) step(name string) *Step {
	s, found := c.steps[name]
	if !found {
		s = &Step{Name: name}
		c.steps[name] = s
		c.names = append(c.names, name)
	}
	return s
}
