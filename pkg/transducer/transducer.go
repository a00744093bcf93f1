/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: transducer.go
Description: Deterministic transducer model with bounded lookahead. Transitions may
consume more than one input symbol in a single step; input is consumed under a
longest-match-first rule so lookahead windows take precedence over their
single-symbol fallbacks. Used both for learned hypotheses and simulated targets.
*/

package transducer

import (
	"fmt"
	"sort"

	"github.com/kleascm/sflearn/pkg/interfaces"
)

// Epsilon is the sentinel symbol marking an empty transition output in the
// text serialization format. In-memory, empty outputs are plain empty words.
const Epsilon interfaces.Symbol = 0xffff

// Arc represents a single transition of the transducer.
type Arc struct {
	Input  interfaces.Word // Input window consumed when the transition is taken
	Output interfaces.Word // Output emitted when the transition is taken
	Next   int             // Index of the destination state
}

// State represents a single state of the transducer.
type State struct {
	ID      int
	Initial bool
	Final   bool
	Arcs    []Arc
}

// Transducer is a deterministic finite-state transducer whose transitions
// may consume input windows of varying length.
type Transducer struct {
	states []State
}

// New creates a transducer with a single initial state.
func New() *Transducer {
	t := &Transducer{}
	t.states = append(t.states, State{ID: 0, Initial: true, Final: true})
	return t
}

// NumStates returns the number of states in the transducer.
func (t *Transducer) NumStates() int {
	return len(t.states)
}

// State returns the state with the given index.
func (t *Transducer) State(i int) *State {
	return &t.states[i]
}

// AddArc adds a transition from src to dst consuming input and emitting
// output. Missing states are created on demand.
func (t *Transducer) AddArc(src, dst int, input, output interfaces.Word) {
	max := src
	if dst > max {
		max = dst
	}
	for len(t.states) <= max {
		t.states = append(t.states, State{ID: len(t.states), Final: true})
	}
	t.states[src].Arcs = append(t.states[src].Arcs, Arc{
		Input:  input.Clone(),
		Output: output.Clone(),
		Next:   dst,
	})
}

// match returns the longest arc of state whose input window is a prefix of
// the remaining input, or nil if no arc matches.
func (t *Transducer) match(state *State, remaining interfaces.Word) *Arc {
	var best *Arc
	for i := range state.Arcs {
		arc := &state.Arcs[i]
		if !remaining.HasPrefix(arc.Input) {
			continue
		}
		if best == nil || len(arc.Input) > len(best.Input) {
			best = arc
		}
	}
	return best
}

// ConsumeInput returns the output of the machine for the given input,
// consuming it with the longest-match-first rule.
func (t *Transducer) ConsumeInput(input interfaces.Word) (interfaces.Word, error) {
	var out interfaces.Word
	state := &t.states[0]
	i := 0
	for i < len(input) {
		arc := t.match(state, input[i:])
		if arc == nil {
			return nil, fmt.Errorf("invalid input %s: no transition from state %d at position %d",
				input, state.ID, i)
		}
		out = append(out, arc.Output...)
		state = &t.states[arc.Next]
		i += len(arc.Input)
	}
	return out, nil
}

// Walk runs the machine on input for at most steps consumed symbols and
// returns the index of the state reached together with the number of symbols
// actually consumed. A transition is never split: when a multi-symbol window
// straddles the step limit the walk runs past it, mirroring the stride of
// the state's lookahead window.
func (t *Transducer) Walk(input interfaces.Word, steps int) (int, int, error) {
	state := &t.states[0]
	idx := 0
	i := 0
	for i < len(input) && i < steps {
		arc := t.match(state, input[i:])
		if arc == nil {
			return 0, 0, fmt.Errorf("invalid input %s: no transition from state %d at position %d",
				input, state.ID, i)
		}
		state = &t.states[arc.Next]
		idx = arc.Next
		i += len(arc.Input)
	}
	return idx, i, nil
}

// LookaheadDepth returns the number of symbols beyond the first that
// transitions out of the state may examine: the longest window length at the
// state minus one.
func (t *Transducer) LookaheadDepth(state int) int {
	max := 1
	for _, arc := range t.states[state].Arcs {
		if len(arc.Input) > max {
			max = len(arc.Input)
		}
	}
	return max - 1
}

// WindowLength returns the length of the longest input window at the state.
// Always at least 1.
func (t *Transducer) WindowLength(state int) int {
	return t.LookaheadDepth(state) + 1
}

// Validate checks the structural invariants of the transducer: every arc
// targets an existing state, no state carries two arcs with the same input
// window, and every state with outgoing multi-symbol windows also covers the
// single-symbol fallbacks needed to keep consumption total over the state's
// windows.
func (t *Transducer) Validate() error {
	for si := range t.states {
		state := &t.states[si]
		seen := make(map[string]bool, len(state.Arcs))
		singles := make(map[interfaces.Symbol]bool)
		for _, arc := range state.Arcs {
			if arc.Next < 0 || arc.Next >= len(t.states) {
				return fmt.Errorf("state %d: arc on %s targets unknown state %d", si, arc.Input, arc.Next)
			}
			if len(arc.Input) == 0 {
				return fmt.Errorf("state %d: arc with empty input window", si)
			}
			key := arc.Input.Key()
			if seen[key] {
				return fmt.Errorf("state %d: duplicate transition on window %s", si, arc.Input)
			}
			seen[key] = true
			if len(arc.Input) == 1 {
				singles[arc.Input[0]] = true
			}
		}
		for _, arc := range state.Arcs {
			if len(arc.Input) > 1 && !singles[arc.Input[0]] {
				return fmt.Errorf("state %d: lookahead window %s has no single-symbol fallback", si, arc.Input)
			}
		}
	}
	return nil
}

// Clone returns a deep copy of the transducer.
func (t *Transducer) Clone() *Transducer {
	c := &Transducer{states: make([]State, len(t.states))}
	for i, s := range t.states {
		cs := s
		cs.Arcs = make([]Arc, len(s.Arcs))
		for j, a := range s.Arcs {
			cs.Arcs[j] = Arc{Input: a.Input.Clone(), Output: a.Output.Clone(), Next: a.Next}
		}
		c.states[i] = cs
	}
	return c
}

// SortArcs orders every state's arcs by window length descending, then
// lexicographically, giving the transducer a canonical shape for comparison.
func (t *Transducer) SortArcs() {
	for si := range t.states {
		arcs := t.states[si].Arcs
		sort.Slice(arcs, func(i, j int) bool {
			if len(arcs[i].Input) != len(arcs[j].Input) {
				return len(arcs[i].Input) > len(arcs[j].Input)
			}
			return arcs[i].Input.Compare(arcs[j].Input) < 0
		})
	}
}
