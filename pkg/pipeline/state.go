// Package pipeline runs the Scrape -> Analyze -> Suggest report pipeline and
// the factsheet and fund runs built from the same stages.
package pipeline

import (
	"fmt"
	"sync"
)

type State string

const (
	StateIdle       State = "idle"
	StateFetching   State = "fetching"
	StateAnalyzing  State = "analyzing"
	StatePrompting  State = "prompting"
	StateGenerating State = "generating"
	StateRendering  State = "rendering"
	StateDone       State = "done"
	StateError      State = "error"
)

// order is the forward order of the stage states. Error is outside it.
var order = map[State]int{
	StateIdle:       0,
	StateFetching:   1,
	StateAnalyzing:  2,
	StatePrompting:  3,
	StateGenerating: 4,
	StateRendering:  5,
	StateDone:       6,
}

// Stage reports whether s is one of the working states between Idle and Done.
func (s State) Stage() bool {
	n, ok := order[s]
	return ok && n > order[StateIdle] && n < order[StateDone]
}

// Terminal reports whether s ends a run.
func (s State) Terminal() bool {
	return s == StateDone || s == StateError
}

// CanTransition reports whether the machine may move from one state to the
// other. Runs only move forward, possibly skipping stages; Idle may only be
// left for a working stage; Error is reachable from any working stage; a
// finished run may only go back to Idle.
func CanTransition(from, to State) bool {
	switch {
	case from.Terminal():
		return to == StateIdle
	case to == StateError:
		return from.Stage()
	case from == StateIdle:
		return to.Stage()
	}

	fromN, okFrom := order[from]
	toN, okTo := order[to]
	return okFrom && okTo && toN > fromN
}

// Machine holds the state of the current run.
type Machine struct {
	mu       sync.Mutex
	state    State
	observer func(from, to State)
}

func NewMachine() *Machine {
	return &Machine{state: StateIdle}
}

// OnTransition registers fn to be called after every accepted transition.
func (m *Machine) OnTransition(fn func(from, to State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observer = fn
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Transition moves to the given state or returns an error when the move is
// not allowed.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	from := m.state
	if !CanTransition(from, to) {
		m.mu.Unlock()
		return fmt.Errorf("invalid state transition %s -> %s", from, to)
	}
	m.state = to
	observer := m.observer
	m.mu.Unlock()

	if observer != nil {
		observer(from, to)
	}
	return nil
}

// Reset returns a finished machine to Idle. It is a no-op when already Idle.
func (m *Machine) Reset() error {
	if m.State() == StateIdle {
		return nil
	}
	return m.Transition(StateIdle)
}
