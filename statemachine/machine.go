// Package statemachine is a small table driven finite state machine shared by trackers, tools and
// controllers. Transitions are declared once as (state, input) -> (next state, action) entries;
// any pair without an entry runs the machine's invalid request handler and leaves the state
// alone.
package statemachine

import (
	"fmt"
	"sort"

	"go.igtrack.org/tracking/logging"
)

// Action runs after the machine has entered the transition's target state. Actions may push
// further inputs, which are processed before ProcessInputs returns.
type Action func()

// InvalidFunc is called for a (state, input) pair with no transition.
type InvalidFunc[S, I comparable] func(state S, input I)

// Transition is one row of the table.
type Transition[S, I comparable] struct {
	From   S
	Input  I
	To     S
	action Action
}

// Machine is not safe for concurrent use; owners serialize access with their own lock.
type Machine[S, I comparable] struct {
	name      string
	initial   S
	state     S
	table     map[S]map[I]*Transition[S, I]
	order     []*Transition[S, I]
	queue     []I
	running   bool
	onInvalid InvalidFunc[S, I]
	logger    logging.Logger
}

// New returns a machine named name that starts in initial.
func New[S, I comparable](name string, initial S, logger logging.Logger) *Machine[S, I] {
	return &Machine[S, I]{
		name:    name,
		initial: initial,
		state:   initial,
		table:   map[S]map[I]*Transition[S, I]{},
		logger:  logger,
	}
}

// Name returns the machine's name.
func (m *Machine[S, I]) Name() string {
	return m.name
}

// AddTransition declares that input in state from moves to state to and then runs action, which
// may be nil. Declaring the same pair twice panics.
func (m *Machine[S, I]) AddTransition(from S, input I, to S, action Action) {
	row, ok := m.table[from]
	if !ok {
		row = map[I]*Transition[S, I]{}
		m.table[from] = row
	}
	if _, dup := row[input]; dup {
		panic(fmt.Sprintf("%s: transition from %v on %v declared twice", m.name, from, input))
	}
	tr := &Transition[S, I]{From: from, Input: input, To: to, action: action}
	row[input] = tr
	m.order = append(m.order, tr)
}

// SetInvalidRequestHandler replaces the handler run for undeclared (state, input) pairs.
func (m *Machine[S, I]) SetInvalidRequestHandler(f InvalidFunc[S, I]) {
	m.onInvalid = f
}

// State returns the current state.
func (m *Machine[S, I]) State() S {
	return m.state
}

// Initial returns the state the machine started in.
func (m *Machine[S, I]) Initial() S {
	return m.initial
}

// IsValid reports whether input has a transition out of state.
func (m *Machine[S, I]) IsValid(state S, input I) bool {
	_, ok := m.table[state][input]
	return ok
}

// Transitions returns the table in declaration order.
func (m *Machine[S, I]) Transitions() []Transition[S, I] {
	out := make([]Transition[S, I], 0, len(m.order))
	for _, tr := range m.order {
		out = append(out, *tr)
	}
	return out
}

// States returns every state named in the table, initial state first, the rest sorted by name.
func (m *Machine[S, I]) States() []S {
	seen := map[S]bool{m.initial: true}
	var rest []S
	for _, tr := range m.order {
		for _, s := range []S{tr.From, tr.To} {
			if !seen[s] {
				seen[s] = true
				rest = append(rest, s)
			}
		}
	}
	sort.SliceStable(rest, func(i, j int) bool {
		return fmt.Sprint(rest[i]) < fmt.Sprint(rest[j])
	})
	return append([]S{m.initial}, rest...)
}

// PushInput queues input. It is not processed until ProcessInputs runs.
func (m *Machine[S, I]) PushInput(input I) {
	m.queue = append(m.queue, input)
}

// ProcessInputs drains the queue, including inputs pushed by actions while draining. A nested
// call from inside an action returns immediately; the outer call picks up the new inputs.
func (m *Machine[S, I]) ProcessInputs() {
	if m.running {
		return
	}
	m.running = true
	defer func() { m.running = false }()

	for len(m.queue) > 0 {
		input := m.queue[0]
		m.queue = m.queue[1:]

		tr, ok := m.table[m.state][input]
		if !ok {
			if m.logger != nil {
				m.logger.Debugw("invalid request", "machine", m.name, "state", m.state, "input", input)
			}
			if m.onInvalid != nil {
				m.onInvalid(m.state, input)
			}
			continue
		}
		if m.logger != nil {
			m.logger.Debugw("transition", "machine", m.name, "from", tr.From, "input", input, "to", tr.To)
		}
		m.state = tr.To
		if tr.action != nil {
			tr.action()
		}
	}
}

// Handle pushes input and processes it to completion.
func (m *Machine[S, I]) Handle(input I) {
	m.PushInput(input)
	m.ProcessInputs()
}
