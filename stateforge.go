// Package stateforge is a table driven finite state machine for control logic.
//
// A machine is declared once from an initial state and an ordered list of
// transitions. Dispatch looks up the first transition leaving the current
// state on the given event, asks its decision callback for a Result, runs
// the exit hook of the edge and the enter hook of the state being entered,
// then commits the new state.
//
// Enter hooks are declared on edges but belong to the edge's source state:
// the enter hook that runs when a state is entered is the one on the first
// declared edge leaving that state that has an enter hook.
//
//	sm := stateforge.New(Idle,
//	    stateforge.Transition[State, Event]{From: Idle, Event: Start, To: Running},
//	    stateforge.Transition[State, Event]{From: Running, Event: Stop, To: Idle, OnExit: stopMotor},
//	)
//	sm.Dispatch(Start)
//
// A machine is not safe for concurrent use.
package stateforge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/alkonosst/StateForge/kinds"
	"github.com/alkonosst/StateForge/pkg/set"
)

/******* Result *******/

// Result is the outcome of a dispatch.
type Result int

const (
	// Change moves the machine to the transition's target.
	Change Result = iota
	// NoChange keeps the current state. Hooks still run.
	NoChange
	// Reset moves the machine back to its initial state.
	Reset
	// NotFound means no transition matched, or the decision rejected it.
	NotFound
	// InvalidContext means the decision rejected the transition's context.
	InvalidContext
)

func (result Result) String() string {
	switch result {
	case Change:
		return "Change"
	case NoChange:
		return "NoChange"
	case Reset:
		return "Reset"
	case NotFound:
		return "NotFound"
	case InvalidContext:
		return "InvalidContext"
	}
	return fmt.Sprintf("Result(%d)", int(result))
}

/******* Transition *******/

// Context is the optional per-transition payload, narrowed with kinds.As.
type Context = kinds.Tagged

// Hook is an enter or exit callback.
type Hook[S, E comparable] func(from S, event E, to S, ctx Context)

// Decision computes the outcome of a transition.
type Decision[S, E comparable] func(from S, event E, to S, ctx Context) Result

// Transition is one edge of the table. Callbacks and Context are optional.
// The machine never copies or frees Context; it must outlive the machine.
type Transition[S, E comparable] struct {
	From  S
	Event E
	To    S

	OnEnter      Hook[S, E]
	OnTransition Decision[S, E]
	OnExit       Hook[S, E]

	Context Context
}

/******* Machine *******/

// ErrAmbiguousTransition marks a transition shadowed by an earlier one with the
// same state and event.
var ErrAmbiguousTransition = errors.New("ambiguous transition")

type trigger[S, E comparable] struct {
	from  S
	event E
}

type edge[S, E comparable] struct {
	from  S
	event E
	to    S
}

// Trace opens a span for step and returns the function that closes it.
type Trace func(ctx context.Context, step string, args ...any) func(...any)

// Machine is a flat state machine over a transition table. It is not safe for
// concurrent use.
type Machine[S, E comparable] struct {
	id          string
	initial     S
	current     S
	transitions []Transition[S, E]

	// first declared index per key
	triggers map[trigger[S, E]]int
	edges    map[edge[S, E]]int
	entries  map[S]int

	dispatching bool
	ctx         context.Context
	logger      *slog.Logger
	trace       Trace
}

// New builds a machine starting in initial. The table is copied as given and
// not validated; see Validate.
func New[S, E comparable](initial S, transitions ...Transition[S, E]) *Machine[S, E] {
	machine := &Machine[S, E]{
		id:          uuid.NewString(),
		initial:     initial,
		current:     initial,
		transitions: append([]Transition[S, E](nil), transitions...),
		triggers:    make(map[trigger[S, E]]int, len(transitions)),
		edges:       make(map[edge[S, E]]int, len(transitions)),
		entries:     map[S]int{},
		ctx:         context.Background(),
		logger:      slog.Default(),
	}
	for i, transition := range machine.transitions {
		key := trigger[S, E]{from: transition.From, event: transition.Event}
		if _, ok := machine.triggers[key]; !ok {
			machine.triggers[key] = i
		}
		full := edge[S, E]{from: transition.From, event: transition.Event, to: transition.To}
		if _, ok := machine.edges[full]; !ok {
			machine.edges[full] = i
		}
		if transition.OnEnter != nil {
			if _, ok := machine.entries[transition.From]; !ok {
				machine.entries[transition.From] = i
			}
		}
	}
	return machine
}

// WithTrace installs a hook called around Dispatch, ResetState and each callback.
func WithTrace[S, E comparable](machine *Machine[S, E], trace Trace) *Machine[S, E] {
	machine.trace = trace
	return machine
}

// WithLogger replaces the logger; nil restores slog.Default.
func WithLogger[S, E comparable](machine *Machine[S, E], logger *slog.Logger) *Machine[S, E] {
	if logger == nil {
		logger = slog.Default()
	}
	machine.logger = logger
	return machine
}

// WithContext sets the context handed to the trace.
func WithContext[S, E comparable](machine *Machine[S, E], ctx context.Context) *Machine[S, E] {
	if ctx == nil {
		ctx = context.Background()
	}
	machine.ctx = ctx
	return machine
}

// Id returns the unique id assigned by New.
func (machine *Machine[S, E]) Id() string {
	return machine.id
}

// State returns the current state.
func (machine *Machine[S, E]) State() S {
	return machine.current
}

// Initial returns the state given to New.
func (machine *Machine[S, E]) Initial() S {
	return machine.initial
}

// ResetState returns to the initial state without running any hook.
func (machine *Machine[S, E]) ResetState() {
	if machine.trace != nil {
		defer machine.trace(machine.ctx, "ResetState", machine.current, machine.initial)()
	}
	machine.logger.Debug("reset state", "id", machine.id, "from", machine.current, "to", machine.initial)
	machine.current = machine.initial
}

// Can reports whether event has a transition from the current state.
func (machine *Machine[S, E]) Can(event E) bool {
	_, ok := machine.triggers[trigger[S, E]{from: machine.current, event: event}]
	return ok
}

// Context returns the context of the transition from -event-> to.
func (machine *Machine[S, E]) Context(from S, event E, to S) (Context, bool) {
	i, ok := machine.edges[edge[S, E]{from: from, event: event, to: to}]
	if !ok {
		return nil, false
	}
	return machine.transitions[i].Context, true
}

// Transitions returns a copy of the table in declaration order.
func (machine *Machine[S, E]) Transitions() []Transition[S, E] {
	return append([]Transition[S, E](nil), machine.transitions...)
}

// States returns every state named by the table, initial first.
func (machine *Machine[S, E]) States() []S {
	states := set.New(machine.initial)
	for _, transition := range machine.transitions {
		states.Add(transition.From, transition.To)
	}
	return states.Slice()
}

// Validate reports transitions shadowed by an earlier one with the same
// source and event. Such transitions never fire.
func (machine *Machine[S, E]) Validate() error {
	var errs []error
	for i, transition := range machine.transitions {
		first := machine.triggers[trigger[S, E]{from: transition.From, event: transition.Event}]
		if first != i {
			errs = append(errs, fmt.Errorf("%w: transition %d (%v -%v-> %v) is shadowed by transition %d",
				ErrAmbiguousTransition, i, transition.From, transition.Event, transition.To, first))
		}
	}
	return errors.Join(errs...)
}

// Dispatch runs the transition for event from the current state.
func (machine *Machine[S, E]) Dispatch(event E) (result Result) {
	if machine.dispatching {
		machine.logger.Error("dispatch called from a callback", "id", machine.id, "event", event)
		return NotFound
	}
	if machine.trace != nil {
		end := machine.trace(machine.ctx, "Dispatch", event)
		defer func() { end(result) }()
	}
	i, ok := machine.triggers[trigger[S, E]{from: machine.current, event: event}]
	if !ok {
		machine.logger.Debug("no transition found", "id", machine.id, "state", machine.current, "event", event)
		return NotFound
	}
	machine.dispatching = true
	defer func() { machine.dispatching = false }()

	transition := &machine.transitions[i]
	result = machine.decide(transition)
	machine.exit(transition)

	next := transition.To
	if result == Reset {
		next = machine.initial
	}
	machine.enter(next, transition)

	machine.logger.Debug("transition", "id", machine.id, "from", transition.From, "event", event, "to", transition.To, "result", result)
	switch result {
	case Change:
		machine.current = transition.To
	case Reset:
		machine.current = machine.initial
	}
	return result
}

func (machine *Machine[S, E]) decide(transition *Transition[S, E]) Result {
	if transition.OnTransition == nil {
		return Change
	}
	var end func(...any)
	if machine.trace != nil {
		end = machine.trace(machine.ctx, "transition", transition.From, transition.Event, transition.To)
	}
	result := transition.OnTransition(transition.From, transition.Event, transition.To, transition.Context)
	if end != nil {
		end(result)
	}
	return result
}

func (machine *Machine[S, E]) exit(transition *Transition[S, E]) {
	if transition.OnExit == nil {
		return
	}
	if machine.trace != nil {
		defer machine.trace(machine.ctx, "exit", transition.From, transition.Event, transition.To)()
	}
	transition.OnExit(transition.From, transition.Event, transition.To, transition.Context)
}

func (machine *Machine[S, E]) enter(state S, cause *Transition[S, E]) {
	i, ok := machine.entries[state]
	if !ok {
		return
	}
	entering := &machine.transitions[i]
	if machine.trace != nil {
		defer machine.trace(machine.ctx, "enter", state, cause.Event)()
	}
	entering.OnEnter(cause.From, cause.Event, cause.To, entering.Context)
}
