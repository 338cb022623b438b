// Package plantuml renders a machine's transition table as a PlantUML state diagram.
package plantuml

import (
	"fmt"
	"io"
	"strings"

	"github.com/alkonosst/StateForge"
	"github.com/alkonosst/StateForge/pkg/set"
)

type trigger[S, E comparable] struct {
	from  S
	event E
}

func name(value any) string {
	return strings.ReplaceAll(fmt.Sprint(value), `"`, `'`)
}

func generateState[S, E comparable](builder *strings.Builder, alias string, state S, transitions []stateforge.Transition[S, E]) {
	fmt.Fprintf(builder, "state \"%s\" as %s\n", name(state), alias)
	for _, transition := range transitions {
		if transition.From == state && transition.OnEnter != nil {
			fmt.Fprintf(builder, "state %s: entry\n", alias)
			return
		}
	}
}

func generateTransition[S, E comparable](builder *strings.Builder, aliases map[S]string, transition stateforge.Transition[S, E], shadowed bool) {
	label := name(transition.Event)
	if transition.OnTransition != nil {
		label = fmt.Sprintf("%s [decision]", label)
	}
	if transition.OnExit != nil {
		label = fmt.Sprintf("%s / exit", label)
	}
	if shadowed {
		builder.WriteString("' shadowed\n")
	}
	fmt.Fprintf(builder, "%s --> %s : %s\n", aliases[transition.From], aliases[transition.To], label)
}

// Generate writes the diagram of machine to writer. States appear once, in
// the order they are first named, aliased by that position; transitions keep
// declaration order.
func Generate[S, E comparable](writer io.Writer, machine *stateforge.Machine[S, E]) error {
	var builder strings.Builder
	transitions := machine.Transitions()

	seen := set.New[trigger[S, E]]()

	fmt.Fprintf(&builder, "@startuml %s\n", machine.Id())
	aliases := map[S]string{}
	for i, state := range machine.States() {
		aliases[state] = fmt.Sprintf("s%d", i)
		generateState(&builder, aliases[state], state, transitions)
	}
	fmt.Fprintf(&builder, "[*] --> %s\n", aliases[machine.Initial()])
	for _, transition := range transitions {
		key := trigger[S, E]{from: transition.From, event: transition.Event}
		generateTransition(&builder, aliases, transition, seen.Contains(key))
		seen.Add(key)
	}
	fmt.Fprintln(&builder, "@enduml")
	_, err := io.WriteString(writer, builder.String())
	return err
}
