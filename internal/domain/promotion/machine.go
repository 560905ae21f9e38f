package promotion

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/felixgeelhaar/statekit"
)

// Event names for the promotion lifecycle.
const (
	EventApprove         statekit.EventType = "APPROVE"
	EventStartDeploy     statekit.EventType = "START_DEPLOY"
	EventDeploySucceeded statekit.EventType = "DEPLOY_SUCCEEDED"
	EventSupersede       statekit.EventType = "SUPERSEDE"
	EventSkip            statekit.EventType = "SKIP"
	EventVeto            statekit.EventType = "VETO"
	EventUnveto          statekit.EventType = "UNVETO"
)

// LifecycleContext is the context passed to the lifecycle machine.
type LifecycleContext struct {
	Version     string
	Environment string
}

// transitions is the lifecycle table. It is the only definition of the lifecycle:
// the statekit machine, CanTransition and the XState export are all derived from it.
var transitions = map[Status]map[statekit.EventType]Status{
	StatusPending: {
		EventApprove:         StatusApproved,
		EventStartDeploy:     StatusDeploying,
		EventDeploySucceeded: StatusCurrent,
		EventSkip:            StatusSkipped,
		EventVeto:            StatusVetoed,
	},
	StatusApproved: {
		EventStartDeploy:     StatusDeploying,
		EventDeploySucceeded: StatusCurrent,
		EventSkip:            StatusSkipped,
		EventVeto:            StatusVetoed,
	},
	StatusDeploying: {
		EventStartDeploy:     StatusDeploying,
		EventDeploySucceeded: StatusCurrent,
		EventVeto:            StatusVetoed,
	},
	StatusCurrent: {
		EventStartDeploy:     StatusDeploying,
		EventDeploySucceeded: StatusCurrent,
		EventSupersede:       StatusPrevious,
		EventVeto:            StatusVetoed,
	},
	StatusPrevious: {
		EventStartDeploy:     StatusDeploying,
		EventDeploySucceeded: StatusCurrent,
		EventVeto:            StatusVetoed,
	},
	StatusSkipped: {
		EventStartDeploy:     StatusDeploying,
		EventDeploySucceeded: StatusCurrent,
		EventVeto:            StatusVetoed,
	},
	StatusVetoed: {
		EventUnveto: StatusApproved,
	},
}

// CanTransition reports whether the event is accepted in the given status.
func (s Status) CanTransition(event statekit.EventType) bool {
	_, ok := transitions[s][event]
	return ok
}

// Lifecycle runs promotion status transitions through a statekit machine.
// It is safe for concurrent use; every transition gets its own interpreter.
type Lifecycle struct {
	newInterpreter func() *statekit.Interpreter[LifecycleContext]
	// paths holds, per status, the events that drive a fresh interpreter from PENDING to it.
	paths map[Status][]statekit.EventType
}

var (
	defaultLifecycle     *Lifecycle
	defaultLifecycleErr  error
	defaultLifecycleOnce sync.Once
)

// DefaultLifecycle returns the shared lifecycle, building it on first use.
func DefaultLifecycle() (*Lifecycle, error) {
	defaultLifecycleOnce.Do(func() {
		defaultLifecycle, defaultLifecycleErr = NewLifecycle()
	})
	return defaultLifecycle, defaultLifecycleErr
}

// NewLifecycle builds the promotion lifecycle machine from the transition table.
func NewLifecycle() (*Lifecycle, error) {
	builder := statekit.NewMachine[LifecycleContext]("promotion").WithInitial(statekit.StateID(StatusPending))
	for _, from := range AllStatuses() {
		state := builder.State(statekit.StateID(from))
		for _, event := range sortedEvents(transitions[from]) {
			state.On(event).Target(statekit.StateID(transitions[from][event]))
		}
	}
	machine, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build promotion machine: %w", err)
	}

	return &Lifecycle{
		newInterpreter: func() *statekit.Interpreter[LifecycleContext] {
			return statekit.NewInterpreter(machine)
		},
		paths: shortestPaths(),
	}, nil
}

// Transition applies the event to a version in the given status and returns the new status.
// statekit ignores events a state does not handle, so rejection is decided by CanTransition.
func (l *Lifecycle) Transition(from Status, event statekit.EventType) (Status, error) {
	if !from.CanTransition(event) {
		return from, NewTransitionError(from, event)
	}
	path, ok := l.paths[from]
	if !ok {
		return from, NewTransitionError(from, event)
	}

	interp := l.newInterpreter()
	interp.Start()
	for _, step := range path {
		interp.Send(statekit.Event{Type: step})
	}
	interp.Send(statekit.Event{Type: event})
	return Status(interp.State().Value), nil
}

// shortestPaths walks the table breadth-first from PENDING.
func shortestPaths() map[Status][]statekit.EventType {
	paths := map[Status][]statekit.EventType{StatusPending: nil}
	queue := []Status{StatusPending}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, event := range sortedEvents(transitions[cur]) {
			next := transitions[cur][event]
			if _, seen := paths[next]; seen {
				continue
			}
			p := make([]statekit.EventType, 0, len(paths[cur])+1)
			p = append(p, paths[cur]...)
			paths[next] = append(p, event)
			queue = append(queue, next)
		}
	}
	return paths
}

func sortedEvents(m map[statekit.EventType]Status) []statekit.EventType {
	events := make([]statekit.EventType, 0, len(m))
	for e := range m {
		events = append(events, e)
	}
	sort.Slice(events, func(i, j int) bool { return events[i] < events[j] })
	return events
}

// XStateJSON represents the XState JSON format for visualization.
type XStateJSON struct {
	ID      string                     `json:"id"`
	Initial string                     `json:"initial"`
	States  map[string]XStateStateJSON `json:"states"`
}

// XStateStateJSON represents a state in XState JSON format.
type XStateStateJSON struct {
	On map[string]XStateTransition `json:"on,omitempty"`
}

// XStateTransition represents a transition in XState JSON format.
type XStateTransition struct {
	Target string `json:"target"`
}

// ExportXStateJSON exports the lifecycle definition as XState-compatible JSON.
func ExportXStateJSON() ([]byte, error) {
	xstate := XStateJSON{
		ID:      "promotion",
		Initial: string(StatusPending),
		States:  make(map[string]XStateStateJSON, len(transitions)),
	}
	for from, events := range transitions {
		on := make(map[string]XStateTransition, len(events))
		for event, to := range events {
			on[string(event)] = XStateTransition{Target: string(to)}
		}
		xstate.States[string(from)] = XStateStateJSON{On: on}
	}
	return json.MarshalIndent(xstate, "", "  ")
}
