// Package runstate tracks the execution lifecycle of the remote script.
//
// The table lives in Transition, a pure function. Machine keeps the current
// value for one session and reports changes.
//
// COMPILATION_ERROR and the *_REQUESTED states are latches: a server state
// signal that arrives after the operator asked for a rerun or stop, or after a
// failed compile, must not revert them.
package runstate

import (
	"github.com/aretw0/vitrine/pkg/domain"
)

// Event is an input of the state machine.
type Event interface {
	isEvent()
}

// ServerState is the server's report of whether the script runs.
type ServerState struct {
	Running bool
}

// Rerun is the operator asking for a new run.
type Rerun struct{}

// Stop is the operator asking to stop the current run.
type Stop struct{}

// CompileError is the server reporting that the script failed to compile.
type CompileError struct{}

// Finished is the server reporting the end of the current report.
type Finished struct{}

func (ServerState) isEvent()  {}
func (Rerun) isEvent()        {}
func (Stop) isEvent()         {}
func (CompileError) isEvent() {}
func (Finished) isEvent()     {}

// Effect is a side effect the owner of the machine must carry out.
type Effect int

const (
	SendRerun Effect = iota + 1
	SendStop
	OpenCompileDialog
	SweepStale
)

func (e Effect) String() string {
	switch e {
	case SendRerun:
		return "send_rerun"
	case SendStop:
		return "send_stop"
	case OpenCompileDialog:
		return "open_compile_dialog"
	case SweepStale:
		return "sweep_stale"
	default:
		return "unknown"
	}
}

// Transition returns the state that follows s on ev and the effects to run.
// A guarded-out event returns s unchanged and no effects.
func Transition(s domain.ReportRunState, ev Event) (domain.ReportRunState, []Effect) {
	switch e := ev.(type) {
	case ServerState:
		if e.Running {
			if s == domain.RunStopRequested {
				return s, nil
			}
			return domain.RunRunning, nil
		}
		if s == domain.RunRerunRequested || s == domain.RunCompilationError {
			return s, nil
		}
		return domain.RunNotRunning, nil

	case Rerun:
		if s == domain.RunRunning || s == domain.RunRerunRequested {
			return s, nil
		}
		return domain.RunRerunRequested, []Effect{SendRerun}

	case Stop:
		if s == domain.RunNotRunning || s == domain.RunStopRequested {
			return s, nil
		}
		return domain.RunStopRequested, []Effect{SendStop}

	case CompileError:
		return domain.RunCompilationError, []Effect{OpenCompileDialog}

	case Finished:
		if s == domain.RunCompilationError {
			return s, nil
		}
		return s, []Effect{SweepStale}

	default:
		return s, nil
	}
}

// Admits reports whether ev would change anything in state s.
func Admits(s domain.ReportRunState, ev Event) bool {
	next, effects := Transition(s, ev)
	return next != s || len(effects) > 0
}

// Machine holds the run state of one session. It is not safe for concurrent use.
type Machine struct {
	state    domain.ReportRunState
	onChange func(from, to domain.ReportRunState)
}

// Option configures a Machine.
type Option func(*Machine)

// WithOnChange registers a callback for every state change.
func WithOnChange(fn func(from, to domain.ReportRunState)) Option {
	return func(m *Machine) {
		m.onChange = fn
	}
}

// NewMachine returns a machine in NOT_RUNNING.
func NewMachine(opts ...Option) *Machine {
	m := &Machine{state: domain.RunNotRunning}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current state.
func (m *Machine) State() domain.ReportRunState {
	return m.state
}

// Fire applies ev and returns the effects the caller must run.
func (m *Machine) Fire(ev Event) []Effect {
	next, effects := Transition(m.state, ev)
	if next != m.state {
		prev := m.state
		m.state = next
		if m.onChange != nil {
			m.onChange(prev, next)
		}
	}
	return effects
}
