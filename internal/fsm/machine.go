// Package fsm sequences the wave → thumbs-up shutdown challenge.
//
// The machine is driven by polling: the caller feeds it detector outputs and
// the current time once per frame, and it answers with the events produced
// by that step and, on the two terminal transitions, the Action the caller
// should execute. It performs no I/O and reads no clock of its own.
package fsm

import (
	"fmt"
	"time"
)

// State is the current stage of the challenge.
type State int

const (
	// Idle waits for a wave.
	Idle State = iota
	// WaveDetected waits for a thumbs-up confirmation.
	WaveDetected
	// ShuttingDown plays the shutdown countdown before NormalShutdown.
	ShuttingDown
	// TimeoutShutdown plays the fallback countdown before FallbackShutdown.
	TimeoutShutdown
)

// AwaitingConfirmation is another name for WaveDetected.
const AwaitingConfirmation = WaveDetected

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case WaveDetected:
		return "wave_detected"
	case ShuttingDown:
		return "shutting_down"
	case TimeoutShutdown:
		return "timeout_shutdown"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Action is the terminal output the caller hands to an executor.
type Action int

const (
	// ActionNone means there is nothing to execute.
	ActionNone Action = iota
	// ActionNormalShutdown powers the computer off after a confirmed wave.
	ActionNormalShutdown
	// ActionFallbackShutdown shuts down with simulated input after an
	// unconfirmed wave.
	ActionFallbackShutdown
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionNormalShutdown:
		return "normal_shutdown"
	case ActionFallbackShutdown:
		return "fallback_shutdown"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Notification messages emitted on state entry.
const (
	MsgWaveDetected = "Waving detected! Show 'Like' gesture to confirm shutdown."
	MsgConfirmed    = "Powering off, bye-bye!"
	MsgTimeout      = "Confirmation timeout! Using simulated input to shut down."
	MsgReset        = "System reset"
)

// EventKind tells apart the events a step can produce.
type EventKind int

const (
	// EventStateChanged reports a transition between two states.
	EventStateChanged EventKind = iota
	// EventNotification carries a user-facing message.
	EventNotification
)

func (k EventKind) String() string {
	switch k {
	case EventStateChanged:
		return "state"
	case EventNotification:
		return "notification"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is produced by a transition. StateChanged events carry From/To;
// Notification events carry Message.
type Event struct {
	Kind    EventKind
	From    State
	To      State
	Message string
	Time    time.Time
}

// Result is the outcome of one Step or Reset.
type Result struct {
	Action Action
	Events []Event
}

// Timing holds the machine's timing policy.
type Timing struct {
	// ConfirmationTimeout bounds how long WaveDetected waits for a thumbs-up.
	ConfirmationTimeout time.Duration
	// ShutdownAnimation is the delay in ShuttingDown before NormalShutdown fires.
	ShutdownAnimation time.Duration
	// FallbackDelay is the delay in TimeoutShutdown before FallbackShutdown fires.
	FallbackDelay time.Duration
}

// DefaultTiming returns the reference timing policy.
func DefaultTiming() Timing {
	return Timing{
		ConfirmationTimeout: 10 * time.Second,
		ShutdownAnimation:   3 * time.Second,
		FallbackDelay:       2 * time.Second,
	}
}

// Snapshot is a read-only view of the machine.
type Snapshot struct {
	State     State
	EnteredAt time.Time
	Tick      int
}

// Machine is the gesture state machine. It is not safe for concurrent use;
// one control loop owns it.
type Machine struct {
	timing    Timing
	state     State
	enteredAt time.Time
	tick      int
	// fired is set once the terminal Action of the current state entry has been emitted.
	fired bool
}

// New creates a Machine in Idle, entered at now.
func New(timing Timing, now time.Time) *Machine {
	return &Machine{
		timing:    timing,
		state:     Idle,
		enteredAt: now,
	}
}

// Step advances the machine by at most one transition. wave is only
// consulted in Idle and confirm only in WaveDetected; confirmation is
// checked before the timeout, so it wins a tie.
func (m *Machine) Step(wave, confirm bool, now time.Time) Result {
	m.tick++

	switch m.state {
	case Idle:
		if wave {
			return m.transition(WaveDetected, MsgWaveDetected, now)
		}

	case WaveDetected:
		if confirm {
			return m.transition(ShuttingDown, MsgConfirmed, now)
		}
		if m.Elapsed(now) > m.timing.ConfirmationTimeout {
			return m.transition(TimeoutShutdown, MsgTimeout, now)
		}

	case ShuttingDown:
		if !m.fired && m.Elapsed(now) > m.timing.ShutdownAnimation {
			m.fired = true
			return Result{Action: ActionNormalShutdown}
		}

	case TimeoutShutdown:
		if !m.fired && m.Elapsed(now) > m.timing.FallbackDelay {
			m.fired = true
			return Result{Action: ActionFallbackShutdown}
		}
	}

	return Result{}
}

// Reset forces the machine back to Idle from any state.
func (m *Machine) Reset(now time.Time) Result {
	return m.transition(Idle, MsgReset, now)
}

// Acknowledge reports the outcome of executing the last emitted Action. A
// failure re-arms the Action so the next Step past the boundary emits it
// again; the state itself is left untouched either way.
func (m *Machine) Acknowledge(ok bool) {
	if !ok {
		m.fired = false
	}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Snapshot returns the current state, entry time and animation tick.
func (m *Machine) Snapshot() Snapshot {
	return Snapshot{
		State:     m.state,
		EnteredAt: m.enteredAt,
		Tick:      m.tick,
	}
}

// Elapsed returns the time spent in the current state, clamped at zero.
func (m *Machine) Elapsed(now time.Time) time.Duration {
	if d := now.Sub(m.enteredAt); d > 0 {
		return d
	}
	return 0
}

// Remaining returns the time left before the current state's deadline, or
// zero for Idle and for deadlines already passed.
func (m *Machine) Remaining(now time.Time) time.Duration {
	var limit time.Duration
	switch m.state {
	case WaveDetected:
		limit = m.timing.ConfirmationTimeout
	case ShuttingDown:
		limit = m.timing.ShutdownAnimation
	case TimeoutShutdown:
		limit = m.timing.FallbackDelay
	default:
		return 0
	}

	if left := limit - m.Elapsed(now); left > 0 {
		return left
	}
	return 0
}

func (m *Machine) transition(to State, message string, now time.Time) Result {
	from := m.state

	m.state = to
	m.enteredAt = now
	m.fired = false
	if to == ShuttingDown || to == TimeoutShutdown {
		m.tick = 0
	}

	events := make([]Event, 0, 2)
	if from != to {
		events = append(events, Event{Kind: EventStateChanged, From: from, To: to, Time: now})
	}
	events = append(events, Event{Kind: EventNotification, From: from, To: to, Message: message, Time: now})

	return Result{Events: events}
}
