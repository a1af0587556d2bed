package app

import (
	"time"

	"github.com/ayusman/wavestop/internal/config"
	"github.com/ayusman/wavestop/internal/detector"
	"github.com/ayusman/wavestop/internal/fsm"
	"github.com/ayusman/wavestop/internal/gesture"
)

// Engine wires the wave detector, the thumbs-up classifier and the state
// machine together for one frame at a time. Only the detector that matters
// in the current state is consulted. Engine has no locks: the pipeline
// goroutine is its only caller.
type Engine struct {
	wave     *gesture.WaveDetector
	confirm  *gesture.Debouncer
	machine  *fsm.Machine
	rejected int
}

// FrameResult is what one frame produced.
type FrameResult struct {
	fsm.Result
	// Observed is true when the frame carried a usable hand.
	Observed bool
	// Rejected is true when the frame carried a malformed hand.
	Rejected bool
	Wave     bool
	Confirm  bool
}

// Status is a point-in-time view of the engine.
type Status struct {
	State       fsm.State     `json:"-"`
	StateName   string        `json:"state"`
	EnteredAt   time.Time     `json:"entered_at"`
	Elapsed     time.Duration `json:"-"`
	Remaining   time.Duration `json:"-"`
	ElapsedMs   int64         `json:"elapsed_ms"`
	RemainingMs int64         `json:"remaining_ms"`
	Tick        int           `json:"tick"`
	WaveSamples int           `json:"wave_samples"`
	Rejected    int           `json:"rejected_frames"`
}

// NewEngine creates an Engine in Idle, entered at now.
func NewEngine(cfg config.GestureConfig, now time.Time) *Engine {
	return &Engine{
		wave:    gesture.NewWaveDetector(cfg.Wave()),
		confirm: gesture.NewDebouncer(cfg.ConfirmFrames),
		machine: fsm.New(cfg.Timing(), now),
	}
}

// ProcessFrame evaluates one frame. hand may be nil when no hand was
// detected; the machine is stepped regardless so timeouts keep running.
func (e *Engine) ProcessFrame(hand *detector.HandLandmarks, now time.Time) FrameResult {
	var res FrameResult

	if hand != nil {
		if err := hand.Validate(); err != nil {
			debugf("frame rejected: %v", err)
			e.rejected++
			res.Rejected = true
			hand = nil
		} else {
			res.Observed = true
		}
	}

	before := e.machine.State()
	switch before {
	case fsm.Idle:
		if hand != nil {
			res.Wave = e.wave.Observe(hand.WristX(), now)
		}
	case fsm.WaveDetected:
		res.Confirm = e.confirm.Observe(gesture.IsThumbsUp(hand))
	}

	res.Result = e.machine.Step(res.Wave, res.Confirm, now)

	if after := e.machine.State(); after != before {
		if before == fsm.Idle {
			e.wave.Reset()
		}
		e.confirm.Reset()
	}

	return res
}

// Reset forces the machine back to Idle and drops any buffered gesture history.
func (e *Engine) Reset(now time.Time) fsm.Result {
	e.wave.Reset()
	e.confirm.Reset()
	return e.machine.Reset(now)
}

// Acknowledge forwards an executor outcome to the machine.
func (e *Engine) Acknowledge(ok bool) {
	e.machine.Acknowledge(ok)
}

// State returns the machine's current state.
func (e *Engine) State() fsm.State {
	return e.machine.State()
}

// Status returns the engine's status at now.
func (e *Engine) Status(now time.Time) Status {
	snap := e.machine.Snapshot()
	elapsed := e.machine.Elapsed(now)
	remaining := e.machine.Remaining(now)

	return Status{
		State:       snap.State,
		StateName:   snap.State.String(),
		EnteredAt:   snap.EnteredAt,
		Elapsed:     elapsed,
		Remaining:   remaining,
		ElapsedMs:   elapsed.Milliseconds(),
		RemainingMs: remaining.Milliseconds(),
		Tick:        snap.Tick,
		WaveSamples: e.wave.Len(),
		Rejected:    e.rejected,
	}
}
