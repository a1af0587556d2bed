package gesture

import "github.com/ayusman/wavestop/internal/detector"

// foldedFingers pairs each non-thumb fingertip with its MCP joint.
var foldedFingers = [4][2]int{
	{detector.IndexTip, detector.IndexMCP},
	{detector.MiddleTip, detector.MiddleMCP},
	{detector.RingTip, detector.RingMCP},
	{detector.PinkyTip, detector.PinkyMCP},
}

// IsThumbsUp reports whether the hand shows a thumbs-up: the thumb points
// up (tip above IP above MCP) and every other fingertip sits below its MCP.
// Image y grows downward.
func IsThumbsUp(hand *detector.HandLandmarks) bool {
	if hand == nil {
		return false
	}

	p := hand.Points
	if !(p[detector.ThumbTip].Y < p[detector.ThumbIP].Y && p[detector.ThumbIP].Y < p[detector.ThumbMCP].Y) {
		return false
	}

	for _, f := range foldedFingers {
		if p[f[0]].Y <= p[f[1]].Y {
			return false
		}
	}

	return true
}

// Debouncer turns per-frame classifications into a confirmation that needs
// several consecutive positive frames. With Required <= 1 it passes every
// positive frame through.
type Debouncer struct {
	Required int
	run      int
}

// NewDebouncer creates a Debouncer requiring n consecutive positive frames.
func NewDebouncer(n int) *Debouncer {
	return &Debouncer{Required: n}
}

// Observe records one frame's classification and reports whether the run of
// positive frames has reached the requirement.
func (d *Debouncer) Observe(positive bool) bool {
	if !positive {
		d.run = 0
		return false
	}

	d.run++
	required := d.Required
	if required < 1 {
		required = 1
	}
	return d.run >= required
}

// Reset clears the current run.
func (d *Debouncer) Reset() {
	d.run = 0
}
