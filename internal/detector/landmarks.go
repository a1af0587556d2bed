// Package detector provides hand detection interfaces and landmark types.
package detector

import (
	"errors"
	"fmt"
	"math"
)

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// ErrMalformedLandmarks is returned when a landmark set cannot be used as an observation.
var ErrMalformedLandmarks = errors.New("malformed landmarks")

// Point3D represents a landmark position. X and Y are normalized to the frame
// (0 at the top-left, 1 at the bottom-right); Z is relative depth.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks represents the 21 hand landmarks detected by MediaPipe.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// WristX returns the horizontal wrist position used as the wave signal.
func (h *HandLandmarks) WristX() float64 {
	return h.Points[Wrist].X
}

// Validate reports whether every landmark has finite x/y coordinates inside [0,1].
// Z is ignored.
func (h *HandLandmarks) Validate() error {
	if h == nil {
		return fmt.Errorf("%w: nil hand", ErrMalformedLandmarks)
	}

	for i, p := range h.Points {
		if !inUnitRange(p.X) || !inUnitRange(p.Y) {
			return fmt.Errorf("%w: landmark %d at (%f, %f)", ErrMalformedLandmarks, i, p.X, p.Y)
		}
	}

	return nil
}

func inUnitRange(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	return v >= 0 && v <= 1
}
