package detector

import (
	"math"
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It returns either a fixed result or, when a script is set, one entry of
// the script per Detect call.
type MockDetector struct {
	mu     sync.Mutex
	hands  []HandLandmarks
	script [][]HandLandmarks
	calls  int
	err    error
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by every Detect call.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
	m.script = nil
}

// SetScript makes Detect return script[n] on its n-th call. Once the script
// is exhausted Detect returns no hands.
func (m *MockDetector) SetScript(script [][]HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = script
	m.calls = 0
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been called since the last SetScript.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}

	if m.script != nil {
		n := m.calls
		m.calls++
		if n >= len(m.script) {
			return nil, nil
		}
		return m.script[n], nil
	}

	m.calls++
	return m.hands, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// ThumbsUpLandmarks returns a preset HandLandmarks representing a thumbs up gesture.
// The thumb is extended upward while other fingers are curled.
func ThumbsUpLandmarks() HandLandmarks {
	landmarks := HandLandmarks{
		Handedness: "Right",
		Score:      0.95,
	}

	landmarks.Points[Wrist] = Point3D{X: 0.5, Y: 0.8}

	// Thumb pointing up, Y decreases going up
	landmarks.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.75}
	landmarks.Points[ThumbMCP] = Point3D{X: 0.58, Y: 0.65}
	landmarks.Points[ThumbIP] = Point3D{X: 0.58, Y: 0.50}
	landmarks.Points[ThumbTip] = Point3D{X: 0.58, Y: 0.35}

	// Curled fingers: tips end up below their knuckles
	curl := func(mcp int, x, y float64) {
		landmarks.Points[mcp] = Point3D{X: x, Y: y, Z: -0.02}
		landmarks.Points[mcp+1] = Point3D{X: x, Y: y - 0.02, Z: -0.05}
		landmarks.Points[mcp+2] = Point3D{X: x - 0.03, Y: y, Z: -0.04}
		landmarks.Points[mcp+3] = Point3D{X: x - 0.05, Y: y + 0.02, Z: -0.02}
	}
	curl(IndexMCP, 0.55, 0.70)
	curl(MiddleMCP, 0.50, 0.68)
	curl(RingMCP, 0.45, 0.70)
	curl(PinkyMCP, 0.40, 0.72)

	return landmarks
}

// OpenPalmLandmarks returns a preset HandLandmarks representing an open palm gesture.
// All fingers are extended outward.
func OpenPalmLandmarks() HandLandmarks {
	landmarks := HandLandmarks{
		Handedness: "Right",
		Score:      0.95,
	}

	landmarks.Points[Wrist] = Point3D{X: 0.5, Y: 0.8}

	// Thumb extended to the side
	landmarks.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.75, Z: 0.02}
	landmarks.Points[ThumbMCP] = Point3D{X: 0.62, Y: 0.70, Z: 0.03}
	landmarks.Points[ThumbIP] = Point3D{X: 0.68, Y: 0.65, Z: 0.03}
	landmarks.Points[ThumbTip] = Point3D{X: 0.73, Y: 0.60, Z: 0.03}

	landmarks.Points[IndexMCP] = Point3D{X: 0.55, Y: 0.68}
	landmarks.Points[IndexPIP] = Point3D{X: 0.57, Y: 0.55}
	landmarks.Points[IndexDIP] = Point3D{X: 0.58, Y: 0.45}
	landmarks.Points[IndexTip] = Point3D{X: 0.58, Y: 0.35}

	landmarks.Points[MiddleMCP] = Point3D{X: 0.50, Y: 0.66}
	landmarks.Points[MiddlePIP] = Point3D{X: 0.50, Y: 0.52}
	landmarks.Points[MiddleDIP] = Point3D{X: 0.50, Y: 0.40}
	landmarks.Points[MiddleTip] = Point3D{X: 0.50, Y: 0.28}

	landmarks.Points[RingMCP] = Point3D{X: 0.45, Y: 0.68}
	landmarks.Points[RingPIP] = Point3D{X: 0.43, Y: 0.55}
	landmarks.Points[RingDIP] = Point3D{X: 0.42, Y: 0.45}
	landmarks.Points[RingTip] = Point3D{X: 0.42, Y: 0.35}

	landmarks.Points[PinkyMCP] = Point3D{X: 0.40, Y: 0.70}
	landmarks.Points[PinkyPIP] = Point3D{X: 0.37, Y: 0.60}
	landmarks.Points[PinkyDIP] = Point3D{X: 0.35, Y: 0.50}
	landmarks.Points[PinkyTip] = Point3D{X: 0.34, Y: 0.42}

	return landmarks
}

// ShiftedX returns a copy of h translated horizontally so the wrist sits at x.
// Points that would leave the frame are clamped to its edges.
func ShiftedX(h HandLandmarks, x float64) HandLandmarks {
	dx := x - h.Points[Wrist].X
	for i := range h.Points {
		h.Points[i].X = math.Min(1, math.Max(0, h.Points[i].X+dx))
	}
	return h
}

// WaveSequence returns n open-palm frames whose wrist oscillates around
// center with the given amplitude, one full cycle every period frames.
func WaveSequence(n int, center, amplitude float64, period int) []HandLandmarks {
	palm := OpenPalmLandmarks()
	frames := make([]HandLandmarks, n)
	for i := range frames {
		x := center + amplitude*math.Sin(2*math.Pi*float64(i)/float64(period))
		frames[i] = ShiftedX(palm, x)
	}
	return frames
}
