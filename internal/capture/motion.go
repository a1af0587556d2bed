package capture

import (
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

const (
	blurKernel    = 21
	diffThreshold = 25
)

// MotionDetector reports how much of the picture changed since the previous
// frame, using blurred grayscale frame differencing.
type MotionDetector struct {
	threshold   float64
	prevGray    gocv.Mat
	initialized bool
	mu          sync.Mutex
}

// NewMotionDetector creates a MotionDetector. threshold is the percentage of
// pixels that must change for a frame to count as motion.
func NewMotionDetector(threshold float64) *MotionDetector {
	return &MotionDetector{
		threshold: threshold,
		prevGray:  gocv.NewMat(),
	}
}

// Detect compares frame with the previous one and returns whether the
// changed share of pixels exceeds the threshold, and that share in percent.
// The first frame only establishes a baseline.
func (m *MotionDetector) Detect(frame *gocv.Mat) (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: blurKernel, Y: blurKernel}, 0, 0, gocv.BorderDefault)

	if !m.initialized || m.prevGray.Rows() != blurred.Rows() || m.prevGray.Cols() != blurred.Cols() {
		blurred.CopyTo(&m.prevGray)
		m.initialized = true
		return false, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prevGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, diffThreshold, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(thresh)) / float64(thresh.Rows()*thresh.Cols()) * 100.0

	blurred.CopyTo(&m.prevGray)

	return changed > m.threshold, changed
}

// Reset drops the baseline frame.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prevGray.Close()
	m.prevGray = gocv.NewMat()
	m.initialized = false
}

// Close releases the baseline frame.
func (m *MotionDetector) Close() {
	m.Reset()
}

// SetThreshold changes the threshold. Values <= 0 are ignored.
func (m *MotionDetector) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.threshold = threshold
}

// MotionGate keeps hand detection running for a hold period after the last
// motion, so a hand that pauses mid-wave is not dropped.
type MotionGate struct {
	detector   *MotionDetector
	hold       time.Duration
	lastMotion time.Time
}

// NewMotionGate wraps detector with the given hold period.
func NewMotionGate(detector *MotionDetector, hold time.Duration) *MotionGate {
	return &MotionGate{detector: detector, hold: hold}
}

// Open reports whether frame, seen at now, should be passed to the hand
// detector.
func (g *MotionGate) Open(frame *gocv.Mat, now time.Time) bool {
	if moving, _ := g.detector.Detect(frame); moving {
		g.lastMotion = now
		return true
	}
	return g.active(now)
}

func (g *MotionGate) active(now time.Time) bool {
	if g.lastMotion.IsZero() {
		return false
	}
	since := now.Sub(g.lastMotion)
	return since >= 0 && since <= g.hold
}

// Reset forgets the last motion and the detector baseline.
func (g *MotionGate) Reset() {
	g.lastMotion = time.Time{}
	g.detector.Reset()
}
