package capture

import (
	"testing"
	"time"

	"gocv.io/x/gocv"
)

func solidFrame(v float64) gocv.Mat {
	m := gocv.NewMatWithSize(DefaultHeight, DefaultWidth, gocv.MatTypeCV8UC3)
	if v > 0 {
		m.SetTo(gocv.NewScalar(v, v, v, 0))
	}
	return m
}

func TestNewMotionDetector(t *testing.T) {
	md := NewMotionDetector(1.5)
	defer md.Close()

	if md.threshold != 1.5 {
		t.Errorf("threshold = %f, want 1.5", md.threshold)
	}
	if md.initialized {
		t.Error("motion detector should not be initialized initially")
	}
}

func TestMotionDetector_NoMotion(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	md := NewMotionDetector(1.0)
	defer md.Close()

	a, b := solidFrame(0), solidFrame(0)
	defer a.Close()
	defer b.Close()

	if detected, pct := md.Detect(&a); detected || pct != 0 {
		t.Errorf("first frame should only set the baseline, got %v %f", detected, pct)
	}
	if detected, pct := md.Detect(&b); detected {
		t.Errorf("identical frames should not detect motion, changePercent = %f", pct)
	}
}

func TestMotionDetector_WithMotion(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	md := NewMotionDetector(1.0)
	defer md.Close()

	black, white := solidFrame(0), solidFrame(255)
	defer black.Close()
	defer white.Close()

	md.Detect(&black)
	detected, pct := md.Detect(&white)
	if !detected {
		t.Errorf("black to white should detect motion, changePercent = %f", pct)
	}
	if pct < 50.0 {
		t.Errorf("changePercent = %f, expected > 50%%", pct)
	}
}

func TestMotionDetector_Reset(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	md := NewMotionDetector(1.0)
	defer md.Close()

	frame := solidFrame(0)
	defer frame.Close()

	md.Detect(&frame)
	if !md.initialized {
		t.Error("detector should be initialized after first Detect")
	}

	md.Reset()
	if md.initialized {
		t.Error("detector should not be initialized after Reset")
	}
	if !md.prevGray.Empty() {
		t.Error("prevGray should be empty after Reset")
	}
}

func TestMotionDetector_NilFrame(t *testing.T) {
	md := NewMotionDetector(1.0)
	defer md.Close()

	if detected, pct := md.Detect(nil); detected || pct != 0 {
		t.Errorf("nil frame should report nothing, got %v %f", detected, pct)
	}
}

func TestMotionDetector_SetThreshold(t *testing.T) {
	md := NewMotionDetector(1.0)
	defer md.Close()

	md.SetThreshold(5.0)
	if md.threshold != 5.0 {
		t.Errorf("threshold = %f, want 5.0", md.threshold)
	}

	md.SetThreshold(-1.0)
	if md.threshold != 5.0 {
		t.Errorf("negative threshold should be ignored, got %f", md.threshold)
	}
}

func TestMotionDetector_Close_Multiple(t *testing.T) {
	md := NewMotionDetector(1.0)
	md.Close()
	md.Close()
}

func TestMotionGate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	md := NewMotionDetector(1.0)
	defer md.Close()
	gate := NewMotionGate(md, time.Second)

	black, white := solidFrame(0), solidFrame(255)
	defer black.Close()
	defer white.Close()

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	if gate.Open(&black, t0) {
		t.Error("baseline frame should not open the gate")
	}
	if !gate.Open(&white, t0.Add(100*time.Millisecond)) {
		t.Error("motion should open the gate")
	}
	// Still scene, but within the hold period.
	if !gate.Open(&white, t0.Add(900*time.Millisecond)) {
		t.Error("gate should stay open during hold")
	}
	if gate.Open(&white, t0.Add(1200*time.Millisecond)) {
		t.Error("gate should close after hold expires")
	}

	gate.Open(&black, t0.Add(1300*time.Millisecond))
	gate.Reset()
	if gate.Open(&black, t0.Add(1400*time.Millisecond)) {
		t.Error("gate should be closed after reset")
	}
}
