package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/wavestop/internal/capture"
	"github.com/ayusman/wavestop/internal/detector"
)

// MotionHold is how long hand detection keeps running after the last
// frame with motion.
const MotionHold = 2 * time.Second

// Observation is what a Source produced for one tick.
type Observation struct {
	// Hand is the first detected hand, or nil.
	Hand *detector.HandLandmarks
	// Active is true when the scene is live (motion or a hand) and the
	// pipeline should run at the active frame rate.
	Active bool
}

// Source supplies one observation per pipeline tick.
type Source interface {
	// Next returns the observation at now. With force set the source must
	// run hand detection even if it would otherwise skip the frame.
	Next(now time.Time, force bool) (Observation, error)
	// SetFPS hints the capture rate the pipeline is ticking at.
	SetFPS(fps int)
	Close() error
}

// CameraSource reads frames from a camera, gates them on motion and runs
// the hand detector on what gets through.
type CameraSource struct {
	camera   capture.Camera
	motion   *capture.MotionDetector
	gate     *capture.MotionGate
	detector detector.Detector
	preview  *capture.Preview
}

// NewCameraSource creates a CameraSource. preview may be nil.
func NewCameraSource(cam capture.Camera, det detector.Detector, motionThreshold float64, preview *capture.Preview) *CameraSource {
	motion := capture.NewMotionDetector(motionThreshold)
	return &CameraSource{
		camera:   cam,
		motion:   motion,
		gate:     capture.NewMotionGate(motion, MotionHold),
		detector: det,
		preview:  preview,
	}
}

func (s *CameraSource) Next(now time.Time, force bool) (Observation, error) {
	if !s.camera.IsOpen() {
		if err := s.camera.Open(); err != nil {
			return Observation{}, err
		}
	}

	frame, err := s.camera.ReadFrame()
	if err != nil {
		return Observation{}, fmt.Errorf("read frame: %w", err)
	}
	defer frame.Close()

	if s.preview != nil {
		s.preview.Update(frame)
	}

	moving := s.gate.Open(frame, now)
	if !moving && !force {
		return Observation{}, nil
	}

	hands, err := s.detector.Detect(frame)
	if err != nil {
		return Observation{Active: moving}, fmt.Errorf("detect hands: %w", err)
	}

	hand := detector.First(hands)
	debugf("frame: motion=%v hands=%d", moving, len(hands))
	return Observation{Hand: hand, Active: moving || hand != nil}, nil
}

func (s *CameraSource) SetFPS(fps int) {
	s.camera.SetFPS(fps)
}

// Close releases the camera, the motion detector and the hand detector.
func (s *CameraSource) Close() error {
	errs := []error{s.camera.Close()}
	s.motion.Close()
	errs = append(errs, s.detector.Close())
	return errors.Join(errs...)
}

// DetectorSource drives a detector without a camera. It is used with the
// mock detector to replay scripted landmark sequences.
type DetectorSource struct {
	detector detector.Detector
}

func NewDetectorSource(det detector.Detector) *DetectorSource {
	return &DetectorSource{detector: det}
}

func (s *DetectorSource) Next(time.Time, bool) (Observation, error) {
	hands, err := s.detector.Detect(nil)
	if err != nil {
		return Observation{}, err
	}
	hand := detector.First(hands)
	return Observation{Hand: hand, Active: hand != nil}, nil
}

func (s *DetectorSource) SetFPS(int) {}

func (s *DetectorSource) Close() error {
	return s.detector.Close()
}
