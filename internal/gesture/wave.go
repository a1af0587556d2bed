// Package gesture recognizes the wave and thumbs-up gestures that drive the
// shutdown challenge.
package gesture

import (
	"math"
	"time"
)

// WaveConfig holds the wave recognition thresholds.
type WaveConfig struct {
	// Capacity is the number of wrist samples kept in the sliding window.
	Capacity int
	// MinSamples is the number of buffered samples required before a window is analyzed.
	MinSamples int
	// Cooldown is the minimum time between two recognized waves.
	Cooldown time.Duration
	// DirectionChanges is the number of x-direction reversals a wave needs.
	DirectionChanges int
	// MovementThreshold is the cumulative |dx| a wave must exceed.
	MovementThreshold float64
	// NoiseFloor is the minimum |dx| for a reversal to count.
	NoiseFloor float64
}

// DefaultWaveConfig returns the reference thresholds. They are empirical.
func DefaultWaveConfig() WaveConfig {
	return WaveConfig{
		Capacity:          20,
		MinSamples:        10,
		Cooldown:          2 * time.Second,
		DirectionChanges:  3,
		MovementThreshold: 0.1,
		NoiseFloor:        0.02,
	}
}

// WaveSample is one wrist x-position observation.
type WaveSample struct {
	X    float64
	Time time.Time
}

// WaveDetector recognizes a side-to-side wave from a stream of wrist
// x-positions. It is not safe for concurrent use.
type WaveDetector struct {
	config WaveConfig

	// ring buffer
	samples []WaveSample
	head    int
	count   int

	lastRecognized time.Time
	recognized     bool
}

// NewWaveDetector creates a WaveDetector. A non-positive Capacity, MinSamples
// or DirectionChanges falls back to its default, MinSamples is clamped to
// Capacity and a negative Cooldown becomes zero. The thresholds are used as
// given.
func NewWaveDetector(config WaveConfig) *WaveDetector {
	def := DefaultWaveConfig()
	if config.Capacity <= 0 {
		config.Capacity = def.Capacity
	}
	if config.MinSamples <= 0 {
		config.MinSamples = def.MinSamples
	}
	if config.MinSamples > config.Capacity {
		config.MinSamples = config.Capacity
	}
	if config.DirectionChanges <= 0 {
		config.DirectionChanges = def.DirectionChanges
	}
	if config.Cooldown < 0 {
		config.Cooldown = 0
	}

	return &WaveDetector{
		config:  config,
		samples: make([]WaveSample, config.Capacity),
	}
}

// Observe records a wrist position and reports whether the buffered window
// now forms a wave. A recognized wave clears the buffer and starts the cooldown.
func (d *WaveDetector) Observe(x float64, now time.Time) bool {
	d.push(WaveSample{X: x, Time: now})

	if d.count < d.config.MinSamples {
		return false
	}

	if d.recognized && elapsed(d.lastRecognized, now) < d.config.Cooldown {
		return false
	}

	changes, movement := d.analyze()
	if changes < d.config.DirectionChanges || movement <= d.config.MovementThreshold {
		return false
	}

	d.lastRecognized = now
	d.recognized = true
	d.Reset()
	return true
}

// analyze counts direction reversals above the noise floor and sums the
// absolute displacement over the buffered window.
func (d *WaveDetector) analyze() (changes int, movement float64) {
	for i := 2; i < d.count; i++ {
		prevDiff := d.at(i-1).X - d.at(i-2).X
		currDiff := d.at(i).X - d.at(i-1).X

		if prevDiff*currDiff < 0 && math.Abs(currDiff) > d.config.NoiseFloor {
			changes++
		}
		movement += math.Abs(currDiff)
	}
	return changes, movement
}

// Reset discards all buffered samples. The cooldown is kept.
func (d *WaveDetector) Reset() {
	d.head = 0
	d.count = 0
}

// Len returns the number of buffered samples.
func (d *WaveDetector) Len() int {
	return d.count
}

// Samples returns the buffered samples, oldest first.
func (d *WaveDetector) Samples() []WaveSample {
	out := make([]WaveSample, d.count)
	for i := range out {
		out[i] = d.at(i)
	}
	return out
}

// push appends a sample, evicting the oldest one when full.
func (d *WaveDetector) push(s WaveSample) {
	capacity := len(d.samples)
	d.samples[(d.head+d.count)%capacity] = s
	if d.count < capacity {
		d.count++
		return
	}
	d.head = (d.head + 1) % capacity
}

// at returns the i-th buffered sample counting from the oldest.
func (d *WaveDetector) at(i int) WaveSample {
	return d.samples[(d.head+i)%len(d.samples)]
}

// elapsed returns now-since, clamped at zero when the clock moved backwards.
func elapsed(since, now time.Time) time.Duration {
	if d := now.Sub(since); d > 0 {
		return d
	}
	return 0
}
