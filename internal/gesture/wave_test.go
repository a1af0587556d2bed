package gesture

import (
	"math"
	"testing"
	"time"
)

const frameInterval = 33 * time.Millisecond

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// sine returns n wrist positions oscillating around 0.5, one cycle every period samples.
func sine(n int, amplitude float64, period int) []float64 {
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = 0.5 + amplitude*math.Sin(2*math.Pi*float64(i)/float64(period))
	}
	return xs
}

// feed observes xs one frame apart starting at start and returns the indices that reported a wave.
func feed(d *WaveDetector, xs []float64, start time.Time) []int {
	var hits []int
	for i, x := range xs {
		if d.Observe(x, start.Add(time.Duration(i)*frameInterval)) {
			hits = append(hits, i)
		}
	}
	return hits
}

func TestWaveDetector_FewerThanMinSamples(t *testing.T) {
	d := NewWaveDetector(DefaultWaveConfig())

	// Large, fast reversals that would qualify with a full window.
	xs := []float64{0.2, 0.8, 0.2, 0.8, 0.2, 0.8, 0.2, 0.8, 0.2}
	if hits := feed(d, xs, t0); len(hits) != 0 {
		t.Errorf("expected no wave with %d samples, got hits at %v", len(xs), hits)
	}

	if d.Len() != len(xs) {
		t.Errorf("expected %d buffered samples, got %d", len(xs), d.Len())
	}
}

func TestWaveDetector_SineWave(t *testing.T) {
	d := NewWaveDetector(DefaultWaveConfig())

	xs := sine(20, 0.08, 8)
	var hits []int
	for i, x := range xs {
		if d.Observe(x, t0.Add(time.Duration(i)*frameInterval)) {
			hits = append(hits, i)
			if d.Len() != 0 {
				t.Errorf("expected empty buffer after recognition, got %d samples", d.Len())
			}
		}
	}

	if len(hits) != 1 {
		t.Fatalf("expected exactly one wave, got hits at %v", hits)
	}

	// Third reversal above the noise floor lands on the twelfth sample.
	if hits[0] != 11 {
		t.Errorf("expected wave on sample 11, got %d", hits[0])
	}
}

func TestWaveDetector_Cooldown(t *testing.T) {
	d := NewWaveDetector(DefaultWaveConfig())

	first := feed(d, sine(20, 0.08, 8), t0)
	if len(first) != 1 {
		t.Fatalf("expected first wave, got hits at %v", first)
	}
	recognizedAt := t0.Add(time.Duration(first[0]) * frameInterval)

	// Still inside the 2s cooldown.
	second := feed(d, sine(20, 0.08, 8), recognizedAt.Add(500*time.Millisecond))
	if len(second) != 0 {
		t.Errorf("expected second wave to be suppressed, got hits at %v", second)
	}

	// Well past the cooldown, the buffered window qualifies again.
	third := feed(d, sine(20, 0.08, 8), recognizedAt.Add(3*time.Second))
	if len(third) == 0 {
		t.Error("expected a wave after the cooldown elapsed")
	}
}

func TestWaveDetector_RejectsFalsePositives(t *testing.T) {
	tests := []struct {
		name string
		xs   []float64
	}{
		{"jitter below noise floor", sine(20, 0.005, 4)},
		{"single swipe", func() []float64 {
			xs := make([]float64, 20)
			for i := range xs {
				xs[i] = 0.1 + 0.04*float64(i)
			}
			return xs
		}()},
		{"stationary hand", func() []float64 {
			xs := make([]float64, 20)
			for i := range xs {
				xs[i] = 0.5
			}
			return xs
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewWaveDetector(DefaultWaveConfig())
			if hits := feed(d, tt.xs, t0); len(hits) != 0 {
				t.Errorf("expected no wave, got hits at %v", hits)
			}
		})
	}
}

func TestWaveDetector_Eviction(t *testing.T) {
	d := NewWaveDetector(DefaultWaveConfig())

	for i := 0; i < 25; i++ {
		d.Observe(0.5, t0.Add(time.Duration(i)*frameInterval))
	}

	if d.Len() != 20 {
		t.Fatalf("expected capacity-bound buffer of 20, got %d", d.Len())
	}

	samples := d.Samples()
	if !samples[0].Time.Equal(t0.Add(5 * frameInterval)) {
		t.Errorf("expected oldest sample from frame 5, got %v", samples[0].Time)
	}
	for i := 1; i < len(samples); i++ {
		if !samples[i].Time.After(samples[i-1].Time) {
			t.Fatalf("samples out of order at %d", i)
		}
	}
}

func TestWaveDetector_ResetKeepsCooldown(t *testing.T) {
	d := NewWaveDetector(DefaultWaveConfig())

	hits := feed(d, sine(20, 0.08, 8), t0)
	if len(hits) != 1 {
		t.Fatalf("expected one wave, got %v", hits)
	}

	d.Reset()
	if d.Len() != 0 {
		t.Errorf("expected empty buffer after reset, got %d", d.Len())
	}

	if again := feed(d, sine(20, 0.08, 8), t0.Add(time.Second)); len(again) != 0 {
		t.Errorf("expected cooldown to survive reset, got hits at %v", again)
	}
}

func TestWaveDetector_BackwardClock(t *testing.T) {
	d := NewWaveDetector(DefaultWaveConfig())

	hits := feed(d, sine(20, 0.08, 8), t0)
	if len(hits) != 1 {
		t.Fatalf("expected one wave, got %v", hits)
	}

	// Clock jumps an hour back: elapsed clamps to zero, which is inside the cooldown.
	if again := feed(d, sine(20, 0.08, 8), t0.Add(-time.Hour)); len(again) != 0 {
		t.Errorf("expected backward clock to stay in cooldown, got hits at %v", again)
	}
}

func TestNewWaveDetector_Defaults(t *testing.T) {
	d := NewWaveDetector(WaveConfig{MovementThreshold: 0.1, NoiseFloor: 0.02})

	if d.config.Capacity != 20 || d.config.MinSamples != 10 || d.config.DirectionChanges != 3 {
		t.Errorf("expected defaults to fill zero fields, got %+v", d.config)
	}

	small := NewWaveDetector(WaveConfig{Capacity: 5, MinSamples: 10})
	if small.config.MinSamples != 5 {
		t.Errorf("expected MinSamples clamped to capacity, got %d", small.config.MinSamples)
	}
	if small.config.MovementThreshold != 0 || small.config.NoiseFloor != 0 || small.config.Cooldown != 0 {
		t.Errorf("expected zero thresholds and cooldown kept as given, got %+v", small.config)
	}

	negative := NewWaveDetector(WaveConfig{Cooldown: -time.Second})
	if negative.config.Cooldown != 0 {
		t.Errorf("expected negative cooldown clamped to zero, got %v", negative.config.Cooldown)
	}
}
