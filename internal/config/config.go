// Package config handles loading, defaulting, and validation of the wavestop
// TOML configuration file.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/ayusman/wavestop/internal/fsm"
	"github.com/ayusman/wavestop/internal/gesture"
)

// ErrUnknownSetting is returned for override keys that do not map to a gesture option.
var ErrUnknownSetting = errors.New("unknown setting")

// Config is the top-level configuration, mirroring the TOML sections.
type Config struct {
	Gesture  GestureConfig  `toml:"gesture"  json:"gesture"`
	Camera   CameraConfig   `toml:"camera"   json:"camera"`
	Detector DetectorConfig `toml:"detector" json:"detector"`
	Action   ActionConfig   `toml:"action"   json:"action"`
	Server   ServerConfig   `toml:"server"   json:"server"`
	Data     DataConfig     `toml:"data"     json:"data"`
	UI       UIConfig       `toml:"ui"       json:"ui"`
	Log      LogConfig      `toml:"log"      json:"log"`
}

// GestureConfig holds the recognition thresholds and challenge timing.
type GestureConfig struct {
	WaveCapacity        int     `toml:"wave_capacity"        json:"wave_capacity"`
	MinSamples          int     `toml:"min_samples"          json:"min_samples"`
	WaveCooldown        float64 `toml:"wave_cooldown"        json:"wave_cooldown"`
	DirectionChanges    int     `toml:"direction_changes"    json:"direction_changes"`
	MovementThreshold   float64 `toml:"movement_threshold"   json:"movement_threshold"`
	NoiseFloor          float64 `toml:"noise_floor"          json:"noise_floor"`
	ConfirmationTimeout float64 `toml:"confirmation_timeout" json:"confirmation_timeout"`
	ShutdownAnimation   float64 `toml:"shutdown_animation"   json:"shutdown_animation"`
	FallbackDelay       float64 `toml:"fallback_delay"       json:"fallback_delay"`
	ConfirmFrames       int     `toml:"confirm_frames"       json:"confirm_frames"`
}

type CameraConfig struct {
	DeviceID        int     `toml:"device_id"        json:"device_id"`
	Mirror          bool    `toml:"mirror"           json:"mirror"`
	IdleFPS         int     `toml:"idle_fps"         json:"idle_fps"`
	ActiveFPS       int     `toml:"active_fps"       json:"active_fps"`
	MotionThreshold float64 `toml:"motion_threshold" json:"motion_threshold"`
}

type DetectorConfig struct {
	MaxHands              int     `toml:"max_hands"               json:"max_hands"`
	MinConfidence         float64 `toml:"min_confidence"          json:"min_confidence"`
	MinTrackingConfidence float64 `toml:"min_tracking_confidence" json:"min_tracking_confidence"`
}

type ActionConfig struct {
	PluginDir   string  `toml:"plugin_dir"    json:"plugin_dir"`
	Plugin      string  `toml:"plugin"        json:"plugin"`
	TimeoutMs   int     `toml:"timeout_ms"    json:"timeout_ms"`
	DryRun      bool    `toml:"dry_run"       json:"dry_run"`
	RetryAfter  float64 `toml:"retry_after"   json:"retry_after"`
	MaxAttempts int     `toml:"max_attempts"  json:"max_attempts"`
}

type ServerConfig struct {
	Bind string `toml:"bind" json:"bind"`
}

type DataConfig struct {
	Dir string `toml:"dir" json:"dir"`
}

type UIConfig struct {
	Tray   bool `toml:"tray"   json:"tray"`
	HUD    bool `toml:"hud"    json:"hud"`
	Popups bool `toml:"popups" json:"popups"`
}

type LogConfig struct {
	Level string `toml:"level" json:"level"`
}

// Default returns a Config populated with the reference defaults. Values
// here are used whenever the TOML file omits a field.
func Default() Config {
	dataDir := ".wavestop"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".wavestop")
	}

	return Config{
		Gesture: GestureConfig{
			WaveCapacity:        20,
			MinSamples:          10,
			WaveCooldown:        2.0,
			DirectionChanges:    3,
			MovementThreshold:   0.1,
			NoiseFloor:          0.02,
			ConfirmationTimeout: 10.0,
			ShutdownAnimation:   3.0,
			FallbackDelay:       2.0,
			ConfirmFrames:       1,
		},
		Camera: CameraConfig{
			DeviceID:        0,
			Mirror:          true,
			IdleFPS:         5,
			ActiveFPS:       15,
			MotionThreshold: 1.0,
		},
		Detector: DetectorConfig{
			MaxHands:              1,
			MinConfidence:         0.7,
			MinTrackingConfidence: 0.5,
		},
		Action: ActionConfig{
			PluginDir:   filepath.Join(dataDir, "plugins"),
			Plugin:      "power",
			TimeoutMs:   5000,
			DryRun:      false,
			RetryAfter:  5.0,
			MaxAttempts: 3,
		},
		Server: ServerConfig{
			Bind: "127.0.0.1:8080",
		},
		Data: DataConfig{
			Dir: dataDir,
		},
		UI: UIConfig{
			Tray:   false,
			HUD:    false,
			Popups: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the TOML file at path, layers it on top of the defaults, and
// validates the result. A missing file yields the defaults together with an
// error matching os.ErrNotExist.
func Load(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := toml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// maxSeconds is the largest second count a time.Duration can hold.
const maxSeconds = float64(math.MaxInt64 / int64(time.Second))

// Validate checks every constraint on the configuration.
func (c Config) Validate() error {
	g := c.Gesture
	for _, f := range []struct {
		name    string
		value   float64
		seconds bool
	}{
		{"gesture.wave_cooldown", g.WaveCooldown, true},
		{"gesture.movement_threshold", g.MovementThreshold, false},
		{"gesture.noise_floor", g.NoiseFloor, false},
		{"gesture.confirmation_timeout", g.ConfirmationTimeout, true},
		{"gesture.shutdown_animation", g.ShutdownAnimation, true},
		{"gesture.fallback_delay", g.FallbackDelay, true},
		{"camera.motion_threshold", c.Camera.MotionThreshold, false},
		{"detector.min_confidence", c.Detector.MinConfidence, false},
		{"detector.min_tracking_confidence", c.Detector.MinTrackingConfidence, false},
		{"action.retry_after", c.Action.RetryAfter, true},
	} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%s must be a finite number", f.name)
		}
		if f.seconds && f.value > maxSeconds {
			return fmt.Errorf("%s must be at most %.0f seconds", f.name, maxSeconds)
		}
	}
	if g.WaveCapacity < 3 {
		return errors.New("gesture.wave_capacity must be >= 3")
	}
	if g.MinSamples < 3 || g.MinSamples > g.WaveCapacity {
		return errors.New("gesture.min_samples must be between 3 and gesture.wave_capacity")
	}
	if g.WaveCooldown < 0 {
		return errors.New("gesture.wave_cooldown must be >= 0")
	}
	if g.DirectionChanges < 1 {
		return errors.New("gesture.direction_changes must be >= 1")
	}
	if g.MovementThreshold < 0 || g.NoiseFloor < 0 {
		return errors.New("gesture.movement_threshold and gesture.noise_floor must be >= 0")
	}
	if g.ConfirmationTimeout <= 0 || g.ShutdownAnimation < 0 || g.FallbackDelay < 0 {
		return errors.New("gesture timings must be positive")
	}
	if g.ConfirmFrames < 1 {
		return errors.New("gesture.confirm_frames must be >= 1")
	}
	if c.Camera.IdleFPS <= 0 || c.Camera.ActiveFPS <= 0 {
		return errors.New("camera fps must be > 0")
	}
	if c.Detector.MinConfidence < 0 || c.Detector.MinConfidence > 1 ||
		c.Detector.MinTrackingConfidence < 0 || c.Detector.MinTrackingConfidence > 1 {
		return errors.New("detector confidences must be between 0 and 1")
	}
	if c.Action.Plugin == "" {
		return errors.New("action.plugin must not be empty")
	}
	if c.Action.TimeoutMs <= 0 {
		return errors.New("action.timeout_ms must be > 0")
	}
	if c.Action.RetryAfter < 0 {
		return errors.New("action.retry_after must be >= 0")
	}
	if c.Action.MaxAttempts < 1 {
		return errors.New("action.max_attempts must be >= 1")
	}
	if c.Data.Dir == "" {
		return errors.New("data.dir must not be empty")
	}
	switch c.Log.Level {
	case "debug", "info":
	default:
		return fmt.Errorf("log.level %q must be debug or info", c.Log.Level)
	}
	return nil
}

// Wave returns the wave detector configuration.
func (g GestureConfig) Wave() gesture.WaveConfig {
	return gesture.WaveConfig{
		Capacity:          g.WaveCapacity,
		MinSamples:        g.MinSamples,
		Cooldown:          seconds(g.WaveCooldown),
		DirectionChanges:  g.DirectionChanges,
		MovementThreshold: g.MovementThreshold,
		NoiseFloor:        g.NoiseFloor,
	}
}

// Timing returns the state machine timing policy.
func (g GestureConfig) Timing() fsm.Timing {
	return fsm.Timing{
		ConfirmationTimeout: seconds(g.ConfirmationTimeout),
		ShutdownAnimation:   seconds(g.ShutdownAnimation),
		FallbackDelay:       seconds(g.FallbackDelay),
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// overrides maps the keys accepted by ApplyOverrides to their gesture options.
var overrides = map[string]func(g *GestureConfig, v string) error{
	"gesture.wave_capacity":        intSetting(func(g *GestureConfig) *int { return &g.WaveCapacity }),
	"gesture.min_samples":          intSetting(func(g *GestureConfig) *int { return &g.MinSamples }),
	"gesture.wave_cooldown":        floatSetting(func(g *GestureConfig) *float64 { return &g.WaveCooldown }),
	"gesture.direction_changes":    intSetting(func(g *GestureConfig) *int { return &g.DirectionChanges }),
	"gesture.movement_threshold":   floatSetting(func(g *GestureConfig) *float64 { return &g.MovementThreshold }),
	"gesture.noise_floor":          floatSetting(func(g *GestureConfig) *float64 { return &g.NoiseFloor }),
	"gesture.confirmation_timeout": floatSetting(func(g *GestureConfig) *float64 { return &g.ConfirmationTimeout }),
	"gesture.shutdown_animation":   floatSetting(func(g *GestureConfig) *float64 { return &g.ShutdownAnimation }),
	"gesture.fallback_delay":       floatSetting(func(g *GestureConfig) *float64 { return &g.FallbackDelay }),
	"gesture.confirm_frames":       intSetting(func(g *GestureConfig) *int { return &g.ConfirmFrames }),
}

func intSetting(field func(g *GestureConfig) *int) func(g *GestureConfig, v string) error {
	return func(g *GestureConfig, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(g) = n
		return nil
	}
}

func floatSetting(field func(g *GestureConfig) *float64) func(g *GestureConfig, v string) error {
	return func(g *GestureConfig, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*field(g) = f
		return nil
	}
}

// OverrideKeys returns the setting keys accepted by ApplyOverrides, sorted.
func OverrideKeys() []string {
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ApplyOverrides layers stored settings over the gesture section and
// validates the result. On error the receiver is left unchanged.
func (c *Config) ApplyOverrides(settings map[string]string) error {
	next := *c
	for key, value := range settings {
		set, ok := overrides[key]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownSetting, key)
		}
		if err := set(&next.Gesture, value); err != nil {
			return fmt.Errorf("setting %s: %w", key, err)
		}
	}

	if err := next.Validate(); err != nil {
		return err
	}

	*c = next
	return nil
}
