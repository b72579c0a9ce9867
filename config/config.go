// Package config holds the user facing scheduler settings.
//
// Every setting has a documented valid range. Values outside of it are
// clamped, never rejected, so a hand edited file can not stop the
// application from starting.
package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	MinTasksPerTick = 8
	MaxTasksPerTick = 4096

	MinTickTime = 100 * time.Microsecond
	MaxTickTime = time.Second

	MinTargetFPS = 1
	MaxTargetFPS = 1000

	MinBackgroundWorkers = 1
	MaxBackgroundWorkers = 256

	MinBackgroundQueue = 16
	MaxBackgroundQueue = 65536
)

type Settings struct {
	MaxTasksPerTick   int           `yaml:"max_tasks_per_tick"`
	MaxTickTime       time.Duration `yaml:"max_tick_time"`
	ThrottleTimed     bool          `yaml:"throttle_timed"`
	LogDispatch       bool          `yaml:"log_dispatch"`
	TargetFPS         int           `yaml:"target_fps"`
	BackgroundWorkers int           `yaml:"background_workers"`
	BackgroundQueue   int           `yaml:"background_queue"`
	LogLevel          string        `yaml:"log_level"`
	LogFormat         string        `yaml:"log_format"`
}

// Default returns settings tuned for a 60 FPS render loop.
func Default() Settings {
	return Settings{
		MaxTasksPerTick:   64,
		MaxTickTime:       4 * time.Millisecond,
		ThrottleTimed:     true,
		LogDispatch:       false,
		TargetFPS:         60,
		BackgroundWorkers: clampInt(runtime.GOMAXPROCS(0), MinBackgroundWorkers, MaxBackgroundWorkers),
		BackgroundQueue:   1024,
		LogLevel:          "info",
		LogFormat:         "text",
	}
}

// Load reads YAML settings from path. Keys missing in the file keep
// their default value.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings %q: %w", path, err)
	}

	s, err := Parse(data)
	if err != nil {
		return Settings{}, fmt.Errorf("settings %q: %w", path, err)
	}

	return s, nil
}

func Parse(data []byte) (Settings, error) {
	s := Default()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parse yaml: %w", err)
	}

	return s.Clamped(), nil
}

// Clamped returns a copy with every value forced into its valid range.
func (s Settings) Clamped() Settings {
	s.MaxTasksPerTick = clampInt(s.MaxTasksPerTick, MinTasksPerTick, MaxTasksPerTick)
	s.MaxTickTime = clampDuration(s.MaxTickTime, MinTickTime, MaxTickTime)
	s.TargetFPS = clampInt(s.TargetFPS, MinTargetFPS, MaxTargetFPS)
	s.BackgroundWorkers = clampInt(s.BackgroundWorkers, MinBackgroundWorkers, MaxBackgroundWorkers)
	s.BackgroundQueue = clampInt(s.BackgroundQueue, MinBackgroundQueue, MaxBackgroundQueue)

	return s
}

func (s *Settings) SetMaxTasksPerTick(n int) {
	s.MaxTasksPerTick = clampInt(n, MinTasksPerTick, MaxTasksPerTick)
}

func (s *Settings) SetMaxTickTime(d time.Duration) {
	s.MaxTickTime = clampDuration(d, MinTickTime, MaxTickTime)
}

func (s *Settings) SetTargetFPS(fps int) {
	s.TargetFPS = clampInt(fps, MinTargetFPS, MaxTargetFPS)
}

func (s *Settings) SetBackgroundWorkers(n int) {
	s.BackgroundWorkers = clampInt(n, MinBackgroundWorkers, MaxBackgroundWorkers)
}

func (s *Settings) SetBackgroundQueue(n int) {
	s.BackgroundQueue = clampInt(n, MinBackgroundQueue, MaxBackgroundQueue)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}

func clampDuration(v, lo, hi time.Duration) time.Duration {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}
