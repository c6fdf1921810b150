package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	logx "tickbot/pkg/logx"
)

const (
	DefaultLoopPeriod = 20 * time.Millisecond
	DefaultAutoPeriod = 15 * time.Second
	DefaultRetain     = 7 * 24 * time.Hour
	DefaultSchedule   = "@every 1h"
	DefaultIntakeTime = 300 * time.Millisecond

	DefaultDebugReadTimeout = 10 * time.Second
	DefaultDebugIdleTimeout = 60 * time.Second
)

// Runtime holds the parsed, defaulted values of a Config.
type Runtime struct {
	LoopPeriod  time.Duration
	AutoPeriod  time.Duration
	StartMode   string
	IntakeTime  time.Duration
	Retain      time.Duration
	Schedule    string
	BusyTimeout time.Duration

	DebugReadTimeout time.Duration
	DebugIdleTimeout time.Duration
}

var startModes = map[string]bool{"": true, "disabled": true, "auto": true, "autonomous": true, "teleop": true}

// Resolve validates cfg and parses its durations. Every problem is reported,
// joined into one error.
func Resolve(cfg *Config) (Runtime, error) {
	if cfg == nil {
		return Runtime{}, errors.New("config is nil")
	}
	var (
		rt   Runtime
		errs []error
		err  error
	)
	keep := func(e error) {
		if e != nil {
			errs = append(errs, e)
		}
	}

	rt.LoopPeriod, err = ParseDurationOrDefault("robot.loop_period", cfg.Robot.LoopPeriod, DefaultLoopPeriod)
	keep(err)
	if err == nil && rt.LoopPeriod < time.Millisecond {
		keep(fmt.Errorf("robot.loop_period: must be at least 1ms"))
	}
	rt.AutoPeriod, err = ParseDurationOrDefault("robot.auto_period", cfg.Robot.AutoPeriod, DefaultAutoPeriod)
	keep(err)
	rt.IntakeTime, err = ParseDurationOrDefault("robot.sim.intake_time", cfg.Robot.Sim.IntakeTime, DefaultIntakeTime)
	keep(err)

	rt.StartMode = strings.ToLower(strings.TrimSpace(cfg.Robot.StartMode))
	if !startModes[rt.StartMode] {
		keep(fmt.Errorf("robot.start_mode: unknown mode %q", cfg.Robot.StartMode))
	}
	if cfg.Robot.HistorySize < 0 {
		keep(fmt.Errorf("robot.history_size: must be >= 0"))
	}
	if cfg.Robot.Sim.MaxSpeed < 0 || cfg.Robot.Sim.ElevatorSpeed < 0 {
		keep(fmt.Errorf("robot.sim: speeds must be >= 0"))
	}

	if lvl := strings.TrimSpace(cfg.Logging.Level); lvl != "" && !logx.ValidLevel(lvl) {
		keep(fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level))
	}

	if s := cfg.Storage; s != nil {
		switch strings.ToLower(strings.TrimSpace(s.Driver)) {
		case "", "file", "sqlite":
		default:
			keep(fmt.Errorf("storage.driver: unknown driver %q", s.Driver))
		}
		rt.BusyTimeout, err = ParseDurationField("storage.busy_timeout", s.BusyTimeout)
		keep(err)
	}

	rt.Retain, err = ParseDurationOrDefault("housekeeping.retain", cfg.Housekeeping.Retain, DefaultRetain)
	keep(err)
	rt.Schedule = strings.TrimSpace(cfg.Housekeeping.Schedule)
	if rt.Schedule == "" {
		rt.Schedule = DefaultSchedule
	}
	if cfg.Housekeeping.Enabled && cfg.Storage == nil {
		keep(fmt.Errorf("housekeeping: enabled without a storage section"))
	}

	rt.DebugReadTimeout, err = ParseDurationOrDefault("debug.read_timeout", cfg.Debug.ReadTimeout, DefaultDebugReadTimeout)
	keep(err)
	rt.DebugIdleTimeout, err = ParseDurationOrDefault("debug.idle_timeout", cfg.Debug.IdleTimeout, DefaultDebugIdleTimeout)
	keep(err)
	if cfg.Debug.MutexProfileFraction < 0 || cfg.Debug.BlockProfileRate < 0 {
		keep(fmt.Errorf("debug: profile rates must be >= 0"))
	}

	return rt, errors.Join(errs...)
}

// RoutinesPath resolves cfg.RoutinesFile against the directory of the config
// file at configPath. It returns "" when no routines file is configured.
func RoutinesPath(configPath string, cfg *Config) string {
	p := strings.TrimSpace(cfg.RoutinesFile)
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(configPath), p)
}
