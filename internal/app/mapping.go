package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"tickbot/internal/config"
	"tickbot/internal/control"
	"tickbot/internal/housekeeping"
	"tickbot/internal/observability/debugserver"
	"tickbot/internal/robot"
	"tickbot/internal/routines"
	"tickbot/internal/storage"
	logx "tickbot/pkg/logx"
)

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "file":
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapHousekeepingConfig(cfg *config.Config, rt config.Runtime) housekeeping.Config {
	return housekeeping.Config{
		Enabled:  cfg.Housekeeping.Enabled,
		Schedule: rt.Schedule,
		Retain:   rt.Retain,
		Timezone: cfg.Housekeeping.Timezone,
	}
}

func mapDebugConfig(cfg *config.Config, rt config.Runtime) debugserver.Config {
	d := cfg.Debug
	return debugserver.Config{
		Enabled:              d.Enabled,
		Addr:                 strings.TrimSpace(d.Addr),
		Token:                strings.TrimSpace(d.Token),
		AllowInsecure:        d.AllowInsecure,
		Pprof:                d.Pprof,
		ReadTimeout:          rt.DebugReadTimeout,
		IdleTimeout:          rt.DebugIdleTimeout,
		MutexProfileFraction: d.MutexProfileFraction,
		BlockProfileRate:     d.BlockProfileRate,
	}
}

func mapControlConfig(cfg *config.Config, rt config.Runtime) control.Config {
	return control.Config{
		Period:          rt.LoopPeriod,
		AutoPeriod:      rt.AutoPeriod,
		TeleopAfterAuto: cfg.Robot.TeleopAfterAuto,
	}
}

func mapSimConfig(cfg *config.Config, rt config.Runtime) robot.SimConfig {
	return robot.SimConfig{
		MaxSpeed:       cfg.Robot.Sim.MaxSpeed,
		ElevatorSpeed:  cfg.Robot.Sim.ElevatorSpeed,
		IntakeTime:     rt.IntakeTime,
		PieceAvailable: cfg.Robot.Sim.PieceAvailable,
	}
}

func autoKey(cfg *config.Config) routines.Key {
	return routines.Key{Position: cfg.Autonomous.Position, Choice: cfg.Autonomous.Choice}
}

// LoadCatalog returns the built-in routines plus those in the config's
// routines file, if any. sample is used to compile file routines once at load.
func LoadCatalog(cfgPath string, cfg *config.Config, sample routines.Deps) (*routines.Catalog, error) {
	c := routines.Builtin()
	path := config.RoutinesPath(cfgPath, cfg)
	if path == "" {
		return c, nil
	}
	f, err := routines.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := c.Register(f, path, sample); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// validate checks everything a config needs before it is committed: values,
// the debug bind, the routines file, and the autonomous selection.
func validate(cfgPath string, cfg *config.Config, sample routines.Deps) (*routines.Catalog, error) {
	_, err := config.Resolve(cfg)
	if _, _, serr := mapStorageConfig(cfg); serr != nil {
		err = errors.Join(err, serr)
	}
	if d := cfg.Debug; d.Enabled {
		if derr := debugserver.CheckBind(d.Addr, d.Token, d.AllowInsecure); derr != nil {
			err = errors.Join(err, fmt.Errorf("debug.addr: %w", derr))
		}
	}
	if err != nil {
		return nil, err
	}
	cat, err := LoadCatalog(cfgPath, cfg, sample)
	if err != nil {
		return nil, err
	}
	if err := cat.Check(sample); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Autonomous.Choice) != "" && !cat.HasAuto(autoKey(cfg)) {
		return nil, fmt.Errorf("autonomous: %w: %s", routines.ErrUnknownRoutine, autoKey(cfg))
	}
	return cat, nil
}
