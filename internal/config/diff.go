package config

import (
	"reflect"
	"sort"
	"strings"

	logx "tickbot/pkg/logx"
)

// Sections named by SummarizeConfigChange.
const (
	SectionRobot        = "robot"
	SectionAutonomous   = "autonomous"
	SectionLogging      = "logging"
	SectionStorage      = "storage"
	SectionHousekeeping = "housekeeping"
	SectionSystemd      = "systemd"
	SectionRoutines     = "routines_file"
	SectionDebug        = "debug"
)

// SummarizeConfigChange lists the sections that differ between oldCfg and
// newCfg, sorted, plus log fields describing the new values.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var (
		changed []string
		attrs   []logx.Field
	)

	if !reflect.DeepEqual(oldCfg.Robot, newCfg.Robot) {
		changed = append(changed, SectionRobot)
		attrs = append(attrs,
			logx.String("robot.loop_period", strings.TrimSpace(newCfg.Robot.LoopPeriod)),
			logx.String("robot.auto_period", strings.TrimSpace(newCfg.Robot.AutoPeriod)),
			logx.String("robot.start_mode", strings.TrimSpace(newCfg.Robot.StartMode)),
			logx.Bool("robot.loop_period_changed", strings.TrimSpace(oldCfg.Robot.LoopPeriod) != strings.TrimSpace(newCfg.Robot.LoopPeriod)),
		)
	}
	if oldCfg.Autonomous != newCfg.Autonomous {
		changed = append(changed, SectionAutonomous)
		attrs = append(attrs,
			logx.String("autonomous.position", newCfg.Autonomous.Position),
			logx.String("autonomous.choice", newCfg.Autonomous.Choice),
		)
	}
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, SectionLogging)
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	var oS, nS StorageConfig
	if oldCfg.Storage != nil {
		oS = *oldCfg.Storage
	}
	if newCfg.Storage != nil {
		nS = *newCfg.Storage
	}
	if (oldCfg.Storage == nil) != (newCfg.Storage == nil) || oS != nS {
		changed = append(changed, SectionStorage)
		attrs = append(attrs,
			logx.Bool("storage.enabled", newCfg.Storage != nil),
			logx.String("storage.driver", strings.TrimSpace(nS.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(nS.Path) != ""),
		)
	}

	if oldCfg.Housekeeping != newCfg.Housekeeping {
		changed = append(changed, SectionHousekeeping)
		attrs = append(attrs,
			logx.Bool("housekeeping.enabled", newCfg.Housekeeping.Enabled),
			logx.String("housekeeping.schedule", newCfg.Housekeeping.Schedule),
			logx.String("housekeeping.retain", newCfg.Housekeeping.Retain),
		)
	}
	if oldCfg.Systemd != newCfg.Systemd {
		changed = append(changed, SectionSystemd)
		attrs = append(attrs,
			logx.Bool("systemd.notify", newCfg.Systemd.Notify),
			logx.Bool("systemd.watchdog", newCfg.Systemd.Watchdog),
		)
	}
	// never log the token, only whether one is set
	if oldCfg.Debug != newCfg.Debug {
		changed = append(changed, SectionDebug)
		attrs = append(attrs,
			logx.Bool("debug.enabled", newCfg.Debug.Enabled),
			logx.String("debug.addr", strings.TrimSpace(newCfg.Debug.Addr)),
			logx.Bool("debug.pprof", newCfg.Debug.Pprof),
			logx.Bool("debug.token_set", strings.TrimSpace(newCfg.Debug.Token) != ""),
			logx.Bool("debug.allow_insecure", newCfg.Debug.AllowInsecure),
		)
	}
	if strings.TrimSpace(oldCfg.RoutinesFile) != strings.TrimSpace(newCfg.RoutinesFile) {
		changed = append(changed, SectionRoutines)
		attrs = append(attrs, logx.String("routines_file", newCfg.RoutinesFile))
	}

	sort.Strings(changed)
	return changed, attrs
}

// Changed reports whether section is in a SummarizeConfigChange result.
func Changed(sections []string, section string) bool {
	i := sort.SearchStrings(sections, section)
	return i < len(sections) && sections[i] == section
}
