package config

// Config is the tickbot configuration file. YAML and JSON are both accepted;
// unknown keys are rejected.
//
// All durations are Go duration strings (e.g. "20ms", "15s", "168h").
type Config struct {
	Robot        RobotConfig        `json:"robot"`
	Autonomous   AutonomousConfig   `json:"autonomous"`
	Logging      LoggingConfig      `json:"logging"`
	Storage      *StorageConfig     `json:"storage,omitempty"`
	Housekeeping HousekeepingConfig `json:"housekeeping"`
	Systemd      SystemdConfig      `json:"systemd"`
	Debug        DebugConfig        `json:"debug"`

	// RoutinesFile adds declarative routines on top of the built-in catalog.
	// Relative paths are resolved against the config file's directory.
	RoutinesFile string `json:"routines_file,omitempty"`
}

// RobotConfig controls the control loop.
//
// Defaults (when fields are omitted/zero):
//   - loop_period: "20ms"
//   - auto_period: "15s"
//   - start_mode: "disabled"
//   - history_size: 50
//
// loop_period is read once at startup; changing it needs a restart.
type RobotConfig struct {
	LoopPeriod      string    `json:"loop_period,omitempty"`
	AutoPeriod      string    `json:"auto_period,omitempty"`
	StartMode       string    `json:"start_mode,omitempty"`
	TeleopAfterAuto bool      `json:"teleop_after_auto,omitempty"`
	HistorySize     int       `json:"history_size,omitempty"`
	Sim             SimConfig `json:"sim"`
}

// SimConfig tunes the simulated robot the loop drives when no hardware is
// attached.
type SimConfig struct {
	MaxSpeed       float64       `json:"max_speed,omitempty"`      // m/s
	ElevatorSpeed  float64       `json:"elevator_speed,omitempty"` // m/s
	IntakeTime     string        `json:"intake_time,omitempty"`
	PieceAvailable bool          `json:"piece_available,omitempty"`
	Target         *TargetConfig `json:"target,omitempty"`
}

// TargetConfig places a vision target in front of the simulated robot.
type TargetConfig struct {
	Distance float64 `json:"distance"`
	Bearing  float64 `json:"bearing,omitempty"`
}

// AutonomousConfig selects the routine run when autonomous begins.
type AutonomousConfig struct {
	Position string `json:"position"`
	Choice   string `json:"choice"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the run log. Omit the section to disable it.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./tickbot_runs" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite
}

// HousekeepingConfig schedules pruning of old run records.
//
// Schedule accepts a 5-field cron expression, a descriptor such as
// "@daily", or "@every 1h". Retain defaults to "168h".
type HousekeepingConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule,omitempty"`
	Retain   string `json:"retain,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// SystemdConfig controls sd_notify integration. Both are no-ops when the
// process was not started by systemd.
type SystemdConfig struct {
	Notify   bool `json:"notify"`
	Watchdog bool `json:"watchdog"`
}

// DebugConfig controls the optional diagnostics HTTP server (/healthz,
// /status, /runs and, with pprof set, /debug/pprof/).
//
// Security note:
//   - Prefer binding to localhost (default "127.0.0.1:6060").
//   - A non-loopback addr needs a token or an explicit allow_insecure.
type DebugConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`
	Token         string `json:"token,omitempty"` // bearer token (never logged)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	Pprof         bool   `json:"pprof,omitempty"`

	// Server timeouts. There is no write timeout so /debug/pprof/profile
	// can run for its full 30s.
	ReadTimeout string `json:"read_timeout,omitempty"` // default "10s"
	IdleTimeout string `json:"idle_timeout,omitempty"` // default "60s"

	// Runtime profiling rates. Leave 0 to keep Go defaults.
	MutexProfileFraction int `json:"mutex_profile_fraction,omitempty"`
	BlockProfileRate     int `json:"block_profile_rate,omitempty"`
}
