package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"tickbot/internal/app"
	"tickbot/internal/config"
	"tickbot/internal/robot"
	"tickbot/internal/routines"
	"tickbot/internal/task"
	"tickbot/internal/task/scheduler"
	logx "tickbot/pkg/logx"
)

func newRoutinesCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "routines",
		Short: "Inspect and check autonomous routines and macros",
		Long: `Without --config only the built-in routines are used. With --config the
routines file it names is loaded on top of them.`,
	}
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config (YAML or JSON)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List routines",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cat, _, err := loadRoutines(cfgPath)
				if err != nil {
					return err
				}
				return listRoutines(cmd.OutOrStdout(), cat)
			},
		},
		&cobra.Command{
			Use:   "check",
			Short: "Build every routine and validate its tree",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cat, sim, err := loadRoutines(cfgPath)
				if err != nil {
					return err
				}
				if err := cat.Check(simDeps(sim, task.SystemClock{}, nil)); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d routines ok\n", len(cat.List()))
				return nil
			},
		},
		&cobra.Command{
			Use:   "show <routine>",
			Short: "Print a routine's tree with claims",
			Long:  `routine is "auto/<position>/<choice>", "<position>/<choice>", "<choice>" or "macro/<name>".`,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cat, sim, err := loadRoutines(cfgPath)
				if err != nil {
					return err
				}
				_, root, err := buildNamed(cat, args[0], simDeps(sim, task.SystemClock{}, nil))
				if err != nil {
					return err
				}
				return task.Dump(cmd.OutOrStdout(), root)
			},
		},
		newSimCmd(&cfgPath),
	)
	return cmd
}

func newSimCmd(cfgPath *string) *cobra.Command {
	var opts simOptions
	cmd := &cobra.Command{
		Use:   "sim <routine>",
		Short: "Run a routine against the simulated robot in simulated time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, sim, err := loadRoutines(*cfgPath)
			if err != nil {
				return err
			}
			if opts.target > 0 {
				sim.Vision.Place(robot.Target{Distance: opts.target})
			}
			if opts.piece {
				sim.Intake.Load(true)
			}
			res, err := simulate(cat, sim, args[0], opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s after %d ticks (%s)\n", res.Name, res.Outcome, res.Ticks, res.Elapsed)
			fmt.Fprintf(out, "drive %.2fm  elevator %.2fm  piece %v\n",
				sim.Drive.Distance(), sim.Elevator.Height(), sim.Intake.HasGamePiece())
			return nil
		},
	}
	cmd.Flags().DurationVar(&opts.tick, "tick", config.DefaultLoopPeriod, "simulated loop period")
	cmd.Flags().DurationVar(&opts.period, "period", config.DefaultAutoPeriod, "autonomous period length")
	cmd.Flags().DurationVar(&opts.limit, "limit", 30*time.Second, "simulated time limit")
	cmd.Flags().Float64Var(&opts.target, "target", 0, "place a vision target this many meters ahead")
	cmd.Flags().BoolVar(&opts.piece, "piece", false, "put a game piece within reach of the intake")
	return cmd
}

// loadRoutines returns the catalog for cfgPath (built-ins only when empty) and
// a simulator configured from it.
func loadRoutines(cfgPath string) (*routines.Catalog, *robot.Sim, error) {
	if strings.TrimSpace(cfgPath) == "" {
		return routines.Builtin(), robot.NewSim(robot.SimConfig{}), nil
	}
	cfg, err := config.NewConfigManager(cfgPath).Parse()
	if err != nil {
		return nil, nil, err
	}
	rt, err := config.Resolve(cfg)
	if err != nil {
		return nil, nil, err
	}
	sim := robot.NewSim(robot.SimConfig{
		MaxSpeed:       cfg.Robot.Sim.MaxSpeed,
		ElevatorSpeed:  cfg.Robot.Sim.ElevatorSpeed,
		IntakeTime:     rt.IntakeTime,
		PieceAvailable: cfg.Robot.Sim.PieceAvailable,
	})
	if t := cfg.Robot.Sim.Target; t != nil {
		sim.Vision.Place(robot.Target{Distance: t.Distance, Bearing: t.Bearing})
	}
	cat, err := app.LoadCatalog(cfgPath, cfg, simDeps(sim, task.SystemClock{}, nil))
	if err != nil {
		return nil, nil, err
	}
	return cat, sim, nil
}

func simDeps(sim *robot.Sim, clock task.Clock, period task.Period) routines.Deps {
	if period == nil {
		period = task.NewMatchPeriod(clock)
	}
	return routines.Deps{Robot: sim.Subsystems(), Clock: clock, Period: period}
}

// buildNamed resolves a routine by its catalog name or a key.
func buildNamed(cat *routines.Catalog, name string, d routines.Deps) (string, task.Task, error) {
	name = strings.TrimSpace(name)
	if m, ok := strings.CutPrefix(name, "macro/"); ok {
		return cat.Macro(m, d)
	}
	k, err := routines.ParseKey(strings.TrimPrefix(name, "auto/"))
	if err != nil {
		return "", nil, err
	}
	return cat.Auto(k, d)
}

func listRoutines(out io.Writer, cat *routines.Catalog) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSOURCE\tDESCRIPTION")
	for _, e := range cat.List() {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Name, e.Source, e.Description)
	}
	return tw.Flush()
}

type simOptions struct {
	tick   time.Duration
	period time.Duration
	limit  time.Duration
	target float64
	piece  bool
}

type simResult struct {
	Name    string
	Outcome scheduler.Outcome
	Ticks   int
	Elapsed time.Duration
}

// simClock is advanced by simulate, one tick at a time.
type simClock struct{ now time.Time }

func (c *simClock) Now() time.Time { return c.now }

// simulate runs one routine through a scheduler the way the control loop
// does, without waiting on wall time.
func simulate(cat *routines.Catalog, sim *robot.Sim, name string, opts simOptions) (simResult, error) {
	if opts.tick <= 0 {
		opts.tick = config.DefaultLoopPeriod
	}
	clock := &simClock{now: time.Unix(0, 0).UTC()}
	match := task.NewMatchPeriod(clock)
	match.Start(opts.period)

	routine, root, err := buildNamed(cat, name, simDeps(sim, clock, match))
	if err != nil {
		return simResult{}, err
	}
	sched := scheduler.New(scheduler.Config{HistorySize: 1}, clock, logx.Nop(), nil)
	if err := sched.Install(routine, root); err != nil {
		return simResult{}, err
	}

	res := simResult{Name: routine, Outcome: scheduler.OutcomeRunning}
	for res.Elapsed < opts.limit || opts.limit <= 0 {
		out := sched.Tick()
		res.Ticks++
		sim.Step(opts.tick)
		clock.now = clock.now.Add(opts.tick)
		res.Elapsed += opts.tick
		if out.Terminal() {
			res.Outcome = out
			return res, nil
		}
	}
	sched.CancelCurrent()
	res.Outcome = scheduler.OutcomeCancelled
	return res, nil
}
