package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"tickbot/internal/app"
	"tickbot/internal/control"
	"tickbot/internal/routines"
)

const consoleTimeout = 2 * time.Second

var errQuit = errors.New("quit")

// operator is what the console drives; *app.App implements it.
type operator interface {
	SetMode(ctx context.Context, m control.Mode) error
	RunMacro(ctx context.Context, name string) error
	Cancel(ctx context.Context) error
	Status() app.Status
	Catalog() *routines.Catalog
}

const consoleHelp = `commands:
  auto | teleop | disable   switch robot mode
  macro <name>              run an operator macro (teleop or autonomous)
  macros                    list macros
  cancel                    cancel the active routine
  status                    show mode, routine and loop timing
  quit                      stop tickbot
`

// runConsole reads operator commands line by line until EOF, quit or ctx is
// done. Command errors are printed and do not stop the console.
func runConsole(ctx context.Context, in io.Reader, out io.Writer, op operator) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprint(out, "> ")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			err := execConsole(ctx, out, op, line)
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
			fmt.Fprint(out, "> ")
		}
	}
}

func execConsole(ctx context.Context, out io.Writer, op operator, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cctx, cancel := context.WithTimeout(ctx, consoleTimeout)
	defer cancel()

	switch cmd := strings.ToLower(fields[0]); cmd {
	case "auto", "autonomous", "teleop", "disable", "disabled":
		m, err := control.ParseMode(cmd)
		if err != nil {
			return err
		}
		return op.SetMode(cctx, m)
	case "macro":
		if len(fields) != 2 {
			return errors.New("usage: macro <name>")
		}
		return op.RunMacro(cctx, fields[1])
	case "macros":
		for _, e := range op.Catalog().List() {
			if e.Kind == routines.KindMacro {
				fmt.Fprintf(out, "  %-20s %s\n", strings.TrimPrefix(e.Name, "macro/"), e.Description)
			}
		}
		return nil
	case "cancel":
		return op.Cancel(cctx)
	case "status":
		printStatus(out, op.Status())
		return nil
	case "help", "?":
		fmt.Fprint(out, consoleHelp)
		return nil
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q (try help)", fields[0])
	}
}

func printStatus(out io.Writer, st app.Status) {
	fmt.Fprintf(out, "mode:      %s\n", st.Mode)
	if cur := st.Scheduler.Current; cur != nil {
		fmt.Fprintf(out, "routine:   %s (%d ticks)\n", cur.Name, cur.Ticks)
	} else {
		fmt.Fprintln(out, "routine:   none")
	}
	if st.Mode == control.ModeAutonomous {
		fmt.Fprintf(out, "remaining: %s\n", st.Remaining.Round(time.Millisecond))
	}
	fmt.Fprintf(out, "ticks:     %d (overruns %d, max %s)\n", st.Loop.Ticks, st.Loop.Overruns, st.Loop.MaxTick)
	fmt.Fprintf(out, "runs:      %d succeeded, %d failed, %d cancelled\n",
		st.Scheduler.Succeeded, st.Scheduler.Failed, st.Scheduler.Cancelled)
}
