package housekeeping

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Kind tells how a schedule string was read.
type Kind int

const (
	KindCron Kind = iota
	KindInterval
)

func (k Kind) String() string {
	if k == KindInterval {
		return "interval"
	}
	return "cron"
}

// Schedule is a parsed housekeeping schedule.
type Schedule struct {
	Kind  Kind
	Spec  string        // normalized cron spec; "@every <d>" for intervals
	Every time.Duration // intervals only

	sched cron.Schedule
}

// Next returns the first activation after t.
func (s Schedule) Next(t time.Time) time.Time { return s.sched.Next(t) }

var (
	reHHMM = regexp.MustCompile(`^(\d{1,3}):(\d{2})$`)

	defaultParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
)

// ParseSchedule accepts:
//   - cron: "0 3 * * *", "@daily", "@every 90m"
//   - interval: "90m", "2h30m", or HH:MM ("01:30" is every 90 minutes)
//
// A "cron:" or "every:" prefix forces one reading.
func ParseSchedule(raw string) (Schedule, error) {
	s := strings.TrimSpace(raw)
	low := strings.ToLower(s)
	switch {
	case s == "":
		return Schedule{}, fmt.Errorf("schedule required")
	case strings.HasPrefix(low, "cron:"):
		return parseCron(strings.TrimSpace(s[len("cron:"):]))
	case strings.HasPrefix(low, "every:"):
		return parseInterval(strings.TrimSpace(s[len("every:"):]))
	case strings.HasPrefix(s, "@") || strings.ContainsAny(s, " \t"):
		return parseCron(s)
	}
	sch, err := parseInterval(s)
	if err != nil {
		return Schedule{}, fmt.Errorf("invalid schedule %q (use cron like '0 3 * * *', HH:MM like '02:30', or a duration like '6h')", raw)
	}
	return sch, nil
}

func parseCron(expr string) (Schedule, error) {
	if expr == "" {
		return Schedule{}, fmt.Errorf("cron expression required")
	}
	sched, err := defaultParser.Parse(expr)
	if err != nil {
		return Schedule{}, fmt.Errorf("cron %q: %w", expr, err)
	}
	sch := Schedule{Kind: KindCron, Spec: expr, sched: sched}
	if every, ok := sched.(cron.ConstantDelaySchedule); ok {
		sch.Kind = KindInterval
		sch.Every = every.Delay
	}
	return sch, nil
}

func parseInterval(v string) (Schedule, error) {
	var d time.Duration
	if m := reHHMM.FindStringSubmatch(v); m != nil {
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if mm > 59 {
			return Schedule{}, fmt.Errorf("invalid minutes in %q", v)
		}
		d = time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
	} else {
		var err error
		if d, err = time.ParseDuration(v); err != nil {
			return Schedule{}, fmt.Errorf("invalid interval %q", v)
		}
	}
	if d <= 0 {
		return Schedule{}, fmt.Errorf("interval must be > 0")
	}
	every := cron.Every(d)
	return Schedule{Kind: KindInterval, Spec: "@every " + every.Delay.String(), Every: every.Delay, sched: every}, nil
}
