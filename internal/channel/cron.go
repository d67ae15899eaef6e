package channel

import (
	"fmt"
	"time"

	"github.com/gorhill/cronexpr"

	"github.com/roach88/varsys/internal/event"
)

// Schedule names a cron expression.
type Schedule struct {
	Name string
	Expr string
}

type cronEntry struct {
	name string
	expr *cronexpr.Expression
	next time.Time
}

// Cron is a channel that emits event.CronFired when a schedule comes due.
//
// Schedules are checked against the clock inside PollAll, so firings land
// on tick boundaries. A schedule that came due more than once since the
// last poll fires once, stamped with its earliest missed time.
type Cron struct {
	entries []*cronEntry
	opts    options
}

// NewCron parses the schedules. Their first firing is the first matching
// instant after now.
func NewCron(schedules []Schedule, opts ...Option) (*Cron, error) {
	c := &Cron{opts: buildOptions(opts)}
	now := c.opts.now()

	for _, s := range schedules {
		expr, err := cronexpr.Parse(s.Expr)
		if err != nil {
			return nil, fmt.Errorf("cron channel: schedule %s: %w", s.Name, err)
		}
		c.entries = append(c.entries, &cronEntry{
			name: s.Name,
			expr: expr,
			next: expr.Next(now),
		})
	}
	return c, nil
}

// PollAll implements Channel. Due schedules fire in declaration order.
func (c *Cron) PollAll() ([]any, error) {
	now := c.opts.now()

	var fired []any
	for _, e := range c.entries {
		if e.next.IsZero() || e.next.After(now) {
			continue
		}
		fired = append(fired, event.CronFired{Name: e.name, At: e.next})
		e.next = e.expr.Next(now)
		c.opts.logger.Debug("cron schedule fired", "schedule", e.name, "next", e.next)
	}
	return fired, nil
}

// Next returns when the named schedule fires next. The zero time means
// never.
func (c *Cron) Next(name string) (time.Time, bool) {
	for _, e := range c.entries {
		if e.name == name {
			return e.next, true
		}
	}
	return time.Time{}, false
}
