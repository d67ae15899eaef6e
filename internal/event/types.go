package event

import "time"

// Sample is a numeric reading reported by a named source.
type Sample struct {
	Source string  `json:"source"`
	Value  float64 `json:"value"`
}

// EventSource implements Sourced.
func (s Sample) EventSource() string { return s.Source }

// Signal is a named notification with no payload.
type Signal struct {
	Name string `json:"name"`
}

// EventSource implements Sourced.
func (s Signal) EventSource() string { return s.Name }

// CronFired is emitted once each time a named schedule comes due.
type CronFired struct {
	Name string    `json:"name"`
	At   time.Time `json:"at"`
}

// EventSource implements Sourced.
func (c CronFired) EventSource() string { return c.Name }

// Sourced is implemented by events that carry the name of what produced
// them. The Board files such events per source.
type Sourced interface {
	EventSource() string
}

// Built-in kind names.
const (
	KindSample = "sample"
	KindSignal = "signal"
	KindCron   = "cron"
)
