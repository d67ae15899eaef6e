package engine

import (
	"errors"
	"log/slog"

	"github.com/roach88/varsys/internal/channel"
	"github.com/roach88/varsys/internal/variable"
)

type systemState int

const (
	stateCreated systemState = iota
	stateStarted
	stateDestroyed
)

// System is the variable system: it owns the trigger index and the channel
// list and drives one dispatch pass per Tick.
//
// CRITICAL: Not safe for concurrent use. Start, ListenTo, AddVariable, Tick
// and Destroy must all be called from the goroutine that ticks.
//
// INVARIANTS:
//   - A variable appears once per declared trigger, in registration order
//   - Registering the same variable twice puts it in its buckets twice
//   - Channels are polled in registration order
type System struct {
	logger    *slog.Logger
	wirer     Wirer
	observers []Observer
	before    []func(ev any)
	isolate   bool
	clock     *Clock

	state    systemState
	index    map[variable.TriggerKey][]variable.Handle
	channels []channel.Channel
}

// Option configures a System.
type Option func(*System)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *System) {
		s.logger = l
	}
}

// WithWirer sets the dependency wiring step run by AddVariable.
// Default: NopWirer.
func WithWirer(w Wirer) Option {
	return func(s *System) {
		s.wirer = w
	}
}

// WithObserver adds an observer notified of ticks and dispatched
// evaluations. May be given more than once.
func WithObserver(o Observer) Option {
	return func(s *System) {
		s.observers = append(s.observers, o)
	}
}

// WithBeforeDispatch adds a hook called with each polled event right
// before its bucket is evaluated, including events no variable triggers
// on. May be given more than once.
func WithBeforeDispatch(fn func(ev any)) Option {
	return func(s *System) {
		s.before = append(s.before, fn)
	}
}

// WithIsolation makes Tick log and skip failing channels and variables
// instead of aborting. The failures are returned joined when the tick ends.
func WithIsolation() Option {
	return func(s *System) {
		s.isolate = true
	}
}

// WithClock sets the tick clock. Default: NewClock().
func WithClock(c *Clock) Option {
	return func(s *System) {
		s.clock = c
	}
}

// New creates a System. Call Start before registering anything.
func New(opts ...Option) *System {
	s := &System{
		logger: slog.Default(),
		wirer:  NopWirer{},
		clock:  NewClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes the empty trigger index and channel list.
// Must be called exactly once, before any registration or tick.
func (s *System) Start() error {
	switch s.state {
	case stateStarted:
		return newLifecycleError(ErrCodeAlreadyStarted, "Start")
	case stateDestroyed:
		return newLifecycleError(ErrCodeDestroyed, "Start")
	}

	s.index = make(map[variable.TriggerKey][]variable.Handle)
	s.channels = nil
	s.state = stateStarted

	s.logger.Debug("variable system started", "isolation", s.isolate)
	return nil
}

// ListenTo appends a channel to the polled list.
func (s *System) ListenTo(ch channel.Channel) error {
	if err := s.ready("ListenTo"); err != nil {
		return err
	}
	s.channels = append(s.channels, ch)
	return nil
}

// AddVariable wires the variable, then indexes it under each trigger it
// declares. A wiring failure leaves the index untouched.
//
// Variables without triggers are wired but not indexed; they are evaluated
// only directly or as operands.
func (s *System) AddVariable(h variable.Handle) error {
	if err := s.ready("AddVariable"); err != nil {
		return err
	}

	if err := s.wirer.Wire(h); err != nil {
		return newWireError(h.Name(), err)
	}

	triggers := h.UpdateTriggers()
	for _, key := range triggers {
		s.index[key] = append(s.index[key], h)
	}

	s.logger.Debug("variable registered",
		"variable", h.Name(),
		"triggers", len(triggers),
	)
	return nil
}

// Tick polls every channel and evaluates the variables keyed by each
// event's type.
//
// Without isolation the first failure aborts the tick: later events,
// variables and channels are skipped and the error is returned.
func (s *System) Tick() error {
	if err := s.ready("Tick"); err != nil {
		return err
	}

	seq := s.clock.Next()
	for _, o := range s.observers {
		o.TickStarted(seq)
	}

	var errs []error
	for i, ch := range s.channels {
		events, err := ch.PollAll()
		if err != nil {
			perr := NewPollError(seq, i, err)
			if !s.isolate {
				return perr
			}
			s.logger.Error("channel poll failed",
				"tick", seq,
				"channel", i,
				"error", err,
			)
			errs = append(errs, perr)
			continue
		}

		for _, ev := range events {
			if err := s.dispatch(seq, ev); err != nil {
				if !s.isolate {
					return err
				}
				errs = append(errs, err)
			}
		}
	}

	return errors.Join(errs...)
}

// dispatch evaluates the bucket for one event.
func (s *System) dispatch(seq int64, ev any) error {
	for _, fn := range s.before {
		fn(ev)
	}

	key := variable.TriggerOf(ev)
	bucket, ok := s.index[key]
	if !ok {
		s.logger.Debug("event dropped: no variables registered",
			"tick", seq,
			"event", key.String(),
		)
		return nil
	}

	var errs []error
	for _, h := range bucket {
		value, changed, err := h.EvaluateAny()
		if err != nil {
			eerr := NewEvaluationError(seq, h.Name(), key.String(), err)
			if !s.isolate {
				return eerr
			}
			s.logger.Error("variable evaluation failed",
				"tick", seq,
				"variable", h.Name(),
				"trigger", key.String(),
				"error", err,
			)
			errs = append(errs, eerr)
			continue
		}

		for _, o := range s.observers {
			o.Evaluated(seq, h.Name(), value, changed)
		}
	}
	return errors.Join(errs...)
}

// Destroy releases the index and channel references. Later calls to any
// method other than Destroy fail with ErrCodeDestroyed.
func (s *System) Destroy() {
	if s.state == stateDestroyed {
		return
	}
	s.index = nil
	s.channels = nil
	s.state = stateDestroyed
	s.logger.Debug("variable system destroyed", "ticks", s.clock.Current())
}

// PreferredPhase reports that the system runs early in each frame.
func (s *System) PreferredPhase() Phase {
	return PhaseEarly
}

// Variables returns a copy of the bucket for key, in evaluation order.
// Used for testing and introspection.
func (s *System) Variables(key variable.TriggerKey) []variable.Handle {
	bucket := s.index[key]
	if bucket == nil {
		return nil
	}
	out := make([]variable.Handle, len(bucket))
	copy(out, bucket)
	return out
}

// TriggerCount returns the number of distinct trigger keys indexed.
func (s *System) TriggerCount() int {
	return len(s.index)
}

// ChannelCount returns the number of registered channels.
func (s *System) ChannelCount() int {
	return len(s.channels)
}

// Clock returns the tick clock.
func (s *System) Clock() *Clock {
	return s.clock
}

func (s *System) ready(op string) error {
	switch s.state {
	case stateCreated:
		return newLifecycleError(ErrCodeNotStarted, op)
	case stateDestroyed:
		return newLifecycleError(ErrCodeDestroyed, op)
	}
	return nil
}
