package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/varsys/internal/channel"
	"github.com/roach88/varsys/internal/compiler"
	"github.com/roach88/varsys/internal/engine"
	"github.com/roach88/varsys/internal/event"
	"github.com/roach88/varsys/internal/ir"
	"github.com/roach88/varsys/internal/script"
	"github.com/roach88/varsys/internal/variable"
)

// Runtime is a built graph: the system, its variables and open channels.
type Runtime struct {
	System   *engine.System
	Board    *event.Board
	Registry *event.Registry

	spec    *ir.GraphSpec
	vars    map[string]variable.Handle
	closers []func() error
	logger  *slog.Logger
}

// Option configures Build.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	registry  *event.Registry
	observers []engine.Observer
	isolate   bool
	clock     *engine.Clock
	now       func() time.Time
	opener    Opener
	timeout   time.Duration
}

// WithLogger sets the logger for the system and channels.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegistry sets the event registry. Default: event.NewRegistry().
func WithRegistry(r *event.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithObserver adds a system observer.
func WithObserver(obs engine.Observer) Option {
	return func(o *options) { o.observers = append(o.observers, obs) }
}

// WithIsolation makes the system log and skip failures instead of
// aborting ticks.
func WithIsolation() Option {
	return func(o *options) { o.isolate = true }
}

// WithClock sets the tick clock.
func WithClock(c *engine.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithNow sets the wall clock used by cron channels.
func WithNow(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithOpener replaces the channel opener.
func WithOpener(op Opener) Option {
	return func(o *options) { o.opener = op }
}

// WithScriptTimeout bounds each script evaluation.
func WithScriptTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// Build creates and starts a runtime for spec. The spec is assumed valid;
// Build still fails cleanly on anything it cannot construct.
func Build(ctx context.Context, spec *ir.GraphSpec, opts ...Option) (*Runtime, error) {
	o := options{
		logger:  slog.Default(),
		now:     time.Now,
		opener:  OpenChannel,
		timeout: script.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = event.NewRegistry()
	}

	order, err := compiler.DependencyOrder(spec)
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}

	board := event.NewBoard()
	services := engine.NewServices()
	services.Provide(BoardService, board)

	sysOpts := []engine.Option{
		engine.WithLogger(o.logger),
		engine.WithWirer(services),
		engine.WithBeforeDispatch(board.Record),
	}
	for _, obs := range o.observers {
		sysOpts = append(sysOpts, engine.WithObserver(obs))
	}
	if o.isolate {
		sysOpts = append(sysOpts, engine.WithIsolation())
	}
	if o.clock != nil {
		sysOpts = append(sysOpts, engine.WithClock(o.clock))
	}

	rt := &Runtime{
		System:   engine.New(sysOpts...),
		Board:    board,
		Registry: o.registry,
		spec:     spec,
		vars:     make(map[string]variable.Handle, len(spec.Variables)),
		logger:   o.logger,
	}
	if err := rt.System.Start(); err != nil {
		return nil, err
	}

	b := &builder{rt: rt, opts: &o}
	for _, name := range order {
		vs, _ := spec.Variable(name)
		h, err := b.variable(vs)
		if err != nil {
			rt.System.Destroy()
			return nil, fmt.Errorf("build graph: %w", err)
		}
		rt.vars[name] = h
	}

	// Registration follows declaration so bucket order matches the file.
	for _, vs := range spec.Variables {
		if err := rt.System.AddVariable(rt.vars[vs.Name]); err != nil {
			rt.System.Destroy()
			return nil, fmt.Errorf("build graph: %w", err)
		}
	}

	for _, cs := range spec.Channels {
		ch, closer, err := o.opener(ctx, cs, ChannelEnv{
			Logger:   o.logger,
			Registry: o.registry,
			Now:      o.now,
		})
		if err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("build graph: channel %s: %w", cs.Name, err)
		}
		if closer != nil {
			rt.closers = append(rt.closers, closer)
		}
		if err := rt.ListenTo(ch); err != nil {
			_ = rt.Close()
			return nil, err
		}
		o.logger.Debug("channel opened", "channel", cs.Name, "kind", cs.Kind)
	}

	o.logger.Info("graph built",
		"variables", len(spec.Variables),
		"channels", len(spec.Channels),
	)
	return rt, nil
}

// ListenTo adds an extra channel. Its events reach the board like those of
// the declared channels.
func (rt *Runtime) ListenTo(ch channel.Channel) error {
	return rt.System.ListenTo(ch)
}

// Tick runs one system tick.
func (rt *Runtime) Tick() error {
	return rt.System.Tick()
}

// Variable returns the variable declared as name.
func (rt *Runtime) Variable(name string) (variable.Handle, bool) {
	h, ok := rt.vars[name]
	return h, ok
}

// Names returns the variable names in declaration order.
func (rt *Runtime) Names() []string {
	names := make([]string, 0, len(rt.spec.Variables))
	for _, vs := range rt.spec.Variables {
		names = append(names, vs.Name)
	}
	return names
}

// Values returns the last value of every variable.
func (rt *Runtime) Values() map[string]any {
	out := make(map[string]any, len(rt.vars))
	for name, h := range rt.vars {
		out[name] = LastValue(h)
	}
	return out
}

// Close closes every channel and destroys the system.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	rt.System.Destroy()
	return errors.Join(errs...)
}

// LastValue returns the stored value of a graph variable.
func LastValue(h variable.Handle) any {
	switch v := h.(type) {
	case variable.Variable[float64]:
		return v.LastValue()
	case variable.Variable[bool]:
		return v.LastValue()
	case variable.Variable[string]:
		return v.LastValue()
	case variable.Variable[any]:
		return v.LastValue()
	default:
		return nil
	}
}

type builder struct {
	rt   *Runtime
	opts *options
}

func (b *builder) variable(vs ir.VariableSpec) (variable.Handle, error) {
	switch vs.Kind {
	case ir.KindConstant:
		// Constants start at their value so Values reports them unevaluated.
		switch val := vs.Value.(type) {
		case float64:
			return variable.NewConstant(vs.Name, val, variable.WithInitial(val)), nil
		case bool:
			return variable.NewConstant(vs.Name, val, variable.WithInitial(val)), nil
		case string:
			return variable.NewConstant(vs.Name, val, variable.WithInitial(val)), nil
		default:
			return nil, fmt.Errorf("constant %s: unsupported value %T", vs.Name, vs.Value)
		}

	case ir.KindSample:
		return NewSampled(vs.Name, vs.Source), nil

	case ir.KindCondition:
		return b.condition(vs)

	case ir.KindCounter:
		triggers, err := b.triggers(vs)
		if err != nil {
			return nil, err
		}
		// Graph numbers are float64, so counters count in float64 too.
		return variable.NewCounter[float64](vs.Name, triggers...), nil

	case ir.KindScript:
		triggers, err := b.triggers(vs)
		if err != nil {
			return nil, err
		}
		inputs := make([]script.Input, 0, len(vs.Inputs))
		for _, name := range vs.Inputs {
			h, err := b.ref(vs.Name, name)
			if err != nil {
				return nil, err
			}
			inputs = append(inputs, script.Input{Name: name, Var: h})
		}
		return script.New(vs.Name, vs.Source, inputs, triggers, script.WithTimeout(b.opts.timeout))

	default:
		return nil, fmt.Errorf("variable %s: unknown kind %q", vs.Name, vs.Kind)
	}
}

func (b *builder) condition(vs ir.VariableSpec) (variable.Handle, error) {
	pred, err := variable.ParsePredicate(vs.Op)
	if err != nil {
		return nil, fmt.Errorf("condition %s: %w", vs.Name, err)
	}
	lhs, err := b.ref(vs.Name, vs.LHS)
	if err != nil {
		return nil, err
	}
	rhs, err := b.ref(vs.Name, vs.RHS)
	if err != nil {
		return nil, err
	}

	switch l := lhs.(type) {
	case variable.Variable[float64]:
		if r, ok := rhs.(variable.Variable[float64]); ok {
			return variable.NewCondition(vs.Name, l, r, variable.Ordered[float64](), pred), nil
		}
	case variable.Variable[bool]:
		if r, ok := rhs.(variable.Variable[bool]); ok {
			return variable.NewCondition(vs.Name, l, r, variable.Bools(), pred), nil
		}
	case variable.Variable[string]:
		if r, ok := rhs.(variable.Variable[string]); ok {
			return variable.NewCondition(vs.Name, l, r, variable.Ordered[string](), pred), nil
		}
	}
	return nil, fmt.Errorf("condition %s: cannot compare %s with %s", vs.Name, vs.LHS, vs.RHS)
}

// ref returns an already built variable. Dependency order guarantees
// operands are built first.
func (b *builder) ref(from, name string) (variable.Handle, error) {
	h, ok := b.rt.vars[name]
	if !ok {
		return nil, fmt.Errorf("%s: unknown variable %q", from, name)
	}
	return h, nil
}

func (b *builder) triggers(vs ir.VariableSpec) ([]variable.TriggerKey, error) {
	keys := make([]variable.TriggerKey, 0, len(vs.Triggers))
	for _, kind := range vs.Triggers {
		key, ok := b.opts.registry.Trigger(kind)
		if !ok {
			return nil, fmt.Errorf("%s: unknown event kind %q", vs.Name, kind)
		}
		keys = append(keys, key)
	}
	return keys, nil
}
