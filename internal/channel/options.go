package channel

import (
	"log/slog"
	"time"

	"github.com/roach88/varsys/internal/event"
)

// Option configures a transport channel.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	registry *event.Registry
	now      func() time.Time
}

func buildOptions(opts []Option) options {
	o := options{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = event.NewRegistry()
	}
	return o
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithRegistry sets the registry used to decode envelopes.
// Default: event.NewRegistry().
func WithRegistry(r *event.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithNow sets the wall clock used by time-driven channels.
// Default: time.Now.
func WithNow(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// deliver decodes one envelope and queues the event. Undecodable messages
// are logged and dropped.
func deliver(q *Queue, o *options, source string, data []byte) {
	ev, err := o.registry.DecodeEnvelope(data)
	if err != nil {
		o.logger.Warn("dropping undecodable message",
			"source", source,
			"error", err,
		)
		return
	}
	if !q.Push(ev) {
		o.logger.Debug("dropping message: channel closed", "source", source)
	}
}
