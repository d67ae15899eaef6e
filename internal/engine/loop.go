package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Phase is a position within a frame. Lower phases run first.
type Phase int

const (
	// PhaseEarly runs before anything else in the frame.
	PhaseEarly Phase = iota
	// PhaseUpdate is the default phase for frame work.
	PhaseUpdate
	// PhaseLate runs after all other work in the frame.
	PhaseLate
)

func (p Phase) String() string {
	switch p {
	case PhaseEarly:
		return "early"
	case PhaseUpdate:
		return "update"
	case PhaseLate:
		return "late"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Updatable is anything the Loop ticks once per frame.
type Updatable interface {
	PreferredPhase() Phase
	Tick() error
}

// DefaultFrame is the default frame interval.
const DefaultFrame = 100 * time.Millisecond

// Loop is the frame scheduler. Each frame it ticks every registered
// Updatable once, ordered by phase and then by registration.
//
// Run must be called from exactly one goroutine; the registered systems are
// ticked on it.
type Loop struct {
	frame     time.Duration
	maxFrames int64
	logger    *slog.Logger

	entries []Updatable
	frames  int64
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithFrame sets the interval between frames.
func WithFrame(d time.Duration) LoopOption {
	return func(l *Loop) {
		l.frame = d
	}
}

// WithMaxFrames stops Run after n frames. Zero means run until cancelled.
func WithMaxFrames(n int64) LoopOption {
	return func(l *Loop) {
		l.maxFrames = n
	}
}

// WithLoopLogger sets the loop logger. Default: slog.Default().
func WithLoopLogger(logger *slog.Logger) LoopOption {
	return func(l *Loop) {
		l.logger = logger
	}
}

// NewLoop creates a Loop.
func NewLoop(opts ...LoopOption) *Loop {
	l := &Loop{
		frame:  DefaultFrame,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Register adds u to the frame at its preferred phase. Entries with the
// same phase keep registration order.
func (l *Loop) Register(u Updatable) {
	phase := u.PreferredPhase()
	i := len(l.entries)
	for i > 0 && l.entries[i-1].PreferredPhase() > phase {
		i--
	}
	l.entries = append(l.entries, nil)
	copy(l.entries[i+1:], l.entries[i:])
	l.entries[i] = u
}

// Step runs one frame. The first failing entry aborts the frame.
func (l *Loop) Step() error {
	l.frames++
	for _, u := range l.entries {
		if err := u.Tick(); err != nil {
			return fmt.Errorf("frame %d (%s): %w", l.frames, u.PreferredPhase(), err)
		}
	}
	return nil
}

// Frames returns the number of frames stepped so far.
func (l *Loop) Frames() int64 {
	return l.frames
}

// Run steps a frame every interval until the context is cancelled or the
// frame limit is reached.
//
// ERROR HANDLING: A failing frame is logged and the loop continues with the
// next frame; a tick error only loses the rest of that frame.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("loop starting", "frame", l.frame, "entries", len(l.entries))

	ticker := time.NewTicker(l.frame)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("loop stopping: context cancelled", "frames", l.frames)
			return ctx.Err()

		case <-ticker.C:
			if err := l.Step(); err != nil {
				l.logger.Error("frame failed", "frame", l.frames, "error", err)
			}
			if l.maxFrames > 0 && l.frames >= l.maxFrames {
				l.logger.Info("loop stopping: frame limit reached", "frames", l.frames)
				return nil
			}
		}
	}
}
