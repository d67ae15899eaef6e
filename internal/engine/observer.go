package engine

// Observer is notified as the system ticks.
//
// Only evaluations made by dispatch are reported; operands evaluated inside
// a Condition are not. Observers run on the ticking goroutine and must not
// block.
type Observer interface {
	// TickStarted is called with the tick number before channels are polled.
	TickStarted(tick int64)

	// Evaluated is called after each successful dispatched evaluation.
	Evaluated(tick int64, variable string, value any, changed bool)
}

// Evaluation is one dispatched evaluation.
type Evaluation struct {
	Tick     int64  `json:"tick"`
	Variable string `json:"variable"`
	Value    any    `json:"value"`
	Changed  bool   `json:"changed"`
}

// MemoryObserver keeps every evaluation in memory.
type MemoryObserver struct {
	Ticks       int64
	Evaluations []Evaluation
}

// TickStarted implements Observer.
func (m *MemoryObserver) TickStarted(tick int64) {
	m.Ticks = tick
}

// Evaluated implements Observer.
func (m *MemoryObserver) Evaluated(tick int64, variable string, value any, changed bool) {
	m.Evaluations = append(m.Evaluations, Evaluation{
		Tick:     tick,
		Variable: variable,
		Value:    value,
		Changed:  changed,
	})
}

// InTick returns the evaluations made during tick, in order.
func (m *MemoryObserver) InTick(tick int64) []Evaluation {
	var out []Evaluation
	for _, e := range m.Evaluations {
		if e.Tick == tick {
			out = append(out, e)
		}
	}
	return out
}
