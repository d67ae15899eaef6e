package harness

import "github.com/roach88/varsys/internal/engine"

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// Trace contains every dispatched evaluation in order.
	Trace []engine.Evaluation `json:"trace"`

	// Values holds the last value of every variable after the final tick.
	Values map[string]any `json:"values"`

	// Ticks is the number of ticks run.
	Ticks int64 `json:"ticks"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []engine.Evaluation{},
		Values: make(map[string]any),
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// evaluations returns the trace entries for variable.
func (r *Result) evaluations(variable string) []engine.Evaluation {
	var out []engine.Evaluation
	for _, e := range r.Trace {
		if e.Variable == variable {
			out = append(out, e)
		}
	}
	return out
}
