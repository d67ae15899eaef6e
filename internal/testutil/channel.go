package testutil

// ScriptedChannel returns a predetermined batch of events on each poll.
//
// Poll n returns Batches[n]; once the script runs out every poll returns no
// events. A non-nil Errs[n] is returned instead of Batches[n].
//
// ScriptedChannel implements channel.Channel.
type ScriptedChannel struct {
	Batches [][]any
	Errs    []error
	polls   int
}

// NewScriptedChannel creates a channel returning batches in order.
func NewScriptedChannel(batches ...[]any) *ScriptedChannel {
	return &ScriptedChannel{Batches: batches}
}

// FailOn makes poll n (zero-based) return err.
func (c *ScriptedChannel) FailOn(n int, err error) *ScriptedChannel {
	for len(c.Errs) <= n {
		c.Errs = append(c.Errs, nil)
	}
	c.Errs[n] = err
	return c
}

// PollAll returns the next scripted batch.
func (c *ScriptedChannel) PollAll() ([]any, error) {
	n := c.polls
	c.polls++

	if n < len(c.Errs) && c.Errs[n] != nil {
		return nil, c.Errs[n]
	}
	if n >= len(c.Batches) {
		return nil, nil
	}
	batch := make([]any, len(c.Batches[n]))
	copy(batch, c.Batches[n])
	return batch, nil
}

// Polls returns how many times PollAll was called.
func (c *ScriptedChannel) Polls() int {
	return c.polls
}
