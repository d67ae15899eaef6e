package variable

// Signal is a list of callbacks invoked with a value on Emit.
//
// Callbacks run synchronously on the emitting goroutine in subscription
// order. Subscribing or unsubscribing from inside a callback is allowed;
// the change takes effect from the next Emit.
//
// Not safe for concurrent use. Variables are evaluated from a single
// goroutine.
type Signal[T any] struct {
	subs   []subscription[T]
	nextID int
}

type subscription[T any] struct {
	id int
	fn func(T)
}

// Subscribe registers fn and returns a function that removes it.
// Calling the returned function more than once is a no-op.
func (s *Signal[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscription[T]{id: id, fn: fn})

	return func() {
		for i, sub := range s.subs {
			if sub.id == id {
				// Copy so an Emit in progress keeps iterating its own snapshot.
				next := make([]subscription[T], 0, len(s.subs)-1)
				next = append(next, s.subs[:i]...)
				next = append(next, s.subs[i+1:]...)
				s.subs = next
				return
			}
		}
	}
}

// Emit calls every subscribed callback with v.
func (s *Signal[T]) Emit(v T) {
	subs := s.subs
	for _, sub := range subs {
		sub.fn(v)
	}
}

// Len returns the number of subscribed callbacks.
func (s *Signal[T]) Len() int {
	return len(s.subs)
}

// Notifier is a Signal without a payload.
type Notifier struct {
	sig Signal[struct{}]
}

// Subscribe registers fn and returns a function that removes it.
func (n *Notifier) Subscribe(fn func()) (unsubscribe func()) {
	return n.sig.Subscribe(func(struct{}) { fn() })
}

// Emit calls every subscribed callback.
func (n *Notifier) Emit() {
	n.sig.Emit(struct{}{})
}

// Len returns the number of subscribed callbacks.
func (n *Notifier) Len() int {
	return n.sig.Len()
}
