package observable

// Derived is a read-only value computed from another Readable. It is
// recomputed every time the source publishes and keeps its own
// subscriber list.
type Derived[T any] struct {
	store  *Store[T]
	cancel func()
}

// Derive creates a Derived whose value is always fn applied to the
// latest value published by src.
func Derive[S, T any](src Readable[S], fn func(S) T) *Derived[T] {
	var zero T
	d := &Derived[T]{store: New(zero)}

	// Subscribe delivers the current source value right away, so the
	// store is populated before Derive returns.
	d.cancel = src.Subscribe(func(v S) {
		d.store.Set(fn(v))
	})

	return d
}

// Get returns the most recently computed value.
func (d *Derived[T]) Get() T {
	return d.store.Get()
}

// Subscribe registers fn on the derived value.
func (d *Derived[T]) Subscribe(fn func(T)) func() {
	return d.store.Subscribe(fn)
}

// Close detaches the derived value from its source.
func (d *Derived[T]) Close() {
	d.cancel()
}
