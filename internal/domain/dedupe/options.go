package dedupe

// Option applies a configuration option to a Window.
type Option func(*Window)

// WithCapacity sets the maximum number of ids kept. Values below 1 are
// raised to 1.
func WithCapacity(n int) Option {
	return func(w *Window) {
		w.capacity = n
	}
}
