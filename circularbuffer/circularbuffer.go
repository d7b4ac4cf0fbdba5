package circularbuffer

import "sync"

// CircularBuffer keeps the most recent size elements.
type CircularBuffer[T any] struct {
	values   []T
	position int
	full     bool
	mu       sync.Mutex
}

// New returns a buffer holding size elements. A size below 1 keeps nothing.
func New[T any](size int) *CircularBuffer[T] {
	size = max(size, 0)
	return &CircularBuffer[T]{
		values: make([]T, size),
	}
}

func (cb *CircularBuffer[T]) Push(element T) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if len(cb.values) == 0 {
		return
	}

	cb.values[cb.position] = element
	cb.position++

	if cb.position >= len(cb.values) {
		cb.position = 0
		cb.full = true
	}
}

// Snapshot returns the elements oldest first.
func (cb *CircularBuffer[T]) Snapshot() []T {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.full {
		out := make([]T, cb.position)
		copy(out, cb.values[:cb.position])
		return out
	}

	out := make([]T, 0, len(cb.values))
	out = append(out, cb.values[cb.position:]...)
	out = append(out, cb.values[:cb.position]...)
	return out
}
