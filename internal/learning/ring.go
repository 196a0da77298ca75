package learning

// ring is a fixed-capacity circular buffer. Oldest entries are evicted
// on overflow. Not safe for concurrent use; callers hold their own lock.
type ring[T any] struct {
	items []T
	head  int
	size  int
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{items: make([]T, capacity)}
}

func (r *ring[T]) push(item T) {
	if r.size < len(r.items) {
		r.items[(r.head+r.size)%len(r.items)] = item
		r.size++
		return
	}
	r.items[r.head] = item
	r.head = (r.head + 1) % len(r.items)
}

func (r *ring[T]) len() int {
	return r.size
}

// values returns the buffered entries ordered oldest first
func (r *ring[T]) values() []T {
	out := make([]T, 0, r.size)
	for i := 0; i < r.size; i++ {
		out = append(out, r.items[(r.head+i)%len(r.items)])
	}
	return out
}

// tail returns up to n most recent entries, oldest first
func (r *ring[T]) tail(n int) []T {
	if n >= r.size {
		return r.values()
	}
	out := make([]T, 0, n)
	for i := r.size - n; i < r.size; i++ {
		out = append(out, r.items[(r.head+i)%len(r.items)])
	}
	return out
}
