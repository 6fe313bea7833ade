package util

// PushBounded appends items to window and drops from the front so that at
// most limit elements remain. Order is preserved oldest first.
func PushBounded[T any](window []T, limit int, items ...T) []T {
	window = append(window, items...)
	if limit <= 0 {
		return window[:0]
	}
	if over := len(window) - limit; over > 0 {
		out := make([]T, limit)
		copy(out, window[over:])
		return out
	}
	return window
}

// Map applies f to every element of in.
func Map[T, U any](in []T, f func(T) U) []U {
	out := make([]U, 0, len(in))
	for _, v := range in {
		out = append(out, f(v))
	}
	return out
}
