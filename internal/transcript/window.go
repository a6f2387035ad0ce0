package transcript

// Window is a fixed-capacity byte store backed by a ring.
// It is not safe for concurrent use.
type Window struct {
	data    []byte
	start   int
	size    int
	sliding bool
}

// NewWindow creates a window holding at most capacity bytes
func NewWindow(capacity int, sliding bool) *Window {
	if capacity < 0 {
		capacity = 0
	}
	return &Window{
		data:    make([]byte, capacity),
		sliding: sliding,
	}
}

// Cap returns the byte bound of the window
func (w *Window) Cap() int {
	return len(w.data)
}

// Len returns the number of bytes currently held
func (w *Window) Len() int {
	return w.size
}

// Frozen reports whether a non-sliding window has stopped admitting bytes
func (w *Window) Frozen() bool {
	return !w.sliding && w.size == len(w.data)
}

// Write appends p under the window's retention policy and reports whether
// p was admitted. A sliding window always admits, evicting from the oldest
// end. A non-sliding window rejects p whole when it would overflow.
func (w *Window) Write(p []byte) bool {
	if len(p) == 0 {
		return true
	}

	capacity := len(w.data)
	if !w.sliding {
		if w.size+len(p) > capacity {
			return false
		}
		w.put(p)
		return true
	}

	if capacity == 0 {
		return true
	}

	// Only the tail of an oversized chunk can survive.
	if len(p) >= capacity {
		copy(w.data, p[len(p)-capacity:])
		w.start = 0
		w.size = capacity
		return true
	}

	if overflow := w.size + len(p) - capacity; overflow > 0 {
		w.start = (w.start + overflow) % capacity
		w.size -= overflow
	}
	w.put(p)
	return true
}

// put copies p after the last held byte. Callers guarantee it fits.
func (w *Window) put(p []byte) {
	tail := (w.start + w.size) % len(w.data)
	n := copy(w.data[tail:], p)
	copy(w.data, p[n:])
	w.size += len(p)
}

// Bytes returns a linearized copy of the held bytes, oldest first
func (w *Window) Bytes() []byte {
	out := make([]byte, w.size)
	if w.size == 0 {
		return out
	}

	end := w.start + w.size
	if end <= len(w.data) {
		copy(out, w.data[w.start:end])
		return out
	}

	// Wrapped around
	n := copy(out, w.data[w.start:])
	copy(out[n:], w.data[:end-len(w.data)])
	return out
}

// Reset discards all held bytes
func (w *Window) Reset() {
	w.start = 0
	w.size = 0
}
