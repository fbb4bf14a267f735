package media

import "sync"

// A FrameRing is a bounded circular buffer holding the most recently decoded
// frames, oldest evicted first. It may be written by one goroutine and read
// by any number of concurrent goroutines.
type FrameRing struct {
	mu     sync.Mutex
	frames []*Frame
	head   int // index of the next write slot
	count  int
}

// NewFrameRing returns a ring with the given capacity. Capacity is clamped
// to a minimum of 1, which degenerates to a "latest frame only" slot.
func NewFrameRing(capacity int) *FrameRing {
	if capacity < 1 {
		capacity = 1
	}
	return &FrameRing{
		frames: make([]*Frame, capacity),
	}
}

// Push appends a frame, evicting the oldest if the ring is full.
func (r *FrameRing) Push(f *Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.frames[r.head] = f
	r.head = (r.head + 1) % len(r.frames)
	if r.count < len(r.frames) {
		r.count++
	}
}

// Latest returns the most recently pushed frame, or nil if the ring is empty.
func (r *FrameRing) Latest() *Frame {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count == 0 {
		return nil
	}
	i := (r.head - 1 + len(r.frames)) % len(r.frames)
	return r.frames[i]
}

// Snapshot returns the buffered frames in arrival order, oldest first.
func (r *FrameRing) Snapshot() []*Frame {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Frame, 0, r.count)
	start := (r.head - r.count + len(r.frames)) % len(r.frames)
	for i := 0; i < r.count; i++ {
		out = append(out, r.frames[(start+i)%len(r.frames)])
	}
	return out
}

// Len returns the number of buffered frames.
func (r *FrameRing) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Cap returns the ring capacity.
func (r *FrameRing) Cap() int {
	return len(r.frames)
}

// Clear drops all buffered frames.
func (r *FrameRing) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.frames {
		r.frames[i] = nil
	}
	r.head = 0
	r.count = 0
}
