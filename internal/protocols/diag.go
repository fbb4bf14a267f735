package protocols

import (
	"io"
	"sync"
)

// A diagBuffer is a bounded, drop-oldest buffer of diagnostic lines exposed
// as a line-oriented io.Reader. The writing side never blocks, so a slow or
// absent diagnostics consumer cannot stall the adapter's monitor goroutine.
type diagBuffer struct {
	ch     chan string
	closed chan struct{}
	once   sync.Once
	rest   []byte
}

func newDiagBuffer(capacity int) *diagBuffer {
	return &diagBuffer{
		ch:     make(chan string, capacity),
		closed: make(chan struct{}),
	}
}

// put appends a line, dropping the oldest buffered line if full.
func (b *diagBuffer) put(line string) {
	select {
	case b.ch <- line:
	default:
		select {
		case <-b.ch:
		default:
		}
		select {
		case b.ch <- line:
		default:
		}
	}
}

// close marks the end of the diagnostic stream. Buffered lines remain
// readable; Read returns io.EOF once drained.
func (b *diagBuffer) close() {
	b.once.Do(func() { close(b.closed) })
}

// Read blocks until a line is available or the buffer is closed and drained.
// Lines are newline-terminated.
func (b *diagBuffer) Read(p []byte) (int, error) {
	if len(b.rest) == 0 {
		select {
		case line := <-b.ch:
			b.rest = append([]byte(line), '\n')
		case <-b.closed:
			select {
			case line := <-b.ch:
				b.rest = append([]byte(line), '\n')
			default:
				return 0, io.EOF
			}
		}
	}
	n := copy(p, b.rest)
	b.rest = b.rest[n:]
	return n, nil
}
