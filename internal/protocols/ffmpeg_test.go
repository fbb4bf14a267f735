package protocols

import (
	"io"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/camlink/camlink/internal/decode"
	"github.com/camlink/camlink/internal/media"
)

func TestFrameChunkerRegroupsPipe(t *testing.T) {
	const width, height = 1280, 720
	size := media.FrameBytes(width, height)

	// Frames far larger than the kernel pipe buffer, so every underlying
	// read comes back partial.
	r, w, err := os.Pipe()
	assert.NoError(t, err)
	defer r.Close()

	go func() {
		defer w.Close()
		for i := byte(1); i <= 3; i++ {
			frame := make([]byte, size)
			frame[0] = i
			w.Write(frame)
		}
	}()

	chunker := newFrameChunker(r, size)
	buf := make([]byte, size)
	for i := byte(1); i <= 3; i++ {
		n, err := chunker.Read(buf)
		assert.NoError(t, err)
		assert.Equal(t, size, n, "frame %d", i)
		assert.Equal(t, i, buf[0])
	}

	n, err := chunker.Read(buf)
	assert.Equal(t, 0, n)
	assert.Equal(t, io.EOF, err)
}

func TestFrameChunkerTrailingPartial(t *testing.T) {
	r, w, err := os.Pipe()
	assert.NoError(t, err)
	defer r.Close()

	go func() {
		defer w.Close()
		w.Write(make([]byte, 300))
		w.Write(make([]byte, 150))
	}()

	chunker := newFrameChunker(r, 300)
	buf := make([]byte, 300)

	n, err := chunker.Read(buf)
	assert.NoError(t, err)
	assert.Equal(t, 300, n)

	// The truncated final frame surfaces as one short chunk.
	n, err = chunker.Read(buf)
	assert.NoError(t, err)
	assert.Equal(t, 150, n)

	n, err = chunker.Read(buf)
	assert.Equal(t, 0, n)
	assert.Equal(t, io.EOF, err)
}

func TestFrameChunkerShortBuffer(t *testing.T) {
	r, w, err := os.Pipe()
	assert.NoError(t, err)
	defer r.Close()
	defer w.Close()

	chunker := newFrameChunker(r, 300)
	_, err = chunker.Read(make([]byte, 10))
	assert.Equal(t, io.ErrShortBuffer, err)
}

// pipeSource mirrors how the byte-stream adapters expose their decode
// process's stdout to the decoder.
type pipeSource struct {
	video io.Reader
}

func (s *pipeSource) VideoOutput() io.Reader { return s.video }
func (s *pipeSource) Diagnostics() io.Reader { return nil }

func TestByteStreamPipeDeliversFullFrames(t *testing.T) {
	const width, height = 1280, 720
	size := media.FrameBytes(width, height)

	r, w, err := os.Pipe()
	assert.NoError(t, err)
	defer r.Close()

	d := decode.New(width, height, 1)
	var frames int32
	d.OnFrame = func(*media.Frame) { atomic.AddInt32(&frames, 1) }
	assert.NoError(t, d.Start(&pipeSource{video: newFrameChunker(r, size)}))
	defer d.Stop()

	go func() {
		defer w.Close()
		for i := byte(1); i <= 3; i++ {
			frame := make([]byte, size)
			frame[0] = i
			w.Write(frame)
		}
	}()

	assert.Eventually(t, func() bool {
		return d.FrameCount() == 3
	}, 5*time.Second, time.Millisecond)

	assert.EqualValues(t, 3, atomic.LoadInt32(&frames))
	assert.EqualValues(t, 0, d.ErrorCount())
	assert.Equal(t, byte(3), d.LatestFrame().Data[0])
}
