package decode

import (
	"bufio"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/camlink/camlink/internal/logging"
	"github.com/camlink/camlink/internal/media"
)

var log = logging.DefaultLogger.WithTag("decode")

// ErrNoFrameInterface is returned by Start when the supplied transport
// exposes neither a byte stream nor a pull interface.
var ErrNoFrameInterface = errors.New(
	"transport provides neither a byte-stream nor a pull-frame interface")

// joinTimeout bounds how long Stop waits for a reader loop to exit. A
// reader blocked on transport I/O is unblocked when the transport itself
// stops and closes its pipes.
const joinTimeout = 2 * time.Second

// pullIdle is the retry delay when a pull source has no frame ready.
const pullIdle = 500 * time.Microsecond

// ByteStreamSource is a transport exposing a blocking raw RGB24 frame
// stream plus a line-oriented decode diagnostics channel.
type ByteStreamSource interface {
	VideoOutput() io.Reader
	Diagnostics() io.Reader
}

// PullFrameSource is a transport exposing non-blocking frame polls.
// PullFrame returns (nil, nil) when no frame is ready yet.
type PullFrameSource interface {
	PullFrame() (*media.Frame, error)
}

// Decoder turns a continuous frame source into a thread-safe, always
// available "latest N frames" view. Transient read faults are absorbed: a
// malformed or missing frame never blocks or crashes frame delivery, and
// the last good frame stays available until a new one arrives.
type Decoder struct {
	// OnFrame is invoked for every successfully decoded frame. Set before
	// Start.
	OnFrame func(*media.Frame)

	// OnError is invoked for every recoverable stream error. Set before
	// Start.
	OnError func(error)

	width      int
	height     int
	frameBytes int
	ring       *media.FrameRing

	frameCount uint64 // atomic
	errorCount uint64 // atomic
	running    int32  // atomic

	mu         sync.Mutex // guards start/stop transitions
	quit       chan struct{}
	readerDone chan struct{}
	diagDone   chan struct{}
}

// New returns a stopped decoder for frames of the given geometry, buffering
// the most recent bufferDepth frames.
func New(width, height, bufferDepth int) *Decoder {
	return &Decoder{
		width:      width,
		height:     height,
		frameBytes: media.FrameBytes(width, height),
		ring:       media.NewFrameRing(bufferDepth),
	}
}

// Start begins reading frames from the transport. The transport must expose
// either the byte-stream shape or the pull shape; anything else fails with
// ErrNoFrameInterface. Starting an already running decoder is a logged
// no-op. Frame and error counters restart from zero.
func (d *Decoder) Start(src interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if atomic.LoadInt32(&d.running) == 1 {
		log.Warn("Decoder already running")
		return nil
	}

	switch s := src.(type) {
	case ByteStreamSource:
		video := s.VideoOutput()
		if video == nil {
			return errors.New("transport not started: no video output")
		}

		atomic.StoreUint64(&d.frameCount, 0)
		atomic.StoreUint64(&d.errorCount, 0)
		atomic.StoreInt32(&d.running, 1)
		d.quit = make(chan struct{})
		d.readerDone = make(chan struct{})
		go d.readFrames(video, d.quit, d.readerDone)

		if diag := s.Diagnostics(); diag != nil {
			d.diagDone = make(chan struct{})
			go d.scanDiagnostics(diag, d.quit, d.diagDone)
		}

	case PullFrameSource:
		atomic.StoreUint64(&d.frameCount, 0)
		atomic.StoreUint64(&d.errorCount, 0)
		atomic.StoreInt32(&d.running, 1)
		d.quit = make(chan struct{})
		d.readerDone = make(chan struct{})
		go d.pullFrames(s, d.quit, d.readerDone)

	default:
		return errors.Wrapf(ErrNoFrameInterface, "%T", src)
	}

	log.Info("Decoder started (%dx%d, %d byte frames)", d.width, d.height, d.frameBytes)
	return nil
}

// Stop signals the reader loops to exit, joins them within a bounded
// timeout, and clears the frame buffer. Idempotent: safe to call multiple
// times or when never started.
func (d *Decoder) Stop() {
	d.mu.Lock()
	if atomic.LoadInt32(&d.running) == 0 {
		d.mu.Unlock()
		d.ring.Clear()
		return
	}
	atomic.StoreInt32(&d.running, 0)
	close(d.quit)
	readerDone := d.readerDone
	diagDone := d.diagDone
	d.readerDone = nil
	d.diagDone = nil
	d.mu.Unlock()

	join(readerDone, "frame reader")
	join(diagDone, "diagnostic reader")

	d.ring.Clear()
	log.Info("Decoder stopped (%d frames, %d errors)",
		atomic.LoadUint64(&d.frameCount), atomic.LoadUint64(&d.errorCount))
}

func join(done <-chan struct{}, name string) {
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-time.After(joinTimeout):
		log.Warn("%s did not exit within timeout", name)
	}
}

// LatestFrame returns the newest buffered frame, or nil if none.
func (d *Decoder) LatestFrame() *media.Frame {
	return d.ring.Latest()
}

// ClearBuffer drops all buffered frames without stopping the reader.
func (d *Decoder) ClearBuffer() {
	d.ring.Clear()
}

// FrameCount returns frames decoded since the last Start.
func (d *Decoder) FrameCount() uint64 {
	return atomic.LoadUint64(&d.frameCount)
}

// ErrorCount returns recoverable errors since the last Start.
func (d *Decoder) ErrorCount() uint64 {
	return atomic.LoadUint64(&d.errorCount)
}

func (d *Decoder) isRunning() bool {
	return atomic.LoadInt32(&d.running) == 1
}

// recordError counts a recoverable error and notifies the subscriber. The
// reader loops continue afterwards; recoverable errors never tear down
// frame delivery.
func (d *Decoder) recordError(err error) {
	atomic.AddUint64(&d.errorCount, 1)
	if d.OnError != nil {
		d.OnError(err)
	}
}

// deliver pushes a good frame into the ring and notifies the subscriber.
func (d *Decoder) deliver(frame *media.Frame) {
	d.ring.Push(frame)
	atomic.AddUint64(&d.frameCount, 1)
	if d.OnFrame != nil {
		d.OnFrame(frame)
	}
}

// readFrames reads one transport chunk per iteration, expecting exactly one
// raw frame per chunk. A zero-length read at end of stream exits cleanly; a
// short read is a recoverable error and the loop continues with the last
// good frame still buffered.
func (d *Decoder) readFrames(r io.Reader, quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	log.Debug("Frame reader started")

	buf := make([]byte, d.frameBytes)
	for d.isRunning() {
		n, err := r.Read(buf)

		switch {
		case n == d.frameBytes:
			d.deliver(media.NewFrame(d.width, d.height, buf))

		case n > 0:
			if !d.isRunning() {
				return
			}
			short := errors.Errorf("short read: expected %d bytes, got %d",
				d.frameBytes, n)
			log.Warn("%v", short)
			d.recordError(short)

		case err == io.EOF || err == io.ErrClosedPipe:
			if d.isRunning() {
				log.Info("End of stream reached")
			}
			return

		case err != nil:
			if !d.isRunning() {
				return
			}
			log.Error("Error reading frame: %v", err)
			d.recordError(errors.Wrap(err, "read frame"))
		}

		select {
		case <-quit:
			return
		default:
		}
	}

	log.Debug("Frame reader exiting")
}

// pullFrames polls a non-blocking source, backing off briefly when no frame
// is pending. Pull errors are recoverable, same as short reads.
func (d *Decoder) pullFrames(s PullFrameSource, quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	log.Debug("Frame puller started")

	for d.isRunning() {
		frame, err := s.PullFrame()

		switch {
		case err != nil:
			if !d.isRunning() {
				return
			}
			log.Warn("Error pulling frame: %v", err)
			d.recordError(err)
			// A persistently failing source polls at the idle rate, it
			// does not spin.
			select {
			case <-quit:
				return
			case <-time.After(pullIdle):
			}
			continue

		case frame == nil:
			// No frame ready yet.
			select {
			case <-quit:
				return
			case <-time.After(pullIdle):
			}
			continue

		default:
			d.deliver(frame)
		}

		select {
		case <-quit:
			return
		default:
		}
	}

	log.Debug("Frame puller exiting")
}

// scanDiagnostics performs a line-oriented scan of the transport's decode
// diagnostics, classifying lines by severity keywords. It terminates on end
// of stream; read failures are logged and scanning resumes, mirroring the
// reader's degrade-not-crash policy.
func (d *Decoder) scanDiagnostics(r io.Reader, quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	log.Debug("Diagnostic reader started")

	for {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 4096), 256*1024)
		for sc.Scan() {
			line := sc.Text()
			lower := strings.ToLower(line)
			switch {
			case strings.Contains(lower, "error"),
				strings.Contains(lower, "failed"),
				strings.Contains(lower, "invalid"),
				strings.Contains(lower, "corrupt"):
				log.Error("Decode: %s", line)
				d.recordError(errors.New("decode error: " + line))
			case strings.Contains(lower, "warning"):
				log.Warn("Decode: %s", line)
			default:
				log.Debug("Decode: %s", line)
			}
		}

		err := sc.Err()
		if err == nil || !d.isRunning() {
			// End of stream, or we are shutting down.
			log.Debug("Diagnostic reader exiting")
			return
		}
		log.Error("Error reading diagnostics: %v", err)
		select {
		case <-quit:
			return
		case <-time.After(100 * time.Millisecond):
		}
	}
}
