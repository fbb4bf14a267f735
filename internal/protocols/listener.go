package protocols

import (
	"bufio"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/camlink/camlink/internal/media"
)

// ffmpegListener is the shared core of adapters where a single ffmpeg
// process is both the protocol listener and the decoder (RTMP, SRT). The
// process's stdout is the raw frame stream; its stderr doubles as the
// connection-event channel and the decode diagnostics channel.
type ffmpegListener struct {
	Hooks
	bin    string
	width  int
	height int

	mu        sync.Mutex
	proc      *ffmpegProc
	video     io.Reader
	diag      *diagBuffer
	connected bool
	watchDone chan struct{}
}

// start spawns ffmpeg listening on the given input URL and begins watching
// its stderr. A second start before stop is a logged no-op.
func (l *ffmpegListener) start(input string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.proc != nil {
		log.Warn("Adapter already started")
		return nil
	}

	args := append([]string{"-loglevel", "info", "-i", input}, rawVideoArgs(l.width, l.height)...)
	proc, err := startFFmpeg(l.bin, args)
	if err != nil {
		return err
	}

	l.proc = proc
	l.video = newFrameChunker(proc.stdout, media.FrameBytes(l.width, l.height))
	l.diag = newDiagBuffer(256)
	l.watchDone = make(chan struct{})
	go l.watch(proc.stderr, l.diag, l.watchDone)
	return nil
}

// stop terminates the listener process. Safe to call repeatedly.
func (l *ffmpegListener) stop() {
	l.mu.Lock()
	proc := l.proc
	done := l.watchDone
	l.proc = nil
	l.video = nil
	l.watchDone = nil
	l.mu.Unlock()

	if proc == nil {
		return
	}

	proc.stop()
	select {
	case <-done:
	case <-time.After(stopTimeout):
		log.Warn("Transport watcher did not exit within timeout")
	}

	if l.setConnected(false) {
		l.fireDisconnect()
	}
}

func (l *ffmpegListener) isConnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

// setConnected updates the flag and reports whether it changed.
func (l *ffmpegListener) setConnected(v bool) bool {
	l.mu.Lock()
	changed := l.connected != v
	l.connected = v
	l.mu.Unlock()
	return changed
}

// VideoOutput is the blocking raw RGB24 frame stream, regrouped so each read
// yields one whole frame. Nil before start.
func (l *ffmpegListener) VideoOutput() io.Reader {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.video
}

// Diagnostics is the line-oriented decode diagnostic channel. Nil before
// start.
func (l *ffmpegListener) Diagnostics() io.Reader {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.diag == nil {
		return nil
	}
	return l.diag
}

// watch scans ffmpeg stderr, derives sender connect/disconnect events from
// the transport log markers, and forwards every line to the diagnostics
// buffer for the decoder's scanner. Exits on stderr end-of-stream, which
// means the listener process is gone.
func (l *ffmpegListener) watch(stderr io.Reader, diag *diagBuffer, done chan struct{}) {
	defer close(done)
	defer diag.close()

	sc := bufio.NewScanner(stderr)
	sc.Buffer(make([]byte, 0, 4096), 256*1024)
	for sc.Scan() {
		line := sc.Text()
		diag.put(line)

		switch classifyTransportLine(line) {
		case senderConnected:
			if l.setConnected(true) {
				log.Info("Sender connected")
				l.fireConnect()
			}
		case senderDisconnected:
			if l.setConnected(false) {
				log.Info("Sender disconnected")
				l.fireDisconnect()
			}
		}
	}
	if err := sc.Err(); err != nil {
		log.Debug("Transport log closed: %v", err)
	}

	if l.setConnected(false) {
		l.fireDisconnect()
	}
}

type transportEvent int

const (
	transportNoise transportEvent = iota
	senderConnected
	senderDisconnected
)

// classifyTransportLine matches ffmpeg log markers for sender arrival and
// departure. Disconnect markers are checked first since several of them
// contain the substring "connect".
func classifyTransportLine(line string) transportEvent {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "connection closed"),
		strings.Contains(lower, "broken pipe"),
		strings.Contains(lower, "disconnected"),
		strings.Contains(lower, "end of file"):
		return senderDisconnected
	case strings.Contains(lower, "handshake performed"),
		strings.Contains(lower, "accepted"),
		strings.Contains(lower, "client connected"),
		strings.Contains(lower, "stream mapping"):
		return senderConnected
	default:
		return transportNoise
	}
}
