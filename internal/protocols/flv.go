package protocols

import (
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nareix/joy4/av"
	"github.com/nareix/joy4/codec/h264parser"
	"github.com/nareix/joy4/format/flv"
	"github.com/pkg/errors"
	"golang.org/x/net/netutil"

	"github.com/camlink/camlink/internal/media"
)

// DefaultFLVPort is the FLV-over-TCP listener port.
const DefaultFLVPort = 9900

func init() {
	Register("flv", func(opts Options) (Adapter, error) {
		return NewFLVAdapter(opts)
	})
}

// FLVAdapter accepts a raw FLV stream over plain TCP, the framing that
// `ffmpeg -f flv tcp://host:port` emits. The H.264 track is demuxed in
// process and fed as Annex-B NAL units to the external decode process,
// whose stdout is the raw frame stream.
type FLVAdapter struct {
	Hooks
	bin    string
	width  int
	height int

	mu         sync.Mutex
	port       int
	listener   net.Listener
	proc       *ffmpegProc
	video      io.Reader
	connected  bool
	acceptDone chan struct{}
}

func NewFLVAdapter(opts Options) (*FLVAdapter, error) {
	opts.applyDefaults()
	bin := opts.FFmpegBin
	if bin == "" {
		var err error
		if bin, err = findFFmpeg(); err != nil {
			return nil, err
		}
	}

	return &FLVAdapter{
		bin:    bin,
		width:  opts.Width,
		height: opts.Height,
	}, nil
}

// Start listens on the given TCP port. FLV has no stream path; the argument
// is ignored.
func (a *FLVAdapter) Start(port int, _ string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.listener != nil {
		log.Warn("FLV adapter already started")
		return nil
	}
	if port == 0 {
		port = DefaultFLVPort
	}
	a.port = port

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return errors.Wrapf(err, "listen :%d", port)
	}
	// One sender at a time.
	lis = netutil.LimitListener(lis, 1)

	args := append([]string{"-loglevel", "info", "-f", "h264", "-i", "pipe:0"},
		rawVideoArgs(a.width, a.height)...)
	proc, err := startFFmpeg(a.bin, args)
	if err != nil {
		lis.Close()
		return err
	}

	a.listener = lis
	a.proc = proc
	a.video = newFrameChunker(proc.stdout, media.FrameBytes(a.width, a.height))
	a.acceptDone = make(chan struct{})
	go a.acceptLoop(lis, proc.stdin, a.acceptDone)

	log.Info("FLV server listening on tcp://0.0.0.0:%d", port)
	return nil
}

func (a *FLVAdapter) Stop() {
	a.mu.Lock()
	lis := a.listener
	proc := a.proc
	done := a.acceptDone
	a.listener = nil
	a.proc = nil
	a.video = nil
	a.acceptDone = nil
	a.mu.Unlock()

	if lis == nil {
		return
	}

	lis.Close()
	proc.stop()
	select {
	case <-done:
	case <-time.After(stopTimeout):
		log.Warn("FLV accept loop did not exit within timeout")
	}

	if a.setConnected(false) {
		a.fireDisconnect()
	}
	log.Info("FLV adapter stopped")
}

func (a *FLVAdapter) IsConnected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

func (a *FLVAdapter) setConnected(v bool) bool {
	a.mu.Lock()
	changed := a.connected != v
	a.connected = v
	a.mu.Unlock()
	return changed
}

func (a *FLVAdapter) ConnectionURLs(localIPs []string) []string {
	urls := make([]string, 0, len(localIPs))
	for _, ip := range localIPs {
		urls = append(urls, fmt.Sprintf("tcp://%s:%d", ip, a.port))
	}
	return urls
}

func (a *FLVAdapter) Instructions() string {
	return "Stream FLV over plain TCP to one of the URLs shown above, e.g.\n" +
		"  ffmpeg -i <input> -c:v h264 -an -f flv tcp://<url>\n" +
		"Useful on trusted LANs where RTMP framing overhead is unwanted."
}

// VideoOutput is the decode process's raw RGB24 stdout, regrouped so each
// read yields one whole frame. Nil before start.
func (a *FLVAdapter) VideoOutput() io.Reader {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.video
}

// Diagnostics is the decode process's stderr. Nil before start.
func (a *FLVAdapter) Diagnostics() io.Reader {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.proc == nil {
		return nil
	}
	return a.proc.stderr
}

// acceptLoop serves one sender session at a time until the listener closes.
func (a *FLVAdapter) acceptLoop(lis net.Listener, stdin io.Writer, done chan struct{}) {
	defer close(done)

	for {
		c, err := lis.Accept()
		if err != nil {
			// Listener closed.
			return
		}

		session := uuid.NewString()[:8]
		log.Info("FLV sender %s connected from %s", session, c.RemoteAddr())
		if a.setConnected(true) {
			a.fireConnect()
		}

		if err := relayFLV(c, stdin); err != nil && errors.Cause(err) != io.EOF {
			log.Warn("FLV sender %s: %v", session, err)
		}
		c.Close()

		log.Info("FLV sender %s disconnected", session)
		if a.setConnected(false) {
			a.fireDisconnect()
		}
	}
}

// relayFLV demuxes one FLV session and writes its H.264 elementary stream
// to the decode pipe. Returns io.EOF when the sender closes cleanly.
func relayFLV(c net.Conn, w io.Writer) error {
	demux := flv.NewDemuxer(c)

	streams, err := demux.Streams()
	if err != nil {
		return errors.Wrap(err, "flv header")
	}

	videoIdx := -1
	var codec h264parser.CodecData
	for i, s := range streams {
		if s.Type() == av.H264 {
			videoIdx = i
			codec = s.(h264parser.CodecData)
			break
		}
	}
	if videoIdx < 0 {
		return errors.New("no H.264 video stream in FLV session")
	}

	startcode := []byte{0, 0, 0, 1}
	writeNALU := func(nalu []byte) error {
		if _, err := w.Write(startcode); err != nil {
			return errors.Wrap(err, "decode pipe")
		}
		if _, err := w.Write(nalu); err != nil {
			return errors.Wrap(err, "decode pipe")
		}
		return nil
	}

	for {
		pkt, err := demux.ReadPacket()
		if err != nil {
			return err
		}
		if int(pkt.Idx) != videoIdx {
			continue
		}

		if pkt.IsKeyFrame {
			// Re-emit parameter sets ahead of each IDR so the decoder can
			// sync mid-stream.
			if err := writeNALU(codec.SPS()); err != nil {
				return err
			}
			if err := writeNALU(codec.PPS()); err != nil {
				return err
			}
		}

		nalus, _ := h264parser.SplitNALUs(pkt.Data)
		for _, nalu := range nalus {
			if len(nalu) == 0 {
				continue
			}
			if err := writeNALU(nalu); err != nil {
				return err
			}
		}
	}
}
